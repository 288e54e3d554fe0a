// Package mocks provides in-memory fakes of the stores and collaborators
// used by the task, user and team services.
//
// The store fakes keep their data in memory and copy entities on the way in
// and out, so they behave like a database for service and handler tests.
// Every fake exposes function fields that override the default behavior.
//
// Usage:
//
// Import the mocks package in your test file and create the required mock:
//
//	import "github.com/phrazzld/tasktrail-api/internal/mocks"
//
//	func TestSomething(t *testing.T) {
//	    tasks := mocks.NewMockTaskStore()
//	    tasks.UpdateFn = func(ctx context.Context, task *domain.Task) error {
//	        return errors.New("connection reset")
//	    }
//
//	    // Use the mock in your test...
//	}
package mocks
