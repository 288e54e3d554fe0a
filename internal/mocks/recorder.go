package mocks

import (
	"context"
	"sync"

	"github.com/phrazzld/tasktrail-api/internal/job"
)

// MockHistoryRecorder captures history entries instead of queueing them.
type MockHistoryRecorder struct {
	// RecordFn allows for custom behavior in tests
	RecordFn func(ctx context.Context, entry job.HistoryEntry) error

	mu      sync.Mutex
	entries []job.HistoryEntry
}

// Record implements service.HistoryRecorder. The entry is captured even when
// RecordFn returns an error.
func (m *MockHistoryRecorder) Record(ctx context.Context, entry job.HistoryEntry) error {
	m.mu.Lock()
	m.entries = append(m.entries, entry)
	m.mu.Unlock()

	if m.RecordFn != nil {
		return m.RecordFn(ctx, entry)
	}
	return nil
}

// Entries returns every captured entry in call order.
func (m *MockHistoryRecorder) Entries() []job.HistoryEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]job.HistoryEntry(nil), m.entries...)
}

// InlineSubmitter implements job.Submitter by executing each job immediately
// on the caller's goroutine, so end-to-end tests see history without a runner.
type InlineSubmitter struct{}

// Submit runs j once.
func (InlineSubmitter) Submit(ctx context.Context, j job.Job) error {
	return j.Execute(ctx)
}
