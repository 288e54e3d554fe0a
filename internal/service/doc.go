// Package service contains the application use cases. It orchestrates the
// domain entities, the stores defined in internal/store and the background
// job queue.
//
// The task service owns the mutation and audit pipeline. Every create,
// field-level change and delete of a task queues one history entry through
// a HistoryRecorder after the task itself has been written. Updates are
// diffed field by field with DetectChanges and persisted with a single write;
// an update that changes nothing is reported on UpdateResult rather than as
// an error.
//
// Services never hand raw storage errors to their callers. Expected
// conditions come back as sentinels (ErrTaskNotFound, ErrNotTaskCreator,
// ErrInvalidCredentials) or as domain validation errors; everything else is
// wrapped in a ServiceError, which matches ErrOperationFailed.
package service
