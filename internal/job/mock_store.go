package job

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MockStore is an in-memory Store for tests. The Fn fields may be replaced
// to inject failures.
type MockStore struct {
	mutex   sync.RWMutex
	records map[uuid.UUID]*Record
	// Transitions records every status update in call order.
	Transitions []Transition

	SaveFn         func(ctx context.Context, job Job) error
	UpdateStatusFn func(ctx context.Context, id uuid.UUID, status Status, attempts int, errMsg string) error
}

// Transition is one UpdateStatus call seen by MockStore.
type Transition struct {
	ID       uuid.UUID
	Status   Status
	Attempts int
	Error    string
}

// NewMockStore creates a MockStore with working default behaviour.
func NewMockStore() *MockStore {
	s := &MockStore{records: make(map[uuid.UUID]*Record)}

	s.SaveFn = func(ctx context.Context, job Job) error {
		s.mutex.Lock()
		defer s.mutex.Unlock()
		now := time.Now()
		s.records[job.ID()] = &Record{
			ID:        job.ID(),
			Type:      job.Type(),
			Payload:   job.Payload(),
			Status:    StatusEnqueued,
			CreatedAt: now,
			UpdatedAt: now,
		}
		return nil
	}

	s.UpdateStatusFn = func(ctx context.Context, id uuid.UUID, status Status, attempts int, errMsg string) error {
		s.mutex.Lock()
		defer s.mutex.Unlock()
		s.Transitions = append(s.Transitions, Transition{ID: id, Status: status, Attempts: attempts, Error: errMsg})
		rec, ok := s.records[id]
		if !ok {
			return nil
		}
		rec.Status = status
		rec.Attempts = attempts
		rec.LastError = errMsg
		rec.UpdatedAt = time.Now()
		return nil
	}

	return s
}

// Save implements Store.
func (s *MockStore) Save(ctx context.Context, job Job) error {
	return s.SaveFn(ctx, job)
}

// UpdateStatus implements Store.
func (s *MockStore) UpdateStatus(ctx context.Context, id uuid.UUID, status Status, attempts int, errMsg string) error {
	return s.UpdateStatusFn(ctx, id, status, attempts, errMsg)
}

// ListByStatus implements Store.
func (s *MockStore) ListByStatus(ctx context.Context, status Status, olderThan time.Duration) ([]Record, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	now := time.Now()
	var out []Record
	for _, rec := range s.records {
		if rec.Status != status {
			continue
		}
		if olderThan > 0 && now.Sub(rec.UpdatedAt) <= olderThan {
			continue
		}
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Put stores rec directly, bypassing Save.
func (s *MockStore) Put(rec Record) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	r := rec
	s.records[rec.ID] = &r
}

// Get returns a copy of the stored record.
func (s *MockStore) Get(id uuid.UUID) (Record, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// MockJob is a Job whose behaviour is set by ExecuteFn.
type MockJob struct {
	JobID      uuid.UUID
	JobType    string
	JobPayload []byte
	ExecuteFn  func(ctx context.Context) error
}

// NewMockJob creates a MockJob that succeeds.
func NewMockJob(jobType string) *MockJob {
	return &MockJob{
		JobID:      uuid.New(),
		JobType:    jobType,
		JobPayload: []byte(`{}`),
		ExecuteFn:  func(ctx context.Context) error { return nil },
	}
}

// ID implements Job.
func (j *MockJob) ID() uuid.UUID { return j.JobID }

// Type implements Job.
func (j *MockJob) Type() string { return j.JobType }

// Payload implements Job.
func (j *MockJob) Payload() []byte { return j.JobPayload }

// Execute implements Job.
func (j *MockJob) Execute(ctx context.Context) error { return j.ExecuteFn(ctx) }

// FakeClock is a Clock whose Sleep returns immediately and advances Now.
type FakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

// NewFakeClock returns a FakeClock starting at now.
func NewFakeClock(now time.Time) *FakeClock {
	return &FakeClock{now: now}
}

// Now implements Clock.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Sleep records d and advances the clock without blocking.
func (c *FakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return nil
}

// Sleeps returns every duration passed to Sleep.
func (c *FakeClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}
