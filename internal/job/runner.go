package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/tasktrail-api/internal/platform/logger"
	"github.com/phrazzld/tasktrail-api/internal/redact"
)

// RunnerConfig holds configuration for the job runner.
type RunnerConfig struct {
	// WorkerCount determines how many jobs run concurrently.
	WorkerCount int

	// QueueSize is the buffer size of the in-memory queue.
	QueueSize int

	// StuckJobAge is how long a job may sit in running (or, after a full
	// queue, in enqueued) before the monitor re-queues it.
	StuckJobAge time.Duration

	// StuckCheckInterval is how often the monitor runs.
	StuckCheckInterval time.Duration

	// Policy governs attempts, backoff and per-attempt timeouts.
	Policy RetryPolicy
}

// DefaultRunnerConfig returns a RunnerConfig with reasonable defaults.
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		WorkerCount:        2,
		QueueSize:          100,
		StuckJobAge:        30 * time.Minute,
		StuckCheckInterval: 5 * time.Minute,
		Policy:             DefaultRetryPolicy(),
	}
}

// Runner manages background job processing.
type Runner struct {
	store      Store
	queue      chan Job
	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	config     RunnerConfig
	logger     *slog.Logger

	mu         sync.RWMutex
	factories  map[string]Factory
	errHandler func(job Job, err error)
	closed     bool

	// active holds the IDs of jobs this process has queued or is executing.
	// Only an ID outside the set may be queued again.
	activeMu sync.Mutex
	active   map[uuid.UUID]struct{}
}

// NewRunner creates a new Runner. Call Start (or Run) before submitting.
func NewRunner(store Store, config RunnerConfig, log *slog.Logger) *Runner {
	if config.WorkerCount < 1 {
		config.WorkerCount = 1
	}
	if config.QueueSize < 1 {
		config.QueueSize = 1
	}
	if config.StuckCheckInterval <= 0 {
		config.StuckCheckInterval = 5 * time.Minute
	}
	if config.Policy.MaxAttempts < 1 {
		config.Policy = DefaultRetryPolicy()
	}
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "job_runner")

	ctx, cancel := context.WithCancel(context.Background())

	return &Runner{
		store:      store,
		queue:      make(chan Job, config.QueueSize),
		ctx:        ctx,
		cancelFunc: cancel,
		config:     config,
		logger:     log,
		factories:  make(map[string]Factory),
		errHandler: func(job Job, err error) {},
		active:     make(map[uuid.UUID]struct{}),
	}
}

// Register makes jobs of jobType recoverable after a restart.
func (r *Runner) Register(jobType string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[jobType] = factory
}

// SetErrorHandler sets a callback for jobs that fail permanently. It runs
// after the failure has been logged and persisted.
func (r *Runner) SetErrorHandler(handler func(job Job, err error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errHandler = handler
}

// Submit persists the job and queues it. If the queue is full the job stays
// persisted as enqueued and ErrQueueFull is returned; the stuck job monitor
// picks it up later.
func (r *Runner) Submit(ctx context.Context, job Job) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return ErrQueueClosed
	}

	if err := r.store.Save(ctx, job); err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}

	if !r.claim(job.ID()) {
		// The monitor saw the new row first and has already queued it.
		return nil
	}

	select {
	case r.queue <- job:
		return nil
	default:
		r.release(job.ID())
		return ErrQueueFull
	}
}

// Start launches the workers and the monitor, then recovers unfinished jobs.
// It returns once every recovered job is on the queue.
func (r *Runner) Start() error {
	for i := 0; i < r.config.WorkerCount; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}

	r.wg.Add(1)
	go r.stuckJobMonitor()

	if err := r.Recover(); err != nil {
		r.Stop()
		return fmt.Errorf("failed to recover jobs: %w", err)
	}

	r.logger.Info("job runner started",
		"workers", r.config.WorkerCount,
		"queue_size", r.config.QueueSize,
		"max_attempts", r.config.Policy.MaxAttempts)
	return nil
}

// Run starts the runner, blocks until ctx is done and then stops it.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	r.Stop()
	return nil
}

// Stop cancels in-flight waits, waits for the workers to exit and rejects
// further submissions. Jobs interrupted by Stop stay enqueued for the next
// start.
func (r *Runner) Stop() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.mu.Unlock()

	r.cancelFunc()
	r.wg.Wait()
	r.logger.Info("job runner stopped")
}

// Recover loads unfinished jobs from the store and queues them. Jobs found
// running were interrupted and are reset to enqueued first. Queueing waits
// for room, so the workers must already be running.
func (r *Runner) Recover() error {
	ctx := context.Background()

	enqueued, err := r.store.ListByStatus(ctx, StatusEnqueued, 0)
	if err != nil {
		return fmt.Errorf("failed to list enqueued jobs: %w", err)
	}

	running, err := r.store.ListByStatus(ctx, StatusRunning, 0)
	if err != nil {
		return fmt.Errorf("failed to list running jobs: %w", err)
	}

	r.logger.Info("recovering unfinished jobs",
		"enqueued_count", len(enqueued),
		"running_count", len(running))

	for _, rec := range enqueued {
		r.requeue(ctx, rec, false, true)
	}
	for _, rec := range running {
		r.requeue(ctx, rec, true, true)
	}

	return nil
}

// requeue rebuilds a stored job and puts it back on the queue. Jobs already
// held by this runner are skipped. With wait set it blocks until the queue
// has room or the runner stops; otherwise a full queue leaves the job for
// the next monitor pass.
func (r *Runner) requeue(ctx context.Context, rec Record, reset, wait bool) {
	log := r.logger.With("job_id", rec.ID, "job_type", rec.Type)

	if !r.claim(rec.ID) {
		log.Debug("job is already queued or running here")
		return
	}

	job, err := r.rehydrate(rec)
	if err != nil {
		r.release(rec.ID)
		log.Error("failed to rebuild job", "error", err)
		if updErr := r.store.UpdateStatus(ctx, rec.ID, StatusFailed, rec.Attempts, err.Error()); updErr != nil {
			log.Error("failed to mark job failed", "error", updErr)
		}
		return
	}

	if reset {
		if err := r.store.UpdateStatus(ctx, rec.ID, StatusEnqueued, rec.Attempts, "reset after interruption"); err != nil {
			r.release(rec.ID)
			log.Error("failed to reset running job", "error", err)
			return
		}
	}

	if wait {
		select {
		case r.queue <- job:
			log.Debug("requeued job")
		case <-r.ctx.Done():
			r.release(rec.ID)
			log.Info("runner stopped before job was requeued")
		}
		return
	}

	select {
	case r.queue <- job:
		log.Debug("requeued job")
	default:
		r.release(rec.ID)
		log.Error("failed to requeue job, queue is full")
	}
}

// claim marks id as held by this runner. It reports false if it already was.
func (r *Runner) claim(id uuid.UUID) bool {
	r.activeMu.Lock()
	defer r.activeMu.Unlock()
	if _, ok := r.active[id]; ok {
		return false
	}
	r.active[id] = struct{}{}
	return true
}

func (r *Runner) release(id uuid.UUID) {
	r.activeMu.Lock()
	defer r.activeMu.Unlock()
	delete(r.active, id)
}

func (r *Runner) rehydrate(rec Record) (Job, error) {
	r.mu.RLock()
	factory, ok := r.factories[rec.Type]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownJobType, rec.Type)
	}
	return factory(rec.ID, rec.Payload)
}

// worker processes jobs from the queue.
func (r *Runner) worker(id int) {
	defer r.wg.Done()

	r.logger.Debug("starting worker", "worker_id", id)

	for {
		select {
		case <-r.ctx.Done():
			r.logger.Debug("stopping worker", "worker_id", id)
			return
		case job := <-r.queue:
			r.processJob(job, id)
		}
	}
}

// processJob drives one job through the retry policy and records each
// transition.
func (r *Runner) processJob(job Job, workerID int) {
	defer r.release(job.ID())

	log := r.logger.With(
		"job_id", job.ID(),
		"job_type", job.Type(),
		"worker_id", workerID,
	)
	ctx := logger.WithContext(r.ctx, log)
	statusCtx := context.WithoutCancel(ctx)

	attempts, err := r.config.Policy.Run(ctx,
		func(ctx context.Context, attempt int) error {
			if err := r.store.UpdateStatus(statusCtx, job.ID(), StatusRunning, attempt, ""); err != nil {
				log.Error("failed to mark job running", "error", err)
			}
			log.Info("processing job", "attempt", attempt)
			return job.Execute(ctx)
		},
		func(attempt int, err error, next time.Duration) {
			log.Warn("job attempt failed, will retry",
				"attempt", attempt,
				"retry_in", next.String(),
				"error", redact.Error(err))
			if updErr := r.store.UpdateStatus(statusCtx, job.ID(), StatusEnqueued, attempt, redact.Error(err)); updErr != nil {
				log.Error("failed to mark job enqueued", "error", updErr)
			}
		},
	)

	switch {
	case err == nil:
		log.Info("job succeeded", "attempts", attempts)
		if updErr := r.store.UpdateStatus(statusCtx, job.ID(), StatusSucceeded, attempts, ""); updErr != nil {
			log.Error("failed to mark job succeeded", "error", updErr)
		}

	case r.ctx.Err() != nil && errors.Is(err, context.Canceled):
		log.Info("runner stopping, job left for recovery", "attempts", attempts)
		if updErr := r.store.UpdateStatus(statusCtx, job.ID(), StatusEnqueued, attempts, "interrupted by shutdown"); updErr != nil {
			log.Error("failed to mark job enqueued", "error", updErr)
		}

	default:
		log.Error("job failed permanently",
			"attempts", attempts,
			"error", redact.Error(err))
		if updErr := r.store.UpdateStatus(statusCtx, job.ID(), StatusFailed, attempts, redact.Error(err)); updErr != nil {
			log.Error("failed to mark job failed", "error", updErr)
		}

		r.mu.RLock()
		handler := r.errHandler
		r.mu.RUnlock()
		handler(job, err)
	}
}

// stuckJobMonitor periodically re-queues jobs that have sat in running or
// enqueued for longer than StuckJobAge and are not held by this runner.
func (r *Runner) stuckJobMonitor() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.StuckCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.requeueStuck(StatusRunning, true)
			r.requeueStuck(StatusEnqueued, false)
		}
	}
}

func (r *Runner) requeueStuck(status Status, reset bool) {
	ctx := context.Background()

	stuck, err := r.store.ListByStatus(ctx, status, r.config.StuckJobAge)
	if err != nil {
		r.logger.Error("failed to check for stuck jobs", "status", status, "error", err)
		return
	}
	if len(stuck) == 0 {
		return
	}

	r.logger.Info("found stuck jobs", "status", status, "count", len(stuck))
	for _, rec := range stuck {
		r.requeue(ctx, rec, reset, false)
	}
}
