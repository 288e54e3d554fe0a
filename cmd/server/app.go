package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/tasktrail-api/internal/api/middleware"
	"github.com/phrazzld/tasktrail-api/internal/config"
	"github.com/phrazzld/tasktrail-api/internal/events"
	"github.com/phrazzld/tasktrail-api/internal/job"
	"github.com/phrazzld/tasktrail-api/internal/platform/postgres"
	"github.com/phrazzld/tasktrail-api/internal/platform/redis"
	"github.com/phrazzld/tasktrail-api/internal/service"
	"github.com/phrazzld/tasktrail-api/internal/service/auth"
	"github.com/phrazzld/tasktrail-api/internal/store"
	"github.com/phrazzld/tasktrail-api/internal/token"
	"github.com/redis/rueidis"
)

// application holds all the shared application dependencies to simplify management
// and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	// Stores
	taskStore    store.TaskStore
	historyStore store.TaskHistoryStore
	userStore    store.UserStore
	teamStore    store.TeamStore

	// Auth
	jwtService   auth.JWTService
	passwords    *auth.BcryptVerifier
	denylist     auth.TokenDenylist
	redisClient  rueidis.Client
	loginLimiter *middleware.RateLimiter

	// Background work and events
	runner       *job.Runner
	eventEmitter *events.InMemoryEventEmitter

	// Services
	taskService service.TaskService
	userService service.UserService
	teamService service.TeamService
}

// newApplication creates a new application instance with all dependencies initialized.
// The database connection must already be established. Nothing is started;
// Run starts the job runner and the HTTP server.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *sql.DB) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	var err error
	app.jwtService, err = auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
	}
	app.passwords = auth.NewBcryptVerifier(cfg.Auth.BcryptCost)
	logger.Info("JWT authentication service initialized",
		"token_lifetime_minutes", cfg.Auth.TokenLifetimeMinutes)

	if err := app.setupDenylist(ctx); err != nil {
		return nil, err
	}
	app.loginLimiter = middleware.NewRateLimiter(cfg.Auth.LoginRatePerMinute, cfg.Auth.LoginBurst)

	app.taskStore = postgres.NewPostgresTaskStore(db, logger)
	app.historyStore = postgres.NewPostgresTaskHistoryStore(db, logger)
	app.userStore = postgres.NewPostgresUserStore(db, logger)
	app.teamStore = postgres.NewPostgresTeamStore(db, logger)

	app.runner = job.NewRunner(postgres.NewPostgresJobStore(db, logger), runnerConfig(cfg.Jobs), logger)
	recorder := job.NewHistoryRecorder(app.runner, app.historyStore, nil, logger)
	app.runner.Register(job.TypeRecordHistory, recorder.Factory())
	app.runner.SetErrorHandler(func(j job.Job, err error) {
		logger.Error("task history was not recorded",
			"job_id", j.ID(),
			"job_type", j.Type(),
			"error", err)
	})

	app.eventEmitter = events.NewInMemoryEventEmitter(logger)
	app.eventEmitter.RegisterHandler(events.TypeTaskAssigneeChanged, assigneeChangeLogger(logger))

	app.taskService, err = service.NewTaskService(service.TaskServiceDeps{
		Tasks:     app.taskStore,
		Histories: app.historyStore,
		Users:     app.userStore,
		Teams:     app.teamStore,
		Tokens:    token.NewGenerator(app.taskStore),
		Recorder:  recorder,
		Events:    app.eventEmitter,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create task service: %w", err)
	}
	app.userService = service.NewUserService(app.userStore, app.passwords, db, logger)
	app.teamService = service.NewTeamService(app.teamStore, logger)

	logger.Info("application initialized successfully")
	return app, nil
}

// setupDenylist picks Redis when it is configured so logouts survive
// restarts and hold across replicas; otherwise revocations live in memory.
func (app *application) setupDenylist(ctx context.Context) error {
	if app.config.Redis.URL == "" {
		app.denylist = auth.NewMemoryDenylist()
		app.logger.Warn("redis not configured, revoked tokens are kept in memory")
		return nil
	}

	client, err := redis.NewClient(app.config.Redis.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	denylist := redis.NewDenylist(client)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := denylist.Ping(pingCtx); err != nil {
		client.Close()
		return fmt.Errorf("failed to ping redis: %w", err)
	}

	app.redisClient = client
	app.denylist = denylist
	app.logger.Info("token denylist backed by redis")
	return nil
}

func runnerConfig(cfg config.JobsConfig) job.RunnerConfig {
	return job.RunnerConfig{
		WorkerCount:        cfg.WorkerCount,
		QueueSize:          cfg.QueueSize,
		StuckJobAge:        time.Duration(cfg.StuckJobAgeMinutes) * time.Minute,
		StuckCheckInterval: time.Duration(cfg.StuckCheckIntervalMinutes) * time.Minute,
		Policy: job.RetryPolicy{
			MaxAttempts:    cfg.MaxAttempts,
			Backoff:        cfg.Backoff(),
			AttemptTimeout: time.Duration(cfg.AttemptTimeoutSeconds) * time.Second,
		},
	}
}

// assigneeChangeLogger handles assignee changes. Notifying the new assignee
// is not implemented; the change is only logged.
func assigneeChangeLogger(logger *slog.Logger) events.EventHandler {
	log := logger.With("component", "assignee_notifier")
	return events.HandlerFunc(func(ctx context.Context, event *events.TaskEvent) error {
		var change events.AssigneeChange
		if err := event.UnmarshalPayload(&change); err != nil {
			return fmt.Errorf("failed to decode assignee change: %w", err)
		}
		log.Info("task assignee changed",
			"task_token", event.TaskToken,
			"actor_id", event.ActorID,
			"from", change.From,
			"to", change.To)
		return nil
	})
}

// cleanup releases resources after the runner and server have stopped.
func (app *application) cleanup() {
	if app.redisClient != nil {
		app.redisClient.Close()
	}

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("error closing database connection", "error", err)
		}
	}

	app.logger.Info("application shutdown completed")
}
