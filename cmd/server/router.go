package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/tasktrail-api/internal/api"
	apiMiddleware "github.com/phrazzld/tasktrail-api/internal/api/middleware"
	"github.com/phrazzld/tasktrail-api/internal/api/shared"
)

// setupRouter creates and configures the application router with all routes and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware(app.logger))

	authHandler := api.NewAuthHandler(app.userService, app.jwtService, app.denylist, app.logger)
	taskHandler := api.NewTaskHandler(app.taskService, app.logger)
	userHandler := api.NewUserHandler(app.userService, app.teamService, app.logger)
	authMiddleware := apiMiddleware.NewAuthMiddleware(app.jwtService, app.denylist)

	r.Route("/api/v1", func(r chi.Router) {
		// Public
		r.With(app.loginLimiter.Limit).Post("/login", authHandler.Login)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)

			r.Post("/logout", authHandler.Logout)
			r.Get("/user", userHandler.CurrentUser)

			r.Route("/tasks", func(r chi.Router) {
				r.Get("/", taskHandler.ListTasks)
				r.Post("/", taskHandler.CreateTask)
				r.Post("/bulk", taskHandler.BulkCreateTasks)
				r.Post("/bulk-create", taskHandler.BulkCreateTasks)
				r.Get("/status-summary", taskHandler.StatusSummary)

				r.Route("/{"+api.TaskTokenParam+"}", func(r chi.Router) {
					r.Get("/", taskHandler.GetTask)
					r.Put("/", taskHandler.UpdateTask)
					r.Delete("/", taskHandler.DeleteTask)
					r.Post("/restore", taskHandler.RestoreTask)
					r.Get("/histories", taskHandler.ListTaskHistory)
				})
			})

			r.Post("/users", userHandler.CreateUser)
			r.Post("/users/bulk", userHandler.BulkCreateUsers)

			r.Get("/teams", userHandler.ListTeams)
			r.Post("/teams", userHandler.CreateTeam)
		})
	})

	r.Get("/health", app.health)

	return r
}

// health reports whether the process is up and the database answers.
func (app *application) health(w http.ResponseWriter, r *http.Request) {
	if err := app.db.PingContext(r.Context()); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusServiceUnavailable, "Database unavailable", err)
		return
	}
	shared.RespondSuccess(w, r, http.StatusOK, "OK", nil)
}
