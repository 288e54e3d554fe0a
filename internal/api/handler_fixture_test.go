package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/phrazzld/tasktrail-api/internal/api/shared"
	"github.com/phrazzld/tasktrail-api/internal/domain"
	"github.com/phrazzld/tasktrail-api/internal/job"
	"github.com/phrazzld/tasktrail-api/internal/mocks"
	"github.com/phrazzld/tasktrail-api/internal/platform/logger"
	"github.com/phrazzld/tasktrail-api/internal/service"
	"github.com/phrazzld/tasktrail-api/internal/service/auth"
	"github.com/phrazzld/tasktrail-api/internal/token"
	"github.com/stretchr/testify/require"
)

// apiFixture wires the handlers to real services over in-memory stores.
type apiFixture struct {
	router    http.Handler
	tasks     *mocks.MockTaskStore
	histories *mocks.MockTaskHistoryStore
	users     *mocks.MockUserStore
	teams     *mocks.MockTeamStore
	jwt       *auth.MockJWTService
	denylist  *auth.MemoryDenylist
	sql       sqlmock.Sqlmock
	capture   *logger.Capture
	creator   *domain.User
	other     *domain.User
	team      *domain.Team
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	log, capture := logger.NewCapture()
	db, sqlMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	f := &apiFixture{
		tasks:     mocks.NewMockTaskStore(),
		histories: mocks.NewMockTaskHistoryStore(),
		users:     mocks.NewMockUserStore(),
		teams:     mocks.NewMockTeamStore(),
		jwt:       auth.NewMockJWTService(),
		denylist:  auth.NewMemoryDenylist(),
		sql:       sqlMock,
		capture:   capture,
	}
	f.creator = f.users.Seed("Ada", "Lovelace", "ada@example.com")
	f.other = f.users.Seed("Alan", "Turing", "alan@example.com")
	f.team = f.teams.Seed("Platform")

	taskSvc, err := service.NewTaskService(service.TaskServiceDeps{
		Tasks:     f.tasks,
		Histories: f.histories,
		Users:     f.users,
		Teams:     f.teams,
		Tokens:    token.NewGenerator(f.tasks),
		Recorder:  job.NewHistoryRecorder(mocks.InlineSubmitter{}, f.histories, nil, log),
		Logger:    log,
	})
	require.NoError(t, err)
	userSvc := service.NewUserService(f.users, &mocks.MockPasswordVerifier{}, db, log)
	teamSvc := service.NewTeamService(f.teams, log)

	authHandler := NewAuthHandler(userSvc, f.jwt, f.denylist, log)
	taskHandler := NewTaskHandler(taskSvc, log)
	userHandler := NewUserHandler(userSvc, teamSvc, log)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(logger.WithContext(req.Context(), log)))
		})
	})
	r.Post("/login", authHandler.Login)
	r.Group(func(r chi.Router) {
		r.Use(asHeaderUser)
		r.Post("/logout", authHandler.Logout)
		r.Get("/user", userHandler.CurrentUser)
		r.Route("/tasks", func(r chi.Router) {
			r.Get("/", taskHandler.ListTasks)
			r.Post("/", taskHandler.CreateTask)
			r.Post("/bulk", taskHandler.BulkCreateTasks)
			r.Get("/status-summary", taskHandler.StatusSummary)
			r.Get("/{token}", taskHandler.GetTask)
			r.Put("/{token}", taskHandler.UpdateTask)
			r.Delete("/{token}", taskHandler.DeleteTask)
			r.Post("/{token}/restore", taskHandler.RestoreTask)
			r.Get("/{token}/histories", taskHandler.ListTaskHistory)
		})
		r.Post("/users", userHandler.CreateUser)
		r.Post("/users/bulk", userHandler.BulkCreateUsers)
		r.Get("/teams", userHandler.ListTeams)
		r.Post("/teams", userHandler.CreateTeam)
	})
	f.router = r
	return f
}

// asHeaderUser stands in for the auth middleware: X-Test-User carries the
// acting user's id.
func asHeaderUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, err := strconv.ParseInt(r.Header.Get("X-Test-User"), 10, 64); err == nil && id > 0 {
			r = r.WithContext(shared.WithAuth(r.Context(), id, "jti-test", time.Now().Add(time.Hour)))
		}
		next.ServeHTTP(w, r)
	})
}

type envelope struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Data    json.RawMessage     `json:"data"`
	Errors  map[string][]string `json:"errors"`
	Error   string              `json:"error"`
	TraceID string              `json:"trace_id"`
}

// do sends a request as userID (0 for anonymous). body may be nil, a string
// of raw JSON, or any value to encode.
func (f *apiFixture) do(t *testing.T, method, path string, userID int64, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID > 0 {
		req.Header.Set("X-Test-User", strconv.FormatInt(userID, 10))
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

func decodeData[T any](t *testing.T, env envelope) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out), string(env.Data))
	return out
}

func (f *apiFixture) taskBody(title string) map[string]any {
	return map[string]any{
		"title":       title,
		"description": "Something to do",
		"priority":    "low",
		"team_id":     f.team.ID,
		"start_time":  "2025-08-01 10:00:00",
		"end_time":    "2025-08-01 18:00:00",
	}
}

func (f *apiFixture) createTask(t *testing.T, title string) TaskResponse {
	t.Helper()
	rec, env := f.do(t, http.MethodPost, "/tasks", f.creator.ID, f.taskBody(title))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decodeData[TaskResponse](t, env)
}
