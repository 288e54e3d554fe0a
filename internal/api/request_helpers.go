package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/phrazzld/tasktrail-api/internal/api/shared"
	"github.com/phrazzld/tasktrail-api/internal/domain"
	"github.com/phrazzld/tasktrail-api/internal/platform/logger"
	"github.com/phrazzld/tasktrail-api/internal/store"
)

// TaskTokenParam is the chi path parameter holding a task token.
const TaskTokenParam = "token"

// getUserIDFromContext extracts the authenticated user's ID from the request context.
// The user ID is expected to be placed in the context by the authentication middleware.
func getUserIDFromContext(r *http.Request) (int64, bool) {
	return shared.UserIDFromContext(r.Context())
}

// requireUserID returns the authenticated user's ID, or writes a 401 and
// returns false.
func requireUserID(w http.ResponseWriter, r *http.Request, log *slog.Logger) (int64, bool) {
	if log == nil {
		log = logger.FromContext(r.Context())
	}
	userID, ok := getUserIDFromContext(r)
	if !ok {
		log.Warn("user ID not found or invalid in request context")
		HandleAPIError(w, r, domain.ErrUnauthorized)
		return 0, false
	}
	return userID, true
}

// taskToken returns the task token path parameter, upper-cased.
func taskToken(r *http.Request) string {
	return strings.ToUpper(strings.TrimSpace(chi.URLParam(r, TaskTokenParam)))
}

// decodeAndValidate reads the JSON body into req and runs its validation
// tags. It writes the error response itself and reports whether the
// handler may continue.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, req any) bool {
	if err := shared.DecodeJSON(r, req); err != nil {
		if errors.Is(err, shared.ErrEmptyBody) {
			HandleAPIError(w, r, err)
			return false
		}
		// Type mismatches and malformed timestamps are reported per field.
		shared.RespondWithValidationErrors(w, r, decodeErrorFields(err))
		return false
	}
	if err := shared.ValidateRequest(req); err != nil {
		HandleAPIError(w, r, err)
		return false
	}
	return true
}

func decodeErrorFields(err error) map[string][]string {
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &typeErr) && typeErr.Field != "":
		return map[string][]string{typeErr.Field: {"has an invalid type"}}
	case errors.Is(err, shared.ErrInvalidTimestamp):
		return map[string][]string{"request": {"times must be RFC 3339, YYYY-MM-DD HH:MM:SS or YYYY-MM-DD"}}
	default:
		return map[string][]string{"request": {"body must be valid JSON"}}
	}
}

// parseTaskFilter reads the list query string. Unknown values are reported
// as validation errors rather than silently ignored.
func parseTaskFilter(q url.Values) (store.TaskFilter, error) {
	var (
		f    store.TaskFilter
		errs domain.ValidationErrors
	)

	if v := q.Get("status"); v != "" {
		s := domain.TaskStatus(v)
		if !s.Valid() {
			errs.Add("status", domain.TaskStatusMessage)
		} else {
			f.Status = &s
		}
	}
	if v := q.Get("priority"); v != "" {
		p := domain.TaskPriority(v)
		if !p.Valid() {
			errs.Add("priority", "must be one of low, medium, high")
		} else {
			f.Priority = &p
		}
	}

	f.TeamID = parseIDParam(q, "team_id", &errs)
	f.AssignedTo = parseIDParam(q, "assigned_to", &errs)
	f.CreatedBy = parseIDParam(q, "created_by", &errs)
	f.StartFrom = parseTimeParam(q, "start_time", &errs)
	f.EndBefore = parseTimeParam(q, "end_time", &errs)

	if v := q.Get("sort_by"); v != "" {
		if !store.TaskSortColumns[v] {
			errs.Add("sort_by", "is not a sortable column")
		} else {
			f.SortBy = v
		}
	}
	dirKey, dir := sortDirection(q)
	switch strings.ToLower(dir) {
	case "", "desc":
		f.SortDesc = true
	case "asc":
		f.SortDesc = false
	default:
		errs.Add(dirKey, "must be one of asc, desc")
	}

	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			errs.Add("page", "must be a positive integer")
		} else {
			f.Page = n
		}
	}
	if v := q.Get("per_page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > store.MaxPerPage {
			errs.Add("per_page", "must be between 1 and 100")
		} else {
			f.PerPage = n
		}
	}

	if err := errs.Err(); err != nil {
		return store.TaskFilter{}, err
	}
	return f, nil
}

func parseIDParam(q url.Values, name string, errs *domain.ValidationErrors) *int64 {
	v := q.Get(name)
	if v == "" {
		return nil
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		errs.Add(name, "must be a positive integer")
		return nil
	}
	return &id
}

func parseTimeParam(q url.Values, name string, errs *domain.ValidationErrors) *time.Time {
	v := q.Get(name)
	if v == "" {
		return nil
	}
	t, err := shared.ParseTimestamp(v)
	if err != nil {
		errs.Add(name, "must be a valid date")
		return nil
	}
	return &t
}

// parseDateRange reads the required from and to dates of the status summary.
func parseDateRange(q url.Values) (time.Time, time.Time, error) {
	var errs domain.ValidationErrors
	parse := func(name string) time.Time {
		v := q.Get(name)
		if v == "" {
			errs.Add(name, "is required")
			return time.Time{}
		}
		t, err := time.ParseInLocation(time.DateOnly, v, time.UTC)
		if err != nil {
			errs.Add(name, "must be a date in YYYY-MM-DD format")
		}
		return t
	}
	from, to := parse("from"), parse("to")
	if err := errs.Err(); err != nil {
		return time.Time{}, time.Time{}, err
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, domain.NewValidationError("to", "must be a date after or equal to from", nil)
	}
	return from, to, nil
}

// sortDirectionKeys are the accepted names of the sort direction parameter,
// in order of precedence.
var sortDirectionKeys = []string{"sort_dir", "sort_direction", "sort_order"}

// sortDirection returns the first sort direction parameter present and the
// key it was given under.
func sortDirection(q url.Values) (string, string) {
	for _, key := range sortDirectionKeys {
		if v := q.Get(key); v != "" {
			return key, v
		}
	}
	return sortDirectionKeys[0], ""
}
