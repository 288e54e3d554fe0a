package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func serveFrom(h http.Handler, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/login", nil)
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func newTestLimiter(perMinute float64, burst int) (*RateLimiter, *time.Time) {
	now := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	l := NewRateLimiter(perMinute, burst)
	l.now = func() time.Time { return now }
	return l, &now
}

func TestRateLimiter_Allow(t *testing.T) {
	l, _ := newTestLimiter(1, 2)
	h := l.Limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	assert.Equal(t, http.StatusOK, serveFrom(h, "10.0.0.1:1000").Code)
	assert.Equal(t, http.StatusOK, serveFrom(h, "10.0.0.1:1001").Code)

	rec := serveFrom(h, "10.0.0.1:1002")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), MessageRateLimited)
}

func TestRateLimiter_DifferentIPs(t *testing.T) {
	l, _ := newTestLimiter(1, 1)
	h := l.Limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	assert.Equal(t, http.StatusOK, serveFrom(h, "10.0.0.1:1000").Code)
	assert.Equal(t, http.StatusOK, serveFrom(h, "10.0.0.2:1000").Code)
	assert.Equal(t, http.StatusTooManyRequests, serveFrom(h, "10.0.0.1:1000").Code)
}

func TestRateLimiter_Refills(t *testing.T) {
	l, now := newTestLimiter(60, 1)
	h := l.Limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	assert.Equal(t, http.StatusOK, serveFrom(h, "10.0.0.1:1000").Code)
	assert.Equal(t, http.StatusTooManyRequests, serveFrom(h, "10.0.0.1:1000").Code)

	*now = now.Add(time.Second)
	assert.Equal(t, http.StatusOK, serveFrom(h, "10.0.0.1:1000").Code)
}

func TestRateLimiter_Cleanup(t *testing.T) {
	l, now := newTestLimiter(10, 5)
	h := l.Limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	serveFrom(h, "10.0.0.1:1000")
	*now = now.Add(5 * time.Minute)
	serveFrom(h, "10.0.0.2:1000")
	assert.Equal(t, 2, l.size())

	*now = now.Add(6 * time.Minute)
	l.Cleanup()
	assert.Equal(t, 1, l.size())
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.9:5555"
	assert.Equal(t, "192.168.1.9", clientIP(req))

	req.RemoteAddr = "192.168.1.9"
	assert.Equal(t, "192.168.1.9", clientIP(req))
}
