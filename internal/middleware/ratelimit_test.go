package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLimitedRouter(rl *RateLimiter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/bookings", rl.Middleware(), func(c *gin.Context) { c.Status(http.StatusCreated) })
	return r
}

func postFrom(r *gin.Engine, ip string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/bookings", nil)
	req.RemoteAddr = ip + ":5000"
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimiterRejectsAfterBurst(t *testing.T) {
	r := newLimitedRouter(NewRateLimiter(6, 2, time.Minute, nil))

	assert.Equal(t, http.StatusCreated, postFrom(r, "10.0.0.1").Code)
	assert.Equal(t, http.StatusCreated, postFrom(r, "10.0.0.1").Code)

	w := postFrom(r, "10.0.0.1")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "10", w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "TOO_MANY_REQUESTS")

	assert.Equal(t, http.StatusCreated, postFrom(r, "10.0.0.2").Code)
}

func TestRateLimiterEvictsIdleClients(t *testing.T) {
	rl := NewRateLimiter(60, 1, time.Minute, nil)
	current := time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return current }

	rl.limiterFor("a")
	rl.limiterFor("b")
	assert.Equal(t, 2, rl.Clients())

	current = current.Add(2 * time.Minute)
	rl.limiterFor("c")
	assert.Equal(t, 1, rl.Clients())
}
