package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardio-insights-server/internal/domain"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(mw...)
	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, RequestID(c))
	})
	return r
}

func TestCorrelationID(t *testing.T) {
	r := newRouter(CorrelationID())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	generated := w.Header().Get(RequestIDHeader)
	assert.Len(t, generated, 36)
	assert.Equal(t, generated, w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
	assert.Equal(t, "abc-123", w.Body.String())
}

func TestSecurityHeaders(t *testing.T) {
	r := newRouter(SecurityHeaders())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	assert.Contains(t, w.Header().Get("Content-Security-Policy"), "connect-src 'self' ws: wss:")
}

func TestCORS(t *testing.T) {
	r := newRouter(CORS([]string{"https://dash.example.org"}))

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "https://dash.example.org")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "https://dash.example.org", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/ping", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestOriginAllowed(t *testing.T) {
	check := OriginAllowed([]string{"https://dash.example.org"})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.True(t, check(req), "same-origin requests carry no Origin")

	req.Header.Set("Origin", "https://dash.example.org")
	assert.True(t, check(req))

	req.Header.Set("Origin", "https://other.example.org")
	assert.False(t, check(req))

	assert.True(t, OriginAllowed([]string{"*"})(req))
}

func TestRequestTimeout(t *testing.T) {
	r := gin.New()
	r.Use(RequestTimeout(50 * time.Millisecond))
	r.GET("/slow", func(c *gin.Context) {
		select {
		case <-c.Request.Context().Done():
			c.String(http.StatusGatewayTimeout, c.Request.Context().Err().Error())
		case <-time.After(time.Second):
			c.String(http.StatusOK, "done")
		}
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/slow", nil))
	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
	assert.Equal(t, context.DeadlineExceeded.Error(), w.Body.String())
}

func TestRateLimiter(t *testing.T) {
	limiter := NewRateLimiter(1, 2)
	r := newRouter(CorrelationID(), limiter.Middleware())

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
		codes = append(codes, w.Code)

		if w.Code == http.StatusTooManyRequests {
			var body domain.APIError
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, domain.CodeRateLimit, body.Code)
			assert.NotEmpty(t, body.RequestID)
		}
	}
	assert.Equal(t, []int{200, 200, 429}, codes)
	assert.Equal(t, 1, limiter.Clients())
}

func TestRateLimiter_SweepsIdleClients(t *testing.T) {
	limiter := NewRateLimiter(10, 10)
	now := time.Now()
	limiter.now = func() time.Time { return now }

	assert.True(t, limiter.Allow("10.0.0.1"))
	assert.True(t, limiter.Allow("10.0.0.2"))
	assert.Equal(t, 2, limiter.Clients())

	now = now.Add(limiterIdleTTL + limiterSweepEvery + time.Second)
	assert.True(t, limiter.Allow("10.0.0.3"))
	assert.Equal(t, 1, limiter.Clients())
}

func TestAuditLogger(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)

	r := newRouter(CorrelationID(), AuditLogger(logger))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
