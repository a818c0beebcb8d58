// Package middleware holds the gin middleware shared by the HTTP API.
package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Context keys set by the middleware.
const (
	RequestIDKey    = "request_id"
	RequestIDHeader = "X-Request-ID"
)

// SecurityHeaders adds security headers to all responses
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Prevent MIME type sniffing
		c.Header("X-Content-Type-Options", "nosniff")

		// Prevent clickjacking
		c.Header("X-Frame-Options", "DENY")

		// Enforce HTTPS (only in production)
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		// dashboard connects back for the live feed
		c.Header("Content-Security-Policy", "default-src 'self'; img-src 'self' data:; connect-src 'self' ws: wss:")

		// Patient identifiers appear in paths
		c.Header("Referrer-Policy", "no-referrer")
		c.Header("Cache-Control", "no-store")

		c.Next()
	}
}

// CorrelationID tags each request with an ID, reusing the caller's X-Request-ID or
// X-Correlation-ID when present.
func CorrelationID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = c.GetHeader("X-Correlation-ID")
		}
		if id == "" {
			id = uuid.New().String()
		}

		c.Set(RequestIDKey, id)
		c.Header(RequestIDHeader, id)

		c.Next()
	}
}

// RequestID returns the ID assigned by CorrelationID.
func RequestID(c *gin.Context) string {
	return c.GetString(RequestIDKey)
}

// RequestTimeout bounds the request context. Handlers observe the deadline through the
// stores and sources they call.
func RequestTimeout(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if timeout <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// AuditLogger logs one structured line per request.
func AuditLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := logger.WithFields(logrus.Fields{
			"request_id":    RequestID(c),
			"method":        c.Request.Method,
			"path":          c.FullPath(),
			"status":        c.Writer.Status(),
			"latency":       time.Since(start).String(),
			"client_ip":     c.ClientIP(),
			"user_agent":    c.Request.UserAgent(),
			"response_size": c.Writer.Size(),
		})

		switch {
		case len(c.Errors) > 0:
			entry.WithField("errors", c.Errors.String()).Error("Request failed")
		case c.Writer.Status() >= http.StatusInternalServerError:
			entry.Error("Request completed")
		case c.Writer.Status() >= http.StatusBadRequest:
			entry.Warn("Request completed")
		default:
			entry.Info("Request completed")
		}
	}
}

// CORS allows the configured origins. A single "*" allows any origin without credentials.
func CORS(allowed []string) gin.HandlerFunc {
	allowAny := false
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			allowAny = true
		}
		set[o] = struct{}{}
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		switch {
		case allowAny:
			c.Header("Access-Control-Allow-Origin", "*")
		case origin != "":
			if _, ok := set[origin]; ok {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Access-Control-Allow-Credentials", "true")
				c.Header("Vary", "Origin")
			}
		}
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Request-ID")
		c.Header("Access-Control-Expose-Headers", "Content-Length, Content-Disposition, X-Request-ID")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// OriginAllowed reports whether origin passes the CORS allow list. It backs the WebSocket
// upgrade check.
func OriginAllowed(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
}
