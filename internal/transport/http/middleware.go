package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/chatterbox/internal/session"
)

const (
	// ContextKeySessionTag is the context key for storing the session tag.
	ContextKeySessionTag = "session_tag"
	// ContextKeyRequestID is the context key for storing the request id.
	ContextKeyRequestID = "request_id"

	headerRequestID = "X-Request-ID"
)

// RequestIDMiddleware tags every request with an id, reusing one supplied
// by a proxy in front of us.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(headerRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(ContextKeyRequestID, id)
		c.Header(headerRequestID, id)
		c.Next()
	}
}

// SessionMiddleware resolves the session tag from the cookie, issuing a new
// tag and cookie on first contact.
func SessionMiddleware(identity *session.Identity, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		existing, _ := c.Cookie(cookieName)
		tag := identity.EnsureTag(existing)
		if existing == "" {
			// No max age: the cookie lives as long as the browser session.
			c.SetCookie(cookieName, tag, 0, "/", "", false, true)
		}
		c.Set(ContextKeySessionTag, tag)
		c.Next()
	}
}

// LoggerMiddleware creates a middleware that logs HTTP requests.
func LoggerMiddleware(logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		// Process request
		c.Next()

		// Log after request
		logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Str("request_id", c.GetString(ContextKeyRequestID)).
			Msg("http request")
	}
}

func sessionTag(c *gin.Context) string {
	return c.GetString(ContextKeySessionTag)
}
