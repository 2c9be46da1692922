package http

import (
	stdhttp "net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/chatterbox/internal/ratelimit"
)

// RateLimitMiddleware admits at most limit stream opens and posts per
// session within window. Page loads are not counted.
//
// A rejected request stops here: no dispatch and no nickname refresh.
func RateLimitMiddleware(limiter Admitter, limit int, window time.Duration, logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == stdhttp.MethodGet && !wantsStream(c.Request) {
			c.Next()
			return
		}

		tag := sessionTag(c)
		ok, err := limiter.Admit(c.Request.Context(), tag, window, limit)
		if err != nil {
			logger.Error().Err(err).Str("tag", tag).Msg("rate limit check failed")
			abortWithError(c, err)
			return
		}
		if !ok {
			logger.Debug().Str("tag", tag).Int("limit", limit).Msg("rate limited")
			abortWithError(c, ratelimit.ErrRateLimited)
			return
		}

		c.Next()
	}
}
