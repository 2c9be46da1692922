package http

import (
	"context"
	stdhttp "net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/chatterbox/internal/bus"
	"github.com/vovakirdan/chatterbox/internal/config"
	"github.com/vovakirdan/chatterbox/internal/core"
	"github.com/vovakirdan/chatterbox/internal/session"
)

// Chat is the dispatcher as the HTTP layer uses it.
type Chat interface {
	Post(ctx context.Context, cmd core.Command) error
	Open(ctx context.Context, room, tag string) (*bus.Subscription, error)
}

// Admitter decides whether a session may make another request.
type Admitter interface {
	Admit(ctx context.Context, tag string, window time.Duration, limit int) (bool, error)
}

// NewServer builds the HTTP server: pages, static assets, the push stream
// and the post endpoint for every room.
func NewServer(chat Chat, limiter Admitter, identity *session.Identity, cfg config.Config, logger *zerolog.Logger) *stdhttp.Server {
	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           NewRouter(chat, limiter, identity, cfg, logger),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

// NewRouter wires routes and middleware onto a gin engine.
func NewRouter(chat Chat, limiter Admitter, identity *session.Identity, cfg config.Config, logger *zerolog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(gin.Recovery())
	router.Use(RequestIDMiddleware())
	router.Use(LoggerMiddleware(logger))

	router.NoMethod(func(c *gin.Context) {
		c.JSON(stdhttp.StatusMethodNotAllowed, ErrorResponse{Error: "method not allowed"})
	})

	router.GET("/health", healthHandler)
	router.GET("/", indexHandler)
	router.StaticFS("/static", staticFS())

	cookieName := cfg.CookieName
	if cookieName == "" {
		cookieName = session.DefaultCookieName
	}

	chatHandlers := NewChatHandlers(chat, cfg.StreamKeepalive, logger)
	rooms := router.Group("/:room")
	rooms.Use(SessionMiddleware(identity, cookieName))
	rooms.Use(RateLimitMiddleware(limiter, cfg.RateLimit.Limit, cfg.RateLimit.Window, logger))
	{
		rooms.GET("/", chatHandlers.Get)
		rooms.POST("/", chatHandlers.Post)
	}

	return router
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
