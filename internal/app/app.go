package app

import (
	"context"
	"fmt"
	"net"
	stdhttp "net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/chatterbox/internal/bus"
	"github.com/vovakirdan/chatterbox/internal/config"
	"github.com/vovakirdan/chatterbox/internal/core"
	"github.com/vovakirdan/chatterbox/internal/nick"
	"github.com/vovakirdan/chatterbox/internal/ratelimit"
	"github.com/vovakirdan/chatterbox/internal/session"
	"github.com/vovakirdan/chatterbox/internal/store/redisstore"
	transporthttp "github.com/vovakirdan/chatterbox/internal/transport/http"
)

// App wires together core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	redis           redis.UniversalClient
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(ctx context.Context, cfg config.Config, logger *zerolog.Logger) (*App, error) {
	client, err := redisstore.New(ctx, cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	logger.Info().Str("redis_addr", cfg.Redis.Addr).Int("redis_db", cfg.Redis.DB).Msg("store connected")

	a, err := NewWithClient(client, cfg, logger)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	return a, nil
}

// NewWithClient builds the application over an already connected store.
// The App takes ownership of client.
func NewWithClient(client redis.UniversalClient, cfg config.Config, logger *zerolog.Logger) (*App, error) {
	identity, err := session.New()
	if err != nil {
		return nil, err
	}

	nicks := nick.NewRegistry(client, cfg.NickTTL)
	dispatcher := core.NewDispatcher(nicks, bus.New(client, logger), logger)
	limiter := ratelimit.NewLimiter(client)
	server := transporthttp.NewServer(dispatcher, limiter, identity, cfg, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		redis:           client,
		log:             logger,
	}, nil
}

// Handler exposes the HTTP handler, mostly for tests.
func (a *App) Handler() stdhttp.Handler {
	return a.server.Handler
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	// Open streams end with their request contexts once shutdown cancels them.
	a.server.BaseContext = func(_ net.Listener) context.Context { return ctx }

	go func() {
		a.log.Info().Str("addr", a.server.Addr).Msg("http server listening")
		if err := a.server.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.cleanup()
			return err
		}

		a.cleanup()
		return <-serverErr
	}
}

// cleanup closes the store connection pool.
func (a *App) cleanup() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
