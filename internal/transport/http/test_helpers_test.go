package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/chatterbox/internal/bus"
	"github.com/vovakirdan/chatterbox/internal/config"
	"github.com/vovakirdan/chatterbox/internal/core"
	"github.com/vovakirdan/chatterbox/internal/nick"
	"github.com/vovakirdan/chatterbox/internal/ratelimit"
	"github.com/vovakirdan/chatterbox/internal/session"
	"github.com/vovakirdan/chatterbox/internal/testutil"
)

type testEnv struct {
	mr     *miniredis.Miniredis
	bus    *bus.Bus
	nicks  *nick.Registry
	router *gin.Engine
	cfg    config.Config
}

// newTestEnv builds the full HTTP stack over an in-process Redis.
func newTestEnv(t *testing.T, limit int) *testEnv {
	t.Helper()

	mr, client := testutil.NewRedis(t)
	disabledLogger := zerolog.New(nil)

	cfg := config.Default()
	cfg.Addr = ":0"
	cfg.RateLimit.Limit = limit
	cfg.StreamKeepalive = 0

	nicks := nick.NewRegistry(client, cfg.NickTTL)
	b := bus.New(client, &disabledLogger)
	dispatcher := core.NewDispatcher(nicks, b, &disabledLogger)
	identity, err := session.New()
	require.NoError(t, err)

	server := NewServer(dispatcher, ratelimit.NewLimiter(client), identity, cfg, &disabledLogger)
	router, ok := server.Handler.(*gin.Engine)
	require.True(t, ok)

	return &testEnv{mr: mr, bus: b, nicks: nicks, router: router, cfg: cfg}
}

func (e *testEnv) subscribe(t *testing.T, keys ...string) *bus.Subscription {
	t.Helper()
	sub, err := e.bus.Subscribe(context.Background(), keys...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sub.Close() })
	return sub
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	resp := httptest.NewRecorder()
	e.router.ServeHTTP(resp, req)
	return resp
}

func postForm(path, tag string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if tag != "" {
		req.AddCookie(&http.Cookie{Name: session.DefaultCookieName, Value: tag})
	}
	return req
}

func sessionCookie(resp *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range resp.Result().Cookies() {
		if c.Name == session.DefaultCookieName {
			return c
		}
	}
	return nil
}

const (
	tagAlice = "ALICEtag00000000aaaaaaaaaaaaaaaa"
	tagBob   = "BOBtag0000000000bbbbbbbbbbbbbbbb"

	wait  = 2 * time.Second
	quiet = 150 * time.Millisecond
)
