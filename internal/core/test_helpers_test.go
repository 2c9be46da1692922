package core

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/chatterbox/internal/bus"
	applog "github.com/vovakirdan/chatterbox/internal/log"
	"github.com/vovakirdan/chatterbox/internal/nick"
	"github.com/vovakirdan/chatterbox/internal/testutil"
)

const (
	tagAlice = "ALICEtag00000000aaaaaaaaaaaaaaaa"
	tagBob   = "BOBtag0000000000bbbbbbbbbbbbbbbb"
	tagCarol = "CAROLtag00000000cccccccccccccccc"

	wait  = 2 * time.Second
	quiet = 150 * time.Millisecond
)

type fixture struct {
	mr     *miniredis.Miniredis
	client *redis.Client
	nicks  *nick.Registry
	bus    *bus.Bus
	d      *Dispatcher
}

func newFixture(t testing.TB) *fixture {
	t.Helper()

	mr, client := testutil.NewRedis(t)
	logger := applog.Nop()
	nicks := nick.NewRegistry(client, nick.DefaultTTL)
	b := bus.New(client, logger)

	return &fixture{
		mr:     mr,
		client: client,
		nicks:  nicks,
		bus:    b,
		d:      NewDispatcher(nicks, b, logger),
	}
}

func (f *fixture) subscribe(t *testing.T, keys ...string) *bus.Subscription {
	t.Helper()
	sub, err := f.bus.Subscribe(context.Background(), keys...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sub.Close() })
	return sub
}

// catchAll observes every publish on any key.
func (f *fixture) catchAll(t *testing.T) <-chan *redis.Message {
	t.Helper()
	ctx := context.Background()
	ps := f.client.PSubscribe(ctx, "*")
	_, err := ps.Receive(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ps.Close() })
	return ps.Channel()
}

func (f *fixture) setNick(t *testing.T, room, tag, name string) {
	t.Helper()
	_, err := f.nicks.SetName(context.Background(), room, tag, name)
	require.NoError(t, err)
}

func mustEnvelope(t *testing.T, sub *bus.Subscription, mode string) bus.Envelope {
	t.Helper()
	env := testutil.RequireReceive(t, sub.Envelopes(), wait, "waiting for "+mode)
	require.Equal(t, mode, env.Mode, "unexpected envelope %+v", env)
	return env
}
