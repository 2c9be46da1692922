// Package testutil provides shared test helpers: an in-process Redis and
// channel receive helpers with a timeout safety valve.
package testutil

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// NewRedis starts an in-process Redis server and returns it with a client
// connected to it. Both are torn down when the test completes.
func NewRedis(t testing.TB) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return mr, client
}

// RequireReceive reads one value from ch within timeout, or fails the test.
func RequireReceive[T any](t testing.TB, ch <-chan T, timeout time.Duration, what string) T {
	t.Helper()

	select {
	case v, ok := <-ch:
		if !ok {
			t.Fatalf("channel closed while %s", what)
		}
		return v
	case <-time.After(timeout):
		t.Fatalf("timed out after %v while %s", timeout, what)
	}

	var zero T
	return zero
}

// RequireNoReceive fails the test if ch yields a value within wait.
func RequireNoReceive[T any](t testing.TB, ch <-chan T, wait time.Duration, what string) {
	t.Helper()

	select {
	case v, ok := <-ch:
		if ok {
			t.Fatalf("unexpected value while %s: %+v", what, v)
		}
	case <-time.After(wait):
	}
}
