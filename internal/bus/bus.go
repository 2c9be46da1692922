// Package bus fans chat envelopes out over Redis pub/sub.
//
// Two channel families exist: the room broadcast key (<room>:channel) and the
// per-session private key (<tag>:private). Delivery is best effort: listeners
// that are not subscribed at publish time never see the envelope, and nothing
// is stored or replayed.
package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/chatterbox/internal/store"
)

// ErrClosed is returned by Next once the subscription has ended.
var ErrClosed = errors.New("subscription closed")

// Bus publishes and subscribes to chat envelopes.
type Bus struct {
	client redis.UniversalClient
	log    *zerolog.Logger
}

// Delivery pairs an envelope with the channel key it goes to.
type Delivery struct {
	Key      string
	Envelope Envelope
}

// New creates a bus over client.
func New(client redis.UniversalClient, logger *zerolog.Logger) *Bus {
	return &Bus{client: client, log: logger}
}

// Publish sends env to every listener currently subscribed to key.
func (b *Bus) Publish(ctx context.Context, key string, env Envelope) error {
	payload, err := Encode(env)
	if err != nil {
		return err
	}
	if err := b.client.Publish(ctx, key, payload).Err(); err != nil {
		return store.Wrap("publish "+env.Mode, err)
	}
	return nil
}

// PublishAll sends every delivery in order inside one transaction: either
// all of them reach the store or none do. Encoding happens up front, so a bad
// envelope prevents every publish of the batch.
func (b *Bus) PublishAll(ctx context.Context, deliveries ...Delivery) error {
	if len(deliveries) == 0 {
		return nil
	}

	payloads := make([][]byte, len(deliveries))
	for i, d := range deliveries {
		payload, err := Encode(d.Envelope)
		if err != nil {
			return err
		}
		payloads[i] = payload
	}

	_, err := b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, d := range deliveries {
			pipe.Publish(ctx, d.Key, payloads[i])
		}
		return nil
	})
	if err != nil {
		return store.Wrap("publish batch", err)
	}
	return nil
}

// Subscribe listens on keys. It returns once the store has confirmed the
// subscription, so envelopes published afterwards are guaranteed to arrive.
// The caller must Close the subscription.
func (b *Bus) Subscribe(ctx context.Context, keys ...string) (*Subscription, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("subscribe: no keys")
	}

	ps := b.client.Subscribe(ctx, keys...)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, store.Wrap("subscribe", err)
	}

	sub := &Subscription{
		ps:   ps,
		keys: keys,
		out:  make(chan Envelope),
		done: make(chan struct{}),
		log:  b.log,
	}
	go sub.pump(ps.Channel())

	return sub, nil
}

// Subscription is an unbounded, non-restartable sequence of envelopes from
// a fixed set of keys.
type Subscription struct {
	ps   *redis.PubSub
	keys []string
	out  chan Envelope
	done chan struct{}
	once sync.Once
	err  error
	log  *zerolog.Logger
}

// Keys returns the channel keys the subscription listens on.
func (s *Subscription) Keys() []string {
	return s.keys
}

// Envelopes yields received envelopes in arrival order. The channel is closed
// when the subscription is closed or the store connection is lost.
func (s *Subscription) Envelopes() <-chan Envelope {
	return s.out
}

// Next blocks until the next envelope arrives, ctx is done, or the
// subscription ends.
func (s *Subscription) Next(ctx context.Context) (Envelope, error) {
	select {
	case env, ok := <-s.out:
		if !ok {
			return Envelope{}, ErrClosed
		}
		return env, nil
	case <-ctx.Done():
		return Envelope{}, ctx.Err()
	}
}

// Close releases the store subscription. It is safe to call more than once.
func (s *Subscription) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.err = s.ps.Close()
	})
	return s.err
}

func (s *Subscription) pump(in <-chan *redis.Message) {
	defer close(s.out)
	for {
		select {
		case msg, ok := <-in:
			if !ok {
				return
			}
			env, err := Decode([]byte(msg.Payload))
			if err != nil {
				s.log.Warn().Err(err).Str("channel", msg.Channel).Msg("dropping undecodable envelope")
				continue
			}
			select {
			case s.out <- env:
			case <-s.done:
				return
			}
		case <-s.done:
			return
		}
	}
}
