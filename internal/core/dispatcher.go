package core

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/chatterbox/internal/bus"
	"github.com/vovakirdan/chatterbox/internal/nick"
	"github.com/vovakirdan/chatterbox/internal/sanitize"
	"github.com/vovakirdan/chatterbox/internal/store"
)

// Nicknames is the nickname registry as the dispatcher uses it.
type Nicknames interface {
	List(ctx context.Context, room string) (map[string]string, error)
	GetOrAssign(ctx context.Context, room, tag string) (string, error)
	SetName(ctx context.Context, room, tag, requested string) (string, error)
}

// Bus is the message bus as the dispatcher uses it.
type Bus interface {
	Publish(ctx context.Context, key string, env bus.Envelope) error
	PublishAll(ctx context.Context, deliveries ...bus.Delivery) error
	Subscribe(ctx context.Context, keys ...string) (*bus.Subscription, error)
}

// Dispatcher validates posts and routes them by mode.
// Rate limiting happens before the dispatcher is reached.
type Dispatcher struct {
	nicks Nicknames
	bus   Bus
	log   *zerolog.Logger
}

// NewDispatcher creates a dispatcher over the registry and bus.
func NewDispatcher(nicks Nicknames, b Bus, logger *zerolog.Logger) *Dispatcher {
	return &Dispatcher{nicks: nicks, bus: b, log: logger}
}

// Post executes cmd. Every post refreshes the sender's nickname first.
//
// Unknown modes are logged and report success without publishing anything.
// A failing post never leaves a partial set of publishes behind.
func (d *Dispatcher) Post(ctx context.Context, cmd Command) error {
	sender, err := d.nicks.GetOrAssign(ctx, cmd.Room, cmd.Tag)
	if err != nil {
		return fmt.Errorf("resolve sender: %w", err)
	}

	switch cmd.Mode {
	case bus.ModeNick:
		if sanitize.StripText(cmd.Message) == "" {
			d.log.Debug().Str("room", cmd.Room).Str("tag", cmd.Tag).Msg("ignoring empty nick")
			return nil
		}
		return d.changeNick(ctx, cmd, sender)
	case bus.ModeNames:
		return d.names(ctx, cmd, sender)
	case bus.ModeMsg:
		return d.private(ctx, cmd, sender)
	case bus.ModeMessage, bus.ModeAction:
		return d.bus.Publish(ctx, store.ChannelKey(cmd.Room), bus.Envelope{
			Mode:    cmd.Mode,
			Message: sanitize.Clean(cmd.Message),
			Sender:  sender,
		})
	}

	d.log.Warn().
		Str("room", cmd.Room).
		Str("tag", cmd.Tag).
		Str("mode", cmd.Mode).
		Msg("unknown message mode")
	return nil
}

// Open announces tag in room and returns a subscription covering the room
// broadcast key and the session's private key. The subscription is in place
// before the join notice goes out, so the joining session sees its own join.
func (d *Dispatcher) Open(ctx context.Context, room, tag string) (*bus.Subscription, error) {
	name, err := d.nicks.GetOrAssign(ctx, room, tag)
	if err != nil {
		return nil, fmt.Errorf("resolve nick: %w", err)
	}

	sub, err := d.bus.Subscribe(ctx, store.ChannelKey(room), store.PrivateKey(tag))
	if err != nil {
		return nil, err
	}

	err = d.bus.Publish(ctx, store.ChannelKey(room), bus.Envelope{
		Mode:    bus.ModeJoin,
		Message: fmt.Sprintf(noticeJoinFormat, name),
		Sender:  NoticeSender,
	})
	if err != nil {
		_ = sub.Close()
		return nil, err
	}

	d.log.Debug().Str("room", room).Str("tag", tag).Str("nick", name).Msg("stream opened")
	return sub, nil
}

func (d *Dispatcher) changeNick(ctx context.Context, cmd Command, old string) error {
	channel := store.ChannelKey(cmd.Room)

	name, err := d.nicks.SetName(ctx, cmd.Room, cmd.Tag, cmd.Message)
	if errors.Is(err, nick.ErrNameConflict) {
		// The rejection goes to the whole room, not just the requester.
		return d.bus.Publish(ctx, channel, bus.Envelope{
			Mode:    bus.ModeAlert,
			Message: noticeNickInUse,
			Sender:  NoticeSender,
		})
	}
	if err != nil {
		return err
	}

	return d.bus.Publish(ctx, channel, bus.Envelope{
		Mode:    bus.ModeNick,
		Message: fmt.Sprintf(noticeNickFormat, old, name),
		Sender:  NoticeSender,
	})
}

func (d *Dispatcher) names(ctx context.Context, cmd Command, sender string) error {
	nicks, err := d.nicks.List(ctx, cmd.Room)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(nicks))
	for name := range nicks {
		names = append(names, name)
	}
	sort.Strings(names)

	return d.bus.Publish(ctx, store.ChannelKey(cmd.Room), bus.Envelope{
		Mode:    bus.ModeNames,
		Message: names,
		Sender:  sender,
	})
}

// private delivers a msg to the target's private key and echoes it to the
// sender's own private key. Nothing is published unless the target resolves.
func (d *Dispatcher) private(ctx context.Context, cmd Command, sender string) error {
	if cmd.Target == "" {
		return ErrTargetRequired
	}

	nicks, err := d.nicks.List(ctx, cmd.Room)
	if err != nil {
		return err
	}
	targetTag, ok := nicks[cmd.Target]
	if !ok {
		return fmt.Errorf("%w: %q in %q", ErrTargetNotFound, cmd.Target, cmd.Room)
	}

	env := bus.Envelope{
		Mode:    bus.ModeMsg,
		Message: sanitize.Clean(cmd.Message),
		Sender:  sender,
		Target:  cmd.Target,
	}
	return d.bus.PublishAll(ctx,
		bus.Delivery{Key: store.PrivateKey(targetTag), Envelope: env},
		bus.Delivery{Key: store.PrivateKey(cmd.Tag), Envelope: env},
	)
}
