// Package stream writes bus envelopes to an open server-sent events response.
package stream

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/vovakirdan/chatterbox/internal/bus"
)

// ContentType is the media type of the push stream.
const ContentType = "text/event-stream"

// Flusher pushes buffered output to the client.
type Flusher interface {
	Flush()
}

// Encoder frames envelopes as server-sent events:
//
//	event: <mode>
//	data: <line 1 of the JSON payload>
//	data: <line 2 ...>
//	<blank line>
type Encoder struct {
	w     *bufio.Writer
	flush Flusher
}

// NewEncoder writes frames to w. When flusher is non-nil it is called after
// every frame so the client sees it immediately.
func NewEncoder(w io.Writer, flusher Flusher) *Encoder {
	return &Encoder{w: bufio.NewWriter(w), flush: flusher}
}

// Encode writes one frame for env.
func (e *Encoder) Encode(env bus.Envelope) error {
	data, err := env.Data()
	if err != nil {
		return fmt.Errorf("encode %s frame: %w", env.Mode, err)
	}
	return e.writeFrame(env.Mode, data)
}

func (e *Encoder) writeFrame(event string, data []byte) error {
	e.w.WriteString("event: ")
	e.w.WriteString(event)
	e.w.WriteByte('\n')
	for _, line := range bytes.Split(data, []byte("\n")) {
		e.w.WriteString("data: ")
		e.w.Write(line)
		e.w.WriteByte('\n')
	}
	e.w.WriteByte('\n')

	return e.commit()
}

// Comment writes a comment frame. Clients ignore it; it keeps idle
// connections and intermediaries from timing out.
func (e *Encoder) Comment(text string) error {
	e.w.WriteString(": ")
	e.w.WriteString(text)
	e.w.WriteString("\n\n")
	return e.commit()
}

func (e *Encoder) commit() error {
	if err := e.w.Flush(); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	if e.flush != nil {
		e.flush.Flush()
	}
	return nil
}

// Pump writes one frame per envelope from src until ctx is done or src is
// closed. A positive keepalive emits a comment frame after that much idle
// time. Cancellation is the normal way out and returns nil.
func Pump(ctx context.Context, enc *Encoder, src <-chan bus.Envelope, keepalive time.Duration) error {
	var tick <-chan time.Time
	if keepalive > 0 {
		ticker := time.NewTicker(keepalive)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case env, ok := <-src:
			if !ok {
				return bus.ErrClosed
			}
			if err := enc.Encode(env); err != nil {
				return err
			}
		case <-tick:
			if err := enc.Comment("keepalive"); err != nil {
				return err
			}
		}
	}
}
