package http

import (
	"errors"
	stdhttp "net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/chatterbox/internal/bus"
	"github.com/vovakirdan/chatterbox/internal/core"
	"github.com/vovakirdan/chatterbox/internal/stream"
)

// ChatHandlers serves the per-room page, push stream and post endpoint.
type ChatHandlers struct {
	chat      Chat
	keepalive time.Duration
	log       *zerolog.Logger
}

// NewChatHandlers creates a new chat handlers instance.
func NewChatHandlers(chat Chat, keepalive time.Duration, logger *zerolog.Logger) *ChatHandlers {
	return &ChatHandlers{
		chat:      chat,
		keepalive: keepalive,
		log:       logger,
	}
}

// Get serves the chat page, or the push stream when the client asks for it.
// GET /:room/
func (h *ChatHandlers) Get(c *gin.Context) {
	if !wantsStream(c.Request) {
		chatPageHandler(c)
		return
	}
	h.Stream(c)
}

// Stream announces the session in the room and relays room and private
// envelopes until the client goes away.
func (h *ChatHandlers) Stream(c *gin.Context) {
	ctx := c.Request.Context()
	room := c.Param("room")
	tag := sessionTag(c)

	sub, err := h.chat.Open(ctx, room, tag)
	if err != nil {
		h.log.Error().Err(err).Str("room", room).Str("tag", tag).Msg("failed to open stream")
		abortWithError(c, err)
		return
	}
	defer sub.Close()

	c.Header("Content-Type", stream.ContentType)
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(stdhttp.StatusOK)
	c.Writer.WriteHeaderNow()
	c.Writer.Flush()

	h.log.Debug().Str("room", room).Str("tag", tag).Msg("stream started")

	enc := stream.NewEncoder(c.Writer, c.Writer)
	err = stream.Pump(ctx, enc, sub.Envelopes(), h.keepalive)
	switch {
	case err == nil:
		h.log.Debug().Str("room", room).Str("tag", tag).Msg("stream closed by client")
	case errors.Is(err, bus.ErrClosed):
		h.log.Warn().Str("room", room).Str("tag", tag).Msg("stream subscription ended")
	default:
		h.log.Debug().Err(err).Str("room", room).Str("tag", tag).Msg("stream write failed")
	}
}

// Post dispatches one form-encoded command.
// POST /:room/
func (h *ChatHandlers) Post(c *gin.Context) {
	cmd := core.Command{
		Room:    c.Param("room"),
		Tag:     sessionTag(c),
		Mode:    c.DefaultPostForm("mode", bus.ModeMessage),
		Message: c.PostForm("message"),
		Target:  c.PostForm("target"),
	}

	if err := h.chat.Post(c.Request.Context(), cmd); err != nil {
		status, body := mapError(err)
		if status >= stdhttp.StatusInternalServerError {
			h.log.Error().Err(err).Str("room", cmd.Room).Str("mode", cmd.Mode).Msg("post failed")
		} else {
			h.log.Debug().Err(err).Str("room", cmd.Room).Str("mode", cmd.Mode).Msg("post rejected")
		}
		c.JSON(status, body)
		return
	}

	c.Status(stdhttp.StatusOK)
}

func wantsStream(r *stdhttp.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), stream.ContentType)
}
