// Package store describes the shared key-value store every chat component
// talks to: its key layout and how its failures are reported.
package store

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnavailable marks any failure of a shared store round trip.
// Callers fail the in-flight operation; nothing retries at this layer.
var ErrUnavailable = errors.New("shared store unavailable")

// Wrap annotates a store error with the operation that failed and marks it
// with ErrUnavailable. A nil err stays nil.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}

// Key suffixes of the layout. Segments are joined with ':'.
const (
	suffixNick    = "nick"
	suffixChannel = "channel"
	suffixPrivate = "private"
	suffixRated   = "rated"
)

// MakeKey joins key segments with ':'.
func MakeKey(parts ...string) string {
	return strings.Join(parts, ":")
}

// NickKey is the nickname entry of tag in room: <room>:<tag>:nick.
func NickKey(room, tag string) string {
	return MakeKey(room, tag, suffixNick)
}

// NickPattern matches every nickname key of room. Glob metacharacters in the
// room name are escaped.
func NickPattern(room string) string {
	return MakeKey(escapeGlob(room), "*", suffixNick)
}

// TagFromNickKey extracts the tag from a nickname key of room. ok is false if
// key does not belong to room; a room named "a" must not claim keys of "a:b".
func TagFromNickKey(room, key string) (tag string, ok bool) {
	prefix := room + ":"
	suffix := ":" + suffixNick
	if !strings.HasPrefix(key, prefix) || !strings.HasSuffix(key, suffix) {
		return "", false
	}
	if len(key) < len(prefix)+len(suffix) {
		return "", false
	}
	tag = key[len(prefix) : len(key)-len(suffix)]
	if tag == "" || strings.Contains(tag, ":") {
		return "", false
	}
	return tag, true
}

// ChannelKey is the room broadcast pub/sub key: <room>:channel.
func ChannelKey(room string) string {
	return MakeKey(room, suffixChannel)
}

// PrivateKey is the per-session pub/sub key: <tag>:private.
func PrivateKey(tag string) string {
	return MakeKey(tag, suffixPrivate)
}

// RatedKey is the rate-limit event log of tag: <tag>:rated.
func RatedKey(tag string) string {
	return MakeKey(tag, suffixRated)
}

func escapeGlob(s string) string {
	if !strings.ContainsAny(s, `*?[]\`) {
		return s
	}
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
