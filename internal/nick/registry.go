// Package nick keeps the per-room nickname bindings of session tags.
//
// An entry lives under <room>:<tag>:nick with a TTL. Reading an entry through
// GetOrAssign refreshes the TTL; that refresh is the only presence heartbeat,
// so a session that stays silent longer than the TTL simply disappears from
// the room's listing. No leave event is ever emitted.
package nick

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vovakirdan/chatterbox/internal/sanitize"
	"github.com/vovakirdan/chatterbox/internal/store"
)

// DefaultTTL is the lifetime of a nickname entry without a refresh.
const DefaultTTL = 90 * time.Second

// defaultNameLength is how many leading tag characters form a default nickname.
const defaultNameLength = 8

var (
	// ErrNameConflict is returned when another live session in the room holds the name.
	ErrNameConflict = errors.New("nick in use")
	// ErrEmptyName is returned when nothing is left of a requested name after sanitizing.
	ErrEmptyName = errors.New("empty nick")
)

// claimScript stores ARGV[3] under KEYS[1] unless a nickname key of another
// tag in the same room already holds it. Returns 1 on success, 0 on conflict.
//
// ARGV[1] is the room key prefix ("<room>:"), ARGV[2] the room's nick key
// pattern, ARGV[4] the TTL in milliseconds. Keys whose tag segment contains
// ':' belong to another room and are skipped.
var claimScript = redis.NewScript(`
local own = KEYS[1]
local prefix = ARGV[1]
local name = ARGV[3]
for _, k in ipairs(redis.call('KEYS', ARGV[2])) do
	if k ~= own then
		local tag = string.sub(k, #prefix + 1, #k - 5)
		if not string.find(tag, ':', 1, true) and redis.call('GET', k) == name then
			return 0
		end
	end
end
redis.call('SET', own, name, 'PX', ARGV[4])
return 1
`)

// Registry reads and writes nickname entries in the shared store.
// Nothing is cached; every call goes to the store.
type Registry struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRegistry creates a registry whose entries live for ttl after each refresh.
// A non-positive ttl selects DefaultTTL.
func NewRegistry(client redis.UniversalClient, ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Registry{client: client, ttl: ttl}
}

// TTL returns the entry lifetime.
func (r *Registry) TTL() time.Duration {
	return r.ttl
}

// List returns the live nicknames of room mapped to the tags holding them.
// The map is empty, never nil, when the room has no live entries.
func (r *Registry) List(ctx context.Context, room string) (map[string]string, error) {
	keys, err := r.client.Keys(ctx, store.NickPattern(room)).Result()
	if err != nil {
		return nil, store.Wrap("list nick keys", err)
	}

	nicks := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return nicks, nil
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, store.Wrap("get nicks", err)
	}

	for i, key := range keys {
		tag, ok := store.TagFromNickKey(room, key)
		if !ok {
			continue
		}
		// Entries may expire between KEYS and MGET.
		name, ok := values[i].(string)
		if !ok {
			continue
		}
		nicks[name] = tag
	}

	return nicks, nil
}

// GetOrAssign returns the nickname of tag in room, extending its TTL. A tag
// without an entry gets the first eight characters of the tag as its name.
// Either way the entry is live afterwards.
func (r *Registry) GetOrAssign(ctx context.Context, room, tag string) (string, error) {
	name, err := r.client.GetEx(ctx, store.NickKey(room, tag), r.ttl).Result()
	if err == nil {
		return name, nil
	}
	if !errors.Is(err, redis.Nil) {
		return "", store.Wrap("refresh nick", err)
	}

	for _, candidate := range defaultNames(tag) {
		ok, err := r.claim(ctx, room, tag, candidate)
		if err != nil {
			return "", err
		}
		if ok {
			return candidate, nil
		}
	}

	return "", ErrNameConflict
}

// SetName binds the sanitized form of requested to tag in room with a fresh
// TTL, replacing any earlier name of tag. The check for a competing holder and
// the write happen atomically in the store.
func (r *Registry) SetName(ctx context.Context, room, tag, requested string) (string, error) {
	name := sanitize.StripText(requested)
	if name == "" {
		return "", ErrEmptyName
	}

	ok, err := r.claim(ctx, room, tag, name)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrNameConflict
	}

	return name, nil
}

func (r *Registry) claim(ctx context.Context, room, tag, name string) (bool, error) {
	res, err := claimScript.Run(ctx, r.client,
		[]string{store.NickKey(room, tag)},
		room+":",
		store.NickPattern(room),
		name,
		r.ttl.Milliseconds(),
	).Int()
	if err != nil {
		return false, store.Wrap("claim nick", err)
	}
	return res == 1, nil
}

// defaultNames lists the names tried, in order, for a tag without an entry.
func defaultNames(tag string) []string {
	names := make([]string, 0, 3)
	for _, n := range []int{defaultNameLength, 2 * defaultNameLength, len(tag)} {
		if n > len(tag) {
			n = len(tag)
		}
		candidate := tag[:n]
		if len(names) > 0 && names[len(names)-1] == candidate {
			continue
		}
		names = append(names, candidate)
	}
	return names
}
