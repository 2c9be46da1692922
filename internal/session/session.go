// Package session hands out the opaque tag that identifies one browser session.
package session

import (
	"fmt"

	nanoid "github.com/jaevor/go-nanoid"
)

const (
	// Alphabet is the set of characters a generated tag is drawn from.
	Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	// TagLength is the length of a generated tag.
	TagLength = 32
	// DefaultCookieName carries the tag between requests.
	DefaultCookieName = "chatterbox"
)

// Identity creates and passes through session tags.
// Tags are never checked against the store for uniqueness.
type Identity struct {
	generate func() string
}

// New builds an Identity producing TagLength-character tags over Alphabet.
func New() (*Identity, error) {
	gen, err := nanoid.CustomASCII(Alphabet, TagLength)
	if err != nil {
		return nil, fmt.Errorf("init tag generator: %w", err)
	}
	return &Identity{generate: gen}, nil
}

// NewWithGenerator builds an Identity around a custom generator.
func NewWithGenerator(gen func() string) *Identity {
	return &Identity{generate: gen}
}

// EnsureTag returns existing unchanged when it is non-empty, otherwise a fresh tag.
func (i *Identity) EnsureTag(existing string) string {
	if existing != "" {
		return existing
	}
	return i.generate()
}
