package core

import (
	"errors"

	"github.com/vovakirdan/chatterbox/internal/nick"
	"github.com/vovakirdan/chatterbox/internal/ratelimit"
	"github.com/vovakirdan/chatterbox/internal/store"
)

// Error codes for domain errors.
const (
	ErrCodeRateLimited      = "rate_limited"
	ErrCodeTargetRequired   = "target_required"
	ErrCodeTargetNotFound   = "target_not_found"
	ErrCodeNameConflict     = "name_conflict"
	ErrCodeStoreUnavailable = "store_unavailable"
	ErrCodeInternal         = "internal"
)

var (
	ErrTargetRequired = errors.New("target is required")
	ErrTargetNotFound = errors.New("target not found")
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

// Classify maps err to a CoreError suitable for a client response.
func Classify(err error) *CoreError {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ratelimit.ErrRateLimited):
		return coreError(ErrCodeRateLimited, "too many requests")
	case errors.Is(err, ErrTargetRequired):
		return coreError(ErrCodeTargetRequired, "target is required")
	case errors.Is(err, ErrTargetNotFound):
		return coreError(ErrCodeTargetNotFound, "target not found")
	case errors.Is(err, nick.ErrNameConflict):
		return coreError(ErrCodeNameConflict, "nick in use")
	case errors.Is(err, store.ErrUnavailable):
		return coreError(ErrCodeStoreUnavailable, "service unavailable")
	default:
		return coreError(ErrCodeInternal, "internal server error")
	}
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}
