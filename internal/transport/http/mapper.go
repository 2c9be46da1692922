package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"

	"github.com/vovakirdan/chatterbox/internal/core"
)

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func statusForCode(code string) int {
	switch code {
	case core.ErrCodeRateLimited:
		return stdhttp.StatusTooManyRequests
	case core.ErrCodeTargetRequired:
		return stdhttp.StatusBadRequest
	case core.ErrCodeTargetNotFound:
		return stdhttp.StatusNotFound
	case core.ErrCodeNameConflict:
		return stdhttp.StatusConflict
	case core.ErrCodeStoreUnavailable:
		return stdhttp.StatusServiceUnavailable
	default:
		return stdhttp.StatusInternalServerError
	}
}

func mapError(err error) (int, ErrorResponse) {
	ce := core.Classify(err)
	return statusForCode(ce.Code), ErrorResponse{Error: ce.Message, Code: ce.Code}
}

func abortWithError(c *gin.Context, err error) {
	status, body := mapError(err)
	c.AbortWithStatusJSON(status, body)
}
