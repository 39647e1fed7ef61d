package upstream

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/n0madic/go-slaude/internal/codec"
)

// ErrMissingScope is returned when a scoped call is attempted without an
// organization scope.
var ErrMissingScope = errors.New("organization scope is required")

// UpstreamError represents an upstream reply that signals failure: a non-2xx
// status, or an explicit {"error": ...} payload.
type UpstreamError struct {
	Call       string
	StatusCode int
	Body       []byte
	Headers    http.Header
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %s", e.Call, codec.FormatUpstreamErrorWithHeaders(e.StatusCode, e.Body, e.Headers))
}

// TransportError wraps a network-level failure talking to the upstream.
type TransportError struct {
	Call string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("upstream %s request failed: %v", e.Call, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
