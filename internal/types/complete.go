package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedRequest marks an inbound body that cannot be turned into a
// CompletionRequest.
var ErrMalformedRequest = errors.New("malformed completion request")

// CompletionRequest is the inbound POST /v1/complete body.
type CompletionRequest struct {
	Prompt string `json:"prompt"`
	Model  string `json:"model"`
}

// completionRequestWire distinguishes a missing prompt from an empty one.
type completionRequestWire struct {
	Prompt *string `json:"prompt"`
	Model  *string `json:"model"`
}

// ParseCompletionRequest decodes body. The prompt key must be present (an
// empty string is accepted) and model must be a non-empty string. All failures
// wrap ErrMalformedRequest.
func ParseCompletionRequest(body []byte) (*CompletionRequest, error) {
	var wire completionRequestWire
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON body: %v", ErrMalformedRequest, err)
	}
	if wire.Prompt == nil {
		return nil, fmt.Errorf("%w: missing required field \"prompt\"", ErrMalformedRequest)
	}
	if wire.Model == nil || strings.TrimSpace(*wire.Model) == "" {
		return nil, fmt.Errorf("%w: missing required field \"model\"", ErrMalformedRequest)
	}
	return &CompletionRequest{Prompt: *wire.Prompt, Model: *wire.Model}, nil
}
