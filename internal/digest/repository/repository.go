package repository

import (
	"context"
	"errors"
	"fmt"

	"golang-stock-digest/internal/digest/dto"
)

var (
	// ErrTransport indicates the HTTP call to the agent could not complete.
	ErrTransport = errors.New("agent request failed")
	// ErrTimeout indicates the agent call exceeded its deadline. The caller
	// backs off longer for timeouts than for other failures.
	ErrTimeout = errors.New("agent request timed out")
)

// RemoteError is returned when the agent endpoint answers with a non-success
// HTTP status.
type RemoteError struct {
	StatusCode int
	Body       string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("agent returned status %d: %s", e.StatusCode, e.Body)
}

// AgentRepository issues a single chat-completion request against an external
// text-generation endpoint. It performs no retries; retry policy belongs to
// the caller.
type AgentRepository interface {
	Complete(ctx context.Context, prompt string, opts dto.CompleteOptions) (string, error)
}
