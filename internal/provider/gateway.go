package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/irislabs/iris/internal/session"
)

// Completion is the provider's single best reply for a conversation.
type Completion struct {
	Content      string
	TokensUsed   int
	Model        string
	FinishReason string
}

// CompleteOptions carries per-call overrides. Zero values fall back to the
// gateway's configured defaults.
type CompleteOptions struct {
	Temperature float32
	MaxTokens   int
}

// Gateway is the only seam through which the rest of the service talks to
// the external AI provider. Implementations do not retry; failures surface
// as *Error and propagate to the request boundary.
type Gateway interface {
	Complete(ctx context.Context, messages []session.Message, opts CompleteOptions) (Completion, error)
	Transcribe(ctx context.Context, audio []byte, filename string) (string, error)
	Synthesize(ctx context.Context, text, voice string, speed float64) ([]byte, error)
	Ping(ctx context.Context) bool
}

// Error wraps any provider failure (network, auth, rate limit, malformed
// response) with the operation that produced it and a retryability hint.
type Error struct {
	Op         string
	StatusCode int
	Retryable  bool
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("provider %s failed (status %d): %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("provider %s failed: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsProviderError reports whether err originated at the provider boundary.
func IsProviderError(err error) bool {
	var pe *Error
	return errors.As(err, &pe)
}
