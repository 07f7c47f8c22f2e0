package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrRateLimit indicates the provider returned a rate limit error (429).
type ErrRateLimit struct {
	RetryAfter time.Duration
	Err        error
}

func (e *ErrRateLimit) Error() string {
	return fmt.Sprintf("rate limited (retry after %s): %v", e.RetryAfter, e.Err)
}

func (e *ErrRateLimit) Unwrap() error { return e.Err }

// ErrInvalidResponse indicates the LLM returned content that does not
// conform to the requested schema.
type ErrInvalidResponse struct {
	Content json.RawMessage
	// Path is the JSON pointer of the first failing value, such as
	// "/questions/3", when schema validation located one.
	Path string
	Err  error
}

func (e *ErrInvalidResponse) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("invalid LLM response at %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("invalid LLM response: %v", e.Err)
}

func (e *ErrInvalidResponse) Unwrap() error { return e.Err }

// ErrProviderUnavailable indicates the provider is down or unreachable.
// Streaming is set when the failure came from a response stream rather
// than a one-shot completion.
type ErrProviderUnavailable struct {
	Streaming bool
	Err       error
}

func (e *ErrProviderUnavailable) Error() string {
	what := "LLM provider unavailable"
	if e.Streaming {
		what = "LLM response stream unavailable"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", what, e.Err)
	}
	return what
}

func (e *ErrProviderUnavailable) Unwrap() error { return e.Err }

// ErrStreamInterrupted indicates a response stream failed after text had
// already been delivered. Such a stream cannot be replayed, so it is never
// retried; callers keep what they received.
type ErrStreamInterrupted struct {
	// Delivered is the number of deltas yielded before the failure.
	Delivered int
	Err       error
}

func (e *ErrStreamInterrupted) Error() string {
	return fmt.Sprintf("model stream interrupted after %d deltas: %v", e.Delivered, e.Err)
}

func (e *ErrStreamInterrupted) Unwrap() error { return e.Err }

// streamError marks provider-unavailable errors as coming from a stream.
func streamError(err error) error {
	var unavail *ErrProviderUnavailable
	if errors.As(err, &unavail) {
		unavail.Streaming = true
	}
	return err
}

// ErrMaxTokensExceeded indicates the response was truncated because it
// hit the MaxTokens limit.
type ErrMaxTokensExceeded struct {
	Content json.RawMessage
}

func (e *ErrMaxTokensExceeded) Error() string {
	return "LLM response truncated: max tokens exceeded"
}

// ErrAuth indicates the provider rejected the supplied credentials.
// Retrying with the same credentials cannot succeed.
type ErrAuth struct {
	Err error
}

func (e *ErrAuth) Error() string {
	return fmt.Sprintf("LLM provider rejected credentials: %v", e.Err)
}

func (e *ErrAuth) Unwrap() error { return e.Err }
