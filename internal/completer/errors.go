package completer

import (
	"errors"
	"fmt"
)

var (
	// ErrNotLoaded is returned when a completion is requested before Setup succeeded.
	ErrNotLoaded = errors.New("model not loaded: call Setup first")
	// ErrNoChoices is returned when the engine response carries no choices.
	ErrNoChoices = errors.New("engine returned no choices")
	// ErrInvalidMaxTokens rejects a non-positive token budget.
	ErrInvalidMaxTokens error = invalidRequestError{msg: "max_tokens must be positive"}
	// ErrInvalidConfig reports unusable load parameters.
	ErrInvalidConfig = errors.New("invalid completer config")
)

// invalidRequestError marks caller mistakes (HTTP 400).
type invalidRequestError struct{ msg string }

func (e invalidRequestError) Error() string { return e.msg }

// newContextExceeded reports a token budget that cannot fit the context window.
func newContextExceeded(maxTokens, contextSize int) error {
	return invalidRequestError{msg: fmt.Sprintf("max_tokens %d exceeds context size %d: reduce max_tokens or increase n_ctx", maxTokens, contextSize)}
}

// IsInvalidRequest reports whether err is a request validation failure.
func IsInvalidRequest(err error) bool {
	var e invalidRequestError
	return errors.As(err, &e)
}

// IsNotLoaded reports whether err indicates a missing model handle.
func IsNotLoaded(err error) bool { return errors.Is(err, ErrNotLoaded) }

// tooBusyError signals queue timeout/overflow for 429 mapping.
type tooBusyError struct{ model string }

func (e tooBusyError) Error() string { return "too busy: " + e.model }

// IsTooBusy reports whether err indicates backpressure (return 429).
func IsTooBusy(err error) bool {
	var e tooBusyError
	return errors.As(err, &e)
}
