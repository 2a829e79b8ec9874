package ai

import (
	"errors"
	"fmt"
)

// ErrToolInvocation is reserved for tool-execution failures. Providers run
// tools server-side today, so this currently passes through opaquely.
var ErrToolInvocation = errors.New("tool invocation failed")

// ProviderError wraps a failure from the generative-AI provider.
// Retryable marks timeouts and transport failures where a later attempt may
// succeed.
type ProviderError struct {
	Provider  string
	Retryable bool
	Err       error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("ai provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
