package llmgateway

import "fmt"

// ProviderUnavailableError means the active provider's breaker is open
// and no fallback in the chain could be tried.
type ProviderUnavailableError struct {
	Provider string
	Cause    error
}

func (e *ProviderUnavailableError) Error() string {
	return fmt.Sprintf("provider %q unavailable: %v", e.Provider, e.Cause)
}

func (e *ProviderUnavailableError) Unwrap() error { return e.Cause }

// AllProvidersExhaustedError means no provider in the chain produced a
// response: each one either failed (directly or via retry) or was
// skipped because its breaker was open. Attempted lists both kinds.
type AllProvidersExhaustedError struct {
	Attempted []string
	Last      error
}

func (e *AllProvidersExhaustedError) Error() string {
	return fmt.Sprintf("all providers exhausted %v: %v", e.Attempted, e.Last)
}

func (e *AllProvidersExhaustedError) Unwrap() error { return e.Last }

// MalformedResponseError means the provider replied but the content
// could not be parsed or was empty after cleaning.
type MalformedResponseError struct {
	Provider string
	Cause    error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed response from %q: %v", e.Provider, e.Cause)
}

func (e *MalformedResponseError) Unwrap() error { return e.Cause }

// TemplateError means prompt substitution failed, typically a missing variable.
type TemplateError struct {
	Template string
	Missing  string
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("template %q missing variable %q", e.Template, e.Missing)
}
