// Package errors defines the error taxonomy shared across the service (spec §7).
package errors

import "fmt"

// ValidationError signals that client-supplied input failed a pre-condition.
// Callers surface this as HTTP 400.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
}

// NewValidation builds a ValidationError.
func NewValidation(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// NotFound signals a store miss on a requested id. Store methods return this
// as a nil result rather than an error; callers that need an HTTP surface
// translate a nil result into NotFound themselves.
type NotFound struct {
	Kind string
	ID   string
}

func (e *NotFound) Error() string {
	return fmt.Sprintf("not found: %s %q", e.Kind, e.ID)
}

// NewNotFound builds a NotFound error.
func NewNotFound(kind, id string) *NotFound {
	return &NotFound{Kind: kind, ID: id}
}

// ProviderError wraps an LLM/embedding provider failure.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// NewProvider wraps err as a ProviderError.
func NewProvider(provider string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Err: err}
}

// StoreError wraps a persistence failure. Callers surface this as a 5xx.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// NewStore wraps err as a StoreError.
func NewStore(op string, err error) *StoreError {
	return &StoreError{Op: op, Err: err}
}

