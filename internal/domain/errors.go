package domain

import (
	"errors"
	"fmt"
)

// Workflow-level failures surfaced to the operator as plain messages.
var (
	ErrNoPendingDraft     = errors.New("no draft is pending")
	ErrNoPendingSelection = errors.New("no selection batch is pending")
	ErrEmptySelection     = errors.New("selection matched no items")
	ErrTooManyRedirects   = errors.New("too many redirects")
	ErrEmptyGeneration    = errors.New("generator returned no usable text")
)

// PublishErrorKind classifies how a publish attempt failed.
type PublishErrorKind string

const (
	// PublishValidation means the unit was rejected locally; no call was made.
	PublishValidation PublishErrorKind = "validation"
	// PublishRemote means the network answered but signalled failure.
	PublishRemote PublishErrorKind = "remote"
	// PublishTransport means the call never completed.
	PublishTransport PublishErrorKind = "transport"
)

// PublishError carries the failure class for one content unit. Remote
// failures keep the raw response body for diagnostics.
type PublishError struct {
	Kind   PublishErrorKind
	Reason string
	Status int
	Body   string
	cause  error
}

func (e *PublishError) Error() string {
	switch e.Kind {
	case PublishRemote:
		return fmt.Sprintf("publish rejected (%d): %s", e.Status, e.Body)
	case PublishTransport:
		return fmt.Sprintf("publish transport: %s", e.Reason)
	default:
		return fmt.Sprintf("publish validation: %s", e.Reason)
	}
}

func (e *PublishError) Unwrap() error { return e.cause }

// NewValidationError rejects a unit before any network call.
func NewValidationError(reason string) *PublishError {
	return &PublishError{Kind: PublishValidation, Reason: reason}
}

// NewRemoteError wraps a completed call the network refused.
func NewRemoteError(status int, body string) *PublishError {
	return &PublishError{Kind: PublishRemote, Status: status, Body: body}
}

// NewTransportError wraps a call that never completed.
func NewTransportError(err error) *PublishError {
	return &PublishError{Kind: PublishTransport, Reason: err.Error(), cause: err}
}

// PublishKind extracts the failure class from an error chain, or "" when the
// error is not a publish failure.
func PublishKind(err error) PublishErrorKind {
	var pe *PublishError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}
