package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies demo failures by where they happened and who caused them.
type Kind string

const (
	KindConfiguration   Kind = "configuration"
	KindValidation      Kind = "validation"
	KindPayloadTooLarge Kind = "payload_too_large"
	KindProvisioning    Kind = "provisioning"
	KindDeployment      Kind = "deployment"
	KindCleanup         Kind = "cleanup"
)

// Error is the single error type surfaced by the demo subsystem. Status is the
// HTTP status the inbound API answers with; for upstream failures it mirrors
// the control plane's status.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on Kind so callers can write errors.Is(err, domain.ErrDeployment).
// An oversized payload is also a validation error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind == KindValidation && e.Kind == KindPayloadTooLarge {
		return true
	}
	return t.Kind == e.Kind
}

var (
	ErrConfiguration   = &Error{Kind: KindConfiguration}
	ErrValidation      = &Error{Kind: KindValidation}
	ErrPayloadTooLarge = &Error{Kind: KindPayloadTooLarge}
	ErrProvisioning    = &Error{Kind: KindProvisioning}
	ErrDeployment      = &Error{Kind: KindDeployment}
	ErrCleanup         = &Error{Kind: KindCleanup}

	// ErrMissingCredential marks a create-project call that succeeded upstream
	// but returned no credential, leaving a project behind.
	ErrMissingCredential = errors.New("control plane returned no project credential")
)

func NewConfigurationError(message string) *Error {
	return &Error{Kind: KindConfiguration, Status: http.StatusInternalServerError, Message: message}
}

func NewValidationError(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Status: http.StatusBadRequest, Message: fmt.Sprintf(format, args...)}
}

func NewPayloadTooLargeError(limit int) *Error {
	return &Error{
		Kind:    KindPayloadTooLarge,
		Status:  http.StatusRequestEntityTooLarge,
		Message: fmt.Sprintf("Code is too large for demo deployment. Please keep it under %d bytes.", limit),
	}
}

// NewUpstreamError builds a provisioning, deployment or cleanup error. A zero
// status means the request never got an HTTP answer and maps to 502.
func NewUpstreamError(kind Kind, status int, message string, err error) *Error {
	if status == 0 {
		status = http.StatusBadGateway
	}
	return &Error{Kind: kind, Status: status, Message: message, Err: err}
}

// StatusCode maps any error to the HTTP status the API should answer with.
func StatusCode(err error) int {
	var de *Error
	if errors.As(err, &de) && de.Status != 0 {
		return de.Status
	}
	return http.StatusInternalServerError
}

// PublicMessage returns the message safe to show API callers.
func PublicMessage(err error) string {
	var de *Error
	if errors.As(err, &de) && de.Message != "" {
		return de.Message
	}
	return "Unknown error"
}
