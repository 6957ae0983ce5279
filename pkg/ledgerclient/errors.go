package ledgerclient

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failed ledger call for the caller's retry decision.
type ErrorKind string

const (
	// KindRejection is a semantic 4xx refusal. Retrying the same payload is
	// pointless; the operator must change the draft first. The idempotency
	// key may be reused since nothing was applied.
	KindRejection ErrorKind = "rejection"
	// KindTransient covers 5xx, timeouts and network faults. Resubmitting
	// with the same idempotency key is safe.
	KindTransient ErrorKind = "transient"
	// KindAuth is a 401 or a failed token fetch. Re-authentication is the
	// session layer's job, not this package's.
	KindAuth ErrorKind = "auth"
)

// APIError is the single error type surfaced by ledger calls.
type APIError struct {
	Kind       ErrorKind
	StatusCode int
	Code       string
	Detail     string
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("ledger %s (%d): %s", e.Kind, e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("ledger %s: %s", e.Kind, e.Detail)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether the error is safe to retry with the same key.
func IsTransient(err error) bool {
	return kindOf(err) == KindTransient
}

// IsRejection reports whether the server semantically refused the request.
func IsRejection(err error) bool {
	return kindOf(err) == KindRejection
}

// IsAuth reports whether the error is an authentication failure.
func IsAuth(err error) bool {
	return kindOf(err) == KindAuth
}

func kindOf(err error) ErrorKind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return ""
}
