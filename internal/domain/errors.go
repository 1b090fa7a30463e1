package domain

import "errors"

var (
	ErrConflict             = errors.New("conflict")
	ErrNotFound             = errors.New("not found")
	ErrInvalidRequest       = errors.New("invalid request")
	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrSubmissionInProgress = errors.New("submission already in progress")
	ErrUnknownSession       = errors.New("unknown session")
)

// RejectedError carries the ledger's human-readable reason for refusing a request.
type RejectedError struct {
	Reason string
	Err    error
}

func (e *RejectedError) Error() string {
	if e.Err == nil {
		return e.Reason
	}
	if e.Reason == "" {
		return e.Err.Error()
	}
	return e.Err.Error() + ": " + e.Reason
}

func (e *RejectedError) Unwrap() error {
	return e.Err
}

// Reject wraps kind with a reason suitable for showing to the customer.
func Reject(kind error, reason string) error {
	return &RejectedError{Reason: reason, Err: kind}
}

// Reason extracts the rejection reason from err, if it carries one.
func Reason(err error) (string, bool) {
	var rejected *RejectedError
	if errors.As(err, &rejected) && rejected.Reason != "" {
		return rejected.Reason, true
	}
	return "", false
}
