package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrAdmissionRejected means the concurrency gate was saturated. The
	// request was never executed and is safe to retry.
	ErrAdmissionRejected = errors.New("admission rejected")
	// ErrBackendUnavailable covers failed or timed-out calls to a required
	// retrieval/model backend.
	ErrBackendUnavailable = errors.New("backend unavailable")
	// ErrContractViolation marks a malformed backend response, such as a
	// score-count or embedding-count mismatch. Not retriable.
	ErrContractViolation = errors.New("backend contract violation")
	ErrInvalidInput      = errors.New("invalid input")
	ErrTemporary         = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
