package engine

import (
	"errors"

	"github.com/kydras/kydrastore/internal/relpath"
)

var (
	// ErrInvalidPath is returned when the path sanitizer rejects a relative
	// path. It is the same sentinel the sanitizer returns, so callers can
	// test against either package.
	ErrInvalidPath = relpath.ErrInvalid

	// ErrPoolNotFound is returned for operations against an unknown pool ID.
	ErrPoolNotFound = errors.New("pool not found")

	// ErrArgEmpty is returned when a required argument is blank or empty.
	ErrArgEmpty = errors.New("argument must not be empty")

	// ErrInsufficientReplicas is returned when fewer healthy eligible drives
	// exist than the rule-required replica count.
	ErrInsufficientReplicas = errors.New("insufficient eligible drives for required replica count")

	// ErrIntegrityMismatch is returned when staged replica hashes disagree,
	// or when a post-copy verification hash does not match its reference.
	ErrIntegrityMismatch = errors.New("replica content hash mismatch")
)

// errorKind maps an error to a stable label for metrics.
func errorKind(err error) string {
	switch {
	case errors.Is(err, ErrInvalidPath):
		return "invalid_path"
	case errors.Is(err, ErrPoolNotFound):
		return "pool_not_found"
	case errors.Is(err, ErrArgEmpty):
		return "arg_empty"
	case errors.Is(err, ErrInsufficientReplicas):
		return "insufficient_replicas"
	case errors.Is(err, ErrIntegrityMismatch):
		return "integrity_mismatch"
	default:
		return "io_failure"
	}
}
