// Package apperr defines the small set of sentinel errors the core
// surfaces to its callers, so handlers can branch with errors.Is instead
// of string matching.
package apperr

import "errors"

var (
	// ErrRejected: submission denied by the orchestrator (admission queue
	// full, or the upload could not be stored in its workspace).
	ErrRejected = errors.New("submission rejected")
	// ErrNotFound: unknown JobId.
	ErrNotFound = errors.New("job not found")
	// ErrNotReady: resultOf called before the job reached a terminal status.
	ErrNotReady = errors.New("result not ready")
	// ErrDuplicateJob: Job Store insert with an already-used JobId.
	ErrDuplicateJob = errors.New("duplicate job id")
	// ErrFailed wraps a terminal-failure observation; callers unwrap Kind/Detail.
	ErrFailed = errors.New("job failed")
)

// FailedError carries the error kind and operator-facing detail for a job
// that terminated in the FAILED state. It wraps ErrFailed so callers can
// match with errors.Is(err, apperr.ErrFailed).
type FailedError struct {
	Kind   string
	Detail string
}

func (e *FailedError) Error() string { return e.Kind + ": " + e.Detail }

func (e *FailedError) Unwrap() error { return ErrFailed }
