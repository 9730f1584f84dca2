// Package errs defines the error kinds shared across the system: validation,
// not-found, permission, upstream transient/permanent, and internal
// invariant violations. Components wrap the underlying cause in an *Error
// carrying one of these kinds so callers can branch on Kind() or use
// errors.Is against the sentinel values below, the same way
// httpclient.RetryableError carries a retryable HTTP failure.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an error for both programmatic dispatch (HTTP status
// mapping, ingestion retry-vs-fail) and logging.
type Kind int

const (
	// Internal marks an invariant violation with no more specific kind.
	Internal Kind = iota
	// Validation marks a malformed request (bad uuid, unsupported file type).
	Validation
	// NotFound marks a missing kb/doc/user/thread.
	NotFound
	// PermissionDenied marks a private resource accessed by a non-owner.
	PermissionDenied
	// UpstreamTransient marks a retryable failure of an LLM, vector store,
	// or object store dependency.
	UpstreamTransient
	// UpstreamPermanent marks a non-retryable 4xx-class failure or parse
	// error from an upstream dependency.
	UpstreamPermanent
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case NotFound:
		return "not_found"
	case PermissionDenied:
		return "permission_denied"
	case UpstreamTransient:
		return "upstream_transient"
	case UpstreamPermanent:
		return "upstream_permanent"
	default:
		return "internal"
	}
}

// Error is the concrete error type every component returns for a
// classified failure. It wraps an underlying cause and is comparable via
// errors.Is to the sentinel value of its Kind.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for e's Kind, so
// errors.Is(err, errs.NotFoundErr) works without exposing *Error itself.
func (e *Error) Is(target error) bool {
	sentinel, ok := target.(*sentinelError)
	return ok && sentinel.kind == e.Kind
}

// IsRetryable reports whether the ingestion worker and orchestrator should
// retry rather than fail permanently. Only UpstreamTransient is retryable.
func (e *Error) IsRetryable() bool {
	return e.Kind == UpstreamTransient
}

// New builds an *Error of the given kind wrapping cause (which may be nil).
func New(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

type sentinelError struct {
	kind Kind
}

func (s *sentinelError) Error() string { return s.kind.String() }

// Sentinel values for errors.Is comparisons, e.g.:
//
//	if errors.Is(err, errs.NotFoundErr) { ... }
var (
	InternalErr          = &sentinelError{kind: Internal}
	ValidationErr        = &sentinelError{kind: Validation}
	NotFoundErr          = &sentinelError{kind: NotFound}
	PermissionDeniedErr  = &sentinelError{kind: PermissionDenied}
	UpstreamTransientErr = &sentinelError{kind: UpstreamTransient}
	UpstreamPermanentErr = &sentinelError{kind: UpstreamPermanent}
)

// KindOf extracts the Kind from err if it (or something it wraps) is an
// *Error; otherwise it returns Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// IsRetryable reports whether err should be retried by the ingestion
// worker: true only for an *Error of kind UpstreamTransient, or any error
// implementing the httpclient-style IsRetryable() bool contract.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.IsRetryable()
	}
	var r interface{ IsRetryable() bool }
	if errors.As(err, &r) {
		return r.IsRetryable()
	}
	return false
}
