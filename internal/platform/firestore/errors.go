package firestore

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type category int

const (
	categoryUnknown category = iota
	categoryNotFound
	categoryConflict
	categoryUnavailable
)

// Error categorises Firestore failures for the repository layer. It satisfies
// repositories.RepositoryError.
type Error struct {
	op   string
	err  error
	kind category
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.op == "" {
		return e.err.Error()
	}
	return fmt.Sprintf("%s: %v", e.op, e.err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.err
}

// IsNotFound reports whether the error represents a missing document.
func (e *Error) IsNotFound() bool { return e != nil && e.kind == categoryNotFound }

// IsConflict reports whether the error represents a conflicting update.
func (e *Error) IsConflict() bool { return e != nil && e.kind == categoryConflict }

// IsUnavailable reports whether the error represents a transient backend outage.
func (e *Error) IsUnavailable() bool { return e != nil && e.kind == categoryUnavailable }

// NotFoundError builds a not-found repository error for the given operation.
func NotFoundError(op string, err error) error {
	return &Error{op: op, err: err, kind: categoryNotFound}
}

// ConflictError builds a conflict repository error for the given operation.
func ConflictError(op string, err error) error {
	return &Error{op: op, err: err, kind: categoryConflict}
}

func categorize(code codes.Code) category {
	switch code {
	case codes.NotFound:
		return categoryNotFound
	case codes.AlreadyExists, codes.FailedPrecondition, codes.Aborted, codes.OutOfRange:
		return categoryConflict
	case codes.Unavailable, codes.ResourceExhausted, codes.Internal, codes.DeadlineExceeded:
		return categoryUnavailable
	default:
		return categoryUnknown
	}
}

// WrapError annotates Firestore errors with repository semantics. Context
// cancellations pass through untouched so callers can distinguish them.
func WrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	switch status.Code(err) {
	case codes.Canceled:
		return context.Canceled
	case codes.DeadlineExceeded:
		return context.DeadlineExceeded
	}

	var repoErr *Error
	if errors.As(err, &repoErr) {
		if op != "" && repoErr.op == "" {
			repoErr.op = op
		}
		return repoErr
	}
	return &Error{op: op, err: err, kind: categorize(status.Code(err))}
}
