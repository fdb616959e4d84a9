// Package apperr holds the error taxonomy shared by the catalog cache,
// the install registry, the remote client and the reconciliation engine.
package apperr

import (
	"context"
	"errors"
	"fmt"
)

// NotFoundError means the remote entity does not exist. During candidate
// search it is not fatal and moves the search on to the next candidate.
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string {
	return "not found: " + e.Resource
}

// NetworkError covers timeouts, connection failures, non-2xx responses and
// rate limiting.
type NetworkError struct {
	Op          string
	StatusCode  int
	RateLimited bool
	Inner       error
}

func (e *NetworkError) Error() string {
	switch {
	case e.RateLimited:
		return fmt.Sprintf("%s: rate limit exceeded", e.Op)
	case e.StatusCode != 0 && e.Inner != nil:
		return fmt.Sprintf("%s: status %d: %v", e.Op, e.StatusCode, e.Inner)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: status %d", e.Op, e.StatusCode)
	case e.Inner != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Inner)
	}
	return e.Op + ": network error"
}

func (e *NetworkError) Unwrap() error {
	return e.Inner
}

// DecodeError wraps a malformed remote payload.
type DecodeError struct {
	What  string
	Inner error
}

func (e *DecodeError) Error() string {
	if e.Inner != nil {
		return fmt.Sprintf("failed to decode %s: %v", e.What, e.Inner)
	}
	return "failed to decode " + e.What
}

func (e *DecodeError) Unwrap() error {
	return e.Inner
}

// IOError wraps a local filesystem read or write failure.
type IOError struct {
	Path  string
	Inner error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("io error on %s: %v", e.Path, e.Inner)
}

func (e *IOError) Unwrap() error {
	return e.Inner
}

// StorageError wraps a persistent store failure. Any transaction that
// produced one has been rolled back.
type StorageError struct {
	Op    string
	Inner error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed: %v", e.Op, e.Inner)
}

func (e *StorageError) Unwrap() error {
	return e.Inner
}

// IsNotFound reports whether err is, or wraps, a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// WrapStorage returns nil for a nil err, otherwise a StorageError for op.
func WrapStorage(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Inner: err}
}

// FromContext turns a cancelled or expired context error into a
// NetworkError so that timeouts read the same as connection failures.
func FromContext(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &NetworkError{Op: op, Inner: err}
	}
	return err
}
