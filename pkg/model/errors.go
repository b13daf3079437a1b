package model

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrNotFound is returned when a saved filter is not found
	ErrNotFound = errors.New("filter not found")
	// ErrExists is returned when a saved filter with the same name already exists
	ErrExists = errors.New("filter already exists")
	// ErrPermissionDenied is returned when authentication fails
	ErrPermissionDenied = errors.New("permission denied")
	// ErrInvalidFilter is returned when a filter definition is malformed
	ErrInvalidFilter = errors.New("invalid filter")
	// ErrUnknownTable is returned when a table id is not configured
	ErrUnknownTable = errors.New("unknown table")
	// ErrCanceled is returned when the operation is canceled by the client
	ErrCanceled = errors.New("operation canceled")
)

// WrapError wraps storage errors to model errors.
// It converts context.Canceled and context.DeadlineExceeded to ErrCanceled.
func WrapError(err error) error {
	if err == nil {
		return nil
	}
	if IsCanceled(err) {
		return ErrCanceled
	}
	return err
}

// IsCanceled returns true if the error is due to context cancellation or deadline exceeded.
// It checks both direct context errors and wrapped errors (e.g., from MongoDB driver).
func IsCanceled(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, ErrCanceled) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "context canceled") || strings.Contains(errStr, "context deadline exceeded")
}
