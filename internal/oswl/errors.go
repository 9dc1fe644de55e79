package oswl

import (
	"errors"
	"fmt"
)

var (
	// ErrRecordExists is returned by a store when a record for the same
	// group, kind and date is already present.
	ErrRecordExists = errors.New("record already exists")

	// ErrConcurrentUpdate is returned by a store when the record changed
	// between being loaded and being updated.
	ErrConcurrentUpdate = errors.New("record was updated concurrently")

	// ErrReportNotFound is returned by a vault for an unknown report name.
	ErrReportNotFound = errors.New("report not found")
)

// SerializationError means a snapshot could not be canonically encoded.
type SerializationError struct {
	Err error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("serializing snapshot: %v", e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }

// MalformedResourceError means a resource has no usable id.
type MalformedResourceError struct {
	Index  int
	Reason string
}

func (e *MalformedResourceError) Error() string {
	return fmt.Sprintf("malformed resource at index %d: %s", e.Index, e.Reason)
}
