package props

import (
	"errors"
	"fmt"

	"github.com/conduit-lang/tablemeta/internal/tabledef"
)

var (
	// ErrInconsistentState is returned when the backing store holds more
	// than one structural record for a table
	ErrInconsistentState = tabledef.ErrInconsistentState

	// ErrStoreClosed is returned by every operation after Close
	ErrStoreClosed = errors.New("table metadata store is closed")
)

// NotFoundError is returned when a table has no structural record
type NotFoundError struct {
	Namespace string
	TableID   string
}

// Error implements the error interface
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("table %s not found in namespace %s", e.TableID, e.Namespace)
}

// CreationError is returned when AddTable fails; nothing was committed
type CreationError struct {
	TableID string
	Err     error
}

// Error implements the error interface
func (e *CreationError) Error() string {
	return fmt.Sprintf("failed to create table %s: %v", e.TableID, e.Err)
}

// Unwrap returns the underlying error
func (e *CreationError) Unwrap() error { return e.Err }

// DeletionError is returned when DeleteTable fails
type DeletionError struct {
	TableID string
	Err     error
}

// Error implements the error interface
func (e *DeletionError) Error() string {
	return fmt.Sprintf("failed to delete table %s: %v", e.TableID, e.Err)
}

// Unwrap returns the underlying error
func (e *DeletionError) Unwrap() error { return e.Err }

// MalformedMetadataError describes an overlay value that could not be
// decoded. It is logged and recovered from, never returned.
type MalformedMetadataError struct {
	TableID string
	Key     string
	Value   string
	Err     error
}

// Error implements the error interface
func (e *MalformedMetadataError) Error() string {
	return fmt.Sprintf("malformed %s for table %s: %q: %v", e.Key, e.TableID, e.Value, e.Err)
}

// Unwrap returns the underlying error
func (e *MalformedMetadataError) Unwrap() error { return e.Err }

// IsNotFound returns true if err is or wraps a NotFoundError
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsCreationError returns true if err is or wraps a CreationError
func IsCreationError(err error) bool {
	var ce *CreationError
	return errors.As(err, &ce)
}

// IsDeletionError returns true if err is or wraps a DeletionError
func IsDeletionError(err error) bool {
	var de *DeletionError
	return errors.As(err, &de)
}
