// Package errors provides error types and utilities shared across agricache.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Kind categorizes an error for coarse-grained handling.
type Kind string

const (
	// KindCache covers cache-level failures such as a closed cache.
	KindCache Kind = "cache"
	// KindStore covers storage backend failures (I/O, SQL, durability).
	KindStore Kind = "store"
	// KindValidation covers rejected payloads.
	KindValidation Kind = "validation"
	// KindNotFound covers lookups of absent records or snapshots.
	KindNotFound Kind = "not_found"
	// KindOperation covers everything else (bad arguments, closed writer).
	KindOperation Kind = "operation"
)

// Sentinel errors.
var (
	// Cache errors.
	ErrCacheClosed = errors.New("cache is closed")
	ErrKeyNotFound = errors.New("key not found")

	// TTL errors.
	ErrInvalidTTL  = errors.New("invalid TTL value")
	ErrTTLTooShort = errors.New("TTL value is too short")
	ErrTTLTooLong  = errors.New("TTL value is too long")

	// Record store errors.
	ErrNotFound    = errors.New("record not found")
	ErrStorage     = errors.New("storage operation failed")
	ErrStoreClosed = errors.New("store is closed")

	// Writer errors.
	ErrQueueFull    = errors.New("write queue is full")
	ErrWriterClosed = errors.New("writer is closed")

	// Backup errors.
	ErrSnapshotNotFound = errors.New("snapshot not found")
	ErrCorruptSnapshot  = errors.New("snapshot is corrupt")
)

// StoreError wraps an underlying error with the operation and key that
// produced it.
type StoreError struct {
	Op   string
	Key  any
	Err  error
	Kind Kind
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.Key != nil {
		return fmt.Sprintf("%s: %s: key=%v: %v", e.Kind, e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// determineKind maps a sentinel error to its kind.
func determineKind(err error) Kind {
	switch {
	case errors.Is(err, ErrNotFound) || errors.Is(err, ErrKeyNotFound) ||
		errors.Is(err, ErrSnapshotNotFound):
		return KindNotFound
	case errors.Is(err, ErrCacheClosed):
		return KindCache
	case errors.Is(err, ErrStorage) || errors.Is(err, ErrStoreClosed) ||
		errors.Is(err, ErrCorruptSnapshot):
		return KindStore
	default:
		return KindOperation
	}
}

// Wrap wraps an error with operation context. It returns nil when err is nil.
func Wrap(op string, key any, err error) error {
	if err == nil {
		return nil
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		// Validation errors already carry their own context.
		return err
	}
	return &StoreError{
		Op:   op,
		Key:  key,
		Err:  err,
		Kind: determineKind(err),
	}
}

// ValidationError reports every rule a payload violated. It is recoverable:
// the write was rejected and nothing was persisted.
type ValidationError struct {
	RecordType string
	Violations []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.RecordType, strings.Join(e.Violations, "; "))
}

// NewValidationError creates a ValidationError for the given record type.
func NewValidationError(recordType string, violations []string) error {
	return &ValidationError{RecordType: recordType, Violations: violations}
}

// IsNotFound reports whether err is a missing-record or missing-key error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrKeyNotFound) ||
		errors.Is(err, ErrSnapshotNotFound)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// AsValidation returns the ValidationError wrapped in err, if any.
func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	ok := errors.As(err, &ve)
	return ve, ok
}

// IsStorage reports whether err is a storage backend failure.
func IsStorage(err error) bool {
	return errors.Is(err, ErrStorage)
}

// IsQueueFull reports whether err is a full write queue.
func IsQueueFull(err error) bool {
	return errors.Is(err, ErrQueueFull)
}

// IsCacheClosed reports whether err is a closed-cache error.
func IsCacheClosed(err error) bool {
	return errors.Is(err, ErrCacheClosed)
}
