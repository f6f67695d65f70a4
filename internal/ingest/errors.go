package ingest

import (
	"errors"
	"fmt"

	"github.com/sebasr/wifi-registry/internal/repository"
	"github.com/sebasr/wifi-registry/internal/validation"
)

// Stable error kinds reported to callers and in batch results
const (
	KindParse       = "parse_error"
	KindValidation  = "validation_error"
	KindStructural  = "structural_error"
	KindConflict    = "conflict"
	KindNotFound    = "not_found"
	KindExampleData = "example_data"
	KindStorage     = "storage_error"
)

// ParseError reports input that is not valid UTF-8 JSON
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid JSON: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// StructuralError reports well-formed JSON of the wrong shape
type StructuralError struct {
	Reason string
}

func (e *StructuralError) Error() string {
	return e.Reason
}

// ConflictError reports an attempt to create an already stored bssid
type ConflictError struct {
	BSSID string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("access point %s already exists", e.BSSID)
}

func (e *ConflictError) Unwrap() error { return repository.ErrAccessPointExists }

// NotFoundError reports an operation on a bssid that is not stored
type NotFoundError struct {
	BSSID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("access point %s not found", e.BSSID)
}

func (e *NotFoundError) Unwrap() error { return repository.ErrAccessPointNotFound }

// ExampleDataError reports a payload copied from documentation
type ExampleDataError struct {
	Field string
	Value string
}

func (e *ExampleDataError) Error() string {
	return fmt.Sprintf("looks like example data, not a real observation (%s = %q)", e.Field, e.Value)
}

// StorageError reports a failed read or write against the store
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s failed: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Kind maps an error to its stable kind string. Errors outside the
// taxonomy are reported as storage errors. Kind(nil) is empty.
func Kind(err error) string {
	if err == nil {
		return ""
	}

	var (
		parseErr      *ParseError
		validationErr *validation.ValidationError
		structuralErr *StructuralError
		exampleErr    *ExampleDataError
	)

	switch {
	case errors.As(err, &parseErr):
		return KindParse
	case errors.As(err, &validationErr), errors.Is(err, repository.ErrBSSIDImmutable):
		return KindValidation
	case errors.As(err, &structuralErr):
		return KindStructural
	case errors.As(err, &exampleErr):
		return KindExampleData
	case errors.Is(err, repository.ErrAccessPointExists):
		return KindConflict
	case errors.Is(err, repository.ErrAccessPointNotFound):
		return KindNotFound
	default:
		return KindStorage
	}
}
