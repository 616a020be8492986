package domain

import (
	"errors"
	"fmt"
)

var (
	ErrDocumentNotFound   = errors.New("document not found")
	ErrDirectoryNotFound  = errors.New("directory not found")
	ErrDuplicateDocument  = errors.New("duplicate document")
	ErrDuplicateDirectory = errors.New("duplicate directory")
	ErrDirectoryRequired  = errors.New("directory required")
	ErrUploadInFlight     = errors.New("upload already in flight")
	ErrInvalidInput       = errors.New("invalid input")
	ErrTemporary          = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// DuplicateConflictError is the second-writer outcome of a create call: the
// store refused the write and handed back the already existing document so
// callers can highlight it instead of erroring.
type DuplicateConflictError struct {
	Existing Document
}

func (e *DuplicateConflictError) Error() string {
	return fmt.Sprintf("duplicate document: namespace %q already taken by %s", e.Existing.Namespace, e.Existing.ID)
}

func (e *DuplicateConflictError) Unwrap() error {
	return ErrDuplicateDocument
}

// AsDuplicateConflict extracts a duplicate conflict from an error chain.
func AsDuplicateConflict(err error) (*DuplicateConflictError, bool) {
	var conflict *DuplicateConflictError
	if errors.As(err, &conflict) {
		return conflict, true
	}
	return nil, false
}
