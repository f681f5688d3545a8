package core

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

// ErrDocumentNotFound is returned by a DocumentStore when no document matches.
var ErrDocumentNotFound = errors.New("document not found")

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

// ValidationError is a client error: a required attribute is missing or malformed.
type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

// NewFieldError is a shortcut for a ValidationError on a single field.
func NewFieldError(field, msg string) error {
	return &ValidationError{Err: errors.New(msg), Fields: []FieldError{{Field: field, Error: msg}}}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		if len(err.Fields) > 0 {
			return fmt.Sprintf("%s: %s", err.Fields[0].Field, err.Fields[0].Error)
		}
		return "validation failed"
	}
	return err.Err.Error()
}

// NotFoundError reports that an id does not resolve to a document of Resource.
type NotFoundError struct {
	Resource string
	ID       string
}

func NewNotFoundError(resource, id string) error {
	return &NotFoundError{Resource: resource, ID: id}
}

func (err NotFoundError) Error() string {
	return err.Resource + " not found"
}

// IsNotFound reports whether err (or its cause) is a NotFoundError or ErrDocumentNotFound.
func IsNotFound(err error) bool {
	var nfe *NotFoundError
	return errors.As(err, &nfe) || errors.Is(err, ErrDocumentNotFound)
}

// IsValidation reports whether err (or its cause) is a client data error: a *ValidationError
// or the validator.ValidationErrors of a struct check. Both render as 400.
func IsValidation(err error) bool {
	var vErr *ValidationError
	var vErrs validator.ValidationErrors
	return errors.As(err, &vErr) || errors.As(err, &vErrs)
}

// StoreError wraps a document store failure (connection, constraint, encoding...).
type StoreError struct {
	Op  string
	Err error
}

func NewStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}

func (err StoreError) Error() string {
	return "store " + err.Op + ": " + err.Err.Error()
}

func (err StoreError) Unwrap() error { return err.Err }

// DuplicateError reports a write refused by a unique attribute of a collection (see DocumentStore.EnsureUnique).
type DuplicateError struct {
	Collection string
	Field      string
}

func (err DuplicateError) Error() string {
	return "duplicate " + err.Field + " in " + err.Collection
}

// BatchError reports which record of a batch failed.
type BatchError struct {
	Index int
	Err   error
}

func (err BatchError) Error() string {
	return fmt.Sprintf("record %d: %v", err.Index, err.Err)
}

func (err BatchError) Unwrap() error { return err.Err }

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
