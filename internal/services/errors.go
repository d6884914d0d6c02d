package services

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"gorm.io/gorm"
)

// Error kinds surfaced by every service. Concrete errors are marked with one
// of these so callers can test them with errors.Is.
var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation failed")
	ErrConflict   = errors.New("conflict")
)

// ValidationError lists the request fields that failed validation
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Is lets errors.Is(err, ErrValidation) match a bare *ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func newValidationError(fields map[string]string) error {
	err := &ValidationError{Fields: fields}
	return errors.WithHint(errors.Mark(err, ErrValidation), "check the mandatory request fields")
}

func notFound(entity string, id interface{}) error {
	return errors.Mark(errors.Newf("%s %v not found", entity, id), ErrNotFound)
}

func conflict(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrConflict)
}

// translateStoreError maps store errors onto service error kinds.
func translateStoreError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return errors.Mark(errors.Wrap(err, "unique constraint violated"), ErrConflict)
	}
	return err
}

// IsNotFound reports whether err is a NotFound error
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsValidation reports whether err is a validation error
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

// IsConflict reports whether err is a uniqueness conflict
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }

// ValidationFields extracts the field map of a validation error, if any
func ValidationFields(err error) map[string]string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Fields
	}
	return nil
}
