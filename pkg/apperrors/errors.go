package apperrors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrVersionStale  = errors.New("version check failed")
	ErrSameDataset   = errors.New("source and target dataset must differ")
	ErrSelfParent    = errors.New("correlation cannot be its own parent")
	ErrEmptyBatch    = errors.New("empty batch")
	ErrUnknownColumn = errors.New("unknown column")
)

// FieldViolation describes a single failed validation rule on a field.
type FieldViolation struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Value any    `json:"value,omitempty"`
}

func (v FieldViolation) String() string {
	return fmt.Sprintf("%s: failed %q", v.Field, v.Rule)
}

// ValidationError carries every violated rule found during model validation,
// not just the first one. Schema violations are collected in a single pass;
// business-rule violations are appended only when the schema pass succeeds.
type ValidationError struct {
	Entity     string
	Violations []FieldViolation
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.String()
	}
	return fmt.Sprintf("%s validation failed: %s", e.Entity, strings.Join(parts, "; "))
}

// NewValidationError builds a ValidationError for the given entity name.
func NewValidationError(entity string, violations ...FieldViolation) *ValidationError {
	return &ValidationError{Entity: entity, Violations: violations}
}

// Add appends a violation.
func (e *ValidationError) Add(field, rule string, value any) {
	e.Violations = append(e.Violations, FieldViolation{Field: field, Rule: rule, Value: value})
}

// HasViolations reports whether any rule failed.
func (e *ValidationError) HasViolations() bool {
	return len(e.Violations) > 0
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
