package models

import (
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jinzhu/inflection"

	"github.com/attractor-labs/discovery-engine/pkg/apperrors"
)

// Entity is implemented (with pointer receivers) by every persistable model.
// Construction is permissive: the New* constructors fill defaults and never
// fail. Validate is the sole gate before persistence.
type Entity interface {
	// EntityID returns the application-generated identity.
	EntityID() uuid.UUID

	// Touch refreshes UpdatedAt. Called by mutating operations.
	Touch(now time.Time)

	// Validate checks the schema rules and, when those pass, the
	// entity-specific business rules. It returns an
	// *apperrors.ValidationError carrying every violation found,
	// and never mutates the entity.
	Validate() error

	// Row maps column name to storable value for every schema column.
	Row() map[string]any

	// Public is Row plus computed read-only fields that are never persisted.
	Public() map[string]any

	// ApplyPatch overwrites schema fields present in patch (keyed by column
	// name) and refreshes UpdatedAt. Unknown keys are ignored; ApplyPatch
	// never fails. Callers validate afterwards before persisting.
	ApplyPatch(patch map[string]any)
}

// Schema describes an entity's table layout: the table name and the static
// column set. Identifiers interpolated into SQL come only from here, never
// from request input.
type Schema struct {
	Entity  string
	Table   string
	Columns []string
}

// NewSchema derives the table name from the entity name (plural snake_case)
// and records the static column list, id first.
func NewSchema(entity string, columns []string) Schema {
	return Schema{
		Entity:  entity,
		Table:   inflection.Plural(toSnake(entity)),
		Columns: columns,
	}
}

// HasColumn reports whether name is a declared column.
func (s Schema) HasColumn(name string) bool {
	for _, c := range s.Columns {
		if c == name {
			return true
		}
	}
	return false
}

func toSnake(name string) string {
	var b strings.Builder
	for i, r := range name {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r + ('a' - 'A'))
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// validate is the shared schema validator. Field names in violations use the
// db tag so they line up with column names everywhere else.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		tag := fld.Tag.Get("db")
		if tag == "" || tag == "-" {
			return fld.Name
		}
		return tag
	})
	return v
}

// schemaViolations runs the struct validator and collects every failed rule.
// Returns nil when the schema pass is clean.
func schemaViolations(entity string, model any) *apperrors.ValidationError {
	err := validate.Struct(model)
	if err == nil {
		return nil
	}
	verr := apperrors.NewValidationError(entity)
	if fieldErrs, ok := err.(validator.ValidationErrors); ok {
		for _, fe := range fieldErrs {
			verr.Add(fe.Field(), fe.Tag(), fe.Value())
		}
		return verr
	}
	verr.Add("", err.Error(), nil)
	return verr
}

// patch helpers: tolerant of the numeric widenings that show up when patches
// arrive through JSON decoding.

func patchString(patch map[string]any, key string, dst *string) {
	if v, ok := patch[key]; ok {
		if s, ok := v.(string); ok {
			*dst = s
		}
	}
}

func patchInt(patch map[string]any, key string, dst *int) {
	v, ok := patch[key]
	if !ok {
		return
	}
	switch n := v.(type) {
	case int:
		*dst = n
	case int32:
		*dst = int(n)
	case int64:
		*dst = int(n)
	case float64:
		*dst = int(n)
	}
}

func patchFloat(patch map[string]any, key string, dst *float64) {
	v, ok := patch[key]
	if !ok {
		return
	}
	switch n := v.(type) {
	case float64:
		*dst = n
	case float32:
		*dst = float64(n)
	case int:
		*dst = float64(n)
	}
}

func patchUUID(patch map[string]any, key string, dst *uuid.UUID) {
	v, ok := patch[key]
	if !ok {
		return
	}
	switch id := v.(type) {
	case uuid.UUID:
		*dst = id
	case string:
		if parsed, err := uuid.Parse(id); err == nil {
			*dst = parsed
		}
	}
}

func patchUUIDPtr(patch map[string]any, key string, dst **uuid.UUID) {
	v, ok := patch[key]
	if !ok {
		return
	}
	switch id := v.(type) {
	case nil:
		*dst = nil
	case uuid.UUID:
		*dst = &id
	case *uuid.UUID:
		*dst = id
	case string:
		if parsed, err := uuid.Parse(id); err == nil {
			*dst = &parsed
		}
	}
}

func patchStrings(patch map[string]any, key string, dst *[]string) {
	v, ok := patch[key]
	if !ok {
		return
	}
	switch vals := v.(type) {
	case []string:
		*dst = vals
	case []any:
		out := make([]string, 0, len(vals))
		for _, item := range vals {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		*dst = out
	}
}
