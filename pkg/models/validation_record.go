package models

import (
	"time"

	"github.com/google/uuid"
)

// Validation methods.
const (
	ValidationMethodStatistical     = "statistical"
	ValidationMethodHoldout         = "holdout"
	ValidationMethodCrossValidation = "cross_validation"
	ValidationMethodManual          = "manual"
)

// DefaultValidationThreshold is the score a validation run must reach to
// count as passing.
const DefaultValidationThreshold = 0.7

// ValidationRecordSchema declares the validation_records table layout.
var ValidationRecordSchema = NewSchema("ValidationRecord", []string{
	"id", "correlation_id", "method", "score", "threshold", "notes",
	"created_at", "updated_at",
})

// ValidationRecord is the outcome of one validation run against a
// correlation. Whether the run passed is derived, not stored.
type ValidationRecord struct {
	ID            uuid.UUID `db:"id" json:"id" validate:"required"`
	CorrelationID uuid.UUID `db:"correlation_id" json:"correlation_id" validate:"required"`
	Method        string    `db:"method" json:"method" validate:"required,oneof=statistical holdout cross_validation manual"`
	Score         float64   `db:"score" json:"score" validate:"gte=0,lte=1"`
	Threshold     float64   `db:"threshold" json:"threshold" validate:"gt=0,lte=1"`
	Notes         string    `db:"notes" json:"notes"`
	CreatedAt     time.Time `db:"created_at" json:"created_at" validate:"required"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at" validate:"required"`
}

// NewValidationRecord fills defaults for every unset field and never fails.
func NewValidationRecord(in ValidationRecord) *ValidationRecord {
	r := in
	now := time.Now().UTC()
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = r.CreatedAt
	}
	if r.Threshold == 0 {
		r.Threshold = DefaultValidationThreshold
	}
	return &r
}

func (r *ValidationRecord) EntityID() uuid.UUID { return r.ID }

func (r *ValidationRecord) Touch(now time.Time) { r.UpdatedAt = now.UTC() }

func (r *ValidationRecord) Validate() error {
	if verr := schemaViolations(ValidationRecordSchema.Entity, r); verr != nil {
		return verr
	}
	return nil
}

// IsValid reports whether the run's score reached its threshold.
func (r *ValidationRecord) IsValid() bool { return r.Score >= r.Threshold }

func (r *ValidationRecord) Row() map[string]any {
	return map[string]any{
		"id":             r.ID,
		"correlation_id": r.CorrelationID,
		"method":         r.Method,
		"score":          r.Score,
		"threshold":      r.Threshold,
		"notes":          r.Notes,
		"created_at":     r.CreatedAt.UTC(),
		"updated_at":     r.UpdatedAt.UTC(),
	}
}

// Public adds is_valid, derived from score and threshold and never persisted.
func (r *ValidationRecord) Public() map[string]any {
	out := r.Row()
	out["is_valid"] = r.IsValid()
	return out
}

func (r *ValidationRecord) ApplyPatch(patch map[string]any) {
	patchUUID(patch, "correlation_id", &r.CorrelationID)
	patchString(patch, "method", &r.Method)
	patchFloat(patch, "score", &r.Score)
	patchFloat(patch, "threshold", &r.Threshold)
	patchString(patch, "notes", &r.Notes)
	r.Touch(time.Now())
}

var _ Entity = (*ValidationRecord)(nil)
