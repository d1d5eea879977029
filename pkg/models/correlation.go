package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/attractor-labs/discovery-engine/pkg/apperrors"
)

// Correlation statuses.
const (
	CorrelationStatusProposed    = "proposed"
	CorrelationStatusValidated   = "validated"
	CorrelationStatusInvalidated = "invalidated"
	CorrelationStatusArchived    = "archived"
)

// Correlation types.
const (
	CorrelationTypeOneToOne   = "one_to_one"
	CorrelationTypeOneToMany  = "one_to_many"
	CorrelationTypeManyToMany = "many_to_many"
	CorrelationTypeTemporal   = "temporal"
)

// ActionableConfidence is the confidence floor for the is_actionable
// computed field.
const ActionableConfidence = 0.5

// CorrelationSchema declares the correlations table layout.
var CorrelationSchema = NewSchema("Correlation", []string{
	"id", "source_dataset_id", "target_dataset_id", "type", "confidence",
	"status", "version", "parent_correlation_id", "notes",
	"created_at", "updated_at",
})

// Correlation is a proposed relationship between two datasets, referenced by
// id only. ParentCorrelationID forms a one-directional version lineage.
type Correlation struct {
	ID                  uuid.UUID  `db:"id" json:"id" validate:"required"`
	SourceDatasetID     uuid.UUID  `db:"source_dataset_id" json:"source_dataset_id" validate:"required"`
	TargetDatasetID     uuid.UUID  `db:"target_dataset_id" json:"target_dataset_id" validate:"required"`
	Type                string     `db:"type" json:"type" validate:"required,oneof=one_to_one one_to_many many_to_many temporal"`
	Confidence          float64    `db:"confidence" json:"confidence" validate:"gte=0,lte=1"`
	Status              string     `db:"status" json:"status" validate:"required,oneof=proposed validated invalidated archived"`
	Version             int        `db:"version" json:"version" validate:"gte=1"`
	ParentCorrelationID *uuid.UUID `db:"parent_correlation_id" json:"parent_correlation_id,omitempty"`
	Notes               string     `db:"notes" json:"notes"`
	CreatedAt           time.Time  `db:"created_at" json:"created_at" validate:"required"`
	UpdatedAt           time.Time  `db:"updated_at" json:"updated_at" validate:"required"`
}

// NewCorrelation fills defaults for every unset field and never fails.
func NewCorrelation(in Correlation) *Correlation {
	c := in
	now := time.Now().UTC()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = c.CreatedAt
	}
	if c.Status == "" {
		c.Status = CorrelationStatusProposed
	}
	if c.Version == 0 {
		c.Version = 1
	}
	return &c
}

func (c *Correlation) EntityID() uuid.UUID { return c.ID }

func (c *Correlation) Touch(now time.Time) { c.UpdatedAt = now.UTC() }

// Validate runs the schema rules, then the business rules: a correlation may
// not relate a dataset to itself, and may not be its own lineage parent.
// Business rules run only when the schema pass is clean.
func (c *Correlation) Validate() error {
	if verr := schemaViolations(CorrelationSchema.Entity, c); verr != nil {
		return verr
	}
	verr := apperrors.NewValidationError(CorrelationSchema.Entity)
	if c.SourceDatasetID == c.TargetDatasetID {
		verr.Add("target_dataset_id", apperrors.ErrSameDataset.Error(), c.TargetDatasetID)
	}
	if c.ParentCorrelationID != nil && *c.ParentCorrelationID == c.ID {
		verr.Add("parent_correlation_id", apperrors.ErrSelfParent.Error(), c.ID)
	}
	if verr.HasViolations() {
		return verr
	}
	return nil
}

func (c *Correlation) Row() map[string]any {
	return map[string]any{
		"id":                    c.ID,
		"source_dataset_id":     c.SourceDatasetID,
		"target_dataset_id":     c.TargetDatasetID,
		"type":                  c.Type,
		"confidence":            c.Confidence,
		"status":                c.Status,
		"version":               c.Version,
		"parent_correlation_id": c.ParentCorrelationID,
		"notes":                 c.Notes,
		"created_at":            c.CreatedAt.UTC(),
		"updated_at":            c.UpdatedAt.UTC(),
	}
}

// Public adds is_actionable, derived from status and confidence and never
// persisted.
func (c *Correlation) Public() map[string]any {
	out := c.Row()
	out["is_actionable"] = c.Status == CorrelationStatusValidated && c.Confidence >= ActionableConfidence
	return out
}

func (c *Correlation) ApplyPatch(patch map[string]any) {
	patchUUID(patch, "source_dataset_id", &c.SourceDatasetID)
	patchUUID(patch, "target_dataset_id", &c.TargetDatasetID)
	patchString(patch, "type", &c.Type)
	patchFloat(patch, "confidence", &c.Confidence)
	patchString(patch, "status", &c.Status)
	patchInt(patch, "version", &c.Version)
	patchUUIDPtr(patch, "parent_correlation_id", &c.ParentCorrelationID)
	patchString(patch, "notes", &c.Notes)
	c.Touch(time.Now())
}

var _ Entity = (*Correlation)(nil)
