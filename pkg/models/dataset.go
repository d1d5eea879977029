package models

import (
	"time"

	"github.com/google/uuid"
)

// Dataset statuses.
const (
	DatasetStatusActive   = "active"
	DatasetStatusArchived = "archived"
)

// DatasetSchema declares the datasets table layout.
var DatasetSchema = NewSchema("Dataset", []string{
	"id", "name", "description", "domain", "tags",
	"record_count", "status", "created_at", "updated_at",
})

// Dataset is a registered source of records that correlations are discovered
// between. Tags drive the array-overlap queries on the dataset repository.
type Dataset struct {
	ID          uuid.UUID `db:"id" json:"id" validate:"required"`
	Name        string    `db:"name" json:"name" validate:"required"`
	Description string    `db:"description" json:"description"`
	Domain      string    `db:"domain" json:"domain"`
	Tags        []string  `db:"tags" json:"tags"`
	RecordCount int       `db:"record_count" json:"record_count" validate:"gte=0"`
	Status      string    `db:"status" json:"status" validate:"required,oneof=active archived"`
	CreatedAt   time.Time `db:"created_at" json:"created_at" validate:"required"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at" validate:"required"`
}

// NewDataset fills defaults for every unset field and never fails.
func NewDataset(in Dataset) *Dataset {
	d := in
	now := time.Now().UTC()
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	if d.UpdatedAt.IsZero() {
		d.UpdatedAt = d.CreatedAt
	}
	if d.Status == "" {
		d.Status = DatasetStatusActive
	}
	if d.Tags == nil {
		d.Tags = []string{}
	}
	return &d
}

func (d *Dataset) EntityID() uuid.UUID { return d.ID }

func (d *Dataset) Touch(now time.Time) { d.UpdatedAt = now.UTC() }

// Validate runs the schema rules. Dataset has no cross-field business rules.
func (d *Dataset) Validate() error {
	if verr := schemaViolations(DatasetSchema.Entity, d); verr != nil {
		return verr
	}
	return nil
}

func (d *Dataset) Row() map[string]any {
	return map[string]any{
		"id":           d.ID,
		"name":         d.Name,
		"description":  d.Description,
		"domain":       d.Domain,
		"tags":         d.Tags,
		"record_count": d.RecordCount,
		"status":       d.Status,
		"created_at":   d.CreatedAt.UTC(),
		"updated_at":   d.UpdatedAt.UTC(),
	}
}

// Public adds is_empty, derived from record_count and never persisted.
func (d *Dataset) Public() map[string]any {
	out := d.Row()
	out["is_empty"] = d.RecordCount == 0
	return out
}

func (d *Dataset) ApplyPatch(patch map[string]any) {
	patchString(patch, "name", &d.Name)
	patchString(patch, "description", &d.Description)
	patchString(patch, "domain", &d.Domain)
	patchStrings(patch, "tags", &d.Tags)
	patchInt(patch, "record_count", &d.RecordCount)
	patchString(patch, "status", &d.Status)
	d.Touch(time.Now())
}

var _ Entity = (*Dataset)(nil)
