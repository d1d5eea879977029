package models

import (
	"time"

	"github.com/google/uuid"
)

// EvolutionRecordSchema declares the evolution_records table layout.
var EvolutionRecordSchema = NewSchema("EvolutionRecord", []string{
	"id", "generation", "fitness", "mutations", "best_correlation_id",
	"created_at", "updated_at",
})

// EvolutionRecord tracks one generation of the strategy evolution loop.
type EvolutionRecord struct {
	ID                uuid.UUID  `db:"id" json:"id" validate:"required"`
	Generation        int        `db:"generation" json:"generation" validate:"gte=0"`
	Fitness           float64    `db:"fitness" json:"fitness" validate:"gte=0"`
	Mutations         int        `db:"mutations" json:"mutations" validate:"gte=0"`
	BestCorrelationID *uuid.UUID `db:"best_correlation_id" json:"best_correlation_id,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at" validate:"required"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at" validate:"required"`
}

// NewEvolutionRecord fills defaults for every unset field and never fails.
func NewEvolutionRecord(in EvolutionRecord) *EvolutionRecord {
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
	return &r
}

func (r *EvolutionRecord) EntityID() uuid.UUID { return r.ID }

func (r *EvolutionRecord) Touch(now time.Time) { r.UpdatedAt = now.UTC() }

func (r *EvolutionRecord) Validate() error {
	if verr := schemaViolations(EvolutionRecordSchema.Entity, r); verr != nil {
		return verr
	}
	return nil
}

func (r *EvolutionRecord) Row() map[string]any {
	return map[string]any{
		"id":                  r.ID,
		"generation":          r.Generation,
		"fitness":             r.Fitness,
		"mutations":           r.Mutations,
		"best_correlation_id": r.BestCorrelationID,
		"created_at":          r.CreatedAt.UTC(),
		"updated_at":          r.UpdatedAt.UTC(),
	}
}

// Public adds has_champion, derived and never persisted.
func (r *EvolutionRecord) Public() map[string]any {
	out := r.Row()
	out["has_champion"] = r.BestCorrelationID != nil
	return out
}

func (r *EvolutionRecord) ApplyPatch(patch map[string]any) {
	patchInt(patch, "generation", &r.Generation)
	patchFloat(patch, "fitness", &r.Fitness)
	patchInt(patch, "mutations", &r.Mutations)
	patchUUIDPtr(patch, "best_correlation_id", &r.BestCorrelationID)
	r.Touch(time.Now())
}

var _ Entity = (*EvolutionRecord)(nil)
