package models

import (
	"time"

	"github.com/google/uuid"
)

// Training episode outcomes.
const (
	EpisodeOutcomeImproved  = "improved"
	EpisodeOutcomeRegressed = "regressed"
	EpisodeOutcomeNeutral   = "neutral"
)

// TrainingEpisodeSchema declares the training_episodes table layout.
var TrainingEpisodeSchema = NewSchema("TrainingEpisode", []string{
	"id", "episode_number", "reward", "steps", "epsilon", "outcome",
	"created_at", "updated_at",
})

// TrainingEpisode records one pass of the discovery tuning loop.
type TrainingEpisode struct {
	ID            uuid.UUID `db:"id" json:"id" validate:"required"`
	EpisodeNumber int       `db:"episode_number" json:"episode_number" validate:"gte=0"`
	Reward        float64   `db:"reward" json:"reward"`
	Steps         int       `db:"steps" json:"steps" validate:"gte=0"`
	Epsilon       float64   `db:"epsilon" json:"epsilon" validate:"gte=0,lte=1"`
	Outcome       string    `db:"outcome" json:"outcome" validate:"required,oneof=improved regressed neutral"`
	CreatedAt     time.Time `db:"created_at" json:"created_at" validate:"required"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at" validate:"required"`
}

// NewTrainingEpisode fills defaults for every unset field and never fails.
func NewTrainingEpisode(in TrainingEpisode) *TrainingEpisode {
	e := in
	now := time.Now().UTC()
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = e.CreatedAt
	}
	if e.Outcome == "" {
		e.Outcome = EpisodeOutcomeNeutral
	}
	return &e
}

func (e *TrainingEpisode) EntityID() uuid.UUID { return e.ID }

func (e *TrainingEpisode) Touch(now time.Time) { e.UpdatedAt = now.UTC() }

func (e *TrainingEpisode) Validate() error {
	if verr := schemaViolations(TrainingEpisodeSchema.Entity, e); verr != nil {
		return verr
	}
	return nil
}

func (e *TrainingEpisode) Row() map[string]any {
	return map[string]any{
		"id":             e.ID,
		"episode_number": e.EpisodeNumber,
		"reward":         e.Reward,
		"steps":          e.Steps,
		"epsilon":        e.Epsilon,
		"outcome":        e.Outcome,
		"created_at":     e.CreatedAt.UTC(),
		"updated_at":     e.UpdatedAt.UTC(),
	}
}

// Public adds reward_per_step, derived and never persisted.
func (e *TrainingEpisode) Public() map[string]any {
	out := e.Row()
	if e.Steps > 0 {
		out["reward_per_step"] = e.Reward / float64(e.Steps)
	} else {
		out["reward_per_step"] = 0.0
	}
	return out
}

func (e *TrainingEpisode) ApplyPatch(patch map[string]any) {
	patchInt(patch, "episode_number", &e.EpisodeNumber)
	patchFloat(patch, "reward", &e.Reward)
	patchInt(patch, "steps", &e.Steps)
	patchFloat(patch, "epsilon", &e.Epsilon)
	patchString(patch, "outcome", &e.Outcome)
	e.Touch(time.Now())
}

var _ Entity = (*TrainingEpisode)(nil)
