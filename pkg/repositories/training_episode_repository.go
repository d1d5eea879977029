package repositories

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/attractor-labs/discovery-engine/pkg/database"
	"github.com/attractor-labs/discovery-engine/pkg/metrics"
	"github.com/attractor-labs/discovery-engine/pkg/models"
)

// TrainingEpisodeRepository adds tuning-loop queries on top of the generic
// operations.
type TrainingEpisodeRepository struct {
	*Repository[models.TrainingEpisode, *models.TrainingEpisode]
}

// NewTrainingEpisodeRepository creates a repository over the
// training_episodes table.
func NewTrainingEpisodeRepository(db database.Querier, logger *zap.Logger, m *metrics.Repository) *TrainingEpisodeRepository {
	return &TrainingEpisodeRepository{
		Repository: NewRepository[models.TrainingEpisode, *models.TrainingEpisode](db, models.TrainingEpisodeSchema, logger, m),
	}
}

// FindRecent lists the n latest episodes by episode number, newest first.
func (r *TrainingEpisodeRepository) FindRecent(ctx context.Context, n int) ([]*models.TrainingEpisode, error) {
	return r.FindAll(ctx, ListOptions{
		OrderBy:    "episode_number",
		Descending: true,
		Limit:      n,
	})
}

// AverageReward returns the mean reward over the last n episodes, zero when
// no episodes exist.
func (r *TrainingEpisodeRepository) AverageReward(ctx context.Context, n int) (float64, error) {
	const op = "average_reward"
	start := time.Now()

	query := fmt.Sprintf(`
		SELECT COALESCE(AVG(reward), 0) FROM (
			SELECT reward FROM %s
			ORDER BY episode_number DESC
			LIMIT $1
		) recent`,
		r.schema.Table)
	var avg float64
	if err := r.exec(ctx).QueryRow(ctx, query, n).Scan(&avg); err != nil {
		return 0, r.fail(op, start, err, zap.Int("window", n))
	}
	r.ok(op, start)
	return avg, nil
}
