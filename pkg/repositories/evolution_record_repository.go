package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/attractor-labs/discovery-engine/pkg/database"
	"github.com/attractor-labs/discovery-engine/pkg/metrics"
	"github.com/attractor-labs/discovery-engine/pkg/models"
)

// EvolutionRecordRepository adds generation queries on top of the generic
// operations.
type EvolutionRecordRepository struct {
	*Repository[models.EvolutionRecord, *models.EvolutionRecord]
}

// NewEvolutionRecordRepository creates a repository over the
// evolution_records table.
func NewEvolutionRecordRepository(db database.Querier, logger *zap.Logger, m *metrics.Repository) *EvolutionRecordRepository {
	return &EvolutionRecordRepository{
		Repository: NewRepository[models.EvolutionRecord, *models.EvolutionRecord](db, models.EvolutionRecordSchema, logger, m),
	}
}

// FindByGeneration lists records for one generation.
func (r *EvolutionRecordRepository) FindByGeneration(ctx context.Context, generation int) ([]*models.EvolutionRecord, error) {
	return r.FindAll(ctx, ListOptions{
		Filters: []Filter{Equals("generation", generation)},
	})
}

// Fittest returns the record with the highest fitness, or nil when the
// table is empty.
func (r *EvolutionRecordRepository) Fittest(ctx context.Context) (*models.EvolutionRecord, error) {
	const op = "fittest"
	start := time.Now()

	query := fmt.Sprintf(`
		SELECT %s FROM %s
		ORDER BY fitness DESC, generation DESC
		LIMIT 1`,
		r.columns, r.schema.Table)
	rows, err := r.exec(ctx).Query(ctx, query)
	if err != nil {
		return nil, r.fail(op, start, err)
	}
	rec, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[models.EvolutionRecord])
	if errors.Is(err, pgx.ErrNoRows) {
		r.ok(op, start)
		return nil, nil
	}
	if err != nil {
		return nil, r.fail(op, start, err)
	}
	r.ok(op, start)
	return rec, nil
}
