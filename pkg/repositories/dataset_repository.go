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

// DatasetRepository adds dataset-specific queries on top of the generic
// operations.
type DatasetRepository struct {
	*Repository[models.Dataset, *models.Dataset]
}

// NewDatasetRepository creates a repository over the datasets table.
func NewDatasetRepository(db database.Querier, logger *zap.Logger, m *metrics.Repository) *DatasetRepository {
	return &DatasetRepository{
		Repository: NewRepository[models.Dataset, *models.Dataset](db, models.DatasetSchema, logger, m),
	}
}

// FindByDomain lists active datasets in a domain, newest first.
func (r *DatasetRepository) FindByDomain(ctx context.Context, domain string) ([]*models.Dataset, error) {
	return r.FindAll(ctx, ListOptions{
		Filters: []Filter{
			Equals("domain", domain),
			Equals("status", models.DatasetStatusActive),
		},
	})
}

// FindByAnyTag lists active datasets whose tags overlap the given set.
func (r *DatasetRepository) FindByAnyTag(ctx context.Context, tags []string) ([]*models.Dataset, error) {
	const op = "find_by_any_tag"
	start := time.Now()

	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE tags && $1 AND status = $2
		ORDER BY created_at DESC`,
		r.columns, r.schema.Table)
	rows, err := r.exec(ctx).Query(ctx, query, tags, models.DatasetStatusActive)
	if err != nil {
		return nil, r.fail(op, start, err)
	}
	out, err := r.collect(rows)
	if err != nil {
		return nil, r.fail(op, start, err)
	}
	r.ok(op, start)
	return out, nil
}

// FindStale lists active datasets not updated since the cutoff, oldest
// first. Used to pick refresh candidates.
func (r *DatasetRepository) FindStale(ctx context.Context, cutoff time.Time) ([]*models.Dataset, error) {
	const op = "find_stale"
	start := time.Now()

	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE updated_at < $1 AND status = $2
		ORDER BY updated_at ASC`,
		r.columns, r.schema.Table)
	rows, err := r.exec(ctx).Query(ctx, query, cutoff, models.DatasetStatusActive)
	if err != nil {
		return nil, r.fail(op, start, err)
	}
	out, err := r.collect(rows)
	if err != nil {
		return nil, r.fail(op, start, err)
	}
	r.ok(op, start)
	return out, nil
}
