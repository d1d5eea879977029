package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/attractor-labs/discovery-engine/pkg/database"
	"github.com/attractor-labs/discovery-engine/pkg/metrics"
	"github.com/attractor-labs/discovery-engine/pkg/models"
)

// ValidationRecordRepository adds correlation-keyed lookups on top of the
// generic operations.
type ValidationRecordRepository struct {
	*Repository[models.ValidationRecord, *models.ValidationRecord]
}

// NewValidationRecordRepository creates a repository over the
// validation_records table.
func NewValidationRecordRepository(db database.Querier, logger *zap.Logger, m *metrics.Repository) *ValidationRecordRepository {
	return &ValidationRecordRepository{
		Repository: NewRepository[models.ValidationRecord, *models.ValidationRecord](db, models.ValidationRecordSchema, logger, m),
	}
}

// FindByCorrelation lists a correlation's validation runs, newest first.
func (r *ValidationRecordRepository) FindByCorrelation(ctx context.Context, correlationID uuid.UUID) ([]*models.ValidationRecord, error) {
	return r.FindAll(ctx, ListOptions{
		Filters: []Filter{Equals("correlation_id", correlationID)},
	})
}

// LatestForCorrelation returns the most recent validation run for a
// correlation, or nil when none exists.
func (r *ValidationRecordRepository) LatestForCorrelation(ctx context.Context, correlationID uuid.UUID) (*models.ValidationRecord, error) {
	const op = "latest_for_correlation"
	start := time.Now()

	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE correlation_id = $1
		ORDER BY created_at DESC
		LIMIT 1`,
		r.columns, r.schema.Table)
	rows, err := r.exec(ctx).Query(ctx, query, correlationID)
	if err != nil {
		return nil, r.fail(op, start, err, zap.String("correlation_id", correlationID.String()))
	}
	rec, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[models.ValidationRecord])
	if errors.Is(err, pgx.ErrNoRows) {
		r.ok(op, start)
		return nil, nil
	}
	if err != nil {
		return nil, r.fail(op, start, err, zap.String("correlation_id", correlationID.String()))
	}
	r.ok(op, start)
	return rec, nil
}
