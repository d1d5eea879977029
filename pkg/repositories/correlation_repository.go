package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/attractor-labs/discovery-engine/pkg/apperrors"
	"github.com/attractor-labs/discovery-engine/pkg/database"
	"github.com/attractor-labs/discovery-engine/pkg/metrics"
	"github.com/attractor-labs/discovery-engine/pkg/models"
)

// CorrelationRepository adds correlation-specific queries on top of the
// generic operations: status and confidence lookups, version lineage, and
// the archive soft delete.
type CorrelationRepository struct {
	*Repository[models.Correlation, *models.Correlation]
}

// NewCorrelationRepository creates a repository over the correlations table.
func NewCorrelationRepository(db database.Querier, logger *zap.Logger, m *metrics.Repository) *CorrelationRepository {
	return &CorrelationRepository{
		Repository: NewRepository[models.Correlation, *models.Correlation](db, models.CorrelationSchema, logger, m),
	}
}

// FindByStatus lists correlations in the given status, newest first.
func (r *CorrelationRepository) FindByStatus(ctx context.Context, status string) ([]*models.Correlation, error) {
	return r.FindAll(ctx, ListOptions{
		Filters: []Filter{Equals("status", status)},
	})
}

// FindValidated lists validated correlations at or above the confidence
// floor, strongest first.
func (r *CorrelationRepository) FindValidated(ctx context.Context, minConfidence float64) ([]*models.Correlation, error) {
	const op = "find_validated"
	start := time.Now()

	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE status = $1 AND confidence >= $2
		ORDER BY confidence DESC`,
		r.columns, r.schema.Table)
	rows, err := r.exec(ctx).Query(ctx, query, models.CorrelationStatusValidated, minConfidence)
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

// FindChildren lists the direct revisions of a correlation, oldest version
// first. Lineage lookups are one-directional, by parent id.
func (r *CorrelationRepository) FindChildren(ctx context.Context, parentID uuid.UUID) ([]*models.Correlation, error) {
	const op = "find_children"
	start := time.Now()

	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE parent_correlation_id = $1
		ORDER BY version ASC`,
		r.columns, r.schema.Table)
	rows, err := r.exec(ctx).Query(ctx, query, parentID)
	if err != nil {
		return nil, r.fail(op, start, err, zap.String("parent_id", parentID.String()))
	}
	out, err := r.collect(rows)
	if err != nil {
		return nil, r.fail(op, start, err, zap.String("parent_id", parentID.String()))
	}
	r.ok(op, start)
	return out, nil
}

// FindSimilar lists correlations resembling the given one: the same dataset
// pair in either direction, or a confidence within tolerance. Ordered by
// confidence distance, nearest first.
func (r *CorrelationRepository) FindSimilar(ctx context.Context, id uuid.UUID, tolerance float64) ([]*models.Correlation, error) {
	const op = "find_similar"
	start := time.Now()

	base, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if base == nil {
		return nil, fmt.Errorf("%s %s: %w", r.schema.Entity, id, apperrors.ErrNotFound)
	}

	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE id <> $1
		  AND (
			(source_dataset_id = $2 AND target_dataset_id = $3) OR
			(source_dataset_id = $3 AND target_dataset_id = $2) OR
			abs(confidence - $4) <= $5
		  )
		ORDER BY abs(confidence - $4) ASC`,
		r.columns, r.schema.Table)
	rows, err := r.exec(ctx).Query(ctx, query,
		base.ID, base.SourceDatasetID, base.TargetDatasetID, base.Confidence, tolerance)
	if err != nil {
		return nil, r.fail(op, start, err, zap.String("id", id.String()))
	}
	out, err := r.collect(rows)
	if err != nil {
		return nil, r.fail(op, start, err, zap.String("id", id.String()))
	}
	r.ok(op, start)
	return out, nil
}

// Archive soft-deletes a correlation by moving it to the archived status.
// The row survives; the generic Delete is the hard-delete path.
func (r *CorrelationRepository) Archive(ctx context.Context, id uuid.UUID) error {
	const op = "archive"
	start := time.Now()

	query := fmt.Sprintf(`
		UPDATE %s SET status = $2, updated_at = $3 WHERE id = $1`,
		r.schema.Table)
	tag, err := r.exec(ctx).Exec(ctx, query, id, models.CorrelationStatusArchived, time.Now().UTC())
	if err != nil {
		return r.fail(op, start, err, zap.String("id", id.String()))
	}
	if tag.RowsAffected() == 0 {
		r.ok(op, start)
		return fmt.Errorf("%s %s: %w", r.schema.Entity, id, apperrors.ErrNotFound)
	}
	r.ok(op, start)
	return nil
}

// CreateRevision inserts a new version of an existing correlation: the
// parent's fields with the patch applied, version bumped, lineage pointing
// at the parent, and status reset to proposed.
func (r *CorrelationRepository) CreateRevision(ctx context.Context, parentID uuid.UUID, patch map[string]any) (*models.Correlation, error) {
	parent, err := r.FindByID(ctx, parentID)
	if err != nil {
		return nil, err
	}
	if parent == nil {
		return nil, fmt.Errorf("%s %s: %w", r.schema.Entity, parentID, apperrors.ErrNotFound)
	}

	revision := models.NewCorrelation(models.Correlation{
		SourceDatasetID:     parent.SourceDatasetID,
		TargetDatasetID:     parent.TargetDatasetID,
		Type:                parent.Type,
		Confidence:          parent.Confidence,
		Version:             parent.Version + 1,
		ParentCorrelationID: &parent.ID,
		Notes:               parent.Notes,
	})
	revision.ApplyPatch(patch)
	return r.Create(ctx, revision)
}
