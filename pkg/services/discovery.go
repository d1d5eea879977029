package services

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/attractor-labs/discovery-engine/pkg/apperrors"
	"github.com/attractor-labs/discovery-engine/pkg/models"
	"github.com/attractor-labs/discovery-engine/pkg/repositories"
)

// Scorer assigns a confidence to a candidate dataset pair. Scoring is a
// pluggable strategy; the engine ships only the random stub below.
type Scorer interface {
	Score(ctx context.Context, source, target *models.Dataset) float64
}

// RandomScorer is a placeholder Scorer that draws confidence uniformly from
// [0,1). It exists so the discovery flow is exercisable end to end; it is
// not a discovery algorithm and must be replaced before the scores are
// treated as meaningful.
type RandomScorer struct {
	rng *rand.Rand
}

// NewRandomScorer seeds the stub. A fixed seed makes runs reproducible.
func NewRandomScorer(seed int64) *RandomScorer {
	return &RandomScorer{rng: rand.New(rand.NewSource(seed))}
}

func (s *RandomScorer) Score(_ context.Context, _, _ *models.Dataset) float64 {
	return s.rng.Float64()
}

var _ Scorer = (*RandomScorer)(nil)

// DiscoveryService proposes correlations between datasets and records
// validation outcomes. All persistence goes through the repositories; the
// validation flow is transactional.
type DiscoveryService struct {
	datasets     *repositories.DatasetRepository
	correlations *repositories.CorrelationRepository
	validations  *repositories.ValidationRecordRepository
	scorer       Scorer
	logger       *zap.Logger
}

// NewDiscoveryService wires the service. The scorer is injected so callers
// can swap the stub for a real strategy.
func NewDiscoveryService(
	datasets *repositories.DatasetRepository,
	correlations *repositories.CorrelationRepository,
	validations *repositories.ValidationRecordRepository,
	scorer Scorer,
	logger *zap.Logger,
) *DiscoveryService {
	return &DiscoveryService{
		datasets:     datasets,
		correlations: correlations,
		validations:  validations,
		scorer:       scorer,
		logger:       logger.Named("discovery-service"),
	}
}

// Discover proposes a correlation between two existing datasets. Both
// datasets must exist and differ; the proposal starts in the proposed
// status with the scorer's confidence.
func (s *DiscoveryService) Discover(ctx context.Context, sourceID, targetID uuid.UUID, corrType string) (*models.Correlation, error) {
	if sourceID == targetID {
		return nil, apperrors.ErrSameDataset
	}

	source, err := s.datasets.FindByID(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	if source == nil {
		return nil, fmt.Errorf("source dataset %s: %w", sourceID, apperrors.ErrNotFound)
	}
	target, err := s.datasets.FindByID(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, fmt.Errorf("target dataset %s: %w", targetID, apperrors.ErrNotFound)
	}

	correlation := models.NewCorrelation(models.Correlation{
		SourceDatasetID: sourceID,
		TargetDatasetID: targetID,
		Type:            corrType,
		Confidence:      s.scorer.Score(ctx, source, target),
	})

	created, err := s.correlations.Create(ctx, correlation)
	if err != nil {
		return nil, err
	}
	s.logger.Info("proposed correlation",
		zap.String("id", created.ID.String()),
		zap.String("source", sourceID.String()),
		zap.String("target", targetID.String()),
		zap.Float64("confidence", created.Confidence))
	return created, nil
}

// Validate runs one validation pass over a correlation: it records the
// scored run and transitions the correlation to validated or invalidated in
// the same transaction, so a failure leaves neither half behind.
func (s *DiscoveryService) Validate(ctx context.Context, correlationID uuid.UUID, method string) (*models.ValidationRecord, error) {
	correlation, err := s.correlations.FindByID(ctx, correlationID)
	if err != nil {
		return nil, err
	}
	if correlation == nil {
		return nil, fmt.Errorf("correlation %s: %w", correlationID, apperrors.ErrNotFound)
	}

	source, err := s.datasets.FindByID(ctx, correlation.SourceDatasetID)
	if err != nil {
		return nil, err
	}
	target, err := s.datasets.FindByID(ctx, correlation.TargetDatasetID)
	if err != nil {
		return nil, err
	}

	record := models.NewValidationRecord(models.ValidationRecord{
		CorrelationID: correlationID,
		Method:        method,
		Score:         s.scorer.Score(ctx, source, target),
	})

	status := models.CorrelationStatusInvalidated
	if record.IsValid() {
		status = models.CorrelationStatusValidated
	}

	var created *models.ValidationRecord
	err = s.correlations.Transaction(ctx, func(txCtx context.Context) error {
		created, err = s.validations.Create(txCtx, record)
		if err != nil {
			return err
		}
		_, err = s.correlations.Update(txCtx, correlationID, map[string]any{
			"status":     status,
			"confidence": record.Score,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("validated correlation",
		zap.String("id", correlationID.String()),
		zap.String("method", method),
		zap.Float64("score", created.Score),
		zap.String("status", status))
	return created, nil
}
