package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attractor-labs/discovery-engine/pkg/apperrors"
)

func validCorrelation() *Correlation {
	return NewCorrelation(Correlation{
		SourceDatasetID: uuid.New(),
		TargetDatasetID: uuid.New(),
		Type:            CorrelationTypeOneToOne,
	})
}

func TestNewCorrelation_Defaults(t *testing.T) {
	c := NewCorrelation(Correlation{
		SourceDatasetID: uuid.New(),
		TargetDatasetID: uuid.New(),
		Type:            CorrelationTypeOneToOne,
	})

	assert.NotEqual(t, uuid.Nil, c.ID)
	assert.Equal(t, 0.0, c.Confidence)
	assert.Equal(t, CorrelationStatusProposed, c.Status)
	assert.Equal(t, 1, c.Version)
	assert.Nil(t, c.ParentCorrelationID)
	assert.False(t, c.CreatedAt.IsZero())
	assert.Equal(t, c.CreatedAt, c.UpdatedAt)

	// A freshly defaulted correlation is immediately valid.
	require.NoError(t, c.Validate())
}

func TestNewCorrelation_PreservesProvidedFields(t *testing.T) {
	id := uuid.New()
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	c := NewCorrelation(Correlation{
		ID:              id,
		SourceDatasetID: uuid.New(),
		TargetDatasetID: uuid.New(),
		Type:            CorrelationTypeTemporal,
		Confidence:      0.42,
		Status:          CorrelationStatusValidated,
		Version:         3,
		CreatedAt:       created,
	})

	assert.Equal(t, id, c.ID)
	assert.Equal(t, 0.42, c.Confidence)
	assert.Equal(t, CorrelationStatusValidated, c.Status)
	assert.Equal(t, 3, c.Version)
	assert.Equal(t, created, c.CreatedAt)
}

func TestCorrelationValidate_SameDatasetAlwaysFails(t *testing.T) {
	shared := uuid.New()
	c := NewCorrelation(Correlation{
		SourceDatasetID: shared,
		TargetDatasetID: shared,
		Type:            CorrelationTypeOneToOne,
		Confidence:      0.9,
	})

	err := c.Validate()
	require.Error(t, err)
	verr := &apperrors.ValidationError{}
	require.ErrorAs(t, err, &verr)
	require.Len(t, verr.Violations, 1)
	assert.Equal(t, "target_dataset_id", verr.Violations[0].Field)
}

func TestCorrelationValidate_SelfParentFails(t *testing.T) {
	c := validCorrelation()
	c.ParentCorrelationID = &c.ID

	err := c.Validate()
	require.Error(t, err)
	verr := &apperrors.ValidationError{}
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "parent_correlation_id", verr.Violations[0].Field)
}

func TestCorrelationValidate_ConfidenceBoundaries(t *testing.T) {
	cases := []struct {
		confidence float64
		valid      bool
	}{
		{-0.1, false},
		{0, true},
		{0.5, true},
		{1, true},
		{1.3, false},
	}
	for _, tc := range cases {
		c := validCorrelation()
		c.Confidence = tc.confidence
		err := c.Validate()
		if tc.valid {
			assert.NoError(t, err, "confidence %g", tc.confidence)
			continue
		}
		require.Error(t, err, "confidence %g", tc.confidence)
		verr := &apperrors.ValidationError{}
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "confidence", verr.Violations[0].Field)
	}
}

func TestCorrelationValidate_CollectsEveryViolation(t *testing.T) {
	c := NewCorrelation(Correlation{
		SourceDatasetID: uuid.New(),
		TargetDatasetID: uuid.New(),
		// Type missing, confidence and version out of range.
		Confidence: 1.5,
	})
	c.Version = 0

	err := c.Validate()
	require.Error(t, err)
	verr := &apperrors.ValidationError{}
	require.ErrorAs(t, err, &verr)

	fields := make([]string, len(verr.Violations))
	for i, v := range verr.Violations {
		fields[i] = v.Field
	}
	assert.Contains(t, fields, "type")
	assert.Contains(t, fields, "confidence")
	assert.Contains(t, fields, "version")
}

func TestCorrelationValidate_BusinessRulesAfterSchema(t *testing.T) {
	// Schema violations suppress the business-rule pass: the same-dataset
	// rule must not appear alongside a schema failure.
	shared := uuid.New()
	c := NewCorrelation(Correlation{
		SourceDatasetID: shared,
		TargetDatasetID: shared,
		Type:            CorrelationTypeOneToOne,
		Confidence:      2,
	})

	err := c.Validate()
	require.Error(t, err)
	verr := &apperrors.ValidationError{}
	require.ErrorAs(t, err, &verr)
	for _, v := range verr.Violations {
		assert.NotEqual(t, apperrors.ErrSameDataset.Error(), v.Rule)
	}
}

func TestCorrelationValidate_DoesNotMutate(t *testing.T) {
	c := validCorrelation()
	before := *c

	require.NoError(t, c.Validate())
	require.NoError(t, c.Validate())
	assert.Equal(t, before, *c)
}

func TestCorrelationRow_CoversEverySchemaColumn(t *testing.T) {
	c := validCorrelation()
	row := c.Row()

	require.Len(t, row, len(CorrelationSchema.Columns))
	for _, col := range CorrelationSchema.Columns {
		assert.Contains(t, row, col)
	}
	assert.Equal(t, c.ID, row["id"])
	assert.Equal(t, c.CreatedAt.UTC(), row["created_at"])
}

func TestCorrelationPublic_AddsComputedOnly(t *testing.T) {
	c := validCorrelation()
	c.Status = CorrelationStatusValidated
	c.Confidence = 0.8

	public := c.Public()
	assert.Equal(t, true, public["is_actionable"])
	// Computed fields never leak into the persisted row.
	assert.NotContains(t, c.Row(), "is_actionable")

	c.Confidence = 0.2
	assert.Equal(t, false, c.Public()["is_actionable"])
}

func TestCorrelationApplyPatch(t *testing.T) {
	c := validCorrelation()
	before := c.UpdatedAt
	time.Sleep(time.Millisecond)

	c.ApplyPatch(map[string]any{
		"confidence": 0.75,
		"status":     CorrelationStatusValidated,
		"notes":      "checked",
		"bogus":      "ignored",
	})

	assert.Equal(t, 0.75, c.Confidence)
	assert.Equal(t, CorrelationStatusValidated, c.Status)
	assert.Equal(t, "checked", c.Notes)
	assert.True(t, c.UpdatedAt.After(before), "ApplyPatch must refresh updated_at")
}

func TestCorrelationSchema_TableName(t *testing.T) {
	assert.Equal(t, "correlations", CorrelationSchema.Table)
	assert.Equal(t, "id", CorrelationSchema.Columns[0])
}
