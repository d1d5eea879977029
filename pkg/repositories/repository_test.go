package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/attractor-labs/discovery-engine/pkg/apperrors"
	"github.com/attractor-labs/discovery-engine/pkg/database"
	"github.com/attractor-labs/discovery-engine/pkg/models"
)

func newDatasetRepo(q *fakeQuerier) *Repository[models.Dataset, *models.Dataset] {
	return NewRepository[models.Dataset, *models.Dataset](q, models.DatasetSchema, zap.NewNop(), nil)
}

func newCorrelationRepo(q *fakeQuerier) *Repository[models.Correlation, *models.Correlation] {
	return NewRepository[models.Correlation, *models.Correlation](q, models.CorrelationSchema, zap.NewNop(), nil)
}

func TestCreate_InvalidEntityPerformsNoWrites(t *testing.T) {
	q := &fakeQuerier{}
	repo := newDatasetRepo(q)

	created, err := repo.Create(context.Background(), models.NewDataset(models.Dataset{}))

	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.Nil(t, created)
	assert.Empty(t, q.queries, "validation failure must abort before any statement")
}

func TestCreate_InsertsEveryColumnAndReturnsStoredRow(t *testing.T) {
	d := models.NewDataset(models.Dataset{Name: "readings", Tags: []string{"iot"}})
	q := &fakeQuerier{results: []*fakeRows{rowsFor(models.DatasetSchema, d)}}
	repo := newDatasetRepo(q)

	created, err := repo.Create(context.Background(), d)
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Equal(t, d.ID, created.ID)
	assert.Equal(t, "readings", created.Name)

	require.Len(t, q.queries, 1)
	cols := strings.Join(models.DatasetSchema.Columns, ", ")
	assert.Equal(t,
		fmt.Sprintf("INSERT INTO datasets (%s) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING %s", cols, cols),
		q.queries[0])
	require.Len(t, q.args[0], len(models.DatasetSchema.Columns))
	assert.Equal(t, d.ID, q.args[0][0], "identity is supplied by the application, first")
}

func TestCreateMany_EmptyBatch(t *testing.T) {
	q := &fakeQuerier{}
	repo := newDatasetRepo(q)

	_, err := repo.CreateMany(context.Background(), nil)
	require.ErrorIs(t, err, apperrors.ErrEmptyBatch)
	assert.Empty(t, q.queries)
}

func TestCreateMany_OneInvalidItemRejectsWholeBatch(t *testing.T) {
	q := &fakeQuerier{}
	repo := newDatasetRepo(q)

	_, err := repo.CreateMany(context.Background(), []*models.Dataset{
		models.NewDataset(models.Dataset{Name: "ok"}),
		models.NewDataset(models.Dataset{}), // missing name
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch item 1")
	assert.True(t, apperrors.IsValidation(err))
	assert.Empty(t, q.queries, "a bad item must keep the whole batch out of storage")
}

func TestCreateMany_SingleMultiRowInsert(t *testing.T) {
	a := models.NewDataset(models.Dataset{Name: "a"})
	b := models.NewDataset(models.Dataset{Name: "b"})
	q := &fakeQuerier{results: []*fakeRows{rowsFor(models.DatasetSchema, a, b)}}
	repo := newDatasetRepo(q)

	out, err := repo.CreateMany(context.Background(), []*models.Dataset{a, b})
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Len(t, q.queries, 1)
	assert.Contains(t, q.queries[0], "($1, ")
	assert.Contains(t, q.queries[0], "($10, ")
	assert.Len(t, q.args[0], 2*len(models.DatasetSchema.Columns))
}

func TestFindByID_MissingRowIsNilNotError(t *testing.T) {
	q := &fakeQuerier{}
	repo := newDatasetRepo(q)

	got, err := repo.FindByID(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFindByID_HydratesEntity(t *testing.T) {
	d := models.NewDataset(models.Dataset{Name: "readings", Domain: "iot", RecordCount: 3})
	q := &fakeQuerier{results: []*fakeRows{rowsFor(models.DatasetSchema, d)}}
	repo := newDatasetRepo(q)

	got, err := repo.FindByID(context.Background(), d.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, *d, *got)
}

func TestFindMany_EmptyInputSkipsStorage(t *testing.T) {
	q := &fakeQuerier{}
	repo := newDatasetRepo(q)

	got, err := repo.FindMany(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Empty(t, q.queries)
}

func TestFindAll_RendersFiltersOrderAndBounds(t *testing.T) {
	q := &fakeQuerier{}
	repo := newDatasetRepo(q)

	_, err := repo.FindAll(context.Background(), ListOptions{
		Filters: []Filter{Equals("status", models.DatasetStatusActive)},
		Limit:   5,
		Offset:  10,
	})
	require.NoError(t, err)

	require.Len(t, q.queries, 1)
	cols := strings.Join(models.DatasetSchema.Columns, ", ")
	assert.Equal(t,
		fmt.Sprintf("SELECT %s FROM datasets WHERE status = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3", cols),
		q.queries[0])
	assert.Equal(t, []any{models.DatasetStatusActive, 5, 10}, q.args[0])
}

func TestFindAll_UnknownFilterColumn(t *testing.T) {
	q := &fakeQuerier{}
	repo := newDatasetRepo(q)

	_, err := repo.FindAll(context.Background(), ListOptions{
		Filters: []Filter{Equals("password", "x")},
	})
	require.ErrorIs(t, err, apperrors.ErrUnknownColumn)
	assert.Empty(t, q.queries)
}

func TestUpdate_MissingRow(t *testing.T) {
	q := &fakeQuerier{}
	repo := newDatasetRepo(q)

	_, err := repo.Update(context.Background(), uuid.New(), map[string]any{"name": "x"})
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestUpdate_InvalidPatchPerformsNoWrite(t *testing.T) {
	d := models.NewDataset(models.Dataset{Name: "readings"})
	q := &fakeQuerier{results: []*fakeRows{rowsFor(models.DatasetSchema, d)}}
	repo := newDatasetRepo(q)

	_, err := repo.Update(context.Background(), d.ID, map[string]any{"record_count": -5})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	// Only the initial SELECT may have run.
	assert.Len(t, q.queries, 1)
}

func TestUpdateChecked_RequiresVersionColumn(t *testing.T) {
	q := &fakeQuerier{}
	repo := newDatasetRepo(q)

	_, err := repo.UpdateChecked(context.Background(), uuid.New(), 1, map[string]any{"name": "x"})
	require.ErrorIs(t, err, apperrors.ErrUnknownColumn)
	assert.Empty(t, q.queries)
}

func TestUpdateChecked_StaleVersion(t *testing.T) {
	c := models.NewCorrelation(models.Correlation{
		SourceDatasetID: uuid.New(),
		TargetDatasetID: uuid.New(),
		Type:            models.CorrelationTypeOneToOne,
		Version:         2,
	})
	q := &fakeQuerier{results: []*fakeRows{rowsFor(models.CorrelationSchema, c)}}
	repo := newCorrelationRepo(q)

	_, err := repo.UpdateChecked(context.Background(), c.ID, 1, map[string]any{"confidence": 0.9})
	require.ErrorIs(t, err, apperrors.ErrVersionStale)
	assert.Len(t, q.queries, 1, "a stale version must stop before the write")
}

func TestUpdateChecked_BumpsVersionAndGuardsWrite(t *testing.T) {
	c := models.NewCorrelation(models.Correlation{
		SourceDatasetID: uuid.New(),
		TargetDatasetID: uuid.New(),
		Type:            models.CorrelationTypeOneToOne,
	})
	bumped := *c
	bumped.Version = 2
	q := &fakeQuerier{results: []*fakeRows{
		rowsFor(models.CorrelationSchema, c),
		rowsFor(models.CorrelationSchema, &bumped),
	}}
	repo := newCorrelationRepo(q)

	updated, err := repo.UpdateChecked(context.Background(), c.ID, 1, map[string]any{"confidence": 0.9})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Version)

	require.Len(t, q.queries, 2)
	assert.Contains(t, q.queries[1], "WHERE id = $1 AND version = $2")
	assert.Equal(t, c.ID, q.args[1][0])
	assert.Equal(t, 1, q.args[1][1])
}

func TestDelete_ReportsWhetherARowExisted(t *testing.T) {
	q := &fakeQuerier{execTags: []pgconn.CommandTag{
		pgconn.NewCommandTag("DELETE 1"),
		pgconn.NewCommandTag("DELETE 0"),
	}}
	repo := newDatasetRepo(q)

	deleted, err := repo.Delete(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = repo.Delete(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestExists(t *testing.T) {
	q := &fakeQuerier{exists: true}
	repo := newDatasetRepo(q)

	ok, err := repo.Exists(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Contains(t, q.queries[0], "SELECT EXISTS")
}

func TestPaginate_Envelope(t *testing.T) {
	q := &fakeQuerier{total: 25}
	repo := newDatasetRepo(q)

	page, err := repo.Paginate(context.Background(), 2, 10, ListOptions{})
	require.NoError(t, err)

	assert.Equal(t, Pagination{
		Page:    2,
		Limit:   10,
		Total:   25,
		Pages:   3,
		HasNext: true,
		HasPrev: true,
	}, page.Pagination)

	// Count first, then the offset listing.
	require.Len(t, q.queries, 2)
	assert.Contains(t, q.queries[0], "SELECT COUNT(*)")
	assert.Equal(t, []any{10, 10}, q.args[1])
}

func TestPaginate_ClampsPageAndLimit(t *testing.T) {
	q := &fakeQuerier{total: 3}
	repo := newDatasetRepo(q)

	page, err := repo.Paginate(context.Background(), 0, 0, ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Pagination.Page)
	assert.Equal(t, DefaultLimit, page.Pagination.Limit)
	assert.False(t, page.Pagination.HasPrev)
	assert.False(t, page.Pagination.HasNext)
}

func TestSearch_RejectsUnknownField(t *testing.T) {
	q := &fakeQuerier{}
	repo := newDatasetRepo(q)

	_, err := repo.Search(context.Background(), "iot", []string{"name", "secret"}, 10)
	require.ErrorIs(t, err, apperrors.ErrUnknownColumn)
	assert.Empty(t, q.queries)
}

func TestSearch_RanksBySimilarityToFirstField(t *testing.T) {
	q := &fakeQuerier{}
	repo := newDatasetRepo(q)

	_, err := repo.Search(context.Background(), "sensor", []string{"name", "description"}, 10)
	require.NoError(t, err)

	require.Len(t, q.queries, 1)
	assert.Contains(t, q.queries[0], "name::text ILIKE $1 OR description::text ILIKE $1")
	assert.Contains(t, q.queries[0], "ORDER BY similarity(name::text, $2) DESC")
	assert.Equal(t, []any{"%sensor%", "sensor", 10}, q.args[0])
}

func TestTransaction_RoutesStatementsAndCommits(t *testing.T) {
	q := &fakeQuerier{tx: &fakeTx{}}
	repo := newDatasetRepo(q)

	err := repo.Transaction(context.Background(), func(ctx context.Context) error {
		_, err := repo.Delete(ctx, uuid.New())
		return err
	})
	require.NoError(t, err)

	assert.Equal(t, 1, q.begins)
	assert.Equal(t, 1, q.tx.commits)
	assert.Len(t, q.tx.queries, 1, "statements inside the callback go through the transaction")
	assert.Empty(t, q.queries, "the pool itself sees nothing")
}

func TestTransaction_RollsBackOnCallbackError(t *testing.T) {
	q := &fakeQuerier{tx: &fakeTx{}}
	repo := newDatasetRepo(q)

	boom := errors.New("boom")
	err := repo.Transaction(context.Background(), func(context.Context) error { return boom })

	require.ErrorIs(t, err, boom)
	assert.Equal(t, 0, q.tx.commits)
	assert.Equal(t, 1, q.tx.rollbacks)
}

func TestTransaction_JoinsAmbientTransaction(t *testing.T) {
	q := &fakeQuerier{}
	repo := newDatasetRepo(q)
	outer := &fakeTx{}
	ctx := database.WithTx(context.Background(), outer)

	called := false
	err := repo.Transaction(ctx, func(context.Context) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, 0, q.begins, "an ambient transaction is joined, not nested")
	assert.Equal(t, 0, outer.commits, "the outer owner decides the outcome")
}
