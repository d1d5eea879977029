package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/attractor-labs/discovery-engine/pkg/apperrors"
	"github.com/attractor-labs/discovery-engine/pkg/database"
	"github.com/attractor-labs/discovery-engine/pkg/metrics"
	"github.com/attractor-labs/discovery-engine/pkg/models"
)

// Record constrains the pointer type of a repository's entity to the model
// contract.
type Record[T any] interface {
	*T
	models.Entity
}

// Repository is the generic data-access component for one entity table. It
// holds no entity state between calls: every read issues a fresh query and
// constructs new instances. Failures propagate to the caller with added
// context; there is no retry logic.
type Repository[T any, PT Record[T]] struct {
	db      database.Querier
	schema  models.Schema
	logger  *zap.Logger
	metrics *metrics.Repository
	columns string
}

// NewRepository builds a repository for the given schema. The pool, logger
// and metrics are injected; metrics may be nil.
func NewRepository[T any, PT Record[T]](db database.Querier, schema models.Schema, logger *zap.Logger, m *metrics.Repository) *Repository[T, PT] {
	return &Repository[T, PT]{
		db:      db,
		schema:  schema,
		logger:  logger.Named(schema.Table),
		metrics: m,
		columns: strings.Join(schema.Columns, ", "),
	}
}

// Schema exposes the table descriptor to domain repositories.
func (r *Repository[T, PT]) Schema() models.Schema { return r.schema }

// exec resolves the executor: the ambient transaction when one is in the
// context, the pool otherwise.
func (r *Repository[T, PT]) exec(ctx context.Context) database.DBTX {
	if tx, ok := database.TxFrom(ctx); ok {
		return tx
	}
	return r.db
}

// collect scans all rows into freshly constructed entities.
func (r *Repository[T, PT]) collect(rows pgx.Rows) ([]PT, error) {
	recs, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[T])
	if err != nil {
		return nil, err
	}
	out := make([]PT, len(recs))
	for i, rec := range recs {
		out[i] = PT(rec)
	}
	return out, nil
}

// fail observes, logs and wraps a storage error. Validation failures and
// not-found outcomes never come through here.
func (r *Repository[T, PT]) fail(op string, start time.Time, err error, fields ...zap.Field) error {
	r.metrics.Observe(r.schema.Entity, op, start, err)
	fields = append(fields, zap.String("table", r.schema.Table), zap.String("operation", op), zap.Error(err))
	r.logger.Error("repository operation failed", fields...)
	return fmt.Errorf("failed to %s %s: %w", op, r.schema.Entity, err)
}

// ok records a successful (or expectedly empty) operation.
func (r *Repository[T, PT]) ok(op string, start time.Time) {
	r.metrics.Observe(r.schema.Entity, op, start, nil)
}

// FindByID returns the entity with the given id, or nil when no row matches.
func (r *Repository[T, PT]) FindByID(ctx context.Context, id uuid.UUID) (PT, error) {
	const op = "find_by_id"
	start := time.Now()

	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = $1", r.columns, r.schema.Table)
	rows, err := r.exec(ctx).Query(ctx, query, id)
	if err != nil {
		return nil, r.fail(op, start, err, zap.String("id", id.String()))
	}
	rec, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[T])
	if errors.Is(err, pgx.ErrNoRows) {
		r.ok(op, start)
		return nil, nil
	}
	if err != nil {
		return nil, r.fail(op, start, err, zap.String("id", id.String()))
	}
	r.ok(op, start)
	return PT(rec), nil
}

// FindAll lists entities matching opts. Filters are ANDed; ordering defaults
// to created_at descending; limit/offset default to 50/0.
func (r *Repository[T, PT]) FindAll(ctx context.Context, opts ListOptions) ([]PT, error) {
	const op = "find_all"
	start := time.Now()

	where, args, err := whereClause(r.schema, opts.Filters, 1)
	if err != nil {
		return nil, err
	}
	order, err := orderClause(r.schema, opts)
	if err != nil {
		return nil, err
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}
	args = append(args, limit, offset)

	query := fmt.Sprintf("SELECT %s FROM %s%s%s LIMIT $%d OFFSET $%d",
		r.columns, r.schema.Table, where, order, len(args)-1, len(args))
	rows, err := r.exec(ctx).Query(ctx, query, args...)
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

// Create validates the entity and inserts every schema column. The identity
// comes from the application layer, never from storage. The returned entity
// is reconstructed from the stored row. Validation failure aborts before any
// I/O.
func (r *Repository[T, PT]) Create(ctx context.Context, entity PT) (PT, error) {
	const op = "create"
	start := time.Now()

	if err := entity.Validate(); err != nil {
		return nil, err
	}

	row := entity.Row()
	placeholders := make([]string, len(r.schema.Columns))
	args := make([]any, len(r.schema.Columns))
	for i, col := range r.schema.Columns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = row[col]
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
		r.schema.Table, r.columns, strings.Join(placeholders, ", "), r.columns)

	rows, err := r.exec(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, r.createErr(op, start, entity, err)
	}
	created, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[T])
	if err != nil {
		return nil, r.createErr(op, start, entity, err)
	}
	r.ok(op, start)
	return PT(created), nil
}

func (r *Repository[T, PT]) createErr(op string, start time.Time, entity PT, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		r.ok(op, start)
		return fmt.Errorf("%s %s: %w", r.schema.Entity, entity.EntityID(), apperrors.ErrConflict)
	}
	return r.fail(op, start, err, zap.String("id", entity.EntityID().String()))
}

// Update fetches the row, applies the patch, validates, and rewrites every
// schema column. This is a read-modify-write: two concurrent updates of the
// same id can lose one write. Callers needing atomicity use UpdateChecked or
// wrap the call in Transaction.
func (r *Repository[T, PT]) Update(ctx context.Context, id uuid.UUID, patch map[string]any) (PT, error) {
	const op = "update"
	start := time.Now()

	existing, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, fmt.Errorf("%s %s: %w", r.schema.Entity, id, apperrors.ErrNotFound)
	}

	existing.ApplyPatch(patch)
	if err := existing.Validate(); err != nil {
		return nil, err
	}

	query, args := r.updateQuery(existing, "id = $1", id)
	rows, err := r.exec(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, r.fail(op, start, err, zap.String("id", id.String()))
	}
	updated, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[T])
	if errors.Is(err, pgx.ErrNoRows) {
		// Row deleted between the read and the write.
		return nil, fmt.Errorf("%s %s: %w", r.schema.Entity, id, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, r.fail(op, start, err, zap.String("id", id.String()))
	}
	r.ok(op, start)
	return PT(updated), nil
}

// UpdateChecked is the optimistic variant of Update for schemas that carry a
// version column. The rewrite only applies when the stored version still
// equals expectedVersion, and the entity's version is bumped to
// expectedVersion+1. A stale version yields ErrVersionStale.
func (r *Repository[T, PT]) UpdateChecked(ctx context.Context, id uuid.UUID, expectedVersion int, patch map[string]any) (PT, error) {
	const op = "update_checked"
	start := time.Now()

	if !r.schema.HasColumn("version") {
		return nil, fmt.Errorf("%s has no version column: %w", r.schema.Entity, apperrors.ErrUnknownColumn)
	}

	existing, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, fmt.Errorf("%s %s: %w", r.schema.Entity, id, apperrors.ErrNotFound)
	}
	if v, _ := existing.Row()["version"].(int); v != expectedVersion {
		return nil, fmt.Errorf("%s %s: have version %d, expected %d: %w",
			r.schema.Entity, id, v, expectedVersion, apperrors.ErrVersionStale)
	}

	existing.ApplyPatch(patch)
	existing.ApplyPatch(map[string]any{"version": expectedVersion + 1})
	if err := existing.Validate(); err != nil {
		return nil, err
	}

	query, args := r.updateQuery(existing, "id = $1 AND version = $2", id, expectedVersion)
	rows, err := r.exec(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, r.fail(op, start, err, zap.String("id", id.String()))
	}
	updated, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[T])
	if errors.Is(err, pgx.ErrNoRows) {
		// Lost the race between the read and the conditional write.
		return nil, fmt.Errorf("%s %s: %w", r.schema.Entity, id, apperrors.ErrVersionStale)
	}
	if err != nil {
		return nil, r.fail(op, start, err, zap.String("id", id.String()))
	}
	r.ok(op, start)
	return PT(updated), nil
}

// updateQuery renders a full-row UPDATE. The WHERE condition's bound values
// come first so SET placeholders start after them.
func (r *Repository[T, PT]) updateQuery(entity PT, condition string, conditionArgs ...any) (string, []any) {
	row := entity.Row()
	args := append([]any{}, conditionArgs...)
	assignments := make([]string, 0, len(r.schema.Columns)-1)
	for _, col := range r.schema.Columns {
		if col == "id" {
			continue
		}
		args = append(args, row[col])
		assignments = append(assignments, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s RETURNING %s",
		r.schema.Table, strings.Join(assignments, ", "), condition, r.columns)
	return query, args
}

// Delete hard-deletes by id. Returns false, not an error, when no row
// existed. Domain repositories expose soft-delete transitions where rows
// must survive.
func (r *Repository[T, PT]) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	const op = "delete"
	start := time.Now()

	query := fmt.Sprintf("DELETE FROM %s WHERE id = $1", r.schema.Table)
	tag, err := r.exec(ctx).Exec(ctx, query, id)
	if err != nil {
		return false, r.fail(op, start, err, zap.String("id", id.String()))
	}
	r.ok(op, start)
	return tag.RowsAffected() > 0, nil
}

// Count counts rows matching the filters. Order, limit and offset do not
// apply.
func (r *Repository[T, PT]) Count(ctx context.Context, filters []Filter) (int, error) {
	const op = "count"
	start := time.Now()

	where, args, err := whereClause(r.schema, filters, 1)
	if err != nil {
		return 0, err
	}
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s%s", r.schema.Table, where)

	var total int
	if err := r.exec(ctx).QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, r.fail(op, start, err)
	}
	r.ok(op, start)
	return total, nil
}

// Exists reports whether a row with the given id exists.
func (r *Repository[T, PT]) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	const op = "exists"
	start := time.Now()

	query := fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM %s WHERE id = $1)", r.schema.Table)
	var exists bool
	if err := r.exec(ctx).QueryRow(ctx, query, id).Scan(&exists); err != nil {
		return false, r.fail(op, start, err, zap.String("id", id.String()))
	}
	r.ok(op, start)
	return exists, nil
}

// FindMany batch-fetches by id. Result order is whatever the storage
// returns. Missing ids are silently absent.
func (r *Repository[T, PT]) FindMany(ctx context.Context, ids []uuid.UUID) ([]PT, error) {
	const op = "find_many"
	start := time.Now()

	if len(ids) == 0 {
		return []PT{}, nil
	}
	idStrs := make([]string, len(ids))
	for i, id := range ids {
		idStrs[i] = id.String()
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ANY($1::uuid[])", r.columns, r.schema.Table)
	rows, err := r.exec(ctx).Query(ctx, query, idStrs)
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

// CreateMany validates every entity up front and rejects the whole batch on
// the first invalid item, before any insert is attempted. On success all
// rows go in through a single multi-row INSERT.
func (r *Repository[T, PT]) CreateMany(ctx context.Context, entities []PT) ([]PT, error) {
	const op = "create_many"
	start := time.Now()

	if len(entities) == 0 {
		return nil, apperrors.ErrEmptyBatch
	}
	for i, entity := range entities {
		if err := entity.Validate(); err != nil {
			return nil, fmt.Errorf("batch item %d: %w", i, err)
		}
	}

	width := len(r.schema.Columns)
	placeholders := make([]string, len(entities))
	args := make([]any, 0, len(entities)*width)
	for i, entity := range entities {
		row := entity.Row()
		cells := make([]string, width)
		for j, col := range r.schema.Columns {
			args = append(args, row[col])
			cells[j] = fmt.Sprintf("$%d", len(args))
		}
		placeholders[i] = "(" + strings.Join(cells, ", ") + ")"
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s RETURNING %s",
		r.schema.Table, r.columns, strings.Join(placeholders, ", "), r.columns)

	rows, err := r.exec(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, r.fail(op, start, err, zap.Int("batch_size", len(entities)))
	}
	out, err := r.collect(rows)
	if err != nil {
		return nil, r.fail(op, start, err, zap.Int("batch_size", len(entities)))
	}
	r.ok(op, start)
	return out, nil
}

// Paginate composes FindAll and Count into a page envelope.
func (r *Repository[T, PT]) Paginate(ctx context.Context, page, limit int, opts ListOptions) (*Page[PT], error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	total, err := r.Count(ctx, opts.Filters)
	if err != nil {
		return nil, err
	}

	opts.Limit = limit
	opts.Offset = (page - 1) * limit
	data, err := r.FindAll(ctx, opts)
	if err != nil {
		return nil, err
	}

	pages := (total + limit - 1) / limit
	return &Page[PT]{
		Data: data,
		Pagination: Pagination{
			Page:    page,
			Limit:   limit,
			Total:   total,
			Pages:   pages,
			HasNext: page < pages,
			HasPrev: page > 1,
		},
	}, nil
}

// Search does a case-insensitive substring match OR-ed across fields, ranked
// by trigram similarity to the first field. Fields must be declared columns.
func (r *Repository[T, PT]) Search(ctx context.Context, term string, fields []string, limit int) ([]PT, error) {
	const op = "search"
	start := time.Now()

	if len(fields) == 0 {
		return nil, fmt.Errorf("%s search: no fields given", r.schema.Entity)
	}
	conditions := make([]string, len(fields))
	for i, field := range fields {
		if !r.schema.HasColumn(field) {
			return nil, fmt.Errorf("%s search field %q: %w", r.schema.Entity, field, apperrors.ErrUnknownColumn)
		}
		conditions[i] = fmt.Sprintf("%s::text ILIKE $1", field)
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	query := fmt.Sprintf(
		"SELECT %s FROM %s WHERE %s ORDER BY similarity(%s::text, $2) DESC LIMIT $3",
		r.columns, r.schema.Table, strings.Join(conditions, " OR "), fields[0])
	rows, err := r.exec(ctx).Query(ctx, query, "%"+term+"%", term, limit)
	if err != nil {
		return nil, r.fail(op, start, err, zap.String("term", term))
	}
	out, err := r.collect(rows)
	if err != nil {
		return nil, r.fail(op, start, err, zap.String("term", term))
	}
	r.ok(op, start)
	return out, nil
}

// Transaction runs fn with a transaction in the context; every repository
// call made with that context shares the transaction. fn returning an error
// rolls everything back; otherwise the transaction commits. When the context
// already carries a transaction, fn simply joins it.
func (r *Repository[T, PT]) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := database.TxFrom(ctx); ok {
		return fn(ctx)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback on defer is best-effort

	if err := fn(database.WithTx(ctx, tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
