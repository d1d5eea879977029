package repositories

import (
	"context"
	"reflect"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/attractor-labs/discovery-engine/pkg/database"
	"github.com/attractor-labs/discovery-engine/pkg/models"
)

// fakeQuerier records every statement it receives. Query hands out prepared
// fakeRows in order and falls back to an empty result set.
type fakeQuerier struct {
	queries  []string
	args     [][]any
	results  []*fakeRows
	execTags []pgconn.CommandTag
	total    int
	exists   bool
	begins   int
	tx       *fakeTx
}

func (q *fakeQuerier) record(sql string, args []any) {
	q.queries = append(q.queries, sql)
	q.args = append(q.args, args)
}

func (q *fakeQuerier) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	q.record(sql, args)
	if len(q.results) > 0 {
		r := q.results[0]
		q.results = q.results[1:]
		return r, nil
	}
	return &fakeRows{}, nil
}

func (q *fakeQuerier) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	q.record(sql, args)
	if len(q.execTags) > 0 {
		tag := q.execTags[0]
		q.execTags = q.execTags[1:]
		return tag, nil
	}
	return pgconn.NewCommandTag(""), nil
}

func (q *fakeQuerier) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	q.record(sql, args)
	return scanFunc(func(dest ...any) error {
		for _, d := range dest {
			switch p := d.(type) {
			case *int:
				*p = q.total
			case *bool:
				*p = q.exists
			}
		}
		return nil
	})
}

func (q *fakeQuerier) Begin(context.Context) (pgx.Tx, error) {
	q.begins++
	if q.tx == nil {
		q.tx = &fakeTx{}
	}
	return q.tx, nil
}

type scanFunc func(dest ...any) error

func (f scanFunc) Scan(dest ...any) error { return f(dest...) }

// fakeRows feeds pgx's row collectors from in-memory values. Scan assigns by
// position with reflection, so the stored values must already carry the
// destination field's type.
type fakeRows struct {
	fields []pgconn.FieldDescription
	data   [][]any
	idx    int
	closed bool
}

// rowsFor snapshots entities into a result set laid out by the schema's
// column order.
func rowsFor(schema models.Schema, entities ...models.Entity) *fakeRows {
	fr := &fakeRows{}
	for _, col := range schema.Columns {
		fr.fields = append(fr.fields, pgconn.FieldDescription{Name: col})
	}
	for _, e := range entities {
		row := e.Row()
		vals := make([]any, len(schema.Columns))
		for i, col := range schema.Columns {
			vals[i] = row[col]
		}
		fr.data = append(fr.data, vals)
	}
	return fr
}

func (r *fakeRows) Close()                                       { r.closed = true }
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return r.fields }
func (r *fakeRows) Values() ([]any, error)                       { return r.data[r.idx-1], nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	if r.idx >= len(r.data) {
		return false
	}
	r.idx++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.data[r.idx-1]
	for i, d := range dest {
		rv := reflect.ValueOf(row[i])
		if !rv.IsValid() {
			continue
		}
		reflect.ValueOf(d).Elem().Set(rv)
	}
	return nil
}

// fakeTx satisfies pgx.Tx. The statement surface records like fakeQuerier;
// the batch and copy surfaces are never reached by repositories.
type fakeTx struct {
	fakeQuerier
	commits   int
	rollbacks int
}

func (t *fakeTx) Begin(context.Context) (pgx.Tx, error) { return t, nil }

func (t *fakeTx) Commit(context.Context) error {
	t.commits++
	return nil
}

func (t *fakeTx) Rollback(context.Context) error {
	t.rollbacks++
	return nil
}

func (t *fakeTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	panic("CopyFrom not expected")
}

func (t *fakeTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults {
	panic("SendBatch not expected")
}

func (t *fakeTx) LargeObjects() pgx.LargeObjects { return pgx.LargeObjects{} }

func (t *fakeTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	panic("Prepare not expected")
}

func (t *fakeTx) Conn() *pgx.Conn { return nil }

var (
	_ database.Querier = (*fakeQuerier)(nil)
	_ pgx.Tx           = (*fakeTx)(nil)
	_ pgx.Rows         = (*fakeRows)(nil)
)
