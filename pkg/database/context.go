package database

import (
	"context"

	"github.com/jackc/pgx/v5"
)

type contextKey string

// txKey is the context key for an in-flight transaction.
const txKey contextKey = "tx"

// WithTx stores a transaction in the context. Repository operations issued
// with the returned context run on that transaction instead of the pool.
func WithTx(ctx context.Context, tx pgx.Tx) context.Context {
	return context.WithValue(ctx, txKey, tx)
}

// TxFrom retrieves the in-flight transaction from context.
// Returns nil and false if none is present.
func TxFrom(ctx context.Context) (pgx.Tx, bool) {
	tx, ok := ctx.Value(txKey).(pgx.Tx)
	return tx, ok
}
