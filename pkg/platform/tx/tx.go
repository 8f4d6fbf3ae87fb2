// Package tx carries an open SQL transaction through a context so stores
// that normally run on the pool join a caller-managed transaction instead.
// The contract-scoped atomic runner opens the transaction and stores under
// it write session, contract, and workflow rows as one commit.
package tx

import (
	"context"
	"database/sql"
)

type ctxKey struct{}

var txKey = ctxKey{}

// WithTx stores a SQL transaction in the context for downstream stores.
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, txKey, tx)
}

// From extracts the SQL transaction from the context if one is present.
// Stores fall back to the pool when it is absent.
func From(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey).(*sql.Tx)
	return tx, ok
}
