package main

import (
	"context"
	"database/sql"
	"time"

	id "firmo/pkg/domain"
	dErrors "firmo/pkg/domain-errors"
	"firmo/pkg/platform/tx"
)

const defaultVerificationTxTimeout = 5 * time.Second

// postgresAtomic implements verification.Atomic over one *sql.DB. The
// transaction travels in ctx, so every store call fn makes joins it, and a
// per-contract advisory lock serializes concurrent completions the same way
// MemoryAtomic's shard mutex does for the in-memory stores.
type postgresAtomic struct {
	db      *sql.DB
	timeout time.Duration
}

func newPostgresAtomic(db *sql.DB) *postgresAtomic {
	return &postgresAtomic{db: db}
}

func (a *postgresAtomic) RunInTx(ctx context.Context, contractID id.ContractID, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := a.timeout
	if timeout == 0 {
		timeout = defaultVerificationTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	dbTx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = dbTx.Rollback()
	}()

	// Two completions on the same contract queue behind each other for the
	// life of the transaction; unrelated contracts never contend.
	if _, err := dbTx.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", contractID.String()); err != nil {
		return err
	}

	if err := fn(tx.WithTx(ctx, dbTx)); err != nil {
		return err
	}
	return dbTx.Commit()
}
