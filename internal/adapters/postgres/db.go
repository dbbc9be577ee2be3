package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx
type querier interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, arguments ...interface{}) pgx.Row
}

// DBExecutor runs repository statements against a pgx pool
type DBExecutor struct {
	pool *pgxpool.Pool
}

// NewDBExecutor wraps pool for the repositories
func NewDBExecutor(pool *pgxpool.Pool) *DBExecutor {
	return &DBExecutor{pool: pool}
}

func (db *DBExecutor) conn() querier {
	return db.pool
}

// lockingTxOptions keeps callback and refund row locks in read committed so a
// blocked SELECT ... FOR UPDATE sees the winner's committed state.
var lockingTxOptions = pgx.TxOptions{IsoLevel: pgx.ReadCommitted}

// InTx runs fn in a transaction. fn returning an error or panicking rolls back.
func (db *DBExecutor) InTx(ctx context.Context, fn func(q querier) error) error {
	return pgx.BeginTxFunc(ctx, db.pool, lockingTxOptions, func(tx pgx.Tx) error {
		return fn(tx)
	})
}
