package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"workhub/internal/types"
)

// TxManager runs callbacks inside database transactions. Plan attachment and
// other per-organization mutations go through RunInOrgTx, which serializes
// concurrent writers on the same organization via a row-level lock.
type TxManager struct {
	pool *pgxpool.Pool
}

// NewTxManager creates a TxManager backed by the given connection pool.
func NewTxManager(pool *pgxpool.Pool) *TxManager {
	return &TxManager{pool: pool}
}

// RunInTx executes fn inside a transaction, committing on nil error and
// rolling back otherwise.
func (m *TxManager) RunInTx(ctx context.Context, fn func(ctx context.Context, tx DBTX) error) error {
	tx, err := m.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to begin transaction", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to commit transaction", err)
	}
	return nil
}

// RunInOrgTx executes fn inside a transaction after taking a row-level lock
// on the organization. Two concurrent plan attachments for the same
// organization therefore serialize: the second waits until the first commits
// and then observes its writes. Returns not-found if the organization does
// not exist or is soft-deleted.
func (m *TxManager) RunInOrgTx(ctx context.Context, orgID int64, fn func(ctx context.Context, tx DBTX) error) error {
	return m.RunInTx(ctx, func(ctx context.Context, tx DBTX) error {
		var locked int64
		err := tx.QueryRow(ctx,
			`SELECT id FROM organizations
			 WHERE id = $1 AND deleted_at IS NULL
			 FOR UPDATE`,
			orgID,
		).Scan(&locked)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return types.NewAppError(types.ErrCodeNotFoundOrg, "organization not found", nil)
			}
			return types.NewAppError(types.ErrCodeInternalDB, "failed to lock organization", err)
		}
		return fn(ctx, tx)
	})
}
