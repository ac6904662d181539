package entitlement

import (
	"context"

	"workhub/internal/db"
)

// PgTxManager adapts db.TxManager to the entitlement TxManager contract,
// handing the callback repositories bound to the transaction so every read
// and write inside AttachPlan shares the organization row lock.
type PgTxManager struct {
	txm *db.TxManager
}

// NewPgTxManager wraps a db.TxManager for entitlement use.
func NewPgTxManager(txm *db.TxManager) *PgTxManager {
	return &PgTxManager{txm: txm}
}

// RunInOrgTx implements TxManager.
func (m *PgTxManager) RunInOrgTx(ctx context.Context, orgID int64, fn func(ctx context.Context, assocs AssociationDB, orgs OrgDB) error) error {
	return m.txm.RunInOrgTx(ctx, orgID, func(ctx context.Context, tx db.DBTX) error {
		return fn(ctx, db.NewOrgPlanRepo(tx), db.NewOrganizationRepo(tx))
	})
}

// Compile-time interface assertions.
var (
	_ TxManager     = (*PgTxManager)(nil)
	_ PlanDB        = (*db.PlanRepo)(nil)
	_ AssociationDB = (*db.OrgPlanRepo)(nil)
	_ OrgDB         = (*db.OrganizationRepo)(nil)
)
