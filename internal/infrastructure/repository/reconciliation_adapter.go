package repository

import (
	"context"

	"github.com/davidleathers/call-reconciliation/internal/service/reconciliation"
)

// BatchStore adapts Store to the driver's transactional seam.
type BatchStore struct {
	*Store
}

// NewBatchStore wraps a store for use by the reconciliation driver.
func NewBatchStore(store *Store) BatchStore {
	return BatchStore{Store: store}
}

// RunInTx implements reconciliation.TxStore.
func (b BatchStore) RunInTx(ctx context.Context, fn func(reconciliation.Store) error) error {
	return b.Store.RunInTx(ctx, func(tx *Store) error {
		return fn(tx)
	})
}
