package contract

import (
	"context"
	"time"

	id "firmo/pkg/domain"
)

// Store persists contracts. Implementations return sentinel.ErrNotFound for
// unknown IDs and sentinel.ErrConflict for duplicate creation.
type Store interface {
	Create(ctx context.Context, contract *Contract) error
	FindByID(ctx context.Context, contractID id.ContractID) (*Contract, error)

	// FindByIDForUpdate reads the contract with an exclusive claim for the
	// duration of the enclosing transaction. The Postgres implementation
	// locks the row (SELECT ... FOR UPDATE); the in-memory implementation
	// relies on the transaction runner's per-contract lock.
	FindByIDForUpdate(ctx context.Context, contractID id.ContractID) (*Contract, error)

	// UpdateStatus writes a new status without revalidating the graph; the
	// caller is responsible for checking CanTransition first.
	UpdateStatus(ctx context.Context, contractID id.ContractID, status Status, updatedAt time.Time) error
}
