package workflow

import (
	"context"

	id "firmo/pkg/domain"
)

// Store persists workflow records keyed by property.
type Store interface {
	// FindByProperty returns the workflow for the property, or
	// sentinel.ErrNotFound when none exists yet.
	FindByProperty(ctx context.Context, propertyID id.PropertyID) (*Workflow, error)

	// Save upserts the record. Callers read, mutate, and save inside the
	// enclosing transaction; the coordinator's per-contract serialization
	// protects the progress map from lost updates.
	Save(ctx context.Context, w *Workflow) error
}
