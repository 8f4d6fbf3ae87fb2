package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) so services can translate them into domain errors at the edge.
//
// They state facts about resources, not validation failures:
//   - ErrNotFound: contract, session, or invitation does not exist in the store
//   - ErrConflict: a concurrent writer got there first (duplicate key, stale state)
//
// For input validation use pkg/domain-errors directly.
var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)
