// Package workflow models the signing-workflow record that mirrors a
// contract's biometric phase. The record is keyed by property, not by
// contract ID, so the two aggregates are linked loosely and can drift; the
// progression coordinator writes both inside one transaction to keep them
// aligned.
package workflow

import (
	"time"

	id "firmo/pkg/domain"
)

// Status mirrors the contract's biometric phase on the workflow side.
type Status string

const (
	StatusPendingTenant    Status = "biometric_pending_tenant"
	StatusPendingGuarantor Status = "biometric_pending_guarantor"
	StatusPendingLandlord  Status = "biometric_pending_landlord"

	// StatusCompleted is the terminal value set when the contract activates.
	StatusCompleted Status = "biometrics_completed"

	// StatusHeld marks a workflow whose contract was parked in the fail-safe
	// phase; a human resolves it.
	StatusHeld Status = "biometrics_held"
)

// RoleProgress records one role's completion. Entries are append-only.
type RoleProgress struct {
	Completed   bool      `json:"completed"`
	CompletedAt time.Time `json:"completed_at"`
}

// Data is the free-form payload carried by the workflow record. Only the
// biometric progress map is modeled here; other engines own their own keys.
type Data struct {
	BiometricProgress map[id.Role]RoleProgress `json:"biometric_progress"`
}

// Workflow is the per-property signing workflow record.
type Workflow struct {
	PropertyID id.PropertyID `json:"property_id"`
	Status     Status        `json:"workflow_status"`
	Data       Data          `json:"workflow_data"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

// New returns an empty workflow for a property.
func New(propertyID id.PropertyID) *Workflow {
	return &Workflow{
		PropertyID: propertyID,
		Data:       Data{BiometricProgress: make(map[id.Role]RoleProgress)},
	}
}

// AppendProgress records a role's completion. The map is additive: an entry
// already present is never overwritten, so replays and races cannot erase an
// earlier completion timestamp.
func (w *Workflow) AppendProgress(role id.Role, completedAt time.Time) {
	if w.Data.BiometricProgress == nil {
		w.Data.BiometricProgress = make(map[id.Role]RoleProgress)
	}
	if _, exists := w.Data.BiometricProgress[role]; exists {
		return
	}
	w.Data.BiometricProgress[role] = RoleProgress{Completed: true, CompletedAt: completedAt}
}

// Completed reports whether the given role's biometrics are recorded complete.
func (w *Workflow) Completed(role id.Role) bool {
	p, ok := w.Data.BiometricProgress[role]
	return ok && p.Completed
}
