package domain

import dErrors "firmo/pkg/domain-errors"

// Role is a domain value identifying which side of a rental contract a user
// signs for. Verification order and turn-taking are decided per role, so the
// value must be one of the supported roles.
//
// Usage: construct via ParseRole at trust boundaries to enforce the
// allowlist; direct casting bypasses validation.
type Role string

// Supported contract party roles, in verification order.
const (
	RoleTenant    Role = "tenant"
	RoleGuarantor Role = "guarantor"
	RoleLandlord  Role = "landlord"
)

// validRoles is the single source of truth for valid party roles.
var validRoles = map[Role]bool{
	RoleTenant:    true,
	RoleGuarantor: true,
	RoleLandlord:  true,
}

// ParseRole constructs a Role from external input.
//
// Errors: returns CodeInvalidInput when the value is empty or unsupported; no
// other errors are expected.
func ParseRole(s string) (Role, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "role cannot be empty")
	}
	r := Role(s)
	if !r.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid role")
	}
	return r, nil
}

// IsValid checks if the role is one of the supported enum values.
func (r Role) IsValid() bool {
	return validRoles[r]
}

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}
