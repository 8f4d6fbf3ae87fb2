package contract

import (
	"context"
	"time"

	"github.com/google/uuid"

	id "firmo/pkg/domain"
)

// Fixed IDs for the seeded development contract so local tokens and API
// calls can reference stable values.
var (
	SeedContractID  = id.ContractID(uuid.MustParse("11111111-1111-1111-1111-111111111111"))
	SeedPropertyID  = id.PropertyID(uuid.MustParse("22222222-2222-2222-2222-222222222222"))
	SeedTenantID    = id.UserID(uuid.MustParse("33333333-3333-3333-3333-333333333333"))
	SeedLandlordID  = id.UserID(uuid.MustParse("44444444-4444-4444-4444-444444444444"))
	SeedGuarantorID = id.UserID(uuid.MustParse("55555555-5555-5555-5555-555555555555"))
)

// SeedDevContract creates one contract ready for verification. Used when the
// process runs on in-memory stores.
func SeedDevContract(store *InMemoryStore) *Contract {
	now := time.Now()
	c := &Contract{
		ID:             SeedContractID,
		ContractNumber: "CT-2025-000001",
		PropertyID:     SeedPropertyID,
		LandlordID:     SeedLandlordID,
		TenantID:       SeedTenantID,
		GuarantorID:    SeedGuarantorID,
		LandlordEmail:  "landlord@example.test",
		TenantEmail:    "tenant@example.test",
		GuarantorEmail: "guarantor@example.test",
		Status:         StatusReadyForAuthentication,
		MonthlyRent:    125000,
		Currency:       "EUR",
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	_ = store.Create(context.Background(), c)
	return c
}
