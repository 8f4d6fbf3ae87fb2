package contract

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	id "firmo/pkg/domain"
	"firmo/pkg/platform/sentinel"
	txcontext "firmo/pkg/platform/tx"
)

// PostgresStore persists contracts in the contracts table. All statements
// route through the transaction carried in the context when one is present,
// so status writes join the enclosing completion transaction.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const contractColumns = `
	id, contract_number, property_id,
	landlord_id, tenant_id, guarantor_id,
	landlord_email, tenant_email, guarantor_email,
	status, monthly_rent, currency, created_at, updated_at
`

func (s *PostgresStore) Create(ctx context.Context, contract *Contract) error {
	query := `
		INSERT INTO contracts (` + contractColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO NOTHING
	`
	var guarantorID *uuid.UUID
	if contract.HasGuarantor() {
		gid := uuid.UUID(contract.GuarantorID)
		guarantorID = &gid
	}
	res, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(contract.ID),
		contract.ContractNumber,
		uuid.UUID(contract.PropertyID),
		uuid.UUID(contract.LandlordID),
		uuid.UUID(contract.TenantID),
		guarantorID,
		contract.LandlordEmail,
		contract.TenantEmail,
		contract.GuarantorEmail,
		string(contract.Status),
		contract.MonthlyRent,
		contract.Currency,
		contract.CreatedAt,
		contract.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert contract: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert contract rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, contractID id.ContractID) (*Contract, error) {
	query := `SELECT ` + contractColumns + ` FROM contracts WHERE id = $1`
	return s.scanOne(s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(contractID)))
}

// FindByIDForUpdate locks the contract row for the rest of the transaction.
// Concurrent completions on the same contract serialize here, which keeps
// the turn-gate check and the subsequent status write consistent.
func (s *PostgresStore) FindByIDForUpdate(ctx context.Context, contractID id.ContractID) (*Contract, error) {
	query := `SELECT ` + contractColumns + ` FROM contracts WHERE id = $1 FOR UPDATE`
	return s.scanOne(s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(contractID)))
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, contractID id.ContractID, status Status, updatedAt time.Time) error {
	query := `UPDATE contracts SET status = $2, updated_at = $3 WHERE id = $1`
	res, err := s.execer(ctx).ExecContext(ctx, query, uuid.UUID(contractID), string(status), updatedAt)
	if err != nil {
		return fmt.Errorf("update contract status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update contract status rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) scanOne(row *sql.Row) (*Contract, error) {
	var (
		contract    Contract
		contractID  uuid.UUID
		propertyID  uuid.UUID
		landlordID  uuid.UUID
		tenantID    uuid.UUID
		guarantorID *uuid.UUID
		status      string
	)
	err := row.Scan(
		&contractID,
		&contract.ContractNumber,
		&propertyID,
		&landlordID,
		&tenantID,
		&guarantorID,
		&contract.LandlordEmail,
		&contract.TenantEmail,
		&contract.GuarantorEmail,
		&status,
		&contract.MonthlyRent,
		&contract.Currency,
		&contract.CreatedAt,
		&contract.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan contract: %w", err)
	}
	contract.ID = id.ContractID(contractID)
	contract.PropertyID = id.PropertyID(propertyID)
	contract.LandlordID = id.UserID(landlordID)
	contract.TenantID = id.UserID(tenantID)
	if guarantorID != nil {
		contract.GuarantorID = id.UserID(*guarantorID)
	}
	contract.Status = Status(status)
	return &contract, nil
}
