package invitation

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

// PostgresStore persists invitations in the invitations table. A partial
// unique index on (contract_id, invitee_email) over active rows makes the
// insert race-free; the losing insert reports a conflict.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const invitationColumns = `
	id, contract_id, inviter_id, invitee_email, role, message,
	token_hash, status, created_at, expires_at, accepted_at
`

func (s *PostgresStore) Create(ctx context.Context, inv *Invitation) error {
	// The partial unique index sees status, not expiry. Mark invitations that
	// lapsed unredeemed as expired first, so a fresh invite can claim the
	// pair's slot the way the in-memory store allows.
	expire := `
		UPDATE invitations SET status = 'expired'
		WHERE contract_id = $1 AND invitee_email = $2
		  AND status IN ('pending', 'sent')
		  AND expires_at <= $3
	`
	if _, err := s.execer(ctx).ExecContext(ctx, expire,
		uuid.UUID(inv.ContractID), inv.InviteeEmail, inv.CreatedAt,
	); err != nil {
		return fmt.Errorf("expire stale invitations: %w", err)
	}

	query := `
		INSERT INTO invitations (` + invitationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (contract_id, invitee_email) WHERE status IN ('pending', 'sent')
		DO NOTHING
	`
	res, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(inv.ID),
		uuid.UUID(inv.ContractID),
		uuid.UUID(inv.InviterID),
		inv.InviteeEmail,
		inv.Role.String(),
		inv.Message,
		inv.TokenHash,
		string(inv.Status),
		inv.CreatedAt,
		inv.ExpiresAt,
		inv.AcceptedAt,
	)
	if err != nil {
		return fmt.Errorf("insert invitation: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert invitation rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, invitationID id.InvitationID) (*Invitation, error) {
	query := `SELECT ` + invitationColumns + ` FROM invitations WHERE id = $1`
	return s.scanOne(s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(invitationID)))
}

func (s *PostgresStore) FindActive(ctx context.Context, contractID id.ContractID, email string, now time.Time) (*Invitation, error) {
	query := `
		SELECT ` + invitationColumns + `
		FROM invitations
		WHERE contract_id = $1 AND invitee_email = $2
		  AND status IN ('pending', 'sent')
		  AND expires_at > $3
		ORDER BY created_at DESC
		LIMIT 1
	`
	return s.scanOne(s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(contractID), email, now))
}

func (s *PostgresStore) FindByContract(ctx context.Context, contractID id.ContractID) ([]*Invitation, error) {
	query := `
		SELECT ` + invitationColumns + `
		FROM invitations
		WHERE contract_id = $1
		ORDER BY created_at ASC
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query, uuid.UUID(contractID))
	if err != nil {
		return nil, fmt.Errorf("query invitations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*Invitation
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate invitations: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Update(ctx context.Context, inv *Invitation) error {
	query := `
		UPDATE invitations SET
			status = $2, message = $3, expires_at = $4, accepted_at = $5
		WHERE id = $1
	`
	res, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(inv.ID),
		string(inv.Status),
		inv.Message,
		inv.ExpiresAt,
		inv.AcceptedAt,
	)
	if err != nil {
		return fmt.Errorf("update invitation: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update invitation rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *PostgresStore) scanOne(row *sql.Row) (*Invitation, error) {
	inv, err := scanInvitation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	return inv, nil
}

func scanInvitation(row rowScanner) (*Invitation, error) {
	var (
		inv          Invitation
		invitationID uuid.UUID
		contractID   uuid.UUID
		inviterID    uuid.UUID
		role         string
		status       string
		acceptedAt   sql.NullTime
	)
	err := row.Scan(
		&invitationID,
		&contractID,
		&inviterID,
		&inv.InviteeEmail,
		&role,
		&inv.Message,
		&inv.TokenHash,
		&status,
		&inv.CreatedAt,
		&inv.ExpiresAt,
		&acceptedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan invitation: %w", err)
	}
	inv.ID = id.InvitationID(invitationID)
	inv.ContractID = id.ContractID(contractID)
	inv.InviterID = id.UserID(inviterID)
	inv.Role = id.Role(role)
	inv.Status = Status(status)
	if acceptedAt.Valid {
		at := acceptedAt.Time
		inv.AcceptedAt = &at
	}
	return &inv, nil
}
