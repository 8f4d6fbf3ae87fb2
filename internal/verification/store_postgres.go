package verification

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	id "firmo/pkg/domain"
	"firmo/pkg/platform/sentinel"
	txcontext "firmo/pkg/platform/tx"
)

// PostgresStore persists sessions in the verification_sessions table. Raw
// analyzer snapshots live in a jsonb column; statements route through the
// context transaction when one is present.
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

const sessionColumns = `
	id, contract_id, party_id, role, status,
	face_front_key, face_side_key, document_key, combined_key, voice_key,
	analysis,
	face_score, document_score, voice_score, combined_score,
	coherence_flag, overall_confidence,
	device_label, client_ip,
	created_at, expires_at, completed_at, integrity_hash
`

func (s *PostgresStore) Create(ctx context.Context, session *Session) error {
	query := `
		INSERT INTO verification_sessions (` + sessionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
		        $15, $16, $17, $18, $19, $20, $21, $22, $23)
		ON CONFLICT (id) DO NOTHING
	`
	analysis, err := json.Marshal(session.Analysis)
	if err != nil {
		return fmt.Errorf("marshal session analysis: %w", err)
	}
	res, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(session.ID),
		uuid.UUID(session.ContractID),
		uuid.UUID(session.PartyID),
		session.Role.String(),
		string(session.Status),
		session.FaceFrontKey,
		session.FaceSideKey,
		session.DocumentKey,
		session.CombinedKey,
		session.VoiceKey,
		analysis,
		session.FaceScore,
		session.DocumentScore,
		session.VoiceScore,
		session.CombinedScore,
		session.CoherenceFlag,
		session.OverallConfidence,
		session.DeviceLabel,
		session.ClientIP,
		session.CreatedAt,
		session.ExpiresAt,
		session.CompletedAt,
		session.IntegrityHash,
	)
	if err != nil {
		return fmt.Errorf("insert verification session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert verification session rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, sessionID id.SessionID) (*Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM verification_sessions WHERE id = $1`
	return s.scanOne(s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(sessionID)))
}

func (s *PostgresStore) FindActiveByContractAndParty(ctx context.Context, contractID id.ContractID, partyID id.UserID, now time.Time) (*Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM verification_sessions
		WHERE contract_id = $1 AND party_id = $2
		  AND status IN ('pending', 'in_progress')
		  AND expires_at > $3
		ORDER BY created_at DESC
		LIMIT 1
	`
	return s.scanOne(s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(contractID), uuid.UUID(partyID), now))
}

func (s *PostgresStore) Update(ctx context.Context, session *Session) error {
	query := `
		UPDATE verification_sessions SET
			status = $2,
			face_front_key = $3, face_side_key = $4, document_key = $5,
			combined_key = $6, voice_key = $7,
			analysis = $8,
			face_score = $9, document_score = $10, voice_score = $11,
			combined_score = $12, coherence_flag = $13, overall_confidence = $14,
			completed_at = $15, integrity_hash = $16
		WHERE id = $1
	`
	analysis, err := json.Marshal(session.Analysis)
	if err != nil {
		return fmt.Errorf("marshal session analysis: %w", err)
	}
	res, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(session.ID),
		string(session.Status),
		session.FaceFrontKey,
		session.FaceSideKey,
		session.DocumentKey,
		session.CombinedKey,
		session.VoiceKey,
		analysis,
		session.FaceScore,
		session.DocumentScore,
		session.VoiceScore,
		session.CombinedScore,
		session.CoherenceFlag,
		session.OverallConfidence,
		session.CompletedAt,
		session.IntegrityHash,
	)
	if err != nil {
		return fmt.Errorf("update verification session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update verification session rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) scanOne(row *sql.Row) (*Session, error) {
	var (
		session     Session
		sessionID   uuid.UUID
		contractID  uuid.UUID
		partyID     uuid.UUID
		role        string
		status      string
		analysis    []byte
		completedAt sql.NullTime
	)
	err := row.Scan(
		&sessionID,
		&contractID,
		&partyID,
		&role,
		&status,
		&session.FaceFrontKey,
		&session.FaceSideKey,
		&session.DocumentKey,
		&session.CombinedKey,
		&session.VoiceKey,
		&analysis,
		&session.FaceScore,
		&session.DocumentScore,
		&session.VoiceScore,
		&session.CombinedScore,
		&session.CoherenceFlag,
		&session.OverallConfidence,
		&session.DeviceLabel,
		&session.ClientIP,
		&session.CreatedAt,
		&session.ExpiresAt,
		&completedAt,
		&session.IntegrityHash,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan verification session: %w", err)
	}
	if len(analysis) > 0 {
		if err := json.Unmarshal(analysis, &session.Analysis); err != nil {
			return nil, fmt.Errorf("unmarshal session analysis: %w", err)
		}
	}
	session.ID = id.SessionID(sessionID)
	session.ContractID = id.ContractID(contractID)
	session.PartyID = id.UserID(partyID)
	session.Role = id.Role(role)
	session.Status = Status(status)
	if completedAt.Valid {
		at := completedAt.Time
		session.CompletedAt = &at
	}
	return &session, nil
}
