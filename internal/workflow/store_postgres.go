package workflow

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	id "firmo/pkg/domain"
	"firmo/pkg/platform/sentinel"
	txcontext "firmo/pkg/platform/tx"
)

// PostgresStore persists workflows in the property_workflows table. The
// progress map is stored as jsonb and read-modified-written under the
// enclosing transaction.
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

func (s *PostgresStore) FindByProperty(ctx context.Context, propertyID id.PropertyID) (*Workflow, error) {
	query := `
		SELECT property_id, workflow_status, workflow_data, updated_at
		FROM property_workflows
		WHERE property_id = $1
	`
	var (
		w         Workflow
		pid       uuid.UUID
		status    string
		dataBytes []byte
	)
	err := s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(propertyID)).
		Scan(&pid, &status, &dataBytes, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("query workflow: %w", err)
	}

	w.PropertyID = id.PropertyID(pid)
	w.Status = Status(status)
	if len(dataBytes) > 0 {
		if err := json.Unmarshal(dataBytes, &w.Data); err != nil {
			return nil, fmt.Errorf("decode workflow data: %w", err)
		}
	}
	if w.Data.BiometricProgress == nil {
		w.Data.BiometricProgress = make(map[id.Role]RoleProgress)
	}
	return &w, nil
}

func (s *PostgresStore) Save(ctx context.Context, w *Workflow) error {
	dataBytes, err := json.Marshal(w.Data)
	if err != nil {
		return fmt.Errorf("encode workflow data: %w", err)
	}
	query := `
		INSERT INTO property_workflows (property_id, workflow_status, workflow_data, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (property_id) DO UPDATE SET
			workflow_status = EXCLUDED.workflow_status,
			workflow_data = EXCLUDED.workflow_data,
			updated_at = EXCLUDED.updated_at
	`
	if _, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(w.PropertyID),
		string(w.Status),
		dataBytes,
		w.UpdatedAt,
	); err != nil {
		return fmt.Errorf("upsert workflow: %w", err)
	}
	return nil
}
