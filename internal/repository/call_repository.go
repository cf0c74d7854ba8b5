package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/duochat/duochat-backend/internal/models"
	"github.com/duochat/duochat-backend/pkg/database"
)

const callColumns = `id, caller_id, callee_id, started_at, ended_at, status,
		       duration_seconds, metadata, created_at, updated_at`

// CallRepository is the Postgres call ledger.
type CallRepository struct {
	db *database.DB
}

func NewCallRepository(db *database.DB) *CallRepository {
	return &CallRepository{db: db}
}

// CreateCall 통화 기록 생성
func (r *CallRepository) CreateCall(ctx context.Context, p models.CreateCallParams) (*models.Call, error) {
	metadata, err := json.Marshal(p.Metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal call metadata: %w", err)
	}

	query := `
		INSERT INTO calls (caller_id, callee_id, started_at, status, metadata)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + callColumns

	call, err := scanCall(r.db.QueryRowContext(ctx, query,
		p.CallerID, p.CalleeID, p.StartedAt, p.Status, metadata))
	if err != nil {
		return nil, fmt.Errorf("failed to create call: %w", err)
	}

	return call, nil
}

// FinishCall ends an active call. A missing or already terminal call yields
// nil, nil so only one caller ever finalises it.
func (r *CallRepository) FinishCall(ctx context.Context, callID string, endedAt time.Time, durationSeconds int) (*models.Call, error) {
	query := `
		UPDATE calls
		SET status = 'ended',
		    ended_at = $1,
		    duration_seconds = $2,
		    updated_at = NOW()
		WHERE id = $3 AND status = 'active'
		RETURNING ` + callColumns

	call, err := scanCall(r.db.QueryRowContext(ctx, query, endedAt, durationSeconds, callID))
	if errors.Is(err, sql.ErrNoRows) || isInvalidUUID(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to finish call: %w", err)
	}

	return call, nil
}

// MarkCancelled 활성 통화를 취소 상태로 변경
func (r *CallRepository) MarkCancelled(ctx context.Context, callID string) error {
	query := `
		UPDATE calls
		SET status = 'cancelled', ended_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'active'
	`

	if _, err := r.db.ExecContext(ctx, query, callID); err != nil {
		return fmt.Errorf("failed to cancel call: %w", err)
	}

	return nil
}

// FindCallByID ID로 통화 찾기
func (r *CallRepository) FindCallByID(ctx context.Context, callID string) (*models.Call, error) {
	query := `SELECT ` + callColumns + ` FROM calls WHERE id = $1`

	call, err := scanCall(r.db.QueryRowContext(ctx, query, callID))
	if errors.Is(err, sql.ErrNoRows) || isInvalidUUID(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find call: %w", err)
	}

	return call, nil
}

// ListCallsForUser 사용자의 최근 통화 목록
func (r *CallRepository) ListCallsForUser(ctx context.Context, userID string, limit int) ([]*models.Call, error) {
	query := `
		SELECT ` + callColumns + `
		FROM calls
		WHERE caller_id = $1 OR callee_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		if isInvalidUUID(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list calls: %w", err)
	}
	defer rows.Close()

	calls := []*models.Call{}
	for rows.Next() {
		call, err := scanCall(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan call: %w", err)
		}
		calls = append(calls, call)
	}

	return calls, rows.Err()
}

func scanCall(row rowScanner) (*models.Call, error) {
	call := &models.Call{}
	var (
		endedAt  sql.NullTime
		metadata []byte
	)

	err := row.Scan(
		&call.ID,
		&call.CallerID,
		&call.CalleeID,
		&call.StartedAt,
		&endedAt,
		&call.Status,
		&call.DurationSeconds,
		&metadata,
		&call.CreatedAt,
		&call.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if endedAt.Valid {
		call.EndedAt = &endedAt.Time
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &call.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal call metadata: %w", err)
		}
	}

	return call, nil
}
