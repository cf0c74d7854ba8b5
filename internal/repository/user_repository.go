package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/duochat/duochat-backend/internal/models"
	"github.com/duochat/duochat-backend/pkg/database"
	"github.com/lib/pq"
)

const userColumns = `id, email, first_name, last_name, role, is_verified, subscription_type,
		       profile_picture, total_video_seconds, created_at, updated_at`

type UserRepository struct {
	db *database.DB
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByID ID로 사용자 찾기
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) || isInvalidUUID(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	return user, nil
}

// FindSummaries returns the public profile of each existing user in ids.
func (r *UserRepository) FindSummaries(ctx context.Context, ids []string) (map[string]models.UserSummary, error) {
	summaries := make(map[string]models.UserSummary, len(ids))
	if len(ids) == 0 {
		return summaries, nil
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE id::text = ANY($1)`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to find users: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		summaries[user.ID] = user.Summary()
	}

	return summaries, rows.Err()
}

// IncrementVideoSeconds 누적 통화 시간 증가
func (r *UserRepository) IncrementVideoSeconds(ctx context.Context, id string, seconds int) error {
	query := `
		UPDATE users
		SET total_video_seconds = total_video_seconds + $1,
		    updated_at = NOW()
		WHERE id = $2
	`

	if _, err := r.db.ExecContext(ctx, query, seconds, id); err != nil {
		return fmt.Errorf("failed to increment video seconds: %w", err)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.FirstName,
		&user.LastName,
		&user.Role,
		&user.IsVerified,
		&user.SubscriptionType,
		&user.ProfilePicture,
		&user.TotalVideoSeconds,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// isInvalidUUID reports whether postgres rejected an id that is not a uuid.
func isInvalidUUID(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "22P02"
}
