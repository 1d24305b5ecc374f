package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/medbrief/internal/core/domain"
)

type ProfileRepository struct {
	db *sql.DB
}

func NewProfileRepository(db *sql.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

func (r *ProfileRepository) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	var role, status string
	err := r.db.QueryRowContext(ctx, `SELECT role, status FROM profiles WHERE id = $1`, userID).Scan(&role, &status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrRecordNotFound, "get profile", fmt.Errorf("id=%s", userID))
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return &domain.Profile{
		ID:     userID,
		Role:   domain.ProfileRole(role),
		Status: domain.AccountStatus(status),
	}, nil
}

func (r *ProfileRepository) ListUsers(ctx context.Context, limit int) ([]domain.AdminUser, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, name, email, role, status, created_at
FROM profiles
ORDER BY created_at DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	out := make([]domain.AdminUser, 0)
	for rows.Next() {
		var user domain.AdminUser
		var role, status string
		var joined time.Time
		if err := rows.Scan(&user.ID, &user.Name, &user.Email, &role, &status, &joined); err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		user.Role = domain.ProfileRole(role)
		user.Status = domain.AccountStatus(status)
		user.JoinedAt = joined.UTC().Format(time.DateOnly)
		out = append(out, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate profiles: %w", err)
	}
	return out, nil
}

func (r *ProfileRepository) SetStatus(ctx context.Context, userID string, status domain.AccountStatus) error {
	res, err := r.db.ExecContext(ctx, `UPDATE profiles SET status = $2 WHERE id = $1`, userID, string(status))
	if err != nil {
		return fmt.Errorf("update profile status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update profile rows affected: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrRecordNotFound, "update profile status", fmt.Errorf("id=%s", userID))
	}
	return nil
}
