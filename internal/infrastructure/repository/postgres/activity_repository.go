package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kirillkom/medbrief/internal/core/domain"
)

type ActivityRepository struct {
	db *sql.DB
}

func NewActivityRepository(db *sql.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

func (r *ActivityRepository) Append(ctx context.Context, entry domain.ActivityEntry) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO activity_logs (id, user_id, record_id, action, details, status, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`,
		entry.ID, nullString(entry.UserID), nullString(entry.RecordID), entry.Action, entry.Details,
		string(entry.Status), entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert activity log: %w", err)
	}
	return nil
}

func (r *ActivityRepository) Recent(ctx context.Context, limit int) ([]domain.ActivityEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, user_id, record_id, action, details, status, created_at
FROM activity_logs
ORDER BY created_at DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list activity logs: %w", err)
	}
	defer rows.Close()

	out := make([]domain.ActivityEntry, 0)
	for rows.Next() {
		var entry domain.ActivityEntry
		var userID, recordID sql.NullString
		var status string
		if err := rows.Scan(&entry.ID, &userID, &recordID, &entry.Action, &entry.Details, &status, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan activity log: %w", err)
		}
		entry.UserID = userID.String
		entry.RecordID = recordID.String
		entry.Status = domain.LogStatus(status)
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activity logs: %w", err)
	}
	return out, nil
}

// Stats summarizes the local store for the admin dashboard. A store that
// answers is reported online.
func (r *ActivityRepository) Stats(ctx context.Context) (domain.DashboardStats, error) {
	var total, active int
	var avgSeconds float64
	err := r.db.QueryRowContext(ctx, `
SELECT
	(SELECT COUNT(*) FROM summaries),
	(SELECT COUNT(*) FROM profiles WHERE status = $1),
	COALESCE((SELECT AVG(EXTRACT(EPOCH FROM (updated_at - created_at))) FROM summaries WHERE status = $2), 0)
`, string(domain.AccountActive), string(domain.StatusCompleted)).Scan(&total, &active, &avgSeconds)
	if err != nil {
		return domain.DashboardStats{}, fmt.Errorf("query stats: %w", err)
	}
	return domain.DashboardStats{
		TotalSummaries: total,
		ActiveUsers:    active,
		ServerStatus:   domain.ServerOnline,
		AverageTime:    fmt.Sprintf("%.1fs", avgSeconds),
	}, nil
}
