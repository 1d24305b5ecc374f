package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/medbrief/internal/core/domain"
)

type RecordRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewRecordRepository(db *sql.DB) *RecordRepository {
	return &RecordRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (r *RecordRepository) Create(ctx context.Context, ownerID string, meta domain.InputMeta) (string, error) {
	now := r.now()
	var id string
	err := r.db.QueryRowContext(ctx, `
INSERT INTO summaries (id, user_id, input_type, input_text, file_name, mime_type, status, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
RETURNING id
`,
		uuid.NewString(), ownerID, string(meta.Kind), nullString(meta.InputText), nullString(meta.FileName),
		nullString(meta.MimeType), string(domain.StatusProcessing), now, now,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("insert summary: %w", err)
	}
	return id, nil
}

func (r *RecordRepository) GetByID(ctx context.Context, id string) (*domain.SubmissionRecord, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, user_id, input_type, input_text, file_name, mime_type, status, summary_text, error_message, created_at, updated_at
FROM summaries
WHERE id = $1
`, id)

	var rec domain.SubmissionRecord
	var kind, status string
	var inputText, fileName, mimeType, summary, errMessage sql.NullString
	err := row.Scan(
		&rec.ID, &rec.OwnerID, &kind, &inputText, &fileName, &mimeType,
		&status, &summary, &errMessage, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrRecordNotFound, "get summary", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("scan summary: %w", err)
	}
	rec.InputKind = domain.InputKind(kind)
	rec.InputText = inputText.String
	rec.FileName = fileName.String
	rec.MimeType = mimeType.String
	rec.Status = domain.SummaryStatus(status)
	rec.SummaryText = summary.String
	rec.ErrorMessage = errMessage.String
	return &rec, nil
}

// ReadStatus selects only the fields a completion poll needs.
func (r *RecordRepository) ReadStatus(ctx context.Context, id string) (domain.RecordUpdate, error) {
	var status string
	var summary, errMessage sql.NullString
	err := r.db.QueryRowContext(ctx, `
SELECT status, summary_text, error_message
FROM summaries
WHERE id = $1
`, id).Scan(&status, &summary, &errMessage)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.RecordUpdate{}, domain.WrapError(domain.ErrRecordNotFound, "read summary status", fmt.Errorf("id=%s", id))
		}
		return domain.RecordUpdate{}, fmt.Errorf("read summary status: %w", err)
	}
	return domain.RecordUpdate{
		ID:           id,
		Status:       domain.SummaryStatus(status),
		SummaryText:  summary.String,
		ErrorMessage: errMessage.String,
	}, nil
}

// ApplyUpdate moves a processing record to a terminal status. Records that
// already settled are left untouched.
func (r *RecordRepository) ApplyUpdate(ctx context.Context, update domain.RecordUpdate) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE summaries
SET status = $2, summary_text = $3, error_message = $4, updated_at = $5
WHERE id = $1 AND status = $6
`,
		update.ID, string(update.Status), nullString(update.SummaryText), nullString(update.ErrorMessage),
		r.now(), string(domain.StatusProcessing),
	)
	if err != nil {
		return fmt.Errorf("update summary: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update summary rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM summaries WHERE id = $1)`, update.ID).Scan(&exists); err != nil {
		return fmt.Errorf("check summary exists: %w", err)
	}
	if !exists {
		return domain.WrapError(domain.ErrRecordNotFound, "update summary", fmt.Errorf("id=%s", update.ID))
	}
	return domain.WrapError(domain.ErrInvalidTransition, "update summary", fmt.Errorf("id=%s is no longer processing", update.ID))
}

func (r *RecordRepository) ListStale(ctx context.Context, olderThan time.Time, limit int) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id
FROM summaries
WHERE status = $1 AND created_at < $2
ORDER BY created_at
LIMIT $3
`, string(domain.StatusProcessing), olderThan, limit)
	if err != nil {
		return nil, fmt.Errorf("list stale summaries: %w", err)
	}
	defer rows.Close()

	out := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan stale summary: %w", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stale summaries: %w", err)
	}
	return out, nil
}
