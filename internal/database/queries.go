package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"sumibot/internal/domain"
)

func (d *Database) AddSummary(ctx context.Context, record *domain.SummaryRecord) error {
	if record == nil {
		return errors.New("record is nil")
	}

	id := strings.TrimSpace(record.ID)
	if id == "" {
		return errors.New("record ID is empty")
	}

	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	query := `insert into summaries
	(id, user_id, chat_id, file_name, file_size, status, summary, error, duration_ms, created_at)
	values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := d.db.ExecContext(ctx, query,
		id,
		record.UserID,
		record.ChatID,
		strings.TrimSpace(record.FileName),
		record.FileSize,
		string(record.Status),
		record.Summary,
		record.Error,
		record.DurationMS,
		createdAt.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("execute query: %w", err)
	}

	return nil
}

// GetUserSummaries returns the newest records first.
func (d *Database) GetUserSummaries(
	ctx context.Context,
	userID int64,
	limit int,
) ([]domain.SummaryRecord, error) {
	if limit <= 0 {
		return nil, nil
	}

	query := `select id, user_id, chat_id, file_name, file_size, status, summary, error, duration_ms, created_at
	from summaries
	where user_id = ?
	order by created_at desc, rowid desc
	limit ?`

	rows, err := d.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer func() {
		if err = rows.Close(); err != nil {
			d.log.ErrorContext(ctx, "Failed to close rows",
				"error", err,
				"userID", userID,
				"operation", "GetUserSummaries")
		}
	}()

	var records []domain.SummaryRecord
	for rows.Next() {
		var (
			r         domain.SummaryRecord
			status    string
			createdAt int64
		)

		if err = rows.Scan(
			&r.ID,
			&r.UserID,
			&r.ChatID,
			&r.FileName,
			&r.FileSize,
			&status,
			&r.Summary,
			&r.Error,
			&r.DurationMS,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		r.Status = domain.AttemptStatus(status)
		r.CreatedAt = time.UnixMilli(createdAt).UTC()

		records = append(records, r)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return records, nil
}

// PruneSummaries deletes records created before the cutoff and reports how
// many were removed.
func (d *Database) PruneSummaries(ctx context.Context, before time.Time) (int64, error) {
	query := "delete from summaries where created_at < ?"

	res, err := d.db.ExecContext(ctx, query, before.UTC().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("execute query: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}

	return n, nil
}
