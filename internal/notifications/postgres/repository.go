// Package postgres provides PostgreSQL implementation of the toast history repository.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/bissquit/lionsgeek-toasts/internal/notifications"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository implements notifications.HistoryRepository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// InsertBatch stores closed toasts in a single transaction.
// Records already stored are skipped.
func (r *Repository) InsertBatch(ctx context.Context, records []notifications.HistoryRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	query := `
		INSERT INTO toast_history
			(id, session_id, message_id, conversation_id, sender_name, attachment_kind, outcome, shown_at, closed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING
	`

	batch := &pgx.Batch{}
	for _, rec := range records {
		batch.Queue(query,
			rec.ID,
			rec.SessionID,
			rec.MessageID,
			rec.ConversationID,
			rec.SenderName,
			string(rec.AttachmentKind),
			string(rec.Outcome),
			rec.ShownAt,
			rec.ClosedAt,
		)
	}

	results := tx.SendBatch(ctx, batch)
	for i := range records {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return fmt.Errorf("insert history record %s: %w", records[i].ID, err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// ListBySession returns the most recently closed toasts of a session.
func (r *Repository) ListBySession(ctx context.Context, sessionID string, limit int) ([]notifications.HistoryRecord, error) {
	query := `
		SELECT id, session_id, message_id, conversation_id, sender_name, attachment_kind, outcome, shown_at, closed_at
		FROM toast_history
		WHERE session_id = $1
		ORDER BY closed_at DESC, id
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	records := make([]notifications.HistoryRecord, 0)
	for rows.Next() {
		var rec notifications.HistoryRecord
		err := rows.Scan(
			&rec.ID,
			&rec.SessionID,
			&rec.MessageID,
			&rec.ConversationID,
			&rec.SenderName,
			&rec.AttachmentKind,
			&rec.Outcome,
			&rec.ShownAt,
			&rec.ClosedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan history record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}

	return records, nil
}

// DeleteOlderThan removes records closed more than age ago.
func (r *Repository) DeleteOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	query := `DELETE FROM toast_history WHERE closed_at < $1`
	result, err := r.db.Exec(ctx, query, time.Now().Add(-age))
	if err != nil {
		return 0, fmt.Errorf("delete old history: %w", err)
	}
	return result.RowsAffected(), nil
}
