// Package notifications serves toast notifications to app sessions: it keeps
// one toast Manager and Presenter per session, ingests chat events, exposes
// the HTTP surface and records closed toasts to the history log.
package notifications

import (
	"context"
	"time"

	"github.com/bissquit/lionsgeek-toasts/internal/domain"
	"github.com/bissquit/lionsgeek-toasts/internal/toasts"
)

// HistoryRecord is a toast that has left the visible queue.
type HistoryRecord struct {
	ID             string                `json:"id"`
	SessionID      string                `json:"session_id"`
	MessageID      string                `json:"message_id"`
	ConversationID string                `json:"conversation_id"`
	SenderName     string                `json:"sender_name"`
	AttachmentKind domain.AttachmentKind `json:"attachment_kind"`
	Outcome        toasts.Reason         `json:"outcome"`
	ShownAt        time.Time             `json:"shown_at"`
	ClosedAt       time.Time             `json:"closed_at"`
}

// HistoryRepository defines the interface for toast history storage.
type HistoryRepository interface {
	InsertBatch(ctx context.Context, records []HistoryRecord) error
	ListBySession(ctx context.Context, sessionID string, limit int) ([]HistoryRecord, error)
	DeleteOlderThan(ctx context.Context, age time.Duration) (int64, error)
}
