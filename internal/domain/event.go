package domain

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// AttachmentKind describes the media attached to a chat message.
type AttachmentKind string

// Attachment kinds.
const (
	AttachmentImage AttachmentKind = "image"
	AttachmentVideo AttachmentKind = "video"
	AttachmentAudio AttachmentKind = "audio"
	AttachmentFile  AttachmentKind = "file"
	AttachmentNone  AttachmentKind = "none"
)

// IsValid checks if the attachment kind is valid.
func (k AttachmentKind) IsValid() bool {
	switch k {
	case AttachmentImage, AttachmentVideo, AttachmentAudio, AttachmentFile, AttachmentNone:
		return true
	}
	return false
}

// messageIDNamespace seeds derived message ids so the same
// (conversation, sender, arrival) triple always yields the same id.
var messageIDNamespace = uuid.MustParse("6f1c7a52-3b0e-4d7e-9c55-1a8e2f4b9d30")

// NotificationEvent is an incoming chat event that may surface as a toast.
type NotificationEvent struct {
	MessageID      string         `json:"message_id"`
	ConversationID string         `json:"conversation_id" validate:"required"`
	SenderID       string         `json:"sender_id"`
	SenderName     string         `json:"sender_name" validate:"required"`
	SenderAvatar   string         `json:"sender_avatar,omitempty"`
	Body           string         `json:"body" validate:"required_if=AttachmentKind none"`
	AttachmentKind AttachmentKind `json:"attachment_kind" validate:"oneof=image video audio file none"`
	ReceivedAt     time.Time      `json:"received_at"`
}

// Normalize fills defaults: attachment kind, arrival time and a derived
// message id when the source did not provide one.
func (e *NotificationEvent) Normalize(now time.Time) {
	if e.AttachmentKind == "" {
		e.AttachmentKind = AttachmentNone
	}
	if e.ReceivedAt.IsZero() {
		e.ReceivedAt = now
	}
	if e.MessageID == "" {
		e.MessageID = DeriveMessageID(e.ConversationID, e.SenderID, e.ReceivedAt)
	}
}

// DeriveMessageID builds a stable id from conversation, sender and arrival time.
func DeriveMessageID(conversationID, senderID string, receivedAt time.Time) string {
	key := conversationID + "|" + senderID + "|" + strconv.FormatInt(receivedAt.UnixNano(), 10)
	return uuid.NewSHA1(messageIDNamespace, []byte(key)).String()
}

// Intent asks the routing layer to open a conversation.
type Intent struct {
	ConversationID string `json:"conversation_id"`
}
