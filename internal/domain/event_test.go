package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNotificationEvent_Normalize(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

	t.Run("fills defaults", func(t *testing.T) {
		e := NotificationEvent{ConversationID: "conv-1", SenderID: "u-7", SenderName: "Sara"}
		e.Normalize(now)

		assert.Equal(t, AttachmentNone, e.AttachmentKind)
		assert.Equal(t, now, e.ReceivedAt)
		assert.Equal(t, DeriveMessageID("conv-1", "u-7", now), e.MessageID)
	})

	t.Run("keeps provided values", func(t *testing.T) {
		received := now.Add(-time.Minute)
		e := NotificationEvent{
			MessageID:      "msg-1",
			ConversationID: "conv-1",
			AttachmentKind: AttachmentImage,
			ReceivedAt:     received,
		}
		e.Normalize(now)

		assert.Equal(t, "msg-1", e.MessageID)
		assert.Equal(t, AttachmentImage, e.AttachmentKind)
		assert.Equal(t, received, e.ReceivedAt)
	})
}

func TestDeriveMessageID(t *testing.T) {
	at := time.Unix(1700000000, 42)

	a := DeriveMessageID("conv-1", "u-1", at)
	assert.Equal(t, a, DeriveMessageID("conv-1", "u-1", at))
	assert.NotEqual(t, a, DeriveMessageID("conv-1", "u-2", at))
	assert.NotEqual(t, a, DeriveMessageID("conv-1", "u-1", at.Add(time.Nanosecond)))
}

func TestAttachmentKind_IsValid(t *testing.T) {
	assert.True(t, AttachmentAudio.IsValid())
	assert.True(t, AttachmentNone.IsValid())
	assert.False(t, AttachmentKind("sticker").IsValid())
	assert.False(t, AttachmentKind("").IsValid())
}
