package presenter

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/bissquit/lionsgeek-toasts/internal/domain"
	"github.com/bissquit/lionsgeek-toasts/internal/toasts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const placeholder = "https://cdn.example.com/avatar.png"

func TestRenderer_Render(t *testing.T) {
	r, err := NewRenderer(placeholder)
	require.NoError(t, err)

	shownAt := time.Date(2026, 5, 2, 10, 0, 0, 0, time.UTC)
	received := shownAt.Add(-time.Second)

	card := r.Render(toasts.Entry{
		Event: domain.NotificationEvent{
			MessageID:      "m1",
			ConversationID: "c1",
			SenderName:     "  yassine   el idrissi ",
			SenderAvatar:   "https://cdn.example.com/u/42.png",
			Body:           "Room 3 is free  at 14:00",
			AttachmentKind: domain.AttachmentNone,
			ReceivedAt:     received,
		},
		ShownAt: shownAt,
	}, 5*time.Second)

	assert.Equal(t, "m1", card.MessageID)
	assert.Equal(t, "c1", card.ConversationID)
	assert.Equal(t, "Yassine El Idrissi", card.Title)
	assert.Equal(t, "YE", card.Initials)
	assert.Equal(t, "https://cdn.example.com/u/42.png", card.AvatarURL)
	assert.Equal(t, "Room 3 is free at 14:00", card.Preview)
	assert.Equal(t, received, card.ReceivedAt)
	assert.Equal(t, shownAt.Add(5*time.Second), card.ExpiresAt)
}

func TestRenderer_Preview(t *testing.T) {
	r, err := NewRenderer(placeholder)
	require.NoError(t, err)

	tests := []struct {
		name string
		kind domain.AttachmentKind
		body string
		want string
	}{
		{"text", domain.AttachmentNone, "hello", "hello"},
		{"empty kind is text", "", "hello", "hello"},
		{"image without caption", domain.AttachmentImage, "", "📷 Photo"},
		{"image with caption", domain.AttachmentImage, "our demo day", "📷 Photo: our demo day"},
		{"video", domain.AttachmentVideo, "", "🎥 Video"},
		{"audio", domain.AttachmentAudio, "", "🎤 Voice message"},
		{"file", domain.AttachmentFile, "slides.pdf", "📎 File: slides.pdf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			card := r.Render(toasts.Entry{Event: domain.NotificationEvent{
				SenderName:     "Sara",
				Body:           tt.body,
				AttachmentKind: tt.kind,
			}}, time.Second)
			assert.Equal(t, tt.want, card.Preview)
		})
	}
}

func TestRenderer_Placeholders(t *testing.T) {
	r, err := NewRenderer(placeholder)
	require.NoError(t, err)

	card := r.Render(toasts.Entry{Event: domain.NotificationEvent{Body: "hi"}}, time.Second)

	assert.Equal(t, placeholder, card.AvatarURL)
	assert.Equal(t, "Unknown sender", card.Title)
	assert.Equal(t, "?", card.Initials)
}

func TestRenderer_InvalidAvatarFallsBack(t *testing.T) {
	r, err := NewRenderer(placeholder)
	require.NoError(t, err)

	for _, avatar := range []string{"not a url", "profile/sara.jpg", "ftp://cdn.example.com/a.png", "http://%zz"} {
		card := r.Render(toasts.Entry{Event: domain.NotificationEvent{
			SenderName:   "Sara",
			SenderAvatar: avatar,
			Body:         "hi",
		}}, time.Second)
		assert.Equal(t, placeholder, card.AvatarURL, avatar)
	}
}

func TestTruncate(t *testing.T) {
	short := "quick note"
	assert.Equal(t, short, truncate(short))

	long := strings.Repeat("é", previewLimit+10)
	got := truncate(long)
	assert.Equal(t, previewLimit, utf8.RuneCountInString(got))
	assert.True(t, strings.HasSuffix(got, "…"))
}

func TestInitials(t *testing.T) {
	assert.Equal(t, "S", initials("sara"))
	assert.Equal(t, "ÉB", initials("élise bernard martin"))
	assert.Equal(t, "?", initials("   "))
}
