package presenter

import (
	"bytes"
	"log/slog"
	"net/url"
	"strings"
	"text/template"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/bissquit/lionsgeek-toasts/internal/domain"
	"github.com/bissquit/lionsgeek-toasts/internal/toasts"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const previewLimit = 120

const previewTemplate = `
{{- if eq .Kind "none" -}}
{{ truncate .Body }}
{{- else -}}
{{ attachmentLabel .Kind }}{{ with .Body }}: {{ truncate . }}{{ end }}
{{- end -}}`

// Card is the rendered form of a visible toast.
type Card struct {
	MessageID      string                `json:"message_id"`
	ConversationID string                `json:"conversation_id"`
	Title          string                `json:"title"`
	AvatarURL      string                `json:"avatar_url"`
	Initials       string                `json:"initials"`
	Preview        string                `json:"preview"`
	AttachmentKind domain.AttachmentKind `json:"attachment_kind"`
	ReceivedAt     time.Time             `json:"received_at"`
	ExpiresAt      time.Time             `json:"expires_at"`
}

type previewData struct {
	Kind string
	Body string
}

// Renderer turns toast entries into cards.
type Renderer struct {
	placeholderAvatar string
	preview           *template.Template
}

// NewRenderer creates a renderer. placeholderAvatar is used for senders
// without a usable avatar URL.
func NewRenderer(placeholderAvatar string) (*Renderer, error) {
	funcMap := template.FuncMap{
		"truncate":        truncate,
		"attachmentLabel": attachmentLabel,
	}

	tmpl, err := template.New("preview").Funcs(funcMap).Parse(previewTemplate)
	if err != nil {
		return nil, err
	}

	return &Renderer{
		placeholderAvatar: placeholderAvatar,
		preview:           tmpl,
	}, nil
}

// Render builds the card for entry. Rendering never fails: missing pieces
// degrade to placeholders.
func (r *Renderer) Render(entry toasts.Entry, display time.Duration) Card {
	e := entry.Event

	avatar := e.SenderAvatar
	if !isAvatarURL(avatar) {
		avatar = r.placeholderAvatar
	}

	return Card{
		MessageID:      e.MessageID,
		ConversationID: e.ConversationID,
		Title:          titleCase(e.SenderName),
		AvatarURL:      avatar,
		Initials:       initials(e.SenderName),
		Preview:        r.renderPreview(e),
		AttachmentKind: e.AttachmentKind,
		ReceivedAt:     e.ReceivedAt,
		ExpiresAt:      entry.ShownAt.Add(display),
	}
}

// isAvatarURL reports whether s is an absolute http(s) URL a client can load
// without knowing where the avatar storage lives.
func isAvatarURL(s string) bool {
	if s == "" {
		return false
	}
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func (r *Renderer) renderPreview(e domain.NotificationEvent) string {
	kind := e.AttachmentKind
	if kind == "" {
		kind = domain.AttachmentNone
	}

	var buf bytes.Buffer
	err := r.preview.Execute(&buf, previewData{Kind: string(kind), Body: strings.TrimSpace(e.Body)})
	if err != nil {
		slog.Warn("failed to render toast preview", "message_id", e.MessageID, "error", err)
		return truncate(e.Body)
	}
	return buf.String()
}

var titleCaser = cases.Title(language.Und)

func titleCase(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return "Unknown sender"
	}
	return titleCaser.String(s)
}

func initials(name string) string {
	out := make([]rune, 0, 2)
	for _, word := range strings.Fields(name) {
		r, _ := utf8.DecodeRuneInString(word)
		out = append(out, unicode.ToUpper(r))
		if len(out) == 2 {
			break
		}
	}
	if len(out) == 0 {
		return "?"
	}
	return string(out)
}

func truncate(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= previewLimit {
		return s
	}
	runes := []rune(s)
	return string(runes[:previewLimit-1]) + "…"
}

func attachmentLabel(kind string) string {
	switch domain.AttachmentKind(kind) {
	case domain.AttachmentImage:
		return "📷 Photo"
	case domain.AttachmentVideo:
		return "🎥 Video"
	case domain.AttachmentAudio:
		return "🎤 Voice message"
	case domain.AttachmentFile:
		return "📎 File"
	default:
		return "💬 Message"
	}
}
