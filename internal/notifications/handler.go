package notifications

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/bissquit/lionsgeek-toasts/internal/domain"
	"github.com/bissquit/lionsgeek-toasts/internal/pkg/ctxlog"
	"github.com/bissquit/lionsgeek-toasts/internal/pkg/httputil"
	"github.com/bissquit/lionsgeek-toasts/internal/toasts"
	"github.com/bissquit/lionsgeek-toasts/internal/toasts/presenter"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

var errorMappings = []httputil.ErrorMapping{
	{Error: toasts.ErrMalformedEvent, Status: http.StatusBadRequest},
	{Error: toasts.ErrToastNotVisible, Status: http.StatusNotFound, Message: "toast is not visible"},
	{Error: ErrRateLimited, Status: http.StatusTooManyRequests, Message: "too many events for recipient"},
	{Error: ErrHistoryDisabled, Status: http.StatusNotFound, Message: "toast history is disabled"},
}

// Handler handles HTTP requests for the notifications module.
type Handler struct {
	service   *Service
	streamer  *presenter.Streamer
	validator *validator.Validate
}

// NewHandler creates a new notifications handler.
func NewHandler(service *Service, streamer *presenter.Streamer) *Handler {
	return &Handler{
		service:   service,
		streamer:  streamer,
		validator: validator.New(),
	}
}

// RegisterInboundRoutes registers the chat backend event intake.
func (h *Handler) RegisterInboundRoutes(r chi.Router) {
	r.Post("/events", h.IngestEvent)
}

// RegisterRoutes registers the app session routes (require auth).
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/me/toasts", func(r chi.Router) {
		r.Get("/", h.ListToasts)
		r.Get("/history", h.ListHistory)
		r.Delete("/{messageID}", h.DismissToast)
		r.Post("/{messageID}/click", h.ClickToast)
		r.Post("/{messageID}/forget", h.ForgetToast)
	})
}

// RegisterStreamRoutes registers the websocket stream. It must be mounted
// outside request timeouts.
func (h *Handler) RegisterStreamRoutes(r chi.Router) {
	r.Get("/me/toasts/stream", h.Stream)
}

// IngestRequest represents an inbound chat event addressed to one recipient.
type IngestRequest struct {
	RecipientID    string    `json:"recipient_id" validate:"required"`
	MessageID      string    `json:"message_id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	SenderName     string    `json:"sender_name"`
	SenderAvatar   string    `json:"sender_avatar"`
	Body           string    `json:"body"`
	AttachmentKind string    `json:"attachment_kind"`
	ReceivedAt     time.Time `json:"received_at"`
}

func (req IngestRequest) event() domain.NotificationEvent {
	return domain.NotificationEvent{
		MessageID:      req.MessageID,
		ConversationID: req.ConversationID,
		SenderID:       req.SenderID,
		SenderName:     req.SenderName,
		SenderAvatar:   req.SenderAvatar,
		Body:           req.Body,
		AttachmentKind: domain.AttachmentKind(req.AttachmentKind),
		ReceivedAt:     req.ReceivedAt,
	}
}

// IngestResponse reports whether the event surfaced as a toast.
type IngestResponse struct {
	Accepted  bool   `json:"accepted"`
	MessageID string `json:"message_id"`
}

// IngestEvent handles POST /events.
func (h *Handler) IngestEvent(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	accepted, messageID, err := h.service.Ingest(r.Context(), req.RecipientID, req.event())
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	ctxlog.FromContext(r.Context()).Debug("notification event ingested",
		"caller_id", httputil.GetUserID(r.Context()),
		"caller_role", httputil.GetRole(r.Context()),
		"recipient_id", req.RecipientID,
		"message_id", messageID,
		"accepted", accepted,
	)

	httputil.Success(w, http.StatusAccepted, IngestResponse{Accepted: accepted, MessageID: messageID})
}

// ListToasts handles GET /me/toasts.
func (h *Handler) ListToasts(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r.Context())
	httputil.Success(w, http.StatusOK, h.service.Cards(userID))
}

// DismissToast handles DELETE /me/toasts/{messageID}.
func (h *Handler) DismissToast(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r.Context())
	h.service.Dismiss(userID, chi.URLParam(r, "messageID"))
	w.WriteHeader(http.StatusNoContent)
}

// ClickToast handles POST /me/toasts/{messageID}/click.
func (h *Handler) ClickToast(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r.Context())

	intent, err := h.service.Click(r.Context(), userID, chi.URLParam(r, "messageID"))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, intent)
}

// ForgetToast handles POST /me/toasts/{messageID}/forget.
func (h *Handler) ForgetToast(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r.Context())
	h.service.Forget(userID, chi.URLParam(r, "messageID"))
	w.WriteHeader(http.StatusNoContent)
}

// ListHistory handles GET /me/toasts/history.
func (h *Handler) ListHistory(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r.Context())

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxHistoryLimit {
			httputil.Error(w, http.StatusBadRequest, "limit must be between 1 and 200")
			return
		}
		limit = n
	}

	records, err := h.service.History(r.Context(), userID, limit)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, records)
}

// Stream handles GET /me/toasts/stream.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r.Context())
	logger := ctxlog.FromContext(r.Context()).With("session_id", userID)

	sess, release := h.service.acquire(userID)
	defer release()

	h.streamer.Serve(w, r, sess.Presenter, logger)
}
