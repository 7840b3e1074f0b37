package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/boostmarket/paywebhook/internal/domain"
	"github.com/boostmarket/paywebhook/internal/logging"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

type eventAdmin interface {
	List(ctx context.Context, status domain.WebhookEventStatus, limit int) ([]domain.WebhookEvent, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.WebhookEvent, error)
	Requeue(ctx context.Context, id uuid.UUID) error
}

type AdminHandler struct {
	events eventAdmin
}

func NewAdminHandler(events eventAdmin) *AdminHandler {
	return &AdminHandler{events: events}
}

type webhookEventResponse struct {
	ID            uuid.UUID  `json:"id"`
	Provider      string     `json:"provider"`
	EventType     string     `json:"event_type"`
	EventID       string     `json:"event_id"`
	Status        string     `json:"status"`
	Attempts      int        `json:"attempts"`
	LastAttemptAt *time.Time `json:"last_attempt_at"`
	NextRetryAt   *time.Time `json:"next_retry_at"`
	ErrorMessage  *string    `json:"error_message"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func toWebhookEventResponse(e domain.WebhookEvent) webhookEventResponse {
	return webhookEventResponse{
		ID:            e.ID,
		Provider:      string(e.Provider),
		EventType:     e.EventType,
		EventID:       e.EventID,
		Status:        string(e.Status),
		Attempts:      e.Attempts,
		LastAttemptAt: e.LastAttemptAt,
		NextRetryAt:   e.NextRetryAt,
		ErrorMessage:  e.ErrorMessage,
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
	}
}

// ListWebhookEvents handles GET /api/admin/webhooks?status=failed&limit=50.
// The payload is left out; it can hold gateway MACs.
func (h *AdminHandler) ListWebhookEvents(w http.ResponseWriter, r *http.Request) {
	status := domain.WebhookEventStatusFailed
	if v := r.URL.Query().Get("status"); v != "" {
		status = domain.WebhookEventStatus(v)
	}

	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxListLimit {
			RespondValidationError(w, []FieldError{{Field: "limit", Message: "must be between 1 and 500"}})
			return
		}
		limit = n
	}

	events, err := h.events.List(r.Context(), status, limit)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	out := make([]webhookEventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, toWebhookEventResponse(e))
	}
	RespondSuccess(w, http.StatusOK, out)
}

// RequeueWebhookEvent handles POST /api/admin/webhooks/{id}/requeue.
func (h *AdminHandler) RequeueWebhookEvent(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondValidationError(w, []FieldError{{Field: "id", Message: "must be a valid UUID"}})
		return
	}

	if err := h.events.Requeue(r.Context(), id); err != nil {
		RespondDomainError(w, err)
		return
	}

	event, err := h.events.Get(r.Context(), id)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	logging.FromContext(r.Context()).Info("webhook event requeued by operator", "webhook_event_id", id)
	RespondSuccess(w, http.StatusOK, toWebhookEventResponse(*event))
}
