package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/boostmarket/paywebhook/internal/domain"
	"github.com/boostmarket/paywebhook/internal/gateway"
	"github.com/boostmarket/paywebhook/internal/logging"
	"github.com/boostmarket/paywebhook/internal/replay"
	"github.com/boostmarket/paywebhook/internal/signature"
)

const maxWebhookBody = 1 << 20

type eventStore interface {
	Store(ctx context.Context, provider domain.Provider, eventType, eventID string, payload json.RawMessage) (*domain.WebhookEvent, error)
	Process(ctx context.Context, id uuid.UUID) (bool, error)
}

type replayGuard interface {
	Validate(ctx context.Context, provider domain.Provider, eventID string, ts time.Time) replay.Result
}

// ingestResult selects the envelope a provider handler answers with.
type ingestResult int

const (
	resultAccepted ingestResult = iota
	resultBadSignature
	resultOutOfWindow
	resultMalformed
	resultInternal
)

func (r ingestResult) String() string {
	switch r {
	case resultAccepted:
		return "accepted"
	case resultBadSignature:
		return "bad_signature"
	case resultOutOfWindow:
		return "out_of_window"
	case resultMalformed:
		return "malformed"
	default:
		return "internal"
	}
}

type envelope struct {
	status int
	body   any
}

type WebhookHandler struct {
	verifiers   *signature.Set
	guard       replayGuard
	store       eventStore
	syncTimeout time.Duration
}

func NewWebhookHandler(verifiers *signature.Set, guard replayGuard, store eventStore, syncTimeout time.Duration) *WebhookHandler {
	return &WebhookHandler{
		verifiers:   verifiers,
		guard:       guard,
		store:       store,
		syncTimeout: syncTimeout,
	}
}

// serve runs fn and always answers with one of the provider's envelopes,
// including when fn panics.
func (h *WebhookHandler) serve(w http.ResponseWriter, r *http.Request, provider domain.Provider, envelopes map[ingestResult]envelope, fn func(ctx context.Context) ingestResult) {
	ctx, log := logging.With(r.Context(), "provider", provider)

	result := resultInternal
	defer func() {
		if rec := recover(); rec != nil {
			log.Error("panic in webhook handler", "error", rec, "stack", string(debug.Stack()))
			result = resultInternal
		}
		env := envelopes[result]
		RespondJSON(w, env.status, env.body)
	}()

	result = fn(ctx)
	if result != resultAccepted {
		log.Warn("webhook rejected", "reason", result.String())
	}
}

// ingest runs the shared pipeline for a payload whose signature is already
// verified: replay check, durable store, then one synchronous processing
// attempt. Processing errors never change the response; the event is stored
// and the scheduler retries it.
func (h *WebhookHandler) ingest(ctx context.Context, p gateway.Payload) ingestResult {
	eventID := p.EventID()
	ctx, log := logging.With(ctx, "event_id", eventID)

	ts, err := p.Timestamp()
	if err != nil {
		log.Warn("webhook timestamp unreadable", "error", err)
		return resultMalformed
	}

	check := h.guard.Validate(ctx, p.Provider(), eventID, ts)
	switch {
	case check.IsDuplicate:
		log.Info("duplicate webhook acknowledged")
		return resultAccepted
	case errors.Is(check.Err, domain.ErrTimestampOutOfWindow):
		log.Warn("webhook timestamp outside window", "gateway_time", ts)
		return resultOutOfWindow
	case check.Err != nil:
		log.Error("replay check failed", "error", check.Err)
		return resultInternal
	}

	raw, err := gateway.Encode(p)
	if err != nil {
		log.Error("failed to encode webhook payload", "error", err)
		return resultInternal
	}

	event, err := h.store.Store(ctx, p.Provider(), domain.EventTypePaymentNotification, eventID, raw)
	if err != nil {
		log.Error("failed to store webhook event", "error", err)
		return resultInternal
	}
	log = log.With("webhook_event_id", event.ID)

	if event.Status != domain.WebhookEventStatusPending {
		return resultAccepted
	}

	procCtx, cancel := context.WithTimeout(ctx, h.syncTimeout)
	defer cancel()

	completed, err := h.store.Process(procCtx, event.ID)
	switch {
	case err != nil:
		log.Warn("synchronous processing did not complete, scheduler will retry", "error", err)
	case completed:
		log.Info("webhook processed")
	}
	return resultAccepted
}

func logVerifyFailure(log *slog.Logger, err error) {
	log.Warn("webhook signature verification failed", "error", err)
}
