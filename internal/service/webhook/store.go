package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/boostmarket/paywebhook/internal/domain"
	"github.com/boostmarket/paywebhook/internal/gateway"
	"github.com/boostmarket/paywebhook/internal/service/reconcile"
)

type eventRepo interface {
	Upsert(ctx context.Context, event *domain.WebhookEvent) (*domain.WebhookEvent, bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.WebhookEvent, error)
	Claim(ctx context.Context, id uuid.UUID, now time.Time) (*domain.WebhookEvent, error)
	MarkCompleted(ctx context.Context, id uuid.UUID, note *string, now time.Time) error
	MarkRetry(ctx context.Context, id uuid.UUID, errMsg string, nextRetryAt, now time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, errMsg string, now time.Time) error
	ListDue(ctx context.Context, now, neverAttemptedCutoff time.Time, limit int) ([]domain.WebhookEvent, error)
	ListByStatus(ctx context.Context, status domain.WebhookEventStatus, limit int) ([]domain.WebhookEvent, error)
	ReleaseStale(ctx context.Context, cutoff time.Time, maxAttempts int, now time.Time) (int64, error)
	Requeue(ctx context.Context, id uuid.UUID, now time.Time) error
	DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type reconciler interface {
	Reconcile(ctx context.Context, n domain.Notification) (reconcile.Result, error)
}

// completionCache is told about every event that reaches completed.
type completionCache interface {
	MarkCompleted(ctx context.Context, provider domain.Provider, eventID string)
}

// bookkeepingTimeout bounds status writes made after processing, which run
// detached from the caller's context so a timed-out request still records
// its outcome.
const bookkeepingTimeout = 5 * time.Second

type EventStore struct {
	events eventRepo
	engine reconciler
	cache  completionCache
	policy RetryPolicy
	logger *slog.Logger
	now    func() time.Time
}

func NewEventStore(events eventRepo, engine reconciler, cache completionCache, policy RetryPolicy, logger *slog.Logger) *EventStore {
	return &EventStore{
		events: events,
		engine: engine,
		cache:  cache,
		policy: policy,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Store persists a verified notification. Storing the same (provider, eventID)
// twice returns the row created first.
func (s *EventStore) Store(ctx context.Context, provider domain.Provider, eventType, eventID string, payload json.RawMessage) (*domain.WebhookEvent, error) {
	if !provider.IsValid() {
		return nil, fmt.Errorf("Store: %w", domain.ErrUnknownProvider)
	}
	event, inserted, err := s.events.Upsert(ctx, &domain.WebhookEvent{
		ID:        uuid.New(),
		Provider:  provider,
		EventType: eventType,
		EventID:   eventID,
		Payload:   payload,
		Status:    domain.WebhookEventStatusPending,
		CreatedAt: s.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("Store: %w", err)
	}
	if !inserted {
		s.logger.Info("webhook event already stored",
			"provider", provider,
			"event_id", eventID,
			"webhook_event_id", event.ID,
			"status", event.Status,
		)
	}
	return event, nil
}

// Process claims a pending event and reconciles it. It reports false without
// an error when the event is missing or another worker holds it. A
// reconciliation error is recorded on the event and also returned.
func (s *EventStore) Process(ctx context.Context, id uuid.UUID) (bool, error) {
	event, err := s.events.Claim(ctx, id, s.now())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("Process: %w", err)
	}

	logger := s.logger.With(
		"webhook_event_id", event.ID,
		"provider", event.Provider,
		"event_id", event.EventID,
		"attempt", event.Attempts,
	)

	res, procErr := s.reconcile(ctx, event)

	// Bookkeeping must land even if ctx expired during reconciliation.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), bookkeepingTimeout)
	defer cancel()

	if procErr == nil {
		var note *string
		if res.Note != "" {
			note = &res.Note
		}
		if err := s.events.MarkCompleted(writeCtx, event.ID, note, s.now()); err != nil {
			return false, fmt.Errorf("Process: %w", err)
		}
		if s.cache != nil {
			s.cache.MarkCompleted(writeCtx, event.Provider, event.EventID)
		}
		logger.Info("webhook event completed", "outcome", res.Outcome)
		return true, nil
	}

	now := s.now()
	msg := procErr.Error()
	if event.Attempts >= s.policy.MaxAttempts {
		if err := s.events.MarkFailed(writeCtx, event.ID, msg, now); err != nil {
			return false, fmt.Errorf("Process: %w", err)
		}
		logger.Error("webhook event failed permanently",
			"error", msg,
			"permanent", domain.IsPermanent(procErr),
		)
		return false, fmt.Errorf("Process: %w", procErr)
	}

	next := now.Add(s.policy.Backoff(event.Attempts))
	if err := s.events.MarkRetry(writeCtx, event.ID, msg, next, now); err != nil {
		return false, fmt.Errorf("Process: %w", err)
	}
	logger.Warn("webhook event scheduled for retry",
		"error", msg,
		"permanent", domain.IsPermanent(procErr),
		"next_retry_at", next,
	)
	return false, fmt.Errorf("Process: %w", procErr)
}

func (s *EventStore) reconcile(ctx context.Context, event *domain.WebhookEvent) (res reconcile.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during reconciliation: %v", r)
		}
	}()

	n, err := gateway.Normalize(event.Provider, event.Payload)
	if err != nil {
		return reconcile.Result{}, domain.Permanent(err)
	}
	return s.engine.Reconcile(ctx, n)
}

// Due returns pending events whose retry time has passed, plus events never
// attempted that are older than unattemptedAge.
func (s *EventStore) Due(ctx context.Context, unattemptedAge time.Duration, limit int) ([]domain.WebhookEvent, error) {
	now := s.now()
	events, err := s.events.ListDue(ctx, now, now.Add(-unattemptedAge), limit)
	if err != nil {
		return nil, fmt.Errorf("Due: %w", err)
	}
	return events, nil
}

// ReleaseStale recovers events left in processing by a crashed worker.
func (s *EventStore) ReleaseStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	now := s.now()
	n, err := s.events.ReleaseStale(ctx, now.Add(-olderThan), s.policy.MaxAttempts, now)
	if err != nil {
		return 0, fmt.Errorf("ReleaseStale: %w", err)
	}
	if n > 0 {
		s.logger.Warn("released stale webhook claims", "count", n)
	}
	return n, nil
}

// Cleanup deletes completed and failed events last touched more than daysOld days ago.
func (s *EventStore) Cleanup(ctx context.Context, daysOld int) (int64, error) {
	if daysOld < 1 {
		return 0, fmt.Errorf("Cleanup: %w: retention must be at least one day", domain.ErrInvalidRequest)
	}
	cutoff := s.now().AddDate(0, 0, -daysOld)
	n, err := s.events.DeleteFinishedBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("Cleanup: %w", err)
	}
	s.logger.Info("webhook events cleaned up", "deleted", n, "cutoff", cutoff)
	return n, nil
}

func (s *EventStore) Get(ctx context.Context, id uuid.UUID) (*domain.WebhookEvent, error) {
	event, err := s.events.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return event, nil
}

func (s *EventStore) List(ctx context.Context, status domain.WebhookEventStatus, limit int) ([]domain.WebhookEvent, error) {
	if !status.IsValid() {
		return nil, fmt.Errorf("List: %w: unknown status %q", domain.ErrInvalidRequest, status)
	}
	events, err := s.events.ListByStatus(ctx, status, limit)
	if err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	return events, nil
}

// Requeue resets a failed event so the scheduler picks it up on its next sweep.
func (s *EventStore) Requeue(ctx context.Context, id uuid.UUID) error {
	if err := s.events.Requeue(ctx, id, s.now()); err != nil {
		return fmt.Errorf("Requeue: %w", err)
	}
	s.logger.Info("webhook event requeued", "webhook_event_id", id)
	return nil
}
