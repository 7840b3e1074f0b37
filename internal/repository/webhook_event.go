package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/boostmarket/paywebhook/internal/domain"
)

const webhookEventColumns = `id, provider, event_type, event_id, payload, status, attempts,
	last_attempt_at, next_retry_at, error_message, created_at, updated_at`

type WebhookEventRepository struct {
	db *sql.DB
}

func NewWebhookEventRepository(db *sql.DB) *WebhookEventRepository {
	return &WebhookEventRepository{db: db}
}

// Upsert inserts the event or returns the row already stored under
// (provider, event_id). The returned bool is true when this call inserted it.
func (r *WebhookEventRepository) Upsert(ctx context.Context, event *domain.WebhookEvent) (*domain.WebhookEvent, bool, error) {
	// The no-op update makes RETURNING yield the existing row on conflict;
	// xmax = 0 only for freshly inserted tuples.
	row := r.db.QueryRowContext(ctx,
		`INSERT INTO webhook_events (
			id, provider, event_type, event_id, payload, status, attempts, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, 0, $7, $7)
		ON CONFLICT (provider, event_id) DO UPDATE SET provider = EXCLUDED.provider
		RETURNING `+webhookEventColumns+`, (xmax = 0) AS inserted`,
		event.ID, event.Provider, event.EventType, event.EventID, string(event.Payload),
		domain.WebhookEventStatusPending, event.CreatedAt,
	)

	var inserted bool
	e, err := scanWebhookEvent(row, &inserted)
	if err != nil {
		return nil, false, fmt.Errorf("Upsert: %w", err)
	}
	return e, inserted, nil
}

func (r *WebhookEventRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.WebhookEvent, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+webhookEventColumns+` FROM webhook_events WHERE id = $1`, id,
	)
	e, err := scanWebhookEvent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return e, nil
}

func (r *WebhookEventRepository) GetByProviderEventID(ctx context.Context, provider domain.Provider, eventID string) (*domain.WebhookEvent, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+webhookEventColumns+` FROM webhook_events WHERE provider = $1 AND event_id = $2`,
		provider, eventID,
	)
	e, err := scanWebhookEvent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByProviderEventID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByProviderEventID: %w", err)
	}
	return e, nil
}

// Claim moves a pending event to processing. Only one caller can win; the
// others get domain.ErrNotFound.
func (r *WebhookEventRepository) Claim(ctx context.Context, id uuid.UUID, now time.Time) (*domain.WebhookEvent, error) {
	row := r.db.QueryRowContext(ctx,
		`UPDATE webhook_events
		SET status = $1, attempts = attempts + 1, last_attempt_at = $2, updated_at = $2
		WHERE id = $3 AND status = $4
		RETURNING `+webhookEventColumns,
		domain.WebhookEventStatusProcessing, now, id, domain.WebhookEventStatusPending,
	)
	e, err := scanWebhookEvent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("Claim: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("Claim: %w", err)
	}
	return e, nil
}

// MarkCompleted finishes a claimed event. note records a gateway-side payment
// failure reason and may be nil.
func (r *WebhookEventRepository) MarkCompleted(ctx context.Context, id uuid.UUID, note *string, now time.Time) error {
	return r.finish(ctx, "MarkCompleted",
		`UPDATE webhook_events
		SET status = $1, next_retry_at = NULL, error_message = $2, updated_at = $3
		WHERE id = $4 AND status = $5`,
		domain.WebhookEventStatusCompleted, note, now, id, domain.WebhookEventStatusProcessing,
	)
}

func (r *WebhookEventRepository) MarkRetry(ctx context.Context, id uuid.UUID, errMsg string, nextRetryAt, now time.Time) error {
	return r.finish(ctx, "MarkRetry",
		`UPDATE webhook_events
		SET status = $1, next_retry_at = $2, error_message = $3, updated_at = $4
		WHERE id = $5 AND status = $6`,
		domain.WebhookEventStatusPending, nextRetryAt, errMsg, now, id, domain.WebhookEventStatusProcessing,
	)
}

func (r *WebhookEventRepository) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string, now time.Time) error {
	return r.finish(ctx, "MarkFailed",
		`UPDATE webhook_events
		SET status = $1, next_retry_at = NULL, error_message = $2, updated_at = $3
		WHERE id = $4 AND status = $5`,
		domain.WebhookEventStatusFailed, errMsg, now, id, domain.WebhookEventStatusProcessing,
	)
}

func (r *WebhookEventRepository) finish(ctx context.Context, op, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if rows == 0 {
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	}
	return nil
}

// ListDue returns pending events ready for another attempt, oldest first.
// Events that were never attempted become due once created before neverAttemptedCutoff.
func (r *WebhookEventRepository) ListDue(ctx context.Context, now, neverAttemptedCutoff time.Time, limit int) ([]domain.WebhookEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+webhookEventColumns+` FROM webhook_events
		WHERE status = $1
		  AND ((next_retry_at IS NOT NULL AND next_retry_at <= $2)
		    OR (next_retry_at IS NULL AND created_at <= $3))
		ORDER BY created_at
		LIMIT $4`,
		domain.WebhookEventStatusPending, now, neverAttemptedCutoff, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("ListDue: %w", err)
	}
	defer rows.Close()

	events, err := collectWebhookEvents(rows)
	if err != nil {
		return nil, fmt.Errorf("ListDue: %w", err)
	}
	return events, nil
}

func (r *WebhookEventRepository) ListByStatus(ctx context.Context, status domain.WebhookEventStatus, limit int) ([]domain.WebhookEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+webhookEventColumns+` FROM webhook_events
		WHERE status = $1 ORDER BY updated_at DESC LIMIT $2`,
		status, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("ListByStatus: %w", err)
	}
	defer rows.Close()

	events, err := collectWebhookEvents(rows)
	if err != nil {
		return nil, fmt.Errorf("ListByStatus: %w", err)
	}
	return events, nil
}

// ReleaseStale returns events stuck in processing since before cutoff to
// pending, or to failed once they have used every attempt.
func (r *WebhookEventRepository) ReleaseStale(ctx context.Context, cutoff time.Time, maxAttempts int, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE webhook_events
		SET status = CASE WHEN attempts >= $1 THEN $2 ELSE $3 END,
		    next_retry_at = CASE WHEN attempts >= $1 THEN NULL ELSE $4::timestamptz END,
		    error_message = 'processing claim expired',
		    updated_at = $4
		WHERE status = $5 AND last_attempt_at < $6`,
		maxAttempts, domain.WebhookEventStatusFailed, domain.WebhookEventStatusPending, now,
		domain.WebhookEventStatusProcessing, cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("ReleaseStale: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("ReleaseStale: rows affected: %w", err)
	}
	return n, nil
}

// Requeue gives a permanently failed event a fresh set of attempts.
func (r *WebhookEventRepository) Requeue(ctx context.Context, id uuid.UUID, now time.Time) error {
	return r.finish(ctx, "Requeue",
		`UPDATE webhook_events
		SET status = $1, attempts = 0, next_retry_at = $2, error_message = NULL, updated_at = $2
		WHERE id = $3 AND status = $4`,
		domain.WebhookEventStatusPending, now, id, domain.WebhookEventStatusFailed,
	)
}

func (r *WebhookEventRepository) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM webhook_events WHERE status IN ($1, $2) AND updated_at < $3`,
		domain.WebhookEventStatusCompleted, domain.WebhookEventStatusFailed, cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("DeleteFinishedBefore: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("DeleteFinishedBefore: rows affected: %w", err)
	}
	return n, nil
}

func collectWebhookEvents(rows *sql.Rows) ([]domain.WebhookEvent, error) {
	var events []domain.WebhookEvent
	for rows.Next() {
		e, err := scanWebhookEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		events = append(events, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return events, nil
}

func scanWebhookEvent(s scanner, extra ...any) (*domain.WebhookEvent, error) {
	var e domain.WebhookEvent
	var payload []byte
	dest := []any{
		&e.ID, &e.Provider, &e.EventType, &e.EventID, &payload, &e.Status, &e.Attempts,
		&e.LastAttemptAt, &e.NextRetryAt, &e.ErrorMessage, &e.CreatedAt, &e.UpdatedAt,
	}
	if err := s.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	e.Payload = payload
	return &e, nil
}
