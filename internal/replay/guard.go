package replay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/boostmarket/paywebhook/internal/domain"
	"github.com/boostmarket/paywebhook/internal/logging"
)

const (
	DefaultMaxAge    = 5 * time.Minute
	DefaultClockSkew = 60 * time.Second
)

type eventLookup interface {
	GetByProviderEventID(ctx context.Context, provider domain.Provider, eventID string) (*domain.WebhookEvent, error)
}

// Cache remembers event keys that already completed. Implementations may
// lose entries at any time.
type Cache interface {
	Seen(ctx context.Context, provider domain.Provider, eventID string) (bool, error)
	Remember(ctx context.Context, provider domain.Provider, eventID string) error
}

// Result is the outcome of a replay check. Err is set only when Valid is false
// and the notification is not a duplicate.
type Result struct {
	Valid       bool
	IsDuplicate bool
	Err         error
}

type Guard struct {
	events    eventLookup
	cache     Cache
	maxAge    time.Duration
	clockSkew time.Duration
	now       func() time.Time
}

type Option func(*Guard)

func WithCache(c Cache) Option {
	return func(g *Guard) { g.cache = c }
}

func WithClock(now func() time.Time) Option {
	return func(g *Guard) { g.now = now }
}

func WithWindow(maxAge, clockSkew time.Duration) Option {
	return func(g *Guard) {
		if maxAge > 0 {
			g.maxAge = maxAge
		}
		if clockSkew >= 0 {
			g.clockSkew = clockSkew
		}
	}
}

func NewGuard(events eventLookup, opts ...Option) *Guard {
	g := &Guard{
		events:    events,
		maxAge:    DefaultMaxAge,
		clockSkew: DefaultClockSkew,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Validate checks the gateway timestamp window and then whether the event was
// already received. Any stored row counts as a duplicate, whatever its status.
func (g *Guard) Validate(ctx context.Context, provider domain.Provider, eventID string, ts time.Time) Result {
	if err := g.checkWindow(ts); err != nil {
		return Result{Err: err}
	}

	if g.cache != nil {
		seen, err := g.cache.Seen(ctx, provider, eventID)
		if err != nil {
			logging.FromContext(ctx).Warn("replay cache lookup failed",
				slog.String("provider", string(provider)),
				slog.String("event_id", eventID),
				slog.String("error", err.Error()),
			)
		} else if seen {
			return Result{IsDuplicate: true}
		}
	}

	_, err := g.events.GetByProviderEventID(ctx, provider, eventID)
	switch {
	case err == nil:
		return Result{IsDuplicate: true}
	case errors.Is(err, domain.ErrNotFound):
		return Result{Valid: true}
	default:
		return Result{Err: fmt.Errorf("Validate: %w", err)}
	}
}

// MarkCompleted records a completed event in the cache, if one is configured.
func (g *Guard) MarkCompleted(ctx context.Context, provider domain.Provider, eventID string) {
	if g.cache == nil {
		return
	}
	if err := g.cache.Remember(ctx, provider, eventID); err != nil {
		logging.FromContext(ctx).Warn("replay cache write failed",
			slog.String("provider", string(provider)),
			slog.String("event_id", eventID),
			slog.String("error", err.Error()),
		)
	}
}

func (g *Guard) checkWindow(ts time.Time) error {
	now := g.now()
	if ts.After(now.Add(g.clockSkew)) || ts.Before(now.Add(-g.maxAge)) {
		return domain.ErrTimestampOutOfWindow
	}
	return nil
}
