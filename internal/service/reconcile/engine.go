package reconcile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/boostmarket/paywebhook/internal/domain"
)

type bookingRepo interface {
	GetByOrderCodeForUpdate(ctx context.Context, tx *sql.Tx, orderCode string) (*domain.Booking, error)
	UpdatePaymentState(ctx context.Context, tx *sql.Tx, id uuid.UUID, status domain.BookingStatus, paymentStatus domain.BookingPaymentStatus, now time.Time) error
}

type paymentRepo interface {
	CreateIfAbsent(ctx context.Context, tx *sql.Tx, payment *domain.Payment) (*domain.Payment, bool, error)
}

type txRunner interface {
	InTx(ctx context.Context, fn func(tx *sql.Tx) error) error
}

// Result describes what a successful reconciliation did. Note is non-empty
// when the gateway reported the payment as failed.
type Result struct {
	Outcome        domain.Outcome
	BookingID      uuid.UUID
	PaymentCreated bool
	Note           string
}

type Engine struct {
	bookings bookingRepo
	payments paymentRepo
	db       txRunner
	logger   *slog.Logger
	now      func() time.Time
}

func NewEngine(bookings bookingRepo, payments paymentRepo, db txRunner, logger *slog.Logger) *Engine {
	return &Engine{
		bookings: bookings,
		payments: payments,
		db:       db,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Reconcile applies a verified notification to the booking it references.
// Errors wrapped with domain.Permanent will not resolve on retry.
func (e *Engine) Reconcile(ctx context.Context, n domain.Notification) (Result, error) {
	switch n.Outcome {
	case domain.OutcomeSuccess:
		return e.applySuccess(ctx, n)
	case domain.OutcomeFailure:
		return e.applyFailure(ctx, n)
	case domain.OutcomePending:
		return Result{Outcome: n.Outcome}, fmt.Errorf("Reconcile: result code %s: %w", n.ResultCode, domain.ErrPaymentPending)
	default:
		return Result{}, domain.Permanent(fmt.Errorf("Reconcile: unknown outcome %q: %w", n.Outcome, domain.ErrInvalidPayload))
	}
}

func (e *Engine) applySuccess(ctx context.Context, n domain.Notification) (Result, error) {
	res := Result{Outcome: domain.OutcomeSuccess}

	// Payments are keyed by transaction id; without one a success cannot be recorded.
	if n.TransactionID == "" || n.TransactionID == "0" {
		return res, domain.Permanent(fmt.Errorf("applySuccess: order %s has no transaction id: %w", n.OrderCode, domain.ErrInvalidPayload))
	}

	err := e.db.InTx(ctx, func(tx *sql.Tx) error {
		booking, err := e.lockBooking(ctx, tx, n.OrderCode)
		if err != nil {
			return err
		}
		res.BookingID = booking.ID

		if booking.IsClosed() {
			return domain.Permanent(fmt.Errorf("booking %s is %s: %w", booking.OrderCode, booking.Status, domain.ErrBookingClosed))
		}
		if !n.Amount.Equal(booking.TotalAmount) {
			return domain.Permanent(fmt.Errorf("paid %s, booking total %s: %w", n.Amount, booking.TotalAmount, domain.ErrAmountMismatch))
		}

		now := e.now()
		paidAt := n.PaidAt
		if paidAt.IsZero() {
			paidAt = now
		}
		stored, created, err := e.payments.CreateIfAbsent(ctx, tx, &domain.Payment{
			ID:            uuid.New(),
			BookingID:     booking.ID,
			Amount:        n.Amount,
			Method:        n.Provider,
			TransactionID: n.TransactionID,
			Status:        domain.PaymentStatusCompleted,
			PaidAt:        paidAt,
			CreatedAt:     now,
		})
		if err != nil {
			return fmt.Errorf("create payment: %w", err)
		}
		if stored.BookingID != booking.ID {
			return domain.Permanent(fmt.Errorf("%s transaction %s belongs to booking %s: %w",
				n.Provider, n.TransactionID, stored.BookingID, domain.ErrTransactionConflict))
		}
		res.PaymentCreated = created

		status := booking.Status
		if status == domain.BookingStatusPending {
			status = domain.BookingStatusConfirmed
		}
		if status == booking.Status && booking.PaymentStatus == domain.BookingPaymentCompleted {
			return nil
		}
		if err := e.bookings.UpdatePaymentState(ctx, tx, booking.ID, status, domain.BookingPaymentCompleted, now); err != nil {
			return fmt.Errorf("update booking: %w", err)
		}
		return nil
	})
	if err != nil {
		return res, fmt.Errorf("applySuccess: %w", err)
	}

	e.logger.Info("payment reconciled",
		"provider", n.Provider,
		"order_code", n.OrderCode,
		"transaction_id", n.TransactionID,
		"booking_id", res.BookingID,
		"payment_created", res.PaymentCreated,
	)
	return res, nil
}

func (e *Engine) applyFailure(ctx context.Context, n domain.Notification) (Result, error) {
	res := Result{Outcome: domain.OutcomeFailure, Note: failureNote(n)}

	err := e.db.InTx(ctx, func(tx *sql.Tx) error {
		booking, err := e.lockBooking(ctx, tx, n.OrderCode)
		if err != nil {
			return err
		}
		res.BookingID = booking.ID

		// A late failure must never undo a payment that already settled.
		if booking.PaymentStatus != domain.BookingPaymentPending {
			return nil
		}
		if err := e.bookings.UpdatePaymentState(ctx, tx, booking.ID, booking.Status, domain.BookingPaymentFailed, e.now()); err != nil {
			return fmt.Errorf("update booking: %w", err)
		}
		return nil
	})
	if err != nil {
		return res, fmt.Errorf("applyFailure: %w", err)
	}

	e.logger.Info("payment failure recorded",
		"provider", n.Provider,
		"order_code", n.OrderCode,
		"result_code", n.ResultCode,
		"booking_id", res.BookingID,
	)
	return res, nil
}

func (e *Engine) lockBooking(ctx context.Context, tx *sql.Tx, orderCode string) (*domain.Booking, error) {
	booking, err := e.bookings.GetByOrderCodeForUpdate(ctx, tx, orderCode)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("order %s: %w", orderCode, domain.ErrBookingNotFound)
		}
		return nil, fmt.Errorf("lock booking: %w", err)
	}
	return booking, nil
}

func failureNote(n domain.Notification) string {
	if n.Message == "" {
		return fmt.Sprintf("payment failed at %s: result code %s", n.Provider, n.ResultCode)
	}
	return fmt.Sprintf("payment failed at %s: result code %s (%s)", n.Provider, n.ResultCode, n.Message)
}
