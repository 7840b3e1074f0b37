package reconcile

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"maps"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boostmarket/paywebhook/internal/domain"
)

// memStore backs both repositories. InTx snapshots it and restores the
// snapshot when fn fails.
type memStore struct {
	bookings  map[string]domain.Booking
	payments  map[string]domain.Payment
	updateErr error
}

func newMemStore(bookings ...domain.Booking) *memStore {
	s := &memStore{bookings: map[string]domain.Booking{}, payments: map[string]domain.Payment{}}
	for _, b := range bookings {
		s.bookings[b.OrderCode] = b
	}
	return s
}

func (s *memStore) InTx(_ context.Context, fn func(tx *sql.Tx) error) error {
	bookings := maps.Clone(s.bookings)
	payments := maps.Clone(s.payments)
	if err := fn(nil); err != nil {
		s.bookings, s.payments = bookings, payments
		return err
	}
	return nil
}

func (s *memStore) GetByOrderCodeForUpdate(_ context.Context, _ *sql.Tx, orderCode string) (*domain.Booking, error) {
	b, ok := s.bookings[orderCode]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &b, nil
}

func (s *memStore) UpdatePaymentState(_ context.Context, _ *sql.Tx, id uuid.UUID, status domain.BookingStatus, paymentStatus domain.BookingPaymentStatus, _ time.Time) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	for code, b := range s.bookings {
		if b.ID == id {
			b.Status, b.PaymentStatus = status, paymentStatus
			s.bookings[code] = b
			return nil
		}
	}
	return domain.ErrNotFound
}

func (s *memStore) CreateIfAbsent(_ context.Context, _ *sql.Tx, p *domain.Payment) (*domain.Payment, bool, error) {
	key := string(p.Method) + "/" + p.TransactionID
	if existing, ok := s.payments[key]; ok {
		return &existing, false, nil
	}
	s.payments[key] = *p
	return p, true, nil
}

func newEngine(s *memStore) *Engine {
	return NewEngine(s, s, s, slog.Default())
}

func booking(code string, total int64, status domain.BookingStatus, ps domain.BookingPaymentStatus) domain.Booking {
	return domain.Booking{ID: uuid.New(), OrderCode: code, TotalAmount: decimal.NewFromInt(total), Status: status, PaymentStatus: ps}
}

func notification(code string, amount int64, outcome domain.Outcome) domain.Notification {
	return domain.Notification{
		Provider:      domain.ProviderMoMo,
		OrderCode:     code,
		TransactionID: "4088878653",
		Amount:        decimal.NewFromInt(amount),
		Outcome:       outcome,
		ResultCode:    "0",
		PaidAt:        time.Date(2026, 10, 16, 7, 30, 0, 0, time.UTC),
	}
}

func TestEngine_Success(t *testing.T) {
	s := newMemStore(booking("BK1", 150000, domain.BookingStatusPending, domain.BookingPaymentPending))
	e := newEngine(s)

	res, err := e.Reconcile(context.Background(), notification("BK1", 150000, domain.OutcomeSuccess))
	require.NoError(t, err)
	assert.True(t, res.PaymentCreated)
	assert.Empty(t, res.Note)

	b := s.bookings["BK1"]
	assert.Equal(t, domain.BookingStatusConfirmed, b.Status)
	assert.Equal(t, domain.BookingPaymentCompleted, b.PaymentStatus)
	require.Len(t, s.payments, 1)
	assert.Equal(t, b.ID, s.payments["momo/4088878653"].BookingID)
}

func TestEngine_SuccessIsIdempotent(t *testing.T) {
	s := newMemStore(booking("BK1", 150000, domain.BookingStatusPending, domain.BookingPaymentPending))
	e := newEngine(s)
	n := notification("BK1", 150000, domain.OutcomeSuccess)

	for i := range 3 {
		res, err := e.Reconcile(context.Background(), n)
		require.NoError(t, err)
		assert.Equal(t, i == 0, res.PaymentCreated)
	}
	assert.Len(t, s.payments, 1)
	assert.Equal(t, domain.BookingStatusConfirmed, s.bookings["BK1"].Status)
}

func TestEngine_SuccessKeepsAdvancedBookingStatus(t *testing.T) {
	s := newMemStore(booking("BK1", 150000, domain.BookingStatusInProgress, domain.BookingPaymentPending))

	_, err := newEngine(s).Reconcile(context.Background(), notification("BK1", 150000, domain.OutcomeSuccess))
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusInProgress, s.bookings["BK1"].Status)
	assert.Equal(t, domain.BookingPaymentCompleted, s.bookings["BK1"].PaymentStatus)
}

func TestEngine_SuccessRejected(t *testing.T) {
	tests := []struct {
		name      string
		booking   domain.Booking
		amount    int64
		wantErr   error
		permanent bool
	}{
		{
			name:      "amount mismatch",
			booking:   booking("BK1", 150000, domain.BookingStatusPending, domain.BookingPaymentPending),
			amount:    100000,
			wantErr:   domain.ErrAmountMismatch,
			permanent: true,
		},
		{
			name:      "cancelled booking",
			booking:   booking("BK1", 150000, domain.BookingStatusCancelled, domain.BookingPaymentPending),
			amount:    150000,
			wantErr:   domain.ErrBookingClosed,
			permanent: true,
		},
		{
			name:    "unknown booking",
			booking: booking("OTHER", 150000, domain.BookingStatusPending, domain.BookingPaymentPending),
			amount:  150000,
			wantErr: domain.ErrBookingNotFound,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := newMemStore(tc.booking)

			_, err := newEngine(s).Reconcile(context.Background(), notification("BK1", tc.amount, domain.OutcomeSuccess))
			require.ErrorIs(t, err, tc.wantErr)
			assert.Equal(t, tc.permanent, domain.IsPermanent(err))
			assert.Empty(t, s.payments)
			assert.Equal(t, tc.booking, s.bookings[tc.booking.OrderCode])
		})
	}
}

func TestEngine_SuccessRollsBackOnBookingUpdateError(t *testing.T) {
	original := booking("BK1", 150000, domain.BookingStatusPending, domain.BookingPaymentPending)
	s := newMemStore(original)
	s.updateErr = errors.New("connection reset")

	_, err := newEngine(s).Reconcile(context.Background(), notification("BK1", 150000, domain.OutcomeSuccess))
	require.Error(t, err)
	assert.False(t, domain.IsPermanent(err))
	assert.Empty(t, s.payments)
	assert.Equal(t, original, s.bookings["BK1"])
}

func TestEngine_Failure(t *testing.T) {
	tests := []struct {
		name       string
		booking    domain.Booking
		wantStatus domain.BookingPaymentStatus
	}{
		{
			name:       "pending payment becomes failed",
			booking:    booking("BK1", 150000, domain.BookingStatusPending, domain.BookingPaymentPending),
			wantStatus: domain.BookingPaymentFailed,
		},
		{
			name:       "completed payment is never regressed",
			booking:    booking("BK1", 150000, domain.BookingStatusConfirmed, domain.BookingPaymentCompleted),
			wantStatus: domain.BookingPaymentCompleted,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := newMemStore(tc.booking)
			n := notification("BK1", 150000, domain.OutcomeFailure)
			n.ResultCode = "1006"
			n.Message = "Transaction denied by user."

			res, err := newEngine(s).Reconcile(context.Background(), n)
			require.NoError(t, err)
			assert.Contains(t, res.Note, "1006")
			assert.Equal(t, tc.wantStatus, s.bookings["BK1"].PaymentStatus)
			assert.Equal(t, tc.booking.Status, s.bookings["BK1"].Status)
			assert.Empty(t, s.payments)
		})
	}
}

func TestEngine_PendingIsTransient(t *testing.T) {
	original := booking("BK1", 150000, domain.BookingStatusPending, domain.BookingPaymentPending)
	s := newMemStore(original)

	_, err := newEngine(s).Reconcile(context.Background(), notification("BK1", 150000, domain.OutcomePending))
	require.ErrorIs(t, err, domain.ErrPaymentPending)
	assert.False(t, domain.IsPermanent(err))
	assert.Equal(t, original, s.bookings["BK1"])
}

func TestEngine_SuccessWithoutTransactionID(t *testing.T) {
	for _, txID := range []string{"", "0"} {
		t.Run("transaction id "+strconv.Quote(txID), func(t *testing.T) {
			original := booking("BK1", 150000, domain.BookingStatusPending, domain.BookingPaymentPending)
			s := newMemStore(original)
			n := notification("BK1", 150000, domain.OutcomeSuccess)
			n.TransactionID = txID

			_, err := newEngine(s).Reconcile(context.Background(), n)
			require.ErrorIs(t, err, domain.ErrInvalidPayload)
			assert.True(t, domain.IsPermanent(err))
			assert.Empty(t, s.payments)
			assert.Equal(t, original, s.bookings["BK1"])
		})
	}
}

// A transaction id can pay for one booking only; reusing it for another must
// not mark the second booking paid.
func TestEngine_SuccessTransactionOwnedByAnotherBooking(t *testing.T) {
	other := booking("BK-B", 150000, domain.BookingStatusPending, domain.BookingPaymentPending)
	s := newMemStore(booking("BK-A", 150000, domain.BookingStatusPending, domain.BookingPaymentPending), other)
	e := newEngine(s)

	res, err := e.Reconcile(context.Background(), notification("BK-A", 150000, domain.OutcomeSuccess))
	require.NoError(t, err)
	require.True(t, res.PaymentCreated)

	_, err = e.Reconcile(context.Background(), notification("BK-B", 150000, domain.OutcomeSuccess))
	require.ErrorIs(t, err, domain.ErrTransactionConflict)
	assert.True(t, domain.IsPermanent(err))

	assert.Len(t, s.payments, 1)
	assert.Equal(t, s.bookings["BK-A"].ID, s.payments["momo/4088878653"].BookingID)
	assert.Equal(t, other, s.bookings["BK-B"])
}
