package testutil

import (
	"database/sql"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/boostmarket/paywebhook/internal/domain"
)

func SeedBooking(t *testing.T, db *sql.DB, orderCode string, total decimal.Decimal) uuid.UUID {
	t.Helper()
	return SeedBookingWithStatus(t, db, orderCode, total, domain.BookingStatusPending, domain.BookingPaymentPending)
}

func SeedBookingWithStatus(t *testing.T, db *sql.DB, orderCode string, total decimal.Decimal, status domain.BookingStatus, paymentStatus domain.BookingPaymentStatus) uuid.UUID {
	t.Helper()

	id := uuid.New()
	_, err := db.Exec(
		`INSERT INTO bookings (id, order_code, total_amount, status, payment_status)
		 VALUES ($1, $2, $3, $4, $5)`,
		id, orderCode, total, status, paymentStatus,
	)
	if err != nil {
		t.Fatalf("seed booking %s: %v", orderCode, err)
	}
	return id
}

func GetBooking(t *testing.T, db *sql.DB, orderCode string) domain.Booking {
	t.Helper()

	var b domain.Booking
	err := db.QueryRow(
		`SELECT id, order_code, total_amount, status, payment_status, created_at, updated_at
		 FROM bookings WHERE order_code = $1`, orderCode,
	).Scan(&b.ID, &b.OrderCode, &b.TotalAmount, &b.Status, &b.PaymentStatus, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		t.Fatalf("get booking %s: %v", orderCode, err)
	}
	return b
}

func CountPayments(t *testing.T, db *sql.DB, bookingID uuid.UUID) int {
	t.Helper()

	var n int
	if err := db.QueryRow(`SELECT count(*) FROM payments WHERE booking_id = $1`, bookingID).Scan(&n); err != nil {
		t.Fatalf("count payments: %v", err)
	}
	return n
}

func CountWebhookEvents(t *testing.T, db *sql.DB, provider domain.Provider) int {
	t.Helper()

	var n int
	if err := db.QueryRow(`SELECT count(*) FROM webhook_events WHERE provider = $1`, provider).Scan(&n); err != nil {
		t.Fatalf("count webhook events: %v", err)
	}
	return n
}
