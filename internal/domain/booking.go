package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type BookingStatus string

const (
	BookingStatusPending    BookingStatus = "pending"
	BookingStatusConfirmed  BookingStatus = "confirmed"
	BookingStatusInProgress BookingStatus = "in_progress"
	BookingStatusCompleted  BookingStatus = "completed"
	BookingStatusCancelled  BookingStatus = "cancelled"
	BookingStatusRefunded   BookingStatus = "refunded"
)

type BookingPaymentStatus string

const (
	BookingPaymentPending   BookingPaymentStatus = "pending"
	BookingPaymentCompleted BookingPaymentStatus = "completed"
	BookingPaymentFailed    BookingPaymentStatus = "failed"
	BookingPaymentRefunded  BookingPaymentStatus = "refunded"
)

// Booking is owned by the booking subsystem. Reconciliation only advances
// Status and PaymentStatus.
type Booking struct {
	ID            uuid.UUID
	OrderCode     string
	TotalAmount   decimal.Decimal
	Status        BookingStatus
	PaymentStatus BookingPaymentStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (b *Booking) IsClosed() bool {
	return b.Status == BookingStatusCancelled || b.Status == BookingStatusRefunded
}
