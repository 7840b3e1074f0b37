package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentStatus string

const PaymentStatusCompleted PaymentStatus = "completed"

// Payment is written once per settled gateway transaction and never updated.
type Payment struct {
	ID            uuid.UUID
	BookingID     uuid.UUID
	Amount        decimal.Decimal
	Method        Provider
	TransactionID string
	Status        PaymentStatus
	PaidAt        time.Time
	CreatedAt     time.Time
}
