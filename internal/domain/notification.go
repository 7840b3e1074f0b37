package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	OutcomePending Outcome = "pending"
)

// Notification is the provider-neutral view of a payment callback.
type Notification struct {
	Provider      Provider
	OrderCode     string
	TransactionID string
	Amount        decimal.Decimal
	Outcome       Outcome
	ResultCode    string
	Message       string
	PaidAt        time.Time
}
