package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Provider string

const (
	ProviderMoMo    Provider = "momo"
	ProviderVNPay   Provider = "vnpay"
	ProviderZaloPay Provider = "zalopay"
)

func (p Provider) IsValid() bool {
	switch p {
	case ProviderMoMo, ProviderVNPay, ProviderZaloPay:
		return true
	}
	return false
}

type WebhookEventStatus string

const (
	WebhookEventStatusPending    WebhookEventStatus = "pending"
	WebhookEventStatusProcessing WebhookEventStatus = "processing"
	WebhookEventStatusCompleted  WebhookEventStatus = "completed"
	WebhookEventStatusFailed     WebhookEventStatus = "failed"
)

func (s WebhookEventStatus) IsValid() bool {
	switch s {
	case WebhookEventStatusPending, WebhookEventStatusProcessing,
		WebhookEventStatusCompleted, WebhookEventStatusFailed:
		return true
	}
	return false
}

const EventTypePaymentNotification = "payment_notification"

// WebhookEvent is one verified gateway callback. (Provider, EventID) is unique.
type WebhookEvent struct {
	ID            uuid.UUID
	Provider      Provider
	EventType     string
	EventID       string
	Payload       json.RawMessage
	Status        WebhookEventStatus
	Attempts      int
	LastAttemptAt *time.Time
	NextRetryAt   *time.Time
	ErrorMessage  *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
