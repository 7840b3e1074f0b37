// Package gateway parses MoMo, VNPay and ZaloPay callback payloads and
// normalizes them into domain.Notification.
package gateway

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	go_json "github.com/goccy/go-json"

	"github.com/boostmarket/paywebhook/internal/domain"
)

// Payload is implemented only by the provider payload types in this package.
type Payload interface {
	Provider() domain.Provider
	// EventID is deterministic: redelivery of the same notification yields the same value.
	EventID() string
	// Timestamp is the gateway-supplied time used by the replay window.
	Timestamp() (time.Time, error)
	Notification() (domain.Notification, error)

	payload()
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Encode serializes a verified payload for storage.
func Encode(p Payload) (json.RawMessage, error) {
	b, err := go_json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("Encode: %w", err)
	}
	return b, nil
}

// Decode restores a stored payload.
func Decode(provider domain.Provider, raw json.RawMessage) (Payload, error) {
	switch provider {
	case domain.ProviderMoMo:
		var p MoMoPayload
		if err := go_json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("Decode: momo: %w: %w", domain.ErrInvalidPayload, err)
		}
		if err := validatePayload(&p); err != nil {
			return nil, fmt.Errorf("Decode: momo: %w", err)
		}
		return &p, nil
	case domain.ProviderVNPay:
		var p VNPayPayload
		if err := go_json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("Decode: vnpay: %w: %w", domain.ErrInvalidPayload, err)
		}
		if err := validatePayload(&p); err != nil {
			return nil, fmt.Errorf("Decode: vnpay: %w", err)
		}
		return &p, nil
	case domain.ProviderZaloPay:
		var env zaloPayEnvelope
		if err := go_json.Unmarshal(raw, &env); err != nil {
			return nil, fmt.Errorf("Decode: zalopay: %w: %w", domain.ErrInvalidPayload, err)
		}
		p, err := newZaloPayPayload(env)
		if err != nil {
			return nil, fmt.Errorf("Decode: %w", err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("Decode: %q: %w", provider, domain.ErrUnknownProvider)
	}
}

// Normalize decodes a stored payload straight into its notification.
func Normalize(provider domain.Provider, raw json.RawMessage) (domain.Notification, error) {
	p, err := Decode(provider, raw)
	if err != nil {
		return domain.Notification{}, err
	}
	return p.Notification()
}

func validatePayload(v any) error {
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidPayload, err)
	}
	return nil
}
