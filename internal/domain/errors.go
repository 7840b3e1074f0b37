package domain

import "errors"

var (
	ErrNotFound             = errors.New("not found")
	ErrInvalidRequest       = errors.New("invalid request")
	ErrInvalidPayload       = errors.New("invalid payload")
	ErrInvalidSignature     = errors.New("invalid signature")
	ErrTimestampOutOfWindow = errors.New("timestamp outside accepted window")
	ErrBookingNotFound      = errors.New("booking not found")
	ErrAmountMismatch       = errors.New("amount mismatch")
	ErrBookingClosed        = errors.New("booking is cancelled or refunded")
	ErrPaymentPending       = errors.New("payment outcome not final")
	ErrTransactionConflict  = errors.New("transaction already settled another booking")
	ErrUnknownProvider      = errors.New("unknown provider")
)

// ErrPermanent marks failures that will not resolve by retrying. They are
// still subject to the retry cap; the marker exists for operator triage.
var ErrPermanent = errors.New("permanent")

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }

func (e *permanentError) Unwrap() []error { return []error{e.err, ErrPermanent} }

func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func IsPermanent(err error) bool {
	return errors.Is(err, ErrPermanent)
}
