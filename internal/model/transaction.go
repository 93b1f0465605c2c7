package model

import (
	"errors"
	"fmt"
	"time"
)

type PaymentMethod string

const (
	PaymentMethodTelebirr PaymentMethod = "telebirr"
	PaymentMethodCBE      PaymentMethod = "cbe"
	PaymentMethodCash     PaymentMethod = "cash"
)

func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch PaymentMethod(s) {
	case PaymentMethodTelebirr, PaymentMethodCBE, PaymentMethodCash:
		return PaymentMethod(s), nil
	}
	return "", fmt.Errorf("unknown payment method %q", s)
}

// TransactionStatus is the resolution state of a listing-fee transaction.
type TransactionStatus string

const (
	TransactionStatusInitiated TransactionStatus = "initiated"
	TransactionStatusConfirmed TransactionStatus = "confirmed"
	TransactionStatusFailed    TransactionStatus = "failed"
	TransactionStatusExpired   TransactionStatus = "expired"
)

// Resolved reports whether the status is terminal. A resolved transaction is
// never reprocessed, repeated provider callbacks for it are no-ops.
func (s TransactionStatus) Resolved() bool {
	return s != TransactionStatusInitiated
}

// PaymentTransaction is the charge record for one publication attempt.
// ProviderRef doubles as the idempotency key for provider callbacks: it is
// globally unique and every callback carrying the same ref resolves to the
// same outcome no matter how many times it is delivered.
type PaymentTransaction struct {
	ID          int64             `json:"id"`
	PropertyID  int64             `json:"property_id"`
	Method      PaymentMethod     `json:"method"`
	AmountCents int64             `json:"amount_cents"`
	Currency    string            `json:"currency"`
	Status      TransactionStatus `json:"status"`
	ProviderRef string            `json:"provider_ref"`
	CheckoutURL string            `json:"checkout_url,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	ResolvedAt  *time.Time        `json:"resolved_at,omitempty"`
}

// CallbackOutcome is the outcome field of a provider callback.
type CallbackOutcome string

const (
	CallbackOutcomeSuccess CallbackOutcome = "success"
	CallbackOutcomeFailed  CallbackOutcome = "failed"
)

var ErrUnknownOutcome = errors.New("unknown callback outcome")

func ParseCallbackOutcome(s string) (CallbackOutcome, error) {
	switch CallbackOutcome(s) {
	case CallbackOutcomeSuccess, CallbackOutcomeFailed:
		return CallbackOutcome(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownOutcome, s)
}

// PaymentCallback is the queue payload for an authenticated provider
// callback awaiting resolution.
type PaymentCallback struct {
	ProviderRef string          `json:"provider_ref"`
	Outcome     CallbackOutcome `json:"outcome"`
	ReceivedAt  time.Time       `json:"received_at"`
}
