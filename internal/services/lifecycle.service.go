package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tewereus/prime-property/internal/gateways"
	"github.com/tewereus/prime-property/internal/model"
	"github.com/tewereus/prime-property/internal/repository"
	"github.com/tewereus/prime-property/pkg/logger"
	"github.com/tewereus/prime-property/pkg/prom"
)

var (
	// ErrPaymentPending maps the duplicate-transaction invariant to the
	// caller: a second submission while one charge is open is a conflict.
	ErrPaymentPending = errors.New("a payment is already pending or confirmed for this property")

	ErrMissingLocation = errors.New("property location must be set before publication")
)

type TransactionRepository interface {
	CreateInitiated(ctx context.Context, txn *model.PaymentTransaction) (*model.PaymentTransaction, error)
	GetByProviderRef(ctx context.Context, providerRef string) (*model.PaymentTransaction, error)
	ListByProperty(ctx context.Context, propertyID int64) ([]*model.PaymentTransaction, error)
	SetCheckoutURL(ctx context.Context, id int64, url string) error
	Resolve(ctx context.Context, providerRef string, status model.TransactionStatus, resolvedAt time.Time) (*model.PaymentTransaction, error)
	ListStaleInitiated(ctx context.Context, cutoff time.Time, limit int) ([]*model.PaymentTransaction, error)
}

type PaymentProvider interface {
	Initiate(ctx context.Context, req *gateways.InitiateRequest) (*gateways.InitiateResponse, error)
}

// LifecycleConfig carries the publication policy knobs loaded at startup.
type LifecycleConfig struct {
	FeeCents      int64
	Currency      string
	ExpiryTimeout time.Duration
	SweepBatch    int
}

// ListingLifecycle orchestrates the draft → pending_payment → active /
// rejected / expired state machine. Every state write goes through the
// property repository's compare-and-set, so two racing workflows can never
// both finalize the same property.
type ListingLifecycle struct {
	propertyRepo PropertyRepository
	txnRepo      TransactionRepository
	provider     PaymentProvider
	cfg          LifecycleConfig
}

func NewListingLifecycle(propertyRepo PropertyRepository, txnRepo TransactionRepository, provider PaymentProvider, cfg LifecycleConfig) *ListingLifecycle {
	if cfg.SweepBatch <= 0 {
		cfg.SweepBatch = 100
	}
	return &ListingLifecycle{
		propertyRepo: propertyRepo,
		txnRepo:      txnRepo,
		provider:     provider,
		cfg:          cfg,
	}
}

// SubmitForPayment reserves the charge, asks the provider for a checkout
// session and moves the property to PENDING_PAYMENT. The INITIATED row is
// written before the provider call: it is the reservation that makes a
// concurrent second submission fail instead of double-charging. If anything
// after the reservation fails, the reservation is resolved FAILED and the
// property stays DRAFT.
func (s *ListingLifecycle) SubmitForPayment(ctx context.Context, propertyID, ownerID int64, method model.PaymentMethod) (*model.PaymentTransaction, error) {
	p, err := s.propertyRepo.Get(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	if p.OwnerID != ownerID {
		return nil, ErrNotOwner
	}
	if p.State != model.PropertyStateDraft {
		return nil, fmt.Errorf("%w: property is %s, submit requires draft", ErrInvalidState, p.State)
	}
	if !p.HasLocation() {
		return nil, ErrMissingLocation
	}

	txRef := uuid.NewString()
	txn, err := s.txnRepo.CreateInitiated(ctx, &model.PaymentTransaction{
		PropertyID:  propertyID,
		Method:      method,
		AmountCents: s.cfg.FeeCents,
		Currency:    s.cfg.Currency,
		ProviderRef: txRef,
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateTransaction) {
			return nil, ErrPaymentPending
		}
		return nil, err
	}

	resp, err := s.provider.Initiate(ctx, &gateways.InitiateRequest{
		TxRef:       txRef,
		Method:      method,
		AmountCents: txn.AmountCents,
		Currency:    txn.Currency,
	})
	if err != nil {
		s.abandonReservation(ctx, txRef, err)
		return nil, fmt.Errorf("initiate payment: %w", err)
	}

	if err := s.txnRepo.SetCheckoutURL(ctx, txn.ID, resp.CheckoutURL); err != nil {
		logger.Warn("failed to record checkout url", "tx_ref", txRef, "error", err)
	}

	if _, err := s.propertyRepo.Transition(ctx, propertyID, model.PropertyStateDraft, model.PropertyStatePendingPayment); err != nil {
		s.abandonReservation(ctx, txRef, err)
		if errors.Is(err, repository.ErrStateConflict) {
			return nil, ErrStateConflict
		}
		return nil, err
	}

	txn.CheckoutURL = resp.CheckoutURL
	logger.Info("payment initiated",
		"property_id", propertyID,
		"tx_ref", txRef,
		"method", string(method),
		"amount_cents", txn.AmountCents)
	return txn, nil
}

// abandonReservation frees the one-pending invariant after a failed submit.
func (s *ListingLifecycle) abandonReservation(ctx context.Context, txRef string, cause error) {
	if _, err := s.txnRepo.Resolve(ctx, txRef, model.TransactionStatusFailed, time.Now()); err != nil && !errors.Is(err, repository.ErrAlreadyResolved) {
		logger.Error("failed to abandon payment reservation", "tx_ref", txRef, "cause", cause, "error", err)
		return
	}
	logger.Warn("payment reservation abandoned", "tx_ref", txRef, "cause", cause)
}

// OnPaymentConfirmed activates a property whose charge was confirmed. Losing
// the compare-and-set to a concurrent callback retry counts as success: the
// listing is active either way.
func (s *ListingLifecycle) OnPaymentConfirmed(ctx context.Context, propertyID int64) error {
	_, err := s.propertyRepo.Transition(ctx, propertyID, model.PropertyStatePendingPayment, model.PropertyStateActive)
	if err == nil {
		return nil
	}
	if errors.Is(err, repository.ErrStateConflict) {
		p, getErr := s.propertyRepo.Get(ctx, propertyID)
		if getErr == nil && p.State == model.PropertyStateActive {
			return nil // already applied
		}
		return ErrStateConflict
	}
	return err
}

// OnPaymentFailed rejects the submission. The property stays around for
// audit and the owner may edit it back into DRAFT.
func (s *ListingLifecycle) OnPaymentFailed(ctx context.Context, propertyID int64) error {
	_, err := s.propertyRepo.Transition(ctx, propertyID, model.PropertyStatePendingPayment, model.PropertyStateRejected)
	if err == nil {
		return nil
	}
	if errors.Is(err, repository.ErrStateConflict) {
		p, getErr := s.propertyRepo.Get(ctx, propertyID)
		if getErr == nil && p.State == model.PropertyStateRejected {
			return nil
		}
		return ErrStateConflict
	}
	return err
}

// ResolveCallback applies an authenticated provider callback. The
// transaction resolve is the idempotency barrier: once a provider_ref is
// resolved, a replay re-drives the property transition toward the recorded
// terminal status instead of writing a second outcome. The resolve and the
// property write are separate statements, so a redelivery after a crash
// between them must finish the property side.
func (s *ListingLifecycle) ResolveCallback(ctx context.Context, cb model.PaymentCallback) error {
	status := model.TransactionStatusFailed
	if cb.Outcome == model.CallbackOutcomeSuccess {
		status = model.TransactionStatusConfirmed
	}

	txn, err := s.txnRepo.Resolve(ctx, cb.ProviderRef, status, time.Now())
	if err != nil {
		if errors.Is(err, repository.ErrAlreadyResolved) {
			return s.reconcileResolved(ctx, cb.ProviderRef)
		}
		return err
	}

	prom.IncCallbackOutcome(string(cb.Outcome), string(txn.Method))

	if status == model.TransactionStatusConfirmed {
		if err := s.OnPaymentConfirmed(ctx, txn.PropertyID); err != nil {
			return err
		}
		prom.AddListingActivationDuration(time.Since(txn.CreatedAt).Seconds(), string(txn.Method))
		logger.Info("listing activated", "property_id", txn.PropertyID, "tx_ref", cb.ProviderRef)
		return nil
	}

	if err := s.OnPaymentFailed(ctx, txn.PropertyID); err != nil {
		return err
	}
	logger.Info("listing rejected", "property_id", txn.PropertyID, "tx_ref", cb.ProviderRef)
	return nil
}

// reconcileResolved handles a callback whose transaction is already
// resolved. The recorded status, not the replayed outcome, decides where the
// property belongs: a worker that died between the transaction resolve and
// the property write left the property behind, and the redelivery is the
// retry that catches it up. FAILED and EXPIRED tolerate a property that
// moved on (the owner may have edited and resubmitted since); CONFIRMED
// propagates errors so delivery retries until the listing is active.
func (s *ListingLifecycle) reconcileResolved(ctx context.Context, providerRef string) error {
	txn, err := s.txnRepo.GetByProviderRef(ctx, providerRef)
	if err != nil {
		return err
	}

	switch txn.Status {
	case model.TransactionStatusConfirmed:
		if err := s.OnPaymentConfirmed(ctx, txn.PropertyID); err != nil {
			return err
		}
	case model.TransactionStatusFailed:
		if err := s.OnPaymentFailed(ctx, txn.PropertyID); err != nil && !errors.Is(err, ErrStateConflict) {
			return err
		}
	case model.TransactionStatusExpired:
		if _, err := s.propertyRepo.Transition(ctx, txn.PropertyID, model.PropertyStatePendingPayment, model.PropertyStateExpired); err != nil && !errors.Is(err, repository.ErrStateConflict) {
			return err
		}
	}

	logger.Info("callback replay reconciled", "tx_ref", providerRef, "status", string(txn.Status))
	return nil
}

// Cancel lets the owner abandon a pending submission without waiting for
// the expiry sweep: PENDING_PAYMENT → REJECTED, reservation freed.
func (s *ListingLifecycle) Cancel(ctx context.Context, txRef string, ownerID int64) error {
	txn, err := s.txnRepo.GetByProviderRef(ctx, txRef)
	if err != nil {
		return err
	}
	p, err := s.propertyRepo.Get(ctx, txn.PropertyID)
	if err != nil {
		return err
	}
	if p.OwnerID != ownerID {
		return ErrNotOwner
	}

	if _, err := s.txnRepo.Resolve(ctx, txRef, model.TransactionStatusFailed, time.Now()); err != nil {
		if errors.Is(err, repository.ErrAlreadyResolved) {
			return ErrStateConflict
		}
		return err
	}
	return s.OnPaymentFailed(ctx, txn.PropertyID)
}

// Status serves payment polling.
func (s *ListingLifecycle) Status(ctx context.Context, txRef string) (*model.PaymentTransaction, error) {
	return s.txnRepo.GetByProviderRef(ctx, txRef)
}

// SweepExpired reclaims PENDING_PAYMENT properties whose charge was never
// resolved within the configured timeout. The sweep and a late callback may
// race on the same rows, whoever wins the conditional updates wins, the
// loser's writes are no-ops.
func (s *ListingLifecycle) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	stale, err := s.txnRepo.ListStaleInitiated(ctx, now.Add(-s.cfg.ExpiryTimeout), s.cfg.SweepBatch)
	if err != nil {
		return 0, err
	}

	swept := 0
	for _, txn := range stale {
		if _, err := s.txnRepo.Resolve(ctx, txn.ProviderRef, model.TransactionStatusExpired, now); err != nil {
			if errors.Is(err, repository.ErrAlreadyResolved) {
				continue // callback got there first
			}
			logger.Error("sweep: failed to expire transaction", "tx_ref", txn.ProviderRef, "error", err)
			continue
		}

		if _, err := s.propertyRepo.Transition(ctx, txn.PropertyID, model.PropertyStatePendingPayment, model.PropertyStateExpired); err != nil {
			if !errors.Is(err, repository.ErrStateConflict) {
				logger.Error("sweep: failed to expire property", "property_id", txn.PropertyID, "error", err)
			}
			continue
		}

		swept++
		prom.IncSweepExpired()
		logger.Info("listing expired by sweep", "property_id", txn.PropertyID, "tx_ref", txn.ProviderRef)
	}
	return swept, nil
}
