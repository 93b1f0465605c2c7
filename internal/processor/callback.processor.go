package processor

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/tewereus/prime-property/internal/model"
	"github.com/tewereus/prime-property/internal/queue"
	"github.com/tewereus/prime-property/internal/repository"
	"github.com/tewereus/prime-property/pkg/logger"
)

// CallbackResolver applies an authenticated callback to the transaction
// and property records.
type CallbackResolver interface {
	ResolveCallback(ctx context.Context, cb model.PaymentCallback) error
}

// PaymentCallbackProcessor consumes queued provider callbacks. The redis
// lock dedupes concurrent deliveries, the database resolve underneath is
// the final idempotency barrier.
type PaymentCallbackProcessor struct {
	resolver    CallbackResolver
	idempotency *IdempotencyService
}

func NewPaymentCallbackProcessor(resolver CallbackResolver, idempotency *IdempotencyService) *PaymentCallbackProcessor {
	return &PaymentCallbackProcessor{
		resolver:    resolver,
		idempotency: idempotency,
	}
}

func (p *PaymentCallbackProcessor) GetType() string {
	return "payment_callback"
}

func (p *PaymentCallbackProcessor) Process(ctx context.Context, queueMessage *queue.Message) error {
	var cb model.PaymentCallback
	if err := json.Unmarshal(queueMessage.Data, &cb); err != nil {
		logger.Error("Failed to unmarshal callback", "error", err)
		return err
	}
	if cb.ProviderRef == "" {
		logger.Error("Callback without tx_ref dropped")
		return nil
	}

	procCtx, err := p.idempotency.AcquireProcessingLock(ctx, cb.ProviderRef)
	if err != nil {
		if errors.Is(err, ErrAlreadyProcessed) {
			logger.Info("Callback already processed, skipping", "tx_ref", cb.ProviderRef)
			return nil
		}
		if errors.Is(err, ErrMaxRetriesExceeded) {
			// Ack so the message dead-letters instead of looping forever.
			logger.Error("Max retries exceeded, dropping callback", "tx_ref", cb.ProviderRef)
			return nil
		}
		if errors.Is(err, ErrLockAcquireFailed) {
			return errors.New("lock held by another consumer")
		}
		return err
	}

	defer func() {
		if procCtx.lockAcquired {
			p.idempotency.ReleaseLock(ctx, procCtx)
		}
	}()

	logger.Info("Processing payment callback",
		"tx_ref", cb.ProviderRef,
		"outcome", string(cb.Outcome),
		"retry_count", procCtx.RetryCount)

	if err := p.resolver.ResolveCallback(ctx, cb); err != nil {
		if errors.Is(err, repository.ErrTransactionNotFound) {
			// No transaction ever carried this ref, a retry cannot fix it.
			logger.Error("Callback references unknown transaction, dropping", "tx_ref", cb.ProviderRef)
			if markErr := p.idempotency.MarkSuccess(ctx, procCtx); markErr != nil {
				logger.Error("Failed to mark success", "tx_ref", cb.ProviderRef, "error", markErr)
			}
			return nil
		}
		if markErr := p.idempotency.MarkFailure(ctx, procCtx, err); markErr != nil {
			logger.Error("Failed to mark failure", "tx_ref", cb.ProviderRef, "error", markErr)
		}
		return err
	}

	if markErr := p.idempotency.MarkSuccess(ctx, procCtx); markErr != nil {
		// The database already resolved the transaction, the marker is
		// only an optimization.
		logger.Error("Failed to mark success", "tx_ref", cb.ProviderRef, "error", markErr)
	}

	return nil
}
