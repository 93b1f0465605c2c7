package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tewereus/prime-property/pkg/logger"
	"github.com/tewereus/prime-property/pkg/redis"
)

var (
	ErrAlreadyProcessed   = errors.New("callback already processed")
	ErrLockAcquireFailed  = errors.New("failed to acquire processing lock")
	ErrMaxRetriesExceeded = errors.New("maximum retries exceeded")
)

type IdempotencyConfig struct {
	LockTTL      time.Duration
	ProcessedTTL time.Duration
	MaxRetries   int

	RetryKeyPrefix     string
	LockKeyPrefix      string
	ProcessedKeyPrefix string
}

func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		LockTTL:            30 * time.Second,
		ProcessedTTL:       24 * time.Hour,
		MaxRetries:         3,
		RetryKeyPrefix:     "callback:retry:",
		LockKeyPrefix:      "callback:lock:",
		ProcessedKeyPrefix: "callback:processed:",
	}
}

// IdempotencyService keeps a redis-side dedupe layer in front of the
// database CAS. The DB transition is the final arbiter, this layer cuts
// duplicate provider deliveries before they touch the database.
type IdempotencyService struct {
	redis  redis.RedisAdapter
	config IdempotencyConfig
}

func NewIdempotencyService(redisAdapter redis.RedisAdapter, config IdempotencyConfig) *IdempotencyService {
	return &IdempotencyService{
		redis:  redisAdapter,
		config: config,
	}
}

// ProcessingContext tracks one in-flight callback keyed by provider ref.
type ProcessingContext struct {
	TxRef        string
	RetryCount   int
	IsRetry      bool
	lockAcquired bool
	service      *IdempotencyService
}

// AcquireProcessingLock returns ErrAlreadyProcessed for a callback that was
// resolved within ProcessedTTL and ErrLockAcquireFailed while another
// consumer holds the ref.
func (s *IdempotencyService) AcquireProcessingLock(ctx context.Context, txRef string) (*ProcessingContext, error) {
	processedKey := s.config.ProcessedKeyPrefix + txRef
	exists, err := s.redis.Exist(processedKey)
	if err != nil {
		// A failed check falls through to the DB CAS, duplicates are safe there.
		logger.Warn("Failed to check processed marker", "tx_ref", txRef, "error", err)
	} else if exists > 0 {
		return nil, ErrAlreadyProcessed
	}

	retryKey := s.config.RetryKeyPrefix + txRef
	retryCount := 0
	if raw, err := s.redis.Get(retryKey); err == nil && len(raw) > 0 {
		fmt.Sscanf(string(raw), "%d", &retryCount)
	}

	if retryCount >= s.config.MaxRetries {
		logger.Error("Max retries exceeded for callback", "tx_ref", txRef, "retry_count", retryCount)
		return nil, fmt.Errorf("%w: tx_ref=%s, retries=%d", ErrMaxRetriesExceeded, txRef, retryCount)
	}

	lockKey := s.config.LockKeyPrefix + txRef
	lockValue := []byte(fmt.Sprintf("%d", time.Now().UnixNano()))

	acquired, err := s.redis.SetNX(lockKey, lockValue, s.config.LockTTL)
	if err != nil {
		logger.Error("Failed to acquire lock", "tx_ref", txRef, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrLockAcquireFailed, err)
	}
	if !acquired {
		return nil, ErrLockAcquireFailed
	}

	logger.Debug("Processing lock acquired", "tx_ref", txRef, "retry_count", retryCount)

	return &ProcessingContext{
		TxRef:        txRef,
		RetryCount:   retryCount,
		IsRetry:      retryCount > 0,
		lockAcquired: true,
		service:      s,
	}, nil
}

// MarkSuccess writes the long-term processed marker and drops lock state.
func (s *IdempotencyService) MarkSuccess(ctx context.Context, pc *ProcessingContext) error {
	processedKey := s.config.ProcessedKeyPrefix + pc.TxRef
	if err := s.redis.Set(processedKey, []byte("1"), s.config.ProcessedTTL); err != nil {
		logger.Error("Failed to set processed marker", "tx_ref", pc.TxRef, "error", err)
		return fmt.Errorf("failed to mark as processed: %w", err)
	}

	s.cleanup(pc)
	return nil
}

// MarkFailure bumps the retry counter and drops the lock so the next
// delivery attempt can run.
func (s *IdempotencyService) MarkFailure(ctx context.Context, pc *ProcessingContext, reason error) error {
	retryKey := s.config.RetryKeyPrefix + pc.TxRef
	newRetryCount := pc.RetryCount + 1
	if err := s.redis.Set(retryKey, []byte(fmt.Sprintf("%d", newRetryCount)), s.config.ProcessedTTL); err != nil {
		logger.Error("Failed to increment retry counter", "tx_ref", pc.TxRef, "error", err)
	}

	lockKey := s.config.LockKeyPrefix + pc.TxRef
	if err := s.redis.Del(lockKey); err != nil {
		logger.Warn("Failed to remove lock", "tx_ref", pc.TxRef, "error", err)
	}
	pc.lockAcquired = false

	logger.Warn("Callback processing failed, will retry",
		"tx_ref", pc.TxRef,
		"retry_count", newRetryCount,
		"max_retries", s.config.MaxRetries,
		"reason", reason)

	return nil
}

func (s *IdempotencyService) ReleaseLock(ctx context.Context, pc *ProcessingContext) error {
	if pc == nil || !pc.lockAcquired {
		return nil
	}

	lockKey := s.config.LockKeyPrefix + pc.TxRef
	if err := s.redis.Del(lockKey); err != nil {
		logger.Warn("Failed to release lock", "tx_ref", pc.TxRef, "error", err)
		return err
	}

	pc.lockAcquired = false
	return nil
}

func (s *IdempotencyService) cleanup(pc *ProcessingContext) {
	if err := s.redis.Del(s.config.LockKeyPrefix + pc.TxRef); err != nil {
		logger.Warn("Failed to cleanup lock", "tx_ref", pc.TxRef, "error", err)
	}
	if err := s.redis.Del(s.config.RetryKeyPrefix + pc.TxRef); err != nil {
		logger.Warn("Failed to cleanup retry counter", "tx_ref", pc.TxRef, "error", err)
	}
	pc.lockAcquired = false
}

func (s *IdempotencyService) GetRetryCount(ctx context.Context, txRef string) (int, error) {
	raw, err := s.redis.Get(s.config.RetryKeyPrefix + txRef)
	if err != nil {
		if err == redis.NilError {
			return 0, nil
		}
		return 0, err
	}

	retryCount := 0
	fmt.Sscanf(string(raw), "%d", &retryCount)
	return retryCount, nil
}

func (s *IdempotencyService) IsProcessed(ctx context.Context, txRef string) (bool, error) {
	exists, err := s.redis.Exist(s.config.ProcessedKeyPrefix + txRef)
	if err != nil {
		return false, err
	}
	return exists > 0, nil
}
