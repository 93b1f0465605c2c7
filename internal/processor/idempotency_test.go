package processor

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tewereus/prime-property/pkg/redis"
)

func setupIdempotency(t *testing.T) *IdempotencyService {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	adapter, err := redis.NewRedisAdapter(t.Name()+"-"+mr.Addr(), "", &goredis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})
	require.NoError(t, err)

	return NewIdempotencyService(adapter, DefaultIdempotencyConfig())
}

func TestIdempotency_FirstAcquire(t *testing.T) {
	service := setupIdempotency(t)
	ctx := context.Background()

	procCtx, err := service.AcquireProcessingLock(ctx, "tx-first")
	require.NoError(t, err)
	require.NotNil(t, procCtx)
	assert.Equal(t, "tx-first", procCtx.TxRef)
	assert.Equal(t, 0, procCtx.RetryCount)
	assert.False(t, procCtx.IsRetry)
	assert.True(t, procCtx.lockAcquired)
}

func TestIdempotency_ConcurrentAcquireFails(t *testing.T) {
	service := setupIdempotency(t)
	ctx := context.Background()

	procCtx1, err := service.AcquireProcessingLock(ctx, "tx-concurrent")
	require.NoError(t, err)

	procCtx2, err := service.AcquireProcessingLock(ctx, "tx-concurrent")
	assert.ErrorIs(t, err, ErrLockAcquireFailed)
	assert.Nil(t, procCtx2)
	assert.True(t, procCtx1.lockAcquired)
}

func TestIdempotency_MarkSuccessBlocksReplay(t *testing.T) {
	service := setupIdempotency(t)
	ctx := context.Background()

	procCtx, err := service.AcquireProcessingLock(ctx, "tx-success")
	require.NoError(t, err)

	require.NoError(t, service.MarkSuccess(ctx, procCtx))

	processed, err := service.IsProcessed(ctx, "tx-success")
	require.NoError(t, err)
	assert.True(t, processed)

	replay, err := service.AcquireProcessingLock(ctx, "tx-success")
	assert.ErrorIs(t, err, ErrAlreadyProcessed)
	assert.Nil(t, replay)
}

func TestIdempotency_MarkFailureIncrementsRetry(t *testing.T) {
	service := setupIdempotency(t)
	ctx := context.Background()

	procCtx1, err := service.AcquireProcessingLock(ctx, "tx-retry")
	require.NoError(t, err)
	assert.Equal(t, 0, procCtx1.RetryCount)

	require.NoError(t, service.MarkFailure(ctx, procCtx1, assert.AnError))

	procCtx2, err := service.AcquireProcessingLock(ctx, "tx-retry")
	require.NoError(t, err)
	assert.Equal(t, 1, procCtx2.RetryCount)
	assert.True(t, procCtx2.IsRetry)
}

func TestIdempotency_MaxRetriesExceeded(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	adapter, err := redis.NewRedisAdapter(t.Name()+"-"+mr.Addr(), "", &goredis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})
	require.NoError(t, err)

	cfg := DefaultIdempotencyConfig()
	cfg.MaxRetries = 2
	service := NewIdempotencyService(adapter, cfg)

	ctx := context.Background()
	for i := 0; i < cfg.MaxRetries; i++ {
		procCtx, err := service.AcquireProcessingLock(ctx, "tx-exhausted")
		require.NoError(t, err)
		require.NoError(t, service.MarkFailure(ctx, procCtx, assert.AnError))
	}

	procCtx, err := service.AcquireProcessingLock(ctx, "tx-exhausted")
	assert.ErrorIs(t, err, ErrMaxRetriesExceeded)
	assert.Nil(t, procCtx)
}

func TestIdempotency_ReleaseLock(t *testing.T) {
	service := setupIdempotency(t)
	ctx := context.Background()

	procCtx, err := service.AcquireProcessingLock(ctx, "tx-release")
	require.NoError(t, err)

	require.NoError(t, service.ReleaseLock(ctx, procCtx))
	assert.False(t, procCtx.lockAcquired)

	procCtx2, err := service.AcquireProcessingLock(ctx, "tx-release")
	require.NoError(t, err)
	require.NotNil(t, procCtx2)
}

func TestIdempotency_GetRetryCount(t *testing.T) {
	service := setupIdempotency(t)
	ctx := context.Background()

	count, err := service.GetRetryCount(ctx, "tx-count")
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	procCtx, err := service.AcquireProcessingLock(ctx, "tx-count")
	require.NoError(t, err)
	require.NoError(t, service.MarkFailure(ctx, procCtx, assert.AnError))

	count, err = service.GetRetryCount(ctx, "tx-count")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
