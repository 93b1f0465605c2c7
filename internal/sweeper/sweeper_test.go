package sweeper

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type countingLifecycle struct {
	calls atomic.Int32
	err   error
}

func (c *countingLifecycle) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	c.calls.Add(1)
	if c.err != nil {
		return 0, c.err
	}
	return 2, nil
}

func TestSweeper_RunsOnInterval(t *testing.T) {
	lc := &countingLifecycle{}
	s := New(lc, 20*time.Millisecond)

	s.Start()
	time.Sleep(100 * time.Millisecond)
	s.Stop()

	assert.GreaterOrEqual(t, lc.calls.Load(), int32(2))
}

func TestSweeper_StopHaltsTicker(t *testing.T) {
	lc := &countingLifecycle{}
	s := New(lc, 20*time.Millisecond)

	s.Start()
	time.Sleep(50 * time.Millisecond)
	s.Stop()

	after := lc.calls.Load()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, after, lc.calls.Load())
}

func TestSweeper_SurvivesErrors(t *testing.T) {
	lc := &countingLifecycle{err: assert.AnError}
	s := New(lc, 20*time.Millisecond)

	s.Start()
	time.Sleep(100 * time.Millisecond)
	s.Stop()

	assert.GreaterOrEqual(t, lc.calls.Load(), int32(2))
}

func TestSweeper_DefaultsInterval(t *testing.T) {
	s := New(&countingLifecycle{}, 0)
	assert.Equal(t, time.Minute, s.interval)
}
