package workers

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakePurger struct {
	sessions atomic.Int32
	resets   atomic.Int32
	err      error
}

func (f *fakePurger) DeleteExpired(context.Context, time.Time) (int64, error) {
	f.sessions.Add(1)
	return 2, f.err
}

func (f *fakePurger) ClearExpiredResetTokens(context.Context, time.Time) (int64, error) {
	f.resets.Add(1)
	return 1, f.err
}

func TestSweepLogsCounts(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	p := &fakePurger{}
	w := NewTokenCleanup(p, p, zap.New(core), time.Hour)
	w.Sweep()

	assert.EqualValues(t, 1, p.sessions.Load())
	assert.EqualValues(t, 1, p.resets.Load())
	assert.Equal(t, 1, logs.FilterMessage("deleted expired sessions").Len())
	assert.Equal(t, 1, logs.FilterMessage("cleared expired reset tokens").Len())
}

func TestSweepLogsErrors(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	p := &fakePurger{err: errors.New("db down")}
	NewTokenCleanup(p, nil, zap.New(core), time.Hour).Sweep()
	assert.Equal(t, 1, logs.FilterMessage("failed to delete expired sessions").Len())
	assert.EqualValues(t, 0, p.resets.Load())
}

func TestStartStop(t *testing.T) {
	p := &fakePurger{}
	w := NewTokenCleanup(p, p, zap.NewNop(), 5*time.Millisecond)
	w.Start()
	assert.Eventually(t, func() bool { return p.sessions.Load() >= 2 }, time.Second, 5*time.Millisecond)
	w.Stop()
	w.Stop()
	n := p.sessions.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, n, p.sessions.Load())
}
