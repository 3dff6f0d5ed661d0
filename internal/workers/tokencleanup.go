// Package workers holds periodic background jobs.
package workers

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// SessionPurger deletes refresh sessions that expired or were revoked
// before cutoff.
type SessionPurger interface {
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// ResetTokenPurger clears password reset tokens past their expiry.
type ResetTokenPurger interface {
	ClearExpiredResetTokens(ctx context.Context, now time.Time) (int64, error)
}

// TokenCleanup is a background worker that removes dead sessions and
// expired reset tokens.
type TokenCleanup struct {
	sessions SessionPurger
	resets   ResetTokenPurger
	log      *zap.Logger
	interval time.Duration
	now      func() time.Time
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewTokenCleanup creates the worker. interval is how often a sweep runs.
func NewTokenCleanup(sessions SessionPurger, resets ResetTokenPurger, logger *zap.Logger, interval time.Duration) *TokenCleanup {
	if interval <= 0 {
		interval = time.Hour
	}
	return &TokenCleanup{
		sessions: sessions,
		resets:   resets,
		log:      logger,
		interval: interval,
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
}

// Start runs one sweep immediately and then one per interval.
func (w *TokenCleanup) Start() {
	w.wg.Add(1)
	go w.run()
	w.log.Info("token cleanup worker started", zap.Duration("interval", w.interval))
}

// Stop signals the worker to stop and waits for it to finish.
func (w *TokenCleanup) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
	w.log.Info("token cleanup worker stopped")
}

func (w *TokenCleanup) run() {
	defer w.wg.Done()

	w.Sweep()
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.Sweep()
		}
	}
}

// Sweep performs a single cleanup pass.
func (w *TokenCleanup) Sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	now := w.now().UTC()

	if n, err := w.sessions.DeleteExpired(ctx, now); err != nil {
		w.log.Error("failed to delete expired sessions", zap.Error(err))
	} else if n > 0 {
		w.log.Info("deleted expired sessions", zap.Int64("count", n))
	}

	if w.resets == nil {
		return
	}
	if n, err := w.resets.ClearExpiredResetTokens(ctx, now); err != nil {
		w.log.Error("failed to clear expired reset tokens", zap.Error(err))
	} else if n > 0 {
		w.log.Info("cleared expired reset tokens", zap.Int64("count", n))
	}
}
