package services

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// BalanceRefresher periodically refreshes every connected session
type BalanceRefresher struct {
	manager  *SessionManager
	interval time.Duration
	workers  int
	logger   *zap.Logger
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewBalanceRefresher creates a new balance refresher
func NewBalanceRefresher(manager *SessionManager, interval time.Duration, workers int, logger *zap.Logger) *BalanceRefresher {
	if workers <= 0 {
		workers = 1
	}
	return &BalanceRefresher{
		manager:  manager,
		interval: interval,
		workers:  workers,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the refresh loop. A non-positive interval disables it.
func (r *BalanceRefresher) Start(ctx context.Context) {
	if r.interval <= 0 {
		r.logger.Info("Balance refresher disabled")
		return
	}

	r.logger.Info("Starting balance refresher", zap.Duration("interval", r.interval))
	r.wg.Add(1)
	go r.runLoop(ctx)
}

// Stop gracefully stops the refresher
func (r *BalanceRefresher) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopCh)
	})
	r.wg.Wait()
}

func (r *BalanceRefresher) runLoop(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.RefreshAll(ctx)
		}
	}
}

// RefreshAll refreshes every connected session once
func (r *BalanceRefresher) RefreshAll(ctx context.Context) {
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

	for _, session := range r.manager.Sessions() {
		session := session
		g.Go(func() error {
			if _, err := session.Refresh(gCtx); err != nil {
				r.logger.Warn("Background refresh failed",
					zap.String("identity", session.Identity()),
					zap.Error(err),
				)
			}
			return nil
		})
	}

	_ = g.Wait()
}
