package sync

import (
	"context"
	"time"

	fiberlog "github.com/gofiber/fiber/v2/log"
)

// RetryScheduler periodically drains the failed-delivery queue.
type RetryScheduler struct {
	syncService *Service
	interval    time.Duration
	stopChan    chan struct{}
}

func NewRetryScheduler(syncService *Service, interval time.Duration) *RetryScheduler {
	if interval == 0 {
		interval = 5 * time.Minute
	}
	return &RetryScheduler{
		syncService: syncService,
		interval:    interval,
		stopChan:    make(chan struct{}),
	}
}

func (s *RetryScheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	fiberlog.Infof("sync retry scheduler started, running every %s", s.interval)

	for {
		select {
		case <-ticker.C:
			if err := s.syncService.ProcessPending(ctx); err != nil {
				fiberlog.Errorf("sync retry pass failed: %v", err)
			}
		case <-s.stopChan:
			fiberlog.Info("sync retry scheduler stopped")
			return
		case <-ctx.Done():
			fiberlog.Info("sync retry scheduler stopped due to context cancellation")
			return
		}
	}
}

func (s *RetryScheduler) Stop() {
	close(s.stopChan)
}
