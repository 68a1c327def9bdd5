package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/autobuzz/autobuzz/internal/config"
)

// Scheduler runs periodic dispatch passes in-process. Deployments that rely
// on an external cron hitting the dispatch endpoint can disable it.
type Scheduler struct {
	config     *config.DispatchConfig
	logger     *zap.Logger
	dispatcher *Dispatcher
	ticker     *time.Ticker
	stopCh     chan struct{}
}

func NewScheduler(cfg *config.DispatchConfig, logger *zap.Logger, dispatcher *Dispatcher) *Scheduler {
	return &Scheduler{
		config:     cfg,
		logger:     logger,
		dispatcher: dispatcher,
		stopCh:     make(chan struct{}),
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	if !s.config.Enabled {
		s.logger.Info("Dispatch scheduler is disabled")
		return nil
	}

	interval, err := time.ParseDuration(s.config.Interval)
	if err != nil {
		s.logger.Error("Invalid dispatch interval", zap.String("interval", s.config.Interval), zap.Error(err))
		return err
	}

	s.logger.Info("Starting dispatch scheduler", zap.String("interval", s.config.Interval))

	s.ticker = time.NewTicker(interval)

	go func() {
		for {
			select {
			case <-s.ticker.C:
				s.runDispatch(ctx)
			case <-s.stopCh:
				s.logger.Info("Dispatch scheduler stopped")
				return
			case <-ctx.Done():
				s.logger.Info("Dispatch scheduler context cancelled")
				return
			}
		}
	}()

	return nil
}

func (s *Scheduler) Stop() {
	if s.ticker != nil {
		s.ticker.Stop()
	}
	close(s.stopCh)
	s.logger.Info("Dispatch scheduler shutdown completed")
}

func (s *Scheduler) runDispatch(ctx context.Context) {
	start := time.Now()
	summary, err := s.dispatcher.Run(ctx)
	duration := time.Since(start)

	if err != nil {
		s.logger.Error("Scheduled dispatch failed",
			zap.Error(err),
			zap.Duration("duration", duration))
		return
	}

	if summary.PostsProcessed > 0 || len(summary.Errors) > 0 {
		s.logger.Info("Scheduled dispatch completed",
			zap.Int("posts_processed", summary.PostsProcessed),
			zap.Int("errors", len(summary.Errors)),
			zap.Duration("duration", duration))
	}
}
