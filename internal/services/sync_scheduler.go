package services

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// SyncSchedulerConfig holds configuration for the periodic email sync
type SyncSchedulerConfig struct {
	// Interval between two sweeps over all coaches
	Interval time.Duration
	// Timeout bounds a single sweep; defaults to Interval
	Timeout time.Duration
}

// SyncScheduler runs AutoSyncAllCoaches on a fixed period
type SyncScheduler struct {
	sync    EmailSyncService
	config  SyncSchedulerConfig
	logger  *slog.Logger
	stopCh  chan struct{}
	sweepMu sync.Mutex
	wg      sync.WaitGroup
	running bool
	mu      sync.Mutex
}

// NewSyncScheduler creates a new sync scheduler
func NewSyncScheduler(syncService EmailSyncService, config SyncSchedulerConfig, logger *slog.Logger) *SyncScheduler {
	if config.Interval <= 0 {
		config.Interval = 10 * time.Minute
	}
	if config.Timeout <= 0 {
		config.Timeout = config.Interval
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &SyncScheduler{
		sync:   syncService,
		config: config,
		logger: logger,
		stopCh: make(chan struct{}),
	}
}

// Start begins the periodic sweep
func (s *SyncScheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	stop := make(chan struct{})
	s.stopCh = stop
	s.wg.Add(1)
	s.mu.Unlock()

	go s.loop(stop)

	s.logger.Info("email sync scheduler started", slog.Duration("interval", s.config.Interval))
}

// Stop waits for an in-flight sweep and stops the scheduler
func (s *SyncScheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("email sync scheduler stopped")
}

// IsRunning returns whether the scheduler is running
func (s *SyncScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *SyncScheduler) loop(stop <-chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.sweep(stop)
		}
	}
}

// sweep runs one sync tick. Overlapping ticks are skipped.
func (s *SyncScheduler) sweep(stop <-chan struct{}) {
	if !s.sweepMu.TryLock() {
		s.logger.Warn("previous email sync sweep still running, skipping tick")
		return
	}
	defer s.sweepMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.config.Timeout)
	defer cancel()

	// Stop cancels a sweep in progress
	go func() {
		select {
		case <-stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	started := time.Now()
	if err := s.sync.AutoSyncAllCoaches(ctx); err != nil {
		s.logger.Error("email sync sweep failed", slog.Any("error", err))
		return
	}
	s.logger.Debug("email sync sweep done", slog.Duration("took", time.Since(started)))
}

// TriggerNow runs a sweep immediately in the background. Stop waits for it.
func (s *SyncScheduler) TriggerNow() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		s.logger.Warn("trigger called but scheduler is not running")
		return
	}

	stop := s.stopCh
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.sweep(stop)
	}()
}
