package janitor

import (
	"context"
	"time"

	"go.uber.org/zap"

	"meter-image-backend/config"
	"meter-image-backend/internal/storage"
)

// Service periodically sweeps abandoned staging files out of the storage
// root. The upload pipeline cleans up after every failure it survives; a
// process crash between staging and promotion is the one failure it
// cannot clean up after, and those leftovers would otherwise accumulate
// forever.
type Service struct {
	files    *storage.Dir
	interval time.Duration
	maxAge   time.Duration
	logger   *zap.Logger
}

// NewService creates and initializes a new janitor service.
func NewService(cfg *config.StorageConfig, files *storage.Dir, logger *zap.Logger) *Service {
	return &Service{
		files:    files,
		interval: time.Duration(cfg.SweepIntervalMinutes) * time.Minute,
		maxAge:   time.Duration(cfg.StaleStagingMinutes) * time.Minute,
		logger:   logger,
	}
}

// Run starts the sweep process in a loop.
func (s *Service) Run(ctx context.Context) {
	if s.interval <= 0 {
		s.logger.Info("staging sweep is disabled, not starting")
		return
	}

	s.SweepOnce()

	timer := time.NewTimer(s.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("janitor shutting down")
			return
		case <-timer.C:
			s.SweepOnce()
			timer.Reset(s.interval)
		}
	}
}

// SweepOnce performs a single sweep of the storage root.
func (s *Service) SweepOnce() {
	removed, err := s.files.SweepStaging(s.maxAge)
	if err != nil {
		s.logger.Error("staging sweep failed", zap.Error(err))
		return
	}
	if len(removed) > 0 {
		s.logger.Warn("removed abandoned staging files",
			zap.Int("count", len(removed)), zap.Strings("files", removed))
	}
}
