package storage

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"mediabot/internal/config"
	"mediabot/internal/logging"
)

// Sweeper deletes uploads and outputs older than the retention window.
type Sweeper struct {
	dirs      []string
	retention time.Duration
	logger    *slog.Logger
}

// NewSweeper watches the uploads and outputs directories from the config.
func NewSweeper(cfg *config.Config, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Sweeper{
		dirs:      []string{cfg.Paths.UploadsDir, cfg.Paths.OutputsDir},
		retention: time.Duration(cfg.Storage.RetentionHours) * time.Hour,
		logger:    logging.NewComponentLogger(logger, "retention"),
	}
}

// Sweep removes expired files once and returns how many were deleted.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	if s.retention <= 0 {
		return 0, nil
	}
	cutoff := time.Now().Add(-s.retention)
	removed := 0
	for _, dir := range s.dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return removed, err
		}
		for _, entry := range entries {
			if err := ctx.Err(); err != nil {
				return removed, err
			}
			if entry.IsDir() {
				continue
			}
			info, err := entry.Info()
			if err != nil {
				continue
			}
			if info.ModTime().After(cutoff) {
				continue
			}
			path := filepath.Join(dir, entry.Name())
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				s.logger.Warn("remove expired artifact", logging.String("path", path), logging.Error(err))
				continue
			}
			removed++
		}
	}
	if removed > 0 {
		s.logger.Info("expired artifacts removed", logging.Int("count", removed))
	}
	return removed, nil
}

// Run sweeps on the interval until the context is cancelled. An interval of
// zero or below defaults to hourly.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("retention sweep", logging.Error(err))
			}
		}
	}
}
