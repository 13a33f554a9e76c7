package bootstrap

import (
	"context"

	"github.com/tokenized/pollr/internal/index"
	"github.com/tokenized/pollr/internal/platform/config"
	"github.com/tokenized/pollr/internal/platform/db"
	"github.com/tokenized/pollr/internal/platform/metrics"
	"github.com/tokenized/pollr/pkg/scheduler"

	"github.com/pkg/errors"
	"github.com/tokenized/pkg/logger"
)

// IndexStats publishes the size of the poll index.
type IndexStats struct {
	Store   *index.Store
	Metrics *metrics.Metrics
}

func (s *IndexStats) Run(ctx context.Context) error {
	stats := s.Store.Stats()
	s.Metrics.IndexSize(stats.Open, stats.Closed, stats.Votes)
	logger.Verbose(ctx, "Index : %d open, %d closed, %d votes", stats.Open, stats.Closed,
		stats.Votes)
	return nil
}

// StorageHealth checks that the storage is still reachable.
type StorageHealth struct {
	MasterDB *db.DB
}

func (h *StorageHealth) Run(ctx context.Context) error {
	if err := h.MasterDB.StatusCheck(ctx); err != nil {
		return errors.Wrap(err, "status check")
	}
	return nil
}

// NewScheduler returns a scheduler running the periodic index stats and storage health jobs.
func NewScheduler(ctx context.Context, cfg *config.Config, store *index.Store, masterDB *db.DB,
	m *metrics.Metrics) *scheduler.Scheduler {

	result := scheduler.NewScheduler(scheduler.DefaultTick)

	if cfg.Jobs.StatsInterval > 0 {
		stats := &IndexStats{Store: store, Metrics: m}
		if err := stats.Run(ctx); err != nil {
			logger.Warn(ctx, "Initial index stats : %s", err)
		}
		result.ScheduleJob(ctx, scheduler.NewPeriodicProcess("IndexStats", stats,
			cfg.Jobs.StatsInterval))
	}

	if cfg.Jobs.HealthInterval > 0 {
		result.ScheduleJob(ctx, scheduler.NewPeriodicProcess("StorageHealth",
			&StorageHealth{MasterDB: masterDB}, cfg.Jobs.HealthInterval))
	}

	return result
}
