package jobs

import (
	"context"
	"fmt"

	"github.com/wonny/sectorpulse/internal/universe"
	"github.com/wonny/sectorpulse/pkg/logger"
)

// UniverseJob refreshes the in-memory symbol-to-sector index
// ⭐ SSOT: 유니버스 갱신 스케줄은 이 Job에서만
type UniverseJob struct {
	repo   *universe.Repository
	index  *universe.Index
	logger *logger.Logger
}

// NewUniverseJob creates a new universe refresh job
func NewUniverseJob(repo *universe.Repository, index *universe.Index, log *logger.Logger) *UniverseJob {
	return &UniverseJob{repo: repo, index: index, logger: log}
}

// Name returns the job name
func (j *UniverseJob) Name() string {
	return "universe_refresh"
}

// Schedule returns the cron schedule (hourly, before the half-hour rollups)
func (j *UniverseJob) Schedule() string {
	return "0 25 * * * *"
}

// Run reloads the index from the symbol table
func (j *UniverseJob) Run(ctx context.Context) error {
	entries, err := j.repo.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load universe: %w", err)
	}
	if len(entries) == 0 {
		return fmt.Errorf("universe load returned no symbols, keeping previous index")
	}

	j.index.Reload(entries)

	j.logger.WithFields(map[string]interface{}{
		"symbols": j.index.Size(),
		"sectors": len(j.index.Sectors()),
	}).Info("Universe index refreshed")

	return nil
}
