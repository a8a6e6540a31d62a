package scheduler

import (
	"context"

	"github.com/octmg/octmg/internal/repository"
	"github.com/octmg/octmg/pkg/model"
)

// RepositoryRunFetcher implements RunFetcher using repository interfaces.
type RepositoryRunFetcher struct {
	runRepo repository.RunRequestRepository
}

// NewRepositoryRunFetcher creates a new RepositoryRunFetcher.
func NewRepositoryRunFetcher(runRepo repository.RunRequestRepository) *RepositoryRunFetcher {
	return &RepositoryRunFetcher{runRepo: runRepo}
}

// FetchPendingRuns returns pending runs to be processed.
func (f *RepositoryRunFetcher) FetchPendingRuns(ctx context.Context, limit int) ([]*Run, error) {
	runs, err := f.runRepo.GetPendingRuns(ctx, limit)
	if err != nil {
		return nil, err
	}

	result := make([]*Run, len(runs))
	for i, r := range runs {
		result[i] = convertModelRun(r, 0)
	}

	return result, nil
}

// LockRun attempts to lock a run for processing.
func (f *RepositoryRunFetcher) LockRun(ctx context.Context, runID int64) (bool, error) {
	return f.runRepo.LockRunForExecution(ctx, runID)
}

// UpdateRunStatus updates the run status.
func (f *RepositoryRunFetcher) UpdateRunStatus(ctx context.Context, runID int64, status model.RunStatus, info string) error {
	if info != "" {
		return f.runRepo.UpdateRunStatusWithInfo(ctx, runID, status, info)
	}
	return f.runRepo.UpdateRunStatus(ctx, runID, status)
}

// convertModelRun wraps a model.RunRequest as a scheduler.Run, carrying the
// priority the queue should schedule it with. IsHighPriority runs (a small
// interactive solve) are promoted ahead of large batch sweeps.
func convertModelRun(r *model.RunRequest, priority int) *Run {
	if r.IsHighPriority() {
		priority = 1
	}
	return &Run{Request: r, Priority: priority}
}
