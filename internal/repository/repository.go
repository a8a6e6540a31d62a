// Package repository persists the solver's domain objects: run
// requests, their results, and the tuning suggestions the advisor
// derives from them. The interfaces are storage-agnostic; gorm.go
// supplies the GORM-backed implementation used in production.
package repository

import (
	"context"

	"github.com/octmg/octmg/pkg/model"
)

// RunRequestRepository manages the lifecycle of solve requests: the
// scheduler polls GetPendingRuns, claims one with LockRunForExecution,
// and reports outcomes through UpdateRunStatus(WithInfo).
type RunRequestRepository interface {
	// GetPendingRuns retrieves runs queued but not yet started, newest first.
	GetPendingRuns(ctx context.Context, limit int) ([]*model.RunRequest, error)

	// GetRunByID retrieves a run by its numeric ID.
	GetRunByID(ctx context.Context, id int64) (*model.RunRequest, error)

	// GetRunByUUID retrieves a run by its UUID.
	GetRunByUUID(ctx context.Context, uuid string) (*model.RunRequest, error)

	// UpdateRunStatus updates a run's lifecycle status.
	UpdateRunStatus(ctx context.Context, id int64, status model.RunStatus) error

	// UpdateRunStatusWithInfo updates status plus a human-readable detail
	// (e.g. the structural error that aborted the run).
	UpdateRunStatusWithInfo(ctx context.Context, id int64, status model.RunStatus, info string) error

	// LockRunForExecution atomically claims a pending run for this worker,
	// returning false if another worker already claimed it.
	LockRunForExecution(ctx context.Context, id int64) (bool, error)
}

// RunResultRepository persists the outcome of a completed run.
type RunResultRepository interface {
	SaveResult(ctx context.Context, result *model.RunResult) error
	GetResultByRunUUID(ctx context.Context, runUUID string) (*model.RunResult, error)
	UpdateResult(ctx context.Context, result *model.RunResult) error
}

// SuggestionRepository persists the tuning suggestions an advisor pass
// derives from a run's convergence history.
type SuggestionRepository interface {
	SaveSuggestions(ctx context.Context, suggestions []model.TuningSuggestion) error
	GetSuggestionsByRunUUID(ctx context.Context, runUUID string) ([]model.TuningSuggestion, error)
}
