package model

import (
	"math"
	"time"
)

// RunResult is the terminal record of a solve: the final residual, how
// many cycles it took, and per-cycle history for the advisor.
type RunResult struct {
	RunUUID      string           `json:"uid" db:"uid"`
	Converged    bool             `json:"converged" db:"converged"`
	Cycles       int              `json:"cycles" db:"cycles"`
	InitResidual float64          `json:"init_residual" db:"init_residual"`
	FinalResidual float64         `json:"final_residual" db:"final_residual"`
	History      []ResidualSample `json:"history"`
	CheckpointKey string          `json:"checkpoint_key,omitempty" db:"checkpoint_key"`
	CompletedAt  time.Time        `json:"completed_at" db:"completed_at"`
}

// ResidualSample records one V-cycle's residual norm, timestamped
// relative to run start, for convergence-history reporting.
type ResidualSample struct {
	Cycle       int     `json:"cycle"`
	Lvl         int     `json:"lvl"`
	ResidualMax float64 `json:"residual_max"`
	ElapsedMS   int64   `json:"elapsed_ms"`
}

// ConvergenceRate returns the average per-cycle reduction factor across
// the recorded history, or 0 if fewer than two samples exist.
func (r *RunResult) ConvergenceRate() float64 {
	if len(r.History) < 2 {
		return 0
	}
	first := r.History[0].ResidualMax
	last := r.History[len(r.History)-1].ResidualMax
	if first <= 0 {
		return 0
	}
	n := float64(len(r.History) - 1)
	ratio := last / first
	if ratio <= 0 {
		return 0
	}
	return math.Pow(ratio, 1/n)
}
