// Package model defines the core data structures shared across the
// solver's service, repository, and scheduler layers.
package model

import (
	"encoding/json"
	"time"
)

// RunStatus represents the lifecycle state of a solve run.
type RunStatus int

const (
	RunStatusPending   RunStatus = 0 // queued, not yet started
	RunStatusRunning   RunStatus = 1 // V-cycles/FMG stages in progress
	RunStatusCompleted RunStatus = 2 // converged or iteration budget exhausted
	RunStatusFailed    RunStatus = 3 // aborted on a structural or transport error
)

// String returns the status's name.
func (s RunStatus) String() string {
	switch s {
	case RunStatusPending:
		return "pending"
	case RunStatusRunning:
		return "running"
	case RunStatusCompleted:
		return "completed"
	case RunStatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// CycleMode selects between a schedule of V-cycles and full multigrid
// (FMG), a single coarse-to-fine staircase of V-cycles.
type CycleMode int

const (
	CycleModeVCycle CycleMode = 0
	CycleModeFMG    CycleMode = 1
)

// String returns the cycle mode's name.
func (m CycleMode) String() string {
	switch m {
	case CycleModeVCycle:
		return "vcycle"
	case CycleModeFMG:
		return "fmg"
	default:
		return "unknown"
	}
}

// RunRequest describes one solve: the problem's grid shape plus the
// solver parameters a Driver needs to run it.
type RunRequest struct {
	ID             int64         `json:"id" db:"id"`
	RunUUID        string        `json:"uid" db:"uid"`
	Mode           CycleMode     `json:"mode" db:"mode"`
	Dim            int           `json:"dim" db:"dim"`
	BlockSize      int           `json:"block_size" db:"block_size"`
	LowestLvl      int           `json:"lowest_lvl" db:"lowest_lvl"`
	HighestLvl     int           `json:"highest_lvl" db:"highest_lvl"`
	FirstNormalLvl int           `json:"first_normal_lvl" db:"first_normal_lvl"`
	MaxVCycles     int           `json:"max_vcycles" db:"max_vcycles"`
	ResidualTolRel float64       `json:"residual_tol_rel" db:"residual_tol_rel"`
	ResidualTolAbs float64       `json:"residual_tol_abs" db:"residual_tol_abs"`
	Status         RunStatus     `json:"status" db:"status"`
	StatusInfo     string        `json:"status_info" db:"status_info"`
	RequestParams  SolverParams  `json:"request_params" db:"request_params"`
	CreateTime     time.Time     `json:"create_time" db:"create_time"`
	BeginTime      *time.Time    `json:"begin_time" db:"begin_time"`
	EndTime        *time.Time    `json:"end_time" db:"end_time"`
}

// SolverParams holds tunable solver parameters a request may override.
type SolverParams struct {
	SmootherKind    string `json:"smoother_kind,omitempty"`
	NCycleDown      int    `json:"ncycle_down,omitempty"`
	NCycleUp        int    `json:"ncycle_up,omitempty"`
	MaxCoarseCycles int    `json:"max_coarse_cycles,omitempty"`
	UseDirectCoarse bool   `json:"use_direct_coarse,omitempty"`
}

// UnmarshalJSON implements json.Unmarshaler for SolverParams.
func (p *SolverParams) UnmarshalJSON(data []byte) error {
	type Alias SolverParams
	aux := &struct{ *Alias }{Alias: (*Alias)(p)}
	return json.Unmarshal(data, aux)
}

// IsQuickRun reports whether the request is small enough to run inline
// rather than being queued onto a worker.
func (r *RunRequest) IsQuickRun() bool {
	return r.HighestLvl-r.LowestLvl <= 2
}

// IsHighPriority reports whether the scheduler should favor this request
// over deeper runs: quick runs are typically interactive (a user waiting
// on a convergence check) rather than a large batch sweep.
func (r *RunRequest) IsHighPriority() bool {
	return r.IsQuickRun()
}

// NewRunRequest creates a pending RunRequest.
func NewRunRequest(id int64, runUUID string, mode CycleMode, dim int) *RunRequest {
	return &RunRequest{
		ID:         id,
		RunUUID:    runUUID,
		Mode:       mode,
		Dim:        dim,
		Status:     RunStatusPending,
		CreateTime: time.Now(),
	}
}
