package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunStatus_String(t *testing.T) {
	tests := []struct {
		status   RunStatus
		expected string
	}{
		{RunStatusPending, "pending"},
		{RunStatusRunning, "running"},
		{RunStatusCompleted, "completed"},
		{RunStatusFailed, "failed"},
		{RunStatus(99), "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.status.String())
		})
	}
}

func TestCycleMode_String(t *testing.T) {
	assert.Equal(t, "vcycle", CycleModeVCycle.String())
	assert.Equal(t, "fmg", CycleModeFMG.String())
	assert.Equal(t, "unknown", CycleMode(99).String())
}

func TestRunRequest_IsQuickRun(t *testing.T) {
	tests := []struct {
		name     string
		req      *RunRequest
		expected bool
	}{
		{"three levels", &RunRequest{LowestLvl: 0, HighestLvl: 2}, true},
		{"one level", &RunRequest{LowestLvl: 0, HighestLvl: 0}, true},
		{"six levels", &RunRequest{LowestLvl: 0, HighestLvl: 5}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.req.IsQuickRun())
		})
	}
}

func TestNewRunRequest(t *testing.T) {
	req := NewRunRequest(1, "uuid-1", CycleModeFMG, 3)

	assert.Equal(t, int64(1), req.ID)
	assert.Equal(t, "uuid-1", req.RunUUID)
	assert.Equal(t, CycleModeFMG, req.Mode)
	assert.Equal(t, 3, req.Dim)
	assert.Equal(t, RunStatusPending, req.Status)
	assert.False(t, req.CreateTime.IsZero())
}
