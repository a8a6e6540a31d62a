package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunResult_ConvergenceRate(t *testing.T) {
	r := &RunResult{
		History: []ResidualSample{
			{Cycle: 0, ResidualMax: 1.0},
			{Cycle: 1, ResidualMax: 0.1},
			{Cycle: 2, ResidualMax: 0.01},
		},
	}
	rate := r.ConvergenceRate()
	assert.InDelta(t, 0.1, rate, 1e-9)
}

func TestRunResult_ConvergenceRate_InsufficientHistory(t *testing.T) {
	r := &RunResult{History: []ResidualSample{{Cycle: 0, ResidualMax: 1.0}}}
	assert.Equal(t, 0.0, r.ConvergenceRate())
}

func TestRunResult_ConvergenceRate_ZeroInit(t *testing.T) {
	r := &RunResult{History: []ResidualSample{
		{ResidualMax: 0},
		{ResidualMax: 0.5},
	}}
	assert.Equal(t, 0.0, r.ConvergenceRate())
}

func TestResidualSample(t *testing.T) {
	s := ResidualSample{Cycle: 3, Lvl: 5, ResidualMax: 1e-6, ElapsedMS: 120}
	assert.Equal(t, 3, s.Cycle)
	assert.Equal(t, 5, s.Lvl)
	assert.True(t, math.Abs(s.ResidualMax-1e-6) < 1e-12)
	assert.Equal(t, int64(120), s.ElapsedMS)
}
