package advisor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/octmg/octmg/pkg/model"
)

func TestNewAdvisor(t *testing.T) {
	adv := NewAdvisor()

	assert.NotNil(t, adv)
	assert.NotEmpty(t, adv.rules)
}

func TestNewAdvisorWithRules(t *testing.T) {
	rules := []Rule{
		{Type: "test", Name: "test_rule"},
	}

	adv := NewAdvisorWithRules(rules)

	assert.Len(t, adv.rules, 1)
	assert.Equal(t, "test_rule", adv.rules[0].Name)
}

func TestAdvisor_Advise_NotConverged(t *testing.T) {
	adv := NewAdvisor()

	ctx := &RuleContext{
		Request: &model.RunRequest{Mode: model.CycleModeVCycle, MaxVCycles: 5},
		Result:  &model.RunResult{RunUUID: "run-1", Converged: false, Cycles: 5, FinalResidual: 1e-2},
	}

	suggestions := adv.Advise(ctx)

	var found bool
	for _, s := range suggestions {
		if s.Category == "schedule" && s.RunUUID == "run-1" {
			found = true
		}
	}
	assert.True(t, found, "should flag a run that did not converge")
}

func TestAdvisor_Advise_SlowConvergenceRate(t *testing.T) {
	adv := NewAdvisor()

	ctx := &RuleContext{
		Request: &model.RunRequest{RequestParams: model.SolverParams{SmootherKind: "jacobi"}},
		Result: &model.RunResult{
			RunUUID:   "run-2",
			Converged: true,
			History: []model.ResidualSample{
				{Cycle: 1, ResidualMax: 1.0},
				{Cycle: 2, ResidualMax: 0.9},
				{Cycle: 3, ResidualMax: 0.81},
			},
		},
	}

	suggestions := adv.Advise(ctx)

	var found bool
	for _, s := range suggestions {
		if s.Category == "smoother" {
			found = true
			assert.Contains(t, s.Suggestion, "jacobi")
		}
	}
	assert.True(t, found, "should suggest a smoother change for a slow convergence rate")
}

func TestAdvisor_Advise_FastConvergenceNoSuggestion(t *testing.T) {
	adv := NewAdvisor()

	ctx := &RuleContext{
		Request: &model.RunRequest{Mode: model.CycleModeVCycle, RequestParams: model.SolverParams{UseDirectCoarse: true}},
		Result: &model.RunResult{
			RunUUID:   "run-3",
			Converged: true,
			Cycles:    3,
			History: []model.ResidualSample{
				{Cycle: 1, ResidualMax: 1.0},
				{Cycle: 2, ResidualMax: 0.1},
				{Cycle: 3, ResidualMax: 0.01},
			},
		},
	}

	suggestions := adv.Advise(ctx)
	assert.Empty(t, suggestions)
}

func TestAdvisor_Advise_IterativeCoarseEligibleForDirect(t *testing.T) {
	adv := NewAdvisor()

	ctx := &RuleContext{
		Request: &model.RunRequest{LowestLvl: 0, HighestLvl: 3, RequestParams: model.SolverParams{UseDirectCoarse: false}},
		Result:  &model.RunResult{RunUUID: "run-4", Converged: true, Cycles: 3},
	}

	suggestions := adv.Advise(ctx)

	var found bool
	for _, s := range suggestions {
		if s.Category == "coarse" {
			found = true
		}
	}
	assert.True(t, found, "should suggest enabling the direct coarse solve")
}

func TestAdvisor_Advise_FMGWouldHelp(t *testing.T) {
	adv := NewAdvisor()

	ctx := &RuleContext{
		Request: &model.RunRequest{Mode: model.CycleModeVCycle, RequestParams: model.SolverParams{UseDirectCoarse: true}},
		Result:  &model.RunResult{RunUUID: "run-5", Converged: true, Cycles: 12},
	}

	suggestions := adv.Advise(ctx)

	var found bool
	for _, s := range suggestions {
		if s.Category == "schedule" && s.Suggestion == "switch mode to fmg" {
			found = true
		}
	}
	assert.True(t, found, "should suggest FMG after a long V-cycle run")
}

func TestAdvisor_Advise_NilResult(t *testing.T) {
	adv := NewAdvisor()

	ctx := &RuleContext{Request: &model.RunRequest{}}

	suggestions := adv.Advise(ctx)
	assert.Empty(t, suggestions)
}

func TestCheckNotConverged(t *testing.T) {
	ctx := &RuleContext{
		Request: &model.RunRequest{},
		Result:  &model.RunResult{Cycles: 10, FinalResidual: 5e-3, Converged: false},
	}

	suggestions := checkNotConverged(ctx)
	require.Len(t, suggestions, 1)
	assert.Equal(t, "schedule", suggestions[0].Category)
}

func TestCheckNotConverged_ConvergedIsEmpty(t *testing.T) {
	ctx := &RuleContext{
		Request: &model.RunRequest{},
		Result:  &model.RunResult{Cycles: 4, Converged: true},
	}

	assert.Empty(t, checkNotConverged(ctx))
}
