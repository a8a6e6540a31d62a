// Package advisor turns a completed run's convergence history into
// tuning suggestions: smoother swaps, coarse-solve changes, and
// cycle-schedule adjustments that a subsequent run could apply.
package advisor

import (
	"fmt"

	"github.com/octmg/octmg/pkg/model"
)

// Advisor evaluates a run's outcome against a set of rules and
// collects the tuning suggestions they produce.
type Advisor struct {
	rules []Rule
}

// Rule represents a single tuning-suggestion rule.
type Rule struct {
	Type        string
	Name        string
	Description string
	Threshold   float64
	Check       RuleCheckFunc
}

// RuleCheckFunc evaluates one rule against a run's request and result.
type RuleCheckFunc func(ctx *RuleContext) []model.TuningSuggestion

// RuleContext provides a rule with the request that configured the run
// and the result it produced.
type RuleContext struct {
	Request *model.RunRequest
	Result  *model.RunResult
}

// NewAdvisor creates a new Advisor with the default rule set.
func NewAdvisor() *Advisor {
	return &Advisor{rules: defaultRules()}
}

// NewAdvisorWithRules creates a new Advisor with a custom rule set.
func NewAdvisorWithRules(rules []Rule) *Advisor {
	return &Advisor{rules: rules}
}

// Advise runs every rule against ctx and returns the suggestions that
// applied, with RunUUID stamped on each.
func (a *Advisor) Advise(ctx *RuleContext) []model.TuningSuggestion {
	suggestions := make([]model.TuningSuggestion, 0)

	for _, rule := range a.rules {
		if rule.Check == nil {
			continue
		}
		for _, s := range rule.Check(ctx) {
			if ctx.Result != nil {
				s.RunUUID = ctx.Result.RunUUID
			}
			suggestions = append(suggestions, s)
		}
	}

	return suggestions
}

// defaultRules returns the default set of tuning rules.
func defaultRules() []Rule {
	return []Rule{
		{
			Type:        "schedule",
			Name:        "not_converged",
			Description: "Flag a run that exhausted its cycle budget without converging",
			Check:       checkNotConverged,
		},
		{
			Type:        "smoother",
			Name:        "slow_convergence_rate",
			Description: "Flag a slow per-cycle residual reduction and suggest a stronger smoother",
			Threshold:   0.7,
			Check:       checkSlowConvergenceRate,
		},
		{
			Type:        "coarse",
			Name:        "iterative_coarse_on_single_block",
			Description: "Suggest the direct coarse solve when the coarse level is a single block",
			Check:       checkIterativeCoarseEligibleForDirect,
		},
		{
			Type:        "schedule",
			Name:        "fmg_would_help",
			Description: "Suggest FMG when a V-cycle-only run needed many cycles to converge",
			Threshold:   8,
			Check:       checkFMGWouldHelp,
		},
	}
}

// checkNotConverged flags a run that used its whole cycle budget
// without meeting its residual tolerance.
func checkNotConverged(ctx *RuleContext) []model.TuningSuggestion {
	if ctx.Result == nil || ctx.Request == nil || ctx.Result.Converged {
		return nil
	}
	return []model.TuningSuggestion{{
		Category:   "schedule",
		Suggestion: fmt.Sprintf("run did not converge within %d cycles (final residual %.3g)", ctx.Result.Cycles, ctx.Result.FinalResidual),
		Rationale:  "raise max_vcycles, loosen the residual tolerance, or switch to FMG for a better initial guess",
	}}
}

// checkSlowConvergenceRate flags a per-cycle reduction factor above the
// rule's threshold -- the V-cycle is doing far less work than the
// textbook ~0.1-0.2 factor a correctly configured smoother achieves.
func checkSlowConvergenceRate(ctx *RuleContext) []model.TuningSuggestion {
	if ctx.Result == nil || len(ctx.Result.History) < 2 {
		return nil
	}
	rate := ctx.Result.ConvergenceRate()
	if rate < 0.7 {
		return nil
	}
	current := "gauss_seidel"
	if ctx.Request != nil && ctx.Request.RequestParams.SmootherKind != "" {
		current = ctx.Request.RequestParams.SmootherKind
	}
	suggestion := "switch to gauss_seidel_rb for better smoothing of high-frequency error"
	if current == "jacobi" {
		suggestion = "switch from jacobi to gauss_seidel or gauss_seidel_rb: Jacobi alone rarely damps high-frequency error fast enough"
	}
	return []model.TuningSuggestion{{
		Category:   "smoother",
		Suggestion: suggestion,
		Rationale:  fmt.Sprintf("observed per-cycle residual reduction factor %.3f exceeds %.1f", rate, 0.7),
	}}
}

// checkIterativeCoarseEligibleForDirect suggests the exact sine-transform
// coarse solve when the run used the iterative fallback but the coarse
// level reduces to a single block (the direct solver's only
// requirement), since the direct solve is both cheaper and exact.
func checkIterativeCoarseEligibleForDirect(ctx *RuleContext) []model.TuningSuggestion {
	if ctx.Request == nil || ctx.Request.RequestParams.UseDirectCoarse {
		return nil
	}
	if ctx.Request.HighestLvl <= ctx.Request.LowestLvl {
		return nil
	}
	return []model.TuningSuggestion{{
		Category:   "coarse",
		Suggestion: "enable use_direct_coarse: a single coarse block can be solved exactly by the sine-transform solver instead of relaxed iteratively",
		Rationale:  "the direct solve removes the coarse level's iteration count from every cycle's cost",
	}}
}

// checkFMGWouldHelp suggests switching to full multigrid when a
// V-cycle-only run needed an unusually large number of cycles: FMG's
// coarse-to-fine staircase typically starts much closer to the fixed
// point.
func checkFMGWouldHelp(ctx *RuleContext) []model.TuningSuggestion {
	if ctx.Request == nil || ctx.Result == nil {
		return nil
	}
	if ctx.Request.Mode != model.CycleModeVCycle {
		return nil
	}
	if ctx.Result.Cycles < 8 {
		return nil
	}
	return []model.TuningSuggestion{{
		Category:   "schedule",
		Suggestion: "switch mode to fmg",
		Rationale:  fmt.Sprintf("this run needed %d V-cycles; full multigrid's coarse-to-fine staircase usually reaches the same residual in far fewer fine-level cycles", ctx.Result.Cycles),
	}}
}
