package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/octmg/octmg/internal/advisor"
	"github.com/octmg/octmg/internal/block"
	"github.com/octmg/octmg/internal/boundary"
	"github.com/octmg/octmg/internal/coarse"
	"github.com/octmg/octmg/internal/ghost"
	"github.com/octmg/octmg/internal/mg"
	"github.com/octmg/octmg/internal/partition"
	"github.com/octmg/octmg/internal/stencil"
	"github.com/octmg/octmg/internal/tree"
	"github.com/octmg/octmg/internal/xfer"
	"github.com/octmg/octmg/pkg/model"
)

var (
	solveDim             int
	solveBlockSize       int
	solveLowestLvl       int
	solveHighestLvl      int
	solveMode            string
	solveMaxVCycles      int
	solveResidualTolRel  float64
	solveResidualTolAbs  float64
	solveSmoother        string
	solveUseDirectCoarse bool
	solveMaxCoarseCycles int
	solveRunUUID         string
)

// solveCmd represents the solve command.
var solveCmd = &cobra.Command{
	Use:   "solve",
	Short: "Run a single solve against a partitioned tree",
	Long: `Solve builds a block-structured tree over the requested level range,
seeds a unit right-hand side on the finest level, and runs the
requested V-cycle or full multigrid (FMG) schedule to convergence.

It prints the residual history cycle by cycle and, once the run
finishes, any tuning suggestions the advisor derives from how it
converged.`,
	RunE: runSolve,
}

func init() {
	rootCmd.AddCommand(solveCmd)

	binName := BinName()
	solveCmd.Example = fmt.Sprintf(`  # Solve a 3D problem from level 2 to level 6
  %s solve --dim 3 --lowest-lvl 2 --highest-lvl 6

  # Solve with full multigrid instead of V-cycles
  %s solve --dim 3 --highest-lvl 6 --mode fmg

  # Use red-black Gauss-Seidel and the exact coarse solve
  %s solve --dim 3 --highest-lvl 6 --smoother gauss_seidel_rb --use-direct-coarse`,
		binName, binName, binName)

	solveCmd.Flags().IntVar(&solveDim, "dim", 3, "Problem dimension (2 or 3)")
	solveCmd.Flags().IntVar(&solveBlockSize, "block-size", 8, "Interior cells per block edge")
	solveCmd.Flags().IntVar(&solveLowestLvl, "lowest-lvl", 0, "Coarsest refinement level")
	solveCmd.Flags().IntVar(&solveHighestLvl, "highest-lvl", 5, "Finest refinement level")
	solveCmd.Flags().StringVar(&solveMode, "mode", "vcycle", "Cycle schedule: vcycle or fmg")
	solveCmd.Flags().IntVar(&solveMaxVCycles, "max-vcycles", 20, "Max V-cycles to run before giving up")
	solveCmd.Flags().Float64Var(&solveResidualTolRel, "residual-tol-rel", 1e-8, "Relative residual tolerance (0 disables)")
	solveCmd.Flags().Float64Var(&solveResidualTolAbs, "residual-tol-abs", 0, "Absolute residual tolerance (0 disables)")
	solveCmd.Flags().StringVar(&solveSmoother, "smoother", "gauss_seidel", "Smoother: jacobi, gauss_seidel, or gauss_seidel_rb")
	solveCmd.Flags().BoolVar(&solveUseDirectCoarse, "use-direct-coarse", false, "Use the exact sine-transform coarse solve")
	solveCmd.Flags().IntVar(&solveMaxCoarseCycles, "max-coarse-cycles", 50, "Max iterative coarse-solve cycles (ignored with --use-direct-coarse)")
	solveCmd.Flags().StringVar(&solveRunUUID, "uuid", "", "Run identifier (auto-generated if empty)")
}

func runSolve(cmd *cobra.Command, args []string) error {
	log := GetLogger()

	runUUID := solveRunUUID
	if runUUID == "" {
		runUUID = fmt.Sprintf("local-%s", time.Now().Format("20060102-150405"))
	}

	mode, err := parseCycleMode(solveMode)
	if err != nil {
		return err
	}

	req := model.NewRunRequest(1, runUUID, mode, solveDim)
	req.BlockSize = solveBlockSize
	req.LowestLvl = solveLowestLvl
	req.HighestLvl = solveHighestLvl
	req.MaxVCycles = solveMaxVCycles
	req.ResidualTolRel = solveResidualTolRel
	req.ResidualTolAbs = solveResidualTolAbs
	req.RequestParams = model.SolverParams{
		SmootherKind:    solveSmoother,
		MaxCoarseCycles: solveMaxCoarseCycles,
		UseDirectCoarse: solveUseDirectCoarse,
	}

	log.Info("=== octmg solve ===")
	log.Info("Run UUID:    %s", req.RunUUID)
	log.Info("Dimension:   %d", req.Dim)
	log.Info("Block size:  %d", req.BlockSize)
	log.Info("Levels:      %d..%d", req.LowestLvl, req.HighestLvl)
	log.Info("Mode:        %s", req.Mode)
	log.Info("Smoother:    %s", req.RequestParams.SmootherKind)
	log.Info("")

	result, err := solveRequest(cmd.Context(), req, log)
	if err != nil {
		return fmt.Errorf("solve failed: %w", err)
	}

	log.Info("")
	log.Info("Cycle  Residual       Elapsed")
	for _, s := range result.History {
		log.Info("%5d  %.6e  %dms", s.Cycle, s.ResidualMax, s.ElapsedMS)
	}
	log.Info("")
	log.Info("Converged:       %v", result.Converged)
	log.Info("Cycles:          %d", result.Cycles)
	log.Info("Initial residual: %.6e", result.InitResidual)
	log.Info("Final residual:   %.6e", result.FinalResidual)
	if rate := result.ConvergenceRate(); rate > 0 {
		log.Info("Convergence rate: %.4f per cycle", rate)
	}

	adv := advisor.NewAdvisor()
	suggestions := adv.Advise(&advisor.RuleContext{Request: req, Result: result})
	if len(suggestions) > 0 {
		log.Info("")
		log.Info("Tuning suggestions:")
		for _, s := range suggestions {
			log.Info("  [%s] %s", s.Category, s.Suggestion)
			if s.Rationale != "" {
				log.Info("      %s", s.Rationale)
			}
		}
	}

	return nil
}

// solveRequest builds a fresh single-rank tree for req and runs its
// requested cycle schedule to completion. It mirrors
// internal/scheduler's run processor but without any repository or
// storage dependency, so the CLI can run a solve standalone.
func solveRequest(ctx context.Context, req *model.RunRequest, log interface{ Info(string, ...interface{}) }) (*model.RunResult, error) {
	t := partition.Build(partition.Config{
		Dim:        req.Dim,
		B:          req.BlockSize,
		NCPU:       1,
		MyRank:     0,
		LowestLvl:  req.LowestLvl,
		HighestLvl: req.HighestLvl,
		DrRoot:     1.0,
	})
	seedSolveSource(t)

	pool := xfer.NewPool(xfer.NewLoopbackNetwork(1).Endpoint(0))
	eng := ghost.NewEngine(t, pool, boundary.NewRegistry())
	eng.SizeBuffers()

	driver := mg.NewDriver(t, eng)
	driver.Logger = GetLogger()
	applySolveParams(driver, req.RequestParams)

	if err := eng.FillGhostCellsLvl(ctx, t.HighestLvl, block.Phi); err != nil {
		return nil, fmt.Errorf("initial ghost fill: %w", err)
	}

	result := &model.RunResult{RunUUID: req.RunUUID}
	result.InitResidual = driver.MaxResidual(t.HighestLvl)

	start := time.Now()
	record := func(cycle int) {
		res := driver.MaxResidual(t.HighestLvl)
		result.History = append(result.History, model.ResidualSample{
			Cycle:       cycle,
			Lvl:         t.HighestLvl,
			ResidualMax: res,
			ElapsedMS:   time.Since(start).Milliseconds(),
		})
	}

	maxCycles := req.MaxVCycles
	if maxCycles <= 0 {
		maxCycles = 20
	}

	switch req.Mode {
	case model.CycleModeFMG:
		if err := driver.FMG(ctx); err != nil {
			return nil, err
		}
		result.Cycles = 1
		record(result.Cycles)
	default:
		for c := 1; c <= maxCycles; c++ {
			if err := driver.VCycle(ctx, t.HighestLvl); err != nil {
				return nil, err
			}
			result.Cycles = c
			record(c)
			if solveConverged(result.History[len(result.History)-1].ResidualMax, result.InitResidual, req) {
				break
			}
		}
	}

	result.FinalResidual = driver.MaxResidual(t.HighestLvl)
	result.Converged = solveConverged(result.FinalResidual, result.InitResidual, req)
	result.CompletedAt = time.Now()
	return result, nil
}

func solveConverged(res, initRes float64, req *model.RunRequest) bool {
	if req.ResidualTolAbs > 0 && res <= req.ResidualTolAbs {
		return true
	}
	if req.ResidualTolRel > 0 && initRes > 0 && res/initRes <= req.ResidualTolRel {
		return true
	}
	return false
}

// seedSolveSource sets a constant unit right-hand side on the finest
// level's owned interior cells.
func seedSolveSource(t *tree.Tree) {
	lv := t.Level(t.HighestLvl)
	if lv == nil {
		return
	}
	for _, id := range lv.MyIDs {
		b := t.Block(id)
		block.ForEachInterior(b.Dim, b.B, func(c block.Coord) {
			b.Set(block.Rho, c, 1)
		})
	}
}

func applySolveParams(d *mg.Driver, params model.SolverParams) {
	if kind, ok := parseSmootherKindFlag(params.SmootherKind); ok {
		d.SmootherKind = kind
	}
	if params.NCycleDown > 0 {
		d.NCycleDown = params.NCycleDown
	}
	if params.NCycleUp > 0 {
		d.NCycleUp = params.NCycleUp
	}

	if params.UseDirectCoarse {
		d.UseDirectCoarse = true
		d.Coarse = coarse.DirectSineSolver{}
		return
	}

	maxCoarse := params.MaxCoarseCycles
	if maxCoarse <= 0 {
		maxCoarse = 50
	}
	d.Iterative = coarse.IterativeSolver{
		Kind:           d.SmootherKind,
		MaxCycles:      maxCoarse,
		ResidualRel:    1e-8,
		ResidualAbs:    1e-12,
		CyclesPerCheck: 5,
	}
}

func parseSmootherKindFlag(name string) (stencil.Kind, bool) {
	switch name {
	case "jacobi":
		return stencil.Jacobi, true
	case "gauss_seidel":
		return stencil.GaussSeidel, true
	case "gauss_seidel_rb":
		return stencil.GaussSeidelRB, true
	default:
		return stencil.GaussSeidel, false
	}
}

func parseCycleMode(s string) (model.CycleMode, error) {
	switch s {
	case "vcycle", "v-cycle", "":
		return model.CycleModeVCycle, nil
	case "fmg":
		return model.CycleModeFMG, nil
	default:
		return 0, fmt.Errorf("unknown cycle mode %q (valid: vcycle, fmg)", s)
	}
}
