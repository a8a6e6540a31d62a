package scheduler

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/octmg/octmg/internal/advisor"
	"github.com/octmg/octmg/internal/block"
	"github.com/octmg/octmg/internal/boundary"
	"github.com/octmg/octmg/internal/coarse"
	"github.com/octmg/octmg/internal/ghost"
	"github.com/octmg/octmg/internal/mg"
	"github.com/octmg/octmg/internal/partition"
	"github.com/octmg/octmg/internal/repository"
	"github.com/octmg/octmg/internal/stencil"
	"github.com/octmg/octmg/internal/storage"
	"github.com/octmg/octmg/internal/tree"
	"github.com/octmg/octmg/internal/xfer"
	"github.com/octmg/octmg/pkg/compression"
	"github.com/octmg/octmg/pkg/config"
	"github.com/octmg/octmg/pkg/model"
	"github.com/octmg/octmg/pkg/utils"
)

// defaultMaxVCycles bounds a run that did not specify one.
const defaultMaxVCycles = 20

// defaultMaxCoarseCycles bounds the iterative coarse solve when a run
// did not specify one.
const defaultMaxCoarseCycles = 50

// DefaultRunProcessor drives one solve run to completion using the
// multigrid core: it partitions a tree, wires a ghost engine and
// driver from the run's request, executes the requested cycle
// schedule, and persists the result plus any tuning suggestions the
// advisor derives from it.
type DefaultRunProcessor struct {
	config  *config.Config
	storage storage.Storage // optional checkpoint persistence, may be nil
	repos   *repository.Repositories
	advisor *advisor.Advisor
	logger  utils.Logger
}

// ProcessorConfig holds processor configuration.
type ProcessorConfig struct {
	Config  *config.Config
	Storage storage.Storage
	Repos   *repository.Repositories
	Logger  utils.Logger
}

// NewDefaultRunProcessor creates a new DefaultRunProcessor.
func NewDefaultRunProcessor(cfg *ProcessorConfig) *DefaultRunProcessor {
	if cfg.Logger == nil {
		cfg.Logger = utils.NewDefaultLogger(utils.LevelInfo, nil)
	}
	return &DefaultRunProcessor{
		config:  cfg.Config,
		storage: cfg.Storage,
		repos:   cfg.Repos,
		advisor: advisor.NewAdvisor(),
		logger:  cfg.Logger,
	}
}

// Process runs a single solve request to completion, recording its
// outcome and tuning suggestions regardless of whether it converged.
func (p *DefaultRunProcessor) Process(ctx context.Context, run *Run) error {
	req := run.Request
	p.logger.Info("starting solve run %s (mode=%s, dim=%d, levels=%d..%d)",
		req.RunUUID, req.Mode, req.Dim, req.LowestLvl, req.HighestLvl)

	if err := p.repos.Run.UpdateRunStatus(ctx, req.ID, model.RunStatusRunning); err != nil {
		p.logger.Warn("failed to mark run %s running: %v", req.RunUUID, err)
	}

	start := time.Now()
	result, t, err := p.solve(ctx, req)
	if err != nil {
		p.logger.Error("run %s failed after %v: %v", req.RunUUID, time.Since(start), err)
		if uerr := p.repos.Run.UpdateRunStatusWithInfo(ctx, req.ID, model.RunStatusFailed, err.Error()); uerr != nil {
			p.logger.Error("failed to record failure for run %s: %v", req.RunUUID, uerr)
		}
		return fmt.Errorf("solve run %s: %w", req.RunUUID, err)
	}
	result.CompletedAt = time.Now()

	if p.storage != nil {
		key := checkpointKey(req.RunUUID)
		if err := p.saveCheckpoint(ctx, key, t); err != nil {
			p.logger.Warn("failed to save checkpoint for run %s: %v", req.RunUUID, err)
		} else {
			result.CheckpointKey = key
		}
	}

	if err := p.repos.Result.SaveResult(ctx, result); err != nil {
		return fmt.Errorf("save result for run %s: %w", req.RunUUID, err)
	}

	suggestions := p.advisor.Advise(&advisor.RuleContext{Request: req, Result: result})
	if len(suggestions) > 0 {
		if err := p.repos.Suggestion.SaveSuggestions(ctx, suggestions); err != nil {
			p.logger.Warn("failed to save tuning suggestions for run %s: %v", req.RunUUID, err)
		}
	}

	if err := p.repos.Run.UpdateRunStatus(ctx, req.ID, model.RunStatusCompleted); err != nil {
		p.logger.Warn("failed to mark run %s completed: %v", req.RunUUID, err)
	}

	p.logger.Info("run %s completed in %v: converged=%v cycles=%d final_residual=%g",
		req.RunUUID, time.Since(start), result.Converged, result.Cycles, result.FinalResidual)
	return nil
}

// checkpointKey derives the storage key a completed run's checkpoint
// is persisted under.
func checkpointKey(runUUID string) string {
	return fmt.Sprintf("checkpoints/%s.bin.zst", runUUID)
}

// saveCheckpoint serializes the finest level's owned Phi data and
// uploads it, zstd-compressed, to the configured object storage under
// key.
func (p *DefaultRunProcessor) saveCheckpoint(ctx context.Context, key string, t *tree.Tree) error {
	raw := serializeCheckpoint(t)
	compressor, err := compression.NewZstdCompressor(compression.LevelDefault)
	if err != nil {
		return fmt.Errorf("create compressor: %w", err)
	}
	defer compressor.Close()

	compressed, err := compressor.Compress(raw)
	if err != nil {
		return fmt.Errorf("compress checkpoint: %w", err)
	}
	return p.storage.Upload(ctx, key, bytes.NewReader(compressed))
}

// serializeCheckpoint packs the finest level's owned Phi data into a
// flat little-endian binary buffer: per owned block, an int64 block ID,
// an int64 value count, then that many float64 Phi values (the whole
// ghost-inclusive array).
func serializeCheckpoint(t *tree.Tree) []byte {
	var buf bytes.Buffer
	lv := t.Level(t.HighestLvl)
	if lv == nil {
		return buf.Bytes()
	}
	for _, id := range lv.MyIDs {
		b := t.Block(id)
		binary.Write(&buf, binary.LittleEndian, int64(id))
		data := b.Data(block.Phi)
		binary.Write(&buf, binary.LittleEndian, int64(len(data)))
		binary.Write(&buf, binary.LittleEndian, data)
	}
	return buf.Bytes()
}

// solve builds a fresh tree for req, wires a ghost engine and
// multigrid driver from its parameters, and runs the requested cycle
// schedule to completion. It returns the tree alongside the result so
// the caller can checkpoint the solution state.
func (p *DefaultRunProcessor) solve(ctx context.Context, req *model.RunRequest) (*model.RunResult, *tree.Tree, error) {
	t := partition.Build(partition.Config{
		Dim:        req.Dim,
		B:          req.BlockSize,
		NCPU:       1,
		MyRank:     0,
		LowestLvl:  req.LowestLvl,
		HighestLvl: req.HighestLvl,
		DrRoot:     1.0,
	})
	seedUnitSource(t)

	pool := xfer.NewPool(xfer.NewLoopbackNetwork(1).Endpoint(0))
	eng := ghost.NewEngine(t, pool, boundary.NewRegistry())
	eng.SizeBuffers()

	driver := mg.NewDriver(t, eng)
	driver.Logger = p.logger
	applySolverParams(driver, req.RequestParams)

	if err := eng.FillGhostCellsLvl(ctx, t.HighestLvl, block.Phi); err != nil {
		return nil, nil, fmt.Errorf("initial ghost fill: %w", err)
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
		maxCycles = defaultMaxVCycles
	}

	switch req.Mode {
	case model.CycleModeFMG:
		if err := driver.FMG(ctx); err != nil {
			return nil, nil, err
		}
		result.Cycles = 1
		record(result.Cycles)
	default:
		for c := 1; c <= maxCycles; c++ {
			if err := driver.VCycle(ctx, t.HighestLvl); err != nil {
				return nil, nil, err
			}
			result.Cycles = c
			record(c)
			if converged(result.History[len(result.History)-1].ResidualMax, result.InitResidual, req) {
				break
			}
		}
	}

	result.FinalResidual = driver.MaxResidual(t.HighestLvl)
	result.Converged = converged(result.FinalResidual, result.InitResidual, req)
	return result, t, nil
}

// converged reports whether res satisfies either the request's
// absolute or relative (against the run's initial residual) tolerance.
func converged(res, initRes float64, req *model.RunRequest) bool {
	if req.ResidualTolAbs > 0 && res <= req.ResidualTolAbs {
		return true
	}
	if req.ResidualTolRel > 0 && initRes > 0 && res/initRes <= req.ResidualTolRel {
		return true
	}
	return false
}

// seedUnitSource sets a constant unit right-hand side on the finest
// level's owned interior cells. The driver's FAS restriction
// (Driver.updateCoarse) derives every coarser level's right-hand side
// from this one, so only the finest level needs seeding.
func seedUnitSource(t *tree.Tree) {
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

// applySolverParams configures d's smoother, cycle counts, and coarse
// solve strategy from a request's solver parameters, falling back to
// the driver's constructor defaults for anything left unspecified.
func applySolverParams(d *mg.Driver, params model.SolverParams) {
	if kind, ok := parseSmootherKind(params.SmootherKind); ok {
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
		maxCoarse = defaultMaxCoarseCycles
	}
	d.Iterative = coarse.IterativeSolver{
		Kind:           d.SmootherKind,
		MaxCycles:      maxCoarse,
		ResidualRel:    1e-8,
		ResidualAbs:    1e-12,
		CyclesPerCheck: 5,
	}
}

// parseSmootherKind maps a request's smoother name to a stencil.Kind.
// ok is false for an empty or unrecognized name, telling the caller to
// keep the driver's constructor default.
func parseSmootherKind(name string) (stencil.Kind, bool) {
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
