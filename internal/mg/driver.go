// Package mg implements the full approximation storage (FAS) multigrid
// driver: the V-cycle and full multigrid (FMG) schedules spec.md §4.4
// names, built on internal/ghost for halo exchange, internal/stencil
// for smoothing, internal/coarse for the bottom solve, and
// internal/transfer for inter-level data movement.
package mg

import (
	"context"
	"fmt"

	"github.com/octmg/octmg/internal/block"
	"github.com/octmg/octmg/internal/coarse"
	"github.com/octmg/octmg/internal/ghost"
	"github.com/octmg/octmg/internal/stencil"
	"github.com/octmg/octmg/internal/transfer"
	"github.com/octmg/octmg/internal/tree"
	apperr "github.com/octmg/octmg/pkg/errors"
	"github.com/octmg/octmg/pkg/model"
	"github.com/octmg/octmg/pkg/utils"
)

// Driver runs FAS V-cycles and FMG over one tree. It owns no state
// beyond its configuration and the ghost engine's pool: the tree's
// blocks carry every mutable field (phi/rho/res/old) across calls.
type Driver struct {
	Tree  *tree.Tree
	Ghost *ghost.Engine

	Coarse          coarse.Solver
	Iterative       coarse.IterativeSolver
	UseDirectCoarse bool

	Restrictor  transfer.Restrictor
	Prolongator transfer.Prolongator

	SmootherKind stencil.Kind
	NCycleDown   int
	NCycleUp     int

	Logger utils.Logger
	Timer  *utils.Timer

	History []model.ResidualSample
}

// NewDriver returns a driver with the teacher's ordinary defaults: a
// full-weighting restrictor, an injection prolongator, and
// lexicographic Gauss-Seidel smoothing.
func NewDriver(t *tree.Tree, g *ghost.Engine) *Driver {
	return &Driver{
		Tree:         t,
		Ghost:        g,
		Restrictor:   transfer.FullWeight{},
		Prolongator:  transfer.Injection{},
		SmootherKind: stencil.GaussSeidel,
		NCycleDown:   2,
		NCycleUp:     2,
		Logger:       &utils.NullLogger{},
	}
}

func (d *Driver) logf(format string, args ...interface{}) {
	if d.Logger != nil {
		d.Logger.Info(format, args...)
	}
}

// VCycle runs one FAS V-cycle from maxLvl down to Tree.LowestLvl and
// back up, refilling ghosts after every sweep as spec.md §4.4.1
// requires (a stale ghost layer would feed the next sweep garbage at
// every block boundary).
func (d *Driver) VCycle(ctx context.Context, maxLvl int) error {
	t := d.Tree
	if err := d.smoothAndRefill(ctx, maxLvl, d.NCycleDown); err != nil {
		return err
	}
	for lvl := maxLvl; lvl > t.LowestLvl; lvl-- {
		if err := d.updateCoarse(ctx, lvl); err != nil {
			return err
		}
		if lvl-1 == t.LowestLvl {
			break
		}
		if err := d.smoothAndRefill(ctx, lvl-1, d.NCycleDown); err != nil {
			return err
		}
	}
	if err := d.coarseSolve(ctx, t.LowestLvl); err != nil {
		return err
	}
	for lvl := t.LowestLvl; lvl < maxLvl; lvl++ {
		if err := d.correct(ctx, lvl+1); err != nil {
			return err
		}
		if err := d.smoothAndRefill(ctx, lvl+1, d.NCycleUp); err != nil {
			return err
		}
	}
	return nil
}

// FMG runs full multigrid: it first derives every coarser level's FAS
// right-hand side by running updateCoarse from HighestLvl down to
// LowestLvl+1, solves the coarsest level with the configured coarse
// solver, then climbs a coarse-to-fine staircase of V-cycles, each level
// seeded by prolonging the level below's solution. prolongGuess adds the
// parents' phi onto the children's phi rather than replacing it, and FMG
// does not zero phi first.
func (d *Driver) FMG(ctx context.Context) error {
	t := d.Tree
	for lvl := t.HighestLvl; lvl > t.LowestLvl; lvl-- {
		if err := d.updateCoarse(ctx, lvl); err != nil {
			return err
		}
	}
	if err := d.coarseSolve(ctx, t.LowestLvl); err != nil {
		return err
	}
	for lvl := t.LowestLvl; lvl < t.HighestLvl; lvl++ {
		d.prolongGuess(lvl + 1)
		if err := d.Ghost.FillGhostCellsLvl(ctx, lvl+1, block.Phi); err != nil {
			return err
		}
		if err := d.VCycle(ctx, lvl+1); err != nil {
			return err
		}
	}
	return nil
}

// prolongGuess seeds level lvl's phi from its parents' converged phi, for
// every owned parent block at lvl-1 (the family-locality invariant
// guarantees a parent's children share its rank, so no remote data is
// needed here).
func (d *Driver) prolongGuess(lvl int) {
	t := d.Tree
	coarseLv := t.Level(lvl - 1)
	if coarseLv == nil {
		return
	}
	for _, pid := range coarseLv.MyParents {
		d.Prolongator.Prolong(t, t.Block(pid), block.Phi, block.Phi)
	}
}

// smoothAndRefill applies nCycle relaxation sweeps at lvl, refilling
// ghosts after every sweep (spec.md's sweep-then-refill discipline:
// a smoother never trusts ghost data left over from a previous level's
// pass).
func (d *Driver) smoothAndRefill(ctx context.Context, lvl, nCycle int) error {
	t := d.Tree
	lv := t.Level(lvl)
	if lv == nil {
		return nil
	}
	dr := t.Dr(lvl)
	for i := 0; i < nCycle; i++ {
		for _, id := range lv.MyIDs {
			stencil.Smooth(d.SmootherKind, t.Block(id), dr, 1)
		}
		if err := d.Ghost.FillGhostCellsLvl(ctx, lvl, block.Phi); err != nil {
			return err
		}
	}
	return nil
}

// updateCoarse computes the residual at lvl, restricts it plus phi down
// to lvl-1's parents, refills the coarse ghosts, and snapshots the
// coarse phi into Old -- the FAS bookkeeping correct() later subtracts
// back out.
func (d *Driver) updateCoarse(ctx context.Context, lvl int) error {
	t := d.Tree
	lv := t.Level(lvl)
	coarseLv := t.Level(lvl - 1)
	if lv == nil || coarseLv == nil {
		return nil
	}
	dr := t.Dr(lvl)
	for _, id := range lv.MyIDs {
		b := t.Block(id)
		stencil.Laplacian(b, block.Phi, block.Res, dr)
		block.ForEachInterior(b.Dim, b.B, func(c block.Coord) {
			b.Set(block.Res, c, b.At(block.Rho, c)-b.At(block.Res, c))
		})
	}
	for _, pid := range coarseLv.MyParents {
		parent := t.Block(pid)
		d.Restrictor.Restrict(t, parent, block.Res, block.Rho)
		d.Restrictor.Restrict(t, parent, block.Phi, block.Phi)
	}
	if err := d.Ghost.FillGhostCellsLvl(ctx, lvl-1, block.Phi); err != nil {
		return err
	}
	// rho_c = restrict(res_fine) + L_c(phi_c): the FAS right-hand side
	// carries both the fine residual and the coarse operator's own
	// action on the restricted guess, so the coarse solve reproduces the
	// fine equation's fixed point rather than a spurious coarse one.
	coarseDr := t.Dr(lvl - 1)
	for _, pid := range coarseLv.MyParents {
		parent := t.Block(pid)
		stencil.Laplacian(parent, block.Phi, block.Res, coarseDr)
		block.ForEachInterior(parent.Dim, parent.B, func(c block.Coord) {
			parent.Set(block.Rho, c, parent.At(block.Rho, c)+parent.At(block.Res, c))
		})
		parent.CopyVar(block.Old, block.Phi)
	}
	return nil
}

// correct adds the coarse correction (phi_c - old_c) back into lvl's
// phi via prolongation, then refills lvl's ghosts.
func (d *Driver) correct(ctx context.Context, lvl int) error {
	t := d.Tree
	coarseLv := t.Level(lvl - 1)
	if coarseLv == nil {
		return nil
	}
	for _, pid := range coarseLv.MyParents {
		parent := t.Block(pid)
		block.ForEachInterior(parent.Dim, parent.B, func(c block.Coord) {
			parent.Set(block.Res, c, parent.At(block.Phi, c)-parent.At(block.Old, c))
		})
		d.Prolongator.Prolong(t, parent, block.Res, block.Phi)
	}
	return d.Ghost.FillGhostCellsLvl(ctx, lvl, block.Phi)
}

// coarseSolve resolves lvl with d.Coarse (a direct solver such as
// DirectSineSolver) when UseDirectCoarse is set, and with d.Iterative
// (an IterativeSolver) otherwise.
func (d *Driver) coarseSolve(ctx context.Context, lvl int) error {
	refill := func(ctx context.Context, l int, v block.Var) error {
		return d.Ghost.FillGhostCellsLvl(ctx, l, v)
	}
	if d.UseDirectCoarse {
		if d.Coarse == nil {
			return apperr.New(apperr.CodeStructuralError, fmt.Sprintf("coarse solve requested at level %d with no direct solver configured", lvl))
		}
		return d.Coarse.Solve(ctx, d.Tree, lvl, refill)
	}
	res, err := d.Iterative.Solve(ctx, d.Tree, lvl, refill)
	if err != nil {
		return err
	}
	d.logf("coarse solve at level %d: %d cycles, residual %g -> %g (converged=%v)", lvl, res.Cycles, res.InitRes, res.FinalRes, res.Converged)
	return nil
}

// MaxResidual returns the max-norm residual over every owned block at
// lvl, the convergence measure the service layer polls between cycles.
func (d *Driver) MaxResidual(lvl int) float64 {
	t := d.Tree
	lv := t.Level(lvl)
	if lv == nil {
		return 0
	}
	dr := t.Dr(lvl)
	max := 0.0
	for _, id := range lv.MyIDs {
		b := t.Block(id)
		stencil.Laplacian(b, block.Phi, block.Res, dr)
		block.ForEachInterior(b.Dim, b.B, func(c block.Coord) {
			r := b.At(block.Rho, c) - b.At(block.Res, c)
			if r < 0 {
				r = -r
			}
			if r > max {
				max = r
			}
		})
	}
	return max
}
