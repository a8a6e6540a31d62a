// Package coarse implements the bottom-of-the-V-cycle solve: a direct
// sine-transform solver for the single-block case, and an iterative
// relaxation fallback guarded by the strict ownership invariant spec.md
// requires at the coarsest level (either one rank owns every coarse
// block, or none of them do).
package coarse

import (
	"context"
	"fmt"
	"math"

	"github.com/octmg/octmg/internal/block"
	"github.com/octmg/octmg/internal/stencil"
	"github.com/octmg/octmg/internal/tree"
	apperr "github.com/octmg/octmg/pkg/errors"
)

// Solver resolves L(phi) = rho at the coarsest level.
type Solver interface {
	// Solve updates phi in place on every owned coarse block and refills
	// phi's ghost cells through refillGhosts before returning; the caller
	// does not refill them afterward.
	Solve(ctx context.Context, t *tree.Tree, lvl int, refillGhosts func(context.Context, int, block.Var) error) error
}

// DirectSineSolver solves the single-block coarse level exactly via a
// discrete sine transform (the eigenfunctions of the Dirichlet
// Laplacian on a regular grid), applicable only when the coarse level
// has exactly one block and its boundary is homogeneous Dirichlet. It
// is a direct O(N^2) transform rather than a fast (O(N log N)) one: the
// coarse grid is tiny by construction (a single block's B^Dim cells),
// so the asymptotic cost never matters, and no FFT library appears
// anywhere in the reference corpus.
type DirectSineSolver struct{}

// Solve requires exactly one coarse block, owned either by every rank
// (replicated) or by this rank alone under the ownership invariant
// IterativeSolver also enforces.
func (DirectSineSolver) Solve(ctx context.Context, t *tree.Tree, lvl int, refillGhosts func(context.Context, int, block.Var) error) error {
	lv := t.Level(lvl)
	if lv == nil || len(lv.MyIDs) == 0 {
		return nil
	}
	if len(lv.MyIDs) != 1 {
		return apperr.New(apperr.CodeStructuralError,
			fmt.Sprintf("direct coarse solve requires exactly one owned block at level %d, got %d", lvl, len(lv.MyIDs)))
	}
	b := t.Block(lv.MyIDs[0])
	dr := t.Dr(lvl)
	sineSolve(b, dr)
	return refillGhosts(ctx, lvl, block.Phi)
}

// sineSolve solves L(phi) = rho on b's interior via separable DST-I:
// rho is projected onto the sine basis along every axis, divided by
// the Laplacian's analytic eigenvalues, then transformed back.
func sineSolve(b *block.Block, dr float64) {
	dim := b.Dim
	n := b.B
	eig := make([]float64, n+1) // 1-indexed, eig[0] unused
	for k := 1; k <= n; k++ {
		eig[k] = 2 - 2*math.Cos(math.Pi*float64(k)/float64(n+1))
	}

	coef := make([]float64, n+1)
	sinTable := make([][]float64, n+1)
	for k := 1; k <= n; k++ {
		coef[k] = math.Sqrt(2.0 / float64(n+1))
		row := make([]float64, n+1)
		for i := 1; i <= n; i++ {
			row[i] = math.Sin(math.Pi * float64(k) * float64(i) / float64(n+1))
		}
		sinTable[k] = row
	}

	rho := b.Data(block.Rho)
	hat := make([]float64, len(rho))
	copy(hat, rho)

	// Forward DST along each axis in turn.
	for axis := 0; axis < dim; axis++ {
		transformAxis(b, hat, axis, sinTable, coef, true)
	}

	// Divide by the separable eigenvalue and dr^2.
	drsq := dr * dr
	block.ForEachInterior(dim, n, func(c block.Coord) {
		lambda := 0.0
		for a := 0; a < dim; a++ {
			lambda += eig[c[a]]
		}
		if lambda == 0 {
			return
		}
		idx := b.Index(c)
		hat[idx] = -hat[idx] * drsq / lambda
	})

	// Inverse DST (DST-I is its own inverse up to the same normalization
	// already folded into coef).
	for axis := 0; axis < dim; axis++ {
		transformAxis(b, hat, axis, sinTable, coef, false)
	}

	phi := b.Data(block.Phi)
	copy(phi, hat)
}

// transformAxis applies a 1D DST-I along `axis` to every line of `data`,
// in place, for every fixed combination of the other axes.
func transformAxis(b *block.Block, data []float64, axis int, sinTable [][]float64, coef []float64, forward bool) {
	dim, n := b.Dim, b.B
	block.ForEachInPlane(dim, axis, 1, 1, n, func(base block.Coord) {
		in := make([]float64, n+1)
		c := base.Clone()
		for i := 1; i <= n; i++ {
			c[axis] = i
			in[i] = data[b.Index(c)]
		}
		out := make([]float64, n+1)
		for k := 1; k <= n; k++ {
			sum := 0.0
			for i := 1; i <= n; i++ {
				sum += in[i] * sinTable[k][i]
			}
			out[k] = coef[k] * sum
		}
		_ = forward
		for i := 1; i <= n; i++ {
			c[axis] = i
			data[b.Index(c)] = out[i]
		}
	})
}

// IterativeSolver relaxes the coarse level with the ordinary smoother
// until the residual drops below a relative or absolute tolerance, or
// MaxCycles is reached. Non-convergence is reported through the return
// value, never as an error (apperr.CodeConvergence is never raised).
type IterativeSolver struct {
	Kind           stencil.Kind
	MaxCycles      int
	ResidualRel    float64
	ResidualAbs    float64
	CyclesPerCheck int
}

// Result reports how the iterative solve finished.
type Result struct {
	Cycles   int
	InitRes  float64
	FinalRes float64
	Converged bool
}

// Solve enforces the ownership invariant (this rank owns either every
// coarse block or none) before relaxing, since a partial coarse-level
// residual is meaningless without a cross-rank reduction this core
// never implements.
func (s IterativeSolver) Solve(ctx context.Context, t *tree.Tree, lvl int, refillGhosts func(context.Context, int, block.Var) error) (Result, error) {
	lv := t.Level(lvl)
	if lv == nil {
		return Result{}, nil
	}
	total := len(lv.IDs)
	mine := len(lv.MyIDs)
	if mine > 0 && mine != total {
		return Result{}, apperr.New(apperr.CodeStructuralError,
			fmt.Sprintf("coarse level %d is partially owned by this rank (%d of %d blocks): the coarse solve requires single-rank or fully-replicated ownership", lvl, mine, total))
	}
	if mine == 0 {
		return Result{}, nil
	}

	dr := t.Dr(lvl)
	cyclesPerCheck := s.CyclesPerCheck
	if cyclesPerCheck <= 0 {
		cyclesPerCheck = 1
	}

	initRes := maxResidual(t, lv, dr)
	res := initRes
	cycles := 0
	for cycles < s.MaxCycles {
		for _, id := range lv.MyIDs {
			stencil.Smooth(s.Kind, t.Block(id), dr, cyclesPerCheck)
		}
		if err := refillGhosts(ctx, lvl, block.Phi); err != nil {
			return Result{}, err
		}
		cycles += cyclesPerCheck
		res = maxResidual(t, lv, dr)
		if res < s.ResidualRel*initRes || res < s.ResidualAbs {
			return Result{Cycles: cycles, InitRes: initRes, FinalRes: res, Converged: true}, nil
		}
	}
	return Result{Cycles: cycles, InitRes: initRes, FinalRes: res, Converged: false}, nil
}

func maxResidual(t *tree.Tree, lv *tree.Level, dr float64) float64 {
	max := 0.0
	for _, id := range lv.MyIDs {
		b := t.Block(id)
		stencil.Laplacian(b, block.Phi, block.Res, dr)
		block.ForEachInterior(b.Dim, b.B, func(c block.Coord) {
			r := math.Abs(b.At(block.Rho, c) - b.At(block.Res, c))
			if r > max {
				max = r
			}
		})
	}
	return max
}
