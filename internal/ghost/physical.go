package ghost

import (
	"github.com/octmg/octmg/internal/block"
	"github.com/octmg/octmg/internal/boundary"
	"github.com/octmg/octmg/internal/tree"
)

// applyPhysicalBoundary fills b's ghost layer on face k, a domain
// boundary, via the registered condition for (k, v).
//
// Conditions with a Callback are evaluated at a dr-scaled local
// position rather than a true globally-embedded coordinate: the core
// tree does not track per-block world origins (spec.md treats block
// placement as the partitioner's concern), so Callback boundaries are a
// same-rank, per-block convenience rather than a globally consistent
// manufactured-solution coordinate.
func (e *Engine) applyPhysicalBoundary(b *block.Block, v block.Var, k int, dr float64) error {
	axis := tree.Axis(k)
	ghostDepth := 0
	fineDepth1, fineDepth2 := 1, 2
	if !tree.IsLow(k) {
		ghostDepth = b.B + 1
		fineDepth1, fineDepth2 = b.B, b.B-1
	}
	cond := e.BC.Get(k, v)
	isLow := tree.IsLow(k)

	var firstErr error
	block.ForEachInPlane(b.Dim, axis, ghostDepth, 1, b.B, func(ghost block.Coord) {
		if firstErr != nil {
			return
		}
		x1c := ghost.Clone()
		x1c[axis] = fineDepth1
		x2c := ghost.Clone()
		x2c[axis] = fineDepth2
		x1 := b.At(v, x1c)
		x2 := b.At(v, x2c)

		pos := make([]float64, b.Dim)
		for d := 0; d < b.Dim; d++ {
			pos[d] = float64(ghost[d]) * dr
		}
		datum := boundary.Datum(cond, pos)

		val, err := boundary.ApplyGhost(cond.Kind, isLow, datum, x1, x2, dr)
		if err != nil {
			firstErr = err
			return
		}
		b.Set(v, ghost, val)
	})
	return firstErr
}
