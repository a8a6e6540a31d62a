package ghost

import (
	"fmt"

	"github.com/octmg/octmg/internal/block"
	"github.com/octmg/octmg/internal/tree"
	apperr "github.com/octmg/octmg/pkg/errors"
)

// reconstructRefinementBoundary fills b's ghost layer on face k from its
// coarse neighbor across a refinement boundary (spec.md §4.2.3): a
// 3-point stencil in 2D, a 2-point (diagonal) stencil in 3D, both
// reproducing a constant field exactly so a uniform solution sees no
// spurious boundary error.
func (e *Engine) reconstructRefinementBoundary(b *block.Block, v block.Var, k int, dr float64) error {
	t := e.Tree
	dim := t.Dim
	axis := tree.Axis(k)

	parent := t.Block(b.Parent)
	coarseID := parent.Neighbors[k]
	if coarseID < 0 {
		return apperr.New(apperr.CodeStructuralError,
			fmt.Sprintf("block %d refinement boundary at face %d: parent has no same-level neighbor there", b.ID, k))
	}
	coarseNb := t.Block(coarseID)
	childOff := tree.ChildOffset(dim, b.ChildSlot)

	ghostDepth := 0
	fineDepth1, fineDepth2 := 1, 2
	if !tree.IsLow(k) {
		ghostDepth = b.B + 1
		fineDepth1, fineDepth2 = b.B, b.B-1
	}
	coarseFaceDepth := 1
	if !tree.IsLow(tree.Rev(k)) {
		coarseFaceDepth = coarseNb.B
	}

	var coarseAt func(tr []int) float64
	if coarseNb.Rank == t.MyRank {
		coarseAt = func(tr []int) float64 {
			c := make(block.Coord, dim)
			c[axis] = coarseFaceDepth
			j := 0
			for d := 0; d < dim; d++ {
				if d == axis {
					continue
				}
				c[d] = tr[j]
				j++
			}
			return coarseNb.At(v, c)
		}
	} else {
		off := e.Pool.ReserveRecv(coarseNb.Rank, e.dsize)
		slab := e.Pool.RecvSlice(coarseNb.Rank, off, e.dsize)
		coarseAt = func(tr []int) float64 {
			return slab[facePlaneIndex(dim, axis, coarseNb.B, tr)]
		}
	}

	block.ForEachInPlane(dim, axis, ghostDepth, 1, b.B, func(ghost block.Coord) {
		x1c := ghost.Clone()
		x1c[axis] = fineDepth1
		x1 := b.At(v, x1c)

		coarseTr := make([]int, dim-1)
		j := 0
		for d := 0; d < dim; d++ {
			if d == axis {
				continue
			}
			offsetD := childOff[d] * (b.B / 2)
			coarseTr[j] = offsetD + (ghost[d]+1)/2
			j++
		}
		c := coarseAt(coarseTr)

		var val float64
		if dim == 2 {
			tAxis := transverseAxis(dim, axis)
			xp1c := x1c.Clone()
			xp1c[tAxis] = shifted(ghost[tAxis], b.B)
			xp1 := b.At(v, xp1c)
			xp2c := xp1c.Clone()
			xp2c[axis] = fineDepth2
			xp2 := b.At(v, xp2c)
			val = 0.5*c + x1 - 0.25*(xp1+xp2)
		} else {
			diagC := x1c.Clone()
			for d := 0; d < dim; d++ {
				if d == axis {
					continue
				}
				diagC[d] = shifted(ghost[d], b.B)
			}
			xdiag := b.At(v, diagC)
			val = 0.5*c + 0.75*x1 - 0.25*xdiag
		}
		b.Set(v, ghost, val)
	})
	return nil
}

// shifted returns the index next to i within [1, b]: i+1, or i-1 when
// i is already at the high edge b.
func shifted(i, b int) int {
	if i+1 <= b {
		return i + 1
	}
	return i - 1
}

func transverseAxis(dim, axis int) int {
	for d := 0; d < dim; d++ {
		if d != axis {
			return d
		}
	}
	return 0
}
