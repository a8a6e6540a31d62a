// Package transfer implements the default restriction and prolongation
// operators the FAS driver (internal/mg) needs to move data between a
// coarse block and its 2^Dim children. Restriction/prolongation are
// external collaborators from the core's point of view (akin to
// internal/partition's tree-builder role): this package is one concrete
// implementation, not the only one a caller could plug in.
package transfer

import (
	"github.com/octmg/octmg/internal/block"
	"github.com/octmg/octmg/internal/tree"
)

// Restrictor moves a fine-level field down to a coarse parent block.
type Restrictor interface {
	Restrict(t *tree.Tree, parent *block.Block, src, dst block.Var)
}

// Prolongator moves a coarse-level correction up, adding it into the
// children's field.
type Prolongator interface {
	Prolong(t *tree.Tree, parent *block.Block, src, dst block.Var)
}

// FullWeight restricts by averaging the 2^Dim fine cells that map onto
// each coarse cell under 2:1 refinement -- the cell-centered analogue of
// full-weighting restriction.
type FullWeight struct{}

// Restrict writes, into parent's dst, the average of the corresponding
// child's src cells for every coarse cell. parent must have children and
// they must share its rank (the family-locality invariant the
// partitioner guarantees).
func (FullWeight) Restrict(t *tree.Tree, parent *block.Block, src, dst block.Var) {
	dim := parent.Dim
	half := parent.B / 2
	block.ForEachInterior(dim, parent.B, func(p block.Coord) {
		offBits := make([]int, dim)
		fineBase := make([]int, dim)
		for d := 0; d < dim; d++ {
			if p[d] <= half {
				offBits[d] = 0
				fineBase[d] = 2*p[d] - 1
			} else {
				offBits[d] = 1
				fineBase[d] = 2*(p[d]-half) - 1
			}
		}
		childIdx := tree.ChildIndex(offBits)
		child := t.Block(parent.Children[childIdx])
		parent.Set(dst, p, restrictCell(child, src, fineBase, dim))
	})
}

func restrictCell(child *block.Block, v block.Var, fineBase []int, dim int) float64 {
	n := 1 << uint(dim)
	sum := 0.0
	c := make(block.Coord, dim)
	for m := 0; m < n; m++ {
		for d := 0; d < dim; d++ {
			bit := (m >> uint(d)) & 1
			c[d] = fineBase[d] + bit
		}
		sum += child.At(v, c)
	}
	return sum / float64(n)
}

// Injection prolongs a coarse correction by copying each coarse cell's
// value, unchanged, onto every fine cell that maps onto it, adding it
// into the child's dst field. Constant-preserving by construction (every
// fine cell under a uniform coarse correction receives that same
// constant), matching the refinement-boundary reconstruction's
// constant-preservation guarantee in internal/ghost.
type Injection struct{}

// Prolong adds parent's src correction into each child's dst field.
func (Injection) Prolong(t *tree.Tree, parent *block.Block, src, dst block.Var) {
	dim := parent.Dim
	half := parent.B / 2
	block.ForEachInterior(dim, parent.B, func(p block.Coord) {
		offBits := make([]int, dim)
		fineBase := make([]int, dim)
		for d := 0; d < dim; d++ {
			if p[d] <= half {
				offBits[d] = 0
				fineBase[d] = 2*p[d] - 1
			} else {
				offBits[d] = 1
				fineBase[d] = 2*(p[d]-half) - 1
			}
		}
		childIdx := tree.ChildIndex(offBits)
		child := t.Block(parent.Children[childIdx])
		corr := parent.At(src, p)
		addToCell(child, dst, fineBase, dim, corr)
	})
}

func addToCell(child *block.Block, v block.Var, fineBase []int, dim int, corr float64) {
	n := 1 << uint(dim)
	c := make(block.Coord, dim)
	for m := 0; m < n; m++ {
		for d := 0; d < dim; d++ {
			bit := (m >> uint(d)) & 1
			c[d] = fineBase[d] + bit
		}
		child.Set(v, c, child.At(v, c)+corr)
	}
}
