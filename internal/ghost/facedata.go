package ghost

import (
	"github.com/octmg/octmg/internal/block"
	"github.com/octmg/octmg/internal/tree"
)

// packFaceSlab copies b's interior cells immediately inside face k into
// dst, in the canonical transverse order both sides of an exchange
// agree on (ascending free-axis index, d increasing).
func packFaceSlab(b *block.Block, v block.Var, k int, dst []float64) {
	axis := tree.Axis(k)
	depth := 1
	if !tree.IsLow(k) {
		depth = b.B
	}
	i := 0
	block.ForEachInPlane(b.Dim, axis, depth, 1, b.B, func(c block.Coord) {
		dst[i] = b.At(v, c)
		i++
	})
}

// unpackFaceSlab writes src into b's ghost layer on face k, using the
// same transverse order packFaceSlab produced it in.
func unpackFaceSlab(b *block.Block, v block.Var, k int, src []float64) {
	axis := tree.Axis(k)
	depth := 0
	if !tree.IsLow(k) {
		depth = b.B + 1
	}
	i := 0
	block.ForEachInPlane(b.Dim, axis, depth, 1, b.B, func(c block.Coord) {
		b.Set(v, c, src[i])
		i++
	})
}

// copyFaceDirect fills dst's ghost layer on face dstFace directly from
// src's interior cells on its matching face srcFace, for a same-rank,
// same-level neighbor pair. No buffer involved.
func copyFaceDirect(src, dst *block.Block, v block.Var, srcFace, dstFace int) {
	axis := tree.Axis(dstFace)
	srcDepth := 1
	if !tree.IsLow(srcFace) {
		srcDepth = src.B
	}
	dstDepth := 0
	if !tree.IsLow(dstFace) {
		dstDepth = dst.B + 1
	}
	block.ForEachInPlane(dst.Dim, axis, dstDepth, 1, dst.B, func(c block.Coord) {
		sc := c.Clone()
		sc[axis] = srcDepth
		dst.Set(v, c, src.At(v, sc))
	})
}

// facePlaneIndex computes the flat offset of a transverse coordinate tr
// (indexed by free axis in ascending d order, skipping axis) into a
// face slab of side b, matching packFaceSlab's enumeration order. Used
// to index into a received refinement-boundary slab at an arbitrary
// transverse position rather than sequentially.
func facePlaneIndex(dim, axis, b int, tr []int) int {
	idx := 0
	j := 0
	for d := 0; d < dim; d++ {
		if d == axis {
			continue
		}
		idx = idx*b + (tr[j] - 1)
		j++
	}
	return idx
}
