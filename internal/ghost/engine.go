// Package ghost implements the ghost-cell exchange engine: two-pass
// dry-run buffer sizing, same-level exchange (same-rank and
// cross-rank), refinement-boundary reconstruction, and physical
// boundary dispatch (spec.md §4.2).
package ghost

import (
	"context"
	"fmt"

	"github.com/octmg/octmg/internal/block"
	"github.com/octmg/octmg/internal/boundary"
	"github.com/octmg/octmg/internal/tree"
	"github.com/octmg/octmg/internal/xfer"
	apperr "github.com/octmg/octmg/pkg/errors"
)

// RBStencil selects the refinement-boundary reconstruction form. Only
// the forms spec.md names are wired in; the enum leaves a seam for a
// future alternative without touching call sites.
type RBStencil int

const (
	RB3Point2D RBStencil = iota
	RB2Point3D
)

// Engine drives fill_ghost_cells_lvl for one tree: dry-run sizing once
// per (solve, buffer-size) change, then repeated real exchanges.
type Engine struct {
	Tree     *tree.Tree
	Pool     *xfer.Pool
	BC       *boundary.Registry
	RBForm   RBStencil
	dsize    int
}

// NewEngine returns an engine bound to t, pool, and bc. dsize is the
// number of floats in one face's exchange record: B^(Dim-1).
func NewEngine(t *tree.Tree, pool *xfer.Pool, bc *boundary.Registry) *Engine {
	dim := t.Dim
	dsize := 1
	for i := 0; i < dim-1; i++ {
		dsize *= t.B
	}
	form := RB3Point2D
	if dim == 3 {
		form = RB2Point3D
	}
	return &Engine{Tree: t, Pool: pool, BC: bc, RBForm: form, dsize: dsize}
}

// SizeBuffers runs the two-pass dry-run sizing sweep (spec.md §4.2.1)
// across every level from FirstNormalLvl to HighestLvl and allocates
// the pool's buffers to the resulting per-peer capacities. Must be
// called once before the first real FillGhostCellsLvl, and again if the
// tree's ownership changes.
func (e *Engine) SizeBuffers() {
	t := e.Tree
	e.Pool.BeginSizing(e.dsize)
	for lvl := t.FirstNormalLvl; lvl <= t.HighestLvl; lvl++ {
		e.sizeSendAt(lvl)
		e.Pool.RecordLevel(lvl)
		e.sizeRecvAt(lvl)
		e.Pool.RecordLevel(lvl)
	}
	e.Pool.Finalize()
}

func (e *Engine) sizeSendAt(lvl int) {
	t := e.Tree
	lv := t.Level(lvl)
	if lv == nil {
		return
	}
	for _, id := range lv.MyIDs {
		b := t.Block(id)
		for k := 0; k < tree.NumNeighbors(t.Dim); k++ {
			nbID := b.Neighbors[k]
			if nbID >= 0 && t.Block(nbID).Rank != t.MyRank {
				e.Pool.ReserveSend(t.Block(nbID).Rank, e.dsize)
			}
		}
	}
	if lvl <= t.FirstNormalLvl {
		return
	}
	coarseLv := t.Level(lvl - 1)
	if coarseLv == nil {
		return
	}
	for _, cid := range coarseLv.MyRefBnds {
		cb := t.Block(cid)
		for k := 0; k < tree.NumNeighbors(t.Dim); k++ {
			nbID := cb.Neighbors[k]
			if nbID < 0 {
				continue
			}
			nb := t.Block(nbID)
			if !nb.HasChildren() {
				continue
			}
			for _, slot := range tree.ChildrenOnFace(t.Dim, tree.Rev(k)) {
				childID := nb.Children[slot]
				if childID == block.None {
					continue
				}
				child := t.Block(childID)
				if child.Rank == t.MyRank {
					continue
				}
				e.Pool.ReserveSend(child.Rank, e.dsize)
			}
		}
	}
}

func (e *Engine) sizeRecvAt(lvl int) {
	e.forEachRemoteRecvFace(lvl, func(peer int) {
		e.Pool.ReserveRecv(peer, e.dsize)
	})
}

// forEachRemoteRecvFace calls fn(peerRank) once for every owned face at
// lvl that will receive data from a remote rank, in the exact traversal
// order dispatch itself uses to consume that data. Shared between the
// dry-run sizing pass and the per-fill recv-count pass so the two can
// never drift apart.
func (e *Engine) forEachRemoteRecvFace(lvl int, fn func(peer int)) {
	t := e.Tree
	lv := t.Level(lvl)
	if lv == nil {
		return
	}
	for _, id := range lv.MyIDs {
		b := t.Block(id)
		for k := 0; k < tree.NumNeighbors(t.Dim); k++ {
			nbID := b.Neighbors[k]
			switch {
			case nbID >= 0:
				if t.Block(nbID).Rank != t.MyRank {
					fn(t.Block(nbID).Rank)
				}
			case nbID == block.NoBox:
				parent := t.Block(b.Parent)
				coarseNb := parent.Neighbors[k]
				if coarseNb >= 0 && t.Block(coarseNb).Rank != t.MyRank {
					fn(t.Block(coarseNb).Rank)
				}
			}
		}
	}
}

// FillGhostCellsLvl fills every owned block's ghost layer for variable v
// at level lvl, dispatching each face by neighbor kind (spec.md §4.2.2
// -- §4.2.4). Buffers must already be sized via SizeBuffers.
func (e *Engine) FillGhostCellsLvl(ctx context.Context, lvl int, v block.Var) error {
	t := e.Tree
	lv := t.Level(lvl)
	if lv == nil {
		return nil
	}

	e.Pool.ResetCursors()
	e.packSameLevel(lvl, v)
	e.packRefinementBoundary(lvl, v)
	for r, n := range e.recvCountsFor(lvl) {
		e.Pool.ExpectRecv(r, n)
	}
	if err := e.Pool.SortAndTransfer(ctx, e.dsize); err != nil {
		return err
	}
	return e.dispatch(lvl, v)
}

// recvCountsFor computes the per-peer record count this level expects
// to receive, matching forEachRemoteRecvFace's traversal exactly.
func (e *Engine) recvCountsFor(lvl int) map[int]int {
	counts := map[int]int{}
	e.forEachRemoteRecvFace(lvl, func(peer int) { counts[peer]++ })
	return counts
}

func (e *Engine) packSameLevel(lvl int, v block.Var) {
	t := e.Tree
	lv := t.Level(lvl)
	for _, id := range lv.MyIDs {
		b := t.Block(id)
		for k := 0; k < tree.NumNeighbors(t.Dim); k++ {
			nbID := b.Neighbors[k]
			if nbID < 0 || t.Block(nbID).Rank == t.MyRank {
				continue
			}
			peer := t.Block(nbID).Rank
			off := e.Pool.ReserveSend(peer, e.dsize)
			packFaceSlab(b, v, k, e.Pool.SendSlice(peer, off, e.dsize))
			e.Pool.PushKey(peer, tree.NumNeighbors(t.Dim)*nbID+tree.Rev(k))
		}
	}
}

func (e *Engine) packRefinementBoundary(lvl int, v block.Var) {
	t := e.Tree
	if lvl < t.FirstNormalLvl {
		return
	}
	coarseLv := t.Level(lvl - 1)
	if coarseLv == nil {
		return
	}
	for _, cid := range coarseLv.MyRefBnds {
		cb := t.Block(cid)
		for k := 0; k < tree.NumNeighbors(t.Dim); k++ {
			nbID := cb.Neighbors[k]
			if nbID < 0 {
				continue
			}
			nb := t.Block(nbID)
			if !nb.HasChildren() {
				continue
			}
			for _, slot := range tree.ChildrenOnFace(t.Dim, tree.Rev(k)) {
				childID := nb.Children[slot]
				if childID == block.None {
					continue
				}
				child := t.Block(childID)
				if child.Rank == t.MyRank {
					continue
				}
				peer := child.Rank
				off := e.Pool.ReserveSend(peer, e.dsize)
				packFaceSlab(cb, v, k, e.Pool.SendSlice(peer, off, e.dsize))
				e.Pool.PushKey(peer, tree.NumNeighbors(t.Dim)*childID+tree.Rev(k))
			}
		}
	}
}

func (e *Engine) dispatch(lvl int, v block.Var) error {
	t := e.Tree
	lv := t.Level(lvl)
	dr := t.Dr(lvl)
	for _, id := range lv.MyIDs {
		b := t.Block(id)
		for k := 0; k < tree.NumNeighbors(t.Dim); k++ {
			nbID := b.Neighbors[k]
			switch {
			case nbID >= 0:
				nb := t.Block(nbID)
				if nb.Rank == t.MyRank {
					copyFaceDirect(nb, b, v, tree.Rev(k), k)
				} else {
					slab := e.Pool.RecvSlice(nb.Rank, reserveRecvAndAdvance(e.Pool, nb.Rank, e.dsize), e.dsize)
					unpackFaceSlab(b, v, k, slab)
				}
			case nbID == block.NoBox:
				if err := e.reconstructRefinementBoundary(b, v, k, dr); err != nil {
					return err
				}
			case nbID == block.Physical:
				if err := e.applyPhysicalBoundary(b, v, k, dr); err != nil {
					return err
				}
			default:
				return apperr.New(apperr.CodeStructuralError, fmt.Sprintf("block %d face %d has unknown neighbor sentinel %d", id, k, nbID))
			}
		}
	}
	return nil
}

// reserveRecvAndAdvance is a thin wrapper so dispatch reads sequentially
// from a peer's recv buffer in the same order the sizing/packing passes
// assumed: it advances the pool's receive cursor for peer by n floats
// and returns the offset of the record to read.
func reserveRecvAndAdvance(p *xfer.Pool, peer, n int) int {
	return p.ReserveRecv(peer, n)
}
