// Package partition is the external tree-builder/partitioner collaborator.
// The core treats it as out of scope (spec.md §1): it only consumes the
// blocks/levels arrays a partitioner produces. Build below is a minimal,
// dense-uniform-refinement partitioner, sufficient to drive the core end
// to end; a production deployment would plug in a real adaptive
// partitioner (load-balanced, refinement-criterion-driven) behind the
// same tree.Tree shape.
package partition

import (
	"github.com/octmg/octmg/internal/block"
	"github.com/octmg/octmg/internal/tree"
)

// Config describes a dense, uniformly-refined hierarchy: a single coarse
// root block at LowestLvl on rank 0, split into its 2^Dim children at
// LowestLvl+1 ("first normal level"), which are dealt round-robin over
// the NCPU ranks and each refined by 2:1 doubling at every subsequent
// level up to HighestLvl. From the first normal level on, a block and
// every descendant in its subtree are assigned the same rank, so
// restriction and prolongation between such a parent and its children
// never cross a rank boundary.
type Config struct {
	Dim        int
	B          int
	NCPU       int
	MyRank     int
	LowestLvl  int
	HighestLvl int
	DrRoot     float64
}

// Build constructs the tree described by cfg.
func Build(cfg Config) *tree.Tree {
	dim, b := cfg.Dim, cfg.B
	firstNormal := cfg.LowestLvl + 1
	t := tree.New(dim, b, cfg.MyRank, cfg.NCPU, cfg.LowestLvl, cfg.HighestLvl, firstNormal, cfg.DrRoot)

	nextID := 0
	alloc := func() int {
		id := nextID
		nextID++
		return id
	}

	rootID := alloc()
	root := block.New(rootID, 0, cfg.LowestLvl, dim, b)
	t.AddBlock(root)
	lv0 := t.EnsureLevel(cfg.LowestLvl)
	lv0.IDs = []int{rootID}
	if cfg.MyRank == 0 {
		lv0.MyIDs = []int{rootID}
	}

	n := 2 // standard 2:1 octree/quadtree branching factor
	numRoots := ipow(n, dim)

	curIDs := make([]int, numRoots)
	lvF := t.EnsureLevel(firstNormal)
	for r := 0; r < numRoots; r++ {
		id := alloc()
		rank := r % cfg.NCPU
		bl := block.New(id, rank, firstNormal, dim, b)
		bl.Parent = rootID
		bl.ChildSlot = r
		t.AddBlock(bl)
		lvF.IDs = append(lvF.IDs, id)
		if rank == cfg.MyRank {
			lvF.MyIDs = append(lvF.MyIDs, id)
		}
		curIDs[r] = id
	}
	root.Children = append([]int(nil), curIDs...)
	wireNeighborsGrid(t, curIDs, n, dim)
	recordOwnedState(t, cfg.LowestLvl, cfg.MyRank)
	recordOwnedState(t, firstNormal, cfg.MyRank)

	side := n
	// Position of each block within its level's dense grid. A finer
	// block's position is derived from its ancestor chain, so family
	// (parent+children) rank-locality is preserved while the grid stays
	// dense.
	posOf := map[int][]int{}
	for i, id := range curIDs {
		posOf[id] = unflatten(i, n, dim)
	}
	for lvl := firstNormal; lvl < cfg.HighestLvl; lvl++ {
		side *= 2
		lvNext := t.EnsureLevel(lvl + 1)
		nextIDs := make([]int, 0, len(curIDs)*tree.NumChildren(dim))
		grid := make([]int, ipow(side, dim))
		for i := range grid {
			grid[i] = -1
		}
		for _, pid := range curIDs {
			parent := t.Block(pid)
			children := make([]int, tree.NumChildren(dim))
			basePos := posOf[pid]
			for c := range children {
				off := tree.ChildOffset(dim, c)
				id := alloc()
				cb := block.New(id, parent.Rank, lvl+1, dim, b)
				cb.Parent = pid
				cb.ChildSlot = c
				t.AddBlock(cb)
				children[c] = id
				lvNext.IDs = append(lvNext.IDs, id)
				if cb.Rank == cfg.MyRank {
					lvNext.MyIDs = append(lvNext.MyIDs, id)
				}
				childPos := make([]int, dim)
				for d := range childPos {
					childPos[d] = basePos[d]*2 + off[d]
				}
				grid[flatten(childPos, side)] = id
				posOf[id] = childPos
				nextIDs = append(nextIDs, id)
			}
			parent.Children = children
		}
		wireNeighborsGridFromSlots(t, grid, side, dim)
		curIDs = nextIDs
		recordOwnedState(t, lvl+1, cfg.MyRank)
	}

	for lvl := firstNormal; lvl < cfg.HighestLvl; lvl++ {
		recordRefBndsAndParents(t, lvl, cfg.MyRank)
	}

	return t
}

func recordOwnedState(t *tree.Tree, lvl, myRank int) {
	lv := t.Level(lvl)
	if lv == nil {
		return
	}
	lv.MyIDs = lv.MyIDs[:0]
	for _, id := range lv.IDs {
		if t.Block(id).Rank == myRank {
			lv.MyIDs = append(lv.MyIDs, id)
		}
	}
}

// recordRefBndsAndParents records MyParents (owned blocks with children,
// used by update_coarse/correct's restriction and prolongation loops)
// for every level. MyRefBnds stays empty: this partitioner refines an
// entire level in lockstep, so no block ever has a same-level neighbor
// one level coarser than its own children -- the dense grid produces no
// genuine refinement boundary. A real adaptive partitioner populates
// MyRefBnds wherever that asymmetry exists.
func recordRefBndsAndParents(t *tree.Tree, lvl, myRank int) {
	lv := t.Level(lvl)
	if lv == nil {
		return
	}
	for _, id := range lv.MyIDs {
		if t.Block(id).HasChildren() {
			lv.MyParents = append(lv.MyParents, id)
		}
	}
}

// wireNeighborsGrid wires face neighbors for a dense grid of `ids`
// tiled n per axis.
func wireNeighborsGrid(t *tree.Tree, ids []int, n, dim int) {
	grid := make([]int, len(ids))
	copy(grid, ids)
	wireNeighborsGridFromSlots(t, grid, n, dim)
}

func wireNeighborsGridFromSlots(t *tree.Tree, grid []int, side, dim int) {
	for i, id := range grid {
		if id < 0 {
			continue
		}
		pos := unflatten(i, side, dim)
		b := t.Block(id)
		for k := 0; k < tree.NumNeighbors(dim); k++ {
			axis := tree.Axis(k)
			delta := 1
			if tree.IsLow(k) {
				delta = -1
			}
			npos := append([]int(nil), pos...)
			npos[axis] += delta
			if npos[axis] < 0 || npos[axis] >= side {
				b.Neighbors[k] = block.Physical
				continue
			}
			nid := grid[flatten(npos, side)]
			if nid < 0 {
				b.Neighbors[k] = block.Physical
				continue
			}
			b.Neighbors[k] = nid
		}
	}
}

func flatten(pos []int, side int) int {
	idx := 0
	for d := len(pos) - 1; d >= 0; d-- {
		idx = idx*side + pos[d]
	}
	return idx
}

func unflatten(i, side, dim int) []int {
	pos := make([]int, dim)
	for d := 0; d < dim; d++ {
		pos[d] = i % side
		i /= side
	}
	return pos
}

func ipow(base, exp int) int {
	r := 1
	for i := 0; i < exp; i++ {
		r *= base
	}
	return r
}
