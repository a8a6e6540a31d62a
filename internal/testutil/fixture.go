// Package testutil builds small, hand-wired trees for tests that need
// tree shapes the uniform partitioner (internal/partition) cannot
// produce -- chiefly a genuine refinement boundary, which requires one
// region refined past its neighbors.
package testutil

import (
	"github.com/octmg/octmg/internal/block"
	"github.com/octmg/octmg/internal/tree"
)

// QuadrantRefinement returns a 2D, three-level tree: a root at lvl0
// split into four lvl1 children in a 2x2 grid, one of which (the one at
// grid position (0,0), id 1) is further refined into four lvl2
// grandchildren. The other three lvl1 blocks stay coarse, so the three
// grandchildren on the (0,0) child's outward faces get a genuine
// refinement-boundary (NoBox) neighbor there.
//
// rankOf maps every block id to an owning rank; nil assigns every block
// to rank 0. myRank selects which rank's view (MyIDs/MyParents/
// MyRefBnds) this call populates -- call it once per simulated rank,
// passing the same rankOf each time, to get matching trees for a
// cross-rank exchange test.
func QuadrantRefinement(b, myRank int, rankOf map[int]int) *tree.Tree {
	dim := 2
	rank := func(id int) int {
		if rankOf == nil {
			return 0
		}
		return rankOf[id]
	}

	t := tree.New(dim, b, myRank, 2, 0, 2, 1, 1.0)

	root := block.New(0, rank(0), 0, dim, b)
	t.AddBlock(root)
	lv0 := t.EnsureLevel(0)
	lv0.IDs = []int{0}

	// lvl1: ids 1..4 at grid positions (0,0) (1,0) (0,1) (1,1).
	ids1 := []int{1, 2, 3, 4}
	for i, id := range ids1 {
		bl := block.New(id, rank(id), 1, dim, b)
		bl.Parent = 0
		bl.ChildSlot = i
		t.AddBlock(bl)
	}
	root.Children = append([]int(nil), ids1...)
	wireGrid2x2(t, ids1)
	lv1 := t.EnsureLevel(1)
	lv1.IDs = append([]int(nil), ids1...)

	// lvl2: ids 5..8, the children of id 1, at sub-positions (0,0) (1,0)
	// (0,1) (1,1) within id 1's footprint.
	ids2 := []int{5, 6, 7, 8}
	for slot, id := range ids2 {
		bl := block.New(id, rank(id), 2, dim, b)
		bl.Parent = 1
		bl.ChildSlot = slot
		t.AddBlock(bl)
	}
	t.Block(1).Children = append([]int(nil), ids2...)
	wireGrid2x2(t, ids2)
	// Outward faces leave id 1's footprint: give them NoBox instead of
	// the Physical default wireGrid2x2 assigned at the sub-grid edge.
	t.Block(6).Neighbors[1] = block.NoBox // child (1,0): +x leaves toward id 2
	t.Block(7).Neighbors[3] = block.NoBox // child (0,1): +y leaves toward id 3
	t.Block(8).Neighbors[1] = block.NoBox // child (1,1): +x leaves toward id 2
	t.Block(8).Neighbors[3] = block.NoBox // child (1,1): +y leaves toward id 3
	lv2 := t.EnsureLevel(2)
	lv2.IDs = append([]int(nil), ids2...)

	for _, lv := range []*tree.Level{lv0, lv1, lv2} {
		for _, id := range lv.IDs {
			if t.Block(id).Rank == myRank {
				lv.MyIDs = append(lv.MyIDs, id)
			}
		}
	}
	for _, id := range lv1.MyIDs {
		if t.Block(id).HasChildren() {
			lv1.MyParents = append(lv1.MyParents, id)
		}
	}
	// Only ids 2 and 3 border the refined quadrant directly; id 4 does
	// not (its neighbors are ids 2 and 3, neither refined).
	for _, id := range []int{2, 3} {
		if t.Block(id).Rank == myRank {
			lv1.MyRefBnds = append(lv1.MyRefBnds, id)
		}
	}

	return t
}

// wireGrid2x2 wires face neighbors among a dense 2x2 grid of blocks
// (grid position i = (i%2, i/2)), Physical at the outer edge.
func wireGrid2x2(t *tree.Tree, ids []int) {
	pos := func(i int) (int, int) { return i % 2, i / 2 }
	idAt := map[[2]int]int{}
	for i, id := range ids {
		x, y := pos(i)
		idAt[[2]int{x, y}] = id
	}
	for i, id := range ids {
		x, y := pos(i)
		bl := t.Block(id)
		neighbors := [4][2]int{{x - 1, y}, {x + 1, y}, {x, y - 1}, {x, y + 1}}
		for k, n := range neighbors {
			if n[0] < 0 || n[0] > 1 || n[1] < 0 || n[1] > 1 {
				bl.Neighbors[k] = block.Physical
				continue
			}
			bl.Neighbors[k] = idAt[n]
		}
	}
}
