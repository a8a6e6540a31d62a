package ghost

import (
	"context"
	"sync"
	"testing"

	"github.com/octmg/octmg/internal/block"
	"github.com/octmg/octmg/internal/boundary"
	"github.com/octmg/octmg/internal/partition"
	"github.com/octmg/octmg/internal/testutil"
	"github.com/octmg/octmg/internal/tree"
	"github.com/octmg/octmg/internal/xfer"
)

func TestSameRankSameLevelDirectCopy(t *testing.T) {
	tr := testutil.QuadrantRefinement(4, 0, nil)
	pool := xfer.NewPool(xfer.NewLoopbackNetwork(1).Endpoint(0))
	eng := NewEngine(tr, pool, boundary.NewRegistry())
	eng.SizeBuffers()

	b5, b6 := tr.Block(5), tr.Block(6)
	block.ForEachInterior(2, 4, func(c block.Coord) {
		b5.Set(block.Phi, c, float64(c[1])) // varies along the shared y edge
		b6.Set(block.Phi, c, float64(10+c[1]))
	})

	if err := eng.FillGhostCellsLvl(context.Background(), 2, block.Phi); err != nil {
		t.Fatalf("fill: %v", err)
	}

	// b5's +x ghost (face 1) must equal b6's interior at depth 1 (face 0).
	for y := 1; y <= 4; y++ {
		got := b5.At(block.Phi, block.Coord{5, y})
		want := b6.At(block.Phi, block.Coord{1, y})
		if got != want {
			t.Fatalf("b5 ghost at y=%d = %v, want %v", y, got, want)
		}
	}
}

func TestPhysicalBoundaryDirichlet(t *testing.T) {
	tr := testutil.QuadrantRefinement(4, 0, nil)
	pool := xfer.NewPool(xfer.NewLoopbackNetwork(1).Endpoint(0))
	bc := boundary.NewRegistry()
	bc.Set(0, block.Phi, boundary.Condition{Kind: boundary.Dirichlet, Value: 3})
	eng := NewEngine(tr, pool, bc)
	eng.SizeBuffers()

	b5 := tr.Block(5)
	block.ForEachInterior(2, 4, func(c block.Coord) { b5.Set(block.Phi, c, 1) })

	if err := eng.FillGhostCellsLvl(context.Background(), 2, block.Phi); err != nil {
		t.Fatalf("fill: %v", err)
	}
	for y := 1; y <= 4; y++ {
		got := b5.At(block.Phi, block.Coord{0, y})
		if got != 5 { // 2*3 - 1
			t.Fatalf("dirichlet ghost at y=%d = %v, want 5", y, got)
		}
	}
}

func TestRefinementBoundaryPreservesConstant(t *testing.T) {
	tr := testutil.QuadrantRefinement(4, 0, nil)
	pool := xfer.NewPool(xfer.NewLoopbackNetwork(1).Endpoint(0))
	eng := NewEngine(tr, pool, boundary.NewRegistry())
	eng.SizeBuffers()

	const c = 7.0
	for _, id := range []int{2, 3, 4, 5, 6, 7, 8} {
		bl := tr.Block(id)
		data := bl.Data(block.Phi)
		for i := range data {
			data[i] = c
		}
	}

	if err := eng.FillGhostCellsLvl(context.Background(), 1, block.Phi); err != nil {
		t.Fatalf("fill lvl1: %v", err)
	}
	if err := eng.FillGhostCellsLvl(context.Background(), 2, block.Phi); err != nil {
		t.Fatalf("fill lvl2: %v", err)
	}

	check := func(id, face int) {
		bl := tr.Block(id)
		axis := tree.Axis(face)
		depth := 0
		if !tree.IsLow(face) {
			depth = bl.B + 1
		}
		block.ForEachInPlane(2, axis, depth, 1, bl.B, func(cc block.Coord) {
			if got := bl.At(block.Phi, cc); got != c {
				t.Fatalf("block %d face %d ghost at %v = %v, want %v", id, face, cc, got, c)
			}
		})
	}
	check(6, 1)
	check(7, 3)
	check(8, 1)
	check(8, 3)
}

func TestCrossRankSameLevelExchange(t *testing.T) {
	cfg := partition.Config{Dim: 2, B: 2, NCPU: 2, LowestLvl: 0, HighestLvl: 1, DrRoot: 1.0}
	cfg.MyRank = 0
	tr0 := partition.Build(cfg)
	cfg.MyRank = 1
	tr1 := partition.Build(cfg)

	net := xfer.NewLoopbackNetwork(2)
	pool0 := xfer.NewPool(net.Endpoint(0))
	pool1 := xfer.NewPool(net.Endpoint(1))
	eng0 := NewEngine(tr0, pool0, boundary.NewRegistry())
	eng1 := NewEngine(tr1, pool1, boundary.NewRegistry())
	eng0.SizeBuffers()
	eng1.SizeBuffers()

	// Block 1 (rank0) and block 2 (rank1) are same-level cross-rank
	// neighbors: 1's face 1 (+x) faces 2's face 0 (-x).
	b1 := tr0.Block(1)
	block.ForEachInterior(2, 2, func(c block.Coord) { b1.Set(block.Phi, c, 100+float64(c[1])) })
	b2 := tr1.Block(2)
	block.ForEachInterior(2, 2, func(c block.Coord) { b2.Set(block.Phi, c, 200+float64(c[1])) })

	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(2)
	go func() { defer wg.Done(); errs[0] = eng0.FillGhostCellsLvl(context.Background(), 1, block.Phi) }()
	go func() { defer wg.Done(); errs[1] = eng1.FillGhostCellsLvl(context.Background(), 1, block.Phi) }()
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			t.Fatalf("fill: %v", err)
		}
	}

	for y := 1; y <= 2; y++ {
		gotB1 := b1.At(block.Phi, block.Coord{3, y}) // +x ghost, B=2 -> depth B+1=3
		wantB1 := b2.At(block.Phi, block.Coord{1, y})
		if gotB1 != wantB1 {
			t.Fatalf("b1 ghost at y=%d = %v, want %v", y, gotB1, wantB1)
		}
		gotB2 := b2.At(block.Phi, block.Coord{0, y})
		wantB2 := b1.At(block.Phi, block.Coord{2, y})
		if gotB2 != wantB2 {
			t.Fatalf("b2 ghost at y=%d = %v, want %v", y, gotB2, wantB2)
		}
	}
}

func TestRefinementBoundaryCrossRankPreservesConstant(t *testing.T) {
	rankOf := map[int]int{0: 0, 1: 0, 5: 0, 6: 0, 7: 0, 8: 0, 2: 1, 3: 1, 4: 1}
	tr0 := testutil.QuadrantRefinement(4, 0, rankOf)
	tr1 := testutil.QuadrantRefinement(4, 1, rankOf)

	net := xfer.NewLoopbackNetwork(2)
	pool0 := xfer.NewPool(net.Endpoint(0))
	pool1 := xfer.NewPool(net.Endpoint(1))
	eng0 := NewEngine(tr0, pool0, boundary.NewRegistry())
	eng1 := NewEngine(tr1, pool1, boundary.NewRegistry())
	eng0.SizeBuffers()
	eng1.SizeBuffers()

	const c = 4.0
	for _, id := range []int{2, 3, 4} {
		data := tr1.Block(id).Data(block.Phi)
		for i := range data {
			data[i] = c
		}
	}
	for _, id := range []int{5, 6, 7, 8} {
		data := tr0.Block(id).Data(block.Phi)
		for i := range data {
			data[i] = c
		}
	}

	run := func(eng *Engine, lvl int, errs []error, i int) {
		errs[i] = eng.FillGhostCellsLvl(context.Background(), lvl, block.Phi)
	}
	var wg sync.WaitGroup
	for lvl := 1; lvl <= 2; lvl++ {
		errs := make([]error, 2)
		wg.Add(2)
		lvl := lvl
		go func() { defer wg.Done(); run(eng0, lvl, errs, 0) }()
		go func() { defer wg.Done(); run(eng1, lvl, errs, 1) }()
		wg.Wait()
		for _, err := range errs {
			if err != nil {
				t.Fatalf("fill lvl %d: %v", lvl, err)
			}
		}
	}

	check := func(tr *tree.Tree, id, face int) {
		bl := tr.Block(id)
		axis := tree.Axis(face)
		depth := 0
		if !tree.IsLow(face) {
			depth = bl.B + 1
		}
		block.ForEachInPlane(2, axis, depth, 1, bl.B, func(cc block.Coord) {
			if got := bl.At(block.Phi, cc); got != c {
				t.Fatalf("block %d face %d ghost at %v = %v, want %v", id, face, cc, got, c)
			}
		})
	}
	check(tr0, 6, 1)
	check(tr0, 7, 3)
	check(tr0, 8, 1)
	check(tr0, 8, 3)
}
