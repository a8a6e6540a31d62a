package tree

import (
	"math"

	"github.com/octmg/octmg/internal/block"
)

// Level holds the per-level bookkeeping the core needs: the global
// ordered sequence of block ids at this level, the subset owned by this
// rank, the owned blocks with a refinement-boundary face (used by the
// ghost engine's refinement-boundary packing), and the owned blocks that have
// children (used by both update_coarse and correct's prolongation loop).
type Level struct {
	Lvl       int
	IDs       []int
	MyIDs     []int
	MyRefBnds []int
	MyParents []int
}

// Tree is the block/level index the core consumes. It is built by an
// external partitioner (internal/partition) and is read-only from the
// ghost engine's and the multigrid driver's point of view except for
// block cell data.
type Tree struct {
	Dim              int
	B                int
	MyRank           int
	NCPU             int
	LowestLvl        int
	HighestLvl       int
	FirstNormalLvl   int
	DrRoot           float64 // grid spacing at LowestLvl
	Levels           map[int]*Level
	Blocks           map[int]*block.Block
}

// New returns an empty tree ready to be populated by a partitioner.
func New(dim, b, myRank, ncpu, lowestLvl, highestLvl, firstNormalLvl int, drRoot float64) *Tree {
	return &Tree{
		Dim:            dim,
		B:              b,
		MyRank:         myRank,
		NCPU:           ncpu,
		LowestLvl:      lowestLvl,
		HighestLvl:     highestLvl,
		FirstNormalLvl: firstNormalLvl,
		DrRoot:         drRoot,
		Levels:         make(map[int]*Level),
		Blocks:         make(map[int]*block.Block),
	}
}

// Dr returns the grid spacing at lvl: it halves for every level above
// LowestLvl.
func (t *Tree) Dr(lvl int) float64 {
	return t.DrRoot / math.Pow(2, float64(lvl-t.LowestLvl))
}

// Block looks up a block by id. Panics if the id is unknown: callers
// only ever dereference ids taken from a Level's IDs/MyIDs or from a
// block's own Parent/Children/Neighbors fields, all of which are
// partitioner invariants.
func (t *Tree) Block(id int) *block.Block {
	b, ok := t.Blocks[id]
	if !ok {
		panic("tree: unknown block id")
	}
	return b
}

// Level returns the level record for lvl, or nil if the tree has no
// blocks at that level.
func (t *Tree) Level(lvl int) *Level {
	return t.Levels[lvl]
}

// EnsureLevel returns the level record for lvl, creating an empty one
// if needed. Used by the partitioner while building the tree.
func (t *Tree) EnsureLevel(lvl int) *Level {
	lv, ok := t.Levels[lvl]
	if !ok {
		lv = &Level{Lvl: lvl}
		t.Levels[lvl] = lv
	}
	return lv
}

// AddBlock registers b in the tree's block map.
func (t *Tree) AddBlock(b *block.Block) {
	t.Blocks[b.ID] = b
}
