// Package block implements the block store: a flat, fixed-size
// cell-centered array per block, indexed by a small closed set of
// variables (phi, rho, res, old). Blocks and their tree metadata
// (parent, children, neighbors) are produced by the partitioner and are
// immutable under the core except for cc contents.
package block

import "fmt"

// Var identifies one of the four cell-centered fields a Block stores.
// It is a small closed enumeration: the operator and the multigrid
// driver must not touch variables they do not declare.
type Var int

const (
	Phi Var = iota // the unknown
	Rho            // the right-hand side
	Res            // the residual, rho - L(phi)
	Old            // pre-correction snapshot of phi, used by FAS
	numVars
)

// String returns the variable's name.
func (v Var) String() string {
	switch v {
	case Phi:
		return "phi"
	case Rho:
		return "rho"
	case Res:
		return "res"
	case Old:
		return "old"
	default:
		return fmt.Sprintf("var(%d)", int(v))
	}
}

// Sentinel ids. Real block ids are always >= 0.
const (
	NoBox    = -1 // face abuts a coarser region: a refinement boundary
	Physical = -2 // face abuts the domain boundary
	None     = -3 // no parent / no child in this slot
)

// Block is a D-dimensional cell-centered array with one ghost layer on
// every face, plus the tree metadata a ghost-cell exchange or multigrid
// driver needs to route data to and from it.
type Block struct {
	ID    int
	Rank  int
	Level int
	Dim   int // 2 or 3
	B     int // interior cells per axis at this level

	Parent    int
	ChildSlot int   // this block's offset-index within Parent.Children, or -1 for the root
	Children  []int // length 2^Dim, block.None where a child is absent
	Neighbors []int // length 2*Dim, NoBox / Physical / a valid same-level block id

	cc [][]float64 // cc[v] is a flattened (B+2)^Dim array, ghost layer included
}

// New allocates a block with all-ghost sentinels and zeroed cell data.
func New(id, rank, level, dim, b int) *Block {
	side := b + 2
	n := 1
	for i := 0; i < dim; i++ {
		n *= side
	}
	cc := make([][]float64, numVars)
	for v := range cc {
		cc[v] = make([]float64, n)
	}
	return &Block{
		ID:        id,
		Rank:      rank,
		Level:     level,
		Dim:       dim,
		B:         b,
		Parent:    None,
		ChildSlot: -1,
		Children:  fillInt(1<<uint(dim), None),
		Neighbors: fillInt(2*dim, Physical),
		cc:        cc,
	}
}

func fillInt(n, v int) []int {
	s := make([]int, n)
	for i := range s {
		s[i] = v
	}
	return s
}

// HasChildren reports whether the block has been refined.
func (b *Block) HasChildren() bool {
	return b.Children[0] != None
}

// Side returns B+2, the per-axis stride including both ghost layers.
func (b *Block) Side() int { return b.B + 2 }

// Index converts a ghost-inclusive coordinate vector (each component in
// [0, B+1]) into a flat offset using row-major strides.
func (b *Block) Index(coord Coord) int {
	side := b.Side()
	idx := 0
	for d := b.Dim - 1; d >= 0; d-- {
		idx = idx*side + coord[d]
	}
	return idx
}

// At reads cell (coord) of variable v.
func (b *Block) At(v Var, coord Coord) float64 {
	return b.cc[v][b.Index(coord)]
}

// Set writes cell (coord) of variable v.
func (b *Block) Set(v Var, coord Coord, val float64) {
	b.cc[v][b.Index(coord)] = val
}

// Data returns the flattened backing array for variable v. Callers that
// mutate it directly are responsible for respecting the ghost layout.
func (b *Block) Data(v Var) []float64 { return b.cc[v] }

// Zero clears variable v to zero everywhere, including ghosts.
func (b *Block) Zero(v Var) {
	data := b.cc[v]
	for i := range data {
		data[i] = 0
	}
}

// CopyVar copies src into dst, cell for cell, including ghosts.
func (b *Block) CopyVar(dst, src Var) {
	copy(b.cc[dst], b.cc[src])
}
