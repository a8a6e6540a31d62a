package stencil

import "github.com/octmg/octmg/internal/block"

// Kind selects one of the three smoothers.
type Kind int

const (
	Jacobi Kind = iota
	GaussSeidel
	GaussSeidelRB
)

func (k Kind) String() string {
	switch k {
	case Jacobi:
		return "jacobi"
	case GaussSeidel:
		return "gs"
	case GaussSeidelRB:
		return "gsrb"
	default:
		return "unknown"
	}
}

// DefaultJacobiWeight is the standard damped-Jacobi relaxation factor.
const DefaultJacobiWeight = 2.0 / 3.0

// Smooth applies nCycle relaxation sweeps of the given kind to b in
// place, solving L(phi) = rho approximately. It never touches ghost
// cells; the caller is responsible for refilling them between sweeps.
func Smooth(kind Kind, b *block.Block, dr float64, nCycle int) {
	switch kind {
	case Jacobi:
		jacobi(b, dr, DefaultJacobiWeight, nCycle)
	case GaussSeidel:
		gaussSeidel(b, dr, nCycle)
	case GaussSeidelRB:
		gaussSeidelRB(b, dr, nCycle)
	default:
		gaussSeidel(b, dr, nCycle)
	}
}

// jacobi performs weighted Jacobi relaxation, reading neighbor values
// from a private snapshot of phi so every cell in a sweep sees the same
// "old" state.
func jacobi(b *block.Block, dr, w float64, nCycle int) {
	dim := b.Dim
	drsq := dr * dr
	coef := w / float64(2*dim)
	n := len(b.Data(block.Phi))
	snapshot := make([]float64, n)
	nb := make(block.Coord, dim)
	phi := b.Data(block.Phi)
	for cyc := 0; cyc < nCycle; cyc++ {
		copy(snapshot, phi)
		block.ForEachInterior(dim, b.B, func(c block.Coord) {
			idx := b.Index(c)
			sum := 0.0
			copy(nb, c)
			for a := 0; a < dim; a++ {
				nb[a] = c[a] - 1
				sum += snapshot[b.Index(nb)]
				nb[a] = c[a] + 1
				sum += snapshot[b.Index(nb)]
				nb[a] = c[a]
			}
			rho := b.At(block.Rho, c)
			phi[idx] = (1-w)*snapshot[idx] + coef*(sum-drsq*rho)
		})
	}
}

// gaussSeidel performs lexicographic Gauss-Seidel: each cell is updated
// in place, immediately visible to later cells in the same sweep.
func gaussSeidel(b *block.Block, dr float64, nCycle int) {
	dim := b.Dim
	drsq := dr * dr
	coef := 1.0 / float64(2*dim)
	nb := make(block.Coord, dim)
	for cyc := 0; cyc < nCycle; cyc++ {
		block.ForEachInterior(dim, b.B, func(c block.Coord) {
			sum := neighborSum(b, block.Phi, c, nb)
			rho := b.At(block.Rho, c)
			b.Set(block.Phi, c, coef*(sum-drsq*rho))
		})
	}
}

// gaussSeidelRB performs red-black Gauss-Seidel: two colored half-sweeps
// per cycle, a cell is red on sweep s iff xor(s, sum(coord)) has even
// parity.
func gaussSeidelRB(b *block.Block, dr float64, nCycle int) {
	dim := b.Dim
	drsq := dr * dr
	coef := 1.0 / float64(2*dim)
	nb := make(block.Coord, dim)
	for cyc := 0; cyc < nCycle; cyc++ {
		for s := 0; s < 2; s++ {
			block.ForEachInterior(dim, b.B, func(c block.Coord) {
				parity := s
				for _, x := range c {
					parity ^= x
				}
				if parity%2 != 0 {
					return
				}
				sum := neighborSum(b, block.Phi, c, nb)
				rho := b.At(block.Rho, c)
				b.Set(block.Phi, c, coef*(sum-drsq*rho))
			})
		}
	}
}
