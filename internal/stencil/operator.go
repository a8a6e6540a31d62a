// Package stencil implements the discrete Laplacian operator and the
// three smoothers (Jacobi, Gauss-Seidel, Gauss-Seidel red-black)
// spec.md §4.3 names, all sharing the same D-dimensional 5-/7-point
// stencil.
package stencil

import "github.com/octmg/octmg/internal/block"

// Laplacian writes L(phi) = (sum of the 2*Dim face neighbors - 2*Dim*phi) / dr^2
// into `out` for every interior cell of b. out may equal phi only if the
// caller does not need phi's original values afterward.
func Laplacian(b *block.Block, phi, out block.Var, dr float64) {
	dim := b.Dim
	invDrSq := 1.0 / (dr * dr)
	nb := make(block.Coord, dim)
	block.ForEachInterior(dim, b.B, func(c block.Coord) {
		copy(nb, c)
		sum := 0.0
		for a := 0; a < dim; a++ {
			nb[a] = c[a] - 1
			sum += b.At(phi, nb)
			nb[a] = c[a] + 1
			sum += b.At(phi, nb)
			nb[a] = c[a]
		}
		center := b.At(phi, c)
		b.Set(out, c, (sum-float64(2*dim)*center)*invDrSq)
	})
}

func neighborSum(b *block.Block, v block.Var, c, nb block.Coord) float64 {
	dim := b.Dim
	copy(nb, c)
	sum := 0.0
	for a := 0; a < dim; a++ {
		nb[a] = c[a] - 1
		sum += b.At(v, nb)
		nb[a] = c[a] + 1
		sum += b.At(v, nb)
		nb[a] = c[a]
	}
	return sum
}
