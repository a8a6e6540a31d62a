package stencil

import (
	"math"
	"testing"

	"github.com/octmg/octmg/internal/block"
)

func fillConst(b *block.Block, v block.Var, val float64) {
	data := b.Data(v)
	for i := range data {
		data[i] = val
	}
}

func TestLaplacianOfConstantIsZero(t *testing.T) {
	b := block.New(0, 0, 1, 2, 4)
	fillConst(b, block.Phi, 7)
	Laplacian(b, block.Phi, block.Res, 0.1)
	block.ForEachInterior(2, 4, func(c block.Coord) {
		if got := b.At(block.Res, c); math.Abs(got) > 1e-12 {
			t.Fatalf("Laplacian of constant field nonzero at %v: %v", c, got)
		}
	})
}

func TestGaussSeidelReducesResidual(t *testing.T) {
	b := block.New(0, 0, 1, 2, 8)
	dr := 1.0 / 9.0
	fillConst(b, block.Rho, 1.0)
	Laplacian(b, block.Phi, block.Res, dr)
	before := maxResidual(b)

	Smooth(GaussSeidel, b, dr, 5)
	Laplacian(b, block.Phi, block.Res, dr)
	after := maxResidual(b)

	if after >= before {
		t.Fatalf("GS did not reduce residual: before=%v after=%v", before, after)
	}
}

func TestGSRBReducesResidual(t *testing.T) {
	b := block.New(0, 0, 1, 3, 6)
	dr := 1.0 / 7.0
	fillConst(b, block.Rho, 2.0)
	Laplacian(b, block.Phi, block.Res, dr)
	before := maxResidual(b)

	Smooth(GaussSeidelRB, b, dr, 8)
	Laplacian(b, block.Phi, block.Res, dr)
	after := maxResidual(b)

	if after >= before {
		t.Fatalf("GSRB did not reduce residual: before=%v after=%v", before, after)
	}
}

func TestJacobiReducesResidual(t *testing.T) {
	b := block.New(0, 0, 1, 2, 8)
	dr := 1.0 / 9.0
	fillConst(b, block.Rho, 1.0)
	Laplacian(b, block.Phi, block.Res, dr)
	before := maxResidual(b)

	Smooth(Jacobi, b, dr, 20)
	Laplacian(b, block.Phi, block.Res, dr)
	after := maxResidual(b)

	if after >= before {
		t.Fatalf("Jacobi did not reduce residual: before=%v after=%v", before, after)
	}
}

func maxAbs(b *block.Block, v block.Var) float64 {
	max := 0.0
	block.ForEachInterior(b.Dim, b.B, func(c block.Coord) {
		if a := math.Abs(b.At(v, c)); a > max {
			max = a
		}
	})
	return max
}

// maxResidual returns max |rho - L(phi)| over b's interior, reading
// L(phi) from Res as Laplacian left it there.
func maxResidual(b *block.Block) float64 {
	max := 0.0
	block.ForEachInterior(b.Dim, b.B, func(c block.Coord) {
		if a := math.Abs(b.At(block.Rho, c) - b.At(block.Res, c)); a > max {
			max = a
		}
	})
	return max
}
