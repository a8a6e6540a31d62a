// Package boundary implements physical boundary conditions: the
// bc_to_gc stencil (spec.md §4.2.4) and a per-face, per-variable
// registry of boundary data.
package boundary

import (
	"fmt"

	"github.com/octmg/octmg/internal/block"
	apperr "github.com/octmg/octmg/pkg/errors"
)

// Kind is a boundary-condition family.
type Kind int

const (
	Dirichlet Kind = iota
	Neumann
	Continuous
)

func (k Kind) String() string {
	switch k {
	case Dirichlet:
		return "dirichlet"
	case Neumann:
		return "neumann"
	case Continuous:
		return "continuous"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Condition is the boundary datum for one (face, variable) pair. Value
// is used directly for a uniform condition; Callback, when set, is
// evaluated at the ghost cell's physical position instead (e.g. a
// manufactured-solution boundary for convergence testing).
type Condition struct {
	Kind     Kind
	Value    float64
	Callback func(pos []float64) float64
}

func (c Condition) datum(pos []float64) float64 {
	if c.Callback != nil {
		return c.Callback(pos)
	}
	return c.Value
}

// Registry holds the boundary condition for every (face, variable) the
// solver cares about; unset pairs default to homogeneous Dirichlet.
type Registry struct {
	conditions map[int]map[block.Var]Condition
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{conditions: map[int]map[block.Var]Condition{}}
}

// Set registers the condition for (face, v).
func (r *Registry) Set(face int, v block.Var, c Condition) {
	if r.conditions[face] == nil {
		r.conditions[face] = map[block.Var]Condition{}
	}
	r.conditions[face][v] = c
}

// Get returns the condition for (face, v), defaulting to homogeneous
// Dirichlet when unset.
func (r *Registry) Get(face int, v block.Var) Condition {
	if byVar, ok := r.conditions[face]; ok {
		if c, ok := byVar[v]; ok {
			return c
		}
	}
	return Condition{Kind: Dirichlet, Value: 0}
}

// ApplyGhost computes the new ghost-cell value on a face of kind `kind`,
// given the boundary datum at the ghost cell's position, the adjacent
// interior cell x1 (depth 1) and x2 (depth 2), and the grid spacing dr
// along the face's axis:
//
//	dirichlet:  x0 = 2*b - x1
//	neumann:    x0 = x1 + sign(face)*dr*b
//	continuous: x0 = 2*x1 - x2
func ApplyGhost(kind Kind, isLow bool, datum, x1, x2, dr float64) (float64, error) {
	switch kind {
	case Dirichlet:
		return 2*datum - x1, nil
	case Neumann:
		sign := dr
		if isLow {
			sign = -dr
		}
		return sign*datum + x1, nil
	case Continuous:
		return 2*x1 - x2, nil
	default:
		return 0, apperr.New(apperr.CodeBoundaryKind, fmt.Sprintf("unknown boundary kind %d", int(kind)))
	}
}

// Condition.datum is exported via this helper so callers with only a
// Condition (not the Registry) can still evaluate position-dependent
// boundary data.
func Datum(c Condition, pos []float64) float64 { return c.datum(pos) }
