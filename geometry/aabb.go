package geometry

import (
	"fmt"
	"math"
	"strings"

	"github.com/aukilabs/go-tooling/pkg/errors"
)

// Vertex is a point given by one coordinate per spatial axis.
type Vertex []float64

// AABB is an axis-aligned bounding box.
//
// The bounds are kept in their interleaved form
// [min(0), max(0), min(1), max(1), ...], which is the variable vector the
// alternating digital tree splits on. An AABB is immutable once built.
type AABB struct {
	dim int
	r   []float64
}

// NewAABB returns the tightest box around every vertex of every ring.
func NewAABB(rings [][]Vertex, dim int) (AABB, error) {
	if err := checkDim(dim); err != nil {
		return AABB{}, err
	}

	r := make([]float64, 2*dim)
	for a := 0; a < dim; a++ {
		r[2*a] = math.Inf(1)
		r[2*a+1] = math.Inf(-1)
	}

	var count int
	for i, ring := range rings {
		for j, v := range ring {
			if err := checkVertex(v, dim); err != nil {
				return AABB{}, errors.New("invalid vertex").
					WithType(ErrTypeInvalidGeometry).
					WithTag("ring", i).
					WithTag("vertex", j).
					Wrap(err)
			}

			for a, c := range v {
				r[2*a] = math.Min(r[2*a], c)
				r[2*a+1] = math.Max(r[2*a+1], c)
			}
			count++
		}
	}

	if count == 0 {
		return AABB{}, errors.New("no vertices to bound").
			WithType(ErrTypeInvalidGeometry)
	}
	return AABB{dim: dim, r: r}, nil
}

// NewAABBFromBounds builds a box from explicit bound vectors. The vectors are
// copied.
func NewAABBFromBounds(min, max []float64, dim int) (AABB, error) {
	if err := checkDim(dim); err != nil {
		return AABB{}, err
	}

	if len(min) != dim || len(max) != dim {
		return AABB{}, errors.New("bounds do not match dimension").
			WithType(ErrTypeInvalidGeometry).
			WithTag("dim", dim).
			WithTag("min_len", len(min)).
			WithTag("max_len", len(max))
	}

	r := make([]float64, 2*dim)
	for a := 0; a < dim; a++ {
		if math.IsNaN(min[a]) || math.IsNaN(max[a]) || min[a] > max[a] {
			return AABB{}, errors.New("invalid bounds").
				WithType(ErrTypeInvalidGeometry).
				WithTag("axis", a).
				WithTag("min", fmt.Sprint(min[a])).
				WithTag("max", fmt.Sprint(max[a]))
		}
		r[2*a] = min[a]
		r[2*a+1] = max[a]
	}
	return AABB{dim: dim, r: r}, nil
}

// Unbounded returns a box covering the whole space. It panics if dim is out
// of range.
func Unbounded(dim int) AABB {
	if err := checkDim(dim); err != nil {
		panic(err)
	}

	r := make([]float64, 2*dim)
	for a := 0; a < dim; a++ {
		r[2*a] = math.Inf(-1)
		r[2*a+1] = math.Inf(1)
	}
	return AABB{dim: dim, r: r}
}

// Dim returns the number of spatial axes. It is 0 for the zero value.
func (b AABB) Dim() int {
	return b.dim
}

// IsZero reports whether the box was never built.
func (b AABB) IsZero() bool {
	return b.dim == 0
}

// Min returns the lower bound along the given axis.
func (b AABB) Min(axis int) float64 {
	return b.r[2*axis]
}

// Max returns the upper bound along the given axis.
func (b AABB) Max(axis int) float64 {
	return b.r[2*axis+1]
}

// R returns the value of the given split variable: even variables are lower
// bounds, odd variables are upper bounds.
func (b AABB) R(variable int) float64 {
	return b.r[variable]
}

// Center returns the midpoint of the box along the given axis.
func (b AABB) Center(axis int) float64 {
	return 0.5 * (b.Min(axis) + b.Max(axis))
}

// Bounds returns copies of the lower and upper bound vectors.
func (b AABB) Bounds() (min, max []float64) {
	min = make([]float64, b.dim)
	max = make([]float64, b.dim)
	for a := 0; a < b.dim; a++ {
		min[a] = b.Min(a)
		max[a] = b.Max(a)
	}
	return min, max
}

// Overlap reports whether the two boxes share at least one point. Boxes are
// closed: touching faces overlap.
func (b AABB) Overlap(other AABB) (bool, error) {
	if b.dim != other.dim {
		return false, errors.New("comparing boxes of different dimensions").
			WithType(ErrTypeDimensionMismatch).
			WithTag("dim", b.dim).
			WithTag("other_dim", other.dim)
	}

	for a := 0; a < b.dim; a++ {
		if b.Min(a) > other.Max(a) || b.Max(a) < other.Min(a) {
			return false, nil
		}
	}
	return true, nil
}

// Contains reports whether other lies entirely inside b. Boxes of different
// dimensions never contain each other.
func (b AABB) Contains(other AABB) bool {
	if b.dim != other.dim {
		return false
	}

	for a := 0; a < b.dim; a++ {
		if other.Min(a) < b.Min(a) || other.Max(a) > b.Max(a) {
			return false
		}
	}
	return true
}

// Union returns the smallest box containing both boxes. The zero value acts
// as the identity.
func (b AABB) Union(other AABB) AABB {
	if b.IsZero() {
		return other.clone()
	}
	if other.IsZero() {
		return b.clone()
	}

	u := b.clone()
	for a := 0; a < u.dim; a++ {
		u.r[2*a] = math.Min(u.r[2*a], other.Min(a))
		u.r[2*a+1] = math.Max(u.r[2*a+1], other.Max(a))
	}
	return u
}

// WithBound returns a fresh copy of the box where the given split variable is
// set to value. The receiver is left untouched.
func (b AABB) WithBound(variable int, value float64) AABB {
	c := b.clone()
	c.r[variable] = value
	return c
}

func (b AABB) String() string {
	var s strings.Builder
	s.WriteString("[")
	for a := 0; a < b.dim; a++ {
		if a > 0 {
			s.WriteString(" ")
		}
		fmt.Fprintf(&s, "%g:%g", b.Min(a), b.Max(a))
	}
	s.WriteString("]")
	return s.String()
}

func (b AABB) clone() AABB {
	r := make([]float64, len(b.r))
	copy(r, b.r)
	return AABB{dim: b.dim, r: r}
}

func checkDim(dim int) error {
	if dim < MinDim || dim > MaxDim {
		return errors.New("dimension out of range").
			WithType(ErrTypeInvalidDimension).
			WithTag("dim", dim)
	}
	return nil
}

func checkVertex(v Vertex, dim int) error {
	if len(v) != dim {
		return errors.New("vertex does not match dimension").
			WithType(ErrTypeInvalidGeometry).
			WithTag("dim", dim).
			WithTag("len", len(v))
	}

	for _, c := range v {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return errors.New("vertex coordinate is not finite").
				WithType(ErrTypeInvalidGeometry).
				WithTag("coordinate", fmt.Sprint(c))
		}
	}
	return nil
}
