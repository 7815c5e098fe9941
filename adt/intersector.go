package adt

import "github.com/aukilabs/adt/geometry"

// Intersector decides whether two shapes truly intersect. Implementations
// must be deterministic and free of side effects.
type Intersector interface {
	Intersects(a, b *geometry.Shape) (bool, error)
}

// IntersectorFunc adapts a function to the Intersector interface.
type IntersectorFunc func(a, b *geometry.Shape) (bool, error)

// Intersects calls f(a, b).
func (f IntersectorFunc) Intersects(a, b *geometry.Shape) (bool, error) {
	return f(a, b)
}
