package adt

import "github.com/aukilabs/adt/geometry"

// Element is a shape paired with the caller-defined tag returned when the
// shape matches a search.
type Element[T comparable] struct {
	Shape *geometry.Shape
	Tag   T
}

// NewElement builds the shape from the given rings and pairs it with tag.
func NewElement[T comparable](rings [][]geometry.Vertex, tag T, dim int) (*Element[T], error) {
	shape, err := geometry.NewShape(rings, dim)
	if err != nil {
		return nil, err
	}

	return &Element[T]{
		Shape: shape,
		Tag:   tag,
	}, nil
}

// AABB returns the bounding box of the element shape.
func (e *Element[T]) AABB() geometry.AABB {
	return e.Shape.AABB()
}
