package geometry

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
)

// Kind is the geometric kind of a shape.
type Kind int

const (
	KindPoint Kind = iota + 1
	KindSegment
	KindPolygon
)

func (k Kind) String() string {
	switch k {
	case KindPoint:
		return "point"
	case KindSegment:
		return "segment"
	case KindPolygon:
		return "polygon"
	default:
		return "unknown"
	}
}

// Shape is a geometric element: one or more rings of vertices together with
// the bounding box computed when the shape is built.
//
// A single ring of one vertex is a point and a single ring of two vertices is
// a segment. Anything else is a polygon whose rings all have at least three
// vertices; rings are combined with the even-odd rule, so a ring nested in
// another one is a hole.
type Shape struct {
	dim   int
	kind  Kind
	rings [][]Vertex
	aabb  AABB
}

// NewShape validates and copies the given rings. A polygon ring may repeat its
// first vertex at the end; the repeated vertex is dropped.
func NewShape(rings [][]Vertex, dim int) (*Shape, error) {
	aabb, err := NewAABB(rings, dim)
	if err != nil {
		return nil, err
	}

	kind, err := kindOf(rings)
	if err != nil {
		return nil, err
	}

	copied := make([][]Vertex, len(rings))
	for i, ring := range rings {
		if kind == KindPolygon && len(ring) > 3 && equalVertices(ring[0], ring[len(ring)-1]) {
			ring = ring[:len(ring)-1]
		}

		copied[i] = make([]Vertex, len(ring))
		for j, v := range ring {
			copied[i][j] = append(Vertex(nil), v...)
		}
	}

	return &Shape{
		dim:   dim,
		kind:  kind,
		rings: copied,
		aabb:  aabb,
	}, nil
}

// Dim returns the number of spatial axes of the shape.
func (s *Shape) Dim() int {
	return s.dim
}

// Kind returns the geometric kind of the shape.
func (s *Shape) Kind() Kind {
	return s.kind
}

// AABB returns the bounding box of the shape.
func (s *Shape) AABB() AABB {
	return s.aabb
}

// Rings returns a copy of the shape vertices.
func (s *Shape) Rings() [][]Vertex {
	rings := make([][]Vertex, len(s.rings))
	for i, ring := range s.rings {
		rings[i] = make([]Vertex, len(ring))
		for j, v := range ring {
			rings[i][j] = append(Vertex(nil), v...)
		}
	}
	return rings
}

// VertexCount returns the number of vertices over all rings.
func (s *Shape) VertexCount() int {
	var n int
	for _, ring := range s.rings {
		n += len(ring)
	}
	return n
}

func kindOf(rings [][]Vertex) (Kind, error) {
	if len(rings) == 1 {
		switch len(rings[0]) {
		case 1:
			return KindPoint, nil
		case 2:
			return KindSegment, nil
		}
	}

	for i, ring := range rings {
		if len(ring) < 3 {
			return 0, errors.New("polygon ring has less than 3 vertices").
				WithType(ErrTypeInvalidGeometry).
				WithTag("ring", i).
				WithTag("len", len(ring))
		}
	}
	return KindPolygon, nil
}

func equalVertices(a, b Vertex) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
