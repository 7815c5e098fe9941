package adt

import (
	"github.com/aukilabs/adt/geometry"
	"github.com/aukilabs/go-tooling/pkg/errors"
)

const noChild = -1

// node is a tree node. Children are indexes in the tree arena.
type node[T comparable] struct {
	level    int
	splitDim int
	key      float64

	// The part of space the node subtree is responsible for.
	region geometry.AABB

	element *Element[T]
	left    int
	right   int
}

// childRegion returns a fresh copy of the node region restricted to the half
// space of the given child.
//
// The left child holds elements with r[splitDim] < key: when splitDim is an
// upper bound variable, no element beneath reaches past key. The right child
// holds elements with r[splitDim] >= key: when splitDim is a lower bound
// variable, no element beneath starts before key. The other half spaces do
// not bound the elements extent and leave the region unchanged.
func (n *node[T]) childRegion(left bool) geometry.AABB {
	v := n.splitDim
	bound := n.region.R(v)
	upper := v%2 == 1

	switch {
	case left && upper && n.key < bound:
		bound = n.key
	case !left && !upper && n.key > bound:
		bound = n.key
	}
	return n.region.WithBound(v, bound)
}

type options struct {
	intersector Intersector
}

// Option configures a tree.
type Option func(*options)

// WithIntersector sets the exact intersection test used by searches. It
// defaults to a geometry.Kernel with geometry.DefaultTolerance.
func WithIntersector(i Intersector) Option {
	return func(o *options) {
		o.intersector = i
	}
}

// Tree is an alternating digital tree. Its nodes live in a single arena and
// refer to their children by index.
type Tree[T comparable] struct {
	dim         int
	nVar        int
	intersector Intersector
	nodes       []node[T]
	depth       int

	// The union of every inserted bounding box.
	bounds geometry.AABB
}

// New returns an empty tree indexing shapes of the given dimension.
func New[T comparable](dim int, opts ...Option) (*Tree[T], error) {
	if dim < geometry.MinDim || dim > geometry.MaxDim {
		return nil, errors.New("dimension out of range").
			WithType(geometry.ErrTypeInvalidDimension).
			WithTag("dim", dim)
	}

	o := options{
		intersector: geometry.Kernel{Tolerance: geometry.DefaultTolerance},
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &Tree[T]{
		dim:         dim,
		nVar:        2 * dim,
		intersector: o.intersector,
	}, nil
}

// Dim returns the number of spatial axes of the indexed shapes.
func (t *Tree[T]) Dim() int {
	return t.dim
}

// Len returns the number of stored elements.
func (t *Tree[T]) Len() int {
	return len(t.nodes)
}

// Bounds returns the union of every inserted bounding box. It is the zero
// AABB when the tree is empty.
func (t *Tree[T]) Bounds() geometry.AABB {
	return t.bounds
}

// Depth returns the number of levels of the tree.
func (t *Tree[T]) Depth() int {
	return t.depth
}

// Insert stores the element in a new node. The element keeps its position for
// the lifetime of the tree.
func (t *Tree[T]) Insert(e *Element[T]) (bool, error) {
	if e == nil {
		return false, errors.New("inserting a nil element").
			WithType(geometry.ErrTypeInvalidGeometry)
	}
	if err := t.checkShape(e.Shape); err != nil {
		return false, err
	}

	box := e.AABB()
	t.bounds = t.bounds.Union(box)

	if len(t.nodes) == 0 {
		t.nodes = append(t.nodes, t.newNode(0, e, geometry.Unbounded(t.dim)))
		t.depth = 1
		return true, nil
	}

	i := 0
	for {
		n := &t.nodes[i]
		left := box.R(n.splitDim) < n.key

		child := n.right
		if left {
			child = n.left
		}
		if child != noChild {
			i = child
			continue
		}

		c := t.newNode(n.level+1, e, n.childRegion(left))
		child = len(t.nodes)
		t.nodes = append(t.nodes, c)
		t.depth = max(t.depth, c.level+1)

		// n may point to the previous arena after the append.
		if left {
			t.nodes[i].left = child
		} else {
			t.nodes[i].right = child
		}
		return true, nil
	}
}

// newNode builds a node whose key is the center of the element along the
// axis of the node split variable.
func (t *Tree[T]) newNode(level int, e *Element[T], region geometry.AABB) node[T] {
	splitDim := level % t.nVar

	return node[T]{
		level:    level,
		splitDim: splitDim,
		key:      e.AABB().Center(splitDim / 2),
		region:   region,
		element:  e,
		left:     noChild,
		right:    noChild,
	}
}

func (t *Tree[T]) checkShape(s *geometry.Shape) error {
	if s == nil {
		return errors.New("shape is nil").
			WithType(geometry.ErrTypeInvalidGeometry)
	}

	if s.Dim() != t.dim {
		return errors.New("shape dimension does not match the tree").
			WithType(geometry.ErrTypeDimensionMismatch).
			WithTag("dim", t.dim).
			WithTag("shape_dim", s.Dim())
	}
	return nil
}
