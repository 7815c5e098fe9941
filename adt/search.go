package adt

import "github.com/aukilabs/adt/geometry"

// TagSet is the set of tags returned by a search.
type TagSet[T comparable] map[T]struct{}

// Has reports whether the set contains tag.
func (s TagSet[T]) Has(tag T) bool {
	_, ok := s[tag]
	return ok
}

// Len returns the number of tags in the set.
func (s TagSet[T]) Len() int {
	return len(s)
}

// Slice returns the tags in no particular order.
func (s TagSet[T]) Slice() []T {
	tags := make([]T, 0, len(s))
	for tag := range s {
		tags = append(tags, tag)
	}
	return tags
}

// Equal reports whether both sets hold the same tags.
func (s TagSet[T]) Equal(other TagSet[T]) bool {
	if len(s) != len(other) {
		return false
	}
	for tag := range s {
		if !other.Has(tag) {
			return false
		}
	}
	return true
}

// SearchStats describes the work done by a search.
type SearchStats struct {
	// The number of nodes popped from the traversal stack.
	Visited int

	// The number of elements whose bounding box overlaps the query box.
	Candidates int

	// The number of elements confirmed by the exact intersection test.
	Matches int
}

// Search returns the tags of every stored element whose shape intersects the
// query shape. A query outside of the indexed space returns an empty set.
func (t *Tree[T]) Search(query *geometry.Shape) (TagSet[T], error) {
	tags, _, err := t.SearchWithStats(query)
	return tags, err
}

// SearchWithStats is Search and reports how much of the tree was traversed.
func (t *Tree[T]) SearchWithStats(query *geometry.Shape) (TagSet[T], SearchStats, error) {
	var stats SearchStats
	if err := t.checkShape(query); err != nil {
		return nil, stats, err
	}

	tags := make(TagSet[T])
	if len(t.nodes) == 0 {
		return tags, stats, nil
	}

	box := query.AABB()
	if ok, err := t.bounds.Overlap(box); err != nil || !ok {
		return tags, stats, err
	}

	stack := make([]int, 1, t.Depth()+1)
	stack[0] = 0

	for len(stack) != 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		n := &t.nodes[i]
		stats.Visited++

		ok, err := t.match(n.element, query, box, &stats)
		if err != nil {
			return nil, stats, err
		}
		if ok {
			tags[n.element.Tag] = struct{}{}
		}

		for _, child := range [2]int{n.right, n.left} {
			if child == noChild {
				continue
			}

			ok, err := t.nodes[child].region.Overlap(box)
			if err != nil {
				return nil, stats, err
			}
			if ok {
				stack = append(stack, child)
			}
		}
	}

	return tags, stats, nil
}

// BruteForce tests the query against every stored element without using the
// tree structure. It returns the same tags as Search.
func (t *Tree[T]) BruteForce(query *geometry.Shape) (TagSet[T], error) {
	if err := t.checkShape(query); err != nil {
		return nil, err
	}

	var stats SearchStats
	box := query.AABB()
	tags := make(TagSet[T])

	for i := range t.nodes {
		e := t.nodes[i].element

		ok, err := t.match(e, query, box, &stats)
		if err != nil {
			return nil, err
		}
		if ok {
			tags[e.Tag] = struct{}{}
		}
	}
	return tags, nil
}

func (t *Tree[T]) match(e *Element[T], query *geometry.Shape, box geometry.AABB, stats *SearchStats) (bool, error) {
	ok, err := e.AABB().Overlap(box)
	if err != nil || !ok {
		return false, err
	}
	stats.Candidates++

	if ok, err = t.intersector.Intersects(e.Shape, query); err != nil || !ok {
		return false, err
	}
	stats.Matches++
	return true, nil
}
