package adt

import "github.com/aukilabs/adt/geometry"

// DebugInfo describes the shape of a tree.
type DebugInfo struct {
	Dim       int
	NodeCount int
	Depth     int
	Leaves    int
	Bounds    geometry.AABB

	// The number of nodes at each level, root first.
	Occupancy []uint32
}

// DebugInfo walks the tree and returns its shape.
func (t *Tree[T]) DebugInfo() DebugInfo {
	result := DebugInfo{
		Dim:       t.dim,
		NodeCount: len(t.nodes),
		Depth:     t.depth,
		Bounds:    t.bounds,
		Occupancy: make([]uint32, t.depth),
	}

	for i := range t.nodes {
		n := &t.nodes[i]
		result.Occupancy[n.level]++
		if n.left == noChild && n.right == noChild {
			result.Leaves++
		}
	}

	return result
}
