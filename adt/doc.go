// Package adt implements an alternating digital tree: a binary spatial index
// over the bounding boxes of points, segments and polygons in one to three
// dimensions.
//
// Each tree level splits on one of the 2*dim scalar variables of a bounding
// box, cycling through the lower and upper bound of every axis. Searching
// prunes subtrees whose region cannot hold an overlapping box and verifies
// the remaining candidates with an Intersector.
//
// The tree never rebalances nor deletes. Its depth is therefore sensitive to
// insertion order: inserting elements sorted along an axis produces a deep,
// list-like tree. A Tree is not safe for concurrent mutation; concurrent
// searches are safe once insertions are done.
package adt
