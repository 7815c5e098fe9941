package geometry

import (
	"math"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// DefaultTolerance is the distance under which two shapes are considered to
// touch.
const DefaultTolerance = 1e-9

// Kernel is the exact intersection test between two shapes of the same
// dimension.
//
// Supported combinations:
//   - 1D: points and segments, compared as closed intervals.
//   - 2D: points, segments and polygons in any combination.
//   - 3D: points and segments.
//
// Other combinations return an error of type ErrTypeUnsupportedGeometry.
type Kernel struct {
	// The distance under which shapes are considered to touch. Zero means
	// exact comparisons.
	Tolerance float64
}

// Intersects reports whether the two shapes share at least one point.
func (k Kernel) Intersects(a, b *Shape) (bool, error) {
	if a == nil || b == nil {
		return false, errors.New("intersecting a nil shape").
			WithType(ErrTypeInvalidGeometry)
	}

	if a.dim != b.dim {
		return false, errors.New("intersecting shapes of different dimensions").
			WithType(ErrTypeDimensionMismatch).
			WithTag("dim", a.dim).
			WithTag("other_dim", b.dim)
	}

	if a.kind > b.kind {
		a, b = b, a
	}

	switch a.dim {
	case 1:
		return k.intersects1(a, b)
	case 2:
		return k.intersects2(a, b)
	case 3:
		return k.intersects3(a, b)
	default:
		return false, errors.New("dimension out of range").
			WithType(ErrTypeInvalidDimension).
			WithTag("dim", a.dim)
	}
}

func (k Kernel) unsupported(a, b *Shape) error {
	return errors.New("shape kinds cannot be intersected").
		WithType(ErrTypeUnsupportedGeometry).
		WithTag("dim", a.dim).
		WithTag("kind", a.kind.String()).
		WithTag("other_kind", b.kind.String())
}

func (k Kernel) intersects1(a, b *Shape) (bool, error) {
	if b.kind == KindPolygon {
		return false, k.unsupported(a, b)
	}

	return a.aabb.Min(0) <= b.aabb.Max(0)+k.Tolerance &&
		b.aabb.Min(0) <= a.aabb.Max(0)+k.Tolerance, nil
}

func (k Kernel) intersects2(a, b *Shape) (bool, error) {
	// a.kind <= b.kind.
	switch {
	case a.kind == KindPoint && b.kind == KindPoint:
		return r2.Norm(r2.Sub(vec2(a.rings[0][0]), vec2(b.rings[0][0]))) <= k.Tolerance, nil

	case a.kind == KindPoint && b.kind == KindSegment:
		p := vec2(a.rings[0][0])
		return pointSegmentDistance2(p, vec2(b.rings[0][0]), vec2(b.rings[0][1])) <= k.Tolerance, nil

	case a.kind == KindPoint && b.kind == KindPolygon:
		return k.pointInPolygon2(vec2(a.rings[0][0]), b.rings), nil

	case a.kind == KindSegment && b.kind == KindSegment:
		return k.segmentsIntersect2(
			vec2(a.rings[0][0]), vec2(a.rings[0][1]),
			vec2(b.rings[0][0]), vec2(b.rings[0][1]),
		), nil

	case a.kind == KindSegment && b.kind == KindPolygon:
		p, q := vec2(a.rings[0][0]), vec2(a.rings[0][1])
		if k.pointInPolygon2(p, b.rings) || k.pointInPolygon2(q, b.rings) {
			return true, nil
		}
		return k.crossesEdge2(p, q, b.rings), nil

	case a.kind == KindPolygon && b.kind == KindPolygon:
		return k.polygonsIntersect2(a.rings, b.rings), nil
	}

	return false, k.unsupported(a, b)
}

func (k Kernel) intersects3(a, b *Shape) (bool, error) {
	if b.kind == KindPolygon {
		return false, k.unsupported(a, b)
	}

	p1, q1 := segmentEnds3(a)
	p2, q2 := segmentEnds3(b)
	return segmentDistance3(p1, q1, p2, q2) <= k.Tolerance, nil
}

func (k Kernel) segmentsIntersect2(p1, q1, p2, q2 r2.Vec) bool {
	o1 := orientation2(p1, q1, p2)
	o2 := orientation2(p1, q1, q2)
	o3 := orientation2(p2, q2, p1)
	o4 := orientation2(p2, q2, q1)

	if ((o1 > 0 && o2 < 0) || (o1 < 0 && o2 > 0)) &&
		((o3 > 0 && o4 < 0) || (o3 < 0 && o4 > 0)) {
		return true
	}

	// Touching or collinear configurations: one end lies on the other segment.
	return pointSegmentDistance2(p2, p1, q1) <= k.Tolerance ||
		pointSegmentDistance2(q2, p1, q1) <= k.Tolerance ||
		pointSegmentDistance2(p1, p2, q2) <= k.Tolerance ||
		pointSegmentDistance2(q1, p2, q2) <= k.Tolerance
}

func (k Kernel) crossesEdge2(p, q r2.Vec, rings [][]Vertex) bool {
	for _, ring := range rings {
		for i := range ring {
			a, b := vec2(ring[i]), vec2(ring[(i+1)%len(ring)])
			if k.segmentsIntersect2(p, q, a, b) {
				return true
			}
		}
	}
	return false
}

// pointInPolygon2 applies the even-odd rule over every ring. Points on an edge
// are inside.
func (k Kernel) pointInPolygon2(p r2.Vec, rings [][]Vertex) bool {
	inside := false
	for _, ring := range rings {
		n := len(ring)
		for i, j := 0, n-1; i < n; j, i = i, i+1 {
			a, b := vec2(ring[j]), vec2(ring[i])
			if pointSegmentDistance2(p, a, b) <= k.Tolerance {
				return true
			}

			if (b.Y > p.Y) != (a.Y > p.Y) &&
				p.X < (a.X-b.X)*(p.Y-b.Y)/(a.Y-b.Y)+b.X {
				inside = !inside
			}
		}
	}
	return inside
}

func (k Kernel) polygonsIntersect2(a, b [][]Vertex) bool {
	for _, ring := range a {
		for i := range ring {
			if k.crossesEdge2(vec2(ring[i]), vec2(ring[(i+1)%len(ring)]), b) {
				return true
			}
		}
	}

	// No crossing edges: either one polygon contains a whole ring of the other
	// or they are disjoint.
	for _, ring := range a {
		if k.pointInPolygon2(vec2(ring[0]), b) {
			return true
		}
	}
	for _, ring := range b {
		if k.pointInPolygon2(vec2(ring[0]), a) {
			return true
		}
	}
	return false
}

func vec2(v Vertex) r2.Vec {
	return r2.Vec{X: v[0], Y: v[1]}
}

func vec3(v Vertex) r3.Vec {
	return r3.Vec{X: v[0], Y: v[1], Z: v[2]}
}

// orientation2 is positive when c is left of a->b, negative when right and
// zero when the three points are collinear.
func orientation2(a, b, c r2.Vec) float64 {
	return r2.Cross(r2.Sub(b, a), r2.Sub(c, a))
}

func pointSegmentDistance2(p, a, b r2.Vec) float64 {
	ab := r2.Sub(b, a)
	l2 := r2.Dot(ab, ab)
	if l2 == 0 {
		return r2.Norm(r2.Sub(p, a))
	}

	t := clamp(r2.Dot(r2.Sub(p, a), ab)/l2, 0, 1)
	return r2.Norm(r2.Sub(p, r2.Add(a, r2.Scale(t, ab))))
}

func segmentEnds3(s *Shape) (r3.Vec, r3.Vec) {
	p := vec3(s.rings[0][0])
	if s.kind == KindPoint {
		return p, p
	}
	return p, vec3(s.rings[0][1])
}

// segmentDistance3 returns the smallest distance between segments p1-q1 and
// p2-q2. Degenerate segments are points.
func segmentDistance3(p1, q1, p2, q2 r3.Vec) float64 {
	d1 := r3.Sub(q1, p1)
	d2 := r3.Sub(q2, p2)
	r := r3.Sub(p1, p2)
	a := r3.Dot(d1, d1)
	e := r3.Dot(d2, d2)
	f := r3.Dot(d2, r)

	var s, t float64
	switch {
	case a == 0 && e == 0:
		return r3.Norm(r)

	case a == 0:
		t = clamp(f/e, 0, 1)

	default:
		c := r3.Dot(d1, r)
		if e == 0 {
			s = clamp(-c/a, 0, 1)
			break
		}

		b := r3.Dot(d1, d2)
		if denom := a*e - b*b; denom != 0 {
			s = clamp((b*f-c*e)/denom, 0, 1)
		}

		t = (b*s + f) / e
		if t < 0 {
			t = 0
			s = clamp(-c/a, 0, 1)
		} else if t > 1 {
			t = 1
			s = clamp((b-c)/a, 0, 1)
		}
	}

	c1 := r3.Add(p1, r3.Scale(s, d1))
	c2 := r3.Add(p2, r3.Scale(t, d2))
	return r3.Norm(r3.Sub(c1, c2))
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
