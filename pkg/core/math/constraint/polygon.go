package constraint

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/freol35241/quta/x/options"
)

// NewPolygon builds the half-plane set whose feasible side is the
// interior of the convex polygon described by pts in counter-clockwise
// order. Each consecutive vertex pair contributes one inequality row;
// the rows are negated edge normals so the interior satisfies
// `Cᵀ x ≥ b`.
func NewPolygon(pts []Point) Set {
	n := len(pts)
	c := mat.NewDense(n, 2, nil)
	b := make([]float64, n)
	for i := 0; i < n; i++ {
		p0 := pts[(i+n-1)%n]
		p1 := pts[i]
		c.Set(i, 0, -(p1.Y() - p0.Y()))
		c.Set(i, 1, -(p0.X() - p1.X()))
		b[i] = -(p0.X()*p1.Y() - p1.X()*p0.Y())
	}
	return Set{C: c, B: b, Eq: 0}
}

// NewCircle approximates a disc of the given radius with a regular
// polygon inscribed in it, starting at angle zero. The number of
// polygon edges defaults to 16 and is set with WithEdges.
func NewCircle(radius float64, opts ...options.Option) Set {
	o := Options{edges: 16}
	options.ApplyOptions(&o, opts...)

	step := 2 * math.Pi / float64(o.edges)
	pts := make([]Point, o.edges)
	for i := range pts {
		pts[i] = pointOnCircle(float64(i)*step, radius)
	}
	return NewPolygon(pts)
}

// NewSector builds a circular sector of the given radius spanning the
// arc from start to end (radians, counter-clockwise). The arc must not
// exceed half a turn, wider sectors are not convex and have to be
// split by the caller. WithEdges tunes the arc discretization, default
// is 10.
func NewSector(radius, start, end float64, opts ...options.Option) (Set, error) {
	o := Options{edges: 10}
	options.ApplyOptions(&o, opts...)

	delta := math.Mod(end-start, 2*math.Pi)
	if delta < 0 {
		delta += 2 * math.Pi
	}
	if delta > math.Pi {
		return Set{}, fmt.Errorf("%w: sector arc of %.1f deg is wider than 180 deg, split it into convex sectors",
			ErrNotConvex, delta*180/math.Pi)
	}

	n := int(math.Ceil(delta / 2 * math.Pi * float64(o.edges)))
	if n < 1 {
		n = 1
	}
	step := delta / float64(n)

	pts := make([]Point, 0, n+2)
	pts = append(pts, Point{})
	for i := 0; i <= n; i++ {
		pts = append(pts, pointOnCircle(start+float64(i)*step, radius))
	}
	return NewPolygon(pts), nil
}

func pointOnCircle(angle, radius float64) Point {
	return Point{radius * math.Cos(angle), radius * math.Sin(angle)}
}
