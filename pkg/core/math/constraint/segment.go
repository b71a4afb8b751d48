package constraint

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Axis alignment is decided from the segment direction itself rather
// than through arctangent identities, which are not robust for floats.
const axisEps = 1e-12

// NewSegment builds the set describing forces confined to the closed
// line segment between p0 and p1: a collinearity equality plus axis
// bounds covering the segment's bounding box.
//
// A degenerate segment with equal endpoints pins the force to that
// single point with two equality rows.
func NewSegment(p0, p1 Point) Set {
	dx := p1.X() - p0.X()
	dy := p1.Y() - p0.Y()

	xmin := math.Min(p0.X(), p1.X())
	xmax := math.Max(p0.X(), p1.X())
	ymin := math.Min(p0.Y(), p1.Y())
	ymax := math.Max(p0.Y(), p1.Y())

	scale := math.Max(math.Abs(dx), math.Abs(dy))
	switch {
	case scale == 0:
		return Set{
			C:  mat.NewDense(2, 2, []float64{1, 0, 0, 1}),
			B:  []float64{p0.X(), p0.Y()},
			Eq: 2,
		}
	case math.Abs(dy) <= axisEps*scale:
		// Forces along the x axis only.
		return Set{
			C:  mat.NewDense(3, 2, []float64{0, 1, 1, 0, -1, 0}),
			B:  []float64{0, xmin, -xmax},
			Eq: 1,
		}
	case math.Abs(dx) <= axisEps*scale:
		// Forces along the y axis only.
		return Set{
			C:  mat.NewDense(3, 2, []float64{1, 0, 0, 1, 0, -1}),
			B:  []float64{0, ymin, -ymax},
			Eq: 1,
		}
	}

	// Oblique segment: the line through both endpoints plus the
	// bounding box of the endpoints.
	xc := -dy / dx
	bc := p1.Y() + xc*p1.X()
	return Set{
		C: mat.NewDense(5, 2, []float64{
			xc, 1,
			1, 0,
			0, 1,
			-1, 0,
			0, -1,
		}),
		B:  []float64{bc, xmin, ymin, -xmax, -ymax},
		Eq: 1,
	}
}
