package allocation

import (
	"errors"
	"fmt"

	"github.com/freol35241/quta/pkg/core/math/constraint"
	"github.com/freol35241/quta/x/options"
)

var ErrDisjunctShape = errors.New("allocation: disjunct must constrain a single planar force")

// Thruster is a point actuator at a fixed position. Its delivered
// force must lie in at least one of its disjunct feasible regions.
// The position never changes after construction and the disjunct list
// must not be mutated while an allocation is running.
type Thruster struct {
	pos       constraint.Point
	disjuncts []constraint.Set
}

func NewThruster(pos constraint.Point) *Thruster {
	return &Thruster{pos: pos}
}

func (t *Thruster) Position() constraint.Point {
	return t.pos
}

// Disjuncts returns the ordered feasible regions of the thruster.
func (t *Thruster) Disjuncts() []constraint.Set {
	return t.disjuncts
}

// AddDisjunct appends one alternative feasible region. The set has to
// be two columns wide, it constrains this thruster's force only.
func (t *Thruster) AddDisjunct(s constraint.Set) error {
	if s.Cols() != 2 {
		return fmt.Errorf("%w: got %d columns", ErrDisjunctShape, s.Cols())
	}
	t.disjuncts = append(t.disjuncts, s)
	return nil
}

// NewTransverse builds a thruster that can only push across the
// vessel's longitudinal axis, up to maxForce in either direction.
func NewTransverse(pos constraint.Point, maxForce float64) *Thruster {
	t := NewThruster(pos)
	t.disjuncts = append(t.disjuncts, constraint.NewSegment(
		constraint.Point{0, -maxForce},
		constraint.Point{0, maxForce},
	))
	return t
}

// NewLongitudinal builds a thruster that can only push along the
// vessel's longitudinal axis, up to maxForce in either direction.
func NewLongitudinal(pos constraint.Point, maxForce float64) *Thruster {
	t := NewThruster(pos)
	t.disjuncts = append(t.disjuncts, constraint.NewSegment(
		constraint.Point{-maxForce, 0},
		constraint.Point{maxForce, 0},
	))
	return t
}

// NewAzimuth builds a thruster that can deliver up to maxForce in any
// direction. The disc is approximated by a regular polygon whose facet
// count is set with WithFacets (default 16) and forced even by
// rounding down.
func NewAzimuth(pos constraint.Point, maxForce float64, opts ...options.Option) *Thruster {
	o := Options{facets: 16}
	options.ApplyOptions(&o, opts...)

	facets := (o.facets / 2) * 2
	t := NewThruster(pos)
	t.disjuncts = append(t.disjuncts, constraint.NewCircle(maxForce, constraint.WithEdges(facets)))
	return t
}
