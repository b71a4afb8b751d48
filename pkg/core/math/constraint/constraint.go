package constraint

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

var (
	ErrNotConvex = errors.New("constraint: region is not convex")
	ErrPadding   = errors.New("constraint: padded size is larger than total size")
)

// Point is a position or a force in the plane.
type Point [2]float64

func (p Point) X() float64 { return p[0] }
func (p Point) Y() float64 { return p[1] }

// Set is a block of linearized convex constraints in half-plane
// canonical form. The first Eq rows satisfy `Cᵢᵀ x = bᵢ`, the
// remaining rows `Cᵢᵀ x ≥ bᵢ`. Equality rows always stay on top.
//
// A zero Set (nil C) is the empty block and is the identity element
// of Concatenate.
type Set struct {
	C  *mat.Dense
	B  []float64
	Eq int
}

func (s Set) Rows() int {
	if s.C == nil {
		return 0
	}
	r, _ := s.C.Dims()
	return r
}

func (s Set) Cols() int {
	if s.C == nil {
		return 0
	}
	_, c := s.C.Dims()
	return c
}

// Satisfied reports whether x fulfils every row of the set within tol.
func (s Set) Satisfied(x []float64, tol float64) bool {
	if s.C == nil {
		return true
	}
	rows, cols := s.C.Dims()
	if len(x) != cols {
		return false
	}
	for i := 0; i < rows; i++ {
		v := -s.B[i]
		for j := 0; j < cols; j++ {
			v += s.C.At(i, j) * x[j]
		}
		if i < s.Eq {
			if math.Abs(v) > tol {
				return false
			}
		} else if v < -tol {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the set.
func (s Set) Clone() Set {
	if s.C == nil {
		return Set{}
	}
	b := make([]float64, len(s.B))
	copy(b, s.B)
	return Set{C: mat.DenseCopyOf(s.C), B: b, Eq: s.Eq}
}

// Pad widens the set to total columns, placing the original block at
// column offset before and filling the new columns with zeros.
func (s Set) Pad(before, total int) (Set, error) {
	c, err := Pad(s.C, before, total, 0)
	if err != nil {
		return Set{}, err
	}
	b := make([]float64, len(s.B))
	copy(b, s.B)
	return Set{C: c, B: b, Eq: s.Eq}, nil
}

// Pad expands the column count of c to total by inserting before fill
// columns on the left and the remainder on the right. Rows are kept
// untouched.
func Pad(c *mat.Dense, before, total int, fill float64) (*mat.Dense, error) {
	rows, cols := c.Dims()
	after := total - cols - before
	if after < 0 {
		return nil, fmt.Errorf("%w: %d columns at offset %d do not fit into %d", ErrPadding, cols, before, total)
	}
	out := mat.NewDense(rows, total, nil)
	if fill != 0 {
		for i := 0; i < rows; i++ {
			for j := 0; j < before; j++ {
				out.Set(i, j, fill)
			}
			for j := before + cols; j < total; j++ {
				out.Set(i, j, fill)
			}
		}
	}
	out.Slice(0, rows, before, before+cols).(*mat.Dense).Copy(c)
	return out, nil
}

// Concatenate merges two sets over the same variables. The added
// set's equality rows are spliced in right below the original
// equalities so that the merged set keeps all equalities on top.
func Concatenate(org, add Set) Set {
	if org.C == nil {
		return add.Clone()
	}
	if add.C == nil {
		return org.Clone()
	}
	rOrg, cols := org.C.Dims()
	rAdd, cAdd := add.C.Dims()
	if cols != cAdd {
		panic("constraint: concatenating sets over different variables")
	}

	out := mat.NewDense(rOrg+rAdd, cols, nil)
	b := make([]float64, rOrg+rAdd)

	row := 0
	emit := func(src *mat.Dense, bs []float64, from, to int) {
		for i := from; i < to; i++ {
			for j := 0; j < cols; j++ {
				out.Set(row, j, src.At(i, j))
			}
			b[row] = bs[i]
			row++
		}
	}
	emit(org.C, org.B, 0, org.Eq)
	emit(add.C, add.B, 0, add.Eq)
	emit(org.C, org.B, org.Eq, rOrg)
	emit(add.C, add.B, add.Eq, rAdd)

	return Set{C: out, B: b, Eq: org.Eq + add.Eq}
}
