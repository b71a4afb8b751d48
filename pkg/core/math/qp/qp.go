package qp

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

var (
	ErrInfeasible          = errors.New("qp: constraints are inconsistent, no feasible point exists")
	ErrNotPositiveDefinite = errors.New("qp: matrix G is not positive definite")
	ErrIterationLimit      = errors.New("qp: iteration limit reached")
	ErrDimensions          = errors.New("qp: inconsistent problem dimensions")
)

// Result is the raw outcome of a solve.
type Result struct {
	X          []float64 // optimal point, all variables
	Objective  float64   // ½ xᵀGx + aᵀx at X
	Lagrangian []float64 // one multiplier per constraint, zero when inactive
	Active     []int     // constraints active at X, in the order they were added
	Iterations int
}

// Solve minimizes ½ xᵀGx + aᵀx subject to Cᵀx = b for the first meq
// constraints and Cᵀx ≥ b for the rest. G must be symmetric positive
// definite and c holds one column per constraint.
//
// The method is the dual active-set algorithm of Goldfarb and Idnani:
// starting from the unconstrained minimum, violated constraints are
// added one at a time through primal and dual steps. Infeasibility is
// detected on the way, no phase-1 search is needed. Factorizations are
// recomputed per step, which is adequate for the small dense systems
// this solver is used on.
func Solve(g *mat.Dense, a []float64, c *mat.Dense, b []float64, meq int) (*Result, error) {
	n, gc := g.Dims()
	if gc != n || len(a) != n {
		return nil, ErrDimensions
	}
	var m int
	if c != nil {
		cr, cm := c.Dims()
		if cr != n || len(b) != cm {
			return nil, ErrDimensions
		}
		m = cm
	}
	if meq < 0 || meq > m {
		return nil, ErrDimensions
	}

	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			sym.SetSym(i, j, 0.5*(g.At(i, j)+g.At(j, i)))
		}
	}
	var chol mat.Cholesky
	if !chol.Factorize(sym) {
		return nil, ErrNotPositiveDefinite
	}

	s := &solver{
		n:    n,
		m:    m,
		meq:  meq,
		chol: &chol,
		c:    c,
		b:    b,
		x:    mat.NewVecDense(n, nil),
	}

	// Unconstrained minimum x = -G⁻¹a.
	rhs := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		rhs.SetVec(i, -a[i])
	}
	if err := chol.SolveVecTo(s.x, rhs); err != nil {
		return nil, fmt.Errorf("qp: %w", err)
	}

	if err := s.run(); err != nil {
		return nil, err
	}

	x := make([]float64, n)
	for i := 0; i < n; i++ {
		x[i] = s.x.AtVec(i)
	}
	lag := make([]float64, m)
	active := make([]int, len(s.active))
	for j, idx := range s.active {
		lag[idx] = s.sign[j] * s.u[j]
		active[j] = idx
	}
	return &Result{
		X:          x,
		Objective:  objective(g, a, x),
		Lagrangian: lag,
		Active:     active,
		Iterations: s.iters,
	}, nil
}

type solver struct {
	n, m, meq int
	chol      *mat.Cholesky
	c         *mat.Dense
	b         []float64
	x         *mat.VecDense

	active []int     // constraint index per active entry
	sign   []float64 // +1, or -1 for equalities added with flipped normal
	u      []float64 // multiplier per active entry
	eqDone []bool    // equalities already in the active set or degenerate
	iters  int
}

const (
	violEps = 1e-9
	zeroEps = 1e-11
)

func (s *solver) run() error {
	s.eqDone = make([]bool, s.meq)
	maxIter := 100 * (s.n + s.m + 1)

	for {
		p, sgn := s.chooseViolated()
		if p < 0 {
			return nil
		}
		if err := s.addConstraint(p, sgn, maxIter); err != nil {
			return err
		}
		if s.iters > maxIter {
			return ErrIterationLimit
		}
	}
}

// chooseViolated picks the next constraint to enforce. Equalities are
// taken first in index order regardless of their violation, with the
// normal flipped so the violation is non-positive. Among inequalities
// the most violated one wins.
func (s *solver) chooseViolated() (int, float64) {
	for i := 0; i < s.meq; i++ {
		if s.eqDone[i] {
			continue
		}
		if s.value(i) > 0 {
			return i, -1
		}
		return i, 1
	}

	best := -1
	bestViol := 0.0
	for i := s.meq; i < s.m; i++ {
		if s.isActive(i) {
			continue
		}
		v := s.value(i)
		if v >= -s.violTol(i) {
			continue
		}
		if best < 0 || v < bestViol {
			best = i
			bestViol = v
		}
	}
	return best, 1
}

// addConstraint runs the inner Goldfarb-Idnani loop until constraint p
// joins the active set, is found degenerate, or the dual becomes
// unbounded, which proves primal infeasibility.
func (s *solver) addConstraint(p int, sgn float64, maxIter int) error {
	np := mat.NewVecDense(s.n, nil)
	for i := 0; i < s.n; i++ {
		np.SetVec(i, sgn*s.c.At(i, p))
	}
	bp := sgn * s.b[p]
	nn := mat.Dot(np, np)

	uplus := 0.0
	for {
		s.iters++
		if s.iters > maxIter {
			return ErrIterationLimit
		}

		z, r, err := s.directions(np)
		if err != nil {
			return err
		}
		znp := mat.Dot(z, np)
		viol := mat.Dot(np, s.x) - bp

		if znp <= zeroEps*(1+nn) {
			// No primal progress possible in this direction.
			if p < s.meq && math.Abs(viol) <= s.violTol(p) {
				// Equality linearly dependent on the active set and
				// already satisfied. Nothing to enforce.
				s.eqDone[p] = true
				return nil
			}
			t, k := s.dualStep(r)
			if k < 0 {
				return ErrInfeasible
			}
			for j := range s.u {
				s.u[j] -= t * r.AtVec(j)
			}
			uplus += t
			s.drop(k)
			continue
		}

		t1 := -viol / znp
		t2, k := s.dualStep(r)
		if k >= 0 && t2 < t1 {
			// Partial step, a blocking constraint leaves the set.
			s.x.AddScaledVec(s.x, t2, z)
			for j := range s.u {
				s.u[j] -= t2 * r.AtVec(j)
			}
			uplus += t2
			s.drop(k)
			continue
		}

		// Full step, the target constraint becomes active.
		s.x.AddScaledVec(s.x, t1, z)
		if r != nil {
			for j := range s.u {
				s.u[j] -= t1 * r.AtVec(j)
			}
		}
		uplus += t1
		s.active = append(s.active, p)
		s.sign = append(s.sign, sgn)
		s.u = append(s.u, uplus)
		if p < s.meq {
			s.eqDone[p] = true
		}
		return nil
	}
}

// directions computes the primal step z = H n⁺ and the dual step
// r = N* n⁺ for the current active set, where H is the reduced inverse
// Hessian and N* the pseudo-inverse of the active normals in the G
// metric.
func (s *solver) directions(np *mat.VecDense) (*mat.VecDense, *mat.VecDense, error) {
	giNp := mat.NewVecDense(s.n, nil)
	if err := s.chol.SolveVecTo(giNp, np); err != nil {
		return nil, nil, fmt.Errorf("qp: %w", err)
	}
	q := len(s.active)
	if q == 0 {
		return giNp, nil, nil
	}

	nmat := mat.NewDense(s.n, q, nil)
	for j, idx := range s.active {
		for i := 0; i < s.n; i++ {
			nmat.Set(i, j, s.sign[j]*s.c.At(i, idx))
		}
	}
	giN := mat.NewDense(s.n, q, nil)
	if err := s.chol.SolveTo(giN, nmat); err != nil {
		return nil, nil, fmt.Errorf("qp: %w", err)
	}

	var m mat.Dense
	m.Mul(nmat.T(), giN)
	rhs := mat.NewVecDense(q, nil)
	rhs.MulVec(giN.T(), np)

	r := mat.NewVecDense(q, nil)
	if err := r.SolveVec(&m, rhs); err != nil {
		if _, ok := err.(mat.Condition); !ok {
			return nil, nil, fmt.Errorf("qp: degenerate active set: %w", err)
		}
	}

	z := mat.NewVecDense(s.n, nil)
	z.MulVec(giN, r)
	z.SubVec(giNp, z)
	return z, r, nil
}

// dualStep returns the largest step the current multipliers allow and
// the index of the blocking active entry, or (+inf, -1) when nothing
// blocks. Equalities never leave the active set.
func (s *solver) dualStep(r *mat.VecDense) (float64, int) {
	t := math.Inf(1)
	k := -1
	if r == nil {
		return t, k
	}
	rmax := 0.0
	for j := 0; j < r.Len(); j++ {
		if v := math.Abs(r.AtVec(j)); v > rmax {
			rmax = v
		}
	}
	rTol := zeroEps * (1 + rmax)
	for j, idx := range s.active {
		if idx < s.meq {
			continue
		}
		rj := r.AtVec(j)
		if rj <= rTol {
			continue
		}
		if tj := s.u[j] / rj; tj < t {
			t = tj
			k = j
		}
	}
	return t, k
}

func (s *solver) value(i int) float64 {
	v := -s.b[i]
	for j := 0; j < s.n; j++ {
		v += s.c.At(j, i) * s.x.AtVec(j)
	}
	return v
}

func (s *solver) violTol(i int) float64 {
	norm := 0.0
	for j := 0; j < s.n; j++ {
		norm += math.Abs(s.c.At(j, i))
	}
	return violEps * (1 + norm + math.Abs(s.b[i]))
}

func (s *solver) isActive(i int) bool {
	for _, idx := range s.active {
		if idx == i {
			return true
		}
	}
	return false
}

func (s *solver) drop(k int) {
	s.active = append(s.active[:k], s.active[k+1:]...)
	s.sign = append(s.sign[:k], s.sign[k+1:]...)
	s.u = append(s.u[:k], s.u[k+1:]...)
}

func objective(g *mat.Dense, a, x []float64) float64 {
	f := 0.0
	for i, xi := range x {
		f += a[i] * xi
		for j, xj := range x {
			f += 0.5 * xi * g.At(i, j) * xj
		}
	}
	return f
}
