package allocation

import (
	"errors"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/freol35241/quta/pkg/core/math/constraint"
	"github.com/freol35241/quta/pkg/core/math/qp"
	"github.com/freol35241/quta/pkg/logger"
	"github.com/freol35241/quta/x/options"
)

// Planar degrees of freedom: surge force, sway force, yaw moment.
const dofs = 3

var (
	ErrNoThrusters      = errors.New("allocation: at least one thruster must be added before allocating")
	ErrNoSolution       = errors.New("allocation: no disjunct combination has a solution, try relax=true")
	ErrSlackCoefficient = errors.New("allocation: slack coefficients must be strictly positive")
)

// Wrench is a demand on the rigid body: two orthogonal forces and a
// moment about the reference point.
type Wrench struct {
	Fx, Fy, Mz float64
}

// Reconstruct composes the global wrench produced by a force vector
// laid out as [u0x, u0y, u1x, u1y, ...].
func Reconstruct(thrusters []*Thruster, forces []float64) Wrench {
	var w Wrench
	for i, t := range thrusters {
		fx := forces[2*i]
		fy := forces[2*i+1]
		w.Fx += fx
		w.Fy += fy
		w.Mz += -fx*t.Position().Y() + fy*t.Position().X()
	}
	return w
}

// Allocator distributes a demanded wrench over a set of thrusters
// while minimizing the summed squared force components. Each thruster
// contributes one or more disjunct feasible regions; the allocator
// solves one convex QP per disjunct combination and keeps the globally
// cheapest feasible solution.
//
// An Allocator must not be mutated while an Allocate call is running.
// Allocate itself is stateless and reentrant across instances.
type Allocator struct {
	thrusters []*Thruster
	slack     [dofs]float64
	workers   int
}

func NewAllocator(opts ...options.Option) *Allocator {
	o := Options{
		slack:   [dofs]float64{1000, 1000, 1000},
		workers: 1,
	}
	options.ApplyOptions(&o, opts...)
	if o.workers < 1 {
		o.workers = 1
	}
	return &Allocator{slack: o.slack, workers: o.workers}
}

// AddThruster appends a thruster to the allocation problem.
func (a *Allocator) AddThruster(t *Thruster) {
	a.thrusters = append(a.thrusters, t)
}

// Thrusters returns the thrusters in allocation order.
func (a *Allocator) Thrusters() []*Thruster {
	return a.thrusters
}

// SetSlackCoefficients sets the quadratic penalty per degree of
// freedom applied to the slack variables of relaxed allocations.
func (a *Allocator) SetSlackCoefficients(fx, fy, mz float64) error {
	if fx <= 0 || fy <= 0 || mz <= 0 {
		return ErrSlackCoefficient
	}
	a.slack = [dofs]float64{fx, fy, mz}
	return nil
}

// Allocate distributes the demanded wrench. When relax is set, three
// slack variables absorb unmet demand at the configured penalty so a
// solution always exists for consistent constraints. The returned
// force vector holds two components per thruster with the slack
// hidden; the raw QP result carries the full vector, objective and
// multipliers for diagnostics.
func (a *Allocator) Allocate(w Wrench, relax bool) ([]float64, *qp.Result, error) {
	n := len(a.thrusters)
	if n == 0 {
		return nil, nil, ErrNoThrusters
	}

	g, lin := a.objective(relax)

	radix := make([]int, n)
	total := 1
	for i, t := range a.thrusters {
		radix[i] = len(t.Disjuncts())
		total *= radix[i]
	}

	best, err := a.enumerate(g, lin, w, relax, radix, total)
	if err != nil {
		return nil, nil, err
	}
	if best == nil {
		return nil, nil, ErrNoSolution
	}

	forces := make([]float64, 2*n)
	copy(forces, best.X[:2*n])

	logger.Log.Debug().
		Int("combinations", total).
		Float64("objective", best.Objective).
		Msg("allocation solved")

	return forces, best, nil
}

// objective builds G = I with the slack penalties on the trailing
// diagonal when relaxed, and the zero linear term.
func (a *Allocator) objective(relax bool) (*mat.Dense, []float64) {
	n := a.problemSize(relax)
	g := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		g.Set(i, i, 1)
	}
	if relax {
		for d := 0; d < dofs; d++ {
			g.Set(n-dofs+d, n-dofs+d, a.slack[d])
		}
	}
	return g, make([]float64, n)
}

func (a *Allocator) problemSize(relax bool) int {
	n := 2 * len(a.thrusters)
	if relax {
		n += dofs
	}
	return n
}

// wrenchRows builds the three equality rows balancing the demanded
// wrench against the thruster forces, with identity slack columns when
// relaxed.
func (a *Allocator) wrenchRows(w Wrench, relax bool) constraint.Set {
	total := a.problemSize(relax)
	c := mat.NewDense(dofs, total, nil)
	for i, t := range a.thrusters {
		c.Set(0, 2*i, 1)
		c.Set(1, 2*i+1, 1)
		c.Set(2, 2*i, -t.Position().Y())
		c.Set(2, 2*i+1, t.Position().X())
	}
	if relax {
		base := 2 * len(a.thrusters)
		for d := 0; d < dofs; d++ {
			c.Set(d, base+d, 1)
		}
	}
	return constraint.Set{C: c, B: []float64{w.Fx, w.Fy, w.Mz}, Eq: dofs}
}

// assemble stacks the wrench balance rows and the selected disjunct of
// every thruster, padded into the global variable layout, keeping all
// equality rows on top.
func (a *Allocator) assemble(w Wrench, relax bool, combination []int) (constraint.Set, error) {
	set := a.wrenchRows(w, relax)
	total := a.problemSize(relax)
	for i, t := range a.thrusters {
		padded, err := t.Disjuncts()[combination[i]].Pad(2*i, total)
		if err != nil {
			return constraint.Set{}, err
		}
		set = constraint.Concatenate(set, padded)
	}
	return set, nil
}

type candidate struct {
	res *qp.Result
	ord int
}

func (c candidate) better(o candidate) bool {
	if o.res == nil {
		return c.res != nil
	}
	if c.res == nil {
		return false
	}
	if c.res.Objective != o.res.Objective {
		return c.res.Objective < o.res.Objective
	}
	return c.ord < o.ord
}

// enumerate walks the Cartesian product of the thruster disjuncts in
// lexicographic order and returns the feasible solution with the
// smallest objective, ties going to the earliest combination.
// Infeasible combinations are logged and skipped.
func (a *Allocator) enumerate(g *mat.Dense, lin []float64, w Wrench, relax bool, radix []int, total int) (*qp.Result, error) {
	workers := a.workers
	if workers > total {
		workers = total
	}
	if workers <= 1 {
		return a.scan(g, lin, w, relax, radix, 0, 1, total)
	}

	found := make([]candidate, workers)
	var eg errgroup.Group
	for wk := 0; wk < workers; wk++ {
		eg.Go(func() error {
			res, err := a.scanCandidate(g, lin, w, relax, radix, wk, workers, total)
			if err != nil {
				return err
			}
			found[wk] = res
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	best := candidate{ord: -1}
	for _, c := range found {
		if c.better(best) {
			best = c
		}
	}
	return best.res, nil
}

func (a *Allocator) scan(g *mat.Dense, lin []float64, w Wrench, relax bool, radix []int, first, stride, total int) (*qp.Result, error) {
	c, err := a.scanCandidate(g, lin, w, relax, radix, first, stride, total)
	if err != nil {
		return nil, err
	}
	return c.res, nil
}

func (a *Allocator) scanCandidate(g *mat.Dense, lin []float64, w Wrench, relax bool, radix []int, first, stride, total int) (candidate, error) {
	best := candidate{ord: -1}
	combination := make([]int, len(radix))
	for ord := first; ord < total; ord += stride {
		combinationAt(radix, ord, combination)
		set, err := a.assemble(w, relax, combination)
		if err != nil {
			return candidate{}, err
		}
		// The QP primitive wants one column per constraint. Any solver
		// failure only rules out this combination, the remaining ones
		// may still produce a solution.
		ct := mat.DenseCopyOf(set.C.T())
		res, err := qp.Solve(g, lin, ct, set.B, set.Eq)
		if err != nil {
			logger.Log.Warn().
				Ints("combination", combination).
				Err(err).
				Msg("disjunct combination has no solution")
			continue
		}
		if (candidate{res, ord}).better(best) {
			best = candidate{res, ord}
		}
	}
	return best, nil
}

// combinationAt decodes a mixed-radix ordinal into one disjunct index
// per thruster. The last thruster varies fastest, which makes the
// ordinal order the lexicographic order of the tuples.
func combinationAt(radix []int, ord int, dst []int) {
	for i := len(radix) - 1; i >= 0; i-- {
		dst[i] = ord % radix[i]
		ord /= radix[i]
	}
}
