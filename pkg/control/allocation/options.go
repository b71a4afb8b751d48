package allocation

import (
	"github.com/freol35241/quta/x/options"
)

type Options struct {
	facets  int
	workers int
	slack   [dofs]float64
}

// WithFacets sets the polygon facet count of an azimuth thruster.
func WithFacets(n int) options.Option {
	return func(o interface{}) {
		if opt, ok := o.(*Options); ok {
			opt.facets = n
		}
	}
}

// WithWorkers makes Allocate fan the disjunct combinations out to n
// goroutines. The result is identical to the sequential one.
func WithWorkers(n int) options.Option {
	return func(o interface{}) {
		if opt, ok := o.(*Options); ok {
			opt.workers = n
		}
	}
}

// WithSlackCoefficients sets the quadratic slack penalties used by
// relaxed allocations, one per degree of freedom. Each coefficient
// must be strictly positive, otherwise the option leaves the defaults
// untouched.
func WithSlackCoefficients(fx, fy, mz float64) options.Option {
	return func(o interface{}) {
		if opt, ok := o.(*Options); ok && fx > 0 && fy > 0 && mz > 0 {
			opt.slack = [dofs]float64{fx, fy, mz}
		}
	}
}
