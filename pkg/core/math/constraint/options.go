package constraint

import (
	"github.com/freol35241/quta/x/options"
)

type Options struct {
	edges int
}

// WithEdges sets the number of edges used when a circle or a sector
// arc is discretized into a polygon.
func WithEdges(n int) options.Option {
	return func(o interface{}) {
		if opt, ok := o.(*Options); ok {
			opt.edges = n
		}
	}
}
