package allocation

import (
	"errors"
	"fmt"
	"io"
	"math"

	"gopkg.in/yaml.v3"

	"github.com/freol35241/quta/pkg/core/math/constraint"
	"github.com/freol35241/quta/x/options"
)

var ErrLayout = errors.New("allocation: invalid thruster layout")

// LayoutConfig describes a vessel's thruster arrangement in a form
// suitable for yaml configuration files.
type LayoutConfig struct {
	Slack     *SlackConfig     `yaml:"slack"`
	Thrusters []ThrusterConfig `yaml:"thrusters"`
}

type SlackConfig struct {
	Fx float64 `yaml:"fx"`
	Fy float64 `yaml:"fy"`
	Mz float64 `yaml:"mz"`
}

type ThrusterConfig struct {
	Name     string         `yaml:"name"`
	Type     string         `yaml:"type"`
	Position [2]float64     `yaml:"position"`
	MaxForce float64        `yaml:"max_force"`
	Facets   int            `yaml:"facets"`
	Sectors  []SectorConfig `yaml:"sectors"`
}

// SectorConfig is one disjunct angular region of a spot thruster.
// Angles are in degrees, measured counter-clockwise from the bow.
type SectorConfig struct {
	Radius   float64 `yaml:"radius"`
	StartDeg float64 `yaml:"start_deg"`
	EndDeg   float64 `yaml:"end_deg"`
	Edges    int     `yaml:"edges"`
}

// LoadLayout reads a yaml thruster layout and builds the matching
// allocator.
func LoadLayout(r io.Reader) (*Allocator, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var cfg LayoutConfig
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLayout, err)
	}
	return cfg.Build()
}

// Build constructs an allocator from the parsed layout.
func (cfg LayoutConfig) Build() (*Allocator, error) {
	if len(cfg.Thrusters) == 0 {
		return nil, fmt.Errorf("%w: no thrusters defined", ErrLayout)
	}

	a := NewAllocator()
	if cfg.Slack != nil {
		if err := a.SetSlackCoefficients(cfg.Slack.Fx, cfg.Slack.Fy, cfg.Slack.Mz); err != nil {
			return nil, err
		}
	}

	for _, tc := range cfg.Thrusters {
		t, err := tc.build()
		if err != nil {
			return nil, err
		}
		a.AddThruster(t)
	}
	return a, nil
}

func (tc ThrusterConfig) build() (*Thruster, error) {
	pos := constraint.Point{tc.Position[0], tc.Position[1]}

	switch tc.Type {
	case "transverse", "longitudinal", "azimuth":
		if tc.MaxForce <= 0 {
			return nil, fmt.Errorf("%w: thruster %q needs a positive max_force", ErrLayout, tc.Name)
		}
	}

	switch tc.Type {
	case "transverse":
		return NewTransverse(pos, tc.MaxForce), nil
	case "longitudinal":
		return NewLongitudinal(pos, tc.MaxForce), nil
	case "azimuth":
		var opts []options.Option
		if tc.Facets > 0 {
			opts = append(opts, WithFacets(tc.Facets))
		}
		return NewAzimuth(pos, tc.MaxForce, opts...), nil
	case "spot":
		if len(tc.Sectors) == 0 {
			return nil, fmt.Errorf("%w: spot thruster %q needs at least one sector", ErrLayout, tc.Name)
		}
		t := NewThruster(pos)
		for _, sc := range tc.Sectors {
			var opts []options.Option
			if sc.Edges > 0 {
				opts = append(opts, constraint.WithEdges(sc.Edges))
			}
			set, err := constraint.NewSector(sc.Radius, deg2rad(sc.StartDeg), deg2rad(sc.EndDeg), opts...)
			if err != nil {
				return nil, fmt.Errorf("thruster %q: %w", tc.Name, err)
			}
			if err := t.AddDisjunct(set); err != nil {
				return nil, err
			}
		}
		return t, nil
	}
	return nil, fmt.Errorf("%w: unknown thruster type %q", ErrLayout, tc.Type)
}

func deg2rad(deg float64) float64 {
	return deg * math.Pi / 180
}
