package optim

import (
	"fmt"
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/san-kum/broomsim/internal/config"
	"github.com/san-kum/broomsim/internal/dynamo"
)

// Setter writes one tunable value into a config.
type Setter func(cfg *config.Config, v float64)

// Params lists every config value a search or sweep may vary.
var Params = map[string]Setter{
	"gravity":          setGravity,
	"fixed_timestep":   func(c *config.Config, v float64) { c.World.FixedTimestep = v },
	"max_substeps":     func(c *config.Config, v float64) { c.World.MaxSubSteps = int(math.Round(v)) },
	"iterations":       func(c *config.Config, v float64) { c.World.SolverIterations = int(math.Round(v)) },
	"margin":           func(c *config.Config, v float64) { c.Bodies.Margin = v },
	"restitution":      func(c *config.Config, v float64) { c.Bodies.Restitution = v },
	"friction":         func(c *config.Config, v float64) { c.Bodies.Friction = v },
	"eviction_y":       func(c *config.Config, v float64) { c.Eviction.ThresholdY = v },
	"spawn_interval":   func(c *config.Config, v float64) { c.Spawn.IntervalFrames = int(math.Round(v)) },
	"max_live_bodies":  func(c *config.Config, v float64) { c.Spawn.MaxLiveBodies = int(math.Round(v)) },
	"broom_block_mass": func(c *config.Config, v float64) { c.Broom.BlockMass = v },
	"broom_damping":    func(c *config.Config, v float64) { c.Broom.Damping = v },
}

// setGravity keeps the direction of gravity and replaces its magnitude.
func setGravity(c *config.Config, v float64) {
	dir := mgl64.Vec3{0, -1, 0}
	if l := c.World.Gravity.Len(); l > 0 {
		dir = c.World.Gravity.Mul(1 / l)
	}
	c.World.Gravity = dir.Mul(v)
}

// ParamNames returns the tunable names, sorted.
func ParamNames() []string {
	names := make([]string, 0, len(Params))
	for n := range Params {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Apply returns a copy of base with params written into it. The copy is
// validated so a bad combination fails here rather than mid-run.
func Apply(base *config.Config, params map[string]float64) (*config.Config, error) {
	cfg := base.Clone()
	for name, v := range params {
		set, ok := Params[name]
		if !ok {
			return nil, fmt.Errorf("%w: unknown parameter %q", dynamo.ErrConfiguration, name)
		}
		set(cfg, v)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
