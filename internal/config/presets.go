package config

import (
	"slices"

	"github.com/go-gl/mathgl/mgl64"
)

// Presets are named variations of the default scene.
var Presets = map[string]func() *Config{
	// The default scene.
	"default": DefaultConfig,

	// Fewer, slower bodies that stay put once they land.
	"calm": func() *Config {
		c := DefaultConfig()
		c.Bodies.Restitution = 0.2
		c.Spawn.Positions = c.Spawn.Positions[:2]
		c.Spawn.IntervalFrames = 240
		c.Spawn.MaxLiveBodies = 40
		c.Spawn.MaxRadius = 2
		c.Spawn.MaxScale = 5
		return c
	},

	// Frequent, large batches from six points.
	"storm": func() *Config {
		c := DefaultConfig()
		c.Spawn.Positions = append(c.Spawn.Positions,
			mgl64.Vec3{0, 40, 0},
			mgl64.Vec3{0, 40, -90},
		)
		c.Spawn.IntervalFrames = 30
		c.Spawn.SpheresPerPosition = 2
		c.Spawn.MaxLiveBodies = 400
		return c
	},

	// The drifting cadence: spawn when the frame counter reaches the
	// live-body count.
	"legacy": func() *Config {
		c := DefaultConfig()
		c.Spawn.Policy = PolicyPopulation
		return c
	},
}

// GetPreset returns a fresh copy of the named preset, or nil.
func GetPreset(name string) *Config {
	fn, ok := Presets[name]
	if !ok {
		return nil
	}
	return fn()
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
