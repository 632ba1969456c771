package config

import (
	"fmt"
	"math"
	"os"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/san-kum/broomsim/internal/dynamo"
	"gopkg.in/yaml.v3"
)

const (
	DefaultFixedTimestep    = 1.0 / 60
	DefaultMaxSubSteps      = 10
	DefaultSolverIterations = 10
	DefaultMargin           = 0.05
	DefaultRestitution      = 0.8
	DefaultFriction         = 0.5
	DefaultEvictionY        = -5.0
	DefaultPinHeight        = 5.0
	DefaultMoveSpeed        = 20.0
	DefaultLookSpeed        = 0.3

	PolicyFixed      = "fixed"
	PolicyPopulation = "population"

	CameraManual = "manual"
	CameraFixed  = "fixed"
	CameraOrbit  = "orbit"
)

type Config struct {
	World     WorldConfig     `yaml:"world"`
	Bodies    BodiesConfig    `yaml:"bodies"`
	Plane     PlaneConfig     `yaml:"plane"`
	Collision CollisionConfig `yaml:"collision"`
	Eviction  EvictionConfig  `yaml:"eviction"`
	Spawn     SpawnConfig     `yaml:"spawn"`
	Broom     BroomConfig     `yaml:"broom"`
	Camera    CameraConfig    `yaml:"camera"`
}

type WorldConfig struct {
	Gravity          mgl64.Vec3 `yaml:"gravity,flow"`
	FixedTimestep    float64    `yaml:"fixed_timestep"`
	MaxSubSteps      int        `yaml:"max_substeps"`
	SolverIterations int        `yaml:"solver_iterations"`
}

type BodiesConfig struct {
	Margin      float64 `yaml:"margin"`
	Restitution float64 `yaml:"restitution"`
	Friction    float64 `yaml:"friction"`
}

type PlaneConfig struct {
	HalfExtents mgl64.Vec3 `yaml:"half_extents,flow"`
}

// CollisionConfig overrides the collides-with mask of named groups.
type CollisionConfig struct {
	Masks map[string][]string `yaml:"masks,omitempty"`
}

type EvictionConfig struct {
	ThresholdY float64 `yaml:"threshold_y"`
}

type SpawnConfig struct {
	Policy             string       `yaml:"policy"`
	IntervalFrames     int          `yaml:"interval_frames"` // 0 uses the initial population
	Positions          []mgl64.Vec3 `yaml:"positions,flow"`
	SpheresPerPosition int          `yaml:"spheres_per_position"`
	BlocksPerPosition  int          `yaml:"blocks_per_position"`
	MaxLiveBodies      int          `yaml:"max_live_bodies"` // 0 is unlimited
	Seed               int64        `yaml:"seed"`
	MinRadius          float64      `yaml:"min_radius"`
	MaxRadius          float64      `yaml:"max_radius"`
	MinScale           float64      `yaml:"min_scale"`
	MaxScale           float64      `yaml:"max_scale"`
}

type BroomConfig struct {
	Offset           mgl64.Vec3 `yaml:"offset,flow"`
	AlignOrientation bool       `yaml:"align_orientation"`
	BlockHalfExtents mgl64.Vec3 `yaml:"block_half_extents,flow"`
	BlockMass        float64    `yaml:"block_mass"`
	Damping          float64    `yaml:"damping"`
}

type CameraConfig struct {
	Mode      string     `yaml:"mode"`
	Position  mgl64.Vec3 `yaml:"position,flow"`
	PinHeight float64    `yaml:"pin_height"`
	MoveSpeed float64    `yaml:"move_speed"`
	LookSpeed float64    `yaml:"look_speed"`
}

func DefaultSpawnPositions() []mgl64.Vec3 {
	return []mgl64.Vec3{
		{30, 30, -50},
		{-30, 30, 50},
		{70, 30, 70},
		{-70, 30, -70},
	}
}

func DefaultConfig() *Config {
	return &Config{
		World: WorldConfig{
			Gravity:          mgl64.Vec3{0, -10, 0},
			FixedTimestep:    DefaultFixedTimestep,
			MaxSubSteps:      DefaultMaxSubSteps,
			SolverIterations: DefaultSolverIterations,
		},
		Bodies: BodiesConfig{
			Margin:      DefaultMargin,
			Restitution: DefaultRestitution,
			Friction:    DefaultFriction,
		},
		Plane:    PlaneConfig{HalfExtents: mgl64.Vec3{100, 0.5, 100}},
		Eviction: EvictionConfig{ThresholdY: DefaultEvictionY},
		Spawn: SpawnConfig{
			Policy:             PolicyFixed,
			Positions:          DefaultSpawnPositions(),
			SpheresPerPosition: 1,
			BlocksPerPosition:  1,
			MinRadius:          0.5,
			MaxRadius:          5.5,
			MinScale:           3,
			MaxScale:           10,
		},
		Broom: BroomConfig{
			Offset:           mgl64.Vec3{0, 0, -5},
			BlockHalfExtents: mgl64.Vec3{4, 0.5, 0.5},
			BlockMass:        100,
			Damping:          0.5,
		},
		Camera: CameraConfig{
			Mode:      CameraManual,
			Position:  mgl64.Vec3{0, 5, 70},
			PinHeight: DefaultPinHeight,
			MoveSpeed: DefaultMoveSpeed,
			LookSpeed: DefaultLookSpeed,
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	out := *c
	out.Spawn.Positions = append([]mgl64.Vec3(nil), c.Spawn.Positions...)
	if c.Collision.Masks != nil {
		out.Collision.Masks = make(map[string][]string, len(c.Collision.Masks))
		for k, v := range c.Collision.Masks {
			out.Collision.Masks[k] = append([]string(nil), v...)
		}
	}
	return &out
}

// InitialPopulation is the number of bodies one spawn batch creates.
func (c *Config) InitialPopulation() int {
	return len(c.Spawn.Positions) * (c.Spawn.SpheresPerPosition + c.Spawn.BlocksPerPosition)
}

// SpawnInterval resolves interval_frames, where 0 means the initial
// population.
func (c *Config) SpawnInterval() int {
	if c.Spawn.IntervalFrames > 0 {
		return c.Spawn.IntervalFrames
	}
	return max(c.InitialPopulation(), 1)
}

func invalid(field string, format string, args ...any) error {
	return fmt.Errorf("%s: %s: %w", field, fmt.Sprintf(format, args...), dynamo.ErrConfiguration)
}

func finite(v ...float64) bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

func (c *Config) Validate() error {
	w := c.World
	if !finite(w.Gravity[:]...) {
		return invalid("world.gravity", "must be finite")
	}
	if !(w.FixedTimestep > 0) || !finite(w.FixedTimestep) {
		return invalid("world.fixed_timestep", "must be positive, got %v", w.FixedTimestep)
	}
	if w.MaxSubSteps < 0 {
		return invalid("world.max_substeps", "must not be negative, got %d", w.MaxSubSteps)
	}
	if w.SolverIterations < 1 {
		return invalid("world.solver_iterations", "must be at least 1, got %d", w.SolverIterations)
	}

	b := c.Bodies
	if b.Margin < 0 || !finite(b.Margin) {
		return invalid("bodies.margin", "must not be negative, got %v", b.Margin)
	}
	if b.Restitution < 0 || b.Restitution > 1 {
		return invalid("bodies.restitution", "must be in [0,1], got %v", b.Restitution)
	}
	if b.Friction < 0 || !finite(b.Friction) {
		return invalid("bodies.friction", "must not be negative, got %v", b.Friction)
	}

	for i, v := range c.Plane.HalfExtents {
		if !(v > 0) || !finite(v) {
			return invalid("plane.half_extents", "component %d must be positive, got %v", i, v)
		}
	}
	if !finite(c.Eviction.ThresholdY) {
		return invalid("eviction.threshold_y", "must be finite")
	}

	s := c.Spawn
	switch s.Policy {
	case PolicyFixed, PolicyPopulation:
	default:
		return invalid("spawn.policy", "unknown policy %q", s.Policy)
	}
	if s.IntervalFrames < 0 {
		return invalid("spawn.interval_frames", "must not be negative, got %d", s.IntervalFrames)
	}
	if s.SpheresPerPosition < 0 || s.BlocksPerPosition < 0 {
		return invalid("spawn", "per-position counts must not be negative")
	}
	if s.MaxLiveBodies < 0 {
		return invalid("spawn.max_live_bodies", "must not be negative, got %d", s.MaxLiveBodies)
	}
	for i, p := range s.Positions {
		if !finite(p[:]...) {
			return invalid("spawn.positions", "entry %d must be finite", i)
		}
	}
	if !(s.MinRadius > 0) || s.MaxRadius < s.MinRadius || !finite(s.MaxRadius) {
		return invalid("spawn.min_radius", "need 0 < min_radius <= max_radius, got %v..%v", s.MinRadius, s.MaxRadius)
	}
	if !(s.MinScale > 0) || s.MaxScale < s.MinScale || !finite(s.MaxScale) {
		return invalid("spawn.min_scale", "need 0 < min_scale <= max_scale, got %v..%v", s.MinScale, s.MaxScale)
	}

	br := c.Broom
	if !finite(br.Offset[:]...) {
		return invalid("broom.offset", "must be finite")
	}
	for i, v := range br.BlockHalfExtents {
		if !(v > 0) || !finite(v) {
			return invalid("broom.block_half_extents", "component %d must be positive, got %v", i, v)
		}
	}
	if !(br.BlockMass > 0) || !finite(br.BlockMass) {
		return invalid("broom.block_mass", "must be positive, got %v", br.BlockMass)
	}
	if br.Damping < 0 || br.Damping > 1 {
		return invalid("broom.damping", "must be in [0,1], got %v", br.Damping)
	}

	cam := c.Camera
	switch cam.Mode {
	case CameraManual, CameraFixed, CameraOrbit:
	default:
		return invalid("camera.mode", "unknown mode %q", cam.Mode)
	}
	if !finite(cam.Position[:]...) {
		return invalid("camera.position", "must be finite")
	}
	if cam.MoveSpeed < 0 || cam.LookSpeed < 0 {
		return invalid("camera", "speeds must not be negative")
	}
	return nil
}
