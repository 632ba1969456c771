package registry

import (
	"math/rand"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/san-kum/broomsim/internal/collision"
	"github.com/san-kum/broomsim/internal/dynamo"
	"github.com/san-kum/broomsim/internal/factory"
	"github.com/san-kum/broomsim/internal/physics"
)

// SpawnConfig sets what SpawnBatch creates.
type SpawnConfig struct {
	MinRadius, MaxRadius float64
	MinScale, MaxScale   float64
	SphereMass           float64
	BlockMass            float64
	Restitution          float64
	Friction             float64
	Group                string
	Mask                 []string
}

func DefaultSpawnConfig() SpawnConfig {
	return SpawnConfig{
		MinRadius:   0.5,
		MaxRadius:   5.5,
		MinScale:    3,
		MaxScale:    10,
		SphereMass:  1,
		BlockMass:   0.3,
		Restitution: 0.8,
		Group:       collision.NameB,
	}
}

type batch struct {
	cfg    SpawnConfig
	radius float64
	scale  mgl64.Vec3
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}

func (c SpawnConfig) sample(rng *rand.Rand) batch {
	return batch{
		cfg:    c,
		radius: uniform(rng, c.MinRadius, c.MaxRadius),
		scale: mgl64.Vec3{
			uniform(rng, c.MinScale, c.MaxScale),
			uniform(rng, c.MinScale, c.MaxScale),
			uniform(rng, c.MinScale, c.MaxScale),
		},
	}
}

func (b batch) sphere(pos mgl64.Vec3) factory.BodySpec {
	return factory.BodySpec{
		Label:       "sphere",
		Shape:       physics.Sphere(b.radius),
		Pose:        dynamo.NewPose(pos),
		Mass:        b.cfg.SphereMass,
		Restitution: b.cfg.Restitution,
		Friction:    b.cfg.Friction,
		Group:       b.cfg.Group,
		Mask:        b.cfg.Mask,
		RandomColor: true,
	}
}

func (b batch) block(pos mgl64.Vec3) factory.BodySpec {
	return factory.BodySpec{
		Label:       "block",
		Shape:       physics.Box(b.scale.Mul(0.5)),
		Pose:        dynamo.NewPose(pos),
		Mass:        b.cfg.BlockMass,
		Restitution: b.cfg.Restitution,
		Friction:    b.cfg.Friction,
		Group:       b.cfg.Group,
		Mask:        b.cfg.Mask,
		RandomColor: true,
	}
}
