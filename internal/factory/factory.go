// Package factory builds rigid bodies together with their visual proxies.
// Every body it returns is already in the world.
package factory

import (
	"fmt"
	"math/rand"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/san-kum/broomsim/internal/collision"
	"github.com/san-kum/broomsim/internal/dynamo"
	"github.com/san-kum/broomsim/internal/physics"
	"github.com/san-kum/broomsim/internal/render"
)

const DefaultFriction = 0.5

// World is the part of the physics world the factory writes to.
type World interface {
	AddBody(def physics.BodyDef) (dynamo.BodyID, error)
	AddHinge(def physics.HingeDef, disableCollisions bool) (dynamo.ConstraintID, error)
}

// BodySpec describes one body and its proxy.
type BodySpec struct {
	Label       string
	Shape       physics.Shape
	Pose        dynamo.Pose
	Mass        float64
	Restitution float64
	Friction    float64 // 0 uses the factory default

	Group string
	Mask  []string // nil keeps the group's default mask

	LinearDamping  float64
	AngularDamping float64

	Color       uint32
	RandomColor bool
	Hidden      bool
}

type Factory struct {
	world    World
	filters  *collision.Registry
	margin   float64
	friction float64
	rng      *rand.Rand
}

type Option func(*Factory)

func WithMargin(m float64) Option { return func(f *Factory) { f.margin = m } }

func WithFriction(mu float64) Option { return func(f *Factory) { f.friction = mu } }

// WithRand sets the colour source. Tests pass a seeded one.
func WithRand(rng *rand.Rand) Option { return func(f *Factory) { f.rng = rng } }

func New(world World, filters *collision.Registry, opts ...Option) *Factory {
	f := &Factory{
		world:    world,
		filters:  filters,
		margin:   physics.DefaultMargin,
		friction: DefaultFriction,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.rng == nil {
		f.rng = rand.New(rand.NewSource(1))
	}
	return f
}

// CreateBody resolves the collision filter, adds the body to the world and
// returns its proxy. On error nothing has been added.
func (f *Factory) CreateBody(spec BodySpec) (dynamo.BodyID, *render.Proxy, error) {
	filter, err := f.filters.Resolve(spec.Group)
	if err != nil {
		return 0, nil, err
	}
	if spec.Mask != nil {
		if filter.Mask, err = f.filters.Mask(spec.Mask...); err != nil {
			return 0, nil, err
		}
	}

	shape, err := spec.Shape.Validate()
	if err != nil {
		return 0, nil, fmt.Errorf("%s: %w", spec.Label, err)
	}

	friction := spec.Friction
	if friction == 0 {
		friction = f.friction
	}
	id, err := f.world.AddBody(physics.BodyDef{
		Shape:          shape,
		Pose:           spec.Pose,
		Mass:           spec.Mass,
		Restitution:    spec.Restitution,
		Friction:       friction,
		LinearDamping:  spec.LinearDamping,
		AngularDamping: spec.AngularDamping,
		Filter:         filter,
		Margin:         f.margin,
	})
	if err != nil {
		return 0, nil, fmt.Errorf("%s: %w", spec.Label, err)
	}

	color := spec.Color
	if spec.RandomColor {
		color = render.RandomColor(f.rng)
	}
	return id, newProxy(id, spec, shape, color), nil
}

func newProxy(id dynamo.BodyID, spec BodySpec, shape physics.Shape, color uint32) *render.Proxy {
	p := &render.Proxy{
		Body:    id,
		Label:   spec.Label,
		Color:   color,
		Visible: !spec.Hidden,
		Pose:    spec.Pose,
	}
	if p.Pose.Orientation == (mgl64.Quat{}) {
		p.Pose.Orientation = mgl64.QuatIdent()
	}
	switch shape.Kind {
	case physics.ShapeSphere:
		p.Kind = render.KindSphere
		p.Radius = shape.Radius
		p.Scale = mgl64.Vec3{2 * shape.Radius, 2 * shape.Radius, 2 * shape.Radius}
	default:
		p.Kind = render.KindBox
		p.Scale = shape.HalfExtents.Mul(2)
	}
	return p
}

// CreateHinge joins two bodies the factory created.
func (f *Factory) CreateHinge(def physics.HingeDef, disableCollisions bool) (dynamo.ConstraintID, error) {
	return f.world.AddHinge(def, disableCollisions)
}
