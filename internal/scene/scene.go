// Package scene assembles the fixed parts of the world: the ground plane
// and the broom, a driven sphere hinged to a heavy block.
package scene

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/san-kum/broomsim/internal/collision"
	"github.com/san-kum/broomsim/internal/config"
	"github.com/san-kum/broomsim/internal/dynamo"
	"github.com/san-kum/broomsim/internal/factory"
	"github.com/san-kum/broomsim/internal/physics"
	"github.com/san-kum/broomsim/internal/registry"
)

// pivotFraction places the block's hinge pivot along its length, measured
// from the centre towards -X as a share of the full length.
const pivotFraction = 0.7

const (
	planeColor = 0x808080
	blockColor = 0x8b4513
)

type Hinges interface {
	CreateHinge(def physics.HingeDef, disableCollisions bool) (dynamo.ConstraintID, error)
}

// Scene holds the handles of the fixed bodies.
type Scene struct {
	Plane          registry.Entry
	Broom          registry.Entry
	Block          registry.Entry
	Hinge          dynamo.ConstraintID
	SpawnPositions []mgl64.Vec3
}

// Filters builds the collision registry with the configured mask overrides
// applied, then freezes it.
func Filters(cfg *config.Config) (*collision.Registry, error) {
	filters := collision.NewRegistry()
	for name, names := range cfg.Collision.Masks {
		mask, err := filters.Mask(names...)
		if err != nil {
			return nil, fmt.Errorf("collision.masks[%s]: %w", name, err)
		}
		if err := filters.SetMask(name, mask); err != nil {
			return nil, fmt.Errorf("collision.masks[%s]: %w", name, err)
		}
	}
	filters.Freeze()
	return filters, nil
}

// Build creates the plane, the broom pair and their hinge and registers
// them. The broom sphere is externally driven and hidden; the plane and the
// block are pinned so eviction never takes them.
func Build(cfg *config.Config, reg *registry.Registry, hinges Hinges) (*Scene, error) {
	s := &Scene{SpawnPositions: append([]mgl64.Vec3(nil), cfg.Spawn.Positions...)}

	var err error
	s.Plane, err = reg.Adopt(factory.BodySpec{
		Label:       "plane",
		Shape:       physics.Box(cfg.Plane.HalfExtents),
		Pose:        dynamo.IdentityPose(),
		Restitution: cfg.Bodies.Restitution,
		Group:       collision.NamePlane,
		Color:       planeColor,
	}, false)
	if err != nil {
		return nil, fmt.Errorf("build plane: %w", err)
	}

	camera := dynamo.NewPose(cfg.Camera.Position)
	broomPos := camera.Transform(cfg.Broom.Offset)
	s.Broom, err = reg.Adopt(factory.BodySpec{
		Label:  "broom",
		Shape:  physics.Sphere(1),
		Pose:   dynamo.NewPose(broomPos),
		Group:  collision.NameA,
		Mask:   []string{collision.NamePlane},
		Hidden: true,
	}, true)
	if err != nil {
		return nil, fmt.Errorf("build broom: %w", err)
	}

	half := cfg.Broom.BlockHalfExtents
	pivot := mgl64.Vec3{-2 * half[0] * pivotFraction, 0, 0}
	s.Block, err = reg.Adopt(factory.BodySpec{
		Label:          "block",
		Shape:          physics.Box(half),
		Pose:           dynamo.NewPose(broomPos.Sub(pivot)),
		Mass:           cfg.Broom.BlockMass,
		Restitution:    cfg.Bodies.Restitution,
		Group:          collision.NameB,
		Mask:           []string{collision.NamePlane, collision.NameB},
		LinearDamping:  cfg.Broom.Damping,
		AngularDamping: cfg.Broom.Damping,
		Color:          blockColor,
	}, false)
	if err != nil {
		return nil, fmt.Errorf("build broom block: %w", err)
	}

	for _, e := range []registry.Entry{s.Plane, s.Block} {
		if err := reg.Pin(e.Body); err != nil {
			return nil, err
		}
	}

	up := mgl64.Vec3{0, 1, 0}
	s.Hinge, err = hinges.CreateHinge(physics.HingeDef{
		BodyA:  s.Broom.Body,
		BodyB:  s.Block.Body,
		PivotB: pivot,
		AxisA:  up,
		AxisB:  up,
	}, false)
	if err != nil {
		return nil, fmt.Errorf("build broom hinge: %w", err)
	}
	return s, nil
}
