// Package driver positions a kinematic body relative to an external pose,
// typically the camera.
package driver

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/san-kum/broomsim/internal/dynamo"
)

// DefaultOffset places the body five units in front of a camera looking
// down -Z.
var DefaultOffset = mgl64.Vec3{0, 0, -5}

type World interface {
	MoveKinematic(id dynamo.BodyID, target dynamo.Pose, dt float64) error
	SetPose(id dynamo.BodyID, p dynamo.Pose) error
}

type Driver struct {
	world  World
	body   dynamo.BodyID
	offset mgl64.Vec3
	align  bool
	placed bool
}

func New(world World, body dynamo.BodyID, offset mgl64.Vec3, alignOrientation bool) *Driver {
	return &Driver{world: world, body: body, offset: offset, align: alignOrientation}
}

func (d *Driver) Body() dynamo.BodyID { return d.body }

// Target computes where the body should be for the given controller pose.
func (d *Driver) Target(controller dynamo.Pose) dynamo.Pose {
	q := controller.Orientation
	if q == (mgl64.Quat{}) {
		q = mgl64.QuatIdent()
	}
	target := dynamo.Pose{
		Position:    controller.Position.Add(q.Rotate(d.offset)),
		Orientation: mgl64.QuatIdent(),
	}
	if d.align {
		target.Orientation = q.Normalize()
	}
	return target
}

// Drive moves the body to its target over dt. The first call teleports so
// the body does not sweep through the scene from its build position.
func (d *Driver) Drive(controller dynamo.Pose, dt float64) error {
	if !controller.IsValid() {
		return fmt.Errorf("controller pose: %w", dynamo.ErrConfiguration)
	}
	target := d.Target(controller)
	if !d.placed || dt <= 0 {
		if err := d.world.SetPose(d.body, target); err != nil {
			return fmt.Errorf("place driven body: %w", err)
		}
		d.placed = true
		return nil
	}
	if err := d.world.MoveKinematic(d.body, target, dt); err != nil {
		return fmt.Errorf("drive body: %w", err)
	}
	return nil
}
