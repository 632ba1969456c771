package dynamo

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// BodyID identifies a rigid body for its whole lifetime. Zero is never issued.
type BodyID uint64

// ConstraintID identifies a constraint for its whole lifetime. Zero is never issued.
type ConstraintID uint64

// Pose is a rigid transform: rotate by Orientation, then translate by Position.
type Pose struct {
	Position    mgl64.Vec3
	Orientation mgl64.Quat
}

func NewPose(position mgl64.Vec3) Pose {
	return Pose{Position: position, Orientation: mgl64.QuatIdent()}
}

func IdentityPose() Pose {
	return NewPose(mgl64.Vec3{})
}

// Transform maps a body-local point into world space.
func (p Pose) Transform(local mgl64.Vec3) mgl64.Vec3 {
	return p.Position.Add(p.Orientation.Rotate(local))
}

// InverseTransform maps a world-space point into body-local space.
func (p Pose) InverseTransform(world mgl64.Vec3) mgl64.Vec3 {
	return p.Orientation.Conjugate().Rotate(world.Sub(p.Position))
}

// IsValid reports whether every component is finite.
func (p Pose) IsValid() bool {
	vals := [7]float64{
		p.Position[0], p.Position[1], p.Position[2],
		p.Orientation.W, p.Orientation.V[0], p.Orientation.V[1], p.Orientation.V[2],
	}
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Stats are the object counters shown by the counter display.
type Stats struct {
	InScene        int `json:"in_scene"`
	TotalSpawned   int `json:"total_spawned"`
	TotalDestroyed int `json:"total_destroyed"`
}
