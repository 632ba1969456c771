package control

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/san-kum/broomsim/internal/dynamo"
)

// Camera is anything that yields a pose once per frame.
type Camera interface {
	Update(dt float64)
	Pose() dynamo.Pose
}

// DefaultPosition is where the camera starts, looking at the origin along -Z.
var DefaultPosition = mgl64.Vec3{0, 5, 70}

// Fixed never moves.
type Fixed struct {
	pose dynamo.Pose
}

func NewFixed(pose dynamo.Pose) *Fixed {
	return &Fixed{pose: pose}
}

func (f *Fixed) Update(float64) {}

func (f *Fixed) Pose() dynamo.Pose { return f.pose }

// yawPitch builds an orientation from yaw about +Y then pitch about the
// rotated +X. Angles are radians.
func yawPitch(yaw, pitch float64) mgl64.Quat {
	qy := mgl64.QuatRotate(yaw, mgl64.Vec3{0, 1, 0})
	qp := mgl64.QuatRotate(pitch, mgl64.Vec3{1, 0, 0})
	return qy.Mul(qp).Normalize()
}

// Orbit circles a centre at a fixed radius and height, always facing it.
type Orbit struct {
	Center  mgl64.Vec3
	Radius  float64
	Height  float64
	Speed   float64 // rad/s
	angle   float64
	elapsed float64
}

func NewOrbit(center mgl64.Vec3, radius, height, speed float64) *Orbit {
	return &Orbit{Center: center, Radius: radius, Height: height, Speed: speed}
}

func (o *Orbit) Update(dt float64) {
	if dt <= 0 {
		return
	}
	o.elapsed += dt
	o.angle = math.Mod(o.Speed*o.elapsed, 2*math.Pi)
}

func (o *Orbit) Pose() dynamo.Pose {
	pos := mgl64.Vec3{
		o.Center[0] + o.Radius*math.Sin(o.angle),
		o.Height,
		o.Center[2] + o.Radius*math.Cos(o.angle),
	}
	// At angle 0 the camera sits on +Z and looks down -Z, which is yaw 0.
	return dynamo.Pose{Position: pos, Orientation: yawPitch(o.angle, 0)}
}
