package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/san-kum/broomsim/internal/collision"
	"github.com/san-kum/broomsim/internal/dynamo"
)

// BodyDef describes a body to add to the world.
type BodyDef struct {
	Shape          Shape
	Pose           dynamo.Pose
	Mass           float64 // 0 makes the body static or kinematic
	Restitution    float64
	Friction       float64
	LinearDamping  float64
	AngularDamping float64
	Filter         collision.Filter
	Margin         float64 // 0 means DefaultMargin
}

// BodyState is a read-only snapshot of a body.
type BodyState struct {
	ID              dynamo.BodyID
	Shape           Shape
	Pose            dynamo.Pose
	LinearVelocity  mgl64.Vec3
	AngularVelocity mgl64.Vec3
	Mass            float64
	Restitution     float64
	Friction        float64
	LinearDamping   float64
	AngularDamping  float64
	Filter          collision.Filter
	Margin          float64
}

type rigidBody struct {
	id     dynamo.BodyID
	shape  Shape
	filter collision.Filter
	margin float64

	mass, invMass   float64
	invInertiaLocal mgl64.Vec3
	invInertiaWorld mgl64.Mat3

	pose           dynamo.Pose
	linVel, angVel mgl64.Vec3

	restitution, friction  float64
	linDamping, angDamping float64

	aabb   AABB
	pad    float64
	joints int

	// Pending MoveKinematic target, reached at the end of the next Step.
	target    dynamo.Pose
	hasTarget bool
}

func newRigidBody(id dynamo.BodyID, def BodyDef) *rigidBody {
	b := &rigidBody{
		id:          id,
		shape:       def.Shape,
		filter:      def.Filter,
		margin:      def.Margin,
		mass:        def.Mass,
		pose:        def.Pose,
		restitution: def.Restitution,
		friction:    def.Friction,
		linDamping:  clamp01(def.LinearDamping),
		angDamping:  clamp01(def.AngularDamping),
	}
	if b.margin <= 0 {
		b.margin = DefaultMargin
	}
	if b.pose.Orientation == (mgl64.Quat{}) {
		b.pose.Orientation = mgl64.QuatIdent()
	}
	b.pose.Orientation = b.pose.Orientation.Normalize()

	if def.Mass > 0 {
		b.invMass = 1 / def.Mass
		inertia := def.Shape.LocalInertia(def.Mass)
		for i := range inertia {
			b.invInertiaLocal[i] = 1 / math.Max(inertia[i], minInertia)
		}
	}
	b.updateInertia()
	b.updateBounds(0)
	return b
}

func (b *rigidBody) isDynamic() bool { return b.invMass > 0 }

// updateInertia rotates the local inverse inertia into world space.
func (b *rigidBody) updateInertia() {
	if !b.isDynamic() {
		b.invInertiaWorld = mgl64.Mat3{}
		return
	}
	r := b.pose.Orientation.Mat4().Mat3()
	b.invInertiaWorld = r.Mul3(mgl64.Diag3(b.invInertiaLocal)).Mul3(r.Transpose())
}

// updateBounds refreshes the AABB, padded by the margin and by how far the
// body can travel during h.
func (b *rigidBody) updateBounds(h float64) {
	travel := (b.linVel.Len() + b.angVel.Len()*b.shape.BoundingRadius()) * h
	b.pad = b.margin + travel
	b.aabb = b.shape.bounds(b.pose, b.pad)
}

func (b *rigidBody) velocityAt(r mgl64.Vec3) mgl64.Vec3 {
	return b.linVel.Add(b.angVel.Cross(r))
}

func (b *rigidBody) applyImpulse(p, r mgl64.Vec3) {
	if !b.isDynamic() {
		return
	}
	b.linVel = b.linVel.Add(p.Mul(b.invMass))
	b.angVel = b.angVel.Add(b.invInertiaWorld.Mul3x1(r.Cross(p)))
}

func (b *rigidBody) applyAngularImpulse(l mgl64.Vec3) {
	if !b.isDynamic() {
		return
	}
	b.angVel = b.angVel.Add(b.invInertiaWorld.Mul3x1(l))
}

func (b *rigidBody) state() BodyState {
	return BodyState{
		ID:              b.id,
		Shape:           b.shape,
		Pose:            b.pose,
		LinearVelocity:  b.linVel,
		AngularVelocity: b.angVel,
		Mass:            b.mass,
		Restitution:     b.restitution,
		Friction:        b.friction,
		LinearDamping:   b.linDamping,
		AngularDamping:  b.angDamping,
		Filter:          b.filter,
		Margin:          b.margin,
	}
}

// kineticEnergy is zero for static and kinematic bodies.
func (b *rigidBody) kineticEnergy() float64 {
	if !b.isDynamic() {
		return 0
	}
	lin := 0.5 * b.mass * b.linVel.Dot(b.linVel)
	r := b.pose.Orientation.Mat4().Mat3()
	wLocal := r.Transpose().Mul3x1(b.angVel)
	var rot float64
	for i := 0; i < 3; i++ {
		rot += wLocal[i] * wLocal[i] / b.invInertiaLocal[i]
	}
	return lin + 0.5*rot
}

func clamp01(v float64) float64 {
	return math.Min(math.Max(v, 0), 1)
}
