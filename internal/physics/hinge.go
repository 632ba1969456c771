package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/san-kum/broomsim/internal/dynamo"
)

// Motor drives the hinge towards a relative angular velocity about its axis
// using at most MaxImpulse per sub-step.
type Motor struct {
	TargetVelocity float64
	MaxImpulse     float64
}

// Limits bounds the hinge angle, in radians.
type Limits struct {
	Lower, Upper float64
}

// HingeDef connects two bodies at a shared pivot so that they only rotate
// relative to each other about one axis. Pivots and axes are in each body's
// local frame.
type HingeDef struct {
	BodyA, BodyB   dynamo.BodyID
	PivotA, PivotB mgl64.Vec3
	AxisA, AxisB   mgl64.Vec3
	Motor          *Motor
	Limits         *Limits
}

type hinge struct {
	id                dynamo.ConstraintID
	a, b              *rigidBody
	pivotA, pivotB    mgl64.Vec3
	axisA, axisB      mgl64.Vec3
	refA, refB        mgl64.Vec3
	disableCollisions bool

	motorEnabled    bool
	motorTarget     float64
	motorMaxImpulse float64

	limitsEnabled bool
	lower, upper  float64

	rA, rB       mgl64.Vec3
	axis         mgl64.Vec3
	perp1, perp2 mgl64.Vec3
	pointMass    mgl64.Mat3
	perpMass1    float64
	perpMass2    float64
	axialMass    float64

	pointError mgl64.Vec3
	perpError1 float64
	perpError2 float64
	angle      float64

	pointImpulse   mgl64.Vec3
	angularImpulse mgl64.Vec3
	motorImpulse   float64
	lowerImpulse   float64
	upperImpulse   float64
}

func newHinge(id dynamo.ConstraintID, a, b *rigidBody, def HingeDef, disableCollisions bool) *hinge {
	j := &hinge{
		id:                id,
		a:                 a,
		b:                 b,
		pivotA:            def.PivotA,
		pivotB:            def.PivotB,
		axisA:             def.AxisA.Normalize(),
		axisB:             def.AxisB.Normalize(),
		disableCollisions: disableCollisions,
	}
	j.refA, _ = orthonormalBasis(j.axisA)
	j.refB = rotationBetween(j.axisA, j.axisB).Rotate(j.refA)
	if def.Motor != nil {
		j.enableMotor(*def.Motor)
	}
	if def.Limits != nil {
		j.setLimits(*def.Limits)
	}
	return j
}

func (j *hinge) enableMotor(m Motor) {
	j.motorEnabled = true
	j.motorTarget = m.TargetVelocity
	j.motorMaxImpulse = m.MaxImpulse
}

func (j *hinge) disableMotor() {
	j.motorEnabled = false
	j.motorImpulse = 0
}

func (j *hinge) setLimits(l Limits) {
	j.limitsEnabled = true
	j.lower, j.upper = l.Lower, l.Upper
}

func (j *hinge) clearLimits() {
	j.limitsEnabled = false
	j.lowerImpulse, j.upperImpulse = 0, 0
}

// currentAngle measures the rotation of b relative to a about the hinge
// axis, in (-pi, pi].
func (j *hinge) currentAngle() float64 {
	axis := j.a.pose.Orientation.Rotate(j.axisA)
	ra := j.a.pose.Orientation.Rotate(j.refA)
	rb := j.b.pose.Orientation.Rotate(j.refB)
	return math.Atan2(ra.Cross(rb).Dot(axis), ra.Dot(rb))
}

// refresh recomputes the position errors from the current poses.
func (j *hinge) refresh() {
	a, b := j.a, j.b
	j.rA = a.pose.Orientation.Rotate(j.pivotA)
	j.rB = b.pose.Orientation.Rotate(j.pivotB)
	j.pointError = b.pose.Position.Add(j.rB).Sub(a.pose.Position.Add(j.rA))

	misalign := j.axis.Cross(b.pose.Orientation.Rotate(j.axisB))
	j.perpError1 = misalign.Dot(j.perp1)
	j.perpError2 = misalign.Dot(j.perp2)
	j.angle = j.currentAngle()
}

func (j *hinge) prepare() {
	a, b := j.a, j.b
	j.axis = a.pose.Orientation.Rotate(j.axisA)
	j.perp1, j.perp2 = orthonormalBasis(j.axis)
	j.refresh()

	sA, sB := skew(j.rA), skew(j.rB)
	k := mgl64.Ident3().Mul(a.invMass + b.invMass).
		Sub(sA.Mul3(a.invInertiaWorld).Mul3(sA)).
		Sub(sB.Mul3(b.invInertiaWorld).Mul3(sB))
	if math.Abs(k.Det()) > 1e-12 {
		j.pointMass = k.Inv()
	} else {
		j.pointMass = mgl64.Mat3{}
	}

	invI := a.invInertiaWorld.Add(b.invInertiaWorld)
	j.perpMass1 = invert(j.perp1.Dot(invI.Mul3x1(j.perp1)))
	j.perpMass2 = invert(j.perp2.Dot(invI.Mul3x1(j.perp2)))
	j.axialMass = invert(j.axis.Dot(invI.Mul3x1(j.axis)))

	// The perpendicular basis moves with body a; keep only the part of the
	// cached angular impulse that still acts across the axis.
	j.angularImpulse = j.perp1.Mul(j.angularImpulse.Dot(j.perp1)).
		Add(j.perp2.Mul(j.angularImpulse.Dot(j.perp2)))
	if !j.motorEnabled {
		j.motorImpulse = 0
	}
	if !j.limitsEnabled {
		j.lowerImpulse, j.upperImpulse = 0, 0
	}
}

func (j *hinge) warmStart() {
	j.a.applyImpulse(j.pointImpulse.Mul(-1), j.rA)
	j.b.applyImpulse(j.pointImpulse, j.rB)

	axial := j.motorImpulse + j.lowerImpulse - j.upperImpulse
	l := j.angularImpulse.Add(j.axis.Mul(axial))
	j.a.applyAngularImpulse(l.Mul(-1))
	j.b.applyAngularImpulse(l)
}

func (j *hinge) applyAngular(l mgl64.Vec3) {
	j.a.applyAngularImpulse(l.Mul(-1))
	j.b.applyAngularImpulse(l)
}

func (j *hinge) solve(invH float64, useBias bool) {
	a, b := j.a, j.b
	beta := 0.0
	if useBias {
		beta = baumgarte * invH
	}

	if j.motorEnabled {
		cdot := b.angVel.Sub(a.angVel).Dot(j.axis)
		impulse := -j.axialMass * (cdot - j.motorTarget)
		old := j.motorImpulse
		j.motorImpulse = mgl64.Clamp(old+impulse, -j.motorMaxImpulse, j.motorMaxImpulse)
		j.applyAngular(j.axis.Mul(j.motorImpulse - old))
	}

	cdot := b.velocityAt(j.rB).Sub(a.velocityAt(j.rA))
	p := j.pointMass.Mul3x1(cdot.Add(j.pointError.Mul(beta)).Mul(-1))
	j.pointImpulse = j.pointImpulse.Add(p)
	a.applyImpulse(p.Mul(-1), j.rA)
	b.applyImpulse(p, j.rB)

	for _, row := range [2]struct {
		dir  mgl64.Vec3
		mass float64
		err  float64
	}{
		{j.perp1, j.perpMass1, j.perpError1},
		{j.perp2, j.perpMass2, j.perpError2},
	} {
		cd := b.angVel.Sub(a.angVel).Dot(row.dir)
		l := row.dir.Mul(-row.mass * (cd + beta*row.err))
		j.angularImpulse = j.angularImpulse.Add(l)
		j.applyAngular(l)
	}

	if !j.limitsEnabled {
		return
	}
	limitBias := func(c float64) float64 {
		if c > 0 {
			return c * invH
		}
		return beta * c
	}

	{
		cd := b.angVel.Sub(a.angVel).Dot(j.axis)
		impulse := -j.axialMass * (cd + limitBias(j.angle-j.lower))
		total := math.Max(j.lowerImpulse+impulse, 0)
		impulse = total - j.lowerImpulse
		j.lowerImpulse = total
		j.applyAngular(j.axis.Mul(impulse))
	}
	{
		cd := -b.angVel.Sub(a.angVel).Dot(j.axis)
		impulse := -j.axialMass * (cd + limitBias(j.upper-j.angle))
		total := math.Max(j.upperImpulse+impulse, 0)
		impulse = total - j.upperImpulse
		j.upperImpulse = total
		j.applyAngular(j.axis.Mul(-impulse))
	}
}
