package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

const (
	baumgarte            = 0.2
	linearSlop           = 0.005
	maxBiasVelocity      = 4.0
	restitutionThreshold = 1.0
	matchTolerance       = 0.1
)

type solverPoint struct {
	rA, rB     mgl64.Vec3
	localA     mgl64.Vec3
	separation float64

	normalMass, tangentMass1, tangentMass2 float64

	normalImpulse, tangentImpulse1, tangentImpulse2 float64
	maxNormalImpulse                                float64
	relativeVelocity                                float64
}

// contactConstraint is the solver view of one manifold.
type contactConstraint struct {
	a, b                       *rigidBody
	normal, tangent1, tangent2 mgl64.Vec3
	friction, restitution      float64
	posA, posB                 mgl64.Vec3
	points                     [maxManifoldPoints]solverPoint
	count                      int
}

type cachedPoint struct {
	localA                                          mgl64.Vec3
	normalImpulse, tangentImpulse1, tangentImpulse2 float64
}

// cachedManifold carries impulses to the next sub-step for warm starting.
type cachedManifold struct {
	points [maxManifoldPoints]cachedPoint
	count  int
}

func (c *contactConstraint) prepare(m *manifold, prev *cachedManifold) {
	a, b := m.a, m.b
	c.a, c.b = a, b
	c.normal = m.normal
	c.tangent1, c.tangent2 = orthonormalBasis(m.normal)
	c.friction = a.friction * b.friction
	c.restitution = a.restitution * b.restitution
	c.posA, c.posB = a.pose.Position, b.pose.Position
	c.count = m.count

	for i := 0; i < m.count; i++ {
		cp := m.points[i]
		p := &c.points[i]
		*p = solverPoint{
			rA:         cp.point.Sub(a.pose.Position),
			rB:         cp.point.Sub(b.pose.Position),
			localA:     a.pose.InverseTransform(cp.point),
			separation: cp.separation,
		}
		p.normalMass = effectiveMass(a, b, p.rA, p.rB, c.normal)
		p.tangentMass1 = effectiveMass(a, b, p.rA, p.rB, c.tangent1)
		p.tangentMass2 = effectiveMass(a, b, p.rA, p.rB, c.tangent2)
		p.relativeVelocity = c.normal.Dot(b.velocityAt(p.rB).Sub(a.velocityAt(p.rA)))

		if prev == nil {
			continue
		}
		for j := 0; j < prev.count; j++ {
			old := prev.points[j]
			if old.localA.Sub(p.localA).LenSqr() < matchTolerance*matchTolerance {
				p.normalImpulse = old.normalImpulse
				p.tangentImpulse1 = old.tangentImpulse1
				p.tangentImpulse2 = old.tangentImpulse2
				break
			}
		}
	}
}

func effectiveMass(a, b *rigidBody, rA, rB, n mgl64.Vec3) float64 {
	k := a.invMass + b.invMass
	rnA := rA.Cross(n)
	rnB := rB.Cross(n)
	k += rnA.Dot(a.invInertiaWorld.Mul3x1(rnA)) + rnB.Dot(b.invInertiaWorld.Mul3x1(rnB))
	if k <= 0 {
		return 0
	}
	return 1 / k
}

func (c *contactConstraint) apply(p *solverPoint, impulse mgl64.Vec3) {
	c.a.applyImpulse(impulse.Mul(-1), p.rA)
	c.b.applyImpulse(impulse, p.rB)
}

func (c *contactConstraint) warmStart() {
	for i := 0; i < c.count; i++ {
		p := &c.points[i]
		impulse := c.normal.Mul(p.normalImpulse).
			Add(c.tangent1.Mul(p.tangentImpulse1)).
			Add(c.tangent2.Mul(p.tangentImpulse2))
		c.apply(p, impulse)
	}
}

// solve runs one sequential-impulse pass. useBias enables the soft position
// correction; speculative separation is always honoured.
func (c *contactConstraint) solve(invH float64, useBias bool) {
	a, b := c.a, c.b
	moved := b.pose.Position.Sub(c.posB).Sub(a.pose.Position.Sub(c.posA)).Dot(c.normal)

	for i := 0; i < c.count; i++ {
		p := &c.points[i]
		s := p.separation + moved

		var bias float64
		switch {
		case s > 0:
			bias = s * invH
		case useBias:
			bias = math.Max(baumgarte*invH*math.Min(0, s+linearSlop), -maxBiasVelocity)
		}

		vn := c.normal.Dot(b.velocityAt(p.rB).Sub(a.velocityAt(p.rA)))
		impulse := -p.normalMass * (vn + bias)
		total := math.Max(p.normalImpulse+impulse, 0)
		impulse = total - p.normalImpulse
		p.normalImpulse = total
		p.maxNormalImpulse = math.Max(p.maxNormalImpulse, impulse)
		c.apply(p, c.normal.Mul(impulse))
	}

	for i := 0; i < c.count; i++ {
		p := &c.points[i]
		limit := c.friction * p.normalImpulse

		vt := c.tangent1.Dot(b.velocityAt(p.rB).Sub(a.velocityAt(p.rA)))
		total := mgl64.Clamp(p.tangentImpulse1-p.tangentMass1*vt, -limit, limit)
		impulse := total - p.tangentImpulse1
		p.tangentImpulse1 = total
		c.apply(p, c.tangent1.Mul(impulse))

		vt = c.tangent2.Dot(b.velocityAt(p.rB).Sub(a.velocityAt(p.rA)))
		total = mgl64.Clamp(p.tangentImpulse2-p.tangentMass2*vt, -limit, limit)
		impulse = total - p.tangentImpulse2
		p.tangentImpulse2 = total
		c.apply(p, c.tangent2.Mul(impulse))
	}
}

// applyRestitution bounces points that approached faster than the
// threshold and actually took load this sub-step.
func (c *contactConstraint) applyRestitution() {
	if c.restitution == 0 {
		return
	}
	a, b := c.a, c.b
	for i := 0; i < c.count; i++ {
		p := &c.points[i]
		if p.relativeVelocity > -restitutionThreshold || p.maxNormalImpulse == 0 {
			continue
		}
		vn := c.normal.Dot(b.velocityAt(p.rB).Sub(a.velocityAt(p.rA)))
		impulse := -p.normalMass * (vn + c.restitution*p.relativeVelocity)
		total := math.Max(p.normalImpulse+impulse, 0)
		impulse = total - p.normalImpulse
		p.normalImpulse = total
		p.maxNormalImpulse = math.Max(p.maxNormalImpulse, impulse)
		c.apply(p, c.normal.Mul(impulse))
	}
}

func (c *contactConstraint) cached() cachedManifold {
	var out cachedManifold
	out.count = c.count
	for i := 0; i < c.count; i++ {
		p := c.points[i]
		out.points[i] = cachedPoint{
			localA:          p.localA,
			normalImpulse:   p.normalImpulse,
			tangentImpulse1: p.tangentImpulse1,
			tangentImpulse2: p.tangentImpulse2,
		}
	}
	return out
}
