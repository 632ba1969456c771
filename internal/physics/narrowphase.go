package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

const (
	maxManifoldPoints = 4

	// Face axes win over edge axes and A's faces over B's unless the other
	// candidate separates by a clear margin. Keeps resting boxes stable.
	axisRelTol = 0.95
	axisAbsTol = 0.01
)

type contactPoint struct {
	point      mgl64.Vec3 // world space, midway between the two surfaces
	separation float64    // negative when penetrating
}

// manifold is the contact set of one body pair. normal points from a to b.
type manifold struct {
	a, b   *rigidBody
	normal mgl64.Vec3
	points [maxManifoldPoints]contactPoint
	count  int
}

func (m *manifold) add(p mgl64.Vec3, sep float64) {
	if m.count == maxManifoldPoints {
		return
	}
	m.points[m.count] = contactPoint{point: p, separation: sep}
	m.count++
}

func (m *manifold) deepest() float64 {
	d := 0.0
	for i := 0; i < m.count; i++ {
		d = math.Max(d, -m.points[i].separation)
	}
	return d
}

// collide fills m for the pair. Features closer than speculative produce
// contacts even while separated.
func collide(a, b *rigidBody, speculative float64, m *manifold) bool {
	m.a, m.b, m.count = a, b, 0
	switch {
	case a.shape.Kind == ShapeSphere && b.shape.Kind == ShapeSphere:
		return collideSpheres(a, b, speculative, m)
	case a.shape.Kind == ShapeBox && b.shape.Kind == ShapeSphere:
		return collideBoxSphere(a, b, speculative, m, false)
	case a.shape.Kind == ShapeSphere && b.shape.Kind == ShapeBox:
		return collideBoxSphere(b, a, speculative, m, true)
	default:
		return collideBoxes(a, b, speculative, m)
	}
}

func collideSpheres(a, b *rigidBody, speculative float64, m *manifold) bool {
	d := b.pose.Position.Sub(a.pose.Position)
	dist := d.Len()
	ra, rb := a.shape.Radius, b.shape.Radius
	sep := dist - ra - rb
	if sep > speculative {
		return false
	}

	n := mgl64.Vec3{0, 1, 0}
	if dist > 1e-9 {
		n = d.Mul(1 / dist)
	}
	pa := a.pose.Position.Add(n.Mul(ra))
	pb := b.pose.Position.Sub(n.Mul(rb))

	m.normal = n
	m.add(pa.Add(pb).Mul(0.5), sep)
	return true
}

// collideBoxSphere computes the box→sphere contact. flipped reports that the
// manifold's a is the sphere, so the normal is reversed.
func collideBoxSphere(box, sphere *rigidBody, speculative float64, m *manifold, flipped bool) bool {
	h := box.shape.HalfExtents
	r := sphere.shape.Radius
	local := box.pose.InverseTransform(sphere.pose.Position)

	var clamped mgl64.Vec3
	for i := 0; i < 3; i++ {
		clamped[i] = mgl64.Clamp(local[i], -h[i], h[i])
	}

	var nLocal, surface mgl64.Vec3
	var sep float64
	if clamped == local {
		// Centre inside the box: push out through the nearest face.
		axis, depth := 0, math.Inf(1)
		for i := 0; i < 3; i++ {
			if d := h[i] - math.Abs(local[i]); d < depth {
				axis, depth = i, d
			}
		}
		sign := 1.0
		if local[axis] < 0 {
			sign = -1
		}
		nLocal[axis] = sign
		surface = local
		surface[axis] = sign * h[axis]
		sep = -depth - r
	} else {
		d := local.Sub(clamped)
		dist := d.Len()
		nLocal = d.Mul(1 / dist)
		surface = clamped
		sep = dist - r
	}
	if sep > speculative {
		return false
	}

	n := box.pose.Orientation.Rotate(nLocal)
	onBox := box.pose.Transform(surface)
	onSphere := sphere.pose.Position.Sub(n.Mul(r))
	if flipped {
		n = n.Mul(-1)
	}
	m.normal = n
	m.add(onBox.Add(onSphere).Mul(0.5), sep)
	return true
}

func boxAxes(b *rigidBody) [3]mgl64.Vec3 {
	q := b.pose.Orientation
	return [3]mgl64.Vec3{
		q.Rotate(mgl64.Vec3{1, 0, 0}),
		q.Rotate(mgl64.Vec3{0, 1, 0}),
		q.Rotate(mgl64.Vec3{0, 0, 1}),
	}
}

func projectedRadius(axes [3]mgl64.Vec3, h, n mgl64.Vec3) float64 {
	return h[0]*math.Abs(axes[0].Dot(n)) +
		h[1]*math.Abs(axes[1].Dot(n)) +
		h[2]*math.Abs(axes[2].Dot(n))
}

// collideBoxes runs SAT over the 15 candidate axes, then clips the incident
// face against the reference face, or joins the two closest edges.
func collideBoxes(a, b *rigidBody, speculative float64, m *manifold) bool {
	axA, axB := boxAxes(a), boxAxes(b)
	hA, hB := a.shape.HalfExtents, b.shape.HalfExtents
	d := b.pose.Position.Sub(a.pose.Position)

	sepA, faceA := math.Inf(-1), 0
	for i := 0; i < 3; i++ {
		s := math.Abs(d.Dot(axA[i])) - hA[i] - projectedRadius(axB, hB, axA[i])
		if s > speculative {
			return false
		}
		if s > sepA {
			sepA, faceA = s, i
		}
	}

	sepB, faceB := math.Inf(-1), 0
	for i := 0; i < 3; i++ {
		s := math.Abs(d.Dot(axB[i])) - hB[i] - projectedRadius(axA, hA, axB[i])
		if s > speculative {
			return false
		}
		if s > sepB {
			sepB, faceB = s, i
		}
	}

	sepE, edgeA, edgeB := math.Inf(-1), -1, -1
	var edgeN mgl64.Vec3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			n := axA[i].Cross(axB[j])
			l := n.Len()
			if l < 1e-6 {
				continue
			}
			n = n.Mul(1 / l)
			s := math.Abs(d.Dot(n)) - projectedRadius(axA, hA, n) - projectedRadius(axB, hB, n)
			if s > speculative {
				return false
			}
			if s > sepE {
				sepE, edgeA, edgeB, edgeN = s, i, j, n
			}
		}
	}

	useB := sepB > axisRelTol*sepA+axisAbsTol
	best := sepA
	if useB {
		best = sepB
	}
	if edgeA >= 0 && sepE > axisRelTol*best+axisAbsTol {
		if d.Dot(edgeN) < 0 {
			edgeN = edgeN.Mul(-1)
		}
		return edgeContact(a, b, axA, axB, edgeA, edgeB, edgeN, speculative, m)
	}

	if useB {
		n := axB[faceB]
		if d.Dot(n) < 0 {
			n = n.Mul(-1)
		}
		m.normal = n
		return clipFaces(b, a, axB, axA, faceB, n.Mul(-1), speculative, m)
	}
	n := axA[faceA]
	if d.Dot(n) < 0 {
		n = n.Mul(-1)
	}
	m.normal = n
	return clipFaces(a, b, axA, axB, faceA, n, speculative, m)
}

// clipFaces clips the incident face of inc against the side planes of ref's
// face along refNormal (which points from ref towards inc).
func clipFaces(ref, inc *rigidBody, axRef, axInc [3]mgl64.Vec3, face int, refNormal mgl64.Vec3, speculative float64, m *manifold) bool {
	hR, hI := ref.shape.HalfExtents, inc.shape.HalfExtents
	refCenter := ref.pose.Position.Add(refNormal.Mul(hR[face]))

	incFace, align := 0, -1.0
	for k := 0; k < 3; k++ {
		if v := math.Abs(axInc[k].Dot(refNormal)); v > align {
			incFace, align = k, v
		}
	}
	incNormal := axInc[incFace]
	if incNormal.Dot(refNormal) > 0 {
		incNormal = incNormal.Mul(-1)
	}
	c := inc.pose.Position.Add(incNormal.Mul(hI[incFace]))
	iu, iv := (incFace+1)%3, (incFace+2)%3
	eu := axInc[iu].Mul(hI[iu])
	ev := axInc[iv].Mul(hI[iv])

	var bufA, bufB [16]mgl64.Vec3
	poly := append(bufA[:0],
		c.Add(eu).Add(ev),
		c.Sub(eu).Add(ev),
		c.Sub(eu).Sub(ev),
		c.Add(eu).Sub(ev),
	)
	out := bufB[:0]

	for _, k := range [2]int{(face + 1) % 3, (face + 2) % 3} {
		for _, sign := range [2]float64{1, -1} {
			pn := axRef[k].Mul(sign)
			out = clipPolygon(poly, pn, hR[k]+pn.Dot(ref.pose.Position), out[:0])
			poly, out = out, poly
			if len(poly) == 0 {
				return false
			}
		}
	}

	var found [16]contactPoint
	n := 0
	for _, p := range poly {
		sep := p.Sub(refCenter).Dot(refNormal)
		if sep > speculative {
			continue
		}
		found[n] = contactPoint{point: p.Sub(refNormal.Mul(sep * 0.5)), separation: sep}
		n++
	}
	for _, cp := range reducePoints(found[:n], refNormal) {
		m.add(cp.point, cp.separation)
	}
	return m.count > 0
}

// clipPolygon keeps the part of poly with dot(p, n) <= offset.
func clipPolygon(poly []mgl64.Vec3, n mgl64.Vec3, offset float64, out []mgl64.Vec3) []mgl64.Vec3 {
	for i, a := range poly {
		b := poly[(i+1)%len(poly)]
		da := a.Dot(n) - offset
		db := b.Dot(n) - offset
		if da <= 0 {
			out = append(out, a)
		}
		if (da <= 0) != (db <= 0) {
			t := da / (da - db)
			out = append(out, a.Add(b.Sub(a).Mul(t)))
		}
	}
	return out
}

// reducePoints keeps at most four points: the deepest, the one farthest from
// it, and the two spanning the largest area on either side of that segment.
func reducePoints(pts []contactPoint, normal mgl64.Vec3) []contactPoint {
	if len(pts) <= maxManifoldPoints {
		return pts
	}

	i0 := 0
	for i := range pts {
		if pts[i].separation < pts[i0].separation {
			i0 = i
		}
	}
	p0 := pts[i0].point

	i1, far := i0, -1.0
	for i := range pts {
		if d := pts[i].point.Sub(p0).LenSqr(); d > far {
			i1, far = i, d
		}
	}
	edge := pts[i1].point.Sub(p0)

	i2, i3 := i0, i0
	hi, lo := 0.0, 0.0
	for i := range pts {
		area := edge.Cross(pts[i].point.Sub(p0)).Dot(normal)
		if area > hi {
			i2, hi = i, area
		}
		if area < lo {
			i3, lo = i, area
		}
	}

	out := make([]contactPoint, 0, maxManifoldPoints)
	seen := map[int]bool{}
	for _, i := range [4]int{i0, i1, i2, i3} {
		if !seen[i] {
			seen[i] = true
			out = append(out, pts[i])
		}
	}
	return out
}

// edgeContact joins the edge of a parallel to axA[i] that lies furthest
// along n with the edge of b parallel to axB[j] that lies furthest along -n.
func edgeContact(a, b *rigidBody, axA, axB [3]mgl64.Vec3, i, j int, n mgl64.Vec3, speculative float64, m *manifold) bool {
	hA, hB := a.shape.HalfExtents, b.shape.HalfExtents

	pA := a.pose.Position
	for k := 0; k < 3; k++ {
		if k != i {
			pA = pA.Add(axA[k].Mul(hA[k] * signOf(axA[k].Dot(n))))
		}
	}
	pB := b.pose.Position
	for k := 0; k < 3; k++ {
		if k != j {
			pB = pB.Add(axB[k].Mul(-hB[k] * signOf(axB[k].Dot(n))))
		}
	}

	ca, cb := closestOnSegments(pA, axA[i], hA[i], pB, axB[j], hB[j])
	sep := cb.Sub(ca).Dot(n)
	if sep > speculative {
		return false
	}
	m.normal = n
	m.add(ca.Add(cb).Mul(0.5), sep)
	return true
}

// closestOnSegments returns the closest points of two segments given by
// centre, unit direction and half length.
func closestOnSegments(c1, u1 mgl64.Vec3, e1 float64, c2, u2 mgl64.Vec3, e2 float64) (mgl64.Vec3, mgl64.Vec3) {
	r := c1.Sub(c2)
	b := u1.Dot(u2)
	dd := u1.Dot(r)
	ee := u2.Dot(r)

	s := 0.0
	if denom := 1 - b*b; denom > 1e-9 {
		s = mgl64.Clamp((b*ee-dd)/denom, -e1, e1)
	}
	t := mgl64.Clamp(b*s+ee, -e2, e2)
	s = mgl64.Clamp(b*t-dd, -e1, e1)
	return c1.Add(u1.Mul(s)), c2.Add(u2.Mul(t))
}

func signOf(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}
