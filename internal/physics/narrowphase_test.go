package physics

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/san-kum/broomsim/internal/dynamo"
)

func testBody(id dynamo.BodyID, shape Shape, pos mgl64.Vec3, mass float64) *rigidBody {
	return newRigidBody(id, BodyDef{Shape: shape, Pose: dynamo.NewPose(pos), Mass: mass})
}

func TestCollideSpheres(t *testing.T) {
	a := testBody(1, Sphere(1), mgl64.Vec3{}, 1)
	b := testBody(2, Sphere(1), mgl64.Vec3{1.5, 0, 0}, 1)

	var m manifold
	if !collide(a, b, 0.1, &m) {
		t.Fatal("expected overlapping spheres to collide")
	}
	if m.count != 1 {
		t.Fatalf("expected 1 point, got %d", m.count)
	}
	if !m.normal.ApproxEqual(mgl64.Vec3{1, 0, 0}) {
		t.Errorf("expected normal +x, got %v", m.normal)
	}
	if math.Abs(m.points[0].separation+0.5) > 1e-9 {
		t.Errorf("expected separation -0.5, got %f", m.points[0].separation)
	}
	if !m.points[0].point.ApproxEqual(mgl64.Vec3{0.75, 0, 0}) {
		t.Errorf("expected contact at midpoint, got %v", m.points[0].point)
	}

	b.pose.Position = mgl64.Vec3{3, 0, 0}
	if collide(a, b, 0.5, &m) {
		t.Error("expected spheres 1 apart to miss with 0.5 speculative distance")
	}
	if !collide(a, b, 1.5, &m) || m.points[0].separation <= 0 {
		t.Error("expected a speculative contact with positive separation")
	}
}

func TestCollideBoxSphere(t *testing.T) {
	box := testBody(1, Box(mgl64.Vec3{1, 1, 1}), mgl64.Vec3{}, 0)
	ball := testBody(2, Sphere(0.5), mgl64.Vec3{0, 1.3, 0}, 1)

	var m manifold
	if !collide(box, ball, 0, &m) {
		t.Fatal("expected contact")
	}
	if !m.normal.ApproxEqual(mgl64.Vec3{0, 1, 0}) {
		t.Errorf("expected normal +y, got %v", m.normal)
	}
	if math.Abs(m.points[0].separation+0.2) > 1e-9 {
		t.Errorf("expected separation -0.2, got %f", m.points[0].separation)
	}

	if !collide(ball, box, 0, &m) {
		t.Fatal("expected contact with swapped order")
	}
	if !m.normal.ApproxEqual(mgl64.Vec3{0, -1, 0}) {
		t.Errorf("expected normal -y when the sphere is first, got %v", m.normal)
	}

	// Centre inside the box leaves through the nearest face.
	ball.pose.Position = mgl64.Vec3{0.2, 0, 0.9}
	if !collide(box, ball, 0, &m) {
		t.Fatal("expected contact for a buried sphere")
	}
	if !m.normal.ApproxEqual(mgl64.Vec3{0, 0, 1}) {
		t.Errorf("expected normal +z, got %v", m.normal)
	}
	if math.Abs(m.points[0].separation+0.6) > 1e-9 {
		t.Errorf("expected separation -0.6, got %f", m.points[0].separation)
	}
}

func TestCollideBoxOnPlane(t *testing.T) {
	plane := testBody(1, Box(mgl64.Vec3{10, 0.5, 10}), mgl64.Vec3{0, -0.5, 0}, 0)
	box := testBody(2, Box(mgl64.Vec3{1, 1, 1}), mgl64.Vec3{0, 0.95, 0}, 1)

	var m manifold
	if !collide(plane, box, 0.1, &m) {
		t.Fatal("expected resting box to touch the plane")
	}
	if m.count != 4 {
		t.Fatalf("expected 4 contact points, got %d", m.count)
	}
	if !m.normal.ApproxEqual(mgl64.Vec3{0, 1, 0}) {
		t.Errorf("expected normal +y, got %v", m.normal)
	}
	for i := 0; i < m.count; i++ {
		p := m.points[i]
		if math.Abs(p.separation+0.05) > 1e-9 {
			t.Errorf("point %d: expected separation -0.05, got %f", i, p.separation)
		}
		if math.Abs(math.Abs(p.point[0])-1) > 1e-9 || math.Abs(math.Abs(p.point[2])-1) > 1e-9 {
			t.Errorf("point %d: expected a box corner, got %v", i, p.point)
		}
	}

	box.pose.Position = mgl64.Vec3{0, 2, 0}
	if collide(plane, box, 0.1, &m) {
		t.Error("expected no contact for a box 1 above the plane")
	}
}

func TestCollideBoxesEdge(t *testing.T) {
	a := testBody(1, Box(mgl64.Vec3{1, 1, 1}), mgl64.Vec3{}, 1)
	b := testBody(2, Box(mgl64.Vec3{1, 1, 1}), mgl64.Vec3{0, 2.3, 0}, 1)
	// Both boxes stand on an edge, crossed at right angles.
	a.pose.Orientation = mgl64.QuatRotate(math.Pi/4, mgl64.Vec3{0, 0, 1})
	b.pose.Orientation = mgl64.QuatRotate(math.Pi/4, mgl64.Vec3{1, 0, 0})

	var m manifold
	if !collide(a, b, 0.1, &m) {
		t.Fatal("expected crossed edges to collide")
	}
	if m.count != 1 {
		t.Fatalf("expected a single edge contact, got %d", m.count)
	}
	wantSep := 2.3 - 2*math.Sqrt2
	if math.Abs(m.points[0].separation-wantSep) > 1e-6 {
		t.Errorf("expected separation %f, got %f", wantSep, m.points[0].separation)
	}
	if m.normal[1] < 0.99 {
		t.Errorf("expected normal close to +y, got %v", m.normal)
	}
}

func TestReducePoints(t *testing.T) {
	pts := []contactPoint{
		{mgl64.Vec3{0, 0, 0}, -0.1},
		{mgl64.Vec3{1, 0, 0}, -0.01},
		{mgl64.Vec3{1, 0, 1}, -0.01},
		{mgl64.Vec3{0, 0, 1}, -0.01},
		{mgl64.Vec3{0.5, 0, 0}, -0.01},
		{mgl64.Vec3{0.5, 0, 1}, -0.01},
	}
	got := reducePoints(pts, mgl64.Vec3{0, 1, 0})
	if len(got) != 4 {
		t.Fatalf("expected 4 points, got %d", len(got))
	}
	if got[0].separation != -0.1 {
		t.Errorf("expected the deepest point to be kept first, got %+v", got[0])
	}
	if got[1].point != (mgl64.Vec3{1, 0, 1}) {
		t.Errorf("expected the farthest corner second, got %v", got[1].point)
	}
}

func TestClosestOnSegments(t *testing.T) {
	ca, cb := closestOnSegments(
		mgl64.Vec3{0, 0, 0}, mgl64.Vec3{1, 0, 0}, 2,
		mgl64.Vec3{0.5, 1, 0}, mgl64.Vec3{0, 0, 1}, 2,
	)
	if !ca.ApproxEqual(mgl64.Vec3{0.5, 0, 0}) || !cb.ApproxEqual(mgl64.Vec3{0.5, 1, 0}) {
		t.Errorf("unexpected closest points %v %v", ca, cb)
	}

	// Parallel segments still give a valid pair.
	ca, cb = closestOnSegments(
		mgl64.Vec3{0, 0, 0}, mgl64.Vec3{1, 0, 0}, 1,
		mgl64.Vec3{5, 1, 0}, mgl64.Vec3{1, 0, 0}, 1,
	)
	if math.Abs(cb.Sub(ca).Len()-math.Sqrt(9+1)) > 1e-9 {
		t.Errorf("unexpected parallel closest points %v %v", ca, cb)
	}
}
