package factory

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/san-kum/broomsim/internal/collision"
	"github.com/san-kum/broomsim/internal/dynamo"
	"github.com/san-kum/broomsim/internal/physics"
	"github.com/san-kum/broomsim/internal/render"
)

func newFactory(t *testing.T) (*Factory, *physics.World) {
	t.Helper()
	w := physics.New()
	if err := w.Initialize(mgl64.Vec3{0, -10, 0}); err != nil {
		t.Fatal(err)
	}
	return New(w, collision.NewRegistry(), WithRand(rand.New(rand.NewSource(7)))), w
}

func TestCreateBody(t *testing.T) {
	f, w := newFactory(t)

	id, proxy, err := f.CreateBody(BodySpec{
		Label:         "block",
		Shape:         physics.Box(mgl64.Vec3{4, 0.5, 0.5}),
		Pose:          dynamo.NewPose(mgl64.Vec3{1, 2, 3}),
		Mass:          100,
		Restitution:   0.8,
		Group:         collision.NameB,
		Mask:          []string{collision.NamePlane, collision.NameB},
		LinearDamping: 0.5,
		RandomColor:   true,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	st, ok := w.Body(id)
	if !ok {
		t.Fatal("body missing from world")
	}
	if st.Filter.Group != collision.GroupB || st.Filter.Mask != collision.GroupPlane|collision.GroupB {
		t.Errorf("unexpected filter %+v", st.Filter)
	}
	if st.Margin != physics.DefaultMargin || st.Friction != DefaultFriction {
		t.Errorf("expected default margin and friction, got %f %f", st.Margin, st.Friction)
	}
	if st.Restitution != 0.8 || st.LinearDamping != 0.5 {
		t.Errorf("material not applied: %+v", st)
	}

	if proxy.Body != id || proxy.Kind != render.KindBox || !proxy.Visible {
		t.Errorf("unexpected proxy %+v", proxy)
	}
	if proxy.Scale != (mgl64.Vec3{8, 1, 1}) {
		t.Errorf("expected proxy scale 8x1x1, got %v", proxy.Scale)
	}
	if proxy.Pose.Position != (mgl64.Vec3{1, 2, 3}) {
		t.Errorf("expected proxy at the body pose, got %v", proxy.Pose)
	}
}

func TestCreateBodyStaticHasNoInertia(t *testing.T) {
	f, w := newFactory(t)
	id, proxy, err := f.CreateBody(BodySpec{
		Label:  "broom",
		Shape:  physics.Sphere(1),
		Group:  collision.NameA,
		Hidden: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if proxy.Visible {
		t.Error("expected hidden proxy")
	}
	if proxy.Kind != render.KindSphere || proxy.Radius != 1 {
		t.Errorf("unexpected proxy %+v", proxy)
	}

	if err := w.ApplyImpulse(id, mgl64.Vec3{10, 0, 0}, mgl64.Vec3{0, 1, 0}); err != nil {
		t.Fatal(err)
	}
	st, _ := w.Body(id)
	if st.LinearVelocity != (mgl64.Vec3{}) || st.AngularVelocity != (mgl64.Vec3{}) {
		t.Errorf("expected a mass-0 body to ignore impulses, got %+v", st)
	}
}

func TestCreateBodyFailsAtomically(t *testing.T) {
	f, w := newFactory(t)
	tests := []struct {
		name string
		spec BodySpec
	}{
		{"unknown group", BodySpec{Shape: physics.Sphere(1), Group: "groupZ"}},
		{"unknown mask", BodySpec{Shape: physics.Sphere(1), Group: collision.NameB, Mask: []string{"nope"}}},
		{"bad shape", BodySpec{Shape: physics.Sphere(-2), Group: collision.NameB}},
		{"bad mass", BodySpec{Shape: physics.Sphere(1), Group: collision.NameB, Mass: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, proxy, err := f.CreateBody(tt.spec)
			if !errors.Is(err, dynamo.ErrConfiguration) {
				t.Errorf("expected ErrConfiguration, got %v", err)
			}
			if proxy != nil {
				t.Error("expected no proxy on failure")
			}
		})
	}
	if w.BodyCount() != 0 {
		t.Errorf("expected an empty world, got %d bodies", w.BodyCount())
	}
}

func TestCreateBodyColors(t *testing.T) {
	f, _ := newFactory(t)
	seen := map[uint32]bool{}
	for i := 0; i < 10; i++ {
		_, p, err := f.CreateBody(BodySpec{Shape: physics.Sphere(1), Group: collision.NameB, Mass: 1, RandomColor: true})
		if err != nil {
			t.Fatal(err)
		}
		seen[p.Color] = true
	}
	if len(seen) < 5 {
		t.Errorf("expected varied colours, got %d distinct", len(seen))
	}

	_, p, _ := f.CreateBody(BodySpec{Shape: physics.Sphere(1), Group: collision.NameB, Color: 0x123456})
	if p.Color != 0x123456 {
		t.Errorf("expected fixed colour, got %x", p.Color)
	}
}

func TestCreateHinge(t *testing.T) {
	f, w := newFactory(t)
	a, _, _ := f.CreateBody(BodySpec{Shape: physics.Sphere(1), Group: collision.NameA})
	b, _, _ := f.CreateBody(BodySpec{Shape: physics.Box(mgl64.Vec3{4, 0.5, 0.5}), Group: collision.NameB, Mass: 100})

	_, err := f.CreateHinge(physics.HingeDef{
		BodyA: a, BodyB: b,
		PivotB: mgl64.Vec3{-5.6, 0, 0},
		AxisA:  mgl64.Vec3{0, 1, 0}, AxisB: mgl64.Vec3{0, 1, 0},
	}, false)
	if err != nil {
		t.Fatal(err)
	}
	if w.ConstraintCount() != 1 {
		t.Errorf("expected 1 constraint, got %d", w.ConstraintCount())
	}
}
