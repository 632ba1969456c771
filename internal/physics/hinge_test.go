package physics

import (
	"errors"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/san-kum/broomsim/internal/dynamo"
)

var yAxis = mgl64.Vec3{0, 1, 0}

// hingedPair builds a cube and a bar joined at x=1 about the y axis, with
// gravity off. massA 0 pins the cube.
func hingedPair(t *testing.T, massA float64) (*World, dynamo.BodyID, dynamo.BodyID, dynamo.ConstraintID) {
	t.Helper()
	w := New()
	if err := w.Initialize(mgl64.Vec3{}); err != nil {
		t.Fatal(err)
	}
	a := mustAdd(t, w, BodyDef{Shape: Box(mgl64.Vec3{0.5, 0.5, 0.5}), Mass: massA})
	b := mustAdd(t, w, BodyDef{
		Shape: Box(mgl64.Vec3{1, 0.25, 0.25}),
		Mass:  1,
		Pose:  dynamo.NewPose(mgl64.Vec3{2, 0, 0}),
	})
	h, err := w.AddHinge(HingeDef{
		BodyA: a, BodyB: b,
		PivotA: mgl64.Vec3{1, 0, 0}, PivotB: mgl64.Vec3{-1, 0, 0},
		AxisA: yAxis, AxisB: yAxis,
	}, true)
	if err != nil {
		t.Fatal(err)
	}
	return w, a, b, h
}

func pivotGap(w *World, a, b dynamo.BodyID) float64 {
	pa, _ := w.Pose(a)
	pb, _ := w.Pose(b)
	return pa.Transform(mgl64.Vec3{1, 0, 0}).Sub(pb.Transform(mgl64.Vec3{-1, 0, 0})).Len()
}

func TestHingeTransmitsTorque(t *testing.T) {
	w, a, b, h := hingedPair(t, 1)
	if err := w.ApplyTorqueImpulse(a, mgl64.Vec3{0, 0.5, 0}); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 100; i++ {
		mustStep(t, w)
		if gap := pivotGap(w, a, b); gap > 0.05 {
			t.Fatalf("step %d: pivots drifted %f apart", i, gap)
		}
	}

	pb, _ := w.Pose(b)
	if turned := math.Abs(2 * math.Acos(math.Min(1, math.Abs(pb.Orientation.W)))); turned < 0.1 {
		t.Errorf("expected body b to rotate, turned %f rad", turned)
	}
	if up := pb.Orientation.Rotate(yAxis); up.Dot(yAxis) < 0.99 {
		t.Errorf("expected b to rotate about the hinge axis, its up is %v", up)
	}
	if _, err := w.HingeAngle(h); err != nil {
		t.Errorf("hinge angle: %v", err)
	}
}

func TestHingeResistsOffAxisTorque(t *testing.T) {
	w, a, b, _ := hingedPair(t, 1)
	if err := w.ApplyTorqueImpulse(b, mgl64.Vec3{0, 0, 0.3}); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 100; i++ {
		mustStep(t, w)
	}

	pa, _ := w.Pose(a)
	pb, _ := w.Pose(b)
	if d := pa.Orientation.Rotate(yAxis).Dot(pb.Orientation.Rotate(yAxis)); d < 0.99 {
		t.Errorf("expected hinge axes to stay aligned, dot %f", d)
	}
	if gap := pivotGap(w, a, b); gap > 0.05 {
		t.Errorf("pivots drifted %f apart", gap)
	}
}

func TestHingeMotor(t *testing.T) {
	w, a, b, h := hingedPair(t, 0)
	if err := w.EnableMotor(h, Motor{TargetVelocity: 2, MaxImpulse: 10}); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 60; i++ {
		mustStep(t, w)
	}

	st, _ := w.Body(b)
	if math.Abs(st.AngularVelocity[1]-2) > 0.1 {
		t.Errorf("expected b to spin at 2 rad/s, got %v", st.AngularVelocity)
	}
	if gap := pivotGap(w, a, b); gap > 0.05 {
		t.Errorf("pivots drifted %f apart", gap)
	}

	if err := w.DisableMotor(h); err != nil {
		t.Fatal(err)
	}
	if err := w.EnableMotor(h, Motor{TargetVelocity: 1, MaxImpulse: -1}); !errors.Is(err, dynamo.ErrConfiguration) {
		t.Errorf("expected ErrConfiguration for negative impulse, got %v", err)
	}
}

func TestHingeMotorImpulseIsClamped(t *testing.T) {
	w, _, b, h := hingedPair(t, 0)
	if err := w.EnableMotor(h, Motor{TargetVelocity: 100, MaxImpulse: 0.001}); err != nil {
		t.Fatal(err)
	}
	mustStep(t, w)

	st, _ := w.Body(b)
	if st.AngularVelocity[1] > 1 {
		t.Errorf("expected a weak motor to barely move b, got %v", st.AngularVelocity)
	}
}

func TestHingeLimits(t *testing.T) {
	w, _, _, h := hingedPair(t, 0)
	if err := w.SetLimits(h, Limits{Lower: -0.5, Upper: 0.5}); err != nil {
		t.Fatal(err)
	}
	if err := w.EnableMotor(h, Motor{TargetVelocity: 2, MaxImpulse: 1}); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 120; i++ {
		mustStep(t, w)
		angle, err := w.HingeAngle(h)
		if err != nil {
			t.Fatal(err)
		}
		if angle > 0.55 {
			t.Fatalf("step %d: angle %f passed the upper limit", i, angle)
		}
	}
	if angle, _ := w.HingeAngle(h); angle < 0.4 {
		t.Errorf("expected the motor to hold the hinge at its upper limit, got %f", angle)
	}

	if err := w.ClearLimits(h); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 30; i++ {
		mustStep(t, w)
	}
	if angle, _ := w.HingeAngle(h); angle < 0.6 {
		t.Errorf("expected the hinge to turn past 0.5 once limits are cleared, got %f", angle)
	}
}

func TestHingeRejectsBadDefinitions(t *testing.T) {
	w, a, b, h := hingedPair(t, 1)

	tests := []struct {
		name string
		def  HingeDef
		want error
	}{
		{"same body", HingeDef{BodyA: a, BodyB: a, AxisA: yAxis, AxisB: yAxis}, dynamo.ErrConfiguration},
		{"zero axis", HingeDef{BodyA: a, BodyB: b, AxisB: yAxis}, dynamo.ErrConfiguration},
		{"unknown body", HingeDef{BodyA: a, BodyB: 99, AxisA: yAxis, AxisB: yAxis}, dynamo.ErrUnknownBody},
		{"inverted limits", HingeDef{BodyA: a, BodyB: b, AxisA: yAxis, AxisB: yAxis, Limits: &Limits{Lower: 1, Upper: -1}}, dynamo.ErrConfiguration},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := w.AddHinge(tt.def, false); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}

	if err := w.SetLimits(h, Limits{Lower: 1, Upper: 0}); !errors.Is(err, dynamo.ErrConfiguration) {
		t.Errorf("expected ErrConfiguration, got %v", err)
	}
	if _, err := w.HingeAngle(h + 100); !errors.Is(err, dynamo.ErrUnknownConstraint) {
		t.Errorf("expected ErrUnknownConstraint, got %v", err)
	}
	if w.ConstraintCount() != 1 {
		t.Errorf("expected 1 constraint, got %d", w.ConstraintCount())
	}
}
