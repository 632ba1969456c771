package physics

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func TestOrthonormalBasis(t *testing.T) {
	for _, n := range []mgl64.Vec3{
		{1, 0, 0}, {0, 1, 0}, {0, 0, -1}, mgl64.Vec3{1, 2, 3}.Normalize(),
	} {
		t1, t2 := orthonormalBasis(n)
		if math.Abs(t1.Len()-1) > 1e-12 || math.Abs(t2.Len()-1) > 1e-12 {
			t.Errorf("%v: expected unit tangents, got %v %v", n, t1, t2)
		}
		if math.Abs(t1.Dot(n)) > 1e-12 || math.Abs(t2.Dot(n)) > 1e-12 || math.Abs(t1.Dot(t2)) > 1e-12 {
			t.Errorf("%v: basis is not orthogonal: %v %v", n, t1, t2)
		}
	}
}

func TestRotationBetween(t *testing.T) {
	tests := []struct {
		name     string
		from, to mgl64.Vec3
	}{
		{"same", mgl64.Vec3{0, 1, 0}, mgl64.Vec3{0, 1, 0}},
		{"opposite", mgl64.Vec3{0, 1, 0}, mgl64.Vec3{0, -1, 0}},
		{"perpendicular", mgl64.Vec3{1, 0, 0}, mgl64.Vec3{0, 0, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := rotationBetween(tt.from, tt.to).Rotate(tt.from)
			if !got.ApproxEqualThreshold(tt.to, 1e-9) {
				t.Errorf("expected %v, got %v", tt.to, got)
			}
		})
	}
}

func TestSkewMatchesCross(t *testing.T) {
	r := mgl64.Vec3{1, -2, 3}
	v := mgl64.Vec3{0.5, 4, -1}
	if got, want := skew(r).Mul3x1(v), r.Cross(v); !got.ApproxEqual(want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}
