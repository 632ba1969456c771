package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// orthonormalBasis returns two unit vectors perpendicular to n and to each
// other.
func orthonormalBasis(n mgl64.Vec3) (mgl64.Vec3, mgl64.Vec3) {
	var t mgl64.Vec3
	if math.Abs(n[0]) >= 0.57735 {
		t = mgl64.Vec3{n[1], -n[0], 0}
	} else {
		t = mgl64.Vec3{0, n[2], -n[1]}
	}
	t = t.Normalize()
	return t, n.Cross(t)
}

// rotationBetween is the shortest rotation taking unit vector from onto
// unit vector to. mgl64.QuatBetweenVectors yields NaN for equal inputs.
func rotationBetween(from, to mgl64.Vec3) mgl64.Quat {
	c := from.Dot(to)
	if c > 1-1e-9 {
		return mgl64.QuatIdent()
	}
	if c < -1+1e-9 {
		axis, _ := orthonormalBasis(from)
		return mgl64.QuatRotate(math.Pi, axis)
	}
	return mgl64.QuatBetweenVectors(from, to)
}

func skew(r mgl64.Vec3) mgl64.Mat3 {
	return mgl64.Mat3{0, r[2], -r[1], -r[2], 0, r[0], r[1], -r[0], 0}
}

func invert(k float64) float64 {
	if k <= 0 {
		return 0
	}
	return 1 / k
}
