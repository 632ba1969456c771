package physics

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/san-kum/broomsim/internal/dynamo"
)

const (
	// MinExtent is the smallest radius or half extent a shape is clamped to.
	MinExtent = 1e-3
	// DefaultMargin pads every shape for contact generation.
	DefaultMargin = 0.05

	minInertia = 1e-6
)

type ShapeKind int

const (
	ShapeSphere ShapeKind = iota
	ShapeBox
)

func (k ShapeKind) String() string {
	switch k {
	case ShapeSphere:
		return "sphere"
	case ShapeBox:
		return "box"
	default:
		return fmt.Sprintf("shape(%d)", int(k))
	}
}

// Shape is a sphere or a box. Only the field matching Kind is meaningful.
type Shape struct {
	Kind        ShapeKind
	Radius      float64
	HalfExtents mgl64.Vec3
}

func Sphere(radius float64) Shape {
	return Shape{Kind: ShapeSphere, Radius: radius}
}

func Box(halfExtents mgl64.Vec3) Shape {
	return Shape{Kind: ShapeBox, HalfExtents: halfExtents}
}

// Validate rejects negative or non-finite dimensions and clamps tiny ones
// to MinExtent.
func (s Shape) Validate() (Shape, error) {
	check := func(name string, v float64) (float64, error) {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return 0, fmt.Errorf("%s %s = %v: %w", s.Kind, name, v, dynamo.ErrConfiguration)
		}
		return math.Max(v, MinExtent), nil
	}

	var err error
	switch s.Kind {
	case ShapeSphere:
		s.Radius, err = check("radius", s.Radius)
		return s, err
	case ShapeBox:
		for i, axis := range [3]string{"half extent x", "half extent y", "half extent z"} {
			if s.HalfExtents[i], err = check(axis, s.HalfExtents[i]); err != nil {
				return s, err
			}
		}
		return s, nil
	default:
		return s, fmt.Errorf("unknown shape kind %d: %w", int(s.Kind), dynamo.ErrConfiguration)
	}
}

// LocalInertia returns the diagonal inertia tensor of a solid shape.
// Zero mass gives zero inertia.
func (s Shape) LocalInertia(mass float64) mgl64.Vec3 {
	if mass <= 0 {
		return mgl64.Vec3{}
	}
	switch s.Kind {
	case ShapeSphere:
		i := 0.4 * mass * s.Radius * s.Radius
		return mgl64.Vec3{i, i, i}
	default:
		x, y, z := s.HalfExtents[0], s.HalfExtents[1], s.HalfExtents[2]
		k := mass / 3
		return mgl64.Vec3{k * (y*y + z*z), k * (x*x + z*z), k * (x*x + y*y)}
	}
}

// BoundingRadius is the radius of the smallest sphere around the shape's
// centre that contains it.
func (s Shape) BoundingRadius() float64 {
	if s.Kind == ShapeSphere {
		return s.Radius
	}
	return s.HalfExtents.Len()
}

// Volume of the solid shape.
func (s Shape) Volume() float64 {
	if s.Kind == ShapeSphere {
		return 4.0 / 3.0 * math.Pi * s.Radius * s.Radius * s.Radius
	}
	return 8 * s.HalfExtents[0] * s.HalfExtents[1] * s.HalfExtents[2]
}

// bounds returns the world AABB of the shape at pose, grown by pad.
func (s Shape) bounds(p dynamo.Pose, pad float64) AABB {
	var ext mgl64.Vec3
	switch s.Kind {
	case ShapeSphere:
		ext = mgl64.Vec3{s.Radius, s.Radius, s.Radius}
	default:
		m := p.Orientation.Mat4().Mat3()
		for row := 0; row < 3; row++ {
			for col := 0; col < 3; col++ {
				ext[row] += math.Abs(m.At(row, col)) * s.HalfExtents[col]
			}
		}
	}
	ext = ext.Add(mgl64.Vec3{pad, pad, pad})
	return AABB{Min: p.Position.Sub(ext), Max: p.Position.Add(ext)}
}
