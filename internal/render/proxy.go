// Package render holds the visual side of the scene: one [Proxy] per body
// and the [Scene] that a renderer draws from. Proxies never own bodies; they
// carry a BodyID for lookup only.
package render

import (
	"fmt"
	"math/rand"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/san-kum/broomsim/internal/dynamo"
)

type Kind int

const (
	KindSphere Kind = iota
	KindBox
)

func (k Kind) String() string {
	if k == KindSphere {
		return "sphere"
	}
	return "box"
}

// Proxy is the render object of one body. Scale is the full box size;
// Radius is used for spheres.
type Proxy struct {
	Body    dynamo.BodyID
	Label   string
	Kind    Kind
	Radius  float64
	Scale   mgl64.Vec3
	Color   uint32
	Visible bool
	Pose    dynamo.Pose
}

// Extent is the proxy's half size along each world-aligned axis of its
// local frame.
func (p *Proxy) Extent() mgl64.Vec3 {
	if p.Kind == KindSphere {
		return mgl64.Vec3{p.Radius, p.Radius, p.Radius}
	}
	return p.Scale.Mul(0.5)
}

// Hex formats the colour as #rrggbb.
func (p *Proxy) Hex() string {
	return fmt.Sprintf("#%06x", p.Color&0xffffff)
}

// RandomColor draws a 24-bit RGB colour.
func RandomColor(rng *rand.Rand) uint32 {
	return uint32(rng.Int63n(0x1000000))
}
