package viz

import (
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/san-kum/broomsim/internal/dynamo"
	"github.com/san-kum/broomsim/internal/render"
)

// View draws a proxy snapshot onto a canvas as seen from a camera pose.
type View interface {
	Name() string
	Draw(c *Canvas, proxies []render.Proxy, cam dynamo.Pose)
}

// TopDown looks straight down the Y axis. World +X is right and +Z is down
// the screen, HalfSize units from the camera in each direction.
type TopDown struct {
	HalfSize float64
}

func (TopDown) Name() string { return "map" }

func (v TopDown) Draw(c *Canvas, proxies []render.Proxy, cam dynamo.Pose) {
	w, h := c.Dots()
	scale := float64(min(w, h)) / (2 * v.HalfSize)
	toScreen := func(p mgl64.Vec3) (int, int) {
		return w/2 + int(math.Round((p[0]-cam.Position[0])*scale)),
			h/2 + int(math.Round((p[2]-cam.Position[2])*scale))
	}

	for _, p := range proxies {
		switch p.Kind {
		case render.KindSphere:
			x, y := toScreen(p.Pose.Position)
			c.DrawCircle(x, y, p.Radius*scale)
		case render.KindBox:
			corners := boxCorners(p)
			// The top face is enough for an outline from above.
			for _, e := range [4][2]int{{2, 3}, {3, 7}, {7, 6}, {6, 2}} {
				x0, y0 := toScreen(corners[e[0]])
				x1, y1 := toScreen(corners[e[1]])
				c.DrawLine(x0, y0, x1, y1)
			}
		}
	}

	// Camera marker with a short heading line.
	x, y := toScreen(cam.Position)
	ahead := cam.Position.Add(flatForward(cam).Mul(4 / scale))
	hx, hy := toScreen(ahead)
	c.DrawCircle(x, y, 1.5)
	c.DrawLine(x, y, hx, hy)
}

func flatForward(cam dynamo.Pose) mgl64.Vec3 {
	f := cam.Orientation.Rotate(mgl64.Vec3{0, 0, -1})
	f[1] = 0
	if f.Len() < 1e-9 {
		return mgl64.Vec3{0, 0, -1}
	}
	return f.Normalize()
}

// Perspective is a first-person wireframe view from the camera.
type Perspective struct {
	FOV  float64 // vertical, radians
	Near float64
}

func DefaultPerspective() Perspective {
	return Perspective{FOV: math.Pi / 3, Near: 0.2}
}

func (Perspective) Name() string { return "camera" }

type edge struct {
	a, b  mgl64.Vec3
	depth float64
}

// Draw projects every proxy edge and draws far edges first.
func (v Perspective) Draw(c *Canvas, proxies []render.Proxy, cam dynamo.Pose) {
	w, h := c.Dots()
	focal := float64(h) / 2 / math.Tan(v.FOV/2)

	edges := make([]edge, 0, len(proxies)*12)
	add := func(a, b mgl64.Vec3) {
		a, b = cam.InverseTransform(a), cam.InverseTransform(b)
		if a[2] > -v.Near && b[2] > -v.Near {
			return
		}
		a, b = clipNear(a, b, v.Near)
		edges = append(edges, edge{a: a, b: b, depth: -(a[2] + b[2]) / 2})
	}

	for _, p := range proxies {
		switch p.Kind {
		case render.KindBox:
			corners := boxCorners(p)
			for _, e := range boxEdges {
				add(corners[e[0]], corners[e[1]])
			}
		case render.KindSphere:
			for _, ring := range sphereRings(p, 12) {
				for i := range ring {
					add(ring[i], ring[(i+1)%len(ring)])
				}
			}
		}
	}

	sort.Slice(edges, func(i, j int) bool { return edges[i].depth > edges[j].depth })
	project := func(p mgl64.Vec3) (int, int) {
		return w/2 + int(math.Round(p[0]/-p[2]*focal)),
			h/2 - int(math.Round(p[1]/-p[2]*focal))
	}
	for _, e := range edges {
		x0, y0 := project(e.a)
		x1, y1 := project(e.b)
		c.DrawLine(x0, y0, x1, y1)
	}
}

// clipNear moves whichever end is behind the near plane onto it.
func clipNear(a, b mgl64.Vec3, near float64) (mgl64.Vec3, mgl64.Vec3) {
	lerp := func(p, q mgl64.Vec3) mgl64.Vec3 {
		t := (-near - p[2]) / (q[2] - p[2])
		return p.Add(q.Sub(p).Mul(t))
	}
	if a[2] > -near {
		a = lerp(a, b)
	}
	if b[2] > -near {
		b = lerp(b, a)
	}
	return a, b
}

var boxEdges = [12][2]int{
	{0, 1}, {1, 3}, {3, 2}, {2, 0},
	{4, 5}, {5, 7}, {7, 6}, {6, 4},
	{0, 4}, {1, 5}, {2, 6}, {3, 7},
}

// boxCorners returns the 8 world-space corners. Bit 0 of the index picks
// +Z, bit 1 +Y and bit 2 +X.
func boxCorners(p render.Proxy) [8]mgl64.Vec3 {
	half := p.Extent()
	var out [8]mgl64.Vec3
	for i := range out {
		local := mgl64.Vec3{-half[0], -half[1], -half[2]}
		if i&4 != 0 {
			local[0] = half[0]
		}
		if i&2 != 0 {
			local[1] = half[1]
		}
		if i&1 != 0 {
			local[2] = half[2]
		}
		out[i] = p.Pose.Transform(local)
	}
	return out
}

// sphereRings samples three great circles of a sphere proxy.
func sphereRings(p render.Proxy, n int) [3][]mgl64.Vec3 {
	var rings [3][]mgl64.Vec3
	for axis := range rings {
		rings[axis] = make([]mgl64.Vec3, n)
		for i := 0; i < n; i++ {
			a := 2 * math.Pi * float64(i) / float64(n)
			s, c := p.Radius*math.Sin(a), p.Radius*math.Cos(a)
			var local mgl64.Vec3
			switch axis {
			case 0:
				local = mgl64.Vec3{0, s, c}
			case 1:
				local = mgl64.Vec3{s, 0, c}
			default:
				local = mgl64.Vec3{s, c, 0}
			}
			rings[axis][i] = p.Pose.Transform(local)
		}
	}
	return rings
}
