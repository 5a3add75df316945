package viz

import (
	"sort"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/san-kum/clothsim/internal/metrics"
	"github.com/san-kum/clothsim/internal/sim"
)

// Camera orbits Target at Distance. Yaw turns about world Y, Pitch about the
// camera's X axis.
type Camera struct {
	Target     mgl32.Vec3
	Distance   float32
	Yaw, Pitch float32
	Zoom       float32
}

func NewCamera(target mgl32.Vec3) *Camera {
	return &Camera{Target: target, Distance: 4, Pitch: 0.2, Zoom: 1}
}

func (c *Camera) Orbit(yaw, pitch float32) {
	c.Yaw += yaw
	c.Pitch = mgl32.Clamp(c.Pitch+pitch, -1.5, 1.5)
}

func (c *Camera) ZoomIn()  { c.Zoom = min(10, c.Zoom*1.2) }
func (c *Camera) ZoomOut() { c.Zoom = max(0.1, c.Zoom/1.2) }

func (c *Camera) view() mgl32.Mat4 {
	rot := mgl32.HomogRotate3DX(c.Pitch).Mul4(mgl32.HomogRotate3DY(c.Yaw))
	return mgl32.Translate3D(0, 0, -c.Distance).Mul4(rot).Mul4(mgl32.Translate3D(-c.Target.X(), -c.Target.Y(), -c.Target.Z()))
}

// Project maps a world point to dots on a w x h canvas. It reports the view
// depth and whether the point lies in front of the camera.
func (c *Camera) Project(p mgl32.Vec3, w, h int) (int, int, float32, bool) {
	v := mgl32.TransformCoordinate(p, c.view())
	depth := -v.Z()
	if depth <= 0.05 {
		return 0, 0, depth, false
	}
	scale := float32(min(w, h)) * 0.5 * c.Zoom
	x := float32(w)/2 + v.X()/depth*c.Distance*scale
	y := float32(h)/2 - v.Y()/depth*c.Distance*scale
	return int(x), int(y), depth, true
}

type Segment struct {
	Start, End mgl32.Vec3
}

// Wireframe is a list of segments and circles to draw.
type Wireframe struct {
	Segments []Segment
	Spheres  []Sphere
}

type Sphere struct {
	Center mgl32.Vec3
	Radius float32
}

func (w *Wireframe) Clear() {
	w.Segments = w.Segments[:0]
	w.Spheres = w.Spheres[:0]
}

// Build fills the wireframe from particle positions. Edges become segments,
// particles without an edge become points.
func (w *Wireframe) Build(snap sim.Snapshot, edges []metrics.Edge) {
	w.Clear()
	used := make([]bool, len(snap))
	for _, e := range edges {
		if e.A >= len(snap) || e.B >= len(snap) {
			continue
		}
		w.Segments = append(w.Segments, Segment{snap[e.A], snap[e.B]})
		used[e.A], used[e.B] = true, true
	}
	for i, p := range snap {
		if !used[i] {
			w.Segments = append(w.Segments, Segment{p, p})
		}
	}
}

func (w *Wireframe) AddSphere(center mgl32.Vec3, radius float32) {
	w.Spheres = append(w.Spheres, Sphere{center, radius})
}

type projected struct {
	x1, y1, x2, y2 int
	depth          float32
}

// Render3D draws the wireframe far to near.
func Render3D(c *Canvas, w *Wireframe, cam *Camera) {
	if c == nil || w == nil || cam == nil {
		return
	}
	dw, dh := c.Dots()
	proj := make([]projected, 0, len(w.Segments))
	for _, s := range w.Segments {
		x1, y1, d1, ok1 := cam.Project(s.Start, dw, dh)
		x2, y2, d2, ok2 := cam.Project(s.End, dw, dh)
		if ok1 && ok2 {
			proj = append(proj, projected{x1, y1, x2, y2, (d1 + d2) / 2})
		}
	}
	sort.Slice(proj, func(i, j int) bool { return proj[i].depth > proj[j].depth })
	for _, p := range proj {
		c.DrawLine(p.x1, p.y1, p.x2, p.y2)
	}
	for _, s := range w.Spheres {
		x, y, d, ok := cam.Project(s.Center, dw, dh)
		if !ok {
			continue
		}
		r := s.Radius / d * cam.Distance * float32(min(dw, dh)) * 0.5 * cam.Zoom
		c.DrawCircle(x, y, int(r))
	}
}

// RenderSide draws the wireframe projected onto the XY plane.
func RenderSide(c *Canvas, w *Wireframe, vp Viewport) {
	dw, dh := c.Dots()
	for _, s := range w.Segments {
		x1, y1 := vp.Project(s.Start, dw, dh)
		x2, y2 := vp.Project(s.End, dw, dh)
		c.DrawLine(x1, y1, x2, y2)
	}
	scale := vp.Scale(dw, dh)
	for _, s := range w.Spheres {
		x, y := vp.Project(s.Center, dw, dh)
		c.DrawCircle(x, y, int(s.Radius*scale))
	}
}
