package viz

import (
	"strings"

	"github.com/go-gl/mathgl/mgl32"
)

const brailleBase = 0x2800

// dot bits of a 2x4 braille cell, indexed [row][col]
var dotBits = [4][2]rune{
	{0x01, 0x08},
	{0x02, 0x10},
	{0x04, 0x20},
	{0x40, 0x80},
}

// Canvas is a grid of braille cells. Each cell holds 2x4 dots, so the dot
// resolution is (Width*2) x (Height*4).
type Canvas struct {
	Width, Height int
	Grid          [][]rune
}

func NewCanvas(w, h int) *Canvas {
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	c := &Canvas{Width: w, Height: h, Grid: make([][]rune, h)}
	for i := range c.Grid {
		c.Grid[i] = make([]rune, w)
	}
	c.Clear()
	return c
}

// Dots returns the dot resolution.
func (c *Canvas) Dots() (int, int) { return c.Width * 2, c.Height * 4 }

func (c *Canvas) cell(x, y int) (*rune, rune, bool) {
	if x < 0 || y < 0 {
		return nil, 0, false
	}
	col, row := x/2, y/4
	if col >= c.Width || row >= c.Height {
		return nil, 0, false
	}
	return &c.Grid[row][col], dotBits[y%4][x%2], true
}

// Set turns on the dot at (x, y). Out of range dots are ignored.
func (c *Canvas) Set(x, y int) {
	if r, bit, ok := c.cell(x, y); ok {
		*r |= bit
	}
}

func (c *Canvas) Unset(x, y int) {
	if r, bit, ok := c.cell(x, y); ok {
		*r &^= bit
	}
}

func (c *Canvas) IsSet(x, y int) bool {
	r, bit, ok := c.cell(x, y)
	return ok && *r&bit != 0
}

func (c *Canvas) Clear() {
	for i := range c.Grid {
		for j := range c.Grid[i] {
			c.Grid[i][j] = brailleBase
		}
	}
}

// DrawLine draws a Bresenham line between two dots.
func (c *Canvas) DrawLine(x0, y0, x1, y1 int) {
	dx, dy := absInt(x1-x0), absInt(y1-y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	err := dx - dy
	for {
		c.Set(x0, y0)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x0 += sx
		}
		if e2 < dx {
			err += dx
			y0 += sy
		}
	}
}

// DrawCircle outlines a circle of radius r dots.
func (c *Canvas) DrawCircle(cx, cy, r int) {
	if r <= 0 {
		c.Set(cx, cy)
		return
	}
	x, y, d := r, 0, 1-r
	for x >= y {
		for _, p := range [8][2]int{{x, y}, {y, x}, {-y, x}, {-x, y}, {-x, -y}, {-y, -x}, {y, -x}, {x, -y}} {
			c.Set(cx+p[0], cy+p[1])
		}
		y++
		if d < 0 {
			d += 2*y + 1
		} else {
			x--
			d += 2*(y-x) + 1
		}
	}
}

func (c *Canvas) String() string {
	var b strings.Builder
	b.Grow(c.Height * (c.Width*3 + 1))
	for i, row := range c.Grid {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(string(row))
	}
	return b.String()
}

// Viewport maps the world XY plane onto canvas dots with a uniform scale,
// Y up.
type Viewport struct {
	Min, Max mgl32.Vec2
}

// FitViewport returns the bounds of pts in the XY plane grown by pad on every
// side. An empty set maps the unit square.
func FitViewport(pts []mgl32.Vec3, pad float32) Viewport {
	if len(pts) == 0 {
		return Viewport{Min: mgl32.Vec2{-1, -1}, Max: mgl32.Vec2{1, 1}}
	}
	v := Viewport{Min: pts[0].Vec2(), Max: pts[0].Vec2()}
	for _, p := range pts[1:] {
		v.Min = mgl32.Vec2{min(v.Min.X(), p.X()), min(v.Min.Y(), p.Y())}
		v.Max = mgl32.Vec2{max(v.Max.X(), p.X()), max(v.Max.Y(), p.Y())}
	}
	pad2 := mgl32.Vec2{pad, pad}
	return Viewport{Min: v.Min.Sub(pad2), Max: v.Max.Add(pad2)}
}

// Scale is the dots-per-unit factor for a canvas of w x h dots.
func (v Viewport) Scale(w, h int) float32 {
	span := v.Max.Sub(v.Min)
	if span.X() <= 0 || span.Y() <= 0 {
		return 1
	}
	return min(float32(w-1)/span.X(), float32(h-1)/span.Y())
}

// Project maps p to dot coordinates, centered in the canvas.
func (v Viewport) Project(p mgl32.Vec3, w, h int) (int, int) {
	s := v.Scale(w, h)
	mid := v.Min.Add(v.Max).Mul(0.5)
	x := float32(w)/2 + (p.X()-mid.X())*s
	y := float32(h)/2 - (p.Y()-mid.Y())*s
	return int(x), int(y)
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
