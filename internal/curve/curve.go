// Package curve evaluates the depth-driven parameter curves used by team and
// constraint settings.
package curve

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/san-kum/clothsim/internal/mathx"
)

// Param maps a normalized depth in [0,1] to a value. Without UseEnd the value
// is constant. Curve in [-1,1] bends the line through a quadratic Bezier;
// zero is linear.
type Param struct {
	Start  float32 `yaml:"start"`
	End    float32 `yaml:"end"`
	UseEnd bool    `yaml:"use_end"`
	Curve  float32 `yaml:"curve"`
}

func Constant(v float32) Param {
	return Param{Start: v, End: v}
}

func Linear(start, end float32) Param {
	return Param{Start: start, End: end, UseEnd: true}
}

func Curved(start, end, curve float32) Param {
	return Param{Start: start, End: end, UseEnd: true, Curve: curve}
}

func (p Param) Evaluate(t float32) float32 {
	if !p.UseEnd {
		return p.Start
	}
	t = mathx.Saturate(t)
	return mathx.Lerp(p.Start, p.End, bezier(t, mgl32.Clamp(p.Curve, -1, 1)))
}

// bezier solves the quadratic curve (0,0) -> control -> (1,1) for x = t.
func bezier(t, c float32) float32 {
	if c == 0 {
		return t
	}
	cx := 0.5 - c*0.5
	cy := 0.5 + c*0.5

	// x(s) = 2(1-s)s*cx + s^2 ; solve (1-2cx)s^2 + 2cx*s - t = 0
	a := 1 - 2*cx
	b := 2 * cx
	var s float32
	if a > -1e-6 && a < 1e-6 {
		s = t / b
	} else {
		disc := b*b + 4*a*t
		if disc < 0 {
			disc = 0
		}
		s = (-b + mathx.Sqrt(disc)) / (2 * a)
	}
	s = mathx.Saturate(s)
	return 2*(1-s)*s*cy + s*s
}
