// Package mathx holds the float32 vector and quaternion helpers the solver
// needs on top of mgl32.
package mathx

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

const Epsilon = 1e-6

var (
	Up      = mgl32.Vec3{0, 1, 0}
	Right   = mgl32.Vec3{1, 0, 0}
	Forward = mgl32.Vec3{0, 0, 1}
)

func Saturate(x float32) float32 {
	return mgl32.Clamp(x, 0, 1)
}

func Lerp(a, b, t float32) float32 {
	return a + (b-a)*t
}

func LerpVec(a, b mgl32.Vec3, t float32) mgl32.Vec3 {
	return a.Add(b.Sub(a).Mul(t))
}

func Sqrt(x float32) float32 {
	return float32(math.Sqrt(float64(x)))
}

func Exp(x float32) float32 {
	return float32(math.Exp(float64(x)))
}

func Atan2(y, x float32) float32 {
	return float32(math.Atan2(float64(y), float64(x)))
}

func Acos(x float32) float32 {
	return float32(math.Acos(float64(mgl32.Clamp(x, -1, 1))))
}

// Normalize returns the unit vector and the original length. Vectors shorter
// than Epsilon yield a zero vector.
func Normalize(v mgl32.Vec3) (mgl32.Vec3, float32) {
	l := v.Len()
	if l < Epsilon {
		return mgl32.Vec3{}, 0
	}
	return v.Mul(1 / l), l
}

// Valid reports whether every component is finite.
func Valid(v mgl32.Vec3) bool {
	for _, c := range v {
		f := float64(c)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}

// FromTo returns the shortest rotation taking from onto to. Degenerate inputs
// return the identity.
func FromTo(from, to mgl32.Vec3) mgl32.Quat {
	if from.LenSqr() < Epsilon || to.LenSqr() < Epsilon {
		return mgl32.QuatIdent()
	}
	return mgl32.QuatBetweenVectors(from, to).Normalize()
}

// RotateAround rotates v about a unit axis by angle radians.
func RotateAround(v, axis mgl32.Vec3, angle float32) mgl32.Vec3 {
	return mgl32.QuatRotate(angle, axis).Rotate(v)
}

// Angle returns the unsigned angle between two vectors in radians.
func Angle(a, b mgl32.Vec3) float32 {
	na, la := Normalize(a)
	nb, lb := Normalize(b)
	if la == 0 || lb == 0 {
		return 0
	}
	return Acos(na.Dot(nb))
}

// ClampAngle rotates dir toward ref until the angle between them is at most
// maxAngle radians. Length is preserved.
func ClampAngle(dir, ref mgl32.Vec3, maxAngle float32) mgl32.Vec3 {
	nd, l := Normalize(dir)
	nr, lr := Normalize(ref)
	if l == 0 || lr == 0 {
		return dir
	}
	angle := Acos(nd.Dot(nr))
	if angle <= maxAngle {
		return dir
	}
	axis, al := Normalize(nr.Cross(nd))
	if al == 0 {
		axis, _ = Normalize(Perpendicular(nr))
	}
	return RotateAround(nr, axis, maxAngle).Mul(l)
}

// Perpendicular returns some vector orthogonal to v.
func Perpendicular(v mgl32.Vec3) mgl32.Vec3 {
	if math.Abs(float64(v.X())) < 0.9 {
		return v.Cross(Right)
	}
	return v.Cross(Up)
}

// WrapAngle maps an angle into [-pi, pi].
func WrapAngle(a float32) float32 {
	for a > math.Pi {
		a -= 2 * math.Pi
	}
	for a < -math.Pi {
		a += 2 * math.Pi
	}
	return a
}

// ClosestOnSegment returns the parameter t in [0,1] and the closest point on
// segment ab to p.
func ClosestOnSegment(p, a, b mgl32.Vec3) (float32, mgl32.Vec3) {
	ab := b.Sub(a)
	den := ab.LenSqr()
	if den < Epsilon {
		return 0, a
	}
	t := Saturate(p.Sub(a).Dot(ab) / den)
	return t, a.Add(ab.Mul(t))
}

// QuatAccum sums quaternions with sign alignment so opposite hemispheres do
// not cancel out.
type QuatAccum struct {
	sum   mgl32.Vec4
	first mgl32.Quat
	count int
}

func (a *QuatAccum) Add(q mgl32.Quat, w float32) {
	if a.count == 0 {
		a.first = q
	} else if a.first.Dot(q) < 0 {
		q = mgl32.Quat{W: -q.W, V: q.V.Mul(-1)}
	}
	a.sum = a.sum.Add(mgl32.Vec4{q.V.X(), q.V.Y(), q.V.Z(), q.W}.Mul(w))
	a.count++
}

func (a *QuatAccum) Count() int {
	return a.count
}

// Result returns the normalized average or fallback when nothing was added.
func (a *QuatAccum) Result(fallback mgl32.Quat) mgl32.Quat {
	if a.count == 0 || a.sum.Len() < Epsilon {
		return fallback
	}
	q := mgl32.Quat{W: a.sum.W(), V: mgl32.Vec3{a.sum.X(), a.sum.Y(), a.sum.Z()}}
	return q.Normalize()
}

// TransformPoint applies translation, rotation and scale to a local point.
func TransformPoint(pos mgl32.Vec3, rot mgl32.Quat, scale mgl32.Vec3, local mgl32.Vec3) mgl32.Vec3 {
	s := mgl32.Vec3{local.X() * scale.X(), local.Y() * scale.Y(), local.Z() * scale.Z()}
	return pos.Add(rot.Rotate(s))
}

// InverseTransformPoint maps a world point into the local frame.
func InverseTransformPoint(pos mgl32.Vec3, rot mgl32.Quat, scale mgl32.Vec3, world mgl32.Vec3) mgl32.Vec3 {
	l := rot.Inverse().Rotate(world.Sub(pos))
	return mgl32.Vec3{safeDiv(l.X(), scale.X()), safeDiv(l.Y(), scale.Y()), safeDiv(l.Z(), scale.Z())}
}

func safeDiv(a, b float32) float32 {
	if math.Abs(float64(b)) < Epsilon {
		return 0
	}
	return a / b
}
