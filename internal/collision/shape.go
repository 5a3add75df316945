package collision

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/san-kum/clothsim/internal/mathx"
	"github.com/san-kum/clothsim/internal/particle"
)

// pose is a collider transform at one instant.
type pose struct {
	pos mgl32.Vec3
	rot mgl32.Quat
}

var axes = [3]mgl32.Vec3{mathx.Right, mathx.Up, mathx.Forward}

// segment returns the capsule end points and end radii at p.
func segment(p pose, param mgl32.Vec4) (a, b mgl32.Vec3, ra, rb float32) {
	axis := int(param.W())
	if axis < 0 || axis > 2 {
		axis = 1
	}
	half := p.rot.Rotate(axes[axis]).Mul(param.Z() * 0.5)
	return p.pos.Sub(half), p.pos.Add(half), param.X(), param.Y()
}

// plane is a contact plane through point with unit normal.
type plane struct {
	point  mgl32.Vec3
	normal mgl32.Vec3
}

// distance is the signed gap between a sphere of radius r at p and the plane.
func (pl plane) distance(p mgl32.Vec3, r float32) float32 {
	return p.Sub(pl.point).Dot(pl.normal) - r
}

// contactPlane builds the tangent plane of collider shape at now, oriented by
// ref measured against the collider at refPose. ref is the particle's old
// position in normal mode and its base position in keep-shape mode.
func contactPlane(shape particle.Shape, param mgl32.Vec4, now, refPose pose, ref, next mgl32.Vec3) (plane, bool) {
	switch shape {
	case particle.ShapeSphere:
		dir := outward(ref.Sub(refPose.pos), next.Sub(now.pos))
		return plane{point: now.pos.Add(dir.Mul(param.X())), normal: dir}, true

	case particle.ShapeCapsule:
		oa, ob, _, _ := segment(refPose, param)
		t, closest := mathx.ClosestOnSegment(ref, oa, ob)
		a, b, ra, rb := segment(now, param)
		center := mathx.LerpVec(a, b, t)
		dir := outward(ref.Sub(closest), next.Sub(center))
		r := mathx.Lerp(ra, rb, t)
		return plane{point: center.Add(dir.Mul(r)), normal: dir}, true

	case particle.ShapePlane:
		n, _ := mathx.Normalize(now.rot.Rotate(mathx.Up))
		return plane{point: now.pos, normal: n}, true
	}
	return plane{}, false
}

// outward normalizes dir, falling back to alt and then to up.
func outward(dir, alt mgl32.Vec3) mgl32.Vec3 {
	if n, l := mathx.Normalize(dir); l > 0 {
		return n
	}
	if n, l := mathx.Normalize(alt); l > 0 {
		return n
	}
	return mathx.Up
}

// Distance is the exact signed surface gap between a sphere of radius r at p
// and collider c at its current pose. Negative values are penetration depth.
func Distance(s *particle.Store, c int, p mgl32.Vec3, r float32) float32 {
	param := s.ShapeParam[c]
	now := pose{pos: s.Pos[c], rot: s.Rot[c]}
	switch s.Shape[c] {
	case particle.ShapeSphere:
		return p.Sub(now.pos).Len() - param.X() - r
	case particle.ShapeCapsule:
		a, b, ra, rb := segment(now, param)
		t, q := mathx.ClosestOnSegment(p, a, b)
		return p.Sub(q).Len() - mathx.Lerp(ra, rb, t) - r
	case particle.ShapePlane:
		n, _ := mathx.Normalize(now.rot.Rotate(mathx.Up))
		return p.Sub(now.pos).Dot(n) - r
	}
	return 0
}

// Segment returns the current end points and end radii of collider c. A
// sphere collapses to a single point.
func Segment(s *particle.Store, c int) (a, b mgl32.Vec3, ra, rb float32) {
	param := s.ShapeParam[c]
	if s.Shape[c] != particle.ShapeCapsule {
		return s.Pos[c], s.Pos[c], param.X(), param.X()
	}
	return segment(pose{pos: s.Pos[c], rot: s.Rot[c]}, param)
}
