package particle

// Flag holds per-particle state bits.
type Flag uint32

const (
	FlagEnable Flag = 1 << iota
	FlagKinematic
	FlagMove
	FlagCollider
	FlagCollision
	FlagTriangleRotation
	FlagStep
	FlagReadTransform
	FlagWriteTransform
	FlagReset
)

func (f Flag) Has(x Flag) bool { return f&x != 0 }

func (f Flag) With(x Flag, on bool) Flag {
	if on {
		return f | x
	}
	return f &^ x
}

// Simulated reports whether the solver may move a particle with these flags.
func (f Flag) Simulated() bool {
	return f.Has(FlagEnable) && f.Has(FlagMove) && !f.Has(FlagKinematic) && !f.Has(FlagCollider)
}

// Shape is the analytic collider shape carried by collider particles.
type Shape uint8

const (
	ShapeNone Shape = iota
	ShapeSphere
	ShapeCapsule
	ShapePlane
)

func (s Shape) String() string {
	switch s {
	case ShapeSphere:
		return "sphere"
	case ShapeCapsule:
		return "capsule"
	case ShapePlane:
		return "plane"
	}
	return "none"
}
