// Package team manages simulation groups. A team owns one particle chunk, one
// collider list and at most one constraint group per worker kind.
package team

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/san-kum/clothsim/internal/chunk"
	"github.com/san-kum/clothsim/internal/curve"
)

// GlobalID is the team that owns colliders shared by every team.
const GlobalID = 0

// Kind is the cloth variant a team simulates.
type Kind int

const (
	KindGlobal Kind = iota
	KindBoneCloth
	KindMeshCloth
	KindBoneSpring
	KindMeshSpring
)

func (k Kind) String() string {
	switch k {
	case KindBoneCloth:
		return "bone_cloth"
	case KindMeshCloth:
		return "mesh_cloth"
	case KindBoneSpring:
		return "bone_spring"
	case KindMeshSpring:
		return "mesh_spring"
	}
	return "global"
}

// IsSpring reports whether the kind uses the spring constraint set.
func (k Kind) IsSpring() bool { return k == KindBoneSpring || k == KindMeshSpring }

// IsMesh reports whether particles bind to virtual-mesh vertices.
func (k Kind) IsMesh() bool { return k == KindMeshCloth || k == KindMeshSpring }

// Worker identifies a constraint worker's slot in Team.Groups.
type Worker int

const (
	WorkerRestoreDistance Worker = iota
	WorkerRestoreRotation
	WorkerClampRotation
	WorkerClampPosition
	WorkerClampDistance
	WorkerTriangleBend
	WorkerSpring
	WorkerPenetration
	WorkerAdjustRotation
	WorkerLineRotation
	WorkerTriangleRotation
	WorkerCount
)

// NoGroup marks a worker the team does not use.
const NoGroup = -1

type Flag uint32

const (
	FlagEnable Flag = 1 << iota
	FlagActive
	FlagCollision
	FlagKeepShape
	FlagFixedRotation
	FlagReset
	FlagRuntimeError
	FlagInfluenceInit
)

func (f Flag) Has(x Flag) bool { return f&x != 0 }

func (f Flag) With(x Flag, on bool) Flag {
	if on {
		return f | x
	}
	return f &^ x
}

// ForceMode selects how AddForce is applied.
type ForceMode int

const (
	ForceContinuous ForceMode = iota
	ForceAcceleration
	ForceImpulse
	ForceVelocityChange
)

// Params are the per-team simulation settings shared by every worker.
type Params struct {
	Mass           curve.Param `yaml:"mass"`
	Radius         curve.Param `yaml:"radius"`
	Gravity        mgl32.Vec3  `yaml:"gravity"`
	Drag           curve.Param `yaml:"drag"`
	MaxVelocity    float32     `yaml:"max_velocity"`
	Friction       float32     `yaml:"friction"`
	Collision      bool        `yaml:"collision"`
	KeepShape      bool        `yaml:"keep_shape"`
	FixedRotation  bool        `yaml:"fixed_rotation"`
	MoveInfluence  float32     `yaml:"move_influence"`
	RotInfluence   float32     `yaml:"rotation_influence"`
	MaxMoveSpeed   float32     `yaml:"max_move_speed"`
	TeleportDist   float32     `yaml:"teleport_distance"`
	TeleportAngle  float32     `yaml:"teleport_angle"`
	TeleportReset  bool        `yaml:"teleport_reset"`
	PenetrationOn  bool        `yaml:"penetration"`
	PenetrationLen curve.Param `yaml:"penetration_distance"`
	PenetrationRad curve.Param `yaml:"penetration_radius"`
}

// DefaultParams mirrors the standard preset.
func DefaultParams() Params {
	return Params{
		Mass:           curve.Constant(1),
		Radius:         curve.Constant(0.02),
		Gravity:        mgl32.Vec3{0, -9.8, 0},
		Drag:           curve.Constant(0.01),
		MaxVelocity:    3,
		Friction:       0.2,
		Collision:      true,
		FixedRotation:  true,
		MoveInfluence:  1,
		RotInfluence:   1,
		MaxMoveSpeed:   3,
		TeleportDist:   0.5,
		TeleportAngle:  90,
		PenetrationLen: curve.Constant(0.02),
		PenetrationRad: curve.Constant(0.3),
	}
}

type Team struct {
	ID     int
	Name   string
	Kind   Kind
	Flags  Flag
	Params Params

	Particles chunk.Chunk
	Colliders chunk.Chunk
	Groups    [WorkerCount]int

	// Center is the bone slot driving world influence, or -1.
	Center    int
	CenterPos mgl32.Vec3
	CenterRot mgl32.Quat
	OldCenter mgl32.Vec3
	OldRot    mgl32.Quat

	TimeScale float32
	Force     mgl32.Vec3
	ForceMode ForceMode
	// Step is the scaled delta time of the current frame.
	Step float32
}

// Active reports whether the solver should advance this team.
func (t *Team) Active() bool {
	return t.Flags.Has(FlagEnable) && t.Flags.Has(FlagActive) && !t.Flags.Has(FlagRuntimeError) &&
		t.Particles.IsValid() && t.TimeScale > 0
}

// Group returns the group index the team owns in worker w.
func (t *Team) Group(w Worker) int {
	return t.Groups[w]
}
