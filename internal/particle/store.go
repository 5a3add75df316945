// Package particle holds the structure-of-arrays particle store.
//
// Every slice in [Store] is indexed by the same particle index. Particles are
// allocated in contiguous chunks when a team initializes and only whole
// chunks are ever released. Colliders live in the same store with
// [FlagCollider] set and their shape in Shape/ShapeParam.
package particle

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/san-kum/clothsim/internal/chunk"
	"github.com/san-kum/clothsim/internal/dynamo"
)

// NoIndex marks an unset team, bind or contact reference.
const NoIndex = -1

// Generators compute per-particle values lazily at creation. Every callback
// receives the index local to the new chunk; nil callbacks use defaults.
type Generators struct {
	Flag           func(i int) Flag
	Radius         func(i int) float32
	Depth          func(i int) float32
	TargetLocalPos func(i int) mgl32.Vec3
	TargetLocalRot func(i int) mgl32.Quat
	BindIndex      func(i int) int
}

type Store struct {
	alloc *chunk.Array[Flag]

	Team   []int32
	Depth  []float32
	Radius []float32
	Mass   []float32

	BasePos []mgl32.Vec3
	BaseRot []mgl32.Quat
	Pos     []mgl32.Vec3
	Rot     []mgl32.Quat
	OldPos  []mgl32.Vec3
	OldRot  []mgl32.Quat

	Velocity []mgl32.Vec3
	Friction []float32
	Next     Buffers
	NextRot  []mgl32.Quat

	ContactID     []int32
	ContactDist   []float32
	ContactNormal []mgl32.Vec3

	BindIndex []int32
	LocalPos  []mgl32.Vec3
	LocalRot  []mgl32.Quat

	Shape      []Shape
	ShapeParam []mgl32.Vec4
}

func NewStore(capacity int) *Store {
	return &Store{alloc: chunk.NewArray[Flag](capacity)}
}

// Flags is the live flag slice. It is re-sliced by Create, so passes must
// fetch it at schedule time.
func (s *Store) Flags() []Flag { return s.alloc.Data() }

// Len is the index bound every pass iterates over.
func (s *Store) Len() int { return s.alloc.Len() }

// Count is the number of allocated particles.
func (s *Store) Count() int { return s.alloc.Count() }

func (s *Store) grow(n int) {
	for len(s.Team) < n {
		s.Team = append(s.Team, NoIndex)
		s.Depth = append(s.Depth, 0)
		s.Radius = append(s.Radius, 0)
		s.Mass = append(s.Mass, 1)
		s.BasePos = append(s.BasePos, mgl32.Vec3{})
		s.BaseRot = append(s.BaseRot, mgl32.QuatIdent())
		s.Pos = append(s.Pos, mgl32.Vec3{})
		s.Rot = append(s.Rot, mgl32.QuatIdent())
		s.OldPos = append(s.OldPos, mgl32.Vec3{})
		s.OldRot = append(s.OldRot, mgl32.QuatIdent())
		s.Velocity = append(s.Velocity, mgl32.Vec3{})
		s.Friction = append(s.Friction, 0)
		s.NextRot = append(s.NextRot, mgl32.QuatIdent())
		s.ContactID = append(s.ContactID, NoIndex)
		s.ContactDist = append(s.ContactDist, 0)
		s.ContactNormal = append(s.ContactNormal, mgl32.Vec3{})
		s.BindIndex = append(s.BindIndex, NoIndex)
		s.LocalPos = append(s.LocalPos, mgl32.Vec3{})
		s.LocalRot = append(s.LocalRot, mgl32.QuatIdent())
		s.Shape = append(s.Shape, ShapeNone)
		s.ShapeParam = append(s.ShapeParam, mgl32.Vec4{})
	}
	s.Next.resize(n)
}

// Create allocates count particles for team in one chunk.
func (s *Store) Create(team int, count int, gen Generators) (chunk.Chunk, error) {
	if count <= 0 {
		return chunk.Empty, dynamo.ErrZeroCount
	}
	c := s.alloc.Add(count)
	s.grow(s.alloc.Len())

	flags := s.alloc.Data()
	for li := 0; li < count; li++ {
		i := c.Start + li

		f := FlagEnable | FlagMove
		if gen.Flag != nil {
			f = gen.Flag(li)
		}
		flags[i] = f | FlagReset

		s.Team[i] = int32(team)
		s.Radius[i] = valueOr(gen.Radius, li, 0.02)
		s.Depth[i] = valueOr(gen.Depth, li, 0)
		s.Mass[i] = 1
		s.LocalPos[i] = mgl32.Vec3{}
		if gen.TargetLocalPos != nil {
			s.LocalPos[i] = gen.TargetLocalPos(li)
		}
		s.LocalRot[i] = mgl32.QuatIdent()
		if gen.TargetLocalRot != nil {
			s.LocalRot[i] = gen.TargetLocalRot(li)
		}
		s.BindIndex[i] = NoIndex
		if gen.BindIndex != nil {
			s.BindIndex[i] = int32(gen.BindIndex(li))
		}

		s.BasePos[i], s.Pos[i], s.OldPos[i] = mgl32.Vec3{}, mgl32.Vec3{}, mgl32.Vec3{}
		s.BaseRot[i], s.Rot[i], s.OldRot[i] = mgl32.QuatIdent(), mgl32.QuatIdent(), mgl32.QuatIdent()
		s.NextRot[i] = mgl32.QuatIdent()
		s.Next.Set(i, mgl32.Vec3{})
		s.Velocity[i] = mgl32.Vec3{}
		s.Friction[i] = 0
		s.ContactID[i] = NoIndex
		s.ContactDist[i] = 0
		s.ContactNormal[i] = mgl32.Vec3{}
		s.Shape[i] = ShapeNone
		s.ShapeParam[i] = mgl32.Vec4{}
	}
	return c, nil
}

func valueOr(fn func(int) float32, i int, def float32) float32 {
	if fn == nil {
		return def
	}
	return fn(i)
}

// Remove releases a chunk. Flags are cleared so stale indices are skipped by
// every pass.
func (s *Store) Remove(c chunk.Chunk) {
	if !c.IsValid() || c.End() > s.alloc.Len() {
		return
	}
	flags := s.alloc.Data()
	for i := c.Start; i < c.End(); i++ {
		flags[i] = 0
		s.Team[i] = NoIndex
	}
	s.alloc.Remove(c)
}

// SetEnable toggles simulation participation without touching poses.
func (s *Store) SetEnable(c chunk.Chunk, on bool) {
	if !c.IsValid() || c.End() > s.alloc.Len() {
		return
	}
	flags := s.alloc.Data()
	for i := c.Start; i < c.End(); i++ {
		flags[i] = flags[i].With(FlagEnable, on)
	}
}

// SetFlag sets or clears x on every particle of c.
func (s *Store) SetFlag(c chunk.Chunk, x Flag, on bool) {
	if !c.IsValid() || c.End() > s.alloc.Len() {
		return
	}
	flags := s.alloc.Data()
	for i := c.Start; i < c.End(); i++ {
		flags[i] = flags[i].With(x, on)
	}
}

// ResetPose snaps particle i onto its base pose and clears its motion.
func (s *Store) ResetPose(i int) {
	s.Pos[i] = s.BasePos[i]
	s.OldPos[i] = s.BasePos[i]
	s.Rot[i] = s.BaseRot[i]
	s.OldRot[i] = s.BaseRot[i]
	s.NextRot[i] = s.BaseRot[i]
	s.Next.Set(i, s.BasePos[i])
	s.Velocity[i] = mgl32.Vec3{}
	s.Friction[i] = 0
	s.ContactID[i] = NoIndex
	s.ContactDist[i] = 0
}

// Teleport shifts every pose of i by a rigid transform about pivot.
func (s *Store) Teleport(i int, pivot mgl32.Vec3, offset mgl32.Vec3, rot mgl32.Quat) {
	move := func(p mgl32.Vec3) mgl32.Vec3 {
		return pivot.Add(rot.Rotate(p.Sub(pivot))).Add(offset)
	}
	s.Pos[i] = move(s.Pos[i])
	s.OldPos[i] = move(s.OldPos[i])
	s.Velocity[i] = rot.Rotate(s.Velocity[i])
	s.Rot[i] = rot.Mul(s.Rot[i]).Normalize()
	s.OldRot[i] = rot.Mul(s.OldRot[i]).Normalize()
}

// InvMass returns zero for particles the solver must not move.
func (s *Store) InvMass(i int, f Flag) float32 {
	if !f.Simulated() || s.Mass[i] <= 0 {
		return 0
	}
	return 1 / s.Mass[i]
}
