package bone

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddSharesSlot(t *testing.T) {
	s := NewStore()
	id := NewID()

	a := s.Add(id, Identity())
	b := s.Add(id, Identity())
	assert.Equal(t, a, b)
	assert.Equal(t, 2, s.Refs(a))

	s.Release(a)
	_, ok := s.Index(id)
	assert.True(t, ok)

	s.Release(a)
	_, ok = s.Index(id)
	assert.False(t, ok)
	assert.Equal(t, 0, s.Count())
}

func TestCommitOld(t *testing.T) {
	s := NewStore()
	i := s.Add(NewID(), Identity())

	p := Identity()
	p.Pos = mgl32.Vec3{1, 2, 3}
	s.Set(i, p)
	assert.Equal(t, mgl32.Vec3{}, s.Old(i).Pos)

	s.CommitOld()
	assert.Equal(t, mgl32.Vec3{1, 2, 3}, s.Old(i).Pos)
}

func TestReplaceKeepsIndices(t *testing.T) {
	s := NewStore()
	oldA, oldB := NewID(), NewID()
	newA, newB := NewID(), NewID()
	ia := s.Add(oldA, Identity())
	ib := s.Add(oldB, Identity())

	n := s.Replace(map[TransformID]TransformID{oldA: newA, oldB: newB, NewID(): NewID()})
	assert.Equal(t, 2, n)

	got, ok := s.Index(newA)
	require.True(t, ok)
	assert.Equal(t, ia, got)
	got, ok = s.Index(newB)
	require.True(t, ok)
	assert.Equal(t, ib, got)

	_, ok = s.Index(oldA)
	assert.False(t, ok)

	id, _ := s.ID(ia)
	assert.Equal(t, newA, id)
}

func TestReplaceSwap(t *testing.T) {
	s := NewStore()
	a, b := NewID(), NewID()
	ia := s.Add(a, Identity())
	ib := s.Add(b, Identity())

	s.Replace(map[TransformID]TransformID{a: b, b: a})
	got, _ := s.Index(b)
	assert.Equal(t, ia, got)
	got, _ = s.Index(a)
	assert.Equal(t, ib, got)
}

func TestPoseMatrix(t *testing.T) {
	p := Pose{Pos: mgl32.Vec3{1, 0, 0}, Rot: mgl32.QuatRotate(mgl32.DegToRad(90), mgl32.Vec3{0, 0, 1}), Scale: mgl32.Vec3{2, 2, 2}}
	v := p.Matrix().Mul4x1(mgl32.Vec4{1, 0, 0, 1}).Vec3()
	assert.InDelta(t, 1, v.X(), 1e-5)
	assert.InDelta(t, 2, v.Y(), 1e-5)
	assert.InDelta(t, 0, v.Z(), 1e-5)
}

func TestWriteBack(t *testing.T) {
	s := NewStore()
	i := s.Add(NewID(), Identity())
	_, ok := s.Written(i)
	assert.False(t, ok)

	s.Write(i, mgl32.Vec3{0, 1, 0}, mgl32.QuatIdent())
	p, ok := s.Written(i)
	require.True(t, ok)
	assert.Equal(t, mgl32.Vec3{0, 1, 0}, p.Pos)
}
