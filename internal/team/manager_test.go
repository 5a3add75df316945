package team

import (
	"errors"
	"testing"

	"github.com/san-kum/clothsim/internal/chunk"
	"github.com/san-kum/clothsim/internal/dynamo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGlobalTeam(t *testing.T) {
	m := NewManager()
	require.True(t, m.Exists(GlobalID))

	m.Remove(GlobalID)
	assert.True(t, m.Exists(GlobalID))
	assert.Equal(t, 1, m.Count())
}

func TestCreateRemove(t *testing.T) {
	m := NewManager()
	id := m.Create("skirt", KindMeshCloth)
	assert.NotEqual(t, GlobalID, id)

	tm, err := m.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "skirt", tm.Name)
	assert.Equal(t, id, tm.ID)
	for w := Worker(0); w < WorkerCount; w++ {
		assert.Equal(t, NoGroup, tm.Group(w))
	}

	m.Remove(id)
	_, err = m.Get(id)
	assert.True(t, errors.Is(err, dynamo.ErrUnknownTeam))
	assert.Nil(t, m.Lookup(int32(id)))
}

func TestActive(t *testing.T) {
	m := NewManager()
	id := m.Create("tail", KindBoneCloth)

	require.NoError(t, m.Update(id, func(tm *Team) {
		tm.Particles = chunk.Chunk{Start: 0, Length: 3, UseLength: 3}
		tm.Flags |= FlagActive
	}))
	assert.True(t, m.ActiveParticle(int32(id)))

	require.NoError(t, m.Update(id, func(tm *Team) { tm.Flags |= FlagRuntimeError }))
	assert.False(t, m.ActiveParticle(int32(id)))

	require.NoError(t, m.Update(id, func(tm *Team) {
		tm.Flags &^= FlagRuntimeError
		tm.TimeScale = 0
	}))
	assert.False(t, m.ActiveParticle(int32(id)))
}

func TestKind(t *testing.T) {
	assert.True(t, KindBoneSpring.IsSpring())
	assert.False(t, KindMeshCloth.IsSpring())
	assert.True(t, KindMeshSpring.IsMesh())
	assert.Equal(t, "bone_cloth", KindBoneCloth.String())
}
