package cloth

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/san-kum/clothsim/internal/bone"
	"github.com/san-kum/clothsim/internal/collision"
	"github.com/san-kum/clothsim/internal/constraint"
	"github.com/san-kum/clothsim/internal/curve"
	"github.com/san-kum/clothsim/internal/dynamo"
	"github.com/san-kum/clothsim/internal/particle"
	"github.com/san-kum/clothsim/internal/status"
	"github.com/san-kum/clothsim/internal/team"
	"github.com/san-kum/clothsim/internal/vmesh"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func line(n int) ([]mgl32.Vec3, []bool) {
	pos := make([]mgl32.Vec3, n)
	fixed := make([]bool, n)
	for i := range pos {
		pos[i] = mgl32.Vec3{0, -0.1 * float32(i), 0}
	}
	fixed[0] = true
	return pos, fixed
}

// quad is one square cell split along the 1-2 diagonal.
func quad(t *testing.T) *vmesh.SharedMesh {
	t.Helper()
	pos := []mgl32.Vec3{{0, 0, 0}, {0.1, 0, 0}, {0, 0, 0.1}, {0.1, 0, 0.1}}
	w := make([]vmesh.BoneWeight, len(pos))
	for i := range w {
		w[i] = vmesh.Rigid(0)
	}
	sh, err := vmesh.NewSharedMesh(pos, nil, nil, w, []mgl32.Mat4{mgl32.Ident4()}, [][3]int32{{0, 2, 1}, {1, 2, 3}})
	require.NoError(t, err)
	return sh
}

func boneCloth(t *testing.T, ctx *Context, n int) *Cloth {
	t.Helper()
	pos, fixed := line(n)
	ids := make([]bone.TransformID, n)
	for i := range ids {
		ids[i] = bone.NewID()
		p := bone.Identity()
		p.Pos = pos[i]
		ctx.Bones.Add(ids[i], p)
	}
	return New(ctx, Config{Name: "tail", Kind: team.KindBoneCloth, Data: FromLine(pos, fixed, DefaultBuildParams()), Bones: ids})
}

func meshCloth(t *testing.T, ctx *Context, kind team.Kind) *Cloth {
	t.Helper()
	sh := quad(t)
	root := bone.NewID()
	ctx.Bones.Add(root, bone.Identity())
	d := FromMesh(sh, []bool{true, true, false, false}, DefaultBuildParams())
	return New(ctx, Config{
		Name:      "skirt",
		Kind:      kind,
		Data:      d,
		Mesh:      sh,
		MeshBones: []bone.TransformID{root},
		Render:    vmesh.LinkRigid(sh),
	})
}

func TestFromLineDepth(t *testing.T) {
	pos, fixed := line(5)
	d := FromLine(pos, fixed, DefaultBuildParams())
	require.NoError(t, d.Verify())

	assert.Equal(t, []float32{0, 0.25, 0.5, 0.75, 1}, d.Depth)
	assert.Equal(t, []int{-1, 0, 1, 2, 3}, d.Parents)
	assert.Len(t, d.Distances[constraint.Structural], 4)
	assert.Len(t, d.Distances[constraint.Bend], 3)
	assert.Empty(t, d.Distances[constraint.Near])
	assert.Equal(t, VertexFixed, d.Flags[0])
	assert.Equal(t, VertexMove, d.Flags[4])
	assert.InDelta(t, 0.1, d.Targets[0].Length, 1e-6)
}

func TestFromLineNearPairs(t *testing.T) {
	pos, fixed := line(5)
	p := DefaultBuildParams()
	p.NearDistance = 0.35
	d := FromLine(pos, fixed, p)
	// 0-3 and 1-4 are the only unlinked pairs within range
	assert.Len(t, d.Distances[constraint.Near], 2)
}

func TestFromMeshQuads(t *testing.T) {
	sh := quad(t)
	d := FromMesh(sh, []bool{true, true, false, false}, DefaultBuildParams())
	require.NoError(t, d.Verify())

	assert.Equal(t, []constraint.Quad{{A: 1, B: 2, C: 0, D: 3}}, d.Quads)
	require.Len(t, d.Distances[constraint.Bend], 1)
	assert.Equal(t, 0, d.Distances[constraint.Bend][0].A)
	assert.Equal(t, 3, d.Distances[constraint.Bend][0].B)
	assert.Len(t, d.Distances[constraint.Structural], 5)
	assert.Len(t, d.Triangles, 2)
	assert.Equal(t, sh.Hash(), d.MeshHash)
	assert.Equal(t, float32(0), d.Depth[0])
	assert.Equal(t, float32(1), d.Depth[3])
}

func TestDataVerify(t *testing.T) {
	pos, fixed := line(3)
	tests := []struct {
		name string
		edit func(d *Data)
		want error
	}{
		{"empty", func(d *Data) { d.Flags = nil }, dynamo.ErrEmptyData},
		{"future version", func(d *Data) { d.Version = DataVersion + 1 }, dynamo.ErrVersionMismatch},
		{"ancient version", func(d *Data) { d.Version = MinDataVersion - 1 }, dynamo.ErrVersionMismatch},
		{"short depth", func(d *Data) { d.Depth = d.Depth[:1] }, dynamo.ErrIndexOutOfRange},
		{"hash", func(d *Data) { d.RestPos[2] = mgl32.Vec3{1, 1, 1} }, dynamo.ErrHashMismatch},
		{"old version", func(d *Data) { d.Version = MinDataVersion }, dynamo.ErrOldVersion},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := FromLine(pos, fixed, DefaultBuildParams())
			tt.edit(d)
			err := d.Verify()
			require.ErrorIs(t, err, tt.want)
			assert.Equal(t, tt.want == dynamo.ErrOldVersion, dynamo.IsWarning(err))
		})
	}
}

func TestCapabilities(t *testing.T) {
	assert.Equal(t, Capabilities{SupportsTriangleBend: true}, CapabilitiesOf(team.KindBoneCloth))
	assert.True(t, CapabilitiesOf(team.KindMeshCloth).HasMeshTopology)
	assert.True(t, CapabilitiesOf(team.KindMeshSpring).RequiresRotationAdjust)
	assert.False(t, CapabilitiesOf(team.KindBoneSpring).HasMeshTopology)
	assert.Equal(t, Capabilities{}, CapabilitiesOf(team.KindGlobal))
}

func TestBoneClothInit(t *testing.T) {
	ctx := NewContext(collision.DefaultParams())
	c := boneCloth(t, ctx, 4)
	require.NoError(t, c.Init())
	ctx.Graph.Update()

	st, err := c.Status()
	require.NoError(t, err)
	assert.Equal(t, status.InitComplete, st.Init)
	assert.True(t, st.Active)

	tm, err := ctx.Teams.Get(c.Team())
	require.NoError(t, err)
	assert.True(t, tm.Active())
	assert.True(t, tm.Flags.Has(team.FlagReset))
	assert.NotEqual(t, team.NoGroup, tm.Group(team.WorkerRestoreDistance))
	assert.NotEqual(t, team.NoGroup, tm.Group(team.WorkerLineRotation))
	assert.Equal(t, team.NoGroup, tm.Group(team.WorkerSpring))

	flags := ctx.Particles.Flags()
	root, tip := c.Particles().Start, c.Particles().End()-1
	assert.True(t, flags[root].Has(particle.FlagKinematic))
	assert.True(t, flags[tip].Simulated())
	assert.True(t, flags[tip].Has(particle.FlagWriteTransform))
	assert.False(t, flags[root].Has(particle.FlagWriteTransform))
	assert.Equal(t, float32(1), ctx.Particles.Depth[tip])
}

func TestBoneSpringWorkers(t *testing.T) {
	ctx := NewContext(collision.DefaultParams())
	pos, fixed := line(2)
	ids := []bone.TransformID{bone.NewID(), bone.NewID()}
	for i, id := range ids {
		p := bone.Identity()
		p.Pos = pos[i]
		ctx.Bones.Add(id, p)
	}
	c := New(ctx, Config{Name: "hair", Kind: team.KindBoneSpring, Data: FromLine(pos, fixed, DefaultBuildParams()), Bones: ids})
	require.NoError(t, c.Init())

	tm, err := ctx.Teams.Get(c.Team())
	require.NoError(t, err)
	assert.NotEqual(t, team.NoGroup, tm.Group(team.WorkerSpring))
	assert.NotEqual(t, team.NoGroup, tm.Group(team.WorkerAdjustRotation))
	assert.Equal(t, team.NoGroup, tm.Group(team.WorkerRestoreDistance))
}

func TestInitErrorIsPermanent(t *testing.T) {
	ctx := NewContext(collision.DefaultParams())
	c := boneCloth(t, ctx, 3)
	c.cfg.Data.RestPos[1] = mgl32.Vec3{5, 5, 5}

	err := c.Init()
	require.ErrorIs(t, err, dynamo.ErrInitFailed)
	assert.ErrorIs(t, err, dynamo.ErrHashMismatch)
	assert.Equal(t, -1, c.Team())

	// fixing the data does not revive the component
	c.cfg.Data.Seal()
	assert.ErrorIs(t, c.Init(), dynamo.ErrInitFailed)
	require.NoError(t, ctx.Graph.SetInit(c.Node(), status.InitComplete))
	ctx.Graph.Update()
	st, _ := c.Status()
	assert.Equal(t, status.InitError, st.Init)
	assert.False(t, st.Active)
	assert.ErrorIs(t, c.ResetCloth(), dynamo.ErrInitFailed)
}

func TestOldVersionStillInitializes(t *testing.T) {
	ctx := NewContext(collision.DefaultParams())
	c := boneCloth(t, ctx, 3)
	c.cfg.Data.Version = MinDataVersion
	require.NoError(t, c.Init())
	assert.GreaterOrEqual(t, c.Team(), 1)
}

func TestMeshHashMismatch(t *testing.T) {
	ctx := NewContext(collision.DefaultParams())
	c := meshCloth(t, ctx, team.KindMeshCloth)
	c.cfg.Data.MeshHash++
	assert.ErrorIs(t, c.Init(), dynamo.ErrHashMismatch)
	assert.Equal(t, -1, c.Instance())
}

func TestMissingBone(t *testing.T) {
	ctx := NewContext(collision.DefaultParams())
	pos, fixed := line(2)
	c := New(ctx, Config{Name: "x", Kind: team.KindBoneCloth, Data: FromLine(pos, fixed, DefaultBuildParams()),
		Bones: []bone.TransformID{bone.NewID(), bone.NewID()}})
	assert.ErrorIs(t, c.Init(), dynamo.ErrIndexOutOfRange)
}

func TestMeshClothLifecycle(t *testing.T) {
	ctx := NewContext(collision.DefaultParams())
	c := meshCloth(t, ctx, team.KindMeshCloth)
	require.NoError(t, c.Init())
	ctx.Graph.Update()

	inst, render := c.Instance(), c.Render()
	require.GreaterOrEqual(t, inst, 0)
	require.GreaterOrEqual(t, render, 0)
	for v := 0; v < 4; v++ {
		assert.True(t, ctx.Meshes.InUse(inst, v))
	}
	id := c.Team()
	tm, _ := ctx.Teams.Get(id)
	assert.NotEqual(t, team.NoGroup, tm.Group(team.WorkerTriangleBend))
	assert.NotEqual(t, team.NoGroup, tm.Group(team.WorkerTriangleRotation))
	assert.True(t, ctx.Particles.Flags()[c.Particles().Start+3].Has(particle.FlagTriangleRotation))

	particles := ctx.Particles.Count()
	c.Dispose()
	assert.Equal(t, particles-4, ctx.Particles.Count())
	assert.False(t, ctx.Teams.Exists(id))

	// deformers survive until their orphaned nodes are collected
	_, err := ctx.Meshes.Instance(inst)
	assert.NoError(t, err)
	assert.Equal(t, 2, ctx.Collect())
	_, err = ctx.Meshes.Instance(inst)
	assert.ErrorIs(t, err, dynamo.ErrDestroyed)
	_, err = ctx.Meshes.Render(render)
	assert.ErrorIs(t, err, dynamo.ErrDestroyed)
	assert.Equal(t, 0, ctx.Graph.Len())
}

func TestSetEnableDeactivates(t *testing.T) {
	ctx := NewContext(collision.DefaultParams())
	c := boneCloth(t, ctx, 3)
	require.NoError(t, c.Init())
	ctx.Graph.Update()

	require.NoError(t, c.SetEnable(false))
	ctx.Graph.Update()
	tm, _ := ctx.Teams.Get(c.Team())
	assert.False(t, tm.Active())
	assert.False(t, ctx.Particles.Flags()[c.Particles().Start].Has(particle.FlagEnable))

	require.NoError(t, c.SetEnable(true))
	ctx.Graph.Update()
	assert.True(t, tm.Active())
}

func TestDeformersFollowClothActiveState(t *testing.T) {
	ctx := NewContext(collision.DefaultParams())
	c := meshCloth(t, ctx, team.KindMeshCloth)
	require.NoError(t, c.Init())
	ctx.Graph.Update()

	m := ctx.Meshes
	inst, err := m.Instance(c.Instance())
	require.NoError(t, err)
	slot := inst.Bones[0]
	idx, err := m.Index(c.Instance(), 2)
	require.NoError(t, err)
	rest := inst.Shared.Positions[2]
	r, err := m.Render(c.Render())
	require.NoError(t, err)

	lift := func(y float32) {
		p := bone.Identity()
		p.Pos = mgl32.Vec3{0, y, 0}
		ctx.Bones.Set(slot, p)
		m.Skin(nil).Complete()
	}
	lift(1)
	assert.InDelta(t, rest.Y()+1, m.Pos[idx].Y(), 1e-5)

	require.NoError(t, c.SetEnable(false))
	ctx.Graph.Update()
	assert.False(t, ctx.Graph.Active(c.meshNode))
	lift(2)
	assert.InDelta(t, rest.Y()+1, m.Pos[idx].Y(), 1e-5, "inactive instance is not skinned")
	sentinel := mgl32.Vec3{9, 9, 9}
	r.Positions[2] = sentinel
	m.WriteRender(nil).Complete()
	assert.Equal(t, sentinel, r.Positions[2], "inactive render keeps its output")

	require.NoError(t, c.SetEnable(true))
	ctx.Graph.Update()
	lift(2)
	assert.InDelta(t, rest.Y()+2, m.Pos[idx].Y(), 1e-5)
	m.WriteRender(nil).Complete()
	assert.NotEqual(t, sentinel, r.Positions[2])
}

func TestControl(t *testing.T) {
	ctx := NewContext(collision.DefaultParams())
	c := meshCloth(t, ctx, team.KindMeshCloth)
	require.NoError(t, c.Init())
	tm, _ := ctx.Teams.Get(c.Team())

	require.NoError(t, c.SetTimeScale(3))
	assert.Equal(t, float32(1), tm.TimeScale)

	require.NoError(t, c.AddForce(mgl32.Vec3{1, 0, 0}, team.ForceImpulse))
	require.NoError(t, c.AddForce(mgl32.Vec3{0, 2, 0}, team.ForceImpulse))
	assert.Equal(t, mgl32.Vec3{1, 2, 0}, tm.Force)

	require.NoError(t, c.SetRadius(curve.Constant(0.05)))
	assert.Equal(t, float32(0.05), ctx.Particles.Radius[c.Particles().Start+2])

	require.NoError(t, c.SetPenetration(true, constraint.DefaultPenetrationParams()))
	assert.NotEqual(t, team.NoGroup, tm.Group(team.WorkerPenetration))
	require.NoError(t, c.SetPenetration(false, constraint.DefaultPenetrationParams()))
	assert.Equal(t, team.NoGroup, tm.Group(team.WorkerPenetration))

	require.NoError(t, c.SetCollision(false))
	assert.False(t, tm.Flags.Has(team.FlagCollision))

	idx, err := c.CreateCollider(particle.ShapeSphere, mgl32.Vec3{}, mgl32.QuatIdent(), mgl32.Vec4{0.1, 0.1})
	require.NoError(t, err)
	assert.Contains(t, c.Colliders(), int32(idx))

	require.NoError(t, c.ResetCloth())
	assert.True(t, tm.Flags.Has(team.FlagReset))

	assert.ErrorIs(t, c.SetSpringPower(constraint.SpringParams{}), dynamo.ErrInvalidChunk)

	c.Dispose()
	assert.ErrorIs(t, c.SetTimeScale(1), dynamo.ErrDestroyed)
}

func TestReplaceBone(t *testing.T) {
	ctx := NewContext(collision.DefaultParams())
	c := boneCloth(t, ctx, 3)
	require.NoError(t, c.Init())

	from := c.cfg.Bones[2]
	to := bone.NewID()
	n, err := c.ReplaceBone(map[bone.TransformID]bone.TransformID{from: to})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, to, c.cfg.Bones[2])
	slot, ok := ctx.Bones.Index(to)
	require.True(t, ok)
	assert.Equal(t, int32(slot), ctx.Particles.BindIndex[c.Particles().Start+2])
}

func TestCheckRaisesRuntimeError(t *testing.T) {
	ctx := NewContext(collision.DefaultParams())
	c := meshCloth(t, ctx, team.KindMeshSpring)
	require.NoError(t, c.Init())
	ctx.Graph.Update()
	require.NoError(t, c.Check())

	inst, _ := ctx.Meshes.Instance(c.Instance())
	for !inst.Shared.Release() {
	}
	require.ErrorIs(t, c.Check(), dynamo.ErrRuntime)
	ctx.Graph.Update()
	st, _ := c.Status()
	assert.True(t, st.RuntimeError)
	assert.False(t, st.Active)
	tm, _ := ctx.Teams.Get(c.Team())
	assert.False(t, tm.Active())
}
