package cloth

import (
	"fmt"
	"sync"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
	"github.com/san-kum/clothsim/internal/bone"
	"github.com/san-kum/clothsim/internal/chunk"
	"github.com/san-kum/clothsim/internal/constraint"
	"github.com/san-kum/clothsim/internal/dynamo"
	"github.com/san-kum/clothsim/internal/logger"
	"github.com/san-kum/clothsim/internal/particle"
	"github.com/san-kum/clothsim/internal/status"
	"github.com/san-kum/clothsim/internal/team"
	"github.com/san-kum/clothsim/internal/vmesh"
	"go.uber.org/zap"
)

// Config describes one cloth component.
type Config struct {
	Name string
	Kind team.Kind
	Data *Data

	// Bones drive bone variants, one transform per vertex.
	Bones []bone.TransformID

	// Mesh and MeshBones drive mesh variants; MeshBones maps the mesh's bind
	// poses to transforms.
	Mesh      *vmesh.SharedMesh
	MeshBones []bone.TransformID

	// Render is optional. Its output is local to RenderTransform.
	Render          *vmesh.RenderMesh
	RenderTransform bone.TransformID

	// Center anchors world influence and teleport detection. It defaults to
	// the first fixed bone or the first mesh bone.
	Center bone.TransformID
}

// Cloth is one simulated component. It is created uninitialized; Init
// verifies the authored data and builds the team.
type Cloth struct {
	mu   sync.Mutex
	ctx  *Context
	cfg  Config
	caps Capabilities

	node       status.NodeID
	meshNode   status.NodeID
	renderNode status.NodeID

	team      int
	particles chunk.Chunk
	slots     []int
	instance  int
	render    int
	colliders []int

	err      error
	disposed bool
}

func New(ctx *Context, cfg Config) *Cloth {
	c := &Cloth{
		ctx:       ctx,
		cfg:       cfg,
		caps:      CapabilitiesOf(cfg.Kind),
		team:      -1,
		particles: chunk.Empty,
		instance:  -1,
		render:    -1,
	}
	c.node = ctx.Graph.Add(cfg.Name, c.onActive)
	return c
}

func (c *Cloth) Name() string               { return c.cfg.Name }
func (c *Cloth) Kind() team.Kind            { return c.cfg.Kind }
func (c *Cloth) Capabilities() Capabilities { return c.caps }
func (c *Cloth) Node() status.NodeID        { return c.node }
func (c *Cloth) Team() int                  { return c.team }
func (c *Cloth) Particles() chunk.Chunk     { return c.particles }
func (c *Cloth) Instance() int              { return c.instance }
func (c *Cloth) Render() int                { return c.render }
func (c *Cloth) Err() error                 { return c.err }

// onActive mirrors the status graph onto the team. Teams reset when they
// become active so they never resume from a stale pose.
func (c *Cloth) onActive(active bool) {
	if c.team < 0 {
		return
	}
	_ = c.ctx.Teams.Update(c.team, func(t *team.Team) {
		t.Flags = t.Flags.With(team.FlagActive, active)
		if active {
			t.Flags |= team.FlagReset
		}
	})
	logger.Debug("cloth active changed", zap.String("cloth", c.cfg.Name), zap.Bool("active", active))
}

// Init verifies and builds the cloth. A data integrity failure leaves the
// component in InitError for the rest of the session.
func (c *Cloth) Init() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.disposed {
		return dynamo.ErrDestroyed
	}
	if c.err != nil {
		return c.err
	}
	if c.team >= 0 {
		return nil
	}
	g := c.ctx.Graph
	_ = g.SetInit(c.node, status.InitStart)

	err := c.verify()
	if err != nil && !dynamo.IsWarning(err) {
		return c.fail(err)
	}
	if err != nil {
		logger.Warn("cloth data warning", zap.String("cloth", c.cfg.Name), zap.Error(err))
	}
	if err := c.setup(); err != nil {
		c.release()
		return c.fail(err)
	}
	_ = g.SetInit(c.node, status.InitComplete)
	logger.Info("cloth initialized",
		zap.String("cloth", c.cfg.Name),
		zap.Stringer("kind", c.cfg.Kind),
		zap.Int("team", c.team),
		zap.Int("particles", c.particles.Length),
	)
	return nil
}

func (c *Cloth) fail(err error) error {
	c.err = fmt.Errorf("%w: %s: %w", dynamo.ErrInitFailed, c.cfg.Name, err)
	_ = c.ctx.Graph.SetInit(c.node, status.InitError)
	logger.Error("cloth init failed", zap.String("cloth", c.cfg.Name), zap.Error(err))
	return c.err
}

func (c *Cloth) verify() error {
	d := c.cfg.Data
	warn := d.Verify()
	if warn != nil && !dynamo.IsWarning(warn) {
		return warn
	}
	switch c.cfg.Kind {
	case team.KindBoneCloth, team.KindBoneSpring, team.KindMeshCloth, team.KindMeshSpring:
	default:
		return dynamo.Verify("cloth kind", dynamo.ErrVersionMismatch)
	}

	if c.caps.HasMeshTopology {
		sh := c.cfg.Mesh
		if sh == nil {
			return dynamo.Verify("cloth mesh", dynamo.ErrEmptyData)
		}
		if err := sh.Verify(); err != nil {
			return err
		}
		if sh.VertexCount() != d.Count() {
			return dynamo.Verify("cloth mesh vertices", dynamo.ErrIndexOutOfRange)
		}
		if d.MeshHash != 0 && d.MeshHash != sh.Hash() {
			return dynamo.Verify("cloth mesh", dynamo.ErrHashMismatch)
		}
		if len(c.cfg.MeshBones) < len(sh.BindPoses) {
			return dynamo.Verify("cloth mesh bones", dynamo.ErrIndexOutOfRange)
		}
		for k, id := range c.cfg.MeshBones {
			if _, ok := c.ctx.Bones.Index(id); !ok {
				return dynamo.VerifyAt("cloth mesh bone", k, dynamo.ErrIndexOutOfRange)
			}
		}
	} else {
		if len(c.cfg.Bones) != d.Count() {
			return dynamo.Verify("cloth bones", dynamo.ErrIndexOutOfRange)
		}
		for k, id := range c.cfg.Bones {
			if _, ok := c.ctx.Bones.Index(id); !ok {
				return dynamo.VerifyAt("cloth bone", k, dynamo.ErrIndexOutOfRange)
			}
		}
	}
	return warn
}

func (c *Cloth) retain(id bone.TransformID) (int, error) {
	i, ok := c.ctx.Bones.Index(id)
	if !ok {
		return -1, dynamo.Verify("transform", dynamo.ErrIndexOutOfRange)
	}
	c.ctx.Bones.Add(id, c.ctx.Bones.Pose(i))
	c.slots = append(c.slots, i)
	return i, nil
}

// setup is shared by every variant; capabilities decide which parts run.
func (c *Cloth) setup() error {
	ctx := c.ctx
	d := c.cfg.Data
	n := d.Count()

	bind := make([]int, n)
	center := -1
	if c.caps.HasMeshTopology {
		meshSlots := make([]int, len(c.cfg.MeshBones))
		for k, id := range c.cfg.MeshBones {
			slot, err := c.retain(id)
			if err != nil {
				return err
			}
			meshSlots[k] = slot
		}
		inst, err := ctx.Meshes.AddInstance(c.cfg.Mesh, meshSlots)
		if err != nil {
			return err
		}
		c.instance = inst
		for v := range bind {
			if bind[v], err = ctx.Meshes.Index(inst, v); err != nil {
				return err
			}
		}
		if len(meshSlots) > 0 {
			center = meshSlots[0]
		}
	} else {
		for i, id := range c.cfg.Bones {
			slot, err := c.retain(id)
			if err != nil {
				return err
			}
			bind[i] = slot
			if center < 0 && d.Flags[i] == VertexFixed {
				center = slot
			}
		}
		if center < 0 {
			center = bind[0]
		}
	}
	if c.cfg.Center != uuid.Nil {
		slot, err := c.retain(c.cfg.Center)
		if err != nil {
			return err
		}
		center = slot
	}

	c.team = ctx.Teams.Create(c.cfg.Name, c.cfg.Kind)
	pc, err := ctx.Particles.Create(c.team, n, particle.Generators{
		Flag:      c.particleFlag,
		Radius:    func(i int) float32 { return d.Params.Radius.Evaluate(d.Depth[i]) },
		Depth:     func(i int) float32 { return d.Depth[i] },
		BindIndex: func(i int) int { return bind[i] },
	})
	if err != nil {
		return err
	}
	c.particles = pc

	s := ctx.Particles
	for li := 0; li < n; li++ {
		i := pc.Start + li
		s.Mass[i] = d.Params.Mass.Evaluate(d.Depth[li])
		s.BasePos[i] = d.RestPos[li]
		s.BaseRot[i] = mgl32.QuatIdent()
		if d.RestRot != nil {
			s.BaseRot[i] = d.RestRot[li]
		}
		s.ResetPose(i)
	}

	centerPose := ctx.Bones.Pose(center)
	err = ctx.Teams.Update(c.team, func(t *team.Team) {
		t.Params = d.Params
		t.Particles = pc
		t.Center = center
		t.CenterPos, t.CenterRot = centerPose.Pos, centerPose.Rot
		t.OldCenter, t.OldRot = centerPose.Pos, centerPose.Rot
		t.Flags = t.Flags.
			With(team.FlagCollision, d.Params.Collision).
			With(team.FlagKeepShape, d.Params.KeepShape).
			With(team.FlagFixedRotation, d.Params.FixedRotation).
			With(team.FlagReset, true)
	})
	if err != nil {
		return err
	}
	if err := c.setupWorkers(); err != nil {
		return err
	}
	if c.caps.HasMeshTopology {
		return c.setupMesh()
	}
	return nil
}

func (c *Cloth) particleFlag(i int) particle.Flag {
	d := c.cfg.Data
	var f particle.Flag
	switch d.Flags[i] {
	case VertexFixed:
		f = particle.FlagEnable | particle.FlagKinematic
	case VertexMove:
		f = particle.FlagEnable | particle.FlagMove | particle.FlagCollision
	default:
		return 0
	}
	if c.caps.HasMeshTopology {
		if len(d.Triangles) > 0 {
			f |= particle.FlagTriangleRotation
		}
		return f
	}
	f |= particle.FlagReadTransform
	if d.Flags[i] == VertexMove {
		f |= particle.FlagWriteTransform
	}
	return f
}

func (c *Cloth) setupWorkers() error {
	sv := c.ctx.Solver
	d := c.cfg.Data
	w := d.Workers
	n := d.Count()
	id := c.team

	try := func(_ int, err error) error { return err }

	if c.cfg.Kind.IsSpring() {
		if err := try(sv.Spring.AddGroup(id, w.Spring)); err != nil {
			return err
		}
		if err := try(sv.ClampPosition.AddGroup(id, w.ClampPosition)); err != nil {
			return err
		}
		if c.caps.RequiresRotationAdjust {
			return try(sv.AdjustRotation.AddGroup(id, w.Adjust))
		}
		return nil
	}

	if err := try(sv.RestoreDistance.AddGroup(id, n, d.Distances, w.Distance)); err != nil {
		return err
	}
	if len(d.RestoreLinks) > 0 {
		if err := try(sv.RestoreRotation.AddGroup(id, n, d.RestoreLinks, w.RestoreRotation)); err != nil {
			return err
		}
	}
	if len(d.ClampLinks) > 0 {
		if err := try(sv.ClampRotation.AddGroup(id, n, d.ClampLinks, w.ClampRotation)); err != nil {
			return err
		}
	}
	if len(d.Targets) > 0 {
		if err := try(sv.ClampDistance.AddGroup(id, n, d.Targets, w.ClampDistance)); err != nil {
			return err
		}
	}
	if w.UseClampPosition {
		if err := try(sv.ClampPosition.AddGroup(id, w.ClampPosition)); err != nil {
			return err
		}
	}
	if c.caps.SupportsTriangleBend && len(d.Quads) > 0 {
		if err := try(sv.TriangleBend.AddGroup(id, n, d.Quads, d.RestPos, w.Bend)); err != nil {
			return err
		}
	}
	if c.caps.HasMeshTopology && d.Params.PenetrationOn {
		if err := try(sv.Penetration.AddGroup(id, c.penetrationParams(d.Params))); err != nil {
			return err
		}
	}
	if c.caps.HasMeshTopology && len(d.Triangles) > 0 {
		return try(sv.TriangleRotation.AddGroup(id, n, d.Triangles))
	}
	if len(d.RestoreLinks) > 0 {
		return try(sv.LineRotation.AddGroup(id, n, d.RestoreLinks))
	}
	return nil
}

func (c *Cloth) penetrationParams(p team.Params) constraint.PenetrationParams {
	out := c.cfg.Data.Workers.Penetration
	out.Distance = p.PenetrationLen
	out.Radius = p.PenetrationRad
	return out
}

func (c *Cloth) setupMesh() error {
	ctx := c.ctx
	m := ctx.Meshes
	inst := c.instance
	for v := 0; v < c.particles.Length; v++ {
		if err := m.AddUse(inst, v); err != nil {
			return err
		}
		if err := m.BindParticle(inst, v, c.particles.Start+v); err != nil {
			return err
		}
		if err := m.SetFixed(inst, v, c.cfg.Data.Flags[v] == VertexFixed); err != nil {
			return err
		}
		if err := m.SetParent(inst, v, c.cfg.Data.Parents[v]); err != nil {
			return err
		}
	}

	g := ctx.Graph
	// deformers idle until the graph first reports them active
	m.SetActive(inst, false)
	c.meshNode = g.Add(c.cfg.Name+"/mesh", func(active bool) { m.SetActive(inst, active) })
	_ = g.SetInit(c.meshNode, status.InitComplete)
	if err := g.Link(c.node, c.meshNode); err != nil {
		return err
	}
	ctx.OnCollect(c.meshNode, func() {
		m.RemoveInstance(inst)
		logger.Debug("mesh deformer destroyed", zap.String("cloth", c.cfg.Name), zap.Int("instance", inst))
	})

	if c.cfg.Render == nil {
		return nil
	}
	slot := -1
	if c.cfg.RenderTransform != uuid.Nil {
		var err error
		if slot, err = c.retain(c.cfg.RenderTransform); err != nil {
			return err
		}
	}
	rid, err := m.AddRender(c.cfg.Render, []int{inst}, slot)
	if err != nil {
		return err
	}
	c.render = rid
	m.SetRenderActive(rid, false)
	c.renderNode = g.Add(c.cfg.Name+"/render", func(active bool) { m.SetRenderActive(rid, active) })
	_ = g.SetInit(c.renderNode, status.InitComplete)
	if err := g.Link(c.meshNode, c.renderNode); err != nil {
		return err
	}
	ctx.OnCollect(c.renderNode, func() { m.RemoveRender(rid) })
	return nil
}

// release frees everything the cloth owns except its own status node.
func (c *Cloth) release() {
	ctx := c.ctx
	if c.team >= 0 {
		ctx.Solver.RemoveTeam(c.team)
		for _, idx := range c.colliders {
			ctx.Colliders.RemoveColliderParticle(idx)
		}
		ctx.Colliders.ReleaseTeam(c.team)
		ctx.Particles.Remove(c.particles)
		ctx.Teams.Remove(c.team)
	}
	if c.instance >= 0 {
		for v := 0; v < c.particles.Length; v++ {
			_ = ctx.Meshes.RemoveUse(c.instance, v)
		}
		ctx.Meshes.UnbindParticles(c.instance)
		// without a status node nothing else will free the instance
		if c.meshNode == uuid.Nil {
			ctx.Meshes.RemoveInstance(c.instance)
		}
	}
	for _, slot := range c.slots {
		ctx.Bones.Release(slot)
	}
	c.slots = nil
	c.colliders = nil
	c.team = -1
	c.particles = chunk.Empty
}

// Dispose tears the cloth down. The mesh and render deformers follow once
// the world collects their orphaned status nodes.
func (c *Cloth) Dispose() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return
	}
	c.disposed = true
	c.release()
	c.ctx.Graph.Remove(c.node)
	logger.Debug("cloth disposed", zap.String("cloth", c.cfg.Name))
}

// SetEnable pauses or resumes the cloth without freeing its particles.
func (c *Cloth) SetEnable(on bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return dynamo.ErrDestroyed
	}
	if err := c.ctx.Graph.SetEnable(c.node, on); err != nil {
		return err
	}
	if c.team >= 0 {
		c.ctx.Particles.SetEnable(c.particles, on)
		return c.ctx.Teams.Update(c.team, func(t *team.Team) { t.Flags = t.Flags.With(team.FlagEnable, on) })
	}
	return nil
}

// Check re-verifies data the cloth depends on after init. A failure raises
// the runtime error flag, which keeps the team inactive until it passes
// again.
func (c *Cloth) Check() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed || c.team < 0 {
		return nil
	}
	var err error
	if c.instance >= 0 {
		err = c.ctx.Meshes.Verify(c.instance)
	}
	failed := err != nil
	_ = c.ctx.Graph.SetRuntimeError(c.node, failed)
	_ = c.ctx.Teams.Update(c.team, func(t *team.Team) { t.Flags = t.Flags.With(team.FlagRuntimeError, failed) })
	if failed {
		return fmt.Errorf("%w: %s: %w", dynamo.ErrRuntime, c.cfg.Name, err)
	}
	return nil
}

func (c *Cloth) Status() (status.Status, error) {
	return c.ctx.Graph.Status(c.node)
}
