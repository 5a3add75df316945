package sim

import (
	"errors"
	"fmt"
	"sync"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/san-kum/clothsim/internal/bone"
	"github.com/san-kum/clothsim/internal/chunk"
	"github.com/san-kum/clothsim/internal/cloth"
	"github.com/san-kum/clothsim/internal/constraint"
	"github.com/san-kum/clothsim/internal/dynamo"
	"github.com/san-kum/clothsim/internal/integrators"
	"github.com/san-kum/clothsim/internal/logger"
	"github.com/san-kum/clothsim/internal/particle"
	"github.com/san-kum/clothsim/internal/team"
	"go.uber.org/zap"
)

// World owns every store and worker of one simulation and advances them one
// frame at a time.
type World struct {
	*cloth.Context

	mu     sync.Mutex
	cfg    Config
	verlet *integrators.Verlet
	cloths []*cloth.Cloth
	// collider particle -> bone slot driving it
	colliderBones map[int]int

	frame int
	time  float64
}

func NewWorld(cfg Config) *World {
	ctx := cloth.NewContext(cfg.Collision)
	ctx.Meshes.FixedFraction = cfg.FixedFraction
	if cfg.Batch > 0 {
		ctx.Meshes.Batch = cfg.Batch
	}
	v := integrators.NewVerlet(ctx.Particles, ctx.Teams, ctx.Bones)
	if cfg.Batch > 0 {
		v.Batch = cfg.Batch
	}
	return &World{
		Context:       ctx,
		cfg:           cfg,
		verlet:        v,
		colliderBones: make(map[int]int),
	}
}

func (w *World) Config() Config { return w.cfg }
func (w *World) Frame() int     { return w.frame }
func (w *World) Time() float64  { return w.time }

// Close disposes every cloth and destroys their deformers.
func (w *World) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, c := range w.cloths {
		c.Dispose()
	}
	w.cloths = nil
	w.Collect()
}

// AddCloth creates and initializes a cloth. A cloth that fails to
// initialize is still tracked so its status can be inspected.
func (w *World) AddCloth(cfg cloth.Config) (*cloth.Cloth, error) {
	c := cloth.New(w.Context, cfg)
	w.mu.Lock()
	w.cloths = append(w.cloths, c)
	w.mu.Unlock()
	return c, c.Init()
}

func (w *World) RemoveCloth(c *cloth.Cloth) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for k, o := range w.cloths {
		if o == c {
			w.cloths = append(w.cloths[:k], w.cloths[k+1:]...)
			break
		}
	}
	c.Dispose()
}

func (w *World) Cloths() []*cloth.Cloth {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]*cloth.Cloth(nil), w.cloths...)
}

// CreateTeam registers a bare team for callers that build particles by hand.
func (w *World) CreateTeam(name string, kind team.Kind) int {
	id := w.Teams.Create(name, kind)
	_ = w.Teams.Update(id, func(t *team.Team) { t.Flags |= team.FlagActive })
	return id
}

// CreateParticle allocates count particles for teamID. The first chunk
// created for a team becomes its particle chunk.
func (w *World) CreateParticle(teamID, count int, gen particle.Generators) (chunk.Chunk, error) {
	if !w.Teams.Exists(teamID) {
		return chunk.Empty, dynamo.ErrUnknownTeam
	}
	c, err := w.Particles.Create(teamID, count, gen)
	if err != nil {
		return chunk.Empty, err
	}
	_ = w.Teams.Update(teamID, func(t *team.Team) {
		if !t.Particles.IsValid() {
			t.Particles = c
		}
	})
	return c, nil
}

// RemoveParticle frees c. A team whose particle chunk was c is left
// without one so its passes no longer reach the freed indices.
func (w *World) RemoveParticle(c chunk.Chunk) {
	if c.IsValid() && c.Start < len(w.Particles.Team) {
		owner := int(w.Particles.Team[c.Start])
		_ = w.Teams.Update(owner, func(t *team.Team) {
			if t.Particles.Start == c.Start {
				t.Particles = chunk.Empty
			}
		})
	}
	w.Particles.Remove(c)
}

// SetEnable toggles a chunk without releasing it. Calling it twice with the
// same value is a no-op.
func (w *World) SetEnable(c chunk.Chunk, on bool) {
	w.Particles.SetEnable(c, on)
}

// CreateCollider adds a global collider that follows transform id.
func (w *World) CreateCollider(shape particle.Shape, id bone.TransformID, param mgl32.Vec4) (int, error) {
	slot, ok := w.Bones.Index(id)
	if !ok {
		return -1, dynamo.Verify("collider transform", dynamo.ErrIndexOutOfRange)
	}
	p := w.Bones.Pose(slot)
	idx, err := w.Colliders.CreateCollider(team.GlobalID, shape, p.Pos, p.Rot, param)
	if err != nil {
		return -1, err
	}
	w.Bones.Add(id, p)
	w.mu.Lock()
	w.colliderBones[idx] = slot
	w.mu.Unlock()
	return idx, nil
}

// BindCollider makes an existing collider follow transform id.
func (w *World) BindCollider(idx int, id bone.TransformID) error {
	slot, ok := w.Bones.Index(id)
	if !ok {
		return dynamo.Verify("collider transform", dynamo.ErrIndexOutOfRange)
	}
	w.Bones.Add(id, w.Bones.Pose(slot))
	w.mu.Lock()
	defer w.mu.Unlock()
	if old, ok := w.colliderBones[idx]; ok {
		w.Bones.Release(old)
	}
	w.colliderBones[idx] = slot
	return nil
}

func (w *World) RemoveCollider(idx int) {
	w.mu.Lock()
	if slot, ok := w.colliderBones[idx]; ok {
		w.Bones.Release(slot)
		delete(w.colliderBones, idx)
	}
	w.mu.Unlock()
	w.Colliders.RemoveColliderParticle(idx)
}

func (w *World) frameInfo() *constraint.Frame {
	return &constraint.Frame{
		Particles:  w.Particles,
		Teams:      w.Teams,
		Batch:      w.cfg.Batch,
		Power:      w.cfg.Power,
		Iterations: w.cfg.Iterations,
	}
}

// Step advances the world by dt. Runtime verify failures are returned
// joined; the affected teams are skipped but the frame still completes.
func (w *World) Step(dt float32) error {
	if dt <= 0 {
		return fmt.Errorf("dt must be positive, got %f", dt)
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	w.Graph.Update()
	if n := w.Collect(); n > 0 {
		logger.Debug("components collected", zap.Int("count", n))
	}
	var errs []error
	for _, c := range w.cloths {
		if err := c.Check(); err != nil {
			logger.Warn("cloth runtime check failed", zap.String("cloth", c.Name()), zap.Error(err))
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		w.Graph.Update()
	}
	w.moveColliders()

	f := w.frameInfo()
	batch := f.Batch
	if batch <= 0 {
		batch = constraint.DefaultBatch
	}

	h := w.Meshes.Skin(nil)
	h = w.Meshes.ReadBase(w.Particles, w.Teams, h)
	h = w.readBones(batch, h)
	h.Complete()

	w.verlet.Prepare(dt)
	h = w.verlet.Integrate(nil)
	h = w.Solver.Solve(f, h)
	h = w.Colliders.Detect(batch, h)
	h = w.Colliders.Extrude(batch, h)
	h = w.verlet.Finish(h)
	h = w.Solver.Post(f, h)
	h = w.Meshes.ReadParticles(w.Particles, w.Teams, h)
	h = w.Meshes.WriteRender(h)
	h = w.writeBones(batch, h)
	h.Complete()

	w.Colliders.Commit()
	w.Bones.CommitOld()
	w.frame++
	w.time += float64(dt)
	return errors.Join(errs...)
}

func (w *World) moveColliders() {
	for idx, slot := range w.colliderBones {
		p := w.Bones.Pose(slot)
		w.Colliders.Move(idx, p.Pos, p.Rot)
	}
}

// readBones copies transform poses into the base pose of bone-driven
// particles.
func (w *World) readBones(batch int, dep *dynamo.Handle) *dynamo.Handle {
	s := w.Particles
	return dynamo.ScheduleFor(s.Len(), batch, func(start, end int) {
		flags := s.Flags()
		for i := start; i < end; i++ {
			if !flags[i].Has(particle.FlagEnable) || !flags[i].Has(particle.FlagReadTransform) {
				continue
			}
			p := w.Bones.Pose(int(s.BindIndex[i]))
			s.BasePos[i], s.BaseRot[i] = p.Pos, p.Rot
		}
	}, dep)
}

// writeBones records the simulated pose of every moving bone particle.
func (w *World) writeBones(batch int, dep *dynamo.Handle) *dynamo.Handle {
	s := w.Particles
	return dynamo.ScheduleFor(s.Len(), batch, func(start, end int) {
		flags := s.Flags()
		for i := start; i < end; i++ {
			if !flags[i].Has(particle.FlagWriteTransform) || !flags[i].Has(particle.FlagStep) {
				continue
			}
			w.Bones.Write(int(s.BindIndex[i]), s.Pos[i], s.Rot[i])
		}
	}, dep)
}

// Snapshot copies every particle position into dst, reusing its storage.
func (w *World) Snapshot(dst Snapshot) Snapshot {
	dst = append(dst[:0], w.Particles.Pos[:w.Particles.Len()]...)
	return dst
}

// KineticEnergy sums 0.5*m*v^2 over every simulated particle of active teams.
func (w *World) KineticEnergy() float64 {
	s := w.Particles
	flags := s.Flags()
	var e float64
	for i := 0; i < s.Len(); i++ {
		if !flags[i].Simulated() || !w.Teams.ActiveParticle(s.Team[i]) {
			continue
		}
		v := s.Velocity[i]
		e += 0.5 * float64(s.Mass[i]) * float64(v.Dot(v))
	}
	return e
}
