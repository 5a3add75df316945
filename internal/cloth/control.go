package cloth

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/san-kum/clothsim/internal/bone"
	"github.com/san-kum/clothsim/internal/constraint"
	"github.com/san-kum/clothsim/internal/curve"
	"github.com/san-kum/clothsim/internal/dynamo"
	"github.com/san-kum/clothsim/internal/logger"
	"github.com/san-kum/clothsim/internal/mathx"
	"github.com/san-kum/clothsim/internal/particle"
	"github.com/san-kum/clothsim/internal/team"
	"go.uber.org/zap"
)

func (c *Cloth) ready() error {
	switch {
	case c.disposed:
		return dynamo.ErrDestroyed
	case c.err != nil:
		return c.err
	case c.team < 0:
		return dynamo.ErrInitFailed
	}
	return nil
}

func (c *Cloth) update(fn func(t *team.Team)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ready(); err != nil {
		return err
	}
	return c.ctx.Teams.Update(c.team, fn)
}

// ResetCloth snaps every particle back onto its base pose on the next step.
func (c *Cloth) ResetCloth() error {
	return c.update(func(t *team.Team) { t.Flags |= team.FlagReset })
}

// SetTimeScale slows the team down; zero pauses it.
func (c *Cloth) SetTimeScale(scale float32) error {
	return c.update(func(t *team.Team) { t.TimeScale = mathx.Saturate(scale) })
}

// AddForce queues a force for the next step. Forces added in the same frame
// accumulate; the last mode wins.
func (c *Cloth) AddForce(force mgl32.Vec3, mode team.ForceMode) error {
	return c.update(func(t *team.Team) {
		t.Force = t.Force.Add(force)
		t.ForceMode = mode
	})
}

func (c *Cloth) SetGravity(g mgl32.Vec3) error {
	return c.update(func(t *team.Team) { t.Params.Gravity = g })
}

func (c *Cloth) SetDrag(drag curve.Param) error {
	return c.update(func(t *team.Team) { t.Params.Drag = drag })
}

func (c *Cloth) SetFriction(f float32) error {
	return c.update(func(t *team.Team) { t.Params.Friction = mathx.Saturate(f) })
}

// SetWorldInfluence scales how much of the center's motion the particles
// inherit.
func (c *Cloth) SetWorldInfluence(move, rot float32) error {
	return c.update(func(t *team.Team) {
		t.Params.MoveInfluence = mathx.Saturate(move)
		t.Params.RotInfluence = mathx.Saturate(rot)
	})
}

func (c *Cloth) SetTeleport(dist, angle float32, reset bool) error {
	return c.update(func(t *team.Team) {
		t.Params.TeleportDist = dist
		t.Params.TeleportAngle = angle
		t.Params.TeleportReset = reset
	})
}

// SetRadius re-evaluates every particle radius over depth.
func (c *Cloth) SetRadius(r curve.Param) error {
	return c.perParticle(func(t *team.Team, s *particle.Store, i int) {
		t.Params.Radius = r
		s.Radius[i] = r.Evaluate(s.Depth[i])
	})
}

func (c *Cloth) SetMass(m curve.Param) error {
	return c.perParticle(func(t *team.Team, s *particle.Store, i int) {
		t.Params.Mass = m
		s.Mass[i] = m.Evaluate(s.Depth[i])
	})
}

func (c *Cloth) perParticle(fn func(t *team.Team, s *particle.Store, i int)) error {
	s := c.ctx.Particles
	return c.update(func(t *team.Team) {
		for i := t.Particles.Start; i < t.Particles.End(); i++ {
			fn(t, s, i)
		}
	})
}

// SetCollision toggles collider contact for the whole team.
func (c *Cloth) SetCollision(on bool) error {
	return c.update(func(t *team.Team) {
		t.Params.Collision = on
		t.Flags = t.Flags.With(team.FlagCollision, on)
	})
}

// SetKeepShape switches the collision contact plane between the particle's
// previous motion and its base pose.
func (c *Cloth) SetKeepShape(on bool) error {
	return c.update(func(t *team.Team) {
		t.Params.KeepShape = on
		t.Flags = t.Flags.With(team.FlagKeepShape, on)
	})
}

// SetPenetration adds, updates or removes the penetration group. Only mesh
// variants carry one.
func (c *Cloth) SetPenetration(on bool, p constraint.PenetrationParams) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ready(); err != nil {
		return err
	}
	if !c.caps.HasMeshTopology {
		return nil
	}
	w := c.ctx.Solver.Penetration
	if !on {
		w.RemoveGroup(c.team)
	} else if err := w.ChangeParam(c.team, p); err != nil {
		if _, err := w.AddGroup(c.team, p); err != nil {
			return err
		}
	}
	return c.ctx.Teams.Update(c.team, func(t *team.Team) {
		t.Params.PenetrationOn = on
		t.Params.PenetrationLen = p.Distance
		t.Params.PenetrationRad = p.Radius
	})
}

func (c *Cloth) SetDistanceStiffness(p constraint.DistanceParams) error {
	return c.change(func(s *constraint.Solver) error { return s.RestoreDistance.ChangeParam(c.team, p) })
}

func (c *Cloth) SetRestoreRotation(p constraint.RestoreRotationParams) error {
	return c.change(func(s *constraint.Solver) error { return s.RestoreRotation.ChangeParam(c.team, p) })
}

func (c *Cloth) SetClampRotation(p constraint.ClampRotationParams) error {
	return c.change(func(s *constraint.Solver) error { return s.ClampRotation.ChangeParam(c.team, p) })
}

func (c *Cloth) SetClampPosition(p constraint.ClampPositionParams) error {
	return c.change(func(s *constraint.Solver) error { return s.ClampPosition.ChangeParam(c.team, p) })
}

func (c *Cloth) SetBendStiffness(p constraint.BendParams) error {
	return c.change(func(s *constraint.Solver) error { return s.TriangleBend.ChangeParam(c.team, p) })
}

func (c *Cloth) SetSpringPower(p constraint.SpringParams) error {
	return c.change(func(s *constraint.Solver) error { return s.Spring.ChangeParam(c.team, p) })
}

func (c *Cloth) change(fn func(s *constraint.Solver) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ready(); err != nil {
		return err
	}
	return fn(c.ctx.Solver)
}

// AddCollider attaches an existing collider particle to this cloth.
func (c *Cloth) AddCollider(idx int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ready(); err != nil {
		return err
	}
	return c.ctx.Colliders.AddCollider(c.team, idx)
}

func (c *Cloth) RemoveCollider(idx int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ready(); err != nil {
		return err
	}
	c.ctx.Colliders.RemoveCollider(c.team, idx)
	return nil
}

// CreateCollider makes a collider owned by this cloth. It is released with
// the cloth.
func (c *Cloth) CreateCollider(shape particle.Shape, pos mgl32.Vec3, rot mgl32.Quat, param mgl32.Vec4) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ready(); err != nil {
		return -1, err
	}
	idx, err := c.ctx.Colliders.CreateCollider(c.team, shape, pos, rot, param)
	if err != nil {
		return -1, err
	}
	c.colliders = append(c.colliders, idx)
	return idx, nil
}

func (c *Cloth) Colliders() []int32 {
	if c.team < 0 {
		return nil
	}
	return c.ctx.Colliders.Colliders(c.team)
}

// ReplaceBone re-targets transforms without rebuilding the cloth. It returns
// how many bound transforms changed.
func (c *Cloth) ReplaceBone(m map[bone.TransformID]bone.TransformID) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ready(); err != nil {
		return 0, err
	}
	n := c.ctx.Bones.Replace(m)
	remap := func(ids []bone.TransformID) {
		for i, id := range ids {
			if to, ok := m[id]; ok {
				ids[i] = to
			}
		}
	}
	remap(c.cfg.Bones)
	remap(c.cfg.MeshBones)
	if to, ok := m[c.cfg.Center]; ok {
		c.cfg.Center = to
	}
	if to, ok := m[c.cfg.RenderTransform]; ok {
		c.cfg.RenderTransform = to
	}
	logger.Debug("cloth bones replaced", zap.String("cloth", c.cfg.Name), zap.Int("count", n))
	return n, nil
}
