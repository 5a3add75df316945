// Package integrators advances particles around the constraint solve with
// position Verlet: predict from velocity and external forces, let the
// workers correct the prediction, then rebuild velocity from the corrected
// displacement.
package integrators

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/san-kum/clothsim/internal/bone"
	"github.com/san-kum/clothsim/internal/dynamo"
	"github.com/san-kum/clothsim/internal/logger"
	"github.com/san-kum/clothsim/internal/mathx"
	"github.com/san-kum/clothsim/internal/particle"
	"github.com/san-kum/clothsim/internal/team"
	"go.uber.org/zap"
)

type Verlet struct {
	particles *particle.Store
	teams     *team.Manager
	bones     *bone.Store
	Batch     int
}

func NewVerlet(particles *particle.Store, teams *team.Manager, bones *bone.Store) *Verlet {
	return &Verlet{particles: particles, teams: teams, bones: bones, Batch: 64}
}

// Prepare runs the per-team bookkeeping of a frame: scaled step, center
// pose, reset and world influence. It must run after base poses are read.
func (v *Verlet) Prepare(dt float32) {
	var ids []int
	v.teams.Each(func(t *team.Team) {
		if t.ID != team.GlobalID {
			ids = append(ids, t.ID)
		}
	})
	for _, id := range ids {
		_ = v.teams.Update(id, func(t *team.Team) { v.prepare(t, dt) })
	}
}

func (v *Verlet) prepare(t *team.Team, dt float32) {
	t.Step = dt * t.TimeScale
	if !t.Active() {
		return
	}
	if t.Center >= 0 {
		p := v.bones.Pose(t.Center)
		t.CenterPos, t.CenterRot = p.Pos, p.Rot
	}
	if t.Flags.Has(team.FlagReset) || !t.Flags.Has(team.FlagInfluenceInit) {
		v.reset(t)
		return
	}

	pivot := t.OldCenter
	move := t.CenterPos.Sub(t.OldCenter)
	rot := t.CenterRot.Mul(t.OldRot.Inverse()).Normalize()
	t.OldCenter, t.OldRot = t.CenterPos, t.CenterRot

	p := t.Params
	angle := mgl32.RadToDeg(2 * mathx.Acos(mgl32.Abs(rot.W)))
	if (p.TeleportDist > 0 && move.Len() > p.TeleportDist) || (p.TeleportAngle > 0 && angle > p.TeleportAngle) {
		logger.Debug("team teleported", zap.Int("team", t.ID), zap.Float32("distance", move.Len()), zap.Float32("angle", angle))
		if p.TeleportReset {
			v.reset(t)
			return
		}
		v.shift(t, pivot, move, rot)
		return
	}

	// particles keep only the share of the center motion they are allowed
	// to feel as inertia; the rest is carried rigidly
	inertia := move.Mul(mathx.Saturate(p.MoveInfluence))
	if p.MaxMoveSpeed > 0 && dt > 0 && inertia.Len() > p.MaxMoveSpeed*dt {
		inertia = inertia.Normalize().Mul(p.MaxMoveSpeed * dt)
	}
	carry := mgl32.QuatSlerp(mgl32.QuatIdent(), rot, 1-mathx.Saturate(p.RotInfluence))
	shift := move.Sub(inertia)
	if shift.Len() > mathx.Epsilon || 1-mgl32.Abs(carry.W) > mathx.Epsilon {
		v.shift(t, pivot, shift, carry)
	}
}

func (v *Verlet) reset(t *team.Team) {
	s := v.particles
	for i := t.Particles.Start; i < t.Particles.End(); i++ {
		s.ResetPose(i)
	}
	t.Flags = (t.Flags &^ team.FlagReset) | team.FlagInfluenceInit
	t.OldCenter, t.OldRot = t.CenterPos, t.CenterRot
	logger.Debug("team reset", zap.Int("team", t.ID))
}

func (v *Verlet) shift(t *team.Team, pivot, offset mgl32.Vec3, rot mgl32.Quat) {
	s := v.particles
	flags := s.Flags()
	for i := t.Particles.Start; i < t.Particles.End(); i++ {
		if flags[i].Simulated() {
			s.Teleport(i, pivot, offset, rot)
		}
	}
}

// Integrate predicts next positions. Kinematic particles snap to their base
// pose; simulated ones advance by velocity after drag, gravity and the
// team's pending force.
func (v *Verlet) Integrate(dep *dynamo.Handle) *dynamo.Handle {
	s := v.particles
	return dynamo.ScheduleFor(s.Len(), v.Batch, func(start, end int) {
		flags := s.Flags()
		next := s.Next.Front()
		for i := start; i < end; i++ {
			f := flags[i]
			if !f.Has(particle.FlagEnable) || f.Has(particle.FlagCollider) {
				continue
			}
			t := v.teams.Lookup(s.Team[i])
			if t == nil || !t.Active() || t.Step <= 0 {
				flags[i] = f &^ particle.FlagStep
				continue
			}
			if f.Has(particle.FlagReset) {
				s.ResetPose(i)
				f &^= particle.FlagReset
			}
			s.OldPos[i], s.OldRot[i] = s.Pos[i], s.Rot[i]
			flags[i] = f | particle.FlagStep

			if !f.Simulated() {
				s.Pos[i], s.Rot[i] = s.BasePos[i], s.BaseRot[i]
				next[i] = s.BasePos[i]
				continue
			}
			h := t.Step
			vel := s.Velocity[i].Mul(1 - mathx.Saturate(t.Params.Drag.Evaluate(s.Depth[i])))
			vel = vel.Add(t.Params.Gravity.Mul(h))
			vel = vel.Add(force(t, s.Mass[i], h))
			if m := t.Params.MaxVelocity; m > 0 && vel.Len() > m {
				vel = vel.Normalize().Mul(m)
			}
			s.Velocity[i] = vel
			next[i] = s.Pos[i].Add(vel.Mul(h))
		}
	}, dep)
}

func force(t *team.Team, mass, h float32) mgl32.Vec3 {
	f := t.Force
	if f == (mgl32.Vec3{}) {
		return f
	}
	switch t.ForceMode {
	case team.ForceContinuous:
		if mass > 0 {
			return f.Mul(h / mass)
		}
	case team.ForceAcceleration:
		return f.Mul(h)
	case team.ForceImpulse:
		if mass > 0 {
			return f.Mul(1 / mass)
		}
	case team.ForceVelocityChange:
		return f
	}
	return mgl32.Vec3{}
}

// Finish commits the solved positions, derives velocity from the step
// displacement and damps it by contact friction. Pending team forces are
// consumed afterwards.
func (v *Verlet) Finish(dep *dynamo.Handle) *dynamo.Handle {
	s := v.particles
	h := dynamo.ScheduleFor(s.Len(), v.Batch, func(start, end int) {
		flags := s.Flags()
		next := s.Next.Front()
		for i := start; i < end; i++ {
			f := flags[i]
			if !f.Simulated() || !f.Has(particle.FlagStep) {
				continue
			}
			t := v.teams.Lookup(s.Team[i])
			if t == nil || t.Step <= 0 {
				continue
			}
			p := next[i]
			vel := p.Sub(s.OldPos[i]).Mul(1 / t.Step)
			if fr := s.Friction[i]; fr > 0 {
				vel = vel.Mul(1 - mathx.Saturate(fr))
			}
			if mathx.Valid(vel) {
				s.Velocity[i] = vel
			}
			s.Pos[i] = p
		}
	}, dep)
	return dynamo.Schedule(v.clearForces, h)
}

func (v *Verlet) clearForces() {
	var ids []int
	v.teams.Each(func(t *team.Team) {
		if t.Force != (mgl32.Vec3{}) {
			ids = append(ids, t.ID)
		}
	})
	for _, id := range ids {
		_ = v.teams.Update(id, func(t *team.Team) { t.Force = mgl32.Vec3{} })
	}
}
