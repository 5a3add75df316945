// Package collision clips particles against analytic colliders and pushes
// them along with colliders that moved into them.
//
// Colliders are particles in the shared store flagged [particle.FlagCollider].
// Their shape parameters live in ShapeParam: x is the start radius, y the end
// radius, z the capsule length and w the capsule axis (0 X, 1 Y, 2 Z). Each
// team lists the colliders it reacts to in a chunk of one flat index array;
// the global team's list applies to every team.
package collision

import (
	"sync"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/san-kum/clothsim/internal/chunk"
	"github.com/san-kum/clothsim/internal/dynamo"
	"github.com/san-kum/clothsim/internal/logger"
	"github.com/san-kum/clothsim/internal/particle"
	"github.com/san-kum/clothsim/internal/team"
	"go.uber.org/zap"
)

// Params are the collision tunables shared by every team.
type Params struct {
	// ContactRange is the surface distance at or below which a particle
	// records a contact for extrusion.
	ContactRange float32 `yaml:"contact_range"`
	// FrictionFalloff is the distance over which proximity friction decays.
	FrictionFalloff float32 `yaml:"friction_falloff"`
	// Extrusion scales how much collider motion is passed on to contacts.
	Extrusion float32 `yaml:"extrusion"`
}

func DefaultParams() Params {
	return Params{ContactRange: 0.01, FrictionFalloff: 0.02, Extrusion: 1}
}

// Manager owns collider particles and the per-team collider lists.
type Manager struct {
	mu        sync.Mutex
	particles *particle.Store
	teams     *team.Manager
	lists     *chunk.Array[int32]
	Params    Params
}

func NewManager(particles *particle.Store, teams *team.Manager, p Params) *Manager {
	return &Manager{
		particles: particles,
		teams:     teams,
		lists:     chunk.NewArray[int32](0),
		Params:    p,
	}
}

// CreateCollider allocates a collider particle owned by teamID and joins it to
// that team's list. Use team.GlobalID for colliders every team reacts to.
func (m *Manager) CreateCollider(teamID int, shape particle.Shape, pos mgl32.Vec3, rot mgl32.Quat, param mgl32.Vec4) (int, error) {
	if shape == particle.ShapeNone {
		return particle.NoIndex, dynamo.Verify("collider shape", dynamo.ErrEmptyData)
	}
	s := m.particles
	c, err := s.Create(teamID, 1, particle.Generators{
		Flag: func(int) particle.Flag {
			return particle.FlagEnable | particle.FlagKinematic | particle.FlagCollider
		},
		Radius: func(int) float32 { return param.X() },
	})
	if err != nil {
		return particle.NoIndex, err
	}
	i := c.Start
	s.Shape[i] = shape
	s.ShapeParam[i] = param
	s.BasePos[i], s.BaseRot[i] = pos, rot
	s.ResetPose(i)
	s.Flags()[i] &^= particle.FlagReset

	if err := m.AddCollider(teamID, i); err != nil {
		s.Remove(c)
		return particle.NoIndex, err
	}
	logger.Debug("collider created", zap.Int("collider", i), zap.Int("team", teamID), zap.Stringer("shape", shape))
	return i, nil
}

// RemoveColliderParticle drops the collider from every list and frees it.
func (m *Manager) RemoveColliderParticle(idx int) {
	if !m.isCollider(idx) {
		return
	}
	var ids []int
	m.teams.Each(func(t *team.Team) { ids = append(ids, t.ID) })
	for _, id := range ids {
		m.RemoveCollider(id, idx)
	}
	m.particles.Remove(chunk.Chunk{Start: idx, Length: 1, UseLength: 1})
}

func (m *Manager) isCollider(idx int) bool {
	s := m.particles
	return idx >= 0 && idx < s.Len() && s.Flags()[idx].Has(particle.FlagCollider)
}

// AddCollider joins collider idx to the team's list. Adding twice is a no-op.
func (m *Manager) AddCollider(teamID, idx int) error {
	if !m.isCollider(idx) {
		return dynamo.ErrUnknownCollider
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.teams.Get(teamID)
	if err != nil {
		return err
	}
	for _, c := range m.lists.Slice(t.Colliders) {
		if int(c) == idx {
			return nil
		}
	}
	used := 0
	if t.Colliders.IsValid() {
		used = t.Colliders.UseLength
	}
	nc := t.Colliders
	if !nc.IsValid() || used == nc.Length {
		nc = m.lists.Expand(t.Colliders, max(4, used*2))
	}
	m.lists.Set(nc.Start+used, int32(idx))
	nc.UseLength = used + 1
	return m.teams.Update(teamID, func(t *team.Team) { t.Colliders = nc })
}

// RemoveCollider takes collider idx out of the team's list.
func (m *Manager) RemoveCollider(teamID, idx int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.teams.Get(teamID)
	if err != nil || !t.Colliders.IsValid() {
		return
	}
	list := m.lists.Slice(t.Colliders)
	for k, c := range list {
		if int(c) != idx {
			continue
		}
		last := len(list) - 1
		list[k] = list[last]
		_ = m.teams.Update(teamID, func(t *team.Team) { t.Colliders.UseLength = last })
		return
	}
}

// Colliders returns the team's collider indices. The slice aliases the list
// store and is only stable between control calls.
func (m *Manager) Colliders(teamID int) []int32 {
	t, err := m.teams.Get(teamID)
	if err != nil {
		return nil
	}
	return m.lists.Slice(t.Colliders)
}

// ReleaseTeam frees the team's list chunk.
func (m *Manager) ReleaseTeam(teamID int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_ = m.teams.Update(teamID, func(t *team.Team) {
		m.lists.Remove(t.Colliders)
		t.Colliders = chunk.Empty
	})
}

// Move sets the collider's pose for this step. A collider flagged for reset
// also snaps its previous pose so it does not sweep through the cloth.
func (m *Manager) Move(idx int, pos mgl32.Vec3, rot mgl32.Quat) {
	if !m.isCollider(idx) {
		return
	}
	s := m.particles
	s.Pos[idx], s.Rot[idx] = pos, rot
	flags := s.Flags()
	if flags[idx].Has(particle.FlagReset) {
		s.OldPos[idx], s.OldRot[idx] = pos, rot
		s.BasePos[idx], s.BaseRot[idx] = pos, rot
		flags[idx] = flags[idx].With(particle.FlagReset, false)
	}
}

// Commit stores the current collider poses as the previous ones.
func (m *Manager) Commit() {
	s := m.particles
	flags := s.Flags()
	for i := range flags {
		if flags[i].Has(particle.FlagCollider) {
			s.OldPos[i], s.OldRot[i] = s.Pos[i], s.Rot[i]
		}
	}
}
