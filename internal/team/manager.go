package team

import (
	"sync"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/san-kum/clothsim/internal/chunk"
	"github.com/san-kum/clothsim/internal/dynamo"
	"github.com/san-kum/clothsim/internal/logger"
	"go.uber.org/zap"
)

// Manager owns every team record. Team 0 is created up front as the global
// collider team and cannot be removed.
type Manager struct {
	mu    sync.RWMutex
	teams *chunk.FreeList[Team]
}

func NewManager() *Manager {
	m := &Manager{teams: chunk.NewFreeList[Team]()}
	g := newTeam("global", KindGlobal)
	g.Flags |= FlagActive
	m.teams.Add(g)
	return m
}

func newTeam(name string, kind Kind) Team {
	t := Team{
		Name:      name,
		Kind:      kind,
		Flags:     FlagEnable | FlagFixedRotation,
		Params:    DefaultParams(),
		Particles: chunk.Empty,
		Colliders: chunk.Empty,
		Center:    -1,
		CenterRot: mgl32.QuatIdent(),
		OldRot:    mgl32.QuatIdent(),
		TimeScale: 1,
	}
	for i := range t.Groups {
		t.Groups[i] = NoGroup
	}
	return t
}

// Create registers a new team and returns its id.
func (m *Manager) Create(name string, kind Kind) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.teams.Add(newTeam(name, kind))
	m.teams.Ptr(id).ID = id
	logger.Debug("team created", zap.Int("team", id), zap.String("name", name), zap.Stringer("kind", kind))
	return id
}

// Remove drops a team record. Callers must release the team's particle chunk
// and constraint groups first.
func (m *Manager) Remove(id int) {
	if id == GlobalID {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.teams.Exists(id) {
		m.teams.Remove(id)
		logger.Debug("team removed", zap.Int("team", id))
	}
}

func (m *Manager) Exists(id int) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.teams.Exists(id)
}

// Get returns a pointer to the team record. The pointer stays valid until the
// next Create; passes therefore resolve teams at schedule time.
func (m *Manager) Get(id int) (*Team, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t := m.teams.Ptr(id)
	if t == nil {
		return nil, dynamo.ErrUnknownTeam
	}
	return t, nil
}

// Lookup is the lock-free accessor used inside passes, where team records are
// read-only. Unknown ids return nil.
func (m *Manager) Lookup(id int32) *Team {
	return m.teams.Ptr(int(id))
}

// Update mutates a team under the write lock.
func (m *Manager) Update(id int, fn func(t *Team)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.teams.Ptr(id)
	if t == nil {
		return dynamo.ErrUnknownTeam
	}
	fn(t)
	return nil
}

// Each visits every team in id order.
func (m *Manager) Each(fn func(t *Team)) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	m.teams.Each(func(_ int, t *Team) bool {
		fn(t)
		return true
	})
}

// Count includes the global team.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.teams.Count()
}

// ActiveParticle reports whether particle i of team id should be simulated.
func (m *Manager) ActiveParticle(id int32) bool {
	t := m.teams.Ptr(int(id))
	return t != nil && t.Active()
}
