// Package cloth turns authored cloth data into simulated teams.
//
// The four variants (bone cloth, mesh cloth, bone spring, mesh spring) share
// one setup routine driven by [Capabilities]. A [Context] holds every store
// and worker the variants need and is passed explicitly instead of living in
// a global.
package cloth

import (
	"sync"

	"github.com/san-kum/clothsim/internal/bone"
	"github.com/san-kum/clothsim/internal/collision"
	"github.com/san-kum/clothsim/internal/constraint"
	"github.com/san-kum/clothsim/internal/particle"
	"github.com/san-kum/clothsim/internal/status"
	"github.com/san-kum/clothsim/internal/team"
	"github.com/san-kum/clothsim/internal/vmesh"
)

// Context owns the flat stores and worker instances of one simulation world.
type Context struct {
	Particles *particle.Store
	Teams     *team.Manager
	Bones     *bone.Store
	Meshes    *vmesh.Manager
	Solver    *constraint.Solver
	Colliders *collision.Manager
	Graph     *status.Graph

	mu         sync.Mutex
	finalizers map[status.NodeID]func()
}

func NewContext(cp collision.Params) *Context {
	particles := particle.NewStore(256)
	teams := team.NewManager()
	bones := bone.NewStore()
	return &Context{
		Particles:  particles,
		Teams:      teams,
		Bones:      bones,
		Meshes:     vmesh.NewManager(bones),
		Solver:     constraint.NewSolver(teams),
		Colliders:  collision.NewManager(particles, teams, cp),
		Graph:      status.NewGraph(),
		finalizers: make(map[status.NodeID]func()),
	}
}

// OnCollect registers fn to run when node id is collected after losing its
// last link.
func (c *Context) OnCollect(id status.NodeID, fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.finalizers[id] = fn
}

// Collect destroys every component whose status node lost its last link and
// returns how many were destroyed.
func (c *Context) Collect() int {
	ids := c.Graph.Collect()
	for _, id := range ids {
		c.mu.Lock()
		fn := c.finalizers[id]
		delete(c.finalizers, id)
		c.mu.Unlock()
		if fn != nil {
			fn()
		}
	}
	return len(ids)
}
