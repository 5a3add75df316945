// Package status tracks the lifecycle of engine components and propagates
// active state along parent/child links.
//
// A node is active when it is enabled, finished initializing without error,
// has no runtime error and either has no parents or at least one active
// parent. Nodes that lose their last parent, or a root that loses its last
// child, are queued for destruction and handed out by [Graph.Collect] once
// per frame. Collecting a node orphans its children in turn.
package status

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/san-kum/clothsim/internal/logger"
	"go.uber.org/zap"
)

var (
	ErrUnknownNode = errors.New("status: unknown node")
	ErrCycle       = errors.New("status: link would create a cycle")
)

type NodeID = uuid.UUID

type InitState int

const (
	Uninitialized InitState = iota
	InitStart
	InitError
	InitComplete
)

func (s InitState) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case InitStart:
		return "init_start"
	case InitError:
		return "init_error"
	case InitComplete:
		return "init_complete"
	}
	return fmt.Sprintf("InitState(%d)", int(s))
}

// Status is a snapshot of one node.
type Status struct {
	Name         string
	Init         InitState
	Enabled      bool
	RuntimeError bool
	Active       bool
	Parents      int
	Children     int
}

type node struct {
	name     string
	init     InitState
	enabled  bool
	runtime  bool
	active   bool
	linked   bool
	child    bool
	parents  map[NodeID]struct{}
	children map[NodeID]struct{}
	onChange func(active bool)
}

func (n *node) links() int { return len(n.parents) + len(n.children) }

// orphaned reports whether a node that was once linked has nothing left
// holding it.
func (n *node) orphaned() bool {
	if !n.linked || len(n.parents) > 0 {
		return false
	}
	return n.child || len(n.children) == 0
}

type Graph struct {
	mu      sync.Mutex
	nodes   map[NodeID]*node
	order   []NodeID
	orphans []NodeID
}

func NewGraph() *Graph {
	return &Graph{nodes: make(map[NodeID]*node)}
}

// Add registers a node in the uninitialized, enabled state. onChange may be
// nil; it runs inside Update whenever the node's active state flips.
func (g *Graph) Add(name string, onChange func(active bool)) NodeID {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := uuid.New()
	g.nodes[id] = &node{
		name:     name,
		enabled:  true,
		parents:  make(map[NodeID]struct{}),
		children: make(map[NodeID]struct{}),
		onChange: onChange,
	}
	g.order = append(g.order, id)
	return id
}

// Remove unlinks and forgets a node. Neighbours left without links are
// queued for Collect.
func (g *Graph) Remove(id NodeID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, ok := g.nodes[id]
	if !ok {
		return
	}
	for p := range n.parents {
		g.unlink(p, id)
	}
	for c := range n.children {
		g.unlink(id, c)
	}
	delete(g.nodes, id)
	for k, o := range g.order {
		if o == id {
			g.order = append(g.order[:k], g.order[k+1:]...)
			break
		}
	}
}

func (g *Graph) get(id NodeID) (*node, error) {
	n, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownNode, id)
	}
	return n, nil
}

func (g *Graph) set(id NodeID, fn func(n *node)) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, err := g.get(id)
	if err != nil {
		return err
	}
	fn(n)
	return nil
}

func (g *Graph) SetInit(id NodeID, s InitState) error {
	return g.set(id, func(n *node) {
		// InitError is terminal for the session
		if n.init == InitError {
			return
		}
		n.init = s
	})
}

func (g *Graph) SetEnable(id NodeID, on bool) error {
	return g.set(id, func(n *node) { n.enabled = on })
}

func (g *Graph) SetRuntimeError(id NodeID, on bool) error {
	return g.set(id, func(n *node) { n.runtime = on })
}

// Link makes parent's active state gate child's.
func (g *Graph) Link(parent, child NodeID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, err := g.get(parent)
	if err != nil {
		return err
	}
	c, err := g.get(child)
	if err != nil {
		return err
	}
	if parent == child || g.reaches(child, parent) {
		return ErrCycle
	}
	p.children[child] = struct{}{}
	c.parents[parent] = struct{}{}
	p.linked, c.linked = true, true
	c.child = true
	return nil
}

// reaches reports whether to is reachable from from along child edges.
func (g *Graph) reaches(from, to NodeID) bool {
	seen := map[NodeID]bool{}
	stack := []NodeID{from}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if id == to {
			return true
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		for c := range g.nodes[id].children {
			stack = append(stack, c)
		}
	}
	return false
}

func (g *Graph) Unlink(parent, child NodeID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.unlink(parent, child)
}

func (g *Graph) unlink(parent, child NodeID) {
	p, pok := g.nodes[parent]
	c, cok := g.nodes[child]
	if !pok || !cok {
		return
	}
	if _, ok := p.children[child]; !ok {
		return
	}
	delete(p.children, child)
	delete(c.parents, parent)
	for _, id := range []NodeID{parent, child} {
		if g.nodes[id].orphaned() {
			g.orphans = append(g.orphans, id)
		}
	}
}

// Update recomputes active states parents first and returns the nodes whose
// state changed.
func (g *Graph) Update() []NodeID {
	g.mu.Lock()
	var changed []NodeID
	var calls []func()
	for _, id := range g.topo() {
		n := g.nodes[id]
		active := n.enabled && n.init == InitComplete && !n.runtime
		if active && len(n.parents) > 0 {
			up := false
			for p := range n.parents {
				if g.nodes[p].active {
					up = true
					break
				}
			}
			active = up
		}
		if active == n.active {
			continue
		}
		n.active = active
		changed = append(changed, id)
		if n.onChange != nil {
			fn := n.onChange
			calls = append(calls, func() { fn(active) })
		}
	}
	g.mu.Unlock()

	for _, fn := range calls {
		fn()
	}
	if len(changed) > 0 {
		logger.Debug("status changed", zap.Int("nodes", len(changed)))
	}
	return changed
}

// topo orders nodes so parents precede children, ties in insertion order.
func (g *Graph) topo() []NodeID {
	indeg := make(map[NodeID]int, len(g.nodes))
	for _, id := range g.order {
		indeg[id] = len(g.nodes[id].parents)
	}
	out := make([]NodeID, 0, len(g.order))
	var queue []NodeID
	for _, id := range g.order {
		if indeg[id] == 0 {
			queue = append(queue, id)
		}
	}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		out = append(out, id)
		for _, c := range g.order {
			if _, ok := g.nodes[id].children[c]; !ok {
				continue
			}
			indeg[c]--
			if indeg[c] == 0 {
				queue = append(queue, c)
			}
		}
	}
	return out
}

// Collect removes and returns nodes orphaned since the previous call,
// parents before the children they orphan. Callers destroy the matching
// components.
func (g *Graph) Collect() []NodeID {
	var out []NodeID
	for {
		g.mu.Lock()
		orphans := g.orphans
		g.orphans = nil
		g.mu.Unlock()
		if len(orphans) == 0 {
			return out
		}
		for _, id := range orphans {
			g.mu.Lock()
			n, ok := g.nodes[id]
			stale := !ok || !n.orphaned()
			g.mu.Unlock()
			if stale {
				continue
			}
			g.Remove(id)
			out = append(out, id)
		}
	}
}

func (g *Graph) Status(id NodeID) (Status, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, err := g.get(id)
	if err != nil {
		return Status{}, err
	}
	return Status{
		Name:         n.name,
		Init:         n.init,
		Enabled:      n.enabled,
		RuntimeError: n.runtime,
		Active:       n.active,
		Parents:      len(n.parents),
		Children:     len(n.children),
	}, nil
}

func (g *Graph) Active(id NodeID) bool {
	s, err := g.Status(id)
	return err == nil && s.Active
}

func (g *Graph) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.nodes)
}
