package cloth

import (
	"sort"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/san-kum/clothsim/internal/constraint"
	"github.com/san-kum/clothsim/internal/mathx"
	"github.com/san-kum/clothsim/internal/team"
	"github.com/san-kum/clothsim/internal/vmesh"
)

// BuildParams tune the authoring helpers.
type BuildParams struct {
	// NearDistance links unconnected vertices closer than this with a near
	// distance constraint. Zero disables near constraints.
	NearDistance float32
	Params       team.Params
	Workers      WorkerParams
}

func DefaultBuildParams() BuildParams {
	return BuildParams{Params: team.DefaultParams(), Workers: DefaultWorkerParams()}
}

type edge struct{ a, b int }

func mkEdge(a, b int) edge {
	if a > b {
		a, b = b, a
	}
	return edge{a, b}
}

// FromLine builds data for a bone line: vertex i hangs from vertex i-1.
func FromLine(pos []mgl32.Vec3, fixed []bool, p BuildParams) *Data {
	n := len(pos)
	parents := make([]int, n)
	edges := make(map[edge]bool)
	for i := range parents {
		parents[i] = i - 1
		if i > 0 {
			edges[mkEdge(i-1, i)] = true
		}
	}
	rot := make([]mgl32.Quat, n)
	for i := range rot {
		rot[i] = mgl32.QuatIdent()
	}
	d := newData(pos, rot, fixed, parents, p)

	for i := 1; i < n; i++ {
		d.Distances[constraint.Structural] = append(d.Distances[constraint.Structural], pair(pos, i-1, i))
		if i > 1 {
			d.Distances[constraint.Bend] = append(d.Distances[constraint.Bend], pair(pos, i-2, i))
			edges[mkEdge(i-2, i)] = true
		}
	}
	d.Distances[constraint.Near] = nearPairs(pos, edges, p.NearDistance)
	d.Depth = depth(n, fixed, d.Distances[constraint.Structural])
	return d.Seal()
}

// FromMesh builds data for a mesh variant with one particle per shared
// vertex.
func FromMesh(sh *vmesh.SharedMesh, fixed []bool, p BuildParams) *Data {
	n := sh.VertexCount()
	pos := sh.Positions
	rot := make([]mgl32.Quat, n)
	for i := range rot {
		rot[i] = vmesh.Frame(sh.Normals[i], sh.Tangents[i])
	}

	edges := make(map[edge]bool)
	opposite := make(map[edge][]int)
	var tris []constraint.Triangle
	var structural []constraint.Pair
	for _, t := range sh.Triangles {
		v := [3]int{int(t[0]), int(t[1]), int(t[2])}
		tris = append(tris, constraint.Triangle{A: v[0], B: v[1], C: v[2]})
		for k := 0; k < 3; k++ {
			e := mkEdge(v[k], v[(k+1)%3])
			opposite[e] = append(opposite[e], v[(k+2)%3])
			if !edges[e] {
				edges[e] = true
				structural = append(structural, pair(pos, e.a, e.b))
			}
		}
	}

	// deterministic order over shared edges
	keys := make([]edge, 0, len(opposite))
	for e := range opposite {
		keys = append(keys, e)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].a != keys[j].a {
			return keys[i].a < keys[j].a
		}
		return keys[i].b < keys[j].b
	})
	var quads []constraint.Quad
	var bend []constraint.Pair
	for _, e := range keys {
		o := opposite[e]
		if len(o) != 2 || o[0] == o[1] {
			continue
		}
		quads = append(quads, constraint.Quad{A: e.a, B: e.b, C: o[0], D: o[1]})
		if be := mkEdge(o[0], o[1]); !edges[be] {
			edges[be] = true
			bend = append(bend, pair(pos, o[0], o[1]))
		}
	}

	parents := tree(n, fixed, structural)
	d := newData(pos, rot, fixed, parents, p)
	d.MeshHash = sh.Hash()
	d.Distances[constraint.Structural] = structural
	d.Distances[constraint.Bend] = bend
	d.Distances[constraint.Near] = nearPairs(pos, edges, p.NearDistance)
	d.Triangles = tris
	d.Quads = quads
	d.Depth = depth(n, fixed, structural)
	return d.Seal()
}

func newData(pos []mgl32.Vec3, rot []mgl32.Quat, fixed []bool, parents []int, p BuildParams) *Data {
	n := len(pos)
	d := &Data{
		Flags:   make([]VertexFlag, n),
		RestPos: append([]mgl32.Vec3(nil), pos...),
		RestRot: rot,
		Parents: parents,
		Params:  p.Params,
		Workers: p.Workers,
	}
	for i := range d.Flags {
		d.Flags[i] = VertexMove
		if i < len(fixed) && fixed[i] {
			d.Flags[i] = VertexFixed
		}
	}
	for c, par := range parents {
		if par < 0 {
			continue
		}
		dir := rot[par].Inverse().Rotate(pos[c].Sub(pos[par]))
		link := constraint.Link{Parent: par, Child: c, RestDir: dir}
		d.RestoreLinks = append(d.RestoreLinks, link)
		d.ClampLinks = append(d.ClampLinks, link)
		d.Targets = append(d.Targets, constraint.Target{Particle: c, Target: par, Length: pos[c].Sub(pos[par]).Len()})
	}
	return d
}

func pair(pos []mgl32.Vec3, a, b int) constraint.Pair {
	return constraint.Pair{A: a, B: b, Length: pos[a].Sub(pos[b]).Len()}
}

func nearPairs(pos []mgl32.Vec3, linked map[edge]bool, dist float32) []constraint.Pair {
	if dist <= 0 {
		return nil
	}
	var out []constraint.Pair
	for a := range pos {
		for b := a + 1; b < len(pos); b++ {
			if linked[edge{a, b}] {
				continue
			}
			if pos[a].Sub(pos[b]).Len() <= dist {
				out = append(out, pair(pos, a, b))
			}
		}
	}
	return out
}

func adjacency(n int, pairs []constraint.Pair) [][]int {
	adj := make([][]int, n)
	for _, p := range pairs {
		adj[p.A] = append(adj[p.A], p.B)
		adj[p.B] = append(adj[p.B], p.A)
	}
	return adj
}

// bfs walks structural edges outward from the fixed vertices and returns the
// hop count and parent of every vertex. Unreached vertices get -1 for both.
func bfs(n int, fixed []bool, pairs []constraint.Pair) (hops, parent []int) {
	adj := adjacency(n, pairs)
	hops = make([]int, n)
	parent = make([]int, n)
	var queue []int
	for i := 0; i < n; i++ {
		hops[i], parent[i] = -1, -1
		if i < len(fixed) && fixed[i] {
			hops[i] = 0
			queue = append(queue, i)
		}
	}
	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		for _, w := range adj[v] {
			if hops[w] >= 0 {
				continue
			}
			hops[w] = hops[v] + 1
			parent[w] = v
			queue = append(queue, w)
		}
	}
	return hops, parent
}

func tree(n int, fixed []bool, pairs []constraint.Pair) []int {
	_, parent := bfs(n, fixed, pairs)
	return parent
}

// depth normalizes structural hop distance from the fixed vertices to [0,1].
// Vertices no fixed vertex reaches get depth 1.
func depth(n int, fixed []bool, pairs []constraint.Pair) []float32 {
	hops, _ := bfs(n, fixed, pairs)
	most := 0
	for _, h := range hops {
		most = max(most, h)
	}
	out := make([]float32, n)
	for i, h := range hops {
		switch {
		case h < 0:
			out[i] = 1
		case most > 0:
			out[i] = mathx.Saturate(float32(h) / float32(most))
		}
	}
	return out
}
