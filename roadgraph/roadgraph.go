// Package roadgraph is the reference implementation of spec.md's external
// RoadGraph collaborator: an undirected graph G=(V,E) with designated exit
// and rendezvous node sets, precomputed shortest paths toward each, and the
// full node-pair hop-distance matrix D the estimator consumes (spec §4.3).
//
// Road-network generation and shortest-path computation are explicitly out
// of the core's scope (spec.md §1) — this package exists only so the rest
// of the system has something concrete to run against, built on a real
// graph library rather than a hand-rolled adjacency structure.
package roadgraph

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/katalvlaran/lvlath/builder"
	"github.com/katalvlaran/lvlath/core"
	"github.com/katalvlaran/lvlath/dijkstra"
)

// RoadGraph is the concrete, immutable-after-construction road network.
type RoadGraph struct {
	g *core.Graph

	nodes  []string
	exits  map[string]bool
	rendez map[string]bool

	// dist is the all-pairs hop-distance matrix (entries are hop counts,
	// math.Inf(1) for unreachable pairs, though a connected graph never has
	// any). Built by running dijkstra.Dijkstra once per node rather than via
	// a single all-pairs routine, since every edge carries weight 1 and a
	// per-source run already gives exact hop counts.
	dist  [][]float64
	index map[string]int

	// exitPath/rendezPath cache the ordered shortest path from every node
	// to its nearest exit/rendezvous node, computed once at construction.
	exitPath   map[string][]string
	rendezPath map[string][]string

	// pathCache memoizes Dijkstra trees rooted at an arbitrary target node,
	// lazily populated by GetShortestPath (used for per-group rendezvous
	// targets, which aren't known at construction time).
	pathCache map[string]map[string]string
}

// Options configure graph synthesis.
type Options struct {
	// Rows, Cols size a rows×cols orthogonal grid road network (builder.Grid).
	Rows, Cols int
	// ExitFraction and RendezvousFraction select that fraction of nodes
	// (deterministically, by seeded shuffle) as exits / rendezvous points.
	ExitFraction       float64
	RendezvousFraction float64
	Seed               int64
}

// New synthesizes a grid road network and precomputes everything the
// estimator and behavior kernel need: shortest exit/rendezvous paths and the
// full hop-distance matrix D.
func New(opts Options) (*RoadGraph, error) {
	if opts.Rows < 1 || opts.Cols < 1 {
		return nil, fmt.Errorf("roadgraph: rows=%d cols=%d must be >= 1", opts.Rows, opts.Cols)
	}

	// The graph must be constructed weighted for dijkstra.Dijkstra to accept
	// it at all; a constant weight function of 1 keeps Dijkstra's distances
	// equal to plain hop counts, which is what spec.md's distance matrix D
	// and the likelihood kernel (estimator.BuildLikelihood) require.
	g, err := builder.BuildGraph(
		[]core.GraphOption{core.WithWeighted()},
		[]builder.BuilderOption{
			builder.WithSeed(opts.Seed),
			builder.WithWeightFn(func(*rand.Rand) int64 { return 1 }),
		},
		builder.Grid(opts.Rows, opts.Cols),
	)
	if err != nil {
		return nil, fmt.Errorf("roadgraph: build grid: %w", err)
	}

	nodes := g.Vertices()
	rng := rand.New(rand.NewSource(opts.Seed))

	exits := pickFraction(nodes, opts.ExitFraction, rng)
	rendez := pickFraction(nodes, opts.RendezvousFraction, rng)
	// An exit cannot also be a rendezvous node: the agent FSM (spec §4.1) treats
	// them as mutually exclusive terminal/waiting states.
	for id := range exits {
		delete(rendez, id)
	}
	if len(exits) == 0 {
		exits[nodes[rng.Intn(len(nodes))]] = true
	}
	if len(rendez) == 0 {
		for _, id := range nodes {
			if !exits[id] {
				rendez[id] = true
				break
			}
		}
	}

	index := make(map[string]int, len(nodes))
	for i, v := range nodes {
		index[v] = i
	}
	dist, err := buildHopMatrix(g, nodes, index)
	if err != nil {
		return nil, fmt.Errorf("roadgraph: build distance matrix: %w", err)
	}

	rg := &RoadGraph{
		g:         g,
		nodes:     nodes,
		exits:     exits,
		rendez:    rendez,
		dist:      dist,
		index:     index,
		pathCache: make(map[string]map[string]string),
	}

	if rg.exitPath, err = shortestPathsTo(g, rg.Exits()); err != nil {
		return nil, fmt.Errorf("roadgraph: shortest exit paths: %w", err)
	}
	if rg.rendezPath, err = shortestPathsTo(g, rg.Rendezvous()); err != nil {
		return nil, fmt.Errorf("roadgraph: shortest rendezvous paths: %w", err)
	}

	return rg, nil
}

func pickFraction(nodes []string, frac float64, rng *rand.Rand) map[string]bool {
	count := int(math.Round(frac * float64(len(nodes))))
	if count < 0 {
		count = 0
	}
	if count > len(nodes) {
		count = len(nodes)
	}
	shuffled := append([]string(nil), nodes...)
	rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

	picked := make(map[string]bool, count)
	for i := 0; i < count; i++ {
		picked[shuffled[i]] = true
	}
	return picked
}

// shortestPathsTo computes, for every node v in g, the ordered shortest path
// from v to whichever node in targets is nearest, via one Dijkstra run
// rooted at each target and reconstructing via the parent map (Dijkstra is
// source-rooted, so a run from each target gives us the parent pointers we
// need to walk from any v back toward that target).
func shortestPathsTo(g *core.Graph, targets []string) (map[string][]string, error) {
	best := make(map[string][]string)
	bestDist := make(map[string]int64)

	for _, target := range targets {
		dist, prev, err := dijkstra.Dijkstra(g, dijkstra.Source(target), dijkstra.WithReturnPath())
		if err != nil {
			return nil, fmt.Errorf("dijkstra from %s: %w", target, err)
		}

		for v, d := range dist {
			if prior, ok := bestDist[v]; ok && prior <= d {
				continue
			}
			bestDist[v] = d
			best[v] = reconstructPath(prev, target, v)
		}
	}

	return best, nil
}

// buildHopMatrix runs dijkstra.Dijkstra once per node and assembles the
// dense |V|x|V| hop-distance matrix the likelihood kernel reads (spec.md
// §4.3). Unreachable pairs are recorded as math.Inf(1); a connected road
// network never produces one, but Dist guards against it regardless.
func buildHopMatrix(g *core.Graph, nodes []string, index map[string]int) ([][]float64, error) {
	d := make([][]float64, len(nodes))
	for i := range d {
		d[i] = make([]float64, len(nodes))
	}

	for _, src := range nodes {
		dist, _, err := dijkstra.Dijkstra(g, dijkstra.Source(src))
		if err != nil {
			return nil, fmt.Errorf("dijkstra from %s: %w", src, err)
		}
		row := d[index[src]]
		for _, dst := range nodes {
			if hop, ok := dist[dst]; ok && hop != math.MaxInt64 {
				row[index[dst]] = float64(hop)
			} else {
				row[index[dst]] = math.Inf(1)
			}
		}
	}
	return d, nil
}

// reconstructPath walks the parent map built by a Dijkstra run rooted at
// target, producing the path from v to target starting at v: prev points
// each node toward target, so walking v, prev[v], prev[prev[v]], ... already
// yields the path in the order spec.md's shortestExitPath(v) requires.
func reconstructPath(prev map[string]string, target, v string) []string {
	path := []string{v}
	cur := v
	for cur != target {
		parent, ok := prev[cur]
		if !ok {
			break
		}
		path = append(path, parent)
		cur = parent
	}
	return path
}

// Nodes returns V.
func (rg *RoadGraph) Nodes() []string { return rg.nodes }

// Exits returns X, the designated exit node set.
func (rg *RoadGraph) Exits() []string { return setKeys(rg.exits) }

// Rendezvous returns R, the designated rendezvous node set.
func (rg *RoadGraph) Rendezvous() []string { return setKeys(rg.rendez) }

// IsExit reports whether v is in X.
func (rg *RoadGraph) IsExit(v string) bool { return rg.exits[v] }

// IsRendezvous reports whether v is in R.
func (rg *RoadGraph) IsRendezvous(v string) bool { return rg.rendez[v] }

func setKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

// Neighbors returns the node IDs adjacent to v.
func (rg *RoadGraph) Neighbors(v string) ([]string, error) {
	return rg.g.NeighborIDs(v)
}

// GetShortestPath returns the ordered node list from u to v (inclusive).
// Agents in mode R target their group's specific chosen rendezvous node
// r(a) rather than the nearest one in R, so this runs (and caches) a
// Dijkstra tree rooted at v the first time v is requested as a target.
func (rg *RoadGraph) GetShortestPath(u, v string) ([]string, error) {
	prev, err := rg.treeRootedAt(v)
	if err != nil {
		return nil, fmt.Errorf("roadgraph: shortest path %s->%s: %w", u, v, err)
	}
	return reconstructPathFrom(prev, u, v), nil
}

// treeRootedAt returns the cached Dijkstra parent map rooted at target,
// computing it once per target node (a group's rendezvous node is fixed for
// the whole run, so this amortizes to one Dijkstra run per rendezvous node).
func (rg *RoadGraph) treeRootedAt(target string) (map[string]string, error) {
	if prev, ok := rg.pathCache[target]; ok {
		return prev, nil
	}
	_, prev, err := dijkstra.Dijkstra(rg.g, dijkstra.Source(target), dijkstra.WithReturnPath())
	if err != nil {
		return nil, err
	}
	rg.pathCache[target] = prev
	return prev, nil
}

// reconstructPathFrom walks prev (rooted at v) from u toward v, producing the
// path starting at u and ending at v; prev points each node one hop closer to
// v, so the walk needs no reversal.
func reconstructPathFrom(prev map[string]string, u, v string) []string {
	path := []string{u}
	cur := u
	for cur != v {
		parent, ok := prev[cur]
		if !ok {
			break
		}
		path = append(path, parent)
		cur = parent
	}
	return path
}

// ShortestExitPath returns the ordered node list from v to its nearest exit,
// starting at v. If v is already an exit, the path is [v].
func (rg *RoadGraph) ShortestExitPath(v string) []string {
	if path, ok := rg.exitPath[v]; ok {
		return path
	}
	return []string{v}
}

// ShortestRendezvousPath returns the ordered node list from v to its nearest
// rendezvous node, starting at v.
func (rg *RoadGraph) ShortestRendezvousPath(v string) []string {
	if path, ok := rg.rendezPath[v]; ok {
		return path
	}
	return []string{v}
}

// Dist returns D[u][v], the hop-distance between u and v.
//
// Design note: the original Python source selected a distance row via
// `DistMatrix[:][node]`, which is list-index semantics for a row, not a
// column; since D is symmetric for our undirected road network this
// discrepancy is unobservable (spec.md §9(a)). Dist here always reads
// dist[index[u]][index[v]], the mathematically correct orientation.
func (rg *RoadGraph) Dist(u, v string) (int, error) {
	iu, ok := rg.index[u]
	if !ok {
		return 0, fmt.Errorf("roadgraph: unknown node %q", u)
	}
	iv, ok := rg.index[v]
	if !ok {
		return 0, fmt.Errorf("roadgraph: unknown node %q", v)
	}
	d := rg.dist[iu][iv]
	if math.IsInf(d, 1) {
		return 0, fmt.Errorf("roadgraph: %s and %s are disconnected", u, v)
	}
	return int(math.Round(d)), nil
}

// Index returns the row/column index of v in the distance matrix, the
// estimator uses this to build flat-particle lookups against D directly.
func (rg *RoadGraph) Index(v string) (int, bool) {
	i, ok := rg.index[v]
	return i, ok
}

// DistMatrix exposes the dense hop-distance matrix, indexed by Index(v), for
// callers (the estimator) that need bulk access rather than per-pair calls.
func (rg *RoadGraph) DistMatrix() ([][]float64, map[string]int) {
	return rg.dist, rg.index
}
