package feeder

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
	"gonum.org/v1/gonum/graph/traverse"
)

type branchKind int

const (
	branchLine branchKind = iota
	branchTransformer
)

// branch is a series element oriented from parent to child in the tree.
type branch struct {
	name     string // full element name, e.g. Line.650632
	kind     branchKind
	parent   int
	child    int
	z        complex128 // per-unit series impedance, primary side
	tap      float64    // secondary ratio, 1 for lines
	regulate float64    // regulated secondary voltage, 0 when fixed
	normAmps float64
	kva      float64
	lengthKM float64
}

// topology is the compiled radial tree.
type topology struct {
	buses    []string // index -> name
	kvBase   []float64
	index    map[string]int
	branches []branch
	order    []int // buses in BFS order from the source
	up       []int // bus -> branch index feeding it, -1 for the source
	source   int
	graph    *simple.WeightedUndirectedGraph
}

func buildTopology(m *Model) (*topology, error) {
	t := &topology{index: make(map[string]int, len(m.Buses))}
	g := simple.NewWeightedUndirectedGraph(0, math.Inf(1))
	for i, b := range m.Buses {
		t.buses = append(t.buses, b.Name)
		t.kvBase = append(t.kvBase, b.KV)
		t.index[b.Name] = i
		g.AddNode(simple.Node(int64(i)))
	}
	t.source = t.index[m.Source.Bus]

	type edge struct {
		from, to int
		b        branch
	}
	var edges []edge
	for _, l := range m.Lines {
		from, to := t.index[l.From], t.index[l.To]
		zbase := t.kvBase[from] * t.kvBase[from] * 1000 / m.BaseKVA
		edges = append(edges, edge{from, to, branch{
			name:     "Line." + l.Name,
			kind:     branchLine,
			z:        complex(l.ROhm, l.XOhm) / complex(zbase, 0),
			tap:      1,
			normAmps: l.NormAmps,
			lengthKM: l.LengthKM,
		}})
	}
	for _, tr := range m.Transformers {
		from, to := t.index[tr.From], t.index[tr.To]
		scale := m.BaseKVA / tr.KVA / 100
		edges = append(edges, edge{from, to, branch{
			name:     "Transformer." + tr.Name,
			kind:     branchTransformer,
			z:        complex(tr.PctR*scale, tr.PctX*scale),
			tap:      tr.Tap,
			regulate: tr.RegulatePU,
			kva:      tr.KVA,
		}})
	}
	if len(edges) != len(m.Buses)-1 {
		return nil, fmt.Errorf("%w: %d buses and %d branches", ErrNotRadial, len(m.Buses), len(edges))
	}

	byPair := make(map[[2]int]int, len(edges))
	for i, e := range edges {
		if e.from == e.to || g.HasEdgeBetween(int64(e.from), int64(e.to)) {
			return nil, fmt.Errorf("%w: parallel or looped branch %s", ErrNotRadial, e.b.name)
		}
		w := e.b.lengthKM
		if w <= 0 {
			w = 1e-3
		}
		g.SetWeightedEdge(g.NewWeightedEdge(simple.Node(int64(e.from)), simple.Node(int64(e.to)), w))
		byPair[pairKey(e.from, e.to)] = i
	}
	if cc := topo.ConnectedComponents(g); len(cc) != 1 {
		return nil, fmt.Errorf("%w: %d islands", ErrNotRadial, len(cc))
	}
	t.graph = g

	t.up = make([]int, len(t.buses))
	for i := range t.up {
		t.up[i] = -1
	}
	seen := map[int]bool{t.source: true}
	bfs := traverse.BreadthFirst{
		Traverse: func(e graph.Edge) bool {
			parent, child := int(e.From().ID()), int(e.To().ID())
			if seen[child] && !seen[parent] {
				parent, child = child, parent
			}
			if seen[child] {
				return true
			}
			seen[child] = true
			src := edges[byPair[pairKey(parent, child)]].b
			src.parent, src.child = parent, child
			t.branches = append(t.branches, src)
			t.up[child] = len(t.branches) - 1
			return true
		},
	}
	bfs.Walk(g, simple.Node(int64(t.source)), func(n graph.Node, _ int) bool {
		t.order = append(t.order, int(n.ID()))
		return false
	})
	return t, nil
}

func pairKey(a, b int) [2]int {
	if a > b {
		a, b = b, a
	}
	return [2]int{a, b}
}

// distanceOrder returns bus names sorted by path length from the given bus,
// ties broken by name.
func (t *topology) distanceOrder(from int) []string {
	shortest := path.DijkstraFrom(simple.Node(int64(from)), t.graph)
	type entry struct {
		name string
		d    float64
	}
	entries := make([]entry, len(t.buses))
	for i, name := range t.buses {
		entries[i] = entry{name: name, d: shortest.WeightTo(int64(i))}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].d != entries[j].d {
			return entries[i].d < entries[j].d
		}
		return entries[i].name < entries[j].name
	})
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.name
	}
	return out
}

// elementBus resolves the bus at terminal (1 or 2) of a branch element.
func (t *topology) elementBus(element string, terminal int) (int, bool) {
	for _, b := range t.branches {
		if equalFold(b.name, element) {
			if terminal == 2 {
				return b.child, true
			}
			return b.parent, true
		}
	}
	return 0, false
}

// currentBase returns the base current in amps at bus i.
func (t *topology) currentBase(i int, baseKVA float64) float64 {
	return baseKVA / (math.Sqrt(3) * t.kvBase[i])
}
