// Package algo has the graph, ranking and packing algorithms behind a plan.
package algo

import "sort"

// Digraph is a directed graph over string node IDs.
type Digraph struct {
	nodes map[string]struct{}
	out   map[string]map[string]struct{}
}

// NewDigraph creates an empty graph.
func NewDigraph() *Digraph {
	return &Digraph{
		nodes: make(map[string]struct{}),
		out:   make(map[string]map[string]struct{}),
	}
}

// AddNode adds a node if it is not present yet.
func (g *Digraph) AddNode(id string) {
	g.nodes[id] = struct{}{}
}

// AddEdge adds an edge from one node to another, adding both nodes.
func (g *Digraph) AddEdge(from, to string) {
	g.AddNode(from)
	g.AddNode(to)
	if g.out[from] == nil {
		g.out[from] = make(map[string]struct{})
	}
	g.out[from][to] = struct{}{}
}

// HasNode reports whether the node is in the graph.
func (g *Digraph) HasNode(id string) bool {
	_, ok := g.nodes[id]
	return ok
}

// Nodes returns every node in ascending order.
func (g *Digraph) Nodes() []string {
	return sortedSet(g.nodes)
}

// Successors returns the targets of the node's outgoing edges in ascending order.
func (g *Digraph) Successors(id string) []string {
	return sortedSet(g.out[id])
}

// Reverse returns a copy of the graph with every edge flipped.
func (g *Digraph) Reverse() *Digraph {
	r := NewDigraph()
	for id := range g.nodes {
		r.AddNode(id)
	}
	for from, tos := range g.out {
		for to := range tos {
			r.AddEdge(to, from)
		}
	}
	return r
}

// StronglyConnected returns the strongly connected components of the graph
// using Tarjan's algorithm. Members are sorted and components are ordered by
// their smallest member.
func (g *Digraph) StronglyConnected() [][]string {
	var (
		index   int
		indices = make(map[string]int, len(g.nodes))
		low     = make(map[string]int, len(g.nodes))
		onStack = make(map[string]bool, len(g.nodes))
		stack   []string
		sccs    [][]string
	)

	var connect func(v string)
	connect = func(v string) {
		indices[v], low[v] = index, index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range g.Successors(v) {
			if _, seen := indices[w]; !seen {
				connect(w)
				low[v] = min(low[v], low[w])
			} else if onStack[w] {
				low[v] = min(low[v], indices[w])
			}
		}

		if low[v] != indices[v] {
			return
		}
		var comp []string
		for {
			w := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			onStack[w] = false
			comp = append(comp, w)
			if w == v {
				break
			}
		}
		sort.Strings(comp)
		sccs = append(sccs, comp)
	}

	for _, v := range g.Nodes() {
		if _, seen := indices[v]; !seen {
			connect(v)
		}
	}
	sort.Slice(sccs, func(i, j int) bool { return sccs[i][0] < sccs[j][0] })
	return sccs
}

// Condensation is the acyclic graph obtained by collapsing every strongly
// connected component into one node.
type Condensation struct {
	Graph   *Digraph
	NodeOf  map[string]string   // member ID to condensed node ID
	Members map[string][]string // condensed node ID to sorted members
	Cycles  []string            // condensed node IDs of multi-member components, in order
}

// Condense collapses the strongly connected components of the graph. Single
// nodes keep their ID. The i-th multi-member component (1-based, ordered by
// smallest member) is named by name.
func (g *Digraph) Condense(name func(i int, members []string) string) *Condensation {
	c := &Condensation{
		Graph:   NewDigraph(),
		NodeOf:  make(map[string]string, len(g.nodes)),
		Members: make(map[string][]string),
	}
	for _, comp := range g.StronglyConnected() {
		id := comp[0]
		if len(comp) > 1 {
			id = name(len(c.Cycles)+1, comp)
			c.Cycles = append(c.Cycles, id)
		}
		c.Members[id] = comp
		c.Graph.AddNode(id)
		for _, m := range comp {
			c.NodeOf[m] = id
		}
	}
	for from, tos := range g.out {
		for to := range tos {
			if a, b := c.NodeOf[from], c.NodeOf[to]; a != b {
				c.Graph.AddEdge(a, b)
			}
		}
	}
	return c
}

// BoundedBFS walks the graph from the start nodes and returns the depth at
// which each node was first reached. Start nodes have depth 0 and nothing
// deeper than maxDepth is visited.
func (g *Digraph) BoundedBFS(starts []string, maxDepth int) map[string]int {
	depth := make(map[string]int, len(starts))
	var queue []string
	for _, s := range sortedSlice(starts) {
		if _, ok := depth[s]; ok || !g.HasNode(s) {
			continue
		}
		depth[s] = 0
		queue = append(queue, s)
	}
	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		if depth[v] >= maxDepth {
			continue
		}
		for _, w := range g.Successors(v) {
			if _, seen := depth[w]; seen {
				continue
			}
			depth[w] = depth[v] + 1
			queue = append(queue, w)
		}
	}
	return depth
}

// Layering is the outcome of a layered topological sort.
type Layering struct {
	Layer  map[string]int // node ID to layer, 0 for nodes without prerequisites
	Cycles [][]string     // node sets that were placed together because of a cycle
}

// Layers runs Kahn's algorithm over a graph whose edges point from a node to
// its prerequisites. A node's layer is one more than the deepest layer of its
// prerequisites. Members of a cycle share one layer.
func (g *Digraph) Layers() Layering {
	cond := g.Condense(func(i int, members []string) string {
		return "\x00cycle:" + members[0]
	})
	dag := cond.Graph
	dependents := dag.Reverse()

	remaining := make(map[string]int, len(cond.Members))
	layer := make(map[string]int, len(cond.Members))
	var queue []string
	for _, id := range dag.Nodes() {
		remaining[id] = len(dag.Successors(id))
		if remaining[id] == 0 {
			queue = append(queue, id)
		}
	}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, d := range dependents.Successors(id) {
			layer[d] = max(layer[d], layer[id]+1)
			remaining[d]--
			if remaining[d] == 0 {
				queue = append(queue, d)
			}
		}
	}

	out := Layering{Layer: make(map[string]int, len(g.nodes))}
	for id, members := range cond.Members {
		for _, m := range members {
			out.Layer[m] = layer[id]
		}
	}
	for _, id := range cond.Cycles {
		out.Cycles = append(out.Cycles, cond.Members[id])
	}
	return out
}

// WeaklyConnected partitions the given nodes into components connected by
// edges in either direction, ignoring edges that leave the set. Members are
// sorted and components are ordered by their smallest member.
func (g *Digraph) WeaklyConnected(within []string) [][]string {
	parent := make(map[string]string, len(within))
	var find func(string) string
	find = func(x string) string {
		if parent[x] != x {
			parent[x] = find(parent[x])
		}
		return parent[x]
	}
	union := func(a, b string) {
		ra, rb := find(a), find(b)
		if ra == rb {
			return
		}
		if rb < ra {
			ra, rb = rb, ra
		}
		parent[rb] = ra
	}

	for _, id := range within {
		parent[id] = id
	}
	for _, id := range sortedSlice(within) {
		for _, to := range g.Successors(id) {
			if _, ok := parent[to]; ok {
				union(id, to)
			}
		}
	}

	groups := make(map[string][]string)
	for id := range parent {
		root := find(id)
		groups[root] = append(groups[root], id)
	}
	comps := make([][]string, 0, len(groups))
	for _, members := range groups {
		sort.Strings(members)
		comps = append(comps, members)
	}
	sort.Slice(comps, func(i, j int) bool { return comps[i][0] < comps[j][0] })
	return comps
}

func sortedSet(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedSlice(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}
