// Package belief implements the dependency graph over hypothesis ids: edge
// A->B means "A depends on B". The graph rejects self-loops and any edge
// whose insertion would create a cycle, and offers Tarjan SCC-based cycle
// detection for the already-built graph.
package belief

import (
	"github.com/oldnordic/forge/reasoning"
	"github.com/oldnordic/forge/reasoning/hypothesis"
)

// Graph is a directed dependency graph whose nodes are hypothesis ids.
// Hypothesis ids are held by value, never by reference, per the data
// model's ownership rules. Graph is not safe for concurrent use on its
// own; callers that need concurrent access should serialize through a
// single exclusive lock.
type Graph struct {
	// order preserves node insertion order so that Nodes() and the set
	// results of traversal queries are deterministic across runs.
	order []hypothesis.ID
	// out[a] is the ordered set of nodes a depends on (a -> b edges).
	out map[hypothesis.ID][]hypothesis.ID
	// in[b] is the ordered set of nodes that depend on b.
	in map[hypothesis.ID][]hypothesis.ID
}

// New constructs an empty Graph.
func New() *Graph {
	return &Graph{
		out: make(map[hypothesis.ID][]hypothesis.ID),
		in:  make(map[hypothesis.ID][]hypothesis.ID),
	}
}

func (g *Graph) ensureNode(id hypothesis.ID) {
	if _, ok := g.out[id]; !ok {
		g.out[id] = nil
		g.in[id] = nil
		g.order = append(g.order, id)
	}
}

func contains(set []hypothesis.ID, id hypothesis.ID) bool {
	for _, existing := range set {
		if existing == id {
			return true
		}
	}
	return false
}

// AddDependency records that a depends on b. It rejects self-loops and any
// edge whose insertion would create a cycle, simulated by checking whether
// b can already reach a before the edge is committed. Inserting a
// duplicate edge is a no-op.
func (g *Graph) AddDependency(a, b hypothesis.ID) error {
	if a == b {
		return reasoning.New(reasoning.KindCascade, "self-loop dependency rejected")
	}
	if g.wouldCreateCycle(a, b) {
		return reasoning.New(reasoning.KindCascade, "dependency would create a cycle")
	}
	g.ensureNode(a)
	g.ensureNode(b)
	if contains(g.out[a], b) {
		return nil
	}
	g.out[a] = append(g.out[a], b)
	g.in[b] = append(g.in[b], a)
	return nil
}

// wouldCreateCycle reports whether adding a->b would let b reach a, i.e.
// whether a already lies in b's transitive dependee closure once the edge
// is in place. It runs the reachability check on the *existing* graph
// (simulated insertion) rather than mutating state, so a rejected edge
// leaves the graph untouched.
func (g *Graph) wouldCreateCycle(a, b hypothesis.ID) bool {
	// b can reach a (via b's existing out-edges) iff a DFS from b visits a.
	// Adding a->b then closes a cycle a->b->...->a.
	visited := make(map[hypothesis.ID]bool)
	var dfs func(hypothesis.ID) bool
	dfs = func(node hypothesis.ID) bool {
		if node == a {
			return true
		}
		if visited[node] {
			return false
		}
		visited[node] = true
		for _, next := range g.out[node] {
			if dfs(next) {
				return true
			}
		}
		return false
	}
	return dfs(b)
}

// RemoveDependency removes the a->b edge if present, reporting whether it
// existed.
func (g *Graph) RemoveDependency(a, b hypothesis.ID) bool {
	removed := false
	g.out[a], removed = removeFrom(g.out[a], b)
	if removed {
		g.in[b], _ = removeFrom(g.in[b], a)
	}
	return removed
}

func removeFrom(set []hypothesis.ID, id hypothesis.ID) ([]hypothesis.ID, bool) {
	for i, existing := range set {
		if existing == id {
			return append(set[:i], set[i+1:]...), true
		}
	}
	return set, false
}

// Dependents returns the hypotheses that depend on x (incoming edges),
// i.e. nodes a such that a -> x.
func (g *Graph) Dependents(x hypothesis.ID) []hypothesis.ID {
	return append([]hypothesis.ID(nil), g.in[x]...)
}

// Dependees returns the hypotheses x depends on (outgoing edges).
func (g *Graph) Dependees(x hypothesis.ID) []hypothesis.ID {
	return append([]hypothesis.ID(nil), g.out[x]...)
}

// DependencyChain returns the full transitive closure of x's dependees
// (everything x depends on, directly or indirectly), excluding x itself,
// in DFS-insertion order.
func (g *Graph) DependencyChain(x hypothesis.ID) []hypothesis.ID {
	return g.transitiveClosure(x, g.out)
}

// ReverseDependencyChain returns the full transitive closure of x's
// dependents (everything that depends on x, directly or indirectly),
// excluding x itself.
func (g *Graph) ReverseDependencyChain(x hypothesis.ID) []hypothesis.ID {
	return g.transitiveClosure(x, g.in)
}

func (g *Graph) transitiveClosure(start hypothesis.ID, adjacency map[hypothesis.ID][]hypothesis.ID) []hypothesis.ID {
	visited := make(map[hypothesis.ID]bool)
	var result []hypothesis.ID
	stack := append([]hypothesis.ID(nil), adjacency[start]...)
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[node] || node == start {
			continue
		}
		visited[node] = true
		result = append(result, node)
		stack = append(stack, adjacency[node]...)
	}
	return result
}

// Nodes returns every node currently in the graph, in insertion order.
func (g *Graph) Nodes() []hypothesis.ID {
	return append([]hypothesis.ID(nil), g.order...)
}

// RemoveHypothesis deletes a node and all edges touching it, reporting
// whether it existed.
func (g *Graph) RemoveHypothesis(x hypothesis.ID) bool {
	if _, ok := g.out[x]; !ok {
		return false
	}
	for _, dependee := range g.out[x] {
		g.in[dependee], _ = removeFrom(g.in[dependee], x)
	}
	for _, dependent := range g.in[x] {
		g.out[dependent], _ = removeFrom(g.out[dependent], x)
	}
	delete(g.out, x)
	delete(g.in, x)
	for i, id := range g.order {
		if id == x {
			g.order = append(g.order[:i], g.order[i+1:]...)
			break
		}
	}
	return true
}

// DetectCycles runs Tarjan's strongly-connected-components algorithm over
// the current graph and returns every SCC of size > 1 as a cycle. Because
// AddDependency already prevents cycle formation, a non-empty result here
// indicates either a bug in that check or a graph built by some other
// means (e.g. Revert restoring a stale snapshot).
func (g *Graph) DetectCycles() [][]hypothesis.ID {
	t := &tarjan{
		graph:   g,
		index:   make(map[hypothesis.ID]int),
		lowlink: make(map[hypothesis.ID]int),
		onStack: make(map[hypothesis.ID]bool),
	}
	for _, node := range g.order {
		if _, visited := t.index[node]; !visited {
			t.strongConnect(node)
		}
	}
	var cycles [][]hypothesis.ID
	for _, scc := range t.sccs {
		if len(scc) > 1 {
			cycles = append(cycles, scc)
		}
	}
	return cycles
}

// tarjan holds the working state of one Tarjan SCC run over a Graph.
type tarjan struct {
	graph     *Graph
	index     map[hypothesis.ID]int
	lowlink   map[hypothesis.ID]int
	onStack   map[hypothesis.ID]bool
	stack     []hypothesis.ID
	nextIndex int
	sccs      [][]hypothesis.ID
}

func (t *tarjan) strongConnect(v hypothesis.ID) {
	t.index[v] = t.nextIndex
	t.lowlink[v] = t.nextIndex
	t.nextIndex++
	t.stack = append(t.stack, v)
	t.onStack[v] = true

	for _, w := range t.graph.out[v] {
		if _, visited := t.index[w]; !visited {
			t.strongConnect(w)
			if t.lowlink[w] < t.lowlink[v] {
				t.lowlink[v] = t.lowlink[w]
			}
		} else if t.onStack[w] {
			if t.index[w] < t.lowlink[v] {
				t.lowlink[v] = t.index[w]
			}
		}
	}

	if t.lowlink[v] == t.index[v] {
		var scc []hypothesis.ID
		for {
			n := len(t.stack) - 1
			w := t.stack[n]
			t.stack = t.stack[:n]
			t.onStack[w] = false
			scc = append(scc, w)
			if w == v {
				break
			}
		}
		t.sccs = append(t.sccs, scc)
	}
}
