package graph

import (
	"container/heap"
	"sort"
)

// IsLeaf reports whether id is schedulable on its own: a task without
// children. A summary with no children is scheduled as a zero-length leaf.
// Callers testing many ids should use LeafSet.
func (g *Graph) IsLeaf(id string) bool {
	if _, ok := g.tasks[id]; !ok {
		return false
	}
	for _, t := range g.tasks {
		if t.ParentID == id {
			return false
		}
	}
	return true
}

// LeafSet returns the ids of every leaf task.
func (g *Graph) LeafSet() map[string]bool {
	children := g.childIndex()
	out := make(map[string]bool, len(g.tasks))
	for id := range g.tasks {
		if len(children[id]) == 0 {
			out[id] = true
		}
	}
	return out
}

// Leaves returns the leaf descendants of id in schedule order, or id itself
// when it has no children.
func (g *Graph) Leaves(id string) []string {
	return g.leavesFrom(g.childIndex(), id)
}

func (g *Graph) leavesFrom(children map[string][]string, id string) []string {
	kids := children[id]
	if len(kids) == 0 {
		return []string{id}
	}
	var out []string
	for _, c := range kids {
		out = append(out, g.leavesFrom(children, c)...)
	}
	return out
}

// LeafIDs returns every leaf task in schedule order.
func (g *Graph) LeafIDs() []string {
	children := g.childIndex()
	var out []string
	for _, id := range g.orderedIDs() {
		if len(children[id]) == 0 {
			out = append(out, id)
		}
	}
	return out
}

// LeafDependencies expands dependencies that name summaries into
// leaf-to-leaf dependencies with the same type and lag. The result is
// ordered by predecessor, then successor.
//
// A summary finishes with its last leaf, so FS and FF bind every leaf of a
// summary predecessor, while SS and SF bind only its opening leaves: those
// with no predecessor inside the summary. On the successor side FS and SS
// hold back every leaf, while FF and SF bind only the closing leaves: those
// with no successor inside the summary.
func (g *Graph) LeafDependencies() []Dependency {
	x := &expander{
		g:        g,
		children: g.childIndex(),
		opening:  make(map[string][]string),
		closing:  make(map[string][]string),
	}
	var out []Dependency
	for _, d := range g.deps {
		out = append(out, x.expand(d)...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].PredecessorID != out[j].PredecessorID {
			return out[i].PredecessorID < out[j].PredecessorID
		}
		return out[i].SuccessorID < out[j].SuccessorID
	})
	return out
}

// expander memoizes the opening and closing leaves of summaries while
// dependencies are expanded.
type expander struct {
	g        *Graph
	children map[string][]string
	opening  map[string][]string
	closing  map[string][]string
}

func (x *expander) expand(d Dependency) []Dependency {
	preds := x.g.leavesFrom(x.children, d.PredecessorID)
	if d.Type == StartToStart || d.Type == StartToFinish {
		preds = x.ends(d.PredecessorID, true)
	}
	succs := x.g.leavesFrom(x.children, d.SuccessorID)
	if d.Type == FinishToFinish || d.Type == StartToFinish {
		succs = x.ends(d.SuccessorID, false)
	}
	out := make([]Dependency, 0, len(preds)*len(succs))
	for _, p := range preds {
		for _, s := range succs {
			out = append(out, Dependency{PredecessorID: p, SuccessorID: s, Type: d.Type, Lag: d.Lag})
		}
	}
	return out
}

// ends returns the opening or closing leaves of id. Only dependencies with
// both ends inside id count; they name strict descendants, so the recursion
// through expand always reaches smaller summaries.
func (x *expander) ends(id string, opening bool) []string {
	leaves := x.g.leavesFrom(x.children, id)
	if len(x.children[id]) == 0 {
		return leaves
	}
	memo := x.closing
	if opening {
		memo = x.opening
	}
	if got, ok := memo[id]; ok {
		return got
	}

	linked := make(map[string]bool)
	for _, d := range x.g.deps {
		if !x.within(d.PredecessorID, id) || !x.within(d.SuccessorID, id) {
			continue
		}
		for _, e := range x.expand(d) {
			if opening {
				linked[e.SuccessorID] = true
			} else {
				linked[e.PredecessorID] = true
			}
		}
	}
	var out []string
	for _, l := range leaves {
		if !linked[l] {
			out = append(out, l)
		}
	}
	if len(out) == 0 {
		// Only possible when the summary's leaves form a cycle, which
		// TopologicalOrder reports.
		out = leaves
	}
	memo[id] = out
	return out
}

// within reports whether id is a strict descendant of ancestor.
func (x *expander) within(id, ancestor string) bool {
	t, ok := x.g.tasks[id]
	for steps := 0; ok && t.ParentID != "" && steps <= len(x.g.tasks); steps++ {
		if t.ParentID == ancestor {
			return true
		}
		t, ok = x.g.tasks[t.ParentID]
	}
	return false
}

// idHeap is a min-heap of task ids ordered by the graph's schedule order.
type idHeap struct {
	ids  []string
	less func(a, b string) bool
}

func (h *idHeap) Len() int           { return len(h.ids) }
func (h *idHeap) Less(i, j int) bool { return h.less(h.ids[i], h.ids[j]) }
func (h *idHeap) Swap(i, j int)      { h.ids[i], h.ids[j] = h.ids[j], h.ids[i] }
func (h *idHeap) Push(x any)         { h.ids = append(h.ids, x.(string)) }
func (h *idHeap) Pop() any {
	old := h.ids
	n := len(old)
	x := old[n-1]
	h.ids = old[:n-1]
	return x
}

// TopologicalOrder returns the leaf tasks in dependency order. Ties are
// broken by SortOrder, then id, so the order is stable across calls.
// A cycle yields a *CycleError.
func (g *Graph) TopologicalOrder() ([]string, error) {
	if err := g.checkHierarchy(); err != nil {
		return nil, err
	}
	leaves := g.LeafIDs()
	deps := g.LeafDependencies()

	indegree := make(map[string]int, len(leaves))
	adj := make(map[string][]string, len(leaves))
	for _, id := range leaves {
		indegree[id] = 0
	}
	for _, d := range deps {
		adj[d.PredecessorID] = append(adj[d.PredecessorID], d.SuccessorID)
		indegree[d.SuccessorID]++
	}

	h := &idHeap{less: g.less}
	for _, id := range leaves {
		if indegree[id] == 0 {
			h.ids = append(h.ids, id)
		}
	}
	heap.Init(h)

	order := make([]string, 0, len(leaves))
	for h.Len() > 0 {
		id := heap.Pop(h).(string)
		order = append(order, id)
		for _, s := range adj[id] {
			indegree[s]--
			if indegree[s] == 0 {
				heap.Push(h, s)
			}
		}
	}
	if len(order) != len(leaves) {
		return nil, &CycleError{Path: findCycle(leaves, adj)}
	}
	return order, nil
}

// Validate checks the whole graph: the hierarchy has no cycles and the
// leaf-expanded dependency graph is acyclic.
func (g *Graph) Validate() error {
	_, err := g.TopologicalOrder()
	return err
}

// checkHierarchy walks parent links from every task.
func (g *Graph) checkHierarchy() error {
	done := make(map[string]bool, len(g.tasks))
	for _, id := range g.orderedIDs() {
		var path []string
		onPath := make(map[string]bool)
		cur := id
		for cur != "" && !done[cur] {
			if onPath[cur] {
				i := 0
				for path[i] != cur {
					i++
				}
				cycle := append(append([]string(nil), path[i:]...), cur)
				return &CycleError{Path: cycle}
			}
			onPath[cur] = true
			path = append(path, cur)
			t, ok := g.tasks[cur]
			if !ok {
				break
			}
			cur = t.ParentID
		}
		for _, p := range path {
			done[p] = true
		}
	}
	return nil
}

// findCycle runs a white/gray/black DFS over adj and returns the first cycle
// found, closed on its starting node.
func findCycle(nodes []string, adj map[string][]string) []string {
	const (
		white = iota
		gray
		black
	)
	color := make(map[string]int, len(nodes))
	var stack []string
	var cycle []string

	var visit func(id string) bool
	visit = func(id string) bool {
		color[id] = gray
		stack = append(stack, id)
		for _, next := range adj[id] {
			switch color[next] {
			case gray:
				i := len(stack) - 1
				for stack[i] != next {
					i--
				}
				cycle = append(append([]string(nil), stack[i:]...), next)
				return true
			case white:
				if visit(next) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[id] = black
		return false
	}

	for _, id := range nodes {
		if color[id] == white && visit(id) {
			return cycle
		}
	}
	return nil
}

// pathBetween searches the leaf dependency graph breadth-first from any of
// from to any of to and returns the chain of ids, or nil when unreachable.
func (g *Graph) pathBetween(from, to []string) []string {
	target := make(map[string]bool, len(to))
	for _, id := range to {
		target[id] = true
	}
	adj := make(map[string][]string)
	for _, d := range g.LeafDependencies() {
		adj[d.PredecessorID] = append(adj[d.PredecessorID], d.SuccessorID)
	}

	prev := make(map[string]string)
	seen := make(map[string]bool)
	queue := append([]string(nil), from...)
	for _, id := range from {
		seen[id] = true
	}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if target[id] {
			var chain []string
			for cur := id; ; cur = prev[cur] {
				chain = append([]string{cur}, chain...)
				if _, ok := prev[cur]; !ok {
					break
				}
			}
			return chain
		}
		for _, next := range adj[id] {
			if !seen[next] {
				seen[next] = true
				prev[next] = id
				queue = append(queue, next)
			}
		}
	}
	return nil
}

// dependencyCycle reports the cycle that adding d would close, or nil.
func (g *Graph) dependencyCycle(d Dependency) []string {
	children := g.childIndex()
	predLeaves := g.leavesFrom(children, d.PredecessorID)
	succLeaves := g.leavesFrom(children, d.SuccessorID)
	chain := g.pathBetween(succLeaves, predLeaves)
	if chain == nil {
		return nil
	}
	path := []string{d.PredecessorID}
	if chain[0] != d.SuccessorID {
		path = append(path, d.SuccessorID)
	}
	path = append(path, chain...)
	if chain[len(chain)-1] != d.PredecessorID {
		path = append(path, d.PredecessorID)
	}
	return path
}
