// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: Apache-2.0

package graph

import (
	"container/heap"

	"github.com/kraklabs/codegraph/pkg/model"
)

// BFS walks outward from start breadth-first, respecting opts.MaxDepth and
// opts.MaxNodes, applying opts.Predicate to decide whether a node is
// included in the result. Nodes that fail the predicate are still expanded.
func (s *Store) BFS(start model.ID, opts TraverseOptions) []model.Node {
	a := s.hot.snapshot()
	return bfsWalk(a, start, opts,
		func(id model.ID) []model.Edge { return a.outEdges(id) },
		func(e model.Edge) model.ID { return e.To },
	)
}

// BFSReverse walks incoming edges instead of outgoing — the basis for
// "who calls this" / reverse-dependency queries. Each in-edge's To field is
// always the node being walked from, so the neighbor to expand into is the
// edge's From, not its To.
func (s *Store) BFSReverse(start model.ID, opts TraverseOptions) []model.Node {
	a := s.hot.snapshot()
	return bfsWalk(a, start, opts,
		func(id model.ID) []model.Edge { return a.inEdges(id) },
		func(e model.Edge) model.ID { return e.From },
	)
}

func bfsWalk(a *arena, start model.ID, opts TraverseOptions, edgesOf func(model.ID) []model.Edge, nextOf func(model.Edge) model.ID) []model.Node {
	type item struct {
		id    model.ID
		depth int
	}
	visited := map[model.ID]struct{}{start: {}}
	queue := []item{{start, 0}}
	var out []model.Node

	startNode, ok := a.getNode(start)
	if ok && opts.IncludeStart && passes(opts.Predicate, startNode) {
		out = append(out, startNode)
	}

	for len(queue) > 0 {
		if opts.MaxNodes > 0 && len(out) >= opts.MaxNodes {
			break
		}
		cur := queue[0]
		queue = queue[1:]
		if opts.MaxDepth > 0 && cur.depth >= opts.MaxDepth {
			continue
		}
		for _, e := range edgesOf(cur.id) {
			if !opts.edgeAllowed(e.Type) {
				continue
			}
			next := nextOf(e)
			if next.IsZero() {
				continue
			}
			if _, seen := visited[next]; seen {
				continue
			}
			visited[next] = struct{}{}
			n, ok := a.getNode(next)
			if !ok {
				continue
			}
			if passes(opts.Predicate, n) {
				out = append(out, n)
				if opts.MaxNodes > 0 && len(out) >= opts.MaxNodes {
					queue = append(queue, item{next, cur.depth + 1})
					break
				}
			}
			queue = append(queue, item{next, cur.depth + 1})
		}
	}
	return out
}

// DFS walks outward from start depth-first under the same bounds as BFS.
func (s *Store) DFS(start model.ID, opts TraverseOptions) []model.Node {
	a := s.hot.snapshot()
	visited := map[model.ID]struct{}{start: {}}
	var out []model.Node

	if startNode, ok := a.getNode(start); ok && opts.IncludeStart && passes(opts.Predicate, startNode) {
		out = append(out, startNode)
	}

	var walk func(id model.ID, depth int)
	walk = func(id model.ID, depth int) {
		if opts.MaxDepth > 0 && depth >= opts.MaxDepth {
			return
		}
		if opts.MaxNodes > 0 && len(out) >= opts.MaxNodes {
			return
		}
		for _, e := range a.outEdges(id) {
			if e.To.IsZero() {
				continue
			}
			if _, seen := visited[e.To]; seen {
				continue
			}
			visited[e.To] = struct{}{}
			n, ok := a.getNode(e.To)
			if !ok {
				continue
			}
			if passes(opts.Predicate, n) {
				out = append(out, n)
			}
			if opts.MaxNodes > 0 && len(out) >= opts.MaxNodes {
				return
			}
			walk(e.To, depth+1)
		}
	}
	walk(start, 0)
	return out
}

func passes(p Predicate, n model.Node) bool {
	if p == nil {
		return true
	}
	return p(n)
}

// ShortestPath finds an unweighted shortest path via BFS, using (and
// populating) the path cache.
func (s *Store) ShortestPath(from, to model.ID, maxDepth int) (*Path, bool) {
	if cached, ok := s.cache.getPath(from, to, maxDepth); ok {
		return cached, cached != nil
	}
	a := s.hot.snapshot()

	type frame struct {
		id   model.ID
		path []model.ID
		eids []model.ID
	}
	visited := map[model.ID]struct{}{from: {}}
	queue := []frame{{from, []model.ID{from}, nil}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.id == to {
			p := &Path{Nodes: cur.path, Edges: cur.eids, Weight: float64(len(cur.eids))}
			s.cache.putPath(from, to, maxDepth, p)
			return p, true
		}
		if maxDepth > 0 && len(cur.path) > maxDepth {
			continue
		}
		for _, e := range a.outEdges(cur.id) {
			if e.To.IsZero() {
				continue
			}
			if _, seen := visited[e.To]; seen {
				continue
			}
			visited[e.To] = struct{}{}
			queue = append(queue, frame{
				id:   e.To,
				path: append(append([]model.ID(nil), cur.path...), e.To),
				eids: append(append([]model.ID(nil), cur.eids...), e.ID),
			})
		}
	}
	s.cache.putPath(from, to, maxDepth, nil)
	return nil, false
}

// pqItem/priorityQueue back Dijkstra and A*.
type pqItem struct {
	id       model.ID
	priority float64
	index    int
}

type priorityQueue []*pqItem

func (pq priorityQueue) Len() int            { return len(pq) }
func (pq priorityQueue) Less(i, j int) bool  { return pq[i].priority < pq[j].priority }
func (pq priorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index, pq[j].index = i, j
}
func (pq *priorityQueue) Push(x any) {
	item := x.(*pqItem)
	item.index = len(*pq)
	*pq = append(*pq, item)
}
func (pq *priorityQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*pq = old[:n-1]
	return item
}

// DijkstraShortestPath finds the minimum-weight path using each edge's
// Weight (defaulting to model.DefaultEdgeWeight when unset).
func (s *Store) DijkstraShortestPath(from, to model.ID) (*Path, bool) {
	a := s.hot.snapshot()
	dist := map[model.ID]float64{from: 0}
	prevNode := map[model.ID]model.ID{}
	prevEdge := map[model.ID]model.ID{}
	visited := map[model.ID]struct{}{}

	pq := &priorityQueue{{id: from, priority: 0}}
	heap.Init(pq)

	for pq.Len() > 0 {
		cur := heap.Pop(pq).(*pqItem)
		if _, done := visited[cur.id]; done {
			continue
		}
		visited[cur.id] = struct{}{}
		if cur.id == to {
			return reconstructPath(to, from, prevNode, prevEdge, dist[to]), true
		}
		for _, e := range a.outEdges(cur.id) {
			if e.To.IsZero() {
				continue
			}
			w := e.Weight
			if w <= 0 {
				w = model.DefaultEdgeWeight
			}
			nd := dist[cur.id] + w
			if existing, ok := dist[e.To]; !ok || nd < existing {
				dist[e.To] = nd
				prevNode[e.To] = cur.id
				prevEdge[e.To] = e.ID
				heap.Push(pq, &pqItem{id: e.To, priority: nd})
			}
		}
	}
	return nil, false
}

func reconstructPath(to, from model.ID, prevNode map[model.ID]model.ID, prevEdge map[model.ID]model.ID, weight float64) *Path {
	var nodes []model.ID
	var edges []model.ID
	cur := to
	for cur != from {
		nodes = append([]model.ID{cur}, nodes...)
		e, ok := prevEdge[cur]
		if !ok {
			break
		}
		edges = append([]model.ID{e}, edges...)
		cur = prevNode[cur]
	}
	nodes = append([]model.ID{from}, nodes...)
	return &Path{Nodes: nodes, Edges: edges, Weight: weight}
}

// Heuristic estimates remaining cost from a node to the A* goal; it must
// never overestimate the true cost for A* to remain admissible.
type Heuristic func(current, goal model.ID) float64

// AStarShortestPath finds a minimum-weight path using heuristic h to guide
// expansion order.
func (s *Store) AStarShortestPath(from, to model.ID, h Heuristic) (*Path, bool) {
	if h == nil {
		h = func(model.ID, model.ID) float64 { return 0 }
	}
	a := s.hot.snapshot()
	gScore := map[model.ID]float64{from: 0}
	prevNode := map[model.ID]model.ID{}
	prevEdge := map[model.ID]model.ID{}
	visited := map[model.ID]struct{}{}

	pq := &priorityQueue{{id: from, priority: h(from, to)}}
	heap.Init(pq)

	for pq.Len() > 0 {
		cur := heap.Pop(pq).(*pqItem)
		if _, done := visited[cur.id]; done {
			continue
		}
		visited[cur.id] = struct{}{}
		if cur.id == to {
			return reconstructPath(to, from, prevNode, prevEdge, gScore[to]), true
		}
		for _, e := range a.outEdges(cur.id) {
			if e.To.IsZero() {
				continue
			}
			w := e.Weight
			if w <= 0 {
				w = model.DefaultEdgeWeight
			}
			tentative := gScore[cur.id] + w
			if existing, ok := gScore[e.To]; !ok || tentative < existing {
				gScore[e.To] = tentative
				prevNode[e.To] = cur.id
				prevEdge[e.To] = e.ID
				heap.Push(pq, &pqItem{id: e.To, priority: tentative + h(e.To, to)})
			}
		}
	}
	return nil, false
}

// DetectCycles returns one cycle per back edge found by a DFS with a
// recursion stack, restricted to edges of edgeType when edgeType is non-nil.
// It does not enumerate every simple cycle of the graph.
func (s *Store) DetectCycles(edgeType *model.EdgeType) [][]model.ID {
	a := s.hot.snapshot()
	nodes := a.allNodes()

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[model.ID]int, len(nodes))
	var cycles [][]model.ID

	var visit func(id model.ID, stack []model.ID)
	visit = func(id model.ID, stack []model.ID) {
		color[id] = gray
		stack = append(stack, id)
		for _, e := range a.outEdges(id) {
			if edgeType != nil && e.Type != *edgeType {
				continue
			}
			if e.To.IsZero() {
				continue
			}
			switch color[e.To] {
			case white:
				visit(e.To, stack)
			case gray:
				// found the back edge; extract the cycle from the stack
				for i, sid := range stack {
					if sid == e.To {
						cycle := append([]model.ID(nil), stack[i:]...)
						cycles = append(cycles, cycle)
						break
					}
				}
			}
		}
		color[id] = black
	}

	for _, n := range nodes {
		if color[n.ID] == white {
			visit(n.ID, nil)
		}
	}
	return cycles
}

// FindStronglyConnectedComponents runs Tarjan's algorithm and returns every
// SCC with more than one member (single-node SCCs are trivial/uninteresting
// for cycle-style analysis).
func (s *Store) FindStronglyConnectedComponents() [][]model.ID {
	a := s.hot.snapshot()
	nodes := a.allNodes()

	index := 0
	indices := make(map[model.ID]int)
	lowlink := make(map[model.ID]int)
	onStack := make(map[model.ID]bool)
	var stack []model.ID
	var sccs [][]model.ID

	var strongconnect func(v model.ID)
	strongconnect = func(v model.ID) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, e := range a.outEdges(v) {
			if e.To.IsZero() {
				continue
			}
			w := e.To
			if _, seen := indices[w]; !seen {
				strongconnect(w)
				if lowlink[w] < lowlink[v] {
					lowlink[v] = lowlink[w]
				}
			} else if onStack[w] {
				if indices[w] < lowlink[v] {
					lowlink[v] = indices[w]
				}
			}
		}

		if lowlink[v] == indices[v] {
			var comp []model.ID
			for {
				n := len(stack) - 1
				w := stack[n]
				stack = stack[:n]
				onStack[w] = false
				comp = append(comp, w)
				if w == v {
					break
				}
			}
			if len(comp) > 1 {
				sccs = append(sccs, comp)
			}
		}
	}

	for _, n := range nodes {
		if _, seen := indices[n.ID]; !seen {
			strongconnect(n.ID)
		}
	}
	return sccs
}

// CalculateCouplingMetrics computes afferent/efferent coupling and
// instability for every node via Calls/Imports/Uses/References edges.
func (s *Store) CalculateCouplingMetrics() []CouplingMetrics {
	a := s.hot.snapshot()
	nodes := a.allNodes()
	out := make([]CouplingMetrics, 0, len(nodes))

	isCoupling := func(t model.EdgeType) bool {
		return t == model.EdgeCalls || t == model.EdgeImports || t == model.EdgeUses || t == model.EdgeReferences
	}

	for _, n := range nodes {
		ceSet := map[model.ID]struct{}{}
		for _, e := range a.outEdges(n.ID) {
			if isCoupling(e.Type) && e.Resolved() {
				ceSet[e.To] = struct{}{}
			}
		}
		caSet := map[model.ID]struct{}{}
		for _, e := range a.inEdges(n.ID) {
			if isCoupling(e.Type) {
				caSet[e.From] = struct{}{}
			}
		}
		ca, ce := len(caSet), len(ceSet)
		var instability float64
		if ca+ce > 0 {
			instability = float64(ce) / float64(ca+ce)
		}
		out = append(out, CouplingMetrics{NodeID: n.ID, AfferentCoupling: ca, EfferentCoupling: ce, Instability: instability})
	}
	return out
}

// FindComplexityHotspots ranks nodes by risk = complexity * afferent
// coupling, highest first, returning at most limit entries.
func (s *Store) FindComplexityHotspots(limit int) []Hotspot {
	a := s.hot.snapshot()
	coupling := s.CalculateCouplingMetrics()
	caByID := make(map[model.ID]int, len(coupling))
	for _, c := range coupling {
		caByID[c.NodeID] = c.AfferentCoupling
	}

	var hotspots []Hotspot
	for _, n := range a.allNodes() {
		if n.Complexity == nil {
			continue
		}
		ca := caByID[n.ID]
		hotspots = append(hotspots, Hotspot{
			NodeID:     n.ID,
			Complexity: *n.Complexity,
			Risk:       *n.Complexity * float64(ca),
		})
	}

	// simple insertion sort by descending risk over every node that has a
	// complexity value; the result is cut to limit afterwards.
	for i := 1; i < len(hotspots); i++ {
		for j := i; j > 0 && hotspots[j].Risk > hotspots[j-1].Risk; j-- {
			hotspots[j], hotspots[j-1] = hotspots[j-1], hotspots[j]
		}
	}
	if limit > 0 && len(hotspots) > limit {
		hotspots = hotspots[:limit]
	}
	return hotspots
}

// GetHubNodes returns every node whose total (in+out) degree is at least
// minDegree, the "heavily-connected" primitive the agent's architecture
// analysis tool uses.
func (s *Store) GetHubNodes(minDegree int) []model.Node {
	a := s.hot.snapshot()
	var out []model.Node
	for _, n := range a.allNodes() {
		degree := len(a.outEdges(n.ID)) + len(a.inEdges(n.ID))
		if degree >= minDegree {
			out = append(out, n)
		}
	}
	return out
}
