// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: Apache-2.0

package graph

import "github.com/kraklabs/codegraph/pkg/model"

// nodeSlot and edgeSlot are the arena's dense backing storage (spec §9):
// nodes and edges live in contiguous slices addressed by integer handle
// rather than as a heap of pointer-linked objects, so a snapshot copy is a
// flat copy of the slot slices and index maps, not a pointer graph walk.
type nodeHandle int
type edgeHandle int

type nodeSlot struct {
	node model.Node
	live bool
}

type edgeSlot struct {
	edge model.Edge
	live bool
}

// arena owns the dense node/edge storage and the ID-to-handle lookup
// indices. It is immutable once built: the hot layer never mutates an
// arena in place, it builds a new one and atomically swaps the pointer
// (copy-on-write, spec §5.2).
type arena struct {
	nodes    []nodeSlot
	edges    []edgeSlot
	nodeIdx  map[model.ID]nodeHandle
	edgeIdx  map[model.ID]edgeHandle
	outAdj   map[model.ID][]edgeHandle // edges keyed by From
	inAdj    map[model.ID][]edgeHandle // edges keyed by To
}

func newArena() *arena {
	return &arena{
		nodeIdx: make(map[model.ID]nodeHandle),
		edgeIdx: make(map[model.ID]edgeHandle),
		outAdj:  make(map[model.ID][]edgeHandle),
		inAdj:   make(map[model.ID][]edgeHandle),
	}
}

// clone performs a shallow copy-on-write clone: slices and maps get new
// backing storage, but individual model.Node/model.Edge values are copied
// by value (they carry no further indirection worth sharing).
func (a *arena) clone() *arena {
	n := &arena{
		nodes:   append([]nodeSlot(nil), a.nodes...),
		edges:   append([]edgeSlot(nil), a.edges...),
		nodeIdx: make(map[model.ID]nodeHandle, len(a.nodeIdx)),
		edgeIdx: make(map[model.ID]edgeHandle, len(a.edgeIdx)),
		outAdj:  make(map[model.ID][]edgeHandle, len(a.outAdj)),
		inAdj:   make(map[model.ID][]edgeHandle, len(a.inAdj)),
	}
	for k, v := range a.nodeIdx {
		n.nodeIdx[k] = v
	}
	for k, v := range a.edgeIdx {
		n.edgeIdx[k] = v
	}
	for k, v := range a.outAdj {
		n.outAdj[k] = append([]edgeHandle(nil), v...)
	}
	for k, v := range a.inAdj {
		n.inAdj[k] = append([]edgeHandle(nil), v...)
	}
	return n
}

func (a *arena) getNode(id model.ID) (model.Node, bool) {
	h, ok := a.nodeIdx[id]
	if !ok || !a.nodes[h].live {
		return model.Node{}, false
	}
	return a.nodes[h].node, true
}

func (a *arena) getEdge(id model.ID) (model.Edge, bool) {
	h, ok := a.edgeIdx[id]
	if !ok || !a.edges[h].live {
		return model.Edge{}, false
	}
	return a.edges[h].edge, true
}

// putNode inserts or overwrites a node in place (by handle) when it
// already exists, otherwise appends a new slot.
func (a *arena) putNode(n model.Node) {
	if h, ok := a.nodeIdx[n.ID]; ok {
		a.nodes[h] = nodeSlot{node: n, live: true}
		return
	}
	a.nodeIdx[n.ID] = nodeHandle(len(a.nodes))
	a.nodes = append(a.nodes, nodeSlot{node: n, live: true})
}

func (a *arena) deleteNode(id model.ID) {
	h, ok := a.nodeIdx[id]
	if !ok {
		return
	}
	a.nodes[h].live = false
	delete(a.nodeIdx, id)
	// cascading edge removal (SPEC_FULL.md §9 open-question resolution)
	for _, eh := range append([]edgeHandle(nil), a.outAdj[id]...) {
		a.deleteEdge(a.edges[eh].edge.ID)
	}
	for _, eh := range append([]edgeHandle(nil), a.inAdj[id]...) {
		a.deleteEdge(a.edges[eh].edge.ID)
	}
	delete(a.outAdj, id)
	delete(a.inAdj, id)
}

func (a *arena) putEdge(e model.Edge) {
	if h, ok := a.edgeIdx[e.ID]; ok {
		a.edges[h] = edgeSlot{edge: e, live: true}
		return
	}
	h := edgeHandle(len(a.edges))
	a.edgeIdx[e.ID] = h
	a.edges = append(a.edges, edgeSlot{edge: e, live: true})
	a.outAdj[e.From] = append(a.outAdj[e.From], h)
	if !e.To.IsZero() {
		a.inAdj[e.To] = append(a.inAdj[e.To], h)
	}
}

func (a *arena) deleteEdge(id model.ID) {
	h, ok := a.edgeIdx[id]
	if !ok {
		return
	}
	e := a.edges[h].edge
	a.edges[h].live = false
	delete(a.edgeIdx, id)
	a.outAdj[e.From] = removeHandle(a.outAdj[e.From], h)
	if !e.To.IsZero() {
		a.inAdj[e.To] = removeHandle(a.inAdj[e.To], h)
	}
}

func removeHandle(hs []edgeHandle, target edgeHandle) []edgeHandle {
	out := hs[:0]
	for _, h := range hs {
		if h != target {
			out = append(out, h)
		}
	}
	return out
}

func (a *arena) outEdges(id model.ID) []model.Edge {
	hs := a.outAdj[id]
	out := make([]model.Edge, 0, len(hs))
	for _, h := range hs {
		if a.edges[h].live {
			out = append(out, a.edges[h].edge)
		}
	}
	return out
}

func (a *arena) inEdges(id model.ID) []model.Edge {
	hs := a.inAdj[id]
	out := make([]model.Edge, 0, len(hs))
	for _, h := range hs {
		if a.edges[h].live {
			out = append(out, a.edges[h].edge)
		}
	}
	return out
}

func (a *arena) allNodes() []model.Node {
	out := make([]model.Node, 0, len(a.nodeIdx))
	for _, h := range a.nodeIdx {
		out = append(out, a.nodes[h].node)
	}
	return out
}

func (a *arena) allEdges() []model.Edge {
	out := make([]model.Edge, 0, len(a.edgeIdx))
	for _, h := range a.edgeIdx {
		out = append(out, a.edges[h].edge)
	}
	return out
}
