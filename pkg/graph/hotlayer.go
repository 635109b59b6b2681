// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: Apache-2.0

package graph

import (
	"sync/atomic"

	"github.com/kraklabs/codegraph/pkg/model"
)

// hotLayer is the lock-free in-memory front end: readers take an atomic
// snapshot pointer and never block a writer, writers build a new arena by
// cloning the current one, mutating the clone, and swapping the pointer in
// (copy-on-write, spec §5.2). Only one writer may be rebuilding at a time;
// that serialization happens one level up, in Store's commit path.
type hotLayer struct {
	current atomic.Pointer[arena]
}

func newHotLayer() *hotLayer {
	h := &hotLayer{}
	h.current.Store(newArena())
	return h
}

// snapshot returns the arena pointer readers should use for the remainder
// of their operation. It never changes underfoot: once obtained, a caller
// sees a consistent, frozen view even if a writer publishes concurrently.
func (h *hotLayer) snapshot() *arena {
	return h.current.Load()
}

// publish installs a'new arena as the current snapshot. Called only from
// the single-writer commit path.
func (h *hotLayer) publish(a *arena) {
	h.current.Store(a)
}

func (h *hotLayer) getNode(id model.ID) (model.Node, bool) {
	return h.snapshot().getNode(id)
}

func (h *hotLayer) getEdge(id model.ID) (model.Edge, bool) {
	return h.snapshot().getEdge(id)
}

func (h *hotLayer) outEdges(id model.ID) []model.Edge {
	return h.snapshot().outEdges(id)
}

func (h *hotLayer) inEdges(id model.ID) []model.Edge {
	return h.snapshot().inEdges(id)
}
