// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: Apache-2.0

package graph

import (
	"fmt"
	"sync"

	"github.com/kraklabs/codegraph/pkg/model"
)

// pathKey identifies a cached shortest-path lookup.
type pathKey struct {
	from, to model.ID
	maxDepth int
}

// queryCache holds the neighbor and path caches behind a single mutex that
// every read and write takes; entries are added to the maps in place and
// invalidation replaces both maps. The path cache uses conservative full
// invalidation on any edge write since a single edge change can alter
// arbitrarily many cached paths.
type queryCache struct {
	mu        sync.Mutex
	neighbors map[model.ID][]model.ID
	paths     map[pathKey]*Path
}

func newQueryCache() *queryCache {
	return &queryCache{
		neighbors: make(map[model.ID][]model.ID),
		paths:     make(map[pathKey]*Path),
	}
}

func (c *queryCache) getNeighbors(id model.ID) ([]model.ID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.neighbors[id]
	return v, ok
}

func (c *queryCache) putNeighbors(id model.ID, neighbors []model.ID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.neighbors[id] = neighbors
}

func (c *queryCache) getPath(from, to model.ID, maxDepth int) (*Path, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.paths[pathKey{from, to, maxDepth}]
	return p, ok
}

func (c *queryCache) putPath(from, to model.ID, maxDepth int, p *Path) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paths[pathKey{from, to, maxDepth}] = p
}

// invalidateAll drops both caches wholesale. Called after every committed
// write; the hot layer already rebuilds on every commit so this is cheap
// relative to the arena clone it rides alongside.
func (c *queryCache) invalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.neighbors = make(map[model.ID][]model.ID)
	c.paths = make(map[pathKey]*Path)
}

func (k pathKey) String() string {
	return fmt.Sprintf("%s->%s@%d", k.from, k.to, k.maxDepth)
}
