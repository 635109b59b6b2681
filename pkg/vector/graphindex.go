// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: Apache-2.0

package vector

import (
	"context"
	"fmt"
	"math"

	"github.com/coder/hnsw"
)

// GraphIndexConfig parameterizes the HNSW graph: M (max neighbors per
// node) and EfSearch (candidate-list size while querying — the
// accuracy/latency knob callers tune per request volume). EfConstruction
// (candidate-list size while building) is carried in the config but
// NewGraphIndex does not pass it to the graph.
type GraphIndexConfig struct {
	M              int
	EfConstruction int
	EfSearch       int
}

func DefaultGraphIndexConfig() GraphIndexConfig {
	return GraphIndexConfig{M: 16, EfConstruction: 200, EfSearch: 64}
}

// GraphIndex wraps github.com/coder/hnsw's in-memory approximate nearest
// neighbor graph: sub-linear search at the cost of being approximate and
// needing the whole graph resident in memory.
type GraphIndex struct {
	cfg   GraphIndexConfig
	graph *hnsw.Graph[uint64]
	size  int
}

func NewGraphIndex(cfg GraphIndexConfig) *GraphIndex {
	g := hnsw.NewGraph[uint64]()
	g.M = cfg.M
	g.Ml = 1 / math.Log(float64(cfg.M))
	g.EfSearch = cfg.EfSearch
	return &GraphIndex{cfg: cfg, graph: g}
}

func (g *GraphIndex) Add(id uint64, v Vector) error {
	g.graph.Add(hnsw.MakeNode(id, v))
	g.size++
	return nil
}

func (g *GraphIndex) Remove(id uint64) error {
	g.graph.Delete(id)
	g.size--
	return nil
}

func (g *GraphIndex) Len() int { return g.size }

func (g *GraphIndex) Search(_ context.Context, q Vector, k int) ([]ScoredID, error) {
	nodes, err := g.graph.Search(q, k)
	if err != nil {
		return nil, fmt.Errorf("vector: hnsw search: %w", err)
	}
	out := make([]ScoredID, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, ScoredID{LocalID: n.Key, Score: cosine(q, n.Value)})
	}
	return out, nil
}
