// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: Apache-2.0

package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/codegraph/pkg/model"
)

// chain builds A -> B -> C -> D, all Calls edges, and returns the nodes.
func buildChain(t *testing.T, s *Store) []model.Node {
	t.Helper()
	names := []string{"A", "B", "C", "D"}
	nodes := make([]model.Node, len(names))
	for i, nm := range names {
		nodes[i] = mkNode(t, nm)
		require.NoError(t, s.PutNode(context.Background(), nodes[i]))
	}
	for i := 0; i < len(nodes)-1; i++ {
		e := model.Edge{
			ID:   model.NewEdgeID(nodes[i].ID, nodes[i+1].ID.String(), model.EdgeCalls, "f.go", i),
			From: nodes[i].ID,
			To:   nodes[i+1].ID,
			Type: model.EdgeCalls,
		}
		require.NoError(t, s.PutEdge(context.Background(), e))
	}
	return nodes
}

func TestBFS_RespectsMaxDepth(t *testing.T) {
	s := newTestStore(t)
	nodes := buildChain(t, s)

	got := s.BFS(nodes[0].ID, TraverseOptions{MaxDepth: 1})
	assert.Len(t, got, 1)
	assert.Equal(t, nodes[1].Name, got[0].Name)
}

func TestShortestPath(t *testing.T) {
	s := newTestStore(t)
	nodes := buildChain(t, s)

	p, ok := s.ShortestPath(nodes[0].ID, nodes[3].ID, 10)
	require.True(t, ok)
	assert.Len(t, p.Nodes, 4)
	assert.Len(t, p.Edges, 3)
}

func TestDijkstraShortestPath(t *testing.T) {
	s := newTestStore(t)
	nodes := buildChain(t, s)

	p, ok := s.DijkstraShortestPath(nodes[0].ID, nodes[3].ID)
	require.True(t, ok)
	assert.Equal(t, nodes[3].ID, p.Nodes[len(p.Nodes)-1])
	assert.Equal(t, float64(3), p.Weight)
}

func TestAStarShortestPath_ZeroHeuristicMatchesDijkstra(t *testing.T) {
	s := newTestStore(t)
	nodes := buildChain(t, s)

	p, ok := s.AStarShortestPath(nodes[0].ID, nodes[3].ID, nil)
	require.True(t, ok)
	assert.Equal(t, float64(3), p.Weight)
}

func TestDetectCycles(t *testing.T) {
	s := newTestStore(t)
	nodes := buildChain(t, s)
	// close the chain D -> A to introduce a cycle
	back := model.Edge{
		ID:   model.NewEdgeID(nodes[3].ID, nodes[0].ID.String(), model.EdgeCalls, "f.go", 99),
		From: nodes[3].ID,
		To:   nodes[0].ID,
		Type: model.EdgeCalls,
	}
	require.NoError(t, s.PutEdge(context.Background(), back))

	cycles := s.DetectCycles(nil)
	assert.NotEmpty(t, cycles)
}

func TestFindStronglyConnectedComponents(t *testing.T) {
	s := newTestStore(t)
	nodes := buildChain(t, s)
	back := model.Edge{
		ID:   model.NewEdgeID(nodes[3].ID, nodes[0].ID.String(), model.EdgeCalls, "f.go", 99),
		From: nodes[3].ID,
		To:   nodes[0].ID,
		Type: model.EdgeCalls,
	}
	require.NoError(t, s.PutEdge(context.Background(), back))

	sccs := s.FindStronglyConnectedComponents()
	require.Len(t, sccs, 1)
	assert.Len(t, sccs[0], 4)
}

func TestCalculateCouplingMetrics(t *testing.T) {
	s := newTestStore(t)
	nodes := buildChain(t, s)

	metrics := s.CalculateCouplingMetrics()
	byID := map[model.ID]CouplingMetrics{}
	for _, m := range metrics {
		byID[m.NodeID] = m
	}
	// B has exactly one caller (A) and one callee (C).
	b := byID[nodes[1].ID]
	assert.Equal(t, 1, b.AfferentCoupling)
	assert.Equal(t, 1, b.EfferentCoupling)
}

func TestGetHubNodes(t *testing.T) {
	s := newTestStore(t)
	nodes := buildChain(t, s)

	hubs := s.GetHubNodes(2)
	var names []string
	for _, h := range hubs {
		names = append(names, h.Name)
	}
	assert.Contains(t, names, "B")
	assert.Contains(t, names, "C")
	assert.NotContains(t, names, "A")
}
