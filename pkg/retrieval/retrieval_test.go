// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: Apache-2.0

package retrieval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kraklabs/codegraph/pkg/embedding"
	"github.com/kraklabs/codegraph/pkg/graph"
	"github.com/kraklabs/codegraph/pkg/model"
	"github.com/kraklabs/codegraph/pkg/vector"
)

func setupRetriever(t *testing.T) (*Retriever, *graph.Store, *vector.Store) {
	t.Helper()
	g, err := graph.Open(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = g.Close() })

	vcfg := vector.DefaultStoreConfig(t.TempDir())
	vcfg.IndexKind = vector.IndexExact
	v, err := vector.NewStore(vcfg)
	require.NoError(t, err)

	provider := embedding.NewDeterministicProvider(16)
	pipeline := embedding.NewPipeline([]embedding.Provider{provider}, embedding.DefaultRetryConfig())

	r := New(g, v, pipeline, DefaultRetrievalConfig())
	return r, g, v
}

func mkNode(name string, kind model.Kind, path string, content string) model.Node {
	return model.Node{
		ID:       model.NewNodeID("proj", name, path, 0),
		Name:     name,
		Kind:     kind,
		Language: model.LangGo,
		Location: model.Location{FilePath: path, StartLine: 1, EndLine: 5},
		Content:  content,
	}
}

func TestRetriever_KeywordPrefetchFindsExactNameMatch(t *testing.T) {
	r, g, v := setupRetriever(t)
	ctx := context.Background()

	target := mkNode("ParseManifest", model.KindFunction, "a/parse.go", "parses a manifest file")
	other := mkNode("WriteLog", model.KindFunction, "b/log.go", "writes a log line")
	require.NoError(t, g.PutNode(ctx, target))
	require.NoError(t, g.PutNode(ctx, other))

	embed := embedding.NewDeterministicProvider(16)
	tv, err := embed.Embed(ctx, target.Content)
	require.NoError(t, err)
	ov, err := embed.Embed(ctx, other.Content)
	require.NoError(t, err)
	require.NoError(t, v.AddVectors([]model.Node{target, other}, []vector.Vector{tv, ov}))

	results, err := r.Retrieve(ctx, "ParseManifest manifest")
	require.NoError(t, err)
	require.NotEmpty(t, results)
	found := false
	for _, res := range results {
		if res.NodeID == target.ID {
			found = true
		}
	}
	require.True(t, found, "expected keyword-matched node to appear in ranked results")
}

func TestRetriever_NeighborExpansionPullsInConnectedNode(t *testing.T) {
	r, g, v := setupRetriever(t)
	ctx := context.Background()

	seed := mkNode("Handler", model.KindFunction, "a/handler.go", "handles requests")
	neighbor := mkNode("helperUtil", model.KindFunction, "a/util.go", "unrelated helper text")
	require.NoError(t, g.PutNode(ctx, seed))
	require.NoError(t, g.PutNode(ctx, neighbor))
	require.NoError(t, g.PutEdge(ctx, model.Edge{
		ID:   model.NewEdgeID(seed.ID, neighbor.ID.String(), model.EdgeCalls, "a/handler.go", 0),
		From: seed.ID,
		To:   neighbor.ID,
		Type: model.EdgeCalls,
	}))

	embed := embedding.NewDeterministicProvider(16)
	sv, _ := embed.Embed(ctx, seed.Content)
	nv, _ := embed.Embed(ctx, neighbor.Content)
	require.NoError(t, v.AddVectors([]model.Node{seed, neighbor}, []vector.Vector{sv, nv}))

	results, err := r.Retrieve(ctx, "Handler handles requests")
	require.NoError(t, err)

	found := false
	for _, res := range results {
		if res.NodeID == neighbor.ID {
			found = true
		}
	}
	require.True(t, found, "expected 1-hop neighbor of a top hit to be pulled into results")
}

func TestExtractKeywords_DropsStopwordsAndCaps(t *testing.T) {
	kws := extractKeywords("how does the ParseManifest function work in this repo", 3)
	require.Len(t, kws, 3)
	require.Equal(t, []string{"parsemanifest", "function", "work"}, kws)
}
