// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/codegraph/pkg/embedding"
	"github.com/kraklabs/codegraph/pkg/graph"
	"github.com/kraklabs/codegraph/pkg/llm"
	"github.com/kraklabs/codegraph/pkg/model"
	"github.com/kraklabs/codegraph/pkg/retrieval"
	"github.com/kraklabs/codegraph/pkg/vector"
)

func setupOrchestrator(t *testing.T, chatFunc func(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error)) (*Orchestrator, *graph.Store) {
	t.Helper()
	g, err := graph.Open(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = g.Close() })

	n := model.Node{
		ID:       model.NewNodeID("proj", "ParseManifest", "a/parse.go", 0),
		Name:     "ParseManifest",
		Kind:     model.KindFunction,
		Language: model.LangGo,
		Location: model.Location{FilePath: "a/parse.go", StartLine: 1, EndLine: 10},
		Content:  "func ParseManifest() error { return nil }",
	}
	require.NoError(t, g.PutNode(context.Background(), n))

	vcfg := vector.DefaultStoreConfig(t.TempDir())
	vcfg.IndexKind = vector.IndexExact
	v, err := vector.NewStore(vcfg)
	require.NoError(t, err)

	provider := embedding.NewDeterministicProvider(16)
	pipeline := embedding.NewPipeline([]embedding.Provider{provider}, embedding.DefaultRetryConfig())
	ev, err := pipeline.Embed(context.Background(), n.Content)
	require.NoError(t, err)
	require.NoError(t, v.AddVectors([]model.Node{n}, []vector.Vector{ev}))

	retriever := retrieval.New(g, v, pipeline, retrieval.DefaultRetrievalConfig())
	tools := NewToolset(g, retriever)

	mock := &llm.MockProvider{ChatFunc: chatFunc}
	orch := New(mock, tools, Config{ContextWindowTokens: 16_000, TimeoutSeconds: 30})
	return orch, g
}

func TestOrchestrator_ExecuteReturnsAnswerAfterToolCall(t *testing.T) {
	step := 0
	chatFunc := func(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
		step++
		if step == 1 {
			return &llm.ChatResponse{Message: llm.Message{
				Role:    "assistant",
				Content: `TOOL: find_nodes_by_name {"name": "ParseManifest"}`,
			}}, nil
		}
		return &llm.ChatResponse{Message: llm.Message{
			Role:    "assistant",
			Content: "ANSWER: ParseManifest is a function in a/parse.go",
		}}, nil
	}

	orch, _ := setupOrchestrator(t, chatFunc)
	out, err := orch.Execute(context.Background(), "what is ParseManifest", AnalysisCodeSearch)
	require.NoError(t, err)
	assert.Equal(t, "ok", out.Status)
	assert.Contains(t, out.Answer, "ParseManifest")
	assert.NotEmpty(t, out.Citations)
}

func TestOrchestrator_RemapsContextOverflowError(t *testing.T) {
	chatFunc := func(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
		return nil, assertErr("context_length_exceeded: too many input tokens")
	}

	orch, _ := setupOrchestrator(t, chatFunc)
	out, err := orch.Execute(context.Background(), "anything", AnalysisSearch)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrContextOverflow)
	assert.Equal(t, "context_overflow", out.Status)
}

func TestMaxSteps_ClampsAtTen(t *testing.T) {
	assert.Equal(t, 10, MaxSteps(Massive, AnalysisArchitecture))
	assert.LessOrEqual(t, MaxSteps(Small, AnalysisTrace), 10)
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
