// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/kraklabs/codegraph/pkg/agent"
	"github.com/kraklabs/codegraph/pkg/bootstrap"
	"github.com/kraklabs/codegraph/pkg/config"
	"github.com/kraklabs/codegraph/pkg/embedding"
	cgerrors "github.com/kraklabs/codegraph/pkg/errors"
	"github.com/kraklabs/codegraph/pkg/graph"
	"github.com/kraklabs/codegraph/pkg/llm"
	"github.com/kraklabs/codegraph/pkg/model"
	"github.com/kraklabs/codegraph/pkg/retrieval"
	"github.com/kraklabs/codegraph/pkg/vector"
)

// app bundles the stores and config a CLI command needs, opened once and
// closed on exit, generalizing the teacher's per-command "open CozoDB,
// run, close" shape onto the Graph/Vector Store pair.
type app struct {
	cfg      *config.Config
	repoRoot string
	dataDir  string

	graph *graph.Store
}

func resolveConfigPath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot get current directory: %v\n", err)
		os.Exit(1)
	}
	return config.ConfigPath(cwd)
}

func openApp(configPath string) *app {
	path := resolveConfigPath(configPath)
	cfg, err := config.Load(path)
	if err != nil {
		cgerrors.FatalError(cgerrors.NewConfigError(
			"Cannot load codegraph configuration",
			err.Error(),
			"Run 'codegraph init' to create .codegraph/project.yaml",
			err,
		), false)
	}
	repoRoot := filepath.Dir(filepath.Dir(path)) // .codegraph/project.yaml -> repo root

	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	dataDir := filepath.Join(home, ".codegraph", "data", cfg.ProjectID)

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: levelFor(cfg.Debug),
	}))

	g, err := bootstrap.OpenProject(bootstrap.ProjectConfig{
		ProjectID: cfg.ProjectID,
		DataDir:   filepath.Join(dataDir, "graph"),
	}, logger)
	if err != nil {
		cgerrors.FatalError(cgerrors.NewGraphError(
			"Cannot open the graph store",
			err.Error(),
			"Run 'codegraph init' and 'codegraph index' first",
			err,
		), false)
	}

	return &app{cfg: cfg, repoRoot: repoRoot, dataDir: dataDir, graph: g}
}

func levelFor(debug bool) slog.Level {
	if debug {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

func (a *app) close() {
	_ = a.graph.Close()
}

// embeddingPipeline builds the Embedding Engine pipeline named by cfg,
// generalizing the teacher's init.go embedding-provider selection
// ("ollama, nomic, mock") to the Embedding Engine's provider set.
func (a *app) embeddingPipeline() *embedding.Pipeline {
	dim := a.cfg.Embedding.Dim
	if dim <= 0 {
		dim = 768
	}
	var providers []embedding.Provider
	switch a.cfg.Embedding.Provider {
	case "openai":
		providers = append(providers, embedding.NewOpenAIEmbeddingProvider(a.cfg.Embedding.BaseURL, a.cfg.Embedding.APIKey, a.cfg.Embedding.Model, dim))
	case "deterministic":
		providers = append(providers, embedding.NewDeterministicProvider(dim))
	default:
		providers = append(providers, embedding.NewOllamaEmbeddingProvider(a.cfg.Embedding.BaseURL, a.cfg.Embedding.Model, dim))
		providers = append(providers, embedding.NewDeterministicProvider(dim)) // fallback if Ollama is unreachable
	}
	return embedding.NewPipeline(providers, embedding.DefaultRetryConfig())
}

func (a *app) vectorStore() (*vector.Store, error) {
	vcfg := vector.DefaultStoreConfig(filepath.Join(a.dataDir, "vector"))
	switch a.cfg.Vector.ShardBy {
	case "top_dir":
		vcfg.ShardBy = vector.ByTopDir
	case "none":
		vcfg.ShardBy = func(n model.Node) string { return "main" }
	default:
		vcfg.ShardBy = vector.ByLanguage
	}
	switch a.cfg.Vector.IndexKind {
	case "exact":
		vcfg.IndexKind = vector.IndexExact
	case "ivf":
		vcfg.IndexKind = vector.IndexIVF
	default:
		vcfg.IndexKind = vector.IndexHNSW
	}
	if a.cfg.Vector.CacheMB > 0 {
		vcfg.CacheBytes = int64(a.cfg.Vector.CacheMB) * 1024 * 1024
	}
	return vector.NewStore(vcfg)
}

func (a *app) retriever(v *vector.Store, pipeline *embedding.Pipeline) *retrieval.Retriever {
	return retrieval.New(a.graph, v, pipeline, retrieval.DefaultRetrievalConfig())
}

func (a *app) llmProvider() (llm.Provider, error) {
	if !a.cfg.LLM.Enabled {
		return llm.NewProvider(llm.ProviderConfig{Type: "mock"})
	}
	return llm.NewProvider(llm.ProviderConfig{
		Type:         a.cfg.LLM.Provider,
		BaseURL:      a.cfg.LLM.BaseURL,
		APIKey:       a.cfg.LLM.APIKey,
		DefaultModel: a.cfg.LLM.Model,
		Timeout:      60 * time.Second,
	})
}

func (a *app) orchestrator(toolset *agent.Toolset, provider llm.Provider) *agent.Orchestrator {
	acfg := agent.DefaultConfig()
	if a.cfg.Agent.TimeoutSeconds >= 0 {
		acfg.TimeoutSeconds = a.cfg.Agent.TimeoutSeconds
	}
	acfg.Model = a.cfg.LLM.Model
	return agent.New(provider, toolset, acfg)
}

func backgroundContext() context.Context {
	return context.Background()
}
