// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/codegraph/pkg/model"
	"github.com/kraklabs/codegraph/pkg/parser"
	"github.com/kraklabs/codegraph/pkg/ui"
	"github.com/kraklabs/codegraph/pkg/vector"
)

// runIndex executes 'codegraph index': walk the repository with the
// Parser/Extractor (P), persist nodes/edges to the Graph Store (G), embed
// every node's content via the Embedding Engine (E), and add the
// resulting vectors to the Vector Store (V) — the P -> G, E -> V data
// flow spec §2 describes.
func runIndex(args []string, configPath string) {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	quiet := fs.Bool("quiet", false, "Suppress progress output")
	_ = fs.Bool("incremental", false, "Incremental re-index (reserved; full re-index runs today)")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	a := openApp(configPath)
	defer a.close()

	progressCfg := NewProgressConfig(*quiet, false)
	spinner := NewProgressBar(progressCfg, -1, "Parsing")

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: levelFor(a.cfg.Debug)}))
	extractor := parser.NewExtractor(logger, runtime.NumCPU())

	ctx := context.Background()
	result, stats, err := extractor.ExtractDir(ctx, a.cfg.ProjectID, a.repoRoot)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: extraction failed: %v\n", err)
		os.Exit(1)
	}
	if spinner != nil {
		_ = spinner.Finish()
	}
	fmt.Printf("Parsed %d files (%d failed), %d nodes, %d edges\n",
		stats.FilesParsed, stats.FilesFailed, stats.NodesEmitted, stats.EdgesEmitted)

	if err := a.graph.IngestExtraction(ctx, result.Nodes, result.Edges); err != nil {
		fmt.Fprintf(os.Stderr, "Error: graph ingestion failed: %v\n", err)
		os.Exit(1)
	}

	v, err := a.vectorStore()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot open vector store: %v\n", err)
		os.Exit(1)
	}

	pipeline := a.embeddingPipeline()
	bar := NewProgressBar(progressCfg, int64(len(result.Nodes)), "Embedding")

	embeddable := make([]model.Node, 0, len(result.Nodes))
	vectors := make([]vector.Vector, 0, len(result.Nodes))
	for _, n := range result.Nodes {
		if n.Content == "" {
			continue
		}
		vec, err := pipeline.Embed(ctx, n.Content)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: embedding failed for %s: %v\n", n.Name, err)
			continue
		}
		n.HasEmbedding = true
		embeddable = append(embeddable, n)
		vectors = append(vectors, vec)
		if bar != nil {
			_ = bar.Add(1)
		}
	}
	if bar != nil {
		_ = bar.Finish()
	}

	if err := v.AddVectors(embeddable, vectors); err != nil {
		fmt.Fprintf(os.Stderr, "Error: vector indexing failed: %v\n", err)
		os.Exit(1)
	}

	ui.Successf("Indexed %d embeddings into the vector store", len(vectors))
	if len(stats.Errors) > 0 {
		for _, fe := range stats.Errors {
			fmt.Fprintf(os.Stderr, "  %s: %v\n", fe.FilePath, fe.Err)
		}
		ui.Warningf("%d files failed to parse (listed on stderr above)", len(stats.Errors))
	}
}
