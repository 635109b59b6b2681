// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/codegraph/pkg/agent"
)

// runAsk executes 'codegraph ask <query>', driving the Agent Orchestrator
// (A) over the current index — the CLI entry point for spec §4.7/§5.7.
func runAsk(args []string, configPath string) {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	analysisType := fs.String("type", string(agent.AnalysisSemanticQA), "Analysis type (code_search, dependency_analysis, call_chain, architecture, api_surface, context_builder, semantic_qa)")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	query := strings.Join(fs.Args(), " ")
	if query == "" {
		fmt.Fprintln(os.Stderr, "Usage: codegraph ask [--type TYPE] <query>")
		os.Exit(1)
	}

	a := openApp(configPath)
	defer a.close()

	v, err := a.vectorStore()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot open vector store: %v\n", err)
		os.Exit(1)
	}
	pipeline := a.embeddingPipeline()
	retriever := a.retriever(v, pipeline)
	toolset := agent.NewToolset(a.graph, retriever)

	provider, err := a.llmProvider()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot build LLM provider: %v\n", err)
		os.Exit(1)
	}
	orch := a.orchestrator(toolset, provider)

	ctx := backgroundContext()
	out, err := orch.Execute(ctx, query, agent.AnalysisType(*analysisType))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if out != nil {
			fmt.Println(out.Answer)
		}
		os.Exit(1)
	}

	fmt.Println(out.Answer)
	if len(out.Citations) > 0 {
		fmt.Println()
		fmt.Println("Citations:")
		for _, c := range out.Citations {
			fmt.Printf("  %s:%d-%d  %s (relevance=%.3f)\n", c.FilePath, c.Line, c.EndLine, c.Name, c.Relevance)
		}
	}
	fmt.Printf("\n(%d steps, %s, status=%s)\n", out.Steps, out.Elapsed, out.Status)
}
