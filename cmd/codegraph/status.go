// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/codegraph/pkg/output"
	"github.com/kraklabs/codegraph/pkg/ui"
)

// runStatus executes 'codegraph status', adapted from the teacher's
// cmd/cie/status.go project-summary command.
func runStatus(args []string, configPath string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	jsonOut := fs.Bool("json", false, "Output as JSON")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	a := openApp(configPath)
	defer a.close()

	nodes := a.graph.AllNodes()
	edges := a.graph.AllEdges()

	byLang := make(map[string]int)
	for _, n := range nodes {
		byLang[string(n.Language)]++
	}

	if *jsonOut {
		_ = output.JSON(map[string]interface{}{
			"project_id":  a.cfg.ProjectID,
			"node_count":  len(nodes),
			"edge_count":  len(edges),
			"by_language": byLang,
			"llm_enabled": a.cfg.LLM.Enabled,
			"embedding":   a.cfg.Embedding.Provider,
			"index_kind":  a.cfg.Vector.IndexKind,
		})
		return
	}

	ui.Header("CodeGraph Project Status")
	fmt.Printf("%s %s\n", ui.Label("Project:"), a.cfg.ProjectID)
	fmt.Printf("%s %s\n", ui.Label("Nodes:  "), ui.CountText(len(nodes)))
	fmt.Printf("%s %s\n", ui.Label("Edges:  "), ui.CountText(len(edges)))
	fmt.Println("By language:")
	for lang, count := range byLang {
		fmt.Printf("  %-12s %s\n", lang, ui.CountText(count))
	}
	fmt.Printf("Embedding provider: %s\n", a.cfg.Embedding.Provider)
	fmt.Printf("Vector index kind:  %s\n", a.cfg.Vector.IndexKind)
	fmt.Printf("Agent LLM enabled:  %v\n", a.cfg.LLM.Enabled)
}
