// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"net/http"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/codegraph/pkg/rpc"
)

// runServe executes 'codegraph serve', generalizing the teacher's
// `cie --mcp` stdio dispatch into the two transports spec §6.1 names:
// stdio JSON-RPC (--mcp) and HTTP POST /mcp (--http).
func runServe(args []string, configPath string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	mcpMode := fs.Bool("mcp", false, "Serve JSON-RPC over stdio")
	httpAddr := fs.String("http", "", "Serve HTTP POST /mcp on this address, e.g. :8080")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if !*mcpMode && *httpAddr == "" {
		fmt.Fprintln(os.Stderr, "Usage: codegraph serve --mcp | --http :8080")
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
	dispatcher := rpc.NewDispatcher(a.graph, retriever, a.repoRoot)
	server := rpc.NewServer(dispatcher.Methods())

	if *mcpMode {
		ctx := backgroundContext()
		if err := server.ServeStdio(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error: stdio server stopped: %v\n", err)
			os.Exit(1)
		}
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/mcp", server)
	fmt.Printf("codegraph RPC server listening on %s (POST /mcp)\n", *httpAddr)
	if err := http.ListenAndServe(*httpAddr, mux); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
