// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: Apache-2.0

// Package main implements the codegraph CLI: indexing a repository into
// the Graph/Vector Stores and serving queries over it, either as RPC
// (stdio or HTTP POST /mcp) or one-shot CLI commands.
//
// Usage:
//
//	codegraph init                 Create .codegraph/project.yaml
//	codegraph index                Index the current repository
//	codegraph status [--json]      Show project status
//	codegraph ask <query>          Run the Agent Orchestrator over the index
//	codegraph serve --mcp          Start as MCP server (JSON-RPC over stdio)
//	codegraph serve --http :8080   Start the HTTP POST /mcp server
//	codegraph install-hook         Install a git post-commit hook
//	codegraph completion <shell>   Generate a shell completion script
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/kraklabs/codegraph/pkg/ui"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	var (
		showVersion = flag.Bool("version", false, "Show version and exit")
		configPath  = flag.String("config", "", "Path to .codegraph/project.yaml")
		noColor     = flag.Bool("no-color", false, "Disable colored output")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `CodeGraph - Code Intelligence Platform CLI

Usage:
  codegraph <command> [options]

Commands:
  init          Create .codegraph/project.yaml configuration
  index         Index the current repository
  status        Show project status
  ask           Run the Agent Orchestrator over a natural-language query
  serve         Start the RPC server (stdio JSON-RPC or HTTP POST /mcp)
  install-hook  Install git post-commit hook for auto-indexing
  completion    Generate shell completion script (bash, zsh, fish)

Global Options:
  --config      Path to .codegraph/project.yaml
  --version     Show version and exit

Environment Variables:
  CODEGRAPH_AGENT_TIMEOUT_SECS   Agent step-loop timeout in seconds
  CODEGRAPH_EMBEDDING_PROVIDER   ollama | openai | deterministic
  CODEGRAPH_PERFORMANCE_MODE     balanced | fast | thorough
  CODEGRAPH_ARCH_BOOTSTRAP       1|true sets arch_bootstrap in the config (no command reads it)
  CODEGRAPH_DEBUG                1 for verbose logging

`)
	}
	flag.Parse()
	ui.InitColors(*noColor)

	if *showVersion {
		fmt.Printf("codegraph version %s\ncommit: %s\nbuilt: %s\n", version, commit, date)
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(1)
	}

	command, cmdArgs := args[0], args[1:]
	switch command {
	case "init":
		runInit(cmdArgs)
	case "index":
		runIndex(cmdArgs, *configPath)
	case "status":
		runStatus(cmdArgs, *configPath)
	case "ask":
		runAsk(cmdArgs, *configPath)
	case "serve":
		runServe(cmdArgs, *configPath)
	case "install-hook":
		runInstallHook(cmdArgs)
	case "completion":
		runCompletion(cmdArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		flag.Usage()
		os.Exit(1)
	}
}
