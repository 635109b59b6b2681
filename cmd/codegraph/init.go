// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/codegraph/pkg/bootstrap"
	"github.com/kraklabs/codegraph/pkg/config"
)

// runInit executes 'codegraph init', generalizing the teacher's
// cmd/cie/init.go interactive setup from a hub/edge-cache deployment
// onto CodeGraph's embedded embedding/LLM/vector configuration.
func runInit(args []string) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	force := fs.Bool("force", false, "Overwrite existing configuration")
	nonInteractive := fs.BoolP("y", "y", false, "Non-interactive mode (use defaults)")
	projectID := fs.String("project-id", "", "Project identifier")
	embeddingProvider := fs.String("embedding-provider", "", "Embedding provider (ollama, openai, deterministic)")
	llmURL := fs.String("llm-url", "", "LLM API URL (OpenAI-compatible)")
	llmModel := fs.String("llm-model", "", "LLM model name")
	noHook := fs.Bool("no-hook", false, "Skip git hook installation")
	withHook := fs.Bool("hook", false, "Install git hook without prompting")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot get current directory: %v\n", err)
		os.Exit(1)
	}

	configPath := config.ConfigPath(cwd)
	if _, err := os.Stat(configPath); err == nil && !*force {
		fmt.Fprintf(os.Stderr, "Error: %s already exists. Use --force to overwrite.\n", configPath)
		os.Exit(1)
	}

	pid := *projectID
	if pid == "" {
		pid = filepath.Base(cwd)
	}
	cfg := config.DefaultConfig(pid)
	if *embeddingProvider != "" {
		cfg.Embedding.Provider = *embeddingProvider
	}
	if *llmURL != "" {
		cfg.LLM.Enabled = true
		cfg.LLM.BaseURL = *llmURL
	}
	if *llmModel != "" {
		cfg.LLM.Model = *llmModel
	}

	reader := bufio.NewReader(os.Stdin)
	if !*nonInteractive {
		fmt.Println("CodeGraph Project Configuration")
		fmt.Println("===============================")
		cfg.ProjectID = prompt(reader, "Project ID", cfg.ProjectID)
		fmt.Println()
		fmt.Println("Embedding providers: ollama, openai, deterministic")
		cfg.Embedding.Provider = prompt(reader, "Embedding provider", cfg.Embedding.Provider)
	}

	if err := config.Save(cfg, configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot save configuration: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Created %s\n", configPath)
	addToGitignore(cwd)

	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	dataDir := filepath.Join(home, ".codegraph", "data", cfg.ProjectID, "graph")
	if _, err := bootstrap.InitProject(bootstrap.ProjectConfig{ProjectID: cfg.ProjectID, DataDir: dataDir}, nil); err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot initialize graph store: %v\n", err)
		os.Exit(1)
	}

	if !*noHook {
		shouldInstall := *withHook
		if !*withHook && !*nonInteractive {
			answer := strings.ToLower(strings.TrimSpace(prompt(reader, "Install git hook for auto-indexing? (Y/n)", "y")))
			shouldInstall = answer != "n" && answer != "no"
		} else if *nonInteractive {
			shouldInstall = true
		}
		if shouldInstall {
			if gitDir, err := findGitDir(); err == nil {
				hookPath := filepath.Join(gitDir, "hooks", "post-commit")
				if err := installHook(hookPath, false); err != nil {
					fmt.Fprintf(os.Stderr, "Warning: cannot install git hook: %v\n", err)
				} else {
					fmt.Printf("Git hook installed: %s\n", hookPath)
				}
			}
		}
	}

	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  1. Review and edit .codegraph/project.yaml if needed")
	fmt.Println("  2. Run 'codegraph index' to index your repository")
	fmt.Println("  3. Run 'codegraph status' to verify indexing")
}

func prompt(reader *bufio.Reader, label, defaultValue string) string {
	if defaultValue != "" {
		fmt.Printf("%s [%s]: ", label, defaultValue)
	} else {
		fmt.Printf("%s: ", label)
	}
	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(input)
	if input == "" {
		return defaultValue
	}
	return input
}

func addToGitignore(dir string) {
	gitignorePath := filepath.Join(dir, ".gitignore")
	content, err := os.ReadFile(gitignorePath)
	if err != nil {
		return
	}
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if line == ".codegraph/" || line == ".codegraph" {
			return
		}
	}
	f, err := os.OpenFile(gitignorePath, os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return
	}
	defer func() { _ = f.Close() }()
	if len(content) > 0 && content[len(content)-1] != '\n' {
		_, _ = f.WriteString("\n")
	}
	_, _ = f.WriteString("\n# CodeGraph\n.codegraph/\n")
	fmt.Println("Added .codegraph/ to .gitignore")
}
