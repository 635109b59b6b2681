// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: Apache-2.0

// Package bootstrap opens and lists CodeGraph projects on disk, adapted
// from the teacher's internal/bootstrap (which opened a CozoDB
// EmbeddedBackend) to open the Graph Store instead.
package bootstrap

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/kraklabs/codegraph/pkg/graph"
)

// ProjectConfig holds configuration for initializing or opening a project.
type ProjectConfig struct {
	// ProjectID is the logical project identifier.
	ProjectID string

	// DataDir is the directory where the Graph Store persists its data.
	// Defaults to ~/.codegraph/data/<project_id>/graph.
	DataDir string
}

// ProjectInfo describes an initialized project.
type ProjectInfo struct {
	ProjectID string
	DataDir   string
}

func defaultDataDir(projectID string) (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(homeDir, ".codegraph", "data", projectID, "graph"), nil
}

// InitProject creates the project's data directory and opens a fresh
// Graph Store, idempotently — calling it again on an existing project is
// safe and just reopens the store.
func InitProject(config ProjectConfig, logger *slog.Logger) (*ProjectInfo, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if config.ProjectID == "" {
		return nil, fmt.Errorf("project_id is required")
	}
	if config.DataDir == "" {
		dir, err := defaultDataDir(config.ProjectID)
		if err != nil {
			return nil, err
		}
		config.DataDir = dir
	}

	logger.Info("bootstrap.project.init.start", "project_id", config.ProjectID, "data_dir", config.DataDir)

	if err := os.MkdirAll(config.DataDir, 0o750); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	g, err := graph.Open(config.DataDir, logger)
	if err != nil {
		return nil, fmt.Errorf("open graph store: %w", err)
	}
	defer func() { _ = g.Close() }()

	logger.Info("bootstrap.project.init.success", "project_id", config.ProjectID, "data_dir", config.DataDir)
	return &ProjectInfo{ProjectID: config.ProjectID, DataDir: config.DataDir}, nil
}

// OpenProject opens an existing project's Graph Store. The caller owns
// the returned Store and must Close it.
func OpenProject(config ProjectConfig, logger *slog.Logger) (*graph.Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if config.ProjectID == "" {
		return nil, fmt.Errorf("project_id is required")
	}
	if config.DataDir == "" {
		dir, err := defaultDataDir(config.ProjectID)
		if err != nil {
			return nil, err
		}
		config.DataDir = dir
	}

	if _, err := os.Stat(config.DataDir); os.IsNotExist(err) {
		return nil, fmt.Errorf("project not found: %s (run 'codegraph init' first)", config.DataDir)
	}

	logger.Debug("bootstrap.project.open", "project_id", config.ProjectID, "data_dir", config.DataDir)
	return graph.Open(config.DataDir, logger)
}

// ListProjects returns the project IDs under the default data directory.
func ListProjects() ([]string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("get home dir: %w", err)
	}
	dataDir := filepath.Join(homeDir, ".codegraph", "data")
	entries, err := os.ReadDir(dataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read data dir: %w", err)
	}

	var projects []string
	for _, entry := range entries {
		if entry.IsDir() {
			projects = append(projects, entry.Name())
		}
	}
	return projects, nil
}
