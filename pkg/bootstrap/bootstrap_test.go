// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: Apache-2.0

package bootstrap

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitProjectThenOpenProject(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "graph")

	info, err := InitProject(ProjectConfig{ProjectID: "demo", DataDir: dir}, nil)
	require.NoError(t, err)
	assert.Equal(t, "demo", info.ProjectID)
	assert.Equal(t, dir, info.DataDir)

	g, err := OpenProject(ProjectConfig{ProjectID: "demo", DataDir: dir}, nil)
	require.NoError(t, err)
	defer func() { _ = g.Close() }()
}

func TestOpenProjectMissingReturnsError(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "does-not-exist")
	_, err := OpenProject(ProjectConfig{ProjectID: "demo", DataDir: dir}, nil)
	require.Error(t, err)
}

func TestInitProjectRequiresProjectID(t *testing.T) {
	_, err := InitProject(ProjectConfig{DataDir: t.TempDir()}, nil)
	require.Error(t, err)
}
