// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".codegraph", "project.yaml")

	cfg := DefaultConfig("demo")
	cfg.Embedding.Provider = "deterministic"
	require.NoError(t, Save(cfg, path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "demo", loaded.ProjectID)
	assert.Equal(t, "deterministic", loaded.Embedding.Provider)
	assert.Equal(t, "hnsw", loaded.Vector.IndexKind)
}

func TestApplyEnvOverridesAgentTimeoutAndProvider(t *testing.T) {
	cfg := DefaultConfig("demo")
	environ := func() []string {
		return []string{
			"CODEGRAPH_AGENT_TIMEOUT_SECS=60",
			"CODEGRAPH_EMBEDDING_PROVIDER=openai",
			"CODEGRAPH_DEBUG=true",
			"OPENAI_API_KEY=sk-test",
		}
	}
	cfg.ApplyEnv(environ)
	assert.Equal(t, 60, cfg.Agent.TimeoutSeconds)
	assert.Equal(t, "openai", cfg.Embedding.Provider)
	assert.True(t, cfg.Debug)
	assert.Equal(t, "sk-test", cfg.Embedding.APIKey)
}

func TestValidateRejectsUnsupportedProvider(t *testing.T) {
	cfg := DefaultConfig("demo")
	cfg.Embedding.Provider = "carrier-pigeon"
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsMissingProjectID(t *testing.T) {
	cfg := DefaultConfig("")
	assert.Error(t, cfg.Validate())
}
