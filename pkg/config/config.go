// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: Apache-2.0

// Package config loads and validates a project's .codegraph/project.yaml,
// generalizing the teacher's cmd/cie/init.go Config shape (ProjectID,
// CIE{EdgeCache,PrimaryHub}, Embedding{...}, LLM{...}) from a
// hub/edge-cache deployment to CodeGraph's embedded pipeline, and wires
// the teacher's unused gopkg.in/yaml.v3 dependency to an actual loader.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ConfigDir is the hidden project-scoped directory spec §6.2 stores
// everything under.
func ConfigDir(projectRoot string) string {
	return filepath.Join(projectRoot, ".codegraph")
}

func ConfigPath(projectRoot string) string {
	return filepath.Join(ConfigDir(projectRoot), "project.yaml")
}

// EmbeddingConfig selects and parameterizes the Embedding Engine provider.
type EmbeddingConfig struct {
	Provider string `yaml:"provider"` // ollama, openai, deterministic
	BaseURL  string `yaml:"base_url,omitempty"`
	Model    string `yaml:"model,omitempty"`
	APIKey   string `yaml:"api_key,omitempty"`
	Dim      int    `yaml:"dim,omitempty"`
}

// LLMConfig parameterizes the Agent Orchestrator's chat provider.
type LLMConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Provider  string `yaml:"provider,omitempty"` // ollama, openai, anthropic, mock
	BaseURL   string `yaml:"base_url,omitempty"`
	Model     string `yaml:"model,omitempty"`
	APIKey    string `yaml:"api_key,omitempty"`
	MaxTokens int    `yaml:"max_tokens,omitempty"`
}

// VectorConfig parameterizes shard layout and quantization precision.
type VectorConfig struct {
	ShardBy   string `yaml:"shard_by,omitempty"` // language, top_dir, none
	IndexKind string `yaml:"index_kind,omitempty"` // exact, ivf, hnsw
	Precision string `yaml:"precision,omitempty"`  // fp32, fp16, int8, int4
	CacheMB   int    `yaml:"cache_mb,omitempty"`
}

// AgentConfig parameterizes the Agent Orchestrator's step/time budgets.
type AgentConfig struct {
	TimeoutSeconds int `yaml:"timeout_seconds,omitempty"`
}

// Config is the project.yaml document shape.
type Config struct {
	ProjectID string `yaml:"project_id"`

	PerformanceMode string `yaml:"performance_mode,omitempty"` // balanced, fast, thorough
	ArchBootstrap   bool   `yaml:"arch_bootstrap,omitempty"`
	Debug           bool   `yaml:"debug,omitempty"`

	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	Vector    VectorConfig    `yaml:"vector"`
	Agent     AgentConfig     `yaml:"agent"`
}

// DefaultConfig returns a Config with the teacher's init.go defaults
// re-pointed at CodeGraph's local embedding/LLM/vector stack.
func DefaultConfig(projectID string) *Config {
	return &Config{
		ProjectID:       projectID,
		PerformanceMode: "balanced",
		Embedding: EmbeddingConfig{
			Provider: "ollama",
			BaseURL:  "http://localhost:11434",
			Model:    "nomic-embed-text",
		},
		LLM: LLMConfig{
			Enabled: false,
		},
		Vector: VectorConfig{
			ShardBy:   "language",
			IndexKind: "hnsw",
			Precision: "fp32",
			CacheMB:   256,
		},
		Agent: AgentConfig{
			TimeoutSeconds: 9000,
		},
	}
}

// Load reads and parses project.yaml, then applies environment overrides
// per spec §6.3.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg := DefaultConfig("")
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.ApplyEnv(os.Environ)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides config fields from CODEGRAPH_* environment
// variables and provider API keys, per spec §6.3. environ is injectable
// for tests.
func (c *Config) ApplyEnv(environ func() []string) {
	lookup := envLookup(environ())

	if v, ok := lookup["CODEGRAPH_AGENT_TIMEOUT_SECS"]; ok {
		if secs, err := strconv.Atoi(v); err == nil {
			c.Agent.TimeoutSeconds = secs
		}
	}
	if v, ok := lookup["CODEGRAPH_EMBEDDING_PROVIDER"]; ok && v != "" {
		c.Embedding.Provider = v
	}
	if v, ok := lookup["CODEGRAPH_PERFORMANCE_MODE"]; ok && v != "" {
		c.PerformanceMode = v
	}
	if v, ok := lookup["CODEGRAPH_ARCH_BOOTSTRAP"]; ok {
		c.ArchBootstrap = v == "1" || v == "true"
	}
	if v, ok := lookup["CODEGRAPH_DEBUG"]; ok {
		c.Debug = v == "1" || v == "true"
	}

	switch c.Embedding.Provider {
	case "openai":
		if v, ok := lookup["OPENAI_API_KEY"]; ok {
			c.Embedding.APIKey = v
		}
	case "ollama":
		if v, ok := lookup["OLLAMA_HOST"]; ok {
			c.Embedding.BaseURL = v
		}
		if v, ok := lookup["OLLAMA_EMBED_MODEL"]; ok {
			c.Embedding.Model = v
		}
	}
	switch c.LLM.Provider {
	case "openai":
		if v, ok := lookup["OPENAI_API_KEY"]; ok {
			c.LLM.APIKey = v
		}
	case "anthropic":
		if v, ok := lookup["ANTHROPIC_API_KEY"]; ok {
			c.LLM.APIKey = v
		}
	}
}

func envLookup(environ []string) map[string]string {
	m := make(map[string]string, len(environ))
	for _, kv := range environ {
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				m[kv[:i]] = kv[i+1:]
				break
			}
		}
	}
	return m
}

// Validate rejects configs missing required fields or naming an
// unsupported provider/shard/index kind.
func (c *Config) Validate() error {
	if c.ProjectID == "" {
		return fmt.Errorf("config: project_id is required")
	}
	switch c.Embedding.Provider {
	case "ollama", "openai", "deterministic":
	default:
		return fmt.Errorf("config: unsupported embedding provider %q", c.Embedding.Provider)
	}
	if c.LLM.Enabled {
		switch c.LLM.Provider {
		case "ollama", "openai", "anthropic", "mock", "":
		default:
			return fmt.Errorf("config: unsupported llm provider %q", c.LLM.Provider)
		}
	}
	switch c.Vector.ShardBy {
	case "", "language", "top_dir", "none":
	default:
		return fmt.Errorf("config: unsupported vector shard_by %q", c.Vector.ShardBy)
	}
	switch c.Vector.IndexKind {
	case "", "exact", "ivf", "hnsw":
	default:
		return fmt.Errorf("config: unsupported vector index_kind %q", c.Vector.IndexKind)
	}
	return nil
}

// Save writes cfg as YAML to path, creating the parent directory if
// needed, mirroring the teacher's SaveConfig behavior.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("config: mkdir %s: %w", filepath.Dir(path), err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}
