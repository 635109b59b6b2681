// Copyright 2025 KrakLabs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// DefaultProvider creates a provider from environment variables.
// Checks in order: OLLAMA_HOST, OPENAI_API_KEY, ANTHROPIC_API_KEY
// Falls back to mock if nothing is configured.
func DefaultProvider() (Provider, error) {
	// Check for Ollama first (local, free)
	if os.Getenv("OLLAMA_HOST") != "" || os.Getenv("OLLAMA_BASE_URL") != "" || os.Getenv("OLLAMA_MODEL") != "" {
		return NewProvider(ProviderConfig{Type: "ollama"})
	}

	// Check for OpenAI
	if os.Getenv("OPENAI_API_KEY") != "" {
		return NewProvider(ProviderConfig{Type: "openai"})
	}

	// Check for Anthropic
	if os.Getenv("ANTHROPIC_API_KEY") != "" {
		return NewProvider(ProviderConfig{Type: "anthropic"})
	}

	// Default to mock for development
	return NewProvider(ProviderConfig{Type: "mock"})
}

// ProviderFromEnv creates a provider from a specific environment variable.
// Example: LLM_PROVIDER=ollama will use Ollama.
func ProviderFromEnv(envVar string) (Provider, error) {
	providerType := os.Getenv(envVar)
	if providerType == "" {
		return DefaultProvider()
	}
	return NewProvider(ProviderConfig{Type: providerType})
}

// QuickGenerate is a convenience function for simple text generation.
func QuickGenerate(ctx context.Context, prompt string) (string, error) {
	provider, err := DefaultProvider()
	if err != nil {
		return "", err
	}
	resp, err := provider.Generate(ctx, GenerateRequest{Prompt: prompt})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// QuickChat is a convenience function for simple chat.
func QuickChat(ctx context.Context, messages ...string) (string, error) {
	provider, err := DefaultProvider()
	if err != nil {
		return "", err
	}

	msgs := make([]Message, len(messages))
	for i, m := range messages {
		if i%2 == 0 {
			msgs[i] = Message{Role: "user", Content: m}
		} else {
			msgs[i] = Message{Role: "assistant", Content: m}
		}
	}

	resp, err := provider.Chat(ctx, ChatRequest{Messages: msgs})
	if err != nil {
		return "", err
	}
	return resp.Message.Content, nil
}

// GraphPrompt helps build prompts that ground a question in a slice of the
// code graph (a node's source plus its neighbors), the shape the agent
// orchestrator's tools assemble for each step (spec §5.7).
type GraphPrompt struct {
	Task        string
	Language    string
	Code        string
	Context     string // neighboring nodes/edges pulled from the graph store
	Constraints []string
}

// Build generates a formatted prompt from a GraphPrompt.
func (gp GraphPrompt) Build() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Task: %s\n\n", gp.Task))

	if gp.Language != "" {
		sb.WriteString(fmt.Sprintf("Language: %s\n\n", gp.Language))
	}

	if gp.Context != "" {
		sb.WriteString(fmt.Sprintf("Graph context:\n%s\n\n", gp.Context))
	}

	if gp.Code != "" {
		sb.WriteString(fmt.Sprintf("Code:\n```%s\n%s\n```\n\n", gp.Language, gp.Code))
	}

	if len(gp.Constraints) > 0 {
		sb.WriteString("Constraints:\n")
		for _, c := range gp.Constraints {
			sb.WriteString(fmt.Sprintf("- %s\n", c))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// SystemPrompts holds the orchestrator's fixed system prompts, one per
// AnalysisType (spec §5.7). CodeGraph answers questions about an existing
// graph via read-only tool calls; it never generates, refactors, or tests
// code, so unlike a general coding assistant this set has no CodeGenerate/
// CodeRefactor/CodeTest entries.
var SystemPrompts = struct {
	Explain   string
	Review    string
	Debug     string
	Architect string
}{
	Explain: `You are CodeGraph's code intelligence assistant. Explain the code reachable
through the provided graph tools clearly and concisely. Break down complex
call chains into understandable steps and cite the node IDs and file paths
your explanation rests on.`,

	Review: `You are CodeGraph's code intelligence assistant, reviewing code via its
dependency graph. Use the coupling and hotspot tools to find:
- bugs and potential issues reachable from the queried node
- coupling and complexity risks
- maintainability concerns
Cite the specific nodes and files backing each finding.`,

	Debug: `You are CodeGraph's code intelligence assistant, tracing a reported problem
through the dependency graph. Use call-chain and reverse-dependency tools to
identify which nodes could produce the described symptom, and cite the path
that leads there.`,

	Architect: `You are CodeGraph's code intelligence assistant, analyzing structure.
Use coupling metrics, hub nodes, and cycle detection to describe the
architecture of the queried subsystem and flag instability or circular
dependencies, citing the nodes involved.`,
}

// BuildChatMessages creates a chat message array with system prompt.
func BuildChatMessages(systemPrompt, userPrompt string, history ...Message) []Message {
	messages := make([]Message, 0, len(history)+2)
	messages = append(messages, Message{Role: "system", Content: systemPrompt})
	messages = append(messages, history...)
	messages = append(messages, Message{Role: "user", Content: userPrompt})
	return messages
}
