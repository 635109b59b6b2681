// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kraklabs/codegraph/pkg/llm"
)

// ErrContextOverflow is returned (or, in streaming mode, emitted as an
// EventError) when the configured LLM reports it has run out of context
// window for the current conversation.
var ErrContextOverflow = errors.New("Context window limit reached")

var overflowPhrases = []string{
	"context_length_exceeded",
	"maximum context length",
	"too many tokens",
}

func remapOverflow(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	for _, phrase := range overflowPhrases {
		if strings.Contains(msg, phrase) {
			return fmt.Errorf("%w: %s", ErrContextOverflow, err.Error())
		}
	}
	return err
}

// Config parameterizes an Orchestrator run.
type Config struct {
	ContextWindowTokens int
	TimeoutSeconds      int // CODEGRAPH_AGENT_TIMEOUT_SECS; 0 = unlimited
	Model               string
}

func DefaultConfig() Config {
	return Config{ContextWindowTokens: 32_000, TimeoutSeconds: 9000}
}

// Orchestrator runs the tool-using chat loop described in spec §5.7.
type Orchestrator struct {
	provider llm.Provider
	tools    *Toolset
	cfg      Config
}

func New(provider llm.Provider, tools *Toolset, cfg Config) *Orchestrator {
	return &Orchestrator{provider: provider, tools: tools, cfg: cfg}
}

// Execute runs the loop to completion and returns the final answer.
func (o *Orchestrator) Execute(ctx context.Context, query string, analysisType AnalysisType) (*AgentOutput, error) {
	events := make(chan Event, 32)
	go func() {
		o.run(ctx, query, analysisType, events)
	}()

	out := &AgentOutput{Status: "ok"}
	start := time.Now()
	for ev := range events {
		switch ev.Type {
		case EventFinished:
			out.Answer = ev.Message
			out.Citations = ev.Citations
			out.Steps = ev.Step
		case EventError:
			out.Status = statusForError(ev.Err)
			out.Answer = ev.Message
			return out, ev.Err
		}
	}
	out.Elapsed = time.Since(start)
	return out, nil
}

// ExecuteStream runs the loop and returns a channel of events. The
// channel is closed when the loop terminates. Sends on it do not watch
// ctx: a receiver that stops draining it leaves the producer blocked on
// its next send once the 32-event buffer is full.
func (o *Orchestrator) ExecuteStream(ctx context.Context, query string, analysisType AnalysisType) <-chan Event {
	events := make(chan Event, 32)
	go o.run(ctx, query, analysisType, events)
	return events
}

func statusForError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	if errors.Is(err, ErrContextOverflow) {
		return "context_overflow"
	}
	return "error"
}

func (o *Orchestrator) run(ctx context.Context, query string, analysisType AnalysisType, events chan<- Event) {
	defer close(events)

	if o.cfg.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(o.cfg.TimeoutSeconds)*time.Second)
		defer cancel()
	}

	tier := TierForWindow(o.cfg.ContextWindowTokens)
	maxSteps := MaxSteps(tier, analysisType)

	events <- Event{Type: EventStarted, Message: fmt.Sprintf("tier=%d max_steps=%d", tier, maxSteps)}

	messages := llm.BuildChatMessages(systemPrompt(tier, analysisType, o.tools.Names()), query)

	registry := o.tools.Registry()
	var citations []Citation
	var answer string
	start := time.Now()
	stepsTaken := 0

	for step := 1; step <= maxSteps; step++ {
		stepsTaken = step
		select {
		case <-ctx.Done():
			events <- Event{
				Type:    EventError,
				Step:    step,
				Message: fmt.Sprintf("status=timeout elapsed=%.1fs partial=%q", time.Since(start).Seconds(), answer),
				Err:     ctx.Err(),
			}
			return
		default:
		}

		resp, err := o.provider.Chat(ctx, llm.ChatRequest{Messages: messages, Model: o.cfg.Model})
		if err != nil {
			remapped := remapOverflow(err)
			events <- Event{Type: EventError, Step: step, Message: remapped.Error(), Err: remapped}
			return
		}

		events <- Event{Type: EventToken, Step: step, Token: resp.Message.Content}
		messages = append(messages, resp.Message)

		toolName, toolArgs, final, isAnswer := parseDirective(resp.Message.Content)
		if isAnswer {
			answer = final
			break
		}
		if toolName == "" {
			answer = resp.Message.Content
			break
		}

		fn, ok := registry[toolName]
		if !ok {
			messages = append(messages, llm.Message{Role: "user", Content: fmt.Sprintf("unknown tool %q", toolName)})
			continue
		}

		events <- Event{Type: EventProgress, Step: step, Message: "tool:" + toolName}
		result, err := fn(ctx, toolArgs)
		if err != nil {
			messages = append(messages, llm.Message{Role: "user", Content: fmt.Sprintf("tool error: %v", err)})
			continue
		}
		if result.IsError {
			messages = append(messages, llm.Message{Role: "user", Content: "tool error: " + result.Text})
			continue
		}
		messages = append(messages, llm.Message{Role: "user", Content: "tool result:\n" + result.Text})
		events <- Event{Type: EventContext, Step: step, Message: result.Text}
	}

	if answer == "" {
		answer = "step budget exhausted without a final answer"
	}
	citations = o.tools.RetrieveCitations(ctx, query)

	events <- Event{
		Type:      EventFinished,
		Step:      stepsTaken,
		Message:   answer,
		Citations: citations,
	}
}

// parseDirective recognizes the two-directive text protocol the system
// prompt asks the model to follow: "TOOL: name {json}" or "ANSWER: text".
func parseDirective(content string) (toolName string, args map[string]any, answer string, isAnswer bool) {
	trimmed := strings.TrimSpace(content)
	switch {
	case strings.HasPrefix(trimmed, "TOOL:"):
		rest := strings.TrimSpace(strings.TrimPrefix(trimmed, "TOOL:"))
		parts := strings.SplitN(rest, " ", 2)
		name := strings.TrimSpace(parts[0])
		argMap := map[string]any{}
		if len(parts) == 2 {
			_ = json.Unmarshal([]byte(strings.TrimSpace(parts[1])), &argMap)
		}
		return name, argMap, "", false
	case strings.HasPrefix(trimmed, "ANSWER:"):
		return "", nil, strings.TrimSpace(strings.TrimPrefix(trimmed, "ANSWER:")), true
	default:
		return "", nil, trimmed, false
	}
}

// promptForAnalysis picks the fixed system prompt matching an analysis
// type's emphasis (spec §5.7); trace/call-chain/dependency queries get the
// debugging-style prompt, architecture queries get the structural one,
// analyze queries get the review prompt, and everything else gets the
// general explain prompt.
func promptForAnalysis(analysisType AnalysisType) string {
	switch analysisType {
	case AnalysisArchitecture:
		return llm.SystemPrompts.Architect
	case AnalysisTrace, AnalysisCallChain, AnalysisDependencyAnalysis:
		return llm.SystemPrompts.Debug
	case AnalysisAnalyze:
		return llm.SystemPrompts.Review
	default:
		return llm.SystemPrompts.Explain
	}
}

func systemPrompt(tier ContextTier, analysisType AnalysisType, toolNames []string) string {
	var sb strings.Builder
	sb.WriteString(promptForAnalysis(analysisType))
	fmt.Fprintf(&sb, "\n\nAnalysis type: %s. Context tier: %d.\n", analysisType, tier)
	sb.WriteString("Available tools: " + strings.Join(toolNames, ", ") + ".\n")
	sb.WriteString("Respond with exactly one of:\n")
	sb.WriteString("TOOL: <tool_name> <json args>\n")
	sb.WriteString("ANSWER: <final answer text>\n")
	return sb.String()
}
