// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: Apache-2.0

// Package agent is the Agent Orchestrator (A): a tool-using chat loop
// over the Graph Store, Vector Store, and Hybrid Retriever, built on
// the teacher's pkg/tools ToolResult{Text, IsError} shape and pkg/llm
// Provider interface, re-pointed from CozoDB Datalog calls to
// graph.Store/vector.Store method calls.
package agent

import (
	"time"

	"github.com/kraklabs/codegraph/pkg/model"
)

// AnalysisType selects the prompt and tool emphasis for a query. The
// first three names come from the teacher's trace/analyze/search split;
// the rest are added per spec §4.7.
type AnalysisType string

const (
	AnalysisTrace               AnalysisType = "trace"
	AnalysisAnalyze             AnalysisType = "analyze"
	AnalysisSearch              AnalysisType = "search"
	AnalysisCodeSearch          AnalysisType = "code_search"
	AnalysisDependencyAnalysis  AnalysisType = "dependency_analysis"
	AnalysisCallChain           AnalysisType = "call_chain"
	AnalysisArchitecture        AnalysisType = "architecture"
	AnalysisAPISurface          AnalysisType = "api_surface"
	AnalysisContextBuilder      AnalysisType = "context_builder"
	AnalysisSemanticQA          AnalysisType = "semantic_qa"
)

// ContextTier buckets the configured LLM's context window into a coarse
// prompt-selection axis.
type ContextTier int

const (
	Small ContextTier = iota
	Medium
	Large
	Massive
)

// TierForWindow maps a context-window token count to a tier.
func TierForWindow(tokens int) ContextTier {
	switch {
	case tokens >= 200_000:
		return Massive
	case tokens >= 64_000:
		return Large
	case tokens >= 16_000:
		return Medium
	default:
		return Small
	}
}

// baseMaxSteps is the step budget before the per-analysis-type
// multiplier, keyed by ContextTier.
var baseMaxSteps = map[ContextTier]int{
	Small:   3,
	Medium:  5,
	Large:   7,
	Massive: 10,
}

// stepMultiplier scales the base step budget per analysis type (0.8-1.3);
// MaxSteps clamps the scaled result to 1..10, not the multiplier itself.
var stepMultiplier = map[AnalysisType]float64{
	AnalysisTrace:              0.8,
	AnalysisAnalyze:            1.0,
	AnalysisSearch:             0.9,
	AnalysisCodeSearch:         0.9,
	AnalysisDependencyAnalysis: 1.1,
	AnalysisCallChain:          1.0,
	AnalysisArchitecture:       1.3,
	AnalysisAPISurface:         1.1,
	AnalysisContextBuilder:     1.0,
	AnalysisSemanticQA:         0.9,
}

// MaxSteps computes the hard step budget for a (tier, analysisType) pair.
func MaxSteps(tier ContextTier, analysisType AnalysisType) int {
	base := baseMaxSteps[tier]
	mult, ok := stepMultiplier[analysisType]
	if !ok {
		mult = 1.0
	}
	steps := int(float64(base)*mult + 0.5)
	if steps > 10 {
		steps = 10
	}
	if steps < 1 {
		steps = 1
	}
	return steps
}

// EventType is the kind of event emitted on an Execute streaming run.
type EventType int

const (
	EventStarted EventType = iota
	EventProgress
	EventContext
	EventToken
	EventFinished
	EventError
)

// Event is one item on an Execute streaming channel. The producer checks
// ctx.Done() between steps; it does not detect a receiver that has
// stopped reading, and blocks on a send once the channel buffer is full.
type Event struct {
	Type      EventType
	Step      int
	Message   string
	Token     string
	Citations []Citation
	Err       error
}

// Citation is a single retrieved code location backing part of an answer.
type Citation struct {
	NodeID    model.ID
	Name      string
	FilePath  string
	Line      int
	EndLine   int
	Relevance float64
}

// AgentOutput is the non-streaming result of Execute.
type AgentOutput struct {
	Answer    string
	Citations []Citation
	Steps     int
	Elapsed   time.Duration
	Status    string // "ok", "timeout", "context_overflow", "error"
}

// ToolResult mirrors the teacher's pkg/tools.ToolResult shape: plain text
// plus an error flag, so tool output can be dropped straight into a chat
// message without a separate error channel.
type ToolResult struct {
	Text    string
	IsError bool
}

func NewResult(text string) *ToolResult { return &ToolResult{Text: text} }
func NewError(text string) *ToolResult  { return &ToolResult{Text: text, IsError: true} }
