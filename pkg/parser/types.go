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

// Package parser turns source files into typed (model.Node, model.Edge)
// streams: per-language tree-sitter/regex extractors, a module-linker
// post-pass, and a bounded worker-pool directory walker with incremental
// re-parse support.
package parser

import (
	"github.com/kraklabs/codegraph/pkg/model"
)

// ExtractionResult is what a single-file parse produces.
type ExtractionResult struct {
	Nodes []model.Node
	Edges []model.Edge
}

// Stats summarizes a directory-level extraction run.
type Stats struct {
	FilesParsed   int
	FilesFailed   int
	NodesEmitted  int
	EdgesEmitted  int
	LinesParsed   int
	Errors        []FileError
}

// FileError records a per-file parse failure; it never aborts the run.
type FileError struct {
	FilePath string
	Err      error
}

// LanguageExtractor is the shared visitor contract every per-language
// extractor implements: walk a parse tree (or, for simplified extractors,
// the raw text) and emit nodes for recognized declarations and edges for
// observed references.
type LanguageExtractor interface {
	// Language identifies which model.Language this extractor handles.
	Language() model.Language

	// Extract parses a single file's content and returns its nodes/edges.
	// It must never panic; malformed input degrades to a partial or empty
	// ExtractionResult plus a descriptive error.
	Extract(projectID, filePath string, content []byte) (*ExtractionResult, error)
}

// Diff describes the effect of an incremental re-parse on node identity.
type Diff struct {
	Added   []model.ID
	Removed []model.ID
	Updated []model.ID // content-hash differs but id is stable
}

// LightReparseThreshold is the fraction of top-level definitions that may
// change before a re-parse is treated as a full-file replacement rather
// than a light incremental update (spec §4.1).
const LightReparseThreshold = 0.3

// unresolvedCall is an intra-file call whose callee couldn't be resolved
// during the first extraction pass (cross-package/cross-file target).
type unresolvedCall struct {
	callerID   model.ID
	calleeName string
	filePath   string
	span       model.Span
}

// MaxContentBytes bounds how much of a node's source text is retained in
// Node.Content (spec: "bounded length").
const MaxContentBytes = 4096

func truncateContent(s string) string {
	if len(s) <= MaxContentBytes {
		return s
	}
	return s[:MaxContentBytes]
}
