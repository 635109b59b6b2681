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

package parser

import (
	"strings"
	"time"

	"github.com/kraklabs/codegraph/pkg/model"
)

// ProtobufExtractor extracts services, RPCs, messages, and enums from .proto
// files using line-oriented pattern matching rather than a tree-sitter
// grammar — no bundled tree-sitter-proto grammar exists in the ecosystem,
// so protobuf stays simplified/regex-based (spec §4.1: "Protobuf: simplified
// parsing").
type ProtobufExtractor struct{}

func NewProtobufExtractor() *ProtobufExtractor { return &ProtobufExtractor{} }

func (p *ProtobufExtractor) Language() model.Language { return model.LangProtobuf }

func (p *ProtobufExtractor) Extract(projectID, filePath string, content []byte) (*ExtractionResult, error) {
	now := time.Now().UTC()
	lines := strings.Split(string(content), "\n")

	var nodes []model.Node
	var edges []model.Edge

	var currentService string
	var serviceID model.ID
	var serviceStart int
	var serviceLines []string
	braceCount := 0

	emit := func(name, qualified string, kind model.Kind, startLine, endLine int, text string) model.ID {
		id := model.NewNodeID(projectID, qualified, filePath, startLine)
		text = truncateContent(text)
		nodes = append(nodes, model.Node{
			ID:            id,
			Name:          name,
			QualifiedName: qualified,
			Kind:          kind,
			Language:      model.LangProtobuf,
			Location:      model.Location{FilePath: filePath, StartLine: startLine, EndLine: endLine},
			Content:       text,
			Attributes:    map[string]string{},
			ContentHash:   model.ContentHash(text),
			CreatedAt:     now,
			UpdatedAt:     now,
		})
		return id
	}

	for i, line := range lines {
		lineNum := i + 1
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "//") || strings.HasPrefix(trimmed, "/*") {
			continue
		}

		if strings.HasPrefix(trimmed, "service ") && strings.Contains(trimmed, "{") {
			parts := strings.Fields(trimmed)
			if len(parts) >= 2 {
				currentService = strings.TrimSuffix(parts[1], "{")
				serviceStart = lineNum
				serviceLines = []string{line}
				braceCount = strings.Count(trimmed, "{") - strings.Count(trimmed, "}")
				serviceID = emit(currentService, currentService, model.KindClass, serviceStart, lineNum, line)
				if braceCount == 0 {
					currentService = ""
				}
			}
			continue
		}

		if currentService != "" {
			serviceLines = append(serviceLines, line)
			braceCount += strings.Count(trimmed, "{") - strings.Count(trimmed, "}")

			if strings.HasPrefix(trimmed, "rpc ") {
				rpcName, rpcSig := protoRPCSignature(trimmed)
				if rpcName != "" {
					qualified := currentService + "." + rpcName
					rpcID := emit(rpcName, qualified, model.KindMethod, lineNum, lineNum, rpcSig)
					edges = append(edges, model.Edge{
						ID:       model.NewEdgeID(serviceID, rpcID.String(), model.EdgeContains, filePath, lineNum),
						From:     serviceID,
						To:       rpcID,
						Type:     model.EdgeContains,
						Weight:   model.DefaultEdgeWeight,
						FilePath: filePath,
						Span:     model.Span{Start: lineNum, End: lineNum},
					})
				}
			}

			if braceCount == 0 {
				currentService = ""
				serviceLines = nil
			}
			continue
		}

		if strings.HasPrefix(trimmed, "message ") && strings.Contains(trimmed, "{") {
			parts := strings.Fields(trimmed)
			if len(parts) >= 2 {
				name := strings.TrimSuffix(parts[1], "{")
				end := protoBlockEnd(lines, i)
				emit(name, name, model.KindStruct, lineNum, end, strings.Join(lines[i:end], "\n"))
			}
		}

		if strings.HasPrefix(trimmed, "enum ") && strings.Contains(trimmed, "{") {
			parts := strings.Fields(trimmed)
			if len(parts) >= 2 {
				name := strings.TrimSuffix(parts[1], "{")
				end := protoBlockEnd(lines, i)
				emit(name, name, model.KindEnum, lineNum, end, strings.Join(lines[i:end], "\n"))
			}
		}
	}

	return &ExtractionResult{Nodes: nodes, Edges: edges}, nil
}

func protoRPCSignature(line string) (name, signature string) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(line), "rpc ")
	parenIdx := strings.Index(trimmed, "(")
	if parenIdx == -1 {
		return "", ""
	}
	name = strings.TrimSpace(trimmed[:parenIdx])

	semiIdx := strings.Index(trimmed, ";")
	braceIdx := strings.Index(trimmed, "{")
	endIdx := len(trimmed)
	if semiIdx >= 0 && (braceIdx < 0 || semiIdx < braceIdx) {
		endIdx = semiIdx
	} else if braceIdx >= 0 {
		endIdx = braceIdx
	}
	signature = "rpc " + strings.TrimSpace(trimmed[:endIdx])
	return name, signature
}

func protoBlockEnd(lines []string, startIdx int) int {
	braceCount := 0
	started := false
	for i := startIdx; i < len(lines); i++ {
		line := lines[i]
		braceCount += strings.Count(line, "{") - strings.Count(line, "}")
		if !started && strings.Contains(line, "{") {
			started = true
		}
		if started && braceCount == 0 {
			return i + 1
		}
	}
	return len(lines)
}
