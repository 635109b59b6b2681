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
	"context"
	"fmt"
	"strings"
	"time"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/kraklabs/codegraph/pkg/model"
)

// TypeScriptExtractor extracts nodes and edges from TypeScript (and plain
// JavaScript) source using tree-sitter (spec §4.1).
type TypeScriptExtractor struct {
	parser *sitter.Parser
}

func NewTypeScriptExtractor() *TypeScriptExtractor {
	p := sitter.NewParser()
	p.SetLanguage(typescript.GetLanguage())
	return &TypeScriptExtractor{parser: p}
}

func (t *TypeScriptExtractor) Language() model.Language { return model.LangTypeScript }

type tsWalkState struct {
	projectID   string
	filePath    string
	content     []byte
	nodes       []model.Node
	edges       []model.Edge
	nameToID    map[string]model.ID
	anonCounter int
	now         time.Time
}

func (t *TypeScriptExtractor) Extract(projectID, filePath string, content []byte) (*ExtractionResult, error) {
	tree, err := t.parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return nil, fmt.Errorf("parser: typescript: tree-sitter parse %s: %w", filePath, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	st := &tsWalkState{
		projectID: projectID,
		filePath:  filePath,
		content:   content,
		nameToID:  make(map[string]model.ID),
		now:       time.Now().UTC(),
	}

	moduleID := t.emitModuleNode(st)

	var fnNodes []*sitter.Node
	t.walkFunctions(root, st, &fnNodes)
	t.walkTypes(root, st)

	for _, n := range fnNodes {
		callerID := t.funcID(n, st)
		t.walkCalls(n, st, callerID)
	}
	t.walkImports(root, st, moduleID)

	return &ExtractionResult{Nodes: st.nodes, Edges: st.edges}, nil
}

// emitModuleNode synthesizes the module node for this file (spec §4.1 step
// 1), mirroring GoExtractor.emitModuleNode. linker.go's linkFile wires the
// Contains edge from this node to every other node extracted from the file.
func (t *TypeScriptExtractor) emitModuleNode(st *tsWalkState) model.ID {
	modName := strings.TrimSuffix(baseName(st.filePath), ".ts")
	modName = strings.TrimSuffix(modName, ".tsx")
	modName = strings.TrimSuffix(modName, ".js")
	modName = strings.TrimSuffix(modName, ".jsx")
	qn := model.ModuleKey(model.LangTypeScript, st.filePath)
	id := model.NewNodeID(st.projectID, qn, st.filePath, 0)
	st.nodes = append(st.nodes, model.Node{
		ID:            id,
		Name:          modName,
		QualifiedName: qn,
		Kind:          model.KindModule,
		Language:      model.LangTypeScript,
		Location:      model.Location{FilePath: st.filePath},
		CreatedAt:     st.now,
		UpdatedAt:     st.now,
	})
	return id
}

func (t *TypeScriptExtractor) funcID(n *sitter.Node, st *tsWalkState) model.ID {
	name := t.funcName(n, st.content)
	return model.NewNodeID(st.projectID, name, st.filePath, int(n.StartByte()))
}

func (t *TypeScriptExtractor) funcName(n *sitter.Node, content []byte) string {
	switch n.Type() {
	case "function_declaration", "method_definition", "method_signature", "function_signature":
		return fieldText(n, "name", content)
	case "variable_declarator":
		return fieldText(n, "name", content)
	default:
		return ""
	}
}

func (t *TypeScriptExtractor) walkFunctions(n *sitter.Node, st *tsWalkState, fnNodes *[]*sitter.Node) {
	if n == nil {
		return
	}
	switch n.Type() {
	case "function_declaration", "method_definition", "method_signature", "function_signature":
		if t.emitFunc(n, st, t.funcName(n, st.content)) {
			*fnNodes = append(*fnNodes, n)
		}
	case "variable_declarator":
		if value := n.ChildByFieldName("value"); value != nil {
			switch value.Type() {
			case "arrow_function", "function_expression", "function":
				name := fieldText(n, "name", st.content)
				if t.emitFunc(n, st, name) {
					*fnNodes = append(*fnNodes, n)
				}
			}
		}
	case "arrow_function":
		if parent := n.Parent(); parent == nil || parent.Type() != "variable_declarator" {
			st.anonCounter++
			name := fmt.Sprintf("$anon_%d", st.anonCounter)
			t.emitFuncNamed(n, st, name, name)
		}
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		t.walkFunctions(n.Child(i), st, fnNodes)
	}
}

func (t *TypeScriptExtractor) emitFunc(n *sitter.Node, st *tsWalkState, name string) bool {
	if name == "" {
		return false
	}
	t.emitFuncNamed(n, st, name, name)
	return true
}

func (t *TypeScriptExtractor) emitFuncNamed(n *sitter.Node, st *tsWalkState, name, qualified string) {
	kind := model.KindFunction
	if n.Type() == "method_definition" || n.Type() == "method_signature" {
		kind = model.KindMethod
	}
	start := n.StartPoint()
	end := n.EndPoint()
	id := model.NewNodeID(st.projectID, qualified, st.filePath, int(n.StartByte()))
	text := truncateContent(string(st.content[n.StartByte():n.EndByte()]))
	complexity := cyclomaticComplexity(bodyOfTS(n), "typescript", st.content)

	st.nodes = append(st.nodes, model.Node{
		ID:            id,
		Name:          name,
		QualifiedName: qualified,
		Kind:          kind,
		Language:      model.LangTypeScript,
		Location: model.Location{
			FilePath:  st.filePath,
			StartLine: int(start.Row) + 1,
			StartCol:  int(start.Column) + 1,
			EndLine:   int(end.Row) + 1,
			EndCol:    int(end.Column) + 1,
		},
		Span:        model.Span{Start: int(n.StartByte()), End: int(n.EndByte())},
		Content:     text,
		Complexity:  &complexity,
		Attributes:  map[string]string{},
		ContentHash: model.ContentHash(text),
		CreatedAt:   st.now,
		UpdatedAt:   st.now,
	})
	st.nameToID[name] = id
}

func bodyOfTS(n *sitter.Node) *sitter.Node {
	if n == nil {
		return nil
	}
	if body := n.ChildByFieldName("body"); body != nil {
		return body
	}
	return nil
}

func (t *TypeScriptExtractor) walkTypes(n *sitter.Node, st *tsWalkState) {
	if n == nil {
		return
	}
	switch n.Type() {
	case "interface_declaration":
		t.emitType(n, st, model.KindInterface)
	case "class_declaration":
		t.emitType(n, st, model.KindClass)
	case "type_alias_declaration":
		t.emitType(n, st, model.KindType)
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		t.walkTypes(n.Child(i), st)
	}
}

func (t *TypeScriptExtractor) emitType(n *sitter.Node, st *tsWalkState, kind model.Kind) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := string(st.content[nameNode.StartByte():nameNode.EndByte()])
	start := n.StartPoint()
	end := n.EndPoint()
	id := model.NewNodeID(st.projectID, name, st.filePath, int(n.StartByte()))
	text := truncateContent(string(st.content[n.StartByte():n.EndByte()]))

	st.nodes = append(st.nodes, model.Node{
		ID:            id,
		Name:          name,
		QualifiedName: name,
		Kind:          kind,
		Language:      model.LangTypeScript,
		Location: model.Location{
			FilePath:  st.filePath,
			StartLine: int(start.Row) + 1,
			StartCol:  int(start.Column) + 1,
			EndLine:   int(end.Row) + 1,
			EndCol:    int(end.Column) + 1,
		},
		Span:        model.Span{Start: int(n.StartByte()), End: int(n.EndByte())},
		Content:     text,
		Attributes:  map[string]string{},
		ContentHash: model.ContentHash(text),
		CreatedAt:   st.now,
		UpdatedAt:   st.now,
	})
}

func (t *TypeScriptExtractor) walkCalls(fnNode *sitter.Node, st *tsWalkState, callerID model.ID) {
	body := bodyOfTS(fnNode)
	if body == nil {
		return
	}
	seen := make(map[model.ID]bool)
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n == nil {
			return
		}
		if n.Type() == "call_expression" {
			if fn := n.ChildByFieldName("function"); fn != nil {
				name := t.calleeName(fn, st.content)
				if calleeID, ok := st.nameToID[name]; ok && calleeID != callerID && !seen[calleeID] {
					seen[calleeID] = true
					st.edges = append(st.edges, model.Edge{
						ID:       model.NewEdgeID(callerID, calleeID.String(), model.EdgeCalls, st.filePath, int(n.StartByte())),
						From:     callerID,
						To:       calleeID,
						Type:     model.EdgeCalls,
						Weight:   model.DefaultEdgeWeight,
						Span:     model.Span{Start: int(n.StartByte()), End: int(n.EndByte())},
						FilePath: st.filePath,
					})
				}
			}
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(body)
}

func (t *TypeScriptExtractor) calleeName(n *sitter.Node, content []byte) string {
	if n == nil {
		return ""
	}
	switch n.Type() {
	case "identifier":
		return string(content[n.StartByte():n.EndByte()])
	case "member_expression":
		if prop := n.ChildByFieldName("property"); prop != nil {
			return string(content[prop.StartByte():prop.EndByte()])
		}
	}
	return ""
}

func (t *TypeScriptExtractor) walkImports(root *sitter.Node, st *tsWalkState, moduleID model.ID) {
	if root == nil {
		return
	}
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n == nil {
			return
		}
		if n.Type() == "import_statement" {
			if src := n.ChildByFieldName("source"); src != nil {
				spec := trimQuotes(string(st.content[src.StartByte():src.EndByte()]))
				sym := model.ExternalImportTarget(model.LangTypeScript, spec)
				st.edges = append(st.edges, model.Edge{
					ID:       model.NewEdgeID(moduleID, sym, model.EdgeImports, st.filePath, int(n.StartByte())),
					From:     moduleID,
					ToSymbol: sym,
					Type:     model.EdgeImports,
					Weight:   model.DefaultEdgeWeight,
					Span:     model.Span{Start: int(n.StartByte()), End: int(n.EndByte())},
					FilePath: st.filePath,
				})
			}
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(root)
}

func trimQuotes(s string) string {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'' || s[0] == '`') {
		return s[1 : len(s)-1]
	}
	return s
}
