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
	"github.com/smacker/go-tree-sitter/golang"

	"github.com/kraklabs/codegraph/pkg/model"
)

// GoExtractor extracts nodes and edges from Go source using tree-sitter.
// It is the primary, highest-fidelity extractor (spec §4.1, "Go: full
// tree-sitter grammar").
type GoExtractor struct {
	parser *sitter.Parser
}

// NewGoExtractor builds a GoExtractor with a dedicated tree-sitter parser
// instance. Parser instances are not safe for concurrent use, so each
// worker goroutine in Extractor owns one.
func NewGoExtractor() *GoExtractor {
	p := sitter.NewParser()
	p.SetLanguage(golang.GetLanguage())
	return &GoExtractor{parser: p}
}

func (g *GoExtractor) Language() model.Language { return model.LangGo }

// goWalkState threads the per-file accumulation state through the recursive
// descent, mirroring the teacher's goFunctionContext.
type goWalkState struct {
	projectID   string
	filePath    string
	content     []byte
	nodes       []model.Node
	edges       []model.Edge
	nameToID    map[string]model.ID // simple name -> node id, for same-file call resolution
	anonCounter int
	now         time.Time
}

func (g *GoExtractor) Extract(projectID, filePath string, content []byte) (*ExtractionResult, error) {
	tree, err := g.parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return nil, fmt.Errorf("parser: go: tree-sitter parse %s: %w", filePath, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	now := time.Now().UTC()
	st := &goWalkState{
		projectID: projectID,
		filePath:  filePath,
		content:   content,
		nameToID:  make(map[string]model.ID),
		now:       now,
	}

	pkgName := g.packageName(root, content)
	moduleID := g.emitModuleNode(st, pkgName)

	var fnNodes []*sitter.Node
	g.walkDecls(root, st, &fnNodes)

	// second pass: call-expression walking, now that nameToID is fully populated
	for _, n := range fnNodes {
		callerID := g.declID(n, st)
		g.walkCalls(n, st, callerID)
	}

	g.walkImports(root, st, moduleID)

	return &ExtractionResult{Nodes: st.nodes, Edges: st.edges}, nil
}

func (g *GoExtractor) packageName(root *sitter.Node, content []byte) string {
	if root == nil {
		return ""
	}
	for i := 0; i < int(root.ChildCount()); i++ {
		child := root.Child(i)
		if child.Type() != "package_clause" {
			continue
		}
		if name := child.ChildByFieldName("name"); name != nil {
			return string(content[name.StartByte():name.EndByte()])
		}
	}
	return ""
}

func (g *GoExtractor) emitModuleNode(st *goWalkState, pkgName string) model.ID {
	qn := model.ModuleKey(model.LangGo, pkgName)
	id := model.NewNodeID(st.projectID, qn, st.filePath, 0)
	st.nodes = append(st.nodes, model.Node{
		ID:            id,
		Name:          pkgName,
		QualifiedName: qn,
		Kind:          model.KindModule,
		Language:      model.LangGo,
		Location:      model.Location{FilePath: st.filePath},
		CreatedAt:     st.now,
		UpdatedAt:     st.now,
	})
	return id
}

// declID recomputes the node ID for a previously-visited declaration node so
// the call-walking pass can attribute call edges without threading node
// values through the first pass.
func (g *GoExtractor) declID(n *sitter.Node, st *goWalkState) model.ID {
	_, qualified := g.declNameAndQualified(n, st)
	start := int(n.StartByte())
	return model.NewNodeID(st.projectID, qualified, st.filePath, start)
}

func (g *GoExtractor) declNameAndQualified(n *sitter.Node, st *goWalkState) (simple, qualified string) {
	switch n.Type() {
	case "function_declaration":
		name := fieldText(n, "name", st.content)
		return name, name
	case "method_declaration":
		name := fieldText(n, "name", st.content)
		recv := n.ChildByFieldName("receiver")
		recvType := extractGoReceiverType(recv, st.content)
		if recvType != "" {
			return name, recvType + "." + name
		}
		return name, name
	default:
		return "", ""
	}
}

func (g *GoExtractor) walkDecls(n *sitter.Node, st *goWalkState, fnNodes *[]*sitter.Node) {
	if n == nil {
		return
	}
	switch n.Type() {
	case "function_declaration":
		g.emitFunc(n, st, model.KindFunction)
		*fnNodes = append(*fnNodes, n)
	case "method_declaration":
		g.emitFunc(n, st, model.KindMethod)
		*fnNodes = append(*fnNodes, n)
	case "type_declaration":
		g.emitTypeDecl(n, st)
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		g.walkDecls(n.Child(i), st, fnNodes)
	}
}

func (g *GoExtractor) emitFunc(n *sitter.Node, st *goWalkState, kind model.Kind) {
	simple, qualified := g.declNameAndQualified(n, st)
	if simple == "" {
		return
	}
	start := n.StartPoint()
	end := n.EndPoint()
	id := model.NewNodeID(st.projectID, qualified, st.filePath, int(n.StartByte()))
	text := truncateContent(string(st.content[n.StartByte():n.EndByte()]))
	complexity := cyclomaticComplexity(bodyOf(n), "go", st.content)

	node := model.Node{
		ID:            id,
		Name:          simple,
		QualifiedName: qualified,
		Kind:          kind,
		Language:      model.LangGo,
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
	}
	st.nodes = append(st.nodes, node)

	if kind == model.KindMethod {
		st.nameToID[simple] = id
	} else {
		st.nameToID[simple] = id
	}
}

func (g *GoExtractor) emitTypeDecl(n *sitter.Node, st *goWalkState) {
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		switch child.Type() {
		case "type_spec":
			g.emitTypeSpec(child, st)
		case "type_spec_list":
			for j := 0; j < int(child.ChildCount()); j++ {
				if spec := child.Child(j); spec.Type() == "type_spec" {
					g.emitTypeSpec(spec, st)
				}
			}
		}
	}
}

func (g *GoExtractor) emitTypeSpec(n *sitter.Node, st *goWalkState) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := string(st.content[nameNode.StartByte():nameNode.EndByte()])

	typeNode := n.ChildByFieldName("type")
	kind := model.KindType
	if typeNode != nil {
		switch typeNode.Type() {
		case "struct_type":
			kind = model.KindStruct
		case "interface_type":
			kind = model.KindInterface
		}
	}

	start := n.StartPoint()
	end := n.EndPoint()
	id := model.NewNodeID(st.projectID, name, st.filePath, int(n.StartByte()))
	text := truncateContent(string(st.content[n.StartByte():n.EndByte()]))

	st.nodes = append(st.nodes, model.Node{
		ID:            id,
		Name:          name,
		QualifiedName: name,
		Kind:          kind,
		Language:      model.LangGo,
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

func (g *GoExtractor) walkCalls(fnNode *sitter.Node, st *goWalkState, callerID model.ID) {
	body := bodyOf(fnNode)
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
				calleeName := g.calleeSimpleName(fn, st.content)
				if calleeID, ok := st.nameToID[calleeName]; ok && calleeID != callerID && !seen[calleeID] {
					seen[calleeID] = true
					span := model.Span{Start: int(n.StartByte()), End: int(n.EndByte())}
					st.edges = append(st.edges, model.Edge{
						ID:       model.NewEdgeID(callerID, calleeID.String(), model.EdgeCalls, st.filePath, int(n.StartByte())),
						From:     callerID,
						To:       calleeID,
						Type:     model.EdgeCalls,
						Weight:   model.DefaultEdgeWeight,
						Span:     span,
						FilePath: st.filePath,
					})
				} else if !ok {
					full := g.calleeFullName(fn, st.content)
					if full != "" && full != calleeName {
						sym := model.ExternalImportTarget(model.LangGo, full)
						span := model.Span{Start: int(n.StartByte()), End: int(n.EndByte())}
						st.edges = append(st.edges, model.Edge{
							ID:       model.NewEdgeID(callerID, sym, model.EdgeCalls, st.filePath, int(n.StartByte())),
							From:     callerID,
							ToSymbol: sym,
							Type:     model.EdgeCalls,
							Weight:   model.DefaultEdgeWeight,
							Span:     span,
							FilePath: st.filePath,
						})
					}
				}
			}
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(body)
}

func (g *GoExtractor) calleeSimpleName(n *sitter.Node, content []byte) string {
	if n == nil {
		return ""
	}
	switch n.Type() {
	case "identifier":
		return string(content[n.StartByte():n.EndByte()])
	case "selector_expression":
		if field := n.ChildByFieldName("field"); field != nil {
			return string(content[field.StartByte():field.EndByte()])
		}
	case "index_expression":
		if operand := n.ChildByFieldName("operand"); operand != nil {
			return g.calleeSimpleName(operand, content)
		}
	}
	return ""
}

func (g *GoExtractor) calleeFullName(n *sitter.Node, content []byte) string {
	if n == nil {
		return ""
	}
	switch n.Type() {
	case "identifier", "selector_expression":
		return string(content[n.StartByte():n.EndByte()])
	case "index_expression":
		if operand := n.ChildByFieldName("operand"); operand != nil {
			return g.calleeFullName(operand, content)
		}
	}
	return ""
}

func (g *GoExtractor) walkImports(root *sitter.Node, st *goWalkState, moduleID model.ID) {
	if root == nil {
		return
	}
	for i := 0; i < int(root.ChildCount()); i++ {
		child := root.Child(i)
		if child.Type() != "import_declaration" {
			continue
		}
		for j := 0; j < int(child.ChildCount()); j++ {
			spec := child.Child(j)
			switch spec.Type() {
			case "import_spec":
				g.emitImportSpec(spec, st, moduleID)
			case "import_spec_list":
				for k := 0; k < int(spec.ChildCount()); k++ {
					if s := spec.Child(k); s.Type() == "import_spec" {
						g.emitImportSpec(s, st, moduleID)
					}
				}
			}
		}
	}
}

func (g *GoExtractor) emitImportSpec(n *sitter.Node, st *goWalkState, moduleID model.ID) {
	pathNode := n.ChildByFieldName("path")
	if pathNode == nil {
		return
	}
	path := strings.Trim(string(st.content[pathNode.StartByte():pathNode.EndByte()]), `"`)
	sym := model.ExternalImportTarget(model.LangGo, path)
	start := n.StartPoint()
	st.edges = append(st.edges, model.Edge{
		ID:       model.NewEdgeID(moduleID, sym, model.EdgeImports, st.filePath, int(n.StartByte())),
		From:     moduleID,
		ToSymbol: sym,
		Type:     model.EdgeImports,
		Weight:   model.DefaultEdgeWeight,
		Span:     model.Span{Start: int(n.StartByte()), End: int(n.EndByte())},
		FilePath: st.filePath,
		Metadata: map[string]string{"line": fmt.Sprintf("%d", start.Row+1)},
	})
}

func bodyOf(n *sitter.Node) *sitter.Node {
	if n == nil {
		return nil
	}
	if body := n.ChildByFieldName("body"); body != nil {
		return body
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if child := n.Child(i); child.Type() == "block" {
			return child
		}
	}
	return nil
}

func fieldText(n *sitter.Node, field string, content []byte) string {
	fn := n.ChildByFieldName(field)
	if fn == nil {
		return ""
	}
	return string(content[fn.StartByte():fn.EndByte()])
}

// extractGoReceiverType extracts the base type name from a method receiver,
// stripping pointer and generic-parameter decoration: *Server -> Server.
func extractGoReceiverType(receiver *sitter.Node, content []byte) string {
	if receiver == nil {
		return ""
	}
	for i := 0; i < int(receiver.ChildCount()); i++ {
		child := receiver.Child(i)
		if child.Type() != "parameter_declaration" {
			continue
		}
		typeNode := child.ChildByFieldName("type")
		if typeNode == nil {
			continue
		}
		return baseGoTypeName(typeNode, content)
	}
	return ""
}

func baseGoTypeName(typeNode *sitter.Node, content []byte) string {
	if typeNode == nil {
		return ""
	}
	switch typeNode.Type() {
	case "pointer_type":
		for i := 0; i < int(typeNode.ChildCount()); i++ {
			if child := typeNode.Child(i); child.Type() != "*" {
				return baseGoTypeName(child, content)
			}
		}
	case "generic_type":
		if tn := typeNode.ChildByFieldName("type"); tn != nil {
			return string(content[tn.StartByte():tn.EndByte()])
		}
	case "type_identifier":
		return string(content[typeNode.StartByte():typeNode.EndByte()])
	}
	name := string(content[typeNode.StartByte():typeNode.EndByte()])
	name = strings.TrimPrefix(name, "*")
	if idx := strings.Index(name, "["); idx > 0 {
		name = name[:idx]
	}
	return name
}
