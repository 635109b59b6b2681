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
	"github.com/smacker/go-tree-sitter/python"

	"github.com/kraklabs/codegraph/pkg/model"
)

// PythonExtractor extracts classes, functions, and methods from Python
// source using the tree-sitter-python grammar (spec §4.1).
type PythonExtractor struct {
	parser *sitter.Parser
}

func NewPythonExtractor() *PythonExtractor {
	p := sitter.NewParser()
	p.SetLanguage(python.GetLanguage())
	return &PythonExtractor{parser: p}
}

func (py *PythonExtractor) Language() model.Language { return model.LangPython }

type pyWalkState struct {
	projectID string
	filePath  string
	content   []byte
	nodes     []model.Node
	edges     []model.Edge
	nameToID  map[string]model.ID
	now       time.Time
}

func (py *PythonExtractor) Extract(projectID, filePath string, content []byte) (*ExtractionResult, error) {
	tree, err := py.parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return nil, fmt.Errorf("parser: python: tree-sitter parse %s: %w", filePath, err)
	}
	defer tree.Close()

	st := &pyWalkState{
		projectID: projectID,
		filePath:  filePath,
		content:   content,
		nameToID:  make(map[string]model.ID),
		now:       time.Now().UTC(),
	}

	moduleID := py.emitModuleNode(st)

	root := tree.RootNode()
	var fnNodes []*sitter.Node
	py.walk(root, st, "", &fnNodes)
	py.walkImports(root, st, moduleID)

	for _, n := range fnNodes {
		name := fieldText(n, "name", content)
		callerID := model.NewNodeID(projectID, name, filePath, int(n.StartByte()))
		py.walkCalls(n, st, callerID)
	}

	return &ExtractionResult{Nodes: st.nodes, Edges: st.edges}, nil
}

// emitModuleNode synthesizes the module node for this file (spec §4.1 step
// 1), mirroring GoExtractor.emitModuleNode. linker.go's linkFile wires the
// Contains edge from this node to every other node extracted from the file.
func (py *PythonExtractor) emitModuleNode(st *pyWalkState) model.ID {
	modName := strings.TrimSuffix(baseName(st.filePath), ".py")
	qn := model.ModuleKey(model.LangPython, st.filePath)
	id := model.NewNodeID(st.projectID, qn, st.filePath, 0)
	st.nodes = append(st.nodes, model.Node{
		ID:            id,
		Name:          modName,
		QualifiedName: qn,
		Kind:          model.KindModule,
		Language:      model.LangPython,
		Location:      model.Location{FilePath: st.filePath},
		CreatedAt:     st.now,
		UpdatedAt:     st.now,
	})
	return id
}

func (py *PythonExtractor) walk(n *sitter.Node, st *pyWalkState, parentQualified string, fnNodes *[]*sitter.Node) {
	if n == nil {
		return
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case "class_definition":
			qualified := py.emitClass(child, st, parentQualified)
			if body := child.ChildByFieldName("body"); body != nil {
				py.walk(body, st, qualified, fnNodes)
			}
		case "function_definition":
			py.emitFunc(child, st, parentQualified)
			*fnNodes = append(*fnNodes, child)
		case "decorated_definition":
			for j := 0; j < int(child.NamedChildCount()); j++ {
				inner := child.NamedChild(j)
				switch inner.Type() {
				case "function_definition":
					py.emitFunc(inner, st, parentQualified)
					*fnNodes = append(*fnNodes, inner)
				case "class_definition":
					qualified := py.emitClass(inner, st, parentQualified)
					if body := inner.ChildByFieldName("body"); body != nil {
						py.walk(body, st, qualified, fnNodes)
					}
				}
			}
		default:
			py.walk(child, st, parentQualified, fnNodes)
		}
	}
}

func (py *PythonExtractor) emitClass(n *sitter.Node, st *pyWalkState, parentQualified string) string {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return parentQualified
	}
	name := string(st.content[nameNode.StartByte():nameNode.EndByte()])
	qualified := name
	if parentQualified != "" {
		qualified = parentQualified + "." + name
	}
	start := n.StartPoint()
	end := n.EndPoint()
	id := model.NewNodeID(st.projectID, qualified, st.filePath, int(n.StartByte()))
	text := truncateContent(string(st.content[n.StartByte():n.EndByte()]))
	st.nodes = append(st.nodes, model.Node{
		ID:            id,
		Name:          name,
		QualifiedName: qualified,
		Kind:          model.KindClass,
		Language:      model.LangPython,
		Location: model.Location{
			FilePath: st.filePath, StartLine: int(start.Row) + 1, StartCol: int(start.Column) + 1,
			EndLine: int(end.Row) + 1, EndCol: int(end.Column) + 1,
		},
		Span:        model.Span{Start: int(n.StartByte()), End: int(n.EndByte())},
		Content:     text,
		Attributes:  map[string]string{},
		ContentHash: model.ContentHash(text),
		CreatedAt:   st.now,
		UpdatedAt:   st.now,
	})
	return qualified
}

func (py *PythonExtractor) emitFunc(n *sitter.Node, st *pyWalkState, parentQualified string) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := string(st.content[nameNode.StartByte():nameNode.EndByte()])
	qualified := name
	kind := model.KindFunction
	if parentQualified != "" {
		qualified = parentQualified + "." + name
		kind = model.KindMethod
	}
	start := n.StartPoint()
	end := n.EndPoint()
	id := model.NewNodeID(st.projectID, qualified, st.filePath, int(n.StartByte()))
	text := truncateContent(string(st.content[n.StartByte():n.EndByte()]))
	complexity := cyclomaticComplexityText(text, []string{"if ", "elif ", "for ", "while ", "except ", " and ", " or "})

	st.nodes = append(st.nodes, model.Node{
		ID:            id,
		Name:          name,
		QualifiedName: qualified,
		Kind:          kind,
		Language:      model.LangPython,
		Location: model.Location{
			FilePath: st.filePath, StartLine: int(start.Row) + 1, StartCol: int(start.Column) + 1,
			EndLine: int(end.Row) + 1, EndCol: int(end.Column) + 1,
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

func (py *PythonExtractor) walkCalls(fnNode *sitter.Node, st *pyWalkState, callerID model.ID) {
	body := fnNode.ChildByFieldName("body")
	if body == nil {
		return
	}
	seen := make(map[model.ID]bool)
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n == nil {
			return
		}
		if n.Type() == "call" {
			if fn := n.ChildByFieldName("function"); fn != nil {
				name := py.calleeName(fn, st.content)
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

func (py *PythonExtractor) calleeName(n *sitter.Node, content []byte) string {
	if n == nil {
		return ""
	}
	switch n.Type() {
	case "identifier":
		return string(content[n.StartByte():n.EndByte()])
	case "attribute":
		if attr := n.ChildByFieldName("attribute"); attr != nil {
			return string(content[attr.StartByte():attr.EndByte()])
		}
	}
	return ""
}

func (py *PythonExtractor) walkImports(root *sitter.Node, st *pyWalkState, moduleID model.ID) {
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n == nil {
			return
		}
		switch n.Type() {
		case "import_statement":
			for i := 0; i < int(n.NamedChildCount()); i++ {
				child := n.NamedChild(i)
				spec := string(st.content[child.StartByte():child.EndByte()])
				py.emitImport(st, moduleID, spec, int(n.StartByte()))
			}
		case "import_from_statement":
			if module := n.ChildByFieldName("module_name"); module != nil {
				spec := string(st.content[module.StartByte():module.EndByte()])
				py.emitImport(st, moduleID, spec, int(n.StartByte()))
			}
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(root)
}

func (py *PythonExtractor) emitImport(st *pyWalkState, moduleID model.ID, spec string, pos int) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return
	}
	sym := model.ExternalImportTarget(model.LangPython, spec)
	st.edges = append(st.edges, model.Edge{
		ID:       model.NewEdgeID(moduleID, sym, model.EdgeImports, st.filePath, pos),
		From:     moduleID,
		ToSymbol: sym,
		Type:     model.EdgeImports,
		Weight:   model.DefaultEdgeWeight,
		FilePath: st.filePath,
	})
}
