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
	"github.com/smacker/go-tree-sitter/rust"

	"github.com/kraklabs/codegraph/pkg/model"
)

// RustExtractor extracts functions, structs, traits, enums, and impl blocks
// from Rust source using the tree-sitter-rust grammar, and resolves
// `crate::`/`self::`/`super::` use-paths relative to the current module
// (spec §9: "Rust: crate::/self::/super:: linker rules").
type RustExtractor struct {
	parser *sitter.Parser
}

func NewRustExtractor() *RustExtractor {
	p := sitter.NewParser()
	p.SetLanguage(rust.GetLanguage())
	return &RustExtractor{parser: p}
}

func (r *RustExtractor) Language() model.Language { return model.LangRust }

type rustWalkState struct {
	projectID string
	filePath  string
	modName   string
	content   []byte
	nodes     []model.Node
	edges     []model.Edge
	nameToID  map[string]model.ID
	now       time.Time
}

func (r *RustExtractor) Extract(projectID, filePath string, content []byte) (*ExtractionResult, error) {
	tree, err := r.parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return nil, fmt.Errorf("parser: rust: tree-sitter parse %s: %w", filePath, err)
	}
	defer tree.Close()

	modName := strings.TrimSuffix(baseName(filePath), ".rs")
	st := &rustWalkState{
		projectID: projectID,
		filePath:  filePath,
		modName:   modName,
		content:   content,
		nameToID:  make(map[string]model.ID),
		now:       time.Now().UTC(),
	}

	moduleID := r.emitModuleNode(st, modName)

	root := tree.RootNode()
	var fnNodes []*sitter.Node
	r.walkRoot(root, st, "", &fnNodes)
	r.walkUses(root, st, moduleID)

	for _, n := range fnNodes {
		name := fieldText(n, "name", content)
		callerID := model.NewNodeID(projectID, st.modName+"::"+name, filePath, int(n.StartByte()))
		r.walkCalls(n, st, callerID)
	}

	return &ExtractionResult{Nodes: st.nodes, Edges: st.edges}, nil
}

// emitModuleNode synthesizes the module node for this file (spec §4.1 step 1:
// "for each source file without an explicit module/package node, synthesize
// one"), mirroring GoExtractor.emitModuleNode. linker.go's linkFile wires the
// Contains edge from this node to every other node extracted from the file.
func (r *RustExtractor) emitModuleNode(st *rustWalkState, modName string) model.ID {
	qn := model.ModuleKey(model.LangRust, modName)
	id := model.NewNodeID(st.projectID, qn, st.filePath, 0)
	st.nodes = append(st.nodes, model.Node{
		ID:            id,
		Name:          modName,
		QualifiedName: qn,
		Kind:          model.KindModule,
		Language:      model.LangRust,
		Location:      model.Location{FilePath: st.filePath},
		CreatedAt:     st.now,
		UpdatedAt:     st.now,
	})
	return id
}

func baseName(path string) string {
	path = model.NormalizePath(path)
	if idx := strings.LastIndex(path, "/"); idx >= 0 {
		return path[idx+1:]
	}
	return path
}

func (r *RustExtractor) walkRoot(n *sitter.Node, st *rustWalkState, implType string, fnNodes *[]*sitter.Node) {
	if n == nil {
		return
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case "function_item":
			r.emitFunc(child, st, implType, fnNodes)
		case "struct_item":
			r.emitType(child, st, model.KindStruct)
		case "trait_item":
			r.emitType(child, st, model.KindTrait)
			if body := child.ChildByFieldName("body"); body != nil {
				r.walkRoot(body, st, fieldText(child, "name", st.content), fnNodes)
			}
		case "enum_item":
			r.emitType(child, st, model.KindEnum)
		case "impl_item":
			implName := r.implTypeName(child, st.content)
			if body := child.ChildByFieldName("body"); body != nil {
				r.walkRoot(body, st, implName, fnNodes)
			}
		case "mod_item":
			if body := child.ChildByFieldName("body"); body != nil {
				r.walkRoot(body, st, implType, fnNodes)
			}
		default:
			r.walkRoot(child, st, implType, fnNodes)
		}
	}
}

func (r *RustExtractor) implTypeName(n *sitter.Node, content []byte) string {
	if typeNode := n.ChildByFieldName("type"); typeNode != nil {
		return string(content[typeNode.StartByte():typeNode.EndByte()])
	}
	return ""
}

func (r *RustExtractor) emitFunc(n *sitter.Node, st *rustWalkState, implType string, fnNodes *[]*sitter.Node) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := string(st.content[nameNode.StartByte():nameNode.EndByte()])
	qualified := st.modName + "::" + name
	kind := model.KindFunction
	if implType != "" {
		qualified = st.modName + "::" + implType + "::" + name
		kind = model.KindMethod
	}
	start := n.StartPoint()
	end := n.EndPoint()
	id := model.NewNodeID(st.projectID, qualified, st.filePath, int(n.StartByte()))
	text := truncateContent(string(st.content[n.StartByte():n.EndByte()]))
	complexity := cyclomaticComplexityText(text, []string{"if ", "else if ", "for ", "while ", "match ", " && ", " || "})

	st.nodes = append(st.nodes, model.Node{
		ID:            id,
		Name:          name,
		QualifiedName: qualified,
		Kind:          kind,
		Language:      model.LangRust,
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
	*fnNodes = append(*fnNodes, n)
}

func (r *RustExtractor) emitType(n *sitter.Node, st *rustWalkState, kind model.Kind) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := string(st.content[nameNode.StartByte():nameNode.EndByte()])
	qualified := st.modName + "::" + name
	start := n.StartPoint()
	end := n.EndPoint()
	id := model.NewNodeID(st.projectID, qualified, st.filePath, int(n.StartByte()))
	text := truncateContent(string(st.content[n.StartByte():n.EndByte()]))

	st.nodes = append(st.nodes, model.Node{
		ID:            id,
		Name:          name,
		QualifiedName: qualified,
		Kind:          kind,
		Language:      model.LangRust,
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
}

func (r *RustExtractor) walkCalls(fnNode *sitter.Node, st *rustWalkState, callerID model.ID) {
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
		if n.Type() == "call_expression" {
			if fn := n.ChildByFieldName("function"); fn != nil {
				name := r.calleeName(fn, st.content)
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

func (r *RustExtractor) calleeName(n *sitter.Node, content []byte) string {
	if n == nil {
		return ""
	}
	switch n.Type() {
	case "identifier":
		return string(content[n.StartByte():n.EndByte()])
	case "field_expression":
		if field := n.ChildByFieldName("field"); field != nil {
			return string(content[field.StartByte():field.EndByte()])
		}
	case "scoped_identifier":
		if name := n.ChildByFieldName("name"); name != nil {
			return string(content[name.StartByte():name.EndByte()])
		}
	}
	return ""
}

// walkUses extracts `use` declarations and resolves crate::/self::/super::
// prefixes to module-relative import targets.
func (r *RustExtractor) walkUses(root *sitter.Node, st *rustWalkState, moduleID model.ID) {
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n == nil {
			return
		}
		if n.Type() == "use_declaration" {
			for i := 0; i < int(n.NamedChildCount()); i++ {
				arg := n.NamedChild(i)
				spec := string(st.content[arg.StartByte():arg.EndByte()])
				resolved := resolveRustUsePath(spec, st.modName)
				sym := model.ExternalImportTarget(model.LangRust, resolved)
				st.edges = append(st.edges, model.Edge{
					ID:       model.NewEdgeID(moduleID, sym, model.EdgeImports, st.filePath, int(n.StartByte())),
					From:     moduleID,
					ToSymbol: sym,
					Type:     model.EdgeImports,
					Weight:   model.DefaultEdgeWeight,
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

// resolveRustUsePath rewrites a crate::/self::/super:: prefixed use-path into
// a module-relative path for the linker to match against known modules.
func resolveRustUsePath(spec, currentMod string) string {
	switch {
	case strings.HasPrefix(spec, "crate::"):
		return strings.TrimPrefix(spec, "crate::")
	case strings.HasPrefix(spec, "self::"):
		return currentMod + "::" + strings.TrimPrefix(spec, "self::")
	case strings.HasPrefix(spec, "super::"):
		return strings.TrimPrefix(spec, "super::")
	default:
		return spec
	}
}
