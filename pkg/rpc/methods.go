// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: Apache-2.0

package rpc

import (
	"bufio"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/kraklabs/codegraph/pkg/contract"
	"github.com/kraklabs/codegraph/pkg/graph"
	"github.com/kraklabs/codegraph/pkg/model"
	"github.com/kraklabs/codegraph/pkg/retrieval"
)

// Dispatcher wires the six RPC methods to the Graph Store, the Hybrid
// Retriever, and the repository's checked-out source tree. RepoRoot
// bounds code.read/code.patch to the project directory.
type Dispatcher struct {
	Graph     *graph.Store
	Retriever *retrieval.Retriever
	RepoRoot  string
}

func NewDispatcher(g *graph.Store, r *retrieval.Retriever, repoRoot string) *Dispatcher {
	return &Dispatcher{Graph: g, Retriever: r, RepoRoot: repoRoot}
}

// Methods returns the fixed method table from spec §6.1.
func (d *Dispatcher) Methods() map[string]MethodFunc {
	return map[string]MethodFunc{
		"vector.search":  d.vectorSearch,
		"graph.neighbors": d.graphNeighbors,
		"graph.traverse": d.graphTraverse,
		"code.read":      d.codeRead,
		"code.patch":     d.codePatch,
		"test.run":       d.testRun,
	}
}

func decodeParams(params json.RawMessage, v interface{}) error {
	if len(params) == 0 {
		return nil
	}
	return json.Unmarshal(params, v)
}

func parseID(s string) (model.ID, error) {
	var id model.ID
	b, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil || len(b) != len(id) {
		return id, fmt.Errorf("malformed node id %q", s)
	}
	copy(id[:], b)
	return id, nil
}

// resolvePath joins a project-relative path onto RepoRoot and rejects
// any result that escapes it.
func (d *Dispatcher) resolvePath(rel string) (string, error) {
	clean := filepath.Join(d.RepoRoot, rel)
	root := filepath.Clean(d.RepoRoot)
	if clean != root && !strings.HasPrefix(clean, root+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes project root", rel)
	}
	return clean, nil
}

type searchResultItem struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Path     string  `json:"path"`
	NodeType string  `json:"node_type"`
	Language string  `json:"language"`
	Summary  string  `json:"summary"`
	Score    float64 `json:"score"`
}

func (d *Dispatcher) vectorSearch(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p struct {
		Query string   `json:"query"`
		Paths []string `json:"paths"`
		Langs []string `json:"langs"`
		Limit int      `json:"limit"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, NewError(CodeInvalidParams, err.Error())
	}
	if p.Query == "" {
		return nil, NewError(CodeInvalidParams, "query is required")
	}
	if p.Limit <= 0 {
		p.Limit = 10
	}

	results, err := d.Retriever.Retrieve(ctx, p.Query)
	if err != nil {
		return nil, NewError(CodeInternal, err.Error())
	}

	pathFilter := toSet(p.Paths)
	langFilter := toSet(p.Langs)

	out := make([]searchResultItem, 0, len(results))
	for _, r := range results {
		if len(pathFilter) > 0 && !matchesAnyPrefix(r.FilePath, pathFilter) {
			continue
		}
		n, ok := d.Graph.GetNode(r.NodeID)
		lang := ""
		if ok {
			lang = string(n.Language)
		}
		if len(langFilter) > 0 && !langFilter[lang] {
			continue
		}
		out = append(out, searchResultItem{
			ID:       r.NodeID.String(),
			Name:     r.Name,
			Path:     r.FilePath,
			NodeType: nodeKindOf(n, ok),
			Language: lang,
			Summary:  summarize(n.Content, 160),
			Score:    r.Relevance,
		})
		if len(out) >= p.Limit {
			break
		}
	}
	return map[string]interface{}{"results": out}, nil
}

func nodeKindOf(n model.Node, ok bool) string {
	if !ok {
		return ""
	}
	return n.Kind.String()
}

func summarize(content string, max int) string {
	content = strings.TrimSpace(content)
	if len(content) <= max {
		return content
	}
	return content[:max] + "..."
}

func toSet(items []string) map[string]bool {
	if len(items) == 0 {
		return nil
	}
	set := make(map[string]bool, len(items))
	for _, it := range items {
		set[it] = true
	}
	return set
}

func matchesAnyPrefix(path string, prefixes map[string]bool) bool {
	for p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

type neighborItem struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Path     string `json:"path"`
	NodeType string `json:"node_type"`
	Language string `json:"language"`
	Depth    int    `json:"depth"`
}

func (d *Dispatcher) graphNeighbors(_ context.Context, params json.RawMessage) (interface{}, error) {
	var p struct {
		Node  string `json:"node"`
		Limit int    `json:"limit"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, NewError(CodeInvalidParams, err.Error())
	}
	id, err := parseID(p.Node)
	if err != nil {
		return nil, NewError(CodeInvalidParams, err.Error())
	}
	if p.Limit <= 0 {
		p.Limit = 20
	}

	neighbors := d.Graph.Neighbors(id)
	out := make([]neighborItem, 0, len(neighbors))
	for _, nid := range neighbors {
		n, ok := d.Graph.GetNode(nid)
		if !ok {
			continue
		}
		out = append(out, neighborItem{
			ID: n.ID.String(), Name: n.Name, Path: n.Location.FilePath,
			NodeType: n.Kind.String(), Language: string(n.Language), Depth: 1,
		})
		if len(out) >= p.Limit {
			break
		}
	}
	return map[string]interface{}{"neighbors": out}, nil
}

type traverseNodeItem struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Path     string `json:"path"`
	NodeType string `json:"node_type"`
	Language string `json:"language"`
}

func (d *Dispatcher) graphTraverse(_ context.Context, params json.RawMessage) (interface{}, error) {
	var p struct {
		Start string `json:"start"`
		Depth int    `json:"depth"`
		Limit int    `json:"limit"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, NewError(CodeInvalidParams, err.Error())
	}
	id, err := parseID(p.Start)
	if err != nil {
		return nil, NewError(CodeInvalidParams, err.Error())
	}
	if p.Depth <= 0 {
		p.Depth = 2
	}
	if p.Limit <= 0 {
		p.Limit = 50
	}

	nodes := d.Graph.BFS(id, graph.TraverseOptions{MaxDepth: p.Depth, MaxNodes: p.Limit, IncludeStart: true})
	out := make([]traverseNodeItem, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, traverseNodeItem{
			ID: n.ID.String(), Name: n.Name, Path: n.Location.FilePath,
			NodeType: n.Kind.String(), Language: string(n.Language),
		})
	}
	return map[string]interface{}{"nodes": out}, nil
}

type codeLine struct {
	Line int    `json:"line"`
	Text string `json:"text"`
}

func (d *Dispatcher) codeRead(_ context.Context, params json.RawMessage) (interface{}, error) {
	var p struct {
		Path  string `json:"path"`
		Start int    `json:"start"`
		End   int    `json:"end"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, NewError(CodeInvalidParams, err.Error())
	}
	full, err := d.resolvePath(p.Path)
	if err != nil {
		return nil, NewError(CodeInvalidParams, err.Error())
	}
	f, err := os.Open(full)
	if err != nil {
		return nil, NewError(CodeInternal, err.Error())
	}
	defer f.Close()

	if p.Start <= 0 {
		p.Start = 1
	}
	var lines []codeLine
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if lineNo < p.Start {
			continue
		}
		if p.End > 0 && lineNo > p.End {
			break
		}
		lines = append(lines, codeLine{Line: lineNo, Text: scanner.Text()})
	}
	if err := scanner.Err(); err != nil {
		return nil, NewError(CodeInternal, err.Error())
	}

	return map[string]interface{}{
		"path": p.Path, "start": p.Start, "end": p.End, "lines": lines,
	}, nil
}

func (d *Dispatcher) codePatch(_ context.Context, params json.RawMessage) (interface{}, error) {
	var p struct {
		Path    string `json:"path"`
		Find    string `json:"find"`
		Replace string `json:"replace"`
		DryRun  bool   `json:"dry_run"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, NewError(CodeInvalidParams, err.Error())
	}
	if p.Find == "" {
		return nil, NewError(CodeInvalidParams, "find must not be empty")
	}
	if res := contract.ValidatePatchContent(p.Find, p.Replace); !res.OK {
		return nil, NewError(CodeInvalidParams, res.Message)
	}
	full, err := d.resolvePath(p.Path)
	if err != nil {
		return nil, NewError(CodeInvalidParams, err.Error())
	}

	content, err := os.ReadFile(full)
	if err != nil {
		return nil, NewError(CodeInternal, err.Error())
	}
	replacements := strings.Count(string(content), p.Find)
	if replacements > 0 && !p.DryRun {
		updated := strings.ReplaceAll(string(content), p.Find, p.Replace)
		if err := os.WriteFile(full, []byte(updated), 0o644); err != nil {
			return nil, NewError(CodeInternal, err.Error())
		}
	}

	return map[string]interface{}{
		"path": p.Path, "find": p.Find, "replace": p.Replace,
		"replacements": replacements, "dry_run": p.DryRun,
	}, nil
}

func (d *Dispatcher) testRun(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p struct {
		Package string   `json:"package"`
		Args    []string `json:"args"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, NewError(CodeInvalidParams, err.Error())
	}
	if p.Package == "" {
		p.Package = "./..."
	}

	runCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	args := append([]string{"test", p.Package}, p.Args...)
	cmd := exec.CommandContext(runCtx, "go", args...)
	cmd.Dir = d.RepoRoot

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	status := "pass"
	if err := cmd.Run(); err != nil {
		status = "fail"
	}

	return map[string]interface{}{
		"status": status, "stdout": stdout.String(), "stderr": stderr.String(),
	}, nil
}
