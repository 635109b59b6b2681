// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"context"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kraklabs/codegraph/pkg/graph"
	"github.com/kraklabs/codegraph/pkg/model"
	"github.com/kraklabs/codegraph/pkg/retrieval"
)

// ToolFunc is the signature every orchestrator tool implements, mirroring
// the teacher's pkg/tools function shape (args in, *ToolResult out).
type ToolFunc func(ctx context.Context, args map[string]any) (*ToolResult, error)

// Toolset dispatches the orchestrator's tool calls to the Graph Store,
// Vector Store, and Hybrid Retriever — the generalization of the
// teacher's pkg/tools package away from CozoDB's Querier/Datalog
// indirection.
type Toolset struct {
	graph     *graph.Store
	retriever *retrieval.Retriever
}

func NewToolset(g *graph.Store, r *retrieval.Retriever) *Toolset {
	return &Toolset{graph: g, retriever: r}
}

// Names is the fixed tool set the Agent Orchestrator exposes, in the
// order spec §5.7 lists them.
func (t *Toolset) Names() []string {
	return []string{
		"semantic_code_search", "find_nodes_by_name", "get_neighbors",
		"get_reverse_dependencies", "get_transitive_dependencies",
		"calculate_coupling_metrics", "detect_cycles", "get_hub_nodes",
		"trace_call_chain", "find_complexity_hotspots", "read_file",
		"get_top_directories",
	}
}

// RetrieveCitations runs the hybrid retriever directly and converts its
// ranked results into citations, for the orchestrator to attach to a
// final answer.
func (t *Toolset) RetrieveCitations(ctx context.Context, query string) []Citation {
	results, err := t.retriever.Retrieve(ctx, query)
	if err != nil {
		return nil
	}
	citations := make([]Citation, 0, len(results))
	for _, r := range results {
		citations = append(citations, Citation{
			NodeID:    r.NodeID,
			Name:      r.Name,
			FilePath:  r.FilePath,
			Line:      r.Line,
			EndLine:   r.EndLine,
			Relevance: r.Relevance,
		})
	}
	return citations
}

func (t *Toolset) Registry() map[string]ToolFunc {
	return map[string]ToolFunc{
		"semantic_code_search":       t.semanticCodeSearch,
		"find_nodes_by_name":         t.findNodesByName,
		"get_neighbors":              t.getNeighbors,
		"get_reverse_dependencies":   t.getReverseDependencies,
		"get_transitive_dependencies": t.getTransitiveDependencies,
		"calculate_coupling_metrics": t.calculateCouplingMetrics,
		"detect_cycles":              t.detectCycles,
		"get_hub_nodes":              t.getHubNodes,
		"trace_call_chain":           t.traceCallChain,
		"find_complexity_hotspots":   t.findComplexityHotspots,
		"read_file":                  t.readFile,
		"get_top_directories":        t.getTopDirectories,
	}
}

func argString(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}

func argInt(args map[string]any, key string, def int) int {
	switch v := args[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return def
	}
}

func parseNodeID(s string) (model.ID, error) {
	var id model.ID
	b, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil || len(b) != len(id) {
		return id, fmt.Errorf("malformed node id %q", s)
	}
	copy(id[:], b)
	return id, nil
}

func (t *Toolset) semanticCodeSearch(ctx context.Context, args map[string]any) (*ToolResult, error) {
	query := argString(args, "query")
	if query == "" {
		return NewError("semantic_code_search requires a query"), nil
	}
	results, err := t.retriever.Retrieve(ctx, query)
	if err != nil {
		return NewError(fmt.Sprintf("semantic search failed: %v", err)), nil
	}
	var sb strings.Builder
	for i, r := range results {
		fmt.Fprintf(&sb, "%d. %s (%s:%d-%d) relevance=%.3f\n", i+1, r.Name, r.FilePath, r.Line, r.EndLine, r.Relevance)
	}
	if sb.Len() == 0 {
		return NewResult("no matches"), nil
	}
	return NewResult(sb.String()), nil
}

func (t *Toolset) findNodesByName(_ context.Context, args map[string]any) (*ToolResult, error) {
	name := argString(args, "name")
	nodes := t.graph.FindNodesByName(name)
	var sb strings.Builder
	for _, n := range nodes {
		fmt.Fprintf(&sb, "%s %s %s (%s)\n", n.ID, n.Kind, n.Name, n.Location.FilePath)
	}
	if sb.Len() == 0 {
		return NewResult("no nodes found"), nil
	}
	return NewResult(sb.String()), nil
}

func (t *Toolset) getNeighbors(_ context.Context, args map[string]any) (*ToolResult, error) {
	id, err := parseNodeID(argString(args, "node_id"))
	if err != nil {
		return NewError(err.Error()), nil
	}
	neighbors := t.graph.Neighbors(id)
	var sb strings.Builder
	for _, nid := range neighbors {
		n, ok := t.graph.GetNode(nid)
		if !ok {
			continue
		}
		fmt.Fprintf(&sb, "%s %s (%s)\n", n.ID, n.Name, n.Location.FilePath)
	}
	if sb.Len() == 0 {
		return NewResult("no neighbors"), nil
	}
	return NewResult(sb.String()), nil
}

func (t *Toolset) getReverseDependencies(_ context.Context, args map[string]any) (*ToolResult, error) {
	id, err := parseNodeID(argString(args, "node_id"))
	if err != nil {
		return NewError(err.Error()), nil
	}
	opts := graph.TraverseOptions{MaxDepth: argInt(args, "depth", 1), MaxNodes: 200}
	if et := argString(args, "edge_type"); et != "" {
		typ, ok := model.ParseEdgeType(et)
		if !ok {
			return NewError(fmt.Sprintf("unknown edge_type %q", et)), nil
		}
		opts.EdgeTypes = []model.EdgeType{typ}
	}
	nodes := t.graph.BFSReverse(id, opts)
	var sb strings.Builder
	for _, n := range nodes {
		fmt.Fprintf(&sb, "%s %s (%s)\n", n.ID, n.Name, n.Location.FilePath)
	}
	if sb.Len() == 0 {
		return NewResult("no reverse dependencies"), nil
	}
	return NewResult(sb.String()), nil
}

func (t *Toolset) getTransitiveDependencies(_ context.Context, args map[string]any) (*ToolResult, error) {
	id, err := parseNodeID(argString(args, "node_id"))
	if err != nil {
		return NewError(err.Error()), nil
	}
	maxDepth := argInt(args, "max_depth", 5)
	nodes := t.graph.BFS(id, graph.TraverseOptions{MaxDepth: maxDepth, MaxNodes: 200})
	var sb strings.Builder
	for _, n := range nodes {
		fmt.Fprintf(&sb, "%s %s (%s)\n", n.ID, n.Name, n.Location.FilePath)
	}
	if sb.Len() == 0 {
		return NewResult("no transitive dependencies"), nil
	}
	return NewResult(sb.String()), nil
}

func (t *Toolset) calculateCouplingMetrics(_ context.Context, _ map[string]any) (*ToolResult, error) {
	metrics := t.graph.CalculateCouplingMetrics()
	sort.Slice(metrics, func(i, j int) bool { return metrics[i].Instability > metrics[j].Instability })
	var sb strings.Builder
	limit := 20
	for i, m := range metrics {
		if i >= limit {
			break
		}
		fmt.Fprintf(&sb, "%s ca=%d ce=%d instability=%.3f\n", m.NodeID, m.AfferentCoupling, m.EfferentCoupling, m.Instability)
	}
	if sb.Len() == 0 {
		return NewResult("no coupling data"), nil
	}
	return NewResult(sb.String()), nil
}

func (t *Toolset) detectCycles(_ context.Context, _ map[string]any) (*ToolResult, error) {
	cycles := t.graph.DetectCycles(nil)
	if len(cycles) == 0 {
		return NewResult("no cycles detected"), nil
	}
	var sb strings.Builder
	for i, cycle := range cycles {
		fmt.Fprintf(&sb, "cycle %d: ", i+1)
		parts := make([]string, 0, len(cycle))
		for _, id := range cycle {
			parts = append(parts, id.String())
		}
		sb.WriteString(strings.Join(parts, " -> "))
		sb.WriteString("\n")
	}
	return NewResult(sb.String()), nil
}

func (t *Toolset) getHubNodes(_ context.Context, args map[string]any) (*ToolResult, error) {
	minDegree := argInt(args, "min_degree", 5)
	nodes := t.graph.GetHubNodes(minDegree)
	var sb strings.Builder
	for _, n := range nodes {
		fmt.Fprintf(&sb, "%s %s (%s)\n", n.ID, n.Name, n.Location.FilePath)
	}
	if sb.Len() == 0 {
		return NewResult("no hub nodes"), nil
	}
	return NewResult(sb.String()), nil
}

func (t *Toolset) traceCallChain(_ context.Context, args map[string]any) (*ToolResult, error) {
	from, err := parseNodeID(argString(args, "from_id"))
	if err != nil {
		return NewError(err.Error()), nil
	}
	to, err := parseNodeID(argString(args, "to_id"))
	if err != nil {
		return NewError(err.Error()), nil
	}
	path, ok := t.graph.ShortestPath(from, to, 0)
	if !ok {
		return NewResult("no path found"), nil
	}
	parts := make([]string, 0, len(path.Nodes))
	for _, id := range path.Nodes {
		n, found := t.graph.GetNode(id)
		if !found {
			continue
		}
		parts = append(parts, n.Name)
	}
	return NewResult(strings.Join(parts, " -> ")), nil
}

func (t *Toolset) findComplexityHotspots(_ context.Context, args map[string]any) (*ToolResult, error) {
	limit := argInt(args, "limit", 10)
	hotspots := t.graph.FindComplexityHotspots(limit)
	var sb strings.Builder
	for _, h := range hotspots {
		fmt.Fprintf(&sb, "%s risk=%.2f complexity=%.2f\n", h.NodeID, h.Risk, h.Complexity)
	}
	if sb.Len() == 0 {
		return NewResult("no hotspots"), nil
	}
	return NewResult(sb.String()), nil
}

func (t *Toolset) readFile(_ context.Context, args map[string]any) (*ToolResult, error) {
	id, err := parseNodeID(argString(args, "node_id"))
	if err != nil {
		return NewError(err.Error()), nil
	}
	n, ok := t.graph.GetNode(id)
	if !ok {
		return NewError("node not found"), nil
	}
	if n.Content == "" {
		return NewResult(fmt.Sprintf("(no stored content for %s)", n.Location.FilePath)), nil
	}
	return NewResult(n.Content), nil
}

func (t *Toolset) getTopDirectories(_ context.Context, args map[string]any) (*ToolResult, error) {
	limit := argInt(args, "limit", 10)
	counts := make(map[string]int)
	for _, n := range t.graph.AllNodes() {
		dir := filepath.ToSlash(filepath.Dir(n.Location.FilePath))
		if i := strings.IndexByte(dir, '/'); i >= 0 {
			dir = dir[:i]
		}
		counts[dir]++
	}
	type dirCount struct {
		dir   string
		count int
	}
	all := make([]dirCount, 0, len(counts))
	for d, c := range counts {
		all = append(all, dirCount{d, c})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].count > all[j].count })
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	var sb strings.Builder
	for _, dc := range all {
		fmt.Fprintf(&sb, "%s: %d nodes\n", dc.dir, dc.count)
	}
	if sb.Len() == 0 {
		return NewResult("no directories"), nil
	}
	return NewResult(sb.String()), nil
}
