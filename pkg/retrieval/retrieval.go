// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: Apache-2.0

// Package retrieval is the Hybrid Retriever (H): it fuses the Vector
// Store's semantic search with a cheap keyword prefetch over the Graph
// Store, expands the strongest hits one hop along the dependency graph,
// and re-ranks the merged candidate set before handing results to the
// Agent Orchestrator or an external RPC caller.
package retrieval

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kraklabs/codegraph/pkg/embedding"
	"github.com/kraklabs/codegraph/pkg/graph"
	"github.com/kraklabs/codegraph/pkg/model"
	"github.com/kraklabs/codegraph/pkg/vector"
)

// RetrievalConfig externalizes every constant the four-step algorithm
// uses, resolving spec §9's open question in favor of configurability
// over hardcoding.
type RetrievalConfig struct {
	MaxKeywords          int
	SemanticWeight       float64
	KeywordWeight        float64
	NameMatchWeight      float64
	ContentMatchWeight   float64
	TypeMatchWeight      float64
	ExpandTopN           int
	MaxNeighborsPerSeed  int
	NeighborScore        float64
	TypeBoostFunction     float64
	TypeBoostStructLike   float64
	TypeBoostDefault      float64
	DiversityPenalty      float64
	RelevanceThreshold    float64
	TopN                  int
	SemanticCandidates    int
}

func DefaultRetrievalConfig() RetrievalConfig {
	return RetrievalConfig{
		MaxKeywords:         5,
		SemanticWeight:      0.7,
		KeywordWeight:       0.3,
		NameMatchWeight:     3,
		ContentMatchWeight:  2,
		TypeMatchWeight:     1,
		ExpandTopN:          3,
		MaxNeighborsPerSeed: 8,
		NeighborScore:       0.25,
		TypeBoostFunction:   1.2,
		TypeBoostStructLike: 1.1,
		TypeBoostDefault:    1.0,
		DiversityPenalty:    0.05,
		RelevanceThreshold:  0.1,
		TopN:                10,
		SemanticCandidates:  30,
	}
}

// Result is a single ranked hit, shaped for direct use as an Agent
// Orchestrator citation.
type Result struct {
	NodeID    model.ID
	Name      string
	FilePath  string
	Line      int
	EndLine   int
	Relevance float64
}

// Retriever ties the Graph Store, Vector Store, and an embedding
// pipeline together to answer natural-language queries with ranked code
// entities.
type Retriever struct {
	graph  *graph.Store
	vec    *vector.Store
	embed  *embedding.Pipeline
	cfg    RetrievalConfig
}

func New(g *graph.Store, v *vector.Store, embed *embedding.Pipeline, cfg RetrievalConfig) *Retriever {
	return &Retriever{graph: g, vec: v, embed: embed, cfg: cfg}
}

type candidate struct {
	node      model.Node
	semantic  float64
	keyword   float64
	hybrid    float64
	fromSeed  bool
}

// Retrieve runs the full four-step hybrid retrieval algorithm and
// returns the top-N ranked results.
func (r *Retriever) Retrieve(ctx context.Context, query string) ([]Result, error) {
	qvec, err := r.embed.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("retrieval: embed query: %w", err)
	}

	semanticHits, err := r.vec.Search(ctx, qvec, r.cfg.SemanticCandidates)
	if err != nil {
		return nil, fmt.Errorf("retrieval: semantic search: %w", err)
	}

	candidates := make(map[model.ID]*candidate, len(semanticHits))
	for _, hit := range semanticHits {
		n, ok := r.graph.GetNode(hit.NodeID)
		if !ok {
			continue
		}
		candidates[n.ID] = &candidate{node: n, semantic: hit.Score}
	}

	keywords := extractKeywords(query, r.cfg.MaxKeywords)
	allNodes := r.graph.AllNodes()
	for _, kw := range keywords {
		for _, n := range allNodes {
			// keywords are lowercased, so names are matched case-insensitively
			if !strings.EqualFold(n.Name, kw) && !strings.EqualFold(n.QualifiedName, kw) {
				continue
			}
			score := r.keywordScore(n, kw)
			if c, ok := candidates[n.ID]; ok {
				c.keyword += score
			} else {
				candidates[n.ID] = &candidate{node: n, keyword: score}
			}
		}
	}
	if len(keywords) > 0 {
		for _, c := range candidates {
			c.keyword /= float64(len(keywords))
		}
	}

	for _, c := range candidates {
		c.hybrid = r.cfg.SemanticWeight*c.semantic + r.cfg.KeywordWeight*c.keyword
	}

	seeds := topCandidates(candidates, r.cfg.ExpandTopN)
	for _, seed := range seeds {
		neighbors := r.graph.Neighbors(seed.node.ID)
		added := 0
		for _, nid := range neighbors {
			if added >= r.cfg.MaxNeighborsPerSeed {
				break
			}
			if c, ok := candidates[nid]; ok {
				if c.hybrid < r.cfg.NeighborScore {
					c.hybrid = r.cfg.NeighborScore
					c.fromSeed = true
					added++
				}
				continue
			}
			n, ok := r.graph.GetNode(nid)
			if !ok {
				continue
			}
			candidates[nid] = &candidate{node: n, hybrid: r.cfg.NeighborScore, fromSeed: true}
			added++
		}
	}

	ranked := r.rank(candidates)
	return ranked, nil
}

func (r *Retriever) keywordScore(n model.Node, keyword string) float64 {
	kw := strings.ToLower(keyword)
	var score float64
	if strings.Contains(strings.ToLower(n.Name), kw) {
		score += r.cfg.NameMatchWeight
	}
	if strings.Contains(strings.ToLower(n.Content), kw) {
		score += r.cfg.ContentMatchWeight
	}
	if strings.Contains(strings.ToLower(n.Kind.String()), kw) {
		score += r.cfg.TypeMatchWeight
	}
	return score
}

func topCandidates(candidates map[model.ID]*candidate, n int) []*candidate {
	all := make([]*candidate, 0, len(candidates))
	for _, c := range candidates {
		all = append(all, c)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].hybrid > all[j].hybrid })
	if n > len(all) {
		n = len(all)
	}
	return all[:n]
}

// rank applies the post-pass: type boosts, a directory/language
// diversity penalty for repeated sources, the relevance threshold
// cutoff, and the final top-N truncation.
func (r *Retriever) rank(candidates map[model.ID]*candidate) []Result {
	all := make([]*candidate, 0, len(candidates))
	for _, c := range candidates {
		all = append(all, c)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].hybrid > all[j].hybrid })

	seenDirs := make(map[string]int)
	out := make([]Result, 0, r.cfg.TopN)
	for _, c := range all {
		score := c.hybrid * r.typeBoost(c.node.Kind)

		dirKey := filepath.Dir(filepath.ToSlash(c.node.Location.FilePath)) + "|" + string(c.node.Language)
		penalty := float64(seenDirs[dirKey]) * r.cfg.DiversityPenalty
		score -= penalty
		seenDirs[dirKey]++

		if score < r.cfg.RelevanceThreshold {
			continue
		}

		out = append(out, Result{
			NodeID:    c.node.ID,
			Name:      c.node.Name,
			FilePath:  c.node.Location.FilePath,
			Line:      c.node.Location.StartLine,
			EndLine:   c.node.Location.EndLine,
			Relevance: score,
		})
		if len(out) >= r.cfg.TopN {
			break
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Relevance > out[j].Relevance })
	return out
}

func (r *Retriever) typeBoost(k model.Kind) float64 {
	switch k {
	case model.KindFunction, model.KindMethod:
		return r.cfg.TypeBoostFunction
	case model.KindStruct, model.KindTrait, model.KindInterface:
		return r.cfg.TypeBoostStructLike
	default:
		return r.cfg.TypeBoostDefault
	}
}

var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "is": true, "are": true, "of": true,
	"to": true, "in": true, "for": true, "and": true, "or": true, "how": true,
	"what": true, "does": true, "do": true, "this": true, "that": true,
}

// extractKeywords takes the first maxKeywords non-stopword tokens from
// query, in order — a simple prefetch signal, not a relevance ranker.
func extractKeywords(query string, maxKeywords int) []string {
	fields := strings.Fields(query)
	out := make([]string, 0, maxKeywords)
	for _, f := range fields {
		token := strings.ToLower(strings.Trim(f, ".,!?;:()[]{}\"'"))
		if token == "" || stopwords[token] {
			continue
		}
		out = append(out, token)
		if len(out) >= maxKeywords {
			break
		}
	}
	return out
}
