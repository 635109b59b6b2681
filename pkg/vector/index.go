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

// Package vector is the Vector Store (V): semantic search over code-entity
// embeddings, sharded by language/path, backed by a pluggable index
// (exact, inverted-list, HNSW graph, or a remote Qdrant collection).
package vector

import (
	"context"
	"math"
	"sort"
)

// Vector is a dense embedding.
type Vector = []float32

// ScoredID pairs a local id with its similarity score to a query vector.
type ScoredID struct {
	LocalID uint64
	Score   float64
}

// Index is the minimal contract every index kind implements. LocalID is
// the small dense integer key a higher layer maps to a model.ID — indices
// never see node identity directly, only the surrogate key (spec §5.3's
// persisted local_id<->node_id mapping lives one layer up, in Store).
type Index interface {
	Add(id uint64, v Vector) error
	Remove(id uint64) error
	Search(ctx context.Context, q Vector, k int) ([]ScoredID, error)
	Len() int
}

// ExactIndex does brute-force cosine search — correct, O(n), suited to
// small shards where an approximate index isn't worth the build cost.
// Store uses it when StoreConfig.IndexKind is IndexExact.
type ExactIndex struct {
	vectors map[uint64]Vector
}

func NewExactIndex() *ExactIndex {
	return &ExactIndex{vectors: make(map[uint64]Vector)}
}

func (e *ExactIndex) Add(id uint64, v Vector) error {
	e.vectors[id] = v
	return nil
}

func (e *ExactIndex) Remove(id uint64) error {
	delete(e.vectors, id)
	return nil
}

func (e *ExactIndex) Len() int { return len(e.vectors) }

func (e *ExactIndex) Search(_ context.Context, q Vector, k int) ([]ScoredID, error) {
	out := make([]ScoredID, 0, len(e.vectors))
	for id, v := range e.vectors {
		out = append(out, ScoredID{LocalID: id, Score: cosine(q, v)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if k > 0 && len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func cosine(a, b Vector) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
