// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: Apache-2.0

package vector

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kraklabs/codegraph/pkg/model"
)

// ShardKey derives the shard a node's embedding lives in. The default
// shards by language, which keeps a shard's vectors homogeneous enough
// for an IVF/HNSW index to train well; callers needing path-based
// sharding (one shard per top-level directory) can supply their own.
type ShardKey func(n model.Node) string

// ByLanguage shards vectors by source language.
func ByLanguage(n model.Node) string { return string(n.Language) }

// ByTopDir shards vectors by the first path component of the file.
func ByTopDir(n model.Node) string {
	p := filepath.ToSlash(n.Location.FilePath)
	if i := indexByte(p, '/'); i >= 0 {
		return p[:i]
	}
	return p
}

func indexByte(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}

// IndexKind selects which Index implementation backs a shard.
type IndexKind int

const (
	IndexExact IndexKind = iota
	IndexIVF
	IndexHNSW
)

// StoreConfig parameterizes the top-level vector Store.
type StoreConfig struct {
	Dir        string // persistence directory for local_id<->node_id mapping
	ShardBy    ShardKey
	IndexKind  IndexKind
	IVFConfig  struct{ NList, NProbe int }
	HNSWConfig GraphIndexConfig
	Quantize   QuantizeConfig
	CacheBytes int64
}

func DefaultStoreConfig(dir string) StoreConfig {
	cfg := StoreConfig{
		Dir:        dir,
		ShardBy:    ByLanguage,
		IndexKind:  IndexHNSW,
		HNSWConfig: DefaultGraphIndexConfig(),
		Quantize:   QuantizeConfig{Precision: PrecisionFP32},
		CacheBytes: 64 << 20,
	}
	cfg.IVFConfig.NList = 64
	cfg.IVFConfig.NProbe = 8
	return cfg
}

type idMapping struct {
	NextLocal uint64            `json:"next_local"`
	ToLocal   map[string]uint64 `json:"to_local"` // model.ID hex -> local id
}

// Store is the Vector Store (V): a sharded collection of in-memory
// per-shard Index backends plus one embedding memoization cache. Only the
// surrogate local_id<->node_id mapping is kept durable on disk (spec
// §6.2's vector/ layout); the shard indices are not persisted, so a
// reopened Store knows its ids but holds no vectors until they are added
// again.
type Store struct {
	cfg   StoreConfig
	cache *EmbedCache

	mu        sync.RWMutex
	shards    map[string]Index
	nextLocal atomic.Uint64
	toLocal   map[model.ID]uint64
	toNode    map[uint64]model.ID
	shardOf   map[uint64]string
}

func NewStore(cfg StoreConfig) (*Store, error) {
	s := &Store{
		cfg:     cfg,
		cache:   NewEmbedCache(cfg.CacheBytes, defaultCacheTTL),
		shards:  make(map[string]Index),
		toLocal: make(map[model.ID]uint64),
		toNode:  make(map[uint64]model.ID),
		shardOf: make(map[uint64]string),
	}
	if cfg.Dir != "" {
		if err := s.loadMapping(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

const defaultCacheTTL = 30 * time.Minute

func (s *Store) mappingPath() string {
	return filepath.Join(s.cfg.Dir, "main_ids.json")
}

func (s *Store) loadMapping() error {
	data, err := os.ReadFile(s.mappingPath())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("vector: read id mapping: %w", err)
	}
	var raw idMapping
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("vector: decode id mapping: %w", err)
	}
	s.nextLocal.Store(raw.NextLocal)
	for hexID, local := range raw.ToLocal {
		id, err := decodeHexID(hexID)
		if err != nil {
			continue
		}
		s.toLocal[id] = local
		s.toNode[local] = id
	}
	return nil
}

func decodeHexID(s string) (model.ID, error) {
	var id model.ID
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != len(id) {
		return id, fmt.Errorf("vector: malformed id %q", s)
	}
	copy(id[:], b)
	return id, nil
}

// persistMapping writes the local_id<->node_id mapping durably. Called
// after every AddVectors/RemoveVectors so a crash never loses more than
// the in-flight batch.
func (s *Store) persistMapping() error {
	if s.cfg.Dir == "" {
		return nil
	}
	if err := os.MkdirAll(s.cfg.Dir, 0o755); err != nil {
		return fmt.Errorf("vector: create dir: %w", err)
	}

	raw := idMapping{
		NextLocal: s.nextLocal.Load(),
		ToLocal:   make(map[string]uint64, len(s.toLocal)),
	}
	for id, local := range s.toLocal {
		raw.ToLocal[id.String()] = local
	}
	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return fmt.Errorf("vector: encode id mapping: %w", err)
	}
	tmp := s.mappingPath() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("vector: write id mapping: %w", err)
	}
	return os.Rename(tmp, s.mappingPath())
}

func (s *Store) shardFor(key string) Index {
	if idx, ok := s.shards[key]; ok {
		return idx
	}
	var idx Index
	switch s.cfg.IndexKind {
	case IndexIVF:
		idx = NewInvertedListIndex(s.cfg.IVFConfig.NList, s.cfg.IVFConfig.NProbe)
	case IndexHNSW:
		idx = NewGraphIndex(s.cfg.HNSWConfig)
	default:
		idx = NewExactIndex()
	}
	s.shards[key] = idx
	return idx
}

// AddVectors inserts or replaces the embedding for each node. Callers
// compute each vector via pkg/embedding and pass it in; AddVectors neither
// calls an embedding provider nor reads or fills the embed cache.
func (s *Store) AddVectors(nodes []model.Node, vectors []Vector) error {
	if len(nodes) != len(vectors) {
		return fmt.Errorf("vector: nodes/vectors length mismatch: %d != %d", len(nodes), len(vectors))
	}
	shardBy := s.cfg.ShardBy
	if shardBy == nil {
		shardBy = ByLanguage
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i, n := range nodes {
		v := vectors[i]
		local, exists := s.toLocal[n.ID]
		if !exists {
			local = s.nextLocal.Add(1)
			s.toLocal[n.ID] = local
			s.toNode[local] = n.ID
		} else if prevShard, ok := s.shardOf[local]; ok {
			_ = s.shards[prevShard].Remove(local)
		}

		key := shardBy(n)
		idx := s.shardFor(key)
		if err := idx.Add(local, v); err != nil {
			return fmt.Errorf("vector: add to shard %q: %w", key, err)
		}
		s.shardOf[local] = key
	}
	return s.persistMapping()
}

// RemoveVectors deletes the embeddings for the given node ids.
func (s *Store) RemoveVectors(ids []model.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		local, ok := s.toLocal[id]
		if !ok {
			continue
		}
		if key, ok := s.shardOf[local]; ok {
			_ = s.shards[key].Remove(local)
			delete(s.shardOf, local)
		}
		delete(s.toLocal, id)
		delete(s.toNode, local)
	}
	return s.persistMapping()
}

// Result is a single search hit resolved back to a node id.
type Result struct {
	NodeID model.ID
	Score  float64
}

// Search runs q against every shard and merges the top-k results.
func (s *Store) Search(ctx context.Context, q Vector, k int) ([]Result, error) {
	s.mu.RLock()
	shards := make([]Index, 0, len(s.shards))
	for _, idx := range s.shards {
		shards = append(shards, idx)
	}
	s.mu.RUnlock()

	perShard := make([][]ScoredID, len(shards))
	var wg sync.WaitGroup
	errs := make([]error, len(shards))
	for i, idx := range shards {
		wg.Add(1)
		go func(i int, idx Index) {
			defer wg.Done()
			scored, err := idx.Search(ctx, q, k)
			perShard[i] = scored
			errs[i] = err
		}(i, idx)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("vector: shard search: %w", err)
		}
	}

	merged := make([]ScoredID, 0, k*len(shards))
	for _, sc := range perShard {
		merged = append(merged, sc...)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Score > merged[j].Score })
	if k > 0 && len(merged) > k {
		merged = merged[:k]
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Result, 0, len(merged))
	for _, sc := range merged {
		nodeID, ok := s.toNode[sc.LocalID]
		if !ok {
			continue
		}
		out = append(out, Result{NodeID: nodeID, Score: sc.Score})
	}
	return out, nil
}

// BatchSearch runs Search for every query concurrently.
func (s *Store) BatchSearch(ctx context.Context, queries []Vector, k int) ([][]Result, error) {
	out := make([][]Result, len(queries))
	errs := make([]error, len(queries))
	var wg sync.WaitGroup
	for i, q := range queries {
		wg.Add(1)
		go func(i int, q Vector) {
			defer wg.Done()
			res, err := s.Search(ctx, q, k)
			out[i] = res
			errs[i] = err
		}(i, q)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.toLocal)
}

// CachedEmbedding returns a memoized embedding for text, if one was
// stored via CacheEmbedding and has not expired. Ingestion callers check
// this before invoking an embedding provider so unchanged content never
// pays for a re-embed.
func (s *Store) CachedEmbedding(text string) (Vector, bool) {
	return s.cache.Get(text)
}

// CacheEmbedding memoizes v under hash(text) for future CachedEmbedding
// lookups.
func (s *Store) CacheEmbedding(text string, v Vector) {
	s.cache.Put(text, v)
}
