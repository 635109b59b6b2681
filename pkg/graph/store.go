// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: Apache-2.0

package graph

import (
	"context"
	"encoding/binary"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/kraklabs/codegraph/pkg/model"
)

// Store is the Graph Store's public entry point: a hot, lock-free read
// layer in front of a durable, MVCC-versioned bbolt cold layer. Callers
// get a *Tx for any mutating sequence; single-operation reads have direct
// convenience methods that bypass transaction bookkeeping.
type Store struct {
	logger *slog.Logger
	cold   *coldStore
	hot    *hotLayer
	wal    *wal
	cache  *queryCache

	commitMu sync.Mutex // serializes the single-writer commit path
	closed   atomic.Bool

	clock func() time.Time
}

// Open opens (creating if absent) the bbolt-backed graph database at
// dir/graph.db, replays its WAL, and rebuilds the hot layer from the
// reconciled cold store.
func Open(dir string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cold, err := openColdStore(filepath.Join(dir, "graph.db"))
	if err != nil {
		return nil, err
	}

	rm := NewRecoveryManager(logger)
	report, err := rm.Replay(cold.db)
	if err != nil {
		cold.Close()
		return nil, err
	}
	if report.EntriesReplayed > 0 || report.DanglingEdges > 0 || report.MissingHashes > 0 {
		logger.Info("graph: recovery replay complete",
			"entries_replayed", report.EntriesReplayed,
			"dangling_edges_dropped", report.DanglingEdges,
			"missing_hashes_repaired", report.MissingHashes,
		)
	}

	nodes, edges, err := cold.loadAll()
	if err != nil {
		cold.Close()
		return nil, err
	}

	a := newArena()
	for _, n := range nodes {
		a.putNode(n)
	}
	for _, e := range edges {
		a.putEdge(e)
	}

	w := &wal{}
	_ = cold.db.View(func(btx *bolt.Tx) error {
		seq := lastCheckpointSeq(btx)
		if k, _ := btx.Bucket(bucketWAL).Cursor().Last(); k != nil && binary.BigEndian.Uint64(k) > seq {
			seq = binary.BigEndian.Uint64(k)
		}
		w.seq.Store(seq)
		return nil
	})

	s := &Store{
		logger: logger,
		cold:   cold,
		hot:    newHotLayer(),
		wal:    w,
		cache:  newQueryCache(),
		clock:  time.Now,
	}
	s.hot.publish(a)
	return s, nil
}

func (s *Store) now() time.Time {
	if s.clock != nil {
		return s.clock()
	}
	return time.Now()
}

// Close flushes and closes the underlying bbolt database.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.cold.Close()
}

// Begin starts a new transaction at the given isolation level.
func (s *Store) Begin(level IsolationLevel) (*Tx, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	return newTx(s, level), nil
}

// GetNode is a direct hot-layer read, equivalent to Begin(ReadCommitted)
// followed by a single GetNode and an implicit rollback.
func (s *Store) GetNode(id model.ID) (model.Node, bool) {
	return s.hot.getNode(id)
}

func (s *Store) GetEdge(id model.ID) (model.Edge, bool) {
	return s.hot.getEdge(id)
}

func (s *Store) OutEdges(id model.ID) []model.Edge {
	return s.hot.outEdges(id)
}

func (s *Store) InEdges(id model.ID) []model.Edge {
	return s.hot.inEdges(id)
}

// Neighbors returns the distinct node ids reachable by a single outgoing
// edge from id, consulting (and populating) the neighbor cache.
func (s *Store) Neighbors(id model.ID) []model.ID {
	if cached, ok := s.cache.getNeighbors(id); ok {
		return cached
	}
	seen := make(map[model.ID]struct{})
	var out []model.ID
	for _, e := range s.hot.outEdges(id) {
		if e.Resolved() {
			if _, dup := seen[e.To]; !dup {
				seen[e.To] = struct{}{}
				out = append(out, e.To)
			}
		}
	}
	s.cache.putNeighbors(id, out)
	return out
}

// FindNodesByName performs a linear scan for nodes whose Name or
// QualifiedName matches query exactly, case-sensitively.
func (s *Store) FindNodesByName(query string) []model.Node {
	var out []model.Node
	for _, n := range s.hot.snapshot().allNodes() {
		if n.Name == query || n.QualifiedName == query {
			out = append(out, n)
		}
	}
	return out
}

// AllNodes returns every live node in the current snapshot.
func (s *Store) AllNodes() []model.Node {
	return s.hot.snapshot().allNodes()
}

// AllEdges returns every live edge in the current snapshot.
func (s *Store) AllEdges() []model.Edge {
	return s.hot.snapshot().allEdges()
}

// PutNode is a convenience single-write helper: begin, write, commit.
func (s *Store) PutNode(ctx context.Context, n model.Node) error {
	tx, err := s.Begin(ReadCommitted)
	if err != nil {
		return err
	}
	tx.PutNode(n)
	return tx.Commit(ctx)
}

// UpdateNode implements the spec's chosen update semantics (SPEC_FULL.md
// §9): an in-place overwrite keyed by content-hash comparison so the node's
// ID — and therefore every edge referencing it — survives unchanged.
func (s *Store) UpdateNode(ctx context.Context, n model.Node) error {
	existing, ok := s.GetNode(n.ID)
	if ok && existing.ContentHash == n.ContentHash {
		return nil // no-op: content unchanged
	}
	return s.PutNode(ctx, n)
}

// PutEdge is a convenience single-write helper: begin, write, commit.
func (s *Store) PutEdge(ctx context.Context, e model.Edge) error {
	tx, err := s.Begin(ReadCommitted)
	if err != nil {
		return err
	}
	tx.PutEdge(e)
	return tx.Commit(ctx)
}

// DeleteNode removes a node and, per the cascading-removal resolution
// (SPEC_FULL.md §9), every edge touching it, in one transaction.
func (s *Store) DeleteNode(ctx context.Context, id model.ID) error {
	tx, err := s.Begin(ReadCommitted)
	if err != nil {
		return err
	}
	tx.DeleteNode(id)
	for _, e := range s.hot.outEdges(id) {
		tx.DeleteEdge(e.ID)
	}
	for _, e := range s.hot.inEdges(id) {
		tx.DeleteEdge(e.ID)
	}
	return tx.Commit(ctx)
}

// IngestExtraction applies a parser.ExtractionResult-shaped batch of nodes
// and edges in one transaction, the usual entry point after a directory
// extraction or incremental re-parse.
func (s *Store) IngestExtraction(ctx context.Context, nodes []model.Node, edges []model.Edge) error {
	tx, err := s.Begin(ReadCommitted)
	if err != nil {
		return err
	}
	for _, n := range nodes {
		tx.PutNode(n)
	}
	for _, e := range edges {
		tx.PutEdge(e)
	}
	return tx.Commit(ctx)
}

// Checkpoint folds the WAL up to its current tail into a checkpoint
// marker, bounding log growth, and returns the resulting snapshot id.
func (s *Store) Checkpoint() (uint64, error) {
	var seq uint64
	err := s.cold.db.Update(func(btx *bolt.Tx) error {
		seq = s.wal.seq.Load()
		return checkpointWAL(btx, seq)
	})
	return seq, err
}
