// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: Apache-2.0

package graph

import (
	"context"
	"fmt"

	bolt "go.etcd.io/bbolt"

	"github.com/kraklabs/codegraph/pkg/model"
)

// Tx is a single logical transaction against the graph: reads are served
// from a frozen arena snapshot, writes accumulate in a local buffer, and
// Commit validates the buffer against whatever has published since the
// snapshot was taken before publishing atomically.
type Tx struct {
	store    *Store
	level    IsolationLevel
	base     *arena // snapshot the transaction started from
	readSet  map[model.ID]struct{}
	putNodes map[model.ID]model.Node
	delNodes map[model.ID]struct{}
	putEdges map[model.ID]model.Edge
	delEdges map[model.ID]struct{}
	done     bool
}

func newTx(s *Store, level IsolationLevel) *Tx {
	return &Tx{
		store:    s,
		level:    level,
		base:     s.hot.snapshot(),
		readSet:  make(map[model.ID]struct{}),
		putNodes: make(map[model.ID]model.Node),
		delNodes: make(map[model.ID]struct{}),
		putEdges: make(map[model.ID]model.Edge),
		delEdges: make(map[model.ID]struct{}),
	}
}

// GetNode reads a node, recording it in the transaction's read set so
// RepeatableRead/Serializable commits can detect a conflicting concurrent
// write.
func (t *Tx) GetNode(id model.ID) (model.Node, bool) {
	t.readSet[id] = struct{}{}
	if _, deleted := t.delNodes[id]; deleted {
		return model.Node{}, false
	}
	if n, ok := t.putNodes[id]; ok {
		return n, true
	}
	return t.base.getNode(id)
}

func (t *Tx) PutNode(n model.Node) {
	delete(t.delNodes, n.ID)
	t.putNodes[n.ID] = n
}

func (t *Tx) DeleteNode(id model.ID) {
	delete(t.putNodes, id)
	t.delNodes[id] = struct{}{}
}

func (t *Tx) PutEdge(e model.Edge) {
	delete(t.delEdges, e.ID)
	t.putEdges[e.ID] = e
}

func (t *Tx) DeleteEdge(id model.ID) {
	delete(t.putEdges, id)
	t.delEdges[id] = struct{}{}
}

func (t *Tx) OutEdges(id model.ID) []model.Edge {
	t.readSet[id] = struct{}{}
	return t.base.outEdges(id)
}

func (t *Tx) InEdges(id model.ID) []model.Edge {
	t.readSet[id] = struct{}{}
	return t.base.inEdges(id)
}

// conflicts reports whether the current published arena has diverged from
// t.base in a way that invalidates this transaction, given its isolation
// level.
func (t *Tx) conflicts(latest *arena) bool {
	if t.level == ReadCommitted {
		// ReadCommitted only guards the transaction's own write keys against
		// a lost update, not its reads.
		return t.writeWriteConflict(latest)
	}
	// RepeatableRead and Serializable additionally guard every key this
	// transaction read.
	for id := range t.readSet {
		beforeNode, beforeOK := t.base.getNode(id)
		latestNode, latestOK := latest.getNode(id)
		if beforeOK != latestOK {
			return true
		}
		if beforeOK && beforeNode.ContentHash != latestNode.ContentHash {
			return true
		}
	}
	return t.writeWriteConflict(latest)
}

func (t *Tx) writeWriteConflict(latest *arena) bool {
	for id := range t.putNodes {
		beforeNode, beforeOK := t.base.getNode(id)
		latestNode, latestOK := latest.getNode(id)
		if beforeOK != latestOK {
			return true
		}
		if beforeOK && beforeNode.ContentHash != latestNode.ContentHash {
			return true
		}
	}
	for id := range t.delNodes {
		_, beforeOK := t.base.getNode(id)
		_, latestOK := latest.getNode(id)
		if beforeOK != latestOK {
			return true
		}
	}
	return false
}

// Commit validates the transaction against the latest published snapshot,
// writes its mutation set through the WAL to the cold store, then
// atomically publishes a new hot-layer arena. The whole path is bounded by
// CommitWatchdog; a commit whose cold-store transaction has not finished
// when the watchdog fires is rolled back.
func (t *Tx) Commit(ctx context.Context) error {
	if t.done {
		return fmt.Errorf("graph: transaction already finished")
	}
	t.done = true

	ctx, cancel := context.WithTimeout(ctx, CommitWatchdog)
	defer cancel()

	result := make(chan error, 1)
	go func() { result <- t.commitLocked(ctx) }()

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ErrTransactionTimeout
	}
}

func (t *Tx) commitLocked(ctx context.Context) error {
	t.store.commitMu.Lock()
	defer t.store.commitMu.Unlock()
	if ctx.Err() != nil {
		return ErrTransactionTimeout
	}

	latest := t.store.hot.snapshot()
	if latest != t.base && t.conflicts(latest) {
		return ErrTransactionConflict
	}

	next := latest.clone()
	err := t.store.cold.db.Update(func(btx *bolt.Tx) error {
		txID := uint64(btx.ID())
		for id, n := range t.putNodes {
			data, err := encodeNode(n)
			if err != nil {
				return err
			}
			if err := t.store.wal.appendWAL(btx, WALEntry{TxID: txID, Op: OpPutNode, NodeID: id, AfterImage: data}); err != nil {
				return err
			}
			if err := putNodeTx(btx, n); err != nil {
				return err
			}
		}
		for id := range t.delNodes {
			if err := t.store.wal.appendWAL(btx, WALEntry{TxID: txID, Op: OpDeleteNode, NodeID: id}); err != nil {
				return err
			}
			if err := deleteNodeTx(btx, id); err != nil {
				return err
			}
		}
		for id, e := range t.putEdges {
			data, err := encodeEdge(e)
			if err != nil {
				return err
			}
			if err := t.store.wal.appendWAL(btx, WALEntry{TxID: txID, Op: OpPutEdge, NodeID: id, AfterImage: data}); err != nil {
				return err
			}
			if err := putEdgeTx(btx, e); err != nil {
				return err
			}
		}
		for id := range t.delEdges {
			if err := t.store.wal.appendWAL(btx, WALEntry{TxID: txID, Op: OpDeleteEdge, NodeID: id}); err != nil {
				return err
			}
			if err := deleteEdgeTx(btx, id); err != nil {
				return err
			}
		}
		if ctx.Err() != nil {
			return ErrTransactionTimeout // bbolt rolls the transaction back
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("graph: commit: %w", err)
	}

	for id, n := range t.putNodes {
		next.putNode(n)
		_ = id
	}
	for id := range t.delNodes {
		next.deleteNode(id)
	}
	for _, e := range t.putEdges {
		next.putEdge(e)
	}
	for id := range t.delEdges {
		next.deleteEdge(id)
	}

	t.store.hot.publish(next)
	t.store.cache.invalidateAll()
	return nil
}

// Rollback discards the transaction's buffered writes without touching the
// store. Safe to call unconditionally via defer; a no-op after Commit.
func (t *Tx) Rollback() {
	t.done = true
}
