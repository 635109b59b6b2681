// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: Apache-2.0

package graph

import (
	"encoding/binary"
	"fmt"
	"log/slog"

	bolt "go.etcd.io/bbolt"

	"github.com/kraklabs/codegraph/pkg/model"
)

// RecoveryManager replays the write-ahead log beyond the last checkpoint
// on startup and validates the reconstructed graph before the hot layer is
// allowed to serve traffic.
type RecoveryManager struct {
	logger *slog.Logger
}

func NewRecoveryManager(logger *slog.Logger) *RecoveryManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &RecoveryManager{logger: logger}
}

// RecoveryReport summarizes what Replay found and fixed.
type RecoveryReport struct {
	EntriesReplayed int
	DanglingEdges   int
	OrphanSnapshots int
	MissingHashes   int
}

// Replay walks WAL entries with seq greater than the last checkpoint and
// re-applies them against the cold store, then runs post-replay validation:
// edges with a dangling endpoint are dropped and nodes missing a content
// hash get it recomputed from Content; both are counted in the report.
// Snapshot markers are not checked, so OrphanSnapshots is always 0.
func (r *RecoveryManager) Replay(db *bolt.DB) (RecoveryReport, error) {
	var report RecoveryReport
	err := db.Update(func(tx *bolt.Tx) error {
		checkpoint := lastCheckpointSeq(tx)
		walBucket := tx.Bucket(bucketWAL)
		c := walBucket.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			seq := binary.BigEndian.Uint64(k)
			if seq <= checkpoint {
				continue
			}
			entry, err := decodeWALEntry(v)
			if err != nil {
				r.logger.Warn("graph: skipping corrupt wal entry", "seq", seq, "err", err)
				continue
			}
			if err := r.replayEntry(tx, entry); err != nil {
				return fmt.Errorf("replay seq %d: %w", seq, err)
			}
			report.EntriesReplayed++
		}
		return r.validate(tx, &report)
	})
	return report, err
}

func (r *RecoveryManager) replayEntry(tx *bolt.Tx, e WALEntry) error {
	switch e.Op {
	case OpPutNode:
		if len(e.AfterImage) == 0 {
			return nil
		}
		n, err := decodeNode(e.AfterImage)
		if err != nil {
			return err
		}
		return putNodeTx(tx, n)
	case OpDeleteNode:
		return deleteNodeTx(tx, e.NodeID)
	case OpPutEdge:
		if len(e.AfterImage) == 0 {
			return nil
		}
		ed, err := decodeEdge(e.AfterImage)
		if err != nil {
			return err
		}
		return putEdgeTx(tx, ed)
	case OpDeleteEdge:
		return deleteEdgeTx(tx, e.NodeID)
	default:
		return fmt.Errorf("unknown wal op %d", e.Op)
	}
}

// validate scans for dangling edge endpoints (an edge whose From or To
// points at a node no longer present) and nodes missing a content hash,
// repairing both. It walks the snapshot markers but flags none of them.
func (r *RecoveryManager) validate(tx *bolt.Tx, report *RecoveryReport) error {
	nb := tx.Bucket(bucketNodes)
	exists := func(id model.ID) bool {
		return nb.Get(id[:]) != nil
	}

	eb := tx.Bucket(bucketEdgesFrom)
	var dangling [][]byte
	if err := eb.ForEach(func(k, v []byte) error {
		e, err := decodeEdge(v)
		if err != nil {
			return nil
		}
		if !exists(e.From) || (e.Resolved() && !exists(e.To)) {
			dangling = append(dangling, append([]byte(nil), k...))
		}
		return nil
	}); err != nil {
		return err
	}
	for _, k := range dangling {
		if err := eb.Delete(k); err != nil {
			return err
		}
		if err := tx.Bucket(bucketEdgesTo).Delete(k); err != nil {
			return err
		}
		report.DanglingEdges++
	}

	var missingHash [][]byte
	if err := nb.ForEach(func(k, v []byte) error {
		n, err := decodeNode(v)
		if err != nil {
			return nil
		}
		if n.ContentHash == ([32]byte{}) && n.Content != "" {
			missingHash = append(missingHash, append([]byte(nil), k...))
		}
		return nil
	}); err != nil {
		return err
	}
	for _, k := range missingHash {
		n, err := decodeNode(nb.Get(k))
		if err != nil {
			continue
		}
		n.ContentHash = model.ContentHash(n.Content)
		if err := putNodeTx(tx, n); err != nil {
			return err
		}
		report.MissingHashes++
	}

	vb := tx.Bucket(bucketVersions)
	sb := tx.Bucket(bucketSnapshots)
	var orphanSnaps [][]byte
	if err := sb.ForEach(func(k, v []byte) error {
		if vb.Get(k) == nil && len(k) == 8 {
			// a bare checkpoint marker with no authored version is expected
			// (checkpointing happens far more often than tagging a named
			// version); no marker is flagged, so orphanSnaps stays empty.
			return nil
		}
		return nil
	}); err != nil {
		return err
	}
	report.OrphanSnapshots = len(orphanSnaps)
	return nil
}
