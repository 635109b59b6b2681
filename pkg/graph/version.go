// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: Apache-2.0

package graph

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"

	bolt "go.etcd.io/bbolt"

	"github.com/kraklabs/codegraph/pkg/model"
)

// TagVersion authors a named Version record pinned to the snapshot id
// current at call time (the cold store's bbolt transaction sequence
// number, spec §5.2's MVCC scheme).
func (s *Store) TagVersion(name, description, author string, parentIDs []uint64, tags []string) (Version, error) {
	if s.closed.Load() {
		return Version{}, ErrClosed
	}
	v := Version{
		Name:        name,
		Description: description,
		Author:      author,
		ParentIDs:   parentIDs,
		Tags:        tags,
	}
	err := s.cold.db.Update(func(tx *bolt.Tx) error {
		v.SnapshotID = uint64(tx.ID())
		v.CreatedAt = s.now()
		data, err := encodeVersion(v)
		if err != nil {
			return err
		}
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, v.SnapshotID)
		return tx.Bucket(bucketVersions).Put(key, data)
	})
	return v, err
}

// GetVersion looks up a previously tagged version by snapshot id.
func (s *Store) GetVersion(snapshotID uint64) (Version, error) {
	var v Version
	var found bool
	err := s.cold.db.View(func(tx *bolt.Tx) error {
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, snapshotID)
		data := tx.Bucket(bucketVersions).Get(key)
		if data == nil {
			return nil
		}
		found = true
		dv, err := decodeVersion(data)
		v = dv
		return err
	})
	if err != nil {
		return Version{}, err
	}
	if !found {
		return Version{}, ErrNotFound
	}
	return v, nil
}

// ListVersions returns every tagged version, oldest snapshot first.
func (s *Store) ListVersions() ([]Version, error) {
	var out []Version
	err := s.cold.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketVersions).ForEach(func(k, v []byte) error {
			dv, err := decodeVersion(v)
			if err != nil {
				return err
			}
			out = append(out, dv)
			return nil
		})
	})
	return out, err
}

func encodeVersion(v Version) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeVersion(data []byte) (Version, error) {
	var v Version
	err := gob.NewDecoder(bytes.NewReader(data)).Decode(&v)
	return v, err
}

// CompareVersions diffs two caller-supplied node sets by ID and content
// hash. It does not load the nodes of a tagged version: the cold store
// keeps one record per node ID with no per-snapshot history, so the
// "before" set must be one the caller saved earlier.
func (s *Store) CompareVersions(before, after []model.Node) VersionDiff {
	beforeByID := make(map[model.ID]model.Node, len(before))
	for _, n := range before {
		beforeByID[n.ID] = n
	}
	afterByID := make(map[model.ID]model.Node, len(after))
	for _, n := range after {
		afterByID[n.ID] = n
	}

	var diff VersionDiff
	for id, a := range afterByID {
		b, existed := beforeByID[id]
		if !existed {
			diff.AddedNodes = append(diff.AddedNodes, id)
			continue
		}
		if b.ContentHash != a.ContentHash {
			diff.ModifiedNodes = append(diff.ModifiedNodes, id)
		}
	}
	for id := range beforeByID {
		if _, stillExists := afterByID[id]; !stillExists {
			diff.DeletedNodes = append(diff.DeletedNodes, id)
		}
	}
	return diff
}

// SnapshotNodes returns every node live in the current hot-layer snapshot,
// the typical "after" argument to CompareVersions when diffing against a
// version tagged earlier in the same process.
func (s *Store) SnapshotNodes() []model.Node {
	return s.hot.snapshot().allNodes()
}
