// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: Apache-2.0

package graph

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"sync/atomic"
	"time"

	bolt "go.etcd.io/bbolt"
)

// walMagic/walVersion tag every WAL segment header so a recovery pass can
// detect a foreign or corrupt file before trusting its contents (spec §6).
const (
	walMagic   uint64 = 0x434f444547524150 // "CODEGRAP" in ascii
	walVersion uint16 = 1
)

type wal struct {
	seq atomic.Uint64
}

// walHeader returns the 18-byte segment header this WAL entry is prefixed
// with: magic(8) | version(2) | seq(8).
func walHeader(seq uint64) []byte {
	buf := make([]byte, 18)
	binary.BigEndian.PutUint64(buf[0:8], walMagic)
	binary.BigEndian.PutUint16(buf[8:10], walVersion)
	binary.BigEndian.PutUint64(buf[10:18], seq)
	return buf
}

func parseWALHeader(data []byte) (seq uint64, ok bool) {
	if len(data) < 18 {
		return 0, false
	}
	magic := binary.BigEndian.Uint64(data[0:8])
	version := binary.BigEndian.Uint16(data[8:10])
	if magic != walMagic || version != walVersion {
		return 0, false
	}
	return binary.BigEndian.Uint64(data[10:18]), true
}

func encodeWALEntry(e WALEntry) ([]byte, error) {
	var body bytes.Buffer
	if err := gob.NewEncoder(&body).Encode(e); err != nil {
		return nil, err
	}
	out := append(walHeader(e.Seq), body.Bytes()...)
	return out, nil
}

func decodeWALEntry(data []byte) (WALEntry, error) {
	seq, ok := parseWALHeader(data)
	if !ok {
		return WALEntry{}, fmt.Errorf("graph: wal entry has bad header")
	}
	var e WALEntry
	if err := gob.NewDecoder(bytes.NewReader(data[18:])).Decode(&e); err != nil {
		return WALEntry{}, err
	}
	if e.Seq != seq {
		return WALEntry{}, fmt.Errorf("graph: wal entry seq mismatch: header=%d body=%d", seq, e.Seq)
	}
	return e, nil
}

// appendWAL writes a WAL entry into the wal bucket within the caller's
// already-open bbolt write transaction, ahead of the corresponding node/edge
// mutation in the same transaction — the durability guarantee is that both
// land, or neither does, since bbolt commits the whole transaction atomically.
func (w *wal) appendWAL(tx *bolt.Tx, e WALEntry) error {
	e.Seq = w.seq.Add(1)
	e.Ts = time.Now()
	data, err := encodeWALEntry(e)
	if err != nil {
		return err
	}
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, e.Seq)
	return tx.Bucket(bucketWAL).Put(key, data)
}

// lastCheckpointSeq reads the highest WAL sequence number that has already
// been folded into a snapshot, so replay only needs to process entries
// beyond it.
func lastCheckpointSeq(tx *bolt.Tx) uint64 {
	b := tx.Bucket(bucketSnapshots)
	k, v := b.Cursor().Last()
	if k == nil {
		return 0
	}
	if len(v) >= 8 {
		return binary.BigEndian.Uint64(v[:8])
	}
	return 0
}

// checkpointWAL records the current WAL sequence as the new checkpoint marker
// and compacts (deletes) entries at or before it, bounding WAL growth.
func checkpointWAL(tx *bolt.Tx, seq uint64) error {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	val := make([]byte, 8)
	binary.BigEndian.PutUint64(val, seq)
	if err := tx.Bucket(bucketSnapshots).Put(key, val); err != nil {
		return err
	}
	b := tx.Bucket(bucketWAL)
	c := b.Cursor()
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		if binary.BigEndian.Uint64(k) > seq {
			break
		}
		if err := c.Delete(); err != nil {
			return err
		}
	}
	return nil
}
