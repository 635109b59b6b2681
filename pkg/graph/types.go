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

// Package graph is the Graph Store (G): a two-layer typed property graph —
// a lock-free, copy-on-write in-memory hot layer fronting a transactional,
// MVCC-versioned bbolt cold layer. It is CodeGraph's system of record for
// nodes and edges.
package graph

import (
	"errors"
	"time"

	"github.com/kraklabs/codegraph/pkg/model"
)

// IsolationLevel controls what a transaction's reads are allowed to see and
// what conflicts its commit checks for.
type IsolationLevel int

const (
	// ReadCommitted is the default: commit only conflicts on the
	// transaction's own node writes. Like every level, reads come from the
	// snapshot published when the transaction began.
	ReadCommitted IsolationLevel = iota
	// RepeatableRead pins reads to the snapshot observed at transaction
	// start; commit conflicts if any read key was modified since.
	RepeatableRead
	// Serializable runs the same read-set validation as RepeatableRead;
	// ids read through OutEdges/InEdges are in that set and are checked by
	// their node's content hash.
	Serializable
)

func (lvl IsolationLevel) String() string {
	switch lvl {
	case RepeatableRead:
		return "RepeatableRead"
	case Serializable:
		return "Serializable"
	default:
		return "ReadCommitted"
	}
}

var (
	// ErrTransactionConflict is returned by Commit when a concurrent writer
	// invalidated this transaction's read or write set.
	ErrTransactionConflict = errors.New("graph: transaction conflict")
	// ErrTransactionTimeout is returned when the 30s commit watchdog fires.
	ErrTransactionTimeout = errors.New("graph: commit watchdog timeout")
	// ErrNotFound is returned when a node or edge lookup misses.
	ErrNotFound = errors.New("graph: not found")
	// ErrClosed is returned by any operation on a closed Store.
	ErrClosed = errors.New("graph: store is closed")
)

// CommitWatchdog bounds how long a single transaction's commit path may
// run before it is force-rolled-back (spec §4.2).
const CommitWatchdog = 30 * time.Second

// Version is a named, authored point in the graph's history — analogous to
// a git commit, with optional branch/tag labels.
type Version struct {
	SnapshotID  uint64
	Name        string
	Description string
	Author      string
	ParentIDs   []uint64
	Tags        []string
	CreatedAt   time.Time
}

// VersionDiff is the result of CompareVersions: which nodes were added,
// modified (content hash changed), or deleted between two snapshots.
type VersionDiff struct {
	AddedNodes    []model.ID
	ModifiedNodes []model.ID
	DeletedNodes  []model.ID
}

// Op identifies the kind of mutation a WAL entry records.
type Op int

const (
	OpPutNode Op = iota
	OpDeleteNode
	OpPutEdge
	OpDeleteEdge
)

// WALEntry is one durable mutation record, written before the mutation is
// published to the hot layer (write-ahead logging, spec §6).
type WALEntry struct {
	ID          uint64
	TxID        uint64
	Seq         uint64
	Op          Op
	NodeID      model.ID
	BeforeImage []byte
	AfterImage  []byte
	Ts          time.Time
}

// Path is a sequence of node ids connected by edges, returned by the
// traversal shortest-path family.
type Path struct {
	Nodes  []model.ID
	Edges  []model.ID
	Weight float64
}

// Predicate filters nodes/edges visited during a traversal.
type Predicate func(model.Node) bool

// TraverseOptions bounds a BFS/DFS walk.
type TraverseOptions struct {
	MaxDepth     int
	MaxNodes     int
	IncludeStart bool
	Predicate    Predicate
	// EdgeTypes restricts expansion to edges of these types. Empty means no
	// restriction (walk every edge type).
	EdgeTypes []model.EdgeType
}

func (o TraverseOptions) edgeAllowed(t model.EdgeType) bool {
	if len(o.EdgeTypes) == 0 {
		return true
	}
	for _, want := range o.EdgeTypes {
		if want == t {
			return true
		}
	}
	return false
}

// CouplingMetrics is the per-node coupling summary used by hotspot ranking.
type CouplingMetrics struct {
	NodeID          model.ID
	AfferentCoupling int     // Ca: number of distinct callers/importers
	EfferentCoupling int     // Ce: number of distinct callees/imports
	Instability      float64 // Ce / (Ca + Ce)
}

// Hotspot pairs a node with a complexity-weighted risk score.
type Hotspot struct {
	NodeID     model.ID
	Complexity float64
	Risk       float64 // complexity * afferent coupling
}
