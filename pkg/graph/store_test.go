// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: Apache-2.0

package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/codegraph/pkg/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(dir, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func mkNode(t *testing.T, qn string) model.Node {
	t.Helper()
	return model.Node{
		ID:            model.NewNodeID("proj", qn, "f.go", 0),
		Name:          qn,
		QualifiedName: qn,
		Kind:          model.KindFunction,
		Language:      model.LangGo,
		ContentHash:   model.ContentHash(qn),
	}
}

func TestStore_PutAndGetNode(t *testing.T) {
	s := newTestStore(t)
	n := mkNode(t, "Foo")

	require.NoError(t, s.PutNode(context.Background(), n))
	got, ok := s.GetNode(n.ID)
	require.True(t, ok)
	assert.Equal(t, n.Name, got.Name)
}

func TestStore_UpdateNode_NoOpWhenUnchanged(t *testing.T) {
	s := newTestStore(t)
	n := mkNode(t, "Foo")
	require.NoError(t, s.PutNode(context.Background(), n))

	// same content hash: update must be a no-op, but must not error either.
	require.NoError(t, s.UpdateNode(context.Background(), n))
	got, _ := s.GetNode(n.ID)
	assert.Equal(t, n.ContentHash, got.ContentHash)
}

func TestStore_DeleteNode_CascadesEdges(t *testing.T) {
	s := newTestStore(t)
	a := mkNode(t, "A")
	b := mkNode(t, "B")
	require.NoError(t, s.PutNode(context.Background(), a))
	require.NoError(t, s.PutNode(context.Background(), b))

	e := model.Edge{ID: model.NewEdgeID(a.ID, b.ID.String(), model.EdgeCalls, "f.go", 0), From: a.ID, To: b.ID, Type: model.EdgeCalls}
	require.NoError(t, s.PutEdge(context.Background(), e))
	require.NotEmpty(t, s.OutEdges(a.ID))

	require.NoError(t, s.DeleteNode(context.Background(), a.ID))
	assert.Empty(t, s.OutEdges(a.ID))
	_, ok := s.GetNode(a.ID)
	assert.False(t, ok)
}

func TestStore_TransactionConflict(t *testing.T) {
	s := newTestStore(t)
	n := mkNode(t, "Foo")
	require.NoError(t, s.PutNode(context.Background(), n))

	tx1, err := s.Begin(RepeatableRead)
	require.NoError(t, err)
	tx1.GetNode(n.ID)

	// a concurrent writer mutates the same node before tx1 commits.
	updated := n
	updated.ContentHash = model.ContentHash("changed")
	require.NoError(t, s.PutNode(context.Background(), updated))

	tx1.PutNode(n)
	err = tx1.Commit(context.Background())
	assert.ErrorIs(t, err, ErrTransactionConflict)
}

func TestStore_IngestExtractionAndReopen(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, nil)
	require.NoError(t, err)

	n := mkNode(t, "Persisted")
	require.NoError(t, s.IngestExtraction(context.Background(), []model.Node{n}, nil))
	require.NoError(t, s.Close())

	reopened, err := Open(dir, nil)
	require.NoError(t, err)
	defer reopened.Close()

	got, ok := reopened.GetNode(n.ID)
	require.True(t, ok)
	assert.Equal(t, "Persisted", got.Name)
}

func TestStore_Neighbors(t *testing.T) {
	s := newTestStore(t)
	a := mkNode(t, "A")
	b := mkNode(t, "B")
	require.NoError(t, s.PutNode(context.Background(), a))
	require.NoError(t, s.PutNode(context.Background(), b))
	e := model.Edge{ID: model.NewEdgeID(a.ID, b.ID.String(), model.EdgeCalls, "f.go", 0), From: a.ID, To: b.ID, Type: model.EdgeCalls}
	require.NoError(t, s.PutEdge(context.Background(), e))

	neighbors := s.Neighbors(a.ID)
	require.Len(t, neighbors, 1)
	assert.Equal(t, b.ID, neighbors[0])
}
