// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: Apache-2.0

package vector

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/codegraph/pkg/model"
)

func mkNode(t *testing.T, lang model.Language, path string) model.Node {
	t.Helper()
	return model.Node{
		ID:       model.NewNodeID("proj", path, path, 0),
		Name:     filepath.Base(path),
		Kind:     model.KindFunction,
		Language: lang,
		Location: model.Location{FilePath: path},
	}
}

func TestExactIndex_SearchOrdersByScore(t *testing.T) {
	idx := NewExactIndex()
	require.NoError(t, idx.Add(1, Vector{1, 0, 0}))
	require.NoError(t, idx.Add(2, Vector{0, 1, 0}))
	require.NoError(t, idx.Add(3, Vector{0.9, 0.1, 0}))

	got, err := idx.Search(context.Background(), Vector{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, uint64(1), got[0].LocalID)
	assert.Equal(t, uint64(3), got[1].LocalID)
}

func TestInvertedListIndex_TrainAndSearch(t *testing.T) {
	ivf := NewInvertedListIndex(2, 2)
	samples := []Vector{{1, 0}, {0.9, 0.1}, {0, 1}, {0.1, 0.9}}
	ivf.Train(samples)
	for i, s := range samples {
		require.NoError(t, ivf.Add(uint64(i), s))
	}

	got, err := ivf.Search(context.Background(), Vector{1, 0}, 1)
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.Equal(t, uint64(0), got[0].LocalID)
}

func TestQuantize_INT8RoundTripPreservesSign(t *testing.T) {
	v := Vector{0.5, -0.25, 0.1, -0.9}
	q := Quantize(v, QuantizeConfig{Precision: PrecisionINT8, Asymmetric: false})
	back := Dequantize(q)
	require.Len(t, back, len(v))
	for i := range v {
		assert.InDelta(t, v[i], back[i], 0.05)
	}
}

func TestQuantize_FP16RoundTrip(t *testing.T) {
	v := Vector{1.5, -2.25, 0, 100.0}
	q := Quantize(v, QuantizeConfig{Precision: PrecisionFP16})
	back := Dequantize(q)
	for i := range v {
		assert.InDelta(t, v[i], back[i], 0.01)
	}
}

func TestEmbedCache_HitAfterPut(t *testing.T) {
	c := NewEmbedCache(1<<20, time.Hour)
	c.Put("hello world", Vector{1, 2, 3})

	got, ok := c.Get("hello world")
	require.True(t, ok)
	assert.Equal(t, Vector{1, 2, 3}, got)

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestEmbedCache_EvictsUnderByteCap(t *testing.T) {
	c := NewEmbedCache(32, time.Hour) // 8 float32s worth of budget
	c.Put("a", Vector{1, 2, 3, 4})
	c.Put("b", Vector{1, 2, 3, 4})
	c.Put("c", Vector{1, 2, 3, 4})

	assert.LessOrEqual(t, c.Len(), 2)
	_, ok := c.Get("a")
	assert.False(t, ok, "oldest entry should have been evicted")
}

func TestStore_AddAndSearchAcrossShards(t *testing.T) {
	cfg := DefaultStoreConfig(t.TempDir())
	cfg.IndexKind = IndexExact
	s, err := NewStore(cfg)
	require.NoError(t, err)

	goNode := mkNode(t, model.LangGo, "a/main.go")
	pyNode := mkNode(t, model.LangPython, "b/main.py")

	err = s.AddVectors([]model.Node{goNode, pyNode}, []Vector{{1, 0, 0}, {0, 1, 0}})
	require.NoError(t, err)
	assert.Equal(t, 2, s.Len())

	results, err := s.Search(context.Background(), Vector{1, 0, 0}, 5)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, goNode.ID, results[0].NodeID)
}

func TestStore_RemoveVectors(t *testing.T) {
	cfg := DefaultStoreConfig(t.TempDir())
	cfg.IndexKind = IndexExact
	s, err := NewStore(cfg)
	require.NoError(t, err)

	n := mkNode(t, model.LangGo, "a/main.go")
	require.NoError(t, s.AddVectors([]model.Node{n}, []Vector{{1, 0}}))
	require.Equal(t, 1, s.Len())

	require.NoError(t, s.RemoveVectors([]model.ID{n.ID}))
	assert.Equal(t, 0, s.Len())
}

func TestStore_PersistsIDMappingAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultStoreConfig(dir)
	cfg.IndexKind = IndexExact

	s1, err := NewStore(cfg)
	require.NoError(t, err)
	n := mkNode(t, model.LangGo, "a/main.go")
	require.NoError(t, s1.AddVectors([]model.Node{n}, []Vector{{1, 0}}))

	s2, err := NewStore(cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, s2.Len())
}

func TestBatcher_InsertAndSearch(t *testing.T) {
	idx := NewExactIndex()
	b := NewBatcher(idx, BatcherConfig{BatchSize: 1, MaxDelay: time.Millisecond, QueueCap: 16})
	defer b.Close()

	ctx := context.Background()
	require.NoError(t, b.Insert(ctx, 1, Vector{1, 0}))

	results, err := b.Search(ctx, Vector{1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, uint64(1), results[0].LocalID)
}

func TestBatcher_ResourceExhaustedWhenQueueFull(t *testing.T) {
	idx := NewExactIndex()
	b := NewBatcher(idx, BatcherConfig{BatchSize: 1000, MaxDelay: time.Hour, QueueCap: 0})
	defer b.Close()

	err := b.Insert(context.Background(), 1, Vector{1, 0})
	assert.ErrorIs(t, err, ErrResourceExhausted)
}
