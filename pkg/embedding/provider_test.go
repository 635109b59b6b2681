// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: Apache-2.0

package embedding

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeterministicProvider_NormalizedAndStable(t *testing.T) {
	p := NewDeterministicProvider(64)
	v1, err := p.Embed(context.Background(), "func Foo() {}")
	require.NoError(t, err)
	v2, err := p.Embed(context.Background(), "func Foo() {}")
	require.NoError(t, err)
	assert.Equal(t, v1, v2, "deterministic provider must be stable for identical input")

	var sumSq float64
	for _, x := range v1 {
		sumSq += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, sumSq, 0.01, "embedding must be L2-normalized")
}

func TestPipeline_FallsThroughOnProviderFailure(t *testing.T) {
	failing := failingProvider{}
	working := NewDeterministicProvider(16)
	p := NewPipeline([]Provider{failing, working}, RetryConfig{MaxRetries: 1, Multiplier: 1})

	vec, err := p.Embed(context.Background(), "hello world")
	require.NoError(t, err)
	assert.Len(t, vec, 16)
	assert.Equal(t, 1, p.FallbackAdvances())
}

func TestPipeline_ChunksLongText(t *testing.T) {
	p := NewPipeline([]Provider{NewDeterministicProvider(8)}, DefaultRetryConfig())
	long := make([]byte, 5000)
	for i := range long {
		long[i] = 'a'
	}
	vec, err := p.Embed(context.Background(), string(long))
	require.NoError(t, err)
	assert.Len(t, vec, 8)
}

func TestCache_HitReturnsSameSlice(t *testing.T) {
	c := NewCache(10)
	v := []float32{1, 2, 3}
	c.Put("text", v)
	got, ok := c.Get("text")
	require.True(t, ok)
	assert.Equal(t, v, got)
}

func TestCosineSimilarity(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{1, 0}
	assert.InDelta(t, 1.0, CosineSimilarity(a, b), 0.001)

	c := []float32{0, 1}
	assert.InDelta(t, 0.0, CosineSimilarity(a, c), 0.001)
}

type failingProvider struct{}

func (failingProvider) Name() string   { return "failing" }
func (failingProvider) Dimension() int { return 0 }
func (failingProvider) Embed(context.Context, string) ([]float32, error) {
	return nil, assertErr{}
}

type assertErr struct{}

func (assertErr) Error() string { return "timeout: simulated provider failure" }
