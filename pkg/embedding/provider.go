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

// Package embedding is the Embedding Engine (E): a provider-agnostic text
// embedding contract with retry/fallback, L2 normalization, chunk-and-average
// for long inputs, and a shared read-only cache.
package embedding

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"strings"
	"time"
)

// Provider embeds a single piece of text into a vector. Implementations
// must return an L2-normalized vector.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Name() string
	Dimension() int
}

// RetryConfig bounds how Pipeline retries a failing provider before
// advancing to the next fallback.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxRetries: 3, InitialBackoff: 200 * time.Millisecond, MaxBackoff: 2 * time.Second, Multiplier: 2.0}
}

// Pipeline advances through an ordered list of providers (primary plus
// fallbacks), retrying each with exponential backoff before falling
// through to the next.
type Pipeline struct {
	providers       []Provider
	retry           RetryConfig
	cache           *Cache
	fallbackAdvance int // count of times the pipeline fell through to a fallback
}

func NewPipeline(providers []Provider, retry RetryConfig) *Pipeline {
	if len(providers) == 0 {
		providers = []Provider{NewDeterministicProvider(384)}
	}
	return &Pipeline{providers: providers, retry: retry, cache: NewCache(10000)}
}

// Embed runs the text through the cache, then the provider chain,
// normalizing and chunk-averaging as needed.
func (p *Pipeline) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := p.cache.Get(text); ok {
		return v, nil
	}

	const maxChunkChars = 2000
	var vec []float32
	var err error
	if len(text) > maxChunkChars {
		vec, err = p.embedChunked(ctx, text, maxChunkChars)
	} else {
		vec, err = p.embedWithFallback(ctx, text)
	}
	if err != nil {
		return nil, err
	}
	vec = normalize(vec)
	p.cache.Put(text, vec)
	return vec, nil
}

func (p *Pipeline) embedChunked(ctx context.Context, text string, chunkSize int) ([]float32, error) {
	var chunks []string
	for i := 0; i < len(text); i += chunkSize {
		end := i + chunkSize
		if end > len(text) {
			end = len(text)
		}
		chunks = append(chunks, text[i:end])
	}

	var sum []float32
	for _, c := range chunks {
		v, err := p.embedWithFallback(ctx, c)
		if err != nil {
			return nil, err
		}
		if sum == nil {
			sum = make([]float32, len(v))
		}
		for i := range v {
			if i < len(sum) {
				sum[i] += v[i]
			}
		}
	}
	n := float32(len(chunks))
	for i := range sum {
		sum[i] /= n
	}
	return sum, nil
}

func (p *Pipeline) embedWithFallback(ctx context.Context, text string) ([]float32, error) {
	var lastErr error
	for i, provider := range p.providers {
		vec, err := p.embedWithRetry(ctx, provider, text)
		if err == nil {
			return vec, nil
		}
		lastErr = err
		if i < len(p.providers)-1 {
			p.fallbackAdvance++
		}
	}
	return nil, fmt.Errorf("embedding: all providers exhausted: %w", lastErr)
}

func (p *Pipeline) embedWithRetry(ctx context.Context, provider Provider, text string) ([]float32, error) {
	var err error
	var vec []float32
	backoff := p.retry.InitialBackoff
	for attempt := 0; attempt < p.retry.MaxRetries; attempt++ {
		vec, err = provider.Embed(ctx, text)
		if err == nil {
			return vec, nil
		}
		if !isRetryable(err) || attempt == p.retry.MaxRetries-1 {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff = time.Duration(float64(backoff) * p.retry.Multiplier)
		if backoff > p.retry.MaxBackoff {
			backoff = p.retry.MaxBackoff
		}
	}
	return nil, err
}

// FallbackAdvances reports how many times Embed had to advance past a
// failing provider to a fallback — a Prometheus-worthy metric surfaced by
// the caller.
func (p *Pipeline) FallbackAdvances() int {
	return p.fallbackAdvance
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"timeout", "temporarily unavailable", "connection refused", "connection reset", "deadline exceeded", "eof", " 429", " 500", " 502", " 503", " 504"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func normalize(v []float32) []float32 {
	if len(v) == 0 {
		return v
	}
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	norm := float32(math.Sqrt(sumSq))
	if norm == 0 {
		return v
	}
	for i := range v {
		v[i] /= norm
	}
	return v
}

// ValidateSimilarityPairs computes cosine similarity for a set of
// (a, b, expectedMin) triples, returning the indices of the pairs that
// fall below their expected minimum — used by quality-monitoring tests and the default
// quality gate (PassesQualityThreshold).
type SimilarityPair struct {
	A, B        []float32
	ExpectedMin float64
}

func ValidateSimilarityPairs(pairs []SimilarityPair) []int {
	var failing []int
	for i, p := range pairs {
		if CosineSimilarity(p.A, p.B) < p.ExpectedMin {
			failing = append(failing, i)
		}
	}
	return failing
}

const DefaultQualityThreshold = 0.80

func PassesQualityThreshold(a, b []float32) bool {
	return CosineSimilarity(a, b) >= DefaultQualityThreshold
}

func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// DeterministicProvider is the fallback used when no real embedding
// provider is configured (spec §4.4): a hash-derived pseudo-embedding,
// stable across runs, with no semantic meaning.
type DeterministicProvider struct {
	dim int
}

func NewDeterministicProvider(dim int) *DeterministicProvider {
	return &DeterministicProvider{dim: dim}
}

func (d *DeterministicProvider) Name() string   { return "deterministic" }
func (d *DeterministicProvider) Dimension() int { return d.dim }

func (d *DeterministicProvider) Embed(_ context.Context, text string) ([]float32, error) {
	sum := sha256.Sum256([]byte(text))
	v := make([]float32, d.dim)
	for i := 0; i < d.dim; i++ {
		b := sum[i%len(sum)]
		v[i] = (float32(b)/255.0)*2.0 - 1.0
	}
	return normalize(v), nil
}

// OllamaEmbeddingProvider calls a local Ollama server's /api/embeddings endpoint.
type OllamaEmbeddingProvider struct {
	baseURL string
	model   string
	dim     int
	client  *http.Client
}

func NewOllamaEmbeddingProvider(baseURL, model string, dim int) *OllamaEmbeddingProvider {
	if baseURL == "" {
		baseURL = os.Getenv("OLLAMA_HOST")
	}
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	return &OllamaEmbeddingProvider{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		model:   model,
		dim:     dim,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

func (o *OllamaEmbeddingProvider) Name() string   { return "ollama" }
func (o *OllamaEmbeddingProvider) Dimension() int { return o.dim }

func (o *OllamaEmbeddingProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	body, _ := json.Marshal(map[string]string{"model": o.model, "prompt": text})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama embed (is Ollama running at %s?): %w", o.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollama embed error (status %d): %s", resp.StatusCode, string(b))
	}

	var result struct {
		Embedding []float64 `json:"embedding"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	if len(result.Embedding) == 0 {
		return nil, fmt.Errorf("ollama returned empty embedding")
	}
	v := make([]float32, len(result.Embedding))
	for i, f := range result.Embedding {
		v[i] = float32(f)
	}
	return normalize(v), nil
}

// OpenAIEmbeddingProvider calls an OpenAI-compatible /embeddings endpoint.
type OpenAIEmbeddingProvider struct {
	baseURL string
	apiKey  string
	model   string
	dim     int
	client  *http.Client
}

func NewOpenAIEmbeddingProvider(baseURL, apiKey, model string, dim int) *OpenAIEmbeddingProvider {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return &OpenAIEmbeddingProvider{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		dim:     dim,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

func (o *OpenAIEmbeddingProvider) Name() string   { return "openai" }
func (o *OpenAIEmbeddingProvider) Dimension() int { return o.dim }

func (o *OpenAIEmbeddingProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	body, _ := json.Marshal(map[string]string{"input": text, "model": o.model, "encoding_format": "float"})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai embed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("openai embed error (status %d): %s", resp.StatusCode, string(b))
	}

	var result struct {
		Data []struct {
			Embedding []float64 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	if len(result.Data) == 0 || len(result.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("openai returned empty embedding")
	}
	v := make([]float32, len(result.Data[0].Embedding))
	for i, f := range result.Data[0].Embedding {
		v[i] = float32(f)
	}
	return normalize(v), nil
}

// textHash is used by the cache key and by tests asserting cache hits.
func textHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
