// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: Apache-2.0

package vector

import (
	"container/list"
	"crypto/sha256"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// EmbedCache memoizes hash(text)->vector. Store exposes it through
// CachedEmbedding/CacheEmbedding so callers can skip re-embedding
// unchanged content; AddVectors does not consult it. This is distinct from
// pkg/embedding's own Cache: that one sits in front of provider calls,
// this one sits in front of the vector store's ingest path and is keyed
// purely by content hash rather than provider identity.
type EmbedCache struct {
	mu       sync.Mutex
	ttl      time.Duration
	maxBytes int64
	curBytes int64
	ll       *list.List
	items    map[[32]byte]*list.Element
}

type embedCacheEntry struct {
	key      [32]byte
	vec      Vector
	size     int64
	expireAt time.Time
}

func NewEmbedCache(maxBytes int64, ttl time.Duration) *EmbedCache {
	vectorCacheMetrics.init()
	return &EmbedCache{
		ttl:      ttl,
		maxBytes: maxBytes,
		ll:       list.New(),
		items:    make(map[[32]byte]*list.Element),
	}
}

func hashText(text string) [32]byte {
	return sha256.Sum256([]byte(text))
}

// Get returns the cached vector for text, if present and not expired.
func (c *EmbedCache) Get(text string) (Vector, bool) {
	key := hashText(text)

	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		vectorCacheMetrics.misses.Inc()
		return nil, false
	}
	entry := el.Value.(*embedCacheEntry)
	if time.Now().After(entry.expireAt) {
		c.removeElement(el)
		vectorCacheMetrics.misses.Inc()
		return nil, false
	}
	c.ll.MoveToFront(el)
	vectorCacheMetrics.hits.Inc()
	return entry.vec, true
}

// Put stores v under hash(text), evicting the oldest entries until the
// cache is back under its byte budget.
func (c *EmbedCache) Put(text string, v Vector) {
	key := hashText(text)
	size := int64(len(v)) * 4

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		entry := el.Value.(*embedCacheEntry)
		c.curBytes -= entry.size
		entry.vec = v
		entry.size = size
		entry.expireAt = time.Now().Add(c.ttl)
		c.curBytes += size
		c.ll.MoveToFront(el)
	} else {
		entry := &embedCacheEntry{key: key, vec: v, size: size, expireAt: time.Now().Add(c.ttl)}
		el := c.ll.PushFront(entry)
		c.items[key] = el
		c.curBytes += size
	}

	for c.maxBytes > 0 && c.curBytes > c.maxBytes {
		back := c.ll.Back()
		if back == nil {
			break
		}
		c.removeElement(back)
	}
	vectorCacheMetrics.bytes.Set(float64(c.curBytes))
}

func (c *EmbedCache) removeElement(el *list.Element) {
	entry := el.Value.(*embedCacheEntry)
	c.ll.Remove(el)
	delete(c.items, entry.key)
	c.curBytes -= entry.size
}

func (c *EmbedCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

type metricsVectorCache struct {
	once   sync.Once
	hits   prometheus.Counter
	misses prometheus.Counter
	bytes  prometheus.Gauge
}

var vectorCacheMetrics metricsVectorCache

func (m *metricsVectorCache) init() {
	m.once.Do(func() {
		m.hits = prometheus.NewCounter(prometheus.CounterOpts{Name: "codegraph_vector_embedcache_hits_total", Help: "Embedding cache hits in the vector store ingest path"})
		m.misses = prometheus.NewCounter(prometheus.CounterOpts{Name: "codegraph_vector_embedcache_misses_total", Help: "Embedding cache misses in the vector store ingest path"})
		m.bytes = prometheus.NewGauge(prometheus.GaugeOpts{Name: "codegraph_vector_embedcache_bytes", Help: "Approximate bytes resident in the vector embedding cache"})
		prometheus.MustRegister(m.hits, m.misses, m.bytes)
	})
}
