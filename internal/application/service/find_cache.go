package service

import (
	"log"
	"sync"

	"WCKV/internal/domain"
	"WCKV/internal/platform/metrics"
	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	DefaultFindCacheSize = 4096
	cacheStripes         = 64
)

// FindCache keeps recently read rows by message key. Every mutation of a row must
// invalidate it.
//
// Invalidate bumps a per-stripe generation. A reader takes the generation before
// reading the engine and Add drops the row when an invalidation happened since,
// so a row read before a write can never be cached after that write.
type FindCache struct {
	rows    *lru.Cache[string, map[string][]byte]
	stripes [cacheStripes]cacheStripe
}

type cacheStripe struct {
	mu         sync.Mutex
	generation uint64
}

func NewFindCache(size int) *FindCache {
	if size <= 0 {
		size = DefaultFindCacheSize
	}
	rows, err := lru.New[string, map[string][]byte](size)
	if err != nil {
		// only reachable with a non-positive size
		log.Panicf("create find cache: %v", err)
	}
	return &FindCache{rows: rows}
}

func (c *FindCache) stripe(id string) *cacheStripe {
	return &c.stripes[xxhash.Sum64String(id)%cacheStripes]
}

func (c *FindCache) Get(key domain.MessageKey) (map[string][]byte, bool) {
	columns, ok := c.rows.Get(key.String())
	if ok {
		metrics.FindCacheRequestsTotal.WithLabelValues(metrics.ResultHit).Inc()
	} else {
		metrics.FindCacheRequestsTotal.WithLabelValues(metrics.ResultMiss).Inc()
	}
	return columns, ok
}

// Generation must be taken before the row is read from the engine.
func (c *FindCache) Generation(key domain.MessageKey) uint64 {
	s := c.stripe(key.String())
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// Add caches the row unless the key was invalidated after generation was taken.
func (c *FindCache) Add(key domain.MessageKey, generation uint64, columns map[string][]byte) bool {
	id := key.String()
	s := c.stripe(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != generation {
		return false
	}
	c.rows.Add(id, columns)
	return true
}

func (c *FindCache) Invalidate(key domain.MessageKey) {
	id := key.String()
	s := c.stripe(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	c.rows.Remove(id)
}

func (c *FindCache) Len() int {
	return c.rows.Len()
}
