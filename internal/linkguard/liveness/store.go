package liveness

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	gocache "github.com/patrickmn/go-cache"
)

// Entry is a cached probe outcome.
type Entry struct {
	Live      bool
	CheckedAt time.Time
}

// Store caches probe outcomes keyed by normalized URL. Implementations must be
// safe for concurrent use; freshness is judged by the Prober, not the Store.
type Store interface {
	Get(key string) (Entry, bool)
	Put(key string, e Entry)
}

// MemoryStore is a bounded LRU store. The least recently used entry is evicted
// once more than capacity keys are held.
type MemoryStore struct {
	cache *lru.Cache[string, Entry]
}

const defaultCapacity = 10000

func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	// lru.New only fails for a non-positive size.
	cache, _ := lru.New[string, Entry](capacity)
	return &MemoryStore{cache: cache}
}

func (s *MemoryStore) Get(key string) (Entry, bool) {
	return s.cache.Get(key)
}

func (s *MemoryStore) Put(key string, e Entry) {
	s.cache.Add(key, e)
}

func (s *MemoryStore) Len() int {
	return s.cache.Len()
}

// SweepingStore keeps entries in a go-cache instance whose janitor removes
// expired entries every sweep interval, bounding growth in long-lived processes.
type SweepingStore struct {
	cache *gocache.Cache
}

func NewSweepingStore(ttl, sweep time.Duration) *SweepingStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if sweep <= 0 {
		sweep = ttl
	}
	return &SweepingStore{cache: gocache.New(ttl, sweep)}
}

func (s *SweepingStore) Get(key string) (Entry, bool) {
	v, ok := s.cache.Get(key)
	if !ok {
		return Entry{}, false
	}
	e, ok := v.(Entry)
	return e, ok
}

func (s *SweepingStore) Put(key string, e Entry) {
	s.cache.SetDefault(key, e)
}

func (s *SweepingStore) Len() int {
	return s.cache.ItemCount()
}
