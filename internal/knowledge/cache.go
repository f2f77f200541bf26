package knowledge

import (
	"container/list"
	"sync"
	"time"

	"github.com/relaylabs/relay-gateway/internal/domain"
)

// ContextCache keeps recent retrieval results per session so low-signal
// follow-up turns can skip re-embedding and re-searching. It is a latency
// and cost optimization only, never a source of truth: a miss means "do a
// live retrieval or proceed with no context", never an error.
type ContextCache struct {
	mu         sync.Mutex
	entries    map[string]*list.Element
	order      *list.List // front = oldest
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

type cacheEntry struct {
	sessionID string
	chunks    []domain.KnowledgeChunk
	cachedAt  time.Time
}

// NewContextCache creates a bounded TTL cache.
func NewContextCache(ttl time.Duration, maxEntries int) *ContextCache {
	if maxEntries <= 0 {
		maxEntries = 120
	}
	return &ContextCache{
		entries:    make(map[string]*list.Element),
		order:      list.New(),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// Get returns the cached chunks for a session, or nil on miss or expiry.
func (c *ContextCache) Get(sessionID string) []domain.KnowledgeChunk {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[sessionID]
	if !ok {
		return nil
	}
	entry := elem.Value.(*cacheEntry)
	if c.now().Sub(entry.cachedAt) > c.ttl {
		c.order.Remove(elem)
		delete(c.entries, sessionID)
		return nil
	}
	return entry.chunks
}

// Put stores retrieval results for a session, evicting oldest entries once
// capacity is exceeded.
func (c *ContextCache) Put(sessionID string, chunks []domain.KnowledgeChunk) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[sessionID]; ok {
		c.order.Remove(elem)
		delete(c.entries, sessionID)
	}

	elem := c.order.PushBack(&cacheEntry{
		sessionID: sessionID,
		chunks:    chunks,
		cachedAt:  c.now(),
	})
	c.entries[sessionID] = elem

	for len(c.entries) > c.maxEntries {
		oldest := c.order.Front()
		if oldest == nil {
			break
		}
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).sessionID)
	}
}

// Len returns the number of live entries.
func (c *ContextCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
