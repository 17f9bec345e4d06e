package conversation

import (
	"container/list"
	"sync"

	"github.com/tOgg1/threadview/internal/models"
)

const defaultItemCacheSize = 2048

// itemCache keeps interaction models across loads, least recently used
// first out. A lookup is by key: an entry whose version differs from the
// key is dropped, so an edited interaction is always refetched.
type itemCache struct {
	mu       sync.Mutex
	capacity int
	lru      *list.List
	byID     map[string]*list.Element
	hits     int
	misses   int
}

func newItemCache(capacity int) *itemCache {
	if capacity <= 0 {
		capacity = defaultItemCacheSize
	}
	return &itemCache{
		capacity: capacity,
		lru:      list.New(),
		byID:     make(map[string]*list.Element, capacity),
	}
}

func (c *itemCache) lookup(key models.InteractionKey) (*models.Interaction, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.byID[key.ID]
	if !ok {
		c.misses++
		return nil, false
	}
	interaction := elem.Value.(*models.Interaction)
	if interaction.Version != key.Version {
		c.lru.Remove(elem)
		delete(c.byID, key.ID)
		c.misses++
		return nil, false
	}
	c.lru.MoveToFront(elem)
	c.hits++
	return interaction, true
}

// store caches every interaction in batch. Older versions are replaced.
func (c *itemCache) store(batch []models.Interaction) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range batch {
		interaction := &batch[i]
		if elem, ok := c.byID[interaction.ID]; ok {
			if elem.Value.(*models.Interaction).Version > interaction.Version {
				continue
			}
			elem.Value = interaction
			c.lru.MoveToFront(elem)
			continue
		}
		c.byID[interaction.ID] = c.lru.PushFront(interaction)
	}
	for c.lru.Len() > c.capacity {
		last := c.lru.Back()
		c.lru.Remove(last)
		delete(c.byID, last.Value.(*models.Interaction).ID)
	}
}

// forget drops deleted interactions.
func (c *itemCache) forget(ids []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, id := range ids {
		if elem, ok := c.byID[id]; ok {
			c.lru.Remove(elem)
			delete(c.byID, id)
		}
	}
}

func (c *itemCache) purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lru.Init()
	c.byID = make(map[string]*list.Element, c.capacity)
}

type itemCacheStats struct {
	Size   int
	Hits   int
	Misses int
}

func (c *itemCache) stats() itemCacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return itemCacheStats{Size: c.lru.Len(), Hits: c.hits, Misses: c.misses}
}
