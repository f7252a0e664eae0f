package assethat

import (
	"html/template"
	"sync"
)

// Rendered is the output of one inclusion call. URLs is always filled;
// HTML is empty in only-URL mode.
type Rendered struct {
	HTML template.HTML
	URLs []string
}

func (r Rendered) size() int64 {
	n := int64(len(r.HTML))
	for _, u := range r.URLs {
		n += int64(len(u))
	}
	return n
}

type renderItem struct {
	key  string
	val  Rendered
	size int64
	prev *renderItem
	next *renderItem
}

// renderCache is an LRU of rendered output bounded by bytes; maxBytes 0
// means unbounded.
type renderCache struct {
	maxBytes int64
	stats    *statsCollector

	mu    sync.Mutex
	items map[string]*renderItem
	head  *renderItem
	tail  *renderItem
	total int64
}

func newRenderCache(maxBytes int64, stats *statsCollector) *renderCache {
	return &renderCache{maxBytes: maxBytes, stats: stats, items: map[string]*renderItem{}}
}

// GetOrRender memoizes fn under (t, key) when enabled and always calls fn
// otherwise. Errors are never cached.
func (c *renderCache) GetOrRender(t AssetType, key string, enabled bool, fn func() (Rendered, error)) (Rendered, error) {
	if !enabled {
		return fn()
	}
	k := string(t) + "\x00" + key
	if v, ok := c.Get(k); ok {
		c.stats.Hit()
		return v, nil
	}
	c.stats.Miss()
	v, err := fn()
	if err != nil {
		return Rendered{}, err
	}
	c.Put(k, v)
	c.stats.Observe(int(v.size()))
	return v, nil
}

func (c *renderCache) Get(key string) (Rendered, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	it, ok := c.items[key]
	if !ok {
		return Rendered{}, false
	}
	c.moveToFront(it)
	return it.val, true
}

func (c *renderCache) Put(key string, val Rendered) {
	sz := val.size() + int64(len(key))
	if c.maxBytes > 0 && sz > c.maxBytes {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if it, ok := c.items[key]; ok {
		c.total -= it.size
		it.val = val
		it.size = sz
		c.total += sz
		c.moveToFront(it)
		return
	}

	for c.maxBytes > 0 && c.total+sz > c.maxBytes && c.tail != nil {
		c.evictLocked()
	}

	it := &renderItem{key: key, val: val, size: sz}
	c.items[key] = it
	c.addToFront(it)
	c.total += sz
}

func (c *renderCache) Clear() {
	c.mu.Lock()
	c.items = map[string]*renderItem{}
	c.head, c.tail = nil, nil
	c.total = 0
	c.mu.Unlock()
}

func (c *renderCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *renderCache) TotalSize() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}

// evictLocked drops the least recently used 10% (at least one entry).
func (c *renderCache) evictLocked() {
	n := len(c.items) / 10
	if n < 1 {
		n = 1
	}
	for i := 0; i < n; i++ {
		it := c.tail
		if it == nil {
			return
		}
		c.remove(it)
		delete(c.items, it.key)
		c.total -= it.size
		c.stats.Evict()
	}
}

func (c *renderCache) addToFront(it *renderItem) {
	it.prev = nil
	it.next = c.head
	if c.head != nil {
		c.head.prev = it
	}
	c.head = it
	if c.tail == nil {
		c.tail = it
	}
}

func (c *renderCache) remove(it *renderItem) {
	if it.prev != nil {
		it.prev.next = it.next
	} else {
		c.head = it.next
	}
	if it.next != nil {
		it.next.prev = it.prev
	} else {
		c.tail = it.prev
	}
	it.prev, it.next = nil, nil
}

func (c *renderCache) moveToFront(it *renderItem) {
	if c.head == it {
		return
	}
	c.remove(it)
	c.addToFront(it)
}
