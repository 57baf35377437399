package cache

import "sync"

// Slab is a fixed-size pixel buffer owned by a PixelCache entry. Callers
// must treat a freshly bound slab's Data as uninitialised on a miss — the
// cache does not zero-fill on eviction (spec: cache never zero-fills a
// repurposed slab).
type Slab struct {
	Data   []float32
	Width  int
	Height int
}

type pixelEntry struct {
	hash      uint64
	important bool
	node      *lruNode[int]
	slab      *Slab
}

// PixelCache is a bounded pool of equally sized pixel slabs keyed by a
// 64-bit content hash, with LRU eviction and an "important" pin bit that
// biases an entry against eviction (spec §4.1).
//
// Unlike ShardedCache, PixelCache has a *fixed* number of slots decided at
// construction (5 for preview/full pipes, 2 for thumbnail/export, per
// spec §3) and never grows: eviction always repurposes an existing slab's
// backing array instead of allocating a new one, which is the whole point
// of the cache (avoiding per-frame allocation of multi-megapixel buffers).
type PixelCache struct {
	mu       sync.Mutex
	entries  []*pixelEntry
	byHash   map[uint64]*pixelEntry
	lru      *lruList[int]
	slabSize int // max(w*h) this cache's slabs are sized for, in float32 elements (4 channels already folded in by caller)
}

// New creates a PixelCache with the given fixed capacity (entry count) and
// per-slab element capacity in float32 elements (4 channels * max(w*h)).
func New(capacity, slabElems int) *PixelCache {
	if capacity <= 0 {
		capacity = 1
	}
	c := &PixelCache{
		entries:  make([]*pixelEntry, capacity),
		byHash:   make(map[uint64]*pixelEntry, capacity),
		lru:      newLRUList[int](),
		slabSize: slabElems,
	}
	for i := range c.entries {
		c.entries[i] = &pixelEntry{slab: &Slab{Data: make([]float32, slabElems)}}
	}
	return c
}

// Capacity returns the fixed number of slots this cache manages.
func (c *PixelCache) Capacity() int { return len(c.entries) }

// Available reports whether hash is currently bound to a slab, without
// materialising anything (spec §4.1 `available`).
func (c *PixelCache) Available(hash uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.byHash[hash]
	return ok
}

// Get binds out to the slab for hash, returning true on a cache hit. On a
// miss it evicts the least-weighted non-pinned entry, rebinds it to hash,
// and returns false — the caller is responsible for filling the slab.
func (c *PixelCache) Get(hash uint64, width, height int, out *Slab) bool {
	return c.get(hash, width, height, out, false)
}

// GetImportant behaves like Get but pins the resulting entry, biasing it
// against eviction (spec §4.1 `get_important`) — used by the recursive
// processor for the terminal "gamma" module's output so it survives
// transient pipeline churn (spec §4.7 step 5).
func (c *PixelCache) GetImportant(hash uint64, width, height int, out *Slab) bool {
	return c.get(hash, width, height, out, true)
}

func (c *PixelCache) get(hash uint64, width, height int, out *Slab, important bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.byHash[hash]; ok {
		c.lru.MoveToFront(e.node)
		if important {
			e.important = true
		}
		e.slab.Width, e.slab.Height = width, height
		*out = *e.slab
		return true
	}

	e := c.evictLocked()
	delete(c.byHash, e.hash)
	e.hash = hash
	e.important = important
	e.slab.Width, e.slab.Height = width, height
	c.byHash[hash] = e
	*out = *e.slab
	return false
}

// evictLocked picks the lowest-weight (least-recently-touched) non-pinned
// entry and reclaims it. Pinned entries are evicted only once every entry
// is pinned (spec §4.1 eviction policy). Caller holds c.mu.
func (c *PixelCache) evictLocked() *pixelEntry {
	// Prefer a never-touched slot over evicting a live entry.
	for _, e := range c.entries {
		if e.node == nil {
			e.node = c.lru.PushFront(indexOfLocked(c.entries, e))
			return e
		}
	}
	// Walk the LRU list from the tail (lowest weight); skip pinned entries
	// on the first pass.
	if victim := c.findEvictableLocked(false); victim != nil {
		c.lru.MoveToFront(victim.node)
		return victim
	}
	// Everything is pinned: fall back to evicting the least-recently-used
	// pinned entry rather than growing the pool.
	if victim := c.findEvictableLocked(true); victim != nil {
		victim.important = false
		c.lru.MoveToFront(victim.node)
		return victim
	}
	panic("cache: PixelCache capacity exhausted with no evictable entry")
}

func (c *PixelCache) findEvictableLocked(allowPinned bool) *pixelEntry {
	// lruList only exposes the tail key; walk entries by scanning from
	// the list's oldest end using RemoveOldest+reinsert is destructive, so
	// instead we linearly scan entries for the lowest-weight match. This
	// is O(capacity), which is fine: capacity is fixed at 5 or 2 (spec §3).
	var best *pixelEntry
	bestRank := -1
	for i, e := range c.entries {
		if e.node == nil {
			continue
		}
		if e.important && !allowPinned {
			continue
		}
		rank := c.rankLocked(i)
		if best == nil || rank < bestRank {
			best, bestRank = e, rank
		}
	}
	return best
}

// rankLocked returns the position of entries[i]'s node counting from the
// tail (0 = least recently used), by walking the list. Capacity is tiny
// (spec §3: 5 or 2 entries) so this linear walk is cheap and keeps the
// list implementation (shared with ShardedCache) untouched.
func (c *PixelCache) rankLocked(i int) int {
	rank := 0
	for n := c.lru.tail; n != nil; n = n.prev {
		if n == c.entries[i].node {
			return rank
		}
		rank++
	}
	return -1
}

func indexOfLocked(entries []*pixelEntry, target *pixelEntry) int {
	for i, e := range entries {
		if e == target {
			return i
		}
	}
	return -1
}

// Invalidate marks the entry backing buffer as free: its hash is cleared
// so a subsequent Available returns false (spec §4.1 `invalidate`, §5
// "reserved" entries reclaimable via a zeroed hash).
func (c *PixelCache) Invalidate(buffer *Slab) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e := c.findBySlabLocked(buffer); e != nil {
		delete(c.byHash, e.hash)
		e.hash = 0
		e.important = false
	}
}

// Reweight raises the LRU weight of the entry backing buffer, i.e. marks
// it most-recently-used (spec §4.1 `reweight`).
func (c *PixelCache) Reweight(buffer *Slab) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e := c.findBySlabLocked(buffer); e != nil && e.node != nil {
		c.lru.MoveToFront(e.node)
	}
}

// Flush invalidates every entry (spec §4.1 `flush`).
func (c *PixelCache) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.entries {
		e.hash = 0
		e.important = false
	}
	c.byHash = make(map[uint64]*pixelEntry, len(c.entries))
}

// findBySlabLocked locates the entry backing buffer. Get/GetImportant hand
// callers a copy of the internal *Slab (`*out = *e.slab`), so callers never
// hold the cache's own *Slab pointer — matching on struct pointer identity
// would never succeed. Data's backing array survives the copy, so that's
// what identifies the entry.
func (c *PixelCache) findBySlabLocked(buffer *Slab) *pixelEntry {
	if buffer == nil || len(buffer.Data) == 0 {
		return nil
	}
	for _, e := range c.entries {
		if len(e.slab.Data) > 0 && &e.slab.Data[0] == &buffer.Data[0] {
			return e
		}
	}
	return nil
}
