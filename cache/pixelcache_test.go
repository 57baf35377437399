package cache

import "testing"

func TestPixelCacheMissThenHit(t *testing.T) {
	c := New(2, 16)
	var buf Slab

	if hit := c.Get(1, 4, 4, &buf); hit {
		t.Fatal("expected miss on first Get")
	}
	if !c.Available(1) {
		t.Fatal("expected Available(1) after Get miss")
	}

	var buf2 Slab
	if hit := c.Get(1, 4, 4, &buf2); !hit {
		t.Fatal("expected hit on second Get for same hash")
	}
	if &buf2.Data[0] != &buf.Data[0] {
		t.Fatal("expected hit to bind to the same backing slab")
	}
}

func TestPixelCacheInvalidate(t *testing.T) {
	c := New(2, 16)
	var buf Slab
	c.Get(1, 4, 4, &buf)
	for i := range buf.Data {
		buf.Data[i] = float32(i)
	}

	// buf is a value copy handed back by Get, never the cache's own *Slab,
	// so Invalidate has to recognise it by its backing array, not by
	// pointer identity with an internal entry.
	c.Invalidate(&buf)
	if c.Available(1) {
		t.Fatal("expected Available(1) false after Invalidate")
	}
}

func TestPixelCacheReweightMovesEntryToFrontOfLRU(t *testing.T) {
	c := New(2, 16)
	var bufA, bufB Slab
	c.Get(1, 4, 4, &bufA)
	c.Get(2, 4, 4, &bufB)
	for i := range bufA.Data {
		bufA.Data[i] = float32(i + 1)
	}

	// Both slots are now occupied. Without a reweight, hash 1 is the
	// least-recently-touched and would be evicted first; after
	// reweighting it via the caller's own Slab copy, hash 2 should be
	// evicted instead.
	c.Reweight(&bufA)

	var bufC Slab
	if hit := c.Get(3, 4, 4, &bufC); hit {
		t.Fatal("expected miss binding a third distinct hash")
	}
	if c.Available(2) {
		t.Fatal("expected hash 2 to have been evicted instead of hash 1 after reweighting hash 1")
	}
	if !c.Available(1) {
		t.Fatal("expected hash 1 to survive eviction after Reweight")
	}
}

func TestPixelCacheEvictsLeastWeighted(t *testing.T) {
	c := New(2, 16)
	var a, b, d Slab
	c.Get(1, 4, 4, &a)
	c.Get(2, 4, 4, &b)

	// Touch hash 1 again so hash 2 becomes the least recently used.
	var a2 Slab
	c.Get(1, 4, 4, &a2)

	// A third distinct hash should evict hash 2, not hash 1.
	c.Get(3, 4, 4, &d)
	if !c.Available(1) {
		t.Fatal("expected hash 1 to survive eviction (more recently used)")
	}
	if c.Available(2) {
		t.Fatal("expected hash 2 to be evicted")
	}
}

func TestPixelCachePinnedSurvivesUntilAllPinned(t *testing.T) {
	c := New(2, 16)
	var important, other, third Slab
	c.GetImportant(1, 4, 4, &important)
	c.Get(2, 4, 4, &other)

	// Evicting for a new hash must skip the pinned entry for as long as a
	// non-pinned entry exists.
	c.Get(3, 4, 4, &third)
	if !c.Available(1) {
		t.Fatal("expected pinned entry to survive while a non-pinned entry was evictable")
	}
	if c.Available(2) {
		t.Fatal("expected non-pinned entry to be evicted first")
	}
}

func TestPixelCacheFlush(t *testing.T) {
	c := New(2, 16)
	var buf Slab
	c.Get(1, 4, 4, &buf)
	c.Flush()
	if c.Available(1) {
		t.Fatal("expected Available(1) false after Flush")
	}
}
