package masks

import (
	"sync"

	"golang.org/x/exp/slices"
)

// firstUserID is the smallest id handed out by Store.Create. Lower ids are
// reserved, matching the original source's reserved id range for
// built-in/system forms.
const firstUserID = 100

// Store is the in-memory catalogue of shapes for one image (spec §4.4): a
// flat map keyed by id plus an insertion-ordered index so iteration (e.g.
// Ungroup, persistence) is deterministic rather than map-random.
//
// Grounded on cache.ShardedCache's mutex-guarded map shape, simplified to a
// single lock since a shape catalogue is per-image and not a high-contention
// structure the way a pipeline-wide pixel cache is.
type Store struct {
	mu     sync.RWMutex
	shapes map[uint64]*Shape
	order  []uint64
	used   map[uint64]struct{} // every id ever assigned, live or not (spec §9 OQ2)
	nextID uint64
}

// NewStore returns an empty shape catalogue.
func NewStore() *Store {
	return &Store{
		shapes: make(map[uint64]*Shape),
		used:   make(map[uint64]struct{}),
		nextID: firstUserID,
	}
}

// Create allocates a new shape of the given variant with a fresh id and
// inserts it into the store. The id is guaranteed never to collide with any
// id ever assigned by this store, including ids of since-removed shapes
// (spec §4.4 "ids are never reused"). Checking is O(1) amortized via the
// used set, rather than the original's linear rescan of the shape list
// (spec §9 Open Question: "non-quadratic id assignment").
func (s *Store) Create(variant Variant) *Shape {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextFreeIDLocked()
	shape := &Shape{ID: id, Variant: variant, Version: 1}
	s.shapes[id] = shape
	s.order = append(s.order, id)
	return shape
}

func (s *Store) nextFreeIDLocked() uint64 {
	for {
		id := s.nextID
		s.nextID++
		if _, taken := s.used[id]; !taken {
			s.used[id] = struct{}{}
			return id
		}
	}
}

// Insert adds a shape that already carries an id (e.g. loaded from
// persistence). It reports false without modifying the store if the id is
// already in use.
func (s *Store) Insert(shape *Shape) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.used[shape.ID]; taken {
		return false
	}
	s.used[shape.ID] = struct{}{}
	s.shapes[shape.ID] = shape
	s.order = append(s.order, shape.ID)
	if shape.ID >= s.nextID {
		s.nextID = shape.ID + 1
	}
	return true
}

// Get returns the shape with the given id.
func (s *Store) Get(id uint64) (*Shape, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	shape, ok := s.shapes[id]
	return shape, ok
}

// All returns every shape in insertion order. The returned slice is a copy;
// mutating it does not affect the store.
func (s *Store) All() []*Shape {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Shape, 0, len(s.order))
	for _, id := range s.order {
		if shape, ok := s.shapes[id]; ok {
			out = append(out, shape)
		}
	}
	return out
}

// Remove deletes the shape with the given id. If removing it leaves any
// group referencing it with zero remaining members (after dropping the
// reference), that now-empty group is removed too, cascading upward through
// any groups that in turn referenced it (spec §4.4 "removing a form
// collapses groups left with no members").
func (s *Store) Remove(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(id)
}

func (s *Store) removeLocked(id uint64) {
	if _, ok := s.shapes[id]; !ok {
		return
	}
	delete(s.shapes, id)
	idx := slices.Index(s.order, id)
	if idx >= 0 {
		s.order = slices.Delete(s.order, idx, idx+1)
	}

	// Drop any reference to id from every remaining group, cascading into
	// empty groups.
	var emptied []uint64
	for _, other := range s.order {
		group, ok := s.shapes[other]
		if !ok || group.Variant != VariantGroup {
			continue
		}
		filtered := group.Group[:0:0]
		for _, ref := range group.Group {
			if ref.FormID == id {
				continue
			}
			filtered = append(filtered, ref)
		}
		group.Group = filtered
		if len(group.Group) == 0 {
			emptied = append(emptied, other)
		}
	}
	for _, emptyID := range emptied {
		s.removeLocked(emptyID)
	}
}

// Len returns the number of live shapes in the store.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.shapes)
}
