package masks

import "testing"

func TestCreateIDsAreUnique(t *testing.T) {
	store := NewStore()
	seen := make(map[uint64]bool)
	for i := 0; i < 50; i++ {
		shape := store.Create(VariantCircle)
		if seen[shape.ID] {
			t.Fatalf("duplicate id %d assigned", shape.ID)
		}
		seen[shape.ID] = true
	}
}

func TestIDsNeverReused(t *testing.T) {
	store := NewStore()
	a := store.Create(VariantCircle)
	b := store.Create(VariantCircle)
	store.Remove(a.ID)

	c := store.Create(VariantCircle)
	if c.ID == a.ID {
		t.Fatalf("removed id %d was reassigned", a.ID)
	}
	if c.ID == b.ID {
		t.Fatalf("live id %d collided with new shape", b.ID)
	}
}

func TestInsertRejectsCollidingID(t *testing.T) {
	store := NewStore()
	shape := &Shape{ID: 100, Variant: VariantCircle}
	if !store.Insert(shape) {
		t.Fatal("first insert of id 100 should succeed")
	}
	if store.Insert(&Shape{ID: 100, Variant: VariantCircle}) {
		t.Fatal("second insert of id 100 should be rejected")
	}
}

func TestRemoveCascadesEmptyGroups(t *testing.T) {
	store := NewStore()
	leaf := store.Create(VariantCircle)
	group := store.Create(VariantGroup)
	group.Group = []GroupRef{{FormID: leaf.ID, State: StateUse}}
	outer := store.Create(VariantGroup)
	outer.Group = []GroupRef{{FormID: group.ID, State: StateUse}}

	store.Remove(leaf.ID)

	if _, ok := store.Get(group.ID); ok {
		t.Fatal("group left with zero members should have been removed")
	}
	if _, ok := store.Get(outer.ID); ok {
		t.Fatal("outer group referencing the now-empty group should cascade-remove too")
	}
}

func TestRemoveShrinksGroupReferenceListPreservingOrder(t *testing.T) {
	// spec scenario 4: three-shape group, remove the middle shape.
	store := NewStore()
	a := store.Create(VariantCircle)
	b := store.Create(VariantCircle)
	c := store.Create(VariantCircle)
	group := store.Create(VariantGroup)
	group.Group = []GroupRef{
		{FormID: a.ID, State: StateUse},
		{FormID: b.ID, State: StateUse},
		{FormID: c.ID, State: StateUse},
	}

	store.Remove(b.ID)

	got, ok := store.Get(group.ID)
	if !ok {
		t.Fatal("group with remaining members should survive")
	}
	if len(got.Group) != 2 {
		t.Fatalf("group.Group len = %d, want 2", len(got.Group))
	}
	if got.Group[0].FormID != a.ID || got.Group[1].FormID != c.ID {
		t.Fatalf("group.Group = %+v, want order [a, c] preserved", got.Group)
	}
}

func TestAllReturnsInsertionOrder(t *testing.T) {
	store := NewStore()
	first := store.Create(VariantCircle)
	second := store.Create(VariantCircle)
	third := store.Create(VariantCircle)

	all := store.All()
	if len(all) != 3 || all[0].ID != first.ID || all[1].ID != second.ID || all[2].ID != third.ID {
		t.Fatalf("All() = %+v, want insertion order [%d %d %d]", all, first.ID, second.ID, third.ID)
	}
}

func TestLenTracksLiveShapes(t *testing.T) {
	store := NewStore()
	a := store.Create(VariantCircle)
	store.Create(VariantCircle)
	if store.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", store.Len())
	}
	store.Remove(a.ID)
	if store.Len() != 1 {
		t.Fatalf("Len() after remove = %d, want 1", store.Len())
	}
}
