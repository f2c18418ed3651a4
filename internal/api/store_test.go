package api

import "testing"

func TestRunStoreEvictsOldest(t *testing.T) {
	t.Parallel()

	s := NewRunStore(2)
	for _, id := range []string{"a", "b", "c"} {
		s.Put(Run{ID: id})
	}
	if _, ok := s.Get("a"); ok {
		t.Fatalf("oldest run should be evicted")
	}
	if _, ok := s.Get("c"); !ok {
		t.Fatalf("newest run missing")
	}
	if !s.Delete("b") || s.Delete("b") {
		t.Fatalf("delete should succeed once")
	}
	s.Put(Run{ID: "d"})
	s.Put(Run{ID: "e"})
	if s.Len() != 2 {
		t.Fatalf("len: got %d want 2", s.Len())
	}
}

func TestNewRunID(t *testing.T) {
	t.Parallel()

	a, b := newRunID(), newRunID()
	if a == b || len(a) != len("run_")+36 {
		t.Fatalf("run ids: %q %q", a, b)
	}
}
