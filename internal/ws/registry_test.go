package ws

import "testing"

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	if _, ok := r.Lookup("A"); ok {
		t.Fatal("lookup on empty registry should be absent")
	}

	r.Register("A", "alice")
	r.Register("A", "alicia")
	if name, ok := r.Lookup("A"); !ok || name != "alicia" {
		t.Fatalf("Lookup(A) = %q, %v; want alicia, true", name, ok)
	}

	r.Unregister("A")
	r.Unregister("A")
	if _, ok := r.Lookup("A"); ok {
		t.Fatal("A still registered after Unregister")
	}
	if len(r.names) != 0 {
		t.Fatalf("%d names left, want 0", len(r.names))
	}
}
