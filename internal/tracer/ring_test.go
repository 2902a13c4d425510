package tracer

import "testing"

func TestRingStartsEmpty(t *testing.T) {
	r := NewRing[int](4)
	if r.Len() != 0 {
		t.Fatalf("Len = %d, want 0", r.Len())
	}
	if r.Cap() != 4 {
		t.Fatalf("Cap = %d, want 4", r.Cap())
	}
	if _, ok := r.Pop(); ok {
		t.Fatalf("Pop on empty ring returned a value")
	}
}

func TestRingDefaultCapacity(t *testing.T) {
	if got := NewRing[int](0).Cap(); got != DefaultCapacity {
		t.Fatalf("Cap = %d, want %d", got, DefaultCapacity)
	}
	if got := NewRing[int](-3).Cap(); got != DefaultCapacity {
		t.Fatalf("Cap = %d, want %d", got, DefaultCapacity)
	}
}

func TestRingFIFO(t *testing.T) {
	r := NewRing[int](4)
	for i := 1; i <= 3; i++ {
		r.Push(i)
	}
	for want := 1; want <= 3; want++ {
		got, ok := r.Pop()
		if !ok || got != want {
			t.Fatalf("Pop = %d, %v; want %d, true", got, ok, want)
		}
	}
	if r.Len() != 0 {
		t.Fatalf("Len = %d after draining", r.Len())
	}
}

func TestRingOverwritesOldest(t *testing.T) {
	r := NewRing[int](3)
	for i := 1; i <= 5; i++ {
		r.Push(i)
	}
	if r.Len() != 3 {
		t.Fatalf("Len = %d, want 3", r.Len())
	}
	want := []int{3, 4, 5}
	for _, w := range want {
		got, ok := r.Pop()
		if !ok || got != w {
			t.Fatalf("Pop = %d, %v; want %d, true", got, ok, w)
		}
	}
}

func TestRingWrapAround(t *testing.T) {
	r := NewRing[int](3)
	r.Push(1)
	r.Push(2)
	if v, _ := r.Pop(); v != 1 {
		t.Fatalf("Pop = %d, want 1", v)
	}
	r.Push(3)
	r.Push(4) // wraps into the slot Pop freed
	want := []int{2, 3, 4}
	got := r.Snapshot()
	if len(got) != len(want) {
		t.Fatalf("Snapshot = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Snapshot = %v, want %v", got, want)
		}
	}
}

func TestRingSnapshotDoesNotDrain(t *testing.T) {
	r := NewRing[string](2)
	r.Push("a")
	r.Push("b")
	_ = r.Snapshot()
	if r.Len() != 2 {
		t.Fatalf("Len = %d after Snapshot, want 2", r.Len())
	}
}
