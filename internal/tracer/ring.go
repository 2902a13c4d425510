package tracer

// Ring is a fixed-capacity FIFO buffer. Pushing onto a full ring
// overwrites the oldest element. Not safe for concurrent use; Log adds
// the locking.
type Ring[T any] struct {
	data  []T
	start int
	count int
}

// NewRing creates a ring with the given capacity.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ring[T]{data: make([]T, capacity)}
}

// Push appends an element, evicting the oldest when full.
func (r *Ring[T]) Push(item T) {
	if r.count == len(r.data) {
		r.data[r.start] = item
		r.start = (r.start + 1) % len(r.data)
		return
	}
	r.data[(r.start+r.count)%len(r.data)] = item
	r.count++
}

// Pop removes and returns the oldest element.
func (r *Ring[T]) Pop() (T, bool) {
	var zero T
	if r.count == 0 {
		return zero, false
	}
	v := r.data[r.start]
	r.data[r.start] = zero
	r.start = (r.start + 1) % len(r.data)
	r.count--
	return v, true
}

// Len returns the number of buffered elements.
func (r *Ring[T]) Len() int {
	return r.count
}

// Cap returns the ring capacity.
func (r *Ring[T]) Cap() int {
	return len(r.data)
}

// Snapshot returns a copy of the contents, oldest first.
func (r *Ring[T]) Snapshot() []T {
	out := make([]T, r.count)
	for i := 0; i < r.count; i++ {
		out[i] = r.data[(r.start+i)%len(r.data)]
	}
	return out
}
