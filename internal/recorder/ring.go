package recorder

// Ring is a fixed capacity buffer that overwrites its oldest entry once full.
// Push is O(1). Ring is not safe for concurrent use.
type Ring[T any] struct {
	items []T
	start int
	size  int
}

func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{items: make([]T, capacity)}
}

func (r *Ring[T]) Push(v T) {
	if r.size < len(r.items) {
		r.items[(r.start+r.size)%len(r.items)] = v
		r.size++
		return
	}
	r.items[r.start] = v
	r.start = (r.start + 1) % len(r.items)
}

func (r *Ring[T]) Len() int { return r.size }

func (r *Ring[T]) Cap() int { return len(r.items) }

// Newest returns a copy of the buffer, most recent first.
func (r *Ring[T]) Newest() []T {
	out := make([]T, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.items[(r.start+r.size-1-i)%len(r.items)]
	}
	return out
}

// Oldest returns a copy of the buffer in insertion order.
func (r *Ring[T]) Oldest() []T {
	out := make([]T, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.items[(r.start+i)%len(r.items)]
	}
	return out
}
