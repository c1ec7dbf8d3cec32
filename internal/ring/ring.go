// Package ring provides a generic power-of-2-sized circular buffer, adapted
// from the rate limiter's own ring buffer (github.com/joeycumines/go-catrate,
// ring.go) for a different job: backing the pre-read buffers of asyncfs's
// pull-based directory iterator and byte-chunk iterator (spec §4.C8, §4.C10),
// where entries are pushed in batches from a lane job and popped one at a
// time by callers of next().
//
// Unlike the rate limiter's ring, this one only needs push-back/pop-front
// and growth, not arbitrary Insert/Search, so the type here is considerably
// smaller than its source.
package ring

// Buffer is a growable circular buffer of E.
type Buffer[E any] struct {
	s    []E
	r, w uint
}

// New returns an empty Buffer with room for at least capacity elements
// before its first grow.
func New[E any](capacity int) *Buffer[E] {
	size := 1
	for size < capacity {
		size <<= 1
	}
	if size == 0 {
		size = 1
	}
	return &Buffer[E]{s: make([]E, size)}
}

func (b *Buffer[E]) mask(v uint) uint { return v & (uint(len(b.s)) - 1) }

// Len reports how many elements are currently buffered.
func (b *Buffer[E]) Len() int { return int(b.w - b.r) }

// Cap reports the buffer's current backing capacity.
func (b *Buffer[E]) Cap() int { return len(b.s) }

// PushBack appends a new element, growing the backing array if full.
func (b *Buffer[E]) PushBack(v E) {
	if b.Len() == len(b.s) {
		b.grow()
	}
	b.s[b.mask(b.w)] = v
	b.w++
}

// PopFront removes and returns the oldest element. Panics if empty.
func (b *Buffer[E]) PopFront() E {
	if b.Len() == 0 {
		panic("ring: pop from empty buffer")
	}
	v := b.s[b.mask(b.r)]
	var zero E
	b.s[b.mask(b.r)] = zero
	b.r++
	return v
}

// Peek returns the oldest element without removing it. Panics if empty.
func (b *Buffer[E]) Peek() E {
	if b.Len() == 0 {
		panic("ring: peek of empty buffer")
	}
	return b.s[b.mask(b.r)]
}

func (b *Buffer[E]) grow() {
	newSize := len(b.s) * 2
	if newSize == 0 {
		newSize = 1
	}
	ns := make([]E, newSize)
	n := b.Len()
	for i := 0; i < n; i++ {
		ns[i] = b.s[b.mask(b.r+uint(i))]
	}
	b.s = ns
	b.r = 0
	b.w = uint(n)
}
