package asyncfs

import "unsafe"

// handleSlot is the heap cell that transports a *Handle across the lane
// suspension boundary by address rather than by value (spec §4.C4).
//
// Grounded on the design note in spec.md §9 ("Non-copyable handle across
// suspension"): in a language without move semantics, the teacher's own
// pattern of smuggling a value through a closure as a plain integer
// (eventloop/loop.go uses unsafe.Pointer-backed fields for its cache-line
// padded atomics) generalizes directly — address() erases the *Handle to a
// uintptr, the lane job reconstructs it inside the single worker goroutine
// that owns it, and the slot itself lives on the caller's stack/goroutine
// frame for the entire round trip, which is what makes this safe without a
// GC pin: the caller's goroutine is blocked awaiting the lane's result
// channel for the whole time the worker holds the address, so the slot
// cannot be collected or reused out from under the worker.
type handleSlot struct {
	handle *Handle
	ready  bool
}

// newHandleSlot allocates an empty slot.
func newHandleSlot() *handleSlot {
	return &handleSlot{}
}

// initialize stores h in the slot. Must be called at most once before the
// slot crosses into a lane job.
func (s *handleSlot) initialize(h *Handle) {
	s.handle = h
	s.ready = true
}

// address returns the slot's own address as a plain integer, suitable for
// capture by a closure that must not retain a typed *Handle reference
// across the suspension point.
func (s *handleSlot) address() uintptr {
	return uintptr(unsafe.Pointer(s))
}

// slotFromAddress reconstructs the *handleSlot from an address produced by
// address(). Only valid while the originating slot is still alive, which
// the lane's run-to-completion-before-caller-resumes contract guarantees
// (spec §4.C4).
func slotFromAddress(addr uintptr) *handleSlot {
	return (*handleSlot)(unsafe.Pointer(addr)) //nolint:govet
}

// take removes and returns the handle, leaving the slot empty. Panics if
// the slot was never initialized or has already been taken — this is a
// developer-error signal per spec §7 "Fatal conditions", not a runtime
// fallback.
func (s *handleSlot) take() *Handle {
	if !s.ready || s.handle == nil {
		panic("asyncfs: handleSlot.take on empty slot")
	}
	h := s.handle
	s.handle = nil
	s.ready = false
	return h
}
