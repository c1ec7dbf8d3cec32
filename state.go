package asyncfs

import "sync/atomic"

// lifecycleState is a small atomic CAS state machine, generalized from the
// teacher's FastState (an event-loop lifecycle machine) into a reusable
// building block for the several state machines this package needs: handle
// registry entries (Present/CheckedOut/Destroyed), the walk completion
// authority (Running/Failed/Cancelled/Finished), the lane's shutdown flag,
// and the streaming-write entry's lifecycle.
//
// Transitions are expressed as CompareAndSwap; callers compose forward-only
// semantics (no state may transition back to an earlier value) by only ever
// attempting transitions that move forward, as the individual state machines
// in this package do.
type lifecycleState struct {
	v atomic.Uint32
}

// newLifecycleState returns a lifecycleState initialized to initial.
func newLifecycleState(initial uint32) *lifecycleState {
	s := &lifecycleState{}
	s.v.Store(initial)
	return s
}

// Load returns the current state atomically.
func (s *lifecycleState) Load() uint32 {
	return s.v.Load()
}

// Store unconditionally stores a new state. Reserved for irreversible
// terminal transitions where no other goroutine can be racing a CAS against
// the current value (e.g. initialization).
func (s *lifecycleState) Store(v uint32) {
	s.v.Store(v)
}

// TryTransition attempts to atomically move from "from" to "to", returning
// true if this call performed the transition.
func (s *lifecycleState) TryTransition(from, to uint32) bool {
	return s.v.CompareAndSwap(from, to)
}

// TransitionAny attempts a transition from any of validFrom to to, returning
// true if this call performed the transition. Used where a state machine may
// legally move to a given target from more than one source state (e.g. a
// handle entry may be destroyed whether it was Present or CheckedOut).
func (s *lifecycleState) TransitionAny(validFrom []uint32, to uint32) bool {
	for _, from := range validFrom {
		if s.v.CompareAndSwap(from, to) {
			return true
		}
	}
	return false
}
