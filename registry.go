package asyncfs

import (
	"context"
	"fmt"
	"sync"
)

// HandleID identifies a registered Handle within the registry of the
// Executor that minted it (spec §4.C5 "Handle registry"). It is an opaque
// value type: comparable, copyable, and carries no reference to the
// underlying *Handle, so holding one across a suspension point is always
// safe, unlike holding a *Handle itself.
type HandleID struct {
	raw   int64
	scope int64
}

func (id HandleID) String() string {
	return fmt.Sprintf("HandleID(scope=%d, id=%d)", id.scope, id.raw)
}

// IsZero reports whether id is the zero value (never returned by a live
// registry; useful as a "no handle" sentinel in caller code).
func (id HandleID) IsZero() bool { return id == HandleID{} }

// entry lifecycle states for registryEntry.state (spec §4.C5 "Entry
// lifecycle": Present, CheckedOut, Destroyed).
const (
	entryPresent uint32 = iota
	entryCheckedOut
	entryDestroyed
)

// registryEntry is one live (HandleID -> *Handle) binding. All field access
// happens under mu, which also serializes state transitions; lifecycleState
// is reused here mainly so the three states read the same way everywhere
// else in this package, not because the CAS itself needs to race anything
// outside mu's protection.
type registryEntry struct {
	mu      sync.Mutex
	state   *lifecycleState
	handle  *Handle
	waiters waiterQueue
}

// registry is the actor-owned map a single Executor keeps from HandleID to
// live Handle, implementing the check-out/check-in protocol spec §4.C5
// describes: a Handle is only ever reachable through exactly one owner at a
// time (the registry itself, or whichever lane job currently has it
// checked out), which is what makes the non-copyable Handle safe to move
// across goroutines without a data race.
type registry struct {
	scope   int64
	mu      sync.Mutex
	entries map[int64]*registryEntry
	nextID  int64
}

func newRegistry(scope int64) *registry {
	return &registry{
		scope:   scope,
		entries: make(map[int64]*registryEntry),
	}
}

// register mints a fresh HandleID for h, installed in the Present state.
// IDs are monotonically increasing per registry (spec §8 property 2).
func (r *registry) register(h *Handle) HandleID {
	r.mu.Lock()
	r.nextID++
	raw := r.nextID
	r.entries[raw] = &registryEntry{state: newLifecycleState(entryPresent), handle: h}
	r.mu.Unlock()
	return HandleID{raw: raw, scope: r.scope}
}

func (r *registry) lookup(id HandleID) (*registryEntry, error) {
	if id.scope != r.scope {
		return nil, ErrScopeMismatch
	}
	r.mu.Lock()
	e, ok := r.entries[id.raw]
	r.mu.Unlock()
	if !ok {
		return nil, ErrInvalidID
	}
	return e, nil
}

// checkOut removes the handle from the entry, transitioning it to
// CheckedOut, blocking in FIFO order behind any other borrower (spec §4.C5
// "check-out"). It returns ErrHandleClosed if the entry has been destroyed,
// and ctx.Err() if ctx is done before a borrow slot is free.
func (r *registry) checkOut(ctx context.Context, id HandleID) (*Handle, error) {
	e, err := r.lookup(id)
	if err != nil {
		return nil, err
	}
	for {
		e.mu.Lock()
		switch e.state.Load() {
		case entryDestroyed:
			e.mu.Unlock()
			return nil, ErrHandleClosed
		case entryPresent:
			h := e.handle
			e.handle = nil
			e.state.Store(entryCheckedOut)
			e.mu.Unlock()
			return h, nil
		default: // entryCheckedOut: wait our turn
			waiter := e.waiters.enqueue()
			e.mu.Unlock()
			select {
			case <-waiter.ch:
				// resumed by a check-in or a destroy; loop to re-check state.
			case <-ctx.Done():
				e.mu.Lock()
				e.waiters.cancel(waiter)
				e.mu.Unlock()
				return nil, ctx.Err()
			}
		}
	}
}

// checkIn returns a previously checked-out handle to the entry, waking the
// next FIFO waiter if any (spec §4.C5 "check-in"). If the entry was
// destroyed while h was checked out, checkIn reports ErrHandleClosed and the
// caller is responsible for closing h itself (the destroyer could not, since
// it did not have it).
func (r *registry) checkIn(id HandleID, h *Handle) error {
	e, err := r.lookup(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state.Load() == entryDestroyed {
		r.mu.Lock()
		delete(r.entries, id.raw)
		r.mu.Unlock()
		return ErrHandleClosed
	}
	e.handle = h
	e.state.Store(entryPresent)
	e.waiters.resumeNext()
	return nil
}

// destroy removes id from the registry permanently. If the handle is
// currently Present, destroy returns it for the caller to close (on the
// lane); if it is CheckedOut, destroy only marks the entry Destroyed and
// wakes every waiter (so they observe ErrHandleClosed instead of blocking
// forever) — the borrower's eventual checkIn is what actually closes the
// handle, since destroy never has it in hand.
func (r *registry) destroy(id HandleID) (*Handle, error) {
	e, err := r.lookup(id)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	wasCheckedOut := e.state.Load() == entryCheckedOut
	e.state.Store(entryDestroyed)
	h := e.handle
	e.handle = nil
	e.waiters.resumeAll()
	if wasCheckedOut {
		// the entry stays in the map until the borrower's checkIn removes it.
		return nil, nil
	}
	r.mu.Lock()
	delete(r.entries, id.raw)
	r.mu.Unlock()
	return h, nil
}

// isValid reports whether id still names a live (not destroyed) entry.
func (r *registry) isValid(id HandleID) bool {
	e, err := r.lookup(id)
	if err != nil {
		return false
	}
	return e.state.Load() != entryDestroyed
}

// isOpen reports whether id names a live entry currently holding its handle
// (Present), as distinct from CheckedOut (in flight inside a transaction) or
// Destroyed.
func (r *registry) isOpen(id HandleID) bool {
	e, err := r.lookup(id)
	if err != nil {
		return false
	}
	return e.state.Load() == entryPresent
}

// snapshotIDs returns the IDs of every entry currently in the map, used by
// Executor.Shutdown to drain remaining handles.
func (r *registry) snapshotIDs() []HandleID {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]HandleID, 0, len(r.entries))
	for raw := range r.entries {
		ids = append(ids, HandleID{raw: raw, scope: r.scope})
	}
	return ids
}
