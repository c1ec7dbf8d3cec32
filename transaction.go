package asyncfs

import "context"

// Transaction implements the check-out/run/check-in protocol spec §4.C6
// describes for operating on a registered Handle: the handle is taken out of
// the registry, its address smuggled across the lane boundary via a
// handleSlot (so the closure captures a uintptr, never a *Handle), run on a
// dedicated lane worker, and the handle is always restored to the slot
// before the lane job returns — even if body itself failed — so it can be
// checked back in regardless of outcome.
//
// Go cannot express Transaction as a method because methods cannot carry
// their own type parameters; it is a free function taking the Executor
// explicitly instead.
func Transaction[T any](ctx context.Context, ex *Executor, id HandleID, deadline Deadline, body func(*Handle) (T, error)) (T, error) {
	var zero T

	h, err := ex.reg.checkOut(ctx, id)
	if err != nil {
		return zero, handleError[error](err)
	}

	slot := newHandleSlot()
	slot.initialize(h)
	addr := slot.address()

	v, runErr, infra, ran := ex.lane.run(ctx, deadline, func() (any, error) {
		handle := slotFromAddress(addr).take()
		result, bodyErr := body(handle)
		slotFromAddress(addr).initialize(handle)
		return result, bodyErr
	})

	if !ran {
		// Never reached a worker: the slot still holds the checked-out
		// handle untouched, so restore it to the registry ourselves.
		_ = ex.reg.checkIn(id, h)
		if infra {
			return zero, laneError[error](runErr)
		}
		return zero, opError[error](runErr)
	}

	// The closure ran to completion (possibly despite a now-cancelled ctx),
	// so the handle is back in the slot; check it back in regardless of the
	// reported error so the registry entry never leaks a permanently
	// CheckedOut handle.
	restored := slot.take()
	if cerr := ex.reg.checkIn(id, restored); cerr != nil {
		// The entry was destroyed while we were running; close what we were
		// holding since nobody else will.
		_ = restored.Close()
	}

	if infra {
		// runErr is ctx.Err(), observed only after body already executed:
		// per the documented Cancelled semantics, the side effect happened
		// but the caller does not get to see its result.
		return zero, cancelledError[error](runErr)
	}
	// Assert with comma-ok, not a bare type assertion: a body that legally
	// returns a partial result alongside a non-nil error (e.g. io.EOF after
	// a short read) must still have that partial result delivered, matching
	// io.Reader's own (n, err) convention.
	result, _ := v.(T)
	if runErr != nil {
		return result, opError[error](runErr)
	}
	return result, nil
}

// WithHandle is Transaction with no admission deadline, the common case.
func WithHandle[T any](ctx context.Context, ex *Executor, id HandleID, body func(*Handle) (T, error)) (T, error) {
	return Transaction(ctx, ex, id, Deadline{}, body)
}
