package asyncfs

import (
	"errors"
	"fmt"
)

// Sentinel errors for lane infrastructure failures (spec §7 "Lane
// infrastructure failures") and handle/executor failures (§7 "Handle
// errors", "Executor errors"). Modeled after the teacher's top-level
// sentinel declarations in eventloop/loop.go (ErrLoopAlreadyRunning,
// ErrLoopTerminated, ErrLoopNotRunning, ErrLoopOverloaded, ErrReentrantRun).
var (
	// ErrShutdown is returned when an operation is attempted against a lane
	// or executor that has been (or is being) shut down.
	ErrShutdown = errors.New("asyncfs: shut down")

	// ErrQueueFull is returned by a lane configured with Throw backpressure
	// when the bounded job queue has no room for another admission.
	ErrQueueFull = errors.New("asyncfs: queue full")

	// ErrDeadlineExceeded is returned when a caller's admission deadline
	// elapses before the lane accepts its job.
	ErrDeadlineExceeded = errors.New("asyncfs: deadline exceeded waiting for admission")

	// ErrCancelled is returned by a transaction whose caller's context is
	// observed as done on return despite the operation having run to
	// completion, and by WalkHandle.Err for a cancelled walk. A caller whose
	// context is done before admission gets ctx.Err() instead.
	ErrCancelled = errors.New("asyncfs: cancelled")

	// ErrInvalidID is returned when a HandleID does not correspond to any
	// live entry in the registry it was presented to.
	ErrInvalidID = errors.New("asyncfs: invalid handle id")

	// ErrScopeMismatch is returned when a HandleID minted by one executor is
	// presented to a different executor.
	ErrScopeMismatch = errors.New("asyncfs: scope mismatch")

	// ErrHandleClosed is returned when an operation is attempted against a
	// handle whose entry has been destroyed.
	ErrHandleClosed = errors.New("asyncfs: handle closed")

	// ErrInvalidHandle classifies a handle used outside of its documented
	// lifecycle. No code path in this package returns it: handleSlot.take
	// panics on such misuse (e.g. a slot taken twice) instead.
	ErrInvalidHandle = errors.New("asyncfs: invalid handle")

	// ErrInvalidState is returned when an executor or streaming-write
	// operation is attempted from a state that does not permit it.
	ErrInvalidState = errors.New("asyncfs: invalid state")

	// ErrUndecodableEntry is the walk-failure error surfaced via the
	// completion authority when OnUndecodable returns
	// StopAndThrowUndecodable for a directory entry.
	ErrUndecodableEntry = errors.New("asyncfs: undecodable directory entry")
)

// Error is the unified wrapper described in spec §7: every asyncfs API
// returns an error of this shape (or nil), tagging which subsystem produced
// it without erasing the original error. Op is the operation-error type of
// the underlying syscall wrapper that was in play (e.g. *os.PathError);
// asyncfs itself is generic over it so callers bridging subsystems (e.g.
// feeding a directory-iterator error into a walker) can retag via
// MapOperation instead of losing the original cause.
//
// Grounded on eventloop/errors.go's layered typed-error shapes
// (TypeError, RangeError, AggregateError), generalized from a closed set of
// JS-flavored error kinds into the open, generic tagged union spec.md §7
// calls for.
type Error[Op any] struct {
	// Kind classifies which subsystem produced the error.
	Kind ErrorKind
	// Operation holds the originating syscall-wrapper error, set iff
	// Kind == KindOperation.
	Operation Op
	// Err holds the underlying error for every other Kind (one of the
	// sentinels above, or a cancellation/context error).
	Err error
}

// ErrorKind discriminates the tagged union's arms.
type ErrorKind int

const (
	// KindOperation wraps a syscall-wrapper error, preserved verbatim.
	KindOperation ErrorKind = iota
	// KindHandle wraps a handle-registry error (ErrInvalidID,
	// ErrScopeMismatch, ErrHandleClosed, ErrInvalidHandle).
	KindHandle
	// KindExecutor wraps an executor-level error (ErrShutdown in its
	// executor-lifecycle sense, ErrScopeMismatch, ErrInvalidState, or a
	// "handle not found" ErrInvalidID).
	KindExecutor
	// KindLane wraps a lane infrastructure failure (ErrShutdown,
	// ErrQueueFull, ErrDeadlineExceeded, or ctx.Err() of a caller cancelled
	// before its job ran).
	KindLane
	// KindCancelled wraps ErrCancelled for a caller whose context was done
	// after its operation had already run.
	KindCancelled
)

func (k ErrorKind) String() string {
	switch k {
	case KindOperation:
		return "Operation"
	case KindHandle:
		return "Handle"
	case KindExecutor:
		return "Executor"
	case KindLane:
		return "Lane"
	case KindCancelled:
		return "Cancelled"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// Error implements the error interface.
func (e *Error[Op]) Error() string {
	if e == nil {
		return "<nil>"
	}
	switch e.Kind {
	case KindOperation:
		return fmt.Sprintf("asyncfs: %v: %v", e.Kind, any(e.Operation))
	default:
		return fmt.Sprintf("asyncfs: %v: %v", e.Kind, e.Err)
	}
}

// Unwrap allows errors.Is/errors.As to see through to the originating cause,
// mirroring eventloop's TypeError.Unwrap / AggregateError.Unwrap pattern.
func (e *Error[Op]) Unwrap() error {
	if e == nil {
		return nil
	}
	if e.Kind == KindOperation {
		if err, ok := any(e.Operation).(error); ok {
			return err
		}
		return nil
	}
	return e.Err
}

// opError constructs a KindOperation Error wrapping op.
func opError[Op any](op Op) *Error[Op] {
	return &Error[Op]{Kind: KindOperation, Operation: op}
}

// handleError constructs a KindHandle Error.
func handleError[Op any](err error) *Error[Op] {
	return &Error[Op]{Kind: KindHandle, Err: err}
}

// executorError constructs a KindExecutor Error.
func executorError[Op any](err error) *Error[Op] {
	return &Error[Op]{Kind: KindExecutor, Err: err}
}

// laneError constructs a KindLane Error.
func laneError[Op any](err error) *Error[Op] {
	return &Error[Op]{Kind: KindLane, Err: err}
}

// cancelledError constructs a KindCancelled Error.
func cancelledError[Op any](err error) *Error[Op] {
	return &Error[Op]{Kind: KindCancelled, Err: ErrCancelled}
}

// MapOperation retags an Error[From] as an Error[To] via the supplied
// conversion, preserving Kind and the non-operation error untouched. This is
// the combinator spec.md §7 calls for when "one subsystem feeds another
// (e.g. directory-iterator errors become walker errors)".
func MapOperation[From, To any](err *Error[From], convert func(From) To) *Error[To] {
	if err == nil {
		return nil
	}
	out := &Error[To]{Kind: err.Kind, Err: err.Err}
	if err.Kind == KindOperation {
		out.Operation = convert(err.Operation)
	}
	return out
}
