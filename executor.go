package asyncfs

import (
	"context"
	"sync"
	"sync/atomic"
)

// executor lifecycle states (spec §4.C7 "Executor actor").
const (
	executorRunning uint32 = iota
	executorShuttingDown
	executorStopped
)

// scopeCounter mints a fresh scope id for every Executor process-wide, so a
// HandleID minted by one executor can never be mistaken for one minted by
// another even if both executors' registries happen to reuse small raw ids
// (spec §4.C5 "scope mismatch").
var scopeCounter atomic.Int64

// Executor is the actor that owns a blocking lane and a handle registry,
// and is the entry point for every filesystem operation this package
// exposes (spec §4.C7). All of its methods are safe for concurrent use.
type Executor struct {
	scope     int64
	reg       *registry
	lane      *lane
	state     *lifecycleState
	protected bool // true for the shared default executor; Shutdown no-ops

	writesMu    sync.Mutex
	writes      map[int64]*streamingWrite
	nextWriteID int64
}

// NewExecutor constructs an Executor with its own scope, registry, and
// blocking lane.
func NewExecutor(opts ...ExecutorOption) *Executor {
	cfg := resolveExecutorConfig(opts)
	scope := scopeCounter.Add(1)
	return &Executor{
		scope:  scope,
		reg:    newRegistry(scope),
		lane:   newLane(cfg.lane...),
		state:  newLifecycleState(executorRunning),
		writes: make(map[int64]*streamingWrite),
	}
}

var defaultExecutor struct {
	once sync.Once
	ex   *Executor
}

// DefaultExecutor returns a lazily-initialized, process-wide Executor for
// callers that do not need isolated lane configuration or scoping. Its
// Shutdown is a no-op: many independent callers may hold a
// reference to it, so none of them is entitled to tear it down for the
// others. Construct a dedicated Executor via NewExecutor if you need real
// shutdown semantics.
func DefaultExecutor() *Executor {
	defaultExecutor.once.Do(func() {
		defaultExecutor.ex = NewExecutor()
		defaultExecutor.ex.protected = true
	})
	return defaultExecutor.ex
}

// Run executes fn on ex's blocking lane without involving the handle
// registry — the primitive escape hatch for one-off blocking operations
// (stat, mkdir, remove, rename) that do not need a long-lived Handle (spec
// §4.C7 "run"). It is a free function, not a method, because Go methods
// cannot introduce their own type parameters.
func Run[T any](ctx context.Context, ex *Executor, fn func() (T, error)) (T, error) {
	return RunWithDeadline(ctx, ex, Deadline{}, fn)
}

// RunWithDeadline is Run with an explicit admission deadline.
func RunWithDeadline[T any](ctx context.Context, ex *Executor, deadline Deadline, fn func() (T, error)) (T, error) {
	var zero T
	if ex.state.Load() != executorRunning {
		return zero, executorError[error](ErrShutdown)
	}
	v, err, infra, _ := ex.lane.run(ctx, deadline, func() (any, error) {
		return fn()
	})
	if infra {
		return zero, laneError[error](err)
	}
	// comma-ok: fn may legally return a partial result alongside a non-nil
	// error (e.g. io.EOF after a short read), which callers must still see.
	result, _ := v.(T)
	if err != nil {
		return result, opError[error](err)
	}
	return result, nil
}

// OpenFile opens path on the lane and registers the resulting Handle,
// returning a HandleID (spec §4.C7 "open_file": atomic open-and-register).
func (ex *Executor) OpenFile(ctx context.Context, path string, mode Mode, opts OpenOptions) (HandleID, error) {
	if ex.state.Load() != executorRunning {
		return HandleID{}, executorError[error](ErrShutdown)
	}
	v, err, infra, _ := ex.lane.run(ctx, Deadline{}, func() (any, error) {
		return openHandle(path, mode, opts)
	})
	if infra {
		return HandleID{}, laneError[error](err)
	}
	if err != nil {
		return HandleID{}, opError[error](err)
	}
	return ex.reg.register(v.(*Handle)), nil
}

// IsValid reports whether id names a live (not destroyed) handle.
func (ex *Executor) IsValid(id HandleID) bool { return ex.reg.isValid(id) }

// IsOpen reports whether id names a handle currently available for
// check-out (Present, not mid-transaction and not destroyed).
func (ex *Executor) IsOpen(id HandleID) bool { return ex.reg.isOpen(id) }

// Destroy removes id from the registry and closes its underlying
// descriptor (spec §4.C7 "destroy"). If the handle is currently checked out
// by an in-flight Transaction, Destroy only marks it Destroyed and wakes any
// other waiters; the in-flight transaction's own check-in observes the
// Destroyed state and closes the handle itself once it returns.
func (ex *Executor) Destroy(ctx context.Context, id HandleID) error {
	h, err := ex.reg.destroy(id)
	if err != nil {
		return handleError[error](err)
	}
	if h == nil {
		return nil
	}
	// id is already gone from the registry, so the close must run even if
	// ctx is done; otherwise nothing would ever close h.
	_, err, infra, _ := ex.lane.run(context.WithoutCancel(ctx), Deadline{}, func() (any, error) {
		return nil, h.Close()
	})
	if infra {
		return laneError[error](err)
	}
	if err != nil {
		return opError[error](err)
	}
	return nil
}

// Shutdown idempotently stops ex: every live handle is destroyed and
// closed, every in-flight streaming write is aborted, and the blocking lane
// is drained and joined. Shutdown on the shared DefaultExecutor is a no-op
// (see DefaultExecutor).
func (ex *Executor) Shutdown(ctx context.Context) error {
	if ex.protected {
		return nil
	}
	if !ex.state.TryTransition(executorRunning, executorShuttingDown) {
		return nil
	}

	for _, id := range ex.reg.snapshotIDs() {
		_ = ex.Destroy(ctx, id)
	}

	ex.writesMu.Lock()
	writes := make([]*streamingWrite, 0, len(ex.writes))
	for _, w := range ex.writes {
		writes = append(writes, w)
	}
	ex.writes = make(map[int64]*streamingWrite)
	ex.writesMu.Unlock()
	for _, w := range writes {
		_ = w.abort(ctx)
	}

	ex.lane.shutdown()
	ex.state.Store(executorStopped)
	return nil
}

func (ex *Executor) registerWrite(w *streamingWrite) int64 {
	ex.writesMu.Lock()
	defer ex.writesMu.Unlock()
	ex.nextWriteID++
	id := ex.nextWriteID
	ex.writes[id] = w
	return id
}

func (ex *Executor) unregisterWrite(id int64) {
	ex.writesMu.Lock()
	defer ex.writesMu.Unlock()
	delete(ex.writes, id)
}
