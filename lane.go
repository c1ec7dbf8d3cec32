package asyncfs

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/joeycumines/go-catrate"
)

// Capabilities describes what a lane implementation guarantees (spec §4.C3
// "Capabilities"). This package's lane always reports both true; the type
// exists so callers that accept a lane-shaped abstraction (none currently
// do, but the shape is part of the documented contract) can introspect it.
type Capabilities struct {
	ExecutesOnDedicatedThreads bool
	GuaranteesRunOnceEnqueued  bool
}

// lane is the blocking lane (spec §4.C3): a bounded pool of dedicated OS
// threads that run blocking filesystem syscalls so the rest of the package
// never blocks a goroutine scheduler thread on I/O. Workers are spawned
// lazily on first use and pinned to their OS thread for their entire
// lifetime via runtime.LockOSThread, mirroring the teacher's own worker
// pattern in eventloop/loop.go (dedicated goroutine per concern, parked on a
// condition variable between units of work) generalized from "one loop
// goroutine" to "N blocking workers".
type lane struct {
	cfg *laneConfig

	mu       sync.Mutex
	cond     *sync.Cond
	jobs     jobQueue
	pending  pendingQueue
	state    *lifecycleState // laneRunning / laneShuttingDown / laneStopped
	inFlight int

	spawnOnce sync.Once
	wg        sync.WaitGroup

	limiter *catrate.Limiter
}

const (
	laneRunning uint32 = iota
	laneShuttingDown
	laneStopped
)

func newLane(opts ...LaneOption) *lane {
	cfg := resolveLaneConfig(opts)
	l := &lane{
		cfg:  cfg,
		jobs: jobQueue{limit: cfg.queueLimit},
		state: newLifecycleState(laneRunning),
		// one QueueFull diagnostic log line per second per lane, at most:
		// sustained backpressure would otherwise flood the logger.
		limiter: catrate.NewLimiter(map[time.Duration]int{time.Second: 1}),
	}
	l.cond = sync.NewCond(&l.mu)
	return l
}

// Capabilities reports this lane's guarantees.
func (l *lane) Capabilities() Capabilities {
	return Capabilities{ExecutesOnDedicatedThreads: true, GuaranteesRunOnceEnqueued: true}
}

func (l *lane) ensureWorkers() {
	l.spawnOnce.Do(func() {
		for i := 0; i < l.cfg.workers; i++ {
			l.wg.Add(1)
			go l.workerLoop()
		}
	})
}

func (l *lane) workerLoop() {
	defer l.wg.Done()
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	for {
		l.mu.Lock()
		for l.jobs.len() == 0 && l.state.Load() == laneRunning {
			l.cond.Wait()
		}
		if l.jobs.len() == 0 {
			// shutting down (or stopped) and nothing left to do.
			l.mu.Unlock()
			return
		}
		job := l.jobs.pop()
		l.inFlight++
		if n := l.pending.promoteOne(); n != nil {
			l.jobs.push(n.job)
			close(n.accepted)
			l.cond.Signal()
		}
		l.mu.Unlock()

		l.execute(job)

		l.mu.Lock()
		l.inFlight--
		if l.state.Load() != laneRunning && l.jobs.len() == 0 && l.inFlight == 0 {
			l.cond.Broadcast()
		}
		l.mu.Unlock()
	}
}

// execute runs job.fn, recovering a panic into an error result so a single
// misbehaving operation can never take down a worker thread (and, with it,
// every other caller waiting on that thread to cycle back to the queue).
func (l *lane) execute(job *laneJob) {
	defer func() {
		if r := recover(); r != nil {
			select {
			case job.result <- laneResult{err: fmt.Errorf("asyncfs: lane job panicked: %v", r)}:
			default:
			}
		}
	}()
	v, err := job.fn()
	job.result <- laneResult{value: v, err: err}
}

// run submits fn for execution on the lane, applying the configured
// backpressure policy if the bounded queue is full, and blocks until either
// admission fails or fn has actually run to completion (spec §4.C3
// "Acceptance protocol", §4.C6 "run once enqueued"). infra reports whether
// err is a lane-infrastructure failure (ErrShutdown, ErrQueueFull,
// ErrDeadlineExceeded, or ctx.Err() for a cancelled caller) as opposed to
// fn's own error passed through verbatim. ran reports whether fn actually executed — false for
// every infra failure except the one case (a cancelled/expired caller
// observed only after its job had already run to completion) where the
// side effect happened regardless of the error returned; callers that stash
// state inside fn (as the transaction engine does, via a handleSlot) must
// check ran, not just err, to know whether that state was touched.
func (l *lane) run(ctx context.Context, deadline Deadline, fn func() (any, error)) (value any, err error, infra bool, ran bool) {
	if ctx.Err() != nil {
		return nil, ctx.Err(), true, false
	}

	l.ensureWorkers()

	job := newLaneJob(fn)

	l.mu.Lock()
	if l.state.Load() != laneRunning {
		l.mu.Unlock()
		return nil, ErrShutdown, true, false
	}
	if !l.jobs.full() {
		l.jobs.push(job)
		l.mu.Unlock()
		l.cond.Signal()
		return l.awaitResult(ctx, job)
	}

	switch l.cfg.backpressure {
	case Throw:
		l.mu.Unlock()
		if _, ok := l.limiter.Allow("queue_full"); ok {
			logf(LevelWarn, "lane", 0, 0, "", nil, "queue full, rejecting admission")
		}
		return nil, ErrQueueFull, true, false
	default: // Suspend
		node := l.pending.enqueue(job)
		l.mu.Unlock()

		var timer *time.Timer
		var timerC <-chan time.Time
		if !deadline.IsZero() {
			timer = time.NewTimer(deadline.Remaining())
			timerC = timer.C
			defer timer.Stop()
		}

		select {
		case <-node.accepted:
			if node.rejected {
				return nil, ErrShutdown, true, false
			}
			return l.awaitResult(ctx, job)
		case <-ctx.Done():
			l.mu.Lock()
			l.pending.cancel(node)
			l.mu.Unlock()
			return nil, ctx.Err(), true, false
		case <-timerC:
			l.mu.Lock()
			l.pending.cancel(node)
			l.mu.Unlock()
			return nil, ErrDeadlineExceeded, true, false
		}
	}
}

// awaitResult blocks for job's outcome. Once a job is admitted to the
// bounded queue it is guaranteed to run to completion (spec §4.C3
// Capabilities.guarantees_run_once_enqueued), so this never races the job
// against ctx: it always waits for the real result, then — if the caller's
// context was cancelled in the meantime — reports Cancelled instead of
// discarding the side effect that already happened.
func (l *lane) awaitResult(ctx context.Context, job *laneJob) (any, error, bool, bool) {
	res := <-job.result
	if ctx.Err() != nil {
		return nil, ctx.Err(), true, true
	}
	return res.value, res.err, false, true
}

// shutdown stops accepting new jobs, lets already-admitted jobs drain, and
// blocks until every worker has exited. Idempotent.
func (l *lane) shutdown() {
	l.mu.Lock()
	if !l.state.TryTransition(laneRunning, laneShuttingDown) {
		l.mu.Unlock()
		l.wg.Wait()
		return
	}
	// fail every still-pending admission; they never got to run.
	pending := l.pending.nodes
	l.pending.nodes = nil
	l.mu.Unlock()

	for _, n := range pending {
		n.rejected = true
		close(n.accepted)
	}

	l.ensureWorkers() // in case shutdown races a lane that never ran a job
	l.cond.Broadcast()
	l.wg.Wait()

	l.mu.Lock()
	l.state.Store(laneStopped)
	l.mu.Unlock()
}
