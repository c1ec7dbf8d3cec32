package asyncfs

// laneJob is one unit of work accepted by a lane (spec §4.C2/§4.C3). fn runs
// on a dedicated worker goroutine; result is buffered so the worker never
// blocks delivering it, regardless of whether the submitting goroutine is
// still waiting on it directly or arrived here via the pending-admission
// queue (see lane.go).
//
// fn returns (value, err) as a matched pair exactly as the caller's own
// operation produced it — the lane does not interpret err, it only boxes and
// unboxes it, per spec §4.C6 step 3 ("the lane boxes/unboxes the Result").
type laneJob struct {
	fn     func() (any, error)
	result chan laneResult
}

type laneResult struct {
	value any
	err   error
}

func newLaneJob(fn func() (any, error)) *laneJob {
	return &laneJob{fn: fn, result: make(chan laneResult, 1)}
}

// jobQueue is the bounded FIFO of admitted-but-not-yet-run jobs a lane's
// workers drain (spec §4.C2 "circular buffer of capacity queue_limit"). A
// plain slice-backed FIFO is used rather than internal/ring's generic ring
// buffer: ring is reserved for the directory-iterator and byte-chunk-iterator
// pre-read buffers (SPEC_FULL.md §3); the job queue only ever needs
// push-back/pop-front under the lane's mutex, for which a reslicing slice is
// the idiomatic and sufficiently efficient choice.
type jobQueue struct {
	items []*laneJob
	limit int
}

func (q *jobQueue) len() int { return len(q.items) }

func (q *jobQueue) full() bool { return len(q.items) >= q.limit }

func (q *jobQueue) push(j *laneJob) { q.items = append(q.items, j) }

func (q *jobQueue) pop() *laneJob {
	if len(q.items) == 0 {
		return nil
	}
	j := q.items[0]
	q.items = q.items[1:]
	return j
}

// pendingNode is a caller parked waiting for room in the bounded job queue
// (spec §4.C3 "Suspend" backpressure). Unlike waiterNode, a pendingNode
// carries a payload (the job itself) that must be handed off atomically with
// the wakeup, so it is not built on waiterQueue directly; the cancellation
// and FIFO-skip discipline mirrors it exactly.
type pendingNode struct {
	job       *laneJob
	accepted  chan struct{}
	cancelled bool
	// rejected is set (alongside closing accepted directly, bypassing
	// promotion) when a lane shutdown drains the pending queue without ever
	// giving the node a turn. Safe to read without synchronization once
	// accepted is observed closed, since the write happens-before the close.
	rejected bool
}

// pendingQueue is the FIFO of callers waiting for bounded-queue admission.
// Like waiterQueue, it holds no lock of its own.
type pendingQueue struct {
	nodes []*pendingNode
}

func (q *pendingQueue) enqueue(job *laneJob) *pendingNode {
	n := &pendingNode{job: job, accepted: make(chan struct{})}
	q.nodes = append(q.nodes, n)
	return n
}

func (q *pendingQueue) cancel(n *pendingNode) {
	n.cancelled = true
}

// promoteOne drops leading cancelled nodes and returns the first live one,
// removing it from the queue. Returns nil if the queue is empty or every
// remaining node is cancelled.
func (q *pendingQueue) promoteOne() *pendingNode {
	for len(q.nodes) > 0 {
		n := q.nodes[0]
		q.nodes = q.nodes[1:]
		if !n.cancelled {
			return n
		}
	}
	return nil
}
