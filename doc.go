// Package asyncfs provides a cooperative, actor-style coordinator for
// blocking filesystem I/O: a bounded pool of dedicated OS threads runs the
// actual syscalls, while callers interact with it through non-blocking,
// cancellation-aware Go APIs built on context.Context and channels.
//
// # Architecture
//
// Every operation ultimately runs as a job on an [Executor]'s blocking lane
// (internal type lane): a pool of goroutines pinned to their own OS thread
// via runtime.LockOSThread, sized and configured via [WithWorkers],
// [WithQueueLimit], and [WithBackpressure]. The lane is the one place actual
// blocking syscalls happen; nothing else in this package ever blocks a Go
// scheduler thread.
//
// Open file descriptors are represented by [Handle], a non-copyable type
// (see the noCopy marker, which go vet's copylocks check enforces), reached
// by callers only through an opaque [HandleID] checked in and out of an
// Executor's internal registry. [Transaction] and [WithHandle] implement
// the check-out/run/check-in protocol that lets a Handle cross onto a lane
// worker goroutine and back safely.
//
// [OpenDirIter] and [OpenChunkIter] are pull-based iterators (directory
// entries and byte chunks respectively); [Walk] is a push-based recursive
// directory walker that streams [WalkEntry] values to a channel as
// directories are processed, concurrently up to [WithMaxConcurrency].
// [OpenWrite] is a streaming write engine with atomic commit (temp file,
// fsync per the configured [Durability], rename) or direct in-place commit.
//
// # Platform Support
//
// This package targets POSIX platforms: it uses golang.org/x/sys/unix for
// fsync and inode identification (symlink cycle detection during
// [Walk]), neither of which has a portable stdlib equivalent suitable for
// this package's needs.
//
// # Thread Safety
//
// [Executor], [HandleID], and the value returned by [Walk] are safe for
// concurrent use from any goroutine. A [Handle] itself is never safe to use
// concurrently — it is only ever reachable from one goroutine at a time, by
// construction of the check-out protocol.
//
// # Error Handling
//
// Every fallible operation returns an *[Error], tagging which subsystem
// produced it ([ErrorKind]) without erasing the original cause —
// errors.Unwrap and errors.Is/As see through to it. Lane infrastructure
// failures (shutdown, a full queue, an expired admission deadline) are
// represented by the sentinel errors declared in errors.go; a caller
// cancelled before its job ran sees its own ctx.Err().
//
// # Logging
//
// Structured diagnostic logging is pluggable via [SetStructuredLogger]; a
// JSON [DefaultLogger], a [NoOpLogger] (the default), and a real
// github.com/joeycumines/logiface-backed adapter ([NewLogifaceLogger]) are
// provided.
//
// # Usage
//
//	ex := asyncfs.NewExecutor(asyncfs.WithLaneOptions(asyncfs.WithWorkers(4)))
//	defer ex.Shutdown(context.Background())
//
//	id, err := ex.OpenFile(ctx, "report.csv", asyncfs.ModeRead, asyncfs.OpenOptions{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer ex.Destroy(ctx, id)
//
//	n, err := asyncfs.WithHandle(ctx, ex, id, func(h *asyncfs.Handle) (int, error) {
//	    buf := make([]byte, 4096)
//	    return h.ReadInto(buf)
//	})
package asyncfs
