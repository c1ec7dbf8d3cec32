package asyncfs

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sys/unix"
)

// streaming-write lifecycle states (spec §4.C11 "open/write_chunk/commit/abort").
const (
	writeOpen uint32 = iota
	writeCommitted
	writeAborted
)

// streamingWrite is the engine behind a single streaming write (spec
// §4.C11): content is written to a temp file staged in the destination's
// own directory (so the final rename stays on one filesystem, per the
// atomic-rename discipline every POSIX-portable "atomic write" helper in
// the corpus relies on), then fsynced per the configured Durability and
// renamed over the destination on commit.
type streamingWrite struct {
	ex       *Executor
	writeID  int64
	cfg      *writeConfig
	destPath string
	tempPath string

	serialize sync.Mutex // per-write-ID in-flight serialization (spec §4.C11)
	mu        sync.Mutex
	state     *lifecycleState
	f         *os.File
}

// OpenWrite begins a streaming write to destPath.
func OpenWrite(ctx context.Context, ex *Executor, destPath string, opts ...WriteOption) (*streamingWrite, error) {
	cfg := resolveWriteConfig(opts)

	dir := cfg.tempDir
	if dir == "" {
		dir = filepath.Dir(destPath)
	}

	w := &streamingWrite{
		ex:       ex,
		cfg:      cfg,
		destPath: destPath,
		state:    newLifecycleState(writeOpen),
	}

	switch cfg.commit {
	case CommitDirect:
		v, err := Run(ctx, ex, func() (*os.File, error) {
			return os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
		})
		if err != nil {
			return nil, err
		}
		w.f = v
		w.tempPath = destPath
	default: // CommitAtomic
		v, err := Run(ctx, ex, func() (*os.File, error) {
			return os.CreateTemp(dir, filepath.Base(destPath)+cfg.tempSuffix)
		})
		if err != nil {
			return nil, err
		}
		w.f = v
		w.tempPath = v.Name()
	}

	if cfg.expectedSize > 0 {
		f := w.f
		size := cfg.expectedSize
		_, _ = Run(ctx, ex, func() (struct{}, error) {
			return struct{}{}, preAllocate(size, f)
		})
	}

	w.writeID = ex.registerWrite(w)
	return w, nil
}

// preAllocate hints the filesystem to reserve size bytes for out, best
// effort: ENOTSUP and any other error are swallowed, since pre-allocation is
// a performance hint, not a correctness requirement (the write still
// succeeds at its natural pace without it).
func preAllocate(size int64, out *os.File) error {
	if size <= 0 {
		return nil
	}
	err := unix.Fallocate(int(out.Fd()), unix.FALLOC_FL_KEEP_SIZE, 0, size)
	if err != nil {
		return nil
	}
	return nil
}

// WriteChunk appends data to the write, serialized against any other
// concurrent WriteChunk call on this same streamingWrite.
func (w *streamingWrite) WriteChunk(ctx context.Context, data []byte) (int, error) {
	w.serialize.Lock()
	defer w.serialize.Unlock()

	w.mu.Lock()
	if w.state.Load() != writeOpen {
		w.mu.Unlock()
		return 0, executorError[error](ErrInvalidState)
	}
	f := w.f
	w.mu.Unlock()

	return RunWithDeadline(ctx, w.ex, Deadline{}, func() (int, error) {
		return f.Write(data)
	})
}

// Commit finalizes the write: fsync per the configured Durability, then
// (for CommitAtomic) rename the temp file over destPath, fsyncing the
// containing directory too if Durability is DurabilityDataAndMetadata.
func (w *streamingWrite) Commit(ctx context.Context) error {
	w.mu.Lock()
	if !w.state.TryTransition(writeOpen, writeCommitted) {
		w.mu.Unlock()
		return executorError[error](ErrInvalidState)
	}
	f := w.f
	w.mu.Unlock()

	_, err := Run(ctx, w.ex, func() (struct{}, error) {
		switch w.cfg.durability {
		case DurabilityData:
			if err := unix.Fdatasync(int(f.Fd())); err != nil {
				return struct{}{}, err
			}
		case DurabilityDataAndMetadata:
			if err := f.Sync(); err != nil {
				return struct{}{}, err
			}
		}
		if err := f.Close(); err != nil {
			return struct{}{}, err
		}
		if w.cfg.commit == CommitAtomic {
			if err := os.Rename(w.tempPath, w.destPath); err != nil {
				return struct{}{}, err
			}
			if w.cfg.durability == DurabilityDataAndMetadata {
				if err := fsyncDir(filepath.Dir(w.destPath)); err != nil {
					return struct{}{}, err
				}
			}
		}
		return struct{}{}, nil
	})
	w.ex.unregisterWrite(w.writeID)
	return err
}

// abort discards the write: closes the underlying file and, for
// CommitAtomic, removes the temp file. Safe to call after Commit (a no-op)
// or multiple times.
func (w *streamingWrite) abort(ctx context.Context) error {
	w.mu.Lock()
	ok := w.state.TransitionAny([]uint32{writeOpen}, writeAborted)
	f := w.f
	w.mu.Unlock()
	if !ok {
		return nil
	}

	_, err := Run(ctx, w.ex, func() (struct{}, error) {
		_ = f.Close()
		if w.cfg.commit == CommitAtomic {
			_ = os.Remove(w.tempPath)
		}
		return struct{}{}, nil
	})
	w.ex.unregisterWrite(w.writeID)
	return err
}

// Abort is the exported form of abort, for callers that want to discard a
// write explicitly rather than relying on Executor.Shutdown to clean it up.
func (w *streamingWrite) Abort(ctx context.Context) error { return w.abort(ctx) }

// fsyncDir fsyncs a directory's metadata, using golang.org/x/sys/unix since
// os.File.Sync on a directory handle is not portable across platforms the
// stdlib targets, but is well-defined on the POSIX platforms this package
// supports.
func fsyncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return unix.Fsync(int(f.Fd()))
}
