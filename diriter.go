package asyncfs

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"strings"
	"sync"

	"golang.org/x/exp/slices"

	"github.com/joeycumines/go-asyncfs/internal/ring"
)

// directory-iterator lifecycle states (spec §4.C8 "state machine": Unopened,
// Open, Finished). Unopened has no runtime representation here: OpenDirIter
// performs the open synchronously and only ever returns a DirIter already in
// the Open state.
const (
	dirIterOpen uint32 = iota
	dirIterFinished
)

const defaultDirIterBatch = 64

// DirIter is a pull-based iterator over one directory's entries (spec
// §4.C8): each call to Next blocks (via the executor's lane) only when its
// pre-read buffer is empty, and otherwise returns immediately from the
// buffer filled by the previous batch read.
type DirIter struct {
	ex        *Executor
	path      string
	batchSize int

	mu    sync.Mutex
	state *lifecycleState
	f     *os.File
	buf   *ring.Buffer[fs.DirEntry]
	done  bool // true once a ReadDir batch returned fewer than requested
}

// OpenDirIter opens path as a directory and returns an iterator over its
// entries. batchSize, if positive, overrides the default pre-read batch size
// of 64 entries.
func OpenDirIter(ctx context.Context, ex *Executor, path string, batchSize ...int) (*DirIter, error) {
	size := defaultDirIterBatch
	if len(batchSize) > 0 && batchSize[0] > 0 {
		size = batchSize[0]
	}
	v, err := Run(ctx, ex, func() (*os.File, error) {
		return os.Open(path)
	})
	if err != nil {
		return nil, err
	}
	return &DirIter{
		ex:        ex,
		path:      path,
		batchSize: size,
		state:     newLifecycleState(dirIterOpen),
		f:         v,
		buf:       ring.New[fs.DirEntry](size),
	}, nil
}

// Next returns the next directory entry. ok is false (with a nil error) once
// the directory is exhausted; a non-nil error is terminal — the iterator
// transitions to Finished and its underlying handle is closed before Next
// returns.
func (it *DirIter) Next(ctx context.Context) (entry fs.DirEntry, ok bool, err error) {
	it.mu.Lock()
	defer it.mu.Unlock()

	for {
		if it.state.Load() == dirIterFinished {
			return nil, false, nil
		}
		if it.buf.Len() > 0 {
			return it.buf.PopFront(), true, nil
		}
		if it.done {
			it.closeLocked(ctx)
			return nil, false, nil
		}

		f := it.f
		batch := it.batchSize
		entries, readErr, infra, _ := it.ex.lane.run(ctx, Deadline{}, func() (any, error) {
			return f.ReadDir(batch)
		})
		if infra {
			it.closeLocked(ctx)
			return nil, false, laneError[error](readErr)
		}
		got, _ := entries.([]fs.DirEntry)
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			it.closeLocked(ctx)
			return nil, false, opError[error](readErr)
		}
		// (*os.File).ReadDir, unlike os.ReadDir, makes no ordering guarantee
		// over its batch; sort each one so repeated walks of an unchanged
		// directory yield a stable order.
		slices.SortFunc(got, func(a, b fs.DirEntry) int { return strings.Compare(a.Name(), b.Name()) })
		for _, e := range got {
			it.buf.PushBack(e)
		}
		if errors.Is(readErr, io.EOF) || len(got) < batch {
			it.done = true
		}
	}
}

// Close terminates the iterator early, releasing its directory handle if
// still open. Safe to call multiple times and safe to call after Next has
// already exhausted the iterator.
func (it *DirIter) Close(ctx context.Context) error {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.closeLocked(ctx)
}

// closeLocked performs the directory handle close synchronously, before
// returning control to the caller — there is no deferred/background close
// path, matching the same synchronous-close discipline the recursive walker
// uses for its own directory boxes (SPEC_FULL.md §6).
func (it *DirIter) closeLocked(ctx context.Context) error {
	if it.state.Load() == dirIterFinished {
		return nil
	}
	it.state.Store(dirIterFinished)
	f := it.f
	it.f = nil
	if f == nil {
		return nil
	}
	// the close must run even when ctx is already done (e.g. Next failing on
	// a cancelled context), so it is not subject to ctx's cancellation.
	_, err, infra, _ := it.ex.lane.run(context.WithoutCancel(ctx), Deadline{}, func() (any, error) {
		return nil, f.Close()
	})
	if infra {
		return laneError[error](err)
	}
	if err != nil {
		return opError[error](err)
	}
	return nil
}
