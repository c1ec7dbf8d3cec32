package asyncfs

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/joeycumines/go-asyncfs/internal/ring"
)

// byte-chunk-iterator lifecycle states, mirroring DirIter's (spec §4.C10).
const (
	chunkIterOpen uint32 = iota
	chunkIterFinished
)

const defaultChunkBatch = 4

// ChunkIter is a pull-based iterator yielding owned byte-slice chunks read
// sequentially from a registered Handle (spec §4.C10). Chunks are read in
// batches, each batch through one Transaction against the same HandleID, so reads interleave
// safely with any other transaction the same handle might be involved in;
// ChunkIter does not assume exclusive ownership of the handle the way
// DirIter owns its directory *os.File directly.
type ChunkIter struct {
	ex        *Executor
	id        HandleID
	chunkSize int
	batch     int

	mu    sync.Mutex
	state *lifecycleState
	buf   *ring.Buffer[[]byte]
	done  bool
}

// OpenChunkIter returns an iterator reading chunkSize-byte chunks from id,
// starting at the handle's current offset. batch, if positive, overrides
// how many chunks are read per underlying Transaction (default 4).
func OpenChunkIter(ex *Executor, id HandleID, chunkSize int, batch ...int) *ChunkIter {
	n := defaultChunkBatch
	if len(batch) > 0 && batch[0] > 0 {
		n = batch[0]
	}
	return &ChunkIter{
		ex:        ex,
		id:        id,
		chunkSize: chunkSize,
		batch:     n,
		state:     newLifecycleState(chunkIterOpen),
		buf:       ring.New[[]byte](n),
	}
}

// Next returns the next chunk. ok is false (nil error) once the handle is
// exhausted; a non-nil error is terminal. On any terminal exit (EOF, error,
// or an explicit Close), the handle is destroyed via the executor before
// end-of-stream is observed (spec §4.C10).
func (it *ChunkIter) Next(ctx context.Context) (chunk []byte, ok bool, err error) {
	it.mu.Lock()
	defer it.mu.Unlock()

	for {
		if it.state.Load() == chunkIterFinished {
			return nil, false, nil
		}
		if it.buf.Len() > 0 {
			return it.buf.PopFront(), true, nil
		}
		if it.done {
			it.finishLocked(ctx)
			return nil, false, nil
		}

		want := it.batch * it.chunkSize
		data, readErr := WithHandle(ctx, it.ex, it.id, func(h *Handle) ([]byte, error) {
			buf := make([]byte, want)
			n, rerr := h.ReadInto(buf)
			return buf[:n], rerr
		})
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			it.finishLocked(ctx)
			return nil, false, readErr
		}
		pushed := 0
		for len(data) > 0 {
			n := it.chunkSize
			if n > len(data) {
				n = len(data)
			}
			it.buf.PushBack(data[:n])
			data = data[n:]
			pushed++
		}
		if errors.Is(readErr, io.EOF) || pushed == 0 {
			it.done = true
		}
	}
}

// Close terminates the iterator early, destroying the underlying handle via
// the executor (spec §4.C10's "on any exit... the handle is destroyed"). Safe
// to call multiple times and safe to call after Next has already exhausted
// the iterator.
func (it *ChunkIter) Close(ctx context.Context) error {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.finishLocked(ctx)
}

func (it *ChunkIter) finishLocked(ctx context.Context) error {
	if it.state.Load() == chunkIterFinished {
		return nil
	}
	it.state.Store(chunkIterFinished)
	return it.ex.Destroy(ctx, it.id)
}
