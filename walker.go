package asyncfs

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/joeycumines/go-asyncfs/internal/inode"
)

// completion-authority states (spec §4.C9 "completion authority": Running,
// Failed, Cancelled, Finished — the first of Failed/Cancelled/Finished to be
// reached wins, via lifecycleState.TransitionAny's CAS, and no later
// transition can override it).
const (
	walkRunning uint32 = iota
	walkFailed
	walkCancelled
	walkFinished
)

// WalkEntry is one item produced by Walk: either a directory entry
// (Path/Entry/Depth populated, Err nil) or a terminal per-subtree error
// (Err populated). A directory open or read error is emitted as such an
// entry and also fails the walk (first error wins), so the remaining walk is
// aborted; StopAndThrowUndecodable and a cancelled context abort it too.
type WalkEntry struct {
	Path  string
	Entry fs.DirEntry
	Depth int
	Err   error
}

type dirTask struct {
	path  string
	depth int
}

// walker holds the shared state one Walk call's worker pool coordinates
// through (spec §4.C9 "walk shared state actor": queue, active_workers,
// visited, completion_waiters). completion_waiters is realized here as the
// out channel's consumer simply blocking on channel receive/close, rather
// than a separate waiter queue, since Go channels already give every
// consumer of a closed channel the notification for free.
type walker struct {
	ctx    context.Context
	cancel context.CancelFunc
	ex     *Executor
	cfg    *walkConfig
	out    chan WalkEntry

	mu          sync.Mutex
	cond        *sync.Cond
	queue       []dirTask
	outstanding int

	authority    *lifecycleState
	firstErr     error
	firstErrOnce sync.Once

	visitedMu sync.Mutex
	visited   map[inode.Key]struct{}
}

// WalkHandle is returned by Walk alongside its entry channel, exposing the
// completion authority's terminal outcome once the channel has been fully
// drained (spec §4.C9 "completion authority").
type WalkHandle struct {
	w *walker
}

// Err returns the walk's terminal error, if any. Only meaningful after the
// entry channel returned by Walk has been closed (fully drained); calling it
// earlier may report a state that has not yet settled.
func (h WalkHandle) Err() error {
	switch h.w.authority.Load() {
	case walkFailed:
		return h.w.firstErr
	case walkCancelled:
		return ErrCancelled
	default:
		return nil
	}
}

// Walk recursively lists root, pushing each entry (and any per-subtree
// error) to the returned channel as it is discovered, concurrently across
// up to WithMaxConcurrency directories at a time (spec §4.C9). The channel
// is closed once the walk is complete, failed, or cancelled; callers should
// keep draining it until closed to avoid leaking the walk's worker
// goroutines.
func Walk(ctx context.Context, ex *Executor, root string, opts ...WalkOption) (<-chan WalkEntry, WalkHandle) {
	cfg := resolveWalkConfig(opts)
	wctx, cancel := context.WithCancel(ctx)

	w := &walker{
		ctx:       wctx,
		cancel:    cancel,
		ex:        ex,
		cfg:       cfg,
		out:       make(chan WalkEntry, cfg.batchSize),
		authority: newLifecycleState(walkRunning),
	}
	w.cond = sync.NewCond(&w.mu)
	if cfg.followSymlinks {
		w.visited = make(map[inode.Key]struct{})
	}
	w.queue = []dirTask{{path: root, depth: 0}}
	w.outstanding = 1

	n := cfg.maxConcurrency
	if n < 1 {
		n = 1
	}
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			w.workerLoop()
		}()
	}
	go func() {
		wg.Wait()
		if ctx.Err() != nil {
			w.authority.TransitionAny([]uint32{walkRunning}, walkCancelled)
		} else {
			w.authority.TransitionAny([]uint32{walkRunning}, walkFinished)
		}
		close(w.out)
		w.cancel()
	}()

	return w.out, WalkHandle{w: w}
}

func (w *walker) workerLoop() {
	for {
		w.mu.Lock()
		for len(w.queue) == 0 && w.outstanding > 0 && w.authority.Load() == walkRunning {
			w.cond.Wait()
		}
		if w.authority.Load() != walkRunning || len(w.queue) == 0 {
			w.mu.Unlock()
			return
		}
		task := w.queue[0]
		w.queue = w.queue[1:]
		w.mu.Unlock()

		w.processDirectory(task)

		w.mu.Lock()
		w.outstanding--
		if w.outstanding == 0 || w.authority.Load() != walkRunning {
			w.cond.Broadcast()
		}
		w.mu.Unlock()
	}
}

// fail records the first terminal error and transitions the completion
// authority, cancelling the walker's internal context so every other
// worker and any blocked DirIter.Next unblocks promptly (spec §4.C9 step 5,
// "first-transition-wins").
func (w *walker) fail(state uint32, err error) {
	// While the authority is still Running, w.ctx can only be done because the
	// caller's context was cancelled: record that as Cancelled, not Failed.
	if state == walkFailed && w.ctx.Err() != nil {
		state = walkCancelled
	}
	if w.authority.TransitionAny([]uint32{walkRunning}, state) {
		w.firstErrOnce.Do(func() { w.firstErr = err })
		w.cancel()
	}
	w.mu.Lock()
	w.cond.Broadcast()
	w.mu.Unlock()
}

// emit delivers e to the output channel, returning false if the walker's
// context ends first (caller stopped draining, or the walk was aborted).
func (w *walker) emit(e WalkEntry) bool {
	select {
	case w.out <- e:
		return true
	case <-w.ctx.Done():
		return false
	}
}

// enqueue adds a subdirectory to the shared work queue, incrementing
// outstanding before releasing the lock so a concurrently-finishing sibling
// can never observe outstanding drop to zero while this child is still
// unaccounted for.
func (w *walker) enqueue(path string, depth int) {
	w.mu.Lock()
	w.outstanding++
	w.queue = append(w.queue, dirTask{path: path, depth: depth})
	w.cond.Signal()
	w.mu.Unlock()
}

// processDirectory lists one directory, emitting each entry and enqueuing
// any subdirectories within depth/symlink policy (spec §4.C9 steps 1-5).
func (w *walker) processDirectory(task dirTask) {
	if w.cfg.followSymlinks {
		// Mark this directory's own inode visited on entry, whether it was
		// reached directly or via a symlink (spec §4.C9 step 2: "compute the
		// directory's own inode ... attempt mark_visited; if already
		// present → cycle"). A repeat means some other path already walked
		// this inode, so stop here rather than re-listing it.
		if key, statErr := inode.Stat(task.path); statErr == nil {
			if !w.markVisited(key) {
				return
			}
		}
	}

	it, err := OpenDirIter(w.ctx, w.ex, task.path, w.cfg.batchSize)
	if err != nil {
		w.emit(WalkEntry{Path: task.path, Depth: task.depth, Err: err})
		w.fail(walkFailed, err)
		return
	}

	for {
		if w.authority.Load() != walkRunning {
			_ = it.Close(w.ctx)
			return
		}

		entry, ok, nextErr := it.Next(w.ctx)
		if nextErr != nil {
			w.emit(WalkEntry{Path: task.path, Depth: task.depth, Err: nextErr})
			w.fail(walkFailed, nextErr)
			return // it.Next already closed the directory handle on error
		}
		if !ok {
			return // it.Next already closed the directory handle at EOF
		}

		name := entry.Name()
		if name == "" {
			switch w.cfg.onUndecodable(name) {
			case StopAndThrowUndecodable:
				w.fail(walkFailed, ErrUndecodableEntry)
				_ = it.Close(w.ctx)
				return
			default: // Skip and Emit are both treated as Skip, see type doc.
				continue
			}
		}
		if !w.cfg.includeHidden && strings.HasPrefix(name, ".") {
			continue
		}

		childPath := filepath.Join(task.path, name)
		childDepth := task.depth + 1

		isDir := entry.IsDir()
		if !isDir && entry.Type()&fs.ModeSymlink != 0 && w.cfg.followSymlinks {
			// Resolve the symlink's target on the lane (it's a blocking
			// stat syscall); recurse into it only if it is itself a
			// directory. Cycle detection happens uniformly when that
			// directory's own task reaches the front of processDirectory
			// (spec §4.C9 step 2), not here, so a symlink whose target was
			// already visited is simply re-enqueued and immediately
			// short-circuited there.
			if fi, statErr := Run(w.ctx, w.ex, func() (fs.FileInfo, error) { return os.Stat(childPath) }); statErr == nil && fi.IsDir() {
				isDir = true
			}
		}

		if !w.emit(WalkEntry{Path: childPath, Depth: childDepth, Entry: entry}) {
			_ = it.Close(w.ctx)
			return
		}

		if isDir && (w.cfg.maxDepth < 0 || childDepth <= w.cfg.maxDepth) {
			w.enqueue(childPath, childDepth)
		}
	}
}

// markVisited returns true the first time key is seen, and false on every
// subsequent call — the cycle-detection primitive spec §8 property 6 and
// §4.C9 step 2 require for symlink-following walks.
func (w *walker) markVisited(key inode.Key) bool {
	w.visitedMu.Lock()
	defer w.visitedMu.Unlock()
	if _, seen := w.visited[key]; seen {
		return false
	}
	w.visited[key] = struct{}{}
	return true
}
