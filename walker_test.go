package asyncfs

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTree(t *testing.T, root string) {
	t.Helper()
	dirs := []string{"a", "a/b", "c"}
	files := map[string]string{
		"top.txt":       "top",
		"a/a1.txt":      "a1",
		"a/b/b1.txt":    "b1",
		"c/c1.txt":      "c1",
		".hidden.txt":   "hidden",
	}
	for _, d := range dirs {
		require.NoError(t, os.MkdirAll(filepath.Join(root, d), 0o755))
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte(content), 0o644))
	}
}

func drain(t *testing.T, ch <-chan WalkEntry) []WalkEntry {
	t.Helper()
	var out []WalkEntry
	for {
		select {
		case e, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, e)
		case <-time.After(5 * time.Second):
			t.Fatal("timed out draining walk")
		}
	}
}

func TestWalk_VisitsEveryEntryExcludingHiddenByDefault(t *testing.T) {
	ex := NewExecutor()
	defer ex.Shutdown(context.Background())

	root := t.TempDir()
	buildTree(t, root)

	ch, handle := Walk(context.Background(), ex, root)
	entries := drain(t, ch)
	require.NoError(t, handle.Err())

	var paths []string
	for _, e := range entries {
		require.NoError(t, e.Err)
		paths = append(paths, e.Path)
	}
	sort.Strings(paths)

	for _, p := range paths {
		assert.NotContains(t, filepath.Base(p), ".hidden")
	}
	assert.Contains(t, paths, filepath.Join(root, "top.txt"))
	assert.Contains(t, paths, filepath.Join(root, "a"))
	assert.Contains(t, paths, filepath.Join(root, "a", "b"))
	assert.Contains(t, paths, filepath.Join(root, "a", "b", "b1.txt"))
	assert.Contains(t, paths, filepath.Join(root, "c", "c1.txt"))
}

func TestWalk_IncludeHidden(t *testing.T) {
	ex := NewExecutor()
	defer ex.Shutdown(context.Background())

	root := t.TempDir()
	buildTree(t, root)

	ch, handle := Walk(context.Background(), ex, root, WithIncludeHidden(true))
	entries := drain(t, ch)
	require.NoError(t, handle.Err())

	found := false
	for _, e := range entries {
		if filepath.Base(e.Path) == ".hidden.txt" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestWalk_MaxDepthZeroOnlyDirectChildren(t *testing.T) {
	ex := NewExecutor()
	defer ex.Shutdown(context.Background())

	root := t.TempDir()
	buildTree(t, root)

	ch, handle := Walk(context.Background(), ex, root, WithMaxDepth(0))
	entries := drain(t, ch)
	require.NoError(t, handle.Err())

	for _, e := range entries {
		assert.LessOrEqual(t, e.Depth, 1)
	}
	// b1.txt is at depth 3, should not appear.
	for _, e := range entries {
		assert.NotEqual(t, filepath.Join(root, "a", "b", "b1.txt"), e.Path)
	}
}

func TestWalk_CancelledContextStopsAndReportsCancelled(t *testing.T) {
	ex := NewExecutor()
	defer ex.Shutdown(context.Background())

	root := t.TempDir()
	buildTree(t, root)

	ctx, cancel := context.WithCancel(context.Background())
	ch, handle := Walk(ctx, ex, root, WithMaxConcurrency(1))
	cancel()
	drain(t, ch)

	assert.ErrorIs(t, handle.Err(), ErrCancelled)
}

func TestWalk_SymlinkCycleDetection(t *testing.T) {
	if os.Getenv("CI_NO_SYMLINK") != "" {
		t.Skip("symlinks unsupported in this environment")
	}
	ex := NewExecutor()
	defer ex.Shutdown(context.Background())

	root := t.TempDir()
	sub := filepath.Join(root, "sub")
	require.NoError(t, os.Mkdir(sub, 0o755))

	loop := filepath.Join(sub, "loop")
	if err := os.Symlink(root, loop); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	ch, handle := Walk(context.Background(), ex, root, WithFollowSymlinks(true))
	entries := drain(t, ch)
	require.NoError(t, handle.Err())

	loopSeen := 0
	for _, e := range entries {
		if e.Path == loop {
			loopSeen++
		}
	}
	assert.LessOrEqual(t, loopSeen, 1, "the symlink entry itself may appear once, but must not be traversed repeatedly")
}

func TestWalk_StopAndThrowUndecodableWithoutUndecodableNamesCompletes(t *testing.T) {
	ex := NewExecutor()
	defer ex.Shutdown(context.Background())

	root := t.TempDir()
	buildTree(t, root)

	ch, handle := Walk(context.Background(), ex, root,
		WithOnUndecodable(func(string) UndecodableDecision { return StopAndThrowUndecodable }))
	drain(t, ch)
	// No undecodable names occur naturally in this tree, so the walk
	// completes normally; this exercises the option plumbing only.
	assert.NoError(t, handle.Err())
}
