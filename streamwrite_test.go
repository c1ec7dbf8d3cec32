package asyncfs

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamingWrite_AtomicCommit(t *testing.T) {
	ex := NewExecutor()
	defer ex.Shutdown(context.Background())

	dir := t.TempDir()
	dest := filepath.Join(dir, "out.txt")

	w, err := OpenWrite(context.Background(), ex, dest)
	require.NoError(t, err)

	n, err := w.WriteChunk(context.Background(), []byte("hello "))
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	_, err = w.WriteChunk(context.Background(), []byte("world"))
	require.NoError(t, err)

	// destination must not exist until commit.
	_, statErr := os.Stat(dest)
	assert.True(t, os.IsNotExist(statErr))

	require.NoError(t, w.Commit(context.Background()))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no leftover temp file after commit")
}

func TestStreamingWrite_DirectCommit(t *testing.T) {
	ex := NewExecutor()
	defer ex.Shutdown(context.Background())

	dir := t.TempDir()
	dest := filepath.Join(dir, "out.txt")

	w, err := OpenWrite(context.Background(), ex, dest, WithCommitMode(CommitDirect))
	require.NoError(t, err)
	_, err = w.WriteChunk(context.Background(), []byte("direct"))
	require.NoError(t, err)
	require.NoError(t, w.Commit(context.Background()))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "direct", string(data))
}

func TestStreamingWrite_AbortRemovesTempFile(t *testing.T) {
	ex := NewExecutor()
	defer ex.Shutdown(context.Background())

	dir := t.TempDir()
	dest := filepath.Join(dir, "out.txt")

	w, err := OpenWrite(context.Background(), ex, dest)
	require.NoError(t, err)
	_, err = w.WriteChunk(context.Background(), []byte("discard me"))
	require.NoError(t, err)

	require.NoError(t, w.Abort(context.Background()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, statErr := os.Stat(dest)
	assert.True(t, os.IsNotExist(statErr))
}

func TestStreamingWrite_WriteAfterCommitFails(t *testing.T) {
	ex := NewExecutor()
	defer ex.Shutdown(context.Background())

	dir := t.TempDir()
	dest := filepath.Join(dir, "out.txt")

	w, err := OpenWrite(context.Background(), ex, dest)
	require.NoError(t, err)
	require.NoError(t, w.Commit(context.Background()))

	_, err = w.WriteChunk(context.Background(), []byte("too late"))
	assert.Error(t, err)
}

func TestStreamingWrite_AbortAfterCommitIsNoOp(t *testing.T) {
	ex := NewExecutor()
	defer ex.Shutdown(context.Background())

	dir := t.TempDir()
	dest := filepath.Join(dir, "out.txt")

	w, err := OpenWrite(context.Background(), ex, dest)
	require.NoError(t, err)
	require.NoError(t, w.Commit(context.Background()))
	assert.NoError(t, w.Abort(context.Background()))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestExecutor_ShutdownAbortsInFlightWrites(t *testing.T) {
	ex := NewExecutor()

	dir := t.TempDir()
	dest := filepath.Join(dir, "out.txt")
	w, err := OpenWrite(context.Background(), ex, dest)
	require.NoError(t, err)
	_, err = w.WriteChunk(context.Background(), []byte("abandoned"))
	require.NoError(t, err)

	require.NoError(t, ex.Shutdown(context.Background()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "shutdown should abort in-flight writes, leaving no temp file")
}
