package asyncfs

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkIter_YieldsAllBytesInOrder(t *testing.T) {
	ex := NewExecutor()
	defer ex.Shutdown(context.Background())

	dir := t.TempDir()
	path := filepath.Join(dir, "f.bin")
	content := bytes.Repeat([]byte("0123456789"), 10) // 100 bytes
	require.NoError(t, os.WriteFile(path, content, 0o644))

	id, err := ex.OpenFile(context.Background(), path, ModeRead, OpenOptions{})
	require.NoError(t, err)

	it := OpenChunkIter(ex, id, 7, 2) // odd chunk size, small batch
	var got []byte
	for {
		chunk, ok, err := it.Next(context.Background())
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, chunk...)
	}
	assert.Equal(t, content, got)
	assert.False(t, ex.IsValid(id), "EOF must destroy the underlying handle")
}

func TestChunkIter_EmptyFile(t *testing.T) {
	ex := NewExecutor()
	defer ex.Shutdown(context.Background())

	dir := t.TempDir()
	path := filepath.Join(dir, "empty")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	id, err := ex.OpenFile(context.Background(), path, ModeRead, OpenOptions{})
	require.NoError(t, err)

	it := OpenChunkIter(ex, id, 4)
	_, ok, err := it.Next(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, ex.IsValid(id), "EOF must destroy the underlying handle")
}

func TestChunkIter_CloseStopsIteration(t *testing.T) {
	ex := NewExecutor()
	defer ex.Shutdown(context.Background())

	dir := t.TempDir()
	path := filepath.Join(dir, "f.bin")
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte{1}, 32), 0o644))

	id, err := ex.OpenFile(context.Background(), path, ModeRead, OpenOptions{})
	require.NoError(t, err)

	it := OpenChunkIter(ex, id, 4)
	require.NoError(t, it.Close(context.Background()))
	_, ok, err := it.Next(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	assert.False(t, ex.IsValid(id), "Close must destroy the underlying handle")
}
