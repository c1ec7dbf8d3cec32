package asyncfs

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithHandle_ReadsFile(t *testing.T) {
	ex := NewExecutor()
	defer ex.Shutdown(context.Background())

	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0o644))

	id, err := ex.OpenFile(context.Background(), path, ModeRead, OpenOptions{})
	require.NoError(t, err)

	n, err := WithHandle(context.Background(), ex, id, func(h *Handle) (int, error) {
		buf := make([]byte, 5)
		return h.ReadInto(buf)
	})
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestWithHandle_PartialResultSurvivesError(t *testing.T) {
	ex := NewExecutor()
	defer ex.Shutdown(context.Background())

	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(path, []byte("hi"), 0o644))

	id, err := ex.OpenFile(context.Background(), path, ModeRead, OpenOptions{})
	require.NoError(t, err)

	n, err := WithHandle(context.Background(), ex, id, func(h *Handle) (int, error) {
		buf := make([]byte, 16)
		read, rerr := h.ReadInto(buf)
		if rerr == nil {
			// second read observes EOF
			var more int
			more, rerr = h.ReadInto(buf)
			read += more
		}
		return read, rerr
	})
	assert.Equal(t, 2, n, "partial result must survive alongside a terminal error")
	require.Error(t, err)
	assert.True(t, errors.Is(err, io.EOF))
}

func TestWithHandle_CheckInRestoresForNextTransaction(t *testing.T) {
	ex := NewExecutor()
	defer ex.Shutdown(context.Background())

	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(path, []byte("abcdef"), 0o644))

	id, err := ex.OpenFile(context.Background(), path, ModeRead, OpenOptions{})
	require.NoError(t, err)

	_, err = WithHandle(context.Background(), ex, id, func(h *Handle) (int, error) {
		return h.ReadInto(make([]byte, 3))
	})
	require.NoError(t, err)

	b, err := WithHandle(context.Background(), ex, id, func(h *Handle) ([]byte, error) {
		return h.Read(3)
	})
	require.NoError(t, err)
	assert.Equal(t, "def", string(b), "the second transaction should continue from the handle's prior offset")
}

func TestHandle_IOAdaptsToStdlibReadWriteSeeker(t *testing.T) {
	ex := NewExecutor()
	defer ex.Shutdown(context.Background())

	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(path, []byte("abcdefgh"), 0o644))

	id, err := ex.OpenFile(context.Background(), path, ModeRead, OpenOptions{})
	require.NoError(t, err)

	got, err := WithHandle(context.Background(), ex, id, func(h *Handle) ([]byte, error) {
		rws := h.IO()
		if _, err := rws.Seek(2, io.SeekStart); err != nil {
			return nil, err
		}
		buf := make([]byte, 4)
		n, err := rws.Read(buf)
		return buf[:n], err
	})
	require.NoError(t, err)
	assert.Equal(t, "cdef", string(got))
}

func TestTransaction_InvalidHandleID(t *testing.T) {
	ex := NewExecutor()
	defer ex.Shutdown(context.Background())

	_, err := WithHandle(context.Background(), ex, HandleID{raw: 999, scope: 1}, func(h *Handle) (int, error) {
		return 0, nil
	})
	require.Error(t, err)
}
