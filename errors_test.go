package asyncfs

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_UnwrapReachesUnderlyingOperationError(t *testing.T) {
	underlying := &os.PathError{Op: "open", Path: "/nope", Err: os.ErrNotExist}
	wrapped := opError[error](underlying)

	assert.ErrorIs(t, wrapped, os.ErrNotExist)
	assert.Equal(t, underlying, wrapped.Unwrap())
}

func TestError_UnwrapForNonOperationKindsReachesSentinel(t *testing.T) {
	wrapped := handleError[error](ErrScopeMismatch)
	assert.ErrorIs(t, wrapped, ErrScopeMismatch)
}

func TestError_KindStringIsHumanReadable(t *testing.T) {
	assert.Equal(t, "Operation", KindOperation.String())
	assert.Equal(t, "Handle", KindHandle.String())
	assert.Equal(t, "Executor", KindExecutor.String())
	assert.Equal(t, "Lane", KindLane.String())
	assert.Equal(t, "Cancelled", KindCancelled.String())
}

// TestMapOperation_RetagsOperationKindPreservingOthers exercises the
// map_operation combinator spec.md §7 requires for bridging one subsystem's
// operation-error type into another's (e.g. a directory-iterator's *os.PathError
// becoming a walker-level string summary).
func TestMapOperation_RetagsOperationKindPreservingOthers(t *testing.T) {
	underlying := &os.PathError{Op: "readdir", Path: "/tmp/x", Err: errors.New("boom")}
	original := opError[*os.PathError](underlying)

	retagged := MapOperation(original, func(pe *os.PathError) string {
		return pe.Path + ": " + pe.Err.Error()
	})

	require.Equal(t, KindOperation, retagged.Kind)
	assert.Equal(t, "/tmp/x: boom", retagged.Operation)

	nonOp := laneError[*os.PathError](ErrQueueFull)
	retaggedNonOp := MapOperation(nonOp, func(pe *os.PathError) string { return "unused" })
	assert.Equal(t, KindLane, retaggedNonOp.Kind)
	assert.ErrorIs(t, retaggedNonOp, ErrQueueFull)

	var nilErr *Error[*os.PathError]
	assert.Nil(t, MapOperation(nilErr, func(pe *os.PathError) string { return "unused" }))
}
