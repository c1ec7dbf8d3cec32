package asyncfs

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLifecycleState_TryTransition(t *testing.T) {
	s := newLifecycleState(0)
	require.EqualValues(t, 0, s.Load())

	assert.True(t, s.TryTransition(0, 1))
	assert.EqualValues(t, 1, s.Load())

	// stale "from" no longer matches.
	assert.False(t, s.TryTransition(0, 2))
	assert.EqualValues(t, 1, s.Load())
}

func TestLifecycleState_TransitionAny(t *testing.T) {
	s := newLifecycleState(5)
	assert.True(t, s.TransitionAny([]uint32{1, 5, 9}, 9))
	assert.EqualValues(t, 9, s.Load())

	// already at 9; none of validFrom match anymore.
	assert.False(t, s.TransitionAny([]uint32{1, 5}, 1))
}

func TestLifecycleState_ConcurrentFirstTransitionWins(t *testing.T) {
	s := newLifecycleState(0)
	const n = 64
	var wg sync.WaitGroup
	wins := make([]bool, n)
	wg.Add(n)
	for i := 0; i < n; i++ {
		i := i
		go func() {
			defer wg.Done()
			wins[i] = s.TransitionAny([]uint32{0}, uint32(i+1))
		}()
	}
	wg.Wait()

	count := 0
	for _, w := range wins {
		if w {
			count++
		}
	}
	assert.Equal(t, 1, count, "exactly one concurrent transition should win")
}
