package asyncfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJobQueue_PushPopFIFO(t *testing.T) {
	q := jobQueue{limit: 2}
	assert.False(t, q.full())

	j1 := newLaneJob(func() (any, error) { return 1, nil })
	j2 := newLaneJob(func() (any, error) { return 2, nil })
	q.push(j1)
	q.push(j2)
	assert.True(t, q.full())
	assert.Equal(t, 2, q.len())

	assert.Same(t, j1, q.pop())
	assert.Same(t, j2, q.pop())
	assert.Nil(t, q.pop())
	assert.Equal(t, 0, q.len())
}

func TestPendingQueue_PromoteSkipsCancelled(t *testing.T) {
	var q pendingQueue
	j := func() *laneJob { return newLaneJob(func() (any, error) { return nil, nil }) }

	n1 := q.enqueue(j())
	n2 := q.enqueue(j())
	n3 := q.enqueue(j())

	q.cancel(n1)
	q.cancel(n2)

	got := q.promoteOne()
	assert.Same(t, n3, got)
	assert.Nil(t, q.promoteOne(), "queue should now be empty")
}

func TestPendingQueue_PromoteOneEmpty(t *testing.T) {
	var q pendingQueue
	assert.Nil(t, q.promoteOne())
}
