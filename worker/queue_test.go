package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryQueue_FIFOAndDedup(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue()

	require.NoError(t, q.Enqueue(ctx, "alice"))
	require.NoError(t, q.Enqueue(ctx, "bob"))
	require.NoError(t, q.Enqueue(ctx, "alice"))
	assert.Equal(t, 2, q.Len())

	got, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, "alice", got)

	// 取出后可以再次投递
	require.NoError(t, q.Enqueue(ctx, "alice"))

	got, err = q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, "bob", got)
	got, err = q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, "alice", got)
}

func TestMemoryQueue_BlocksUntilEnqueue(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	q := NewMemoryQueue()

	done := make(chan string, 1)
	go func() {
		userID, err := q.Dequeue(ctx)
		if err == nil {
			done <- userID
		}
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, q.Enqueue(ctx, "carol"))

	select {
	case got := <-done:
		assert.Equal(t, "carol", got)
	case <-ctx.Done():
		t.Fatal("dequeue did not return")
	}
}

func TestMemoryQueue_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewMemoryQueue().Dequeue(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemoryQueue_Close(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue()
	require.NoError(t, q.Enqueue(ctx, "alice"))
	require.NoError(t, q.Enqueue(ctx, "bob"))
	q.Close()
	q.Close()

	assert.ErrorIs(t, q.Enqueue(ctx, "carol"), ErrQueueClosed)

	got, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, "alice", got, "remaining items are drained")
	got, err = q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, "bob", got)

	_, err = q.Dequeue(ctx)
	assert.ErrorIs(t, err, ErrQueueClosed)
}
