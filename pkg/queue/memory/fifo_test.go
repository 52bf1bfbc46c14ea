package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"ai-support-be/pkg/queue"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFIFO_PreservesOrder(t *testing.T) {
	q := NewFIFO[int]()
	ctx := context.Background()
	for i := 0; i < 100; i++ {
		require.NoError(t, q.Enqueue(ctx, i))
	}
	assert.Equal(t, 100, q.Len())

	for i := 0; i < 100; i++ {
		v, err := q.Dequeue(ctx)
		require.NoError(t, err)
		assert.Equal(t, i, v)
	}
	assert.Equal(t, 0, q.Len())
}

func TestFIFO_DequeueBlocksUntilEnqueue(t *testing.T) {
	q := NewFIFO[string]()
	got := make(chan string, 1)

	go func() {
		v, err := q.Dequeue(context.Background())
		if err == nil {
			got <- v
		}
	}()

	select {
	case <-got:
		t.Fatal("dequeue returned before anything was enqueued")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, q.Enqueue(context.Background(), "doc-1"))
	select {
	case v := <-got:
		assert.Equal(t, "doc-1", v)
	case <-time.After(time.Second):
		t.Fatal("dequeue did not wake up")
	}
}

func TestFIFO_DequeueHonorsContext(t *testing.T) {
	q := NewFIFO[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.Dequeue(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFIFO_CloseDrainsThenFails(t *testing.T) {
	q := NewFIFO[int]()
	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, 1))
	require.NoError(t, q.Close())

	assert.ErrorIs(t, q.Enqueue(ctx, 2), queue.ErrClosed)

	v, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	_, err = q.Dequeue(ctx)
	assert.ErrorIs(t, err, queue.ErrClosed)
}

func TestFIFO_ConcurrentProducersKeepPerProducerOrder(t *testing.T) {
	q := NewFIFO[[2]int]()
	ctx := context.Background()
	const producers, perProducer = 8, 200

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				_ = q.Enqueue(ctx, [2]int{p, i})
			}
		}(p)
	}
	wg.Wait()

	last := make([]int, producers)
	for i := range last {
		last[i] = -1
	}
	for n := 0; n < producers*perProducer; n++ {
		item, err := q.Dequeue(ctx)
		require.NoError(t, err)
		assert.Greater(t, item[1], last[item[0]])
		last[item[0]] = item[1]
	}
}
