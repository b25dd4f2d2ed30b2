package queueservice

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyerfyer/boundq/queue"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		in      string
		want    QueueKind
		wantErr bool
	}{
		{in: "", want: KindBounded},
		{in: "bounded", want: KindBounded},
		{in: "B", want: KindBounded},
		{in: "spsc", want: KindSPSC},
		{in: "ring", want: KindSPSC},
		{in: "priority", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseKind(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrInvalidKind, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestInMemoryService_CreateQueue(t *testing.T) {
	svc := NewInMemoryService()
	defer svc.Close()

	info, err := svc.CreateQueue("jobs", QueueOptions{Kind: KindBounded, Capacity: 4})
	require.NoError(t, err)
	assert.Equal(t, "jobs", info.Name)
	assert.Equal(t, KindBounded, info.Kind)
	assert.NotEmpty(t, info.ID)
	assert.Equal(t, 4, info.Stats.Capacity)

	_, err = svc.CreateQueue("jobs", QueueOptions{Capacity: 4})
	assert.ErrorIs(t, err, ErrQueueExists)

	_, err = svc.CreateQueue("zero", QueueOptions{Capacity: 0})
	assert.ErrorIs(t, err, queue.ErrInvalidCapacity)

	_, err = svc.CreateQueue("bad/name", QueueOptions{Capacity: 1})
	assert.ErrorIs(t, err, ErrInvalidName)

	_, err = svc.CreateQueue("odd", QueueOptions{Kind: "heap", Capacity: 1})
	assert.ErrorIs(t, err, ErrInvalidKind)

	assert.Len(t, svc.ListQueues(), 1)
}

func TestInMemoryService_PushPop(t *testing.T) {
	for _, kind := range []QueueKind{KindBounded, KindSPSC} {
		t.Run(string(kind), func(t *testing.T) {
			svc := NewInMemoryService()
			defer svc.Close()

			_, err := svc.CreateQueue("q", QueueOptions{Kind: kind, Capacity: 2})
			require.NoError(t, err)

			ctx := context.Background()
			require.NoError(t, svc.Push(ctx, "q", "a"))
			require.NoError(t, svc.TryPush("q", "b"))
			assert.ErrorIs(t, svc.TryPush("q", "c"), queue.ErrQueueFull)

			v, err := svc.Pop(ctx, "q")
			require.NoError(t, err)
			assert.Equal(t, "a", v)
			v, err = svc.TryPop("q")
			require.NoError(t, err)
			assert.Equal(t, "b", v)

			_, err = svc.TryPop("q")
			assert.ErrorIs(t, err, queue.ErrQueueEmpty)

			stats, err := svc.QueueStats("q")
			require.NoError(t, err)
			assert.Equal(t, uint64(2), stats.Pushed)
			assert.Equal(t, uint64(2), stats.Popped)
		})
	}
}

func TestInMemoryService_UnknownQueue(t *testing.T) {
	svc := NewInMemoryService()
	ctx := context.Background()

	assert.ErrorIs(t, svc.Push(ctx, "nope", "x"), ErrQueueNotFound)
	_, err := svc.Pop(ctx, "nope")
	assert.ErrorIs(t, err, ErrQueueNotFound)
	assert.ErrorIs(t, svc.TryPush("nope", "x"), ErrQueueNotFound)
	_, err = svc.TryPop("nope")
	assert.ErrorIs(t, err, ErrQueueNotFound)
	_, err = svc.QueueStats("nope")
	assert.ErrorIs(t, err, ErrQueueNotFound)
	_, err = svc.GetQueue("nope")
	assert.ErrorIs(t, err, ErrQueueNotFound)
	assert.ErrorIs(t, svc.DeleteQueue("nope"), ErrQueueNotFound)
	_, err = svc.Export(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrQueueNotFound)
}

func TestInMemoryService_SPSCSerializesCallers(t *testing.T) {
	svc := NewInMemoryService()
	defer svc.Close()

	_, err := svc.CreateQueue("ring", QueueOptions{Kind: KindSPSC, Capacity: 8})
	require.NoError(t, err)

	const producers, perProducer = 4, 500
	ctx := context.Background()

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				assert.NoError(t, svc.Push(ctx, "ring", "x"))
			}
		}()
	}

	var popped sync.WaitGroup
	var count int
	var mu sync.Mutex
	for c := 0; c < 2; c++ {
		popped.Add(1)
		go func() {
			defer popped.Done()
			for {
				_, err := svc.Pop(ctx, "ring")
				if err != nil {
					return
				}
				mu.Lock()
				count++
				mu.Unlock()
			}
		}()
	}

	wg.Wait()
	q, err := svc.GetQueue("ring")
	require.NoError(t, err)
	require.NoError(t, q.Close())
	popped.Wait()

	assert.Equal(t, producers*perProducer, count)
}

func TestInMemoryService_DeleteWakesWaiters(t *testing.T) {
	svc := NewInMemoryService()
	_, err := svc.CreateQueue("q", QueueOptions{Capacity: 1})
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() {
		_, err := svc.Pop(context.Background(), "q")
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, svc.DeleteQueue("q"))

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, queue.ErrQueueClosed)
	case <-time.After(time.Second):
		t.Fatal("pop was not woken by DeleteQueue")
	}
	assert.Empty(t, svc.ListQueues())
}

func TestInMemoryService_ListQueuesSorted(t *testing.T) {
	svc := NewInMemoryService()
	defer svc.Close()

	for _, name := range []string{"c", "a", "b"} {
		_, err := svc.CreateQueue(name, QueueOptions{Capacity: 1})
		require.NoError(t, err)
	}

	var names []string
	for _, info := range svc.ListQueues() {
		names = append(names, info.Name)
	}
	assert.Equal(t, []string{"a", "b", "c"}, names)
}

func TestInMemoryService_ExportImport(t *testing.T) {
	svc := NewInMemoryService()
	defer svc.Close()

	opts := QueueOptions{Kind: KindBounded, Capacity: 3, PopTimeout: time.Second}
	created, err := svc.CreateQueue("orders", opts)
	require.NoError(t, err)
	require.NoError(t, svc.TryPush("orders", "o1"))
	require.NoError(t, svc.TryPush("orders", "o2"))

	data, err := svc.Export(context.Background(), "orders")
	require.NoError(t, err)
	assert.Equal(t, created.ID, data.ID)
	assert.Equal(t, []string{"o1", "o2"}, data.Items)
	assert.Equal(t, time.Second, data.PopTimeout)

	// 导出不改变队列内容
	stats, err := svc.QueueStats("orders")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Size)

	assert.ErrorIs(t, svc.Import(data), ErrQueueExists)

	require.NoError(t, svc.DeleteQueue("orders"))
	require.NoError(t, svc.Import(data))

	v, err := svc.TryPop("orders")
	require.NoError(t, err)
	assert.Equal(t, "o1", v)

	infos := svc.ListQueues()
	require.Len(t, infos, 1)
	assert.Equal(t, created.ID, infos[0].ID)
	assert.Equal(t, opts, infos[0].Options)
}

func TestInMemoryService_ExportDuringPop(t *testing.T) {
	svc := NewInMemoryService()
	defer svc.Close()

	for round := 0; round < 50; round++ {
		_ = svc.DeleteQueue("q")
		_, err := svc.CreateQueue("q", QueueOptions{Capacity: 2})
		require.NoError(t, err)
		require.NoError(t, svc.TryPush("q", "a"))
		require.NoError(t, svc.TryPush("q", "b"))

		popped := make(chan string, 1)
		go func() {
			v, err := svc.Pop(context.Background(), "q")
			assert.NoError(t, err)
			popped <- v
		}()

		data, err := svc.Export(context.Background(), "q")
		require.NoError(t, err)
		got := <-popped
		require.Equal(t, "a", got)

		// 快照要么在出队之前，要么在出队之后，不会让元素既被取出又留在队列里
		assert.Contains(t, [][]string{{"a", "b"}, {"b"}}, data.Items)

		stats, err := svc.QueueStats("q")
		require.NoError(t, err)
		assert.Equal(t, 1, stats.Size)
		assert.Equal(t, uint64(2), stats.Pushed)
		assert.Equal(t, uint64(1), stats.Popped)

		rest, err := svc.TryPop("q")
		require.NoError(t, err)
		assert.Equal(t, "b", rest)
	}
}

func TestInMemoryService_ExportDuringPush(t *testing.T) {
	svc := NewInMemoryService()
	defer svc.Close()

	_, err := svc.CreateQueue("q", QueueOptions{Capacity: 4})
	require.NoError(t, err)
	require.NoError(t, svc.TryPush("q", "a"))
	require.NoError(t, svc.TryPush("q", "b"))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for _, item := range []string{"c", "d"} {
			assert.NoError(t, svc.Push(context.Background(), "q", item))
		}
	}()

	data, err := svc.Export(context.Background(), "q")
	require.NoError(t, err)
	wg.Wait()

	assert.Equal(t, []string{"a", "b"}, data.Items[:2])

	// 并发入队的元素都在队列中，导出没有丢失任何元素
	q, err := svc.GetQueue("q")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d"}, q.Drain())
}

func TestInMemoryService_ExportWaitsForSPSCConsumer(t *testing.T) {
	svc := NewInMemoryService()
	defer svc.Close()

	_, err := svc.CreateQueue("ring", QueueOptions{Kind: KindSPSC, Capacity: 4})
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() {
		_, err := svc.Pop(context.Background(), "ring")
		errCh <- err
	}()

	require.Eventually(t, func() bool {
		stats, err := svc.QueueStats("ring")
		return err == nil && stats.PopBlocks > 0
	}, time.Second, 5*time.Millisecond)

	// 消费端被阻塞的 Pop 占用，导出在 ctx 到期时放弃
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = svc.Export(ctx, "ring")
	assert.ErrorIs(t, err, queue.ErrOperationTimeout)

	// 非阻塞出队不会排在阻塞的 Pop 后面
	_, err = svc.TryPop("ring")
	assert.ErrorIs(t, err, queue.ErrQueueEmpty)

	require.NoError(t, svc.CloseQueues())
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, queue.ErrQueueClosed)
	case <-time.After(time.Second):
		t.Fatal("pop was not woken by CloseQueues")
	}

	data, err := svc.Export(context.Background(), "ring")
	require.NoError(t, err)
	assert.Empty(t, data.Items)
	assert.Equal(t, KindSPSC, data.Kind)
}

func TestInMemoryService_CloseQueuesKeepsItems(t *testing.T) {
	svc := NewInMemoryService()
	defer svc.Close()

	_, err := svc.CreateQueue("q", QueueOptions{Capacity: 2})
	require.NoError(t, err)
	require.NoError(t, svc.TryPush("q", "a"))

	require.NoError(t, svc.CloseQueues())
	assert.ErrorIs(t, svc.TryPush("q", "b"), queue.ErrQueueClosed)
	require.Len(t, svc.ListQueues(), 1)

	data, err := svc.Export(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, data.Items)
}

func TestInMemoryService_ImportTooLarge(t *testing.T) {
	svc := NewInMemoryService()
	err := svc.Import(QueueData{Name: "big", Capacity: 1, Items: []string{"a", "b"}})
	assert.ErrorIs(t, err, ErrSnapshotTooLarge)
	assert.Empty(t, svc.ListQueues())
}

func TestFormatQueueStats(t *testing.T) {
	out := FormatQueueStats(queue.Stats{
		CreatedAt:    time.Now(),
		Capacity:     4,
		Size:         2,
		Pushed:       5,
		Popped:       3,
		PushTimeouts: 1,
		Rejected:     2,
	})

	assert.Contains(t, out, "Capacity: 4 (50.0% utilized)")
	assert.Contains(t, out, "Operations: 5 pushed, 3 popped")
	assert.Contains(t, out, "Timeouts: 1 push, 0 pop")
	assert.Contains(t, out, "Rejected: 2")
	assert.NotContains(t, out, "Blocks:")
}

func TestParseItems(t *testing.T) {
	assert.Nil(t, ParseItems(""))
	assert.Equal(t, []string{"a", "b"}, ParseItems("a,b"))
	assert.Equal(t, "a,b", FormatItems([]string{"a", "b"}))
}
