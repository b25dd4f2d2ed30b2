package transport

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/fyerfyer/boundq/internal/queueservice"
	"github.com/fyerfyer/boundq/queue"
)

type testEnv struct {
	svc    *queueservice.InMemoryService
	client *Client
	logs   *observer.ObservedLogs
}

func newTestEnv(t *testing.T, configure ...func(*ServerConfig)) *testEnv {
	t.Helper()

	core, logs := observer.New(zap.DebugLevel)
	svc := queueservice.NewInMemoryService()

	cfg := DefaultServerConfig()
	cfg.Logger = zap.New(core)
	for _, fn := range configure {
		fn(cfg)
	}
	srv := NewServer(svc, cfg)

	lis := bufconn.Listen(1 << 20)
	go func() {
		_ = srv.Serve(lis)
	}()

	clientCfg := DefaultClientConfig("passthrough:///bufnet")
	clientCfg.DialOptions = []grpc.DialOption{
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
	}
	client, err := NewClient(clientCfg)
	require.NoError(t, err)

	t.Cleanup(func() {
		client.Close()
		svc.Close()
		srv.Stop()
	})

	return &testEnv{svc: svc, client: client, logs: logs}
}

func TestRemote_CreateAndList(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	summary, err := env.client.Create(ctx, "jobs", queueservice.QueueOptions{Kind: queueservice.KindBounded, Capacity: 4})
	require.NoError(t, err)
	assert.Equal(t, "jobs", summary.Name)
	assert.Equal(t, "bounded", summary.Kind)
	assert.NotEmpty(t, summary.ID)
	assert.Equal(t, 4, summary.Stats.Capacity)

	_, err = env.client.Create(ctx, "jobs", queueservice.QueueOptions{Capacity: 4})
	assert.ErrorIs(t, err, queueservice.ErrQueueExists)

	_, err = env.client.Create(ctx, "zero", queueservice.QueueOptions{Capacity: 0})
	assert.ErrorIs(t, err, queue.ErrInvalidCapacity)

	queues, err := env.client.List(ctx)
	require.NoError(t, err)
	require.Len(t, queues, 1)
	assert.Equal(t, summary.ID, queues[0].ID)
}

func TestRemote_PushPop(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.client.Create(ctx, "q", queueservice.QueueOptions{Capacity: 2})
	require.NoError(t, err)

	require.NoError(t, env.client.Push(ctx, "q", "a"))
	require.NoError(t, env.client.TryPush(ctx, "q", "b"))
	assert.ErrorIs(t, env.client.TryPush(ctx, "q", "c"), queue.ErrQueueFull)

	v, err := env.client.Pop(ctx, "q")
	require.NoError(t, err)
	assert.Equal(t, "a", v)
	v, err = env.client.TryPop(ctx, "q")
	require.NoError(t, err)
	assert.Equal(t, "b", v)

	_, err = env.client.TryPop(ctx, "q")
	assert.ErrorIs(t, err, queue.ErrQueueEmpty)

	stats, err := env.client.Stats(ctx, "q")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), stats.Pushed)
	assert.Equal(t, uint64(1), stats.Rejected)

	assert.Positive(t, env.logs.FilterMessage("rpc").Len())
}

func TestRemote_NotFound(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	assert.ErrorIs(t, env.client.Push(ctx, "ghost", "x"), queueservice.ErrQueueNotFound)
	_, err := env.client.Stats(ctx, "ghost")
	assert.ErrorIs(t, err, queueservice.ErrQueueNotFound)
	assert.ErrorIs(t, env.client.Delete(ctx, "ghost"), queueservice.ErrQueueNotFound)
}

func TestRemote_BlockingPopWaitsForPush(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.client.Create(ctx, "q", queueservice.QueueOptions{Capacity: 1})
	require.NoError(t, err)

	var wg sync.WaitGroup
	var got string
	var popErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		got, popErr = env.client.Pop(ctx, "q")
	}()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, env.client.Push(ctx, "q", "late"))
	wg.Wait()

	require.NoError(t, popErr)
	assert.Equal(t, "late", got)
}

func TestRemote_PushDeadline(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.client.Create(context.Background(), "q", queueservice.QueueOptions{Capacity: 1})
	require.NoError(t, err)
	require.NoError(t, env.client.Push(context.Background(), "q", "a"))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err = env.client.Push(ctx, "q", "b")
	assert.ErrorIs(t, err, queue.ErrOperationTimeout)

	// 超时的远程入队不会占用容量
	require.Eventually(t, func() bool {
		stats, err := env.client.Stats(context.Background(), "q")
		return err == nil && stats.Size == 1 && stats.PushTimeouts+stats.Cancelled == 1
	}, time.Second, 10*time.Millisecond)
}

func TestRemote_ServerSideTimeout(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.client.Create(ctx, "q", queueservice.QueueOptions{Capacity: 1, PopTimeout: 30 * time.Millisecond})
	require.NoError(t, err)

	_, err = env.client.Pop(ctx, "q")
	assert.ErrorIs(t, err, queue.ErrOperationTimeout)
}

func TestRemote_DeleteWakesBlockedPop(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.client.Create(ctx, "q", queueservice.QueueOptions{Kind: queueservice.KindSPSC, Capacity: 1})
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() {
		_, err := env.client.Pop(ctx, "q")
		errCh <- err
	}()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, env.client.Delete(ctx, "q"))

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, queue.ErrQueueClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("blocked remote pop was not released")
	}
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		err  error
		code codes.Code
	}{
		{queueservice.ErrQueueNotFound, codes.NotFound},
		{queueservice.ErrQueueExists, codes.AlreadyExists},
		{queue.ErrQueueFull, codes.ResourceExhausted},
		{queue.ErrQueueEmpty, codes.Unavailable},
		{queue.ErrQueueClosed, codes.FailedPrecondition},
		{queue.ErrInvalidCapacity, codes.InvalidArgument},
		{queue.ErrOperationTimeout, codes.DeadlineExceeded},
		{queue.ErrOperationCancelled, codes.Canceled},
		{errors.New("boom"), codes.Internal},
	}

	for _, tt := range tests {
		st := toStatus(tt.err)
		assert.Equal(t, tt.code, status.Code(st), tt.err.Error())

		back := fromStatus(st)
		if tt.code != codes.Internal {
			assert.ErrorIs(t, back, tt.err)
		}
	}

	assert.NoError(t, toStatus(nil))
	assert.NoError(t, fromStatus(nil))

	// 传输层的 Unavailable 不会被误认为队列为空
	transportErr := status.Error(codes.Unavailable, "connection refused")
	assert.NotErrorIs(t, fromStatus(transportErr), queue.ErrQueueEmpty)
}
