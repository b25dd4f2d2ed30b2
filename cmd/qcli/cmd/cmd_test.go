package cmd

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyerfyer/boundq/internal/queueservice"
	"github.com/fyerfyer/boundq/internal/transport"
	"github.com/fyerfyer/boundq/queue"
)

// withService 为测试准备独立的队列服务和快照目录
func withService(t *testing.T) {
	t.Helper()

	storeKind = "file"
	storeDir = filepath.Join(t.TempDir(), "snapshots")
	logLevel = "error"
	require.NoError(t, setup())
	t.Cleanup(shutdown)
}

// runCommand 执行一条命令并返回错误，结束后恢复标志默认值
func runCommand(t *testing.T, args ...string) error {
	t.Helper()

	rootCmd.SetArgs(args)
	defer resetFlags(rootCmd)
	return rootCmd.ExecuteContext(context.Background())
}

func TestInteractive_PushPopRoundTrip(t *testing.T) {
	withService(t)

	executeCommand("create jobs --capacity 2")
	executeCommand(`push jobs --item "first job"`)
	executeCommand("push jobs -i second")

	stats, err := GetQueueService().QueueStats("jobs")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Size)
	assert.Equal(t, 2, stats.Capacity)

	// 队列已满，--try 立即失败
	executeCommand("push jobs -i third --try")
	stats, err = GetQueueService().QueueStats("jobs")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), stats.Rejected)

	executeCommand("pop jobs --count 2 --silent")
	stats, err = GetQueueService().QueueStats("jobs")
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Size)
	assert.Equal(t, uint64(2), stats.Popped)
}

func TestInteractive_FlagsReset(t *testing.T) {
	withService(t)

	executeCommand("create a --capacity 3 --kind spsc")
	executeCommand("create b")

	infos := GetQueueService().ListQueues()
	require.Len(t, infos, 2)
	assert.Equal(t, queueservice.KindSPSC, infos[0].Kind)
	assert.Equal(t, 3, infos[0].Stats.Capacity)

	// 上一条命令的 --kind 和 --capacity 不应残留
	assert.Equal(t, queueservice.KindBounded, infos[1].Kind)
	assert.Equal(t, 16, infos[1].Stats.Capacity)
}

func TestInteractive_SaveLoad(t *testing.T) {
	withService(t)

	executeCommand("create q --capacity 4")
	executeCommand("push q -i x")
	executeCommand("push q -i y")
	executeCommand("save q")

	store, err := openStore(context.Background())
	require.NoError(t, err)
	names, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"q"}, names)

	executeCommand("delete q")
	_, err = GetQueueService().GetQueue("q")
	require.ErrorIs(t, err, queueservice.ErrQueueNotFound)

	executeCommand("load q")
	item, err := GetQueueService().TryPop("q")
	require.NoError(t, err)
	assert.Equal(t, "x", item)
}

func TestOpenStore_Invalid(t *testing.T) {
	storeKind = "s3"
	t.Cleanup(func() { storeKind = "file" })

	_, err := openStore(context.Background())
	assert.Error(t, err)
}

func TestBench_VerifiesDelivery(t *testing.T) {
	withService(t)

	require.NoError(t, runCommand(t, "bench", "--items", "500", "-p", "3", "-n", "2", "-c", "4"))
	require.NoError(t, runCommand(t, "bench", "--kind", "spsc", "--items", "500", "-p", "1", "-n", "1", "-c", "2"))

	// 环形队列只允许一个生产者
	assert.Error(t, runCommand(t, "bench", "--kind", "spsc", "-p", "2", "-n", "1"))
	assert.Error(t, runCommand(t, "bench", "--kind", "heap"))

	require.NoError(t, runCommand(t, "bench", "pool", "--tasks", "50", "--work", "0s", "-c", "4", "-w", "2"))
	assert.Error(t, runCommand(t, "bench", "pool", "--tasks", "0"))
}

func TestSnapshots_ListAndDelete(t *testing.T) {
	withService(t)

	require.NoError(t, runCommand(t, "create", "q1", "--capacity", "2"))
	require.NoError(t, runCommand(t, "push", "q1", "-i", "x"))
	require.NoError(t, runCommand(t, "save", "q1"))
	require.NoError(t, runCommand(t, "snapshots"))

	// 保存不改变队列内容
	stats, err := GetQueueService().QueueStats("q1")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Size)

	require.NoError(t, runCommand(t, "snapshots", "--delete", "q1"))

	store, err := openStore(context.Background())
	require.NoError(t, err)
	names, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, names)

	assert.ErrorIs(t, runCommand(t, "snapshots", "--delete", "q1"), queueservice.ErrSnapshotNotFound)
	assert.Error(t, runCommand(t, "load", "q1"))
}

// startServer 在随机端口上运行 serve，返回地址和停止函数
func startServer(t *testing.T, opts serveOptions) (string, func() error) {
	t.Helper()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- serveQueues(ctx, lis, GetQueueService(), opts)
	}()

	stop := func() error {
		cancel()
		select {
		case err := <-errCh:
			return err
		case <-time.After(10 * time.Second):
			t.Fatal("server did not shut down")
			return nil
		}
	}
	t.Cleanup(func() { cancel() })

	return lis.Addr().String(), stop
}

func TestRemote_Commands(t *testing.T) {
	withService(t)
	addr, stop := startServer(t, serveOptions{maxBlocking: 16})

	require.NoError(t, runCommand(t, "remote", "create", "jobs", "-c", "2", "--server", addr))
	require.NoError(t, runCommand(t, "remote", "push", "jobs", "a", "--server", addr))
	require.NoError(t, runCommand(t, "remote", "push", "jobs", "b", "-t", "--server", addr))

	// 队列已满，非阻塞入队立即失败
	assert.ErrorIs(t, runCommand(t, "remote", "push", "jobs", "c", "-t", "--server", addr), queue.ErrQueueFull)
	// 阻塞入队在超时后失败
	assert.ErrorIs(t, runCommand(t, "remote", "push", "jobs", "c", "--timeout", "50ms", "--server", addr), queue.ErrOperationTimeout)

	require.NoError(t, runCommand(t, "remote", "pop", "jobs", "--server", addr))
	require.NoError(t, runCommand(t, "remote", "stats", "jobs", "--server", addr))
	require.NoError(t, runCommand(t, "remote", "list", "--server", addr))

	stats, err := GetQueueService().QueueStats("jobs")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Size)
	assert.Equal(t, uint64(2), stats.Pushed)
	assert.Equal(t, uint64(1), stats.Popped)

	require.NoError(t, runCommand(t, "remote", "delete", "jobs", "--server", addr))
	assert.ErrorIs(t, runCommand(t, "remote", "pop", "jobs", "-t", "--server", addr), queueservice.ErrQueueNotFound)

	require.NoError(t, stop())
}

func TestServe_PersistSavesOnShutdown(t *testing.T) {
	withService(t)
	addr, stop := startServer(t, serveOptions{persist: true, maxBlocking: 16})

	require.NoError(t, runCommand(t, "remote", "create", "jobs", "-c", "4", "--server", addr))
	require.NoError(t, runCommand(t, "remote", "create", "ring", "--kind", "spsc", "-c", "4", "--server", addr))
	for _, item := range []string{"a", "b", "c"} {
		require.NoError(t, runCommand(t, "remote", "push", "jobs", item, "--server", addr))
	}
	require.NoError(t, runCommand(t, "remote", "pop", "jobs", "--server", addr))

	client, err := transport.NewClient(transport.DefaultClientConfig(addr))
	require.NoError(t, err)
	defer client.Close()

	// 远程客户端阻塞在空的环形队列上，占用其消费端
	popErr := make(chan error, 1)
	go func() {
		_, err := client.Pop(context.Background(), "ring")
		popErr <- err
	}()
	require.Eventually(t, func() bool {
		stats, err := GetQueueService().QueueStats("ring")
		return err == nil && stats.PopBlocks > 0
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, stop())

	select {
	case err := <-popErr:
		assert.ErrorIs(t, err, queue.ErrQueueClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("blocked remote pop was not released")
	}

	store, err := openStore(context.Background())
	require.NoError(t, err)
	defer store.Close()

	names, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"jobs", "ring"}, names)

	jobs, err := store.Load(context.Background(), "jobs")
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, jobs.Items)

	ring, err := store.Load(context.Background(), "ring")
	require.NoError(t, err)
	assert.Equal(t, queueservice.KindSPSC, ring.Kind)
	assert.Empty(t, ring.Items)

	// 重新启动时从快照恢复
	_, stop = startServer(t, serveOptions{persist: true})
	require.Eventually(t, func() bool {
		return len(GetQueueService().ListQueues()) == 2
	}, 2*time.Second, 10*time.Millisecond)
	v, err := GetQueueService().TryPop("jobs")
	require.NoError(t, err)
	assert.Equal(t, "b", v)
	require.NoError(t, stop())
}
