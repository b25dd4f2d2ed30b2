package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/fyerfyer/boundq/internal/logging"
	"github.com/fyerfyer/boundq/internal/queueservice"
	"github.com/fyerfyer/boundq/internal/transport"
)

// serveCmd 通过 gRPC 暴露队列服务
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve queues over gRPC",
	Long: `Expose the queue service over gRPC. Blocking push and pop block on the server,
so remote callers see the same backpressure as local ones.
With --persist, snapshots are restored at startup and saved again on shutdown.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		persist, _ := cmd.Flags().GetBool("persist")
		rateLimit, _ := cmd.Flags().GetFloat64("rate")
		rateBurst, _ := cmd.Flags().GetInt("rate-burst")
		maxBlocking, _ := cmd.Flags().GetInt64("max-blocking")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		lis, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", addr, err)
		}

		fmt.Printf("Serving queues on %s (press Ctrl+C to stop)\n", lis.Addr())

		return serveQueues(ctx, lis, GetQueueService(), serveOptions{
			persist:     persist,
			rateLimit:   rateLimit,
			rateBurst:   rateBurst,
			maxBlocking: maxBlocking,
		})
	},
}

// serveOptions 是 serve 命令的运行参数
type serveOptions struct {
	persist     bool
	rateLimit   float64
	rateBurst   int
	maxBlocking int64
}

// serveQueues 在 lis 上提供服务直到 ctx 结束
//
// 关闭顺序：停止接收新调用，关闭队列唤醒阻塞的 Push/Pop，
// 等待进行中的调用结束，最后保存快照并释放服务
func serveQueues(ctx context.Context, lis net.Listener, service queueservice.Service, opts serveOptions) error {
	logger := logging.L().Named("server")

	var store queueservice.SnapshotStore
	if opts.persist {
		var err error
		store, err = openStore(ctx)
		if err != nil {
			lis.Close()
			return err
		}
		defer store.Close()

		if err := restoreAll(ctx, service, store, logger); err != nil {
			lis.Close()
			return err
		}
	}

	config := transport.DefaultServerConfig()
	config.Logger = logger
	config.RateLimit = opts.rateLimit
	config.RateBurst = opts.rateBurst
	config.RateWait = 100 * time.Millisecond
	config.MaxBlockingCalls = opts.maxBlocking
	server := transport.NewServer(service, config)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(lis)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")

	stopped := make(chan struct{})
	go func() {
		server.GracefulStop()
		close(stopped)
	}()

	_ = service.CloseQueues()

	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		server.Stop()
		<-stopped
	}

	if store != nil {
		saveCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		saveAll(saveCtx, service, store, logger)
		cancel()
	}

	return service.Close()
}

// restoreAll 导入存储中的全部快照
func restoreAll(ctx context.Context, service queueservice.Service, store queueservice.SnapshotStore, logger *zap.Logger) error {
	names, err := store.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list snapshots: %w", err)
	}
	for _, name := range names {
		data, err := queueservice.LoadQueue(ctx, service, store, name)
		if err != nil {
			logger.Warn("skip snapshot", logging.String("queue", name), logging.Error(err))
			continue
		}
		logger.Info("restored queue", logging.String("queue", name), logging.Int("items", len(data.Items)))
	}
	return nil
}

// saveAll 保存服务中的全部队列
func saveAll(ctx context.Context, service queueservice.Service, store queueservice.SnapshotStore, logger *zap.Logger) {
	for _, info := range service.ListQueues() {
		data, err := queueservice.SaveQueue(ctx, service, store, info.Name)
		if err != nil {
			logger.Error("failed to save queue", logging.String("queue", info.Name), logging.Error(err))
			continue
		}
		logger.Info("saved queue", logging.String("queue", info.Name), logging.Int("items", len(data.Items)))
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", ":7070", "Address to listen on")
	serveCmd.Flags().Bool("persist", false, "Restore snapshots at startup and save them on shutdown")
	serveCmd.Flags().Float64("rate", 0, "Maximum calls per second (0 for unlimited)")
	serveCmd.Flags().Int("rate-burst", 100, "Burst size for --rate")
	serveCmd.Flags().Int64("max-blocking", 1024, "Maximum concurrent blocking push/pop calls (0 for unlimited)")
}
