package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyerfyer/boundq/internal/logging"
	"github.com/fyerfyer/boundq/internal/queueservice"
)

var (
	// 队列服务实例，所有命令共享
	queueSvc queueservice.Service

	// 全局标志
	logLevel  string
	storeKind string
	storeDir  string
	redisAddr string
	storeTTL  time.Duration
)

// rootCmd 表示CLI工具的根命令
var rootCmd = &cobra.Command{
	Use:   "qcli",
	Short: "A CLI tool for managing bounded queues",
	Long: `Queue CLI (qcli) is a command line interface for creating and managing bounded queues.
It supports mutex-based bounded queues and lock-free single-producer/single-consumer rings,
blocking and non-blocking push and pop, snapshots to disk or Redis, a gRPC server,
and a load generator that verifies every item is delivered exactly once.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setup()
	},
	Run: func(cmd *cobra.Command, args []string) {
		// 如果没有子命令被调用，显示帮助信息
		_ = cmd.Help()
	},
}

// Execute 运行根命令并处理任何错误
// 不带参数时进入交互模式
func Execute() {
	defer shutdown()

	if len(os.Args) == 1 {
		if err := setup(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		runInteractiveMode()
		return
	}

	if err := rootCmd.Execute(); err != nil {
		shutdown()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&storeKind, "store", "file", "Snapshot store: 'file' or 'redis'")
	rootCmd.PersistentFlags().StringVar(&storeDir, "store-dir", ".qcli", "Directory for the file snapshot store")
	rootCmd.PersistentFlags().StringVar(&redisAddr, "redis-addr", "localhost:6379", "Redis address for the redis snapshot store")
	rootCmd.PersistentFlags().DurationVar(&storeTTL, "store-cache", 0, "Cache snapshot reads for this long (0 disables the cache)")
}

// setup 初始化日志器和队列服务，交互模式下只执行一次
func setup() error {
	if queueSvc != nil {
		return nil
	}

	logger, err := logging.New(logLevel)
	if err != nil {
		return err
	}
	logging.SetGlobal(logger)

	queueSvc = queueservice.NewInMemoryService(queueservice.WithLogger(logger.Named("queues")))
	return nil
}

func shutdown() {
	if queueSvc != nil {
		_ = queueSvc.Close()
		queueSvc = nil
	}
	_ = logging.L().Sync()
}

// GetQueueService 返回队列服务实例，供子命令使用
func GetQueueService() queueservice.Service {
	return queueSvc
}

// openStore 按全局标志打开快照存储
func openStore(ctx context.Context) (queueservice.SnapshotStore, error) {
	var (
		store queueservice.SnapshotStore
		err   error
	)
	switch storeKind {
	case "file", "":
		store, err = queueservice.NewFileStore(storeDir)
	case "redis":
		config := queueservice.DefaultRedisConfig()
		config.Addr = redisAddr
		store, err = queueservice.NewRedisStore(ctx, config)
	default:
		return nil, fmt.Errorf("invalid store: %s, must be 'file' or 'redis'", storeKind)
	}
	if err != nil {
		return nil, err
	}

	if storeTTL > 0 {
		store = queueservice.NewCachedStore(store, storeTTL)
	}
	return store, nil
}

// commandContext 返回命令的上下文，timeout 大于 0 时附加超时
func commandContext(cmd *cobra.Command, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = logging.WithContext(ctx, logging.L().With(logging.String("command", cmd.Name())))
	if timeout > 0 {
		return context.WithTimeout(ctx, timeout)
	}
	return context.WithCancel(ctx)
}
