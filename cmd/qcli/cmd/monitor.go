package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyerfyer/boundq/queue"
)

// monitorCmd 表示monitor命令，用于实时监控队列状态
var monitorCmd = &cobra.Command{
	Use:   "monitor [queue-name]",
	Short: "Monitor queue activity in real-time",
	Long: `Watch queue statistics update in real-time.
Press Ctrl+C to stop monitoring.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		// 获取队列名称
		queueName := args[0]

		// 获取刷新间隔
		interval, _ := cmd.Flags().GetDuration("interval")
		if interval <= 0 {
			return fmt.Errorf("interval must be positive")
		}

		service := GetQueueService()

		// 检查队列是否存在
		if _, err := service.GetQueue(queueName); err != nil {
			return err
		}

		// 捕获Ctrl+C
		base, cancel := commandContext(cmd, 0)
		defer cancel()
		ctx, stop := signal.NotifyContext(base, os.Interrupt, syscall.SIGTERM)
		defer stop()

		// 显示监控启动信息
		fmt.Printf("Monitoring queue '%s' (refresh: %v, press Ctrl+C to stop)...\n\n",
			queueName, interval)

		// 记录前一次的统计信息，用于计算变化率
		prev, err := service.QueueStats(queueName)
		if err != nil {
			return fmt.Errorf("failed to get queue statistics: %w", err)
		}
		prevTime := time.Now()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				stats, err := service.QueueStats(queueName)
				if err != nil {
					return fmt.Errorf("failed to get queue statistics: %w", err)
				}

				now := time.Now()
				printMonitorFrame(queueName, stats, prev, now.Sub(prevTime), now)

				prev = stats
				prevTime = now

			case <-ctx.Done():
				// 收到中断信号，退出监控
				fmt.Println("\nMonitoring stopped.")
				return nil
			}
		}
	},
}

// printMonitorFrame 清屏并输出一帧统计
func printMonitorFrame(queueName string, stats, prev queue.Stats, elapsed time.Duration, now time.Time) {
	// 计算每秒操作率
	seconds := elapsed.Seconds()
	pushRate := float64(stats.Pushed-prev.Pushed) / seconds
	popRate := float64(stats.Popped-prev.Popped) / seconds

	fmt.Print("\033[H\033[2J") // 清屏，移动光标到左上角

	fmt.Printf("Time: %s\n\n", now.Format("15:04:05"))

	fmt.Printf("Queue: %s\n", queueName)
	fmt.Printf("Size: %d/%d (%.1f%% full)\n",
		stats.Size, stats.Capacity, stats.Utilization()*100)

	fmt.Printf("Operations: %d pushed, %d popped\n", stats.Pushed, stats.Popped)
	fmt.Printf("Rate: %.2f push/s, %.2f pop/s\n", pushRate, popRate)

	if stats.PushBlocks > 0 || stats.PopBlocks > 0 {
		fmt.Printf("Blocks: %d push, %d pop\n", stats.PushBlocks, stats.PopBlocks)
	}

	if stats.PushTimeouts > 0 || stats.PopTimeouts > 0 {
		fmt.Printf("Timeouts: %d push, %d pop\n", stats.PushTimeouts, stats.PopTimeouts)
	}

	if stats.Cancelled > 0 {
		fmt.Printf("Cancelled: %d\n", stats.Cancelled)
	}

	if stats.Rejected > 0 {
		fmt.Printf("Rejected: %d\n", stats.Rejected)
	}
}

func init() {
	rootCmd.AddCommand(monitorCmd)

	// 添加参数
	monitorCmd.Flags().DurationP("interval", "i", time.Second, "Refresh interval")
}
