package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyerfyer/boundq/internal/queueservice"
)

// popCmd 表示pop命令，用于从队列取出元素
var popCmd = &cobra.Command{
	Use:     "pop [queue-name]",
	Aliases: []string{"dequeue"},
	Short:   "Remove and display items from a queue",
	Long: `Remove and display one or more items from a specified queue.
By default pop blocks while the queue is empty; use --try to fail immediately
or --timeout to bound the wait.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		// 获取队列名称
		queueName := args[0]

		// 获取参数
		count, _ := cmd.Flags().GetInt("count")
		silent, _ := cmd.Flags().GetBool("silent")
		try, _ := cmd.Flags().GetBool("try")
		timeout, _ := cmd.Flags().GetDuration("timeout")

		// 验证参数
		if count < 0 {
			return fmt.Errorf("count must be a non-negative number")
		}

		// 如果count为0，则设置为1（默认行为）
		if count == 0 {
			count = 1
		}

		ctx, cancel := commandContext(cmd, timeout)
		defer cancel()

		pop := popFunc(GetQueueService(), queueName, try)

		// 批量出队
		var popped int
		for i := 0; i < count; i++ {
			item, err := pop(ctx)
			if err != nil {
				// 如果是第一个元素就失败，返回错误
				if i == 0 {
					return fmt.Errorf("failed to pop item: %w", err)
				}
				// 否则中断并报告部分成功
				fmt.Printf("Popped %d item(s) before encountering an error: %v\n", i, err)
				break
			}

			popped++
			if !silent {
				fmt.Printf("Item %d: %s\n", i+1, item)
			}
		}

		// 显示汇总信息
		if silent || popped > 1 {
			fmt.Printf("Successfully popped %d item(s) from queue '%s'\n", popped, queueName)
		}

		return nil
	},
}

// popFunc 按 --try 选择阻塞或非阻塞出队
func popFunc(service queueservice.Service, queueName string, try bool) func(context.Context) (string, error) {
	if try {
		return func(context.Context) (string, error) {
			return service.TryPop(queueName)
		}
	}
	return func(ctx context.Context) (string, error) {
		return service.Pop(ctx, queueName)
	}
}

func init() {
	rootCmd.AddCommand(popCmd)

	// 添加参数
	popCmd.Flags().IntP("count", "c", 1, "Number of items to pop")
	popCmd.Flags().BoolP("silent", "s", false, "Silent mode (don't print items)")
	popCmd.Flags().BoolP("try", "t", false, "Fail immediately when the queue is empty")
	popCmd.Flags().Duration("timeout", 0, "Maximum time to wait for an item (0 for the queue default)")
}
