package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyerfyer/boundq/internal/queueservice"
)

// pushCmd 表示push命令，用于向队列添加元素
var pushCmd = &cobra.Command{
	Use:     "push [queue-name]",
	Aliases: []string{"enqueue"},
	Short:   "Add items to a queue",
	Long: `Add one or more items to a specified queue.
You can add a single item or read multiple items from a file.
By default push blocks while the queue is full; use --try to fail immediately
or --timeout to bound the wait.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		// 获取队列名称
		queueName := args[0]

		// 获取参数
		item, _ := cmd.Flags().GetString("item")
		filePath, _ := cmd.Flags().GetString("file")
		try, _ := cmd.Flags().GetBool("try")
		timeout, _ := cmd.Flags().GetDuration("timeout")

		// 检查是否同时指定了item和file
		if item != "" && filePath != "" {
			return fmt.Errorf("cannot specify both --item and --file flags at the same time")
		}

		// 检查是否没有指定item和file
		if item == "" && filePath == "" {
			return fmt.Errorf("must specify either --item or --file flag")
		}

		ctx, cancel := commandContext(cmd, timeout)
		defer cancel()

		push := pushFunc(GetQueueService(), queueName, try)

		// 从文件批量入队
		if filePath != "" {
			return pushFromFile(ctx, push, queueName, filePath)
		}

		// 单个元素入队
		if err := push(ctx, item); err != nil {
			return fmt.Errorf("failed to push item: %w", err)
		}

		fmt.Printf("Successfully pushed item to queue '%s'\n", queueName)
		return nil
	},
}

// pushFunc 按 --try 选择阻塞或非阻塞入队
func pushFunc(service queueservice.Service, queueName string, try bool) func(context.Context, string) error {
	if try {
		return func(_ context.Context, item string) error {
			return service.TryPush(queueName, item)
		}
	}
	return func(ctx context.Context, item string) error {
		return service.Push(ctx, queueName, item)
	}
}

// pushFromFile 从文件中读取元素并入队
func pushFromFile(ctx context.Context, push func(context.Context, string) error, queueName, filePath string) error {
	// 打开文件
	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	// 读取文件内容
	scanner := bufio.NewScanner(file)
	var pushed, failed int

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue // 跳过空行
		}

		if err := push(ctx, line); err != nil {
			failed++
			fmt.Printf("Failed to push: %s - %v\n", line, err)
			if ctx.Err() != nil {
				break
			}
		} else {
			pushed++
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading file: %w", err)
	}

	fmt.Printf("Bulk push to queue '%s' completed: %d items pushed, %d failed\n",
		queueName, pushed, failed)
	return nil
}

func init() {
	rootCmd.AddCommand(pushCmd)

	// 添加参数
	pushCmd.Flags().StringP("item", "i", "", "Item to push")
	pushCmd.Flags().StringP("file", "f", "", "File containing items to push (one per line)")
	pushCmd.Flags().BoolP("try", "t", false, "Fail immediately when the queue is full")
	pushCmd.Flags().Duration("timeout", 0, "Maximum time to wait for space (0 for the queue default)")
}
