package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyerfyer/boundq/internal/queueservice"
)

// createCmd 表示create命令，用于创建新队列
var createCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Create a new queue",
	Long: `Create a new bounded queue with the given capacity.
A 'bounded' queue accepts any number of producers and consumers; an 'spsc' queue is a
lock-free ring for one producer and one consumer (the CLI serializes callers for you).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		// 获取队列名称
		name := args[0]

		// 获取参数
		kindFlag, _ := cmd.Flags().GetString("kind")
		capacity, _ := cmd.Flags().GetInt("capacity")
		pushTimeout, _ := cmd.Flags().GetDuration("push-timeout")
		popTimeout, _ := cmd.Flags().GetDuration("pop-timeout")

		kind, err := queueservice.ParseKind(kindFlag)
		if err != nil {
			return err
		}

		opts := queueservice.QueueOptions{
			Kind:        kind,
			Capacity:    capacity,
			PushTimeout: pushTimeout,
			PopTimeout:  popTimeout,
		}

		info, err := GetQueueService().CreateQueue(name, opts)
		if err != nil {
			return fmt.Errorf("failed to create queue: %w", err)
		}

		// 显示成功信息
		fmt.Printf("Queue '%s' created successfully.\n", name)
		fmt.Printf("ID: %s\n", info.ID)
		fmt.Printf("Kind: %s\n", info.Kind)
		fmt.Printf("Capacity: %d\n", info.Stats.Capacity)
		printTimeout("Push", pushTimeout)
		printTimeout("Pop", popTimeout)

		return nil
	},
}

func printTimeout(op string, timeout time.Duration) {
	if timeout > 0 {
		fmt.Printf("%s timeout: %v\n", op, timeout)
	}
}

func init() {
	rootCmd.AddCommand(createCmd)

	// 添加参数
	createCmd.Flags().StringP("kind", "k", "bounded", "Queue kind: 'bounded' or 'spsc'")
	createCmd.Flags().IntP("capacity", "c", 16, "Queue capacity (must be positive)")
	createCmd.Flags().Duration("push-timeout", 0, "Default timeout for blocking push (0 for no timeout)")
	createCmd.Flags().Duration("pop-timeout", 0, "Default timeout for blocking pop (0 for no timeout)")
}
