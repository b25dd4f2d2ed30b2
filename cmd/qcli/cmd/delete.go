package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// deleteCmd 关闭并删除队列，阻塞在该队列上的调用会收到关闭错误
var deleteCmd = &cobra.Command{
	Use:     "delete [queue-name]",
	Aliases: []string{"rm"},
	Short:   "Close and delete a queue",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		queueName := args[0]

		if err := GetQueueService().DeleteQueue(queueName); err != nil {
			return fmt.Errorf("failed to delete queue: %w", err)
		}

		fmt.Printf("Queue '%s' deleted.\n", queueName)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}
