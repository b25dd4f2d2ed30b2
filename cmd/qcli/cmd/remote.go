package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyerfyer/boundq/internal/queueservice"
	"github.com/fyerfyer/boundq/internal/transport"
)

var remoteAddr string

// remoteCmd 对远程 qcli serve 实例执行队列操作
var remoteCmd = &cobra.Command{
	Use:   "remote",
	Short: "Operate on queues served by 'qcli serve'",
}

func dialRemote() (*transport.Client, error) {
	client, err := transport.NewClient(transport.DefaultClientConfig(remoteAddr))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", remoteAddr, err)
	}
	return client, nil
}

var remoteCreateCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Create a queue on the server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kindFlag, _ := cmd.Flags().GetString("kind")
		capacity, _ := cmd.Flags().GetInt("capacity")

		kind, err := queueservice.ParseKind(kindFlag)
		if err != nil {
			return err
		}

		client, err := dialRemote()
		if err != nil {
			return err
		}
		defer client.Close()

		ctx, cancel := commandContext(cmd, 10*time.Second)
		defer cancel()

		summary, err := client.Create(ctx, args[0], queueservice.QueueOptions{Kind: kind, Capacity: capacity})
		if err != nil {
			return fmt.Errorf("failed to create queue: %w", err)
		}
		fmt.Printf("Queue '%s' created on %s (id %s)\n", summary.Name, remoteAddr, summary.ID)
		return nil
	},
}

var remotePushCmd = &cobra.Command{
	Use:   "push [queue-name] [item]",
	Short: "Push an item to a remote queue",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		try, _ := cmd.Flags().GetBool("try")
		timeout, _ := cmd.Flags().GetDuration("timeout")

		client, err := dialRemote()
		if err != nil {
			return err
		}
		defer client.Close()

		ctx, cancel := commandContext(cmd, timeout)
		defer cancel()

		if try {
			err = client.TryPush(ctx, args[0], args[1])
		} else {
			err = client.Push(ctx, args[0], args[1])
		}
		if err != nil {
			return fmt.Errorf("failed to push item: %w", err)
		}

		fmt.Printf("Successfully pushed item to remote queue '%s'\n", args[0])
		return nil
	},
}

var remotePopCmd = &cobra.Command{
	Use:   "pop [queue-name]",
	Short: "Pop an item from a remote queue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		try, _ := cmd.Flags().GetBool("try")
		timeout, _ := cmd.Flags().GetDuration("timeout")

		client, err := dialRemote()
		if err != nil {
			return err
		}
		defer client.Close()

		ctx, cancel := commandContext(cmd, timeout)
		defer cancel()

		var item string
		if try {
			item, err = client.TryPop(ctx, args[0])
		} else {
			item, err = client.Pop(ctx, args[0])
		}
		if err != nil {
			return fmt.Errorf("failed to pop item: %w", err)
		}

		fmt.Println(item)
		return nil
	},
}

var remoteStatsCmd = &cobra.Command{
	Use:   "stats [queue-name]",
	Short: "Display statistics of a remote queue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := dialRemote()
		if err != nil {
			return err
		}
		defer client.Close()

		ctx, cancel := commandContext(cmd, 10*time.Second)
		defer cancel()

		stats, err := client.Stats(ctx, args[0])
		if err != nil {
			return fmt.Errorf("failed to get queue statistics: %w", err)
		}

		fmt.Printf("Statistics for remote queue '%s':\n\n", args[0])
		fmt.Print(queueservice.FormatQueueStats(stats))
		return nil
	},
}

var remoteListCmd = &cobra.Command{
	Use:   "list",
	Short: "List queues on the server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := dialRemote()
		if err != nil {
			return err
		}
		defer client.Close()

		ctx, cancel := commandContext(cmd, 10*time.Second)
		defer cancel()

		queues, err := client.List(ctx)
		if err != nil {
			return fmt.Errorf("failed to list queues: %w", err)
		}
		if len(queues) == 0 {
			fmt.Println("No queues available.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tKIND\tSIZE\tCAPACITY")
		for _, q := range queues {
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\n", q.Name, q.Kind, q.Stats.Size, q.Stats.Capacity)
		}
		return w.Flush()
	},
}

var remoteDeleteCmd = &cobra.Command{
	Use:   "delete [queue-name]",
	Short: "Close and delete a queue on the server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := dialRemote()
		if err != nil {
			return err
		}
		defer client.Close()

		ctx, cancel := commandContext(cmd, 10*time.Second)
		defer cancel()

		if err := client.Delete(ctx, args[0]); err != nil {
			return fmt.Errorf("failed to delete queue: %w", err)
		}
		fmt.Printf("Remote queue '%s' deleted.\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(remoteCmd)
	remoteCmd.PersistentFlags().StringVarP(&remoteAddr, "server", "s", "localhost:7070", "Address of the qcli server")

	remoteCmd.AddCommand(remoteCreateCmd, remotePushCmd, remotePopCmd, remoteStatsCmd, remoteListCmd, remoteDeleteCmd)

	remoteCreateCmd.Flags().StringP("kind", "k", "bounded", "Queue kind: 'bounded' or 'spsc'")
	remoteCreateCmd.Flags().IntP("capacity", "c", 16, "Queue capacity")

	for _, c := range []*cobra.Command{remotePushCmd, remotePopCmd} {
		c.Flags().BoolP("try", "t", false, "Fail immediately instead of blocking")
		c.Flags().Duration("timeout", 30*time.Second, "Maximum time to wait")
	}
}
