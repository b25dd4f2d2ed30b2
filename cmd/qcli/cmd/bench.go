package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyerfyer/boundq/internal/loadgen"
	"github.com/fyerfyer/boundq/internal/logging"
	"github.com/fyerfyer/boundq/internal/queueservice"
	"github.com/fyerfyer/boundq/queue"
	"github.com/fyerfyer/boundq/workpool"
)

// benchCmd 在新建的队列上运行负载并校验每个元素恰好被取出一次
var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Run a producer/consumer load against a fresh queue",
	Long: `Run producers and consumers against a fresh queue and verify that every item
is delivered exactly once, uncorrupted and in per-producer order.
An 'spsc' queue requires exactly one producer and one consumer.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		kindFlag, _ := cmd.Flags().GetString("kind")
		capacity, _ := cmd.Flags().GetInt("capacity")
		producers, _ := cmd.Flags().GetInt("producers")
		consumers, _ := cmd.Flags().GetInt("consumers")
		items, _ := cmd.Flags().GetInt("items")
		rateLimit, _ := cmd.Flags().GetFloat64("rate")
		burst, _ := cmd.Flags().GetInt("burst")
		timeout, _ := cmd.Flags().GetDuration("timeout")

		kind, err := queueservice.ParseKind(kindFlag)
		if err != nil {
			return err
		}

		logger := logging.L().Named("bench")

		var q queue.Queue[loadgen.Item]
		switch kind {
		case queueservice.KindSPSC:
			q, err = queue.NewSPSCRing[loadgen.Item](capacity, queue.WithLogger(logger))
		default:
			q, err = queue.New[loadgen.Item](capacity, queue.WithLogger(logger))
		}
		if err != nil {
			return err
		}

		ctx, cancel := commandContext(cmd, timeout)
		defer cancel()

		fmt.Printf("Running %s queue (capacity %d): %d producer(s) x %d items, %d consumer(s)...\n",
			kind, capacity, producers, items, consumers)

		report, err := loadgen.Run(ctx, q, loadgen.Config{
			Producers:        producers,
			Consumers:        consumers,
			ItemsPerProducer: items,
			Rate:             rateLimit,
			Burst:            burst,
			Logger:           logger,
		})
		printReport(report)
		if err != nil {
			return fmt.Errorf("load run failed: %w", err)
		}
		if !report.OK() {
			return fmt.Errorf("verification failed")
		}
		return nil
	},
}

func printReport(r loadgen.Report) {
	fmt.Printf("Pushed: %d/%d, popped: %d\n", r.Pushed, r.Expected, r.Popped)
	fmt.Printf("Duplicates: %d, missing: %d, corrupted: %d, order violations: %d\n",
		r.Duplicates, r.Missing, r.Corrupted, r.OrderViolations)
	fmt.Printf("Checksum: %016x (expected %016x)\n", r.Checksum, r.ExpectedChecksum)
	fmt.Printf("Elapsed: %v (%.0f items/s)\n", r.Elapsed.Round(time.Microsecond), r.Throughput())
	fmt.Print(queueservice.FormatQueueStats(r.Stats))
	if r.OK() {
		fmt.Println("Result: OK")
	} else {
		fmt.Println("Result: FAILED")
	}
}

// benchPoolCmd 向工作池提交任务，观察缓冲区反压
var benchPoolCmd = &cobra.Command{
	Use:   "pool",
	Short: "Submit tasks to a work pool fed by a bounded queue",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		workers, _ := cmd.Flags().GetInt("workers")
		capacity, _ := cmd.Flags().GetInt("capacity")
		tasks, _ := cmd.Flags().GetInt("tasks")
		work, _ := cmd.Flags().GetDuration("work")
		timeout, _ := cmd.Flags().GetDuration("timeout")

		if tasks <= 0 {
			return fmt.Errorf("tasks must be positive")
		}

		logger := logging.L().Named("pool")
		pool := workpool.New(
			workpool.WithWorkers(workers),
			workpool.WithQueueCapacity(capacity),
			workpool.WithLogger(logger),
		)
		if err := pool.Start(); err != nil {
			return err
		}

		ctx, cancel := commandContext(cmd, timeout)
		defer cancel()

		task := workpool.TaskFunc(func(ctx context.Context) (any, error) {
			if work <= 0 {
				return nil, nil
			}
			select {
			case <-time.After(work):
				return nil, nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		})

		begin := time.Now()
		var submitErr error
		submitted := 0
		for ; submitted < tasks; submitted++ {
			if _, err := pool.SubmitContext(ctx, task); err != nil {
				submitErr = err
				break
			}
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := pool.Shutdown(shutdownCtx); err != nil {
			logger.Warn("pool shutdown incomplete", logging.Error(err))
		}
		elapsed := time.Since(begin)

		metrics := pool.GetMetrics()
		stats := pool.QueueStats()
		fmt.Printf("Submitted: %d/%d in %v\n", submitted, tasks, elapsed.Round(time.Millisecond))
		fmt.Printf("Completed: %d, failed: %d, canceled: %d\n",
			metrics.CompletedTasks, metrics.FailedTasks, metrics.CanceledTasks)
		fmt.Printf("Avg wait: %v, avg process: %v\n", metrics.AvgWaitTime, metrics.AvgProcessTime)
		fmt.Printf("Submitters blocked %d time(s) on a full buffer\n", stats.PushBlocks)

		if submitErr != nil {
			return fmt.Errorf("submit stopped early: %w", submitErr)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(benchCmd)
	benchCmd.AddCommand(benchPoolCmd)

	benchCmd.Flags().StringP("kind", "k", "bounded", "Queue kind: 'bounded' or 'spsc'")
	benchCmd.Flags().IntP("capacity", "c", 64, "Queue capacity")
	benchCmd.Flags().IntP("producers", "p", 4, "Number of producers")
	benchCmd.Flags().IntP("consumers", "n", 4, "Number of consumers")
	benchCmd.Flags().Int("items", 10000, "Items per producer")
	benchCmd.Flags().Float64("rate", 0, "Items per second per producer (0 for unlimited)")
	benchCmd.Flags().Int("burst", 1, "Rate limiter burst")
	benchCmd.Flags().Duration("timeout", time.Minute, "Abort the run after this long")

	benchPoolCmd.Flags().IntP("workers", "w", 4, "Number of workers")
	benchPoolCmd.Flags().IntP("capacity", "c", 16, "Task buffer capacity")
	benchPoolCmd.Flags().Int("tasks", 1000, "Number of tasks to submit")
	benchPoolCmd.Flags().Duration("work", time.Millisecond, "Simulated duration of each task")
	benchPoolCmd.Flags().Duration("timeout", time.Minute, "Abort submission after this long")
}
