// Package loadgen 对队列施加多生产者多消费者负载，并校验每个元素恰好被取出一次
package loadgen

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/fyerfyer/boundq/internal/logging"
	"github.com/fyerfyer/boundq/queue"
)

var (
	// ErrInvalidConfig 表示负载配置不合法
	ErrInvalidConfig = errors.New("invalid load config")
)

// Config 定义负载形态
type Config struct {
	// 生产者数量
	Producers int
	// 消费者数量
	Consumers int
	// 每个生产者推送的元素数
	ItemsPerProducer int
	// 每个生产者每秒推送的元素数，0 表示不限速
	Rate float64
	// 限速器的突发容量，默认 1
	Burst int
	// 日志器，为空时取上下文中的日志器
	Logger *zap.Logger
}

// Validate 检查配置
func (c Config) Validate() error {
	switch {
	case c.Producers <= 0:
		return fmt.Errorf("%w: producers must be positive, got %d", ErrInvalidConfig, c.Producers)
	case c.Consumers <= 0:
		return fmt.Errorf("%w: consumers must be positive, got %d", ErrInvalidConfig, c.Consumers)
	case c.ItemsPerProducer < 0:
		return fmt.Errorf("%w: items per producer must not be negative, got %d", ErrInvalidConfig, c.ItemsPerProducer)
	case c.Rate < 0:
		return fmt.Errorf("%w: rate must not be negative, got %v", ErrInvalidConfig, c.Rate)
	}
	return nil
}

// Report 汇总一次负载运行的结果
type Report struct {
	Producers int
	Consumers int

	// 期望推送的元素总数
	Expected int
	Pushed   int
	Popped   int

	// 同一元素被取出多次的次数
	Duplicates int
	// 从未被取出的元素数
	Missing int
	// 标签校验失败或越界的元素数
	Corrupted int
	// 同一消费者看到同一生产者的序号倒退的次数
	OrderViolations int

	// 期望与实际取出元素的标签异或和
	ExpectedChecksum uint64
	Checksum         uint64

	Elapsed time.Duration
	Stats   queue.Stats
}

// OK 返回是否无丢失、无重复、无篡改且保序
func (r Report) OK() bool {
	return r.Popped == r.Expected &&
		r.Duplicates == 0 &&
		r.Missing == 0 &&
		r.Corrupted == 0 &&
		r.OrderViolations == 0 &&
		r.Checksum == r.ExpectedChecksum
}

// Throughput 返回每秒取出的元素数
func (r Report) Throughput() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return float64(r.Popped) / r.Elapsed.Seconds()
}

// Run 启动生产者和消费者，生产者全部结束后关闭队列，消费者取到 ErrQueueClosed 为止
// q 必须是新建的空队列，Run 结束时队列已关闭
func Run(ctx context.Context, q queue.Queue[Item], cfg Config) (Report, error) {
	if err := cfg.Validate(); err != nil {
		return Report{}, err
	}
	if _, ok := q.(*queue.SPSCRing[Item]); ok && (cfg.Producers > 1 || cfg.Consumers > 1) {
		return Report{}, fmt.Errorf("%w: spsc ring allows one producer and one consumer", ErrInvalidConfig)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.FromContext(ctx)
	}

	start := time.Now()

	pushed := make([]int, cfg.Producers)
	producers, pctx := errgroup.WithContext(ctx)
	for p := 0; p < cfg.Producers; p++ {
		producers.Go(func() error {
			var limiter *rate.Limiter
			if cfg.Rate > 0 {
				limiter = rate.NewLimiter(rate.Limit(cfg.Rate), max(cfg.Burst, 1))
			}
			for i := 0; i < cfg.ItemsPerProducer; i++ {
				if limiter != nil {
					if err := limiter.Wait(pctx); err != nil {
						return err
					}
				}
				if err := q.Push(pctx, NewItem(p, i)); err != nil {
					return fmt.Errorf("producer %d item %d: %w", p, i, err)
				}
				pushed[p]++
			}
			return nil
		})
	}

	received := make([][]Item, cfg.Consumers)
	var consumers errgroup.Group
	for c := 0; c < cfg.Consumers; c++ {
		consumers.Go(func() error {
			for {
				item, err := q.Pop(ctx)
				if errors.Is(err, queue.ErrQueueClosed) {
					return nil
				}
				if err != nil {
					return fmt.Errorf("consumer %d: %w", c, err)
				}
				received[c] = append(received[c], item)
			}
		})
	}

	produceErr := producers.Wait()
	_ = q.Close()
	consumeErr := consumers.Wait()

	report := verify(cfg, received)
	report.Elapsed = time.Since(start)
	report.Stats = q.Stats()
	for _, n := range pushed {
		report.Pushed += n
	}

	logger.Info("load run finished",
		logging.Int("producers", cfg.Producers),
		logging.Int("consumers", cfg.Consumers),
		logging.Int("pushed", report.Pushed),
		logging.Int("popped", report.Popped),
		logging.Any("ok", report.OK()),
		logging.Duration("elapsed", report.Elapsed))

	return report, errors.Join(produceErr, consumeErr)
}

// verify 检查取出的元素
func verify(cfg Config, received [][]Item) Report {
	report := Report{
		Producers: cfg.Producers,
		Consumers: cfg.Consumers,
		Expected:  cfg.Producers * cfg.ItemsPerProducer,
	}

	for p := 0; p < cfg.Producers; p++ {
		for i := 0; i < cfg.ItemsPerProducer; i++ {
			report.ExpectedChecksum ^= Tag(p, i)
		}
	}

	seen := make([][]bool, cfg.Producers)
	for p := range seen {
		seen[p] = make([]bool, cfg.ItemsPerProducer)
	}

	unique := 0
	for _, items := range received {
		last := make(map[int]int, cfg.Producers)
		for _, item := range items {
			report.Popped++
			report.Checksum ^= item.Tag

			if !item.Valid() ||
				item.Producer < 0 || item.Producer >= cfg.Producers ||
				item.Seq < 0 || item.Seq >= cfg.ItemsPerProducer {
				report.Corrupted++
				continue
			}

			if seen[item.Producer][item.Seq] {
				report.Duplicates++
			} else {
				seen[item.Producer][item.Seq] = true
				unique++
			}

			if prev, ok := last[item.Producer]; ok && item.Seq <= prev {
				report.OrderViolations++
			}
			last[item.Producer] = item.Seq
		}
	}

	report.Missing = report.Expected - unique
	return report
}
