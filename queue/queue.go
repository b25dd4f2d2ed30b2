// Package queue 提供容量固定、支持阻塞背压的并发FIFO队列
//
// BoundedQueue 适用于任意数量的生产者和消费者；
// SPSCRing 是只允许一个生产者和一个消费者的无锁环形缓冲区。
package queue

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Queue 定义有界队列的基本操作接口
// 泛型参数T代表队列中存储的元素类型
type Queue[T any] interface {
	// Push 将元素添加到队列尾部，队列已满时阻塞
	// 队列关闭、上下文取消或超时时返回错误
	Push(ctx context.Context, item T) error

	// Pop 从队列头部移除并返回元素，队列为空时阻塞
	// 队列关闭且已取空时返回ErrQueueClosed
	Pop(ctx context.Context) (T, error)

	// TryPush 尝试将元素添加到队列尾部，但不阻塞
	// 如果队列已满，将立即返回ErrQueueFull
	TryPush(item T) error

	// TryPop 尝试从队列头部获取元素，但不阻塞
	// 如果队列为空，将立即返回ErrQueueEmpty
	TryPop() (T, error)

	// Size 返回队列当前元素数量
	Size() int

	// Capacity 返回队列容量
	Capacity() int

	// IsEmpty 检查队列是否为空
	IsEmpty() bool

	// IsFull 检查队列是否已满
	IsFull() bool

	// Drain 非阻塞地取出当前所有元素
	Drain() []T

	// Snapshot 按出队顺序复制当前元素，不取出
	Snapshot() []T

	// Close 关闭队列，不再接受新元素，已有元素可继续出队
	Close() error

	// IsClosed 检查队列是否已关闭
	IsClosed() bool

	// Stats 返回队列的统计信息
	Stats() Stats
}

// validateCapacity 检查容量是否合法
func validateCapacity(capacity int) error {
	if capacity <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidCapacity, capacity)
	}
	return nil
}

// waitError 将上下文错误转换为队列错误，同时保留原始错误
func waitError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", ErrOperationTimeout, err)
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("%w: %w", ErrOperationCancelled, err)
	default:
		return err
	}
}

// withTimeout 在配置了默认超时时为上下文附加期限
func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if timeout > 0 {
		return context.WithTimeout(ctx, timeout)
	}
	return ctx, func() {}
}

// rejectedError 包装校验函数返回的错误
func rejectedError(err error) error {
	return fmt.Errorf("%w: %w", ErrItemRejected, err)
}

func isTimeout(err error) bool {
	return errors.Is(err, ErrOperationTimeout)
}
