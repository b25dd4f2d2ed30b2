package queueservice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fyerfyer/boundq/queue"
)

var (
	// ErrQueueNotFound 表示请求的队列不存在
	ErrQueueNotFound = errors.New("queue not found")

	// ErrQueueExists 表示队列已存在
	ErrQueueExists = errors.New("queue already exists")

	// ErrInvalidKind 表示未知的队列类型
	ErrInvalidKind = errors.New("invalid queue kind")

	// ErrInvalidName 表示队列名称不合法
	ErrInvalidName = errors.New("invalid queue name")

	// ErrSnapshotTooLarge 表示快照中的元素超过了队列容量
	ErrSnapshotTooLarge = errors.New("snapshot exceeds queue capacity")
)

// QueueKind 定义队列类型
type QueueKind string

const (
	// KindBounded 多生产者多消费者的有界阻塞队列
	KindBounded QueueKind = "bounded"
	// KindSPSC 单生产者单消费者的无锁环形队列
	KindSPSC QueueKind = "spsc"
)

// ParseKind 解析队列类型，接受简写
func ParseKind(s string) (QueueKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "bounded", "b", "blocking":
		return KindBounded, nil
	case "spsc", "ring", "r":
		return KindSPSC, nil
	default:
		return "", fmt.Errorf("%w: %q, must be 'bounded' or 'spsc'", ErrInvalidKind, s)
	}
}

// QueueOptions 表示创建队列时的选项
type QueueOptions struct {
	// 队列类型
	Kind QueueKind
	// 队列容量，必须大于0
	Capacity int
	// 入队默认超时，0 表示不超时
	PushTimeout time.Duration
	// 出队默认超时，0 表示不超时
	PopTimeout time.Duration
}

// QueueInfo 包含队列的基本信息
type QueueInfo struct {
	// 队列唯一标识
	ID string
	// 队列名称
	Name string
	// 队列类型
	Kind QueueKind
	// 队列选项
	Options QueueOptions
	// 创建时间
	CreatedAt time.Time
	// 队列状态
	Stats queue.Stats
}

// Service 定义队列服务接口
type Service interface {
	// CreateQueue 创建一个新队列
	CreateQueue(name string, opts QueueOptions) (QueueInfo, error)

	// GetQueue 获取指定名称的队列
	GetQueue(name string) (queue.Queue[string], error)

	// ListQueues 按名称顺序列出所有队列
	ListQueues() []QueueInfo

	// Push 向指定队列添加元素，队列已满时阻塞
	Push(ctx context.Context, name string, item string) error

	// Pop 从指定队列取出元素，队列为空时阻塞
	Pop(ctx context.Context, name string) (string, error)

	// TryPush 向指定队列添加元素，不阻塞
	TryPush(name string, item string) error

	// TryPop 从指定队列取出元素，不阻塞
	TryPop(name string) (string, error)

	// QueueStats 获取队列统计信息
	QueueStats(name string) (queue.Stats, error)

	// DeleteQueue 关闭并删除队列
	DeleteQueue(name string) error

	// Export 复制队列的配置和当前元素，不改变队列
	Export(ctx context.Context, name string) (QueueData, error)

	// Import 按快照重建队列
	Import(data QueueData) error

	// CloseQueues 关闭所有队列但保留注册，剩余元素仍可导出
	CloseQueues() error

	// Close 关闭所有队列
	Close() error
}

// validateName 检查队列名称，名称会被用作文件名和 Redis 键
func validateName(name string) error {
	if name == "" || strings.ContainsAny(name, "/\\ \t\n") || name == "." || name == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
