package queueservice

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/fyerfyer/boundq/queue"
)

// InMemoryService 实现了Service接口的内存存储版本
type InMemoryService struct {
	// 队列名称到队列实例的映射
	queues map[string]*queueEntry
	// 保护映射的互斥锁
	mu sync.RWMutex

	logger *zap.Logger
}

var _ Service = (*InMemoryService)(nil)

// queueEntry 包含队列及其元数据
type queueEntry struct {
	id   string
	name string
	// 队列实例
	q queue.Queue[string]
	// 队列选项
	opts QueueOptions
	// 创建时间
	createdAt time.Time

	// SPSC 队列的生产端和消费端各只允许一个调用者，
	// 等待时可以被上下文打断
	producer *semaphore.Weighted
	consumer *semaphore.Weighted
}

// ServiceOption 定义服务选项
type ServiceOption func(*InMemoryService)

// WithLogger 设置服务及其队列使用的日志器
func WithLogger(logger *zap.Logger) ServiceOption {
	return func(s *InMemoryService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewInMemoryService 创建一个新的内存队列服务
func NewInMemoryService(options ...ServiceOption) *InMemoryService {
	s := &InMemoryService{
		queues: make(map[string]*queueEntry),
		logger: zap.NewNop(),
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// CreateQueue 创建一个新队列
func (s *InMemoryService) CreateQueue(name string, opts QueueOptions) (QueueInfo, error) {
	if err := validateName(name); err != nil {
		return QueueInfo{}, err
	}

	entry, err := s.newEntry(name, opts)
	if err != nil {
		return QueueInfo{}, err
	}

	s.mu.Lock()
	if _, exists := s.queues[name]; exists {
		s.mu.Unlock()
		_ = entry.q.Close()
		return QueueInfo{}, fmt.Errorf("%w: %s", ErrQueueExists, name)
	}
	s.queues[name] = entry
	s.mu.Unlock()

	s.logger.Info("queue created",
		zap.String("queue", name),
		zap.String("id", entry.id),
		zap.String("kind", string(entry.opts.Kind)),
		zap.Int("capacity", opts.Capacity))

	return entry.info(), nil
}

// newEntry 按选项构造队列
func (s *InMemoryService) newEntry(name string, opts QueueOptions) (*queueEntry, error) {
	kind, err := ParseKind(string(opts.Kind))
	if err != nil {
		return nil, err
	}
	opts.Kind = kind

	queueOpts := []queue.Option{
		queue.WithLogger(s.logger.With(zap.String("queue", name))),
	}
	if opts.PushTimeout > 0 {
		queueOpts = append(queueOpts, queue.WithPushTimeout(opts.PushTimeout))
	}
	if opts.PopTimeout > 0 {
		queueOpts = append(queueOpts, queue.WithPopTimeout(opts.PopTimeout))
	}

	// 创建相应类型的队列
	var q queue.Queue[string]
	switch kind {
	case KindSPSC:
		q, err = queue.NewSPSCRing[string](opts.Capacity, queueOpts...)
	default:
		q, err = queue.New[string](opts.Capacity, queueOpts...)
	}
	if err != nil {
		return nil, err
	}

	return &queueEntry{
		id:        uuid.NewString(),
		name:      name,
		q:         q,
		opts:      opts,
		createdAt: time.Now(),
		producer:  semaphore.NewWeighted(1),
		consumer:  semaphore.NewWeighted(1),
	}, nil
}

// GetQueue 获取指定名称的队列
func (s *InMemoryService) GetQueue(name string) (queue.Queue[string], error) {
	entry, err := s.entry(name)
	if err != nil {
		return nil, err
	}
	return entry.q, nil
}

func (s *InMemoryService) entry(name string) (*queueEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, exists := s.queues[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrQueueNotFound, name)
	}
	return entry, nil
}

// ListQueues 按名称顺序列出所有队列
func (s *InMemoryService) ListQueues() []QueueInfo {
	s.mu.RLock()
	result := make([]QueueInfo, 0, len(s.queues))
	for _, entry := range s.queues {
		result = append(result, entry.info())
	}
	s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result
}

// Push 向指定队列添加元素，队列已满时阻塞
func (s *InMemoryService) Push(ctx context.Context, name string, item string) error {
	entry, err := s.entry(name)
	if err != nil {
		return err
	}

	ctx, cancel := withTimeout(ctx, entry.opts.PushTimeout)
	defer cancel()

	unlock, err := entry.lockProducer(ctx)
	if err != nil {
		return err
	}
	defer unlock()
	return entry.q.Push(ctx, item)
}

// Pop 从指定队列取出元素，队列为空时阻塞
func (s *InMemoryService) Pop(ctx context.Context, name string) (string, error) {
	entry, err := s.entry(name)
	if err != nil {
		return "", err
	}

	ctx, cancel := withTimeout(ctx, entry.opts.PopTimeout)
	defer cancel()

	unlock, err := entry.lockConsumer(ctx)
	if err != nil {
		return "", err
	}
	defer unlock()
	return entry.q.Pop(ctx)
}

// TryPush 向指定队列添加元素，不阻塞
func (s *InMemoryService) TryPush(name string, item string) error {
	entry, err := s.entry(name)
	if err != nil {
		return err
	}

	unlock, ok := entry.tryLock(entry.producer)
	if !ok {
		return fmt.Errorf("%w: producer side is busy", queue.ErrQueueFull)
	}
	defer unlock()
	return entry.q.TryPush(item)
}

// TryPop 从指定队列取出元素，不阻塞
func (s *InMemoryService) TryPop(name string) (string, error) {
	entry, err := s.entry(name)
	if err != nil {
		return "", err
	}

	unlock, ok := entry.tryLock(entry.consumer)
	if !ok {
		return "", fmt.Errorf("%w: consumer side is busy", queue.ErrQueueEmpty)
	}
	defer unlock()
	return entry.q.TryPop()
}

// QueueStats 获取队列统计信息
func (s *InMemoryService) QueueStats(name string) (queue.Stats, error) {
	entry, err := s.entry(name)
	if err != nil {
		return queue.Stats{}, err
	}
	return entry.q.Stats(), nil
}

// DeleteQueue 关闭并删除队列
func (s *InMemoryService) DeleteQueue(name string) error {
	s.mu.Lock()
	entry, exists := s.queues[name]
	if !exists {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrQueueNotFound, name)
	}
	delete(s.queues, name)
	s.mu.Unlock()

	// 关闭队列以唤醒所有等待者
	_ = entry.q.Close()

	s.logger.Info("queue deleted", zap.String("queue", name), zap.String("id", entry.id))
	return nil
}

// Export 复制队列的配置和当前元素，队列内容保持不变
// SPSC 队列需要占用消费端，ctx 结束时放弃等待
func (s *InMemoryService) Export(ctx context.Context, name string) (QueueData, error) {
	entry, err := s.entry(name)
	if err != nil {
		return QueueData{}, err
	}

	unlock, err := entry.lockConsumer(ctx)
	if err != nil {
		return QueueData{}, fmt.Errorf("export queue %s: %w", name, err)
	}
	defer unlock()

	return newQueueData(entry, entry.q.Snapshot()), nil
}

// Import 按快照重建队列，同名队列已存在时返回 ErrQueueExists
func (s *InMemoryService) Import(data QueueData) error {
	if err := validateName(data.Name); err != nil {
		return err
	}
	if len(data.Items) > data.Capacity {
		return fmt.Errorf("%w: %d items, capacity %d", ErrSnapshotTooLarge, len(data.Items), data.Capacity)
	}

	entry, err := s.newEntry(data.Name, data.options())
	if err != nil {
		return err
	}
	if data.ID != "" {
		entry.id = data.ID
	}
	if !data.CreatedAt.IsZero() {
		entry.createdAt = data.CreatedAt
	}

	for _, item := range data.Items {
		if err := entry.q.TryPush(item); err != nil {
			_ = entry.q.Close()
			return fmt.Errorf("import queue %s: %w", data.Name, err)
		}
	}

	s.mu.Lock()
	if _, exists := s.queues[data.Name]; exists {
		s.mu.Unlock()
		_ = entry.q.Close()
		return fmt.Errorf("%w: %s", ErrQueueExists, data.Name)
	}
	s.queues[data.Name] = entry
	s.mu.Unlock()

	s.logger.Info("queue imported",
		zap.String("queue", data.Name),
		zap.Int("items", len(data.Items)))
	return nil
}

// CloseQueues 关闭所有队列但保留注册
// 阻塞的调用被唤醒，之后的入队失败，剩余元素仍可导出
func (s *InMemoryService) CloseQueues() error {
	s.mu.RLock()
	entries := make([]*queueEntry, 0, len(s.queues))
	for _, entry := range s.queues {
		entries = append(entries, entry)
	}
	s.mu.RUnlock()

	for _, entry := range entries {
		_ = entry.q.Close()
	}
	return nil
}

// Close 关闭所有队列
func (s *InMemoryService) Close() error {
	s.mu.Lock()
	queues := s.queues
	s.queues = make(map[string]*queueEntry)
	s.mu.Unlock()

	for _, entry := range queues {
		_ = entry.q.Close()
	}
	return nil
}

func (e *queueEntry) info() QueueInfo {
	return QueueInfo{
		ID:        e.id,
		Name:      e.name,
		Kind:      e.opts.Kind,
		Options:   e.opts,
		CreatedAt: e.createdAt,
		Stats:     e.q.Stats(),
	}
}

// lockProducer 对 SPSC 队列串行化生产者，有界队列不需要
func (e *queueEntry) lockProducer(ctx context.Context) (func(), error) {
	return e.lock(ctx, e.producer)
}

// lockConsumer 对 SPSC 队列串行化消费者
func (e *queueEntry) lockConsumer(ctx context.Context) (func(), error) {
	return e.lock(ctx, e.consumer)
}

func (e *queueEntry) lock(ctx context.Context, side *semaphore.Weighted) (func(), error) {
	if e.opts.Kind != KindSPSC {
		return func() {}, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := side.Acquire(ctx, 1); err != nil {
		return nil, lockError(err)
	}
	return func() { side.Release(1) }, nil
}

// tryLock 不等待地占用 SPSC 队列的一端，另一个调用者正占用时返回 false
func (e *queueEntry) tryLock(side *semaphore.Weighted) (func(), bool) {
	if e.opts.Kind != KindSPSC {
		return func() {}, true
	}
	if !side.TryAcquire(1) {
		return nil, false
	}
	return func() { side.Release(1) }, true
}

// lockError 将等待占用时的上下文错误转换为队列错误
func lockError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", queue.ErrOperationTimeout, err)
	}
	return fmt.Errorf("%w: %w", queue.ErrOperationCancelled, err)
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
