package queue

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// BoundedQueue 是基于两个计数信号量和一把互斥锁的有界阻塞队列
//
// free 记录空闲槽位数（初始为容量），used 记录已占用槽位数（初始为0）。
// Push 先在锁外获取 free，再持锁写入槽位并释放 used；Pop 与之对称。
// 等待永远发生在锁外，生产者和消费者不会因为容量等待而互相死锁。
type BoundedQueue[T any] struct {
	// 队列选项
	opts *Options

	// 固定容量
	capacity int

	// 环形缓冲区，以下字段只在持有 mu 时修改
	data []T
	head int
	tail int
	size int
	mu   sync.Mutex

	// 空闲槽位信号量
	free *semaphore.Weighted

	// 已占用槽位信号量
	used *semaphore.Weighted

	// 队列是否已关闭，只在持有 mu 时写入
	closed atomic.Bool

	// closeCtx 在 Close 时被取消，用于唤醒所有等待者
	closeCtx    context.Context
	closeCancel context.CancelFunc

	// 事件发射器
	events *EventEmitter

	logger    *zap.Logger
	createdAt time.Time
	counters  counters
}

var _ Queue[int] = (*BoundedQueue[int])(nil)

// New 创建一个容量为 capacity 的有界队列
// capacity 必须大于0，否则返回 ErrInvalidCapacity
func New[T any](capacity int, options ...Option) (*BoundedQueue[T], error) {
	if err := validateCapacity(capacity); err != nil {
		return nil, err
	}

	opts := buildOptions(options)

	used := semaphore.NewWeighted(int64(capacity))
	// 预先占满，使已占用槽位从0开始
	if !used.TryAcquire(int64(capacity)) {
		panic("queue: fresh semaphore refused initial acquire")
	}

	closeCtx, closeCancel := context.WithCancel(context.Background())

	q := &BoundedQueue[T]{
		opts:        opts,
		capacity:    capacity,
		data:        make([]T, capacity),
		free:        semaphore.NewWeighted(int64(capacity)),
		used:        used,
		closeCtx:    closeCtx,
		closeCancel: closeCancel,
		events:      NewEventEmitter(opts.EventListeners),
		logger:      opts.Logger,
		createdAt:   time.Now(),
	}

	return q, nil
}

// MustNew 与 New 相同，但容量无效时直接 panic
func MustNew[T any](capacity int, options ...Option) *BoundedQueue[T] {
	q, err := New[T](capacity, options...)
	if err != nil {
		panic(err)
	}
	return q
}

// Push 将元素添加到队列尾部，如果队列已满则阻塞等待
func (q *BoundedQueue[T]) Push(ctx context.Context, item T) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		q.counters.cancelled.Add(1)
		return q.fail(waitError(err))
	}

	if q.closed.Load() {
		q.counters.rejected.Add(1)
		return q.fail(ErrQueueClosed)
	}

	if err := q.reserve(ctx, q.free, q.opts.PushTimeout, &q.counters.pushBlocks); err != nil {
		if errors.Is(err, ErrQueueClosed) {
			q.counters.rejected.Add(1)
		}
		q.recordWaitFailure(err, &q.counters.pushTimeouts)
		return q.fail(err)
	}

	return q.commitPush(item)
}

// TryPush 尝试将元素添加到队列，但不阻塞等待
func (q *BoundedQueue[T]) TryPush(item T) error {
	if q.closed.Load() {
		q.counters.rejected.Add(1)
		return q.fail(ErrQueueClosed)
	}

	if !q.free.TryAcquire(1) {
		q.counters.rejected.Add(1)
		return q.fail(ErrQueueFull)
	}

	return q.commitPush(item)
}

// Pop 从队列头部获取元素，如果队列为空则阻塞等待
// 队列关闭后仍会返回剩余元素，取空后返回 ErrQueueClosed
func (q *BoundedQueue[T]) Pop(ctx context.Context) (T, error) {
	var zero T

	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		q.counters.cancelled.Add(1)
		return zero, q.fail(waitError(err))
	}

	if err := q.reserve(ctx, q.used, q.opts.PopTimeout, &q.counters.popBlocks); err != nil {
		if !errors.Is(err, ErrQueueClosed) || !q.reserveRemaining() {
			q.recordWaitFailure(err, &q.counters.popTimeouts)
			return zero, q.fail(err)
		}
	}

	return q.commitPop(), nil
}

// TryPop 尝试从队列获取元素，但不阻塞等待
func (q *BoundedQueue[T]) TryPop() (T, error) {
	item, err := q.tryPop()
	if err != nil {
		return item, q.fail(err)
	}
	return item, nil
}

func (q *BoundedQueue[T]) tryPop() (T, error) {
	var zero T

	if !q.used.TryAcquire(1) {
		if q.closed.Load() {
			if !q.reserveRemaining() {
				return zero, ErrQueueClosed
			}
		} else {
			return zero, ErrQueueEmpty
		}
	}

	return q.commitPop(), nil
}

// Peek 查看队列头部元素但不移除
func (q *BoundedQueue[T]) Peek() (T, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if q.size == 0 {
		if q.closed.Load() {
			return zero, ErrQueueClosed
		}
		return zero, ErrQueueEmpty
	}

	return q.data[q.head], nil
}

// Snapshot 按出队顺序复制当前元素，队列内容和统计保持不变
func (q *BoundedQueue[T]) Snapshot() []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	items := make([]T, 0, q.size)
	for i := 0; i < q.size; i++ {
		items = append(items, q.data[(q.head+i)%q.capacity])
	}
	return items
}

// Drain 取出队列中当前所有元素，不阻塞
func (q *BoundedQueue[T]) Drain() []T {
	var items []T
	for {
		item, err := q.tryPop()
		if err != nil {
			return items
		}
		items = append(items, item)
	}
}

// Size 返回队列当前元素数量
func (q *BoundedQueue[T]) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

// Capacity 返回队列容量
func (q *BoundedQueue[T]) Capacity() int {
	return q.capacity
}

// IsEmpty 检查队列是否为空
func (q *BoundedQueue[T]) IsEmpty() bool {
	return q.Size() == 0
}

// IsFull 检查队列是否已满
func (q *BoundedQueue[T]) IsFull() bool {
	return q.Size() >= q.capacity
}

// Close 关闭队列并唤醒所有等待者
func (q *BoundedQueue[T]) Close() error {
	q.mu.Lock()
	if q.closed.Load() {
		q.mu.Unlock()
		return nil // 已经关闭
	}
	q.closed.Store(true)
	size := q.size
	q.mu.Unlock()

	q.closeCancel()

	q.logger.Debug("queue closed", zap.Int("size", size), zap.Int("capacity", q.capacity))
	q.events.Emit(Event{Type: EventClose, Size: size})

	return nil
}

// IsClosed 检查队列是否已关闭
func (q *BoundedQueue[T]) IsClosed() bool {
	return q.closed.Load()
}

// Stats 返回队列的统计信息
func (q *BoundedQueue[T]) Stats() Stats {
	return q.counters.snapshot(q.createdAt, q.capacity, q.Size())
}

// reserve 在锁外获取一个信号量许可
// 阻塞期间同时监听调用方上下文、默认超时和队列关闭；
// 等待被打断时信号量会归还已经授予的许可，因此不会泄漏预留
func (q *BoundedQueue[T]) reserve(ctx context.Context, sem *semaphore.Weighted, timeout time.Duration, blocks *atomic.Uint64) error {
	if sem.TryAcquire(1) {
		return nil
	}
	if q.closed.Load() {
		return ErrQueueClosed
	}

	blocks.Add(1)

	ctx, cancel := withTimeout(ctx, timeout)
	defer cancel()

	waitCtx, wake := context.WithCancel(ctx)
	defer wake()
	stop := context.AfterFunc(q.closeCtx, wake)
	defer stop()

	if err := sem.Acquire(waitCtx, 1); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return waitError(ctxErr)
		}
		return ErrQueueClosed
	}
	return nil
}

// reserveRemaining 在队列关闭后为剩余元素获取已占用许可
// 仍有元素时，其许可要么可立即获取，要么正被其他消费者取走
func (q *BoundedQueue[T]) reserveRemaining() bool {
	for {
		if q.used.TryAcquire(1) {
			return true
		}
		if q.Size() == 0 {
			return false
		}
		runtime.Gosched()
	}
}

// commitPush 写入已预留的槽位并记录统计与事件
func (q *BoundedQueue[T]) commitPush(item T) error {
	size, err := q.writeSlot(item)
	if err != nil {
		q.counters.rejected.Add(1)
		if errors.Is(err, ErrItemRejected) {
			q.logger.Debug("item rejected", zap.Error(err))
		}
		return q.fail(err)
	}

	q.counters.pushed.Add(1)

	if q.events.Enabled() {
		q.events.Emit(Event{Type: EventPush, Item: item, Size: size})
		if size == q.capacity {
			q.events.Emit(Event{Type: EventFull, Size: size})
		}
	}

	return nil
}

// writeSlot 持锁写入一个已预留的空闲槽位
// 未提交的退出路径（队列关闭、校验失败、panic）都会归还空闲槽位
func (q *BoundedQueue[T]) writeSlot(item T) (size int, err error) {
	committed := false
	defer func() {
		if !committed {
			q.free.Release(1)
		}
	}()

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed.Load() {
		return 0, ErrQueueClosed
	}

	if q.opts.Validator != nil {
		if err := q.opts.Validator(item); err != nil {
			return 0, rejectedError(err)
		}
	}

	q.data[q.tail] = item
	q.tail = (q.tail + 1) % q.capacity
	q.size++

	// 在锁内释放，关闭后观察到的已占用许可包含所有已提交元素
	q.used.Release(1)
	committed = true

	return q.size, nil
}

// commitPop 读取已预留的槽位并记录统计与事件
func (q *BoundedQueue[T]) commitPop() T {
	item, size := q.readSlot()

	q.counters.popped.Add(1)

	if q.events.Enabled() {
		q.events.Emit(Event{Type: EventPop, Item: item, Size: size})
		if size == 0 {
			q.events.Emit(Event{Type: EventEmpty, Size: 0})
		}
	}

	return item
}

// readSlot 持锁读取一个已预留的占用槽位
func (q *BoundedQueue[T]) readSlot() (item T, size int) {
	committed := false
	defer func() {
		if !committed {
			q.used.Release(1)
		}
	}()

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.size == 0 {
		panic("queue: occupied reservation without a stored item")
	}

	var zero T
	item = q.data[q.head]
	q.data[q.head] = zero // 清空引用，帮助GC
	q.head = (q.head + 1) % q.capacity
	q.size--

	q.free.Release(1)
	committed = true

	return item, q.size
}

func (q *BoundedQueue[T]) recordWaitFailure(err error, timeouts *atomic.Uint64) {
	switch {
	case errors.Is(err, ErrOperationTimeout):
		timeouts.Add(1)
	case errors.Is(err, ErrOperationCancelled):
		q.counters.cancelled.Add(1)
	}
}

func (q *BoundedQueue[T]) fail(err error) error {
	if q.events.Enabled() {
		q.events.Emit(Event{Type: EventError, Err: err})
	}
	return err
}
