package queue

import (
	"context"
	"errors"
	"runtime"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// SPSCRing 是单生产者单消费者的无锁环形队列
//
// 警告：只允许一个 goroutine 调用 Push/TryPush，一个 goroutine 调用
// Pop/TryPop/Drain/Snapshot。运行时检测到并发调用时会 panic。
//
// 写游标只由生产者访问，读游标只由消费者访问，两者之间仅通过一个原子
// 计数器 size 同步：生产者先写槽位再增加 size，消费者先读取 size 再读槽位。
// Close 应由生产者在最后一次入队之后调用。
type SPSCRing[T any] struct {
	buf      []T
	capacity uint64

	// 生产者独占
	writePos uint64

	_pad0 [56]byte //nolint:unused

	// 消费者独占
	readPos uint64

	_pad1 [56]byte //nolint:unused

	// 已占用槽位数，两端共享
	size atomic.Uint64

	_pad2 [56]byte //nolint:unused

	// 并发误用检测
	pushActive atomic.Uint32
	popActive  atomic.Uint32

	closed atomic.Bool

	opts      *Options
	events    *EventEmitter
	logger    *zap.Logger
	createdAt time.Time
	counters  counters
}

var _ Queue[int] = (*SPSCRing[int])(nil)

// NewSPSCRing 创建一个容量为 capacity 的单生产者单消费者队列
func NewSPSCRing[T any](capacity int, options ...Option) (*SPSCRing[T], error) {
	if err := validateCapacity(capacity); err != nil {
		return nil, err
	}

	opts := buildOptions(options)

	return &SPSCRing[T]{
		buf:       make([]T, capacity),
		capacity:  uint64(capacity),
		opts:      opts,
		events:    NewEventEmitter(opts.EventListeners),
		logger:    opts.Logger,
		createdAt: time.Now(),
	}, nil
}

// TryPush 尝试写入一个元素，队列满时返回 ErrQueueFull
//
// SPSC 约束：只能由唯一的生产者调用
func (r *SPSCRing[T]) TryPush(item T) error {
	ok, err := r.push(item)
	if err != nil {
		r.counters.rejected.Add(1)
		return r.fail(err)
	}
	if !ok {
		r.counters.rejected.Add(1)
		return r.fail(ErrQueueFull)
	}
	return nil
}

// Push 写入一个元素，队列满时让出处理器并退避等待
//
// SPSC 约束：只能由唯一的生产者调用
func (r *SPSCRing[T]) Push(ctx context.Context, item T) error {
	ctx, cancel := withTimeout(ctx, r.opts.PushTimeout)
	defer cancel()

	var bo backoff
	for {
		if err := ctx.Err(); err != nil {
			return r.fail(r.waitFailure(err, &r.counters.pushTimeouts))
		}

		ok, err := r.push(item)
		if err != nil {
			r.counters.rejected.Add(1)
			return r.fail(err)
		}
		if ok {
			return nil
		}

		if bo.attempts == 0 {
			r.counters.pushBlocks.Add(1)
		}
		if err := bo.wait(ctx); err != nil {
			return r.fail(r.waitFailure(err, &r.counters.pushTimeouts))
		}
	}
}

// TryPop 尝试读取一个元素，队列空时返回 ErrQueueEmpty
//
// SPSC 约束：只能由唯一的消费者调用
func (r *SPSCRing[T]) TryPop() (T, error) {
	item, err := r.tryPop()
	if err != nil {
		return item, r.fail(err)
	}
	return item, nil
}

func (r *SPSCRing[T]) tryPop() (T, error) {
	item, ok := r.pop()
	if ok {
		return item, nil
	}

	var zero T
	if r.closed.Load() {
		// 关闭前提交的元素在读取 closed 之后一定可见
		if item, ok := r.pop(); ok {
			return item, nil
		}
		return zero, ErrQueueClosed
	}
	return zero, ErrQueueEmpty
}

// Pop 读取一个元素，队列空时让出处理器并退避等待
//
// SPSC 约束：只能由唯一的消费者调用
func (r *SPSCRing[T]) Pop(ctx context.Context) (T, error) {
	var zero T

	ctx, cancel := withTimeout(ctx, r.opts.PopTimeout)
	defer cancel()

	var bo backoff
	for {
		if err := ctx.Err(); err != nil {
			return zero, r.fail(r.waitFailure(err, &r.counters.popTimeouts))
		}

		item, err := r.tryPop()
		if err == nil {
			return item, nil
		}
		if errors.Is(err, ErrQueueClosed) {
			return zero, r.fail(err)
		}

		if bo.attempts == 0 {
			r.counters.popBlocks.Add(1)
		}
		if err := bo.wait(ctx); err != nil {
			return zero, r.fail(r.waitFailure(err, &r.counters.popTimeouts))
		}
	}
}

// Snapshot 按出队顺序复制当前元素，队列内容和统计保持不变
//
// SPSC 约束：只能由唯一的消费者调用
func (r *SPSCRing[T]) Snapshot() []T {
	if !r.popActive.CompareAndSwap(0, 1) {
		panic("queue: concurrent Pop on SPSCRing - only one consumer allowed")
	}
	defer r.popActive.Store(0)

	n := r.size.Load()
	items := make([]T, 0, n)
	for i := uint64(0); i < n; i++ {
		items = append(items, r.buf[(r.readPos+i)%r.capacity])
	}
	return items
}

// Drain 取出当前所有元素
//
// SPSC 约束：只能由唯一的消费者调用
func (r *SPSCRing[T]) Drain() []T {
	var items []T
	for {
		item, ok := r.pop()
		if !ok {
			return items
		}
		items = append(items, item)
	}
}

// Size 返回当前元素数量，并发时可能略有滞后
func (r *SPSCRing[T]) Size() int {
	return int(r.size.Load())
}

// Capacity 返回队列容量
func (r *SPSCRing[T]) Capacity() int {
	return int(r.capacity)
}

// IsEmpty 检查队列是否为空
func (r *SPSCRing[T]) IsEmpty() bool {
	return r.size.Load() == 0
}

// IsFull 检查队列是否已满
func (r *SPSCRing[T]) IsFull() bool {
	return r.size.Load() >= r.capacity
}

// Close 关闭队列，之后的入队返回 ErrQueueClosed
func (r *SPSCRing[T]) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}

	size := r.Size()
	r.logger.Debug("spsc ring closed", zap.Int("size", size))
	r.events.Emit(Event{Type: EventClose, Size: size})
	return nil
}

// IsClosed 检查队列是否已关闭
func (r *SPSCRing[T]) IsClosed() bool {
	return r.closed.Load()
}

// Stats 返回队列的统计信息
func (r *SPSCRing[T]) Stats() Stats {
	return r.counters.snapshot(r.createdAt, int(r.capacity), r.Size())
}

// push 是生产者侧的单次尝试，返回 false 表示队列已满
func (r *SPSCRing[T]) push(item T) (bool, error) {
	if !r.pushActive.CompareAndSwap(0, 1) {
		panic("queue: concurrent Push on SPSCRing - only one producer allowed")
	}
	defer r.pushActive.Store(0)

	if r.closed.Load() {
		return false, ErrQueueClosed
	}

	if r.size.Load() == r.capacity {
		return false, nil
	}

	if r.opts.Validator != nil {
		if err := r.opts.Validator(item); err != nil {
			return false, rejectedError(err)
		}
	}

	r.buf[r.writePos] = item
	r.writePos = (r.writePos + 1) % r.capacity

	// 发布槽位
	size := r.size.Add(1)

	r.counters.pushed.Add(1)
	if r.events.Enabled() {
		r.events.Emit(Event{Type: EventPush, Item: item, Size: int(size)})
		if size == r.capacity {
			r.events.Emit(Event{Type: EventFull, Size: int(size)})
		}
	}

	return true, nil
}

// pop 是消费者侧的单次尝试，返回 false 表示队列为空
func (r *SPSCRing[T]) pop() (T, bool) {
	if !r.popActive.CompareAndSwap(0, 1) {
		panic("queue: concurrent Pop on SPSCRing - only one consumer allowed")
	}
	defer r.popActive.Store(0)

	var zero T
	if r.size.Load() == 0 {
		return zero, false
	}

	item := r.buf[r.readPos]
	r.buf[r.readPos] = zero
	r.readPos = (r.readPos + 1) % r.capacity

	// 归还槽位
	size := r.size.Add(^uint64(0))

	r.counters.popped.Add(1)
	if r.events.Enabled() {
		r.events.Emit(Event{Type: EventPop, Item: item, Size: int(size)})
		if size == 0 {
			r.events.Emit(Event{Type: EventEmpty, Size: 0})
		}
	}

	return item, true
}

func (r *SPSCRing[T]) waitFailure(err error, timeouts *atomic.Uint64) error {
	err = waitError(err)
	if isTimeout(err) {
		timeouts.Add(1)
	} else {
		r.counters.cancelled.Add(1)
	}
	return err
}

func (r *SPSCRing[T]) fail(err error) error {
	if r.events.Enabled() {
		r.events.Emit(Event{Type: EventError, Err: err})
	}
	return err
}

const (
	// 先让出处理器的次数，之后开始睡眠退避
	backoffYields = 16
	backoffMin    = 10 * time.Microsecond
	backoffMax    = time.Millisecond
)

// backoff 在队列满或空时提供递增的等待，避免忙等
type backoff struct {
	attempts int
}

func (b *backoff) wait(ctx context.Context) error {
	b.attempts++
	if b.attempts <= backoffYields {
		runtime.Gosched()
		return ctx.Err()
	}

	d := backoffMax
	if shift := b.attempts - backoffYields; shift < 7 {
		d = min(backoffMin<<shift, backoffMax)
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
