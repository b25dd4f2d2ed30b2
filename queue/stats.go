package queue

import (
	"sync/atomic"
	"time"
)

// Stats 表示队列的统计信息
type Stats struct {
	// 创建时间
	CreatedAt time.Time

	// 队列容量
	Capacity int

	// 当前元素数量
	Size int

	// 入队操作次数
	Pushed uint64

	// 出队操作次数
	Popped uint64

	// 入队阻塞计数
	PushBlocks uint64

	// 出队阻塞计数
	PopBlocks uint64

	// 入队超时计数
	PushTimeouts uint64

	// 出队超时计数
	PopTimeouts uint64

	// 被取消的等待次数
	Cancelled uint64

	// 拒绝的入队操作计数（队列已满、已关闭或校验失败）
	Rejected uint64
}

// IsEmpty 返回队列是否为空
func (s *Stats) IsEmpty() bool {
	return s.Size == 0
}

// IsFull 返回队列是否已满
func (s *Stats) IsFull() bool {
	return s.Capacity > 0 && s.Size >= s.Capacity
}

// Utilization 返回队列利用率，范围从0到1
func (s *Stats) Utilization() float64 {
	if s.Capacity <= 0 {
		return 0
	}
	return float64(s.Size) / float64(s.Capacity)
}

// counters 保存可并发更新的计数器
type counters struct {
	pushed       atomic.Uint64
	popped       atomic.Uint64
	pushBlocks   atomic.Uint64
	popBlocks    atomic.Uint64
	pushTimeouts atomic.Uint64
	popTimeouts  atomic.Uint64
	cancelled    atomic.Uint64
	rejected     atomic.Uint64
}

func (c *counters) snapshot(createdAt time.Time, capacity, size int) Stats {
	return Stats{
		CreatedAt:    createdAt,
		Capacity:     capacity,
		Size:         size,
		Pushed:       c.pushed.Load(),
		Popped:       c.popped.Load(),
		PushBlocks:   c.pushBlocks.Load(),
		PopBlocks:    c.popBlocks.Load(),
		PushTimeouts: c.pushTimeouts.Load(),
		PopTimeouts:  c.popTimeouts.Load(),
		Cancelled:    c.cancelled.Load(),
		Rejected:     c.rejected.Load(),
	}
}
