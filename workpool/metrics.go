package workpool

import (
	"sync"
	"sync/atomic"
	"time"
)

// Metrics 包含工作池的运行时指标
type Metrics struct {
	// 任务相关指标
	TotalTasks     uint64        // 总提交任务数
	CompletedTasks uint64        // 已完成任务数
	FailedTasks    uint64        // 失败任务数
	CanceledTasks  uint64        // 取消任务数
	RejectedTasks  uint64        // 因缓冲区已满或已关闭被拒绝的提交数
	QueuedTasks    uint64        // 当前排队任务数
	AvgWaitTime    time.Duration // 平均等待时间
	AvgProcessTime time.Duration // 平均处理时间

	// 工作池状态
	ActiveWorkers int32 // 当前活跃工作协程数
	IdleWorkers   int32 // 当前空闲工作协程数
	TotalWorkers  int32 // 当前总工作协程数

	// 内部统计数据
	started          uint64
	totalWaitTime    int64
	totalProcessTime int64

	mu sync.RWMutex
}

// newMetrics 创建一个新的指标收集器
func newMetrics() *Metrics {
	return &Metrics{}
}

// taskSubmitted 记录任务提交
func (m *Metrics) taskSubmitted() {
	atomic.AddUint64(&m.TotalTasks, 1)
	atomic.AddUint64(&m.QueuedTasks, 1)
}

// taskRejected 记录被拒绝的提交
func (m *Metrics) taskRejected() {
	atomic.AddUint64(&m.RejectedTasks, 1)
}

// taskDequeued 记录任务离开缓冲区
func (m *Metrics) taskDequeued() {
	atomic.AddUint64(&m.QueuedTasks, ^uint64(0)) // 减1
}

// taskStarted 记录任务开始执行
func (m *Metrics) taskStarted(waitTime time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.started++
	m.totalWaitTime += int64(waitTime)
	m.AvgWaitTime = time.Duration(m.totalWaitTime / int64(m.started))
}

// taskFinished 按最终状态记录任务结束
func (m *Metrics) taskFinished(status TaskStatus, processingTime time.Duration) {
	switch status {
	case TaskStatusCompleted:
		atomic.AddUint64(&m.CompletedTasks, 1)
	case TaskStatusFailed:
		atomic.AddUint64(&m.FailedTasks, 1)
	case TaskStatusCanceled:
		atomic.AddUint64(&m.CanceledTasks, 1)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalProcessTime += int64(processingTime)
	processed := atomic.LoadUint64(&m.CompletedTasks) + atomic.LoadUint64(&m.FailedTasks)
	if processed > 0 {
		m.AvgProcessTime = time.Duration(m.totalProcessTime / int64(processed))
	}
}

// taskCanceled 记录关闭时从缓冲区丢弃的任务
func (m *Metrics) taskCanceled(n int) {
	if n <= 0 {
		return
	}
	atomic.AddUint64(&m.CanceledTasks, uint64(n))
	atomic.AddUint64(&m.QueuedTasks, ^uint64(n-1))
}

// workerStatusChanged 更新工作协程状态指标
func (m *Metrics) workerStatusChanged(active, idle, total int32) {
	atomic.StoreInt32(&m.ActiveWorkers, active)
	atomic.StoreInt32(&m.IdleWorkers, idle)
	atomic.StoreInt32(&m.TotalWorkers, total)
}

// Snapshot 返回当前指标的快照
func (m *Metrics) Snapshot() Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return Metrics{
		TotalTasks:     atomic.LoadUint64(&m.TotalTasks),
		CompletedTasks: atomic.LoadUint64(&m.CompletedTasks),
		FailedTasks:    atomic.LoadUint64(&m.FailedTasks),
		CanceledTasks:  atomic.LoadUint64(&m.CanceledTasks),
		RejectedTasks:  atomic.LoadUint64(&m.RejectedTasks),
		QueuedTasks:    atomic.LoadUint64(&m.QueuedTasks),
		AvgWaitTime:    m.AvgWaitTime,
		AvgProcessTime: m.AvgProcessTime,
		ActiveWorkers:  atomic.LoadInt32(&m.ActiveWorkers),
		IdleWorkers:    atomic.LoadInt32(&m.IdleWorkers),
		TotalWorkers:   atomic.LoadInt32(&m.TotalWorkers),
	}
}

// WorkerUtilization 计算工作协程的利用率 (0.0-1.0)
func (m *Metrics) WorkerUtilization() float64 {
	total := atomic.LoadInt32(&m.TotalWorkers)
	if total == 0 {
		return 0.0
	}

	active := atomic.LoadInt32(&m.ActiveWorkers)
	return float64(active) / float64(total)
}

// TaskSuccessRate 计算任务成功率 (0.0-1.0)
func (m *Metrics) TaskSuccessRate() float64 {
	completed := atomic.LoadUint64(&m.CompletedTasks)
	failed := atomic.LoadUint64(&m.FailedTasks)

	total := completed + failed
	if total == 0 {
		return 1.0
	}

	return float64(completed) / float64(total)
}
