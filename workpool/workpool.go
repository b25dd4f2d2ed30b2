// Package workpool 提供固定数量工作协程的任务池，任务经由有界队列分发，
// 缓冲区写满时提交方被阻塞
package workpool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyerfyer/boundq/queue"
)

var (
	// ErrPoolFull 表示任务缓冲区已满
	ErrPoolFull = errors.New("work pool buffer is full")

	// ErrPoolClosed 表示工作池已关闭或正在关闭
	ErrPoolClosed = errors.New("work pool is closed")

	// ErrPoolNotRunning 表示工作池尚未启动
	ErrPoolNotRunning = errors.New("work pool is not running")
)

// WorkPoolStatus 工作池的状态
type WorkPoolStatus int

const (
	// StatusIdle 空闲状态
	StatusIdle WorkPoolStatus = iota
	// StatusRunning 运行状态
	StatusRunning
	// StatusShuttingDown 正在关闭
	StatusShuttingDown
	// StatusStopped 已停止
	StatusStopped
)

// String 返回工作池状态的字符串表示
func (s WorkPoolStatus) String() string {
	switch s {
	case StatusIdle:
		return "Idle"
	case StatusRunning:
		return "Running"
	case StatusShuttingDown:
		return "ShuttingDown"
	case StatusStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// WorkPool 管理一组工作协程，处理提交的任务
type WorkPool struct {
	// 工作池配置
	config WorkPoolConfig

	// 任务缓冲区
	tasks *taskBuffer

	// 状态控制
	status     WorkPoolStatus
	statusLock sync.RWMutex

	// 工作协程控制
	workerWg    sync.WaitGroup
	activeCount int32 // 当前活跃（执行任务中）的协程数
	idleCount   int32 // 当前空闲（等待任务）的协程数
	workerCount int32 // 总工作协程数

	// 指标收集
	metrics *Metrics

	// 工作池上下文，用于全局取消
	ctx    context.Context
	cancel context.CancelFunc

	logger *zap.Logger
}

// New 创建一个新的工作池
func New(options ...WorkPoolOption) *WorkPool {
	// 加载默认配置
	config := DefaultConfig()

	// 应用选项
	for _, option := range options {
		option(&config)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &WorkPool{
		config:  config,
		tasks:   newTaskBuffer(config.queueCapacity, config.logger),
		status:  StatusIdle,
		metrics: newMetrics(),
		ctx:     ctx,
		cancel:  cancel,
		logger:  config.logger,
	}
}

// Start 启动工作池，开始处理任务
func (wp *WorkPool) Start() error {
	wp.statusLock.Lock()
	defer wp.statusLock.Unlock()

	switch wp.status {
	case StatusRunning:
		return errors.New("work pool already running")
	case StatusShuttingDown, StatusStopped:
		return ErrPoolClosed
	}

	wp.status = StatusRunning
	for i := 0; i < wp.config.workers; i++ {
		wp.addWorker()
	}

	wp.logger.Info("work pool started",
		zap.Int("workers", wp.config.workers),
		zap.Int("capacity", wp.config.queueCapacity))

	return nil
}

// Shutdown 关闭任务缓冲区并等待工作协程处理完剩余任务
// ctx 结束时取消正在执行的任务，丢弃尚未执行的任务并返回 ctx.Err()
func (wp *WorkPool) Shutdown(ctx context.Context) error {
	wp.statusLock.Lock()
	if wp.status == StatusStopped || wp.status == StatusShuttingDown {
		wp.statusLock.Unlock()
		return nil
	}
	wasRunning := wp.status == StatusRunning
	wp.status = StatusShuttingDown
	wp.statusLock.Unlock()

	wp.logger.Info("work pool shutting down", zap.Int("queued", wp.tasks.Size()))

	// 关闭后工作协程取空缓冲区后退出，阻塞的提交方收到 ErrPoolClosed
	_ = wp.tasks.Close()

	if !wasRunning {
		wp.metrics.taskCanceled(wp.tasks.cancelPending())
	}

	doneCh := make(chan struct{})
	go func() {
		wp.workerWg.Wait()
		close(doneCh)
	}()

	var err error
	select {
	case <-doneCh:
	case <-ctx.Done():
		wp.cancel()
		dropped := wp.tasks.cancelPending()
		wp.metrics.taskCanceled(dropped)

		wp.logger.Warn("work pool shutdown deadline exceeded",
			zap.Int("dropped", dropped),
			zap.Error(ctx.Err()))
		err = ctx.Err()
	}

	wp.cancel()

	wp.statusLock.Lock()
	wp.status = StatusStopped
	wp.statusLock.Unlock()

	wp.logger.Info("work pool shutdown complete")
	return err
}

// Submit 提交一个任务，缓冲区已满时阻塞
func (wp *WorkPool) Submit(task Task, options ...TaskOption) (TaskHandle, error) {
	return wp.SubmitContext(context.Background(), task, options...)
}

// SubmitContext 提交一个任务，缓冲区已满时阻塞直到 ctx 结束
func (wp *WorkPool) SubmitContext(ctx context.Context, task Task, options ...TaskOption) (TaskHandle, error) {
	handle, err := wp.prepare(task, options)
	if err != nil {
		return nil, err
	}

	if err := wp.tasks.Push(ctx, handle); err != nil {
		return nil, wp.rejected(handle, err)
	}

	wp.submitted(handle)
	return handle, nil
}

// TrySubmit 提交一个任务，缓冲区已满时立即返回 ErrPoolFull
func (wp *WorkPool) TrySubmit(task Task, options ...TaskOption) (TaskHandle, error) {
	handle, err := wp.prepare(task, options)
	if err != nil {
		return nil, err
	}

	if err := wp.tasks.TryPush(handle); err != nil {
		return nil, wp.rejected(handle, err)
	}

	wp.submitted(handle)
	return handle, nil
}

// prepare 检查状态并创建任务句柄
func (wp *WorkPool) prepare(task Task, options []TaskOption) (*taskHandle, error) {
	wp.statusLock.RLock()
	status := wp.status
	wp.statusLock.RUnlock()

	switch status {
	case StatusRunning:
	case StatusIdle:
		return nil, ErrPoolNotRunning
	default:
		return nil, fmt.Errorf("%w: current status %s", ErrPoolClosed, status)
	}

	// 合并默认超时选项
	if wp.config.defaultTaskTimeout > 0 {
		options = append([]TaskOption{WithTimeout(wp.config.defaultTaskTimeout)}, options...)
	}

	return newTaskHandle(wp.ctx, uuid.NewString(), task, options...), nil
}

// submitted 在任务进入缓冲区后更新指标
// 工作协程可能已经取走任务，因此 QueuedTasks 只是近似值
func (wp *WorkPool) submitted(handle *taskHandle) {
	wp.metrics.taskSubmitted()
	wp.logger.Debug("task submitted", zap.String("task", handle.id))
}

// rejected 释放未能进入缓冲区的任务并转换错误
func (wp *WorkPool) rejected(handle *taskHandle, err error) error {
	handle.cancel()
	wp.metrics.taskRejected()

	switch {
	case errors.Is(err, queue.ErrQueueFull):
		return ErrPoolFull
	case errors.Is(err, queue.ErrQueueClosed):
		return ErrPoolClosed
	default:
		return err
	}
}

// Status 返回工作池的当前状态
func (wp *WorkPool) Status() WorkPoolStatus {
	wp.statusLock.RLock()
	defer wp.statusLock.RUnlock()
	return wp.status
}

// GetMetrics 返回工作池的指标快照
func (wp *WorkPool) GetMetrics() Metrics {
	return wp.metrics.Snapshot()
}

// QueueStats 返回任务缓冲区的统计信息
func (wp *WorkPool) QueueStats() queue.Stats {
	return wp.tasks.Stats()
}

// WorkerCount 返回当前工作协程数量
func (wp *WorkPool) WorkerCount() int {
	return int(atomic.LoadInt32(&wp.workerCount))
}

// QueueSize 返回当前缓冲区中等待的任务数量
func (wp *WorkPool) QueueSize() int {
	return wp.tasks.Size()
}

// TaskCount 返回工作池接收的任务总数
func (wp *WorkPool) TaskCount() uint64 {
	return atomic.LoadUint64(&wp.metrics.TotalTasks)
}

// addWorker 添加一个工作协程
func (wp *WorkPool) addWorker() {
	wp.workerWg.Add(1)
	atomic.AddInt32(&wp.workerCount, 1)
	atomic.AddInt32(&wp.idleCount, 1)
	wp.reportWorkers()

	go wp.runWorker()
}

func (wp *WorkPool) reportWorkers() {
	wp.metrics.workerStatusChanged(
		atomic.LoadInt32(&wp.activeCount),
		atomic.LoadInt32(&wp.idleCount),
		atomic.LoadInt32(&wp.workerCount),
	)
}

// runWorker 工作协程主循环，缓冲区关闭并取空后退出
func (wp *WorkPool) runWorker() {
	defer func() {
		atomic.AddInt32(&wp.idleCount, -1)
		atomic.AddInt32(&wp.workerCount, -1)
		wp.reportWorkers()
		wp.workerWg.Done()
	}()

	for {
		task, err := wp.tasks.Pop(wp.ctx)
		if err != nil {
			return
		}
		wp.metrics.taskDequeued()

		// 关闭超时后取出的任务不再执行
		if wp.ctx.Err() != nil {
			task.cancelPending()
			wp.metrics.taskFinished(TaskStatusCanceled, 0)
			continue
		}

		// 更新工作协程状态：从空闲变为活跃
		atomic.AddInt32(&wp.idleCount, -1)
		atomic.AddInt32(&wp.activeCount, 1)
		wp.reportWorkers()

		wp.execute(task)

		// 更新工作协程状态：从活跃变为空闲
		atomic.AddInt32(&wp.activeCount, -1)
		atomic.AddInt32(&wp.idleCount, 1)
		wp.reportWorkers()
	}
}

// execute 执行单个任务并记录结果
func (wp *WorkPool) execute(task *taskHandle) {
	// 在缓冲区中等待时已被取消
	if !task.setRunning() {
		wp.metrics.taskFinished(TaskStatusCanceled, 0)
		return
	}

	wp.metrics.taskStarted(task.waitTime())

	result, err := wp.run(task)
	status := task.setCompleted(result, err)
	elapsed := task.executionTime()

	wp.metrics.taskFinished(status, elapsed)

	if err != nil {
		wp.logger.Debug("task finished with error",
			zap.String("task", task.id),
			zap.Stringer("status", status),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		return
	}
	wp.logger.Debug("task completed",
		zap.String("task", task.id),
		zap.Duration("elapsed", elapsed))
}

// run 执行任务，任务 panic 时转换为错误
func (wp *WorkPool) run(task *taskHandle) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
			wp.logger.Error("task panicked", zap.String("task", task.id), zap.Any("panic", r))
		}
	}()
	return task.task.Execute(task.ctx)
}
