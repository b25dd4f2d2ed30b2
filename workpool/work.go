package workpool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// TaskStatus 表示任务的当前状态
type TaskStatus int

const (
	// TaskStatusPending 表示任务正在等待执行
	TaskStatusPending TaskStatus = iota
	// TaskStatusRunning 表示任务正在执行中
	TaskStatusRunning
	// TaskStatusCompleted 表示任务已成功完成
	TaskStatusCompleted
	// TaskStatusFailed 表示任务执行失败
	TaskStatusFailed
	// TaskStatusCanceled 表示任务被取消
	TaskStatusCanceled
)

// String 返回任务状态的字符串表示
func (s TaskStatus) String() string {
	switch s {
	case TaskStatusPending:
		return "Pending"
	case TaskStatusRunning:
		return "Running"
	case TaskStatusCompleted:
		return "Completed"
	case TaskStatusFailed:
		return "Failed"
	case TaskStatusCanceled:
		return "Canceled"
	default:
		return "Unknown"
	}
}

func (s TaskStatus) terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed || s == TaskStatusCanceled
}

// Task 是工作池中执行的任务接口
type Task interface {
	// Execute 执行任务并返回结果或错误
	Execute(ctx context.Context) (any, error)
}

// TaskFunc 是一个实现了Task接口的函数类型
type TaskFunc func(ctx context.Context) (any, error)

// Execute 实现Task接口
func (f TaskFunc) Execute(ctx context.Context) (any, error) {
	return f(ctx)
}

// TaskOption 是用于配置任务的函数选项
type TaskOption func(*taskConfig)

// taskConfig 包含任务的配置选项
type taskConfig struct {
	timeout time.Duration
}

// WithTimeout 设置任务的超时时间
func WithTimeout(timeout time.Duration) TaskOption {
	return func(tc *taskConfig) {
		tc.timeout = timeout
	}
}

// TaskHandle 表示已提交到工作池的任务，可用于检查状态和获取结果
type TaskHandle interface {
	// ID 返回任务的唯一标识符
	ID() string
	// Status 返回任务的当前状态
	Status() TaskStatus
	// Result 返回任务的结果，如果任务尚未完成则会阻塞
	Result() (any, error)
	// Cancel 取消任务
	Cancel() error
	// Wait 等待任务完成
	Wait(ctx context.Context) error
}

// taskHandle 实现了TaskHandle接口，代表一个已提交的任务
type taskHandle struct {
	id          string
	task        Task
	config      taskConfig
	status      TaskStatus
	result      any
	err         error
	done        chan struct{}
	ctx         context.Context
	cancel      context.CancelFunc
	submittedAt time.Time
	startTime   time.Time
	endTime     time.Time
	mu          sync.RWMutex
}

var _ TaskHandle = (*taskHandle)(nil)

// newTaskHandle 创建一个新的任务句柄
func newTaskHandle(ctx context.Context, id string, task Task, options ...TaskOption) *taskHandle {
	var config taskConfig
	for _, option := range options {
		option(&config)
	}

	var taskCtx context.Context
	var cancel context.CancelFunc
	if config.timeout > 0 {
		taskCtx, cancel = context.WithTimeout(ctx, config.timeout)
	} else {
		taskCtx, cancel = context.WithCancel(ctx)
	}

	return &taskHandle{
		id:          id,
		task:        task,
		config:      config,
		status:      TaskStatusPending,
		done:        make(chan struct{}),
		ctx:         taskCtx,
		cancel:      cancel,
		submittedAt: time.Now(),
	}
}

// ID 返回任务的唯一标识符
func (h *taskHandle) ID() string {
	return h.id
}

// Status 返回任务的当前状态
func (h *taskHandle) Status() TaskStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.status
}

// Result 返回任务的结果，如果任务尚未完成则会阻塞
func (h *taskHandle) Result() (any, error) {
	<-h.done
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.result, h.err
}

// Cancel 取消任务，等待中的任务不会再被执行
func (h *taskHandle) Cancel() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.status.terminal() {
		return fmt.Errorf("task already in terminal state: %s", h.status)
	}

	h.finishLocked(TaskStatusCanceled, nil, context.Canceled)
	return nil
}

// Wait 等待任务完成
func (h *taskHandle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// setRunning 将任务状态设置为运行中，任务已被取消时返回 false
func (h *taskHandle) setRunning() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.status != TaskStatusPending {
		return false
	}
	h.status = TaskStatusRunning
	h.startTime = time.Now()
	return true
}

// setCompleted 记录执行结果，任务已被取消时忽略
func (h *taskHandle) setCompleted(result any, err error) TaskStatus {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.status.terminal() {
		return h.status
	}

	// 检查是否是由于取消导致的错误
	switch {
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		h.finishLocked(TaskStatusCanceled, nil, err)
	case err != nil:
		h.finishLocked(TaskStatusFailed, nil, err)
	default:
		h.finishLocked(TaskStatusCompleted, result, nil)
	}
	return h.status
}

// cancelPending 取消一个从未执行的任务
func (h *taskHandle) cancelPending() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.status.terminal() {
		h.finishLocked(TaskStatusCanceled, nil, ErrPoolClosed)
	}
}

func (h *taskHandle) finishLocked(status TaskStatus, result any, err error) {
	h.status = status
	h.result = result
	h.err = err
	h.endTime = time.Now()
	h.cancel()
	close(h.done)
}

// waitTime 返回任务在缓冲区中等待的时间
func (h *taskHandle) waitTime() time.Duration {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.startTime.IsZero() {
		return 0
	}
	return h.startTime.Sub(h.submittedAt)
}

// executionTime 返回任务的执行时间
func (h *taskHandle) executionTime() time.Duration {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.startTime.IsZero() {
		return 0
	}

	if h.endTime.IsZero() {
		return time.Since(h.startTime)
	}

	return h.endTime.Sub(h.startTime)
}
