package workpool

import (
	"time"

	"go.uber.org/zap"
)

// WorkPoolOption 是用于配置工作池的函数选项
type WorkPoolOption func(*WorkPoolConfig)

// WorkPoolConfig 包含工作池的所有配置选项
type WorkPoolConfig struct {
	// 工作协程数量
	workers int

	// 任务缓冲区容量，满时提交方被阻塞
	queueCapacity int

	// 任务设置
	defaultTaskTimeout time.Duration

	logger *zap.Logger
}

// DefaultConfig 返回工作池的默认配置
func DefaultConfig() WorkPoolConfig {
	return WorkPoolConfig{
		workers:            4,    // 默认工作协程数
		queueCapacity:      1000, // 任务缓冲区容量
		defaultTaskTimeout: 0,    // 默认无超时
		logger:             zap.NewNop(),
	}
}

// WithWorkers 设置工作协程数量
func WithWorkers(count int) WorkPoolOption {
	return func(config *WorkPoolConfig) {
		if count > 0 {
			config.workers = count
		}
	}
}

// WithQueueCapacity 设置任务缓冲区容量
func WithQueueCapacity(capacity int) WorkPoolOption {
	return func(config *WorkPoolConfig) {
		if capacity > 0 {
			config.queueCapacity = capacity
		}
	}
}

// WithDefaultTaskTimeout 设置任务的默认超时时间
func WithDefaultTaskTimeout(timeout time.Duration) WorkPoolOption {
	return func(config *WorkPoolConfig) {
		if timeout >= 0 {
			config.defaultTaskTimeout = timeout
		}
	}
}

// WithLogger 设置日志器
func WithLogger(logger *zap.Logger) WorkPoolOption {
	return func(config *WorkPoolConfig) {
		if logger != nil {
			config.logger = logger
		}
	}
}
