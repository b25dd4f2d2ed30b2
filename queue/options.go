package queue

import (
	"time"

	"go.uber.org/zap"
)

// Options 定义队列的配置选项
type Options struct {
	// 入队操作的默认超时时间，0表示永不超时
	PushTimeout time.Duration

	// 出队操作的默认超时时间，0表示永不超时
	PopTimeout time.Duration

	// 事件监听器列表
	EventListeners []EventListener

	// 日志记录器，默认不输出
	Logger *zap.Logger

	// 元素校验函数，nil表示不校验
	Validator func(item any) error
}

// Option 函数类型用于设置队列选项
type Option func(*Options)

// DefaultOptions 返回默认的队列选项
func DefaultOptions() *Options {
	return &Options{
		PushTimeout:    0,
		PopTimeout:     0,
		EventListeners: nil,
		Logger:         zap.NewNop(),
	}
}

// WithPushTimeout 设置入队超时
func WithPushTimeout(timeout time.Duration) Option {
	return func(o *Options) {
		if timeout < 0 {
			timeout = 0
		}
		o.PushTimeout = timeout
	}
}

// WithPopTimeout 设置出队超时
func WithPopTimeout(timeout time.Duration) Option {
	return func(o *Options) {
		if timeout < 0 {
			timeout = 0
		}
		o.PopTimeout = timeout
	}
}

// WithEventListener 添加事件监听器
func WithEventListener(listener EventListener) Option {
	return func(o *Options) {
		if listener != nil {
			o.EventListeners = append(o.EventListeners, listener)
		}
	}
}

// WithLogger 设置日志记录器
func WithLogger(logger *zap.Logger) Option {
	return func(o *Options) {
		if logger != nil {
			o.Logger = logger
		}
	}
}

// WithValidator 设置元素校验函数
// 校验函数在持锁写入槽位时执行，返回错误或panic都会撤销本次槽位预留
func WithValidator(fn func(item any) error) Option {
	return func(o *Options) {
		o.Validator = fn
	}
}

func buildOptions(options []Option) *Options {
	opts := DefaultOptions()
	for _, opt := range options {
		opt(opts)
	}
	return opts
}
