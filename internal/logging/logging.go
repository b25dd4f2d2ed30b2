// Package logging 封装 zap，为命令行、服务端和工作池提供统一的日志器
package logging

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type (
	Field  = zapcore.Field
	Option = zap.Option
)

// EnvVar 为 production 时使用 JSON 格式的生产配置
const EnvVar = "BOUNDQ_ENV"

type loggerCtxKey struct{}

var (
	mu     sync.RWMutex
	global *zap.Logger
)

func production() bool {
	return os.Getenv(EnvVar) == "production"
}

// New 按环境和级别构建日志器，level 为空时使用 info
func New(level string, opts ...Option) (*zap.Logger, error) {
	lvl := zapcore.InfoLevel
	if level != "" {
		parsed, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
		lvl = parsed
	}

	var cfg zap.Config
	if production() {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(time.RFC3339)

	return cfg.Build(opts...)
}

// SetGlobal 替换全局日志器
func SetGlobal(logger *zap.Logger) {
	if logger == nil {
		return
	}
	mu.Lock()
	global = logger
	mu.Unlock()
}

// L 返回全局日志器，未设置时返回 Nop
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if global == nil {
		return zap.NewNop()
	}
	return global
}

// WithContext 将日志器放入上下文
func WithContext(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey{}, logger)
}

// FromContext 取出上下文中的日志器，没有时返回全局日志器
func FromContext(ctx context.Context) *zap.Logger {
	if ctx == nil {
		return L()
	}
	if l, ok := ctx.Value(loggerCtxKey{}).(*zap.Logger); ok && l != nil {
		return l
	}
	return L()
}

// OrNop 在 logger 为 nil 时返回 Nop 日志器
func OrNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}
