package transport

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
)

var (
	// ErrRateLimited 当调用超过服务端限流时返回
	ErrRateLimited = errors.New("request rate limit exceeded")

	// ErrTooManyWaiters 当同时阻塞在队列上的调用超过上限时返回
	ErrTooManyWaiters = errors.New("too many blocked calls")
)

// blockingMethods 是可能在服务端长时间阻塞的方法
var blockingMethods = map[string]bool{
	"/" + ServiceName + "/Push": true,
	"/" + ServiceName + "/Pop":  true,
}

// callLimiter 对调用做令牌桶限流，并限制同时阻塞的调用数
type callLimiter struct {
	tokens      *rate.Limiter
	maxWaitTime time.Duration
	blocking    *semaphore.Weighted
}

// newCallLimiter 按配置创建限流器，未配置任何限制时返回 nil
func newCallLimiter(config *ServerConfig) *callLimiter {
	if config.RateLimit <= 0 && config.MaxBlockingCalls <= 0 {
		return nil
	}

	l := &callLimiter{maxWaitTime: config.RateWait}
	if config.RateLimit > 0 {
		burst := config.RateBurst
		if burst <= 0 {
			burst = 1
		}
		l.tokens = rate.NewLimiter(rate.Limit(config.RateLimit), burst)
	}
	if config.MaxBlockingCalls > 0 {
		l.blocking = semaphore.NewWeighted(config.MaxBlockingCalls)
	}
	return l
}

// wait 等待令牌，最多等待 maxWaitTime
func (l *callLimiter) wait(ctx context.Context) error {
	if l.tokens == nil {
		return nil
	}
	if l.maxWaitTime <= 0 {
		if !l.tokens.Allow() {
			return ErrRateLimited
		}
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, l.maxWaitTime)
	defer cancel()
	if err := l.tokens.Wait(ctx); err != nil {
		return ErrRateLimited
	}
	return nil
}

func (l *callLimiter) unary(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if err := l.wait(ctx); err != nil {
		return nil, toStatus(err)
	}

	if l.blocking != nil && blockingMethods[info.FullMethod] {
		if !l.blocking.TryAcquire(1) {
			return nil, toStatus(ErrTooManyWaiters)
		}
		defer l.blocking.Release(1)
	}

	return handler(ctx, req)
}
