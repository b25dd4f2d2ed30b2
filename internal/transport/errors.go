package transport

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/fyerfyer/boundq/internal/queueservice"
	"github.com/fyerfyer/boundq/queue"
)

// errorDomain 标识 ErrorInfo 详情的来源
const errorDomain = "boundq"

// errorMapping 关联哨兵错误、状态码和 ErrorInfo 原因
type errorMapping struct {
	err    error
	code   codes.Code
	reason string
}

var errorMappings = []errorMapping{
	{queueservice.ErrQueueNotFound, codes.NotFound, "QUEUE_NOT_FOUND"},
	{queueservice.ErrQueueExists, codes.AlreadyExists, "QUEUE_EXISTS"},
	{queueservice.ErrInvalidKind, codes.InvalidArgument, "INVALID_KIND"},
	{queueservice.ErrInvalidName, codes.InvalidArgument, "INVALID_NAME"},
	{queue.ErrInvalidCapacity, codes.InvalidArgument, "INVALID_CAPACITY"},
	{queue.ErrItemRejected, codes.InvalidArgument, "ITEM_REJECTED"},
	{queue.ErrQueueFull, codes.ResourceExhausted, "QUEUE_FULL"},
	{queue.ErrQueueEmpty, codes.Unavailable, "QUEUE_EMPTY"},
	{queue.ErrQueueClosed, codes.FailedPrecondition, "QUEUE_CLOSED"},
	{queue.ErrOperationTimeout, codes.DeadlineExceeded, "OPERATION_TIMEOUT"},
	{queue.ErrOperationCancelled, codes.Canceled, "OPERATION_CANCELLED"},
	{ErrRateLimited, codes.ResourceExhausted, "RATE_LIMITED"},
	{ErrTooManyWaiters, codes.ResourceExhausted, "TOO_MANY_WAITERS"},
}

// toStatus 将服务层错误转换为 gRPC 状态，并附带 ErrorInfo 以便客户端还原
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	for _, m := range errorMappings {
		if !errors.Is(err, m.err) {
			continue
		}
		st := status.New(m.code, err.Error())
		if detailed, derr := st.WithDetails(&errdetails.ErrorInfo{
			Reason: m.reason,
			Domain: errorDomain,
		}); derr == nil {
			st = detailed
		}
		return st.Err()
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}

// fromStatus 将 gRPC 状态还原为哨兵错误
// 没有 ErrorInfo 的超时和取消同样映射为队列的超时和取消错误
func fromStatus(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}

	for _, detail := range st.Details() {
		info, ok := detail.(*errdetails.ErrorInfo)
		if !ok || info.GetDomain() != errorDomain {
			continue
		}
		for _, m := range errorMappings {
			if m.reason == info.GetReason() {
				return fmt.Errorf("%w: %s", m.err, st.Message())
			}
		}
	}

	switch st.Code() {
	case codes.DeadlineExceeded:
		return fmt.Errorf("%w: %w", queue.ErrOperationTimeout, err)
	case codes.Canceled:
		return fmt.Errorf("%w: %w", queue.ErrOperationCancelled, err)
	}
	return err
}
