// Package transport 通过 gRPC 暴露队列服务，阻塞的 Push/Pop 在服务端等待，
// 远程调用方因此同样受到背压并可通过上下文取消
package transport

import (
	"context"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/status"

	"github.com/fyerfyer/boundq/internal/logging"
	"github.com/fyerfyer/boundq/internal/queueservice"
)

// ServiceName 是 gRPC 服务的完整名称
const ServiceName = "boundq.v1.QueueService"

// QueueServer 定义远程队列服务的方法
type QueueServer interface {
	Create(ctx context.Context, req *CreateRequest) (*QueueSummary, error)
	Push(ctx context.Context, req *PushRequest) (*Empty, error)
	TryPush(ctx context.Context, req *PushRequest) (*Empty, error)
	Pop(ctx context.Context, req *QueueRequest) (*PopResponse, error)
	TryPop(ctx context.Context, req *QueueRequest) (*PopResponse, error)
	Stats(ctx context.Context, req *QueueRequest) (*StatsResponse, error)
	List(ctx context.Context, req *Empty) (*ListResponse, error)
	Delete(ctx context.Context, req *QueueRequest) (*Empty, error)
}

// serviceDesc 手写的服务描述，等价于 protoc 生成的 _QueueService_serviceDesc
var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*QueueServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("Create", QueueServer.Create),
		unaryMethod("Push", QueueServer.Push),
		unaryMethod("TryPush", QueueServer.TryPush),
		unaryMethod("Pop", QueueServer.Pop),
		unaryMethod("TryPop", QueueServer.TryPop),
		unaryMethod("Stats", QueueServer.Stats),
		unaryMethod("List", QueueServer.List),
		unaryMethod("Delete", QueueServer.Delete),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "boundq/v1/queue.proto",
}

// unaryMethod 为一个一元方法生成处理函数
func unaryMethod[Req, Resp any](name string, call func(QueueServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	fullMethod := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(QueueServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: fullMethod,
			}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(QueueServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// ServerConfig 定义服务端配置
type ServerConfig struct {
	// 保活选项
	KeepaliveTime    time.Duration
	KeepaliveTimeout time.Duration

	// 单条消息的最大字节数
	MaxRecvMsgSize int

	// 每秒允许的调用数，0 表示不限流
	RateLimit float64
	// 令牌桶容量，默认 1
	RateBurst int
	// 等待令牌的最长时间，0 表示没有令牌时立即拒绝
	RateWait time.Duration

	// 同时阻塞在 Push/Pop 上的调用上限，0 表示不限制
	MaxBlockingCalls int64

	Logger *zap.Logger

	// 自定义服务端选项
	ServerOptions []grpc.ServerOption
}

// DefaultServerConfig 返回默认的服务端配置
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		KeepaliveTime:    2 * time.Minute,
		KeepaliveTimeout: 20 * time.Second,
		MaxRecvMsgSize:   4 << 20,
	}
}

// Server 将 queueservice.Service 暴露为 gRPC 服务
type Server struct {
	svc    queueservice.Service
	logger *zap.Logger
	grpc   *grpc.Server
}

var _ QueueServer = (*Server)(nil)

// NewServer 创建服务端并注册队列服务
func NewServer(svc queueservice.Service, config *ServerConfig) *Server {
	if config == nil {
		config = DefaultServerConfig()
	}

	logger := logging.OrNop(config.Logger)

	s := &Server{
		svc:    svc,
		logger: logger,
	}

	interceptors := []grpc.UnaryServerInterceptor{s.logUnary}
	if limiter := newCallLimiter(config); limiter != nil {
		interceptors = append(interceptors, limiter.unary)
	}

	opts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(interceptors...),
	}
	if config.KeepaliveTime > 0 || config.KeepaliveTimeout > 0 {
		opts = append(opts, grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    config.KeepaliveTime,
			Timeout: config.KeepaliveTimeout,
		}))
	}
	if config.MaxRecvMsgSize > 0 {
		opts = append(opts, grpc.MaxRecvMsgSize(config.MaxRecvMsgSize))
	}
	opts = append(opts, config.ServerOptions...)

	s.grpc = grpc.NewServer(opts...)
	s.grpc.RegisterService(&serviceDesc, s)

	return s
}

// Serve 在监听器上提供服务，直到 Stop 被调用
func (s *Server) Serve(lis net.Listener) error {
	s.logger.Info("grpc server listening", zap.String("addr", lis.Addr().String()))
	return s.grpc.Serve(lis)
}

// GracefulStop 等待进行中的调用结束后停止
// 阻塞在队列上的调用需要先关闭队列才能结束
func (s *Server) GracefulStop() {
	s.grpc.GracefulStop()
}

// Stop 立即停止并取消所有进行中的调用
func (s *Server) Stop() {
	s.grpc.Stop()
}

// logUnary 记录每次调用的方法、状态码和耗时
func (s *Server) logUnary(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)

	code := status.Code(err)
	fields := []zap.Field{
		zap.String("method", info.FullMethod),
		zap.String("code", code.String()),
		zap.Duration("elapsed", time.Since(start)),
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	s.logger.Debug("rpc", fields...)

	return resp, err
}

func (s *Server) Create(_ context.Context, req *CreateRequest) (*QueueSummary, error) {
	info, err := s.svc.CreateQueue(req.Name, queueservice.QueueOptions{
		Kind:        queueservice.QueueKind(req.Kind),
		Capacity:    req.Capacity,
		PushTimeout: req.PushTimeout,
		PopTimeout:  req.PopTimeout,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	summary := summaryFromInfo(info)
	return &summary, nil
}

func (s *Server) Push(ctx context.Context, req *PushRequest) (*Empty, error) {
	if err := s.svc.Push(ctx, req.Queue, req.Item); err != nil {
		return nil, toStatus(err)
	}
	return &Empty{}, nil
}

func (s *Server) TryPush(_ context.Context, req *PushRequest) (*Empty, error) {
	if err := s.svc.TryPush(req.Queue, req.Item); err != nil {
		return nil, toStatus(err)
	}
	return &Empty{}, nil
}

func (s *Server) Pop(ctx context.Context, req *QueueRequest) (*PopResponse, error) {
	item, err := s.svc.Pop(ctx, req.Queue)
	if err != nil {
		return nil, toStatus(err)
	}
	return &PopResponse{Item: item}, nil
}

func (s *Server) TryPop(_ context.Context, req *QueueRequest) (*PopResponse, error) {
	item, err := s.svc.TryPop(req.Queue)
	if err != nil {
		return nil, toStatus(err)
	}
	return &PopResponse{Item: item}, nil
}

func (s *Server) Stats(_ context.Context, req *QueueRequest) (*StatsResponse, error) {
	stats, err := s.svc.QueueStats(req.Queue)
	if err != nil {
		return nil, toStatus(err)
	}
	return &StatsResponse{Stats: stats}, nil
}

func (s *Server) List(_ context.Context, _ *Empty) (*ListResponse, error) {
	infos := s.svc.ListQueues()
	resp := &ListResponse{Queues: make([]QueueSummary, 0, len(infos))}
	for _, info := range infos {
		resp.Queues = append(resp.Queues, summaryFromInfo(info))
	}
	return resp, nil
}

func (s *Server) Delete(_ context.Context, req *QueueRequest) (*Empty, error) {
	if err := s.svc.DeleteQueue(req.Queue); err != nil {
		return nil, toStatus(err)
	}
	return &Empty{}, nil
}
