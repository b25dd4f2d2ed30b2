package transport

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"

	"github.com/fyerfyer/boundq/internal/queueservice"
	"github.com/fyerfyer/boundq/queue"
)

// ClientConfig 定义 gRPC 客户端连接的配置
type ClientConfig struct {
	// 连接目标地址
	Target string

	// 传输凭证，为空时使用明文连接
	TransportCredentials credentials.TransportCredentials

	// 保活选项
	KeepaliveTime    time.Duration
	KeepaliveTimeout time.Duration

	UserAgent string

	// 自定义 Dial 选项
	DialOptions []grpc.DialOption
}

// DefaultClientConfig 返回默认的客户端配置
func DefaultClientConfig(target string) *ClientConfig {
	return &ClientConfig{
		Target:           target,
		KeepaliveTime:    30 * time.Second,
		KeepaliveTimeout: 10 * time.Second,
		UserAgent:        "boundq-client",
	}
}

// Client 是远程队列服务的客户端，错误会被还原为本地哨兵错误
type Client struct {
	conn *grpc.ClientConn
}

// NewClient 创建客户端，连接在第一次调用时建立
func NewClient(config *ClientConfig) (*Client, error) {
	creds := config.TransportCredentials
	if creds == nil {
		creds = insecure.NewCredentials()
	}

	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(creds),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)),
	}
	if config.KeepaliveTime > 0 || config.KeepaliveTimeout > 0 {
		dialOpts = append(dialOpts, grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:    config.KeepaliveTime,
			Timeout: config.KeepaliveTimeout,
		}))
	}
	if config.UserAgent != "" {
		dialOpts = append(dialOpts, grpc.WithUserAgent(config.UserAgent))
	}
	dialOpts = append(dialOpts, config.DialOptions...)

	conn, err := grpc.NewClient(config.Target, dialOpts...)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn}, nil
}

// Close 关闭底层连接
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) invoke(ctx context.Context, method string, req, resp any) error {
	return fromStatus(c.conn.Invoke(ctx, "/"+ServiceName+"/"+method, req, resp))
}

// Create 在服务端创建队列
func (c *Client) Create(ctx context.Context, name string, opts queueservice.QueueOptions) (QueueSummary, error) {
	var resp QueueSummary
	err := c.invoke(ctx, "Create", &CreateRequest{
		Name:        name,
		Kind:        string(opts.Kind),
		Capacity:    opts.Capacity,
		PushTimeout: opts.PushTimeout,
		PopTimeout:  opts.PopTimeout,
	}, &resp)
	return resp, err
}

// Push 写入元素，队列已满时在服务端阻塞，直到 ctx 结束
func (c *Client) Push(ctx context.Context, queueName, item string) error {
	return c.invoke(ctx, "Push", &PushRequest{Queue: queueName, Item: item}, &Empty{})
}

// TryPush 写入元素，队列已满时返回 queue.ErrQueueFull
func (c *Client) TryPush(ctx context.Context, queueName, item string) error {
	return c.invoke(ctx, "TryPush", &PushRequest{Queue: queueName, Item: item}, &Empty{})
}

// Pop 取出元素，队列为空时在服务端阻塞，直到 ctx 结束
func (c *Client) Pop(ctx context.Context, queueName string) (string, error) {
	var resp PopResponse
	if err := c.invoke(ctx, "Pop", &QueueRequest{Queue: queueName}, &resp); err != nil {
		return "", err
	}
	return resp.Item, nil
}

// TryPop 取出元素，队列为空时返回 queue.ErrQueueEmpty
func (c *Client) TryPop(ctx context.Context, queueName string) (string, error) {
	var resp PopResponse
	if err := c.invoke(ctx, "TryPop", &QueueRequest{Queue: queueName}, &resp); err != nil {
		return "", err
	}
	return resp.Item, nil
}

// Stats 返回队列统计
func (c *Client) Stats(ctx context.Context, queueName string) (queue.Stats, error) {
	var resp StatsResponse
	if err := c.invoke(ctx, "Stats", &QueueRequest{Queue: queueName}, &resp); err != nil {
		return queue.Stats{}, err
	}
	return resp.Stats, nil
}

// List 列出全部队列
func (c *Client) List(ctx context.Context) ([]QueueSummary, error) {
	var resp ListResponse
	if err := c.invoke(ctx, "List", &Empty{}, &resp); err != nil {
		return nil, err
	}
	return resp.Queues, nil
}

// Delete 删除队列
func (c *Client) Delete(ctx context.Context, queueName string) error {
	return c.invoke(ctx, "Delete", &QueueRequest{Queue: queueName}, &Empty{})
}
