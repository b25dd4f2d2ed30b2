package transport

import (
	"time"

	"github.com/fyerfyer/boundq/internal/queueservice"
	"github.com/fyerfyer/boundq/queue"
)

// CreateRequest 创建队列
type CreateRequest struct {
	Name        string        `json:"name"`
	Kind        string        `json:"kind"`
	Capacity    int           `json:"capacity"`
	PushTimeout time.Duration `json:"pushTimeout,omitempty"`
	PopTimeout  time.Duration `json:"popTimeout,omitempty"`
}

// QueueSummary 描述一个远程队列
type QueueSummary struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Kind      string      `json:"kind"`
	CreatedAt time.Time   `json:"createdAt"`
	Stats     queue.Stats `json:"stats"`
}

// PushRequest 向队列写入元素
type PushRequest struct {
	Queue string `json:"queue"`
	Item  string `json:"item"`
}

// QueueRequest 只携带队列名称
type QueueRequest struct {
	Queue string `json:"queue"`
}

// PopResponse 返回取出的元素
type PopResponse struct {
	Item string `json:"item"`
}

// StatsResponse 返回队列统计
type StatsResponse struct {
	Stats queue.Stats `json:"stats"`
}

// ListResponse 返回全部队列
type ListResponse struct {
	Queues []QueueSummary `json:"queues"`
}

// Empty 是没有内容的请求或响应
type Empty struct{}

func summaryFromInfo(info queueservice.QueueInfo) QueueSummary {
	return QueueSummary{
		ID:        info.ID,
		Name:      info.Name,
		Kind:      string(info.Kind),
		CreatedAt: info.CreatedAt,
		Stats:     info.Stats,
	}
}
