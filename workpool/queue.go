package workpool

import (
	"go.uber.org/zap"

	"github.com/fyerfyer/boundq/queue"
)

// taskBuffer 是提交方和工作协程之间的有界缓冲区
type taskBuffer struct {
	*queue.BoundedQueue[*taskHandle]
}

// newTaskBuffer 创建任务缓冲区，缓冲区写满时记录一条调试日志
func newTaskBuffer(capacity int, logger *zap.Logger) *taskBuffer {
	q := queue.MustNew[*taskHandle](capacity,
		queue.WithLogger(logger),
		queue.WithEventListener(func(evt queue.Event) {
			if evt.Type == queue.EventFull {
				logger.Debug("task buffer full, submitters will block", zap.Int("capacity", evt.Size))
			}
		}),
	)
	return &taskBuffer{BoundedQueue: q}
}

// cancelPending 取出所有尚未执行的任务并将其取消，返回取消的数量
func (b *taskBuffer) cancelPending() int {
	pending := b.Drain()
	for _, h := range pending {
		h.cancelPending()
	}
	return len(pending)
}
