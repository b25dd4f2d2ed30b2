package queue

// EventType 表示队列事件的类型
type EventType int

const (
	// EventPush 元素入队事件
	EventPush EventType = iota

	// EventPop 元素出队事件
	EventPop

	// EventFull 队列满事件
	EventFull

	// EventEmpty 队列空事件
	EventEmpty

	// EventClose 队列关闭事件
	EventClose

	// EventError 操作错误事件
	EventError
)

// String 返回事件类型的字符串表示
func (t EventType) String() string {
	switch t {
	case EventPush:
		return "push"
	case EventPop:
		return "pop"
	case EventFull:
		return "full"
	case EventEmpty:
		return "empty"
	case EventClose:
		return "close"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event 表示队列中发生的事件
type Event struct {
	// 事件类型
	Type EventType

	// 事件发生时队列中的元素数量
	Size int

	// 与事件相关联的元素（如果有）
	Item any

	// 与事件相关联的错误（如果有）
	Err error
}

// EventListener 是接收队列事件的函数接口
// 监听器在锁外被调用，可以安全地读取队列状态
type EventListener func(Event)

// EventEmitter 提供事件通知功能
// 监听器只在构造时注册，之后只读，因此无需加锁
type EventEmitter struct {
	listeners []EventListener
}

// NewEventEmitter 创建一个新的事件发射器
func NewEventEmitter(listeners []EventListener) *EventEmitter {
	copied := make([]EventListener, len(listeners))
	copy(copied, listeners)
	return &EventEmitter{
		listeners: copied,
	}
}

// Emit 发送事件给所有监听器
func (e *EventEmitter) Emit(evt Event) {
	for _, listener := range e.listeners {
		listener(evt)
	}
}

// Enabled 返回是否存在监听器
func (e *EventEmitter) Enabled() bool {
	return len(e.listeners) > 0
}
