package queueservice

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/fyerfyer/boundq/queue"
)

// QueueData 表示队列的可序列化数据结构
type QueueData struct {
	ID          string        `json:"id,omitempty"`
	Name        string        `json:"name"`
	Kind        QueueKind     `json:"kind"`
	Capacity    int           `json:"capacity"`
	PushTimeout time.Duration `json:"pushTimeout,omitempty"`
	PopTimeout  time.Duration `json:"popTimeout,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
	SavedAt     time.Time     `json:"savedAt"`
	Items       []string      `json:"items,omitempty"`
}

func newQueueData(entry *queueEntry, items []string) QueueData {
	return QueueData{
		ID:          entry.id,
		Name:        entry.name,
		Kind:        entry.opts.Kind,
		Capacity:    entry.opts.Capacity,
		PushTimeout: entry.opts.PushTimeout,
		PopTimeout:  entry.opts.PopTimeout,
		CreatedAt:   entry.createdAt,
		SavedAt:     time.Now(),
		Items:       items,
	}
}

func (d QueueData) options() QueueOptions {
	return QueueOptions{
		Kind:        d.Kind,
		Capacity:    d.Capacity,
		PushTimeout: d.PushTimeout,
		PopTimeout:  d.PopTimeout,
	}
}

// FormatQueueInfo 返回队列信息的格式化字符串表示
func FormatQueueInfo(info QueueInfo) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Queue: %s\n", info.Name))
	sb.WriteString(fmt.Sprintf("ID: %s\n", info.ID))
	sb.WriteString(fmt.Sprintf("Kind: %s\n", info.Kind))
	sb.WriteString(fmt.Sprintf("Size: %d/%d\n", info.Stats.Size, info.Stats.Capacity))
	sb.WriteString(fmt.Sprintf("Created: %s\n", formatTimeAgo(info.CreatedAt)))
	sb.WriteString(fmt.Sprintf("Operations: %d pushed, %d popped\n",
		info.Stats.Pushed, info.Stats.Popped))

	return sb.String()
}

// FormatQueueStats 返回队列统计信息的格式化字符串表示
func FormatQueueStats(stats queue.Stats) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Size: %d\n", stats.Size))
	sb.WriteString(fmt.Sprintf("Capacity: %d (%.1f%% utilized)\n",
		stats.Capacity, stats.Utilization()*100))
	sb.WriteString(fmt.Sprintf("Created: %s\n", formatTimeAgo(stats.CreatedAt)))
	sb.WriteString(fmt.Sprintf("Operations: %d pushed, %d popped\n",
		stats.Pushed, stats.Popped))

	if stats.PushBlocks > 0 || stats.PopBlocks > 0 {
		sb.WriteString(fmt.Sprintf("Blocks: %d push, %d pop\n",
			stats.PushBlocks, stats.PopBlocks))
	}

	if stats.PushTimeouts > 0 || stats.PopTimeouts > 0 {
		sb.WriteString(fmt.Sprintf("Timeouts: %d push, %d pop\n",
			stats.PushTimeouts, stats.PopTimeouts))
	}

	if stats.Cancelled > 0 {
		sb.WriteString(fmt.Sprintf("Cancelled: %d\n", stats.Cancelled))
	}

	if stats.Rejected > 0 {
		sb.WriteString(fmt.Sprintf("Rejected: %d\n", stats.Rejected))
	}

	return sb.String()
}

// SerializeQueueData 将队列数据序列化为JSON
func SerializeQueueData(data QueueData) ([]byte, error) {
	return json.MarshalIndent(data, "", "  ")
}

// DeserializeQueueData 从JSON反序列化队列数据
func DeserializeQueueData(data []byte) (QueueData, error) {
	var queueData QueueData
	err := json.Unmarshal(data, &queueData)
	return queueData, err
}

// formatTimeAgo 将时间格式化为人类可读的"多久之前"字符串
func formatTimeAgo(t time.Time) string {
	duration := time.Since(t)

	seconds := int(duration.Seconds())
	if seconds < 60 {
		return fmt.Sprintf("%d seconds ago", seconds)
	}

	minutes := int(duration.Minutes())
	if minutes < 60 {
		return fmt.Sprintf("%d minutes ago", minutes)
	}

	hours := int(duration.Hours())
	if hours < 24 {
		return fmt.Sprintf("%d hours ago", hours)
	}

	days := int(duration.Hours() / 24)
	return fmt.Sprintf("%d days ago", days)
}

// ParseItems 解析以逗号分隔的元素字符串
func ParseItems(itemsStr string) []string {
	if itemsStr == "" {
		return nil
	}
	return strings.Split(itemsStr, ",")
}

// FormatItems 将元素切片格式化为以逗号分隔的字符串
func FormatItems(items []string) string {
	return strings.Join(items, ",")
}
