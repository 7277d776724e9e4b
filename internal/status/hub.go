// Package status 提供了文档处理状态变更的内存事件总线，
// 供 WebSocket 状态推送使用。
package status

import (
	"sync"
	"time"
)

// Event 是一次状态变更通知。
type Event struct {
	DocumentID string    `json:"documentId"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	ChunkCount int       `json:"chunkCount"`
	At         time.Time `json:"at"`
}

// Hub 按文档 ID 维护订阅者集合并向其广播状态事件。
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[chan Event]struct{}
}

// NewHub 创建一个新的 Hub。
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan Event]struct{})}
}

// Subscribe 订阅指定文档的状态事件，返回事件通道和取消函数。
// 取消函数可以重复调用，通道由 Hub 负责关闭。
func (h *Hub) Subscribe(documentID string) (<-chan Event, func()) {
	ch := make(chan Event, 8)

	h.mu.Lock()
	if h.subs[documentID] == nil {
		h.subs[documentID] = make(map[chan Event]struct{})
	}
	h.subs[documentID][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			if set, ok := h.subs[documentID]; ok {
				delete(set, ch)
				if len(set) == 0 {
					delete(h.subs, documentID)
				}
			}
			h.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Publish 向指定文档的所有订阅者广播事件。
// 订阅者通道已满时丢弃该订阅者的本次事件，广播永不阻塞发布方。
func (h *Hub) Publish(evt Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[evt.DocumentID] {
		select {
		case ch <- evt:
		default:
		}
	}
}
