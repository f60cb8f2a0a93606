// Package event 是控制台内部的工作流事件总线，向 WebSocket 订阅者与可选的 Kafka 投递状态变化。
package event

import (
	"sync"
	"time"

	"hospital-console-go/pkg/log"
)

// 事件类型。
const (
	SessionActivated     = "session.activated"
	SessionEnded         = "session.ended"
	MessageAppended      = "message.appended"
	ChatTyping           = "chat.typing"
	QuickActionsHidden   = "quick_actions.hidden"
	UploadProgress       = "upload.progress"
	DocumentsRefreshed   = "documents.refreshed"
	AppointmentRequested = "appointment.requested"
	AppointmentActioned  = "appointment.actioned"
	NotificationsUpdated = "notifications.updated"
	ConnectivityChanged  = "connectivity.changed"
)

// Event 是一次状态变化。Payload 必须可以被 JSON 序列化。
type Event struct {
	Type      string      `json:"type"`
	SessionID string      `json:"session_id,omitempty"`
	Payload   interface{} `json:"payload,omitempty"`
	At        time.Time   `json:"at"`
}

// Publisher 是工作流发布事件所需的最小接口。
type Publisher interface {
	Publish(e Event)
}

// Bus 把事件扇出给所有订阅者。订阅者的缓冲区满时丢弃事件，发布方永不阻塞。
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]chan Event
	nextID int
	closed bool
}

// NewBus 创建一个空的事件总线。
func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Publish 非阻塞地投递事件。
func (b *Bus) Publish(e Event) {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for id, ch := range b.subs {
		select {
		case ch <- e:
		default:
			log.Debugf("[event] subscriber %d is slow, dropped %s", id, e.Type)
		}
	}
}

// Subscribe 注册一个订阅者，返回事件通道与取消函数。取消函数可重复调用。
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if sub, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub)
			}
		})
	}
}

// Close 关闭所有订阅通道，之后的 Publish 会被忽略。
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
