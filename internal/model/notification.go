package model

// Notification 的 read 标志只会从 false 变为 true。
type Notification struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Type      string    `json:"type,omitempty"`
	Read      bool      `json:"read"`
	CreatedAt LocalTime `json:"created_at"`
}

// NotificationList 是通知中心的快照，Unread 总是由 Items 推导。
type NotificationList struct {
	Items  []Notification `json:"items"`
	Unread int            `json:"unread"`
}

// CountUnread 统计 read=false 的通知数。
func CountUnread(items []Notification) int {
	n := 0
	for _, it := range items {
		if !it.Read {
			n++
		}
	}
	return n
}

// NewNotificationList 构造快照并推导未读数。
func NewNotificationList(items []Notification) NotificationList {
	return NotificationList{Items: items, Unread: CountUnread(items)}
}
