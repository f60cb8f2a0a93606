package model

import "time"

// SessionState 是角色管理状态机的当前位置。
type SessionState string

const (
	SessionUnselected     SessionState = "unselected"
	SessionProfilePending SessionState = "profile_pending"
	SessionActive         SessionState = "active"
)

// Session 是当前控制台身份。身份字段在 Active 之后不可变，切换角色即销毁。
type Session struct {
	State        SessionState      `json:"state"`
	Role         Role              `json:"role,omitempty"`
	DisplayName  string            `json:"display_name,omitempty"`
	PhoneNumber  string            `json:"phone_number,omitempty"`
	SessionID    string            `json:"session_id,omitempty"`
	Connectivity ConnectivityState `json:"connectivity"`
	StartedAt    time.Time         `json:"started_at"`
	// Epoch 每次进入 Active 或销毁会话时递增，用于丢弃过期响应。
	Epoch uint64 `json:"epoch"`
}

// Active reports whether the session accepts chat input.
func (s Session) Active() bool { return s.State == SessionActive }
