package model

import "time"

// Speaker 标识消息作者。
type Speaker string

const (
	SpeakerUser      Speaker = "user"
	SpeakerAssistant Speaker = "assistant"
)

// Message 是会话转录中的一条消息，插入顺序即展示顺序。
type Message struct {
	Seq                  int       `json:"seq"`
	Speaker              Speaker   `json:"speaker"`
	Body                 string    `json:"body"`
	Timestamp            time.Time `json:"timestamp"`
	IsAppointmentRequest bool      `json:"is_appointment_request"`
	AppointmentID        string    `json:"appointment_id,omitempty"`
	IsError              bool      `json:"is_error,omitempty"`
}

// QuickAction 是一个预定义快捷短语；AdminWorkflow 非空时打开管理工作流而不是发送消息。
type QuickAction struct {
	ID            string `json:"id"`
	Label         string `json:"label"`
	Phrase        string `json:"phrase"`
	AdminWorkflow string `json:"admin_workflow,omitempty"`
}

// 管理快捷操作可以打开的工作流。
const (
	WorkflowStatus        = "status"
	WorkflowAppointments  = "appointments"
	WorkflowHistory       = "history"
	WorkflowNotifications = "notifications"
)

// ArchivedTranscript 是会话销毁时归档的转录快照。
type ArchivedTranscript struct {
	SessionID   string    `json:"session_id"`
	Role        Role      `json:"role"`
	DisplayName string    `json:"display_name"`
	StartedAt   time.Time `json:"started_at"`
	EndedAt     time.Time `json:"ended_at"`
	Messages    []Message `json:"messages"`
}
