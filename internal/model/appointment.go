package model

// AppointmentStatus 只允许 pending -> accepted|rejected 的单向迁移。
type AppointmentStatus string

const (
	AppointmentPending  AppointmentStatus = "pending"
	AppointmentAccepted AppointmentStatus = "accepted"
	AppointmentRejected AppointmentStatus = "rejected"
)

// Terminal reports whether no further transition is possible.
func (s AppointmentStatus) Terminal() bool {
	return s == AppointmentAccepted || s == AppointmentRejected
}

// Valid reports whether s is a known status.
func (s AppointmentStatus) Valid() bool {
	return s == AppointmentPending || s.Terminal()
}

// AppointmentAction 是管理员对预约请求的处理动作。
type AppointmentAction string

const (
	ActionAccept AppointmentAction = "accept"
	ActionReject AppointmentAction = "reject"
)

// Result 返回动作成功后的目标状态。
func (a AppointmentAction) Result() (AppointmentStatus, bool) {
	switch a {
	case ActionAccept:
		return AppointmentAccepted, true
	case ActionReject:
		return AppointmentRejected, true
	}
	return "", false
}

// Appointment 由对话中的预约意图隐式创建，字段名与后端一致。
type Appointment struct {
	ID              string            `json:"appointment_id"`
	RequesterName   string            `json:"user_name"`
	PhoneNumber     string            `json:"phone_number"`
	PreferredDate   string            `json:"preferred_date"`
	PreferredTime   string            `json:"preferred_time"`
	Reason          string            `json:"reason"`
	OriginalMessage string            `json:"original_message"`
	UserRole        string            `json:"user_role,omitempty"`
	Status          AppointmentStatus `json:"status"`
	AdminNotes      string            `json:"admin_notes,omitempty"`
	CreatedAt       LocalTime         `json:"created_at"`
}

// AppointmentFilter 为空字符串表示不过滤（all）。
type AppointmentFilter string

// FilterAll 列出全部状态的预约。
const FilterAll AppointmentFilter = "all"

// Statistics 仅用于展示的聚合计数，不作为权威状态。
type Statistics struct {
	TotalConversations   int            `json:"total_conversations"`
	PendingAppointments  int            `json:"pending_appointments"`
	AcceptedAppointments int            `json:"accepted_appointments"`
	RejectedAppointments int            `json:"rejected_appointments"`
	ConversationsByRole  map[string]int `json:"conversations_by_role,omitempty"`
}
