package model

// ChatHistoryRecord 是历史问答对的只读投影。
type ChatHistoryRecord struct {
	UserName             string    `json:"user_name"`
	UserRole             string    `json:"user_role"`
	Message              string    `json:"message"`
	Response             string    `json:"response"`
	IsAppointmentRequest bool      `json:"is_appointment_request"`
	CreatedAt            LocalTime `json:"created_at"`
}
