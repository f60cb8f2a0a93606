package model

import "time"

// AuditEntry 记录管理员在控制台上执行的一次变更操作。
type AuditEntry struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	SessionID string    `gorm:"type:varchar(64);index;not null" json:"session_id"`
	Actor     string    `gorm:"type:varchar(100);not null" json:"actor"`
	Action    string    `gorm:"type:varchar(50);index;not null" json:"action"`
	Target    string    `gorm:"type:varchar(255)" json:"target"`
	Outcome   string    `gorm:"type:varchar(20);not null" json:"outcome"`
	Detail    string    `gorm:"type:text" json:"detail"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (AuditEntry) TableName() string {
	return "console_audit_log"
}

// 审计结果取值。
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)
