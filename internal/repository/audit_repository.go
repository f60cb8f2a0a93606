// Package repository 提供了审计记录与转录归档的数据访问层。
package repository

import (
	"gorm.io/gorm"

	"hospital-console-go/internal/model"
)

// AuditRepository 接口定义了管理员审计记录的持久化操作。
type AuditRepository interface {
	Create(entry *model.AuditEntry) error
	ListRecent(limit int) ([]model.AuditEntry, error)
	ListBySession(sessionID string) ([]model.AuditEntry, error)
}

// auditRepository 是 AuditRepository 接口的 GORM 实现。
type auditRepository struct {
	db *gorm.DB
}

// NewAuditRepository 创建一个新的 AuditRepository 实例。
func NewAuditRepository(db *gorm.DB) AuditRepository {
	return &auditRepository{db: db}
}

// Create 写入一条审计记录。
func (r *auditRepository) Create(entry *model.AuditEntry) error {
	return r.db.Create(entry).Error
}

// ListRecent 按时间倒序返回最近的审计记录。
func (r *auditRepository) ListRecent(limit int) ([]model.AuditEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var entries []model.AuditEntry
	err := r.db.Order("id DESC").Limit(limit).Find(&entries).Error
	return entries, err
}

// ListBySession 返回某个会话内的全部审计记录，按写入顺序排列。
func (r *auditRepository) ListBySession(sessionID string) ([]model.AuditEntry, error) {
	var entries []model.AuditEntry
	err := r.db.Where("session_id = ?", sessionID).Order("id ASC").Find(&entries).Error
	return entries, err
}
