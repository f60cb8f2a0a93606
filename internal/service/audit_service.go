package service

import (
	"fmt"
	"strings"

	"hospital-console-go/internal/event"
	"hospital-console-go/internal/model"
	"hospital-console-go/internal/repository"
	"hospital-console-go/pkg/log"
)

// 审计动作名称。
const (
	AuditAppointmentAccept = "appointment.accept"
	AuditAppointmentReject = "appointment.reject"
	AuditDocumentUpload    = "documents.upload"
	AuditDocumentReload    = "documents.reload"
	AuditNotificationRead  = "notification.read"
)

// AuditService 记录管理员变更操作。写入失败只记录日志，不影响工作流。
type AuditService interface {
	Record(sess model.Session, action, target string, err error)
	Recent(limit int) ([]model.AuditEntry, error)
	BySession(sessionID string) ([]model.AuditEntry, error)
}

type auditService struct {
	repo repository.AuditRepository
}

// NewAuditService 创建审计服务；repo 为 nil 时所有记录被丢弃。
func NewAuditService(repo repository.AuditRepository) AuditService {
	return &auditService{repo: repo}
}

func (s *auditService) Record(sess model.Session, action, target string, err error) {
	if s == nil || s.repo == nil {
		return
	}
	entry := &model.AuditEntry{
		SessionID: sess.SessionID,
		Actor:     sess.DisplayName,
		Action:    action,
		Target:    target,
		Outcome:   model.OutcomeSuccess,
	}
	if err != nil {
		entry.Outcome = model.OutcomeFailure
		entry.Detail = UserMessage(err)
	}
	if createErr := s.repo.Create(entry); createErr != nil {
		log.Errorf("写入审计记录失败: action=%s, target=%s, err=%v", action, target, createErr)
	}
}

func (s *auditService) Recent(limit int) ([]model.AuditEntry, error) {
	if s == nil || s.repo == nil {
		return []model.AuditEntry{}, nil
	}
	return s.repo.ListRecent(limit)
}

func (s *auditService) BySession(sessionID string) ([]model.AuditEntry, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, validationError("session_id", "Session id is required.")
	}
	if s == nil || s.repo == nil {
		return []model.AuditEntry{}, nil
	}
	entries, err := s.repo.ListBySession(sessionID)
	if err != nil {
		return nil, fmt.Errorf("list audit entries for session %s: %w", sessionID, err)
	}
	return entries, nil
}

func publish(p event.Publisher, typ, sessionID string, payload interface{}) {
	if p == nil {
		return
	}
	p.Publish(event.Event{Type: typ, SessionID: sessionID, Payload: payload})
}
