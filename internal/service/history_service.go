package service

import (
	"context"
	"fmt"
	"strings"

	"hospital-console-go/internal/model"
	"hospital-console-go/pkg/backend"
)

// HistoryService 按角色查询历史问答记录，供管理员审阅。
type HistoryService interface {
	List(ctx context.Context, roleFilter string) ([]model.ChatHistoryRecord, error)
}

type historyService struct {
	client   backend.Client
	sessions SessionService
	monitor  ConnectivityService
}

// NewHistoryService 创建历史记录查看器。
func NewHistoryService(client backend.Client, sessions SessionService, monitor ConnectivityService) HistoryService {
	return &historyService{client: client, sessions: sessions, monitor: monitor}
}

// List 接受已知角色或 all；all 与空值都不带 user_role 参数。记录保持后端顺序。
func (s *historyService) List(ctx context.Context, roleFilter string) ([]model.ChatHistoryRecord, error) {
	sess, err := requireAdminOnline(s.sessions, s.monitor)
	if err != nil {
		return nil, err
	}
	role := strings.ToLower(strings.TrimSpace(roleFilter))
	if role == "all" {
		role = ""
	}
	if role != "" && !model.Role(role).Valid() {
		return nil, validationError("user_role", fmt.Sprintf("unknown role %q", roleFilter))
	}

	records, err := s.client.ChatHistory(ctx, role)
	if err != nil {
		return nil, fmt.Errorf("list chat history: %w", err)
	}
	if !s.sessions.IsCurrent(sess.Epoch) {
		return nil, ErrStaleResponse
	}
	if records == nil {
		records = []model.ChatHistoryRecord{}
	}
	return records, nil
}
