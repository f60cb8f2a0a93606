package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"hospital-console-go/internal/event"
	"hospital-console-go/internal/model"
	"hospital-console-go/pkg/backend"
)

// NotificationService 维护管理员通知列表。未读数总是由列表推导，不单独存储。
type NotificationService interface {
	List(ctx context.Context) (model.NotificationList, error)
	// MarkRead 标记已读后重新拉取完整列表，以后端结果为准。
	MarkRead(ctx context.Context, id string) (model.NotificationList, error)
	Snapshot() model.NotificationList
}

type notificationService struct {
	client   backend.Client
	sessions SessionService
	monitor  ConnectivityService
	audit    AuditService
	events   event.Publisher

	mu    sync.Mutex
	epoch uint64
	items []model.Notification
}

// NewNotificationService 创建通知中心。
func NewNotificationService(client backend.Client, sessions SessionService, monitor ConnectivityService, audit AuditService, events event.Publisher) NotificationService {
	if audit == nil {
		audit = NewAuditService(nil)
	}
	s := &notificationService{client: client, sessions: sessions, monitor: monitor, audit: audit, events: events}
	sessions.OnActivate(func(sess model.Session) { s.reset(sess.Epoch) })
	sessions.OnTeardown(func(model.Session) { s.reset(0) })
	return s
}

func (s *notificationService) reset(epoch uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch = epoch
	s.items = nil
}

func (s *notificationService) List(ctx context.Context) (model.NotificationList, error) {
	sess, err := requireAdminOnline(s.sessions, s.monitor)
	if err != nil {
		return s.Snapshot(), err
	}
	items, err := s.client.Notifications(ctx)
	if err != nil {
		return s.Snapshot(), fmt.Errorf("list notifications: %w", err)
	}
	if items == nil {
		items = []model.Notification{}
	}

	s.mu.Lock()
	if s.epoch != sess.Epoch || !s.sessions.IsCurrent(sess.Epoch) {
		s.mu.Unlock()
		return model.NotificationList{}, ErrStaleResponse
	}
	s.items = items
	list := model.NewNotificationList(append([]model.Notification(nil), items...))
	s.mu.Unlock()

	publish(s.events, event.NotificationsUpdated, sess.SessionID, list)
	return list, nil
}

func (s *notificationService) MarkRead(ctx context.Context, id string) (model.NotificationList, error) {
	sess, err := requireAdminOnline(s.sessions, s.monitor)
	if err != nil {
		return s.Snapshot(), err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return s.Snapshot(), validationError("notification_id", "notification id is required")
	}

	s.mu.Lock()
	for _, n := range s.items {
		if n.ID == id && n.Read {
			s.mu.Unlock()
			return s.Snapshot(), fmt.Errorf("%w: notification %s is already read", ErrInvalidState, id)
		}
	}
	s.mu.Unlock()

	if err := s.client.MarkNotificationRead(ctx, id); err != nil {
		s.audit.Record(sess, AuditNotificationRead, id, err)
		return s.Snapshot(), fmt.Errorf("mark notification read: %w", err)
	}
	s.audit.Record(sess, AuditNotificationRead, id, nil)
	return s.List(ctx)
}

func (s *notificationService) Snapshot() model.NotificationList {
	s.mu.Lock()
	defer s.mu.Unlock()
	return model.NewNotificationList(append([]model.Notification{}, s.items...))
}
