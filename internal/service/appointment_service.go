package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"hospital-console-go/internal/event"
	"hospital-console-go/internal/model"
	"hospital-console-go/pkg/backend"
	"hospital-console-go/pkg/log"
)

// AppointmentSnapshot 是预约分诊工作流最近一次拉取的结果。
type AppointmentSnapshot struct {
	Filter       model.AppointmentFilter `json:"filter"`
	Appointments []model.Appointment     `json:"appointments"`
	Statistics   *model.Statistics       `json:"statistics,omitempty"`
	// Dirty 表示对话中出现了新的预约请求，列表需要重新拉取。跨会话保留，直到下一次 List。
	Dirty bool `json:"dirty"`
}

// ActResult 是一次 accept/reject 的结果与随后刷新的数据。
type ActResult struct {
	Message       string                 `json:"message"`
	Appointments  []model.Appointment    `json:"appointments"`
	Statistics    *model.Statistics      `json:"statistics,omitempty"`
	Notifications model.NotificationList `json:"notifications"`
}

// AppointmentService 列出、筛选并处理对话中产生的预约请求。
type AppointmentService interface {
	AppointmentNotifier
	List(ctx context.Context, filter model.AppointmentFilter) ([]model.Appointment, error)
	// Act 状态校验交给后端；成功后重新拉取预约、统计与通知。
	Act(ctx context.Context, appointmentID string, action model.AppointmentAction, notes string) (*ActResult, error)
	Statistics(ctx context.Context) (*model.Statistics, error)
	Snapshot() AppointmentSnapshot
}

type appointmentService struct {
	client        backend.Client
	sessions      SessionService
	monitor       ConnectivityService
	notifications NotificationService
	audit         AuditService
	events        event.Publisher

	mu     sync.Mutex
	epoch  uint64
	filter model.AppointmentFilter
	items  []model.Appointment
	stats  *model.Statistics
	dirty  bool
}

// NewAppointmentService 创建预约分诊工作流。
func NewAppointmentService(
	client backend.Client,
	sessions SessionService,
	monitor ConnectivityService,
	notifications NotificationService,
	audit AuditService,
	events event.Publisher,
) AppointmentService {
	if audit == nil {
		audit = NewAuditService(nil)
	}
	s := &appointmentService{
		client:        client,
		sessions:      sessions,
		monitor:       monitor,
		notifications: notifications,
		audit:         audit,
		events:        events,
		filter:        model.AppointmentFilter(model.AppointmentPending),
	}
	sessions.OnActivate(func(sess model.Session) { s.reset(sess.Epoch) })
	sessions.OnTeardown(func(model.Session) { s.reset(0) })
	return s
}

func (s *appointmentService) reset(epoch uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch = epoch
	s.filter = model.AppointmentFilter(model.AppointmentPending)
	s.items = nil
	s.stats = nil
}

// normalizeFilter 空值默认 pending；all 表示不带 status 参数。
func normalizeFilter(f model.AppointmentFilter) (model.AppointmentFilter, string, error) {
	raw := strings.ToLower(strings.TrimSpace(string(f)))
	switch {
	case raw == "":
		return model.AppointmentFilter(model.AppointmentPending), string(model.AppointmentPending), nil
	case raw == string(model.FilterAll):
		return model.FilterAll, "", nil
	case model.AppointmentStatus(raw).Valid():
		return model.AppointmentFilter(raw), raw, nil
	}
	return "", "", validationError("status", fmt.Sprintf("unknown appointment status %q", f))
}

func (s *appointmentService) List(ctx context.Context, filter model.AppointmentFilter) ([]model.Appointment, error) {
	sess, err := requireAdminOnline(s.sessions, s.monitor)
	if err != nil {
		return nil, err
	}
	normalized, status, err := normalizeFilter(filter)
	if err != nil {
		return nil, err
	}
	items, err := s.client.Appointments(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return s.applyList(sess.Epoch, normalized, items, nil)
}

func (s *appointmentService) applyList(epoch uint64, filter model.AppointmentFilter, items []model.Appointment, stats *model.Statistics) ([]model.Appointment, error) {
	if items == nil {
		items = []model.Appointment{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch || !s.sessions.IsCurrent(epoch) {
		return nil, ErrStaleResponse
	}
	s.filter = filter
	s.items = items
	if stats != nil {
		s.stats = stats
	}
	s.dirty = false
	return append([]model.Appointment(nil), items...), nil
}

func (s *appointmentService) Act(ctx context.Context, appointmentID string, action model.AppointmentAction, notes string) (*ActResult, error) {
	sess, err := requireAdminOnline(s.sessions, s.monitor)
	if err != nil {
		return nil, err
	}
	appointmentID = strings.TrimSpace(appointmentID)
	if appointmentID == "" {
		return nil, validationError("appointment_id", "appointment id is required")
	}
	if _, ok := action.Result(); !ok {
		return nil, validationError("action", fmt.Sprintf("action must be accept or reject, got %q", action))
	}

	auditAction := AuditAppointmentAccept
	if action == model.ActionReject {
		auditAction = AuditAppointmentReject
	}
	msg, err := s.client.AppointmentAction(ctx, backend.AppointmentActionRequest{
		AppointmentID: appointmentID,
		Action:        string(action),
		AdminNotes:    notes,
	})
	if err != nil {
		s.audit.Record(sess, auditAction, appointmentID, err)
		return nil, fmt.Errorf("%s appointment %s: %w", action, appointmentID, err)
	}
	s.audit.Record(sess, auditAction, appointmentID, nil)
	log.Infof("预约 %s 已处理: action=%s", appointmentID, action)
	publish(s.events, event.AppointmentActioned, sess.SessionID, map[string]string{
		"appointment_id": appointmentID,
		"action":         string(action),
	})

	result := &ActResult{Message: msg}
	if err := s.refreshAfterAction(ctx, sess.Epoch, result); err != nil {
		// 动作本身已经成功，刷新失败只标记快照需要重新拉取。
		log.Warnf("处理预约后刷新失败: %v", err)
		s.mu.Lock()
		s.dirty = true
		s.mu.Unlock()
	}
	return result, nil
}

// refreshAfterAction 并发拉取预约列表、统计与通知，捕获服务端的连带变化。
func (s *appointmentService) refreshAfterAction(ctx context.Context, epoch uint64, result *ActResult) error {
	s.mu.Lock()
	filter := s.filter
	s.mu.Unlock()
	_, status, _ := normalizeFilter(filter)

	var (
		items []model.Appointment
		stats *model.Statistics
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		items, err = s.client.Appointments(gctx, status)
		return err
	})
	g.Go(func() error {
		var err error
		stats, err = s.client.Statistics(gctx)
		return err
	})
	if s.notifications != nil {
		g.Go(func() error {
			var err error
			result.Notifications, err = s.notifications.List(gctx)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	applied, err := s.applyList(epoch, filter, items, stats)
	if err != nil {
		return err
	}
	result.Appointments = applied
	result.Statistics = stats
	return nil
}

func (s *appointmentService) Statistics(ctx context.Context) (*model.Statistics, error) {
	sess, err := requireAdminOnline(s.sessions, s.monitor)
	if err != nil {
		return nil, err
	}
	stats, err := s.client.Statistics(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch statistics: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != sess.Epoch || !s.sessions.IsCurrent(sess.Epoch) {
		return nil, ErrStaleResponse
	}
	s.stats = stats
	copied := *stats
	return &copied, nil
}

// NotifyRequested 由对话引擎调用。当前会话是 admin 时立即刷新，否则只标记快照过期。
func (s *appointmentService) NotifyRequested(ctx context.Context, appointmentID string) {
	sess := s.sessions.Current()
	if !sess.Active() || sess.Role != model.RoleAdmin {
		s.mu.Lock()
		s.dirty = true
		s.mu.Unlock()
		return
	}
	s.mu.Lock()
	filter := s.filter
	s.mu.Unlock()
	if _, err := s.List(ctx, filter); err != nil {
		log.Warnf("预约 %s 产生后刷新列表失败: %v", appointmentID, err)
		s.mu.Lock()
		s.dirty = true
		s.mu.Unlock()
	}
}

func (s *appointmentService) Snapshot() AppointmentSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := AppointmentSnapshot{
		Filter:       s.filter,
		Appointments: append([]model.Appointment{}, s.items...),
		Dirty:        s.dirty,
	}
	if s.stats != nil {
		st := *s.stats
		snap.Statistics = &st
	}
	return snap
}
