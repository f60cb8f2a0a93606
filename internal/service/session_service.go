package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"hospital-console-go/internal/event"
	"hospital-console-go/internal/model"
	"hospital-console-go/pkg/log"
)

// Authenticator 是可插拔的身份校验协作者。只有 staff/admin 会被要求提供令牌。
// 返回值为令牌中的操作员名，作为会话显示名。
type Authenticator interface {
	Authenticate(ctx context.Context, token string, role model.Role) (string, error)
}

// SessionService 独占控制台会话状态，其他工作流只读取身份。
//
// 生命周期钩子在状态变更之后、会话锁之外按注册顺序同步调用；
// 钩子内部不能再调用 SelectRole/SubmitProfile/SwitchRole。
type SessionService interface {
	Current() model.Session
	IsCurrent(epoch uint64) bool
	RequireActive() (model.Session, error)
	RequireAdmin() (model.Session, error)

	SelectRole(ctx context.Context, role model.Role, token string) (model.Session, error)
	SubmitProfile(name, phone string) (model.Session, error)
	SwitchRole() model.Session

	OnActivate(fn func(model.Session))
	OnTeardown(fn func(model.Session))
}

type sessionService struct {
	monitor ConnectivityService
	auth    Authenticator
	events  event.Publisher

	// transition 串行化状态迁移与钩子调用，保证钩子顺序与迁移顺序一致。
	transition sync.Mutex

	mu         sync.RWMutex
	session    model.Session
	onActivate []func(model.Session)
	onTeardown []func(model.Session)
}

// NewSessionService 创建会话管理器。auth 为 nil 表示不启用认证。
func NewSessionService(monitor ConnectivityService, auth Authenticator, events event.Publisher) SessionService {
	return &sessionService{
		monitor: monitor,
		auth:    auth,
		events:  events,
		session: model.Session{State: model.SessionUnselected},
	}
}

func (s *sessionService) OnActivate(fn func(model.Session)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onActivate = append(s.onActivate, fn)
}

func (s *sessionService) OnTeardown(fn func(model.Session)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onTeardown = append(s.onTeardown, fn)
}

// Current 返回会话快照，connectivity 字段取自监视器。
func (s *sessionService) Current() model.Session {
	s.mu.RLock()
	sess := s.session
	s.mu.RUnlock()
	sess.Connectivity = s.monitor.Snapshot().State
	return sess
}

func (s *sessionService) IsCurrent(epoch uint64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.State == model.SessionActive && s.session.Epoch == epoch
}

func (s *sessionService) RequireActive() (model.Session, error) {
	sess := s.Current()
	if !sess.Active() {
		return sess, ErrNoSession
	}
	return sess, nil
}

func (s *sessionService) RequireAdmin() (model.Session, error) {
	sess, err := s.RequireActive()
	if err != nil {
		return sess, err
	}
	if sess.Role != model.RoleAdmin {
		return sess, ErrForbidden
	}
	return sess, nil
}

// SelectRole 选择角色。staff/admin 直接进入 Active，patient/visitor 进入资料填写状态。
func (s *sessionService) SelectRole(ctx context.Context, role model.Role, token string) (model.Session, error) {
	if !role.Valid() {
		return s.Current(), validationError("role", fmt.Sprintf("unknown role %q", role))
	}
	if err := s.monitor.RequireConnected(); err != nil {
		return s.Current(), err
	}

	s.transition.Lock()
	defer s.transition.Unlock()

	s.mu.RLock()
	state := s.session.State
	s.mu.RUnlock()
	if state == model.SessionActive {
		return s.Current(), fmt.Errorf("%w: switch role before selecting a new one", ErrInvalidState)
	}

	if role.RequiresProfile() {
		s.mu.Lock()
		s.session = model.Session{State: model.SessionProfilePending, Role: role, Epoch: s.session.Epoch}
		s.mu.Unlock()
		return s.Current(), nil
	}

	sessionID := uuid.NewString()
	displayName := fmt.Sprintf("%s %s", role.Label(), sessionID[:8])
	if s.auth != nil && role.Privileged() {
		operator, err := s.auth.Authenticate(ctx, token, role)
		if err != nil {
			return s.Current(), err
		}
		displayName = operator
	}
	return s.activate(model.Session{Role: role, DisplayName: displayName, SessionID: sessionID}), nil
}

// SubmitProfile 校验资料并激活会话。患者必须填写电话。
func (s *sessionService) SubmitProfile(name, phone string) (model.Session, error) {
	s.transition.Lock()
	defer s.transition.Unlock()

	s.mu.RLock()
	pending := s.session
	s.mu.RUnlock()
	if pending.State != model.SessionProfilePending {
		return s.Current(), fmt.Errorf("%w: no role awaiting profile", ErrInvalidState)
	}

	name = strings.TrimSpace(name)
	phone = strings.TrimSpace(phone)
	if name == "" {
		return s.Current(), validationError("name", "Please enter your name.")
	}
	if pending.Role == model.RolePatient && phone == "" {
		return s.Current(), validationError("phone_number", "Please enter your phone number.")
	}

	return s.activate(model.Session{
		Role:        pending.Role,
		DisplayName: name,
		PhoneNumber: phone,
		SessionID:   uuid.NewString(),
	}), nil
}

// activate 必须在持有 transition 锁时调用。
func (s *sessionService) activate(next model.Session) model.Session {
	s.mu.Lock()
	next.State = model.SessionActive
	next.StartedAt = time.Now()
	next.Epoch = s.session.Epoch + 1
	s.session = next
	hooks := append([]func(model.Session){}, s.onActivate...)
	s.mu.Unlock()

	active := s.Current()
	log.Infof("会话已激活: role=%s, session=%s", active.Role, active.SessionID)
	for _, fn := range hooks {
		fn(active)
	}
	publish(s.events, event.SessionActivated, active.SessionID, active)
	return active
}

// SwitchRole 销毁当前会话并回到 Unselected。在途请求不会被取消，其响应会被各工作流按 epoch 丢弃。
func (s *sessionService) SwitchRole() model.Session {
	s.transition.Lock()
	defer s.transition.Unlock()

	s.mu.Lock()
	closing := s.session
	s.session = model.Session{State: model.SessionUnselected, Epoch: closing.Epoch + 1}
	hooks := append([]func(model.Session){}, s.onTeardown...)
	s.mu.Unlock()

	if closing.State == model.SessionActive {
		log.Infof("会话已结束: role=%s, session=%s", closing.Role, closing.SessionID)
		for _, fn := range hooks {
			fn(closing)
		}
		publish(s.events, event.SessionEnded, closing.SessionID, closing)
	}
	return s.Current()
}
