package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"hospital-console-go/internal/config"
	"hospital-console-go/internal/event"
	"hospital-console-go/internal/model"
	"hospital-console-go/internal/repository"
	"hospital-console-go/pkg/backend"
	"hospital-console-go/pkg/log"
)

// AppointmentNotifier 接收对话中识别出的预约意图。
type AppointmentNotifier interface {
	NotifyRequested(ctx context.Context, appointmentID string)
}

// QuickActionPanel 是快捷操作面板的当前状态。
type QuickActionPanel struct {
	Visible   bool                `json:"visible"`
	Turns     int                 `json:"turns"`
	Threshold int                 `json:"threshold"`
	Actions   []model.QuickAction `json:"actions"`
}

// QuickActionResult 为普通短语时携带发送结果，为管理快捷操作时携带要打开的工作流。
type QuickActionResult struct {
	Workflow string         `json:"workflow,omitempty"`
	Message  *model.Message `json:"message,omitempty"`
}

// ChatService 管理当前会话的转录、轮次与快捷操作。
type ChatService interface {
	// Send 追加用户消息并等待助手回复。请求失败时转录中会追加一条错误消息，
	// 该消息与错误一同返回。
	Send(ctx context.Context, text string) (*model.Message, error)
	Transcript() ([]model.Message, error)
	Typing() bool
	QuickActions() (QuickActionPanel, error)
	SelectQuickAction(ctx context.Context, id string) (*QuickActionResult, error)
	Archived(ctx context.Context, sessionID string) (*model.ArchivedTranscript, error)
}

// conversation 是一个会话独占的对话状态，会话销毁时整体丢弃。
type conversation struct {
	session     model.Session
	messages    []model.Message
	turns       int
	typing      bool
	quickHidden bool
	lastStamp   time.Time
}

type chatService struct {
	client       backend.Client
	sessions     SessionService
	monitor      ConnectivityService
	appointments AppointmentNotifier
	archive      repository.TranscriptRepository
	events       event.Publisher
	threshold    int

	mu   sync.Mutex
	conv *conversation
}

// NewChatService 创建对话引擎并挂到会话生命周期上。appointments 与 archive 可以为 nil。
func NewChatService(
	client backend.Client,
	sessions SessionService,
	monitor ConnectivityService,
	appointments AppointmentNotifier,
	archive repository.TranscriptRepository,
	events event.Publisher,
	cfg config.WorkflowConfig,
) ChatService {
	threshold := cfg.QuickActionThreshold
	if threshold <= 0 {
		threshold = 3
	}
	s := &chatService{
		client:       client,
		sessions:     sessions,
		monitor:      monitor,
		appointments: appointments,
		archive:      archive,
		events:       events,
		threshold:    threshold,
	}
	sessions.OnActivate(s.onActivate)
	sessions.OnTeardown(s.onTeardown)
	return s
}

func (s *chatService) onActivate(sess model.Session) {
	conv := &conversation{session: sess}
	s.mu.Lock()
	s.conv = conv
	welcome := conv.append(model.Message{Speaker: model.SpeakerAssistant, Body: welcomeMessage(sess)})
	s.mu.Unlock()
	publish(s.events, event.MessageAppended, sess.SessionID, welcome)
}

func (s *chatService) onTeardown(sess model.Session) {
	s.mu.Lock()
	conv := s.conv
	s.conv = nil
	s.mu.Unlock()
	if conv == nil || s.archive == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	err := s.archive.Archive(ctx, model.ArchivedTranscript{
		SessionID:   sess.SessionID,
		Role:        sess.Role,
		DisplayName: sess.DisplayName,
		StartedAt:   sess.StartedAt,
		EndedAt:     time.Now(),
		Messages:    conv.messages,
	})
	if err != nil {
		log.Errorf("归档会话转录失败: session=%s, err=%v", sess.SessionID, err)
	}
}

// append 分配序号与单调递增的时间戳。调用方必须持有 chatService.mu。
func (c *conversation) append(m model.Message) model.Message {
	stamp := time.Now()
	if !stamp.After(c.lastStamp) {
		stamp = c.lastStamp.Add(time.Microsecond)
	}
	c.lastStamp = stamp
	m.Seq = len(c.messages)
	m.Timestamp = stamp
	c.messages = append(c.messages, m)
	return m
}

func (s *chatService) Send(ctx context.Context, text string) (*model.Message, error) {
	sess, err := s.sessions.RequireActive()
	if err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, validationError("message", "Please enter a message.")
	}
	if err := s.monitor.RequireConnected(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	conv := s.conv
	if conv == nil || conv.session.Epoch != sess.Epoch {
		s.mu.Unlock()
		return nil, ErrNoSession
	}
	if conv.typing {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	userMsg := conv.append(model.Message{Speaker: model.SpeakerUser, Body: text})
	conv.turns++
	hideNow := !conv.quickHidden && conv.turns >= s.threshold
	if hideNow {
		conv.quickHidden = true
	}
	conv.typing = true
	s.mu.Unlock()

	publish(s.events, event.MessageAppended, sess.SessionID, userMsg)
	if hideNow {
		publish(s.events, event.QuickActionsHidden, sess.SessionID, nil)
	}
	publish(s.events, event.ChatTyping, sess.SessionID, true)

	// 在途请求不可取消：会话切换只会让响应被丢弃。
	resp, reqErr := s.client.Chat(context.WithoutCancel(ctx), backend.ChatRequest{
		Message:     text,
		UserRole:    string(sess.Role),
		UserID:      sess.SessionID,
		UserName:    sess.DisplayName,
		PhoneNumber: sess.PhoneNumber,
	})

	s.mu.Lock()
	if s.conv != conv || !s.sessions.IsCurrent(sess.Epoch) {
		s.mu.Unlock()
		log.Debugf("丢弃过期的聊天响应: session=%s", sess.SessionID)
		return nil, ErrStaleResponse
	}
	conv.typing = false
	var reply model.Message
	if reqErr != nil {
		reply = conv.append(model.Message{Speaker: model.SpeakerAssistant, Body: GenericChatError, IsError: true})
	} else {
		m := model.Message{Speaker: model.SpeakerAssistant, Body: resp.Response}
		if resp.IsAppointmentRequest {
			m.IsAppointmentRequest = true
			m.AppointmentID = resp.AppointmentID
		}
		reply = conv.append(m)
	}
	s.mu.Unlock()

	publish(s.events, event.ChatTyping, sess.SessionID, false)
	publish(s.events, event.MessageAppended, sess.SessionID, reply)

	if reqErr != nil {
		log.Warnf("聊天请求失败: session=%s, err=%v", sess.SessionID, reqErr)
		return &reply, fmt.Errorf("chat request failed: %w", reqErr)
	}
	if reply.IsAppointmentRequest {
		log.Infof("检测到预约请求: appointment=%s, session=%s", reply.AppointmentID, sess.SessionID)
		publish(s.events, event.AppointmentRequested, sess.SessionID, map[string]string{"appointment_id": reply.AppointmentID})
		if s.appointments != nil {
			s.appointments.NotifyRequested(ctx, reply.AppointmentID)
		}
	}
	return &reply, nil
}

func (s *chatService) current() (*conversation, error) {
	sess, err := s.sessions.RequireActive()
	if err != nil {
		return nil, err
	}
	if s.conv == nil || s.conv.session.Epoch != sess.Epoch {
		return nil, ErrNoSession
	}
	return s.conv, nil
}

// Transcript 返回转录副本，顺序即展示顺序。
func (s *chatService) Transcript() ([]model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, err := s.current()
	if err != nil {
		return nil, err
	}
	return append([]model.Message(nil), conv.messages...), nil
}

func (s *chatService) Typing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conv != nil && s.conv.typing
}

// QuickActions 在轮次达到阈值前返回角色目录；隐藏后本会话内不再出现。
func (s *chatService) QuickActions() (QuickActionPanel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, err := s.current()
	if err != nil {
		return QuickActionPanel{}, err
	}
	panel := QuickActionPanel{Turns: conv.turns, Threshold: s.threshold, Actions: []model.QuickAction{}}
	if !conv.quickHidden {
		panel.Visible = true
		panel.Actions = append(panel.Actions, quickActionCatalog[conv.session.Role]...)
	}
	return panel, nil
}

// SelectQuickAction 普通短语走 Send 并计入轮次；管理快捷操作不发送消息，只返回要打开的工作流。
func (s *chatService) SelectQuickAction(ctx context.Context, id string) (*QuickActionResult, error) {
	s.mu.Lock()
	conv, err := s.current()
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	hidden := conv.quickHidden
	role := conv.session.Role
	s.mu.Unlock()

	if hidden {
		return nil, fmt.Errorf("%w: quick actions are no longer available", ErrInvalidState)
	}
	action, ok := findQuickAction(role, id)
	if !ok {
		return nil, validationError("id", fmt.Sprintf("unknown quick action %q", id))
	}
	if action.AdminWorkflow != "" {
		if _, err := s.sessions.RequireAdmin(); err != nil {
			return nil, err
		}
		return &QuickActionResult{Workflow: action.AdminWorkflow}, nil
	}
	msg, err := s.Send(ctx, action.Phrase)
	if err != nil {
		return &QuickActionResult{Message: msg}, err
	}
	return &QuickActionResult{Message: msg}, nil
}

// Archived 读取已归档的会话转录。
func (s *chatService) Archived(ctx context.Context, sessionID string) (*model.ArchivedTranscript, error) {
	if s.archive == nil {
		return nil, fmt.Errorf("%w: transcript archive is disabled", ErrInvalidState)
	}
	if strings.TrimSpace(sessionID) == "" {
		return nil, validationError("session_id", "session id is required")
	}
	return s.archive.Load(ctx, sessionID)
}
