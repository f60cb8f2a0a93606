package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"hospital-console-go/internal/event"
	"hospital-console-go/internal/model"
	"hospital-console-go/pkg/backend"
	"hospital-console-go/pkg/log"
)

// ConnectivityService 探测后端可达性，并为所有依赖后端的操作提供门控。
type ConnectivityService interface {
	Probe(ctx context.Context) model.ConnectivitySnapshot
	Snapshot() model.ConnectivitySnapshot
	RequireConnected() error
}

type connectivityService struct {
	client backend.Client
	events event.Publisher

	mu   sync.RWMutex
	snap model.ConnectivitySnapshot
}

// NewConnectivityService 创建监视器，初始状态为 connecting，直到第一次 Probe 完成。
func NewConnectivityService(client backend.Client, events event.Publisher) ConnectivityService {
	return &connectivityService{
		client: client,
		events: events,
		snap:   model.ConnectivitySnapshot{State: model.ConnectivityConnecting},
	}
}

// Probe 请求 GET /，只看状态码。不做自动重试，调用方可以再次 Probe。
func (s *connectivityService) Probe(ctx context.Context) model.ConnectivitySnapshot {
	s.set(model.ConnectivitySnapshot{State: model.ConnectivityConnecting, CheckedAt: time.Now()})

	next := model.ConnectivitySnapshot{State: model.ConnectivityConnected}
	if err := s.client.Ping(ctx); err != nil {
		log.Warnf("后端连通性探测失败: %v", err)
		next.State = model.ConnectivityError
		next.LastError = err.Error()
	}
	next.CheckedAt = time.Now()
	s.set(next)
	return next
}

func (s *connectivityService) set(next model.ConnectivitySnapshot) {
	s.mu.Lock()
	changed := s.snap.State != next.State
	s.snap = next
	s.mu.Unlock()

	if changed {
		log.Infof("connectivity -> %s", next.State)
		publish(s.events, event.ConnectivityChanged, "", next)
	}
}

func (s *connectivityService) Snapshot() model.ConnectivitySnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// RequireConnected 在最近一次探测成功之前返回 ErrConnectivity。
func (s *connectivityService) RequireConnected() error {
	snap := s.Snapshot()
	if snap.State == model.ConnectivityConnected {
		return nil
	}
	if snap.LastError != "" {
		return fmt.Errorf("%w: %s", ErrConnectivity, snap.LastError)
	}
	return fmt.Errorf("%w: backend status is %s", ErrConnectivity, snap.State)
}

// requireAdminOnline 是管理工作流共用的前置检查：admin 会话且后端可达。
func requireAdminOnline(sessions SessionService, monitor ConnectivityService) (model.Session, error) {
	sess, err := sessions.RequireAdmin()
	if err != nil {
		return sess, err
	}
	if err := monitor.RequireConnected(); err != nil {
		return sess, err
	}
	return sess, nil
}
