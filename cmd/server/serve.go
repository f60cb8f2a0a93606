package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"hospital-console-go/internal/config"
	"hospital-console-go/internal/event"
	"hospital-console-go/internal/handler"
	"hospital-console-go/internal/model"
	"hospital-console-go/internal/repository"
	"hospital-console-go/internal/service"
	"hospital-console-go/pkg/backend"
	"hospital-console-go/pkg/database"
	"hospital-console-go/pkg/kafka"
	"hospital-console-go/pkg/log"
	"hospital-console-go/pkg/storage"
	"hospital-console-go/pkg/token"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the console HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPathFlag(cmd))
		},
	}
}

func runServe(configPath string) error {
	// 1. 初始化配置
	loaded, err := config.Load(configPath)
	if err != nil {
		return err
	}
	config.Conf = *loaded
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	// 3. 初始化审计库和可选的 Redis / MinIO / Kafka
	database.InitDB(cfg.Database)

	var archive repository.TranscriptRepository
	if cfg.Database.Redis.Enabled {
		if err := database.InitRedis(cfg.Database.Redis); err != nil {
			log.Warnf("Redis 不可用，转录归档已关闭: %v", err)
		} else {
			archive = repository.NewTranscriptRepository(database.RDB)
		}
	}

	var staging handler.StagingSource
	if cfg.MinIO.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		src, err := storage.NewMinIOSource(ctx, cfg.MinIO)
		cancel()
		if err != nil {
			log.Warnf("MinIO 不可用，暂存区已关闭: %v", err)
		} else {
			staging = src
		}
	}

	bus := event.NewBus()
	defer bus.Close()

	sinkCtx, stopSink := context.WithCancel(context.Background())
	defer stopSink()
	if cfg.Kafka.Enabled {
		sink := kafka.NewEventSink(cfg.Kafka)
		events, unsubscribe := bus.Subscribe(256)
		sinkDone := make(chan struct{})
		go func() {
			defer close(sinkDone)
			sink.Run(sinkCtx, events)
		}()
		defer func() {
			unsubscribe()
			stopSink()
			<-sinkDone
			if err := sink.Close(); err != nil {
				log.Warnf("关闭 Kafka 生产者失败: %v", err)
			}
		}()
	}

	// 4. 初始化认证（可选）
	var (
		authService   service.AuthService
		authenticator service.Authenticator
	)
	if cfg.Auth.Enabled {
		jwtManager := token.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenExpireHours)
		authService = service.NewAuthService(cfg.Auth, jwtManager)
		authenticator = service.NewTokenAuthenticator(jwtManager)
		log.Infof("操作员认证已启用, operators=%d", len(cfg.Auth.Operators))
	}

	// 5. 初始化 Service
	client := backend.NewClient(cfg.Backend)
	audit := service.NewAuditService(repository.NewAuditRepository(database.DB))
	monitor := service.NewConnectivityService(client, bus)
	sessions := service.NewSessionService(monitor, authenticator, bus)
	notifications := service.NewNotificationService(client, sessions, monitor, audit, bus)
	appointments := service.NewAppointmentService(client, sessions, monitor, notifications, audit, bus)

	services := handler.Services{
		Monitor:       monitor,
		Sessions:      sessions,
		Auth:          authService,
		Authenticator: authenticator,
		Chat:          service.NewChatService(client, sessions, monitor, appointments, archive, bus, cfg.Workflow),
		Documents:     service.NewDocumentService(client, sessions, monitor, audit, bus, cfg.Workflow),
		Appointments:  appointments,
		Notifications: notifications,
		History:       service.NewHistoryService(client, sessions, monitor),
		Audit:         audit,
		Bus:           bus,
		Origins:       cfg.Server.AllowedOrigins,
		Staging:       staging,
		UploadTempDir: os.TempDir(),
	}

	// 启动时探测一次后端，结果只记录日志
	probeCtx, cancelProbe := context.WithTimeout(context.Background(), cfg.Backend.Timeout)
	snap := monitor.Probe(probeCtx)
	cancelProbe()
	if snap.State == model.ConnectivityConnected {
		log.Infof("后端可达: %s", cfg.Backend.BaseURL)
	} else {
		log.Warnf("后端不可达: %s, err=%s", cfg.Backend.BaseURL, snap.LastError)
	}

	// 6. 设置路由并启动服务
	r, documentHandler := handler.NewRouter(cfg.Server.Mode, services)
	defer documentHandler.Cleanup()

	srv := &http.Server{
		Addr:    net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler: r,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	// 等待中断信号以优雅地关闭服务器
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serveErr:
		return fmt.Errorf("服务启动失败: %w", err)
	}
	log.Info("正在关闭服务...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("服务强制关闭: %w", err)
	}

	log.Info("服务已退出")
	return nil
}
