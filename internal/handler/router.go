package handler

import (
	"github.com/gin-gonic/gin"

	"hospital-console-go/internal/event"
	"hospital-console-go/internal/middleware"
	"hospital-console-go/internal/service"
)

// Services 汇总路由需要的全部服务。Auth、Authenticator 与 Staging 可以为 nil。
type Services struct {
	Monitor       service.ConnectivityService
	Sessions      service.SessionService
	Auth          service.AuthService
	Authenticator service.Authenticator
	Chat          service.ChatService
	Documents     service.DocumentService
	Appointments  service.AppointmentService
	Notifications service.NotificationService
	History       service.HistoryService
	Audit         service.AuditService
	Bus           *event.Bus
	Origins       []string
	Staging       StagingSource
	UploadTempDir string
}

// NewRouter 创建 gin 引擎并注册控制台 API。返回的 DocumentHandler 需要在退出时 Cleanup。
func NewRouter(mode string, s Services) (*gin.Engine, *DocumentHandler) {
	gin.SetMode(mode)
	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery())

	sessionHandler := NewSessionHandler(s.Sessions, s.Monitor, s.Auth)
	chatHandler := NewChatHandler(s.Chat)
	documentHandler := NewDocumentHandler(s.Documents, s.Staging, s.UploadTempDir)
	adminHandler := NewAdminHandler(s.Appointments, s.Notifications, s.History, s.Audit)

	apiV1 := r.Group("/api/v1")
	{
		apiV1.GET("/connectivity", sessionHandler.Connectivity)
		apiV1.POST("/connectivity/probe", sessionHandler.Probe)
		apiV1.POST("/auth/login", sessionHandler.Login)

		session := apiV1.Group("/session")
		session.Use(middleware.BearerToken())
		{
			session.GET("", sessionHandler.Current)
			session.POST("/role", sessionHandler.SelectRole)
			session.POST("/profile", sessionHandler.SubmitProfile)
			session.POST("/switch", sessionHandler.Switch)
		}

		chat := apiV1.Group("/chat")
		{
			chat.GET("/transcript", chatHandler.Transcript)
			chat.POST("/messages", chatHandler.Send)
			chat.GET("/quick-actions", chatHandler.QuickActions)
			chat.POST("/quick-actions/:id", chatHandler.SelectQuickAction)
		}

		// 操作员路由组：事件流与历史转录含患者信息，启用认证时必须携带操作员令牌
		operator := apiV1.Group("")
		operator.Use(middleware.BearerToken(), middleware.OperatorAuth(s.Authenticator))
		{
			operator.GET("/chat/archive/:sessionId", chatHandler.Archive)
			if s.Bus != nil {
				operator.GET("/events", NewEventHandler(s.Bus, s.Origins).Handle)
			}
		}

		// 管理员路由组：当前会话必须是 admin
		admin := apiV1.Group("/admin")
		admin.Use(middleware.AdminOnly(s.Sessions))
		{
			admin.GET("/status", documentHandler.Status)

			documents := admin.Group("/documents")
			{
				documents.GET("", documentHandler.List)
				documents.GET("/staging", documentHandler.Staging)
				documents.POST("/selection", documentHandler.Select)
				documents.DELETE("/selection", documentHandler.Clear)
				documents.POST("/upload", documentHandler.Upload)
				documents.GET("/upload", documentHandler.Progress)
				documents.POST("/reload", documentHandler.Reload)
			}

			admin.GET("/appointments", adminHandler.Appointments)
			admin.POST("/appointments/:id/action", adminHandler.Act)
			admin.GET("/statistics", adminHandler.Statistics)
			admin.GET("/notifications", adminHandler.Notifications)
			admin.POST("/notifications/:id/read", adminHandler.MarkRead)
			admin.GET("/history", adminHandler.History)
			admin.GET("/audit", adminHandler.Audit)
			admin.GET("/audit/:sessionId", adminHandler.SessionAudit)
		}
	}
	return r, documentHandler
}
