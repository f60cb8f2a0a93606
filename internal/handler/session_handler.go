package handler

import (
	"github.com/gin-gonic/gin"

	"hospital-console-go/internal/middleware"
	"hospital-console-go/internal/model"
	"hospital-console-go/internal/service"
	"hospital-console-go/pkg/log"
)

// SessionHandler 负责连通性、操作员登录与会话生命周期相关的请求。
type SessionHandler struct {
	sessions service.SessionService
	monitor  service.ConnectivityService
	auth     service.AuthService
}

// NewSessionHandler 创建 SessionHandler。未启用认证时 auth 为 nil。
func NewSessionHandler(sessions service.SessionService, monitor service.ConnectivityService, auth service.AuthService) *SessionHandler {
	return &SessionHandler{sessions: sessions, monitor: monitor, auth: auth}
}

// Connectivity 返回最近一次探测的结果。
func (h *SessionHandler) Connectivity(c *gin.Context) {
	ok(c, h.monitor.Snapshot())
}

// Probe 重新探测后端。探测失败不是请求错误，结果在 data.state 中。
func (h *SessionHandler) Probe(c *gin.Context) {
	ok(c, h.monitor.Probe(c.Request.Context()))
}

// LoginRequest 定义了操作员登录 API 的请求体结构。
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login 为 staff/admin 操作员签发令牌。
func (h *SessionHandler) Login(c *gin.Context) {
	if h.auth == nil {
		fail(c, service.ErrInvalidState, nil)
		return
	}
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "username and password are required")
		return
	}
	token, role, err := h.auth.Login(req.Username, req.Password)
	if err != nil {
		log.Warnf("Login: 操作员 %s 登录失败", req.Username)
		fail(c, err, nil)
		return
	}
	ok(c, gin.H{"token": token, "role": role})
}

// Current 返回当前会话。
func (h *SessionHandler) Current(c *gin.Context) {
	ok(c, h.sessions.Current())
}

// SelectRoleRequest 定义了选择角色 API 的请求体结构。
type SelectRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

// SelectRole 选择角色；staff/admin 在启用认证时需要 Authorization 头。
func (h *SessionHandler) SelectRole(c *gin.Context) {
	var req SelectRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "role is required")
		return
	}
	sess, err := h.sessions.SelectRole(c.Request.Context(), model.Role(req.Role), c.GetString(middleware.BearerTokenKey))
	if err != nil {
		fail(c, err, sess)
		return
	}
	ok(c, sess)
}

// ProfileRequest 定义了提交个人资料 API 的请求体结构。
type ProfileRequest struct {
	Name        string `json:"name"`
	PhoneNumber string `json:"phone_number"`
}

// SubmitProfile 提交患者或访客的姓名与电话。
func (h *SessionHandler) SubmitProfile(c *gin.Context) {
	var req ProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid profile payload")
		return
	}
	sess, err := h.sessions.SubmitProfile(req.Name, req.PhoneNumber)
	if err != nil {
		fail(c, err, sess)
		return
	}
	ok(c, sess)
}

// Switch 销毁当前会话并回到角色选择。
func (h *SessionHandler) Switch(c *gin.Context) {
	ok(c, h.sessions.SwitchRole())
}
