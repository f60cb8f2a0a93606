package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"hospital-console-go/internal/model"
	"hospital-console-go/internal/service"
)

// AdminHandler 负责预约分诊、通知、历史记录与审计相关的 API 请求。
type AdminHandler struct {
	appointments  service.AppointmentService
	notifications service.NotificationService
	history       service.HistoryService
	audit         service.AuditService
}

// NewAdminHandler 创建一个新的 AdminHandler 实例。
func NewAdminHandler(
	appointments service.AppointmentService,
	notifications service.NotificationService,
	history service.HistoryService,
	audit service.AuditService,
) *AdminHandler {
	return &AdminHandler{
		appointments:  appointments,
		notifications: notifications,
		history:       history,
		audit:         audit,
	}
}

// Appointments 按 status 查询预约；缺省为 pending，all 表示全部。
func (h *AdminHandler) Appointments(c *gin.Context) {
	items, err := h.appointments.List(c.Request.Context(), model.AppointmentFilter(c.Query("status")))
	if err != nil {
		fail(c, err, nil)
		return
	}
	snap := h.appointments.Snapshot()
	ok(c, gin.H{"filter": snap.Filter, "appointments": items})
}

// ActionRequest 定义了处理预约 API 的请求体结构。
type ActionRequest struct {
	Action     string `json:"action" binding:"required"`
	AdminNotes string `json:"admin_notes"`
}

// Act 接受或拒绝一个预约。
func (h *AdminHandler) Act(c *gin.Context) {
	var req ActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "action is required")
		return
	}
	result, err := h.appointments.Act(c.Request.Context(), c.Param("id"), model.AppointmentAction(req.Action), req.AdminNotes)
	if err != nil {
		fail(c, err, nil)
		return
	}
	ok(c, result)
}

// Statistics 返回聚合统计。
func (h *AdminHandler) Statistics(c *gin.Context) {
	stats, err := h.appointments.Statistics(c.Request.Context())
	if err != nil {
		fail(c, err, nil)
		return
	}
	ok(c, stats)
}

// Notifications 返回通知列表与未读数。
func (h *AdminHandler) Notifications(c *gin.Context) {
	list, err := h.notifications.List(c.Request.Context())
	if err != nil {
		fail(c, err, nil)
		return
	}
	ok(c, list)
}

// MarkRead 标记通知为已读并返回刷新后的列表。
func (h *AdminHandler) MarkRead(c *gin.Context) {
	list, err := h.notifications.MarkRead(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err, list)
		return
	}
	ok(c, list)
}

// History 按 user_role 查询历史记录；缺省或 all 表示全部角色。
func (h *AdminHandler) History(c *gin.Context) {
	records, err := h.history.List(c.Request.Context(), c.DefaultQuery("user_role", "all"))
	if err != nil {
		fail(c, err, nil)
		return
	}
	ok(c, records)
}

// Audit 返回最近的管理操作审计记录。
func (h *AdminHandler) Audit(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil {
		badRequest(c, "limit must be a number")
		return
	}
	entries, err := h.audit.Recent(limit)
	if err != nil {
		fail(c, err, nil)
		return
	}
	ok(c, entries)
}

// SessionAudit 返回某个控制台会话内的审计记录，按发生顺序排列。
func (h *AdminHandler) SessionAudit(c *gin.Context) {
	entries, err := h.audit.BySession(c.Param("sessionId"))
	if err != nil {
		fail(c, err, nil)
		return
	}
	ok(c, entries)
}
