package handler

import (
	"github.com/gin-gonic/gin"

	"hospital-console-go/internal/service"
)

// ChatHandler 负责转录、消息发送与快捷操作。
type ChatHandler struct {
	chat service.ChatService
}

// NewChatHandler 创建一个新的 ChatHandler。
func NewChatHandler(chat service.ChatService) *ChatHandler {
	return &ChatHandler{chat: chat}
}

// Transcript 返回当前会话的完整转录。
func (h *ChatHandler) Transcript(c *gin.Context) {
	messages, err := h.chat.Transcript()
	if err != nil {
		fail(c, err, nil)
		return
	}
	ok(c, gin.H{"messages": messages, "typing": h.chat.Typing()})
}

// SendRequest 定义了发送消息 API 的请求体结构。
type SendRequest struct {
	Message string `json:"message"`
}

// Send 发送一条消息并等待助手回复。请求失败时 data 中是追加到转录里的错误消息。
func (h *ChatHandler) Send(c *gin.Context) {
	var req SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid message payload")
		return
	}
	reply, err := h.chat.Send(c.Request.Context(), req.Message)
	if err != nil {
		fail(c, err, reply)
		return
	}
	ok(c, reply)
}

// QuickActions 返回快捷操作面板。
func (h *ChatHandler) QuickActions(c *gin.Context) {
	panel, err := h.chat.QuickActions()
	if err != nil {
		fail(c, err, nil)
		return
	}
	ok(c, panel)
}

// SelectQuickAction 触发一个快捷操作。
func (h *ChatHandler) SelectQuickAction(c *gin.Context) {
	result, err := h.chat.SelectQuickAction(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err, result)
		return
	}
	ok(c, result)
}

// Archive 读取已归档会话的转录。
func (h *ChatHandler) Archive(c *gin.Context) {
	transcript, err := h.chat.Archived(c.Request.Context(), c.Param("sessionId"))
	if err != nil {
		fail(c, err, nil)
		return
	}
	ok(c, transcript)
}
