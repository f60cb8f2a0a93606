package handler

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"hospital-console-go/internal/event"
	"hospital-console-go/pkg/log"
)

const (
	eventBuffer  = 64
	writeTimeout = 5 * time.Second
)

// EventHandler 把工作流事件通过 WebSocket 推送给界面。
type EventHandler struct {
	bus      *event.Bus
	origins  map[string]bool
	upgrader websocket.Upgrader
}

// NewEventHandler 创建一个新的 EventHandler。同源连接总是允许；
// allowedOrigins 列出额外允许的浏览器来源（scheme://host[:port]）。
func NewEventHandler(bus *event.Bus, allowedOrigins []string) *EventHandler {
	h := &EventHandler{bus: bus, origins: make(map[string]bool, len(allowedOrigins))}
	for _, o := range allowedOrigins {
		if o = strings.TrimRight(strings.ToLower(strings.TrimSpace(o)), "/"); o != "" {
			h.origins[o] = true
		}
	}
	h.upgrader = websocket.Upgrader{CheckOrigin: h.checkOrigin}
	return h
}

// checkOrigin 没有 Origin 头的请求来自非浏览器客户端，照常放行。
func (h *EventHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	if strings.EqualFold(u.Host, r.Host) {
		return true
	}
	if h.origins[strings.ToLower(u.Scheme+"://"+u.Host)] {
		return true
	}
	log.Warnf("拒绝跨域的事件流连接: origin=%s, host=%s", origin, r.Host)
	return false
}

// Handle 处理一个传入的 WebSocket 连接，直到客户端断开或总线关闭。
func (h *EventHandler) Handle(c *gin.Context) {
	// 先订阅再升级，握手完成后发生的事件不会丢失。
	events, cancel := h.bus.Subscribe(eventBuffer)
	defer cancel()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	defer conn.Close()
	log.Infof("事件流已连接: %s", c.ClientIP())

	// 客户端不发送业务消息；读循环只用来发现断开。
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			log.Infof("事件流已断开: %s", c.ClientIP())
			return
		case e, open := <-events:
			if !open {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
					time.Now().Add(writeTimeout))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(e); err != nil {
				log.Warnf("推送事件失败: %v", err)
				return
			}
		}
	}
}
