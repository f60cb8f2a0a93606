package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"hospital-console-go/internal/service"
)

// AdminOnly 检查当前控制台会话是否为 admin 角色。
func AdminOnly(sessions service.SessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := sessions.RequireAdmin(); err != nil {
			status := http.StatusForbidden
			if errors.Is(err, service.ErrNoSession) {
				status = http.StatusConflict
			}
			c.AbortWithStatusJSON(status, gin.H{"code": status, "message": service.UserMessage(err), "data": nil})
			return
		}
		c.Next()
	}
}
