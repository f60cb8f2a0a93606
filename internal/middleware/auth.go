package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"hospital-console-go/internal/model"
	"hospital-console-go/internal/service"
	"hospital-console-go/pkg/log"
)

// BearerTokenKey 是 BearerToken 写入 gin.Context 的键。
const BearerTokenKey = "bearerToken"

// BearerToken 从 Authorization 头中取出操作员令牌放入上下文。
// 浏览器的 WebSocket 无法设置请求头，因此也接受 access_token 查询参数。
// 令牌是否必需由后续中间件或会话管理器决定，这里不做拦截。
func BearerToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		const bearerPrefix = "Bearer "
		if strings.HasPrefix(authHeader, bearerPrefix) {
			c.Set(BearerTokenKey, strings.TrimSpace(strings.TrimPrefix(authHeader, bearerPrefix)))
		} else if q := c.Query("access_token"); q != "" {
			c.Set(BearerTokenKey, q)
		}
		c.Next()
	}
}

// OperatorAuth 要求 staff 或 admin 操作员令牌。auth 为 nil（未启用认证）时直接放行。
// 需要放在 BearerToken 之后。
func OperatorAuth(auth service.Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if auth == nil {
			c.Next()
			return
		}
		// admin 令牌同样可以通过 staff 校验
		if _, err := auth.Authenticate(c.Request.Context(), c.GetString(BearerTokenKey), model.RoleStaff); err != nil {
			log.Warnf("拒绝未认证的请求: %s %s, err=%v", c.Request.Method, c.Request.URL.Path, err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": service.UserMessage(err), "data": nil})
			return
		}
		c.Next()
	}
}
