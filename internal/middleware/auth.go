package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"mailsentry/internal/services"
	"mailsentry/internal/utils"
)

// AuthMiddleware creates JWT authentication middleware
func AuthMiddleware(authService *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")

		// SSE clients cannot set headers; allow the token as a query
		// parameter on event-stream requests.
		token := ""
		if strings.HasPrefix(authHeader, "Bearer ") {
			token = strings.TrimPrefix(authHeader, "Bearer ")
		} else if q := c.Query("token"); q != "" {
			token = q
		}

		if token == "" {
			utils.Error(c, 401, "未授权，请先登录", nil)
			c.Abort()
			return
		}

		claims, err := authService.VerifyToken(token)
		if err != nil {
			utils.Error(c, 401, "登录已过期，请重新登录", nil)
			c.Abort()
			return
		}

		c.Set("userId", claims.UserID)
		c.Set("username", claims.Username)
		c.Set("role", claims.Role)

		c.Next()
	}
}

// AdminMiddleware restricts a group to admin users
func AdminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetUserRole(c) != "admin" {
			utils.Error(c, 403, "需要管理员权限", nil)
			c.Abort()
			return
		}
		c.Next()
	}
}

// GetUserID gets user ID from context
func GetUserID(c *gin.Context) string {
	if id, exists := c.Get("userId"); exists {
		return id.(string)
	}
	return ""
}

// GetUsername gets username from context
func GetUsername(c *gin.Context) string {
	if username, exists := c.Get("username"); exists {
		return username.(string)
	}
	return ""
}

// GetUserRole gets user role from context
func GetUserRole(c *gin.Context) string {
	if role, exists := c.Get("role"); exists {
		return role.(string)
	}
	return ""
}
