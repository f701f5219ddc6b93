// Package middleware 提供 HTTP 中间件
package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"ideaforge-api/pkg/logger"
	"ideaforge-api/pkg/utils"
)

// AuthConfig 认证配置
type AuthConfig struct {
	// Secret 外部认证服务的 JWT 密钥
	Secret   string
	Issuer   string
	Audience string
}

// Auth 校验外部认证服务签发的 Bearer 令牌，并注入 user_id
func Auth(cfg AuthConfig) gin.HandlerFunc {
	jwtManager := utils.NewJWTManager(cfg.Secret, cfg.Issuer, cfg.Audience)

	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			abortUnauthorized(c, "invalid authorization format")
			return
		}

		claims, err := jwtManager.ParseToken(strings.TrimSpace(parts[1]))
		if err != nil {
			msg := "invalid token"
			if errors.Is(err, utils.ErrExpiredToken) {
				msg = "token expired"
			}
			abortUnauthorized(c, msg)
			return
		}
		if claims.UserID() == "" {
			abortUnauthorized(c, "token has no subject")
			return
		}

		c.Set("user_id", claims.UserID())
		c.Set("role", claims.Role)
		c.Request = c.Request.WithContext(logger.WithContext(c.Request.Context(), logger.UserIDKey, claims.UserID()))

		c.Next()
	}
}

// abortUnauthorized 终止请求并返回 401
func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"code":     401,
		"message":  msg,
		"error":    msg,
		"trace_id": c.GetString("trace_id"),
	})
}
