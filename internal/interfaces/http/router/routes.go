package router

import (
	"github.com/gin-gonic/gin"

	"ideaforge-api/internal/interfaces/http/middleware"
)

// RegisterV1Routes 注册 v1 版本路由
func RegisterV1Routes(v1 *gin.RouterGroup, h RouterHandlers, auth middleware.AuthConfig, generateLimit gin.HandlerFunc) {
	requireAuth := middleware.Auth(auth)

	// 生成
	if h.Generation != nil {
		v1.POST("/generate", requireAuth, generateLimit, h.Generation.Generate)
		v1.GET("/build-requests/:id/generation", requireAuth, h.Generation.GetStatus)
	}

	// 已生成项目（公开只读）
	if h.Project != nil {
		projects := v1.Group("/projects")
		{
			projects.GET("", h.Project.ListProjects)
			projects.GET("/:slug", h.Project.GetProject)
			projects.GET("/:slug/preview", h.Project.Preview)
		}
	}

	// 支付回调，签名校验代替用户认证
	if h.Webhook != nil {
		v1.POST("/webhooks/payment", h.Webhook.Payment)
	}
}
