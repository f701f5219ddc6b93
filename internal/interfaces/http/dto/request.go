package dto

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"ideaforge-api/internal/domain/repository"
)

// BindPagination 从查询参数绑定分页，非法值回落到默认值
func BindPagination(c *gin.Context) repository.Pagination {
	return repository.NewPagination(
		parseIntWithDefault(c.Query("page"), 1),
		parseIntWithDefault(c.Query("page_size"), 20),
	)
}

// parseIntWithDefault 解析整数，失败时返回默认值
func parseIntWithDefault(s string, defaultVal int) int {
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}

// BindSlug 获取路径中的项目 slug
func BindSlug(c *gin.Context) string {
	return strings.ToLower(strings.TrimSpace(c.Param("slug")))
}

// BindBuildRequestID 获取路径中的构建请求 ID
func BindBuildRequestID(c *gin.Context) string {
	return strings.TrimSpace(c.Param("id"))
}
