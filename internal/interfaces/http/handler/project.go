package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"ideaforge-api/internal/application/preview"
	"ideaforge-api/internal/domain/entity"
	"ideaforge-api/internal/domain/repository"
	"ideaforge-api/internal/interfaces/http/dto"
	apperrors "ideaforge-api/pkg/errors"
	"ideaforge-api/pkg/logger"
)

// ProjectQuery 生成结果查询
type ProjectQuery interface {
	Get(ctx context.Context, slug string) (*entity.GeneratedProject, error)
	List(ctx context.Context, pagination repository.Pagination) (*repository.PagedResult[*entity.GeneratedProject], error)
}

// PreviewRenderer 渲染在线预览文档
type PreviewRenderer interface {
	Render(ctx context.Context, slug string) (string, error)
}

// ProjectHandler 项目处理器
type ProjectHandler struct {
	projects ProjectQuery
	preview  PreviewRenderer
}

// NewProjectHandler 创建项目处理器
func NewProjectHandler(projects ProjectQuery, preview PreviewRenderer) *ProjectHandler {
	return &ProjectHandler{projects: projects, preview: preview}
}

// ListProjects 已完成项目列表
// @Summary 已完成项目列表
// @Tags Projects
// @Produce json
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Success 200 {object} dto.Response[dto.ProjectListResponse]
// @Router /v1/projects [get]
func (h *ProjectHandler) ListProjects(c *gin.Context) {
	page, err := h.projects.List(c.Request.Context(), dto.BindPagination(c))
	if err != nil {
		logger.Error(c.Request.Context(), "failed to list projects", err)
		dto.AppError(c, err)
		return
	}
	resp, meta := dto.ToProjectListResponse(page)
	dto.SuccessWithPage(c, resp, meta)
}

// GetProject 获取项目文档集合
// @Summary 获取项目文档
// @Tags Projects
// @Produce json
// @Param slug path string true "项目 slug"
// @Success 200 {object} dto.Response[dto.GeneratedProjectResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/projects/{slug} [get]
func (h *ProjectHandler) GetProject(c *gin.Context) {
	ctx := c.Request.Context()
	p, err := h.projects.Get(ctx, dto.BindSlug(c))
	if err != nil {
		if !apperrors.IsCode(err, apperrors.CodeProjectNotFound) {
			logger.Error(ctx, "failed to get project", err)
		}
		dto.AppError(c, err)
		return
	}
	dto.Success(c, dto.ToGeneratedProjectResponse(p, true))
}

// Preview 返回沙箱化的在线预览文档
// @Summary 在线预览
// @Description 返回可直接放入 iframe 的 HTML，响应头携带 sandbox CSP
// @Tags Projects
// @Produce html
// @Param slug path string true "项目 slug"
// @Success 200 {string} string "HTML document"
// @Failure 400 {object} dto.ErrorResponse "项目没有代码文件"
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/projects/{slug}/preview [get]
func (h *ProjectHandler) Preview(c *gin.Context) {
	ctx := c.Request.Context()
	doc, err := h.preview.Render(ctx, dto.BindSlug(c))
	if err != nil {
		if !apperrors.IsAppError(err) {
			logger.Error(ctx, "failed to render preview", err)
		}
		dto.AppError(c, err)
		return
	}

	c.Header("Content-Security-Policy", preview.SandboxPolicy)
	c.Header("X-Content-Type-Options", "nosniff")
	c.Header("Cache-Control", "no-cache")
	c.Data(200, "text/html; charset=utf-8", []byte(doc))
}
