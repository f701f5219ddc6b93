// Package handler 提供 HTTP 请求处理器
package handler

import (
	"context"
	"errors"
	"io"

	"github.com/gin-gonic/gin"

	"ideaforge-api/internal/application/generation"
	"ideaforge-api/internal/domain/entity"
	"ideaforge-api/internal/infrastructure/messaging"
	"ideaforge-api/internal/interfaces/http/dto"
	apperrors "ideaforge-api/pkg/errors"
	"ideaforge-api/pkg/logger"
)

// Generator 同步执行一次生成
type Generator interface {
	Generate(ctx context.Context, req generation.Request) (*generation.Result, error)
}

// GenerationQueue 异步生成队列
type GenerationQueue interface {
	PublishGeneration(ctx context.Context, msg *messaging.GenerationMessage) (string, error)
}

// BuildRequestStatus 查询与登记构建请求的生成状态
type BuildRequestStatus interface {
	GenerationStatus(ctx context.Context, buildRequestID string) (*entity.BuildRequest, error)
	// MarkQueued 异步投递成功后登记，轮询不必等到 worker 接手
	MarkQueued(ctx context.Context, buildRequestID string) error
}

// GenerationHandler 生成处理器
type GenerationHandler struct {
	generator    Generator
	queue        GenerationQueue
	status       BuildRequestStatus
	previewChars int
}

// NewGenerationHandler 创建生成处理器，queue 为 nil 时不支持异步模式；
// previewChars 为同步响应中每个文档的预览长度
func NewGenerationHandler(generator Generator, queue GenerationQueue, status BuildRequestStatus, previewChars int) *GenerationHandler {
	return &GenerationHandler{generator: generator, queue: queue, status: status, previewChars: previewChars}
}

// Generate 生成文档与代码原型
// @Summary 生成项目文档
// @Description 按选项运行各 agent，同步返回生成结果；async=true 时投递到队列并返回 202
// @Tags Generation
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.GenerateRequest true "生成请求"
// @Success 200 {object} dto.GenerateResponse
// @Success 202 {object} dto.Response[dto.GenerateAcceptedResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 401 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /v1/generate [post]
func (h *GenerationHandler) Generate(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if errors.Is(err, io.EOF) {
			dto.BadRequest(c, "request body is required")
			return
		}
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	opts, err := req.ToOptions()
	if err != nil {
		dto.BadRequest(c, err.Error())
		return
	}

	userID := c.GetString("user_id")
	ctx = logger.WithContext(ctx, logger.BuildRequestIDKey, req.BuildRequestID)

	if req.Async {
		h.enqueue(ctx, c, req.BuildRequestID, userID, opts)
		return
	}

	result, err := h.generator.Generate(ctx, generation.Request{
		BuildRequestID: req.BuildRequestID,
		UserID:         userID,
		Options:        opts,
	})
	if err != nil {
		logger.Warn(ctx, "generation request failed", "error", err.Error())
		dto.AppError(c, err)
		return
	}

	c.JSON(200, dto.GenerateResponse{
		Success: true,
		Project: dto.ToGeneratedProjectPreview(result.Project, h.previewChars),
	})
}

// enqueue 校验构建请求存在后投递异步生成
func (h *GenerationHandler) enqueue(ctx context.Context, c *gin.Context, buildRequestID, userID string, opts *entity.GenerationOptions) {
	if h.queue == nil {
		dto.Error(c, 501, "async generation is not enabled")
		return
	}
	if _, err := h.status.GenerationStatus(ctx, buildRequestID); err != nil {
		dto.AppError(c, err)
		return
	}

	msg := &messaging.GenerationMessage{
		BuildRequestID: buildRequestID,
		UserID:         userID,
		Options:        entity.DefaultGenerationOptions(),
	}
	if opts != nil {
		msg.Options = *opts
	}

	id, err := h.queue.PublishGeneration(ctx, msg)
	if err != nil {
		logger.Error(ctx, "failed to enqueue generation", err)
		dto.AppError(c, apperrors.Wrap(err, apperrors.CodeQueueError, "failed to enqueue generation"))
		return
	}

	if err := h.status.MarkQueued(ctx, buildRequestID); err != nil {
		logger.Warn(ctx, "failed to mark build request queued", "error", err.Error())
	}

	logger.Info(ctx, "generation enqueued", "message_id", id)
	dto.Accepted(c, dto.GenerateAcceptedResponse{
		BuildRequestID: buildRequestID,
		MessageID:      id,
		StatusURL:      "/v1/build-requests/" + buildRequestID + "/generation",
	})
}

// GetStatus 查询生成状态
// @Summary 查询生成状态
// @Description 客户端轮询使用，返回 generation_status 与发布地址
// @Tags Generation
// @Produce json
// @Security BearerAuth
// @Param id path string true "构建请求 ID"
// @Success 200 {object} dto.Response[dto.GenerationStatusResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/build-requests/{id}/generation [get]
func (h *GenerationHandler) GetStatus(c *gin.Context) {
	br, err := h.status.GenerationStatus(c.Request.Context(), dto.BindBuildRequestID(c))
	if err != nil {
		if apperrors.IsCode(err, apperrors.CodeBuildRequestNotFound) {
			dto.NotFound(c, "build request not found")
			return
		}
		logger.Error(c.Request.Context(), "failed to get generation status", err)
		dto.AppError(c, err)
		return
	}
	dto.Success(c, dto.ToGenerationStatusResponse(br))
}
