package repository

import (
	"context"

	"ideaforge-api/internal/domain/entity"
)

// GeneratedProjectRepository 生成结果仓储接口，按 project_slug 唯一
type GeneratedProjectRepository interface {
	// Upsert 按 project_slug 插入或整体覆盖
	Upsert(ctx context.Context, project *entity.GeneratedProject) error

	// GetBySlug 根据 slug 获取，不存在时返回 nil, nil
	GetBySlug(ctx context.Context, slug string) (*entity.GeneratedProject, error)

	// UpdateStatus 只更新状态与错误信息，不触碰文档字段
	UpdateStatus(ctx context.Context, slug string, status entity.GenerationStatus, errorMessage string) error

	// ListCompleted 分页列出已完成的项目
	ListCompleted(ctx context.Context, pagination Pagination) (*PagedResult[*entity.GeneratedProject], error)
}
