package repository

import (
	"context"

	"ideaforge-api/internal/domain/entity"
)

// BuildRequestRepository 构建请求仓储接口
type BuildRequestRepository interface {
	// GetByID 根据 ID 获取构建请求，不存在时返回 nil, nil
	GetByID(ctx context.Context, id string) (*entity.BuildRequest, error)

	// UpdateGenerationStatus 只更新生成状态
	UpdateGenerationStatus(ctx context.Context, id string, status entity.GenerationStatus) error

	// UpdateGenerationResult 更新生成状态与发布地址，空地址写入 NULL
	UpdateGenerationResult(ctx context.Context, id string, status entity.GenerationStatus, previewURL, githubURL string) error
}
