package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"ideaforge-api/internal/domain/entity"
)

// BuildRequestRepository 构建请求仓储实现
type BuildRequestRepository struct {
	client *Client
}

// NewBuildRequestRepository 创建构建请求仓储
func NewBuildRequestRepository(client *Client) *BuildRequestRepository {
	return &BuildRequestRepository{client: client}
}

// GetByID 根据 ID 获取构建请求
func (r *BuildRequestRepository) GetByID(ctx context.Context, id string) (*entity.BuildRequest, error) {
	ctx, span := tracer.Start(ctx, "postgres.BuildRequestRepository.GetByID")
	defer span.End()

	db := getDB(ctx, r.client.db)

	var br entity.BuildRequest
	if err := db.First(&br, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get build request: %w", err)
	}
	return &br, nil
}

// UpdateGenerationStatus 只更新生成状态
func (r *BuildRequestRepository) UpdateGenerationStatus(ctx context.Context, id string, status entity.GenerationStatus) error {
	ctx, span := tracer.Start(ctx, "postgres.BuildRequestRepository.UpdateGenerationStatus")
	defer span.End()

	db := getDB(ctx, r.client.db)

	err := db.Model(&entity.BuildRequest{}).
		Where("id = ?", id).
		Update("generation_status", nullableStatus(status)).Error
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update generation status: %w", err)
	}
	return nil
}

// UpdateGenerationResult 更新生成状态与发布地址
func (r *BuildRequestRepository) UpdateGenerationResult(ctx context.Context, id string, status entity.GenerationStatus, previewURL, githubURL string) error {
	ctx, span := tracer.Start(ctx, "postgres.BuildRequestRepository.UpdateGenerationResult")
	defer span.End()

	db := getDB(ctx, r.client.db)

	err := db.Model(&entity.BuildRequest{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"generation_status": nullableStatus(status),
			"preview_url":       nullableString(previewURL),
			"github_url":        nullableString(githubURL),
		}).Error
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update generation result: %w", err)
	}
	return nil
}

// nullableStatus 未发起生成时写入 NULL
func nullableStatus(s entity.GenerationStatus) interface{} {
	if s == entity.GenerationStatusNone {
		return nil
	}
	return string(s)
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
