package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ideaforge-api/internal/domain/entity"
	"ideaforge-api/internal/domain/repository"
)

// GeneratedProjectRepository 生成结果仓储实现
type GeneratedProjectRepository struct {
	client *Client
}

// NewGeneratedProjectRepository 创建生成结果仓储
func NewGeneratedProjectRepository(client *Client) *GeneratedProjectRepository {
	return &GeneratedProjectRepository{client: client}
}

// upsertColumns 冲突时覆盖的列，id / created_at / build_request_id 保持首次写入的值
var upsertColumns = []string{
	"title", "market_research", "project_charter", "prd", "tech_spec", "code_files",
	"preview_url", "github_url", "status", "error_message", "options", "generated_by",
	"updated_at", "completed_at",
}

// Upsert 按 project_slug 插入或覆盖，回填实际行 ID
func (r *GeneratedProjectRepository) Upsert(ctx context.Context, project *entity.GeneratedProject) error {
	ctx, span := tracer.Start(ctx, "postgres.GeneratedProjectRepository.Upsert")
	defer span.End()

	db := getDB(ctx, r.client.db)

	if project.ID == "" {
		project.ID = uuid.NewString()
	}
	if project.CodeFiles == nil {
		project.CodeFiles = entity.CodeFiles{}
	}

	err := db.Clauses(
		clause.OnConflict{
			Columns:   []clause.Column{{Name: "project_slug"}},
			DoUpdates: clause.AssignmentColumns(upsertColumns),
		},
		clause.Returning{Columns: []clause.Column{{Name: "id"}, {Name: "created_at"}}},
	).Create(project).Error
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to upsert generated project: %w", err)
	}
	return nil
}

// GetBySlug 根据 slug 获取
func (r *GeneratedProjectRepository) GetBySlug(ctx context.Context, slug string) (*entity.GeneratedProject, error) {
	ctx, span := tracer.Start(ctx, "postgres.GeneratedProjectRepository.GetBySlug")
	defer span.End()

	db := getDB(ctx, r.client.db)

	var project entity.GeneratedProject
	if err := db.First(&project, "project_slug = ?", slug).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get generated project: %w", err)
	}
	return &project, nil
}

// UpdateStatus 只更新状态与错误信息
func (r *GeneratedProjectRepository) UpdateStatus(ctx context.Context, slug string, status entity.GenerationStatus, errorMessage string) error {
	ctx, span := tracer.Start(ctx, "postgres.GeneratedProjectRepository.UpdateStatus")
	defer span.End()

	db := getDB(ctx, r.client.db)

	err := db.Model(&entity.GeneratedProject{}).
		Where("project_slug = ?", slug).
		Updates(map[string]interface{}{
			"status":        string(status),
			"error_message": errorMessage,
		}).Error
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update generated project status: %w", err)
	}
	return nil
}

// ListCompleted 分页列出已完成项目，按完成时间倒序，不加载大字段
func (r *GeneratedProjectRepository) ListCompleted(ctx context.Context, pagination repository.Pagination) (*repository.PagedResult[*entity.GeneratedProject], error) {
	ctx, span := tracer.Start(ctx, "postgres.GeneratedProjectRepository.ListCompleted")
	defer span.End()

	db := getDB(ctx, r.client.db).
		Model(&entity.GeneratedProject{}).
		Where("status = ?", string(entity.GenerationStatusCompleted))

	var total int64
	if err := db.Count(&total).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to count generated projects: %w", err)
	}

	var projects []*entity.GeneratedProject
	err := db.
		Omit("market_research", "project_charter", "prd", "tech_spec", "code_files").
		Order("completed_at DESC").
		Offset(pagination.Offset()).
		Limit(pagination.Limit()).
		Find(&projects).Error
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list generated projects: %w", err)
	}

	return repository.NewPagedResult(projects, total, pagination), nil
}
