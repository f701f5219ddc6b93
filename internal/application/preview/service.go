package preview

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ideaforge-api/internal/domain/entity"
	"ideaforge-api/internal/domain/repository"
	apperrors "ideaforge-api/pkg/errors"
)

const defaultCacheTTL = 10 * time.Minute

// DocumentCache 预览文档读穿缓存
type DocumentCache interface {
	GetOrLoadSafe(ctx context.Context, key string, ttl time.Duration, loader func() (interface{}, error)) ([]byte, error)
}

// Service 读取已完成的项目并渲染预览
type Service struct {
	projects repository.GeneratedProjectRepository
	renderer *Renderer
	cache    DocumentCache
	ttl      time.Duration
}

// NewService 创建预览服务；cache 为 nil 时每次实时渲染
func NewService(projects repository.GeneratedProjectRepository, renderer *Renderer, cache DocumentCache, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Service{projects: projects, renderer: renderer, cache: cache, ttl: ttl}
}

// CacheKey 预览文档缓存键；项目重新生成后由生成流水线清理
func CacheKey(slug string) string {
	return "preview:" + slug
}

// Render 返回项目的预览文档
func (s *Service) Render(ctx context.Context, slug string) (string, error) {
	load := func() (interface{}, error) {
		project, err := s.projects.GetBySlug(ctx, slug)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to load generated project")
		}
		if project == nil || project.Status != entity.GenerationStatusCompleted {
			return nil, apperrors.ErrProjectNotFound
		}
		if len(project.CodeFiles) == 0 {
			return nil, apperrors.ErrNoCodeFiles
		}
		return s.renderer.Render(ctx, project.CodeFiles, project.Title)
	}

	if s.cache == nil {
		doc, err := load()
		if err != nil {
			return "", err
		}
		return doc.(string), nil
	}

	raw, err := s.cache.GetOrLoadSafe(ctx, CacheKey(slug), s.ttl, load)
	if err != nil {
		return "", err
	}
	var doc string
	if err := json.Unmarshal(raw, &doc); err != nil {
		return "", fmt.Errorf("decode cached preview: %w", err)
	}
	return doc, nil
}
