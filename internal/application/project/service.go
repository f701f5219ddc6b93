// Package project 提供生成结果的只读查询
package project

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ideaforge-api/internal/domain/entity"
	"ideaforge-api/internal/domain/repository"
	apperrors "ideaforge-api/pkg/errors"
)

// Cache 读穿缓存
type Cache interface {
	GetOrLoadSafe(ctx context.Context, key string, ttl time.Duration, loader func() (interface{}, error)) ([]byte, error)
}

// CacheKey 项目缓存键
func CacheKey(slug string) string {
	return "project:" + slug
}

// Service 生成结果查询服务
type Service struct {
	projects repository.GeneratedProjectRepository
	builds   repository.BuildRequestRepository
	cache    Cache
	ttl      time.Duration
}

// NewService 创建查询服务，cache 为 nil 时直接读库
func NewService(projects repository.GeneratedProjectRepository, builds repository.BuildRequestRepository, cache Cache, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Service{projects: projects, builds: builds, cache: cache, ttl: ttl}
}

// Get 按 slug 获取已完成的项目；生成中或失败的项目视为不存在
func (s *Service) Get(ctx context.Context, slug string) (*entity.GeneratedProject, error) {
	load := func() (interface{}, error) {
		p, err := s.projects.GetBySlug(ctx, slug)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to load generated project")
		}
		if p == nil || p.Status != entity.GenerationStatusCompleted {
			return nil, apperrors.ErrProjectNotFound
		}
		return p, nil
	}

	if s.cache == nil {
		v, err := load()
		if err != nil {
			return nil, err
		}
		return v.(*entity.GeneratedProject), nil
	}

	raw, err := s.cache.GetOrLoadSafe(ctx, CacheKey(slug), s.ttl, load)
	if err != nil {
		return nil, err
	}
	var p entity.GeneratedProject
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode cached project: %w", err)
	}
	return &p, nil
}

// List 分页列出已完成项目，不走缓存
func (s *Service) List(ctx context.Context, pagination repository.Pagination) (*repository.PagedResult[*entity.GeneratedProject], error) {
	page, err := s.projects.ListCompleted(ctx, pagination)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to list generated projects")
	}
	return page, nil
}

// GenerationStatus 返回构建请求的生成状态，供客户端轮询
func (s *Service) GenerationStatus(ctx context.Context, buildRequestID string) (*entity.BuildRequest, error) {
	br, err := s.builds.GetByID(ctx, buildRequestID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to load build request")
	}
	if br == nil {
		return nil, apperrors.ErrBuildRequestNotFound
	}
	return br, nil
}

// MarkQueued 异步生成已投递，构建请求进入 processing
func (s *Service) MarkQueued(ctx context.Context, buildRequestID string) error {
	if err := s.builds.UpdateGenerationStatus(ctx, buildRequestID, entity.GenerationStatusProcessing); err != nil {
		return apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to mark build request queued")
	}
	return nil
}
