package project

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ideaforge-api/internal/domain/entity"
	"ideaforge-api/internal/domain/repository"
	apperrors "ideaforge-api/pkg/errors"
)

type stubProjects struct {
	repository.GeneratedProjectRepository
	items map[string]*entity.GeneratedProject
	gets  int
	err   error
}

func (s *stubProjects) GetBySlug(_ context.Context, slug string) (*entity.GeneratedProject, error) {
	s.gets++
	if s.err != nil {
		return nil, s.err
	}
	return s.items[slug], nil
}

func (s *stubProjects) ListCompleted(_ context.Context, p repository.Pagination) (*repository.PagedResult[*entity.GeneratedProject], error) {
	var out []*entity.GeneratedProject
	for _, item := range s.items {
		if item.Status == entity.GenerationStatusCompleted {
			out = append(out, item)
		}
	}
	return repository.NewPagedResult(out, int64(len(out)), p), nil
}

type stubBuilds struct {
	repository.BuildRequestRepository
	items     map[string]*entity.BuildRequest
	updateErr error
}

func (s *stubBuilds) GetByID(_ context.Context, id string) (*entity.BuildRequest, error) {
	return s.items[id], nil
}

func (s *stubBuilds) UpdateGenerationStatus(_ context.Context, id string, status entity.GenerationStatus) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	s.items[id].GenerationStatus = status
	return nil
}

type memoryCache struct {
	data map[string][]byte
}

func (m *memoryCache) GetOrLoadSafe(_ context.Context, key string, _ time.Duration, loader func() (interface{}, error)) ([]byte, error) {
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	v, err := loader()
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	m.data[key] = raw
	return raw, nil
}

func fixtures() *stubProjects {
	return &stubProjects{items: map[string]*entity.GeneratedProject{
		"ai-recipe-finder": {
			ID:          "p-1",
			ProjectSlug: "ai-recipe-finder",
			Title:       "AI Recipe Finder",
			PRD:         "# PRD",
			CodeFiles:   entity.CodeFiles{"src/App.tsx": "export default function App() {}"},
			Status:      entity.GenerationStatusCompleted,
		},
		"in-flight": {ProjectSlug: "in-flight", Status: entity.GenerationStatusProcessing},
	}}
}

func TestService_GetUsesCache(t *testing.T) {
	projects := fixtures()
	cache := &memoryCache{data: map[string][]byte{}}
	svc := NewService(projects, nil, cache, 0)

	p, err := svc.Get(context.Background(), "ai-recipe-finder")
	require.NoError(t, err)
	assert.Equal(t, "# PRD", p.PRD)
	assert.Equal(t, "export default function App() {}", p.CodeFiles["src/App.tsx"])

	_, err = svc.Get(context.Background(), "ai-recipe-finder")
	require.NoError(t, err)
	assert.Equal(t, 1, projects.gets)
	assert.Contains(t, cache.data, CacheKey("ai-recipe-finder"))
}

func TestService_GetHidesIncompleteProjects(t *testing.T) {
	svc := NewService(fixtures(), nil, nil, 0)

	_, err := svc.Get(context.Background(), "in-flight")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeProjectNotFound))

	_, err = svc.Get(context.Background(), "missing")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeProjectNotFound))
}

func TestService_GetWrapsRepositoryErrors(t *testing.T) {
	projects := fixtures()
	projects.err = errors.New("connection reset")
	svc := NewService(projects, nil, nil, 0)

	_, err := svc.Get(context.Background(), "ai-recipe-finder")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeDatabaseError))
}

func TestService_List(t *testing.T) {
	svc := NewService(fixtures(), nil, nil, 0)

	page, err := svc.List(context.Background(), repository.NewPagination(1, 10))
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)
	assert.Equal(t, "ai-recipe-finder", page.Items[0].ProjectSlug)
}

func TestService_GenerationStatus(t *testing.T) {
	builds := &stubBuilds{items: map[string]*entity.BuildRequest{
		"br-1": {ID: "br-1", GenerationStatus: entity.GenerationStatusProcessing},
	}}
	svc := NewService(fixtures(), builds, nil, 0)

	br, err := svc.GenerationStatus(context.Background(), "br-1")
	require.NoError(t, err)
	assert.Equal(t, entity.GenerationStatusProcessing, br.GenerationStatus)

	_, err = svc.GenerationStatus(context.Background(), "br-2")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeBuildRequestNotFound))
}

func TestService_MarkQueued(t *testing.T) {
	builds := &stubBuilds{items: map[string]*entity.BuildRequest{"br-1": {ID: "br-1"}}}
	svc := NewService(fixtures(), builds, nil, 0)

	require.NoError(t, svc.MarkQueued(context.Background(), "br-1"))
	assert.Equal(t, entity.GenerationStatusProcessing, builds.items["br-1"].GenerationStatus)

	builds.updateErr = errors.New("db down")
	err := svc.MarkQueued(context.Background(), "br-1")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeDatabaseError))
}
