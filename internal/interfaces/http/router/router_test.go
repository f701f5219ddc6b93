package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ideaforge-api/internal/application/entitlement"
	"ideaforge-api/internal/application/generation"
	"ideaforge-api/internal/config"
	"ideaforge-api/internal/domain/entity"
	"ideaforge-api/internal/domain/repository"
	"ideaforge-api/internal/interfaces/http/handler"
	"ideaforge-api/internal/interfaces/http/middleware"
	apperrors "ideaforge-api/pkg/errors"
	"ideaforge-api/pkg/utils"
)

type stubGenerator struct{}

func (stubGenerator) Generate(_ context.Context, req generation.Request) (*generation.Result, error) {
	return &generation.Result{Project: &entity.GeneratedProject{BuildRequestID: req.BuildRequestID, ProjectSlug: "demo"}}, nil
}

type stubStatus struct{}

func (stubStatus) GenerationStatus(context.Context, string) (*entity.BuildRequest, error) {
	return nil, apperrors.ErrBuildRequestNotFound
}

func (stubStatus) MarkQueued(context.Context, string) error { return nil }

type stubProjects struct{}

func (stubProjects) Get(context.Context, string) (*entity.GeneratedProject, error) {
	return nil, apperrors.ErrProjectNotFound
}

func (stubProjects) List(_ context.Context, p repository.Pagination) (*repository.PagedResult[*entity.GeneratedProject], error) {
	return repository.NewPagedResult([]*entity.GeneratedProject{}, 0, p), nil
}

type stubPreview struct{}

func (stubPreview) Render(context.Context, string) (string, error) { return "<html></html>", nil }

type stubEntitlements struct{}

func (stubEntitlements) VerifySignature([]byte, string) error { return apperrors.ErrSignatureInvalid }

func (stubEntitlements) Apply(context.Context, entitlement.CheckoutEvent) (entitlement.Outcome, error) {
	return entitlement.Outcome{}, nil
}

type denyAll struct{}

func (denyAll) Allow(context.Context, string, int, time.Duration) (bool, error) { return false, nil }

var authCfg = middleware.AuthConfig{Secret: "router-secret", Issuer: "auth.ideaforge"}

func newTestRouter(t *testing.T, limiter middleware.RateLimiter) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{}
	cfg.App.Name = "ideaforge-api"
	cfg.Observability.Metrics.Enabled = true
	cfg.Observability.Metrics.Path = "/metrics"
	cfg.Security.RateLimit = config.RateLimitConfig{Enabled: limiter != nil, Limit: 1, Window: time.Hour}

	handlers := RouterHandlers{
		Health:     handler.NewHealthHandler("test", nil),
		Generation: handler.NewGenerationHandler(stubGenerator{}, nil, stubStatus{}, 0),
		Project:    handler.NewProjectHandler(stubProjects{}, stubPreview{}),
		Webhook:    handler.NewWebhookHandler(stubEntitlements{}),
	}
	keys := func(userID, endpoint string) string { return userID + ":" + endpoint }
	return NewWithDeps(cfg, handlers, authCfg, limiter, keys).Engine()
}

func bearer(t *testing.T) string {
	t.Helper()
	tok, err := utils.NewJWTManager(authCfg.Secret, authCfg.Issuer, "").GenerateToken("user-1", "", "user", time.Hour)
	require.NoError(t, err)
	return "Bearer " + tok
}

func request(r http.Handler, method, path, auth, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRoutes(t *testing.T) {
	r := newTestRouter(t, nil)
	auth := bearer(t)

	tests := []struct {
		name   string
		method string
		path   string
		auth   string
		body   string
		status int
	}{
		{name: "health", method: http.MethodGet, path: "/health", status: http.StatusOK},
		{name: "ready without checks", method: http.MethodGet, path: "/ready", status: http.StatusOK},
		{name: "metrics", method: http.MethodGet, path: "/metrics", status: http.StatusOK},
		{name: "generate requires auth", method: http.MethodPost, path: "/v1/generate", body: `{"build_request_id":"br-1"}`, status: http.StatusUnauthorized},
		{name: "generate", method: http.MethodPost, path: "/v1/generate", auth: auth, body: `{"build_request_id":"br-1"}`, status: http.StatusOK},
		{name: "status requires auth", method: http.MethodGet, path: "/v1/build-requests/br-1/generation", status: http.StatusUnauthorized},
		{name: "status", method: http.MethodGet, path: "/v1/build-requests/br-1/generation", auth: auth, status: http.StatusNotFound},
		{name: "projects are public", method: http.MethodGet, path: "/v1/projects", status: http.StatusOK},
		{name: "project", method: http.MethodGet, path: "/v1/projects/demo", status: http.StatusNotFound},
		{name: "preview", method: http.MethodGet, path: "/v1/projects/demo/preview", status: http.StatusOK},
		{name: "webhook checks signature", method: http.MethodPost, path: "/v1/webhooks/payment", body: `{}`, status: http.StatusUnauthorized},
		{name: "unknown route", method: http.MethodGet, path: "/v1/nope", status: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := request(r, tt.method, tt.path, tt.auth, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
		})
	}
}

func TestGenerateIsRateLimited(t *testing.T) {
	r := newTestRouter(t, denyAll{})

	w := request(r, http.MethodPost, "/v1/generate", bearer(t), `{"build_request_id":"br-1"}`)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	w = request(r, http.MethodGet, "/v1/projects", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
}
