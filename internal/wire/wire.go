//go:build wireinject
// +build wireinject

// Package wire 提供依赖注入配置
package wire

import (
	"context"

	"github.com/google/wire"

	"ideaforge-api/internal/application/entitlement"
	"ideaforge-api/internal/application/generation"
	"ideaforge-api/internal/application/preview"
	"ideaforge-api/internal/application/project"
	"ideaforge-api/internal/config"
	"ideaforge-api/internal/domain/repository"
	"ideaforge-api/internal/infrastructure/llm"
	"ideaforge-api/internal/infrastructure/persistence/postgres"
	"ideaforge-api/internal/infrastructure/persistence/redis"
	"ideaforge-api/internal/interfaces/http/handler"
	"ideaforge-api/internal/interfaces/http/middleware"
	"ideaforge-api/internal/interfaces/http/router"
	"ideaforge-api/internal/workflow/chain"
	"ideaforge-api/internal/workflow/prompt"
)

// InitializeApp 初始化 API 网关（带路由器）
func InitializeApp(ctx context.Context, cfg *config.Config) (*router.Router, func(), error) {
	wire.Build(
		RepoSet,
		RedisSet,
		MessagingSet,
		GenerationSet,
		RouterSet,
	)
	return nil, nil, nil
}

// InitializeWorker 初始化生成 worker
func InitializeWorker(ctx context.Context, cfg *config.Config) (*Worker, func(), error) {
	wire.Build(
		RepoSet,
		RedisSet,
		GenerationSet,
		ProvideConsumer,
		wire.Struct(new(Worker), "*"),
	)
	return nil, nil, nil
}

// PostgresSet PostgreSQL 提供者集合
var PostgresSet = wire.NewSet(
	ProvidePostgresClient,
	postgres.NewTxManager,
	postgres.NewBuildRequestRepository,
	postgres.NewGeneratedProjectRepository,
	postgres.NewProfileRepository,
	postgres.NewPaymentTransactionRepository,
)

// RepoSet 整合了具体实现与接口绑定的集合
var RepoSet = wire.NewSet(
	PostgresSet,
	wire.Bind(new(repository.Transactor), new(*postgres.TxManager)),
	wire.Bind(new(repository.BuildRequestRepository), new(*postgres.BuildRequestRepository)),
	wire.Bind(new(repository.GeneratedProjectRepository), new(*postgres.GeneratedProjectRepository)),
	wire.Bind(new(repository.ProfileRepository), new(*postgres.ProfileRepository)),
	wire.Bind(new(repository.PaymentTransactionRepository), new(*postgres.PaymentTransactionRepository)),
)

// RedisSet Redis 提供者集合
var RedisSet = wire.NewSet(
	ProvideRedisClient,
	redis.NewCache,
	redis.NewRateLimiter,
	ProvideGenerationLock,
	ProvideCacheInvalidator,
	wire.Bind(new(middleware.RateLimiter), new(*redis.RateLimiter)),
	wire.Bind(new(generation.Guard), new(*redis.GenerationLock)),
	wire.Bind(new(generation.ProjectCacheInvalidator), new(*redis.ProjectCacheInvalidator)),
)

// MessagingSet 消息队列提供者集合
var MessagingSet = wire.NewSet(
	ProvideMessagingProducer,
)

// GenerationSet 生成流水线提供者集合
var GenerationSet = wire.NewSet(
	llm.NewEinoFactory,
	ProvideAgentChain,
	prompt.NewLibrary,
	ProvideStoragePublisher,
	ProvideRepoPublisher,
	ProvideGenerationConfig,
	wire.Bind(new(generation.AgentRunner), new(*chain.AgentChain)),
	wire.Struct(new(generation.Deps), "*"),
	generation.NewOrchestrator,
)

// RouterSet 路由器提供者集合
var RouterSet = wire.NewSet(
	ProvideAuthConfig,
	ProvideRateLimitKey,
	ProvidePreviewService,
	ProvideProjectService,
	ProvideEntitlementService,
	ProvideHealthHandler,
	wire.Bind(new(handler.Generator), new(*generation.Orchestrator)),
	wire.Bind(new(handler.BuildRequestStatus), new(*project.Service)),
	wire.Bind(new(handler.ProjectQuery), new(*project.Service)),
	wire.Bind(new(handler.PreviewRenderer), new(*preview.Service)),
	wire.Bind(new(handler.Entitlements), new(*entitlement.Service)),
	ProvideGenerationHandler,
	handler.NewProjectHandler,
	handler.NewWebhookHandler,
	wire.Struct(new(router.RouterHandlers), "*"),
	router.NewWithDeps,
)
