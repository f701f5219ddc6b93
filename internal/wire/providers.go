package wire

import (
	"context"
	"fmt"
	"os"

	"ideaforge-api/internal/application/entitlement"
	"ideaforge-api/internal/application/generation"
	"ideaforge-api/internal/application/preview"
	"ideaforge-api/internal/application/project"
	"ideaforge-api/internal/config"
	"ideaforge-api/internal/domain/repository"
	"ideaforge-api/internal/infrastructure/llm"
	"ideaforge-api/internal/infrastructure/messaging"
	"ideaforge-api/internal/infrastructure/persistence/postgres"
	"ideaforge-api/internal/infrastructure/persistence/redis"
	"ideaforge-api/internal/infrastructure/storage"
	"ideaforge-api/internal/infrastructure/vcs"
	"ideaforge-api/internal/interfaces/http/handler"
	"ideaforge-api/internal/interfaces/http/middleware"
	"ideaforge-api/internal/workflow/chain"
	"ideaforge-api/pkg/logger"
)

// Worker 生成 worker 依赖
type Worker struct {
	Consumer     *messaging.Consumer
	Orchestrator *generation.Orchestrator
}

// ProvidePostgresClient 提供 PostgreSQL 客户端，按配置执行自动迁移
func ProvidePostgresClient(ctx context.Context, cfg *config.Config) (*postgres.Client, func(), error) {
	client, err := postgres.NewClient(&cfg.Database.Postgres)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Database.Postgres.AutoMigrate {
		if err := client.AutoMigrate(ctx); err != nil {
			_ = client.Close()
			return nil, nil, err
		}
	}
	cleanup := func() {
		_ = client.Close()
	}
	return client, cleanup, nil
}

// ProvideRedisClient 提供 Redis 客户端
func ProvideRedisClient(cfg *config.Config) (*redis.Client, func(), error) {
	client, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		_ = client.Close()
	}
	return client, cleanup, nil
}

// ProvideGenerationLock 跨进程的 slug 生成锁
func ProvideGenerationLock(client *redis.Client, cfg *config.Config) *redis.GenerationLock {
	return redis.NewGenerationLock(client, cfg.Generation.LockTTL)
}

// ProvideCacheInvalidator 生成结果落库后清理项目与预览缓存
func ProvideCacheInvalidator(cache *redis.Cache) *redis.ProjectCacheInvalidator {
	return redis.NewProjectCacheInvalidator(cache, project.CacheKey, preview.CacheKey)
}

// ProvideRateLimitKey 限流键
func ProvideRateLimitKey() middleware.KeyBuilder {
	return redis.BuildUserRateLimitKey
}

// ProvideMessagingProducer 提供生成队列生产者
func ProvideMessagingProducer(redisClient *redis.Client, cfg *config.Config) *messaging.Producer {
	maxLen := cfg.Messaging.RedisStream.MaxLen
	if maxLen <= 0 {
		maxLen = 100000
	}
	return messaging.NewProducer(redisClient.Redis(), messaging.Stream(cfg.Generation.StreamName), maxLen)
}

// ProvideConsumer 提供生成队列消费者
func ProvideConsumer(redisClient *redis.Client, cfg *config.Config) *messaging.Consumer {
	rs := cfg.Messaging.RedisStream
	return messaging.NewConsumer(redisClient.Redis(), messaging.ConsumerConfig{
		Stream:        messaging.Stream(cfg.Generation.StreamName),
		Group:         messaging.ConsumerGroup(cfg.Generation.ConsumerGroup),
		ConsumerName:  hostnameConsumerName(),
		BlockTimeout:  rs.BlockTimeout,
		ClaimInterval: rs.ClaimInterval,
		ClaimMinIdle:  rs.ClaimMinIdle,
		RetryLimit:    rs.RetryLimit,
		Backoff: messaging.BackoffConfig{
			Initial:    rs.RetryBackoff.Initial,
			Max:        rs.RetryBackoff.Max,
			Multiplier: rs.RetryBackoff.Multiplier,
		},
		Concurrency: cfg.Generation.WorkerPoolSize,
	})
}

func hostnameConsumerName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}

// ProvideAgentChain 提供 agent 调用链
func ProvideAgentChain(factory *llm.EinoFactory, cfg *config.Config) *chain.AgentChain {
	provider := cfg.Generation.Provider
	if provider == "" {
		provider = factory.DefaultProvider()
	}
	return chain.NewAgentChain(factory, provider)
}

// ProvideStoragePublisher 未启用对象存储时返回 nil
func ProvideStoragePublisher(ctx context.Context, cfg *config.Config) (generation.StoragePublisher, error) {
	if !cfg.Storage.S3.Enabled {
		logger.Info(ctx, "object storage publishing disabled")
		return nil, nil
	}
	client, err := storage.NewS3Client(ctx, cfg.Storage.S3)
	if err != nil {
		return nil, err
	}
	return storage.NewS3Publisher(client, cfg.Storage.S3), nil
}

// ProvideRepoPublisher 未启用 GitHub 发布时返回 nil
func ProvideRepoPublisher(ctx context.Context, cfg *config.Config) (generation.RepoPublisher, error) {
	if !cfg.VCS.GitHub.Enabled {
		logger.Info(ctx, "github publishing disabled")
		return nil, nil
	}
	client, err := vcs.NewGitHubClient(ctx, cfg.VCS.GitHub)
	if err != nil {
		return nil, err
	}
	return vcs.NewGitHubPublisher(client, cfg.VCS.GitHub), nil
}

// ProvideGenerationConfig 生成流水线配置
func ProvideGenerationConfig(cfg *config.Config) config.GenerationConfig {
	return cfg.Generation
}

// ProvidePreviewService 提供预览服务
func ProvidePreviewService(projects repository.GeneratedProjectRepository, cache *redis.Cache, cfg *config.Config) *preview.Service {
	return preview.NewService(projects, preview.NewRenderer(cfg.Preview), cache, cfg.Preview.CacheTTL)
}

// ProvideProjectService 提供项目查询服务
func ProvideProjectService(projects repository.GeneratedProjectRepository, builds repository.BuildRequestRepository, cache *redis.Cache, cfg *config.Config) *project.Service {
	return project.NewService(projects, builds, cache, cfg.Cache.Redis.ProjectTTL)
}

// ProvideEntitlementService 提供配额服务
func ProvideEntitlementService(tx repository.Transactor, profiles repository.ProfileRepository, transactions repository.PaymentTransactionRepository, cfg *config.Config) *entitlement.Service {
	return entitlement.NewService(tx, profiles, transactions, cfg.Security.Webhook.PaymentSecret)
}

// ProvideGenerationHandler 未启用异步模式时不注入队列
func ProvideGenerationHandler(cfg *config.Config, generator handler.Generator, producer *messaging.Producer, status handler.BuildRequestStatus) *handler.GenerationHandler {
	var queue handler.GenerationQueue
	if cfg.Generation.AsyncEnabled && producer != nil {
		queue = producer
	}
	return handler.NewGenerationHandler(generator, queue, status, cfg.Generation.PreviewChars)
}

// ProvideHealthHandler 就绪检查依赖 PostgreSQL 与 Redis
func ProvideHealthHandler(cfg *config.Config, pg *postgres.Client, rdb *redis.Client) *handler.HealthHandler {
	return handler.NewHealthHandler(cfg.App.Version, map[string]handler.HealthChecker{
		"postgres": pg,
		"redis":    rdb,
	})
}

// ProvideAuthConfig 提供认证配置
func ProvideAuthConfig(cfg *config.Config) middleware.AuthConfig {
	return middleware.AuthConfig{
		Secret:   cfg.Security.JWT.Secret,
		Issuer:   cfg.Security.JWT.Issuer,
		Audience: cfg.Security.JWT.Audience,
	}
}
