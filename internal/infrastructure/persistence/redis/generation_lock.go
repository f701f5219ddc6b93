package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"

	"ideaforge-api/pkg/logger"
)

// releaseScript 仅当锁仍属于自己时删除
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// GenerationLock 基于 SET NX 的按 slug 互斥锁
type GenerationLock struct {
	client *Client
	ttl    time.Duration
}

// NewGenerationLock 创建生成锁，ttl 需覆盖一次完整生成的耗时
func NewGenerationLock(client *Client, ttl time.Duration) *GenerationLock {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &GenerationLock{client: client, ttl: ttl}
}

// LockKey 构建锁键
func LockKey(slug string) string {
	return "lock:generation:" + slug
}

// Acquire 尝试获取锁；acquired 为 false 表示已被其它生成持有
func (l *GenerationLock) Acquire(ctx context.Context, slug string) (func(), bool, error) {
	key := LockKey(slug)
	ctx, span := tracer.Start(ctx, "redis.GenerationLock.Acquire")
	span.SetAttributes(attribute.String("lock.key", key))
	defer span.End()

	token := uuid.NewString()
	ok, err := l.client.rdb.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		span.RecordError(err)
		return nil, false, fmt.Errorf("failed to acquire generation lock: %w", err)
	}
	span.SetAttributes(attribute.Bool("lock.acquired", ok))
	if !ok {
		return nil, false, nil
	}

	release := func() {
		// 释放发生在生成结束后，调用方上下文可能已取消
		relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(relCtx, l.client.rdb, []string{key}, token).Err(); err != nil {
			logger.Warn(relCtx, "failed to release generation lock", "key", key, "error", err.Error())
		}
	}
	return release, true, nil
}
