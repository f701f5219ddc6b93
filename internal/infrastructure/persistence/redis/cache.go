package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"ideaforge-api/pkg/logger"
)

var cacheTracer = otel.Tracer("redis.cache")

// Cache 缓存服务
type Cache struct {
	client *Client
	group  singleflight.Group
}

// NewCache 创建缓存服务
func NewCache(client *Client) *Cache {
	return &Cache{
		client: client,
	}
}

// Set 设置缓存值
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	ctx, span := cacheTracer.Start(ctx, "cache.Set",
		trace.WithAttributes(
			attribute.String("cache.key", key),
			attribute.Int64("cache.ttl_ms", ttl.Milliseconds()),
		))
	defer span.End()

	bytes, err := encode(value)
	if err != nil {
		span.RecordError(err)
		return err
	}

	return c.client.rdb.Set(ctx, key, bytes, ttl).Err()
}

// GetOrLoadSafe 读穿缓存，loader 结果按 JSON 编码写入；使用 singleflight 合并同一 key 的并发加载
func (c *Cache) GetOrLoadSafe(ctx context.Context, key string, ttl time.Duration, loader func() (interface{}, error)) ([]byte, error) {
	ctx, span := cacheTracer.Start(ctx, "cache.GetOrLoadSafe",
		trace.WithAttributes(attribute.String("cache.key", key)))
	defer span.End()

	val, err := c.client.rdb.Get(ctx, key).Bytes()
	if err == nil {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return val, nil
	}
	if !IsNil(err) {
		// 缓存不可用时直接回源
		span.RecordError(err)
		logger.Warn(ctx, "cache read failed, loading from source", "key", key, "error", err.Error())
	}

	span.SetAttributes(attribute.Bool("cache.hit", false))

	// 合并后的加载不受单个调用方取消的影响
	loadCtx := context.WithoutCancel(ctx)
	result, err, shared := c.group.Do(key, func() (interface{}, error) {
		data, err := loader()
		if err != nil {
			return nil, err
		}

		bytes, err := encode(data)
		if err != nil {
			return nil, err
		}

		if err := c.client.rdb.Set(loadCtx, key, bytes, ttl).Err(); err != nil {
			logger.Warn(loadCtx, "cache write failed", "key", key, "error", err.Error())
		}
		return bytes, nil
	})

	span.SetAttributes(attribute.Bool("cache.shared", shared))

	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	return result.([]byte), nil
}

// Delete 删除缓存
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	ctx, span := cacheTracer.Start(ctx, "cache.Delete",
		trace.WithAttributes(attribute.Int("cache.key_count", len(keys))))
	defer span.End()

	if len(keys) == 0 {
		return nil
	}
	if err := c.client.rdb.Del(ctx, keys...).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete cache keys: %w", err)
	}
	return nil
}

func encode(value interface{}) ([]byte, error) {
	bytes, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal value: %w", err)
	}
	return bytes, nil
}

// KeyFunc 由 slug 生成缓存键
type KeyFunc func(slug string) string

// ProjectCacheInvalidator 生成结果落库后删除该 slug 的所有读缓存
type ProjectCacheInvalidator struct {
	cache *Cache
	keys  []KeyFunc
}

// NewProjectCacheInvalidator 创建失效器
func NewProjectCacheInvalidator(cache *Cache, keys ...KeyFunc) *ProjectCacheInvalidator {
	return &ProjectCacheInvalidator{cache: cache, keys: keys}
}

// Keys 返回 slug 对应的全部缓存键
func (i *ProjectCacheInvalidator) Keys(slug string) []string {
	out := make([]string, 0, len(i.keys))
	for _, fn := range i.keys {
		out = append(out, fn(slug))
	}
	return out
}

// Invalidate 删除 slug 对应的缓存
func (i *ProjectCacheInvalidator) Invalidate(ctx context.Context, slug string) error {
	return i.cache.Delete(ctx, i.Keys(slug)...)
}
