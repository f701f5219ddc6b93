// Package generation 编排多 agent 文档生成、发布与持久化
package generation

import (
	"context"

	"ideaforge-api/internal/domain/entity"
	wfmodel "ideaforge-api/internal/workflow/model"
)

// AgentRunner 单次 agent 调用
type AgentRunner interface {
	Invoke(ctx context.Context, in *wfmodel.AgentInput) (*wfmodel.AgentOutput, error)
}

// StoragePublisher 将代码文件上传到对象存储并返回预览地址
type StoragePublisher interface {
	Publish(ctx context.Context, slug string, files entity.CodeFiles) (string, error)
}

// RepoPublisher 创建源码仓库并推送代码文件，返回仓库地址
type RepoPublisher interface {
	Publish(ctx context.Context, slug string, files entity.CodeFiles, description string) (string, error)
}

// Guard 同一 slug 同时只允许一个生成
type Guard interface {
	// Acquire 获取锁；acquired 为 false 表示已有生成在进行
	Acquire(ctx context.Context, key string) (release func(), acquired bool, err error)
}

// ProjectCacheInvalidator 生成结果落库后清理读缓存
type ProjectCacheInvalidator interface {
	Invalidate(ctx context.Context, slug string) error
}
