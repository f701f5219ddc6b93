// Package vcs 源码仓库发布
package vcs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/go-github/v66/github"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"

	"ideaforge-api/internal/config"
	"ideaforge-api/internal/domain/entity"
	"ideaforge-api/internal/workflow/node"
	"ideaforge-api/pkg/logger"
	"ideaforge-api/pkg/metrics"
	"ideaforge-api/pkg/tracer"
)

const (
	maxDescriptionRunes = 350
	maxRepoNameLength   = 100
	defaultStabilize    = 2 * time.Second
)

// GitHubPublisher 创建仓库并逐个文件提交
type GitHubPublisher struct {
	client *github.Client
	cfg    config.GitHubConfig
}

// NewGitHubClient 使用静态令牌创建客户端；BaseURL 非空时指向 GitHub Enterprise
func NewGitHubClient(ctx context.Context, cfg config.GitHubConfig) (*github.Client, error) {
	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token}))
	client := github.NewClient(httpClient)
	if cfg.BaseURL == "" {
		return client, nil
	}
	return client.WithEnterpriseURLs(cfg.BaseURL, cfg.BaseURL)
}

// NewGitHubPublisher 创建发布器
func NewGitHubPublisher(client *github.Client, cfg config.GitHubConfig) *GitHubPublisher {
	if cfg.StabilizeDelay < 0 {
		cfg.StabilizeDelay = 0
	} else if cfg.StabilizeDelay == 0 {
		cfg.StabilizeDelay = defaultStabilize
	}
	return &GitHubPublisher{client: client, cfg: cfg}
}

// RepoName 仓库名：前缀 + slug
func (p *GitHubPublisher) RepoName(slug string) string {
	name := p.cfg.RepoPrefix + slug
	if len(name) > maxRepoNameLength {
		name = name[:maxRepoNameLength]
	}
	return name
}

// Publish 创建仓库失败时返回错误；单个文件失败只计数
func (p *GitHubPublisher) Publish(ctx context.Context, slug string, files entity.CodeFiles, description string) (string, error) {
	name := p.RepoName(slug)
	ctx, span := tracer.Start(ctx, "vcs.GitHubPublisher.Publish", trace.WithAttributes(
		attribute.String("github.repo", name),
		attribute.Int("files", len(files)),
	))
	defer span.End()

	repo, _, err := p.client.Repositories.Create(ctx, "", &github.Repository{
		Name:        github.String(name),
		Description: github.String(node.TruncateByRunes(description, maxDescriptionRunes)),
		Private:     github.Bool(p.cfg.Private),
		AutoInit:    github.Bool(true),
	})
	if err != nil {
		tracer.RecordError(span, err)
		return "", fmt.Errorf("create repository %s: %w", name, err)
	}
	owner := repo.GetOwner().GetLogin()
	if owner == "" {
		err := errors.New("repository response has no owner")
		tracer.RecordError(span, err)
		return "", err
	}

	if err := p.stabilize(ctx); err != nil {
		return "", err
	}

	paths := files.Paths()
	uploaded := 0
	for _, filePath := range paths {
		opts := &github.RepositoryContentFileOptions{
			Message: github.String("Add " + filePath),
			Content: []byte(files[filePath]),
		}
		if p.cfg.Branch != "" {
			opts.Branch = github.String(p.cfg.Branch)
		}
		if _, _, err := p.client.Repositories.CreateFile(ctx, owner, name, filePath, opts); err != nil {
			metrics.PublishedFiles.WithLabelValues("vcs", "failed").Inc()
			logger.Warn(ctx, "failed to upload file to repository", "repo", name, "path", filePath, "error", err.Error())
			continue
		}
		metrics.PublishedFiles.WithLabelValues("vcs", "success").Inc()
		uploaded++
	}

	logger.Info(ctx, fmt.Sprintf("%d of %d files uploaded", uploaded, len(paths)), "repo", name)
	return repo.GetHTMLURL(), nil
}

// stabilize 等待托管端完成仓库初始化
func (p *GitHubPublisher) stabilize(ctx context.Context) error {
	if p.cfg.StabilizeDelay <= 0 {
		return nil
	}
	timer := time.NewTimer(p.cfg.StabilizeDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
