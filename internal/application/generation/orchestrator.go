package generation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"ideaforge-api/internal/config"
	"ideaforge-api/internal/domain/entity"
	"ideaforge-api/internal/domain/repository"
	"ideaforge-api/internal/workflow/chain"
	wfmodel "ideaforge-api/internal/workflow/model"
	"ideaforge-api/internal/workflow/prompt"
	apperrors "ideaforge-api/pkg/errors"
	"ideaforge-api/pkg/logger"
	"ideaforge-api/pkg/metrics"
	"ideaforge-api/pkg/tracer"
)

// Deps 编排器依赖；Storage、VCS、Cache 可为 nil，表示不启用
type Deps struct {
	BuildRequests repository.BuildRequestRepository
	Projects      repository.GeneratedProjectRepository
	Agents        AgentRunner
	Prompts       *prompt.Library
	Guard         Guard
	Storage       StoragePublisher
	VCS           RepoPublisher
	Cache         ProjectCacheInvalidator
}

// Orchestrator 生成流水线：状态流转、agent 调度、发布与持久化
type Orchestrator struct {
	deps     Deps
	cfg      config.GenerationConfig
	provider string
	limits   config.ExcerptLimits
}

// NewOrchestrator 创建编排器
func NewOrchestrator(deps Deps, cfg config.GenerationConfig) *Orchestrator {
	if deps.Guard == nil {
		deps.Guard = NewInProcessGuard()
	}
	if deps.Prompts == nil {
		deps.Prompts = prompt.NewLibrary()
	}
	return &Orchestrator{
		deps:     deps,
		cfg:      cfg,
		provider: cfg.Provider,
		limits:   excerptLimitsOrDefault(cfg.ExcerptLimits),
	}
}

// Generate 执行一次完整生成。调用方取消不会中断生成，结果总会落库
func (o *Orchestrator) Generate(ctx context.Context, req Request) (*Result, error) {
	ctx = context.WithoutCancel(ctx)
	ctx = logger.WithContext(ctx, logger.BuildRequestIDKey, req.BuildRequestID)

	br, err := o.deps.BuildRequests.GetByID(ctx, req.BuildRequestID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to load build request")
	}
	if br == nil {
		return nil, apperrors.ErrBuildRequestNotFound
	}

	opts := entity.DefaultGenerationOptions()
	if req.Options != nil {
		opts = *req.Options
	}
	if opts.FocusArea == "" {
		opts.FocusArea = entity.FocusBalanced
	}

	slug := entity.NewProjectSlug(br.Title, o.cfg.SlugMaxLength)
	ctx = logger.WithContext(ctx, logger.ProjectSlugKey, slug)

	ctx, span := tracer.Start(ctx, "generation.Orchestrator.Generate", trace.WithAttributes(
		attribute.String("build_request.id", br.ID),
		attribute.String("project.slug", slug),
	))
	defer span.End()

	release, acquired, err := o.deps.Guard.Acquire(ctx, slug)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, apperrors.Wrap(err, apperrors.CodeCacheError, "failed to acquire generation lock")
	}
	if !acquired {
		return nil, apperrors.ErrGenerationInProgress.WithDetail(slug)
	}
	defer release()

	metrics.GenerationInFlight.Inc()
	defer metrics.GenerationInFlight.Dec()
	start := time.Now()

	project, err := o.markProcessing(ctx, br, slug, req.UserID, opts)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, err
	}

	logger.Info(ctx, "generation started",
		"stages", opts.EnabledKinds(),
		"focus_area", string(opts.FocusArea),
	)

	docs, err := o.runDocuments(ctx, br.Context(), opts)
	if err != nil {
		o.markFailed(ctx, br.ID, project, err)
		metrics.GenerationTotal.WithLabelValues(string(entity.GenerationStatusFailed)).Inc()
		metrics.GenerationDuration.WithLabelValues(string(entity.GenerationStatusFailed)).Observe(time.Since(start).Seconds())
		tracer.RecordError(span, err)
		return nil, apperrors.ErrGenerationFailed.WithDetail(err.Error()).WithError(err)
	}

	result := &Result{
		Storage: PublishOutcome{Target: TargetStorage, Skipped: true},
		VCS:     PublishOutcome{Target: TargetVCS, Skipped: true},
	}
	if len(docs.CodeFiles) > 0 {
		result.Storage = o.publishStorage(ctx, slug, docs.CodeFiles)
		result.VCS = o.publishVCS(ctx, slug, docs.CodeFiles, br)
	}

	project.Complete(docs, result.Storage.URL, result.VCS.URL)
	if err := o.deps.Projects.Upsert(ctx, project); err != nil {
		o.markFailed(ctx, br.ID, project, err)
		tracer.RecordError(span, err)
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to persist generated project")
	}
	o.recordCompletion(ctx, br.ID, result)
	o.invalidate(ctx, slug)

	elapsed := time.Since(start)
	metrics.GenerationTotal.WithLabelValues(string(entity.GenerationStatusCompleted)).Inc()
	metrics.GenerationDuration.WithLabelValues(string(entity.GenerationStatusCompleted)).Observe(elapsed.Seconds())
	logger.Info(ctx, "generation completed",
		"duration_ms", elapsed.Milliseconds(),
		"code_files", len(docs.CodeFiles),
		"preview_url", result.Storage.URL,
		"github_url", result.VCS.URL,
	)

	result.Project = project
	return result, nil
}

// markProcessing 先落库 processing，已有记录时只改状态，保留上一轮的文档
func (o *Orchestrator) markProcessing(ctx context.Context, br *entity.BuildRequest, slug, userID string, opts entity.GenerationOptions) (*entity.GeneratedProject, error) {
	if err := o.deps.BuildRequests.UpdateGenerationStatus(ctx, br.ID, entity.GenerationStatusProcessing); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to mark build request processing")
	}

	project := entity.NewGeneratedProject(br.ID, slug, br.Title, userID, opts)
	project.StartProcessing()

	existing, err := o.deps.Projects.GetBySlug(ctx, slug)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to load generated project")
	}
	if existing != nil {
		project.ID = existing.ID
		project.CreatedAt = existing.CreatedAt
		if err := o.deps.Projects.UpdateStatus(ctx, slug, entity.GenerationStatusProcessing, ""); err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to mark project processing")
		}
		return project, nil
	}

	if err := o.deps.Projects.Upsert(ctx, project); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to create generated project")
	}
	return project, nil
}

// markFailed 记录失败状态；落库错误只记日志，原始错误由调用方返回
func (o *Orchestrator) markFailed(ctx context.Context, buildRequestID string, project *entity.GeneratedProject, cause error) {
	logger.Error(ctx, "generation failed", cause)
	project.Fail(cause.Error())
	if err := o.deps.Projects.UpdateStatus(ctx, project.ProjectSlug, project.Status, project.ErrorMessage); err != nil {
		logger.Error(ctx, "failed to persist failed project status", err)
	}
	if err := o.deps.BuildRequests.UpdateGenerationStatus(ctx, buildRequestID, entity.GenerationStatusFailed); err != nil {
		logger.Error(ctx, "failed to persist failed build request status", err)
	}
}

// recordCompletion 文档已落库后登记构建请求终态。写结果失败时重试一次，
// 仍失败则只写 completed 状态；错误不返回给调用方，避免重复发布
func (o *Orchestrator) recordCompletion(ctx context.Context, buildRequestID string, result *Result) {
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		err = o.deps.BuildRequests.UpdateGenerationResult(ctx, buildRequestID, entity.GenerationStatusCompleted, result.Storage.URL, result.VCS.URL)
		if err == nil {
			return
		}
	}
	logger.Error(ctx, "failed to record generation result on build request", err)
	if err := o.deps.BuildRequests.UpdateGenerationStatus(ctx, buildRequestID, entity.GenerationStatusCompleted); err != nil {
		logger.Error(ctx, "failed to mark build request completed", err)
	}
}

// runDocuments 独立组并发执行，依赖链 PRD -> 技术方案 -> 代码按序执行
func (o *Orchestrator) runDocuments(ctx context.Context, pc entity.ProjectContext, opts entity.GenerationOptions) (entity.Documents, error) {
	var docs entity.Documents
	base := buildBaseContext(pc, opts)

	var research, charter string
	g, gctx := errgroup.WithContext(ctx)
	if opts.MarketResearch {
		g.Go(func() error {
			out, err := o.runTextStage(gctx, entity.DocumentMarketResearch, base)
			research = out
			return err
		})
	}
	if opts.ProjectCharter {
		g.Go(func() error {
			out, err := o.runTextStage(gctx, entity.DocumentProjectCharter, base)
			charter = out
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return docs, err
	}
	docs.MarketResearch = research
	docs.ProjectCharter = charter

	if opts.PRD {
		prdCtx := withReference(base, "Market Research Findings (excerpt)", docs.MarketResearch, o.limits.ResearchForPRD)
		out, err := o.runTextStage(ctx, entity.DocumentPRD, prdCtx)
		if err != nil {
			return docs, err
		}
		docs.PRD = out
	}

	if opts.TechSpec {
		specCtx := withReference(base, "Product Requirements (excerpt)", docs.PRD, o.limits.PRDForTechSpec)
		out, err := o.runTextStage(ctx, entity.DocumentTechSpec, specCtx)
		if err != nil {
			return docs, err
		}
		docs.TechSpec = out
	}

	if opts.CodePrototype {
		codeCtx := withReference(base, "Product Requirements (excerpt)", docs.PRD, o.limits.PRDForCode)
		codeCtx = withReference(codeCtx, "Technical Specification (excerpt)", docs.TechSpec, o.limits.TechSpecForCode)
		files, err := o.runCodeStage(ctx, codeCtx)
		if err != nil {
			return docs, err
		}
		docs.CodeFiles = files
	}

	return docs, nil
}

func (o *Orchestrator) runTextStage(ctx context.Context, kind entity.DocumentKind, contextText string) (string, error) {
	out, err := o.invoke(ctx, kind, contextText, false)
	if err != nil {
		return "", err
	}
	return out.Text, nil
}

func (o *Orchestrator) runCodeStage(ctx context.Context, contextText string) (entity.CodeFiles, error) {
	out, err := o.invoke(ctx, entity.DocumentCodePrototype, contextText, true)
	if err != nil {
		return nil, err
	}
	files, err := wfmodel.DecodeCodeFiles(out.JSON)
	if err != nil {
		return nil, &StageError{
			Stage: entity.DocumentCodePrototype,
			Err:   &chain.ParseError{Stage: string(entity.DocumentCodePrototype), Raw: out.Text, Err: err},
		}
	}
	return files, nil
}

func (o *Orchestrator) invoke(ctx context.Context, kind entity.DocumentKind, contextText string, structured bool) (*wfmodel.AgentOutput, error) {
	role, err := prompt.RoleFor(kind)
	if err != nil {
		return nil, &StageError{Stage: kind, Err: err}
	}
	rolePrompt, err := o.deps.Prompts.SystemPrompt(role)
	if err != nil {
		return nil, &StageError{Stage: kind, Err: err}
	}

	start := time.Now()
	out, err := o.deps.Agents.Invoke(ctx, &wfmodel.AgentInput{
		Stage:            string(kind),
		Provider:         o.provider,
		RolePrompt:       rolePrompt,
		ContextText:      contextText,
		ExpectStructured: structured,
	})
	status := "success"
	if err != nil {
		status = "error"
		if errors.Is(err, context.Canceled) {
			status = "canceled"
		}
	}
	metrics.AgentStageDuration.WithLabelValues(string(kind), status).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, &StageError{Stage: kind, Err: err}
	}

	logger.Debug(ctx, "agent stage finished",
		"stage", string(kind),
		"duration_ms", time.Since(start).Milliseconds(),
		"prompt_tokens", out.Usage.PromptTokens,
		"completion_tokens", out.Usage.CompletionTokens,
	)
	return out, nil
}

func (o *Orchestrator) publishStorage(ctx context.Context, slug string, files entity.CodeFiles) PublishOutcome {
	outcome := PublishOutcome{Target: TargetStorage}
	if o.deps.Storage == nil {
		outcome.Skipped = true
		return outcome
	}
	url, err := o.deps.Storage.Publish(ctx, slug, files)
	if err != nil {
		outcome.Err = err
		metrics.PublishTotal.WithLabelValues(string(TargetStorage), "failed").Inc()
		logger.Warn(ctx, "object storage publish failed, continuing without preview url", "error", err.Error())
		return outcome
	}
	outcome.URL = url
	metrics.PublishTotal.WithLabelValues(string(TargetStorage), "success").Inc()
	return outcome
}

func (o *Orchestrator) publishVCS(ctx context.Context, slug string, files entity.CodeFiles, br *entity.BuildRequest) PublishOutcome {
	outcome := PublishOutcome{Target: TargetVCS}
	if o.deps.VCS == nil {
		outcome.Skipped = true
		return outcome
	}
	description := fmt.Sprintf("%s: prototype generated from a community idea", br.Title)
	url, err := o.deps.VCS.Publish(ctx, slug, files, description)
	if err != nil {
		outcome.Err = err
		metrics.PublishTotal.WithLabelValues(string(TargetVCS), "failed").Inc()
		logger.Warn(ctx, "repository publish failed, continuing without github url", "error", err.Error())
		return outcome
	}
	outcome.URL = url
	metrics.PublishTotal.WithLabelValues(string(TargetVCS), "success").Inc()
	return outcome
}

func (o *Orchestrator) invalidate(ctx context.Context, slug string) {
	if o.deps.Cache == nil {
		return
	}
	if err := o.deps.Cache.Invalidate(ctx, slug); err != nil {
		logger.Warn(ctx, "failed to invalidate project cache", "error", err.Error())
	}
}
