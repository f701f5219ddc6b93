package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ideaforge-api/internal/config"
	"ideaforge-api/internal/domain/entity"
	"ideaforge-api/internal/workflow/chain"
	wfmodel "ideaforge-api/internal/workflow/model"
	apperrors "ideaforge-api/pkg/errors"
)

type harness struct {
	builds   *fakeBuildRequests
	projects *fakeProjects
	agents   *fakeAgents
	storage  *fakePublisher
	vcs      *fakeRepoPublisher
	cache    *fakeCache
	orch     *Orchestrator
}

func recipeFinder() *entity.BuildRequest {
	return &entity.BuildRequest{
		ID:             "br-recipe",
		UserID:         "user-1",
		Title:          "AI Recipe Finder",
		Category:       "Food",
		Description:    "Suggests recipes from the ingredients you already have",
		TargetAudience: "Home cooks",
		Features:       []string{"Ingredient photo scan", "Weekly meal plans"},
		SubmitterName:  "sam",
	}
}

func newHarness(t *testing.T, respond func(context.Context, *wfmodel.AgentInput) (string, error), brs ...*entity.BuildRequest) *harness {
	t.Helper()
	if len(brs) == 0 {
		brs = []*entity.BuildRequest{recipeFinder()}
	}
	h := &harness{
		builds:   newFakeBuildRequests(brs...),
		projects: newFakeProjects(),
		agents:   newFakeAgents(respond),
		storage:  &fakePublisher{url: "http://previews.s3-website-us-east-1.amazonaws.com"},
		vcs:      &fakeRepoPublisher{fakePublisher: fakePublisher{url: "https://github.com/ideaforge-bot"}},
		cache:    &fakeCache{},
	}
	h.orch = NewOrchestrator(Deps{
		BuildRequests: h.builds,
		Projects:      h.projects,
		Agents:        h.agents,
		Storage:       h.storage,
		VCS:           h.vcs,
		Cache:         h.cache,
	}, config.GenerationConfig{SlugMaxLength: 50})
	return h
}

func opts(kinds ...entity.DocumentKind) *entity.GenerationOptions {
	o := &entity.GenerationOptions{FocusArea: entity.FocusBalanced}
	for _, k := range kinds {
		switch k {
		case entity.DocumentMarketResearch:
			o.MarketResearch = true
		case entity.DocumentProjectCharter:
			o.ProjectCharter = true
		case entity.DocumentPRD:
			o.PRD = true
		case entity.DocumentTechSpec:
			o.TechSpec = true
		case entity.DocumentCodePrototype:
			o.CodePrototype = true
		}
	}
	return o
}

func TestGenerate_AllTogglesFalseCompletesEmpty(t *testing.T) {
	h := newHarness(t, nil)

	res, err := h.orch.Generate(context.Background(), Request{BuildRequestID: "br-recipe", UserID: "user-1", Options: opts()})
	require.NoError(t, err)

	p := h.projects.get("ai-recipe-finder")
	require.NotNil(t, p)
	assert.Equal(t, entity.GenerationStatusCompleted, p.Status)
	assert.Empty(t, p.MarketResearch)
	assert.Empty(t, p.ProjectCharter)
	assert.Empty(t, p.PRD)
	assert.Empty(t, p.TechSpec)
	assert.Empty(t, p.CodeFiles)
	assert.NotNil(t, p.CodeFiles)
	assert.Zero(t, h.agents.totalCalls())
	assert.Empty(t, h.storage.calls)
	assert.True(t, res.Storage.Skipped)
	assert.True(t, res.VCS.Skipped)
}

func TestGenerate_RecipeFinderScenario(t *testing.T) {
	h := newHarness(t, nil)

	res, err := h.orch.Generate(context.Background(), Request{
		BuildRequestID: "br-recipe",
		UserID:         "user-1",
		Options:        opts(entity.DocumentMarketResearch, entity.DocumentPRD, entity.DocumentTechSpec),
	})
	require.NoError(t, err)

	p := h.projects.get("ai-recipe-finder")
	require.NotNil(t, p)
	assert.Equal(t, entity.GenerationStatusCompleted, p.Status)
	assert.NotEmpty(t, p.MarketResearch)
	assert.NotEmpty(t, p.PRD)
	assert.NotEmpty(t, p.TechSpec)
	assert.Empty(t, p.ProjectCharter)
	assert.Empty(t, p.CodeFiles)
	assert.Empty(t, p.PreviewURL)
	assert.Empty(t, p.GitHubURL)
	assert.Empty(t, h.storage.calls)
	assert.Empty(t, h.vcs.calls)

	assert.Equal(t, []entity.GenerationStatus{entity.GenerationStatusProcessing, entity.GenerationStatusCompleted},
		h.projects.history("ai-recipe-finder"))
	assert.Equal(t, []entity.GenerationStatus{entity.GenerationStatusProcessing, entity.GenerationStatusCompleted},
		h.builds.history("br-recipe"))
	assert.Equal(t, []string{"ai-recipe-finder"}, h.cache.keys)
	assert.True(t, res.Storage.Skipped)
	assert.Equal(t, entity.GenerationStatusCompleted, res.Project.Status)
}

func TestGenerate_PRDContextContainsMarketResearch(t *testing.T) {
	h := newHarness(t, func(_ context.Context, in *wfmodel.AgentInput) (string, error) {
		if in.Stage == string(entity.DocumentMarketResearch) {
			return "UNIQUE-MARKET-FINDING: 42% of cooks waste food weekly", nil
		}
		return "doc", nil
	})

	_, err := h.orch.Generate(context.Background(), Request{
		BuildRequestID: "br-recipe",
		Options:        opts(entity.DocumentMarketResearch, entity.DocumentPRD),
	})
	require.NoError(t, err)

	prdCtx := h.agents.contextFor(entity.DocumentPRD)
	require.Len(t, prdCtx, 1)
	assert.Contains(t, prdCtx[0], "UNIQUE-MARKET-FINDING: 42% of cooks waste food weekly")
	assert.Contains(t, prdCtx[0], "Project Title: AI Recipe Finder")
}

func TestGenerate_MissingPrerequisiteFallsBackToBaseContext(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.orch.Generate(context.Background(), Request{
		BuildRequestID: "br-recipe",
		Options:        opts(entity.DocumentPRD, entity.DocumentCodePrototype),
	})
	require.NoError(t, err)

	prdCtx := h.agents.contextFor(entity.DocumentPRD)
	require.Len(t, prdCtx, 1)
	assert.Equal(t, buildBaseContext(recipeFinder().Context(), *opts()), prdCtx[0])

	codeCtx := h.agents.contextFor(entity.DocumentCodePrototype)
	require.Len(t, codeCtx, 1)
	assert.Contains(t, codeCtx[0], "Product Requirements (excerpt)")
	assert.NotContains(t, codeCtx[0], "Technical Specification (excerpt)")

	p := h.projects.get("ai-recipe-finder")
	assert.Equal(t, entity.GenerationStatusCompleted, p.Status)
	assert.Contains(t, p.CodeFiles, "src/App.tsx")
}

func TestGenerate_CodeContextUsesBoundedExcerpts(t *testing.T) {
	longPRD := strings.Repeat("p", 5000)
	h := newHarness(t, func(_ context.Context, in *wfmodel.AgentInput) (string, error) {
		switch in.Stage {
		case string(entity.DocumentPRD):
			return longPRD, nil
		case string(entity.DocumentCodePrototype):
			return `{"files": {"src/App.tsx": "x"}}`, nil
		}
		return "doc", nil
	})

	_, err := h.orch.Generate(context.Background(), Request{
		BuildRequestID: "br-recipe",
		Options:        opts(entity.DocumentPRD, entity.DocumentTechSpec, entity.DocumentCodePrototype),
	})
	require.NoError(t, err)

	codeCtx := h.agents.contextFor(entity.DocumentCodePrototype)[0]
	assert.Contains(t, codeCtx, strings.Repeat("p", 2000))
	assert.NotContains(t, codeCtx, strings.Repeat("p", 2001))

	specCtx := h.agents.contextFor(entity.DocumentTechSpec)[0]
	assert.Contains(t, specCtx, strings.Repeat("p", 3000))
	assert.NotContains(t, specCtx, strings.Repeat("p", 3001))
}

func TestGenerate_FocusAndCustomInstructionsReachEveryStage(t *testing.T) {
	h := newHarness(t, nil)
	o := opts(entity.DocumentMarketResearch, entity.DocumentProjectCharter)
	o.FocusArea = entity.FocusBudget
	o.CustomInstructions = "Target college students only."

	_, err := h.orch.Generate(context.Background(), Request{BuildRequestID: "br-recipe", Options: o})
	require.NoError(t, err)

	for _, kind := range []entity.DocumentKind{entity.DocumentMarketResearch, entity.DocumentProjectCharter} {
		ctxs := h.agents.contextFor(kind)
		require.Len(t, ctxs, 1)
		assert.Contains(t, ctxs[0], "FOCUS: BUDGET")
		assert.Contains(t, ctxs[0], "Target college students only.")
	}
}

func TestGenerate_IndependentStagesRunConcurrently(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(2)
	h := newHarness(t, func(_ context.Context, in *wfmodel.AgentInput) (string, error) {
		wg.Done()
		done := make(chan struct{})
		go func() { wg.Wait(); close(done) }()
		select {
		case <-done:
			return "doc for " + in.Stage, nil
		case <-time.After(2 * time.Second):
			return "", errors.New("sibling stage never started")
		}
	})

	_, err := h.orch.Generate(context.Background(), Request{
		BuildRequestID: "br-recipe",
		Options:        opts(entity.DocumentMarketResearch, entity.DocumentProjectCharter),
	})
	require.NoError(t, err)

	p := h.projects.get("ai-recipe-finder")
	assert.Equal(t, "doc for market_research", p.MarketResearch)
	assert.Equal(t, "doc for project_charter", p.ProjectCharter)
}

func TestGenerate_StorageFailureStillCompletes(t *testing.T) {
	h := newHarness(t, nil)
	h.storage.err = errors.New("access denied")

	res, err := h.orch.Generate(context.Background(), Request{
		BuildRequestID: "br-recipe",
		Options:        opts(entity.DocumentCodePrototype),
	})
	require.NoError(t, err)

	assert.Error(t, res.Storage.Err)
	assert.True(t, res.VCS.OK())

	p := h.projects.get("ai-recipe-finder")
	assert.Equal(t, entity.GenerationStatusCompleted, p.Status)
	assert.Empty(t, p.PreviewURL)
	assert.Equal(t, "https://github.com/ideaforge-bot/ai-recipe-finder", p.GitHubURL)

	br := h.builds.get("br-recipe")
	assert.Equal(t, entity.GenerationStatusCompleted, br.GenerationStatus)
	assert.Empty(t, br.PreviewURL)
	assert.Equal(t, p.GitHubURL, br.GitHubURL)
}

func TestGenerate_RepoCreationFailureStillCompletes(t *testing.T) {
	h := newHarness(t, nil)
	h.vcs.err = errors.New("repository creation failed: 422 name already exists")

	res, err := h.orch.Generate(context.Background(), Request{
		BuildRequestID: "br-recipe",
		Options:        opts(entity.DocumentCodePrototype),
	})
	require.NoError(t, err)

	assert.Error(t, res.VCS.Err)
	p := h.projects.get("ai-recipe-finder")
	assert.Equal(t, entity.GenerationStatusCompleted, p.Status)
	assert.Empty(t, p.GitHubURL)
	assert.Equal(t, "http://previews.s3-website-us-east-1.amazonaws.com/ai-recipe-finder", p.PreviewURL)
	require.Len(t, h.vcs.descriptions, 1)
	assert.Contains(t, h.vcs.descriptions[0], "AI Recipe Finder")
}

func TestGenerate_BuildRequestResultWriteFailureStillCompletes(t *testing.T) {
	tests := []struct {
		name        string
		failures    int
		wantHistory []entity.GenerationStatus
		wantURLs    bool
	}{
		{
			name:        "retry succeeds",
			failures:    1,
			wantHistory: []entity.GenerationStatus{entity.GenerationStatusProcessing, entity.GenerationStatusCompleted},
			wantURLs:    true,
		},
		{
			name:        "falls back to status only",
			failures:    2,
			wantHistory: []entity.GenerationStatus{entity.GenerationStatusProcessing, entity.GenerationStatusCompleted},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, nil)
			h.builds.resultErr = errors.New("connection reset by peer")
			h.builds.resultFailures = tt.failures

			res, err := h.orch.Generate(context.Background(), Request{
				BuildRequestID: "br-recipe",
				Options:        opts(entity.DocumentCodePrototype),
			})
			require.NoError(t, err)
			require.NotNil(t, res)
			assert.Equal(t, entity.GenerationStatusCompleted, res.Project.Status)
			assert.Equal(t, entity.GenerationStatusCompleted, h.projects.get("ai-recipe-finder").Status)
			assert.Len(t, h.storage.calls, 1)

			br := h.builds.get("br-recipe")
			assert.Equal(t, entity.GenerationStatusCompleted, br.GenerationStatus)
			assert.Equal(t, tt.wantHistory, h.builds.history("br-recipe"))
			if tt.wantURLs {
				assert.Equal(t, res.Storage.URL, br.PreviewURL)
			} else {
				assert.Empty(t, br.PreviewURL)
			}
		})
	}
}

func TestGenerate_NoPublishersConfigured(t *testing.T) {
	h := newHarness(t, nil)
	h.orch = NewOrchestrator(Deps{BuildRequests: h.builds, Projects: h.projects, Agents: h.agents}, config.GenerationConfig{})

	res, err := h.orch.Generate(context.Background(), Request{BuildRequestID: "br-recipe", Options: opts(entity.DocumentCodePrototype)})
	require.NoError(t, err)
	assert.True(t, res.Storage.Skipped)
	assert.True(t, res.VCS.Skipped)
	assert.Equal(t, entity.GenerationStatusCompleted, res.Project.Status)
}

func TestGenerate_StageErrorIsTerminal(t *testing.T) {
	h := newHarness(t, func(_ context.Context, in *wfmodel.AgentInput) (string, error) {
		if in.Stage == string(entity.DocumentTechSpec) {
			return "", errors.New("provider returned 500")
		}
		return "doc", nil
	})

	_, err := h.orch.Generate(context.Background(), Request{
		BuildRequestID: "br-recipe",
		Options:        opts(entity.DocumentMarketResearch, entity.DocumentPRD, entity.DocumentTechSpec, entity.DocumentCodePrototype),
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeGenerationFailed))

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, entity.DocumentTechSpec, stageErr.Stage)

	p := h.projects.get("ai-recipe-finder")
	assert.Equal(t, entity.GenerationStatusFailed, p.Status)
	assert.Contains(t, p.ErrorMessage, "provider returned 500")
	assert.Empty(t, p.MarketResearch, "documents are never partially persisted")
	assert.Empty(t, p.PRD)
	assert.Empty(t, h.agents.contextFor(entity.DocumentCodePrototype))
	assert.Empty(t, h.storage.calls)

	assert.Equal(t, entity.GenerationStatusFailed, h.builds.get("br-recipe").GenerationStatus)
}

func TestGenerate_MalformedCodeOutputIsParseError(t *testing.T) {
	h := newHarness(t, func(_ context.Context, in *wfmodel.AgentInput) (string, error) {
		return `{"files": {"src/App.tsx": 7}}`, nil
	})

	_, err := h.orch.Generate(context.Background(), Request{BuildRequestID: "br-recipe", Options: opts(entity.DocumentCodePrototype)})
	require.Error(t, err)

	var parseErr *chain.ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, entity.GenerationStatusFailed, h.projects.get("ai-recipe-finder").Status)
}

func TestGenerate_BuildRequestNotFound(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.orch.Generate(context.Background(), Request{BuildRequestID: "missing"})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeBuildRequestNotFound))
	assert.Zero(t, h.agents.totalCalls())
	assert.Empty(t, h.builds.history("missing"))
}

func TestGenerate_RejectsConcurrentRunForSameSlug(t *testing.T) {
	h := newHarness(t, nil)
	guard := NewInProcessGuard()
	release, ok, err := guard.Acquire(context.Background(), "ai-recipe-finder")
	require.NoError(t, err)
	require.True(t, ok)
	defer release()

	h.orch = NewOrchestrator(Deps{BuildRequests: h.builds, Projects: h.projects, Agents: h.agents, Guard: guard}, config.GenerationConfig{})

	_, err = h.orch.Generate(context.Background(), Request{BuildRequestID: "br-recipe"})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeGenerationInProgress))
	assert.Empty(t, h.builds.history("br-recipe"))
}

func TestGenerate_FinishesAfterCallerCancels(t *testing.T) {
	h := newHarness(t, func(ctx context.Context, in *wfmodel.AgentInput) (string, error) {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "doc", nil
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := h.orch.Generate(ctx, Request{BuildRequestID: "br-recipe", Options: opts(entity.DocumentMarketResearch, entity.DocumentPRD)})
	require.NoError(t, err)
	assert.Equal(t, entity.GenerationStatusCompleted, res.Project.Status)
}

func TestGenerate_RegenerationKeepsRowIdentity(t *testing.T) {
	h := newHarness(t, nil)

	first, err := h.orch.Generate(context.Background(), Request{BuildRequestID: "br-recipe", Options: opts(entity.DocumentPRD)})
	require.NoError(t, err)
	second, err := h.orch.Generate(context.Background(), Request{BuildRequestID: "br-recipe", Options: opts(entity.DocumentTechSpec)})
	require.NoError(t, err)

	assert.Equal(t, first.Project.ID, second.Project.ID)
	p := h.projects.get("ai-recipe-finder")
	assert.Empty(t, p.PRD, "the bundle reflects the latest run")
	assert.NotEmpty(t, p.TechSpec)
}

func TestGenerate_ConcurrentProposalsDoNotCrossContaminate(t *testing.T) {
	var brs []*entity.BuildRequest
	for i := 0; i < 6; i++ {
		brs = append(brs, &entity.BuildRequest{
			ID:    fmt.Sprintf("br-%d", i),
			Title: fmt.Sprintf("Idea Number %d", i),
		})
	}
	h := newHarness(t, func(ctx context.Context, in *wfmodel.AgentInput) (string, error) {
		time.Sleep(5 * time.Millisecond)
		return echoAgent(ctx, in)
	}, brs...)

	all := entity.DefaultGenerationOptions()
	var wg sync.WaitGroup
	errs := make([]error, len(brs))
	for i, br := range brs {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, errs[i] = h.orch.Generate(context.Background(), Request{BuildRequestID: id, Options: &all})
		}(i, br.ID)
	}
	wg.Wait()

	for i, br := range brs {
		require.NoError(t, errs[i])
		slug := entity.NewProjectSlug(br.Title, 50)
		p := h.projects.get(slug)
		require.NotNil(t, p, slug)
		assert.Equal(t, entity.GenerationStatusCompleted, p.Status)
		for _, doc := range []string{p.MarketResearch, p.ProjectCharter, p.PRD, p.TechSpec, p.CodeFiles["src/App.tsx"]} {
			assert.Contains(t, doc, br.Title)
			for j, other := range brs {
				if j != i {
					assert.NotContains(t, doc, other.Title+" ")
					assert.NotContains(t, doc, other.Title+"<")
				}
			}
		}
		assert.Equal(t, br.ID, p.BuildRequestID)
	}
}
