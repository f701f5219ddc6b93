package generation

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"

	"ideaforge-api/internal/domain/entity"
	"ideaforge-api/internal/domain/repository"
	wfmodel "ideaforge-api/internal/workflow/model"
)

type fakeBuildRequests struct {
	mu       sync.Mutex
	items    map[string]*entity.BuildRequest
	statuses map[string][]entity.GenerationStatus
	// resultFailures 次数内 UpdateGenerationResult 返回 resultErr
	resultErr      error
	resultFailures int
	resultCalls    int
}

func newFakeBuildRequests(brs ...*entity.BuildRequest) *fakeBuildRequests {
	f := &fakeBuildRequests{
		items:    make(map[string]*entity.BuildRequest),
		statuses: make(map[string][]entity.GenerationStatus),
	}
	for _, br := range brs {
		f.items[br.ID] = br
	}
	return f
}

func (f *fakeBuildRequests) GetByID(_ context.Context, id string) (*entity.BuildRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	br, ok := f.items[id]
	if !ok {
		return nil, nil
	}
	cp := *br
	return &cp, nil
}

func (f *fakeBuildRequests) UpdateGenerationStatus(_ context.Context, id string, status entity.GenerationStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[id].GenerationStatus = status
	f.statuses[id] = append(f.statuses[id], status)
	return nil
}

func (f *fakeBuildRequests) UpdateGenerationResult(_ context.Context, id string, status entity.GenerationStatus, previewURL, githubURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resultCalls++
	if f.resultErr != nil && f.resultCalls <= f.resultFailures {
		return f.resultErr
	}
	br := f.items[id]
	br.GenerationStatus = status
	br.PreviewURL = previewURL
	br.GitHubURL = githubURL
	f.statuses[id] = append(f.statuses[id], status)
	return nil
}

func (f *fakeBuildRequests) get(id string) entity.BuildRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.items[id]
}

func (f *fakeBuildRequests) history(id string) []entity.GenerationStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]entity.GenerationStatus(nil), f.statuses[id]...)
}

type fakeProjects struct {
	mu       sync.Mutex
	items    map[string]*entity.GeneratedProject
	statuses map[string][]entity.GenerationStatus
}

func newFakeProjects() *fakeProjects {
	return &fakeProjects{
		items:    make(map[string]*entity.GeneratedProject),
		statuses: make(map[string][]entity.GenerationStatus),
	}
}

func (f *fakeProjects) Upsert(_ context.Context, p *entity.GeneratedProject) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	cp := *p
	f.items[p.ProjectSlug] = &cp
	f.statuses[p.ProjectSlug] = append(f.statuses[p.ProjectSlug], p.Status)
	return nil
}

func (f *fakeProjects) GetBySlug(_ context.Context, slug string) (*entity.GeneratedProject, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.items[slug]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (f *fakeProjects) UpdateStatus(_ context.Context, slug string, status entity.GenerationStatus, msg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.items[slug]
	if !ok {
		return errors.New("not found")
	}
	p.Status = status
	p.ErrorMessage = msg
	f.statuses[slug] = append(f.statuses[slug], status)
	return nil
}

func (f *fakeProjects) ListCompleted(context.Context, repository.Pagination) (*repository.PagedResult[*entity.GeneratedProject], error) {
	return nil, errors.New("not used")
}

func (f *fakeProjects) get(slug string) *entity.GeneratedProject {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.items[slug]
}

func (f *fakeProjects) history(slug string) []entity.GenerationStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]entity.GenerationStatus(nil), f.statuses[slug]...)
}

// fakeAgents 记录每个阶段收到的上下文，按阶段返回预设输出
type fakeAgents struct {
	mu       sync.Mutex
	contexts map[string][]string
	respond  func(ctx context.Context, in *wfmodel.AgentInput) (string, error)
}

func newFakeAgents(respond func(ctx context.Context, in *wfmodel.AgentInput) (string, error)) *fakeAgents {
	if respond == nil {
		respond = echoAgent
	}
	return &fakeAgents{contexts: make(map[string][]string), respond: respond}
}

func (f *fakeAgents) Invoke(ctx context.Context, in *wfmodel.AgentInput) (*wfmodel.AgentOutput, error) {
	f.mu.Lock()
	f.contexts[in.Stage] = append(f.contexts[in.Stage], in.ContextText)
	f.mu.Unlock()

	text, err := f.respond(ctx, in)
	if err != nil {
		return nil, err
	}
	out := &wfmodel.AgentOutput{Text: text}
	if in.ExpectStructured {
		out.JSON = []byte(text)
	}
	return out, nil
}

func (f *fakeAgents) contextFor(stage entity.DocumentKind) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.contexts[string(stage)]...)
}

func (f *fakeAgents) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.contexts {
		n += len(c)
	}
	return n
}

// echoAgent 输出包含阶段名与项目标题，便于检查串扰
func echoAgent(_ context.Context, in *wfmodel.AgentInput) (string, error) {
	title := firstLine(in.ContextText)
	if in.ExpectStructured {
		return `{"files": {"src/App.tsx": "export default function App() { return <div>` + title + `</div>; }"}}`, nil
	}
	return "# " + in.Stage + " for " + title, nil
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return strings.TrimPrefix(line, "Project Title: ")
}

type fakePublisher struct {
	mu    sync.Mutex
	url   string
	err   error
	calls []string
}

func (f *fakePublisher) Publish(_ context.Context, slug string, _ entity.CodeFiles) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, slug)
	if f.err != nil {
		return "", f.err
	}
	return f.url + "/" + slug, nil
}

type fakeRepoPublisher struct {
	fakePublisher
	descriptions []string
}

func (f *fakeRepoPublisher) Publish(ctx context.Context, slug string, files entity.CodeFiles, description string) (string, error) {
	f.mu.Lock()
	f.descriptions = append(f.descriptions, description)
	f.mu.Unlock()
	return f.fakePublisher.Publish(ctx, slug, files)
}

type fakeCache struct {
	mu   sync.Mutex
	keys []string
}

func (f *fakeCache) Invalidate(_ context.Context, slug string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, slug)
	return nil
}
