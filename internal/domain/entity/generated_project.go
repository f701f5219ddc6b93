package entity

import (
	"sort"
	"time"
)

// CodeFiles 代码原型文件，相对路径 -> 内容
type CodeFiles map[string]string

// Paths 返回排序后的文件路径
func (f CodeFiles) Paths() []string {
	paths := make([]string, 0, len(f))
	for p := range f {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// GeneratedProject 一次生成的文档集合，按 project_slug 唯一
type GeneratedProject struct {
	ID             string            `json:"id" gorm:"primaryKey;type:uuid"`
	BuildRequestID string            `json:"build_request_id" gorm:"type:uuid;index"`
	ProjectSlug    string            `json:"project_slug" gorm:"uniqueIndex;size:64"`
	Title          string            `json:"title"`
	MarketResearch string            `json:"market_research"`
	ProjectCharter string            `json:"project_charter"`
	PRD            string            `json:"prd" gorm:"column:prd"`
	TechSpec       string            `json:"tech_spec"`
	CodeFiles      CodeFiles         `json:"code_files" gorm:"type:jsonb;serializer:json"`
	PreviewURL     string            `json:"preview_url,omitempty"`
	GitHubURL      string            `json:"github_url,omitempty" gorm:"column:github_url"`
	Status         GenerationStatus  `json:"status" gorm:"type:varchar(20)"`
	ErrorMessage   string            `json:"error_message,omitempty"`
	Options        GenerationOptions `json:"options" gorm:"type:jsonb;serializer:json"`
	GeneratedBy    string            `json:"generated_by" gorm:"type:uuid"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
	CompletedAt    *time.Time        `json:"completed_at,omitempty"`
}

// TableName 表名
func (GeneratedProject) TableName() string {
	return "generated_projects"
}

// NewGeneratedProject 创建待生成的文档集合
func NewGeneratedProject(buildRequestID, slug, title, userID string, opts GenerationOptions) *GeneratedProject {
	return &GeneratedProject{
		BuildRequestID: buildRequestID,
		ProjectSlug:    slug,
		Title:          title,
		CodeFiles:      CodeFiles{},
		Status:         GenerationStatusPending,
		Options:        opts,
		GeneratedBy:    userID,
	}
}

// StartProcessing 进入处理中，清空上一次生成的结果
func (p *GeneratedProject) StartProcessing() {
	p.Status = GenerationStatusProcessing
	p.ErrorMessage = ""
	p.CompletedAt = nil
}

// Complete 写入文档并进入完成态
func (p *GeneratedProject) Complete(docs Documents, previewURL, githubURL string) {
	now := time.Now()
	p.MarketResearch = docs.MarketResearch
	p.ProjectCharter = docs.ProjectCharter
	p.PRD = docs.PRD
	p.TechSpec = docs.TechSpec
	p.CodeFiles = docs.CodeFiles
	if p.CodeFiles == nil {
		p.CodeFiles = CodeFiles{}
	}
	p.PreviewURL = previewURL
	p.GitHubURL = githubURL
	p.Status = GenerationStatusCompleted
	p.ErrorMessage = ""
	p.CompletedAt = &now
}

// Fail 进入失败态，不写入任何文档
func (p *GeneratedProject) Fail(message string) {
	now := time.Now()
	p.Status = GenerationStatusFailed
	p.ErrorMessage = message
	p.CompletedAt = &now
}

// Documents 取出当前保存的文档
func (p *GeneratedProject) Documents() Documents {
	return Documents{
		MarketResearch: p.MarketResearch,
		ProjectCharter: p.ProjectCharter,
		PRD:            p.PRD,
		TechSpec:       p.TechSpec,
		CodeFiles:      p.CodeFiles,
	}
}

// Documents 文档阶段产物
type Documents struct {
	MarketResearch string
	ProjectCharter string
	PRD            string
	TechSpec       string
	CodeFiles      CodeFiles
}

// Get 按阶段取文本文档
func (d Documents) Get(kind DocumentKind) string {
	switch kind {
	case DocumentMarketResearch:
		return d.MarketResearch
	case DocumentProjectCharter:
		return d.ProjectCharter
	case DocumentPRD:
		return d.PRD
	case DocumentTechSpec:
		return d.TechSpec
	default:
		return ""
	}
}
