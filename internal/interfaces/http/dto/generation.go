package dto

import (
	"time"

	"ideaforge-api/internal/domain/entity"
	"ideaforge-api/internal/workflow/node"
)

// GenerationOptionsRequest 生成选项，未出现的开关视为关闭
type GenerationOptionsRequest struct {
	MarketResearch     bool   `json:"market_research"`
	ProjectCharter     bool   `json:"project_charter"`
	PRD                bool   `json:"prd"`
	TechSpec           bool   `json:"tech_spec"`
	CodePrototype      bool   `json:"code_prototype"`
	CustomInstructions string `json:"custom_instructions,omitempty" binding:"max=4000"`
	FocusArea          string `json:"focus_area,omitempty"`
}

// GenerateRequest 生成请求
type GenerateRequest struct {
	BuildRequestID string                    `json:"build_request_id" binding:"required,max=64"`
	Options        *GenerationOptionsRequest `json:"options,omitempty"`
	// Async 为 true 时投递到队列并立即返回 202
	Async bool `json:"async,omitempty"`
}

// ToOptions 转换为领域选项；未携带选项时返回 nil，由编排器使用默认值
func (r *GenerateRequest) ToOptions() (*entity.GenerationOptions, error) {
	if r.Options == nil {
		return nil, nil
	}
	focus, err := entity.ParseFocusArea(r.Options.FocusArea)
	if err != nil {
		return nil, err
	}
	return &entity.GenerationOptions{
		MarketResearch:     r.Options.MarketResearch,
		ProjectCharter:     r.Options.ProjectCharter,
		PRD:                r.Options.PRD,
		TechSpec:           r.Options.TechSpec,
		CodePrototype:      r.Options.CodePrototype,
		CustomInstructions: r.Options.CustomInstructions,
		FocusArea:          focus,
	}, nil
}

// DocumentsResponse 文档集合
type DocumentsResponse struct {
	MarketResearch string            `json:"market_research"`
	ProjectCharter string            `json:"project_charter"`
	PRD            string            `json:"prd"`
	TechSpec       string            `json:"tech_spec"`
	CodeFiles      map[string]string `json:"code_files"`
}

// GeneratedProjectResponse 生成结果
type GeneratedProjectResponse struct {
	ID             string             `json:"id"`
	BuildRequestID string             `json:"build_request_id"`
	ProjectSlug    string             `json:"project_slug"`
	Title          string             `json:"title"`
	Status         string             `json:"status"`
	ErrorMessage   string             `json:"error_message,omitempty"`
	PreviewURL     *string            `json:"preview_url"`
	GitHubURL      *string            `json:"github_url"`
	Documents      *DocumentsResponse `json:"documents,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
	CompletedAt    *time.Time         `json:"completed_at,omitempty"`
}

// GenerateResponse 同步生成成功响应
type GenerateResponse struct {
	Success bool                      `json:"success"`
	Project *GeneratedProjectResponse `json:"project"`
}

// GenerateAcceptedResponse 异步生成受理响应
type GenerateAcceptedResponse struct {
	BuildRequestID string `json:"build_request_id"`
	MessageID      string `json:"message_id"`
	StatusURL      string `json:"status_url"`
}

// GenerationStatusResponse 生成状态轮询响应
type GenerationStatusResponse struct {
	BuildRequestID   string  `json:"build_request_id"`
	GenerationStatus *string `json:"generation_status"`
	PreviewURL       *string `json:"preview_url"`
	GitHubURL        *string `json:"github_url"`
}

// ToGeneratedProjectResponse 转换生成结果，withDocuments 为 false 时不返回文档正文
func ToGeneratedProjectResponse(p *entity.GeneratedProject, withDocuments bool) *GeneratedProjectResponse {
	if p == nil {
		return nil
	}
	resp := &GeneratedProjectResponse{
		ID:             p.ID,
		BuildRequestID: p.BuildRequestID,
		ProjectSlug:    p.ProjectSlug,
		Title:          p.Title,
		Status:         string(p.Status),
		ErrorMessage:   p.ErrorMessage,
		PreviewURL:     optional(p.PreviewURL),
		GitHubURL:      optional(p.GitHubURL),
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
		CompletedAt:    p.CompletedAt,
	}
	if withDocuments {
		resp.Documents = documentsResponse(p.Documents(), 0)
	}
	return resp
}

// ToGeneratedProjectPreview 同步生成响应：文档与代码文件只返回截断后的预览
func ToGeneratedProjectPreview(p *entity.GeneratedProject, previewChars int) *GeneratedProjectResponse {
	resp := ToGeneratedProjectResponse(p, false)
	if resp == nil {
		return nil
	}
	if previewChars <= 0 {
		previewChars = DefaultPreviewChars
	}
	resp.Documents = documentsResponse(p.Documents(), previewChars)
	return resp
}

// DefaultPreviewChars 未配置时的预览长度
const DefaultPreviewChars = 500

// documentsResponse limit 为 0 时返回全文
func documentsResponse(docs entity.Documents, limit int) *DocumentsResponse {
	cut := func(s string) string {
		if limit <= 0 {
			return s
		}
		return node.Excerpt(s, limit)
	}
	files := make(map[string]string, len(docs.CodeFiles))
	for path, content := range docs.CodeFiles {
		files[path] = cut(content)
	}
	return &DocumentsResponse{
		MarketResearch: cut(docs.Get(entity.DocumentMarketResearch)),
		ProjectCharter: cut(docs.Get(entity.DocumentProjectCharter)),
		PRD:            cut(docs.Get(entity.DocumentPRD)),
		TechSpec:       cut(docs.Get(entity.DocumentTechSpec)),
		CodeFiles:      files,
	}
}

// ToGenerationStatusResponse 转换构建请求的生成状态
func ToGenerationStatusResponse(br *entity.BuildRequest) *GenerationStatusResponse {
	return &GenerationStatusResponse{
		BuildRequestID:   br.ID,
		GenerationStatus: optional(string(br.GenerationStatus)),
		PreviewURL:       optional(br.PreviewURL),
		GitHubURL:        optional(br.GitHubURL),
	}
}

// optional 空字符串序列化为 null
func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
