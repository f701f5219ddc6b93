package dto

import (
	"ideaforge-api/internal/domain/entity"
	"ideaforge-api/internal/domain/repository"
)

// ProjectListResponse 项目列表
type ProjectListResponse struct {
	Projects []*GeneratedProjectResponse `json:"projects"`
}

// ToProjectListResponse 转换分页结果
func ToProjectListResponse(page *repository.PagedResult[*entity.GeneratedProject]) (*ProjectListResponse, *PageMeta) {
	out := make([]*GeneratedProjectResponse, 0, len(page.Items))
	for _, p := range page.Items {
		out = append(out, ToGeneratedProjectResponse(p, false))
	}
	return &ProjectListResponse{Projects: out}, &PageMeta{
		Page:       page.Page,
		PageSize:   page.PageSize,
		Total:      int(page.Total),
		TotalPages: page.TotalPages,
	}
}
