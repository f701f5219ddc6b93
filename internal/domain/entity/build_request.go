package entity

import (
	"time"

	"github.com/lib/pq"
)

// BuildRequest 用户提交的项目提案，以及其生成状态
type BuildRequest struct {
	ID               string           `json:"id" gorm:"primaryKey;type:uuid"`
	UserID           string           `json:"user_id" gorm:"type:uuid;index"`
	SubmitterName    string           `json:"submitter_name"`
	Title            string           `json:"title"`
	Category         string           `json:"category"`
	Description      string           `json:"description"`
	TargetAudience   string           `json:"target_audience"`
	Features         pq.StringArray   `json:"features" gorm:"type:text[]"`
	GenerationStatus GenerationStatus `json:"generation_status,omitempty" gorm:"type:varchar(20);default:null"`
	PreviewURL       string           `json:"preview_url,omitempty"`
	GitHubURL        string           `json:"github_url,omitempty" gorm:"column:github_url"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// TableName 表名
func (BuildRequest) TableName() string {
	return "build_requests"
}

// Context 投影出生成所需的只读上下文
func (b *BuildRequest) Context() ProjectContext {
	features := make([]string, len(b.Features))
	copy(features, b.Features)
	return ProjectContext{
		Title:          b.Title,
		Category:       b.Category,
		Description:    b.Description,
		TargetAudience: b.TargetAudience,
		Features:       features,
		SubmitterName:  b.SubmitterName,
	}
}
