package generation

import (
	"fmt"

	"ideaforge-api/internal/domain/entity"
)

// PublishTarget 发布目标
type PublishTarget string

const (
	TargetStorage PublishTarget = "storage"
	TargetVCS     PublishTarget = "vcs"
)

// PublishOutcome 单个发布目标的结果；失败不影响生成状态
type PublishOutcome struct {
	Target  PublishTarget
	URL     string
	Err     error
	Skipped bool
}

// OK 是否发布成功
func (o PublishOutcome) OK() bool {
	return o.Err == nil && !o.Skipped && o.URL != ""
}

// StageError 文档阶段失败，整次生成终止
type StageError struct {
	Stage entity.DocumentKind
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s generation failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Request 一次生成请求
type Request struct {
	BuildRequestID string
	UserID         string
	// Options 为 nil 时使用默认选项
	Options *entity.GenerationOptions
}

// Result 生成完成后的结果
type Result struct {
	Project *entity.GeneratedProject
	Storage PublishOutcome
	VCS     PublishOutcome
}
