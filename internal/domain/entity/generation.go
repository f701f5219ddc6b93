// Package entity 定义领域实体
package entity

import (
	"fmt"
	"strings"
)

// GenerationStatus 生成状态
type GenerationStatus string

const (
	// GenerationStatusNone 尚未发起生成，对应数据库 NULL
	GenerationStatusNone       GenerationStatus = ""
	GenerationStatusPending    GenerationStatus = "pending"
	GenerationStatusProcessing GenerationStatus = "processing"
	GenerationStatusCompleted  GenerationStatus = "completed"
	GenerationStatusFailed     GenerationStatus = "failed"
)

// IsTerminal 是否为终态
func (s GenerationStatus) IsTerminal() bool {
	return s == GenerationStatusCompleted || s == GenerationStatusFailed
}

// FocusArea 生成侧重方向
type FocusArea string

const (
	FocusBalanced   FocusArea = "balanced"
	FocusBudget     FocusArea = "budget"
	FocusSpeed      FocusArea = "speed"
	FocusQuality    FocusArea = "quality"
	FocusMVP        FocusArea = "mvp"
	FocusEnterprise FocusArea = "enterprise"
)

// ParseFocusArea 解析侧重方向，空值视为 balanced
func ParseFocusArea(s string) (FocusArea, error) {
	switch f := FocusArea(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FocusBalanced, nil
	case FocusBalanced, FocusBudget, FocusSpeed, FocusQuality, FocusMVP, FocusEnterprise:
		return f, nil
	default:
		return "", fmt.Errorf("unknown focus area %q", s)
	}
}

// DocumentKind 文档阶段
type DocumentKind string

const (
	DocumentMarketResearch DocumentKind = "market_research"
	DocumentProjectCharter DocumentKind = "project_charter"
	DocumentPRD            DocumentKind = "prd"
	DocumentTechSpec       DocumentKind = "tech_spec"
	DocumentCodePrototype  DocumentKind = "code_prototype"
)

// GenerationOptions 生成选项
type GenerationOptions struct {
	MarketResearch     bool      `json:"market_research"`
	ProjectCharter     bool      `json:"project_charter"`
	PRD                bool      `json:"prd"`
	TechSpec           bool      `json:"tech_spec"`
	CodePrototype      bool      `json:"code_prototype"`
	CustomInstructions string    `json:"custom_instructions,omitempty"`
	FocusArea          FocusArea `json:"focus_area"`
}

// DefaultGenerationOptions 请求未携带选项时使用：全部文档开启
func DefaultGenerationOptions() GenerationOptions {
	return GenerationOptions{
		MarketResearch: true,
		ProjectCharter: true,
		PRD:            true,
		TechSpec:       true,
		CodePrototype:  true,
		FocusArea:      FocusBalanced,
	}
}

// Enabled 判断某个文档阶段是否开启
func (o GenerationOptions) Enabled(kind DocumentKind) bool {
	switch kind {
	case DocumentMarketResearch:
		return o.MarketResearch
	case DocumentProjectCharter:
		return o.ProjectCharter
	case DocumentPRD:
		return o.PRD
	case DocumentTechSpec:
		return o.TechSpec
	case DocumentCodePrototype:
		return o.CodePrototype
	default:
		return false
	}
}

// EnabledKinds 按执行顺序返回开启的阶段
func (o GenerationOptions) EnabledKinds() []DocumentKind {
	all := []DocumentKind{
		DocumentMarketResearch,
		DocumentProjectCharter,
		DocumentPRD,
		DocumentTechSpec,
		DocumentCodePrototype,
	}
	out := make([]DocumentKind, 0, len(all))
	for _, k := range all {
		if o.Enabled(k) {
			out = append(out, k)
		}
	}
	return out
}
