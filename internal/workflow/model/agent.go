// Package model 定义工作流节点之间传递的数据结构
package model

import (
	"encoding/json"
	"time"
)

// AgentInput 一次 agent 调用的输入
type AgentInput struct {
	// Stage 生成阶段名，用于日志、指标与追踪
	Stage string
	// Provider 为空时使用默认提供商
	Provider         string
	RolePrompt       string
	ContextText      string
	ExpectStructured bool
}

// AgentOutput 一次 agent 调用的输出
type AgentOutput struct {
	// Text 原始文本；结构化调用时为截取出的 JSON 文本
	Text string
	// JSON 结构化调用时已校验的 JSON
	JSON  json.RawMessage
	Usage LLMUsageMeta
}

// LLMUsageMeta 调用用量
type LLMUsageMeta struct {
	Provider         string
	PromptTokens     int
	CompletionTokens int
	Duration         time.Duration
	GeneratedAt      time.Time
}
