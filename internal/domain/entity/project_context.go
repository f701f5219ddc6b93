package entity

import (
	"strings"
)

// ProjectContext 提案的只读投影，每次生成构建一次
type ProjectContext struct {
	Title          string
	Category       string
	Description    string
	TargetAudience string
	Features       []string
	SubmitterName  string
}

// Render 渲染为提供给各个 agent 的基础上下文文本
func (c ProjectContext) Render() string {
	var b strings.Builder
	b.WriteString("Project Title: ")
	b.WriteString(c.Title)
	b.WriteString("\nCategory: ")
	b.WriteString(orNotSpecified(c.Category))
	b.WriteString("\nDescription: ")
	b.WriteString(orNotSpecified(c.Description))
	b.WriteString("\nTarget Audience: ")
	b.WriteString(orNotSpecified(c.TargetAudience))
	b.WriteString("\nKey Features:")
	if len(c.Features) == 0 {
		b.WriteString(" Not specified")
	}
	for _, f := range c.Features {
		if strings.TrimSpace(f) == "" {
			continue
		}
		b.WriteString("\n- ")
		b.WriteString(strings.TrimSpace(f))
	}
	if c.SubmitterName != "" {
		b.WriteString("\nSubmitted By: ")
		b.WriteString(c.SubmitterName)
	}
	return b.String()
}

func orNotSpecified(s string) string {
	if strings.TrimSpace(s) == "" {
		return "Not specified"
	}
	return strings.TrimSpace(s)
}
