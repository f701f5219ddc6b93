package generation

import (
	"strings"

	"ideaforge-api/internal/config"
	"ideaforge-api/internal/domain/entity"
	wfnode "ideaforge-api/internal/workflow/node"
	"ideaforge-api/internal/workflow/prompt"
)

// buildBaseContext 项目上下文 + 侧重方向 + 自定义指令，一次生成只构建一次
func buildBaseContext(pc entity.ProjectContext, opts entity.GenerationOptions) string {
	var b strings.Builder
	b.WriteString(pc.Render())

	if modifier := prompt.FocusModifier(opts.FocusArea); modifier != "" {
		b.WriteString("\n\n")
		b.WriteString(modifier)
	}
	if custom := strings.TrimSpace(opts.CustomInstructions); custom != "" {
		b.WriteString("\n\nAdditional Instructions:\n")
		b.WriteString(custom)
	}
	return b.String()
}

// withReference 在基础上下文后追加上游文档摘录，上游为空时原样返回
func withReference(base, heading, doc string, limit int) string {
	if strings.TrimSpace(doc) == "" {
		return base
	}
	var b strings.Builder
	b.WriteString(base)
	b.WriteString("\n\n--- ")
	b.WriteString(heading)
	b.WriteString(" ---\n")
	b.WriteString(wfnode.Excerpt(doc, limit))
	return b.String()
}

func excerptLimitsOrDefault(l config.ExcerptLimits) config.ExcerptLimits {
	if l.ResearchForPRD <= 0 {
		l.ResearchForPRD = 3000
	}
	if l.PRDForTechSpec <= 0 {
		l.PRDForTechSpec = 3000
	}
	if l.PRDForCode <= 0 {
		l.PRDForCode = 2000
	}
	if l.TechSpecForCode <= 0 {
		l.TechSpecForCode = 3000
	}
	return l
}
