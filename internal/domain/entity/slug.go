package entity

import (
	"strings"
)

// DefaultSlugMaxLength 项目 slug 默认最大长度
const DefaultSlugMaxLength = 50

const untitledSlug = "untitled-project"

// NewProjectSlug 由标题生成确定性的项目 slug：
// 小写，连续的非字母数字字符折叠为单个 '-'，去掉首尾 '-'，截断到 maxLen
func NewProjectSlug(title string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = DefaultSlugMaxLength
	}

	var b strings.Builder
	b.Grow(len(title))
	pendingSep := false
	for _, r := range strings.ToLower(title) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingSep = false
			b.WriteRune(r)
			continue
		}
		pendingSep = true
	}

	slug := b.String()
	if len(slug) > maxLen {
		slug = strings.TrimRight(slug[:maxLen], "-")
	}
	if slug == "" {
		return untitledSlug
	}
	return slug
}
