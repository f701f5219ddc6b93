package node

import "unicode/utf8"

// TruncateByRunes 按字符数截断
func TruncateByRunes(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	n := 0
	for i := range s {
		if n == maxRunes {
			return s[:i]
		}
		n++
	}
	return s
}

// Excerpt 截断上游文档供下游阶段引用，截断时追加省略标记
func Excerpt(s string, maxRunes int) string {
	out := TruncateByRunes(s, maxRunes)
	if len(out) < len(s) {
		return out + "\n...[truncated]"
	}
	return out
}
