package node

import (
	"strings"
)

// ExtractJSONObject 从模型输出中截取第一个 JSON 对象，兼容 Markdown 代码块与前后夹杂的说明文字。
// 以数组开头的输出原样返回，由调用方判定为非法
func ExtractJSONObject(s string) string {
	raw := strings.TrimSpace(stripCodeFence(s))
	if raw == "" || raw[0] == '[' {
		return raw
	}

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		raw = raw[start : end+1]
	}
	return raw
}

func stripCodeFence(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") {
		return s
	}
	if i := strings.Index(t, "\n"); i >= 0 {
		t = t[i+1:]
	}
	t = strings.TrimSpace(t)
	return strings.TrimSuffix(t, "```")
}
