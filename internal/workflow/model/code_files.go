package model

import (
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"ideaforge-api/internal/domain/entity"
)

// DecodeCodeFiles 解析 coder 输出：{"files": {path: content}}，缺少 files 键视为格式错误
func DecodeCodeFiles(raw json.RawMessage) (entity.CodeFiles, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return nil, fmt.Errorf("code output is not a JSON object: %w", err)
	}
	filesRaw, ok := top["files"]
	if !ok {
		return nil, fmt.Errorf("code output has no \"files\" key")
	}
	var entries map[string]json.RawMessage
	if err := json.Unmarshal(filesRaw, &entries); err != nil || entries == nil {
		return nil, fmt.Errorf("\"files\" is not a JSON object")
	}

	files := make(entity.CodeFiles, len(entries))
	for p, v := range entries {
		var content string
		if err := json.Unmarshal(v, &content); err != nil {
			return nil, fmt.Errorf("content of %q is not a string", p)
		}
		clean := cleanRelativePath(p)
		if clean == "" {
			return nil, fmt.Errorf("invalid file path %q", p)
		}
		files[clean] = content
	}
	return files, nil
}

// cleanRelativePath 规范为不以 / 开头、不含 .. 的相对路径
func cleanRelativePath(p string) string {
	p = strings.ReplaceAll(strings.TrimSpace(p), "\\", "/")
	p = path.Clean("/" + p)
	p = strings.TrimPrefix(p, "/")
	if p == "" || p == "." {
		return ""
	}
	return p
}
