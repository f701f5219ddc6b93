// Package preview 将生成的 TSX 代码渲染为可在沙箱中直接运行的单页文档
package preview

import (
	"errors"
	"path"
	"strings"
	"unicode"
)

// ErrUnparseable 源码存在语法错误，交给下一个 stripper 处理
var ErrUnparseable = errors.New("source does not parse cleanly")

const defaultExportAlias = "__default_export__"

// Import 一个被绑定到本地名的导入
type Import struct {
	Source string
	Local  string
	// Imported 为 "default"、"*" 或具名导出的名字
	Imported string
}

// Export 一个具名导出
type Export struct {
	Local    string
	Exported string
}

// Module 去除类型与模块语法后的单个文件
type Module struct {
	Code        string
	Imports     []Import
	Exports     []Export
	DefaultName string
}

// Stripper 去除 import/export 与类型语法
type Stripper interface {
	Name() string
	Strip(src []byte) (*Module, error)
}

func (m *Module) addImport(source, local, imported string) {
	if local == "" {
		return
	}
	m.Imports = append(m.Imports, Import{Source: source, Local: local, Imported: imported})
}

func (m *Module) addExport(local, exported string) {
	if local == "" {
		return
	}
	if exported == "" {
		exported = local
	}
	if exported == "default" {
		m.DefaultName = local
		return
	}
	m.Exports = append(m.Exports, Export{Local: local, Exported: exported})
}

// ModuleName 路径到模块名：去扩展名，index 文件取所在目录名
func ModuleName(p string) string {
	p = strings.TrimSuffix(p, "/")
	base := path.Base(p)
	base = strings.TrimSuffix(base, path.Ext(base))
	if base == "index" {
		dir := path.Base(path.Dir(p))
		if dir != "." && dir != "/" {
			return dir
		}
	}
	return base
}

func isPascalCase(name string) bool {
	for _, r := range name {
		return unicode.IsUpper(r)
	}
	return false
}

func trimQuotes(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		if q := s[0]; (q == '"' || q == '\'' || q == '`') && s[len(s)-1] == q {
			return s[1 : len(s)-1]
		}
	}
	return s
}
