package preview

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"path"
	"regexp"
	"sort"
	"strings"
	"text/template"

	"ideaforge-api/internal/config"
	"ideaforge-api/internal/domain/entity"
	"ideaforge-api/pkg/logger"
	"ideaforge-api/pkg/metrics"
)

// SandboxPolicy 预览文档的 CSP：只允许脚本与同源访问
const SandboxPolicy = "sandbox allow-scripts allow-same-origin"

const (
	defaultReactURL    = "https://unpkg.com/react@18/umd/react.production.min.js"
	defaultReactDOMURL = "https://unpkg.com/react-dom@18/umd/react-dom.production.min.js"
	defaultBabelURL    = "https://unpkg.com/@babel/standalone/babel.min.js"
	defaultTailwindURL = "https://cdn.tailwindcss.com"
)

var (
	//go:embed assets/runtime.js
	runtimeJS string
	//go:embed assets/document.html.tmpl
	documentTemplate string

	reScriptClose = regexp.MustCompile(`(?i)</(script)`)
	reStyleClose  = regexp.MustCompile(`(?i)</(style)`)
)

var scriptExtensions = map[string]bool{".tsx": true, ".jsx": true, ".ts": true, ".js": true}

// 入口文件只负责挂载，由运行时代替
var entryFiles = map[string]bool{"main": true, "index": true}

type fileKind int

const (
	kindLibrary fileKind = iota
	kindComponent
	kindPage
	kindApp
)

func (k fileKind) String() string {
	switch k {
	case kindComponent:
		return "components"
	case kindPage:
		return "pages"
	case kindApp:
		return "app"
	default:
		return "lib"
	}
}

type source struct {
	path string
	name string
	kind fileKind
	mod  *Module
}

type renderModule struct {
	Path     string
	Prelude  string
	Code     string
	Register string
}

type documentData struct {
	Title       string
	TitleJSON   string
	ReactURL    string
	ReactDOMURL string
	BabelURL    string
	TailwindURL string
	Runtime     string
	Styles      []string
	Modules     []renderModule
}

// Renderer 将代码文件渲染为单个自包含的 HTML 文档
type Renderer struct {
	cfg       config.PreviewConfig
	strippers []Stripper
	tmpl      *template.Template
}

// NewRenderer 创建渲染器；语法树解析失败时按顺序降级到词法实现
func NewRenderer(cfg config.PreviewConfig, strippers ...Stripper) *Renderer {
	if len(strippers) == 0 {
		strippers = []Stripper{NewTreeSitterStripper(), NewLexicalStripper()}
	}
	if cfg.ReactURL == "" {
		cfg.ReactURL = defaultReactURL
	}
	if cfg.ReactDOMURL == "" {
		cfg.ReactDOMURL = defaultReactDOMURL
	}
	if cfg.BabelURL == "" {
		cfg.BabelURL = defaultBabelURL
	}
	if cfg.TailwindURL == "" {
		cfg.TailwindURL = defaultTailwindURL
	}
	return &Renderer{
		cfg:       cfg,
		strippers: strippers,
		tmpl:      template.Must(template.New("document").Parse(documentTemplate)),
	}
}

// Render 生成预览文档。单个文件转换失败不会阻止文档生成，错误在沙箱内呈现
func (r *Renderer) Render(ctx context.Context, files entity.CodeFiles, title string) (string, error) {
	titleJSON, _ := json.Marshal(title)
	data := documentData{
		Title:       html.EscapeString(title),
		TitleJSON:   scriptSafe(string(titleJSON)),
		ReactURL:    html.EscapeString(r.cfg.ReactURL),
		ReactDOMURL: html.EscapeString(r.cfg.ReactDOMURL),
		BabelURL:    html.EscapeString(r.cfg.BabelURL),
		TailwindURL: html.EscapeString(r.cfg.TailwindURL),
		Runtime:     runtimeJS,
	}

	var sources []*source
	for _, p := range files.Paths() {
		ext := strings.ToLower(path.Ext(p))
		if ext == ".css" {
			data.Styles = append(data.Styles, reStyleClose.ReplaceAllString(files[p], `<\/$1`))
			continue
		}
		kind, ok := classify(p)
		if !ok {
			continue
		}
		mod, stripper := r.strip(ctx, p, []byte(files[p]))
		metrics.PreviewRenderTotal.WithLabelValues(stripper).Inc()
		sources = append(sources, &source{path: p, name: ModuleName(p), kind: kind, mod: mod})
	}

	kinds := make(map[string]fileKind, len(sources))
	for _, s := range sources {
		kinds[s.name] = s.kind
	}
	for _, s := range orderByImports(sources) {
		data.Modules = append(data.Modules, renderModule{
			Path:     html.EscapeString(s.path),
			Prelude:  scriptSafe(prelude(s.mod.Imports, kinds)),
			Code:     scriptSafe(s.mod.Code),
			Register: scriptSafe(registration(s.name, s.kind, s.mod)),
		})
	}

	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render preview document: %w", err)
	}
	return buf.String(), nil
}

// orderByImports 按本地导入关系拓扑排序，被依赖的模块先登记；
// 同层按文件类型与路径排序，循环依赖时取剩余中最靠前的一个打破
func orderByImports(sources []*source) []*source {
	sort.SliceStable(sources, func(i, j int) bool {
		if sources[i].kind != sources[j].kind {
			return sources[i].kind < sources[j].kind
		}
		return sources[i].path < sources[j].path
	})

	byName := make(map[string][]*source, len(sources))
	for _, s := range sources {
		byName[s.name] = append(byName[s.name], s)
	}
	deps := make(map[*source]map[*source]bool, len(sources))
	for _, s := range sources {
		deps[s] = make(map[*source]bool)
		for _, imp := range s.mod.Imports {
			if !isLocalSource(imp.Source) {
				continue
			}
			for _, target := range byName[ModuleName(imp.Source)] {
				if target != s {
					deps[s][target] = true
				}
			}
		}
	}

	ordered := make([]*source, 0, len(sources))
	done := make(map[*source]bool, len(sources))
	for len(ordered) < len(sources) {
		var next *source
		for _, s := range sources {
			if done[s] {
				continue
			}
			if next == nil {
				next = s
			}
			ready := true
			for d := range deps[s] {
				if !done[d] {
					ready = false
					break
				}
			}
			if ready {
				next = s
				break
			}
		}
		done[next] = true
		ordered = append(ordered, next)
	}
	return ordered
}

func (r *Renderer) strip(ctx context.Context, filePath string, src []byte) (*Module, string) {
	for _, s := range r.strippers {
		mod, err := s.Strip(src)
		if err == nil {
			return mod, s.Name()
		}
		if !errors.Is(err, ErrUnparseable) {
			logger.Warn(ctx, "preview stripper failed", "stripper", s.Name(), "path", filePath, "error", err.Error())
		}
	}
	return &Module{Code: string(src)}, "none"
}

// classify 按路径约定识别文件类型，入口文件与非脚本文件跳过
func classify(p string) (fileKind, bool) {
	ext := strings.ToLower(path.Ext(p))
	if !scriptExtensions[ext] || strings.HasSuffix(p, ".d.ts") {
		return 0, false
	}
	base := strings.TrimSuffix(path.Base(p), path.Ext(p))
	dir := path.Dir(p)
	switch {
	case base == "App" && (dir == "src" || dir == "."):
		return kindApp, true
	case entryFiles[base] && (dir == "src" || dir == "."):
		return 0, false
	case hasSegment(p, "pages"):
		return kindPage, true
	case hasSegment(p, "components"):
		return kindComponent, true
	case strings.HasPrefix(p, "src/") || dir == ".":
		if strings.Contains(base, ".config") || strings.Contains(base, ".test") {
			return 0, false
		}
		return kindLibrary, true
	}
	return 0, false
}

func hasSegment(p, segment string) bool {
	for _, part := range strings.Split(path.Dir(p), "/") {
		if part == segment {
			return true
		}
	}
	return false
}

// prelude 将每个导入绑定到运行时提供的实现；kinds 为本次渲染中各模块的类型
func prelude(imports []Import, kinds map[string]fileKind) string {
	var b strings.Builder
	seen := make(map[string]bool)
	for _, imp := range imports {
		if seen[imp.Local] {
			continue
		}
		seen[imp.Local] = true
		fmt.Fprintf(&b, "const %s = %s;\n", imp.Local, binding(imp, kinds))
	}
	return b.String()
}

func binding(imp Import, kinds map[string]fileKind) string {
	whole := imp.Imported == "default" || imp.Imported == "*"
	member := func(base string) string {
		if whole {
			return base
		}
		return base + "." + imp.Imported
	}

	switch source := imp.Source; {
	case source == "react":
		return member("window.React")
	case source == "react-dom" || source == "react-dom/client":
		return member("window.ReactDOM")
	case source == "react-router-dom" || source == "react-router":
		return member("window.__stubs.router")
	case source == "lucide-react":
		if whole {
			return "window.__stubs.icons"
		}
		return fmt.Sprintf("window.__stubs.icon(%q)", imp.Imported)
	case source == "axios":
		return member("window.__stubs.axios")
	case source == "zustand" || source == "zustand/react":
		if whole {
			return "window.__stubs.zustand.create"
		}
		return member("window.__stubs.zustand")
	case strings.HasPrefix(source, "zustand/"):
		return member("window.__stubs.zustand.middleware")
	case isLocalSource(source):
		mod := ModuleName(source)
		kind, known := kinds[mod]
		if imp.Imported != "*" && ((known && kind != kindLibrary) || (!known && isPascalCase(imp.Local))) {
			return fmt.Sprintf("window.__lazyComponent(%q, %q)", mod, imp.Imported)
		}
		return fmt.Sprintf("window.__lazyValue(%q, %q)", mod, imp.Imported)
	case isPascalCase(imp.Local):
		return fmt.Sprintf("window.__stubs.placeholder(%q)", imp.Local)
	default:
		return "window.__stubs.noop()"
	}
}

func isLocalSource(source string) bool {
	for _, prefix := range []string{".", "/", "@/", "~/", "src/"} {
		if strings.HasPrefix(source, prefix) {
			return true
		}
	}
	return false
}

// registration 在文件末尾把导出登记到共享命名空间
func registration(name string, kind fileKind, mod *Module) string {
	var entries []string
	if mod.DefaultName != "" {
		entries = append(entries, fmt.Sprintf("%q: typeof %s !== \"undefined\" ? %s : undefined", "default", mod.DefaultName, mod.DefaultName))
	}
	for _, e := range mod.Exports {
		entries = append(entries, fmt.Sprintf("%q: typeof %s !== \"undefined\" ? %s : undefined", e.Exported, e.Local, e.Local))
	}
	return fmt.Sprintf("window.__register(%q, %q, {%s});", name, kind.String(), strings.Join(entries, ", "))
}

// scriptSafe 防止代码内容提前闭合 script 标签
func scriptSafe(s string) string {
	s = reScriptClose.ReplaceAllString(s, `<\/$1`)
	return strings.ReplaceAll(s, "<!--", `<\!--`)
}
