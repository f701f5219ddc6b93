package preview

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
	tstypescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

// 整个节点删除
var typeOnlyKinds = map[string]bool{
	"interface_declaration":     true,
	"type_alias_declaration":    true,
	"ambient_declaration":       true,
	"type_annotation":           true,
	"type_predicate_annotation": true,
	"asserts_annotation":        true,
	"type_arguments":            true,
	"type_parameters":           true,
	"accessibility_modifier":    true,
	"override_modifier":         true,
	"implements_clause":         true,
	"abstract_method_signature": true,
	"index_signature":           true,
	"function_signature":        true,
}

// 只在类型层面有意义的修饰符 token
var modifierTokens = map[string]bool{"abstract": true, "readonly": true, "declare": true, "!": true}

// TreeSitterStripper 基于 TSX 语法树去除类型语法
type TreeSitterStripper struct {
	lang *sitter.Language
}

// NewTreeSitterStripper 创建 TSX stripper
func NewTreeSitterStripper() *TreeSitterStripper {
	return &TreeSitterStripper{lang: sitter.NewLanguage(tstypescript.LanguageTSX())}
}

// Name 实现 Stripper
func (s *TreeSitterStripper) Name() string { return "tree_sitter" }

// Strip 实现 Stripper；语法树含错误节点时返回 ErrUnparseable
func (s *TreeSitterStripper) Strip(src []byte) (*Module, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	if err := parser.SetLanguage(s.lang); err != nil {
		return nil, fmt.Errorf("set tsx language: %w", err)
	}

	tree := parser.Parse(src, nil)
	if tree == nil {
		return nil, ErrUnparseable
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, ErrUnparseable
	}

	w := &tsWalker{src: src, mod: &Module{}}
	for i := uint(0); i < root.ChildCount(); i++ {
		w.walk(root.Child(i))
	}
	w.mod.Code = w.apply()
	return w.mod, nil
}

type edit struct {
	start, end uint
	text       string
}

type tsWalker struct {
	src   []byte
	mod   *Module
	edits []edit
}

func (w *tsWalker) text(n *sitter.Node) string {
	return n.Utf8Text(w.src)
}

func (w *tsWalker) remove(n *sitter.Node) {
	w.edits = append(w.edits, edit{start: n.StartByte(), end: n.EndByte()})
}

func (w *tsWalker) replace(start, end uint, text string) {
	w.edits = append(w.edits, edit{start: start, end: end, text: text})
}

func (w *tsWalker) walkChildren(n *sitter.Node) {
	for i := uint(0); i < n.ChildCount(); i++ {
		w.walk(n.Child(i))
	}
}

func (w *tsWalker) walk(n *sitter.Node) {
	if n == nil {
		return
	}
	kind := n.Kind()
	if typeOnlyKinds[kind] {
		w.remove(n)
		return
	}

	switch kind {
	case "import_statement":
		w.recordImport(n)
		w.remove(n)
	case "export_statement":
		w.handleExport(n)
	case "optional_parameter":
		for i := uint(0); i < n.ChildCount(); i++ {
			c := n.Child(i)
			if c.Kind() == "?" {
				w.remove(c)
				continue
			}
			w.walk(c)
		}
	case "as_expression", "satisfies_expression":
		if n.ChildCount() < 2 {
			w.walkChildren(n)
			return
		}
		w.walk(n.Child(0))
		w.replace(n.Child(1).StartByte(), n.EndByte(), "")
	case "enum_declaration":
		w.replace(n.StartByte(), n.EndByte(), w.lowerEnum(n))
	case "public_field_definition":
		for i := uint(0); i < n.ChildCount(); i++ {
			if n.Child(i).Kind() == "declare" {
				w.remove(n)
				return
			}
		}
		w.stripModifiers(n, true)
	case "abstract_class_declaration", "class_declaration", "method_definition", "required_parameter", "variable_declarator":
		w.stripModifiers(n, false)
	case "non_null_expression":
		last := n.Child(n.ChildCount() - 1)
		for i := uint(0); i+1 < n.ChildCount(); i++ {
			w.walk(n.Child(i))
		}
		if last != nil && last.Kind() == "!" {
			w.remove(last)
		}
	default:
		w.walkChildren(n)
	}
}

// stripModifiers 删除宿主节点上的类型修饰符；字段定义上的 ? 一并删除
func (w *tsWalker) stripModifiers(n *sitter.Node, optionalMarker bool) {
	for i := uint(0); i < n.ChildCount(); i++ {
		c := n.Child(i)
		if !c.IsNamed() && (modifierTokens[c.Kind()] || (optionalMarker && c.Kind() == "?")) {
			w.remove(c)
			continue
		}
		w.walk(c)
	}
}

// lowerEnum 把 enum 改写为冻结对象，数值成员按 TS 规则自增
func (w *tsWalker) lowerEnum(n *sitter.Node) string {
	name := n.ChildByFieldName("name")
	body := n.ChildByFieldName("body")
	if name == nil || body == nil {
		return ""
	}
	var members []string
	next := 0
	for i := uint(0); i < body.NamedChildCount(); i++ {
		m := body.NamedChild(i)
		var key, value string
		switch m.Kind() {
		case "comment":
			continue
		case "enum_assignment":
			k, v := m.ChildByFieldName("name"), m.ChildByFieldName("value")
			if k == nil || v == nil {
				continue
			}
			key, value = w.text(k), w.text(v)
			if num, err := strconv.Atoi(value); err == nil {
				next = num + 1
			}
		default:
			key, value = w.text(m), strconv.Itoa(next)
			next++
		}
		members = append(members, key+": "+value)
	}
	return fmt.Sprintf("const %s = Object.freeze({ %s });", w.text(name), strings.Join(members, ", "))
}

func (w *tsWalker) recordImport(n *sitter.Node) {
	source := n.ChildByFieldName("source")
	if source == nil {
		return
	}
	for i := uint(0); i < n.ChildCount(); i++ {
		if k := n.Child(i).Kind(); k == "type" || k == "typeof" {
			return
		}
	}
	from := trimQuotes(w.text(source))

	for i := uint(0); i < n.NamedChildCount(); i++ {
		clause := n.NamedChild(i)
		if clause.Kind() != "import_clause" {
			continue
		}
		for j := uint(0); j < clause.NamedChildCount(); j++ {
			part := clause.NamedChild(j)
			switch part.Kind() {
			case "identifier":
				w.mod.addImport(from, w.text(part), "default")
			case "namespace_import":
				for k := uint(0); k < part.NamedChildCount(); k++ {
					if id := part.NamedChild(k); id.Kind() == "identifier" {
						w.mod.addImport(from, w.text(id), "*")
					}
				}
			case "named_imports":
				w.recordSpecifiers(part, "import_specifier", func(name, alias string) {
					if alias == "" {
						alias = name
					}
					w.mod.addImport(from, alias, name)
				})
			}
		}
	}
}

// recordSpecifiers 遍历 { a, b as c }，跳过 type 修饰的成员
func (w *tsWalker) recordSpecifiers(n *sitter.Node, kind string, fn func(name, alias string)) {
	for i := uint(0); i < n.NamedChildCount(); i++ {
		spec := n.NamedChild(i)
		if spec.Kind() != kind {
			continue
		}
		typeOnly := false
		for j := uint(0); j < spec.ChildCount(); j++ {
			if spec.Child(j).Kind() == "type" {
				typeOnly = true
			}
		}
		if typeOnly {
			continue
		}
		name := spec.ChildByFieldName("name")
		if name == nil {
			continue
		}
		alias := ""
		if a := spec.ChildByFieldName("alias"); a != nil {
			alias = w.text(a)
		}
		fn(trimQuotes(w.text(name)), alias)
	}
}

func (w *tsWalker) handleExport(n *sitter.Node) {
	isDefault := false
	typeOnly := false
	for i := uint(0); i < n.ChildCount(); i++ {
		switch n.Child(i).Kind() {
		case "default":
			isDefault = true
		case "type":
			typeOnly = true
		}
	}

	if decl := n.ChildByFieldName("declaration"); decl != nil {
		if typeOnlyKinds[decl.Kind()] {
			w.remove(n)
			return
		}
		w.replace(n.StartByte(), decl.StartByte(), "")
		w.walk(decl)
		names := declaredNames(decl, w.src)
		if isDefault && len(names) > 0 {
			w.mod.DefaultName = names[0]
			return
		}
		for _, name := range names {
			w.mod.addExport(name, name)
		}
		return
	}

	if value := n.ChildByFieldName("value"); value != nil && isDefault {
		if value.Kind() == "identifier" {
			w.mod.DefaultName = w.text(value)
			w.remove(n)
			return
		}
		w.replace(n.StartByte(), value.StartByte(), "const "+defaultExportAlias+" = ")
		w.walk(value)
		if last := n.Child(n.ChildCount() - 1); last == nil || last.Kind() != ";" {
			w.replace(n.EndByte(), n.EndByte(), ";")
		}
		w.mod.DefaultName = defaultExportAlias
		return
	}

	if !typeOnly {
		source := n.ChildByFieldName("source")
		for i := uint(0); i < n.NamedChildCount(); i++ {
			clause := n.NamedChild(i)
			if clause.Kind() != "export_clause" {
				continue
			}
			w.recordSpecifiers(clause, "export_specifier", func(name, alias string) {
				if alias == "" {
					alias = name
				}
				if source != nil {
					local := "__reexport_" + alias
					w.mod.addImport(trimQuotes(w.text(source)), local, name)
					w.mod.addExport(local, alias)
					return
				}
				w.mod.addExport(name, alias)
			})
		}
	}
	w.remove(n)
}

// declaredNames 声明语句引入的顶层名字
func declaredNames(decl *sitter.Node, src []byte) []string {
	switch decl.Kind() {
	case "function_declaration", "generator_function_declaration", "class_declaration", "abstract_class_declaration", "enum_declaration":
		if name := decl.ChildByFieldName("name"); name != nil {
			return []string{name.Utf8Text(src)}
		}
	case "lexical_declaration", "variable_declaration":
		var names []string
		for i := uint(0); i < decl.NamedChildCount(); i++ {
			d := decl.NamedChild(i)
			if d.Kind() != "variable_declarator" {
				continue
			}
			if name := d.ChildByFieldName("name"); name != nil && name.Kind() == "identifier" {
				names = append(names, name.Utf8Text(src))
			}
		}
		return names
	}
	return nil
}

func (w *tsWalker) apply() string {
	sort.SliceStable(w.edits, func(i, j int) bool { return w.edits[i].start < w.edits[j].start })
	var b strings.Builder
	b.Grow(len(w.src))
	var cursor uint
	for _, e := range w.edits {
		if e.start < cursor {
			continue
		}
		b.Write(w.src[cursor:e.start])
		b.WriteString(e.text)
		cursor = e.end
	}
	b.Write(w.src[cursor:])
	return b.String()
}
