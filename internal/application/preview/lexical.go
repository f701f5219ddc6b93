package preview

import (
	"regexp"
	"strings"
)

const (
	identPattern = `[A-Za-z_$][\w$]*`
	typePattern  = `[A-Za-z_$][\w$.]*(?:<[^<>;]*(?:<[^<>;]*>[^<>;]*)*>)?(?:\[\])*`
)

var (
	reImport           = regexp.MustCompile(`(?m)^[ \t]*import\s+(type\s+)?([\w$*{}\s,]+?)\s+from\s+['"]([^'"]+)['"][ \t]*;?`)
	reSideEffectImport = regexp.MustCompile(`(?m)^[ \t]*import\s+['"][^'"]+['"][ \t]*;?`)
	reTypeDeclStart    = regexp.MustCompile(`(?m)^[ \t]*(?:export\s+)?(?:declare\s+)?(interface|type)\s+` + identPattern)

	reExportDefaultDecl  = regexp.MustCompile(`(?m)^([ \t]*)export\s+default\s+((?:async\s+)?(?:function\*?|class)\s+(` + identPattern + `))`)
	reExportDefaultIdent = regexp.MustCompile(`(?m)^[ \t]*export\s+default\s+(` + identPattern + `)[ \t]*;?[ \t]*$`)
	reExportDefaultExpr  = regexp.MustCompile(`(?m)^([ \t]*)export\s+default\s+`)
	reExportClause       = regexp.MustCompile(`(?m)^[ \t]*export\s+(type\s+)?\{([^}]*)\}(?:\s*from\s+['"]([^'"]+)['"])?[ \t]*;?`)
	reExportDecl         = regexp.MustCompile(`(?m)^([ \t]*)export\s+((?:async\s+)?(?:function\*?|class|const|let|var|enum)\s+(` + identPattern + `))`)

	reGenericCall  = regexp.MustCompile(`\b(use[A-Z][\w$]*|createContext|forwardRef|memo|create|Array|Set|Map|Promise)\s*<[^<>()]*(?:<[^<>()]*>[^<>()]*)*>\s*\(`)
	reGenericArrow = regexp.MustCompile(`=\s*<[A-Z][\w$]*(?:\s+extends\s+[^>]+)?\s*,?\s*>\s*\(`)
	reVarType      = regexp.MustCompile(`\b(const|let|var)\s+(` + identPattern + `)\s*:\s*` + typePattern + `(?:\s*\|\s*` + typePattern + `)*\s*=`)
	reAsConst      = regexp.MustCompile(`\s+as\s+const\b`)
	reAsType       = regexp.MustCompile(`\s+as\s+(?:[A-Z][\w$.]*(?:<[^<>]*>)?|string|number|boolean|any|unknown)(?:\[\])*(\s*[);,\]}\n])`)
	reGenericFunc  = regexp.MustCompile(`\bfunction(\s*\*?\s*` + identPattern + `)?\s*<[^<>()]*>\s*\(`)
	reNonNull      = regexp.MustCompile(`([\w$)\]])!([.\[);,])`)
	reReturnType   = regexp.MustCompile(`^\s*:\s*(?:` + typePattern + `|\{[^{}]*\})(?:\s*\|\s*(?:` + typePattern + `))*\s*(=>|\{)`)
	reFunctionHead = regexp.MustCompile(`\bfunction\s*\*?\s*(?:` + identPattern + `)?\s*$`)
)

// LexicalStripper 基于正则与括号匹配的降级实现，仅覆盖生成代码的常见写法
type LexicalStripper struct{}

// NewLexicalStripper 创建降级 stripper
func NewLexicalStripper() *LexicalStripper { return &LexicalStripper{} }

// Name 实现 Stripper
func (s *LexicalStripper) Name() string { return "lexical" }

// Strip 实现 Stripper；不会失败
func (s *LexicalStripper) Strip(src []byte) (*Module, error) {
	mod := &Module{}
	code := string(src)

	code = reImport.ReplaceAllStringFunc(code, func(m string) string {
		sub := reImport.FindStringSubmatch(m)
		if sub[1] == "" {
			parseImportClause(mod, sub[2], sub[3])
		}
		return ""
	})
	code = reSideEffectImport.ReplaceAllString(code, "")
	code = removeTypeDeclarations(code)

	code = reExportDefaultDecl.ReplaceAllStringFunc(code, func(m string) string {
		sub := reExportDefaultDecl.FindStringSubmatch(m)
		mod.DefaultName = sub[3]
		return sub[1] + sub[2]
	})
	code = reExportDefaultIdent.ReplaceAllStringFunc(code, func(m string) string {
		mod.DefaultName = reExportDefaultIdent.FindStringSubmatch(m)[1]
		return ""
	})
	code = reExportDefaultExpr.ReplaceAllStringFunc(code, func(m string) string {
		mod.DefaultName = defaultExportAlias
		return reExportDefaultExpr.FindStringSubmatch(m)[1] + "const " + defaultExportAlias + " = "
	})
	code = reExportClause.ReplaceAllStringFunc(code, func(m string) string {
		sub := reExportClause.FindStringSubmatch(m)
		if sub[1] == "" {
			parseExportClause(mod, sub[2], sub[3])
		}
		return ""
	})
	code = reExportDecl.ReplaceAllStringFunc(code, func(m string) string {
		sub := reExportDecl.FindStringSubmatch(m)
		mod.addExport(sub[3], sub[3])
		return sub[1] + sub[2]
	})

	code = reGenericCall.ReplaceAllString(code, "$1(")
	code = reGenericArrow.ReplaceAllString(code, "= (")
	code = reGenericFunc.ReplaceAllString(code, "function$1(")
	code = reVarType.ReplaceAllString(code, "$1 $2 =")
	code = reAsConst.ReplaceAllString(code, "")
	code = reAsType.ReplaceAllString(code, "$1")
	code = reNonNull.ReplaceAllString(code, "$1$2")
	code = stripParamTypes(code)

	mod.Code = code
	return mod, nil
}

func parseImportClause(mod *Module, clause, source string) {
	clause = strings.TrimSpace(clause)
	if open := strings.Index(clause, "{"); open >= 0 {
		closing := strings.LastIndex(clause, "}")
		if closing > open {
			for _, spec := range strings.Split(clause[open+1:closing], ",") {
				name, alias := splitAlias(spec)
				if name == "" || strings.HasPrefix(name, "type ") {
					continue
				}
				if alias == "" {
					alias = name
				}
				mod.addImport(source, alias, name)
			}
		}
		clause = clause[:open]
	}
	for _, part := range strings.Split(clause, ",") {
		part = strings.TrimSpace(part)
		switch {
		case part == "":
		case strings.HasPrefix(part, "*"):
			if _, alias := splitAlias(strings.TrimPrefix(part, "*")); alias != "" {
				mod.addImport(source, alias, "*")
			}
		default:
			mod.addImport(source, part, "default")
		}
	}
}

func parseExportClause(mod *Module, clause, source string) {
	for _, spec := range strings.Split(clause, ",") {
		name, alias := splitAlias(spec)
		if name == "" || strings.HasPrefix(name, "type ") {
			continue
		}
		if alias == "" {
			alias = name
		}
		if source != "" {
			local := "__reexport_" + alias
			mod.addImport(source, local, name)
			mod.addExport(local, alias)
			continue
		}
		mod.addExport(name, alias)
	}
}

// splitAlias 拆分 "a as b"
func splitAlias(spec string) (string, string) {
	fields := strings.Fields(spec)
	switch {
	case len(fields) == 0:
		return "", ""
	case len(fields) >= 3 && fields[len(fields)-2] == "as":
		return strings.Join(fields[:len(fields)-2], " "), fields[len(fields)-1]
	case len(fields) == 2 && fields[0] == "as":
		return "", fields[1]
	default:
		return strings.Join(fields, " "), ""
	}
}

// removeTypeDeclarations 删除 interface 与 type 别名，按括号深度找到声明结尾
func removeTypeDeclarations(code string) string {
	var b strings.Builder
	for {
		loc := reTypeDeclStart.FindStringSubmatchIndex(code)
		if loc == nil {
			b.WriteString(code)
			return b.String()
		}
		b.WriteString(code[:loc[0]])
		keyword := code[loc[2]:loc[3]]
		end := declarationEnd(code, loc[1], keyword == "interface")
		code = code[end:]
	}
}

func declarationEnd(code string, from int, untilBlock bool) int {
	depth := 0
	seenBlock := false
	for i := from; i < len(code); i++ {
		switch c := code[i]; c {
		case '{', '(', '[', '<':
			if c == '{' {
				seenBlock = true
			}
			depth++
		case '}', ')', ']', '>':
			if i > 0 && c == '>' && code[i-1] == '=' {
				continue
			}
			depth--
			if untilBlock && seenBlock && depth == 0 && c == '}' {
				return i + 1
			}
		case ';':
			if !untilBlock && depth <= 0 {
				return i + 1
			}
		case '\n':
			if !untilBlock && depth <= 0 && !continuesType(code[i+1:]) {
				return i
			}
		}
	}
	return len(code)
}

func continuesType(rest string) bool {
	rest = strings.TrimLeft(rest, " \t\r\n")
	return strings.HasPrefix(rest, "|") || strings.HasPrefix(rest, "&")
}

// stripParamTypes 删除函数参数与返回值上的类型标注
func stripParamTypes(code string) string {
	var b strings.Builder
	i := 0
	for i < len(code) {
		open := strings.IndexByte(code[i:], '(')
		if open < 0 {
			break
		}
		open += i
		closing := matchParen(code, open)
		if closing < 0 {
			break
		}

		after := code[closing+1:]
		ret := reReturnType.FindStringSubmatchIndex(after)
		arrowNext := strings.HasPrefix(strings.TrimLeft(after, " \t"), "=>")
		isFunc := reFunctionHead.MatchString(code[:open])
		arrowAfterType := ret != nil && after[ret[2]:ret[3]] == "=>"
		if !(arrowNext || isFunc || arrowAfterType) {
			b.WriteString(code[i : open+1])
			i = open + 1
			continue
		}

		b.WriteString(code[i : open+1])
		b.WriteString(stripParams(code[open+1 : closing]))
		b.WriteByte(')')
		i = closing + 1
		if ret != nil && (isFunc || arrowAfterType) {
			b.WriteByte(' ')
			b.WriteString(after[ret[2]:ret[3]])
			i = closing + 1 + ret[1]
		}
	}
	b.WriteString(code[i:])
	return b.String()
}

func matchParen(code string, open int) int {
	depth := 0
	for i := open; i < len(code); i++ {
		switch code[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// stripParams 对逗号分隔的每个参数删除 ": T" 与 "?"，保留默认值
func stripParams(params string) string {
	parts := splitTopLevel(params, ',')
	for idx, p := range parts {
		colon := indexTopLevel(p, ':')
		if colon < 0 {
			continue
		}
		name := strings.TrimRight(p[:colon], " \t")
		name = strings.TrimSuffix(name, "?")
		rest := p[colon+1:]
		if eq := indexTopLevel(rest, '='); eq >= 0 && (eq+1 >= len(rest) || rest[eq+1] != '>') {
			parts[idx] = name + " " + strings.TrimLeft(rest[eq:], " ")
			continue
		}
		parts[idx] = name
	}
	return strings.Join(parts, ",")
}

func splitTopLevel(s string, sep byte) []string {
	var parts []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(', '{', '[', '<':
			depth++
		case ')', '}', ']':
			depth--
		case '>':
			if i > 0 && s[i-1] == '=' {
				continue
			}
			depth--
		default:
			if s[i] == sep && depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}

func indexTopLevel(s string, target byte) int {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(', '{', '[', '<':
			depth++
		case ')', '}', ']':
			depth--
		case '>':
			if i > 0 && s[i-1] == '=' {
				continue
			}
			depth--
		default:
			if s[i] == target && depth == 0 {
				return i
			}
		}
	}
	return -1
}
