// Package prompt 提供各 agent 角色的系统提示词与侧重方向修饰语
package prompt

import (
	"embed"
	"fmt"
	"strings"
	"sync"

	"ideaforge-api/internal/domain/entity"
)

//go:embed templates/*.txt
var templatesFS embed.FS

// Role agent 角色
type Role string

const (
	RoleMarketResearcher Role = "market_researcher"
	RoleProjectCharter   Role = "project_charter"
	RoleProductManager   Role = "product_manager"
	RoleArchitect        Role = "architect"
	RoleCoder            Role = "coder"
)

// Roles 全部角色
func Roles() []Role {
	return []Role{RoleMarketResearcher, RoleProjectCharter, RoleProductManager, RoleArchitect, RoleCoder}
}

// RoleFor 文档阶段对应的 agent 角色
func RoleFor(kind entity.DocumentKind) (Role, error) {
	switch kind {
	case entity.DocumentMarketResearch:
		return RoleMarketResearcher, nil
	case entity.DocumentProjectCharter:
		return RoleProjectCharter, nil
	case entity.DocumentPRD:
		return RoleProductManager, nil
	case entity.DocumentTechSpec:
		return RoleArchitect, nil
	case entity.DocumentCodePrototype:
		return RoleCoder, nil
	default:
		return "", fmt.Errorf("no agent role for document kind %q", kind)
	}
}

var focusModifiers = map[entity.FocusArea]string{
	entity.FocusBalanced: "",
	entity.FocusBudget: "FOCUS: BUDGET. Minimize cost at every step. Prefer free tiers, open-source tools, " +
		"managed services with generous free plans, and a small team. Call out the cheapest viable option for each decision.",
	entity.FocusSpeed: "FOCUS: SPEED TO MARKET. Optimize for the fastest possible launch. Cut scope aggressively, " +
		"prefer off-the-shelf services over custom builds, and plan work in one-week increments.",
	entity.FocusQuality: "FOCUS: QUALITY. Prioritize reliability, polish, accessibility, and test coverage. " +
		"Include quality gates, review steps, and clear acceptance criteria.",
	entity.FocusMVP: "FOCUS: MINIMUM VIABLE PRODUCT. Identify the single core value proposition and build only what is needed " +
		"to validate it with real users. Explicitly list what is deferred.",
	entity.FocusEnterprise: "FOCUS: ENTERPRISE. Design for scale, security, compliance, and multi-tenant operation. " +
		"Cover SSO, audit logging, role-based access control, SLAs, and data governance.",
}

// FocusModifier 返回侧重方向修饰语，balanced 与未知值返回空串
func FocusModifier(area entity.FocusArea) string {
	return focusModifiers[area]
}

// Library agent 提示词库，从内嵌模板加载并缓存
type Library struct {
	mu    sync.RWMutex
	cache map[Role]string
}

// NewLibrary 创建提示词库
func NewLibrary() *Library {
	return &Library{cache: make(map[Role]string)}
}

// SystemPrompt 返回角色的系统提示词
func (l *Library) SystemPrompt(role Role) (string, error) {
	l.mu.RLock()
	if p, ok := l.cache[role]; ok {
		l.mu.RUnlock()
		return p, nil
	}
	l.mu.RUnlock()

	l.mu.Lock()
	defer l.mu.Unlock()
	if p, ok := l.cache[role]; ok {
		return p, nil
	}

	path, err := templatePath(role)
	if err != nil {
		return "", err
	}
	b, err := templatesFS.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read prompt template %s: %w", path, err)
	}
	p := strings.TrimSpace(string(b))
	l.cache[role] = p
	return p, nil
}

func templatePath(role Role) (string, error) {
	switch role {
	case RoleMarketResearcher, RoleProjectCharter, RoleProductManager, RoleArchitect, RoleCoder:
		return "templates/" + string(role) + ".system.txt", nil
	default:
		return "", fmt.Errorf("unknown agent role: %s", role)
	}
}
