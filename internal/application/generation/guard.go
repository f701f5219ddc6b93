package generation

import (
	"context"
	"sync"
)

// InProcessGuard 进程内的 slug 互斥，用于单实例部署与测试
type InProcessGuard struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewInProcessGuard 创建进程内互斥
func NewInProcessGuard() *InProcessGuard {
	return &InProcessGuard{held: make(map[string]struct{})}
}

// Acquire 实现 Guard
func (g *InProcessGuard) Acquire(_ context.Context, key string) (func(), bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.held[key]; ok {
		return nil, false, nil
	}
	g.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.held, key)
			g.mu.Unlock()
		})
	}, true, nil
}
