package enforcement

import (
	"context"
	"slices"
	"sync"

	"github.com/haukened/siteguard/internal/guard/domain"
)

// MemoryEnforcer keeps the last installed directive set in memory.
type MemoryEnforcer struct {
	mu         sync.RWMutex
	directives []domain.Directive
	replaces   int
}

func NewMemoryEnforcer() *MemoryEnforcer { return &MemoryEnforcer{} }

func (m *MemoryEnforcer) Replace(_ context.Context, directives []domain.Directive) error {
	m.mu.Lock()
	m.directives = slices.Clone(directives)
	m.replaces++
	m.mu.Unlock()
	return nil
}

// Directives returns a copy of the installed set.
func (m *MemoryEnforcer) Directives() []domain.Directive {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.directives)
}

// Replaces counts Replace calls.
func (m *MemoryEnforcer) Replaces() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.replaces
}

var _ Enforcer = (*MemoryEnforcer)(nil)
