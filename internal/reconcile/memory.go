package reconcile

import (
	"context"
	"sort"
	"sync"
)

// MemoryTarget keeps scopes in memory. Used for dry runs and tests.
type MemoryTarget[R Row] struct {
	mu     sync.Mutex
	scopes map[string][]R
	writes int
	// FailNext makes the next n calls to Apply fail with ErrInjected.
	FailNext int
}

func NewMemoryTarget[R Row]() *MemoryTarget[R] {
	return &MemoryTarget[R]{scopes: make(map[string][]R)}
}

func (m *MemoryTarget[R]) Name() string { return "memory" }

func (m *MemoryTarget[R]) Load(_ context.Context, scope string) ([]R, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := m.scopes[scope]
	out := make([]R, len(rows))
	copy(out, rows)
	return out, nil
}

func (m *MemoryTarget[R]) Apply(_ context.Context, plan Plan[R]) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailNext > 0 {
		m.FailNext--
		return ErrInjected
	}
	m.writes++
	if len(plan.Ordered) == 0 {
		delete(m.scopes, plan.Scope)
		return nil
	}
	rows := make([]R, len(plan.Ordered))
	copy(rows, plan.Ordered)
	m.scopes[plan.Scope] = rows
	return nil
}

func (m *MemoryTarget[R]) Scopes(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.scopes))
	for s := range m.scopes {
		out = append(out, s)
	}
	sort.Strings(out)
	return out, nil
}

// Writes counts successful applies.
func (m *MemoryTarget[R]) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// Rows returns every stored row, scopes in key order.
func (m *MemoryTarget[R]) Rows() []R {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.scopes))
	for s := range m.scopes {
		keys = append(keys, s)
	}
	sort.Strings(keys)
	var out []R
	for _, s := range keys {
		out = append(out, m.scopes[s]...)
	}
	return out
}
