package tracker

import (
	"context"
	"sync"
)

// memorySet usa un sync.Map por kind: inserts y snapshots no se bloquean entre sí.
type memorySet struct {
	kinds sync.Map // Kind -> *sync.Map[string]struct{}
}

func NewMemory() Set {
	return &memorySet{}
}

func (m *memorySet) bucket(kind Kind) *sync.Map {
	v, _ := m.kinds.LoadOrStore(kind, &sync.Map{})
	return v.(*sync.Map)
}

func (m *memorySet) Add(_ context.Context, kind Kind, ids ...string) error {
	b := m.bucket(kind)
	for _, id := range ids {
		b.Store(id, struct{}{})
	}
	return nil
}

func (m *memorySet) Remove(_ context.Context, kind Kind, ids ...string) error {
	b := m.bucket(kind)
	for _, id := range ids {
		b.Delete(id)
	}
	return nil
}

func (m *memorySet) Members(_ context.Context, kind Kind) ([]string, error) {
	var out []string
	m.bucket(kind).Range(func(k, _ any) bool {
		out = append(out, k.(string))
		return true
	})
	return out, nil
}

func (m *memorySet) Len(ctx context.Context, kind Kind) (int, error) {
	n := 0
	m.bucket(kind).Range(func(_, _ any) bool {
		n++
		return true
	})
	return n, nil
}

func (m *memorySet) Clear(context.Context) error {
	m.kinds.Range(func(k, _ any) bool {
		m.kinds.Delete(k)
		return true
	})
	return nil
}

func (m *memorySet) Close() error { return nil }
