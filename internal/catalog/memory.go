package catalog

import (
	"context"
	"fmt"
	"sync"
)

// Memory is an in-process catalog, used for fixtures and local dry runs.
type Memory struct {
	mu       sync.RWMutex
	datasets map[string]*Dataset
}

func NewMemory(datasets ...*Dataset) *Memory {
	m := &Memory{datasets: make(map[string]*Dataset, len(datasets))}
	for _, ds := range datasets {
		m.Add(ds)
	}
	return m
}

func (m *Memory) Add(ds *Dataset) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.datasets[ds.ID] = ds
}

func (m *Memory) Get(_ context.Context, id string) (*Dataset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ds, ok := m.datasets[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return ds, nil
}
