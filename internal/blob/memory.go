package blob

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Memory is a process-local store for development and tests.
type Memory struct {
	mu      sync.RWMutex
	objects map[string]Object
}

// NewMemory creates an empty store.
func NewMemory() *Memory {
	return &Memory{objects: make(map[string]Object)}
}

func (m *Memory) Put(_ context.Context, _ string, contentType string, data []byte) (string, error) {
	id := uuid.NewString()
	m.mu.Lock()
	m.objects[id] = Object{ContentType: contentType, Data: append([]byte(nil), data...)}
	m.mu.Unlock()
	return id, nil
}

func (m *Memory) Get(_ context.Context, id string) (*Object, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &Object{ContentType: obj.ContentType, Data: append([]byte(nil), obj.Data...)}, nil
}

func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[id]; !ok {
		return ErrNotFound
	}
	delete(m.objects, id)
	return nil
}

// Len returns the number of stored objects.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
