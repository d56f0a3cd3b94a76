package snapshot

import (
	"context"
	"sync"
)

// Memory keeps the snapshot in process. It backs the "memory" store type and
// lets tests inject save failures.
type Memory struct {
	mu      sync.Mutex
	data    []byte
	saves   int
	SaveErr error
}

func NewMemory() *Memory {
	return &Memory{}
}

func init() {
	Register("memory", func(args interface{}) (Store, error) {
		return NewMemory(), nil
	})
}

func (m *Memory) Type() string {
	return "memory"
}

func (m *Memory) Save(ctx context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.data = append([]byte(nil), data...)
	m.saves++
	return nil
}

func (m *Memory) Load(ctx context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		return nil, ErrNotFound
	}
	return append([]byte(nil), m.data...), nil
}

func (m *Memory) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func (m *Memory) RecoveryPending(ctx context.Context) (bool, error) {
	return false, nil
}

func (m *Memory) ClearRecovery(ctx context.Context) error {
	return nil
}
