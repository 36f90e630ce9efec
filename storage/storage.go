// Package storage — персистентное key-value хранилище для оффлайн-очереди
// и снимков сессий. Хранилище считается ненадёжным: вызывающий код обязан
// переживать его сбои.
package storage

import (
	"context"
	"errors"
	"sync"
)

// ErrNotFound возвращается, когда по ключу ничего не сохранено
var ErrNotFound = errors.New("storage: ключ не найден")

// Store — минимальный контракт хранилища
type Store interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
}

// MemoryStore — хранилище в памяти для тестов и dev-режима
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte

	// FailSaves имитирует сбой записи (для тестов best-effort персистентности)
	FailSaves bool
}

// NewMemoryStore создает пустое хранилище в памяти
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (m *MemoryStore) Load(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, nil
}

func (m *MemoryStore) Save(_ context.Context, key string, data []byte) error {
	if m.FailSaves {
		return errors.New("storage: запись отключена")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	m.data[key] = cp
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// Seed кладет значение напрямую, минуя FailSaves (подготовка тестов)
func (m *MemoryStore) Seed(key string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = data
}
