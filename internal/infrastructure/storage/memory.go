package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/jhoicas/mercado-bff/internal/domain"
	"github.com/jhoicas/mercado-bff/internal/domain/repository"
)

var _ repository.KVStore = (*MemoryStore)(nil)

// MemoryStore almacenamiento en memoria con cuota opcional en bytes (clave + valor),
// equivalente al límite del almacenamiento del navegador.
type MemoryStore struct {
	mu    sync.RWMutex
	data  map[string]string
	used  int
	quota int
}

// NewMemoryStore crea el store. quota <= 0 desactiva el límite.
func NewMemoryStore(quota int) *MemoryStore {
	return &MemoryStore{data: make(map[string]string), quota: quota}
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok
}

func (s *MemoryStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	used := s.used
	if old, ok := s.data[key]; ok {
		used -= len(key) + len(old)
	}
	used += len(key) + len(value)
	if s.quota > 0 && used > s.quota {
		return fmt.Errorf("memory store: %q (%d bytes): %w", key, len(value), domain.ErrQuotaExceeded)
	}
	s.data[key] = value
	s.used = used
	return nil
}

func (s *MemoryStore) Remove(_ context.Context, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.data[key]; ok {
		s.used -= len(key) + len(old)
		delete(s.data, key)
	}
}

// Used bytes ocupados.
func (s *MemoryStore) Used() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.used
}
