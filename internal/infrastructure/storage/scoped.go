package storage

import (
	"context"

	"github.com/jhoicas/mercado-bff/internal/domain/repository"
)

// Scoped antepone un espacio de nombres a todas las claves ("<prefix>:<key>").
// Cada sesión de usuario trabaja sobre su propio Scoped.
type Scoped struct {
	inner  repository.KVStore
	prefix string
}

var _ repository.KVStore = (*Scoped)(nil)

func NewScoped(inner repository.KVStore, prefix string) *Scoped {
	return &Scoped{inner: inner, prefix: prefix}
}

func (s *Scoped) key(k string) string { return s.prefix + ":" + k }

func (s *Scoped) Get(ctx context.Context, key string) (string, bool) {
	return s.inner.Get(ctx, s.key(key))
}

func (s *Scoped) Set(ctx context.Context, key, value string) error {
	return s.inner.Set(ctx, s.key(key), value)
}

func (s *Scoped) Remove(ctx context.Context, key string) {
	s.inner.Remove(ctx, s.key(key))
}
