package storage_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/mercado-bff/internal/domain"
	"github.com/jhoicas/mercado-bff/internal/infrastructure/storage"
)

func TestMemoryStore_SetGetRemove(t *testing.T) {
	ctx := context.Background()
	s := storage.NewMemoryStore(0)

	_, ok := s.Get(ctx, "k")
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "k", "v1"))
	v, ok := s.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "v1", v)

	s.Remove(ctx, "k")
	s.Remove(ctx, "k")
	_, ok = s.Get(ctx, "k")
	assert.False(t, ok)
	assert.Zero(t, s.Used())
}

func TestMemoryStore_Cuota(t *testing.T) {
	ctx := context.Background()
	s := storage.NewMemoryStore(10)

	require.NoError(t, s.Set(ctx, "a", "12345"))
	err := s.Set(ctx, "b", "123456")
	assert.ErrorIs(t, err, domain.ErrQuotaExceeded)
	_, ok := s.Get(ctx, "b")
	assert.False(t, ok, "una escritura rechazada no deja rastro")

	// Reemplazar una clave libera su tamaño anterior.
	require.NoError(t, s.Set(ctx, "a", "123456789"))
	assert.Equal(t, 10, s.Used())
}

func TestScoped_EspaciosDeNombres(t *testing.T) {
	ctx := context.Background()
	inner := storage.NewMemoryStore(0)
	a := storage.NewScoped(inner, "app:u1")
	b := storage.NewScoped(inner, "app:u2")

	require.NoError(t, a.Set(ctx, "user", "uno"))
	require.NoError(t, b.Set(ctx, "user", "dos"))

	v, _ := a.Get(ctx, "user")
	assert.Equal(t, "uno", v)
	v, _ = inner.Get(ctx, "app:u2:user")
	assert.Equal(t, "dos", v)

	a.Remove(ctx, "user")
	_, ok := a.Get(ctx, "user")
	assert.False(t, ok)
	_, ok = b.Get(ctx, "user")
	assert.True(t, ok)
}

func TestFileStore_Persiste(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := storage.NewFileStore(dir, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "user", `{"_id":"u-1"}`))
	require.NoError(t, s.Set(ctx, "tmp", "x"))
	s.Remove(ctx, "tmp")

	reopened, err := storage.NewFileStore(dir, zerolog.Nop())
	require.NoError(t, err)
	v, ok := reopened.Get(ctx, "user")
	require.True(t, ok)
	assert.Equal(t, `{"_id":"u-1"}`, v)
	_, ok = reopened.Get(ctx, "tmp")
	assert.False(t, ok)

	_, err = os.Stat(filepath.Join(dir, "sessions.json.tmp"))
	assert.True(t, os.IsNotExist(err), "no quedan archivos temporales")
}

func TestFileStore_ArchivoCorruptoArrancaVacio(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sessions.json"), []byte("{no-json"), 0o644))

	s, err := storage.NewFileStore(dir, zerolog.Nop())
	require.NoError(t, err)
	_, ok := s.Get(context.Background(), "user")
	assert.False(t, ok)
	require.NoError(t, s.Set(context.Background(), "user", "ok"))
}
