package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"github.com/jhoicas/mercado-bff/internal/domain/repository"
)

var _ repository.KVStore = (*FileStore)(nil)

// FileStore persiste todas las claves en un único documento JSON.
// Cada escritura va a un archivo temporal y luego se renombra: ante un corte queda la versión
// anterior o la nueva, nunca un archivo a medias.
type FileStore struct {
	mu   sync.Mutex
	path string
	data map[string]string
	log  zerolog.Logger
}

// NewFileStore abre (o crea) el archivo de sesiones dentro de dir.
func NewFileStore(dir string, log zerolog.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("crear directorio de caché: %w", err)
	}
	s := &FileStore{
		path: filepath.Join(dir, "sessions.json"),
		data: make(map[string]string),
		log:  log,
	}
	raw, err := os.ReadFile(s.path)
	switch {
	case err == nil:
		if jsonErr := json.Unmarshal(raw, &s.data); jsonErr != nil {
			// Archivo corrupto: se arranca vacío y se sobrescribe en la próxima escritura.
			log.Warn().Err(jsonErr).Str("path", s.path).Msg("archivo de sesiones ilegible, se descarta")
			s.data = make(map[string]string)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("leer archivo de sesiones: %w", err)
	}
	return s, nil
}

func (s *FileStore) Get(_ context.Context, key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok
}

func (s *FileStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, had := s.data[key]
	s.data[key] = value
	if err := s.flush(); err != nil {
		if had {
			s.data[key] = prev
		} else {
			delete(s.data, key)
		}
		return err
	}
	return nil
}

func (s *FileStore) Remove(_ context.Context, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[key]; !ok {
		return
	}
	delete(s.data, key)
	if err := s.flush(); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("no se pudo persistir el borrado")
	}
}

func (s *FileStore) flush() error {
	raw, err := json.Marshal(s.data)
	if err != nil {
		return fmt.Errorf("serializar sesiones: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("escribir sesiones: %w", classifyFSError(err))
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("renombrar sesiones: %w", err)
	}
	return nil
}
