package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/jhoicas/mercado-bff/internal/domain"
	"github.com/jhoicas/mercado-bff/internal/domain/repository"
)

// Asegura que KVRepo implementa repository.KVStore.
var _ repository.KVStore = (*KVRepo)(nil)

// Tamaño máximo de un valor; por encima se responde como cuota excedida.
const maxValueBytes = 1 << 20

const kvSchema = `
	CREATE TABLE IF NOT EXISTS kv_cache (
		key        TEXT PRIMARY KEY,
		value      TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`

// KVRepo implementación del puerto KVStore sobre PostgreSQL.
type KVRepo struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

// NewKVRepository construye el adaptador y crea la tabla si no existe.
func NewKVRepository(ctx context.Context, pool *pgxpool.Pool, log zerolog.Logger) (*KVRepo, error) {
	if _, err := pool.Exec(ctx, kvSchema); err != nil {
		return nil, fmt.Errorf("crear tabla kv_cache: %w", err)
	}
	return &KVRepo{pool: pool, log: log}, nil
}

// Get obtiene el valor de una clave. Cualquier error se trata como ausencia.
func (r *KVRepo) Get(ctx context.Context, key string) (string, bool) {
	var value string
	err := r.pool.QueryRow(ctx, `SELECT value FROM kv_cache WHERE key = $1`, key).Scan(&value)
	if err != nil {
		if !isNoRows(err) {
			r.log.Warn().Err(err).Str("key", key).Msg("lectura de kv_cache fallida")
		}
		return "", false
	}
	return value, true
}

// Set inserta o reemplaza el valor (UPSERT).
func (r *KVRepo) Set(ctx context.Context, key, value string) error {
	if len(value) > maxValueBytes {
		return fmt.Errorf("kv_cache %q (%d bytes): %w", key, len(value), domain.ErrQuotaExceeded)
	}
	query := `
		INSERT INTO kv_cache (key, value, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`
	if _, err := r.pool.Exec(ctx, query, key, value, time.Now()); err != nil {
		if isQuotaViolation(err) {
			return fmt.Errorf("kv_cache %q: %w", key, domain.ErrQuotaExceeded)
		}
		return fmt.Errorf("upsert kv_cache: %w", err)
	}
	return nil
}

// Remove borra la clave; los errores solo se registran.
func (r *KVRepo) Remove(ctx context.Context, key string) {
	if _, err := r.pool.Exec(ctx, `DELETE FROM kv_cache WHERE key = $1`, key); err != nil {
		r.log.Warn().Err(err).Str("key", key).Msg("borrado en kv_cache fallido")
	}
}

// isQuotaViolation detecta disk_full (53100) y program_limit_exceeded (54000).
func isQuotaViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "53100" || pgErr.Code == "54000"
	}
	return false
}
