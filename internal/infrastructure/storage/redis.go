package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"github.com/jhoicas/mercado-bff/internal/domain"
	"github.com/jhoicas/mercado-bff/internal/domain/repository"
)

var _ repository.KVStore = (*RedisStore)(nil)

// RedisStore adaptador sobre Redis. ttl > 0 aplica expiración a cada clave escrita.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	log    zerolog.Logger
}

// NewRedisStore conecta y verifica con PING.
func NewRedisStore(ctx context.Context, addr, password string, db int, ttl time.Duration, log zerolog.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisStore{client: client, ttl: ttl, log: log}, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool) {
	v, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.log.Warn().Err(err).Str("key", key).Msg("lectura de redis fallida")
		}
		return "", false
	}
	return v, true
}

func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, key, value, s.ttl).Err(); err != nil {
		// Redis con maxmemory responde "OOM command not allowed when used memory > 'maxmemory'".
		if strings.HasPrefix(err.Error(), "OOM") {
			return fmt.Errorf("redis set %q: %w", key, domain.ErrQuotaExceeded)
		}
		return fmt.Errorf("redis set %q: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Remove(ctx context.Context, key string) {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("borrado en redis fallido")
	}
}

// Close cierra el cliente.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
