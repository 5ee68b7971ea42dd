package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/mercado-bff/pkg/config"
)

func TestLoad_ValoresPorDefecto(t *testing.T) {
	t.Setenv("JWT_SECRET", "secreto")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Cache.Driver)
	assert.Equal(t, 10*time.Minute, cfg.Profile.CacheTTL)
	assert.Equal(t, 3, cfg.Profile.SwitchAttempts)
	assert.Equal(t, time.Second, cfg.Profile.SwitchDelay)
	assert.Equal(t, 30*time.Minute, cfg.Profile.IdleTTL)
	assert.Equal(t, time.Minute, cfg.Profile.SweepInterval)
	assert.Equal(t, 5*time.Minute, cfg.Listing.CacheTTL)
	assert.Equal(t, "0.0.0.0:8080", cfg.HTTP.Addr())
}

func TestLoad_DesdeEntorno(t *testing.T) {
	t.Setenv("JWT_SECRET", "secreto")
	t.Setenv("CACHE_DRIVER", "redis")
	t.Setenv("PROFILE_CACHE_TTL", "90")
	t.Setenv("PROFILE_SWITCH_DELAY", "250ms")
	t.Setenv("BACKEND_URL", "https://api.example.com/v1/")
	t.Setenv("HTTP_PORT", "9090")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "redis", cfg.Cache.Driver)
	assert.Equal(t, 90*time.Second, cfg.Profile.CacheTTL)
	assert.Equal(t, 250*time.Millisecond, cfg.Profile.SwitchDelay)
	assert.Equal(t, "https://api.example.com/v1", cfg.Backend.BaseURL)
	assert.Equal(t, 9090, cfg.HTTP.Port)
}

func TestLoad_Validaciones(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := config.Load()
	assert.Error(t, err, "JWT_SECRET es requerido")

	t.Setenv("JWT_SECRET", "secreto")
	t.Setenv("CACHE_DRIVER", "mongo")
	_, err = config.Load()
	assert.Error(t, err)

	t.Setenv("CACHE_DRIVER", "memory")
	t.Setenv("PROFILE_SWITCH_ATTEMPTS", "0")
	_, err = config.Load()
	assert.Error(t, err)
}

func TestDBConfig_ConnectionString(t *testing.T) {
	c := config.DBConfig{Host: "db", Port: 5432, User: "app", Password: "p@ss", DBName: "mercado", SSLMode: "disable"}
	assert.Equal(t, "postgres://app:p%40ss@db:5432/mercado?sslmode=disable", c.ConnectionString())

	c.DatabaseURL = "postgres://otro"
	assert.Equal(t, "postgres://otro", c.ConnectionString())
}
