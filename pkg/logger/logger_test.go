package logger_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/mercado-bff/pkg/logger"
)

func TestNew_JSONConNivel(t *testing.T) {
	var buf bytes.Buffer
	l := logger.New(logger.Config{Env: "production", Level: "warn", Out: &buf})

	l.Info().Msg("descartado")
	assert.Zero(t, buf.Len())

	cl := l.Component("profile")
	cl.Warn().Str("user_id", "u-1").Msg("cuota excedida")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "profile", entry["component"])
	assert.Equal(t, "u-1", entry["user_id"])
	assert.Equal(t, "cuota excedida", entry["message"])
}

func TestNew_NivelInvalidoUsaInfo(t *testing.T) {
	var buf bytes.Buffer
	l := logger.New(logger.Config{Env: "production", Level: "ruidoso", Out: &buf})
	l.Debug().Msg("no")
	assert.Zero(t, buf.Len())
	l.Info().Msg("si")
	assert.NotZero(t, buf.Len())
}
