package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jan-server/services/docchat-api/internal/config"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.InfoLevel, parseLevel(""))
	assert.Equal(t, zerolog.DebugLevel, parseLevel("DEBUG"))
	assert.Equal(t, zerolog.WarnLevel, parseLevel("warn"))
	assert.Equal(t, zerolog.InfoLevel, parseLevel("chatty"))
}

func TestNew_JSONCarriesServiceFields(t *testing.T) {
	var buf bytes.Buffer
	cfg := &config.Config{ServiceName: "docchat-api", Environment: "test", LogLevel: "info", LogFormat: "json"}

	log := newWithWriter(cfg, &buf)
	log.Debug().Msg("hidden")
	log.Info().Str("component", "dispatcher").Msg("dispatched")

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	assert.Equal(t, "docchat-api", line["service"])
	assert.Equal(t, "test", line["environment"])
	assert.Equal(t, "dispatcher", line["component"])
	assert.Equal(t, "dispatched", line["message"])
}
