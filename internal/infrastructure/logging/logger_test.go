package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"atmledger/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(config.LogConfig{Level: "warn", Format: "json"}, &buf)

	log.Info("dropped")
	log.Warn("kept", "account", "100200300")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "kept", rec["msg"])
	assert.Equal(t, "100200300", rec["account"])
}

func TestNewText(t *testing.T) {
	var buf bytes.Buffer
	log := New(config.LogConfig{Level: "info", Format: "text"}, &buf)

	log.Debug("hidden")
	log.Info("deposit applied", "amount", 100)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "deposit applied")
}
