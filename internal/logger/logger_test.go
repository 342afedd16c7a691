package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_InfoLevel(t *testing.T) {
	logger := New("info")
	assert.NotNil(t, logger)
}

func TestNew_DebugLevel(t *testing.T) {
	logger := New("debug")
	assert.NotNil(t, logger)
}

func TestNew_DefaultLevel(t *testing.T) {
	logger := New("unknown")
	assert.NotNil(t, logger)
}

func TestNewJSON(t *testing.T) {
	logger := NewJSON("info")
	assert.NotNil(t, logger)
}

func TestParseLevel_CaseInsensitive(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected slog.Level
	}{
		{"lowercase debug", "debug", slog.LevelDebug},
		{"uppercase DEBUG", "DEBUG", slog.LevelDebug},
		{"mixed cAsE", "DeBuG", slog.LevelDebug},
		{"lowercase info", "info", slog.LevelInfo},
		{"uppercase INFO", "INFO", slog.LevelInfo},
		{"warning", "warning", slog.LevelWarn},
		{"warn alias", "warn", slog.LevelWarn},
		{"lowercase error", "error", slog.LevelError},
		{"uppercase ERROR", "ERROR", slog.LevelError},
		{"critical", "critical", LevelCritical},
		{"unknown", "unknown", slog.LevelInfo},
		{"empty", "", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level := ParseLevel(tt.input)
			assert.Equal(t, tt.expected, level)
		})
	}
}

func TestCriticalLevelRendering(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{
		Level:       slog.LevelDebug,
		ReplaceAttr: renameCritical,
	})
	log := slog.New(handler)

	log.Log(context.Background(), LevelCritical, "store unreachable")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "CRITICAL", record["level"])
	assert.Equal(t, "store unreachable", record["msg"])
}

func TestErrorLevelRenderingUnchanged(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{
		Level:       slog.LevelDebug,
		ReplaceAttr: renameCritical,
	})
	log := slog.New(handler)

	log.Error("plain error")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "ERROR", record["level"])
}
