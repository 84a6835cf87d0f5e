package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"WARN", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"verbose", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseLevel(tt.in), tt.in)
	}
}

func TestNew_JSONWithService(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.Format = "json"
	cfg.Level = "warn"
	l := New(cfg, &buf)

	l.Info().Msg("ignored")
	assert.Zero(t, buf.Len(), "低于 warn 的日志不输出")

	l.Warn().Str("month", "2024-03").Msg("生成超时")
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "nurseshift", entry["service"])
	assert.Equal(t, "2024-03", entry["month"])
	assert.Equal(t, "warn", entry["level"])
}

func TestContextValues(t *testing.T) {
	ctx := ContextWithRequestID(context.Background(), "req-1")
	ctx = ContextWithUserID(ctx, "user-9")
	assert.Equal(t, "req-1", RequestIDFrom(ctx))
	assert.Empty(t, RequestIDFrom(context.Background()))

	// 使用非全局日志器验证字段
	var buf bytes.Buffer
	base := zerolog.New(&buf)
	l := base.With().Str("request_id", RequestIDFrom(ctx)).Logger()
	l.Info().Msg("x")
	assert.Contains(t, buf.String(), `"request_id":"req-1"`)
}
