package logger

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_CustomWriter(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelInfo, Format: "json", Writer: &buf})
	logger.Info("test message")

	assert.Contains(t, buf.String(), "test message")
	assert.Contains(t, buf.String(), "\"level\":\"INFO\"")
}

func TestNew_FormatAutoDetection(t *testing.T) {
	tests := []struct {
		name        string
		environment string
		wantJSON    bool
	}{
		{"production uses json", "production", true},
		{"development uses pretty", "development", false},
		{"staging uses pretty", "staging", false},
		{"empty uses pretty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := New(Config{Level: slog.LevelInfo, Environment: tt.environment, Writer: &buf})
			logger.Info("hello")

			isJSON := strings.HasPrefix(buf.String(), "{")
			assert.Equal(t, tt.wantJSON, isJSON)
		})
	}
}

func TestFromConfig(t *testing.T) {
	l := FromConfig("debug", "production")
	require.NotNil(t, l)
	assert.True(t, l.Enabled(context.Background(), slog.LevelDebug))

	l = FromConfig("error", "development")
	assert.False(t, l.Enabled(context.Background(), slog.LevelWarn))
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.input))
		})
	}
}

func TestPrettyHandler_Enabled(t *testing.T) {
	h := NewPrettyHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelWarn})
	ctx := context.Background()

	assert.False(t, h.Enabled(ctx, slog.LevelInfo))
	assert.True(t, h.Enabled(ctx, slog.LevelWarn))
	assert.True(t, h.Enabled(ctx, slog.LevelError))

	nilOpts := NewPrettyHandler(&bytes.Buffer{}, nil)
	assert.True(t, nilOpts.Enabled(ctx, slog.LevelInfo))
	assert.False(t, nilOpts.Enabled(ctx, slog.LevelDebug))
}

func TestPrettyHandler_Handle(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewPrettyHandler(&buf, nil))

	logger.Info("import finished", "created", 3, "run_id", "abc")

	out := buf.String()
	assert.Contains(t, out, "INF")
	assert.Contains(t, out, "import finished")
	assert.Contains(t, out, "created=3")
	assert.Contains(t, out, "run_id=abc")
	assert.True(t, strings.HasSuffix(out, "\n"))
}

func TestPrettyHandler_QuotesStrings(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewPrettyHandler(&buf, nil))

	logger.Info("x", "name", "Dana Levi", "empty", "")

	assert.Contains(t, buf.String(), `name="Dana Levi"`)
	assert.Contains(t, buf.String(), `empty=""`)
}

func TestPrettyHandler_WithAttrs(t *testing.T) {
	var buf bytes.Buffer
	h := NewPrettyHandler(&buf, nil)
	logger := slog.New(h.WithAttrs([]slog.Attr{slog.String("service", "cascade")}))

	logger.Info("one", "n", 1)
	logger.Info("two")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "service=cascade")
	assert.Contains(t, lines[0], "n=1")
	assert.Contains(t, lines[1], "service=cascade")
	assert.NotContains(t, lines[1], "n=1", "record attrs do not leak into the handler")
}

func TestPrettyHandler_Groups(t *testing.T) {
	var buf bytes.Buffer
	h := NewPrettyHandler(&buf, nil)

	assert.Equal(t, h, h.WithGroup(""), "empty group is a no-op")

	logger := slog.New(h).WithGroup("request").With("id", "r1")
	logger.Info("served",
		slog.Group("stats", slog.Int("delivered", 2), slog.Int("dropped", 0)),
		slog.Group("empty"),
	)

	out := buf.String()
	assert.Contains(t, out, "request.id=r1")
	assert.Contains(t, out, "request.stats.delivered=2")
	assert.Contains(t, out, "request.stats.dropped=0")
	assert.NotContains(t, out, "empty")
}

func TestPrettyHandler_WithSource(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewPrettyHandler(&buf, &slog.HandlerOptions{AddSource: true}))
	logger.Info("with source")

	assert.Contains(t, buf.String(), "logger_test.go:")
}

func TestFormatLevel(t *testing.T) {
	tests := []struct {
		level slog.Level
		want  string
		color string
	}{
		{slog.LevelDebug, "DBG", colorMagenta},
		{slog.LevelInfo, "INF", colorGreen},
		{slog.LevelWarn, "WRN", colorYellow},
		{slog.LevelError, "ERR", colorRed},
		{slog.Level(12), "ERROR+4", colorGray},
	}
	for _, tt := range tests {
		s, c := formatLevel(tt.level)
		assert.Equal(t, tt.want, s)
		assert.Equal(t, tt.color, c)
	}
}

func TestFormatValue(t *testing.T) {
	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, "plain", formatValue(slog.StringValue("plain")))
	assert.Equal(t, "2024-05-01T10:00:00Z", formatValue(slog.TimeValue(ts)))
	assert.Equal(t, "1.5s", formatValue(slog.DurationValue(1500*time.Millisecond)))
	assert.Equal(t, "true", formatValue(slog.BoolValue(true)))
	assert.Equal(t, "42", formatValue(slog.IntValue(42)))
}

func TestLogger_WithErrorAndUser(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelInfo, Format: "json", Writer: &buf})

	logger.ForUser("alice").WithError(errors.New("boom")).Error("delete failed")

	out := buf.String()
	assert.Contains(t, out, `"user_id":"alice"`)
	assert.Contains(t, out, `"error":"boom"`)
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelWarn, Format: "json", Writer: &buf})

	logger.Debug("debug")
	logger.Info("info")
	logger.Warn("warn")
	logger.Error("error")

	out := buf.String()
	assert.NotContains(t, out, `"msg":"debug"`)
	assert.NotContains(t, out, `"msg":"info"`)
	assert.Contains(t, out, `"msg":"warn"`)
	assert.Contains(t, out, `"msg":"error"`)
}
