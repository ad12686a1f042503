package render

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"logpipe/internal/record"
)

func testRecord() *record.Record {
	return &record.Record{
		Level:      record.Info,
		Message:    "service started",
		LoggerName: "app",
		Time:       time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC),
	}
}

func TestTextRenderer(t *testing.T) {
	out := string(New(false, false).Render(testRecord()))
	assert.Equal(t, "2024-05-01 12:30:00,000 | app | INFO | service started\n", out)
}

func TestTextRenderer_ExtraAndException(t *testing.T) {
	rec := testRecord()
	rec.Extra = map[string]any{"request_id": "abc", "attempt": 2}
	rec.Exception = "some traceback"

	out := string(New(false, false).Render(rec))
	assert.Contains(t, out, "attempt=2 request_id=abc")
	assert.True(t, strings.HasSuffix(out, "some traceback\n"))
}

func TestColorRenderer_WrapsLinePerLevel(t *testing.T) {
	// fatih/color disables itself on non-tty streams; force it for the test.
	old := color.NoColor
	color.NoColor = false
	defer func() { color.NoColor = old }()

	rec := testRecord()
	rec.Level = record.Error
	rec.Message = "boom"

	out := string(New(false, true).Render(rec))
	assert.Contains(t, out, "\x1b[31m")
	assert.Contains(t, out, "boom")
	// The reset code must come before the newline so entries stay separate.
	assert.True(t, strings.HasSuffix(out, "\x1b[0m\n"))
}

func TestJSONRenderer(t *testing.T) {
	rec := testRecord()
	rec.File = "main.go"
	rec.Line = 10
	rec.Extra = map[string]any{"k": "v"}

	out := New(true, false).Render(rec)
	assert.Equal(t, byte('\n'), out[len(out)-1])

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(out, &decoded))
	assert.Equal(t, "app", decoded["name"])
	assert.Equal(t, "INFO", decoded["level"])
	assert.Equal(t, "service started", decoded["message"])
	assert.Equal(t, "main.go", decoded["file"])
	assert.EqualValues(t, 10, decoded["line"])
	assert.Equal(t, map[string]any{"k": "v"}, decoded["extra"])
}

func TestJSONRenderer_OmitsEmptyOptionalFields(t *testing.T) {
	out := New(true, false).Render(testRecord())
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(out, &decoded))
	for _, field := range []string{"file", "line", "function", "exception", "extra"} {
		_, present := decoded[field]
		assert.False(t, present, field)
	}
}
