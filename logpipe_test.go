package logpipe

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type collectedEntry struct {
	Level     string `json:"level"`
	Message   string `json:"message"`
	Service   string `json:"service"`
	File      string `json:"file"`
	Function  string `json:"func"`
	Exception string `json:"exception"`
}

// collector plays the remote HTTP endpoint the pipeline ships records to.
type collector struct {
	mu      sync.Mutex
	entries []collectedEntry
	server  *httptest.Server
}

func newCollector(t *testing.T) *collector {
	t.Helper()
	c := &collector{}
	c.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var entry collectedEntry
		require.NoError(t, json.NewDecoder(r.Body).Decode(&entry))
		c.mu.Lock()
		c.entries = append(c.entries, entry)
		c.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(c.server.Close)
	return c
}

func (c *collector) received() []collectedEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]collectedEntry(nil), c.entries...)
}

func testOverrides(dir, remoteURL string) *Overrides {
	return &Overrides{
		Level:     Level(LevelDebug),
		Dir:       String(dir),
		File:      String("app.log"),
		RemoteURL: String(remoteURL),
	}
}

func TestPipeline_EndToEnd(t *testing.T) {
	c := newCollector(t)
	pipe := NewPipeline(256)
	defer pipe.Shutdown()

	log, err := pipe.Get("orders", testOverrides(t.TempDir(), c.server.URL))
	require.NoError(t, err)

	const count = 20
	for i := 0; i < count; i++ {
		log.Info(fmt.Sprintf("order %d placed", i))
	}
	require.True(t, pipe.Flush(5*time.Second))

	got := c.received()
	require.Len(t, got, count)
	for i, entry := range got {
		assert.Equal(t, fmt.Sprintf("order %d placed", i), entry.Message)
		assert.Equal(t, "INFO", entry.Level)
		assert.Equal(t, "orders", entry.Service)
		assert.Contains(t, entry.File, "logpipe_test.go")
		assert.Contains(t, entry.Function, "TestPipeline_EndToEnd")
	}
}

func TestPipeline_MasksSensitiveTokens(t *testing.T) {
	c := newCollector(t)
	pipe := NewPipeline(64)
	defer pipe.Shutdown()

	dir := t.TempDir()
	log, err := pipe.Get("auth", testOverrides(dir, c.server.URL))
	require.NoError(t, err)

	log.Warning("login failed password=hunter2 for user bob")
	require.True(t, pipe.Flush(5*time.Second))

	got := c.received()
	require.Len(t, got, 1)
	assert.NotContains(t, got[0].Message, "hunter2")
	assert.Contains(t, got[0].Message, "****")

	// The file sink sees the scrubbed message too.
	data, err := os.ReadFile(filepath.Join(dir, "app.log"))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hunter2")
}

func TestPipeline_ExceptionCarriesError(t *testing.T) {
	c := newCollector(t)
	pipe := NewPipeline(64)
	defer pipe.Shutdown()

	log, err := pipe.Get("worker", testOverrides(t.TempDir(), c.server.URL))
	require.NoError(t, err)

	log.Exception("job failed", errors.New("connection reset"))
	require.True(t, pipe.Flush(5*time.Second))

	got := c.received()
	require.Len(t, got, 1)
	assert.Equal(t, "ERROR", got[0].Level)
	assert.Equal(t, "connection reset", got[0].Exception)
}

func TestLogger_WithBindsContext(t *testing.T) {
	pipe := NewPipeline(64)
	defer pipe.Shutdown()

	dir := t.TempDir()
	base, err := pipe.Get("api", testOverrides(dir, ""))
	require.NoError(t, err)

	reqLog := base.With("request_id", "r-123")
	reqLog.Info("handled", "status", 200)
	base.Info("no context")

	data, err := os.ReadFile(filepath.Join(dir, "app.log"))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "request_id=r-123")
	assert.Contains(t, lines[0], "status=200")
	assert.NotContains(t, lines[1], "request_id")
}

func TestPipeline_FirstCallerWins(t *testing.T) {
	pipe := NewPipeline(64)
	defer pipe.Shutdown()

	dir := t.TempDir()
	first, err := pipe.Get("shared", testOverrides(dir, ""))
	require.NoError(t, err)

	other := t.TempDir()
	second, err := pipe.Get("shared", testOverrides(other, ""))
	require.NoError(t, err)

	second.Info("routed to the first configuration")
	first.Flush(5 * time.Second)

	data, err := os.ReadFile(filepath.Join(dir, "app.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "routed to the first configuration")

	_, err = os.Stat(filepath.Join(other, "app.log"))
	assert.True(t, os.IsNotExist(err))
}

func TestPipeline_LevelFiltering(t *testing.T) {
	pipe := NewPipeline(64)
	defer pipe.Shutdown()

	dir := t.TempDir()
	o := testOverrides(dir, "")
	o.Level = Level(LevelError)
	log, err := pipe.Get("quiet", o)
	require.NoError(t, err)

	log.Debug("dropped")
	log.Info("dropped")
	log.Critical("kept")

	data, err := os.ReadFile(filepath.Join(dir, "app.log"))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "dropped")
	assert.Contains(t, string(data), "kept")
}

func TestPipeline_ShutdownDrainsAndIsIdempotent(t *testing.T) {
	c := newCollector(t)
	pipe := NewPipeline(64)

	log, err := pipe.Get("drain", testOverrides(t.TempDir(), c.server.URL))
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		log.Info(fmt.Sprintf("msg-%d", i))
	}
	pipe.Shutdown()
	pipe.Shutdown()

	assert.Len(t, c.received(), 10)

	// Emits after shutdown are dropped, not panics.
	log.Info("late")
}

func TestPipeline_SurvivesDeadCollector(t *testing.T) {
	pipe := NewPipeline(64)
	defer pipe.Shutdown()

	dir := t.TempDir()
	o := testOverrides(dir, "http://127.0.0.1:1/logs")
	o.RemoteMaxFailures = Int(2)
	log, err := pipe.Get("resilient", o)
	require.NoError(t, err)

	for i := 0; i < 6; i++ {
		log.Info(fmt.Sprintf("msg-%d", i))
	}
	require.True(t, pipe.Flush(10*time.Second))

	// The dead collector trips its breaker; local sinks keep every record.
	data, err := os.ReadFile(filepath.Join(dir, "app.log"))
	require.NoError(t, err)
	for i := 0; i < 6; i++ {
		assert.Contains(t, string(data), fmt.Sprintf("msg-%d", i))
	}
}

func TestNewPipeline_QueueCapacityFromEnvironment(t *testing.T) {
	t.Setenv("LOG_QUEUE_CAPACITY", "32")

	pipe := NewPipeline(0)
	defer pipe.Shutdown()
	assert.Equal(t, 32, pipe.dispatcher.Capacity())
}

func TestNewPipeline_ExplicitCapacityWinsOverEnvironment(t *testing.T) {
	t.Setenv("LOG_QUEUE_CAPACITY", "32")

	pipe := NewPipeline(8)
	defer pipe.Shutdown()
	assert.Equal(t, 8, pipe.dispatcher.Capacity())
}

func TestPipeline_ReloadKeepsLogging(t *testing.T) {
	pipe := NewPipeline(64)
	defer pipe.Shutdown()

	dir := t.TempDir()
	log, err := pipe.Get("reloader", testOverrides(dir, ""))
	require.NoError(t, err)

	log.Info("before")
	require.NoError(t, log.Reload())
	log.Info("after")

	data, err := os.ReadFile(filepath.Join(dir, "app.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "before")
	assert.Contains(t, string(data), "after")
}
