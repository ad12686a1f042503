package registry

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"logpipe/internal/config"
	"logpipe/internal/dispatch"
	"logpipe/internal/record"
)

func testSettings(dir, file string) *config.Settings {
	s := &config.Settings{
		Level:               record.Debug,
		Mask:                true,
		Dir:                 dir,
		File:                file,
		MaxBytes:            0,
		BackupCount:         0,
		RemoteTimeout:       time.Second,
		RemoteMaxFailures:   3,
		KafkaTopic:          "logs",
		KafkaMaxFailures:    5,
		SchemaCompatibility: "BACKWARD",
		QueueCapacity:       128,
	}
	s.Normalize()
	return s
}

func newTestRegistry(t *testing.T) (*Registry, *dispatch.Dispatcher) {
	t.Helper()
	d := dispatch.New(128, nil)
	d.Start()
	t.Cleanup(d.Shutdown)
	return New(d, nil), d
}

func TestConfigure_FirstCallerWins(t *testing.T) {
	r, _ := newTestRegistry(t)
	dir := t.TempDir()

	first, err := r.Configure("app", testSettings(dir, "a.log"))
	require.NoError(t, err)

	second, err := r.Configure("app", testSettings(dir, "b.log"))
	require.NoError(t, err)
	assert.Same(t, first, second)

	second.Emit(record.New("app", record.Info, "hello"))

	data, err := os.ReadFile(filepath.Join(dir, "a.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")

	// The second call's settings were silently discarded.
	_, err = os.Stat(filepath.Join(dir, "b.log"))
	assert.True(t, os.IsNotExist(err))
}

func TestConfigure_DirectoryFailureIsFatal(t *testing.T) {
	r, _ := newTestRegistry(t)
	dir := t.TempDir()
	blocker := filepath.Join(dir, "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	_, err := r.Configure("app", testSettings(filepath.Join(blocker, "logs"), "a.log"))
	require.Error(t, err)

	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "app", cfgErr.Name)

	// A failed configuration leaves no handle behind.
	_, ok := r.Lookup("app")
	assert.False(t, ok)
}

func TestConfigure_KafkaBuildFailureIsFatal(t *testing.T) {
	r, _ := newTestRegistry(t)

	// An invalid compatibility mode fails Kafka sink construction after the
	// file and remote sinks were already built; the whole configuration must
	// fail and leave nothing behind.
	s := testSettings(t.TempDir(), "a.log")
	s.RemoteURL = "http://127.0.0.1:1/logs"
	s.KafkaServers = []string{"broker:9092"}
	s.SchemaCompatibility = "SIDEWAYS"

	_, err := r.Configure("app", s)
	require.Error(t, err)

	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Contains(t, cfgErr.Err.Error(), "SIDEWAYS")

	_, ok := r.Lookup("app")
	assert.False(t, ok)
}

func TestHandle_EmitRespectsLevel(t *testing.T) {
	r, _ := newTestRegistry(t)
	dir := t.TempDir()

	s := testSettings(dir, "a.log")
	s.Level = record.Warning
	s.Normalize()

	h, err := r.Configure("app", s)
	require.NoError(t, err)

	h.Emit(record.New("app", record.Info, "below threshold"))
	h.Emit(record.New("app", record.Error, "above threshold"))

	data, err := os.ReadFile(filepath.Join(dir, "a.log"))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "below threshold")
	assert.Contains(t, string(data), "above threshold")
}

func TestHandle_ReloadRebuildsSinks(t *testing.T) {
	r, _ := newTestRegistry(t)
	dir := t.TempDir()

	h, err := r.Configure("app", testSettings(dir, "a.log"))
	require.NoError(t, err)

	h.Emit(record.New("app", record.Info, "before reload"))
	require.NoError(t, h.Reload())
	h.Emit(record.New("app", record.Info, "after reload"))

	data, err := os.ReadFile(filepath.Join(dir, "a.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "before reload")
	assert.Contains(t, string(data), "after reload")
}

func TestHandle_ReloadConcurrentWithEmit(t *testing.T) {
	r, _ := newTestRegistry(t)
	dir := t.TempDir()

	h, err := r.Configure("app", testSettings(dir, "a.log"))
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			h.Emit(record.New("app", record.Info, "racing emit"))
		}
	}()

	for i := 0; i < 5; i++ {
		require.NoError(t, h.Reload())
	}
	<-done

	// Emits raced reloads but every one landed on a whole sink set.
	_, err = os.Stat(filepath.Join(dir, "a.log"))
	assert.NoError(t, err)
}

func TestRegistry_SeparateNamesSeparateHandles(t *testing.T) {
	r, _ := newTestRegistry(t)
	dir := t.TempDir()

	a, err := r.Configure("svc.a", testSettings(dir, "a.log"))
	require.NoError(t, err)
	b, err := r.Configure("svc.b", testSettings(dir, "b.log"))
	require.NoError(t, err)

	assert.NotSame(t, a, b)
	assert.Equal(t, "svc.a", a.Name())
	assert.Equal(t, "svc.b", b.Name())
}
