package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"logpipe/internal/record"
)

// Settings holds the fully resolved pipeline configuration. Resolution order
// is defaults, then the optional YAML file, then environment variables, then
// explicit Overrides.
type Settings struct {
	Level               record.Level      `json:"-" yaml:"-"`
	Mode                string            `json:"mode" yaml:"mode"`
	Color               bool              `json:"color" yaml:"color"`
	JSONMode            bool              `json:"json_mode" yaml:"json_mode"`
	Mask                bool              `json:"mask" yaml:"mask"`
	Dir                 string            `json:"log_dir" yaml:"log_dir"`
	File                string            `json:"file" yaml:"file"`
	MaxBytes            int64             `json:"max_bytes" yaml:"max_bytes"`
	BackupCount         int               `json:"backup_count" yaml:"backup_count"`
	CompressBackups     bool              `json:"compress_backups" yaml:"compress_backups"`
	RemoteURL           string            `json:"remote_url,omitempty" yaml:"remote_url"`
	RemoteTimeout       time.Duration     `json:"remote_timeout" yaml:"remote_timeout"`
	RemoteMaxFailures   int               `json:"max_remote_retries" yaml:"max_remote_retries"`
	RemoteHeaders       map[string]string `json:"remote_headers,omitempty" yaml:"remote_headers"`
	KafkaServers        []string          `json:"kafka_servers,omitempty" yaml:"kafka_servers"`
	KafkaTopic          string            `json:"kafka_topic" yaml:"kafka_topic"`
	KafkaMaxFailures    int               `json:"kafka_max_failures" yaml:"kafka_max_failures"`
	SchemaRegistryURL   string            `json:"schema_registry_url,omitempty" yaml:"schema_registry_url"`
	SchemaCompatibility string            `json:"schema_compatibility" yaml:"schema_compatibility"`
	QueueCapacity       int               `json:"queue_capacity" yaml:"queue_capacity"`

	// LevelName mirrors Level for file and display round trips.
	LevelName string `json:"level" yaml:"level"`
}

// Overrides carries explicitly provided settings. Pointer fields distinguish
// "not provided" from zero values, so callers never need sentinel objects.
type Overrides struct {
	Mode                *string
	Level               *record.Level
	Color               *bool
	JSONMode            *bool
	Mask                *bool
	Dir                 *string
	File                *string
	MaxBytes            *int64
	BackupCount         *int
	CompressBackups     *bool
	RemoteURL           *string
	RemoteTimeout       *time.Duration
	RemoteMaxFailures   *int
	RemoteHeaders       map[string]string
	KafkaServers        []string
	KafkaTopic          *string
	KafkaMaxFailures    *int
	SchemaRegistryURL   *string
	SchemaCompatibility *string
	QueueCapacity       *int
}

func getEnvString(key, defaultValue string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	return val
}

func getEnvBool(key string, defaultValue bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getEnvInt(key string, defaultValue int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	intVal, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}
	return intVal
}

func getEnvInt64(key string, defaultValue int64) int64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	intVal, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return defaultValue
	}
	return intVal
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	duration, err := time.ParseDuration(val)
	if err != nil {
		return defaultValue
	}
	return duration
}

func getEnvList(key string, defaultValue []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getEnvHeaders(key string, defaultValue map[string]string) map[string]string {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	headers := make(map[string]string)
	for _, pair := range strings.Split(val, ",") {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		headers[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return headers
}

func defaults() *Settings {
	return &Settings{
		Level:               record.Info,
		LevelName:           "INFO",
		Mode:                "dev",
		Color:               false,
		JSONMode:            false,
		Mask:                true,
		Dir:                 "logs",
		File:                "app.log",
		MaxBytes:            10_000_000,
		BackupCount:         5,
		RemoteTimeout:       2 * time.Second,
		RemoteMaxFailures:   3,
		KafkaTopic:          "logs",
		KafkaMaxFailures:    5,
		SchemaCompatibility: "BACKWARD",
		QueueCapacity:       1_000_000,
	}
}

// Load resolves settings from defaults, an optional YAML file and the
// environment. An empty configFile skips the file layer; a missing file is
// not an error.
func Load(configFile string) (*Settings, error) {
	s := defaults()

	if configFile != "" {
		data, err := os.ReadFile(configFile)
		if err == nil {
			if err := yaml.Unmarshal(data, s); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", configFile, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}
	if s.LevelName != "" {
		level, err := record.ParseLevel(s.LevelName)
		if err != nil {
			return nil, err
		}
		s.Level = level
	}

	if name := os.Getenv("LOG_LEVEL"); name != "" {
		level, err := record.ParseLevel(name)
		if err != nil {
			return nil, err
		}
		s.Level = level
	}
	s.Mode = getEnvString("LOG_MODE", s.Mode)
	s.Color = getEnvBool("LOG_COLOR", s.Color)
	s.JSONMode = getEnvBool("LOG_JSON", s.JSONMode)
	s.Mask = getEnvBool("LOG_MASK", s.Mask)
	s.Dir = getEnvString("LOG_DIR", s.Dir)
	s.File = getEnvString("LOG_FILE", s.File)
	s.MaxBytes = getEnvInt64("LOG_MAX_BYTES", s.MaxBytes)
	s.BackupCount = getEnvInt("LOG_BACKUP_COUNT", s.BackupCount)
	s.CompressBackups = getEnvBool("LOG_COMPRESS_BACKUPS", s.CompressBackups)
	s.RemoteURL = getEnvString("LOG_REMOTE", s.RemoteURL)
	s.RemoteTimeout = getEnvDuration("LOG_REMOTE_TIMEOUT", s.RemoteTimeout)
	s.RemoteMaxFailures = getEnvInt("LOG_REMOTE_MAX_RETRIES", s.RemoteMaxFailures)
	s.RemoteHeaders = getEnvHeaders("LOG_REMOTE_HEADERS", s.RemoteHeaders)
	s.KafkaServers = getEnvList("LOG_KAFKA_SERVERS", s.KafkaServers)
	s.KafkaTopic = getEnvString("LOG_KAFKA_TOPIC", s.KafkaTopic)
	s.KafkaMaxFailures = getEnvInt("LOG_KAFKA_MAX_FAILURES", s.KafkaMaxFailures)
	s.SchemaRegistryURL = getEnvString("LOG_SCHEMA_REGISTRY", s.SchemaRegistryURL)
	s.SchemaCompatibility = getEnvString("LOG_SCHEMA_COMPATIBILITY", s.SchemaCompatibility)
	s.QueueCapacity = getEnvInt("LOG_QUEUE_CAPACITY", s.QueueCapacity)

	s.Normalize()
	return s, nil
}

// Apply copies every provided override onto the settings and re-normalizes.
// Mode presets land first so explicit fields win over the preset.
func (o *Overrides) Apply(s *Settings) {
	if o == nil {
		return
	}
	if o.Mode != nil {
		ApplyMode(s, *o.Mode)
	}
	if o.Level != nil {
		s.Level = *o.Level
	}
	if o.Color != nil {
		s.Color = *o.Color
	}
	if o.JSONMode != nil {
		s.JSONMode = *o.JSONMode
	}
	if o.Mask != nil {
		s.Mask = *o.Mask
	}
	if o.Dir != nil {
		s.Dir = *o.Dir
	}
	if o.File != nil {
		s.File = *o.File
	}
	if o.MaxBytes != nil {
		s.MaxBytes = *o.MaxBytes
	}
	if o.BackupCount != nil {
		s.BackupCount = *o.BackupCount
	}
	if o.CompressBackups != nil {
		s.CompressBackups = *o.CompressBackups
	}
	if o.RemoteURL != nil {
		s.RemoteURL = *o.RemoteURL
	}
	if o.RemoteTimeout != nil {
		s.RemoteTimeout = *o.RemoteTimeout
	}
	if o.RemoteMaxFailures != nil {
		s.RemoteMaxFailures = *o.RemoteMaxFailures
	}
	if o.RemoteHeaders != nil {
		s.RemoteHeaders = o.RemoteHeaders
	}
	if o.KafkaServers != nil {
		s.KafkaServers = o.KafkaServers
	}
	if o.KafkaTopic != nil {
		s.KafkaTopic = *o.KafkaTopic
	}
	if o.KafkaMaxFailures != nil {
		s.KafkaMaxFailures = *o.KafkaMaxFailures
	}
	if o.SchemaRegistryURL != nil {
		s.SchemaRegistryURL = *o.SchemaRegistryURL
	}
	if o.SchemaCompatibility != nil {
		s.SchemaCompatibility = *o.SchemaCompatibility
	}
	if o.QueueCapacity != nil {
		s.QueueCapacity = *o.QueueCapacity
	}
	s.Normalize()
}

// Normalize enforces cross-field invariants. JSON output and ANSI color are
// mutually exclusive; JSON loses.
func (s *Settings) Normalize() {
	if s.JSONMode && s.Color {
		s.JSONMode = false
	}
	if s.QueueCapacity <= 0 {
		s.QueueCapacity = defaults().QueueCapacity
	}
	s.LevelName = s.Level.String()
}

// Clone returns a deep copy so a handle can keep its own settings snapshot.
func (s *Settings) Clone() *Settings {
	dup := *s
	if s.RemoteHeaders != nil {
		dup.RemoteHeaders = make(map[string]string, len(s.RemoteHeaders))
		for k, v := range s.RemoteHeaders {
			dup.RemoteHeaders[k] = v
		}
	}
	dup.KafkaServers = append([]string(nil), s.KafkaServers...)
	return &dup
}
