package avro

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/linkedin/goavro/v2"
	"github.com/valyala/fastjson"

	"logpipe/internal/diag"
	"logpipe/internal/record"
)

const headerLen = 5 // magic byte + 4-byte schema ID

// Serializer encodes records for the Kafka sink. With a registered schema it
// emits Confluent-framed Avro; without one it falls back to plain JSON.
type Serializer struct {
	codec         *goavro.Codec
	registry      *RegistryClient
	compatibility string
	schemaID      int
	log           *diag.Logger
}

// NewSerializer parses the v1 schema and remembers the registry to use. A nil
// registry (no URL configured) means every payload takes the JSON fallback.
// The compatibility mode must be one of CompatibilityModes; empty defaults to
// BACKWARD.
func NewSerializer(registry *RegistryClient, compatibility string, log *diag.Logger) (*Serializer, error) {
	codec, err := goavro.NewCodec(LogSchemaV1)
	if err != nil {
		return nil, fmt.Errorf("parse log schema: %w", err)
	}
	if compatibility == "" {
		compatibility = "BACKWARD"
	}
	if !validCompatibility(compatibility) {
		return nil, fmt.Errorf("unsupported schema compatibility mode %q", compatibility)
	}
	if log == nil {
		log = diag.NewLogger("avro")
	}
	return &Serializer{
		codec:         codec,
		registry:      registry,
		compatibility: compatibility,
		log:           log,
	}, nil
}

func validCompatibility(mode string) bool {
	for _, m := range CompatibilityModes {
		if m == mode {
			return true
		}
	}
	return false
}

// Register pushes the compatibility mode and the schema for {topic}-value,
// capturing the schema ID. Best-effort: a failure leaves the serializer in
// JSON-fallback mode. Called once per sink instance, never per message.
func (s *Serializer) Register(topic string) error {
	if s.registry == nil {
		return nil
	}
	subject := topic + "-value"
	// The compatibility mode is advisory; a failed PUT must not block framed
	// encoding once the schema itself registers.
	if err := s.registry.SetCompatibility(subject, s.compatibility); err != nil {
		s.log.Warn("setting schema compatibility failed", "subject", subject, "error", err)
	}

	id, err := s.registry.RegisterSchema(subject, LogSchemaV1)
	if err != nil {
		return fmt.Errorf("schema registration failed: %w", err)
	}
	s.schemaID = id
	return nil
}

// SchemaID returns the registered ID, or 0 when running in fallback mode.
func (s *Serializer) SchemaID() int {
	return s.schemaID
}

// Serialize encodes one record. Optional fields absent on the record encode
// as the schema's null variant.
func (s *Serializer) Serialize(rec *record.Record) ([]byte, error) {
	if s.schemaID == 0 {
		return s.serializeJSON(rec)
	}

	native, err := nativeFromRecord(rec)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, headerLen)
	binary.BigEndian.PutUint32(buf[1:], uint32(s.schemaID))
	return s.codec.BinaryFromNative(buf, native)
}

func (s *Serializer) serializeJSON(rec *record.Record) ([]byte, error) {
	payload := map[string]any{
		"level":          rec.Level.String(),
		"message":        rec.Message,
		"service":        rec.LoggerName,
		"timestamp":      isoTimestamp(rec.Time),
		"file":           nil,
		"line":           nil,
		"function":       nil,
		"exception":      nil,
		"extra":          nil,
		"schema_version": SchemaVersion,
	}
	if rec.File != "" {
		payload["file"] = rec.File
	}
	if rec.Line > 0 {
		payload["line"] = rec.Line
	}
	if rec.Function != "" {
		payload["function"] = rec.Function
	}
	if rec.Exception != "" {
		payload["exception"] = rec.Exception
	}
	if extra, err := extraJSON(rec); err != nil {
		return nil, err
	} else if extra != "" {
		payload["extra"] = extra
	}
	return json.Marshal(payload)
}

func nativeFromRecord(rec *record.Record) (map[string]any, error) {
	native := map[string]any{
		"level":          rec.Level.String(),
		"message":        rec.Message,
		"service":        rec.LoggerName,
		"timestamp":      isoTimestamp(rec.Time),
		"file":           nullableString(rec.File),
		"line":           nullableInt(rec.Line),
		"function":       nullableString(rec.Function),
		"exception":      nullableString(rec.Exception),
		"extra":          nil,
		"schema_version": SchemaVersion,
	}
	extra, err := extraJSON(rec)
	if err != nil {
		return nil, err
	}
	if extra != "" {
		native["extra"] = map[string]any{"string": extra}
	}
	return native, nil
}

func nullableString(v string) any {
	if v == "" {
		return nil
	}
	return map[string]any{"string": v}
}

func nullableInt(v int) any {
	if v <= 0 {
		return nil
	}
	return map[string]any{"int": int32(v)}
}

func extraJSON(rec *record.Record) (string, error) {
	if len(rec.Extra) == 0 {
		return "", nil
	}
	data, err := json.Marshal(rec.Extra)
	if err != nil {
		return "", fmt.Errorf("encode extra fields: %w", err)
	}
	return string(data), nil
}

func isoTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.999999") + "Z"
}

// IsConfluentFramed reports whether a payload carries the wire header. The
// JSON fallback always starts with '{', so a leading zero byte is decisive.
func IsConfluentFramed(payload []byte) bool {
	return len(payload) > headerLen && payload[0] == 0
}

// FramedSchemaID extracts the schema ID from a framed payload.
func FramedSchemaID(payload []byte) (int, bool) {
	if !IsConfluentFramed(payload) {
		return 0, false
	}
	return int(binary.BigEndian.Uint32(payload[1:headerLen])), true
}

// DecodeNative decodes either encoding back into a field map, the way a
// registry-aware consumer would: sniff the first byte, then Avro or JSON.
// Avro union values collapse to their inner value; nulls stay nil.
func (s *Serializer) DecodeNative(payload []byte) (map[string]any, error) {
	if IsConfluentFramed(payload) {
		native, _, err := s.codec.NativeFromBinary(payload[headerLen:])
		if err != nil {
			return nil, fmt.Errorf("decode avro payload: %w", err)
		}
		fields, ok := native.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("unexpected avro native type %T", native)
		}
		out := make(map[string]any, len(fields))
		for k, v := range fields {
			out[k] = unwrapUnion(v)
		}
		return out, nil
	}

	parsed, err := fastjson.ParseBytes(payload)
	if err != nil {
		return nil, fmt.Errorf("decode json payload: %w", err)
	}
	obj, err := parsed.Object()
	if err != nil {
		return nil, fmt.Errorf("json payload is not an object: %w", err)
	}
	out := make(map[string]any)
	obj.Visit(func(key []byte, v *fastjson.Value) {
		switch v.Type() {
		case fastjson.TypeString:
			sb, _ := v.StringBytes()
			out[string(key)] = string(sb)
		case fastjson.TypeNumber:
			f, _ := v.Float64()
			if f == float64(int64(f)) {
				out[string(key)] = int(f)
			} else {
				out[string(key)] = f
			}
		case fastjson.TypeNull:
			out[string(key)] = nil
		case fastjson.TypeTrue:
			out[string(key)] = true
		case fastjson.TypeFalse:
			out[string(key)] = false
		default:
			out[string(key)] = v.String()
		}
	})
	return out, nil
}

func unwrapUnion(v any) any {
	union, ok := v.(map[string]any)
	if !ok || len(union) != 1 {
		return v
	}
	for _, inner := range union {
		return inner
	}
	return v
}
