// Package avro encodes log records in the Confluent wire format (magic byte
// plus big-endian schema ID, then schemaless Avro), registering the schema
// with a Confluent-compatible schema registry when one is configured. Without
// a registered schema the payload degrades to plain JSON; consumers tell the
// two apart by sniffing the first byte.
package avro

// SchemaVersion is written into every payload so consumers can track schema
// evolution independently of the registry ID.
const SchemaVersion = 1

// LogSchemaV1 is the record schema. All fields past the first four are
// nullable with null defaults, so adding optional fields keeps BACKWARD
// compatibility.
const LogSchemaV1 = `{
  "type": "record",
  "name": "LogRecord",
  "namespace": "com.logpipe.logs",
  "doc": "Log record schema v1",
  "fields": [
    {"name": "level", "type": "string", "doc": "Log level (DEBUG, INFO, WARNING, ERROR, CRITICAL)"},
    {"name": "message", "type": "string", "doc": "Log message"},
    {"name": "service", "type": "string", "doc": "Service/logger name"},
    {"name": "timestamp", "type": "string", "doc": "ISO8601 timestamp"},
    {"name": "file", "type": ["null", "string"], "default": null, "doc": "Source file path"},
    {"name": "line", "type": ["null", "int"], "default": null, "doc": "Line number"},
    {"name": "function", "type": ["null", "string"], "default": null, "doc": "Function name"},
    {"name": "exception", "type": ["null", "string"], "default": null, "doc": "Exception text if any"},
    {"name": "extra", "type": ["null", "string"], "default": null, "doc": "Extra JSON data"},
    {"name": "schema_version", "type": "int", "default": 1, "doc": "Schema version for evolution"}
  ]
}`

// CompatibilityModes lists the registry policies a subject can be configured
// with.
var CompatibilityModes = []string{
	"BACKWARD", "BACKWARD_TRANSITIVE",
	"FORWARD", "FORWARD_TRANSITIVE",
	"FULL", "FULL_TRANSITIVE",
	"NONE",
}
