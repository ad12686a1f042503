// Package render turns records into the byte representation written to
// synchronous sinks. Three modes exist: plain text, ANSI-colored text and
// JSON lines. JSON and color are mutually exclusive; the config layer
// resolves that conflict before a renderer is ever constructed.
package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/fatih/color"

	"logpipe/internal/record"
)

const timeLayout = "2006-01-02 15:04:05,000"

// Renderer produces the rendered byte buffer for one record. The returned
// slice always ends with a newline.
type Renderer interface {
	Render(rec *record.Record) []byte
}

// New returns the renderer for the resolved mode. Color only applies to text
// output; jsonMode wins the dispatch and ignores the color flag entirely.
func New(jsonMode, colored bool) Renderer {
	if jsonMode {
		return jsonRenderer{}
	}
	if colored {
		return newColorRenderer()
	}
	return textRenderer{}
}

type textRenderer struct{}

func (textRenderer) Render(rec *record.Record) []byte {
	return appendText(nil, rec)
}

func appendText(buf []byte, rec *record.Record) []byte {
	b := bytes.NewBuffer(buf)
	fmt.Fprintf(b, "%s | %s | %s | %s", rec.Time.Format(timeLayout), rec.LoggerName, rec.Level, rec.Message)
	if len(rec.Extra) > 0 {
		keys := make([]string, 0, len(rec.Extra))
		for k := range rec.Extra {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(b, " %s=%v", k, rec.Extra[k])
		}
	}
	b.WriteByte('\n')
	if rec.Exception != "" {
		b.WriteString(rec.Exception)
		b.WriteByte('\n')
	}
	return b.Bytes()
}

type colorRenderer struct {
	colors map[record.Level]*color.Color
}

func newColorRenderer() colorRenderer {
	return colorRenderer{colors: map[record.Level]*color.Color{
		record.Debug:    color.New(color.FgCyan),
		record.Info:     color.New(color.FgGreen),
		record.Warning:  color.New(color.FgYellow),
		record.Error:    color.New(color.FgRed),
		record.Critical: color.New(color.FgRed, color.Bold),
	}}
}

func (r colorRenderer) Render(rec *record.Record) []byte {
	line := appendText(nil, rec)
	c, ok := r.colors[rec.Level]
	if !ok {
		return line
	}
	// Color the line without the trailing newline so the reset code does not
	// bleed into the next entry.
	return []byte(c.Sprint(string(bytes.TrimRight(line, "\n"))) + "\n")
}

type jsonRenderer struct{}

type jsonEntry struct {
	Time      string         `json:"time"`
	Name      string         `json:"name"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	File      string         `json:"file,omitempty"`
	Line      int            `json:"line,omitempty"`
	Function  string         `json:"function,omitempty"`
	Exception string         `json:"exception,omitempty"`
	Extra     map[string]any `json:"extra,omitempty"`
}

func (jsonRenderer) Render(rec *record.Record) []byte {
	entry := jsonEntry{
		Time:      rec.Time.Format(timeLayout),
		Name:      rec.LoggerName,
		Level:     rec.Level.String(),
		Message:   rec.Message,
		File:      rec.File,
		Line:      rec.Line,
		Function:  rec.Function,
		Exception: rec.Exception,
		Extra:     rec.Extra,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		// A record that cannot marshal still has to surface somewhere.
		data = []byte(fmt.Sprintf(`{"level":%q,"message":%q}`, rec.Level.String(), rec.Message))
	}
	return append(data, '\n')
}
