package config

import "logpipe/internal/record"

// Mode presets bundle the level/color/json triple for common environments.
type preset struct {
	level    record.Level
	color    bool
	jsonMode bool
}

var modes = map[string]preset{
	"dev":    {level: record.Debug, color: true, jsonMode: false},
	"prod":   {level: record.Info, color: false, jsonMode: true},
	"simple": {level: record.Info, color: false, jsonMode: false},
}

// ApplyMode overlays a named preset onto the settings. Unknown modes are
// ignored so configuration stays best-effort, matching the env fallbacks.
func ApplyMode(s *Settings, mode string) {
	p, ok := modes[mode]
	if !ok {
		return
	}
	s.Mode = mode
	s.Level = p.level
	s.Color = p.color
	s.JSONMode = p.jsonMode
	s.LevelName = s.Level.String()
}

// Modes lists the available preset names.
func Modes() []string {
	return []string{"dev", "prod", "simple"}
}
