// Package mask scrubs sensitive key=value tokens out of log messages before
// they reach any sink.
package mask

import "regexp"

const placeholder = "****"

var sensitive = []*regexp.Regexp{
	regexp.MustCompile(`password=\S+`),
	regexp.MustCompile(`token=\S+`),
	regexp.MustCompile(`secret=\S+`),
	regexp.MustCompile(`api_key=\S+`),
	regexp.MustCompile(`access_key=\S+`),
	regexp.MustCompile(`access_token=\S+`),
	regexp.MustCompile(`(?i)\b\w*api_key\w*\b`),
}

// Scrub replaces every sensitive token in msg with "****". It is a pure
// function; callers decide whether masking is enabled.
func Scrub(msg string) string {
	for _, pattern := range sensitive {
		msg = pattern.ReplaceAllString(msg, placeholder)
	}
	return msg
}
