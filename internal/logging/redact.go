package logging

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Patterns for secrets that should never reach a log line, even inside
// message bodies users paste into a thread.
var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(sk-[a-zA-Z0-9]{20,})`),
	regexp.MustCompile(`(?i)(AIza[a-zA-Z0-9_-]{35})`),
	regexp.MustCompile(`(?i)(ghp_[a-zA-Z0-9]{36})`),
	regexp.MustCompile(`(?i)(github_pat_[a-zA-Z0-9]{22}_[a-zA-Z0-9]+)`),
	regexp.MustCompile(`(?i)bearer\s+([a-zA-Z0-9._-]{20,})`),
	regexp.MustCompile(`(?i)(key|token|secret|password|auth)[=:]["']?([a-zA-Z0-9+/=_-]{32,})["']?`),
}

// RedactedValue is the replacement for sensitive values.
const RedactedValue = "[REDACTED]"

// DefaultPreviewLength bounds message previews written to logs.
const DefaultPreviewLength = 48

// Redact replaces sensitive information in a string.
func Redact(s string) string {
	result := s
	for _, pattern := range secretPatterns {
		result = pattern.ReplaceAllString(result, RedactedValue)
	}
	return result
}

// Preview returns a single-line, redacted, rune-safe prefix of a message
// body suitable for log fields.
func Preview(body string, max int) string {
	if max <= 0 {
		max = DefaultPreviewLength
	}
	line := strings.Join(strings.Fields(Redact(body)), " ")
	if utf8.RuneCountInString(line) <= max {
		return line
	}
	runes := []rune(line)
	return string(runes[:max]) + "…"
}
