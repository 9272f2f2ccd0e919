package models

import (
	"fmt"
	"strings"
)

// headerUnescaper rewrites escaped delimiters back to their literal form
// once splitting is done.
var headerUnescaper = strings.NewReplacer(`\,`, ",", `\:`, ":")

// ParseHeaderString parses a compound header definition of the form
// "key:value,key:value" into a map. A comma or colon acts as a delimiter
// unless it is immediately preceded by a backslash; the backslash escapes
// the delimiter and is consumed. Each pair splits on its first unescaped
// colon, so values may contain further colons. Keys and values are
// whitespace-trimmed. An empty or blank input yields an empty map; when the
// same key appears twice the last occurrence wins.
func ParseHeaderString(raw string) (map[string]string, error) {
	headers := make(map[string]string)
	if strings.TrimSpace(raw) == "" {
		return headers, nil
	}
	parts := splitUnescaped(raw, ',')
	// Trailing commas produce empty segments; discard them so "a:b," parses.
	// Interior empty segments are still malformed pairs.
	for len(parts) > 0 && parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	for _, pair := range parts {
		key, value, found := cutUnescaped(pair, ':')
		if !found {
			return nil, fmt.Errorf("invalid header definition %q: pair %q has no colon separating key from value", raw, strings.TrimSpace(pair))
		}
		headers[strings.TrimSpace(headerUnescaper.Replace(key))] = strings.TrimSpace(headerUnescaper.Replace(value))
	}
	return headers, nil
}

// splitUnescaped splits s on every unescaped occurrence of sep.
func splitUnescaped(s string, sep byte) []string {
	var parts []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == sep && !escapedAt(s, i) {
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	return append(parts, s[start:])
}

// cutUnescaped splits s around the first unescaped occurrence of sep.
func cutUnescaped(s string, sep byte) (before, after string, found bool) {
	for i := 0; i < len(s); i++ {
		if s[i] == sep && !escapedAt(s, i) {
			return s[:i], s[i+1:], true
		}
	}
	return s, "", false
}

func escapedAt(s string, i int) bool {
	return i > 0 && s[i-1] == '\\'
}
