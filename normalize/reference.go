package normalize

import (
	"regexp"
	"strings"
)

var nonAlphanumeric = regexp.MustCompile(`[^A-Z0-9]`)

// Reference returns the canonical form of a receipt or bank reference:
// uppercase with everything outside [A-Z0-9] removed. Compound references
// such as "545109 / 1740192" keep only the first segment; the rest is
// returned as remainder so the caller can log it.
func Reference(raw string) (canonical string, remainder string) {
	value := strings.ToUpper(strings.TrimSpace(raw))
	if idx := strings.Index(value, "/"); idx >= 0 {
		remainder = strings.TrimSpace(value[idx+1:])
		value = value[:idx]
	}
	return nonAlphanumeric.ReplaceAllString(value, ""), remainder
}
