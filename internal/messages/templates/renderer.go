package templates

import (
	"fmt"
	"regexp"
)

// placeholderPattern matches {name}-style variables in template bodies.
var placeholderPattern = regexp.MustCompile(`\{([a-z_]+)\}`)

// Fields are the lead attributes available to placeholder resolution.
type Fields map[string]string

// Render substitutes {placeholder} variables with strict missing-key
// semantics: a placeholder with no matching field fails instead of leaking
// the raw braces into an outbound message.
func Render(text string, fields Fields) (string, error) {
	var missing string
	out := placeholderPattern.ReplaceAllStringFunc(text, func(match string) string {
		key := placeholderPattern.FindStringSubmatch(match)[1]
		value, ok := fields[key]
		if !ok {
			if missing == "" {
				missing = key
			}
			return match
		}
		return value
	})
	if missing != "" {
		return "", fmt.Errorf("templates: unresolved placeholder {%s}", missing)
	}
	return out, nil
}
