package service

import (
	"regexp"
	"strings"
)

var placeholder = regexp.MustCompile(`\{\{\s*([^{}]*?)\s*\}\}`)

// Render substitutes {{ name }} placeholders from vars. Names without a
// value stay in the output and are returned once each, in order of first
// appearance.
func Render(content string, vars map[string]string) (string, []string) {
	var missing []string
	seen := map[string]bool{}
	out := placeholder.ReplaceAllStringFunc(content, func(match string) string {
		name := strings.TrimSpace(placeholder.FindStringSubmatch(match)[1])
		if value, ok := vars[name]; ok {
			return value
		}
		if !seen[name] {
			seen[name] = true
			missing = append(missing, name)
		}
		return match
	})
	return out, missing
}

// Placeholders lists the distinct variable names content references.
func Placeholders(content string) []string {
	var names []string
	seen := map[string]bool{}
	for _, m := range placeholder.FindAllStringSubmatch(content, -1) {
		name := strings.TrimSpace(m[1])
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}
