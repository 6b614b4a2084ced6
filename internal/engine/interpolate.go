package engine

import "regexp"

var placeholderRe = regexp.MustCompile(`\{\{\s*([\w.-]+)\s*\}\}`)

// Interpolate replaces every {{name}} occurrence with vars["name"].
// Placeholders with no matching variable are left verbatim, not blanked, so a
// misconfigured template stays visible instead of silently eating text.
func Interpolate(template string, vars map[string]string) string {
	if template == "" {
		return template
	}
	return placeholderRe.ReplaceAllStringFunc(template, func(match string) string {
		name := placeholderRe.FindStringSubmatch(match)[1]
		if val, ok := vars[name]; ok {
			return val
		}
		return match
	})
}
