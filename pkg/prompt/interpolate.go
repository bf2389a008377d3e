package prompt

import "strings"

// Interpolate replaces only "{{key}}" placeholders whose key is literally
// present in vars, leaving every other brace sequence untouched so JSON
// examples embedded in prompt text survive. Unlike text/template or
// fmt.Sprintf, an unmatched
// placeholder (e.g. "{{undefined_key}}") is left as-is rather than erroring
// or being blanked out.
func Interpolate(template string, vars map[string]string) string {
	if len(vars) == 0 {
		return template
	}
	var b strings.Builder
	b.Grow(len(template))

	for i := 0; i < len(template); {
		if template[i] == '{' && i+1 < len(template) && template[i+1] == '{' {
			if end := strings.Index(template[i+2:], "}}"); end >= 0 {
				key := template[i+2 : i+2+end]
				if val, ok := vars[key]; ok {
					b.WriteString(val)
					i = i + 2 + end + 2
					continue
				}
			}
		}
		b.WriteByte(template[i])
		i++
	}
	return b.String()
}
