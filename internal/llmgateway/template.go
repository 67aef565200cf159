package llmgateway

import (
	"regexp"
)

var placeholderPattern = regexp.MustCompile(`\{(\w+)\}`)

// Render substitutes every {key} placeholder in template with vars[key].
// A placeholder with no matching key is a *TemplateError.
func Render(template string, vars map[string]string) (string, error) {
	var missing string
	result := placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		key := placeholderPattern.FindStringSubmatch(match)[1]
		if v, ok := vars[key]; ok {
			return v
		}
		missing = key
		return match
	})
	if missing != "" {
		return "", &TemplateError{Template: template, Missing: missing}
	}
	return result, nil
}
