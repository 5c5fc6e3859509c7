package validators

import (
	"regexp"
	"strings"
)

var (
	scriptBlockRe = regexp.MustCompile(`(?is)<script.*?>.*?</script>`)
	htmlTagRe     = regexp.MustCompile(`<[^>]*>`)
)

func SanitizeString(input string, maxLen int) string {
	cleaned := scriptBlockRe.ReplaceAllString(input, "")
	cleaned = htmlTagRe.ReplaceAllString(cleaned, "")
	trimmed := strings.TrimSpace(cleaned)
	if maxLen > 0 && len(trimmed) > maxLen {
		return trimmed[:maxLen]
	}
	return trimmed
}

// SanitizeFreeText cleans string values and passes every other type through
// unchanged. Callers feeding mixed JSON values rely on the pass-through.
func SanitizeFreeText(value any, maxLen int) any {
	s, ok := value.(string)
	if !ok {
		return value
	}
	return SanitizeString(s, maxLen)
}
