package transform

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// SnakeCase renames mapping keys between camelCase (remote) and snake_case
// (local). Nested mappings and lists of mappings keep their structure.
type SnakeCase struct{}

// Name implements Step
func (SnakeCase) Name() string { return "snake_case" }

// Apply implements Step
func (s SnakeCase) Apply(data any, dir Direction) (any, error) {
	rename := ToSnake
	if dir == Down {
		rename = ToLowerCamel
	}
	return convertKeys(data, rename), nil
}

func convertKeys(value any, rename func(string) string) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, inner := range v {
			out[rename(k)] = convertKeys(inner, rename)
		}
		return out
	case []map[string]any:
		out := make([]map[string]any, len(v))
		for i, inner := range v {
			out[i] = convertKeys(inner, rename).(map[string]any)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, inner := range v {
			out[i] = convertKeys(inner, rename)
		}
		return out
	default:
		return value
	}
}

// ToSnake converts camelCase or PascalCase to snake_case.
// Acronyms stay together: "avatarURL" becomes "avatar_url".
func ToSnake(s string) string {
	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(s) + 4)

	for i, r := range runes {
		if r == '-' || r == ' ' {
			b.WriteRune('_')
			continue
		}
		if i > 0 && unicode.IsUpper(r) {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				b.WriteRune('_')
			}
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// ToLowerCamel converts snake_case to lowerCamelCase
func ToLowerCamel(s string) string {
	parts := strings.Split(s, "_")
	var b strings.Builder
	b.Grow(len(s))

	title := cases.Title(language.Und)
	first := true
	for _, part := range parts {
		if part == "" {
			continue
		}
		if first {
			b.WriteString(strings.ToLower(part))
			first = false
			continue
		}
		b.WriteString(title.String(part))
	}
	if first {
		return s
	}
	return b.String()
}
