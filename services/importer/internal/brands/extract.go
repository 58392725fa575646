package brands

import "strings"

// nestedTextKeys are the sub-keys searched when a brand field is an object.
var nestedTextKeys = []string{"value", "text", "short", "label"}

// fieldRule pairs a Brand field name with the rule that turns its value into text.
type fieldRule struct {
	Field   string
	Extract func(any) string
}

func aliases(fields ...string) []fieldRule {
	rules := make([]fieldRule, 0, len(fields))
	for _, f := range fields {
		rules = append(rules, fieldRule{Field: f, Extract: ExtractText})
	}
	return rules
}

// Ordered candidates for the display name and the short name; first non-empty wins.
var (
	nameRules      = aliases("name", "Name", "label", "display_name", "brand")
	shortNameRules = aliases("short_name", "shortName", "shortname", "short", "abbr", "code", "alias")
)

// ExtractText returns the trimmed text of v: either v itself when it is a
// string, or the first non-empty string found under a conventional sub-key.
func ExtractText(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case map[string]any:
		for _, k := range nestedTextKeys {
			if s, ok := t[k].(string); ok {
				if s = strings.TrimSpace(s); s != "" {
					return s
				}
			}
		}
	}
	return ""
}

func firstText(brand map[string]any, rules []fieldRule) *string {
	for _, r := range rules {
		v, ok := brand[r.Field]
		if !ok {
			continue
		}
		if s := r.Extract(v); s != "" {
			return &s
		}
	}
	return nil
}

// ExtractBrand returns the display and short names of a Brand object.
// Absent or blank values are nil.
func ExtractBrand(brand map[string]any) (name, shortName *string) {
	if brand == nil {
		return nil, nil
	}
	return firstText(brand, nameRules), firstText(brand, shortNameRules)
}
