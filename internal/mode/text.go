package mode

import (
	"regexp"
	"strings"
)

var propPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_.]+)\s*\}\}`)

// defaultTextExpr is used when text feedback is enabled without an
// explicit expression.
const defaultTextExpr = "{{target.text_value}}"

func (m *Mode) textExpr() string {
	if m.set.TextualFeedbackExpr != "" {
		return m.set.TextualFeedbackExpr
	}
	if m.UsesTextFeedback() {
		return defaultTextExpr
	}
	return ""
}

// FeedbackProps returns the prop keys referenced by the textual feedback
// expression, e.g. "target.text_value". A non-empty result means the
// displayed feedback can change even when the numeric target value does
// not, so polling must always re-render.
func (m *Mode) FeedbackProps() []string {
	expr := m.textExpr()
	if expr == "" {
		return nil
	}
	matches := propPattern.FindAllStringSubmatch(expr, -1)
	keys := make([]string, 0, len(matches))
	seen := make(map[string]struct{}, len(matches))
	for _, match := range matches {
		key := match[1]
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	return keys
}

// RenderText substitutes prop values into the textual feedback expression.
// Unknown props render as empty strings.
func (m *Mode) RenderText(lookup func(key string) (string, bool)) string {
	expr := m.textExpr()
	if expr == "" {
		return ""
	}
	return propPattern.ReplaceAllStringFunc(expr, func(match string) string {
		key := strings.TrimSpace(strings.Trim(match, "{}"))
		if v, ok := lookup(key); ok {
			return v
		}
		return ""
	})
}
