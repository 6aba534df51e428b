package agent

import "strings"

// KeywordRule maps a lowercase substring of a task description to a task
// kind.
type KeywordRule struct {
	Pattern string
	Kind    string
}

// KeywordTable is a fixed, priority-ordered rule list used to infer a task
// kind from free text when a task arrives without an explicit Kind field.
// First match wins; table order is the only tie-break for overlapping
// patterns. Inference is a legacy-compatibility fallback and never silently
// defaults: no match means no kind.
type KeywordTable []KeywordRule

// Infer scans the description against the table in order and returns the
// first matching kind. The boolean is false when nothing matched or the
// description is empty.
func (t KeywordTable) Infer(description string) (string, bool) {
	if description == "" {
		return "", false
	}
	desc := strings.ToLower(description)
	for _, rule := range t {
		if strings.Contains(desc, rule.Pattern) {
			return rule.Kind, true
		}
	}
	return "", false
}
