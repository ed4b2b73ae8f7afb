package cellref

import (
	"regexp"
	"strings"
)

// FormulaNote is attached to every successful formula check.
const FormulaNote = "Basic syntax validation only: leading '=' and balanced parentheses. Function names, arity and argument types are not checked."

var functionPattern = regexp.MustCompile(`[A-Z][A-Z0-9.]*\(`)

// FormulaCheck is the result of CheckFormula.
type FormulaCheck struct {
	Valid     bool     `json:"valid"`
	Formula   string   `json:"formula"`
	Functions []string `json:"functions"`
	Error     string   `json:"error,omitempty"`
	Note      string   `json:"note,omitempty"`
}

// CheckFormula performs a shallow syntax check. It requires a leading '=' and
// balanced parentheses, and lists the uppercase identifiers directly followed
// by '(' in order of first appearance. Nothing else is validated.
func CheckFormula(text string) FormulaCheck {
	out := FormulaCheck{Formula: text, Functions: []string{}}
	if !strings.HasPrefix(text, "=") {
		out.Error = "formula must start with ="
		return out
	}
	depth := 0
	for _, ch := range text {
		switch ch {
		case '(':
			depth++
		case ')':
			depth--
		}
		if depth < 0 {
			out.Error = "unbalanced parentheses"
			return out
		}
	}
	if depth != 0 {
		out.Error = "unbalanced parentheses"
		return out
	}

	seen := map[string]bool{}
	for _, m := range functionPattern.FindAllString(text, -1) {
		name := strings.TrimSuffix(m, "(")
		if !seen[name] {
			seen[name] = true
			out.Functions = append(out.Functions, name)
		}
	}
	out.Valid = true
	out.Note = FormulaNote
	return out
}
