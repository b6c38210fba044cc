// Package classify decides the kind of a declaration and whether it only
// exists for tests.
package classify

import (
	"strings"

	"github.com/phobologic/cratemap/internal/model"
)

// TestModuleName is the conventional name of a unit-test module.
const TestModuleName = "tests"

// Classify returns the item's kind and whether it is test-only. inTest is the
// test state of the enclosing scope; once set it applies to every nested item.
func Classify(item model.Item, inTest bool) (model.Kind, bool) {
	kind := item.Kind()
	if inTest {
		return kind, true
	}
	if HasTestAttribute(item.Attributes()) {
		return kind, true
	}
	if m, ok := item.(*model.Module); ok {
		if m.Name == TestModuleName || HasTestAttribute(m.Inner) {
			return kind, true
		}
	}
	return kind, false
}

// HasTestAttribute reports whether any attribute marks its owner as test-only.
func HasTestAttribute(attrs []model.Attribute) bool {
	for _, a := range attrs {
		if IsTestAttribute(a) {
			return true
		}
	}
	return false
}

// IsTestAttribute reports whether a is `test` or a `cfg(...)` whose top-level
// predicates include the bare `test`. Attributes whose text is neither a plain
// path nor a path with a balanced argument list never match.
func IsTestAttribute(a model.Attribute) bool {
	path, args, ok := splitAttribute(a.Text)
	if !ok {
		return false
	}
	switch path {
	case "test":
		return args == ""
	case "cfg":
		if args == "" {
			return false
		}
		for _, pred := range topLevel(args) {
			if pred == "test" {
				return true
			}
		}
	}
	return false
}

// splitAttribute splits "cfg(a, b)" into ("cfg", "a, b"). A bare path yields
// empty args. Anything else (key = value forms, unbalanced delimiters,
// trailing text) reports ok == false.
func splitAttribute(text string) (path, args string, ok bool) {
	text = strings.TrimSpace(text)
	open := strings.IndexByte(text, '(')
	if open < 0 {
		if !isPath(text) {
			return "", "", false
		}
		return text, "", true
	}

	path = strings.TrimSpace(text[:open])
	if !isPath(path) || !strings.HasSuffix(text, ")") {
		return "", "", false
	}
	inner := text[open+1 : len(text)-1]
	if !balanced(inner) {
		return "", "", false
	}
	return path, strings.TrimSpace(inner), true
}

func isPath(s string) bool {
	if s == "" {
		return false
	}
	for _, segment := range strings.Split(s, "::") {
		if segment == "" {
			return false
		}
		for i, r := range segment {
			switch {
			case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			case r >= '0' && r <= '9' && i > 0:
			default:
				return false
			}
		}
	}
	return true
}

// balanced reports whether every bracket in s is closed in order and no
// string literal is left open.
func balanced(s string) bool {
	var stack []rune
	inString := false
	escaped := false
	for _, r := range s {
		if inString {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
			}
			continue
		}
		switch r {
		case '"':
			inString = true
		case '(', '[', '{':
			stack = append(stack, r)
		case ')', ']', '}':
			if len(stack) == 0 || stack[len(stack)-1] != opening(r) {
				return false
			}
			stack = stack[:len(stack)-1]
		}
	}
	return len(stack) == 0 && !inString
}

func opening(r rune) rune {
	switch r {
	case ')':
		return '('
	case ']':
		return '['
	}
	return '{'
}

// topLevel splits a balanced argument list on commas that are not nested
// inside brackets or string literals.
func topLevel(args string) []string {
	var (
		parts    []string
		depth    int
		start    int
		inString bool
		escaped  bool
	)
	for i, r := range args {
		if inString {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
			}
			continue
		}
		switch r {
		case '"':
			inString = true
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, strings.TrimSpace(args[start:i]))
				start = i + 1
			}
		}
	}
	parts = append(parts, strings.TrimSpace(args[start:]))
	return parts
}
