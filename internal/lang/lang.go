// Package lang wraps the tree-sitter Rust grammar and small helpers for
// reading text out of syntax nodes.
package lang

import (
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/rust"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// Language holds tree-sitter configuration for a supported language.
type Language struct {
	Name       string
	Extensions []string
	lang       *sitter.Language
}

// Rust is the only language cratemap understands.
var Rust = &Language{
	Name:       "rust",
	Extensions: []string{".rs"},
	lang:       rust.GetLanguage(),
}

// GetLanguage returns the tree-sitter Language pointer.
func (l *Language) GetLanguage() *sitter.Language {
	return l.lang
}

// NewParser creates a fresh tree-sitter parser for this language.
// Parsers are not safe for concurrent use.
func (l *Language) NewParser() *sitter.Parser {
	p := sitter.NewParser()
	p.SetLanguage(l.lang)
	return p
}

// HasExtension reports whether path ends in one of the language's extensions.
func (l *Language) HasExtension(path string) bool {
	for _, ext := range l.Extensions {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}

// NodeText returns the source text of a tree-sitter node.
func NodeText(node *sitter.Node, source []byte) string {
	if node == nil {
		return ""
	}
	return string(source[node.StartByte():node.EndByte()])
}

// CollapseWhitespace replaces runs of whitespace with a single space and trims.
func CollapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// FieldText returns the collapsed text of the named field child, or "".
func FieldText(node *sitter.Node, field string, source []byte) string {
	child := node.ChildByFieldName(field)
	if child == nil {
		return ""
	}
	return CollapseWhitespace(NodeText(child, source))
}

// IsComment reports whether the node is a line or block comment. Comments are
// "extra" nodes and may appear between any two children.
func IsComment(node *sitter.Node) bool {
	switch node.Type() {
	case "line_comment", "block_comment":
		return true
	}
	return false
}

// Visibility returns the verbatim visibility modifier of a declaration node,
// e.g. "pub" or "pub(crate)", or "" when the item is private.
func Visibility(node *sitter.Node, source []byte) string {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child.Type() == "visibility_modifier" {
			return CollapseWhitespace(NodeText(child, source))
		}
	}
	return ""
}
