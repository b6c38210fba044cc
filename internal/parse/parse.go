// Package parse turns Rust source text into model declarations using tree-sitter.
package parse

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"gitlab.com/tozd/go/errors"

	"github.com/phobologic/cratemap/internal/lang"
	"github.com/phobologic/cratemap/internal/model"
)

// SyntaxError reports the first syntax error tree-sitter recovered from.
type SyntaxError struct {
	Line   int
	Column int
	Near   string
}

func (e *SyntaxError) Error() string {
	if e.Near == "" {
		return fmt.Sprintf("syntax error at line %d, column %d", e.Line, e.Column)
	}
	return fmt.Sprintf("syntax error at line %d, column %d near %q", e.Line, e.Column, e.Near)
}

// Parser parses Rust files. It wraps a single tree-sitter parser and must not
// be shared between goroutines.
type Parser struct {
	parser *sitter.Parser
}

// New returns a Parser for the Rust grammar.
func New() *Parser {
	return &Parser{parser: lang.Rust.NewParser()}
}

// Parse returns the declarations of one source file in source order.
// path is recorded on the result and not read.
func (p *Parser) Parse(ctx context.Context, path string, source []byte) (*model.File, error) {
	file := &model.File{Path: path}
	if len(source) == 0 {
		return file, nil
	}

	tree, err := p.parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, errors.Errorf("tree-sitter: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		if bad := declarationError(root, source); bad != nil {
			return nil, syntaxError(bad, source)
		}
	}

	file.Inner, file.Items = declarations(root, source)
	return file, nil
}

// declarations converts the children of a source_file or declaration_list.
// Outer attributes accumulate until the next declaration and attach to it.
func declarations(node *sitter.Node, source []byte) ([]model.Attribute, []model.Item) {
	var (
		inner   []model.Attribute
		pending []model.Attribute
		items   []model.Item
	)

	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if lang.IsComment(child) {
			continue
		}

		switch child.Type() {
		case "attribute_item":
			pending = append(pending, attribute(child, source))
			continue
		case "inner_attribute_item":
			inner = append(inner, attribute(child, source))
			continue
		}

		decl := model.Decl{
			Attrs:   pending,
			LineNum: int(child.StartPoint().Row) + 1,
		}
		pending = nil

		if item := convert(child, decl, source); item != nil {
			items = append(items, item)
		}
	}

	return inner, items
}

// convert maps one declaration node onto its model variant. Nodes cratemap
// does not draw (use, extern crate, macro invocations, extern blocks) yield nil.
func convert(node *sitter.Node, decl model.Decl, source []byte) model.Item {
	switch node.Type() {
	case "struct_item":
		return structItem(node, decl, source)
	case "enum_item":
		return enumItem(node, decl, source)
	case "function_item":
		return functionItem(node, decl, source)
	case "impl_item":
		return implItem(node, decl, source)
	case "mod_item":
		return modItem(node, decl, source)
	case "trait_item":
		return otherItem(node, decl, "trait", "type_parameters", source)
	case "const_item":
		return otherItem(node, decl, "const", "type", source)
	case "static_item":
		return otherItem(node, decl, "static", "type", source)
	case "type_item":
		return otherItem(node, decl, "type", "type", source)
	case "union_item":
		return otherItem(node, decl, "union", "type_parameters", source)
	case "macro_definition":
		return otherItem(node, decl, "macro_rules!", "", source)
	}
	return nil
}

func attribute(node *sitter.Node, source []byte) model.Attribute {
	text := strings.TrimSpace(lang.NodeText(node, source))
	text = strings.TrimPrefix(text, "#")
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "!")
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "[")
	text = strings.TrimSuffix(text, "]")
	return model.Attribute{Text: lang.CollapseWhitespace(text)}
}

func structItem(node *sitter.Node, decl model.Decl, source []byte) *model.Struct {
	s := &model.Struct{
		Decl:     decl,
		Name:     lang.FieldText(node, "name", source),
		Generics: lang.FieldText(node, "type_parameters", source),
		Public:   lang.Visibility(node, source) == "pub",
	}
	if body := node.ChildByFieldName("body"); body != nil {
		s.Fields = fields(body, source)
	}
	return s
}

// fields reads a field_declaration_list ({ a: T }) or an
// ordered_field_declaration_list ((T, U)).
func fields(body *sitter.Node, source []byte) []model.Field {
	var out []model.Field

	switch body.Type() {
	case "field_declaration_list":
		for i := 0; i < int(body.NamedChildCount()); i++ {
			child := body.NamedChild(i)
			if child.Type() != "field_declaration" {
				continue
			}
			out = append(out, model.Field{
				Name:   lang.FieldText(child, "name", source),
				Type:   lang.FieldText(child, "type", source),
				Public: lang.Visibility(child, source) == "pub",
			})
		}

	case "ordered_field_declaration_list":
		var visibility string
		for i := 0; i < int(body.NamedChildCount()); i++ {
			child := body.NamedChild(i)
			if lang.IsComment(child) || child.Type() == "attribute_item" {
				continue
			}
			if child.Type() == "visibility_modifier" {
				visibility = lang.CollapseWhitespace(lang.NodeText(child, source))
				continue
			}
			out = append(out, model.Field{
				Name:   strconv.Itoa(len(out)),
				Type:   lang.CollapseWhitespace(lang.NodeText(child, source)),
				Public: visibility == "pub",
			})
			visibility = ""
		}
	}

	return out
}

func enumItem(node *sitter.Node, decl model.Decl, source []byte) *model.Enum {
	e := &model.Enum{
		Decl:     decl,
		Name:     lang.FieldText(node, "name", source),
		Generics: lang.FieldText(node, "type_parameters", source),
		Public:   lang.Visibility(node, source) == "pub",
	}

	body := node.ChildByFieldName("body")
	if body == nil {
		return e
	}
	for i := 0; i < int(body.NamedChildCount()); i++ {
		child := body.NamedChild(i)
		if child.Type() != "enum_variant" {
			continue
		}
		e.Variants = append(e.Variants, model.Variant{
			Name: lang.FieldText(child, "name", source),
			Data: lang.FieldText(child, "body", source),
		})
	}
	return e
}

func functionItem(node *sitter.Node, decl model.Decl, source []byte) *model.Function {
	visibility := lang.Visibility(node, source)
	return &model.Function{
		Decl:       decl,
		Name:       lang.FieldText(node, "name", source),
		Public:     visibility == "pub",
		Visibility: visibility,
		Modifiers:  modifiers(node),
		Params:     params(node.ChildByFieldName("parameters"), source),
		ReturnType: lang.FieldText(node, "return_type", source),
	}
}

// modifiers returns the async/const/unsafe qualifiers in that fixed order,
// whatever order they were written in.
func modifiers(node *sitter.Node) []model.Modifier {
	var async, konst, unsafe bool
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child.Type() != "function_modifiers" {
			continue
		}
		for j := 0; j < int(child.ChildCount()); j++ {
			switch child.Child(j).Type() {
			case "async":
				async = true
			case "const":
				konst = true
			case "unsafe":
				unsafe = true
			}
		}
	}

	var mods []model.Modifier
	if async {
		mods = append(mods, model.Async)
	}
	if konst {
		mods = append(mods, model.Const)
	}
	if unsafe {
		mods = append(mods, model.Unsafe)
	}
	return mods
}

func params(node *sitter.Node, source []byte) string {
	if node == nil {
		return ""
	}
	var parts []string
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if lang.IsComment(child) || child.Type() == "attribute_item" {
			continue
		}
		parts = append(parts, lang.CollapseWhitespace(lang.NodeText(child, source)))
	}
	return strings.Join(parts, ", ")
}

func implItem(node *sitter.Node, decl model.Decl, source []byte) *model.Impl {
	im := &model.Impl{
		Decl:     decl,
		Target:   lang.FieldText(node, "type", source),
		Trait:    lang.FieldText(node, "trait", source),
		Generics: lang.FieldText(node, "type_parameters", source),
	}

	body := node.ChildByFieldName("body")
	if body == nil {
		return im
	}
	_, members := declarations(body, source)
	for _, member := range members {
		if fn, ok := member.(*model.Function); ok {
			im.Functions = append(im.Functions, fn)
		}
	}
	return im
}

func modItem(node *sitter.Node, decl model.Decl, source []byte) *model.Module {
	m := &model.Module{
		Decl:   decl,
		Name:   lang.FieldText(node, "name", source),
		Public: lang.Visibility(node, source) == "pub",
	}
	if body := node.ChildByFieldName("body"); body != nil {
		m.Inline = true
		m.Inner, m.Items = declarations(body, source)
	}
	return m
}

func otherItem(node *sitter.Node, decl model.Decl, keyword, detailField string, source []byte) *model.Other {
	o := &model.Other{
		Decl:    decl,
		Keyword: keyword,
		Name:    lang.FieldText(node, "name", source),
		Public:  lang.Visibility(node, source) == "pub",
	}
	if detailField != "" {
		o.Detail = lang.FieldText(node, detailField, source)
	}
	return o
}

const nearLimit = 40

var leadingVisibility = regexp.MustCompile(`^pub(\([^)]*\))?\s+`)

// declarationError returns the first ERROR or MISSING node that breaks a
// declaration cratemap reads, or nil. Errors inside function bodies,
// initializers, trait and macro bodies, and inside items that are never
// converted (extern blocks, macro invocations, use declarations) are ignored.
func declarationError(list *sitter.Node, source []byte) *sitter.Node {
	// Braces still open from a tolerated extern block. Siblings up to the
	// closing brace belong to that block.
	open := 0
	for i := 0; i < int(list.ChildCount()); i++ {
		child := list.Child(i)
		if open > 0 {
			open += braceBalance(lang.NodeText(child, source))
			continue
		}
		switch {
		case child.IsMissing():
			return child
		case child.Type() == "ERROR":
			if !externBlockError(child, source) {
				return child
			}
			open = max(braceBalance(lang.NodeText(child, source)), 0)
		case child.HasError():
			if bad := itemError(child, source); bad != nil {
				return bad
			}
		}
	}
	return nil
}

func braceBalance(text string) int {
	return strings.Count(text, "{") - strings.Count(text, "}")
}

func itemError(item *sitter.Node, source []byte) *sitter.Node {
	switch item.Type() {
	case "struct_item", "enum_item", "union_item", "type_item":
		return headerError(item)
	case "function_item", "trait_item":
		return headerError(item, "body")
	case "const_item", "static_item":
		return headerError(item, "value")
	case "macro_definition":
		if name := item.ChildByFieldName("name"); name == nil || name.HasError() || name.IsMissing() {
			return firstError(item)
		}
		return nil
	case "mod_item", "impl_item":
		if bad := headerError(item, "body"); bad != nil {
			return bad
		}
		if body := item.ChildByFieldName("body"); body != nil && body.HasError() {
			return declarationError(body, source)
		}
	}
	return nil
}

// headerError checks every child of item except the named body fields.
func headerError(item *sitter.Node, skip ...string) *sitter.Node {
	var skipped []*sitter.Node
	for _, field := range skip {
		if n := item.ChildByFieldName(field); n != nil {
			skipped = append(skipped, n)
		}
	}

	for i := 0; i < int(item.ChildCount()); i++ {
		child := item.Child(i)
		if !child.HasError() && !child.IsMissing() {
			continue
		}
		if slices.ContainsFunc(skipped, func(n *sitter.Node) bool { return sameNode(n, child) }) {
			continue
		}
		if found := firstError(child); found != nil {
			return found
		}
		return child
	}
	return nil
}

func sameNode(a, b *sitter.Node) bool {
	return a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte() && a.Type() == b.Type()
}

// externBlockError reports whether an ERROR node is the part of an
// `unsafe extern "ABI" { ... }` block the grammar cannot place. Extern blocks
// are never drawn.
func externBlockError(node *sitter.Node, source []byte) bool {
	text := lang.CollapseWhitespace(lang.NodeText(node, source))
	text = leadingVisibility.ReplaceAllString(text, "")
	if text == "unsafe" {
		next := node.NextNamedSibling()
		return next != nil && next.Type() == "foreign_mod_item"
	}
	return text == "unsafe extern" || strings.HasPrefix(text, "unsafe extern ")
}

// truncate shortens s to at most n runes.
func truncate(s string, n int) string {
	if runes := []rune(s); len(runes) > n {
		return string(runes[:n])
	}
	return s
}

func syntaxError(node *sitter.Node, source []byte) *SyntaxError {
	if found := firstError(node); found != nil {
		node = found
	}
	return &SyntaxError{
		Line:   int(node.StartPoint().Row) + 1,
		Column: int(node.StartPoint().Column) + 1,
		Near:   truncate(lang.CollapseWhitespace(lang.NodeText(node, source)), nearLimit),
	}
}

// firstError finds the first ERROR or MISSING node in document order.
func firstError(node *sitter.Node) *sitter.Node {
	if node.Type() == "ERROR" || node.IsMissing() {
		return node
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if !child.HasError() && !child.IsMissing() {
			continue
		}
		if found := firstError(child); found != nil {
			return found
		}
	}
	return nil
}
