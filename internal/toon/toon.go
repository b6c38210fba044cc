// Package toon renders a module tree as TOON (Token-Oriented Object Notation):
// a header naming the diagram followed by one table with a row per item.
package toon

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"gitlab.com/tozd/go/errors"

	"github.com/phobologic/cratemap/internal/model"
)

// RootModule is the module column value for items at the top of the entry file.
const RootModule = "crate"

var (
	needsQuoting = regexp.MustCompile(`[,:"\\{}\[\]]`)
	looksNumeric = regexp.MustCompile(`^-?(?:0|[1-9]\d*)(?:\.\d+)?$`)
	keywords     = map[string]struct{}{
		"true":  {},
		"false": {},
		"null":  {},
	}
	columns = []string{"module", "kind", "name", "signature"}
)

// Renderer collects one row per event and encodes them in Finish.
type Renderer struct {
	name string
	path []string
	rows [][]string
}

// New returns a Renderer for a diagram called name.
func New(name string) *Renderer {
	return &Renderer{name: name}
}

func (r *Renderer) module() string {
	if len(r.path) == 0 {
		return RootModule
	}
	return RootModule + "::" + strings.Join(r.path, "::")
}

func (r *Renderer) add(kind, name, signature string) {
	r.rows = append(r.rows, []string{r.module(), kind, name, signature})
}

func (r *Renderer) BeginModule(name string) error {
	r.add(string(model.KindModule), name, "")
	r.path = append(r.path, name)
	return nil
}

func (r *Renderer) EndModule(name string) error {
	if len(r.path) == 0 || r.path[len(r.path)-1] != name {
		return errors.Errorf("end of module %q does not match the open module", name)
	}
	r.path = r.path[:len(r.path)-1]
	return nil
}

func (r *Renderer) EmitStruct(s *model.Struct) error {
	fields := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		fields[i] = f.Name + ": " + f.Type
		if f.Public {
			fields[i] = "pub " + fields[i]
		}
	}
	r.add(string(model.KindStruct), s.Name+s.Generics, strings.Join(fields, "; "))
	return nil
}

func (r *Renderer) EmitEnum(e *model.Enum) error {
	variants := make([]string, len(e.Variants))
	for i, v := range e.Variants {
		variants[i] = v.Name + v.Data
	}
	r.add(string(model.KindEnum), e.Name+e.Generics, strings.Join(variants, " | "))
	return nil
}

func (r *Renderer) EmitFunction(f *model.Function) error {
	r.add(string(model.KindFunction), f.Name, signature(f))
	return nil
}

// EmitImpl adds a row for the block and one per member, named Type::member.
func (r *Renderer) EmitImpl(i *model.Impl) error {
	header := "impl" + i.Generics + " "
	if i.Trait != "" {
		header += i.Trait + " for "
	}
	r.add(string(model.KindImpl), i.Target, header+i.Target)
	for _, fn := range i.Functions {
		r.add(string(model.KindFunction), i.Target+"::"+fn.Name, signature(fn))
	}
	return nil
}

func (r *Renderer) EmitOther(o *model.Other) error {
	r.add(o.Keyword, o.Name, o.Detail)
	return nil
}

// Finish writes the encoded document to w.
func (r *Renderer) Finish(w io.Writer) error {
	if len(r.path) != 0 {
		return errors.Errorf("%d module(s) left open", len(r.path))
	}
	_, err := fmt.Fprintln(w, Encode(r.name, r.rows))
	return err
}

// Encode formats a named item table.
func Encode(name string, rows [][]string) string {
	parts := []string{
		fmt.Sprintf("name: %s", encodeValue(name)),
		formatTabular("items", columns, rows),
	}
	return strings.Join(parts, "\n")
}

func signature(f *model.Function) string {
	var b strings.Builder
	if f.Public {
		b.WriteString("pub ")
	}
	if mods := f.ModifierText(); mods != "" {
		b.WriteString(mods)
		b.WriteByte(' ')
	}
	fmt.Fprintf(&b, "fn %s(%s)", f.Name, f.Params)
	if f.ReturnType != "" {
		b.WriteString(" -> ")
		b.WriteString(f.ReturnType)
	}
	return b.String()
}

func formatTabular(name string, columns []string, rows [][]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s[%d]{%s}:", name, len(rows), strings.Join(columns, ","))
	for _, row := range rows {
		encoded := make([]string, len(row))
		for i, cell := range row {
			encoded[i] = encodeValue(cell)
		}
		fmt.Fprintf(&b, "\n  %s", strings.Join(encoded, ","))
	}
	return b.String()
}

func encodeValue(value string) string {
	if value == "" {
		return `""`
	}

	if value != strings.TrimSpace(value) {
		return quote(value)
	}

	if strings.ContainsAny(value, "\n\r\t") {
		return quote(value)
	}

	if _, ok := keywords[strings.ToLower(value)]; ok {
		return quote(value)
	}

	if looksNumeric.MatchString(value) {
		return value
	}

	if needsQuoting.MatchString(value) {
		return quote(value)
	}

	if strings.HasPrefix(value, "-") {
		return quote(value)
	}

	return value
}

func quote(value string) string {
	escaped := strings.ReplaceAll(value, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	escaped = strings.ReplaceAll(escaped, "\n", `\n`)
	escaped = strings.ReplaceAll(escaped, "\r", `\r`)
	escaped = strings.ReplaceAll(escaped, "\t", `\t`)
	return `"` + escaped + `"`
}
