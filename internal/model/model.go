// Package model defines the declarations cratemap extracts from Rust sources.
package model

import "strings"

// Kind identifies which variant of Item a declaration is.
type Kind string

const (
	KindStruct   Kind = "struct"
	KindEnum     Kind = "enum"
	KindFunction Kind = "fn"
	KindImpl     Kind = "impl"
	KindModule   Kind = "mod"
	KindOther    Kind = "other"
)

// Item is one declaration inside a file or inline module body.
// The concrete type is one of *Struct, *Enum, *Function, *Impl, *Module or *Other.
type Item interface {
	Kind() Kind
	Attributes() []Attribute
	Line() int
}

// Attribute is the body of an attribute, without the surrounding #[ ] or #![ ].
// For `#[cfg(test)]` Text is "cfg(test)".
type Attribute struct {
	Text string
}

// Decl carries what every declaration has in common.
type Decl struct {
	Attrs   []Attribute
	LineNum int
}

// Attributes returns the outer attributes attached to the declaration.
func (d Decl) Attributes() []Attribute { return d.Attrs }

// Line returns the 1-based line of the declaration keyword.
func (d Decl) Line() int { return d.LineNum }

// Field is a struct field or a field of a struct-like enum variant.
// Positional fields are named by their index.
type Field struct {
	Name   string
	Type   string
	Public bool
}

// Struct is a `struct` declaration.
type Struct struct {
	Decl
	Name     string
	Generics string
	Public   bool
	Fields   []Field
}

func (*Struct) Kind() Kind { return KindStruct }

// PublicFields returns the `pub` fields in declaration order.
func (s *Struct) PublicFields() []Field {
	return s.fields(true)
}

// PrivateFields returns the non-`pub` fields in declaration order.
func (s *Struct) PrivateFields() []Field {
	return s.fields(false)
}

func (s *Struct) fields(public bool) []Field {
	var out []Field
	for _, f := range s.Fields {
		if f.Public == public {
			out = append(out, f)
		}
	}
	return out
}

// Variant is one enum variant. Data is empty for unit variants.
type Variant struct {
	Name string
	Data string
}

// Enum is an `enum` declaration.
type Enum struct {
	Decl
	Name     string
	Generics string
	Public   bool
	Variants []Variant
}

func (*Enum) Kind() Kind { return KindEnum }

// Modifier is a function qualifier keyword.
type Modifier string

const (
	Async  Modifier = "async"
	Const  Modifier = "const"
	Unsafe Modifier = "unsafe"
)

// Function is a free function or a function inside an impl block.
type Function struct {
	Decl
	Name       string
	Public     bool
	Visibility string // verbatim visibility, e.g. "pub(crate)"; empty when private
	Modifiers  []Modifier
	Params     string
	ReturnType string
}

func (*Function) Kind() Kind { return KindFunction }

// ModifierText joins the modifiers in async, const, unsafe order.
func (f *Function) ModifierText() string {
	parts := make([]string, 0, len(f.Modifiers))
	for _, m := range f.Modifiers {
		parts = append(parts, string(m))
	}
	return strings.Join(parts, " ")
}

// Impl is an `impl` block, either inherent (Trait == "") or a trait implementation.
type Impl struct {
	Decl
	Target    string
	Trait     string
	Generics  string
	Functions []*Function
}

func (*Impl) Kind() Kind { return KindImpl }

// Module is a `mod` declaration. Out-of-line modules (`mod foo;`) have
// Inline == false and their items live in another file.
type Module struct {
	Decl
	Name   string
	Public bool
	Inline bool
	Items  []Item
	Inner  []Attribute
}

func (*Module) Kind() Kind { return KindModule }

// Other covers declarations that are listed but not drawn in detail:
// traits, consts, statics, type aliases, unions and macro_rules! definitions.
type Other struct {
	Decl
	Keyword string
	Name    string
	Public  bool
	Detail  string
}

func (*Other) Kind() Kind { return KindOther }

// File is a parsed source file.
type File struct {
	Path  string
	Inner []Attribute
	Items []Item
}
