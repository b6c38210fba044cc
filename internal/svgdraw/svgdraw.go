// Package svgdraw renders a module tree as an SVG drawing. Declarations are
// laid out top to bottom as monospace text lines; every module is framed by a
// rounded rectangle sized once the module closes.
package svgdraw

import (
	"io"
	"strings"

	svg "github.com/ajstarks/svgo"
	"gitlab.com/tozd/go/errors"

	"github.com/phobologic/cratemap/internal/model"
)

const (
	margin      = 20
	lineHeight  = 20
	indent      = 20
	moduleWidth = 1000
	moduleGap   = 60
	labelOffset = 5

	pageStyle   = "font-family:monospace;font-size:12px"
	moduleStyle = "fill:rgba(250,255,204,0.5);stroke:black"
)

type text struct {
	x, y  int
	value string
}

type rect struct {
	x, y, w, h int
}

type openModule struct {
	name string
	x, y int
}

// Renderer lays the diagram out while events arrive and writes it in Finish.
type Renderer struct {
	x, y  int
	texts []text
	rects []rect
	open  []openModule
}

// New returns a Renderer with the cursor at the top-left margin.
func New() *Renderer {
	return &Renderer{x: margin, y: margin}
}

func (r *Renderer) line(value string) {
	r.texts = append(r.texts, text{x: r.x, y: r.y, value: value})
	r.y += lineHeight
}

func (r *Renderer) BeginModule(name string) error {
	r.open = append(r.open, openModule{name: name, x: r.x, y: r.y})
	r.texts = append(r.texts, text{x: r.x + 10, y: r.y - labelOffset, value: "mod " + name})
	r.y += lineHeight
	r.x += indent
	return nil
}

func (r *Renderer) EndModule(name string) error {
	if len(r.open) == 0 {
		return errors.Errorf("end of module %q without a matching begin", name)
	}
	m := r.open[len(r.open)-1]
	r.open = r.open[:len(r.open)-1]

	r.rects = append(r.rects, rect{x: m.x, y: m.y, w: moduleWidth, h: r.y - m.y + lineHeight})
	r.x -= indent
	r.y += moduleGap
	return nil
}

func (r *Renderer) EmitStruct(s *model.Struct) error {
	r.line("struct " + s.Name + s.Generics + " {...}")
	return nil
}

func (r *Renderer) EmitEnum(e *model.Enum) error {
	r.line("enum " + e.Name + e.Generics + " {...}")
	return nil
}

func (r *Renderer) EmitFunction(f *model.Function) error {
	r.line(signature(f))
	return nil
}

func (r *Renderer) EmitImpl(i *model.Impl) error {
	header := "impl" + i.Generics + " "
	if i.Trait != "" {
		header += i.Trait + " for "
	}
	r.line(header + i.Target + " {")

	r.x += indent
	for _, fn := range i.Functions {
		r.line(signature(fn))
	}
	r.x -= indent

	r.line("}")
	return nil
}

func (r *Renderer) EmitOther(o *model.Other) error {
	switch o.Keyword {
	case "trait", "union":
		r.line(o.Keyword + " " + o.Name + " { ... }")
	case "macro_rules!":
		r.line(o.Keyword + " " + o.Name)
	default:
		if o.Detail == "" {
			r.line(o.Keyword + " " + o.Name)
		} else {
			r.line(o.Keyword + " " + o.Name + ": " + o.Detail)
		}
	}
	return nil
}

// Finish writes the drawing to w. Module frames are drawn underneath the text.
func (r *Renderer) Finish(w io.Writer) error {
	if len(r.open) != 0 {
		return errors.Errorf("%d module(s) left open", len(r.open))
	}

	canvas := svg.New(w)
	canvas.Start(r.x+moduleWidth+2*margin, r.y+2*margin, `style="background-color: white"`)
	canvas.Gstyle(pageStyle)
	for _, rc := range r.rects {
		canvas.Roundrect(rc.x, rc.y, rc.w, rc.h, 5, 5, moduleStyle)
	}
	for _, t := range r.texts {
		canvas.Text(t.x, t.y, t.value)
	}
	canvas.Gend()
	canvas.End()
	return nil
}

func signature(f *model.Function) string {
	var b strings.Builder
	if mods := f.ModifierText(); mods != "" {
		b.WriteString(mods)
		b.WriteByte(' ')
	}
	b.WriteString("fn ")
	b.WriteString(f.Name)
	b.WriteString("(...)")
	if f.ReturnType != "" {
		b.WriteString(" -> ")
		b.WriteString(f.ReturnType)
	}
	return b.String()
}
