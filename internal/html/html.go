// Package html renders a module tree as a single self-contained HTML page.
package html

import (
	"bytes"
	_ "embed"
	"html/template"
	"io"
	"strconv"

	"gitlab.com/tozd/go/errors"

	"github.com/phobologic/cratemap/internal/model"
)

//go:embed style.css
var stylesheet string

const pageTemplate = `{{define "page"}}<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>{{.Title}}</title>
    <style>{{.Style}}</style>
</head>
<body>
    <h1>{{.Title}}</h1>
{{.Contents}}
</body>
</html>
{{end}}

{{define "module"}}
    <div class="module">
        <input type="checkbox" id="{{.ID}}" class="module-toggle" checked>
        <label for="{{.ID}}" class="module-header">
            <span class="toggle-icon">&#9660;</span>
            <span class="module-name">{{.Name}}</span>
        </label>
        <div class="module-contents">
{{.Contents}}
        </div>
    </div>
{{end}}

{{define "struct"}}
    <div class="struct">
        <div class="struct-name">{{.Name}}</div>
        <div class="struct-public-fields">
            {{- range .Public}}
            <div class="struct-field">
                <div class="struct-field-name">{{.Name}}</div>
                <div class="struct-field-type">{{.Type}}</div>
            </div>
            {{- end}}
        </div>
        <div class="struct-private-fields">
            {{- range .Private}}
            <div class="struct-field">
                <div class="struct-field-name">{{.Name}}</div>
                <div class="struct-field-type">{{.Type}}</div>
            </div>
            {{- end}}
        </div>
    </div>
{{end}}

{{define "enum"}}
    <div class="enum">
        <div class="enum-name">{{.Name}}</div>
        <div class="enum-variants">
            {{- range .Variants}}
            <div class="enum-variant">
                <div class="enum-variant-name">{{.Name}}</div>
                {{- if .Data}}
                <div class="enum-variant-data">{{.Data}}</div>
                {{- end}}
            </div>
            {{- end}}
        </div>
    </div>
{{end}}

{{define "function"}}
    <div class="function">
        <div class="function-signature">
            {{- if .Visibility}}<span class="function-visibility">{{.Visibility}}</span> {{end}}
            {{- if .Modifiers}}<span class="function-modifiers">{{.Modifiers}}</span> {{end -}}
            <span class="function-name">{{.Name}}</span><span class="function-params">({{.Params}})</span>
            {{- if .ReturnType}}<span class="function-return"> -&gt; {{.ReturnType}}</span>{{end}}
        </div>
    </div>
{{end}}

{{define "impl"}}
    <div class="impl-block">
        <div class="impl-header">
            <span class="impl-type">impl</span>
            {{- if .Generics}}<span class="impl-generics">{{.Generics}}</span>{{end}}
            {{- if .Trait}} <span class="impl-trait">{{.Trait}}</span> for{{end}}
            <span class="impl-target">{{.Target}}</span>
        </div>
        <div class="impl-content">
            {{- range .Functions}}{{template "function" .}}{{end}}
        </div>
    </div>
{{end}}

{{define "other"}}
    <div class="other">
        {{- if .Public}}<span class="function-visibility">pub</span> {{end -}}
        <span class="other-keyword">{{.Keyword}}</span> <span class="other-name">{{.Name}}</span>
        {{- if .Detail}}: <span class="other-detail">{{.Detail}}</span>{{end}}
    </div>
{{end}}`

var templates = template.Must(template.New("diagram").Parse(pageTemplate))

type moduleView struct {
	ID       string
	Name     string
	Contents template.HTML
}

type structView struct {
	Name    string
	Public  []model.Field
	Private []model.Field
}

type functionView struct {
	Visibility string
	Modifiers  string
	Name       string
	Params     string
	ReturnType string
}

type implView struct {
	Generics  string
	Trait     string
	Target    string
	Functions []functionView
}

type pageView struct {
	Title    string
	Style    template.CSS
	Contents template.HTML
}

// Renderer builds the page in memory. Each open module gets its own buffer,
// which is wrapped into the parent when the module ends.
type Renderer struct {
	title   string
	buffers []*bytes.Buffer
	modules int
}

// New returns a Renderer producing a page titled title.
func New(title string) *Renderer {
	return &Renderer{
		title:   title,
		buffers: []*bytes.Buffer{new(bytes.Buffer)},
	}
}

func (r *Renderer) current() *bytes.Buffer {
	return r.buffers[len(r.buffers)-1]
}

func (r *Renderer) execute(name string, data any) error {
	return templates.ExecuteTemplate(r.current(), name, data)
}

func (r *Renderer) BeginModule(string) error {
	r.buffers = append(r.buffers, new(bytes.Buffer))
	return nil
}

func (r *Renderer) EndModule(name string) error {
	if len(r.buffers) < 2 {
		return errors.Errorf("end of module %q without a matching begin", name)
	}
	body := r.current()
	r.buffers = r.buffers[:len(r.buffers)-1]
	r.modules++

	return r.execute("module", moduleView{
		ID:       "module-" + strconv.Itoa(r.modules) + "-" + name,
		Name:     name,
		Contents: template.HTML(body.String()),
	})
}

func (r *Renderer) EmitStruct(s *model.Struct) error {
	return r.execute("struct", structView{
		Name:    s.Name + s.Generics,
		Public:  s.PublicFields(),
		Private: s.PrivateFields(),
	})
}

func (r *Renderer) EmitEnum(e *model.Enum) error {
	return r.execute("enum", struct {
		Name     string
		Variants []model.Variant
	}{e.Name + e.Generics, e.Variants})
}

func (r *Renderer) EmitFunction(f *model.Function) error {
	return r.execute("function", newFunctionView(f))
}

func (r *Renderer) EmitImpl(i *model.Impl) error {
	view := implView{Generics: i.Generics, Trait: i.Trait, Target: i.Target}
	for _, fn := range i.Functions {
		view.Functions = append(view.Functions, newFunctionView(fn))
	}
	return r.execute("impl", view)
}

func (r *Renderer) EmitOther(o *model.Other) error {
	return r.execute("other", o)
}

// Finish writes the complete page to w.
func (r *Renderer) Finish(w io.Writer) error {
	if len(r.buffers) != 1 {
		return errors.Errorf("%d module(s) left open", len(r.buffers)-1)
	}
	return templates.ExecuteTemplate(w, "page", pageView{
		Title:    r.title,
		Style:    template.CSS(stylesheet),
		Contents: template.HTML(r.current().String()),
	})
}

func newFunctionView(f *model.Function) functionView {
	view := functionView{
		Modifiers:  f.ModifierText(),
		Name:       f.Name,
		Params:     f.Params,
		ReturnType: f.ReturnType,
	}
	if f.Public {
		view.Visibility = "pub"
	}
	return view
}
