// Package walk visits a crate's module tree starting at one entry file and
// drives a Renderer with the declarations it keeps.
//
// Within every file or inline module body, declarations are emitted by
// section: structs, enums, functions, impl blocks, then modules and other
// items in source order. Source order is kept inside each section. Test-only
// declarations are dropped unless tests are included, and modules left with
// nothing to show are not emitted at all.
package walk

import (
	"context"
	"path/filepath"
	"slices"

	"github.com/spf13/afero"
	slogctx "github.com/veqryn/slog-context"
	"gitlab.com/tozd/go/errors"

	"github.com/phobologic/cratemap/internal/classify"
	"github.com/phobologic/cratemap/internal/model"
	"github.com/phobologic/cratemap/internal/resolve"
)

// Renderer receives the retained declarations. BeginModule and EndModule are
// always paired and may nest.
type Renderer interface {
	BeginModule(name string) error
	EndModule(name string) error
	EmitStruct(s *model.Struct) error
	EmitEnum(e *model.Enum) error
	EmitFunction(f *model.Function) error
	EmitImpl(i *model.Impl) error
}

// OtherRenderer is implemented by renderers that also draw traits, consts,
// statics, type aliases, unions and macros. Renderers without it never see
// those items, and a module holding only such items counts as empty.
type OtherRenderer interface {
	EmitOther(o *model.Other) error
}

// Source parses the text of one file.
type Source interface {
	Parse(ctx context.Context, path string, source []byte) (*model.File, error)
}

// Engine walks module trees. It holds no per-visit state and may be reused.
type Engine struct {
	source       Source
	fs           afero.Fs
	resolver     *resolve.Resolver
	includeTests bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithFs sets the filesystem files and modules are read from.
func WithFs(fs afero.Fs) Option {
	return func(e *Engine) { e.fs = fs }
}

// WithIncludeTests keeps test-only declarations instead of dropping them.
func WithIncludeTests(include bool) Option {
	return func(e *Engine) { e.includeTests = include }
}

// New returns an Engine parsing files with source. The OS filesystem is used
// unless WithFs says otherwise.
func New(source Source, opts ...Option) *Engine {
	e := &Engine{source: source, fs: afero.NewOsFs()}
	for _, opt := range opts {
		opt(e)
	}
	e.resolver = resolve.New(e.fs)
	return e
}

// Visit walks the module tree rooted at path and emits it to r. The whole
// tree is read and filtered before the first event, so a failing file
// anywhere leaves r untouched.
func (e *Engine) Visit(ctx context.Context, path string, r Renderer) error {
	_, withOther := r.(OtherRenderer)
	w := &walker{Engine: e, withOther: withOther}

	events, err := w.file(ctx, newFileContext(path, nil), false)
	if err != nil {
		return err
	}
	return emit(r, events)
}

// fileContext is the file a walker is currently inside. chain lists every
// file on the current descent, entry first.
type fileContext struct {
	path  string
	dir   string
	chain []string
}

func newFileContext(path string, parent []string) fileContext {
	clean := filepath.Clean(path)
	return fileContext{
		path:  path,
		dir:   filepath.Dir(clean),
		chain: append(slices.Clone(parent), clean),
	}
}

// event is one retained declaration, or a module with its retained content.
type event struct {
	item   model.Item
	module *moduleNode
}

type moduleNode struct {
	name   string
	events []event
}

type walker struct {
	*Engine
	withOther bool
}

// file reads, parses and walks one file. inTest is the test state of the
// module the file backs.
func (w *walker) file(ctx context.Context, fc fileContext, inTest bool) ([]event, error) {
	source, err := afero.ReadFile(w.fs, fc.path)
	if err != nil {
		return nil, &ReadError{Path: fc.path, Err: err}
	}

	file, err := w.source.Parse(ctx, fc.path, source)
	if err != nil {
		return nil, &ParseError{Path: fc.path, Err: err}
	}

	if classify.HasTestAttribute(file.Inner) {
		inTest = true
	}
	return w.items(ctx, fc, file.Items, inTest)
}

// items filters and orders one list of declarations, recursing into modules.
func (w *walker) items(ctx context.Context, fc fileContext, items []model.Item, inTest bool) ([]event, error) {
	var (
		structs, enums, functions, impls, rest []event
		dropped                                int
	)

	for _, item := range items {
		kind, isTest := classify.Classify(item, inTest)
		if isTest && !w.includeTests {
			dropped++
			continue
		}

		switch kind {
		case model.KindStruct:
			structs = append(structs, event{item: item})
		case model.KindEnum:
			enums = append(enums, event{item: item})
		case model.KindFunction:
			functions = append(functions, event{item: item})
		case model.KindImpl:
			if kept := w.impl(item.(*model.Impl), isTest); kept != nil {
				impls = append(impls, event{item: kept})
			}
		case model.KindModule:
			node, err := w.module(ctx, fc, item.(*model.Module), isTest)
			if err != nil {
				return nil, err
			}
			if node != nil {
				rest = append(rest, event{module: node})
			}
		case model.KindOther:
			if w.withOther {
				rest = append(rest, event{item: item})
			}
		}
	}

	if dropped > 0 {
		slogctx.Debug(ctx, "Skipped test items", "file", fc.path, "count", dropped)
	}

	out := make([]event, 0, len(structs)+len(enums)+len(functions)+len(impls)+len(rest))
	out = append(out, structs...)
	out = append(out, enums...)
	out = append(out, functions...)
	out = append(out, impls...)
	out = append(out, rest...)
	return out, nil
}

// impl returns a copy of im holding only its retained member functions, or
// nil if none are left.
func (w *walker) impl(im *model.Impl, inTest bool) *model.Impl {
	var functions []*model.Function
	for _, fn := range im.Functions {
		if _, isTest := classify.Classify(fn, inTest); isTest && !w.includeTests {
			continue
		}
		functions = append(functions, fn)
	}
	if len(functions) == 0 {
		return nil
	}

	kept := *im
	kept.Functions = functions
	return &kept
}

// module walks the body of m, resolving it on disk when it is out of line.
// It returns nil when nothing inside survives filtering.
func (w *walker) module(ctx context.Context, fc fileContext, m *model.Module, inTest bool) (*moduleNode, error) {
	var (
		children []event
		err      error
	)

	if m.Inline {
		children, err = w.items(ctx, fc, m.Items, inTest)
	} else {
		children, err = w.outOfLine(ctx, fc, m, inTest)
	}
	if err != nil {
		return nil, err
	}

	if len(children) == 0 {
		slogctx.Debug(ctx, "Suppressed empty module", "module", m.Name, "file", fc.path)
		return nil, nil
	}
	return &moduleNode{name: m.Name, events: children}, nil
}

func (w *walker) outOfLine(ctx context.Context, fc fileContext, m *model.Module, inTest bool) ([]event, error) {
	path, err := w.resolver.Module(m.Name, fc.dir)
	if err != nil {
		return nil, errors.Errorf("%s:%d: %w", fc.path, m.Line(), err)
	}

	if clean := filepath.Clean(path); slices.Contains(fc.chain, clean) {
		return nil, &CycleError{Module: m.Name, Path: path, Chain: fc.chain}
	}

	slogctx.Debug(ctx, "Loading module", "module", m.Name, "path", path)
	return w.file(ctx, newFileContext(path, fc.chain), inTest)
}

// emit replays a filtered tree into r, stopping at the first renderer error.
func emit(r Renderer, events []event) error {
	for _, ev := range events {
		if node := ev.module; node != nil {
			if err := r.BeginModule(node.name); err != nil {
				return &RenderError{Event: "begin of module " + node.name, Err: err}
			}
			if err := emit(r, node.events); err != nil {
				return err
			}
			if err := r.EndModule(node.name); err != nil {
				return &RenderError{Event: "end of module " + node.name, Err: err}
			}
			continue
		}

		if err := emitItem(r, ev.item); err != nil {
			return err
		}
	}
	return nil
}

func emitItem(r Renderer, item model.Item) error {
	var (
		err  error
		name string
	)

	switch it := item.(type) {
	case *model.Struct:
		name = "struct " + it.Name
		err = r.EmitStruct(it)
	case *model.Enum:
		name = "enum " + it.Name
		err = r.EmitEnum(it)
	case *model.Function:
		name = "fn " + it.Name
		err = r.EmitFunction(it)
	case *model.Impl:
		name = "impl " + it.Target
		err = r.EmitImpl(it)
	case *model.Other:
		if or, ok := r.(OtherRenderer); ok {
			name = it.Keyword + " " + it.Name
			err = or.EmitOther(it)
		}
	}

	if err != nil {
		return &RenderError{Event: name, Err: err}
	}
	return nil
}
