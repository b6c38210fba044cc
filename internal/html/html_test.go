package html

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/cratemap/internal/model"
)

func render(t *testing.T, build func(r *Renderer)) string {
	t.Helper()
	r := New("My Crate")
	build(r)
	var buf bytes.Buffer
	require.NoError(t, r.Finish(&buf))
	return buf.String()
}

func TestPage(t *testing.T) {
	t.Parallel()

	out := render(t, func(*Renderer) {})
	assert.True(t, strings.HasPrefix(out, "<!DOCTYPE html>"))
	assert.Contains(t, out, "<title>My Crate</title>")
	assert.Contains(t, out, "<h1>My Crate</h1>")
	assert.Contains(t, out, ".module-toggle")
}

func TestStruct(t *testing.T) {
	t.Parallel()

	out := render(t, func(r *Renderer) {
		require.NoError(t, r.EmitStruct(&model.Struct{
			Name:     "Wrapper",
			Generics: "<T>",
			Fields: []model.Field{
				{Name: "inner", Type: "Vec<T>", Public: true},
				{Name: "len", Type: "usize"},
			},
		}))
	})

	assert.Contains(t, out, `<div class="struct-name">Wrapper&lt;T&gt;</div>`)
	pub := out[strings.Index(out, "struct-public-fields"):strings.Index(out, "struct-private-fields")]
	assert.Contains(t, pub, "inner")
	assert.Contains(t, pub, "Vec&lt;T&gt;")
	assert.NotContains(t, pub, "usize")
	priv := out[strings.Index(out, "struct-private-fields"):]
	assert.Contains(t, priv, "len")
	assert.Contains(t, priv, "usize")
}

func TestEnum(t *testing.T) {
	t.Parallel()

	out := render(t, func(r *Renderer) {
		require.NoError(t, r.EmitEnum(&model.Enum{
			Name: "Shape",
			Variants: []model.Variant{
				{Name: "Empty"},
				{Name: "Circle", Data: "(f64)"},
			},
		}))
	})

	assert.Contains(t, out, `<div class="enum-name">Shape</div>`)
	assert.Contains(t, out, `<div class="enum-variant-name">Empty</div>`)
	assert.Contains(t, out, `<div class="enum-variant-data">(f64)</div>`)
	assert.Equal(t, 1, strings.Count(out, `class="enum-variant-data"`))
}

func TestFunction(t *testing.T) {
	t.Parallel()

	out := render(t, func(r *Renderer) {
		require.NoError(t, r.EmitFunction(&model.Function{
			Name:       "fetch",
			Public:     true,
			Modifiers:  []model.Modifier{model.Async, model.Unsafe},
			Params:     "url: &str",
			ReturnType: "Result<(), E>",
		}))
		require.NoError(t, r.EmitFunction(&model.Function{Name: "helper", Visibility: "pub(crate)"}))
	})

	assert.Contains(t, out, `<span class="function-visibility">pub</span>`)
	assert.Contains(t, out, `<span class="function-modifiers">async unsafe</span>`)
	assert.Contains(t, out, `<span class="function-params">(url: &amp;str)</span>`)
	assert.Contains(t, out, `<span class="function-return"> -&gt; Result&lt;(), E&gt;</span>`)
	assert.Contains(t, out, `<span class="function-name">helper</span><span class="function-params">()</span>`)
	assert.Equal(t, 1, strings.Count(out, `class="function-visibility"`))
}

func TestImpl(t *testing.T) {
	t.Parallel()

	out := render(t, func(r *Renderer) {
		require.NoError(t, r.EmitImpl(&model.Impl{
			Target:    "Wrapper<T>",
			Trait:     "Display",
			Generics:  "<T>",
			Functions: []*model.Function{{Name: "fmt", Params: "&self"}},
		}))
	})

	assert.Contains(t, out, `<span class="impl-generics">&lt;T&gt;</span>`)
	assert.Contains(t, out, `<span class="impl-trait">Display</span> for`)
	assert.Contains(t, out, `<span class="impl-target">Wrapper&lt;T&gt;</span>`)
	assert.Contains(t, out, `<span class="function-name">fmt</span>`)
}

func TestNestedModules(t *testing.T) {
	t.Parallel()

	out := render(t, func(r *Renderer) {
		require.NoError(t, r.BeginModule("outer"))
		require.NoError(t, r.BeginModule("inner"))
		require.NoError(t, r.EmitStruct(&model.Struct{Name: "Deep"}))
		require.NoError(t, r.EndModule("inner"))
		require.NoError(t, r.EndModule("outer"))
		require.NoError(t, r.BeginModule("inner"))
		require.NoError(t, r.EmitFunction(&model.Function{Name: "f"}))
		require.NoError(t, r.EndModule("inner"))
	})

	outer := strings.Index(out, `<span class="module-name">outer</span>`)
	inner := strings.Index(out, `<span class="module-name">inner</span>`)
	deep := strings.Index(out, "Deep")
	require.GreaterOrEqual(t, outer, 0)
	assert.Less(t, outer, inner)
	assert.Less(t, inner, deep)

	// Modules sharing a name still get distinct toggle ids.
	assert.Contains(t, out, `id="module-1-inner"`)
	assert.Contains(t, out, `id="module-2-outer"`)
	assert.Contains(t, out, `id="module-3-inner"`)
}

func TestOther(t *testing.T) {
	t.Parallel()

	out := render(t, func(r *Renderer) {
		require.NoError(t, r.EmitOther(&model.Other{Keyword: "const", Name: "LIMIT", Public: true, Detail: "usize"}))
	})
	assert.Contains(t, out, `<span class="other-keyword">const</span> <span class="other-name">LIMIT</span>`)
	assert.Contains(t, out, `<span class="other-detail">usize</span>`)
}

func TestUnbalancedModules(t *testing.T) {
	t.Parallel()

	r := New("x")
	assert.Error(t, r.EndModule("nope"))

	require.NoError(t, r.BeginModule("open"))
	assert.Error(t, r.Finish(&bytes.Buffer{}))
}
