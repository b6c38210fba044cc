package walk

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/cratemap/internal/model"
	"github.com/phobologic/cratemap/internal/parse"
	"github.com/phobologic/cratemap/internal/resolve"
)

// recorder renders every event as one line of text.
type recorder struct {
	events []string
	failOn string
}

func (r *recorder) add(ev string) error {
	if r.failOn != "" && strings.HasPrefix(ev, r.failOn) {
		return errors.New("sink closed")
	}
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) BeginModule(name string) error { return r.add("begin " + name) }
func (r *recorder) EndModule(name string) error   { return r.add("end " + name) }

func (r *recorder) EmitStruct(s *model.Struct) error {
	return r.add(fmt.Sprintf("struct %s pub=%s priv=%s", s.Name, fieldList(s.PublicFields()), fieldList(s.PrivateFields())))
}

func (r *recorder) EmitEnum(e *model.Enum) error {
	var names []string
	for _, v := range e.Variants {
		names = append(names, v.Name)
	}
	return r.add(fmt.Sprintf("enum %s [%s]", e.Name, strings.Join(names, ",")))
}

func (r *recorder) EmitFunction(f *model.Function) error {
	return r.add("fn " + f.Name)
}

func (r *recorder) EmitImpl(i *model.Impl) error {
	var names []string
	for _, fn := range i.Functions {
		names = append(names, fn.Name)
	}
	return r.add(fmt.Sprintf("impl %s for %s [%s]", i.Trait, i.Target, strings.Join(names, ",")))
}

// otherRecorder additionally accepts traits, consts and friends.
type otherRecorder struct {
	recorder
}

func (r *otherRecorder) EmitOther(o *model.Other) error {
	return r.add(o.Keyword + " " + o.Name)
}

func fieldList(fields []model.Field) string {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f.Name+":"+f.Type)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// crate builds an in-memory source tree from path/content pairs.
func crate(t *testing.T, files map[string]string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	for path, content := range files {
		require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0o644))
	}
	return fs
}

func visit(t *testing.T, fs afero.Fs, includeTests bool, r Renderer) error {
	t.Helper()
	e := New(parse.New(), WithFs(fs), WithIncludeTests(includeTests))
	return e.Visit(context.Background(), "/src/main.rs", r)
}

func record(t *testing.T, files map[string]string, includeTests bool) []string {
	t.Helper()
	r := &recorder{}
	require.NoError(t, visit(t, crate(t, files), includeTests, r))
	return r.events
}

func TestVisitOutOfLineModule(t *testing.T) {
	t.Parallel()

	events := record(t, map[string]string{
		"/src/main.rs": "mod a;\n",
		"/src/a.rs":    "pub struct S { pub x: i32 }\n",
	}, false)

	assert.Equal(t, []string{
		"begin a",
		"struct S pub=[x:i32] priv=[]",
		"end a",
	}, events)
}

func TestVisitPrivateFieldOfPublicStruct(t *testing.T) {
	t.Parallel()

	events := record(t, map[string]string{
		"/src/main.rs": "mod a;\n",
		"/src/a.rs":    "pub struct S { x: i32 }\n",
	}, false)

	assert.Equal(t, []string{
		"begin a",
		"struct S pub=[] priv=[x:i32]",
		"end a",
	}, events)
}

func TestVisitInlineTestsModuleEmitsNothing(t *testing.T) {
	t.Parallel()

	events := record(t, map[string]string{
		"/src/main.rs": "mod tests { fn t() {} }\n",
	}, false)
	assert.Empty(t, events)
}

func TestVisitMissingModule(t *testing.T) {
	t.Parallel()

	r := &recorder{}
	err := visit(t, crate(t, map[string]string{
		"/src/main.rs": "struct Kept;\nmod missing;\n",
	}), false, r)
	require.Error(t, err)

	var nf *resolve.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "missing", nf.Module)
	assert.Contains(t, err.Error(), "/src/missing.rs")
	assert.Contains(t, err.Error(), "/src/missing/mod.rs")
	assert.Empty(t, r.events, "no partial output on failure")
}

func TestVisitSectionOrder(t *testing.T) {
	t.Parallel()

	events := record(t, map[string]string{
		"/src/main.rs": `
mod first { fn inner() {} }
fn alpha() {}
impl Thing { fn method(&self) {} }
enum Color { Red }
struct One;
mod second { struct Deep; }
fn beta() {}
struct Two;
enum Size { Big }
impl Clone for Thing { fn clone(&self) -> Self { todo!() } }
`,
	}, false)

	assert.Equal(t, []string{
		"struct One pub=[] priv=[]",
		"struct Two pub=[] priv=[]",
		"enum Color [Red]",
		"enum Size [Big]",
		"fn alpha",
		"fn beta",
		"impl  for Thing [method]",
		"impl Clone for Thing [clone]",
		"begin first",
		"fn inner",
		"end first",
		"begin second",
		"struct Deep pub=[] priv=[]",
		"end second",
	}, events)
}

func TestVisitOtherItemsInterleaveWithModules(t *testing.T) {
	t.Parallel()

	files := map[string]string{
		"/src/main.rs": `
const A: u8 = 1;
mod m { fn f() {} }
pub trait T {}
struct S;
use std::fmt;
mod only_consts { const B: u8 = 2; }
`,
	}

	r := &otherRecorder{}
	require.NoError(t, visit(t, crate(t, files), false, r))
	assert.Equal(t, []string{
		"struct S pub=[] priv=[]",
		"const A",
		"begin m",
		"fn f",
		"end m",
		"trait T",
		"begin only_consts",
		"const B",
		"end only_consts",
	}, r.events)

	// Without EmitOther the const-only module is empty and disappears.
	assert.Equal(t, []string{
		"struct S pub=[] priv=[]",
		"begin m",
		"fn f",
		"end m",
	}, record(t, files, false))
}

func TestVisitTestFiltering(t *testing.T) {
	t.Parallel()

	files := map[string]string{
		"/src/main.rs": `
struct Prod;
#[cfg(test)]
struct Fixture;
#[test]
fn it_works() {}
fn run() {}
#[cfg(test)]
mod helpers {
    pub struct Builder;
    mod deep { struct Hidden; }
}
mod tests;
`,
		"/src/tests.rs": "fn from_disk() {}\n",
	}

	assert.Equal(t, []string{
		"struct Prod pub=[] priv=[]",
		"fn run",
	}, record(t, files, false))

	assert.Equal(t, []string{
		"struct Prod pub=[] priv=[]",
		"struct Fixture pub=[] priv=[]",
		"fn it_works",
		"fn run",
		"begin helpers",
		"struct Builder pub=[] priv=[]",
		"begin deep",
		"struct Hidden pub=[] priv=[]",
		"end deep",
		"end helpers",
		"begin tests",
		"fn from_disk",
		"end tests",
	}, record(t, files, true))
}

func TestVisitTestModuleIsNeverResolved(t *testing.T) {
	t.Parallel()

	// Neither tests.rs nor integration.rs exist; excluded modules are not looked up.
	events := record(t, map[string]string{
		"/src/main.rs": "fn main() {}\nmod tests;\n#[cfg(test)]\nmod integration;\n",
	}, false)
	assert.Equal(t, []string{"fn main"}, events)
}

func TestVisitEmptyModuleSuppressed(t *testing.T) {
	t.Parallel()

	files := map[string]string{
		"/src/main.rs": "mod checks;\nmod nested { mod inner { #[test] fn t() {} } }\n",
		"/src/checks/mod.rs": `
#[test]
fn one() {}
#[cfg(test)]
struct Helper;
`,
	}
	assert.Empty(t, record(t, files, false))

	assert.Equal(t, []string{
		"begin checks",
		"struct Helper pub=[] priv=[]",
		"fn one",
		"end checks",
		"begin nested",
		"begin inner",
		"fn t",
		"end inner",
		"end nested",
	}, record(t, files, true))
}

func TestVisitFileLevelTestAttribute(t *testing.T) {
	t.Parallel()

	files := map[string]string{
		"/src/main.rs":    "mod support;\nstruct S;\n",
		"/src/support.rs": "#![cfg(test)]\npub fn fake() {}\n",
	}
	assert.Equal(t, []string{"struct S pub=[] priv=[]"}, record(t, files, false))
}

func TestVisitImplMemberFiltering(t *testing.T) {
	t.Parallel()

	events := record(t, map[string]string{
		"/src/main.rs": `
impl Only { #[test] fn t(&self) {} }
impl Mixed {
    fn keep(&self) {}
    #[cfg(test)]
    fn drop_me(&self) {}
}
impl Marker for Mixed {}
`,
	}, false)
	assert.Equal(t, []string{"impl  for Mixed [keep]"}, events)
}

func TestVisitDirectoryModuleChildren(t *testing.T) {
	t.Parallel()

	events := record(t, map[string]string{
		"/src/main.rs":    "mod net;\n",
		"/src/net/mod.rs": "mod tcp;\npub fn connect() {}\n",
		"/src/net/tcp.rs": "pub struct Stream(pub u16, String);\n",
		"/src/tcp.rs":     "struct WrongFile;\n",
	}, false)
	assert.Equal(t, []string{
		"begin net",
		"fn connect",
		"begin tcp",
		"struct Stream pub=[0:u16] priv=[1:String]",
		"end tcp",
		"end net",
	}, events)
}

func TestVisitIgnoresUnsupportedItems(t *testing.T) {
	t.Parallel()

	events := record(t, map[string]string{
		"/src/main.rs": "use std::io;\nextern crate core;\nlazy_static! { static ref X: u8 = 1; }\nextern \"C\" { fn abs(x: i32) -> i32; }\nfn main() {}\n",
	}, false)
	assert.Equal(t, []string{"fn main"}, events)
}

func TestVisitToleratesUnparsedBodies(t *testing.T) {
	t.Parallel()

	events := record(t, map[string]string{
		"/src/main.rs": "mod a;\nfn f() { let c = async || 1; }\n",
		"/src/a.rs":    "unsafe extern \"C\" { pub fn g(); }\nstruct S;\n",
	}, false)

	assert.Equal(t, []string{
		"fn f",
		"begin a",
		"struct S pub=[] priv=[]",
		"end a",
	}, events)
}

func TestVisitDeterministic(t *testing.T) {
	t.Parallel()

	files := map[string]string{
		"/src/main.rs": "mod a;\nmod b { enum E { X, Y } }\nstruct Root { pub id: u64, name: String }\n",
		"/src/a.rs":    "pub fn f() {}\nimpl A { fn g(&self) {} }\n",
	}
	first := record(t, files, false)
	second := record(t, files, false)
	assert.Equal(t, first, second)
	assert.NotEmpty(t, first)
}

func TestVisitReadError(t *testing.T) {
	t.Parallel()

	err := visit(t, afero.NewMemMapFs(), false, &recorder{})
	var re *ReadError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "/src/main.rs", re.Path)
}

func TestVisitNestedParseError(t *testing.T) {
	t.Parallel()

	r := &recorder{}
	err := visit(t, crate(t, map[string]string{
		"/src/main.rs":   "struct Fine;\nmod broken;\n",
		"/src/broken.rs": "fn oops( {\n",
	}), false, r)

	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "/src/broken.rs", pe.Path)

	var syn *parse.SyntaxError
	assert.ErrorAs(t, err, &syn)
	assert.Empty(t, r.events)
}

func TestVisitRenderErrorStopsTraversal(t *testing.T) {
	t.Parallel()

	r := &recorder{failOn: "enum"}
	err := visit(t, crate(t, map[string]string{
		"/src/main.rs": "struct A;\nenum B { X }\nfn c() {}\n",
	}), false, r)

	var rerr *RenderError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "enum B", rerr.Event)
	assert.Equal(t, []string{"struct A pub=[] priv=[]"}, r.events)
}

func TestVisitModuleCycle(t *testing.T) {
	t.Parallel()

	err := visit(t, crate(t, map[string]string{
		"/src/main.rs": "mod a;\n",
		"/src/a.rs":    "mod b;\n",
		"/src/b.rs":    "mod a;\n",
	}), false, &recorder{})

	var cycle *CycleError
	require.ErrorAs(t, err, &cycle)
	assert.Equal(t, "a", cycle.Module)
	assert.Equal(t, []string{"/src/main.rs", "/src/a.rs", "/src/b.rs"}, cycle.Chain)
}
