package structure

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/codelens/internal/lang"
	"github.com/dusk-indust/codelens/internal/syntax"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

var testParser = syntax.NewParser(lang.NewDefaultRegistry())

// readFixture reads a fixture file relative to the project root.
// Tests run from internal/structure/, so the relative path is ../../testdata/...
func readFixture(t *testing.T, relPath string) []byte {
	t.Helper()
	data, err := os.ReadFile("../../" + relPath)
	require.NoError(t, err, "reading fixture %s", relPath)
	return data
}

func extractSource(t *testing.T, path, src string) *Model {
	t.Helper()
	reg := lang.NewDefaultRegistry()
	l, err := reg.Resolve(path)
	require.NoError(t, err)
	tree, err := testParser.Parse(context.Background(), path, []byte(src), l)
	require.NoError(t, err)
	return Extract(tree)
}

// extractFixture parses a fixture and names the model by its base name so
// qualified names stay short.
func extractFixture(t *testing.T, relPath string) *Model {
	t.Helper()
	return extractSource(t, filepath.Base(relPath), string(readFixture(t, relPath)))
}

func mustLookup(t *testing.T, m *Model, qname string) *Entity {
	t.Helper()
	e := m.Lookup(qname)
	require.NotNil(t, e, "entity %s not found; have %v", qname, qualifiedNames(m))
	return e
}

func qualifiedNames(m *Model) []string {
	out := make([]string, 0, len(m.Entities))
	for _, e := range m.Entities {
		out = append(out, e.QualifiedName)
	}
	return out
}

func memberNames(e *Entity) []string {
	out := make([]string, 0, len(e.Members))
	for _, m := range e.Members {
		out = append(out, m.Name)
	}
	return out
}

func paramNames(e *Entity) []string {
	out := make([]string, 0, len(e.Params))
	for _, p := range e.Params {
		out = append(out, p.Name)
	}
	return out
}

func callees(e *Entity) []string {
	out := make([]string, 0, len(e.Calls))
	for _, c := range e.Calls {
		out = append(out, c.Callee)
	}
	return out
}

// ---------------------------------------------------------------------------
// Go
// ---------------------------------------------------------------------------

func TestExtract_Go(t *testing.T) {
	model := extractFixture(t, "testdata/fixtures/go_project/model.go")
	service := extractFixture(t, "testdata/fixtures/go_project/service.go")

	assert.Equal(t, lang.Go, model.Language)
	assert.Equal(t, []Capability{CapExports}, model.Missing)

	user := mustLookup(t, model, "model.go::User")
	assert.Equal(t, KindClass, user.Kind)
	assert.True(t, user.HasModifier(ModStruct))
	assert.Equal(t, []string{"ID", "Name", "Email"}, memberNames(user))
	assert.Equal(t, 4, user.Range.StartLine)

	repo := mustLookup(t, model, "model.go::Repository")
	assert.True(t, repo.HasModifier(ModInterface))
	assert.Equal(t, []string{"FindByID", "Save"}, memberNames(repo))
	assert.Equal(t, MemberMethod, repo.Members[0].Kind)

	newUser := mustLookup(t, model, "model.go::newUser/2")
	assert.Equal(t, KindFunction, newUser.Kind)
	assert.Equal(t, []string{"name", "email"}, paramNames(newUser))
	assert.Equal(t, "string", newUser.Params[0].Type)
	assert.True(t, newUser.HasModifier(ModPrivate))

	imp := mustLookup(t, service, "service.go::import:fmt")
	assert.Equal(t, KindImport, imp.Kind)

	svc := mustLookup(t, service, "service.go::UserService")
	assert.Equal(t, []string{"repo", "GetUser", "CreateUser"}, memberNames(svc))

	getUser := mustLookup(t, service, "service.go::UserService.GetUser/1")
	assert.Equal(t, KindMethod, getUser.Kind)
	assert.Equal(t, []string{"UserService"}, getUser.Scope)
	assert.Equal(t, []string{"s.repo.FindByID", "fmt.Errorf"}, callees(getUser))
	assert.Equal(t, "func (s *UserService) GetUser(id int) (*User, error)", getUser.RawSignature)

	// DisplayName's receiver lives in model.go, so the file alone cannot
	// attach it.
	mustLookup(t, service, "service.go::User.DisplayName/0")
	assert.Nil(t, service.Lookup("service.go::User"))

	local := mustLookup(t, service, "service.go::UserService.GetUser.user")
	assert.Equal(t, KindVariable, local.Kind)
	assert.True(t, local.Local)
}

func TestExtract_GoFuncLiteralIsAnonymous(t *testing.T) {
	src := "package p\n\nfunc run() {\n\tgo func() {\n\t\twork()\n\t}()\n}\n"
	m := extractSource(t, "p.go", src)

	run := mustLookup(t, m, "p.go::run/0")
	anon := mustLookup(t, m, "p.go::run.<anonymous>@4:5/0")
	assert.Equal(t, []string{"work"}, callees(anon))
	assert.Equal(t, []string{"<anonymous>@4:5"}, callees(run), "the literal's own calls stay with it")
}

// ---------------------------------------------------------------------------
// Python
// ---------------------------------------------------------------------------

func TestExtract_Python(t *testing.T) {
	m := extractFixture(t, "testdata/fixtures/python_project/inventory.py")
	assert.Empty(t, m.Missing)

	item := mustLookup(t, m, "inventory.py::Item")
	assert.Equal(t, []string{"sku", "__init__", "qty"}, memberNames(item))

	inv := mustLookup(t, m, "inventory.py::Inventory")
	assert.Equal(t, []Relation{{Kind: RelInherits, Target: "Item"}}, inv.Bases)
	assert.Equal(t, []string{"add", "_check"}, memberNames(inv))

	add := mustLookup(t, m, "inventory.py::Inventory.add/2")
	assert.Equal(t, []string{"item", "extra"}, paramNames(add))
	assert.True(t, add.Params[1].Variadic)
	assert.Equal(t, []string{"self._check", "print", "len"}, callees(add))

	init := mustLookup(t, m, "inventory.py::Item.__init__/2")
	assert.True(t, init.Params[1].HasDefault)

	check := mustLookup(t, m, "inventory.py::Inventory._check/1")
	assert.True(t, check.HasModifier(ModPrivate))

	apiKey := mustLookup(t, m, "inventory.py::API_KEY")
	assert.False(t, apiKey.Local)

	unused := mustLookup(t, m, "inventory.py::validate.unused")
	assert.True(t, unused.Local)

	exports := m.OfKind(KindExport)
	require.Len(t, exports, 2)
	assert.Equal(t, "Inventory", exports[0].Name)
	assert.Equal(t, "inventory.py::export:load", exports[1].QualifiedName)

	imports := m.OfKind(KindImport)
	require.Len(t, imports, 2)
	assert.Equal(t, "os", imports[0].Source)
	assert.Equal(t, "dataclasses", imports[1].Source)
}

func TestExtract_PythonDecorators(t *testing.T) {
	src := `class Config:
    @staticmethod
    def parse(text):
        return text

    @property
    def name(self):
        return "cfg"

    async def load(self, path):
        return path
`
	m := extractSource(t, "cfg.py", src)

	parse := mustLookup(t, m, "cfg.py::Config.parse/1")
	assert.True(t, parse.HasModifier(ModStatic))
	assert.Equal(t, []string{"text"}, paramNames(parse), "static methods keep their first parameter")

	name := mustLookup(t, m, "cfg.py::Config.name/0")
	assert.True(t, name.HasModifier("property"))

	load := mustLookup(t, m, "cfg.py::Config.load/1")
	assert.True(t, load.HasModifier(ModAsync))
}

func TestExtract_PythonAnnotatedFields(t *testing.T) {
	src := `from dataclasses import dataclass


@dataclass
class Point:
    x: int
    y: int = 0
    label: str = "origin"

    def norm(self):
        return abs(self.x) + abs(self.y)
`
	var m *Model
	require.NotPanics(t, func() { m = extractSource(t, "point.py", src) })

	point := mustLookup(t, m, "point.py::Point")
	assert.Equal(t, []string{"x", "y", "label", "norm"}, memberNames(point))
	assert.Equal(t, "int", point.Members[0].Type)
	assert.Equal(t, "str", point.Members[2].Type)
	mustLookup(t, m, "point.py::Point.norm/0")
}

// ---------------------------------------------------------------------------
// TypeScript / JavaScript
// ---------------------------------------------------------------------------

func TestExtract_TypeScript(t *testing.T) {
	m := extractFixture(t, "testdata/fixtures/ts_project/cart.ts")
	assert.Equal(t, lang.TypeScript, m.Language)

	cart := mustLookup(t, m, "cart.ts::Cart")
	assert.Equal(t, []Relation{
		{Kind: RelInherits, Target: "Base"},
		{Kind: RelImplements, Target: "Priced"},
	}, cart.Bases)
	assert.Equal(t,
		[]string{"items", "currency", "constructor", "owner", "id", "add", "price", "recalc"},
		memberNames(cart))
	assert.Equal(t, ModPrivate, cart.Members[0].Modifiers[0])

	add := mustLookup(t, m, "cart.ts::Cart.add/3")
	require.Len(t, add.Params, 3)
	assert.Equal(t, "Item", add.Params[0].Type)
	assert.True(t, add.Params[1].HasDefault)
	assert.True(t, add.Params[2].Variadic)
	assert.Equal(t, "tags", add.Params[2].Name)
	assert.Equal(t, []string{"this.items.push", "this.recalc"}, callees(add))

	priced := mustLookup(t, m, "cart.ts::Priced")
	assert.True(t, priced.HasModifier(ModInterface))
	assert.Equal(t, []string{"price", "currency"}, memberNames(priced))

	base := mustLookup(t, m, "cart.ts::Base")
	assert.True(t, base.HasModifier(ModAbstract))
	assert.Equal(t, []string{"id"}, memberNames(base))

	checkout := mustLookup(t, m, "cart.ts::checkout/1")
	assert.Equal(t, KindFunction, checkout.Kind)
	assert.True(t, checkout.HasModifier("export"))

	var exported []string
	for _, e := range m.OfKind(KindExport) {
		exported = append(exported, e.Name)
	}
	assert.Equal(t, []string{"Priced", "Base", "Cart", "checkout"}, exported)

	// The reduce callback is anonymous and scoped under price.
	var anon *Entity
	for _, e := range m.Callables() {
		if e.Owner() == "price" {
			anon = e
		}
	}
	require.NotNil(t, anon)
	assert.Contains(t, anon.Name, "<anonymous>@")
}

func TestExtract_JavaScript(t *testing.T) {
	m := extractFixture(t, "testdata/fixtures/js_project/legacy.js")

	counter := mustLookup(t, m, "legacy.js::counter")
	assert.Equal(t, []string{"var"}, counter.Modifiers)

	helpers := mustLookup(t, m, "legacy.js::helpers")
	assert.Equal(t, []string{"const"}, helpers.Modifiers)

	run := mustLookup(t, m, "legacy.js::run/1")
	assert.Equal(t, []string{"eval", "console.log", "compare"}, callees(run))

	password := mustLookup(t, m, "legacy.js::run.password")
	assert.True(t, password.Local)
}

func TestExtract_JavaScriptExports(t *testing.T) {
	src := `export default function () {}
export { a as b } from "./a";
export * from "./all";
`
	m := extractSource(t, "mod.js", src)

	exports := m.OfKind(KindExport)
	require.Len(t, exports, 3)
	assert.Equal(t, "default", exports[0].Name)
	assert.Equal(t, "b", exports[1].Name)
	assert.Equal(t, "./a", exports[1].Source)
	assert.Equal(t, "*", exports[2].Name)
	assert.Equal(t, "./all", exports[2].Source)

	mustLookup(t, m, "mod.js::<anonymous>@1:16/0")
}

// ---------------------------------------------------------------------------
// Rust
// ---------------------------------------------------------------------------

func TestExtract_Rust(t *testing.T) {
	m := extractFixture(t, "testdata/fixtures/rust_project/shapes.rs")

	circle := mustLookup(t, m, "shapes.rs::Circle")
	assert.True(t, circle.HasModifier(ModStruct))
	assert.Equal(t, []string{"radius", "new", "area"}, memberNames(circle))
	assert.Equal(t, []Relation{{Kind: RelImplements, Target: "Shape"}}, circle.Bases)

	newFn := mustLookup(t, m, "shapes.rs::Circle.new/1")
	assert.Equal(t, KindMethod, newFn.Kind)
	assert.True(t, newFn.HasModifier(ModStatic))

	area := mustLookup(t, m, "shapes.rs::Circle.area/0")
	assert.False(t, area.HasModifier(ModStatic))

	shape := mustLookup(t, m, "shapes.rs::Shape")
	assert.True(t, shape.HasModifier(ModTrait))
	assert.Equal(t, []string{"area", "name"}, memberNames(shape))
	mustLookup(t, m, "shapes.rs::Shape.name/0")

	total := mustLookup(t, m, "shapes.rs::total/1")
	assert.Equal(t, []string{"shapes.iter().map(|s| s.area()).sum", "shapes.iter().map", "shapes.iter"}, callees(total))

	mustLookup(t, m, "shapes.rs::import:std::fmt")
	mustLookup(t, m, "shapes.rs::Circle.area.r")
}

// ---------------------------------------------------------------------------
// Java
// ---------------------------------------------------------------------------

func TestExtract_Java(t *testing.T) {
	m := extractFixture(t, "testdata/fixtures/java_project/Account.java")
	assert.Equal(t, []Capability{CapExports}, m.Missing)

	account := mustLookup(t, m, "Account.java::Account")
	assert.Equal(t, []Relation{
		{Kind: RelInherits, Target: "Entity"},
		{Kind: RelImplements, Target: "Auditable"},
	}, account.Bases)
	assert.Equal(t, []string{"owner", "balance", "Account", "deposit", "validate", "format"}, memberNames(account))
	assert.Contains(t, account.Modifiers, ModPublic)

	deposit := mustLookup(t, m, "Account.java::Account.deposit/1")
	assert.Equal(t, []string{"validate", "System.out.println"}, callees(deposit))

	format := mustLookup(t, m, "Account.java::Account.format/1")
	assert.True(t, format.Params[0].Variadic)
	assert.True(t, format.HasModifier(ModStatic))

	mustLookup(t, m, "Account.java::Account.Account/1")
	mustLookup(t, m, "Account.java::import:java.util.List")
}

func TestExtract_JavaOverloadsHaveDistinctNames(t *testing.T) {
	src := `class Calc {
    int add(int a) { return a; }
    int add(int a, int b) { return a + b; }
}
`
	m := extractSource(t, "Calc.java", src)
	mustLookup(t, m, "Calc.java::Calc.add/1")
	mustLookup(t, m, "Calc.java::Calc.add/2")
}

// ---------------------------------------------------------------------------
// Cross-cutting
// ---------------------------------------------------------------------------

func TestExtract_Deterministic(t *testing.T) {
	fixtures := []string{
		"testdata/fixtures/go_project/service.go",
		"testdata/fixtures/python_project/inventory.py",
		"testdata/fixtures/ts_project/cart.ts",
		"testdata/fixtures/js_project/legacy.js",
		"testdata/fixtures/rust_project/shapes.rs",
		"testdata/fixtures/java_project/Account.java",
	}
	for _, f := range fixtures {
		t.Run(filepath.Base(f), func(t *testing.T) {
			first := extractFixture(t, f)
			second := extractFixture(t, f)
			assert.Equal(t, first, second)
			assert.NotEmpty(t, first.Entities)
		})
	}
}

func TestExtract_QualifiedNamesAreUnique(t *testing.T) {
	src := "def f():\n    x = 1\n    x = 2\n    return x\n"
	m := extractSource(t, "dup.py", src)

	seen := map[string]bool{}
	for _, e := range m.Entities {
		assert.False(t, seen[e.QualifiedName], "duplicate %s", e.QualifiedName)
		seen[e.QualifiedName] = true
	}
	mustLookup(t, m, "dup.py::f.x")
	mustLookup(t, m, "dup.py::f.x#2")
}

func TestExtract_MissingExtractor(t *testing.T) {
	tree, err := testParser.Parse(context.Background(), "a.py", []byte("x = 1\n"), lang.Python)
	require.NoError(t, err)

	m := Extractors{}.Extract(tree)
	assert.Empty(t, m.Entities)
	assert.Equal(t, AllCapabilities, m.Missing)
	assert.False(t, m.HasCapability(CapClasses))
}

func TestExtract_BrokenSourceDoesNotPanic(t *testing.T) {
	srcs := map[string]string{
		"broken.py":   "class A:\n    def ok(self):\n        return 1\n\n    def broken(self\n\ndef after():\n    pass\n",
		"broken.go":   "package p\n\nfunc (s *S) M( {\n\tx := \n}\n\ntype S struct { a int\n",
		"broken.ts":   "export class A extends {\n  m(: void {\n}\nconst f = (=> 1;\n",
		"broken.rs":   "impl for X {\n    fn a(&self -> {\n}\nstruct {\n",
		"Broken.java": "public class {\n  void m( {\n  int x = ;\n}\n",
	}
	for path, src := range srcs {
		t.Run(path, func(t *testing.T) {
			var m *Model
			assert.NotPanics(t, func() { m = extractSource(t, path, src) })
			require.NotNil(t, m)
			assert.Equal(t, path, m.Path)
		})
	}
}

func TestLanguages(t *testing.T) {
	assert.ElementsMatch(t,
		[]lang.Language{lang.Go, lang.Python, lang.JavaScript, lang.TypeScript, lang.TSX, lang.Rust, lang.Java},
		Languages())
}
