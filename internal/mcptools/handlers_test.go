package mcptools

import (
	"context"
	"os"
	"sync/atomic"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/codelens/internal/lang"
	"github.com/dusk-indust/codelens/internal/scan"
	"github.com/dusk-indust/codelens/internal/structure"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func newTestService() *Service {
	return NewService(scan.Config{Workers: 2}, nil)
}

// fixture reads a file under testdata/fixtures. Tests run from
// internal/mcptools/.
func fixture(t *testing.T, rel string) FileInput {
	t.Helper()
	data, err := os.ReadFile("../../testdata/fixtures/" + rel)
	require.NoError(t, err)
	return FileInput{Path: rel, Content: string(data)}
}

// ---------------------------------------------------------------------------
// scan_files
// ---------------------------------------------------------------------------

func TestScanFiles(t *testing.T) {
	svc := newTestService()
	_, out, err := svc.ScanFiles(context.Background(), nil, ScanFilesInput{
		Files: []FileInput{
			fixture(t, "js_project/legacy.js"),
			fixture(t, "ts_project/cart.ts"),
			{Path: "notes.txt", Content: "hello"},
		},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, out.ScanID)
	require.Len(t, out.Findings, 2)
	assert.Equal(t, "js_project/legacy.js", out.Findings[0].Path)
	assert.Equal(t, "javascript", out.Findings[0].Language)

	var noVar *FindingOutput
	for i, f := range out.Findings[0].Findings {
		if f.RuleID == "no-var" {
			noVar = &out.Findings[0].Findings[i]
		}
	}
	require.NotNil(t, noVar)
	assert.Equal(t, "warning", noVar.Severity)
	assert.Equal(t, "style", noVar.Category)
	assert.Equal(t, 3, noVar.Line)

	require.Len(t, out.Skipped, 1)
	assert.Equal(t, "unsupported", out.Skipped[0].Reason)

	require.Len(t, out.Diagrams, 1)
	assert.Equal(t, "class", out.Diagrams[0].Type)
	assert.Equal(t, "mermaid", out.Diagrams[0].Format)
	assert.NotEmpty(t, out.Capabilities)
}

func TestScanFiles_Overrides(t *testing.T) {
	svc := newTestService()
	in := ScanFilesInput{
		Files: []FileInput{
			{Path: "a.js", Content: "var x = 1;\n"},
			{Path: "b.py", Content: "print(1)\n"},
		},
		Languages:     []string{"JavaScript"},
		DisabledRules: []string{"no-var"},
	}
	_, out, err := svc.ScanFiles(context.Background(), nil, in)
	require.NoError(t, err)

	require.Len(t, out.Findings, 1)
	assert.Empty(t, out.Findings[0].Findings, "no-var disabled for this call")
	require.Len(t, out.Skipped, 1)
	assert.Equal(t, "b.py", out.Skipped[0].Path)

	// The shared scanner is unaffected by per-call overrides.
	_, again, err := svc.ScanFiles(context.Background(), nil, ScanFilesInput{Files: in.Files[:1]})
	require.NoError(t, err)
	require.Len(t, again.Findings[0].Findings, 1)
	assert.Equal(t, "no-var", again.Findings[0].Findings[0].RuleID)
}

func TestScanFiles_OverridesReuseGrammars(t *testing.T) {
	var loads atomic.Int32
	specs := lang.BuiltinSpecs()
	for i := range specs {
		load := specs[i].Grammar
		specs[i].Grammar = func() unsafe.Pointer {
			loads.Add(1)
			return load()
		}
	}
	svc := NewService(scan.Config{Workers: 2}, nil, scan.WithSpecs(specs))
	require.Equal(t, int32(len(specs)), loads.Load())

	for _, in := range []ScanFilesInput{
		{Files: []FileInput{{Path: "a.go", Content: "package a\n"}}, Languages: []string{"go"}},
		{Files: []FileInput{{Path: "a.js", Content: "var x;\n"}}, DisabledRules: []string{"no-var"}},
	} {
		_, _, err := svc.ScanFiles(context.Background(), nil, in)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(len(specs)), loads.Load(), "grammars load once per service")
}

func TestScanFiles_EntryPoints(t *testing.T) {
	svc := newTestService()
	_, out, err := svc.ScanFiles(context.Background(), nil, ScanFilesInput{
		Files: []FileInput{
			fixture(t, "go_project/model.go"),
			fixture(t, "go_project/service.go"),
		},
		EntryPoints: []string{"CreateUser"},
	})
	require.NoError(t, err)

	var types []string
	for _, d := range out.Diagrams {
		types = append(types, d.Type)
	}
	assert.Equal(t, []string{"class", "sequence"}, types)
}

func TestScanFiles_Validation(t *testing.T) {
	svc := newTestService()

	_, _, err := svc.ScanFiles(context.Background(), nil, ScanFilesInput{})
	assert.ErrorContains(t, err, "files is required")

	_, _, err = svc.ScanFiles(context.Background(), nil, ScanFilesInput{
		Files:     []FileInput{{Path: "a.go", Content: "package a\n"}},
		Languages: []string{"cobol"},
	})
	assert.ErrorContains(t, err, `unknown language "cobol"`)
}

func TestScanFiles_CanceledReturnsPartialOutput(t *testing.T) {
	svc := newTestService()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, out, err := svc.ScanFiles(ctx, nil, ScanFilesInput{Files: []FileInput{{Path: "a.go", Content: "package a\n"}}})
	require.NoError(t, err)
	assert.True(t, out.Canceled)
	require.Len(t, out.Skipped, 1)
	assert.Equal(t, "canceled", out.Skipped[0].Reason)
}

// ---------------------------------------------------------------------------
// diff_files
// ---------------------------------------------------------------------------

func TestDiffFiles(t *testing.T) {
	svc := newTestService()
	_, out, err := svc.DiffFiles(context.Background(), nil, DiffFilesInput{
		Before: []FileInput{{Path: "shapes.py", Content: "class Shape:\n    def area(self):\n        return 0\n\n\nclass Old:\n    pass\n"}},
		After:  []FileInput{{Path: "shapes.py", Content: "class Shape:\n    def area(self):\n        return 1\n\n\nclass Square(Shape):\n    pass\n"}},
	})
	require.NoError(t, err)

	assert.Equal(t, ChangeSummary{Added: 1, Modified: 2, Removed: 1}, out.Summary,
		"area's body changed, which also changes Shape's shape")

	byKey := make(map[string]structure.Status)
	for _, c := range out.Changes {
		byKey[c.Key] = c.Status
	}
	assert.Equal(t, structure.StatusAdded, byKey["shapes.py::Square"])
	assert.Equal(t, structure.StatusRemoved, byKey["shapes.py::Old"])
	assert.Equal(t, structure.StatusModified, byKey["shapes.py::Shape.area/0"])

	require.NotEmpty(t, out.Diagrams)
	class := out.Diagrams[0]
	assert.Equal(t, "class", class.Type)
	assert.Contains(t, class.Content, "class Square:::added")
	assert.Contains(t, class.Content, "class Old:::removed")
}

func TestDiffFiles_AllAdded(t *testing.T) {
	svc := newTestService()
	_, out, err := svc.DiffFiles(context.Background(), nil, DiffFilesInput{
		After: []FileInput{{Path: "a.go", Content: "package a\n\nfunc A() {}\n"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Summary.Added)
	assert.Zero(t, out.Summary.Removed)
}

func TestDiffFiles_Validation(t *testing.T) {
	_, _, err := newTestService().DiffFiles(context.Background(), nil, DiffFilesInput{})
	assert.ErrorContains(t, err, "before or after is required")
}

// ---------------------------------------------------------------------------
// list_languages
// ---------------------------------------------------------------------------

func TestListLanguages(t *testing.T) {
	_, out, err := newTestService().ListLanguages(context.Background(), nil, ListLanguagesInput{})
	require.NoError(t, err)

	var langs []string
	for _, c := range out.Capabilities {
		langs = append(langs, string(c.Language))
		assert.True(t, c.GrammarAvailable, "%s", c.Language)
	}
	assert.ElementsMatch(t, []string{"go", "python", "javascript", "typescript", "tsx", "rust", "java"}, langs)

	rules := make(map[string]RuleInfo)
	for _, r := range out.Rules {
		rules[r.ID] = r
	}
	require.Contains(t, rules, "hardcoded-secret")
	assert.Equal(t, "critical", rules["hardcoded-secret"].Severity)
	assert.Equal(t, "security", rules["hardcoded-secret"].Category)
	assert.ElementsMatch(t, []string{"javascript", "typescript", "tsx"}, rules["no-var"].Languages)
}
