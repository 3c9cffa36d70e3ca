package scan

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
	"unsafe"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/codelens/internal/diagram"
	"github.com/dusk-indust/codelens/internal/lang"
	"github.com/dusk-indust/codelens/internal/rules"
	"github.com/dusk-indust/codelens/internal/structure"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// fixtureFiles loads every fixture under testdata/fixtures with paths
// relative to that directory. Tests run from internal/scan/.
func fixtureFiles(t *testing.T) []File {
	t.Helper()
	root := "../../testdata/fixtures"
	var files []File
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(root, path)
		files = append(files, File{Path: filepath.ToSlash(rel), Content: data})
		return nil
	})
	require.NoError(t, err)
	require.NotEmpty(t, files)
	return files
}

func src(path, content string) File {
	return File{Path: path, Content: []byte(content)}
}

func skipFor(res *Result, path string) *Skip {
	for i := range res.Skipped {
		if res.Skipped[i].Path == path {
			return &res.Skipped[i]
		}
	}
	return nil
}

func findingsFor(res *Result, path string) *FileFindings {
	for i := range res.Findings {
		if res.Findings[i].Path == path {
			return &res.Findings[i]
		}
	}
	return nil
}

func docOf(res *Result, typ diagram.Type) *diagram.Document {
	for i := range res.Diagrams {
		if res.Diagrams[i].Type == typ {
			return &res.Diagrams[i]
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Project scans
// ---------------------------------------------------------------------------

func TestScan_Fixtures(t *testing.T) {
	files := fixtureFiles(t)
	s := New(Config{Workers: 4})

	res, err := s.Scan(context.Background(), Request{Files: files})
	require.NoError(t, err)

	_, err = uuid.Parse(res.ScanID)
	assert.NoError(t, err)
	assert.Empty(t, res.Skipped)
	assert.Empty(t, res.RuleErrors)
	assert.False(t, res.Canceled)

	require.Len(t, res.Findings, len(files))
	for i, f := range res.Findings {
		assert.Equal(t, files[i].Path, f.Path, "findings follow input order")
	}
	legacy := findingsFor(res, "js_project/legacy.js")
	require.NotNil(t, legacy)
	assert.Equal(t, lang.JavaScript, legacy.Language)
	assert.NotEmpty(t, legacy.Findings)

	account := findingsFor(res, "java_project/Account.java")
	require.NotNil(t, account)
	assert.Equal(t, []structure.Capability{structure.CapExports}, account.Missing)

	require.Len(t, res.Capabilities, len(lang.BuiltinSpecs()))
	for _, c := range res.Capabilities {
		assert.False(t, c.Partial(), "%s", c.Language)
	}

	class := docOf(res, diagram.TypeClass)
	require.NotNil(t, class)
	assert.Equal(t, diagram.FormatMermaid, class.Format)
	assert.Contains(t, class.Content, "class Cart {")
	assert.Nil(t, docOf(res, diagram.TypeSequence), "no entry points, no sequence diagram")

	assert.Len(t, res.Models, len(files))
	assert.NotNil(t, res.Index.Class("User"))
}

func TestScan_OrderIndependentOfWorkers(t *testing.T) {
	files := fixtureFiles(t)

	one, err := New(Config{Workers: 1}).Scan(context.Background(), Request{Files: files})
	require.NoError(t, err)
	many, err := New(Config{Workers: 8}).Scan(context.Background(), Request{Files: files})
	require.NoError(t, err)

	assert.Equal(t, one.Findings, many.Findings)
	assert.Equal(t, one.Diagrams, many.Diagrams)
}

func TestScan_EntryPoints(t *testing.T) {
	files := fixtureFiles(t)
	s := New(Config{MaxCallDepth: 2})

	res, err := s.Scan(context.Background(), Request{Files: files, EntryPoints: []string{"UserService.CreateUser"}})
	require.NoError(t, err)

	seq := docOf(res, diagram.TypeSequence)
	require.NotNil(t, seq)
	assert.Contains(t, seq.Content, "participant P0 as UserService.CreateUser")
	assert.Contains(t, seq.Content, "fmt.Errorf (external)")
}

// ---------------------------------------------------------------------------
// Skips
// ---------------------------------------------------------------------------

func TestScan_FileLevelFailuresAreSkips(t *testing.T) {
	s := New(Config{MaxFileBytes: 64})
	files := []File{
		src("ok.py", "def f():\n    return 1\n"),
		src("README.md", "# hello\n"),
		src("big.py", "x = 1\n"+strings.Repeat("# padding\n", 20)),
		{Path: "bad.py", Content: []byte{'x', ' ', '=', ' ', 0xff, 0xfe, '\n'}},
	}

	res, err := s.Scan(context.Background(), Request{Files: files})
	require.NoError(t, err, "file failures never fail the scan")

	require.NotNil(t, findingsFor(res, "ok.py"))
	assert.Equal(t, SkipUnsupported, skipFor(res, "README.md").Reason)
	assert.Equal(t, SkipTooLarge, skipFor(res, "big.py").Reason)
	assert.Equal(t, lang.Python, skipFor(res, "big.py").Language)
	assert.Equal(t, SkipEncoding, skipFor(res, "bad.py").Reason)
	assert.Len(t, res.Skipped, 3)
}

func TestScan_UnavailableGrammarIsReported(t *testing.T) {
	specs := append(lang.BuiltinSpecs(), lang.Spec{
		ID:         "cobol",
		Extensions: []string{".cbl"},
		Grammar:    func() unsafe.Pointer { panic("shared object missing") },
	})
	s := New(Config{}, WithSpecs(specs))

	res, err := s.Scan(context.Background(), Request{Files: []File{
		src("PAY.cbl", "IDENTIFICATION DIVISION.\n"),
		src("main.go", "package main\n\nfunc main() {}\n"),
	}})
	require.NoError(t, err)

	assert.Equal(t, SkipUnsupported, skipFor(res, "PAY.cbl").Reason)
	assert.NotNil(t, findingsFor(res, "main.go"))

	var cobol *lang.Capability
	for i := range res.Capabilities {
		if res.Capabilities[i].Language == "cobol" {
			cobol = &res.Capabilities[i]
		}
	}
	require.NotNil(t, cobol)
	assert.False(t, cobol.GrammarAvailable)
	assert.False(t, cobol.ExtractorAvailable)
	assert.True(t, cobol.RulesAvailable, "language-agnostic rules still apply")
	assert.True(t, cobol.Partial())
}

func TestScan_LanguageAllowList(t *testing.T) {
	s := New(Config{Languages: []lang.Language{lang.Go}})
	res, err := s.Scan(context.Background(), Request{Files: []File{
		src("a.go", "package a\n"),
		src("b.py", "x = 1\n"),
	}})
	require.NoError(t, err)

	assert.NotNil(t, findingsFor(res, "a.go"))
	skip := skipFor(res, "b.py")
	require.NotNil(t, skip)
	assert.Equal(t, SkipUnsupported, skip.Reason)
	assert.Contains(t, skip.Detail, "not enabled")
}

func TestScan_FileTimeoutIsSkip(t *testing.T) {
	s := New(Config{FileTimeout: time.Nanosecond})
	res, err := s.Scan(context.Background(), Request{Files: []File{src("slow.py", "x = 1\n")}})
	require.NoError(t, err, "a per-file timeout is not a scan failure")

	skip := skipFor(res, "slow.py")
	require.NotNil(t, skip)
	assert.Equal(t, SkipTimeout, skip.Reason)
}

func TestScan_RuleFailureIsolated(t *testing.T) {
	boom := rules.Rule{
		ID:    "boom",
		Needs: rules.NeedsTree,
		Check: func(*rules.Input, *rules.Reporter) { panic("bad rule") },
	}
	s := New(Config{}, WithRules(append(rules.Builtin(), boom)))

	res, err := s.Scan(context.Background(), Request{Files: []File{src("a.js", "var x = 1;\n")}})
	require.NoError(t, err)

	require.Len(t, res.RuleErrors, 1)
	assert.Equal(t, "boom", res.RuleErrors[0].RuleID)
	ff := findingsFor(res, "a.js")
	require.NotNil(t, ff)
	require.Len(t, ff.Findings, 1)
	assert.Equal(t, "no-var", ff.Findings[0].RuleID)
}

func TestScan_DisabledRules(t *testing.T) {
	s := New(Config{DisabledRules: []string{"no-var"}})
	res, err := s.Scan(context.Background(), Request{Files: []File{src("a.js", "var x = 1;\n")}})
	require.NoError(t, err)
	assert.Empty(t, findingsFor(res, "a.js").Findings)
}

func TestScan_RequestOverrides(t *testing.T) {
	s := New(Config{})
	files := []File{
		src("a.js", "var x = 1;\n"),
		src("b.py", "print(1)\n"),
	}

	res, err := s.Scan(context.Background(), Request{
		Files:         files,
		Languages:     []lang.Language{lang.JavaScript},
		DisabledRules: []string{"no-var"},
	})
	require.NoError(t, err)
	assert.Empty(t, findingsFor(res, "a.js").Findings)
	skip := skipFor(res, "b.py")
	require.NotNil(t, skip)
	assert.Contains(t, skip.Detail, "not enabled")

	// The scanner keeps its own rules and languages for later requests.
	res, err = s.Scan(context.Background(), Request{Files: files})
	require.NoError(t, err)
	require.Len(t, findingsFor(res, "a.js").Findings, 1)
	assert.Equal(t, "no-var", findingsFor(res, "a.js").Findings[0].RuleID)
	assert.NotNil(t, findingsFor(res, "b.py"))
	assert.Len(t, s.Engine().Rules(), len(rules.Builtin()))
}

func TestScan_RequestCannotWidenAllowList(t *testing.T) {
	s := New(Config{Languages: []lang.Language{lang.Go}})
	res, err := s.Scan(context.Background(), Request{
		Files:     []File{src("b.py", "x = 1\n")},
		Languages: []lang.Language{lang.Python},
	})
	require.NoError(t, err)
	require.NotNil(t, skipFor(res, "b.py"))
}

// ---------------------------------------------------------------------------
// Cancellation
// ---------------------------------------------------------------------------

func TestScan_CanceledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := New(Config{}).Scan(ctx, Request{Files: []File{src("a.py", "x = 1\n"), src("b.py", "y = 2\n")}})
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res, "a result is returned alongside the error")
	assert.True(t, res.Canceled)
	assert.Empty(t, res.Findings)
	require.Len(t, res.Skipped, 2)
	for _, s := range res.Skipped {
		assert.Equal(t, SkipCanceled, s.Reason)
	}
}

func TestScan_CancelKeepsCompletedFiles(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var once sync.Once
	s := New(Config{Workers: 1}, WithProgress(func(ev ProgressEvent) {
		if ev.Status == ProgressComplete {
			once.Do(cancel)
		}
	}))

	files := []File{
		src("first.js", "var a = 1;\n"),
		src("second.js", "var b = 2;\n"),
		src("third.js", "var c = 3;\n"),
	}
	res, err := s.Scan(ctx, Request{Files: files})
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)

	require.Len(t, res.Findings, 1)
	assert.Equal(t, "first.js", res.Findings[0].Path)
	assert.NotEmpty(t, res.Findings[0].Findings)
	assert.Equal(t, SkipCanceled, skipFor(res, "second.js").Reason)
	assert.Equal(t, SkipCanceled, skipFor(res, "third.js").Reason)
	assert.True(t, res.Canceled)
}

// ---------------------------------------------------------------------------
// PR scans
// ---------------------------------------------------------------------------

func TestScan_PullRequest(t *testing.T) {
	before := src("mod.py", `def helper(x):
    return x


def f(x):
    return helper(x) + 1


def g():
    return 2
`)
	after := src("mod.py", `def helper(x):
    return x


def f(x):
    return helper(x) + 2


def h():
    return f(3)
`)

	res, err := New(Config{}).Scan(context.Background(), Request{Files: []File{after}, Before: []File{before}})
	require.NoError(t, err)
	require.NotNil(t, res.Changes)

	status := func(key string) structure.Status {
		s, ok := res.Changes.Status(key)
		require.True(t, ok, key)
		return s
	}
	assert.Equal(t, structure.StatusModified, status("mod.py::f/1"))
	assert.Equal(t, structure.StatusRemoved, status("mod.py::g/0"))
	assert.Equal(t, structure.StatusAdded, status("mod.py::h/0"))
	assert.Equal(t, structure.StatusUnchanged, status("mod.py::helper/1"))

	assert.Nil(t, docOf(res, diagram.TypeClass))
	seq := docOf(res, diagram.TypeSequence)
	require.NotNil(t, seq)
	assert.Contains(t, seq.Content, "participant P0 as f\n")
	assert.Contains(t, seq.Content, "Note over P0: modified\n")
	assert.Len(t, seq.Changes.Changes, 3, "f, helper and h appear in the trace")
}

func TestScan_PullRequestAddedFile(t *testing.T) {
	res, err := New(Config{}).Scan(context.Background(), Request{
		Files:  []File{src("new.go", "package n\n\nfunc Fresh() {}\n")},
		Before: []File{},
	})
	require.NoError(t, err)
	s, ok := res.Changes.Status("new.go::Fresh/0")
	require.True(t, ok)
	assert.Equal(t, structure.StatusAdded, s)
}

func TestScan_PullRequestSkippedAfterFileIsNotRemoved(t *testing.T) {
	small := "package a\n\nfunc F() {}\n\nfunc G() {}\n"
	big := small + "\n// " + strings.Repeat("padding ", 40) + "\n"
	other := src("b.go", "package a\n\nfunc H() {}\n")

	s := New(Config{MaxFileBytes: 150})
	res, err := s.Scan(context.Background(), Request{
		Files:  []File{src("a.go", big), other},
		Before: []File{src("a.go", small), other},
	})
	require.NoError(t, err)

	skip := skipFor(res, "a.go")
	require.NotNil(t, skip)
	assert.Equal(t, SkipTooLarge, skip.Reason)

	require.NotNil(t, res.Changes)
	_, ok := res.Changes.Status("a.go::F/0")
	assert.False(t, ok, "a skipped file contributes no changes")
	assert.Empty(t, res.Changes.Changed())
	st, ok := res.Changes.Status("b.go::H/0")
	require.True(t, ok)
	assert.Equal(t, structure.StatusUnchanged, st)
}

func TestScan_PullRequestSkippedBeforeFileIsNotAdded(t *testing.T) {
	res, err := New(Config{}).Scan(context.Background(), Request{
		Files:  []File{src("a.py", "def f():\n    return 1\n")},
		Before: []File{{Path: "a.py", Content: []byte("x = '\xff\xfe'\n")}},
	})
	require.NoError(t, err)
	require.NotNil(t, res.Changes)
	_, ok := res.Changes.Status("a.py::f/0")
	assert.False(t, ok)
	assert.Empty(t, res.Changes.Changed())
}

// ---------------------------------------------------------------------------
// Progress
// ---------------------------------------------------------------------------

func TestScan_ProgressEvents(t *testing.T) {
	var mu sync.Mutex
	seen := make(map[string][]ProgressStatus)
	s := New(Config{Workers: 2}, WithProgress(func(ev ProgressEvent) {
		mu.Lock()
		defer mu.Unlock()
		seen[ev.File] = append(seen[ev.File], ev.Status)
	}))

	_, err := s.Scan(context.Background(), Request{Files: []File{
		src("a.go", "package a\n"),
		src("notes.txt", "hi\n"),
	}})
	require.NoError(t, err)

	assert.Equal(t, []ProgressStatus{ProgressPending, ProgressWorking, ProgressComplete}, seen["a.go"])
	assert.Equal(t, []ProgressStatus{ProgressPending, ProgressWorking, ProgressSkipped}, seen["notes.txt"])
}

func TestProgressReporter_EmitAndSubscribe(t *testing.T) {
	pr := NewProgressReporter()
	defer pr.Close()

	want := ProgressEvent{ScanID: "s", File: "a.go", Status: ProgressWorking}
	pr.Emit(want)

	select {
	case got := <-pr.Subscribe():
		assert.Equal(t, want, got)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for progress event")
	}
}

func TestProgressReporter_EmitWhenFull_DoesNotBlock(t *testing.T) {
	pr := NewProgressReporter()
	defer pr.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			pr.Emit(ProgressEvent{File: "f", Status: ProgressWorking})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Emit blocked when the channel was full")
	}
}

func TestProgressReporter_CountsDroppedEvents(t *testing.T) {
	pr := NewProgressReporter()
	defer pr.Close()

	for i := 0; i < 70; i++ {
		pr.Emit(ProgressEvent{File: "f", Status: ProgressComplete})
	}
	pr.Emit(ProgressEvent{File: "g", Status: ProgressSkipped})

	assert.Equal(t, 70, pr.Count(ProgressComplete))
	assert.Equal(t, "70 complete, 1 skipped", pr.Summary())
	assert.Len(t, pr.Subscribe(), 64, "the stream holds at most the buffer")
}

func TestScan_WithProgressReporter(t *testing.T) {
	pr := NewProgressReporter()
	s := New(Config{}, WithProgress(pr.Emit))

	_, err := s.Scan(context.Background(), Request{Files: []File{
		src("a.go", "package a\n"),
		src("b.rb", "puts 1\n"),
	}})
	require.NoError(t, err)
	pr.Close()

	assert.Equal(t, "1 complete, 1 skipped", pr.Summary())
	var events []ProgressEvent
	for ev := range pr.Subscribe() {
		events = append(events, ev)
	}
	assert.Len(t, events, 6)
}

func TestFormatProgress(t *testing.T) {
	tests := []struct {
		ev   ProgressEvent
		want string
	}{
		{ProgressEvent{File: "a.go", Status: ProgressPending}, "  ○ a.go (pending)"},
		{ProgressEvent{File: "a.go", Status: ProgressWorking}, "  ● a.go..."},
		{ProgressEvent{File: "a.go", Status: ProgressComplete, Message: "2 findings"}, "  ✓ a.go 2 findings"},
		{ProgressEvent{File: "a.md", Status: ProgressSkipped, Message: "unsupported"}, "  ✗ a.md skipped: unsupported"},
		{ProgressEvent{File: "x", Status: "weird"}, "  ? x (unknown status)"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatProgress(tt.ev))
	}
}
