package lang

import (
	"errors"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tree_sitter_go "github.com/tree-sitter/tree-sitter-go/bindings/go"
)

func TestDefaultRegistry_Resolve(t *testing.T) {
	r := NewDefaultRegistry()

	tests := []struct {
		path string
		want Language
	}{
		{"main.go", Go},
		{"pkg/util.py", Python},
		{"stubs/typing.pyi", Python},
		{"web/app.js", JavaScript},
		{"web/App.JSX", JavaScript},
		{"web/lib.mjs", JavaScript},
		{"src/index.ts", TypeScript},
		{"src/View.tsx", TSX},
		{"src/lib.rs", Rust},
		{"src/Main.java", Java},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := r.Resolve(tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRegistry_ResolveUnknownExtension(t *testing.T) {
	r := NewDefaultRegistry()

	got, err := r.Resolve("README.md")
	assert.Equal(t, Unsupported, got)
	assert.True(t, errors.Is(err, ErrUnsupported))
}

func TestRegistry_FailedGrammarIsUnsupported(t *testing.T) {
	r := NewRegistry([]Spec{
		{ID: Go, Extensions: []string{".go"}, Grammar: tree_sitter_go.Language},
		{ID: Ruby, Extensions: []string{".rb"}, Grammar: func() unsafe.Pointer { panic("missing shared object") }},
		{ID: "kotlin", Extensions: []string{".kt"}, Grammar: func() unsafe.Pointer { return nil }},
		{ID: "swift", Extensions: []string{".swift"}},
	})

	for _, path := range []string{"app.rb", "Main.kt", "View.swift"} {
		l, err := r.Resolve(path)
		assert.Equal(t, Unsupported, l, path)
		assert.True(t, errors.Is(err, ErrUnsupported), path)

		detected, ok := r.Detect(path)
		assert.True(t, ok, "still detected: %s", path)
		assert.NotEqual(t, Unsupported, detected)
	}

	ruby, ok := r.Capability(Ruby)
	require.True(t, ok)
	assert.False(t, ruby.GrammarAvailable)
	assert.Contains(t, ruby.LoadError, "missing shared object")

	goCap, ok := r.Capability(Go)
	require.True(t, ok)
	assert.True(t, goCap.GrammarAvailable)
}

func TestRegistry_CapabilityOptions(t *testing.T) {
	r := NewDefaultRegistry(WithExtractors(Go, Python), WithRules(Go))

	goCap, _ := r.Capability(Go)
	assert.True(t, goCap.ExtractorAvailable)
	assert.True(t, goCap.RulesAvailable)
	assert.False(t, goCap.Partial())

	pyCap, _ := r.Capability(Python)
	assert.True(t, pyCap.ExtractorAvailable)
	assert.False(t, pyCap.RulesAvailable)
	assert.True(t, pyCap.Partial())

	caps := r.Capabilities()
	require.Len(t, caps, len(BuiltinSpecs()))
	assert.Equal(t, Go, caps[0].Language, "registration order is preserved")
}

func TestRegistry_Extensions(t *testing.T) {
	r := NewDefaultRegistry()
	assert.Equal(t, []string{".cjs", ".js", ".jsx", ".mjs"}, r.Extensions(JavaScript))
}

// Ruby is only registered in tests to exercise the unavailable-grammar path.
const Ruby Language = "ruby"
