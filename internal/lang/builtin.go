package lang

import (
	tree_sitter_go "github.com/tree-sitter/tree-sitter-go/bindings/go"
	tree_sitter_java "github.com/tree-sitter/tree-sitter-java/bindings/go"
	tree_sitter_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	tree_sitter_rust "github.com/tree-sitter/tree-sitter-rust/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

// BuiltinSpecs lists every language compiled into the binary.
func BuiltinSpecs() []Spec {
	return []Spec{
		{ID: Go, Extensions: []string{".go"}, Grammar: tree_sitter_go.Language},
		{ID: Python, Extensions: []string{".py", ".pyi", ".pyw"}, Grammar: tree_sitter_python.Language},
		{ID: JavaScript, Extensions: []string{".js", ".jsx", ".mjs", ".cjs"}, Grammar: tree_sitter_javascript.Language},
		{ID: TypeScript, Extensions: []string{".ts", ".mts", ".cts"}, Grammar: tree_sitter_typescript.LanguageTypescript},
		{ID: TSX, Extensions: []string{".tsx"}, Grammar: tree_sitter_typescript.LanguageTSX},
		{ID: Rust, Extensions: []string{".rs"}, Grammar: tree_sitter_rust.Language},
		{ID: Java, Extensions: []string{".java"}, Grammar: tree_sitter_java.Language},
	}
}

// NewDefaultRegistry builds a Registry over BuiltinSpecs.
func NewDefaultRegistry(opts ...Option) *Registry {
	return NewRegistry(BuiltinSpecs(), opts...)
}
