package lang

import "errors"

// Language identifies a source language the engine knows about.
type Language string

const (
	Go         Language = "go"
	Python     Language = "python"
	JavaScript Language = "javascript"
	TypeScript Language = "typescript"
	TSX        Language = "tsx"
	Rust       Language = "rust"
	Java       Language = "java"
)

// Unsupported is returned by Resolve for files no available grammar handles.
const Unsupported Language = ""

// ErrUnsupported reports that a file cannot be analyzed: the extension is
// unknown or the grammar for its language failed to load.
var ErrUnsupported = errors.New("unsupported language")

// IsECMAScript reports whether l belongs to the JavaScript family.
func (l Language) IsECMAScript() bool {
	switch l {
	case JavaScript, TypeScript, TSX:
		return true
	}
	return false
}

func (l Language) String() string {
	if l == Unsupported {
		return "unsupported"
	}
	return string(l)
}

// Capability describes what the engine can do for one language. The scan
// result carries one per language so callers can surface partial analysis.
type Capability struct {
	Language           Language `json:"language"`
	GrammarAvailable   bool     `json:"grammarAvailable"`
	ExtractorAvailable bool     `json:"extractorAvailable"`
	RulesAvailable     bool     `json:"rulesAvailable"`
	LoadError          string   `json:"loadError,omitempty"`
}

// Partial reports whether analysis for the language is incomplete.
func (c Capability) Partial() bool {
	return !c.GrammarAvailable || !c.ExtractorAvailable || !c.RulesAvailable
}
