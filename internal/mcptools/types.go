package mcptools

import (
	"github.com/dusk-indust/codelens/internal/lang"
	"github.com/dusk-indust/codelens/internal/structure"
)

// --- MCP Tool Input Types ---
// These structs define the JSON schema for each MCP tool's input.
// The MCP Go SDK auto-generates JSON schemas from struct tags.

// FileInput is one inline source file.
type FileInput struct {
	Path    string `json:"path" jsonschema:"file path; the extension selects the language"`
	Content string `json:"content" jsonschema:"UTF-8 source text"`
}

// ScanFilesInput is the input for the scan_files MCP tool.
type ScanFilesInput struct {
	Files         []FileInput `json:"files" jsonschema:"source files to analyze"`
	EntryPoints   []string    `json:"entryPoints,omitempty" jsonschema:"functions to trace for a sequence diagram, by qualified name, Owner.name or simple name"`
	Languages     []string    `json:"languages,omitempty" jsonschema:"restrict analysis to these languages (default: all)"`
	DisabledRules []string    `json:"disabledRules,omitempty" jsonschema:"rule IDs to skip"`
}

// ScanFilesOutput is the result of the scan_files MCP tool.
type ScanFilesOutput struct {
	ScanID       string            `json:"scanId"`
	Findings     []FileReport      `json:"findings"`
	Diagrams     []DiagramOutput   `json:"diagrams"`
	Capabilities []lang.Capability `json:"capabilityReport"`
	Skipped      []SkippedFile     `json:"skipped"`
	RuleErrors   []string          `json:"ruleErrors,omitempty"`
	Canceled     bool              `json:"canceled,omitempty"`
}

// DiffFilesInput is the input for the diff_files MCP tool.
type DiffFilesInput struct {
	Before []FileInput `json:"before" jsonschema:"files before the change; a path missing here was added"`
	After  []FileInput `json:"after" jsonschema:"files after the change; a path missing here was removed"`
}

// DiffFilesOutput is the result of the diff_files MCP tool.
type DiffFilesOutput struct {
	ScanID   string             `json:"scanId"`
	Changes  []structure.Change `json:"changes"`
	Summary  ChangeSummary      `json:"summary"`
	Findings []FileReport       `json:"findings"`
	Diagrams []DiagramOutput    `json:"diagrams"`
	Skipped  []SkippedFile      `json:"skipped"`
}

// ListLanguagesInput is the input for the list_languages MCP tool.
type ListLanguagesInput struct{}

// ListLanguagesOutput is the result of the list_languages MCP tool.
type ListLanguagesOutput struct {
	Capabilities []lang.Capability `json:"capabilityReport"`
	Rules        []RuleInfo        `json:"rules"`
}

// --- Shared output shapes ---

// FileReport is the findings of one file.
type FileReport struct {
	Path     string          `json:"path"`
	Language string          `json:"language"`
	Findings []FindingOutput `json:"findings"`
	Missing  []string        `json:"missingCapabilities,omitempty"`
}

// FindingOutput is one rule finding. Severity and category are strings.
type FindingOutput struct {
	RuleID     string `json:"ruleId"`
	Category   string `json:"category"`
	Severity   string `json:"severity"`
	Line       int    `json:"line"`
	Column     int    `json:"column"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`
	Snippet    string `json:"codeSnippet,omitempty"`
}

// DiagramOutput is one rendered diagram with its change annotations.
type DiagramOutput struct {
	Type    string             `json:"diagramType"`
	Format  string             `json:"format"`
	Content string             `json:"content"`
	Changes []structure.Change `json:"changeAnnotations,omitempty"`
}

// SkippedFile is a file that produced no results.
type SkippedFile struct {
	Path     string `json:"path"`
	Language string `json:"language,omitempty"`
	Reason   string `json:"reason"`
	Detail   string `json:"detail,omitempty"`
}

// ChangeSummary counts changes by status.
type ChangeSummary struct {
	Added     int `json:"added"`
	Modified  int `json:"modified"`
	Removed   int `json:"removed"`
	Unchanged int `json:"unchanged"`
}

// RuleInfo describes one registered rule.
type RuleInfo struct {
	ID          string   `json:"id"`
	Category    string   `json:"category"`
	Severity    string   `json:"severity"`
	Description string   `json:"description"`
	Languages   []string `json:"languages,omitempty"`
}
