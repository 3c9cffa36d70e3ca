package rules

import (
	"fmt"
	"sort"
	"strings"
)

// Severity is ordered: info < warning < error < critical.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
	SeverityCritical
)

var severityNames = [...]string{"info", "warning", "error", "critical"}

func (s Severity) String() string {
	if s < SeverityInfo || s > SeverityCritical {
		return fmt.Sprintf("Severity(%d)", int(s))
	}
	return severityNames[s]
}

// ParseSeverity converts a lowercase severity name.
func ParseSeverity(name string) (Severity, error) {
	for i, n := range severityNames {
		if strings.EqualFold(n, name) {
			return Severity(i), nil
		}
	}
	return SeverityInfo, fmt.Errorf("unknown severity %q", name)
}

func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Severity) UnmarshalText(b []byte) error {
	v, err := ParseSeverity(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Category groups rules by concern.
type Category string

const (
	CategoryStyle       Category = "style"
	CategorySecurity    Category = "security"
	CategoryPerformance Category = "performance"
	CategoryQuality     Category = "quality"
)

// Finding is one reported issue. Findings are values; nothing mutates them
// after the rule that produced them returns.
type Finding struct {
	RuleID     string   `json:"ruleId"`
	Category   Category `json:"category"`
	Severity   Severity `json:"severity"`
	FilePath   string   `json:"filePath"`
	Line       int      `json:"line"`
	Column     int      `json:"column,omitempty"`
	Message    string   `json:"message"`
	Suggestion string   `json:"suggestion,omitempty"`
	Snippet    string   `json:"codeSnippet,omitempty"`
}

// SortFindings orders findings by line, column, then rule ID.
func SortFindings(fs []Finding) {
	sort.SliceStable(fs, func(i, j int) bool {
		a, b := fs[i], fs[j]
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		if a.Column != b.Column {
			return a.Column < b.Column
		}
		return a.RuleID < b.RuleID
	})
}

// RuleError records a rule that failed on one file. The rule's findings
// for that file are dropped; nothing else is affected.
type RuleError struct {
	RuleID  string `json:"ruleId"`
	File    string `json:"file"`
	Message string `json:"message"`
}

func (e RuleError) Error() string {
	return fmt.Sprintf("rule %s on %s: %s", e.RuleID, e.File, e.Message)
}
