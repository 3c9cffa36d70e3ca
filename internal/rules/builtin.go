package rules

import "github.com/dusk-indust/codelens/internal/lang"

var (
	ecmascript = []lang.Language{lang.JavaScript, lang.TypeScript, lang.TSX}
	withCatch  = []lang.Language{lang.JavaScript, lang.TypeScript, lang.TSX, lang.Python, lang.Java}
	withEval   = []lang.Language{lang.JavaScript, lang.TypeScript, lang.TSX, lang.Python}
)

// Builtin returns the built-in rule catalogue.
func Builtin() []Rule {
	return []Rule{
		// --- Lexical ---
		{
			ID:          "debug-print",
			Category:    CategoryQuality,
			Severity:    SeverityWarning,
			Description: "Debug print statement left in code",
			Needs:       NeedsTree,
			Check:       checkDebugPrint,
		},
		{
			ID:          "loose-equality",
			Category:    CategoryQuality,
			Severity:    SeverityWarning,
			Description: "Loose equality operator (== or !=)",
			Languages:   ecmascript,
			Needs:       NeedsTree,
			Check:       checkLooseEquality,
		},
		{
			ID:          "no-var",
			Category:    CategoryStyle,
			Severity:    SeverityWarning,
			Description: "var declaration instead of let or const",
			Languages:   ecmascript,
			Needs:       NeedsTree,
			Check:       checkNoVar,
		},
		{
			ID:          "eval-usage",
			Category:    CategorySecurity,
			Severity:    SeverityError,
			Description: "Dynamic code evaluation",
			Languages:   withEval,
			Needs:       NeedsTree,
			Check:       checkEval,
		},
		{
			ID:          "hardcoded-secret",
			Category:    CategorySecurity,
			Severity:    SeverityCritical,
			Description: "Secret-looking name bound to a string literal",
			Needs:       NeedsTree,
			Check:       checkHardcodedSecret,
		},
		{
			ID:          "empty-catch",
			Category:    CategoryQuality,
			Severity:    SeverityWarning,
			Description: "Exception handler that does nothing",
			Languages:   withCatch,
			Needs:       NeedsTree,
			Check:       checkEmptyCatch,
		},
		{
			ID:          "todo-comment",
			Category:    CategoryStyle,
			Severity:    SeverityInfo,
			Description: "TODO, FIXME, XXX or HACK marker",
			Needs:       NeedsTree,
			Check:       checkTodoComment,
		},
		{
			ID:          "nested-loops",
			Category:    CategoryPerformance,
			Severity:    SeverityWarning,
			Description: "Loops nested beyond the configured depth",
			Needs:       NeedsTree,
			Check:       checkNestedLoops,
		},
		{
			ID:          "syntax-error",
			Category:    CategoryQuality,
			Severity:    SeverityError,
			Description: "Source the grammar could not parse",
			Needs:       NeedsTree,
			Check:       checkSyntaxErrors,
		},

		// --- Structural ---
		{
			ID:          "long-function",
			Category:    CategoryQuality,
			Severity:    SeverityWarning,
			Description: "Function longer than the configured line limit",
			Needs:       NeedsModel,
			Check:       checkLongFunction,
		},
		{
			ID:          "too-many-parameters",
			Category:    CategoryStyle,
			Severity:    SeverityWarning,
			Description: "Function declares more parameters than the configured limit",
			Needs:       NeedsModel,
			Check:       checkTooManyParameters,
		},
		{
			ID:          "unused-variable",
			Category:    CategoryQuality,
			Severity:    SeverityWarning,
			Description: "Local variable that is never referenced",
			Needs:       NeedsTree | NeedsModel,
			Check:       checkUnusedVariable,
		},
		{
			ID:          "large-class",
			Category:    CategoryQuality,
			Severity:    SeverityInfo,
			Description: "Class with more members than the configured limit",
			Needs:       NeedsModel,
			Check:       checkLargeClass,
		},
	}
}

// NewDefaultEngine returns an Engine over the built-in catalogue.
func NewDefaultEngine(opts ...EngineOption) *Engine {
	return NewEngine(Builtin(), opts...)
}
