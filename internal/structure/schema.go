package structure

import "github.com/dusk-indust/codelens/internal/lang"

// --- Enums ---

// Kind classifies a structural entity.
type Kind string

const (
	KindClass    Kind = "class"
	KindFunction Kind = "function"
	KindMethod   Kind = "method"
	KindVariable Kind = "variable"
	KindImport   Kind = "import"
	KindExport   Kind = "export"
)

// IsCallable reports whether entities of this kind carry parameters and calls.
func (k Kind) IsCallable() bool {
	return k == KindFunction || k == KindMethod
}

// MemberKind classifies a class member.
type MemberKind string

const (
	MemberMethod   MemberKind = "method"
	MemberProperty MemberKind = "property"
)

// RelationKind classifies a relation between classes.
type RelationKind string

const (
	RelInherits   RelationKind = "inherits"
	RelImplements RelationKind = "implements"
	RelAssociates RelationKind = "associates"
)

// Capability names one thing an extractor can produce.
type Capability string

const (
	CapClasses   Capability = "classes"
	CapFunctions Capability = "functions"
	CapVariables Capability = "variables"
	CapImports   Capability = "imports"
	CapExports   Capability = "exports"
)

// AllCapabilities lists every extraction capability in a fixed order.
var AllCapabilities = []Capability{CapClasses, CapFunctions, CapVariables, CapImports, CapExports}

// Common modifiers. Extractors add language keywords (async, static, const,
// abstract, ...) verbatim.
const (
	ModPublic    = "public"
	ModPrivate   = "private"
	ModInterface = "interface"
	ModStruct    = "struct"
	ModTrait     = "trait"
	ModEnum      = "enum"
	ModAbstract  = "abstract"
	ModStatic    = "static"
	ModAsync     = "async"
)

// --- Models ---

// Range locates an entity. Lines and columns are 1-based.
type Range struct {
	File      string `json:"file"`
	StartLine int    `json:"startLine"`
	StartCol  int    `json:"startCol"`
	EndLine   int    `json:"endLine"`
	EndCol    int    `json:"endCol"`
}

// Lines returns the number of lines the range spans.
func (r Range) Lines() int {
	return r.EndLine - r.StartLine + 1
}

// Param is one declared parameter of a function or method.
type Param struct {
	Name       string `json:"name"`
	Type       string `json:"type,omitempty"`
	HasDefault bool   `json:"hasDefault,omitempty"`
	Variadic   bool   `json:"variadic,omitempty"`
}

// Member is a method or property of a class, kept in declaration order.
type Member struct {
	Kind          MemberKind `json:"kind"`
	Name          string     `json:"name"`
	QualifiedName string     `json:"qualifiedName,omitempty"` // methods only
	Type          string     `json:"type,omitempty"`
	Signature     string     `json:"signature,omitempty"`
	Modifiers     []string   `json:"modifiers,omitempty"`
}

// Relation is an explicitly declared class relation. Target is the name as
// written; it is not resolved.
type Relation struct {
	Kind   RelationKind `json:"kind"`
	Target string       `json:"target"`
}

// CallSite is one call expression inside a function body.
type CallSite struct {
	Callee string `json:"callee"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
}

// Entity is one declared structural element.
type Entity struct {
	QualifiedName string     `json:"qualifiedName"`
	Name          string     `json:"name"`
	Kind          Kind       `json:"kind"`
	Range         Range      `json:"range"`
	Scope         []string   `json:"scope,omitempty"`
	Modifiers     []string   `json:"modifiers,omitempty"`
	RawSignature  string     `json:"rawSignature,omitempty"`
	Params        []Param    `json:"params,omitempty"`
	Members       []Member   `json:"members,omitempty"`
	Bases         []Relation `json:"bases,omitempty"`
	Calls         []CallSite `json:"calls,omitempty"`
	Type          string     `json:"type,omitempty"`   // declared variable type
	Source        string     `json:"source,omitempty"` // import path, export origin
	Local         bool       `json:"local,omitempty"`  // declared inside a function
	BodyHash      uint64     `json:"bodyHash,omitempty"`
}

// HasModifier reports whether mod is among e's modifiers.
func (e *Entity) HasModifier(mod string) bool {
	for _, m := range e.Modifiers {
		if m == mod {
			return true
		}
	}
	return false
}

// Arity is the number of declared parameters.
func (e *Entity) Arity() int {
	return len(e.Params)
}

// Owner returns the innermost enclosing scope name, or "".
func (e *Entity) Owner() string {
	if len(e.Scope) == 0 {
		return ""
	}
	return e.Scope[len(e.Scope)-1]
}

// Model is the structural content of a single source file.
type Model struct {
	Path     string        `json:"path"`
	Language lang.Language `json:"language"`
	Entities []Entity      `json:"entities"`

	// Missing lists capabilities the language's extractor does not provide.
	// It holds every capability when no extractor exists.
	Missing []Capability `json:"missing,omitempty"`

	// Truncated mirrors the parse: part of the tree was beyond the depth limit.
	Truncated bool `json:"truncated,omitempty"`
}

// OfKind returns the entities of kind k in source order.
func (m *Model) OfKind(k Kind) []*Entity {
	var out []*Entity
	for i := range m.Entities {
		if m.Entities[i].Kind == k {
			out = append(out, &m.Entities[i])
		}
	}
	return out
}

// Classes returns the model's classes.
func (m *Model) Classes() []*Entity { return m.OfKind(KindClass) }

// Callables returns functions and methods in source order.
func (m *Model) Callables() []*Entity {
	var out []*Entity
	for i := range m.Entities {
		if m.Entities[i].Kind.IsCallable() {
			out = append(out, &m.Entities[i])
		}
	}
	return out
}

// Lookup returns the entity with the given qualified name.
func (m *Model) Lookup(qualifiedName string) *Entity {
	for i := range m.Entities {
		if m.Entities[i].QualifiedName == qualifiedName {
			return &m.Entities[i]
		}
	}
	return nil
}

// HasCapability reports whether the model's extractor provides c.
func (m *Model) HasCapability(c Capability) bool {
	for _, missing := range m.Missing {
		if missing == c {
			return false
		}
	}
	return true
}
