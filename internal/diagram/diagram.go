// Package diagram derives class and sequence diagram models from the
// project index and renders them as Mermaid markup.
package diagram

import "github.com/dusk-indust/codelens/internal/structure"

// Type names a diagram kind.
type Type string

const (
	TypeClass    Type = "class"
	TypeSequence Type = "sequence"
)

// FormatMermaid is the only markup the renderer produces.
const FormatMermaid = "mermaid"

// ClassNode is one class in a class diagram.
type ClassNode struct {
	QualifiedName string             `json:"qualifiedName"`
	Name          string             `json:"name"`
	File          string             `json:"file"`
	Stereotype    string             `json:"stereotype,omitempty"`
	Members       []structure.Member `json:"members"`
	Status        structure.Status   `json:"status,omitempty"`
}

// Relation is an edge between two classes. To holds the target's
// qualified name when it resolved to a known class, otherwise the name as
// written in the source.
type Relation struct {
	From     string                 `json:"from"`
	To       string                 `json:"to"`
	Kind     structure.RelationKind `json:"kind"`
	Resolved bool                   `json:"resolved"`
}

// ClassDiagram is the class view of a project.
type ClassDiagram struct {
	Classes   []ClassNode `json:"classes"`
	Relations []Relation  `json:"relations"`
}

// Empty reports whether the diagram has nothing to draw.
func (d ClassDiagram) Empty() bool {
	return len(d.Classes) == 0
}

// Keys returns the qualified names of every class in the diagram.
func (d ClassDiagram) Keys() []string {
	out := make([]string, 0, len(d.Classes))
	for _, c := range d.Classes {
		out = append(out, c.QualifiedName)
	}
	return out
}

// Participant is a lifeline in a sequence diagram.
type Participant struct {
	ID       string           `json:"id"` // qualified name, or external:<callee>
	Label    string           `json:"label"`
	External bool             `json:"external,omitempty"`
	Status   structure.Status `json:"status,omitempty"`
}

// CallEdge is one call recorded while tracing. Order is the 1-based
// position in trace order; Depth is 1 for calls made by an entry.
type CallEdge struct {
	Caller   string `json:"caller"`
	Callee   string `json:"callee"`
	Label    string `json:"label"`
	Line     int    `json:"line"`
	Order    int    `json:"order"`
	Depth    int    `json:"depth"`
	External bool   `json:"external,omitempty"`
}

// SequenceDiagram is the call trace from one or more entry callables.
type SequenceDiagram struct {
	Entries      []string      `json:"entries"`
	Participants []Participant `json:"participants"`
	Edges        []CallEdge    `json:"edges"`

	// Truncated is set when the edge budget ran out before the depth limit.
	Truncated bool `json:"truncated,omitempty"`
}

// Empty reports whether the diagram has nothing to draw.
func (d SequenceDiagram) Empty() bool {
	return len(d.Edges) == 0
}

// Keys returns the participant IDs that are entity qualified names.
func (d SequenceDiagram) Keys() []string {
	var out []string
	for _, p := range d.Participants {
		if !p.External {
			out = append(out, p.ID)
		}
	}
	return out
}

// Document is a rendered diagram with the change annotations relevant to it.
type Document struct {
	Type    Type                `json:"diagramType"`
	Format  string              `json:"format"`
	Content string              `json:"content"`
	Changes structure.ChangeSet `json:"changeAnnotations"`
}

// ClassDocument renders d and attaches the subset of changes it shows.
func ClassDocument(d ClassDiagram, changes *structure.ChangeSet) Document {
	doc := Document{Type: TypeClass, Format: FormatMermaid, Content: RenderClass(d)}
	if changes != nil {
		doc.Changes = changes.Subset(d.Keys())
	}
	return doc
}

// SequenceDocument renders d and attaches the subset of changes it shows.
func SequenceDocument(d SequenceDiagram, changes *structure.ChangeSet) Document {
	doc := Document{Type: TypeSequence, Format: FormatMermaid, Content: RenderSequence(d)}
	if changes != nil {
		doc.Changes = changes.Subset(d.Keys())
	}
	return doc
}
