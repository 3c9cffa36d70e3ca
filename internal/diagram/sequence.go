package diagram

import (
	"strings"

	"github.com/dusk-indust/codelens/internal/structure"
)

const (
	// DefaultMaxDepth is the call depth traced when none is configured.
	DefaultMaxDepth = 3

	// maxEdges caps a single trace. Without a visited set, fan-out grows
	// geometrically with depth.
	maxEdges = 1000

	externalPrefix = "external:"
)

// BuildSequenceDiagram traces calls from each entry up to maxDepth levels.
// The traversal carries only a depth counter: recursion is followed until
// the depth runs out. A callee that does not resolve to a project callable
// becomes an edge to an external:<callee> participant and is not traced
// further. When changes is non-nil participants carry their status.
func BuildSequenceDiagram(idx *structure.Index, entries []*structure.Entity, maxDepth int, changes *structure.ChangeSet) SequenceDiagram {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	b := &sequenceBuilder{
		idx:      idx,
		maxDepth: maxDepth,
		changes:  changes,
		seen:     make(map[string]bool),
	}
	for _, e := range entries {
		if e == nil || !e.Kind.IsCallable() {
			continue
		}
		b.d.Entries = append(b.d.Entries, e.QualifiedName)
		b.participant(e)
		b.trace(e, 1)
	}
	return b.d
}

type sequenceBuilder struct {
	idx      *structure.Index
	maxDepth int
	changes  *structure.ChangeSet
	seen     map[string]bool // participants already listed
	d        SequenceDiagram
}

func (b *sequenceBuilder) trace(caller *structure.Entity, depth int) {
	for _, call := range caller.Calls {
		if len(b.d.Edges) >= maxEdges {
			b.d.Truncated = true
			return
		}
		edge := CallEdge{
			Caller: caller.QualifiedName,
			Label:  call.Callee,
			Line:   call.Line,
			Order:  len(b.d.Edges) + 1,
			Depth:  depth,
		}
		target := b.resolve(caller, call.Callee)
		if target == nil {
			edge.Callee = externalPrefix + call.Callee
			edge.External = true
			b.external(edge.Callee, call.Callee)
		} else {
			edge.Callee = target.QualifiedName
			b.participant(target)
		}
		b.d.Edges = append(b.d.Edges, edge)

		if target != nil && depth < b.maxDepth {
			b.trace(target, depth+1)
		}
	}
}

func (b *sequenceBuilder) resolve(caller *structure.Entity, callee string) *structure.Entity {
	if strings.HasPrefix(callee, "<anonymous>@") {
		for _, e := range b.idx.ByName(callee) {
			if e.Range.File == caller.Range.File {
				return e
			}
		}
		return nil
	}
	return b.idx.ResolveCall(caller, callee)
}

func (b *sequenceBuilder) participant(e *structure.Entity) {
	if b.seen[e.QualifiedName] {
		return
	}
	b.seen[e.QualifiedName] = true
	p := Participant{ID: e.QualifiedName, Label: label(e)}
	if b.changes != nil {
		p.Status, _ = b.changes.Status(e.QualifiedName)
	}
	b.d.Participants = append(b.d.Participants, p)
}

func (b *sequenceBuilder) external(id, callee string) {
	if b.seen[id] {
		return
	}
	b.seen[id] = true
	b.d.Participants = append(b.d.Participants, Participant{ID: id, Label: callee, External: true})
}

// label names a callable by its innermost owner, e.g. "UserService.CreateUser".
func label(e *structure.Entity) string {
	if owner := e.Owner(); owner != "" {
		return owner + "." + e.Name
	}
	return e.Name
}
