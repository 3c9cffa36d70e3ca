package diagram

import (
	"fmt"
	"strings"

	"github.com/dusk-indust/codelens/internal/structure"
)

// classDefs style the change annotations.
var classDefs = []struct {
	status structure.Status
	style  string
}{
	{structure.StatusAdded, "fill:#e6ffed,stroke:#2ea043"},
	{structure.StatusModified, "fill:#fff8c5,stroke:#d4a72c"},
	{structure.StatusRemoved, "fill:#ffebe9,stroke:#cf222e,stroke-dasharray:3 3"},
}

// RenderClass produces a Mermaid classDiagram. Nodes with an added,
// modified or removed status get a matching :::status annotation. An
// empty diagram renders as "".
func RenderClass(d ClassDiagram) string {
	if d.Empty() {
		return ""
	}
	ids := newIDs()
	for _, c := range d.Classes {
		ids.get(c.QualifiedName, c.Name)
	}

	var sb strings.Builder
	sb.WriteString("classDiagram\n")

	annotated := false
	for _, c := range d.Classes {
		id := ids.get(c.QualifiedName, c.Name)
		if len(c.Members) == 0 && c.Stereotype == "" {
			sb.WriteString(fmt.Sprintf("  class %s\n", id))
		} else {
			sb.WriteString(fmt.Sprintf("  class %s {\n", id))
			if c.Stereotype != "" {
				sb.WriteString(fmt.Sprintf("    <<%s>>\n", c.Stereotype))
			}
			for _, m := range c.Members {
				sb.WriteString("    " + memberLine(m) + "\n")
			}
			sb.WriteString("  }\n")
		}
		if annotates(c.Status) {
			annotated = true
		}
	}

	for _, r := range d.Relations {
		from := ids.get(r.From, lastSegment(r.From))
		to := ids.get(r.To, lastSegment(r.To))
		switch r.Kind {
		case structure.RelInherits:
			sb.WriteString(fmt.Sprintf("  %s <|-- %s\n", to, from))
		case structure.RelImplements:
			sb.WriteString(fmt.Sprintf("  %s <|.. %s\n", to, from))
		default:
			sb.WriteString(fmt.Sprintf("  %s --> %s\n", from, to))
		}
	}

	if annotated {
		for _, c := range d.Classes {
			if annotates(c.Status) {
				sb.WriteString(fmt.Sprintf("  class %s:::%s\n", ids.get(c.QualifiedName, c.Name), c.Status))
			}
		}
		writeClassDefs(&sb)
	}
	return sb.String()
}

// RenderSequence produces a Mermaid sequenceDiagram. Changed participants
// get a note naming their status. An empty diagram renders as "".
func RenderSequence(d SequenceDiagram) string {
	if d.Empty() {
		return ""
	}
	ids := make(map[string]string, len(d.Participants))
	for i, p := range d.Participants {
		ids[p.ID] = fmt.Sprintf("P%d", i)
	}

	var sb strings.Builder
	sb.WriteString("sequenceDiagram\n")
	for _, p := range d.Participants {
		label := sanitize(p.Label)
		if p.External {
			label += " (external)"
		}
		sb.WriteString(fmt.Sprintf("  participant %s as %s\n", ids[p.ID], label))
	}
	for _, e := range d.Edges {
		arrow := "->>"
		if e.External {
			arrow = "-->>"
		}
		sb.WriteString(fmt.Sprintf("  %s%s%s: %s\n", ids[e.Caller], arrow, ids[e.Callee], sanitize(e.Label)))
	}
	for _, p := range d.Participants {
		if annotates(p.Status) {
			sb.WriteString(fmt.Sprintf("  Note over %s: %s\n", ids[p.ID], p.Status))
		}
	}
	if d.Truncated {
		sb.WriteString(fmt.Sprintf("  Note over %s: trace truncated\n", ids[d.Participants[0].ID]))
	}
	return sb.String()
}

func annotates(s structure.Status) bool {
	return s == structure.StatusAdded || s == structure.StatusModified || s == structure.StatusRemoved
}

func writeClassDefs(sb *strings.Builder) {
	for _, cd := range classDefs {
		sb.WriteString(fmt.Sprintf("  classDef %s %s\n", cd.status, cd.style))
	}
}

func memberLine(m structure.Member) string {
	vis := visibility(m.Modifiers)
	if m.Kind == structure.MemberMethod {
		return vis + sanitize(m.Name) + "()"
	}
	if m.Type != "" {
		return vis + sanitize(m.Type) + " " + sanitize(m.Name)
	}
	return vis + sanitize(m.Name)
}

func visibility(mods []string) string {
	for _, m := range mods {
		switch m {
		case structure.ModPublic:
			return "+"
		case structure.ModPrivate:
			return "-"
		case "protected":
			return "#"
		}
	}
	return ""
}

// sanitize makes text safe inside Mermaid statements. Generic brackets
// become Mermaid's ~T~ form.
func sanitize(s string) string {
	r := strings.NewReplacer(
		"\n", " ", "\r", "", ";", ",", "#", "",
		"<", "~", ">", "~", "{", "(", "}", ")",
	)
	return strings.Join(strings.Fields(r.Replace(s)), " ")
}

func lastSegment(key string) string {
	if i := strings.LastIndex(key, "::"); i >= 0 {
		key = key[i+2:]
	}
	if i := strings.LastIndex(key, "."); i >= 0 {
		key = key[i+1:]
	}
	return key
}

// mermaidIDs maps keys to identifiers Mermaid accepts: the sanitized name,
// suffixed with a counter when two keys share a name.
type mermaidIDs struct {
	byKey map[string]string
	used  map[string]int
}

func newIDs() *mermaidIDs {
	return &mermaidIDs{byKey: make(map[string]string), used: make(map[string]int)}
}

func (m *mermaidIDs) get(key, name string) string {
	if id, ok := m.byKey[key]; ok {
		return id
	}
	base := identifier(name)
	m.used[base]++
	id := base
	if n := m.used[base]; n > 1 {
		id = fmt.Sprintf("%s_%d", base, n)
	}
	m.byKey[key] = id
	return id
}

func identifier(name string) string {
	var sb strings.Builder
	for _, r := range name {
		if r == '_' || ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') || ('0' <= r && r <= '9') {
			sb.WriteRune(r)
		}
	}
	if sb.Len() == 0 {
		return "N"
	}
	return sb.String()
}
