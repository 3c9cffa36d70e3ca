package diagram

import (
	"strings"
	"unicode"

	"github.com/dusk-indust/codelens/internal/structure"
)

// stereotypes shown on class nodes, in priority order.
var stereotypes = []string{
	structure.ModInterface,
	structure.ModTrait,
	structure.ModEnum,
	structure.ModAbstract,
}

// BuildClassDiagram emits one node per class in index order with members
// in declaration order. Relations come from declared bases plus an
// associates edge for every property whose type names another known class.
// Unresolved base names are kept as edges to the written name.
//
// When changes is non-nil each node carries its status, and classes the
// change set records as removed are appended as member-less nodes.
func BuildClassDiagram(idx *structure.Index, changes *structure.ChangeSet) ClassDiagram {
	var d ClassDiagram
	seen := make(map[Relation]bool)
	addRel := func(r Relation) {
		if !seen[r] {
			seen[r] = true
			d.Relations = append(d.Relations, r)
		}
	}

	for _, c := range idx.Classes() {
		node := ClassNode{
			QualifiedName: c.QualifiedName,
			Name:          c.Name,
			File:          c.Range.File,
			Stereotype:    stereotypeOf(c),
			Members:       append([]structure.Member(nil), c.Members...),
		}
		if changes != nil {
			node.Status, _ = changes.Status(c.QualifiedName)
		}
		d.Classes = append(d.Classes, node)

		for _, b := range c.Bases {
			rel := Relation{From: c.QualifiedName, To: b.Target, Kind: b.Kind}
			if target := resolveClass(idx, c, b.Target); target != nil {
				rel.To, rel.Resolved = target.QualifiedName, true
			}
			addRel(rel)
		}
		for _, m := range c.Members {
			if m.Kind != structure.MemberProperty || m.Type == "" {
				continue
			}
			for _, name := range typeNames(m.Type) {
				target := resolveClass(idx, c, name)
				if target == nil || target == c {
					continue
				}
				addRel(Relation{From: c.QualifiedName, To: target.QualifiedName, Kind: structure.RelAssociates, Resolved: true})
			}
		}
	}

	if changes != nil {
		for _, ch := range changes.Filter(structure.StatusRemoved) {
			if ch.Kind != structure.KindClass {
				continue
			}
			d.Classes = append(d.Classes, ClassNode{
				QualifiedName: ch.Key,
				Name:          ch.Name,
				File:          ch.File,
				Status:        structure.StatusRemoved,
			})
		}
	}
	return d
}

func stereotypeOf(c *structure.Entity) string {
	for _, s := range stereotypes {
		if c.HasModifier(s) {
			return s
		}
	}
	return ""
}

// resolveClass finds the class a written type name refers to, preferring
// one declared in from's own file.
func resolveClass(idx *structure.Index, from *structure.Entity, written string) *structure.Entity {
	name := bareName(written)
	if name == "" {
		return nil
	}
	var first *structure.Entity
	for _, e := range idx.ByName(name) {
		if e.Kind != structure.KindClass {
			continue
		}
		if e.Range.File == from.Range.File {
			return e
		}
		if first == nil {
			first = e
		}
	}
	return first
}

// bareName strips generic arguments and package qualifiers from a type.
func bareName(written string) string {
	s := strings.TrimSpace(written)
	if i := strings.IndexAny(s, "<[("); i >= 0 {
		s = s[:i]
	}
	s = strings.ReplaceAll(s, "::", ".")
	if i := strings.LastIndex(s, "."); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimLeft(s, "*&")
}

// typeNames splits a type expression such as "Map<String, List<Item>>" into
// its identifiers.
func typeNames(typ string) []string {
	return strings.FieldsFunc(typ, func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_')
	})
}
