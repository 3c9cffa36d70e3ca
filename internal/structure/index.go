package structure

import (
	"path"
	"strings"
)

// Index is the project-level view over every file model of one scan. It is
// built after all per-file extraction has finished and is read-only
// afterwards.
type Index struct {
	models  []*Model
	byQName map[string]*Entity
	byName  map[string][]*Entity
	order   []*Entity
}

// NewIndex merges models in input order and links methods to receiver types
// declared in another file of the same directory (Go methods and Rust impl
// blocks may live apart from their type). Linking adds members to the
// models in place.
func NewIndex(models []*Model) *Index {
	x := &Index{
		byQName: make(map[string]*Entity),
		byName:  make(map[string][]*Entity),
	}
	for _, m := range models {
		if m == nil {
			continue
		}
		x.models = append(x.models, m)
		for i := range m.Entities {
			e := &m.Entities[i]
			x.order = append(x.order, e)
			if _, dup := x.byQName[e.QualifiedName]; !dup {
				x.byQName[e.QualifiedName] = e
			}
			x.byName[e.Name] = append(x.byName[e.Name], e)
		}
	}
	x.linkMethods()
	return x
}

func (x *Index) linkMethods() {
	for _, m := range x.models {
		for i := range m.Entities {
			e := &m.Entities[i]
			if e.Kind != KindMethod || len(e.Scope) != 1 {
				continue
			}
			owner := e.Scope[0]
			if m.hasClass(owner) {
				continue
			}
			class := x.classInDir(path.Dir(m.Path), m, owner)
			if class == nil || hasMemberQName(class, e.QualifiedName) {
				continue
			}
			class.Members = append(class.Members, methodMember(e))
		}
	}
}

func (m *Model) hasClass(name string) bool {
	for i := range m.Entities {
		if m.Entities[i].Kind == KindClass && m.Entities[i].Name == name {
			return true
		}
	}
	return false
}

// classInDir finds a class named name in another model of the same
// language and directory.
func (x *Index) classInDir(dir string, from *Model, name string) *Entity {
	for _, m := range x.models {
		if m == from || m.Language != from.Language || path.Dir(m.Path) != dir {
			continue
		}
		for i := range m.Entities {
			e := &m.Entities[i]
			if e.Kind == KindClass && e.Name == name && len(e.Scope) == 0 {
				return e
			}
		}
	}
	return nil
}

func hasMemberQName(class *Entity, qname string) bool {
	for _, mem := range class.Members {
		if mem.QualifiedName == qname {
			return true
		}
	}
	return false
}

// Models returns the indexed models in input order.
func (x *Index) Models() []*Model { return x.models }

// Entities returns every entity, file by file in input order.
func (x *Index) Entities() []*Entity { return x.order }

// Lookup returns the entity with the given qualified name.
func (x *Index) Lookup(qualifiedName string) *Entity {
	return x.byQName[qualifiedName]
}

// ByName returns every entity with the given simple name.
func (x *Index) ByName(name string) []*Entity {
	return x.byName[name]
}

// Classes returns every class in index order.
func (x *Index) Classes() []*Entity {
	var out []*Entity
	for _, e := range x.order {
		if e.Kind == KindClass {
			out = append(out, e)
		}
	}
	return out
}

// Callables returns every function and method in index order.
func (x *Index) Callables() []*Entity {
	var out []*Entity
	for _, e := range x.order {
		if e.Kind.IsCallable() {
			out = append(out, e)
		}
	}
	return out
}

// Class returns the first class with the given simple name.
func (x *Index) Class(name string) *Entity {
	for _, e := range x.byName[name] {
		if e.Kind == KindClass {
			return e
		}
	}
	return nil
}

// ResolveCall maps the callee text of a call site inside caller to a
// callable entity by name. No type information is used: a receiver of
// self/this (or a qualifier naming a class) prefers methods of that class,
// then callables in the caller's file are preferred, then a unique match
// anywhere in the project. Anything else is unresolved and returns nil.
func (x *Index) ResolveCall(caller *Entity, callee string) *Entity {
	qualifier, name := splitCallee(callee)
	if name == "" {
		return nil
	}
	var candidates []*Entity
	for _, e := range x.byName[name] {
		if e.Kind.IsCallable() && !strings.HasPrefix(e.Name, "<anonymous>") {
			candidates = append(candidates, e)
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	owner := caller.Owner()
	if caller.Kind == KindFunction && len(caller.Scope) > 0 {
		owner = ""
	}
	switch qualifier {
	case "", "self", "this", "Self", "super":
		if qualifier != "" || caller.Kind == KindMethod {
			for _, c := range candidates {
				if owner != "" && c.Owner() == owner && c.Range.File == caller.Range.File {
					return c
				}
			}
			for _, c := range candidates {
				if owner != "" && c.Owner() == owner {
					return c
				}
			}
		}
	default:
		for _, c := range candidates {
			if c.Owner() == qualifier {
				return c
			}
		}
	}

	for _, c := range candidates {
		if c.Range.File == caller.Range.File && (qualifier == "" || c.Kind == KindMethod) {
			return c
		}
	}
	if len(candidates) == 1 {
		return candidates[0]
	}
	return nil
}

// splitCallee splits "a.b.c", "a::b" or "a->b" into the last qualifier
// segment and the called name. Call arguments and generics are stripped.
func splitCallee(callee string) (qualifier, name string) {
	s := strings.TrimSpace(callee)
	if i := strings.IndexAny(s, "(<"); i >= 0 {
		s = s[:i]
	}
	s = strings.ReplaceAll(s, "::", ".")
	s = strings.ReplaceAll(s, "->", ".")
	s = strings.ReplaceAll(s, "?.", ".")
	parts := strings.Split(s, ".")
	name = strings.TrimSpace(parts[len(parts)-1])
	if len(parts) > 1 {
		qualifier = strings.TrimSpace(parts[len(parts)-2])
	}
	return qualifier, name
}
