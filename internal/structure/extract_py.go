package structure

import (
	"strings"

	"github.com/dusk-indust/codelens/internal/syntax"
)

// pyExtractor extracts entities from Python source files. Exports are the
// string entries of a module-level __all__ list.
type pyExtractor struct{}

var (
	pyCallKinds  = set("call")
	pyNestedFunc = set("function_definition", "lambda", "class_definition")
)

func (e *pyExtractor) Capabilities() []Capability {
	return []Capability{CapClasses, CapFunctions, CapVariables, CapImports, CapExports}
}

func (e *pyExtractor) Extract(tree *syntax.Tree) []Entity {
	c := newCollector(tree)
	e.walk(c, tree.Root, 0)
	return c.entities
}

func (e *pyExtractor) walk(c *collector, n *syntax.Node, depth int) {
	if n == nil || depth > maxWalkDepth {
		return
	}

	switch n.Kind {
	case "import_statement", "import_from_statement":
		e.extractImport(c, n)
		return

	case "class_definition":
		e.extractClass(c, n, depth)
		return

	case "function_definition":
		e.extractFunction(c, n, depth)
		return

	case "lambda":
		e.extractLambda(c, n, depth)
		return

	case "assignment":
		e.extractAssignment(c, n)

	case "for_statement":
		e.extractTargets(c, n, n.ChildByField("left"))
	}

	for _, child := range n.Children {
		e.walk(c, child, depth+1)
	}
}

func (e *pyExtractor) extractImport(c *collector, n *syntax.Node) {
	if n.Kind == "import_from_statement" {
		module := c.text(n.ChildByField("module_name"))
		c.add(Entity{
			Name:         module,
			Kind:         KindImport,
			Range:        c.rangeOf(n),
			RawSignature: collapse(c.text(n)),
			Source:       module,
		})
		return
	}
	for _, name := range n.ChildrenByField("name") {
		path, alias := c.text(name), ""
		if name.Kind == "aliased_import" {
			path = c.text(name.ChildByField("name"))
			alias = c.text(name.ChildByField("alias"))
		}
		local := path
		if alias != "" {
			local = alias
		}
		c.add(Entity{
			Name:         local,
			Kind:         KindImport,
			Range:        c.rangeOf(n),
			RawSignature: collapse(c.text(n)),
			Source:       path,
		})
	}
}

func (e *pyExtractor) extractClass(c *collector, n *syntax.Node, depth int) {
	nameNode := n.ChildByField("name")
	if nameNode == nil {
		return
	}
	name := c.text(nameNode)
	body := n.ChildByField("body")

	mods := append([]string{underscoreVisibility(name)}, e.decorators(c, n)...)
	idx := c.add(Entity{
		Name:         name,
		Kind:         KindClass,
		Range:        c.rangeOf(n),
		Modifiers:    mods,
		RawSignature: c.signature(n, body),
		BodyHash:     c.fingerprint(body),
	})

	for _, arg := range n.ChildByField("superclasses").NamedChildren() {
		switch arg.Kind {
		case "identifier", "attribute", "subscript":
			base := c.text(arg)
			c.addBase(idx, RelInherits, base)
			if base == "ABC" || strings.HasSuffix(base, ".ABC") {
				c.entities[idx].Modifiers = append(c.entities[idx].Modifiers, ModAbstract)
			}
		}
	}

	if body == nil {
		return
	}
	c.push(name, KindClass, idx)
	for _, stmt := range body.Children {
		e.classStatement(c, idx, stmt, depth+1)
	}
	c.pop()
}

// classStatement handles a statement directly inside a class body.
// Annotated or assigned names become properties.
func (e *pyExtractor) classStatement(c *collector, idx int, stmt *syntax.Node, depth int) {
	if stmt.Kind == "expression_statement" {
		if a := stmt.ChildOfKind("assignment"); a != nil {
			if left := a.ChildByField("left"); left != nil && left.Kind == "identifier" {
				pname := c.text(left)
				c.addMember(idx, Member{
					Kind:      MemberProperty,
					Name:      pname,
					Type:      collapse(c.text(a.ChildByField("type"))),
					Modifiers: []string{underscoreVisibility(pname), ModStatic},
				})
			}
			e.walk(c, a.ChildByField("right"), depth+1)
			return
		}
	}
	e.walk(c, stmt, depth)
}

func (e *pyExtractor) extractFunction(c *collector, n *syntax.Node, depth int) {
	nameNode := n.ChildByField("name")
	if nameNode == nil {
		return
	}
	name := c.text(nameNode)
	body := n.ChildByField("body")
	classIdx := c.inClass()

	kind := KindFunction
	if classIdx >= 0 {
		kind = KindMethod
	}
	mods := []string{underscoreVisibility(name)}
	if n.HasChildKind("async") {
		mods = append(mods, ModAsync)
	}
	decorators := e.decorators(c, n)
	mods = append(mods, decorators...)

	params := e.params(c, n.ChildByField("parameters"), kind == KindMethod && !contains(decorators, ModStatic))

	idx := c.add(Entity{
		Name:         name,
		Kind:         kind,
		Range:        c.rangeOf(n),
		Modifiers:    mods,
		RawSignature: strings.TrimSuffix(c.signature(n, body), ":"),
		Params:       params,
		Calls:        c.calls(body, pyCallKinds, pyNestedFunc, e.callee(c)),
		BodyHash:     c.fingerprint(body),
	})
	if classIdx >= 0 {
		c.addMember(classIdx, methodMember(&c.entities[idx]))
	}
	if body == nil {
		return
	}

	c.push(name, kind, idx)
	e.walk(c, body, depth+1)
	c.pop()

	if classIdx >= 0 && name == "__init__" {
		e.instanceAttributes(c, classIdx, body)
	}
}

// instanceAttributes adds self.x assignments made in __init__ as
// properties of the class.
func (e *pyExtractor) instanceAttributes(c *collector, classIdx int, body *syntax.Node) {
	syntax.WalkNode(body, func(n *syntax.Node, depth int) bool {
		if depth > maxWalkDepth || (depth > 0 && pyNestedFunc[n.Kind]) {
			return false
		}
		if n.Kind != "assignment" {
			return true
		}
		left := n.ChildByField("left")
		if left == nil || left.Kind != "attribute" || c.text(left.ChildByField("object")) != "self" {
			return true
		}
		pname := c.text(left.ChildByField("attribute"))
		if pname != "" && !c.hasMember(classIdx, pname) {
			c.addMember(classIdx, Member{
				Kind:      MemberProperty,
				Name:      pname,
				Type:      collapse(c.text(n.ChildByField("type"))),
				Modifiers: []string{underscoreVisibility(pname)},
			})
		}
		return true
	})
}

func (e *pyExtractor) extractLambda(c *collector, n *syntax.Node, depth int) {
	body := n.ChildByField("body")
	name := anonymousName(n)
	idx := c.add(Entity{
		Name:         name,
		Kind:         KindFunction,
		Range:        c.rangeOf(n),
		RawSignature: c.signature(n, body),
		Params:       e.params(c, n.ChildByField("parameters"), false),
		Calls:        c.calls(body, pyCallKinds, pyNestedFunc, e.callee(c)),
		BodyHash:     c.fingerprint(body),
	})
	if body == nil {
		return
	}
	c.push(name, KindFunction, idx)
	e.walk(c, body, depth+1)
	c.pop()
}

func (e *pyExtractor) extractAssignment(c *collector, n *syntax.Node) {
	left := n.ChildByField("left")
	if left == nil {
		return
	}
	if left.Kind == "identifier" && c.text(left) == "__all__" && !c.inFunction() && c.inClass() < 0 {
		e.extractAll(c, n.ChildByField("right"))
		return
	}
	e.extractTargets(c, n, left)
}

// extractTargets records plain identifiers bound by an assignment or loop.
func (e *pyExtractor) extractTargets(c *collector, decl, left *syntax.Node) {
	if left == nil {
		return
	}
	var targets []*syntax.Node
	switch left.Kind {
	case "identifier":
		targets = []*syntax.Node{left}
	case "pattern_list", "tuple_pattern":
		for _, child := range left.NamedChildren() {
			if child.Kind == "identifier" {
				targets = append(targets, child)
			}
		}
	}
	for _, id := range targets {
		name := c.text(id)
		if name == "_" {
			continue
		}
		var typ string
		if decl.Kind == "assignment" {
			typ = collapse(c.text(decl.ChildByField("type")))
		}
		c.add(Entity{
			Name:         name,
			Kind:         KindVariable,
			Range:        c.rangeOf(id),
			Modifiers:    []string{underscoreVisibility(name)},
			RawSignature: collapse(firstLine(c.text(decl))),
			Type:         typ,
			Local:        c.inFunction(),
		})
	}
}

func (e *pyExtractor) extractAll(c *collector, list *syntax.Node) {
	for _, item := range list.NamedChildren() {
		if item.Kind != "string" {
			continue
		}
		name := strings.Trim(c.text(item), "\"'")
		c.add(Entity{
			Name:  name,
			Kind:  KindExport,
			Range: c.rangeOf(item),
		})
	}
}

func (e *pyExtractor) params(c *collector, list *syntax.Node, method bool) []Param {
	var out []Param
	for i, p := range list.NamedChildren() {
		var param Param
		switch p.Kind {
		case "identifier":
			param.Name = c.text(p)
		case "typed_parameter":
			inner := p.ChildOfKind("identifier", "list_splat_pattern", "dictionary_splat_pattern")
			param.Name = strings.TrimLeft(c.text(inner), "*")
			param.Type = collapse(c.text(p.ChildByField("type")))
			param.Variadic = inner != nil && inner.Kind != "identifier"
		case "default_parameter", "typed_default_parameter":
			param.Name = c.text(p.ChildByField("name"))
			param.Type = collapse(c.text(p.ChildByField("type")))
			param.HasDefault = true
		case "list_splat_pattern", "dictionary_splat_pattern":
			param.Name = strings.TrimLeft(c.text(p), "*")
			param.Variadic = true
		default:
			// keyword_separator, positional_separator
			continue
		}
		if method && i == 0 && (param.Name == "self" || param.Name == "cls") {
			continue
		}
		out = append(out, param)
	}
	return out
}

// decorators returns modifiers implied by decorators on a decorated
// definition: staticmethod, classmethod, property, abstractmethod.
func (e *pyExtractor) decorators(c *collector, n *syntax.Node) []string {
	if n.Parent == nil || n.Parent.Kind != "decorated_definition" {
		return nil
	}
	var out []string
	for _, d := range n.Parent.Children {
		if d.Kind != "decorator" {
			continue
		}
		text := strings.TrimPrefix(collapse(c.text(d)), "@")
		if i := strings.IndexByte(text, '('); i >= 0 {
			text = text[:i]
		}
		switch text[strings.LastIndex(text, ".")+1:] {
		case "staticmethod":
			out = append(out, ModStatic)
		case "classmethod":
			out = append(out, "classmethod")
		case "property":
			out = append(out, "property")
		case "abstractmethod":
			out = append(out, ModAbstract)
		case "dataclass":
			out = append(out, "dataclass")
		}
	}
	return out
}

func (e *pyExtractor) callee(c *collector) func(*syntax.Node) string {
	return func(n *syntax.Node) string {
		return collapse(c.text(n.ChildByField("function")))
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
