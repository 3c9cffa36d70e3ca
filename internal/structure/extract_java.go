package structure

import (
	"strings"

	"github.com/dusk-indust/codelens/internal/syntax"
)

// javaExtractor extracts entities from Java source files. Java has no
// export statements; visibility is carried in modifiers.
type javaExtractor struct{}

var (
	javaCallKinds  = set("method_invocation")
	javaNestedFunc = set("lambda_expression", "class_body", "method_declaration", "constructor_declaration")
)

func (e *javaExtractor) Capabilities() []Capability {
	return []Capability{CapClasses, CapFunctions, CapVariables, CapImports}
}

func (e *javaExtractor) Extract(tree *syntax.Tree) []Entity {
	c := newCollector(tree)
	e.walk(c, tree.Root, 0)
	return c.entities
}

func (e *javaExtractor) walk(c *collector, n *syntax.Node, depth int) {
	if depth > maxWalkDepth || n == nil {
		return
	}

	switch n.Kind {
	case "import_declaration":
		e.extractImport(c, n)
		return

	case "class_declaration", "interface_declaration", "enum_declaration", "record_declaration", "annotation_type_declaration":
		e.extractType(c, n, depth)
		return

	case "method_declaration", "constructor_declaration":
		e.extractMethod(c, n, depth)
		return

	case "lambda_expression":
		e.extractLambda(c, n, depth)
		return

	case "local_variable_declaration":
		e.extractLocals(c, n)

	case "enhanced_for_statement":
		if name := n.ChildByField("name"); name != nil && name.Kind == "identifier" {
			c.add(Entity{
				Name:         c.text(name),
				Kind:         KindVariable,
				Range:        c.rangeOf(name),
				RawSignature: collapse(c.text(n.ChildByField("type")) + " " + c.text(name)),
				Type:         collapse(c.text(n.ChildByField("type"))),
				Local:        c.inFunction(),
			})
		}
	}

	for _, child := range n.Children {
		e.walk(c, child, depth+1)
	}
}

func (e *javaExtractor) extractImport(c *collector, n *syntax.Node) {
	target := n.ChildOfKind("scoped_identifier", "identifier")
	if target == nil {
		return
	}
	path := c.text(target)
	name := path[strings.LastIndex(path, ".")+1:]
	if n.HasChildKind("asterisk") {
		path += ".*"
		name = "*"
	}
	var mods []string
	if n.HasChildKind("static") {
		mods = append(mods, ModStatic)
	}
	c.add(Entity{
		Name:         name,
		Kind:         KindImport,
		Range:        c.rangeOf(n),
		Modifiers:    mods,
		RawSignature: collapse(c.text(n)),
		Source:       path,
	})
}

func (e *javaExtractor) extractType(c *collector, n *syntax.Node, depth int) {
	name := c.text(n.ChildByField("name"))
	if name == "" {
		return
	}
	body := n.ChildByField("body")

	mods := e.modifiers(c, n)
	switch n.Kind {
	case "interface_declaration", "annotation_type_declaration":
		mods = append(mods, ModInterface)
	case "enum_declaration":
		mods = append(mods, ModEnum)
	case "record_declaration":
		mods = append(mods, "record")
	}

	idx := c.add(Entity{
		Name:         name,
		Kind:         KindClass,
		Range:        c.rangeOf(n),
		Modifiers:    mods,
		RawSignature: c.signature(n, body),
		BodyHash:     c.fingerprint(body),
	})

	if sc := n.ChildByField("superclass"); sc != nil {
		for _, t := range sc.NamedChildren() {
			c.addBase(idx, RelInherits, c.text(t))
		}
	}
	for _, t := range typeList(n.ChildByField("interfaces")) {
		c.addBase(idx, RelImplements, c.text(t))
	}
	for _, t := range typeList(n.ChildOfKind("extends_interfaces")) {
		c.addBase(idx, RelInherits, c.text(t))
	}
	for _, p := range n.ChildByField("parameters").NamedChildren() {
		if p.Kind != "formal_parameter" {
			continue
		}
		c.addMember(idx, Member{
			Kind:      MemberProperty,
			Name:      c.text(p.ChildByField("name")),
			Type:      collapse(c.text(p.ChildByField("type"))),
			Modifiers: []string{ModPrivate, "final"},
		})
	}
	if body == nil {
		return
	}

	c.push(name, KindClass, idx)
	e.classBody(c, idx, body, depth+1)
	c.pop()
}

func (e *javaExtractor) classBody(c *collector, idx int, body *syntax.Node, depth int) {
	for _, m := range body.NamedChildren() {
		switch m.Kind {
		case "field_declaration", "constant_declaration":
			mods := e.modifiers(c, m)
			if m.Kind == "constant_declaration" {
				mods = append(mods, ModStatic, "final")
			}
			typ := collapse(c.text(m.ChildByField("type")))
			for _, d := range m.ChildrenByField("declarator") {
				c.addMember(idx, Member{
					Kind:      MemberProperty,
					Name:      c.text(d.ChildByField("name")),
					Type:      typ,
					Modifiers: mods,
				})
				e.walk(c, d.ChildByField("value"), depth+1)
			}

		case "enum_constant":
			c.addMember(idx, Member{
				Kind:      MemberProperty,
				Name:      c.text(m.ChildByField("name")),
				Modifiers: []string{ModPublic, ModStatic, "final"},
			})
			e.walk(c, m.ChildByField("body"), depth+1)

		case "enum_body_declarations":
			e.classBody(c, idx, m, depth+1)

		case "method_declaration", "constructor_declaration":
			if midx := e.extractMethod(c, m, depth); midx >= 0 {
				c.addMember(idx, methodMember(&c.entities[midx]))
			}

		default:
			e.walk(c, m, depth+1)
		}
	}
}

// extractMethod returns the new entity's index, or -1.
func (e *javaExtractor) extractMethod(c *collector, n *syntax.Node, depth int) int {
	name := c.text(n.ChildByField("name"))
	if name == "" {
		return -1
	}
	body := n.ChildByField("body")

	kind := KindFunction
	if c.inClass() >= 0 {
		kind = KindMethod
	}
	mods := e.modifiers(c, n)
	if body == nil && !contains(mods, ModAbstract) && n.Kind == "method_declaration" {
		// interface methods without a default body
		mods = append(mods, ModAbstract)
	}

	idx := c.add(Entity{
		Name:         name,
		Kind:         kind,
		Range:        c.rangeOf(n),
		Modifiers:    mods,
		RawSignature: strings.TrimSuffix(c.signature(n, body), ";"),
		Params:       e.params(c, n.ChildByField("parameters")),
		Calls:        c.calls(body, javaCallKinds, javaNestedFunc, e.callee(c)),
		BodyHash:     c.fingerprint(body),
	})
	if body != nil {
		c.push(name, kind, idx)
		e.walk(c, body, depth+1)
		c.pop()
	}
	return idx
}

func (e *javaExtractor) extractLambda(c *collector, n *syntax.Node, depth int) {
	body := n.ChildByField("body")
	name := anonymousName(n)

	var params []Param
	switch p := n.ChildByField("parameters"); {
	case p == nil:
	case p.Kind == "identifier":
		params = []Param{{Name: c.text(p)}}
	case p.Kind == "inferred_parameters":
		for _, id := range p.NamedChildren() {
			params = append(params, Param{Name: c.text(id)})
		}
	default:
		params = e.params(c, p)
	}

	idx := c.add(Entity{
		Name:         name,
		Kind:         KindFunction,
		Range:        c.rangeOf(n),
		RawSignature: c.signature(n, body),
		Params:       params,
		Calls:        c.calls(body, javaCallKinds, javaNestedFunc, e.callee(c)),
		BodyHash:     c.fingerprint(body),
	})
	if body != nil {
		c.push(name, KindFunction, idx)
		e.walk(c, body, depth+1)
		c.pop()
	}
}

func (e *javaExtractor) extractLocals(c *collector, n *syntax.Node) {
	typ := collapse(c.text(n.ChildByField("type")))
	mods := e.modifiers(c, n)
	for _, d := range n.ChildrenByField("declarator") {
		nameNode := d.ChildByField("name")
		if nameNode == nil || nameNode.Kind != "identifier" {
			continue
		}
		c.add(Entity{
			Name:         c.text(nameNode),
			Kind:         KindVariable,
			Range:        c.rangeOf(nameNode),
			Modifiers:    mods,
			RawSignature: collapse(firstLine(c.text(n))),
			Type:         typ,
			Local:        c.inFunction(),
		})
	}
}

func (e *javaExtractor) params(c *collector, list *syntax.Node) []Param {
	var out []Param
	for _, p := range list.NamedChildren() {
		switch p.Kind {
		case "formal_parameter":
			out = append(out, Param{
				Name: c.text(p.ChildByField("name")),
				Type: collapse(c.text(p.ChildByField("type"))),
			})
		case "spread_parameter":
			param := Param{Variadic: true}
			for _, child := range p.NamedChildren() {
				switch child.Kind {
				case "variable_declarator":
					param.Name = c.text(child.ChildByField("name"))
				case "modifiers", "annotation", "marker_annotation":
				default:
					param.Type = collapse(c.text(child)) + "..."
				}
			}
			out = append(out, param)
		}
	}
	return out
}

// modifiers returns the keyword modifiers of a declaration. Annotations are
// skipped; package-private declarations get no visibility keyword.
func (e *javaExtractor) modifiers(c *collector, n *syntax.Node) []string {
	m := n.ChildOfKind("modifiers")
	if m == nil {
		return nil
	}
	var out []string
	for _, child := range m.Children {
		switch child.Kind {
		case "annotation", "marker_annotation":
			continue
		}
		out = append(out, c.text(child))
	}
	return out
}

func (e *javaExtractor) callee(c *collector) func(*syntax.Node) string {
	return func(n *syntax.Node) string {
		name := c.text(n.ChildByField("name"))
		if obj := n.ChildByField("object"); obj != nil {
			return collapse(c.text(obj)) + "." + name
		}
		return name
	}
}

// typeList returns the types of a super_interfaces or extends_interfaces
// clause.
func typeList(n *syntax.Node) []*syntax.Node {
	list := n.ChildOfKind("type_list")
	if list == nil {
		return nil
	}
	return list.NamedChildren()
}
