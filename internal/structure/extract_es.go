package structure

import (
	"strings"

	"github.com/dusk-indust/codelens/internal/syntax"
)

// esExtractor extracts entities from JavaScript, TypeScript and TSX. The
// TypeScript grammars extend the JavaScript one, so a single walker serves
// all three; type-only constructs simply never occur in plain JavaScript.
type esExtractor struct{}

var (
	esCallKinds  = set("call_expression")
	esNestedFunc = set("function_declaration", "generator_function_declaration", "function_expression",
		"function", "generator_function", "arrow_function", "method_definition", "class", "class_declaration")
	esFunctionExprs = set("function_expression", "function", "arrow_function", "generator_function")
)

func (e *esExtractor) Capabilities() []Capability {
	return AllCapabilities
}

func (e *esExtractor) Extract(tree *syntax.Tree) []Entity {
	c := newCollector(tree)
	e.walk(c, tree.Root, 0)
	return c.entities
}

func (e *esExtractor) walk(c *collector, n *syntax.Node, depth int) {
	if depth > maxWalkDepth || n == nil {
		return
	}

	switch n.Kind {
	case "import_statement":
		e.extractImport(c, n)
		return

	case "export_statement":
		e.extractExport(c, n, depth)
		return

	case "class_declaration", "abstract_class_declaration", "class":
		e.extractClass(c, n, depth, false)
		return

	case "interface_declaration":
		e.extractInterface(c, n)
		return

	case "enum_declaration":
		e.extractEnum(c, n)
		return

	case "function_declaration", "generator_function_declaration":
		e.extractFunction(c, n, c.text(n.ChildByField("name")), depth, false)
		return

	case "function_expression", "function", "arrow_function", "generator_function":
		name := c.text(n.ChildByField("name"))
		if name == "" {
			name = anonymousName(n)
		}
		e.extractFunction(c, n, name, depth, false)
		return

	case "lexical_declaration", "variable_declaration":
		e.extractDeclaration(c, n, depth, false)
		return
	}

	for _, child := range n.Children {
		e.walk(c, child, depth+1)
	}
}

func (e *esExtractor) extractImport(c *collector, n *syntax.Node) {
	src := unquote(c.text(n.ChildByField("source")))
	if src == "" {
		return
	}
	name := src
	if clause := n.ChildOfKind("import_clause"); clause != nil {
		name = collapse(c.text(clause))
	}
	c.add(Entity{
		Name:         name,
		Kind:         KindImport,
		Range:        c.rangeOf(n),
		RawSignature: collapse(c.text(n)),
		Source:       src,
	})
}

// extractExport records an Export entity for each exported name and walks
// any exported declaration.
func (e *esExtractor) extractExport(c *collector, n *syntax.Node, depth int) {
	from := unquote(c.text(n.ChildByField("source")))
	isDefault := n.HasChildKind("default")

	if decl := n.ChildByField("declaration"); decl != nil {
		for _, name := range e.declare(c, decl, depth) {
			exported := name
			if isDefault {
				exported = "default"
			}
			e.addExport(c, n, exported, name)
		}
		return
	}

	if clause := n.ChildOfKind("export_clause"); clause != nil {
		for _, spec := range clause.NamedChildren() {
			if spec.Kind != "export_specifier" {
				continue
			}
			local := c.text(spec.ChildByField("name"))
			exported := local
			if alias := spec.ChildByField("alias"); alias != nil {
				exported = c.text(alias)
			}
			e.addExport(c, n, exported, firstNonEmpty(from, local))
		}
		return
	}

	if value := n.ChildByField("value"); value != nil {
		origin := c.text(value)
		if esFunctionExprs[value.Kind] || value.Kind == "class" {
			names := e.declare(c, value, depth)
			if len(names) > 0 {
				origin = names[0]
			}
		} else {
			e.walk(c, value, depth+1)
		}
		e.addExport(c, n, "default", collapse(origin))
		return
	}

	if n.HasChildKind("*") || n.HasChildKind("namespace_export") {
		e.addExport(c, n, "*", from)
	}
}

// declare extracts an exported declaration and returns the declared names.
func (e *esExtractor) declare(c *collector, decl *syntax.Node, depth int) []string {
	before := len(c.entities)
	switch decl.Kind {
	case "class_declaration", "abstract_class_declaration", "class":
		e.extractClass(c, decl, depth, true)
	case "function_declaration", "generator_function_declaration":
		e.extractFunction(c, decl, c.text(decl.ChildByField("name")), depth, true)
	case "function_expression", "function", "arrow_function", "generator_function":
		name := c.text(decl.ChildByField("name"))
		if name == "" {
			name = anonymousName(decl)
		}
		e.extractFunction(c, decl, name, depth, true)
	case "lexical_declaration", "variable_declaration":
		return e.extractDeclaration(c, decl, depth, true)
	case "interface_declaration":
		e.extractInterface(c, decl)
	case "enum_declaration":
		e.extractEnum(c, decl)
	default:
		// type aliases and ambient declarations carry a name but no entity
		if name := decl.ChildByField("name"); name != nil {
			return []string{c.text(name)}
		}
		return nil
	}
	if len(c.entities) > before {
		return []string{c.entities[before].Name}
	}
	return nil
}

func (e *esExtractor) addExport(c *collector, n *syntax.Node, exported, origin string) {
	c.add(Entity{
		Name:         exported,
		Kind:         KindExport,
		Range:        c.rangeOf(n),
		RawSignature: collapse(firstLine(c.text(n))),
		Source:       origin,
	})
}

func (e *esExtractor) extractClass(c *collector, n *syntax.Node, depth int, exported bool) {
	name := c.text(n.ChildByField("name"))
	if name == "" {
		name = anonymousName(n)
	}
	body := n.ChildByField("body")

	mods := []string{ModPublic}
	if exported {
		mods = append(mods, "export")
	}
	if n.Kind == "abstract_class_declaration" {
		mods = append(mods, ModAbstract)
	}
	idx := c.add(Entity{
		Name:         name,
		Kind:         KindClass,
		Range:        c.rangeOf(n),
		Modifiers:    mods,
		RawSignature: c.signature(n, body),
		BodyHash:     c.fingerprint(body),
	})

	if heritage := n.ChildOfKind("class_heritage"); heritage != nil {
		e.heritage(c, idx, heritage)
	}
	if body == nil {
		return
	}

	c.push(name, KindClass, idx)
	for _, member := range body.NamedChildren() {
		e.classMember(c, idx, member, depth+1)
	}
	c.pop()
}

func (e *esExtractor) heritage(c *collector, idx int, h *syntax.Node) {
	for _, child := range h.NamedChildren() {
		switch child.Kind {
		case "extends_clause":
			for _, v := range child.ChildrenByField("value") {
				c.addBase(idx, RelInherits, c.text(v))
			}
		case "implements_clause":
			for _, t := range child.NamedChildren() {
				c.addBase(idx, RelImplements, c.text(t))
			}
		default:
			// JavaScript: class_heritage holds the base expression directly.
			c.addBase(idx, RelInherits, c.text(child))
		}
	}
}

func (e *esExtractor) classMember(c *collector, idx int, m *syntax.Node, depth int) {
	switch m.Kind {
	case "method_definition":
		name := c.text(m.ChildByField("name"))
		body := m.ChildByField("body")
		mods := e.memberModifiers(c, m)
		params := e.params(c, m.ChildByField("parameters"))
		midx := c.add(Entity{
			Name:         name,
			Kind:         KindMethod,
			Range:        c.rangeOf(m),
			Modifiers:    mods,
			RawSignature: c.signature(m, body),
			Params:       params,
			Calls:        c.calls(body, esCallKinds, esNestedFunc, e.callee(c)),
			BodyHash:     c.fingerprint(body),
		})
		c.addMember(idx, methodMember(&c.entities[midx]))
		if name == "constructor" {
			e.parameterProperties(c, idx, m.ChildByField("parameters"))
		}
		if body != nil {
			c.push(name, KindMethod, midx)
			e.walk(c, body, depth+1)
			c.pop()
		}

	case "method_signature", "abstract_method_signature":
		name := c.text(m.ChildByField("name"))
		mods := e.memberModifiers(c, m)
		if m.Kind == "abstract_method_signature" && !contains(mods, ModAbstract) {
			mods = append(mods, ModAbstract)
		}
		c.addMember(idx, Member{
			Kind:      MemberMethod,
			Name:      name,
			Signature: collapse(c.text(m)),
			Modifiers: mods,
		})

	case "field_definition", "public_field_definition":
		nameNode := m.ChildByField("property")
		if nameNode == nil {
			nameNode = m.ChildByField("name")
		}
		name := c.text(nameNode)
		c.addMember(idx, Member{
			Kind:      MemberProperty,
			Name:      name,
			Type:      typeText(c.text(m.ChildByField("type"))),
			Modifiers: e.memberModifiers(c, m),
		})
		e.walk(c, m.ChildByField("value"), depth+1)

	default:
		e.walk(c, m, depth)
	}
}

// parameterProperties adds TypeScript constructor parameters declared with
// an accessibility modifier as class properties.
func (e *esExtractor) parameterProperties(c *collector, idx int, params *syntax.Node) {
	for _, p := range params.NamedChildren() {
		access := p.ChildOfKind("accessibility_modifier")
		if access == nil {
			continue
		}
		name := c.text(p.ChildByField("pattern"))
		if name == "" || c.hasMember(idx, name) {
			continue
		}
		c.addMember(idx, Member{
			Kind:      MemberProperty,
			Name:      name,
			Type:      typeText(c.text(p.ChildByField("type"))),
			Modifiers: []string{c.text(access)},
		})
	}
}

func (e *esExtractor) memberModifiers(c *collector, m *syntax.Node) []string {
	visibility := ModPublic
	var mods []string
	for _, child := range m.Children {
		switch child.Kind {
		case "accessibility_modifier":
			visibility = c.text(child)
		case "static", "async", "get", "set", "readonly", "abstract", "override_modifier":
			mods = append(mods, strings.TrimSuffix(child.Kind, "_modifier"))
		case "private_property_identifier":
			visibility = ModPrivate
		}
	}
	if name := m.ChildByField("name"); name != nil && name.Kind == "private_property_identifier" {
		visibility = ModPrivate
	}
	if p := m.ChildByField("property"); p != nil && p.Kind == "private_property_identifier" {
		visibility = ModPrivate
	}
	return append([]string{visibility}, mods...)
}

func (e *esExtractor) extractInterface(c *collector, n *syntax.Node) {
	name := c.text(n.ChildByField("name"))
	body := n.ChildByField("body")
	idx := c.add(Entity{
		Name:         name,
		Kind:         KindClass,
		Range:        c.rangeOf(n),
		Modifiers:    []string{ModPublic, ModInterface},
		RawSignature: c.signature(n, body),
		BodyHash:     c.fingerprint(body),
	})
	if ext := n.ChildOfKind("extends_type_clause"); ext != nil {
		for _, t := range ext.NamedChildren() {
			c.addBase(idx, RelInherits, c.text(t))
		}
	}
	for _, m := range body.NamedChildren() {
		switch m.Kind {
		case "method_signature":
			c.addMember(idx, Member{
				Kind:      MemberMethod,
				Name:      c.text(m.ChildByField("name")),
				Signature: collapse(c.text(m)),
			})
		case "property_signature":
			c.addMember(idx, Member{
				Kind: MemberProperty,
				Name: c.text(m.ChildByField("name")),
				Type: typeText(c.text(m.ChildByField("type"))),
			})
		}
	}
}

func (e *esExtractor) extractEnum(c *collector, n *syntax.Node) {
	name := c.text(n.ChildByField("name"))
	body := n.ChildByField("body")
	idx := c.add(Entity{
		Name:         name,
		Kind:         KindClass,
		Range:        c.rangeOf(n),
		Modifiers:    []string{ModPublic, ModEnum},
		RawSignature: c.signature(n, body),
		BodyHash:     c.fingerprint(body),
	})
	for _, m := range body.NamedChildren() {
		var mname string
		switch m.Kind {
		case "property_identifier", "string":
			mname = c.text(m)
		case "enum_assignment":
			mname = c.text(m.ChildByField("name"))
		default:
			continue
		}
		c.addMember(idx, Member{Kind: MemberProperty, Name: unquote(mname), Modifiers: []string{ModStatic}})
	}
}

func (e *esExtractor) extractFunction(c *collector, n *syntax.Node, name string, depth int, exported bool) {
	if name == "" {
		return
	}
	body := n.ChildByField("body")
	mods := []string{ModPublic}
	if exported {
		mods = append(mods, "export")
	}
	if n.HasChildKind("async") {
		mods = append(mods, ModAsync)
	}

	var params []Param
	if p := n.ChildByField("parameters"); p != nil {
		params = e.params(c, p)
	} else if p := n.ChildByField("parameter"); p != nil {
		params = []Param{{Name: c.text(p)}}
	}

	idx := c.add(Entity{
		Name:         name,
		Kind:         KindFunction,
		Range:        c.rangeOf(n),
		Modifiers:    mods,
		RawSignature: strings.TrimSuffix(c.signature(n, body), " =>"),
		Params:       params,
		Calls:        c.calls(body, esCallKinds, esNestedFunc, e.callee(c)),
		BodyHash:     c.fingerprint(body),
	})
	if body == nil {
		return
	}
	c.push(name, KindFunction, idx)
	e.walk(c, body, depth+1)
	c.pop()
}

// extractDeclaration handles let/const/var. A declarator initialised with a
// function expression declares a named function instead of a variable.
func (e *esExtractor) extractDeclaration(c *collector, n *syntax.Node, depth int, exported bool) []string {
	keyword := "var"
	if kind := n.ChildByField("kind"); kind != nil {
		keyword = c.text(kind)
	} else if len(n.Children) > 0 && !n.Children[0].Named {
		keyword = n.Children[0].Kind
	}

	var names []string
	for _, d := range n.NamedChildren() {
		if d.Kind != "variable_declarator" {
			continue
		}
		nameNode := d.ChildByField("name")
		value := d.ChildByField("value")
		name := c.text(nameNode)
		if nameNode == nil || nameNode.Kind != "identifier" {
			// Destructuring patterns bind several names; walk for nested
			// functions only.
			e.walk(c, value, depth+1)
			continue
		}
		names = append(names, name)

		if value != nil && esFunctionExprs[value.Kind] {
			e.extractFunction(c, value, name, depth, exported)
			continue
		}

		mods := []string{keyword}
		if exported {
			mods = append(mods, "export")
		}
		c.add(Entity{
			Name:         name,
			Kind:         KindVariable,
			Range:        c.rangeOf(d),
			Modifiers:    mods,
			RawSignature: collapse(firstLine(c.text(n))),
			Type:         typeText(c.text(d.ChildByField("type"))),
			Local:        c.inFunction(),
		})
		e.walk(c, value, depth+1)
	}
	return names
}

func (e *esExtractor) params(c *collector, list *syntax.Node) []Param {
	var out []Param
	for _, p := range list.NamedChildren() {
		var param Param
		switch p.Kind {
		case "identifier":
			param.Name = c.text(p)
		case "assignment_pattern":
			param.Name = c.text(p.ChildByField("left"))
			param.HasDefault = true
		case "rest_pattern":
			param.Name = strings.TrimPrefix(c.text(p), "...")
			param.Variadic = true
		case "object_pattern", "array_pattern":
			param.Name = collapse(c.text(p))
		case "required_parameter", "optional_parameter":
			pattern := p.ChildByField("pattern")
			param.Name = c.text(pattern)
			param.Type = typeText(c.text(p.ChildByField("type")))
			param.HasDefault = p.ChildByField("value") != nil || p.Kind == "optional_parameter"
			if pattern != nil && pattern.Kind == "rest_pattern" {
				param.Name = strings.TrimPrefix(param.Name, "...")
				param.Variadic = true
			}
			if param.Name == "this" {
				continue
			}
		default:
			continue
		}
		out = append(out, param)
	}
	return out
}

func (e *esExtractor) callee(c *collector) func(*syntax.Node) string {
	return func(n *syntax.Node) string {
		fn := n.ChildByField("function")
		if fn == nil {
			return ""
		}
		return collapse(c.text(fn))
	}
}

// typeText strips the leading colon of a TypeScript type annotation.
func typeText(s string) string {
	return collapse(strings.TrimPrefix(strings.TrimSpace(s), ":"))
}

func unquote(s string) string {
	return strings.Trim(s, "\"'`")
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
