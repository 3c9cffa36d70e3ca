package structure

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dusk-indust/codelens/internal/syntax"
)

// goExtractor extracts entities from Go source files. Go has no export
// statements; exported identity is carried as the public modifier.
type goExtractor struct{}

var (
	goCallKinds  = set("call_expression")
	goNestedFunc = set("func_literal")
)

func (e *goExtractor) Capabilities() []Capability {
	return []Capability{CapClasses, CapFunctions, CapVariables, CapImports}
}

func (e *goExtractor) Extract(tree *syntax.Tree) []Entity {
	c := newCollector(tree)
	var methods []int
	e.walk(c, tree.Root, 0, &methods)
	e.attachMethods(c, methods)
	return c.entities
}

func (e *goExtractor) walk(c *collector, n *syntax.Node, depth int, methods *[]int) {
	if depth > maxWalkDepth {
		return
	}

	switch n.Kind {
	case "import_spec":
		e.extractImport(c, n)
		return

	case "function_declaration":
		e.extractFunction(c, n, depth, methods)
		return

	case "method_declaration":
		idx := e.extractMethod(c, n, depth, methods)
		*methods = append(*methods, idx)
		return

	case "func_literal":
		e.extractLiteral(c, n, depth, methods)
		return

	case "type_spec":
		e.extractTypeSpec(c, n)
		return

	case "var_spec", "const_spec":
		e.extractVarSpec(c, n)

	case "short_var_declaration":
		e.extractNames(c, n, n.ChildByField("left"))

	case "range_clause":
		e.extractNames(c, n, n.ChildByField("left"))
	}

	for _, child := range n.Children {
		e.walk(c, child, depth+1, methods)
	}
}

func (e *goExtractor) extractImport(c *collector, n *syntax.Node) {
	pathNode := n.ChildByField("path")
	if pathNode == nil {
		return
	}
	path, err := strconv.Unquote(c.text(pathNode))
	if err != nil {
		path = strings.Trim(c.text(pathNode), "\"`")
	}
	name := path[strings.LastIndex(path, "/")+1:]
	if alias := n.ChildByField("name"); alias != nil {
		name = c.text(alias)
	}
	c.add(Entity{
		Name:         name,
		Kind:         KindImport,
		Range:        c.rangeOf(n),
		RawSignature: collapse(c.text(n)),
		Source:       path,
	})
}

func (e *goExtractor) extractFunction(c *collector, n *syntax.Node, depth int, methods *[]int) {
	nameNode := n.ChildByField("name")
	if nameNode == nil {
		return
	}
	name := c.text(nameNode)
	body := n.ChildByField("body")

	idx := c.add(Entity{
		Name:         name,
		Kind:         KindFunction,
		Range:        c.rangeOf(n),
		Modifiers:    []string{goVisibility(name)},
		RawSignature: c.signature(n, body),
		Params:       e.params(c, n.ChildByField("parameters")),
		Calls:        c.calls(body, goCallKinds, goNestedFunc, e.callee(c)),
		BodyHash:     c.fingerprint(body),
	})
	e.walkBody(c, body, name, KindFunction, idx, depth, methods)
}

// extractMethod records a method scoped under its receiver type. Attaching
// it to the type as a member happens after the walk, since the type may be
// declared further down the file.
func (e *goExtractor) extractMethod(c *collector, n *syntax.Node, depth int, methods *[]int) int {
	nameNode := n.ChildByField("name")
	if nameNode == nil {
		return -1
	}
	name := c.text(nameNode)
	body := n.ChildByField("body")
	receiver := e.receiverType(c, n.ChildByField("receiver"))

	c.push(receiver, KindClass, -1)
	idx := c.add(Entity{
		Name:         name,
		Kind:         KindMethod,
		Range:        c.rangeOf(n),
		Modifiers:    []string{goVisibility(name)},
		RawSignature: c.signature(n, body),
		Params:       e.params(c, n.ChildByField("parameters")),
		Calls:        c.calls(body, goCallKinds, goNestedFunc, e.callee(c)),
		BodyHash:     c.fingerprint(body),
	})
	e.walkBody(c, body, name, KindMethod, idx, depth, methods)
	c.pop()
	return idx
}

func (e *goExtractor) extractLiteral(c *collector, n *syntax.Node, depth int, methods *[]int) {
	body := n.ChildByField("body")
	name := anonymousName(n)
	idx := c.add(Entity{
		Name:         name,
		Kind:         KindFunction,
		Range:        c.rangeOf(n),
		RawSignature: c.signature(n, body),
		Params:       e.params(c, n.ChildByField("parameters")),
		Calls:        c.calls(body, goCallKinds, goNestedFunc, e.callee(c)),
		BodyHash:     c.fingerprint(body),
	})
	e.walkBody(c, body, name, KindFunction, idx, depth, methods)
}

func (e *goExtractor) walkBody(c *collector, body *syntax.Node, name string, kind Kind, idx, depth int, methods *[]int) {
	if body == nil {
		return
	}
	c.push(name, kind, idx)
	e.walk(c, body, depth+1, methods)
	c.pop()
}

func (e *goExtractor) extractTypeSpec(c *collector, n *syntax.Node) {
	nameNode := n.ChildByField("name")
	typeNode := n.ChildByField("type")
	if nameNode == nil || typeNode == nil {
		return
	}
	name := c.text(nameNode)

	var stereotype string
	switch typeNode.Kind {
	case "struct_type":
		stereotype = ModStruct
	case "interface_type":
		stereotype = ModInterface
	default:
		// Named non-composite types (type ID string) are not classes.
		return
	}

	idx := c.add(Entity{
		Name:         name,
		Kind:         KindClass,
		Range:        c.rangeOf(n),
		Modifiers:    []string{goVisibility(name), stereotype},
		RawSignature: collapse("type " + name + " " + stereotype),
		BodyHash:     c.fingerprint(typeNode),
	})

	if stereotype == ModStruct {
		e.structFields(c, idx, typeNode.ChildOfKind("field_declaration_list"))
		return
	}
	for _, child := range typeNode.NamedChildren() {
		switch child.Kind {
		case "method_elem":
			mname := c.text(child.ChildByField("name"))
			c.addMember(idx, Member{
				Kind:      MemberMethod,
				Name:      mname,
				Signature: collapse(c.text(child)),
				Modifiers: []string{goVisibility(mname)},
			})
		case "type_elem":
			c.addBase(idx, RelInherits, c.text(child))
		}
	}
}

func (e *goExtractor) structFields(c *collector, idx int, list *syntax.Node) {
	for _, field := range list.NamedChildren() {
		if field.Kind != "field_declaration" {
			continue
		}
		typ := collapse(c.text(field.ChildByField("type")))
		names := field.ChildrenByField("name")
		if len(names) == 0 {
			// Embedded type.
			c.addBase(idx, RelInherits, strings.TrimPrefix(typ, "*"))
			continue
		}
		for _, nn := range names {
			fname := c.text(nn)
			c.addMember(idx, Member{
				Kind:      MemberProperty,
				Name:      fname,
				Type:      typ,
				Modifiers: []string{goVisibility(fname)},
			})
		}
	}
}

func (e *goExtractor) extractVarSpec(c *collector, n *syntax.Node) {
	typ := collapse(c.text(n.ChildByField("type")))
	var mods []string
	if n.Kind == "const_spec" {
		mods = append(mods, "const")
	}
	for _, nn := range n.ChildrenByField("name") {
		if nn.Kind != "identifier" {
			continue
		}
		name := c.text(nn)
		if name == "_" {
			continue
		}
		c.add(Entity{
			Name:         name,
			Kind:         KindVariable,
			Range:        c.rangeOf(nn),
			Modifiers:    append([]string{goVisibility(name)}, mods...),
			RawSignature: collapse(c.text(n)),
			Type:         typ,
			Local:        c.inFunction(),
		})
	}
}

// extractNames records identifiers on the left of := and range clauses.
func (e *goExtractor) extractNames(c *collector, decl, left *syntax.Node) {
	if left == nil {
		return
	}
	for _, id := range left.NamedChildren() {
		if id.Kind != "identifier" {
			continue
		}
		name := c.text(id)
		if name == "_" {
			continue
		}
		c.add(Entity{
			Name:         name,
			Kind:         KindVariable,
			Range:        c.rangeOf(id),
			RawSignature: collapse(c.text(decl)),
			Local:        c.inFunction(),
		})
	}
}

func (e *goExtractor) params(c *collector, list *syntax.Node) []Param {
	var out []Param
	for _, p := range list.NamedChildren() {
		variadic := p.Kind == "variadic_parameter_declaration"
		if p.Kind != "parameter_declaration" && !variadic {
			continue
		}
		typ := collapse(c.text(p.ChildByField("type")))
		if variadic {
			typ = "..." + typ
		}
		names := p.ChildrenByField("name")
		if len(names) == 0 {
			out = append(out, Param{Name: "_", Type: typ, Variadic: variadic})
			continue
		}
		for _, nn := range names {
			out = append(out, Param{Name: c.text(nn), Type: typ, Variadic: variadic})
		}
	}
	return out
}

func (e *goExtractor) receiverType(c *collector, receiver *syntax.Node) string {
	for _, p := range receiver.NamedChildren() {
		if p.Kind == "parameter_declaration" {
			return baseTypeName(c.text(p.ChildByField("type")))
		}
	}
	return "<receiver>"
}

func (e *goExtractor) callee(c *collector) func(*syntax.Node) string {
	return func(n *syntax.Node) string {
		fn := n.ChildByField("function")
		if fn != nil && fn.Kind == "func_literal" {
			return anonymousName(fn)
		}
		return collapse(c.text(fn))
	}
}

// attachMethods adds each method to its receiver type declared in the same
// file. Receivers declared elsewhere are linked by the project Index.
func (e *goExtractor) attachMethods(c *collector, methods []int) {
	for _, idx := range methods {
		if idx < 0 {
			continue
		}
		m := c.entities[idx]
		class := c.findClass(m.Owner())
		if class < 0 {
			continue
		}
		c.addMember(class, methodMember(&m))
	}
}

// methodMember describes a callable entity as a class member.
func methodMember(m *Entity) Member {
	return Member{
		Kind:          MemberMethod,
		Name:          m.Name,
		QualifiedName: m.QualifiedName,
		Signature:     m.RawSignature,
		Modifiers:     m.Modifiers,
	}
}

func goVisibility(name string) string {
	r, _ := utf8.DecodeRuneInString(name)
	if unicode.IsUpper(r) {
		return ModPublic
	}
	return ModPrivate
}
