package structure

import (
	"strconv"
	"strings"

	"github.com/dusk-indust/codelens/internal/syntax"
)

// rsExtractor extracts entities from Rust source files. Structs, enums and
// traits are classes; impl blocks attach their functions to the implementing
// type and record trait implementations. `pub use` re-exports are exports.
type rsExtractor struct{}

var (
	rsCallKinds  = set("call_expression")
	rsNestedFunc = set("closure_expression", "function_item")
)

// pendingImpl is an impl block whose target type was not yet declared when
// the block was seen.
type pendingImpl struct {
	typeName string
	trait    string
	methods  []int
}

func (e *rsExtractor) Capabilities() []Capability {
	return AllCapabilities
}

func (e *rsExtractor) Extract(tree *syntax.Tree) []Entity {
	c := newCollector(tree)
	var impls []pendingImpl
	e.walk(c, tree.Root, 0, &impls)

	for _, impl := range impls {
		class := c.findClass(impl.typeName)
		if class < 0 {
			continue
		}
		if impl.trait != "" {
			c.addBase(class, RelImplements, impl.trait)
		}
		for _, m := range impl.methods {
			c.addMember(class, methodMember(&c.entities[m]))
		}
	}
	return c.entities
}

func (e *rsExtractor) walk(c *collector, n *syntax.Node, depth int, impls *[]pendingImpl) {
	if depth > maxWalkDepth || n == nil {
		return
	}

	switch n.Kind {
	case "use_declaration":
		e.extractUse(c, n)
		return

	case "mod_item":
		body := n.ChildByField("body")
		if body != nil {
			c.push(c.text(n.ChildByField("name")), scopeModule, -1)
			e.walk(c, body, depth+1, impls)
			c.pop()
		}
		return

	case "struct_item":
		e.extractStruct(c, n)
		return

	case "enum_item":
		e.extractEnum(c, n)
		return

	case "trait_item":
		e.extractTrait(c, n, depth, impls)
		return

	case "impl_item":
		e.extractImpl(c, n, depth, impls)
		return

	case "function_item":
		e.extractFunction(c, n, depth, impls)
		return

	case "closure_expression":
		e.extractClosure(c, n, depth, impls)
		return

	case "const_item", "static_item":
		e.extractItemVariable(c, n)

	case "let_declaration":
		e.extractLet(c, n)
	}

	for _, child := range n.Children {
		e.walk(c, child, depth+1, impls)
	}
}

func (e *rsExtractor) extractUse(c *collector, n *syntax.Node) {
	arg := n.ChildByField("argument")
	if arg == nil {
		return
	}
	path := collapse(c.text(arg))
	name := path
	if i := strings.LastIndex(path, "::"); i >= 0 && !strings.HasSuffix(path, "}") {
		name = path[i+2:]
	}
	c.add(Entity{
		Name:         name,
		Kind:         KindImport,
		Range:        c.rangeOf(n),
		RawSignature: collapse(c.text(n)),
		Source:       path,
	})
	if n.HasChildKind("visibility_modifier") {
		c.add(Entity{
			Name:         name,
			Kind:         KindExport,
			Range:        c.rangeOf(n),
			RawSignature: collapse(c.text(n)),
			Source:       path,
		})
	}
}

func (e *rsExtractor) extractStruct(c *collector, n *syntax.Node) {
	name := c.text(n.ChildByField("name"))
	if name == "" {
		return
	}
	body := n.ChildByField("body")
	idx := c.add(Entity{
		Name:         name,
		Kind:         KindClass,
		Range:        c.rangeOf(n),
		Modifiers:    []string{rsVisibility(n), ModStruct},
		RawSignature: c.signature(n, body),
		BodyHash:     c.fingerprint(body),
	})

	switch {
	case body == nil:
	case body.Kind == "field_declaration_list":
		for _, f := range body.NamedChildren() {
			if f.Kind != "field_declaration" {
				continue
			}
			c.addMember(idx, Member{
				Kind:      MemberProperty,
				Name:      c.text(f.ChildByField("name")),
				Type:      collapse(c.text(f.ChildByField("type"))),
				Modifiers: []string{rsVisibility(f)},
			})
		}
	case body.Kind == "ordered_field_declaration_list":
		pos := 0
		for _, t := range body.ChildrenByField("type") {
			c.addMember(idx, Member{
				Kind: MemberProperty,
				Name: strconv.Itoa(pos),
				Type: collapse(c.text(t)),
			})
			pos++
		}
	}
}

func (e *rsExtractor) extractEnum(c *collector, n *syntax.Node) {
	name := c.text(n.ChildByField("name"))
	if name == "" {
		return
	}
	body := n.ChildByField("body")
	idx := c.add(Entity{
		Name:         name,
		Kind:         KindClass,
		Range:        c.rangeOf(n),
		Modifiers:    []string{rsVisibility(n), ModEnum},
		RawSignature: c.signature(n, body),
		BodyHash:     c.fingerprint(body),
	})
	for _, v := range body.NamedChildren() {
		if v.Kind != "enum_variant" {
			continue
		}
		c.addMember(idx, Member{
			Kind:      MemberProperty,
			Name:      c.text(v.ChildByField("name")),
			Type:      collapse(c.text(v.ChildByField("body"))),
			Modifiers: []string{ModStatic},
		})
	}
}

func (e *rsExtractor) extractTrait(c *collector, n *syntax.Node, depth int, impls *[]pendingImpl) {
	name := c.text(n.ChildByField("name"))
	if name == "" {
		return
	}
	body := n.ChildByField("body")
	idx := c.add(Entity{
		Name:         name,
		Kind:         KindClass,
		Range:        c.rangeOf(n),
		Modifiers:    []string{rsVisibility(n), ModTrait},
		RawSignature: c.signature(n, body),
		BodyHash:     c.fingerprint(body),
	})
	for _, b := range n.ChildByField("bounds").NamedChildren() {
		c.addBase(idx, RelInherits, c.text(b))
	}
	if body == nil {
		return
	}

	c.push(name, KindClass, idx)
	for _, item := range body.NamedChildren() {
		switch item.Kind {
		case "function_signature_item":
			c.addMember(idx, Member{
				Kind:      MemberMethod,
				Name:      c.text(item.ChildByField("name")),
				Signature: strings.TrimSuffix(collapse(c.text(item)), ";"),
				Modifiers: []string{ModAbstract},
			})
		case "function_item":
			m := e.extractFunction(c, item, depth+1, impls)
			if m >= 0 {
				c.addMember(idx, methodMember(&c.entities[m]))
			}
		default:
			e.walk(c, item, depth+1, impls)
		}
	}
	c.pop()
}

// extractImpl scopes the block's functions under the implementing type.
// Members and the trait relation are attached once the whole file is seen.
func (e *rsExtractor) extractImpl(c *collector, n *syntax.Node, depth int, impls *[]pendingImpl) {
	typeName := baseTypeName(c.text(n.ChildByField("type")))
	if typeName == "" {
		return
	}
	impl := pendingImpl{typeName: typeName}
	if trait := n.ChildByField("trait"); trait != nil {
		impl.trait = collapse(c.text(trait))
	}

	c.push(typeName, KindClass, -1)
	for _, item := range n.ChildByField("body").NamedChildren() {
		if item.Kind == "function_item" {
			if m := e.extractFunction(c, item, depth+1, impls); m >= 0 {
				impl.methods = append(impl.methods, m)
			}
			continue
		}
		e.walk(c, item, depth+1, impls)
	}
	c.pop()
	*impls = append(*impls, impl)
}

// extractFunction returns the new entity's index, or -1.
func (e *rsExtractor) extractFunction(c *collector, n *syntax.Node, depth int, impls *[]pendingImpl) int {
	name := c.text(n.ChildByField("name"))
	if name == "" {
		return -1
	}
	body := n.ChildByField("body")

	kind := KindFunction
	if len(c.frames) > 0 && c.frames[len(c.frames)-1].kind == KindClass {
		kind = KindMethod
	}
	mods := []string{rsVisibility(n)}
	params, hasSelf := e.params(c, n.ChildByField("parameters"))
	if kind == KindMethod && !hasSelf {
		mods = append(mods, ModStatic)
	}
	if fm := n.ChildOfKind("function_modifiers"); fm != nil {
		for _, tok := range fm.Children {
			mods = append(mods, c.text(tok))
		}
	}

	idx := c.add(Entity{
		Name:         name,
		Kind:         kind,
		Range:        c.rangeOf(n),
		Modifiers:    mods,
		RawSignature: c.signature(n, body),
		Params:       params,
		Calls:        c.calls(body, rsCallKinds, rsNestedFunc, e.callee(c)),
		BodyHash:     c.fingerprint(body),
	})
	if body != nil {
		c.push(name, kind, idx)
		e.walk(c, body, depth+1, impls)
		c.pop()
	}
	return idx
}

func (e *rsExtractor) extractClosure(c *collector, n *syntax.Node, depth int, impls *[]pendingImpl) {
	body := n.ChildByField("body")
	name := anonymousName(n)
	var params []Param
	for _, p := range n.ChildByField("parameters").NamedChildren() {
		switch p.Kind {
		case "parameter":
			params = append(params, Param{
				Name: c.text(p.ChildByField("pattern")),
				Type: collapse(c.text(p.ChildByField("type"))),
			})
		default:
			params = append(params, Param{Name: c.text(p)})
		}
	}
	idx := c.add(Entity{
		Name:         name,
		Kind:         KindFunction,
		Range:        c.rangeOf(n),
		RawSignature: c.signature(n, body),
		Params:       params,
		Calls:        c.calls(body, rsCallKinds, rsNestedFunc, e.callee(c)),
		BodyHash:     c.fingerprint(body),
	})
	if body != nil {
		c.push(name, KindFunction, idx)
		e.walk(c, body, depth+1, impls)
		c.pop()
	}
}

func (e *rsExtractor) extractItemVariable(c *collector, n *syntax.Node) {
	name := c.text(n.ChildByField("name"))
	if name == "" {
		return
	}
	mod := "const"
	if n.Kind == "static_item" {
		mod = ModStatic
	}
	c.add(Entity{
		Name:         name,
		Kind:         KindVariable,
		Range:        c.rangeOf(n),
		Modifiers:    []string{rsVisibility(n), mod},
		RawSignature: collapse(firstLine(c.text(n))),
		Type:         collapse(c.text(n.ChildByField("type"))),
		Local:        c.inFunction(),
	})
}

func (e *rsExtractor) extractLet(c *collector, n *syntax.Node) {
	pattern := n.ChildByField("pattern")
	if pattern == nil {
		return
	}
	var mods []string
	id := pattern
	if pattern.Kind == "mut_pattern" {
		mods = append(mods, "mut")
		id = pattern.ChildOfKind("identifier")
	}
	if id == nil || id.Kind != "identifier" {
		return
	}
	name := c.text(id)
	if name == "_" {
		return
	}
	c.add(Entity{
		Name:         name,
		Kind:         KindVariable,
		Range:        c.rangeOf(id),
		Modifiers:    mods,
		RawSignature: collapse(firstLine(c.text(n))),
		Type:         collapse(c.text(n.ChildByField("type"))),
		Local:        c.inFunction(),
	})
}

// params returns the declared parameters and whether a self receiver was
// present. The receiver is not counted as a parameter.
func (e *rsExtractor) params(c *collector, list *syntax.Node) ([]Param, bool) {
	var out []Param
	hasSelf := false
	for _, p := range list.NamedChildren() {
		switch p.Kind {
		case "self_parameter":
			hasSelf = true
		case "parameter":
			out = append(out, Param{
				Name: c.text(p.ChildByField("pattern")),
				Type: collapse(c.text(p.ChildByField("type"))),
			})
		case "variadic_parameter":
			out = append(out, Param{Name: "...", Variadic: true})
		}
	}
	return out, hasSelf
}

func (e *rsExtractor) callee(c *collector) func(*syntax.Node) string {
	return func(n *syntax.Node) string {
		return collapse(c.text(n.ChildByField("function")))
	}
}

func rsVisibility(n *syntax.Node) string {
	if n.HasChildKind("visibility_modifier") {
		return ModPublic
	}
	return ModPrivate
}
