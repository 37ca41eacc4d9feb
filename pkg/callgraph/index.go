// Package callgraph infers calls between the components of an enterprise
// archive. It indexes every component under the identifiers code would use to
// reach it, then walks method bodies breadth-first from the externally
// triggered components, matching identifier tokens against that index.
package callgraph

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/l3aro/earscope/pkg/types"
)

// Component is one traceable component together with the class that
// implements it, when that class could be found.
type Component struct {
	Module string
	types.ComponentNode
	// Impl is nil when the implementing class is unknown.
	Impl *types.ClassUnit
	// ImplModule is the module Impl was found in.
	ImplModule string

	methods []string
	known   map[string]bool
}

// Key returns the archive-wide identity of the component.
func (c *Component) Key() string {
	return types.ComponentKey(c.Module, c.Name)
}

// Methods returns the method names the tracer can expand, inventory order
// first, then methods only known from body text in name order.
func (c *Component) Methods() []string {
	return c.methods
}

// HasMethod reports whether the component's class declares a method.
func (c *Component) HasMethod(name string) bool {
	return c.known[name]
}

// Body returns the body text of a method of the implementing class.
func (c *Component) Body(method string) string {
	if c.Impl == nil {
		return ""
	}
	return c.Impl.Bodies[method]
}

// Inventory indexes the components and classes of every module. It is
// immutable after NewInventory returns and safe for concurrent reads.
type Inventory struct {
	modules    []string
	components []*Component
	byKey      map[string]*Component

	// classes maps module name to fully-qualified class name.
	classes map[string]map[string]*types.ClassUnit

	// aliases maps an identifier token to the components it may denote,
	// in declaration order.
	aliases map[string][]*Component
}

// NewInventory builds the inventory of the given modules. Bean references are
// not traced themselves; their names and interfaces become aliases of the
// bean they link to.
func NewInventory(modules ...types.Module) *Inventory {
	inv := &Inventory{
		byKey:   make(map[string]*Component),
		classes: make(map[string]map[string]*types.ClassUnit, len(modules)),
		aliases: make(map[string][]*Component),
	}

	for i := range modules {
		m := &modules[i]
		inv.modules = append(inv.modules, m.Name)
		byName := make(map[string]*types.ClassUnit, len(m.Classes))
		for j := range m.Classes {
			byName[m.Classes[j].Name] = &m.Classes[j]
		}
		inv.classes[m.Name] = byName
	}

	var refs []types.ComponentNode
	for i := range modules {
		m := &modules[i]
		for _, node := range m.Components {
			if node.Kind == types.BeanReference {
				refs = append(refs, node)
				continue
			}
			c := &Component{Module: m.Name, ComponentNode: node}
			if _, dup := inv.byKey[c.Key()]; dup {
				continue
			}
			c.Impl, c.ImplModule = inv.resolveClass(m.Name, node.Class)
			c.indexMethods()
			inv.components = append(inv.components, c)
			inv.byKey[c.Key()] = c
		}
	}

	for _, c := range inv.components {
		inv.addAlias(c, c.Name)
		inv.addAlias(c, types.SimpleName(c.Name))
		if c.Class != "" {
			inv.addAlias(c, types.SimpleName(c.Class))
		}
		// descriptors may name messaging or platform types here
		for _, iface := range types.ApplicationInterfaces(c.Interfaces) {
			inv.addAlias(c, types.SimpleName(iface))
		}
	}

	for _, ref := range refs {
		target := inv.linkTarget(ref)
		if target == nil {
			continue
		}
		inv.addAlias(target, types.SimpleName(ref.Name))
		for _, iface := range types.ApplicationInterfaces(ref.Interfaces) {
			inv.addAlias(target, types.SimpleName(iface))
		}
	}

	return inv
}

// resolveClass finds a class in the component's own module first, then in
// the other modules in declaration order.
func (inv *Inventory) resolveClass(module, class string) (*types.ClassUnit, string) {
	if class == "" {
		return nil, ""
	}
	if c, ok := inv.classes[module][class]; ok {
		return c, module
	}
	for _, m := range inv.modules {
		if m == module {
			continue
		}
		if c, ok := inv.classes[m][class]; ok {
			return c, m
		}
	}
	return nil, ""
}

// linkTarget resolves a bean reference by its ejb-link, or failing that by
// a bean declaring one of the referenced interfaces.
func (inv *Inventory) linkTarget(ref types.ComponentNode) *Component {
	if ref.Link != "" {
		// ejb-link may be qualified with the declaring jar: "orders.jar#OrderService"
		link := ref.Link
		if i := strings.LastIndex(link, "#"); i >= 0 {
			link = link[i+1:]
		}
		for _, c := range inv.components {
			if c.Kind == types.Bean && c.Name == link {
				return c
			}
		}
	}
	for _, iface := range ref.Interfaces {
		for _, c := range inv.components {
			if c.Kind != types.Bean {
				continue
			}
			for _, own := range c.Interfaces {
				if own == iface {
					return c
				}
			}
		}
	}
	return nil
}

func (inv *Inventory) addAlias(c *Component, name string) {
	for _, alias := range []string{name, lowerCamel(name)} {
		if !isIdentifier(alias) {
			continue
		}
		dup := false
		for _, existing := range inv.aliases[alias] {
			if existing == c {
				dup = true
				break
			}
		}
		if !dup {
			inv.aliases[alias] = append(inv.aliases[alias], c)
		}
	}
}

func (c *Component) indexMethods() {
	c.known = make(map[string]bool)
	if c.Impl == nil {
		return
	}
	for _, name := range c.Impl.MethodNames() {
		c.known[name] = true
		c.methods = append(c.methods, name)
	}
	var extra []string
	for name := range c.Impl.Bodies {
		if !c.known[name] {
			c.known[name] = true
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	c.methods = append(c.methods, extra...)
}

// Components returns every traceable component in declaration order.
func (inv *Inventory) Components() []*Component {
	return inv.components
}

// Component looks a component up by module and declared name.
func (inv *Inventory) Component(module, name string) (*Component, bool) {
	c, ok := inv.byKey[types.ComponentKey(module, name)]
	return c, ok
}

// Lookup returns the components an identifier token may denote.
func (inv *Inventory) Lookup(token string) []*Component {
	return inv.aliases[token]
}

// Seeds returns the externally triggered components in declaration order.
func (inv *Inventory) Seeds() []*Component {
	var seeds []*Component
	for _, c := range inv.components {
		if c.IsSeed() {
			seeds = append(seeds, c)
		}
	}
	return seeds
}

func lowerCamel(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError || !unicode.IsUpper(r) {
		return s
	}
	return string(unicode.ToLower(r)) + s[size:]
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || r == '$' || unicode.IsLetter(r):
		case i > 0 && unicode.IsDigit(r):
		default:
			return false
		}
	}
	return true
}
