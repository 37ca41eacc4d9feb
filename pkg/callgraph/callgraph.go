package callgraph

import (
	"regexp"

	"github.com/l3aro/earscope/pkg/types"
)

// identifierPattern matches identifier tokens in source text, javap output
// and bytecode listings alike ("com/acme/OrderService.placeOrder" yields
// com, acme, OrderService, placeOrder).
var identifierPattern = regexp.MustCompile(`[A-Za-z_$][A-Za-z0-9_$]*`)

// UnresolvedReason explains why a component could not take part in tracing.
type UnresolvedReason string

const (
	// NoClassDeclared means the descriptor names no implementing class.
	NoClassDeclared UnresolvedReason = "no implementing class declared"
	// ClassNotFound means the declared class is in no module's inventory.
	ClassNotFound UnresolvedReason = "implementing class not found"
)

// Unresolved records a component whose implementing class is unknown. Such
// a component contributes no outgoing edges and receives none.
type Unresolved struct {
	Module    string
	Component string
	Class     string
	Reason    UnresolvedReason
}

// Visit is one expanded (component, method) pair.
type Visit struct {
	Component string
	Method    string
}

func (v Visit) key() string {
	return v.Component + "." + v.Method
}

// step is what expanding one visit produced: the edges it emitted and every
// visit it led to, including hops inside its own component.
type step struct {
	edges []types.Edge
	next  []Visit
}

// Graph is the outcome of one trace.
type Graph struct {
	// Edges are distinct by Key, in discovery order.
	Edges []types.Edge
	// Expanded lists each visit once, in expansion order.
	Expanded   []Visit
	Unresolved []Unresolved

	seeds []*Component
	steps map[string]*step
}

// Tracer infers component calls over an Inventory.
type Tracer struct {
	inv *Inventory
}

// NewTracer creates a tracer over inv.
func NewTracer(inv *Inventory) *Tracer {
	return &Tracer{inv: inv}
}

// Trace walks breadth-first from every seed component's methods. Each
// (component, method) pair is expanded at most once, so cyclic call
// structures terminate.
func (t *Tracer) Trace() *Graph {
	g := &Graph{
		seeds: t.inv.Seeds(),
		steps: make(map[string]*step),
	}

	for _, c := range t.inv.Components() {
		if c.Impl != nil {
			continue
		}
		reason := ClassNotFound
		if c.Class == "" {
			reason = NoClassDeclared
		}
		g.Unresolved = append(g.Unresolved, Unresolved{
			Module:    c.Module,
			Component: c.Name,
			Class:     c.Class,
			Reason:    reason,
		})
	}

	var queue []Visit
	for _, seed := range g.seeds {
		for _, m := range seed.Methods() {
			queue = append(queue, Visit{Component: seed.Key(), Method: m})
		}
	}

	seenEdge := make(map[string]bool)
	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]

		if _, done := g.steps[v.key()]; done {
			continue
		}
		c := t.inv.byKey[v.Component]
		s := t.expand(c, v.Method)
		g.steps[v.key()] = s
		g.Expanded = append(g.Expanded, v)

		for _, e := range s.edges {
			if seenEdge[e.Key()] {
				continue
			}
			seenEdge[e.Key()] = true
			g.Edges = append(g.Edges, e)
		}
		for _, n := range s.next {
			if _, done := g.steps[n.key()]; !done {
				queue = append(queue, n)
			}
		}
	}

	return g
}

// expand scans one method body. Every token naming another component yields
// an edge, in first-occurrence order; a token followed by ".name" where name
// is a method of the callee narrows the edge to that method.
func (t *Tracer) expand(c *Component, method string) *step {
	s := &step{}
	body := c.Body(method)
	if body == "" {
		return s
	}

	locs := identifierPattern.FindAllStringIndex(body, -1)
	for i, loc := range locs {
		token := body[loc[0]:loc[1]]
		targets := t.inv.Lookup(token)
		if len(targets) == 0 {
			continue
		}

		member := ""
		if i+1 < len(locs) && loc[1] < len(body) && body[loc[1]] == '.' && locs[i+1][0] == loc[1]+1 {
			member = body[locs[i+1][0]:locs[i+1][1]]
		}

		for _, target := range targets {
			if target.Impl == nil {
				continue
			}
			calleeMethod := ""
			if member != "" && target.HasMethod(member) {
				calleeMethod = member
			}

			if target == c || target.Class == c.Class {
				// hops inside the component are followed, not reported
				if calleeMethod != "" && target == c {
					s.next = append(s.next, Visit{Component: c.Key(), Method: calleeMethod})
				}
				continue
			}

			s.edges = append(s.edges, types.Edge{
				CallerModule: c.Module,
				Caller:       c.Name,
				CallerMethod: method,
				CalleeModule: target.Module,
				Callee:       target.Name,
				CalleeMethod: calleeMethod,
				Token:        token,
			})
			if calleeMethod != "" {
				s.next = append(s.next, Visit{Component: target.Key(), Method: calleeMethod})
				continue
			}
			for _, m := range target.Methods() {
				s.next = append(s.next, Visit{Component: target.Key(), Method: m})
			}
		}
	}
	return s
}

// Paths returns one flow path per seed component: the distinct edges
// reachable from its methods, in breadth-first order.
func (g *Graph) Paths() []types.FlowPath {
	paths := make([]types.FlowPath, 0, len(g.seeds))
	for _, seed := range g.seeds {
		fp := types.FlowPath{
			Module:     seed.Module,
			EntryPoint: seed.Name,
			Path:       seed.Path,
			Edges:      []types.Edge{},
		}

		var queue []Visit
		for _, m := range seed.Methods() {
			queue = append(queue, Visit{Component: seed.Key(), Method: m})
		}
		visited := make(map[string]bool)
		seenEdge := make(map[string]bool)
		for len(queue) > 0 {
			v := queue[0]
			queue = queue[1:]
			if visited[v.key()] {
				continue
			}
			visited[v.key()] = true

			s, ok := g.steps[v.key()]
			if !ok {
				continue
			}
			for _, e := range s.edges {
				if !seenEdge[e.Key()] {
					seenEdge[e.Key()] = true
					fp.Edges = append(fp.Edges, e)
				}
			}
			queue = append(queue, s.next...)
		}
		paths = append(paths, fp)
	}
	return paths
}

// Trace builds the inventory of modules and traces it.
func Trace(modules ...types.Module) *Graph {
	return NewTracer(NewInventory(modules...)).Trace()
}
