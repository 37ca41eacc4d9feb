package types

import "fmt"

// ComponentKind distinguishes the structural units declared by descriptors.
type ComponentKind string

const (
	// EntryPoint is an externally reachable dispatch target (a servlet).
	EntryPoint ComponentKind = "entry-point"
	// Bean is a container-managed business component.
	Bean ComponentKind = "bean"
	// BeanReference is an ejb-ref or ejb-local-ref declared by a module.
	BeanReference ComponentKind = "bean-ref"
)

// BeanKind is the EJB flavour of a Bean component.
type BeanKind string

const (
	SessionBean       BeanKind = "session"
	MessageDrivenBean BeanKind = "message-driven"
	EntityBean        BeanKind = "entity"
)

// ComponentOrigin records which evidence declared a component.
type ComponentOrigin string

const (
	FromDescriptor ComponentOrigin = "descriptor"
	FromAnnotation ComponentOrigin = "annotation"
)

// ComponentNode is a declared component. Its name is unique within its module.
type ComponentNode struct {
	Name     string        `json:"name"`
	Kind     ComponentKind `json:"kind"`
	BeanKind BeanKind      `json:"bean_kind,omitempty"`
	// SessionType is Stateless, Stateful or Singleton for session beans.
	SessionType string `json:"session_type,omitempty"`
	// Path is the first exposed path of an entry point; Paths holds all of them.
	Path  string   `json:"path,omitempty"`
	Paths []string `json:"paths,omitempty"`
	// Class is the implementing class; empty when the descriptor does not name one.
	Class string `json:"class,omitempty"`
	// Interfaces lists business, home and reference interfaces.
	Interfaces []string `json:"interfaces,omitempty"`
	// Link is the ejb-link target of a bean reference.
	Link   string          `json:"link,omitempty"`
	Origin ComponentOrigin `json:"origin"`
}

// IsSeed reports whether the flow tracer starts traversal at this component.
// Message-driven beans are triggered from outside just like servlets.
func (c ComponentNode) IsSeed() bool {
	return c.Kind == EntryPoint || (c.Kind == Bean && c.BeanKind == MessageDrivenBean)
}

// ComponentKey builds the identity key of a component inside an archive.
func ComponentKey(module, name string) string {
	return module + "#" + name
}

// Edge is an inferred call from one component method to another component.
// An empty CalleeMethod means "any declared method of the callee".
type Edge struct {
	CallerModule string `json:"caller_module"`
	Caller       string `json:"caller"`
	CallerMethod string `json:"caller_method"`
	CalleeModule string `json:"callee_module"`
	Callee       string `json:"callee"`
	CalleeMethod string `json:"callee_method,omitempty"`
	// Token is the identifier that produced the match.
	Token string `json:"token"`
}

// Key identifies the edge for de-duplication.
func (e Edge) Key() string {
	return fmt.Sprintf("%s.%s->%s.%s",
		ComponentKey(e.CallerModule, e.Caller), e.CallerMethod,
		ComponentKey(e.CalleeModule, e.Callee), e.CalleeMethod)
}

func (e Edge) String() string {
	callee := e.CalleeMethod
	if callee == "" {
		callee = "*"
	}
	return fmt.Sprintf("%s.%s -> %s.%s", e.Caller, e.CallerMethod, e.Callee, callee)
}

// FlowPath is the ordered list of edges reachable from one seeded component.
type FlowPath struct {
	Module     string `json:"module"`
	EntryPoint string `json:"entry_point"`
	Path       string `json:"path,omitempty"`
	Edges      []Edge `json:"edges"`
}
