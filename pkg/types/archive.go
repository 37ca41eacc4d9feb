// Package types defines the data structures produced by one analysis run:
// the archive and its modules, the classes and components found inside them,
// and the call edges inferred between components.
package types

import "strings"

// ModuleKind is the kind of a deployable module inside an enterprise archive.
type ModuleKind string

const (
	// WebModule is a web application archive declared with <web>.
	WebModule ModuleKind = "web"
	// EJBModule is a business-logic archive declared with <ejb>.
	EJBModule ModuleKind = "ejb"
)

// ArchiveKind identifies the packaging format of the analyzed artifact.
type ArchiveKind string

const (
	// EnterpriseArchive is the outer container (EAR).
	EnterpriseArchive ArchiveKind = "ear"
	// ContainerArchive is a nested container (WAR or JAR).
	ContainerArchive ArchiveKind = "container"
)

// InspectionStatus tells a consumer why a module's class inventory looks the way it does.
type InspectionStatus string

const (
	// StatusOK means every class unit was inspected.
	StatusOK InspectionStatus = "ok"
	// StatusPartial means some entries were unreadable and skipped.
	StatusPartial InspectionStatus = "partial"
	// StatusUnavailable means no method extraction strategy could run.
	StatusUnavailable InspectionStatus = "unavailable"
	// StatusEmpty means the module holds no compiled units at all.
	StatusEmpty InspectionStatus = "empty"
	// StatusSkipped means the module could not be opened.
	StatusSkipped InspectionStatus = "skipped"
)

// Archive is the root artifact of an analysis run.
type Archive struct {
	Path string      `json:"path"`
	Kind ArchiveKind `json:"kind"`
	// DescriptorFound is false when the archive carries no top-level descriptor.
	DescriptorFound bool     `json:"descriptor_found"`
	Modules         []Module `json:"modules"`
}

// Module is one deployable sub-unit of the archive.
type Module struct {
	Name        string           `json:"name"`
	Kind        ModuleKind       `json:"kind"`
	ContextRoot string           `json:"context_root,omitempty"`
	Path        string           `json:"path,omitempty"`
	Inspection  InspectionStatus `json:"inspection"`
	Strategy    string           `json:"strategy,omitempty"`
	Classes     []ClassUnit      `json:"classes"`
	Components  []ComponentNode  `json:"components"`
	// Bindings are application-server specific JNDI bindings found in the
	// module's deployment files.
	Bindings    []VendorBinding `json:"vendor_bindings,omitempty"`
	Diagnostics []Diagnostic    `json:"diagnostics,omitempty"`
}

// Component returns the component declared with the given name.
func (m *Module) Component(name string) (ComponentNode, bool) {
	for _, c := range m.Components {
		if c.Name == name {
			return c, true
		}
	}
	return ComponentNode{}, false
}

// Class returns the class unit with the given fully-qualified name.
func (m *Module) Class(name string) (ClassUnit, bool) {
	for _, c := range m.Classes {
		if c.Name == name {
			return c, true
		}
	}
	return ClassUnit{}, false
}

// MethodSignature is one entry of a class's method inventory.
type MethodSignature struct {
	Name       string `json:"name"`
	Params     string `json:"params"`
	ReturnType string `json:"return_type"`
	Access     string `json:"access,omitempty"`
}

// JndiNamespace is the naming convention a JNDI literal belongs to.
type JndiNamespace string

const (
	JndiGlobal  JndiNamespace = "java:global"
	JndiCompEnv JndiNamespace = "java:comp/env"
	JndiEJB     JndiNamespace = "ejb/"
)

// JndiReference is a resource-lookup literal recovered from compiled code.
type JndiReference struct {
	Name      string        `json:"name"`
	Namespace JndiNamespace `json:"namespace"`
}

// BindingRule names what flagged a VendorBinding.
type BindingRule string

const (
	// CellScopedName is a WebSphere cell/node/server qualified name.
	CellScopedName BindingRule = "cell-scoped-name"
	// DataSourceName is a jdbc/*-DS data source name.
	DataSourceName BindingRule = "jdbc-datasource"
	// QueueConnectionFactory is a wmq/*QCF MQ connection factory name.
	QueueConnectionFactory BindingRule = "mq-queue-connection-factory"
	// BindingFileEntry is an explicit binding in an ibm-*-bnd file.
	BindingFileEntry BindingRule = "binding-file"
)

// VendorBinding is one application-server specific JNDI binding that ties a
// module to its original runtime.
type VendorBinding struct {
	// File is the deployment file path relative to the module root.
	File string      `json:"file"`
	Rule BindingRule `json:"rule"`
	// Name is the component-side reference name, set for binding-file entries.
	Name  string `json:"name,omitempty"`
	Value string `json:"value"`
}

// ClassUnit is one compiled class found inside a module.
type ClassUnit struct {
	// Name is the fully-qualified class name, derived from Path.
	Name string `json:"name"`
	// Path is the storage path relative to the class root, e.g. com/acme/Foo.class.
	Path string `json:"path"`
	// Container is the class root inside the module, e.g. WEB-INF/classes.
	Container   string            `json:"container,omitempty"`
	Super       string            `json:"super,omitempty"`
	Interfaces  []string          `json:"interfaces,omitempty"`
	Methods     []MethodSignature `json:"methods"`
	Jndi        []JndiReference   `json:"jndi,omitempty"`
	Annotations []string          `json:"annotations,omitempty"`
	// Bodies maps method names to the text the flow tracer scans.
	Bodies map[string]string `json:"-"`
	// BodySource tells where Bodies came from: bytecode, javap or source.
	BodySource string `json:"body_source,omitempty"`
}

// SimpleName returns the class name without its package.
func (c ClassUnit) SimpleName() string {
	return SimpleName(c.Name)
}

// HasMethod reports whether the inventory lists a method with that name.
func (c ClassUnit) HasMethod(name string) bool {
	for _, m := range c.Methods {
		if m.Name == name {
			return true
		}
	}
	return false
}

// MethodNames returns distinct method names in inventory order.
func (c ClassUnit) MethodNames() []string {
	seen := make(map[string]bool, len(c.Methods))
	names := make([]string, 0, len(c.Methods))
	for _, m := range c.Methods {
		if seen[m.Name] {
			continue
		}
		seen[m.Name] = true
		names = append(names, m.Name)
	}
	return names
}

// SimpleName strips the package (dotted) or path (slashed) prefix of a class name.
func SimpleName(name string) string {
	if i := strings.LastIndexAny(name, "./"); i >= 0 {
		return name[i+1:]
	}
	return name
}

// ApplicationInterfaces drops platform interfaces, whose simple names
// (Serializable, MessageListener) would match far too much text.
func ApplicationInterfaces(ifaces []string) []string {
	var out []string
	for _, i := range ifaces {
		if strings.HasPrefix(i, "java.") || strings.HasPrefix(i, "javax.") || strings.HasPrefix(i, "jakarta.") {
			continue
		}
		out = append(out, i)
	}
	return out
}
