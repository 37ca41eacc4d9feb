// Package descriptor parses Java EE deployment descriptors (application.xml,
// web.xml, ejb-jar.xml) independently of the schema version they declare, and
// scans a module's deployment files for WebSphere specific JNDI bindings.
package descriptor

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/l3aro/earscope/pkg/types"
)

// Conventional descriptor locations, relative to the archive or module root.
const (
	ApplicationPath = "META-INF/application.xml"
	WebPath         = "WEB-INF/web.xml"
	EJBJarPath      = "META-INF/ejb-jar.xml"
	// WebEJBJarPath is where EJB 3.1 packages beans inside a WAR.
	WebEJBJarPath = "WEB-INF/ejb-jar.xml"
)

var (
	// ErrMissingDescriptor is returned when a descriptor is not present.
	ErrMissingDescriptor = errors.New("descriptor not found")
	// ErrMalformedDescriptor is returned when a descriptor is not well-formed XML
	// or has an unexpected root element.
	ErrMalformedDescriptor = errors.New("malformed descriptor")
)

// ReadDescriptor reads the descriptor at rel below root.
func ReadDescriptor(root, rel string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrMissingDescriptor, rel)
		}
		return nil, fmt.Errorf("reading %s: %w", rel, err)
	}
	return data, nil
}

// ModuleRef is one <module> entry of application.xml.
type ModuleRef struct {
	URI         string
	Kind        types.ModuleKind
	ContextRoot string
}

// ParseApplication enumerates the web and business-logic modules declared by
// an application.xml. Other module kinds (java, connector) are ignored.
func ParseApplication(data []byte) ([]ModuleRef, error) {
	doc, err := load(data, "application")
	if err != nil {
		return nil, err
	}

	var refs []ModuleRef
	for _, m := range doc.findAll(doc.root, "module") {
		if web := doc.findFirst(m, "web"); web != nil {
			uri := doc.text(web, "web-uri")
			if uri == "" {
				continue
			}
			refs = append(refs, ModuleRef{
				URI:         uri,
				Kind:        types.WebModule,
				ContextRoot: doc.text(web, "context-root"),
			})
			continue
		}
		if uri := doc.text(m, "ejb"); uri != "" {
			refs = append(refs, ModuleRef{URI: uri, Kind: types.EJBModule})
		}
	}
	return refs, nil
}

// ParseWeb extracts the entry points and bean references a web.xml declares.
// An entry point pairs a servlet-name with the url-patterns mapped to it and
// the servlet-class implementing it; servlets without a mapping are not
// externally reachable and are skipped.
func ParseWeb(data []byte) ([]types.ComponentNode, error) {
	doc, err := load(data, "web-app")
	if err != nil {
		return nil, err
	}

	patterns := make(map[string][]string)
	for _, mapping := range doc.findAll(doc.root, "servlet-mapping") {
		name := doc.text(mapping, "servlet-name")
		if name == "" {
			continue
		}
		patterns[name] = append(patterns[name], doc.texts(mapping, "url-pattern")...)
	}

	var components []types.ComponentNode
	seen := make(map[string]bool)
	for _, servlet := range doc.findAll(doc.root, "servlet") {
		name := doc.text(servlet, "servlet-name")
		paths := patterns[name]
		if name == "" || len(paths) == 0 || seen[name] {
			continue
		}
		seen[name] = true
		components = append(components, types.ComponentNode{
			Name:   name,
			Kind:   types.EntryPoint,
			Path:   paths[0],
			Paths:  paths,
			Class:  doc.text(servlet, "servlet-class"),
			Origin: types.FromDescriptor,
		})
	}

	components = append(components, beanRefs(doc, doc.root, seen)...)
	return components, nil
}

func beanRefs(doc *document, n *node, seen map[string]bool) []types.ComponentNode {
	var refs []types.ComponentNode
	for _, kind := range []string{"ejb-ref", "ejb-local-ref"} {
		for _, ref := range doc.findAll(n, kind) {
			name := doc.text(ref, "ejb-ref-name")
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true

			var ifaces []string
			for _, tag := range []string{"remote", "local", "home", "local-home"} {
				ifaces = append(ifaces, doc.texts(ref, tag)...)
			}
			refs = append(refs, types.ComponentNode{
				Name:       name,
				Kind:       types.BeanReference,
				Link:       doc.text(ref, "ejb-link"),
				Interfaces: ifaces,
				Origin:     types.FromDescriptor,
			})
		}
	}
	return refs
}

// beanKinds lists the enterprise-beans groups in report order.
var beanKinds = []types.BeanKind{types.SessionBean, types.MessageDrivenBean, types.EntityBean}

var interfaceTags = []string{
	"business-local", "business-remote", "local", "remote", "home", "local-home", "messaging-type",
}

// ParseEJBJar extracts the beans declared by an ejb-jar.xml, grouped by kind.
func ParseEJBJar(data []byte) ([]types.ComponentNode, error) {
	doc, err := load(data, "ejb-jar")
	if err != nil {
		return nil, err
	}

	beans := doc.findFirst(doc.root, "enterprise-beans")
	if beans == nil {
		return nil, nil
	}

	var components []types.ComponentNode
	seen := make(map[string]bool)
	for _, kind := range beanKinds {
		for _, bean := range doc.findAll(beans, string(kind)) {
			name := doc.text(bean, "ejb-name")
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true

			var ifaces []string
			for _, tag := range interfaceTags {
				ifaces = append(ifaces, doc.texts(bean, tag)...)
			}
			components = append(components, types.ComponentNode{
				Name:        name,
				Kind:        types.Bean,
				BeanKind:    kind,
				SessionType: doc.text(bean, "session-type"),
				Class:       doc.text(bean, "ejb-class"),
				Interfaces:  ifaces,
				Origin:      types.FromDescriptor,
			})
		}
	}
	return components, nil
}

func load(data []byte, root string) (*document, error) {
	doc, err := parseDocument(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDescriptor, err)
	}
	if !doc.is(doc.root, root) {
		return nil, fmt.Errorf("%w: expected <%s>, found <%s>", ErrMalformedDescriptor, root, doc.root.name.Local)
	}
	return doc, nil
}
