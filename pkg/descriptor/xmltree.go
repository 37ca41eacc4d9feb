package descriptor

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// KnownNamespaces are the Java EE / Jakarta EE schema namespaces descriptors
// are written against. Lookups accept any of them, the document's own default
// namespace, or no namespace at all.
var KnownNamespaces = []string{
	"http://java.sun.com/xml/ns/j2ee",
	"http://java.sun.com/xml/ns/javaee",
	"http://xmlns.jcp.org/xml/ns/javaee",
	"https://jakarta.ee/xml/ns/jakartaee",
}

// node is a minimal element tree built from a descriptor.
type node struct {
	name     xml.Name
	attrs    []xml.Attr
	text     strings.Builder
	children []*node
}

// document is a parsed descriptor plus the set of namespaces lookups accept.
type document struct {
	root   *node
	spaces map[string]bool
}

func parseDocument(data []byte) (*document, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	// Old J2EE descriptors declare ISO-8859-1; their element names are ASCII.
	dec.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		return input, nil
	}
	dec.Strict = true

	var root *node
	var stack []*node

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			n := &node{name: t.Name, attrs: append([]xml.Attr(nil), t.Attr...)}
			if len(stack) == 0 {
				if root != nil {
					return nil, fmt.Errorf("multiple root elements")
				}
				root = n
			} else {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, n)
			}
			stack = append(stack, n)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text.Write(t)
			}
		}
	}

	if root == nil {
		return nil, fmt.Errorf("document has no root element")
	}

	spaces := map[string]bool{"": true, root.name.Space: true}
	for _, ns := range KnownNamespaces {
		spaces[ns] = true
	}
	return &document{root: root, spaces: spaces}, nil
}

// is reports whether n is the element local in an accepted namespace.
func (d *document) is(n *node, local string) bool {
	return n.name.Local == local && d.spaces[n.name.Space]
}

// attr returns the value of the attribute with the given local name.
func (n *node) attr(local string) (string, bool) {
	for _, a := range n.attrs {
		if a.Name.Local == local {
			return a.Value, true
		}
	}
	return "", false
}

// findAll walks a slash-separated path of child element names below n.
func (d *document) findAll(n *node, path string) []*node {
	current := []*node{n}
	for _, step := range strings.Split(path, "/") {
		var next []*node
		for _, c := range current {
			for _, child := range c.children {
				if d.is(child, step) {
					next = append(next, child)
				}
			}
		}
		current = next
		if len(current) == 0 {
			return nil
		}
	}
	return current
}

// findFirst returns the first element matching any of the paths, in order.
func (d *document) findFirst(n *node, paths ...string) *node {
	for _, p := range paths {
		if found := d.findAll(n, p); len(found) > 0 {
			return found[0]
		}
	}
	return nil
}

// text returns the trimmed text of the first element matching path, or "".
func (d *document) text(n *node, paths ...string) string {
	if found := d.findFirst(n, paths...); found != nil {
		return strings.TrimSpace(found.text.String())
	}
	return ""
}

// texts returns the trimmed, non-empty text of every element matching path.
func (d *document) texts(n *node, path string) []string {
	var out []string
	for _, found := range d.findAll(n, path) {
		if s := strings.TrimSpace(found.text.String()); s != "" {
			out = append(out, s)
		}
	}
	return out
}
