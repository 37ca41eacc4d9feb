// Package source recovers method bodies from Java sources that some legacy
// archives ship next to their compiled classes. Source bodies are richer
// than bytecode listings (local variable names, field names) and the flow
// tracer prefers them when both exist.
package source

import (
	"fmt"
	"os"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/java"
)

// javaParserPool is a pool of reusable tree-sitter parsers for Java.
var javaParserPool = sync.Pool{
	New: func() interface{} {
		parser := sitter.NewParser()
		parser.SetLanguage(java.GetLanguage())
		return parser
	},
}

// Class is one type declared in a source file.
type Class struct {
	// Name is fully qualified; nested types use the binary "$" form.
	Name string
	// Bodies maps method names to their body text; overloads are concatenated.
	Bodies map[string]string
}

// typeDeclarations are the node types that open a new class scope.
var typeDeclarations = map[string]bool{
	"class_declaration":     true,
	"interface_declaration": true,
	"enum_declaration":      true,
	"record_declaration":    true,
}

// ExtractFile parses a Java source file.
func ExtractFile(path string) ([]Class, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file %s: %w", path, err)
	}
	return Extract(content)
}

// Extract parses Java source and returns its type declarations in source order.
func Extract(content []byte) ([]Class, error) {
	parser := javaParserPool.Get().(*sitter.Parser)
	defer javaParserPool.Put(parser)

	tree := parser.Parse(nil, content)
	if tree == nil {
		return nil, fmt.Errorf("parsing java source failed")
	}
	defer tree.Close()

	root := tree.RootNode()
	pkg := packageName(root, content)

	var classes []Class
	walkTypes(root, content, pkg, "", &classes)
	return classes, nil
}

// packageName returns the declared package, "" for the default package.
func packageName(root *sitter.Node, content []byte) string {
	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		if child == nil || child.Type() != "package_declaration" {
			continue
		}
		for j := 0; j < int(child.NamedChildCount()); j++ {
			id := child.NamedChild(j)
			switch id.Type() {
			case "identifier", "scoped_identifier":
				return nodeText(id, content)
			}
		}
	}
	return ""
}

func walkTypes(node *sitter.Node, content []byte, pkg, outer string, classes *[]Class) {
	if node == nil {
		return
	}

	if typeDeclarations[node.Type()] {
		name := nodeText(node.ChildByFieldName("name"), content)
		if name == "" {
			return
		}

		qualified := name
		switch {
		case outer != "":
			qualified = outer + "$" + name
		case pkg != "":
			qualified = pkg + "." + name
		}

		class := Class{Name: qualified, Bodies: make(map[string]string)}
		body := node.ChildByFieldName("body")
		*classes = append(*classes, class)
		idx := len(*classes) - 1

		if body == nil {
			return
		}
		for i := 0; i < int(body.NamedChildCount()); i++ {
			member := body.NamedChild(i)
			if member == nil {
				continue
			}
			switch {
			case member.Type() == "method_declaration":
				addMethod((*classes)[idx].Bodies, member, content)
			case typeDeclarations[member.Type()]:
				walkTypes(member, content, pkg, qualified, classes)
			case member.Type() == "enum_body_declarations":
				// enum constants come first; methods live in this trailing block
				for j := 0; j < int(member.NamedChildCount()); j++ {
					inner := member.NamedChild(j)
					if inner.Type() == "method_declaration" {
						addMethod((*classes)[idx].Bodies, inner, content)
					} else if typeDeclarations[inner.Type()] {
						walkTypes(inner, content, pkg, qualified, classes)
					}
				}
			}
		}
		return
	}

	for i := 0; i < int(node.NamedChildCount()); i++ {
		walkTypes(node.NamedChild(i), content, pkg, outer, classes)
	}
}

func addMethod(bodies map[string]string, method *sitter.Node, content []byte) {
	name := nodeText(method.ChildByFieldName("name"), content)
	if name == "" {
		return
	}
	text := nodeText(method.ChildByFieldName("body"), content)
	if prev, ok := bodies[name]; ok && prev != "" {
		if text != "" {
			bodies[name] = prev + "\n" + text
		}
		return
	}
	bodies[name] = text
}

// nodeText extracts the text content of a node from the source.
func nodeText(node *sitter.Node, content []byte) string {
	if node == nil {
		return ""
	}
	start := node.StartByte()
	end := node.EndByte()
	if start >= uint32(len(content)) || end > uint32(len(content)) {
		return ""
	}
	return string(content[start:end])
}
