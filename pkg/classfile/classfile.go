// Package classfile parses compiled JVM class files far enough to recover
// their method table, class-level annotations and the symbolic references
// made by each method's bytecode. It is not a verifier: structurally valid
// but semantically wrong classes are accepted.
package classfile

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotClassFile is returned when the input does not start with the class file magic.
	ErrNotClassFile = errors.New("not a class file")
	// ErrTruncated is returned when the input ends before a structure it declares.
	ErrTruncated = errors.New("truncated class file")
	// ErrMalformed is returned for constant pool or attribute inconsistencies.
	ErrMalformed = errors.New("malformed class file")
)

const magic = 0xCAFEBABE

// Access flags used by the inspector.
const (
	AccPublic    uint16 = 0x0001
	AccPrivate   uint16 = 0x0002
	AccProtected uint16 = 0x0004
	AccStatic    uint16 = 0x0008
	AccBridge    uint16 = 0x0040
	AccAbstract  uint16 = 0x0400
	AccSynthetic uint16 = 0x1000
	AccInterface uint16 = 0x0200
)

// Class is the parsed form of one class file. Names use the dotted form.
type Class struct {
	Major       uint16
	Access      uint16
	Name        string
	Super       string
	Interfaces  []string
	Methods     []Method
	Annotations []Annotation

	pool constantPool
}

// Method is one entry of the method table.
type Method struct {
	Access     uint16
	Name       string
	Descriptor string
	// Code is the raw bytecode, nil for abstract and native methods.
	Code []byte
}

// Synthetic reports whether the compiler generated the method.
func (m Method) Synthetic() bool {
	return m.Access&(AccSynthetic|AccBridge) != 0
}

// Initializer reports whether the method is a constructor or static initializer.
func (m Method) Initializer() bool {
	return m.Name == "<init>" || m.Name == "<clinit>"
}

// Visibility renders the access level the way a Java declaration would.
func (m Method) Visibility() string {
	switch {
	case m.Access&AccPublic != 0:
		return "public"
	case m.Access&AccProtected != 0:
		return "protected"
	case m.Access&AccPrivate != 0:
		return "private"
	}
	return ""
}

// Annotation returns the class-level annotation with the given dotted type name.
func (c *Class) Annotation(typeName string) (Annotation, bool) {
	for _, a := range c.Annotations {
		if a.Type == typeName {
			return a, true
		}
	}
	return Annotation{}, false
}

// Parse decodes a class file.
func Parse(data []byte) (*Class, error) {
	r := &reader{data: data}

	if len(data) < 4 || binary.BigEndian.Uint32(data) != magic {
		return nil, ErrNotClassFile
	}
	r.skip(4)
	r.u2() // minor
	c := &Class{Major: r.u2()}

	pool, err := readConstantPool(r)
	if err != nil {
		return nil, err
	}
	c.pool = pool

	c.Access = r.u2()
	thisIdx, superIdx := r.u2(), r.u2()
	if r.err != nil {
		return nil, r.err
	}
	if c.Name, err = pool.className(thisIdx); err != nil {
		return nil, err
	}
	if superIdx != 0 {
		if c.Super, err = pool.className(superIdx); err != nil {
			return nil, err
		}
	}

	n := int(r.u2())
	for i := 0; i < n && r.err == nil; i++ {
		iface, err := pool.className(r.u2())
		if err != nil {
			return nil, err
		}
		c.Interfaces = append(c.Interfaces, iface)
	}

	// fields: only their attributes need skipping
	n = int(r.u2())
	for i := 0; i < n && r.err == nil; i++ {
		r.skip(6)
		if err := skipAttributes(r); err != nil {
			return nil, err
		}
	}

	n = int(r.u2())
	for i := 0; i < n && r.err == nil; i++ {
		m, err := readMethod(r, pool)
		if err != nil {
			return nil, err
		}
		c.Methods = append(c.Methods, m)
	}

	n = int(r.u2())
	for i := 0; i < n && r.err == nil; i++ {
		name, body, err := readAttribute(r, pool)
		if err != nil {
			return nil, err
		}
		if name == "RuntimeVisibleAnnotations" || name == "RuntimeInvisibleAnnotations" {
			anns, err := parseAnnotations(body, pool)
			if err != nil {
				return nil, err
			}
			c.Annotations = append(c.Annotations, anns...)
		}
	}

	if r.err != nil {
		return nil, r.err
	}
	return c, nil
}

func readMethod(r *reader, pool constantPool) (Method, error) {
	m := Method{Access: r.u2()}
	nameIdx, descIdx := r.u2(), r.u2()
	if r.err != nil {
		return m, r.err
	}

	var err error
	if m.Name, err = pool.utf8(nameIdx); err != nil {
		return m, err
	}
	if m.Descriptor, err = pool.utf8(descIdx); err != nil {
		return m, err
	}

	n := int(r.u2())
	for i := 0; i < n && r.err == nil; i++ {
		name, body, err := readAttribute(r, pool)
		if err != nil {
			return m, err
		}
		if name != "Code" {
			continue
		}
		code := &reader{data: body}
		code.skip(4) // max_stack, max_locals
		length := int(code.u4())
		m.Code = code.bytes(length)
		if code.err != nil {
			return m, fmt.Errorf("%w: code of %s", ErrTruncated, m.Name)
		}
	}
	return m, r.err
}

func readAttribute(r *reader, pool constantPool) (string, []byte, error) {
	nameIdx := r.u2()
	length := int(r.u4())
	body := r.bytes(length)
	if r.err != nil {
		return "", nil, r.err
	}
	name, err := pool.utf8(nameIdx)
	return name, body, err
}

func skipAttributes(r *reader) error {
	n := int(r.u2())
	for i := 0; i < n && r.err == nil; i++ {
		r.skip(2)
		r.skip(int(r.u4()))
	}
	return r.err
}

// reader is a big-endian cursor with a sticky error.
type reader struct {
	data []byte
	pos  int
	err  error
}

func (r *reader) bytes(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.pos+n > len(r.data) {
		r.err = ErrTruncated
		return nil
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b
}

func (r *reader) skip(n int) { r.bytes(n) }

func (r *reader) u1() uint8 {
	if b := r.bytes(1); b != nil {
		return b[0]
	}
	return 0
}

func (r *reader) u2() uint16 {
	if b := r.bytes(2); b != nil {
		return binary.BigEndian.Uint16(b)
	}
	return 0
}

func (r *reader) u4() uint32 {
	if b := r.bytes(4); b != nil {
		return binary.BigEndian.Uint32(b)
	}
	return 0
}

// ClassNameFromPath derives the fully-qualified class name from a storage
// path relative to a class root: separators become dots and the .class
// suffix is dropped.
func ClassNameFromPath(path string) string {
	path = strings.ReplaceAll(path, "\\", "/")
	path = strings.TrimPrefix(path, "/")
	path = strings.TrimSuffix(path, ".class")
	return strings.ReplaceAll(path, "/", ".")
}

// PathFromClassName is the inverse of ClassNameFromPath.
func PathFromClassName(name string) string {
	return strings.ReplaceAll(name, ".", "/") + ".class"
}

func internalToDotted(name string) string {
	return strings.ReplaceAll(name, "/", ".")
}
