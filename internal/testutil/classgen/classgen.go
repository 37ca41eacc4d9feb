// Package classgen assembles small but valid class files for tests, so no
// binary fixtures or JDK are needed to exercise bytecode inspection.
package classgen

import (
	"bytes"
	"encoding/binary"
)

// Access flags.
const (
	Public    uint16 = 0x0001
	Private   uint16 = 0x0002
	Protected uint16 = 0x0004
	Static    uint16 = 0x0008
	Bridge    uint16 = 0x0040
	Synthetic uint16 = 0x1000
)

// Instr emits the bytes of one instruction, interning the constants it needs.
type Instr func(b *Builder) []byte

type method struct {
	access     uint16
	name, desc string
	code       []byte
}

type annotation struct {
	desc   string
	values map[string][]string
	order  []string
}

// Builder accumulates a class definition. Names use the internal form
// (com/acme/Foo).
type Builder struct {
	this, super string
	interfaces  []string
	methods     []method
	annotations []annotation

	pool    bytes.Buffer
	count   uint16
	interns map[string]uint16
}

// New starts a public class extending super (java/lang/Object when empty).
func New(this, super string) *Builder {
	if super == "" {
		super = "java/lang/Object"
	}
	return &Builder{this: this, super: super, count: 1, interns: make(map[string]uint16)}
}

// Implements adds interfaces.
func (b *Builder) Implements(ifaces ...string) *Builder {
	b.interfaces = append(b.interfaces, ifaces...)
	return b
}

// Method adds a method whose body is the given instructions followed by return.
func (b *Builder) Method(access uint16, name, desc string, instrs ...Instr) *Builder {
	var code []byte
	for _, in := range instrs {
		code = append(code, in(b)...)
	}
	code = append(code, 0xb1)
	b.methods = append(b.methods, method{access: access, name: name, desc: desc, code: code})
	return b
}

// Annotation adds a runtime-visible class annotation, e.g. "Ljavax/ejb/Stateless;".
// Pairs of element name and string value may follow; repeated names become arrays.
func (b *Builder) Annotation(desc string, kv ...string) *Builder {
	a := annotation{desc: desc, values: make(map[string][]string)}
	for i := 0; i+1 < len(kv); i += 2 {
		if _, ok := a.values[kv[i]]; !ok {
			a.order = append(a.order, kv[i])
		}
		a.values[kv[i]] = append(a.values[kv[i]], kv[i+1])
	}
	b.annotations = append(b.annotations, a)
	return b
}

// Bytes serialises the class file.
func (b *Builder) Bytes() []byte {
	thisIdx := b.class(b.this)
	superIdx := b.class(b.super)
	var ifaceIdx []uint16
	for _, i := range b.interfaces {
		ifaceIdx = append(ifaceIdx, b.class(i))
	}

	var methods bytes.Buffer
	put16(&methods, uint16(len(b.methods)))
	for _, m := range b.methods {
		put16(&methods, m.access)
		put16(&methods, b.utf8(m.name))
		put16(&methods, b.utf8(m.desc))
		put16(&methods, 1)
		put16(&methods, b.utf8("Code"))
		put32(&methods, uint32(12+len(m.code)))
		put16(&methods, 8) // max_stack
		put16(&methods, 8) // max_locals
		put32(&methods, uint32(len(m.code)))
		methods.Write(m.code)
		put16(&methods, 0) // exception table
		put16(&methods, 0) // attributes
	}

	var attrs bytes.Buffer
	if len(b.annotations) == 0 {
		put16(&attrs, 0)
	} else {
		var body bytes.Buffer
		put16(&body, uint16(len(b.annotations)))
		for _, a := range b.annotations {
			put16(&body, b.utf8(a.desc))
			put16(&body, uint16(len(a.order)))
			for _, name := range a.order {
				put16(&body, b.utf8(name))
				vals := a.values[name]
				if len(vals) == 1 {
					body.WriteByte('s')
					put16(&body, b.utf8(vals[0]))
					continue
				}
				body.WriteByte('[')
				put16(&body, uint16(len(vals)))
				for _, v := range vals {
					body.WriteByte('s')
					put16(&body, b.utf8(v))
				}
			}
		}
		put16(&attrs, 1)
		put16(&attrs, b.utf8("RuntimeVisibleAnnotations"))
		put32(&attrs, uint32(body.Len()))
		attrs.Write(body.Bytes())
	}

	var out bytes.Buffer
	put32(&out, 0xCAFEBABE)
	put16(&out, 0)  // minor
	put16(&out, 52) // Java 8
	put16(&out, b.count)
	out.Write(b.pool.Bytes())
	put16(&out, 0x0021) // public super
	put16(&out, thisIdx)
	put16(&out, superIdx)
	put16(&out, uint16(len(ifaceIdx)))
	for _, i := range ifaceIdx {
		put16(&out, i)
	}
	put16(&out, 0) // fields
	out.Write(methods.Bytes())
	out.Write(attrs.Bytes())
	return out.Bytes()
}

// InvokeVirtual calls owner.name:desc.
func InvokeVirtual(owner, name, desc string) Instr {
	return func(b *Builder) []byte {
		return op16(0xb6, b.member(10, owner, name, desc))
	}
}

// InvokeStatic calls a static method.
func InvokeStatic(owner, name, desc string) Instr {
	return func(b *Builder) []byte {
		return op16(0xb8, b.member(10, owner, name, desc))
	}
}

// InvokeInterface calls an interface method.
func InvokeInterface(owner, name, desc string) Instr {
	return func(b *Builder) []byte {
		return append(op16(0xb9, b.member(11, owner, name, desc)), 1, 0)
	}
}

// GetField reads an instance field.
func GetField(owner, name, desc string) Instr {
	return func(b *Builder) []byte {
		return op16(0xb4, b.member(9, owner, name, desc))
	}
}

// Ldc pushes a string constant.
func Ldc(s string) Instr {
	return func(b *Builder) []byte {
		idx := b.intern("S:"+s, func() {
			utf := b.utf8(s)
			b.pool.WriteByte(8)
			put16(&b.pool, utf)
		})
		if idx < 256 {
			return []byte{0x12, byte(idx)}
		}
		return op16(0x13, idx)
	}
}

// NewObject allocates an instance of class.
func NewObject(class string) Instr {
	return func(b *Builder) []byte {
		return op16(0xbb, b.class(class))
	}
}

// Raw emits bytes verbatim.
func Raw(code ...byte) Instr {
	return func(*Builder) []byte { return code }
}

func (b *Builder) intern(key string, write func()) uint16 {
	if idx, ok := b.interns[key]; ok {
		return idx
	}
	write()
	idx := b.count
	b.count++
	b.interns[key] = idx
	return idx
}

func (b *Builder) utf8(s string) uint16 {
	return b.intern("U:"+s, func() {
		b.pool.WriteByte(1)
		put16(&b.pool, uint16(len(s)))
		b.pool.WriteString(s)
	})
}

func (b *Builder) class(name string) uint16 {
	utf := b.utf8(name)
	return b.intern("C:"+name, func() {
		b.pool.WriteByte(7)
		put16(&b.pool, utf)
	})
}

func (b *Builder) member(tag byte, owner, name, desc string) uint16 {
	cls := b.class(owner)
	n, d := b.utf8(name), b.utf8(desc)
	nt := b.intern("N:"+name+":"+desc, func() {
		b.pool.WriteByte(12)
		put16(&b.pool, n)
		put16(&b.pool, d)
	})
	return b.intern(string(rune('0'+tag))+owner+"."+name+":"+desc, func() {
		b.pool.WriteByte(tag)
		put16(&b.pool, cls)
		put16(&b.pool, nt)
	})
}

func op16(op byte, idx uint16) []byte {
	return []byte{op, byte(idx >> 8), byte(idx)}
}

func put16(buf *bytes.Buffer, v uint16) {
	_ = binary.Write(buf, binary.BigEndian, v)
}

func put32(buf *bytes.Buffer, v uint32) {
	_ = binary.Write(buf, binary.BigEndian, v)
}
