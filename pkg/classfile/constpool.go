package classfile

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	tagUtf8               = 1
	tagInteger            = 3
	tagFloat              = 4
	tagLong               = 5
	tagDouble             = 6
	tagClass              = 7
	tagString             = 8
	tagFieldref           = 9
	tagMethodref          = 10
	tagInterfaceMethodref = 11
	tagNameAndType        = 12
	tagMethodHandle       = 15
	tagMethodType         = 16
	tagDynamic            = 17
	tagInvokeDynamic      = 18
	tagModule             = 19
	tagPackage            = 20
)

type constant struct {
	tag  uint8
	text string // Utf8
	a, b uint16 // indexes into the pool
	num  uint64 // numeric payload
}

// constantPool is 1-indexed; slot 0 and the second slot of long/double are zero.
type constantPool []constant

func readConstantPool(r *reader) (constantPool, error) {
	count := int(r.u2())
	if r.err != nil {
		return nil, r.err
	}
	pool := make(constantPool, count)

	for i := 1; i < count; i++ {
		c := constant{tag: r.u1()}
		switch c.tag {
		case tagUtf8:
			c.text = decodeModifiedUTF8(r.bytes(int(r.u2())))
		case tagInteger, tagFloat:
			c.num = uint64(r.u4())
		case tagLong, tagDouble:
			c.num = uint64(r.u4())<<32 | uint64(r.u4())
		case tagClass, tagString, tagMethodType, tagModule, tagPackage:
			c.a = r.u2()
		case tagFieldref, tagMethodref, tagInterfaceMethodref, tagNameAndType, tagDynamic, tagInvokeDynamic:
			c.a, c.b = r.u2(), r.u2()
		case tagMethodHandle:
			c.a = uint16(r.u1())
			c.b = r.u2()
		default:
			if r.err != nil {
				return nil, r.err
			}
			return nil, fmt.Errorf("%w: unknown constant tag %d at #%d", ErrMalformed, c.tag, i)
		}
		if r.err != nil {
			return nil, r.err
		}
		pool[i] = c
		if c.tag == tagLong || c.tag == tagDouble {
			i++
		}
	}
	return pool, nil
}

func (p constantPool) get(idx uint16, tags ...uint8) (constant, error) {
	if idx == 0 || int(idx) >= len(p) {
		return constant{}, fmt.Errorf("%w: constant #%d out of range", ErrMalformed, idx)
	}
	c := p[idx]
	for _, t := range tags {
		if c.tag == t {
			return c, nil
		}
	}
	return constant{}, fmt.Errorf("%w: constant #%d has tag %d", ErrMalformed, idx, c.tag)
}

func (p constantPool) utf8(idx uint16) (string, error) {
	c, err := p.get(idx, tagUtf8)
	return c.text, err
}

// className returns the dotted name of a Class constant.
func (p constantPool) className(idx uint16) (string, error) {
	c, err := p.get(idx, tagClass)
	if err != nil {
		return "", err
	}
	name, err := p.utf8(c.a)
	return internalToDotted(name), err
}

// symbol renders a constant the way a disassembler comments it: classes in
// internal form, member references as owner.name:descriptor, strings quoted.
func (p constantPool) symbol(idx uint16) string {
	c, err := p.get(idx, tagClass, tagString, tagFieldref, tagMethodref, tagInterfaceMethodref,
		tagInteger, tagFloat, tagLong, tagDouble, tagInvokeDynamic, tagDynamic, tagMethodType)
	if err != nil {
		return "#" + strconv.Itoa(int(idx))
	}

	switch c.tag {
	case tagClass:
		name, _ := p.utf8(c.a)
		return name
	case tagString:
		s, _ := p.utf8(c.a)
		return strconv.Quote(s)
	case tagFieldref, tagMethodref, tagInterfaceMethodref:
		owner, _ := p.get(c.a, tagClass)
		ownerName, _ := p.utf8(owner.a)
		return ownerName + "." + p.nameAndType(c.b)
	case tagInvokeDynamic, tagDynamic:
		return p.nameAndType(c.b)
	case tagMethodType:
		desc, _ := p.utf8(c.a)
		return desc
	case tagInteger:
		return strconv.Itoa(int(int32(c.num)))
	case tagFloat:
		return strconv.FormatFloat(float64(math.Float32frombits(uint32(c.num))), 'g', -1, 32)
	case tagLong:
		return strconv.FormatInt(int64(c.num), 10) + "l"
	case tagDouble:
		return strconv.FormatFloat(math.Float64frombits(c.num), 'g', -1, 64) + "d"
	}
	return ""
}

func (p constantPool) nameAndType(idx uint16) string {
	nt, err := p.get(idx, tagNameAndType)
	if err != nil {
		return "#" + strconv.Itoa(int(idx))
	}
	name, _ := p.utf8(nt.a)
	desc, _ := p.utf8(nt.b)
	return name + ":" + desc
}

// decodeModifiedUTF8 handles the two JVM deviations from UTF-8 that occur in
// practice: the two-byte NUL and surrogate pairs encoded as separate triples.
func decodeModifiedUTF8(b []byte) string {
	var sb strings.Builder
	sb.Grow(len(b))
	for i := 0; i < len(b); {
		c := b[i]
		switch {
		case c < 0x80:
			sb.WriteByte(c)
			i++
		case c&0xE0 == 0xC0 && i+1 < len(b):
			sb.WriteRune(rune(c&0x1F)<<6 | rune(b[i+1]&0x3F))
			i += 2
		case c&0xF0 == 0xE0 && i+2 < len(b):
			r := rune(c&0x0F)<<12 | rune(b[i+1]&0x3F)<<6 | rune(b[i+2]&0x3F)
			if r >= 0xD800 && r <= 0xDBFF && i+5 < len(b) && b[i+3]&0xF0 == 0xE0 {
				lo := rune(b[i+3]&0x0F)<<12 | rune(b[i+4]&0x3F)<<6 | rune(b[i+5]&0x3F)
				if lo >= 0xDC00 && lo <= 0xDFFF {
					sb.WriteRune(0x10000 + (r-0xD800)<<10 + (lo - 0xDC00))
					i += 6
					continue
				}
			}
			sb.WriteRune(r)
			i += 3
		default:
			sb.WriteRune(0xFFFD)
			i++
		}
	}
	return sb.String()
}

// Literals returns the Utf8 constants of the class that are not symbolic
// references: names of Class, Module and Package constants and descriptor
// shaped text (method descriptors, field and annotation type descriptors,
// generic signatures) are left out. Order follows the pool.
func (c *Class) Literals() []string {
	symbolic := make(map[uint16]bool)
	for _, k := range c.pool {
		switch k.tag {
		case tagClass, tagModule, tagPackage:
			symbolic[k.a] = true
		}
	}

	var out []string
	for i, k := range c.pool {
		if k.tag != tagUtf8 || symbolic[uint16(i)] || isDescriptor(k.text) {
			continue
		}
		out = append(out, k.text)
	}
	return out
}

func isDescriptor(s string) bool {
	if s == "" {
		return false
	}
	switch s[0] {
	case '(':
		return strings.Contains(s, ")")
	case 'L', '[':
		return strings.HasSuffix(s, ";")
	}
	return false
}
