package classfile

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// operandBytes holds the operand length of every fixed-size opcode; -1 marks
// opcodes that are undefined or variable-length.
var operandBytes = func() [256]int {
	var t [256]int
	for i := range t {
		t[i] = -1
	}
	set := func(from, to, n int) {
		for op := from; op <= to; op++ {
			t[op] = n
		}
	}
	set(0x00, 0x0f, 0) // nop .. dconst_1
	t[0x10] = 1        // bipush
	t[0x11] = 2        // sipush
	t[0x12] = 1        // ldc
	set(0x13, 0x14, 2) // ldc_w, ldc2_w
	set(0x15, 0x19, 1) // iload .. aload
	set(0x1a, 0x35, 0) // iload_0 .. saload
	set(0x36, 0x3a, 1) // istore .. astore
	set(0x3b, 0x83, 0) // istore_0 .. lxor
	t[0x84] = 2        // iinc
	set(0x85, 0x98, 0) // conversions, compares
	set(0x99, 0xa8, 2) // if*, goto, jsr
	t[0xa9] = 1        // ret
	set(0xac, 0xb1, 0) // returns
	set(0xb2, 0xb8, 2) // field access, invokevirtual/special/static
	set(0xb9, 0xba, 4) // invokeinterface, invokedynamic
	t[0xbb] = 2        // new
	t[0xbc] = 1        // newarray
	t[0xbd] = 2        // anewarray
	set(0xbe, 0xbf, 0) // arraylength, athrow
	set(0xc0, 0xc1, 2) // checkcast, instanceof
	set(0xc2, 0xc3, 0) // monitorenter, monitorexit
	t[0xc5] = 3        // multianewarray
	set(0xc6, 0xc7, 2) // ifnull, ifnonnull
	set(0xc8, 0xc9, 4) // goto_w, jsr_w
	t[0xca] = 0        // breakpoint
	set(0xfe, 0xff, 0) // impdep1, impdep2
	return t
}()

const (
	opTableSwitch  = 0xaa
	opLookupSwitch = 0xab
	opWide         = 0xc4
	opIinc         = 0x84
)

// symbolic are the opcodes whose operand is a constant pool index, with the
// mnemonic a disassembler prints for them.
var symbolic = map[byte]string{
	0x12: "ldc",
	0x13: "ldc_w",
	0x14: "ldc2_w",
	0xb2: "getstatic",
	0xb3: "putstatic",
	0xb4: "getfield",
	0xb5: "putfield",
	0xb6: "invokevirtual",
	0xb7: "invokespecial",
	0xb8: "invokestatic",
	0xb9: "invokeinterface",
	0xba: "invokedynamic",
	0xbb: "new",
	0xbd: "anewarray",
	0xc0: "checkcast",
	0xc1: "instanceof",
	0xc5: "multianewarray",
}

// Listing renders the symbolic instructions of a method's bytecode, one per
// line, e.g. "invokevirtual com/acme/OrderService.placeOrder:()V". Purely
// arithmetic or control-flow instructions are omitted. Decoding stops at the
// first undefined opcode; the lines decoded so far are returned with the error.
func (c *Class) Listing(m Method) (string, error) {
	var lines []string
	code := m.Code

	for pc := 0; pc < len(code); {
		op := code[pc]
		next, err := instructionEnd(code, pc)
		if err != nil {
			return strings.Join(lines, "\n"), fmt.Errorf("%s%s: %w", m.Name, m.Descriptor, err)
		}

		if mnemonic, ok := symbolic[op]; ok {
			var idx uint16
			if op == 0x12 {
				idx = uint16(code[pc+1])
			} else {
				idx = binary.BigEndian.Uint16(code[pc+1:])
			}
			lines = append(lines, mnemonic+" "+c.pool.symbol(idx))
		}
		pc = next
	}
	return strings.Join(lines, "\n"), nil
}

// instructionEnd returns the offset of the instruction following the one at pc.
func instructionEnd(code []byte, pc int) (int, error) {
	op := code[pc]
	var end int

	switch op {
	case opTableSwitch, opLookupSwitch:
		// operands are aligned to a multiple of four from the start of the code
		base := pc + 1 + (4-(pc+1)%4)%4
		if base+12 > len(code) {
			return 0, ErrTruncated
		}
		if op == opTableSwitch {
			low := int32(binary.BigEndian.Uint32(code[base+4:]))
			high := int32(binary.BigEndian.Uint32(code[base+8:]))
			if high < low {
				return 0, fmt.Errorf("%w: tableswitch bounds %d > %d", ErrMalformed, low, high)
			}
			end = base + 12 + int(int64(high)-int64(low)+1)*4
		} else {
			pairs := int32(binary.BigEndian.Uint32(code[base+4:]))
			if pairs < 0 {
				return 0, fmt.Errorf("%w: lookupswitch with %d pairs", ErrMalformed, pairs)
			}
			end = base + 8 + int(pairs)*8
		}
	case opWide:
		if pc+1 >= len(code) {
			return 0, ErrTruncated
		}
		if code[pc+1] == opIinc {
			end = pc + 6
		} else {
			end = pc + 4
		}
	default:
		n := operandBytes[op]
		if n < 0 {
			return 0, fmt.Errorf("%w: undefined opcode 0x%02x at %d", ErrMalformed, op, pc)
		}
		end = pc + 1 + n
	}

	if end > len(code) {
		return 0, ErrTruncated
	}
	return end, nil
}
