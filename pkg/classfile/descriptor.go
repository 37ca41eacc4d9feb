package classfile

import (
	"fmt"
	"strings"
)

var primitives = map[byte]string{
	'B': "byte",
	'C': "char",
	'D': "double",
	'F': "float",
	'I': "int",
	'J': "long",
	'S': "short",
	'Z': "boolean",
	'V': "void",
}

// DecodeDescriptor turns a method descriptor such as "(Ljava/lang/String;[I)V"
// into Java source notation: the parameter types and the return type.
func DecodeDescriptor(desc string) ([]string, string, error) {
	if !strings.HasPrefix(desc, "(") {
		return nil, "", fmt.Errorf("%w: method descriptor %q", ErrMalformed, desc)
	}

	var params []string
	i := 1
	for i < len(desc) && desc[i] != ')' {
		t, n, err := decodeFieldType(desc[i:])
		if err != nil {
			return nil, "", fmt.Errorf("%w: method descriptor %q", ErrMalformed, desc)
		}
		params = append(params, t)
		i += n
	}
	if i >= len(desc) {
		return nil, "", fmt.Errorf("%w: method descriptor %q", ErrMalformed, desc)
	}

	ret, n, err := decodeFieldType(desc[i+1:])
	if err != nil || i+1+n != len(desc) {
		return nil, "", fmt.Errorf("%w: method descriptor %q", ErrMalformed, desc)
	}
	return params, ret, nil
}

// TypeName decodes a single field descriptor such as "Ljavax/ejb/Stateless;".
func TypeName(desc string) string {
	t, n, err := decodeFieldType(desc)
	if err != nil || n != len(desc) {
		return internalToDotted(desc)
	}
	return t
}

func decodeFieldType(s string) (string, int, error) {
	dims := 0
	for dims < len(s) && s[dims] == '[' {
		dims++
	}
	if dims >= len(s) {
		return "", 0, ErrMalformed
	}

	var base string
	n := dims + 1
	if s[dims] == 'L' {
		end := strings.IndexByte(s[dims:], ';')
		if end < 0 {
			return "", 0, ErrMalformed
		}
		base = internalToDotted(s[dims+1 : dims+end])
		n = dims + end + 1
	} else if p, ok := primitives[s[dims]]; ok {
		base = p
	} else {
		return "", 0, ErrMalformed
	}

	return base + strings.Repeat("[]", dims), n, nil
}
