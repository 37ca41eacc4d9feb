package classfile

import "fmt"

// Annotation is a class-level annotation. Values keeps the string-like
// elements (strings, enum constants, class literals, and arrays of those)
// keyed by element name.
type Annotation struct {
	Type   string
	Values map[string][]string
}

// Strings returns the values of the named element.
func (a Annotation) Strings(name string) []string {
	return a.Values[name]
}

func parseAnnotations(body []byte, pool constantPool) ([]Annotation, error) {
	r := &reader{data: body}
	n := int(r.u2())

	anns := make([]Annotation, 0, n)
	for i := 0; i < n && r.err == nil; i++ {
		a, err := readAnnotation(r, pool)
		if err != nil {
			return nil, err
		}
		anns = append(anns, a)
	}
	if r.err != nil {
		return nil, r.err
	}
	return anns, nil
}

func readAnnotation(r *reader, pool constantPool) (Annotation, error) {
	typeDesc, err := pool.utf8(r.u2())
	if err != nil {
		return Annotation{}, err
	}
	a := Annotation{Type: TypeName(typeDesc), Values: make(map[string][]string)}

	pairs := int(r.u2())
	for i := 0; i < pairs && r.err == nil; i++ {
		name, err := pool.utf8(r.u2())
		if err != nil {
			return a, err
		}
		values, err := readElementValue(r, pool)
		if err != nil {
			return a, err
		}
		if len(values) > 0 {
			a.Values[name] = append(a.Values[name], values...)
		}
	}
	return a, r.err
}

func readElementValue(r *reader, pool constantPool) ([]string, error) {
	tag := r.u1()
	if r.err != nil {
		return nil, r.err
	}

	switch tag {
	case 's':
		s, err := pool.utf8(r.u2())
		if err != nil {
			return nil, err
		}
		return []string{s}, nil
	case 'B', 'C', 'D', 'F', 'I', 'J', 'S', 'Z':
		return []string{pool.symbol(r.u2())}, nil
	case 'e':
		r.u2() // enum type
		constName, err := pool.utf8(r.u2())
		if err != nil {
			return nil, err
		}
		return []string{constName}, nil
	case 'c':
		desc, err := pool.utf8(r.u2())
		if err != nil {
			return nil, err
		}
		return []string{TypeName(desc)}, nil
	case '@':
		// nested annotations carry no string we report
		_, err := readAnnotation(r, pool)
		return nil, err
	case '[':
		var out []string
		n := int(r.u2())
		for i := 0; i < n && r.err == nil; i++ {
			vals, err := readElementValue(r, pool)
			if err != nil {
				return nil, err
			}
			out = append(out, vals...)
		}
		return out, r.err
	}
	return nil, fmt.Errorf("%w: element value tag %q", ErrMalformed, tag)
}
