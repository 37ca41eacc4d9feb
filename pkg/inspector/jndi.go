package inspector

import (
	"regexp"
	"sort"
	"strings"

	"github.com/l3aro/earscope/pkg/classfile"
	"github.com/l3aro/earscope/pkg/types"
)

var jndiPattern = regexp.MustCompile(`(java:global|java:comp/env|ejb/)[a-zA-Z0-9/._-]+`)

// ScanJndi returns the distinct resource-lookup literals found anywhere in
// data, sorted by name.
func ScanJndi(data []byte) []types.JndiReference {
	refs := newJndiSet()
	for _, m := range jndiPattern.FindAll(data, -1) {
		refs.add(string(m))
	}
	return refs.sorted()
}

// ScanJndiLiterals matches each constant on its own, so a match never spans
// or borrows bytes from neighbouring pool entries.
func ScanJndiLiterals(literals []string) []types.JndiReference {
	refs := newJndiSet()
	for _, lit := range literals {
		for _, m := range jndiPattern.FindAllString(lit, -1) {
			refs.add(m)
		}
	}
	return refs.sorted()
}

// ClassJndi scans a class file's literal constants when the file parses,
// which keeps package paths such as com/acme/ejb/Foo out of the result, and
// the raw bytes otherwise.
func ClassJndi(data []byte) []types.JndiReference {
	c, err := classfile.Parse(data)
	if err != nil {
		return ScanJndi(data)
	}
	return ScanJndiLiterals(c.Literals())
}

type jndiSet struct {
	seen map[string]bool
	refs []types.JndiReference
}

func newJndiSet() *jndiSet {
	return &jndiSet{seen: make(map[string]bool)}
}

func (s *jndiSet) add(name string) {
	if s.seen[name] {
		return
	}
	s.seen[name] = true
	s.refs = append(s.refs, types.JndiReference{Name: name, Namespace: namespaceOf(name)})
}

func (s *jndiSet) sorted() []types.JndiReference {
	if len(s.refs) == 0 {
		return nil
	}
	sort.Slice(s.refs, func(i, j int) bool { return s.refs[i].Name < s.refs[j].Name })
	return s.refs
}

func namespaceOf(name string) types.JndiNamespace {
	switch {
	case strings.HasPrefix(name, string(types.JndiGlobal)):
		return types.JndiGlobal
	case strings.HasPrefix(name, string(types.JndiCompEnv)):
		return types.JndiCompEnv
	}
	return types.JndiEJB
}
