package descriptor

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/l3aro/earscope/pkg/types"
)

// bindingPatterns flag WebSphere specific JNDI names in any deployment file.
var bindingPatterns = []struct {
	rule types.BindingRule
	re   *regexp.Regexp
}{
	{types.CellScopedName, regexp.MustCompile(`(?i)cell=[^\n"'<>]*?node=[^\n"'<>]*?server=[^\s"'<>,;]*`)},
	{types.DataSourceName, regexp.MustCompile(`(?i)jdbc/[a-z0-9_./-]*-ds`)},
	{types.QueueConnectionFactory, regexp.MustCompile(`(?i)wmq/[a-z0-9_./-]*qcf`)},
}

// class roots hold application resources, not deployment files
var skipDirs = map[string]bool{
	"WEB-INF/classes": true,
	"WEB-INF/lib":     true,
}

// FileError is a deployment file the binding scan could only read as text.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string { return e.Path + ": " + e.Err.Error() }

func (e *FileError) Unwrap() error { return e.Err }

// IsBindingFile reports whether name is an IBM binding file such as
// ibm-web-bnd.xml or ibm-ejb-jar-bnd.xmi.
func IsBindingFile(name string) bool {
	base := strings.ToLower(path.Base(name))
	ext := path.Ext(base)
	return strings.HasPrefix(base, "ibm-") && strings.HasSuffix(strings.TrimSuffix(base, ext), "-bnd") &&
		(ext == ".xml" || ext == ".xmi")
}

// ScanVendorBindings reads every .xml and .xmi file of an extracted module
// outside its class roots and reports the application-server specific JNDI
// bindings they carry. Binding files that are not well-formed are still
// scanned as text and returned as FileErrors.
func ScanVendorBindings(root string) ([]types.VendorBinding, []*FileError, error) {
	var bindings []types.VendorBinding
	var problems []*FileError

	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if skipDirs[rel] {
				return filepath.SkipDir
			}
			return nil
		}
		ext := strings.ToLower(path.Ext(rel))
		if ext != ".xml" && ext != ".xmi" {
			return nil
		}

		data, err := os.ReadFile(p)
		if err != nil {
			problems = append(problems, &FileError{Path: rel, Err: err})
			return nil
		}
		found, err := ParseVendorBindings(rel, data)
		if err != nil {
			problems = append(problems, &FileError{Path: rel, Err: err})
		}
		bindings = append(bindings, found...)
		return nil
	})
	if err != nil {
		return bindings, problems, fmt.Errorf("scanning %s: %w", root, err)
	}
	return bindings, problems, nil
}

// ParseVendorBindings scans one deployment file stored at rel. Explicit
// entries of IBM binding files come first, then pattern matches in rule
// order, each deduplicated. The error is only set for a binding file that is
// not well-formed; its pattern matches are returned regardless.
func ParseVendorBindings(rel string, data []byte) ([]types.VendorBinding, error) {
	seen := make(map[types.VendorBinding]bool)
	var out []types.VendorBinding
	add := func(b types.VendorBinding) {
		if b.Value == "" || seen[b] {
			return
		}
		seen[b] = true
		out = append(out, b)
	}

	var parseErr error
	if IsBindingFile(rel) {
		doc, err := parseDocument(data)
		if err != nil {
			parseErr = fmt.Errorf("%w: %v", ErrMalformedDescriptor, err)
		} else {
			bindingEntries(doc.root, "", func(name, value string) {
				add(types.VendorBinding{File: rel, Rule: types.BindingFileEntry, Name: name, Value: value})
			})
		}
	}

	for _, p := range bindingPatterns {
		for _, m := range p.re.FindAll(data, -1) {
			add(types.VendorBinding{File: rel, Rule: p.rule, Value: strings.TrimSpace(string(m))})
		}
	}
	return out, parseErr
}

// bindingEntries reports every binding attribute below n together with the
// nearest enclosing name attribute. The XML binding format spells them
// binding-name (destination-binding-name, ...), the older XMI one jndiName.
func bindingEntries(n *node, name string, emit func(name, value string)) {
	if own, ok := n.attr("name"); ok {
		name = own
	}
	for _, a := range n.attrs {
		if strings.HasSuffix(a.Name.Local, "binding-name") || a.Name.Local == "jndiName" {
			emit(name, strings.TrimSpace(a.Value))
		}
	}
	for _, c := range n.children {
		bindingEntries(c, name, emit)
	}
}
