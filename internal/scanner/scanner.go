// Package scanner walks an extracted module and sorts its entries into class
// units, shipped Java sources and bundled library jars. Exclude patterns use
// gitignore syntax and are matched against paths relative to the class root.
package scanner

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/l3aro/earscope/pkg/types"
)

// WebClassRoot and WebLibDir are the conventional class locations of a web module.
const (
	WebClassRoot = "WEB-INF/classes"
	WebLibDir    = "WEB-INF/lib"
)

// Entry is one file of interest found inside a module.
type Entry struct {
	// Path is relative to Root, slash-separated.
	Path string
	// Root is the class root the entry belongs to, relative to the module
	// directory ("" for the module root itself).
	Root     string
	FullPath string
	Size     int64
}

// Contents is the result of scanning one module directory.
type Contents struct {
	Classes   []Entry
	Sources   []Entry
	Libraries []Entry
	// Excluded counts class entries dropped by exclude patterns.
	Excluded int
}

// Options configures the scanner behavior.
type Options struct {
	// Excludes are gitignore-style patterns applied to class paths.
	Excludes []string
	// SkipHidden skips dot-files and dot-directories.
	SkipHidden bool
}

// DefaultOptions returns scanner options with sensible defaults.
func DefaultOptions() Options {
	return Options{SkipHidden: true}
}

// Scanner provides module scanning.
type Scanner struct {
	opts     Options
	patterns []Pattern
}

// New creates a new Scanner with the given options.
func New(opts Options) *Scanner {
	s := &Scanner{opts: opts}
	for _, raw := range opts.Excludes {
		raw = strings.TrimSpace(raw)
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		s.patterns = append(s.patterns, ParsePattern(raw))
	}
	return s
}

// ClassRoot returns the class root of a module of the given kind.
func ClassRoot(kind types.ModuleKind) string {
	if kind == types.WebModule {
		return WebClassRoot
	}
	return ""
}

// Scan walks dir, an extracted module of the given kind. Class units are
// collected below the module's class root; sources anywhere; library jars
// only from WEB-INF/lib of web modules.
func (s *Scanner) Scan(dir string, kind types.ModuleKind) (*Contents, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("scanning module: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("scanning module: %s is not a directory", dir)
	}

	root := ClassRoot(kind)
	contents := &Contents{}

	err = filepath.Walk(dir, func(full string, fi os.FileInfo, err error) error {
		if err != nil {
			// unreadable subtrees only lose their own entries
			return nil
		}
		rel, err := filepath.Rel(dir, full)
		if err != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if s.opts.SkipHidden && strings.HasPrefix(fi.Name(), ".") {
			if fi.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if fi.IsDir() || !fi.Mode().IsRegular() {
			return nil
		}

		switch strings.ToLower(path.Ext(rel)) {
		case ".class":
			classPath, ok := underRoot(rel, root)
			if !ok {
				return nil
			}
			if Excluded(classPath, s.patterns) {
				contents.Excluded++
				return nil
			}
			contents.Classes = append(contents.Classes, Entry{Path: classPath, Root: root, FullPath: full, Size: fi.Size()})
		case ".java":
			contents.Sources = append(contents.Sources, Entry{Path: rel, FullPath: full, Size: fi.Size()})
		case ".jar":
			if kind == types.WebModule && path.Dir(rel) == WebLibDir {
				contents.Libraries = append(contents.Libraries, Entry{Path: rel, FullPath: full, Size: fi.Size()})
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking module: %w", err)
	}

	sortEntries(contents.Classes)
	sortEntries(contents.Sources)
	sortEntries(contents.Libraries)
	return contents, nil
}

func underRoot(rel, root string) (string, bool) {
	if root == "" {
		// compiled JSPs and container metadata are not class units of the module
		if strings.HasPrefix(rel, "META-INF/") {
			return "", false
		}
		return rel, true
	}
	if !strings.HasPrefix(rel, root+"/") {
		return "", false
	}
	return strings.TrimPrefix(rel, root+"/"), true
}

func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Root != entries[j].Root {
			return entries[i].Root < entries[j].Root
		}
		return entries[i].Path < entries[j].Path
	})
}

// Scan is a convenience function that scans a module with default options.
func Scan(dir string, kind types.ModuleKind) (*Contents, error) {
	return New(DefaultOptions()).Scan(dir, kind)
}
