package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Workspace is the scratch area of one analysis run. It must not be shared
// between concurrent runs.
type Workspace struct {
	root string
}

// NewWorkspace creates a fresh run directory below base (the OS temp dir when empty).
func NewWorkspace(base string) (*Workspace, error) {
	if base == "" {
		base = os.TempDir()
	}
	if err := os.MkdirAll(base, 0755); err != nil {
		return nil, fmt.Errorf("creating scratch base %s: %w", base, err)
	}

	root := filepath.Join(base, "earscope-"+uuid.NewString())
	if err := os.Mkdir(root, 0755); err != nil {
		return nil, fmt.Errorf("creating workspace: %w", err)
	}
	return &Workspace{root: root}, nil
}

// Root returns the run directory.
func (w *Workspace) Root() string {
	return w.root
}

// ArchiveDir is where the outer container is extracted.
func (w *Workspace) ArchiveDir() string {
	return filepath.Join(w.root, "archive")
}

// ModuleDir is the sibling location the index-th declared module is
// extracted to. The index keeps URIs that sanitize alike (a/b.jar, a_b.jar)
// apart.
func (w *Workspace) ModuleDir(index int, uri string) string {
	return filepath.Join(w.root, "modules", fmt.Sprintf("%03d-%s", index, sanitize(uri)))
}

// LibraryDir is where the lib-th bundled jar of the index-th module is
// extracted to.
func (w *Workspace) LibraryDir(index, lib int, path string) string {
	return filepath.Join(w.root, "libs", fmt.Sprintf("%03d", index), fmt.Sprintf("%03d-%s", lib, sanitize(path)))
}

// Cleanup removes the run directory and everything in it.
func (w *Workspace) Cleanup() error {
	if w.root == "" {
		return nil
	}
	return os.RemoveAll(w.root)
}

func sanitize(uri string) string {
	r := strings.NewReplacer("/", "_", "\\", "_", "..", "_", "!", "_", ":", "_")
	return r.Replace(uri)
}
