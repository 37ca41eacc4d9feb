package archive

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildZip(t *testing.T, entries map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, data := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func writeFile(t *testing.T, path string, data []byte) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func TestExtractPreservesRelativePaths(t *testing.T) {
	tmp := t.TempDir()
	war := buildZip(t, map[string][]byte{"WEB-INF/web.xml": []byte("<web-app/>")})
	ear := writeFile(t, filepath.Join(tmp, "app.ear"), buildZip(t, map[string][]byte{
		"META-INF/application.xml": []byte("<application/>"),
		"shop.war":                 war,
		"lib/util.jar":             []byte("not really a jar"),
	}))

	dest := filepath.Join(tmp, "out")
	n, err := Extract(ear, dest)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	data, err := os.ReadFile(filepath.Join(dest, "META-INF", "application.xml"))
	require.NoError(t, err)
	assert.Equal(t, "<application/>", string(data))

	// nested containers stay packed until asked for
	assert.True(t, IsArchive(filepath.Join(dest, "shop.war")))
	assert.NoDirExists(t, filepath.Join(dest, "shop.war", "WEB-INF"))
	assert.False(t, IsArchive(filepath.Join(dest, "lib", "util.jar")))
}

func TestExtractCorruptArchive(t *testing.T) {
	tmp := t.TempDir()
	bogus := writeFile(t, filepath.Join(tmp, "broken.ear"), []byte("this is not a zip file"))

	_, err := Extract(bogus, filepath.Join(tmp, "out"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCorruptArchive)

	_, err = Extract(filepath.Join(tmp, "missing.ear"), filepath.Join(tmp, "out"))
	assert.ErrorIs(t, err, ErrCorruptArchive)
}

func TestExtractRejectsEscapingEntries(t *testing.T) {
	tmp := t.TempDir()
	evil := writeFile(t, filepath.Join(tmp, "evil.ear"), buildZip(t, map[string][]byte{
		"../../escape.txt": []byte("x"),
	}))

	_, err := Extract(evil, filepath.Join(tmp, "out"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCorruptArchive)
	assert.ErrorIs(t, err, ErrUnsafePath)
	assert.NoFileExists(t, filepath.Join(tmp, "escape.txt"))
}

func TestExtractNested(t *testing.T) {
	tmp := t.TempDir()
	jar := writeFile(t, filepath.Join(tmp, "orders.jar"), buildZip(t, map[string][]byte{
		"META-INF/ejb-jar.xml": []byte("<ejb-jar/>"),
	}))

	dir, err := ExtractNested(jar, filepath.Join(tmp, "scratch", "orders"))
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "META-INF", "ejb-jar.xml"))

	// exploded modules are used in place
	exploded := filepath.Join(tmp, "exploded.war")
	require.NoError(t, os.MkdirAll(exploded, 0755))
	dir, err = ExtractNested(exploded, filepath.Join(tmp, "unused"))
	require.NoError(t, err)
	assert.Equal(t, exploded, dir)
	assert.NoDirExists(t, filepath.Join(tmp, "unused"))
}

func TestResolveEntry(t *testing.T) {
	root := t.TempDir()

	p, err := ResolveEntry(root, "web/shop.war")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "web", "shop.war"), p)

	_, err = ResolveEntry(root, "../outside.war")
	assert.ErrorIs(t, err, ErrUnsafePath)

	_, err = ResolveEntry(root, "/etc/passwd")
	assert.ErrorIs(t, err, ErrUnsafePath)
}

func TestWorkspaceLifecycle(t *testing.T) {
	base := t.TempDir()

	ws, err := NewWorkspace(base)
	require.NoError(t, err)
	assert.DirExists(t, ws.Root())

	other, err := NewWorkspace(base)
	require.NoError(t, err)
	assert.NotEqual(t, ws.Root(), other.Root(), "each run gets its own scratch area")

	assert.Equal(t, filepath.Join(ws.Root(), "modules", "000-lib_util.jar"), ws.ModuleDir(0, "lib/util.jar"))
	assert.NotContains(t, ws.ModuleDir(1, "../../x.war"), "..")
	assert.NotEqual(t, ws.ModuleDir(0, "a/b.jar"), ws.ModuleDir(1, "a_b.jar"))
	assert.Equal(t, filepath.Join(ws.Root(), "libs", "002", "001-WEB-INF_lib_a.jar"), ws.LibraryDir(2, 1, "WEB-INF/lib/a.jar"))

	require.NoError(t, ws.Cleanup())
	assert.NoDirExists(t, ws.Root())
	assert.DirExists(t, other.Root())
}
