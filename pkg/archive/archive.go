// Package archive unpacks ZIP-based containers (EAR, WAR, JAR) into a
// scratch workspace owned by a single analysis run.
package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrCorruptArchive is returned when a container is not a readable ZIP archive.
var ErrCorruptArchive = errors.New("corrupt archive")

// ErrUnsafePath is returned when an entry would be written outside the destination.
var ErrUnsafePath = errors.New("entry escapes extraction root")

var zipMagic = []byte{'P', 'K', 0x03, 0x04}

// IsArchive reports whether path starts with a ZIP local file header.
func IsArchive(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	head := make([]byte, len(zipMagic))
	if _, err := io.ReadFull(f, head); err != nil {
		return false
	}
	return bytes.Equal(head, zipMagic)
}

// Extract unpacks every entry of the container at src into dest, preserving
// relative paths, and returns the number of files written. Nested containers
// are written as plain files; ExtractNested unpacks them on demand.
func Extract(src, dest string) (int, error) {
	r, err := zip.OpenReader(src)
	if err != nil {
		if errors.Is(err, zip.ErrInsecurePath) {
			if r != nil {
				r.Close()
			}
			return 0, fmt.Errorf("%w: %s: %w", ErrCorruptArchive, src, ErrUnsafePath)
		}
		return 0, fmt.Errorf("%w: %s: %v", ErrCorruptArchive, src, err)
	}
	defer r.Close()

	if err := os.MkdirAll(dest, 0755); err != nil {
		return 0, fmt.Errorf("creating %s: %w", dest, err)
	}

	count := 0
	for _, f := range r.File {
		target, err := entryPath(dest, f.Name)
		if err != nil {
			return count, fmt.Errorf("%w: %s: %w", ErrCorruptArchive, src, err)
		}

		if f.FileInfo().IsDir() || strings.HasSuffix(f.Name, "/") {
			if err := os.MkdirAll(target, 0755); err != nil {
				return count, fmt.Errorf("creating %s: %w", target, err)
			}
			continue
		}

		if err := writeEntry(f, target); err != nil {
			if errors.Is(err, zip.ErrFormat) || errors.Is(err, zip.ErrChecksum) || errors.Is(err, zip.ErrAlgorithm) {
				return count, fmt.Errorf("%w: %s: %v", ErrCorruptArchive, src, err)
			}
			return count, err
		}
		count++
	}

	return count, nil
}

// ExtractNested makes a nested module container browsable as a directory.
// Exploded modules (already directories) are returned unchanged; packed ones
// are extracted into dest.
func ExtractNested(path, dest string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return path, nil
	}
	if _, err := Extract(path, dest); err != nil {
		return "", err
	}
	return dest, nil
}

// ResolveEntry joins a descriptor-supplied relative path onto root, refusing
// paths that climb out of it.
func ResolveEntry(root, name string) (string, error) {
	return entryPath(root, name)
}

func entryPath(dest, name string) (string, error) {
	name = strings.ReplaceAll(name, "\\", "/")
	if filepath.IsAbs(name) || strings.HasPrefix(name, "/") {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	target := filepath.Join(dest, filepath.FromSlash(name))
	rel, err := filepath.Rel(dest, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	return target, nil
}

func writeEntry(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(target), err)
	}

	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("opening entry %s: %w", f.Name, err)
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("creating %s: %w", target, err)
	}

	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return fmt.Errorf("writing entry %s: %w", f.Name, err)
	}
	return out.Close()
}
