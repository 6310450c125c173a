// Package archive feeds document sources stored in zip archives to the
// batch compiler without unpacking anything to disk.
package archive

import (
	"archive/zip"
	"fmt"
	"path"
	"strings"
)

// WalkFunc is called for every matching entry. The archive argument is the
// path given to Walk, file is the matched entry. A non-nil error stops the
// walk and is returned to the caller.
type WalkFunc func(archive string, file *zip.File) error

// Walk visits every regular file in the zip at archive whose name starts
// with prefix and carries one of the extensions in exts. Extensions are
// compared lower case with the leading dot, an empty exts matches any
// name. Entries that could address anything outside the archive root are
// skipped without calling walkFn, such names only show up in archives we
// have no business reading.
func Walk(archive, prefix string, exts []string, walkFn WalkFunc) error {
	r, err := zip.OpenReader(archive)
	if err != nil {
		return fmt.Errorf("unable to open archive %q: %w", archive, err)
	}
	defer r.Close()

	for _, f := range r.File {
		name := f.FileHeader.Name
		if escapesRoot(name) {
			continue
		}
		if f.FileInfo().IsDir() || !strings.HasPrefix(name, prefix) || !extMatches(name, exts) {
			continue
		}
		if err := walkFn(archive, f); err != nil {
			return err
		}
	}
	return nil
}

func extMatches(name string, exts []string) bool {
	if len(exts) == 0 {
		return true
	}
	ext := strings.ToLower(path.Ext(name))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}

// escapesRoot reports whether an entry name could reach outside the
// directory the archive would unpack into.
func escapesRoot(name string) bool {
	if path.IsAbs(name) || strings.HasPrefix(name, `\`) {
		return true
	}
	for _, part := range strings.Split(name, "/") {
		if part == ".." {
			return true
		}
	}
	return false
}
