package config

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"quire/misc"
)

// ReporterConfig says where the debug report archive ends up.
type ReporterConfig struct {
	Destination string `yaml:"destination" sanitize:"path_clean,assure_dir_exists_for_file" validate:"required,filepath"`
}

// Prepare opens the report archive for writing. When the configured
// destination cannot be created the report falls back to a temporary
// file so a failing run still leaves something behind.
func (conf *ReporterConfig) Prepare() (*Report, error) {
	r := &Report{items: make(map[string]item)}

	if f, err := os.Create(conf.Destination); err == nil {
		r.file = f
	} else if f, err = os.CreateTemp("", misc.GetAppName()+"-report.*.zip"); err == nil {
		r.file = f
	} else {
		return nil, fmt.Errorf("unable to create report: %w", err)
	}
	return r, nil
}

// item is a single report member, either a path on disk or an in-memory
// payload.
type item struct {
	source string    // path as handed to Store
	abs    string    // resolved path used for the manifest and archiving
	stamp  time.Time // recorded for in-memory payloads, zero otherwise
	data   []byte    // in-memory payload, nil for path items
}

// Report collects logs, effective configuration, diagnostics and work
// areas of a run into a single zip for bug reports. A nil *Report is a
// valid no-op receiver so callers never have to check whether reporting
// was requested. Not safe for concurrent use.
type Report struct {
	items map[string]item
	file  *os.File
}

// Close writes the archive out and removes stored directories, those are
// always transient work areas. Stored files belong to the user and stay.
func (r *Report) Close() error {
	if r == nil || r.file == nil {
		return nil
	}
	defer r.file.Close()
	if err := r.writeArchive(); err != nil {
		return err
	}
	r.removeWorkDirs()
	return nil
}

// Name returns the absolute path of the report archive, empty when no
// report was requested.
func (r *Report) Name() string {
	if r == nil || r.file == nil {
		return ""
	}
	if n, err := filepath.Abs(r.file.Name()); err == nil {
		return n
	}
	return r.file.Name()
}

// Store records a file or directory to be archived under name when the
// report is closed. The path is read at Close time, not now. Reusing a
// name for a different path is a programming error and panics.
func (r *Report) Store(name, path string) {
	if r == nil {
		return
	}

	if old, exists := r.items[name]; exists && old.source != path {
		panic(fmt.Sprintf("conflicting report entry %q: had %s, now %s", name, old.source, path))
	}

	it := item{source: path, abs: path}
	if p, err := filepath.Abs(path); err == nil {
		it.abs = p
	}
	r.items[name] = it
}

// StoreData records an in-memory payload to be archived as a file under
// name. Unlike Store the content is captured now.
func (r *Report) StoreData(name string, data []byte) {
	if r == nil {
		return
	}

	if _, exists := r.items[name]; exists {
		panic(fmt.Sprintf("conflicting report entry %q", name))
	}
	r.items[name] = item{data: data, stamp: time.Now()}
}

// removeWorkDirs deletes every stored directory that still exists.
func (r *Report) removeWorkDirs() {
	for _, it := range r.items {
		if len(it.data) > 0 {
			continue
		}
		if info, err := os.Stat(it.abs); err == nil && info.Mode().IsDir() {
			os.RemoveAll(it.abs)
		}
	}
}

// writeArchive assembles the final zip: a MANIFEST first, then every item
// in manifest order. Items whose path vanished since Store are dropped
// silently, the manifest still mentions them.
func (r *Report) writeArchive() error {
	arc := zip.NewWriter(r.file)
	defer arc.Close()

	names, manifest := r.manifest()
	if err := addFile(arc, "MANIFEST", time.Now(), manifest); err != nil {
		return err
	}

	for _, name := range names {
		it := r.items[name]
		if len(it.data) > 0 {
			if err := addFile(arc, name, it.stamp, bytes.NewReader(it.data)); err != nil {
				return err
			}
			continue
		}

		info, err := os.Stat(it.abs)
		if err != nil {
			continue
		}
		switch {
		case info.Mode().IsRegular():
			f, err := os.Open(it.abs)
			if err != nil {
				return err
			}
			if err := addFile(arc, name, info.ModTime(), f); err != nil {
				f.Close()
				return err
			}
			f.Close()
		case info.Mode().IsDir():
			if err := addTree(arc, name, it.abs); err != nil {
				return err
			}
		}
	}
	return nil
}

// manifest renders a sorted listing of everything the report holds and
// returns the names in listing order.
func (r *Report) manifest() ([]string, *bytes.Buffer) {
	buf := new(bytes.Buffer)
	if len(r.items) == 0 {
		return nil, buf
	}

	names := make([]string, 0, len(r.items))
	for name := range r.items {
		names = append(names, name)
	}
	sort.Strings(names)

	now := time.Now()
	for _, name := range names {
		it := r.items[name]
		stamp := it.stamp
		if stamp.IsZero() {
			stamp = now
		}
		fmt.Fprintf(buf, "%s\t%s\t%s\n", stamp.UTC().Format(time.UnixDate), name, it.abs)
	}
	return names, buf
}

func addFile(dst *zip.Writer, name string, t time.Time, src io.Reader) error {
	w, err := dst.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate, Modified: t})
	if err != nil {
		return err
	}
	_, err = io.Copy(w, src)
	return err
}

// addTree archives every regular file under dir, rooted at name inside
// the zip. Links, sockets and the like are ignored.
func addTree(dst *zip.Writer, name, dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		return addFile(dst, filepath.ToSlash(filepath.Join(name, rel)), info.ModTime(), f)
	})
}
