package config

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func newTestReport(t *testing.T) *Report {
	t.Helper()

	reportFile, err := os.CreateTemp("", "quire-report-*.zip")
	if err != nil {
		t.Fatalf("failed to create temp report file: %v", err)
	}
	t.Cleanup(func() { os.Remove(reportFile.Name()) })

	return &Report{items: make(map[string]item), file: reportFile}
}

func TestReportClose_RemovesStoredDirs(t *testing.T) {
	r := newTestReport(t)

	// Stored directories simulate transient work areas
	dir1 := t.TempDir()
	dir2 := t.TempDir()

	// Put a file inside one of them to verify recursive removal
	if err := os.WriteFile(filepath.Join(dir1, "debug.txt"), []byte("test"), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	// Also store a regular file entry - it should NOT be removed
	tmpFile, err := os.CreateTemp("", "quire-stored-file-")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpFile.Close()
	defer os.Remove(tmpFile.Name())

	r.Store("workdir-1", dir1)
	r.Store("workdir-2", dir2)
	r.Store("result-file", tmpFile.Name())

	if err := r.Close(); err != nil {
		t.Fatalf("Report.Close() error: %v", err)
	}

	if _, err := os.Stat(dir1); !os.IsNotExist(err) {
		t.Errorf("expected dir1 to be removed, but it still exists")
	}
	if _, err := os.Stat(dir2); !os.IsNotExist(err) {
		t.Errorf("expected dir2 to be removed, but it still exists")
	}

	if _, err := os.Stat(tmpFile.Name()); err != nil {
		t.Errorf("stored file should not be removed, but got error: %v", err)
	}
}

func TestReportClose_NilReport(t *testing.T) {
	var r *Report
	if err := r.Close(); err != nil {
		t.Errorf("Close on nil report should not error, got: %v", err)
	}
}

func TestReportClose_NilFile(t *testing.T) {
	r := &Report{items: make(map[string]item)}
	if err := r.Close(); err != nil {
		t.Errorf("Close with nil file should not error, got: %v", err)
	}
}

func TestReportStore_PanicsOnConflict(t *testing.T) {
	r := newTestReport(t)

	r.Store("same", "/some/path")
	// same name, same path is fine
	r.Store("same", "/some/path")

	defer func() {
		if recover() == nil {
			t.Error("Store() with conflicting path should panic")
		}
	}()
	r.Store("same", "/other/path")
}

func TestReportStoreData(t *testing.T) {
	r := newTestReport(t)
	name := r.Name()

	r.StoreData("diag.txt", []byte("first page is empty"))

	if err := r.Close(); err != nil {
		t.Fatalf("Report.Close() error: %v", err)
	}

	zr, err := zip.OpenReader(name)
	if err != nil {
		t.Fatalf("report archive unreadable: %v", err)
	}
	defer zr.Close()

	got := make(map[string]string)
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("failed to open %s: %v", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("failed to read %s: %v", f.Name, err)
		}
		got[f.Name] = string(data)
	}

	if got["diag.txt"] != "first page is empty" {
		t.Errorf("diag.txt = %q, want the stored payload", got["diag.txt"])
	}
	if _, ok := got["MANIFEST"]; !ok {
		t.Error("report archive is missing the MANIFEST")
	}
}

func TestReportStoreData_PanicsOnConflict(t *testing.T) {
	r := newTestReport(t)

	r.StoreData("diag.txt", []byte("one"))

	defer func() {
		if recover() == nil {
			t.Error("StoreData() with a reused name should panic")
		}
	}()
	r.StoreData("diag.txt", []byte("two"))
}

func TestReportStore_MissingPathIgnored(t *testing.T) {
	r := newTestReport(t)

	r.Store("gone", filepath.Join(t.TempDir(), "never-created.txt"))

	if err := r.Close(); err != nil {
		t.Fatalf("Report.Close() error: %v", err)
	}
}
