package config

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"
)

func reportEntryNames(t *testing.T, path string) map[string]bool {
	t.Helper()

	zr, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("failed to open report archive: %v", err)
	}
	defer zr.Close()

	names := make(map[string]bool, len(zr.File))
	for _, f := range zr.File {
		names[f.Name] = true
	}
	return names
}

func TestReportClose_ArchivesEntries(t *testing.T) {
	tmpDir := t.TempDir()

	conf := &ReporterConfig{Destination: filepath.Join(tmpDir, "report.zip")}
	r, err := conf.Prepare()
	if err != nil {
		t.Fatalf("Prepare() error: %v", err)
	}

	// file entry
	logFile := filepath.Join(tmpDir, "final.log")
	if err := os.WriteFile(logFile, []byte("log line\n"), 0644); err != nil {
		t.Fatalf("failed to write log file: %v", err)
	}
	r.Store("final.log", logFile)

	// directory entry
	pagesDir := filepath.Join(tmpDir, "pages")
	if err := os.MkdirAll(pagesDir, 0755); err != nil {
		t.Fatalf("failed to create pages dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(pagesDir, "first.json"), []byte("{}"), 0644); err != nil {
		t.Fatalf("failed to write page payload: %v", err)
	}
	r.Store("pages", pagesDir)

	// data entry
	r.StoreData("config/config.yaml", []byte("version: 1\n"))

	// absent file entry is quietly skipped
	r.Store("gone.log", filepath.Join(tmpDir, "never-created.log"))

	if err := r.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	names := reportEntryNames(t, conf.Destination)

	for _, want := range []string{"MANIFEST", "final.log", "pages/first.json", "config/config.yaml"} {
		if !names[want] {
			t.Errorf("expected %q in report archive, have %v", want, names)
		}
	}
	if names["gone.log"] {
		t.Error("absent file should not be archived")
	}

	// Stored content must survive Close untouched.
	if _, err := os.Stat(logFile); err != nil {
		t.Errorf("stored file should still exist: %v", err)
	}
	if _, err := os.Stat(pagesDir); err != nil {
		t.Errorf("stored directory should still exist: %v", err)
	}
}

func TestReport_Name(t *testing.T) {
	tmpDir := t.TempDir()

	conf := &ReporterConfig{Destination: filepath.Join(tmpDir, "report.zip")}
	r, err := conf.Prepare()
	if err != nil {
		t.Fatalf("Prepare() error: %v", err)
	}
	defer r.Close()

	if name := r.Name(); !filepath.IsAbs(name) {
		t.Errorf("Name() = %q, expected absolute path", name)
	}

	var nilReport *Report
	if nilReport.Name() != "" {
		t.Error("Name() on nil report should be empty")
	}
}

func TestReport_StoreOverwritePanics(t *testing.T) {
	r := &Report{entries: make(map[string]entry)}
	r.Store("x", "/tmp/a")

	defer func() {
		if recover() == nil {
			t.Error("expected panic on conflicting Store")
		}
	}()
	r.Store("x", "/tmp/b")
}

func TestReport_NilSafety(t *testing.T) {
	var r *Report

	// none of these should panic on a nil report
	r.Store("a", "b")
	r.StoreData("c", []byte("d"))
	if err := r.Close(); err != nil {
		t.Errorf("Close on nil report should not error, got: %v", err)
	}
}

func TestReportClose_NilFile(t *testing.T) {
	r := &Report{entries: make(map[string]entry)}
	if err := r.Close(); err != nil {
		t.Errorf("Close with nil file should not error, got: %v", err)
	}
}
