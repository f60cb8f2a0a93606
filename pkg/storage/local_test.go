package storage

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLocalFile(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "guide.pdf")
	if err := os.WriteFile(p, []byte("%PDF-1.7"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	fh, err := LocalFile(p)
	if err != nil {
		t.Fatalf("LocalFile: %v", err)
	}
	if fh.Name != "guide.pdf" || fh.Size != 8 || fh.Source != SourceLocal {
		t.Errorf("handle = %+v", fh)
	}
	if !strings.HasPrefix(fh.ContentType, "application/pdf") {
		t.Errorf("ContentType = %q, want application/pdf", fh.ContentType)
	}
	rc, err := fh.Open()
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != "%PDF-1.7" {
		t.Errorf("content = %q", data)
	}
}

func TestLocalFile_Errors(t *testing.T) {
	dir := t.TempDir()
	if _, err := LocalFile(filepath.Join(dir, "missing.pdf")); err == nil {
		t.Error("missing file: want error")
	}
	if _, err := LocalFile(dir); err == nil {
		t.Error("directory: want error")
	}
}
