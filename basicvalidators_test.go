// SPDX-License-Identifier: MIT

package tizensig

import (
	"os"
	"path/filepath"
	"testing"
)

func TestIsFileReadableForExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "present.txt")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	if !IsFileReadable(path) {
		t.Fatalf("expected %s to be readable", path)
	}
}

func TestIsFileReadableForMissingFile(t *testing.T) {
	if IsFileReadable(filepath.Join(t.TempDir(), "missing.txt")) {
		t.Fatalf("expected missing file to be reported unreadable")
	}
}

func TestIsFileReadableForDirectory(t *testing.T) {
	if IsFileReadable(t.TempDir()) {
		t.Fatalf("expected a directory to be reported unreadable")
	}
}
