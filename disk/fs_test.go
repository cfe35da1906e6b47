package disk

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestOSWriteFileAtomicReplace(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "blob")
	fsys := OS()

	if err := fsys.WriteFile(name, []byte("first")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := fsys.WriteFile(name, []byte("second")); err != nil {
		t.Fatalf("WriteFile replace: %v", err)
	}
	got, err := fsys.ReadFile(name)
	if err != nil || !bytes.Equal(got, []byte("second")) {
		t.Fatalf("ReadFile = %q err=%v", got, err)
	}

	// No staging litter left behind.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			t.Fatalf("temp file %s left behind", e.Name())
		}
	}

	n, err := fsys.Size(name)
	if err != nil || n != int64(len("second")) {
		t.Fatalf("Size = %d err=%v", n, err)
	}
	if _, err := fsys.Size(filepath.Join(dir, "absent")); err == nil {
		t.Fatalf("Size of absent file should error")
	}
}

// End-to-end on the real filesystem: store, restart, fetch.
func TestCacheOnRealFilesystem(t *testing.T) {
	dir := t.TempDir()

	c, err := Open(Options{Dir: dir, Budget: 1 << 20})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	payload := []byte("persisted across reopen")
	if !c.Store("deadbeef00000001", payload) {
		t.Fatalf("Store failed")
	}

	re, err := Open(Options{Dir: dir, Budget: 1 << 20})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, ok := re.Fetch("deadbeef00000001")
	if !ok || !bytes.Equal(got, payload) {
		t.Fatalf("Fetch after reopen = %q ok=%v", got, ok)
	}
}

func TestOpenValidatesBudget(t *testing.T) {
	if _, err := Open(Options{Dir: t.TempDir(), Budget: 0}); err == nil {
		t.Fatalf("expected error for zero budget")
	}
	if _, err := Open(Options{Dir: t.TempDir(), Budget: -5}); err == nil {
		t.Fatalf("expected error for negative budget")
	}
}
