package home

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNew(t *testing.T) {
	d := New("/tmp/gwframe-test")
	if d.Root() != "/tmp/gwframe-test" {
		t.Errorf("expected root /tmp/gwframe-test, got %s", d.Root())
	}
}

func TestDefault(t *testing.T) {
	d, err := Default()
	if err != nil {
		t.Skipf("no user config directory: %v", err)
	}
	if filepath.Base(d.Root()) != "gwframe" {
		t.Errorf("expected root to end with 'gwframe', got %s", d.Root())
	}
}

func TestPaths(t *testing.T) {
	d := New("/data")
	if got := d.ConfigPath(); got != "/data/config.json" {
		t.Errorf("ConfigPath: got %s", got)
	}
	if got := d.CacheDir(); got != "/data/toc" {
		t.Errorf("CacheDir: got %s", got)
	}
}

func TestEnsureExists(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nested", "gwframe")
	d := New(root)
	if err := d.EnsureExists(); err != nil {
		t.Fatalf("EnsureExists: %v", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if !info.IsDir() {
		t.Error("expected directory")
	}
	if err := d.EnsureExists(); err != nil {
		t.Fatalf("EnsureExists (idempotent): %v", err)
	}
}

func TestInstallIDStable(t *testing.T) {
	d := New(filepath.Join(t.TempDir(), "home"))
	first, err := d.InstallID()
	if err != nil {
		t.Fatalf("InstallID: %v", err)
	}
	if first.Version() != 7 {
		t.Errorf("expected a version 7 uuid, got %d", first.Version())
	}
	second, err := d.InstallID()
	if err != nil {
		t.Fatalf("InstallID: %v", err)
	}
	if first != second {
		t.Errorf("expected stable id, got %s then %s", first, second)
	}
}

func TestInstallIDCorrupt(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "install_id"), []byte("not-a-uuid\n"), 0o640); err != nil {
		t.Fatal(err)
	}
	if _, err := New(root).InstallID(); err == nil {
		t.Error("expected error for corrupt install_id")
	}
}
