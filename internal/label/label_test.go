package label

import (
	"os"
	"path/filepath"
	"testing"

	rootswitch "github.com/wsl-tools/rootfs-switch"
)

func TestReadSwitchLabelFile(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, fileName), []byte("Debian_Stretch\n"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	lbl, ok := Read(root)
	if !ok {
		t.Fatal("Read: expected ok")
	}
	if got, want := lbl.String(), "debian_stretch"; got != want {
		t.Errorf("label = %q, want %q", got, want)
	}
}

func TestReadDirSuffix(t *testing.T) {
	root := filepath.Join(t.TempDir(), "rootfs_alpine_3.18")
	if err := os.MkdirAll(root, 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	lbl, ok := Read(root)
	if !ok {
		t.Fatal("Read: expected ok")
	}
	if got, want := lbl.String(), "alpine_3.18"; got != want {
		t.Errorf("label = %q, want %q", got, want)
	}
	// Read should have cached it.
	if _, err := os.Stat(filepath.Join(root, fileName)); err != nil {
		t.Errorf(".switch_label not persisted: %v", err)
	}
}

func TestReadOsRelease(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "etc"), 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	content := "ID=ubuntu\nVERSION_ID=\"20.04\"\nNAME=\"Ubuntu\"\n"
	if err := os.WriteFile(filepath.Join(root, "etc", "os-release"), []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	lbl, ok := Read(root)
	if !ok {
		t.Fatal("Read: expected ok")
	}
	if got, want := lbl.String(), "ubuntu_20.04"; got != want {
		t.Errorf("label = %q, want %q", got, want)
	}
}

func TestReadNoSource(t *testing.T) {
	root := t.TempDir()
	if _, ok := Read(root); ok {
		t.Error("Read: expected no label found")
	}
}

func TestWrite(t *testing.T) {
	root := t.TempDir()
	if err := Write(root, rootswitch.Label{Name: "debian", Version: "stretch"}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(root, fileName))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "debian_stretch\n" {
		t.Errorf("content = %q, want %q", data, "debian_stretch\n")
	}
}
