package utils

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParentProcess(t *testing.T) {
	proc, err := ParentProcess()
	if err != nil {
		t.Skipf("/proc not readable: %v", err)
	}
	if proc.PID != os.Getppid() {
		t.Errorf("Expected pid %d, got %d", os.Getppid(), proc.PID)
	}
	if !filepath.IsAbs(proc.Exe) {
		t.Errorf("Expected absolute executable path, got %q", proc.Exe)
	}
}

func TestProcessInfo_MissingProcess(t *testing.T) {
	if _, err := processInfo(t.TempDir(), 4242); err == nil {
		t.Fatal("Expected an error for a missing process")
	}
}

func TestProcessInfo_FakeProcRoot(t *testing.T) {
	root := t.TempDir()
	procDir := filepath.Join(root, "4242")
	if err := os.MkdirAll(procDir, 0755); err != nil {
		t.Fatalf("Failed to create proc dir: %v", err)
	}
	if err := os.Symlink("/usr/bin/git", filepath.Join(procDir, "exe")); err != nil {
		t.Fatalf("Failed to create exe link: %v", err)
	}

	proc, err := processInfo(root, 4242)
	if err != nil {
		t.Fatalf("processInfo failed: %v", err)
	}
	if proc.Exe != "/usr/bin/git" {
		t.Errorf("Expected /usr/bin/git, got %q", proc.Exe)
	}
	if proc.UID != uint32(os.Getuid()) {
		t.Errorf("Expected uid %d, got %d", os.Getuid(), proc.UID)
	}
}
