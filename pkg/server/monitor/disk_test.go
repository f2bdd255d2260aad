package monitor

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDiskMonitor_Usage(t *testing.T) {
	tmpDir := t.TempDir()

	if err := os.WriteFile(filepath.Join(tmpDir, "000001.vlog"), []byte("swipe data"), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}
	if err := os.MkdirAll(filepath.Join(tmpDir, "sub"), 0755); err != nil {
		t.Fatalf("Failed to create subdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(tmpDir, "sub", "MANIFEST"), []byte("x"), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	m := NewDiskMonitor(tmpDir, 0)
	usage, err := m.Usage()
	if err != nil {
		t.Fatalf("Usage() error = %v", err)
	}
	if usage.Files != 2 {
		t.Errorf("Files = %d, want 2", usage.Files)
	}
	if usage.UsedBytes < 11 {
		t.Errorf("UsedBytes = %d, want at least 11", usage.UsedBytes)
	}
	if usage.Path != tmpDir {
		t.Errorf("Path = %q, want %q", usage.Path, tmpDir)
	}
}

func TestDiskMonitor_Caching(t *testing.T) {
	tmpDir := t.TempDir()
	m := NewDiskMonitor(tmpDir, time.Hour)

	first, err := m.Usage()
	if err != nil {
		t.Fatalf("Usage() error = %v", err)
	}

	if err := os.WriteFile(filepath.Join(tmpDir, "late.sst"), []byte("later"), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	second, err := m.Usage()
	if err != nil {
		t.Fatalf("Usage() error = %v", err)
	}
	if first != second {
		t.Errorf("cached usage changed: %+v != %+v", first, second)
	}
}

func TestDiskMonitor_MissingDir(t *testing.T) {
	m := NewDiskMonitor(filepath.Join(t.TempDir(), "not-created"), 0)
	usage, err := m.Usage()
	if err != nil {
		t.Fatalf("Usage() error = %v", err)
	}
	if usage.Files != 0 || usage.UsedBytes != 0 {
		t.Errorf("Usage() = %+v, want zero", usage)
	}
}
