package monitor

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DefaultDiskCacheDuration bounds how often the data directory is walked
const DefaultDiskCacheDuration = 10 * time.Second

// DiskUsage describes what the store occupies on disk.
type DiskUsage struct {
	Path      string `json:"path"`
	UsedBytes int64  `json:"used_bytes"`
	Files     int    `json:"files"`
}

// DiskMonitor reports data directory usage, caching the result between walks.
type DiskMonitor struct {
	dataDir       string
	cacheDuration time.Duration

	mu        sync.Mutex
	cached    DiskUsage
	lastCheck time.Time
}

// NewDiskMonitor creates a monitor for dataDir. A zero cacheDuration uses
// DefaultDiskCacheDuration.
func NewDiskMonitor(dataDir string, cacheDuration time.Duration) *DiskMonitor {
	if cacheDuration <= 0 {
		cacheDuration = DefaultDiskCacheDuration
	}
	return &DiskMonitor{
		dataDir:       dataDir,
		cacheDuration: cacheDuration,
	}
}

// Usage returns current usage (cached). A data directory that does not
// exist yet reports zero.
func (m *DiskMonitor) Usage() (DiskUsage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.lastCheck.IsZero() && time.Since(m.lastCheck) < m.cacheDuration {
		return m.cached, nil
	}

	usage, err := walkDir(m.dataDir)
	if err != nil {
		return DiskUsage{}, err
	}

	m.cached = usage
	m.lastCheck = time.Now()
	return usage, nil
}

// walkDir sums allocated size over every regular file under path.
func walkDir(path string) (DiskUsage, error) {
	usage := DiskUsage{Path: path}
	err := filepath.Walk(path, func(filePath string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		usage.Files++
		if actual, err := getActualFileSize(filePath, info); err == nil {
			usage.UsedBytes += actual
		} else {
			usage.UsedBytes += info.Size()
		}
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return usage, nil
	}
	return usage, err
}

// getActualFileSize is implemented in platform-specific files:
// - filesize_unix.go (Linux/Mac): Uses syscall.Stat_t.Blocks
// - filesize_windows.go (Windows): Uses GetCompressedFileSizeW API
