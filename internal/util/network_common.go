package util

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

// NetworkInfo describes the filesystem a path lives on
type NetworkInfo struct {
	IsNetwork bool   // Whether the filesystem is network-mounted
	Protocol  string // Protocol (smb, nfs, cifs, etc.) or empty if local
	MountPath string // Mount point of the filesystem, when known
}

// DetectNetworkFilesystem checks if a path is on a network-mounted
// filesystem. A path that does not exist yet is resolved through its
// nearest existing parent, so a database file that will be created on
// first use can be checked too.
func DetectNetworkFilesystem(path string) (*NetworkInfo, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	existing, err := nearestExisting(absPath)
	if err != nil {
		return nil, err
	}

	var stat syscall.Statfs_t
	if err := syscall.Statfs(existing, &stat); err != nil {
		return nil, fmt.Errorf("failed to stat filesystem: %w", err)
	}

	return detectPlatformNetwork(existing, &stat)
}

func nearestExisting(path string) (string, error) {
	for {
		_, err := os.Stat(path)
		if err == nil {
			return path, nil
		}
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("failed to stat %s: %w", path, err)
		}

		parent := filepath.Dir(path)
		if parent == path {
			return "", fmt.Errorf("no existing parent for %s: %w", path, ErrNotFound)
		}
		path = parent
	}
}
