//go:build !linux && !darwin

package util

import "syscall"

// Unsupported platform, assume a local filesystem
func detectPlatformNetwork(path string, stat *syscall.Statfs_t) (*NetworkInfo, error) {
	return &NetworkInfo{}, nil
}
