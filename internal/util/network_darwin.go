//go:build darwin

package util

import (
	"strings"
	"syscall"
)

var networkFSTypes = []string{"nfs", "smbfs", "afpfs", "cifs", "webdav", "osxfuse", "macfuse"}

func detectPlatformNetwork(path string, stat *syscall.Statfs_t) (*NetworkInfo, error) {
	info := &NetworkInfo{MountPath: cString(stat.Mntonname[:])}

	fsType := strings.ToLower(cString(stat.Fstypename[:]))
	for _, networkType := range networkFSTypes {
		if strings.Contains(fsType, networkType) {
			info.IsNetwork = true
			info.Protocol = fsType
			break
		}
	}

	return info, nil
}

// cString converts a NUL terminated int8 array to a string
func cString(arr []int8) string {
	var b strings.Builder
	for _, c := range arr {
		if c == 0 {
			break
		}
		b.WriteByte(byte(c))
	}
	return b.String()
}
