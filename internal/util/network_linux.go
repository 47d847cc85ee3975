//go:build linux

package util

import (
	"bufio"
	"io"
	"os"
	"strings"
	"syscall"
)

// Linux VFS magic numbers of network filesystems
var networkMagic = map[uint32]string{
	0x6969:     "nfs",
	0xff534d42: "cifs",
	0xfe534d42: "smb2",
	0x517b:     "smb",
	0x564c:     "ncp",
}

// Mount types that are network backed even though their magic is generic (fuse)
var networkMountTypes = []string{"nfs", "cifs", "smb", "ncpfs", "fuse.sshfs", "fuse.rclone", "9p"}

func detectPlatformNetwork(path string, stat *syscall.Statfs_t) (*NetworkInfo, error) {
	info := &NetworkInfo{}

	if proto, found := networkMagic[uint32(stat.Type)]; found {
		info.IsNetwork = true
		info.Protocol = proto
	}

	file, err := os.Open("/proc/mounts")
	if err != nil {
		// Rely on the magic number alone
		return info, nil
	}
	defer file.Close()

	mounts, err := parseMounts(file)
	if err != nil {
		return info, nil
	}

	mountPoint := mountPointFor(path, mounts)
	if mountPoint == "" {
		return info, nil
	}
	info.MountPath = mountPoint

	fsType := strings.ToLower(mounts[mountPoint])
	for _, networkType := range networkMountTypes {
		if strings.Contains(fsType, networkType) {
			info.IsNetwork = true
			info.Protocol = fsType
			break
		}
	}

	return info, nil
}

// parseMounts reads /proc/mounts formatted lines into mount point -> fs type
func parseMounts(r io.Reader) (map[string]string, error) {
	mounts := make(map[string]string)
	scanner := bufio.NewScanner(r)

	for scanner.Scan() {
		// device mountpoint fstype options dump pass
		fields := strings.Fields(scanner.Text())
		if len(fields) < 3 {
			continue
		}
		mounts[fields[1]] = fields[2]
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return mounts, nil
}

// mountPointFor returns the longest mount point containing path
func mountPointFor(path string, mounts map[string]string) string {
	best := ""
	for mountPoint := range mounts {
		if !containsPath(mountPoint, path) {
			continue
		}
		if len(mountPoint) > len(best) {
			best = mountPoint
		}
	}
	return best
}

func containsPath(mountPoint, path string) bool {
	if mountPoint == "/" || mountPoint == path {
		return true
	}
	return strings.HasPrefix(path, strings.TrimSuffix(mountPoint, "/")+"/")
}
